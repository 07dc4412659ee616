package domain

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Mood is the categorical sentiment label for a message.
type Mood string

const (
	MoodPositive Mood = "positive"
	MoodNegative Mood = "negative"
	MoodNeutral  Mood = "neutral"
)

// Sentiment is the lexicon-based polarity result for a piece of text.
// Score is the raw summed polarity; Comparative is Score normalized by
// token count.
type Sentiment struct {
	Score       float64 `json:"score"`
	Comparative float64 `json:"comparative"`
	Mood        Mood    `json:"mood"`
}

// Message is a single turn in a conversation. Sentiment is nil only for
// control/status payloads; every content message the ledger stores carries
// a sentiment.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Sentiment *Sentiment `json:"sentiment,omitempty"`
}
