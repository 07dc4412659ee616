package domain

import "time"

// SentimentPoint is one entry in a conversation's sentiment trend.
type SentimentPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

// EmotionalState is one mood snapshot taken as a message was stored.
type EmotionalState struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	Mood      Mood      `json:"mood"`
}

// Conversation is the durable record of one relay session. It is owned
// exclusively by the relay instance that created it while active, and
// becomes immutable once finalized.
type Conversation struct {
	ID       string `json:"id"`
	ConfigID string `json:"configId"`
	AgentID  string `json:"agentId"`

	// OwnerToken is minted at creation and required for every write. It
	// never leaves the server.
	OwnerToken string `json:"-"`

	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds float64    `json:"duration"`
	TotalTurns      int        `json:"totalTurns"`
	Interruptions   int        `json:"interruptions"`

	// OverallSentiment is the running mean of all stored messages'
	// sentiment scores; messages without sentiment are excluded.
	OverallSentiment float64 `json:"overallSentiment"`

	Messages        []Message        `json:"messages,omitempty"`
	SentimentTrend  []SentimentPoint `json:"sentimentTrend,omitempty"`
	EmotionalStates []EmotionalState `json:"emotionalStates,omitempty"`
}

// Active reports whether the conversation has not been finalized yet.
func (c *Conversation) Active() bool {
	return c.EndedAt == nil
}

// ConversationMetrics is written exactly once when a conversation is
// finalized.
type ConversationMetrics struct {
	ConversationID string `json:"conversationId"`

	// AvgResponseTime is duration divided by turn count, in seconds.
	AvgResponseTime         float64 `json:"avgResponseTime"`
	UserEngagementScore     float64 `json:"userEngagementScore"` // 0-100
	CompletionRate          float64 `json:"completionRate"`
	SuccessfulInterruptions int     `json:"successfulInterruptions"`
	FailedInterruptions     int     `json:"failedInterruptions"`
}

// ConversationFeedback is an optional, out-of-band rating left for a
// finished conversation.
type ConversationFeedback struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Rating         int       `json:"rating"` // 1-5
	Feedback       string    `json:"feedback,omitempty"`
	Sentiment      Mood      `json:"sentiment,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
