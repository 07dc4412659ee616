// Package sentiment scores text with a lexicon-based polarity sum.
package sentiment

import (
	"strings"

	"github.com/convobridge/convobridge/internal/domain"
)

// Mood thresholds applied to the raw summed score. Values at exactly the
// threshold are neutral (strict inequalities).
const (
	positiveThreshold = 0.2
	negativeThreshold = -0.2
)

// Score analyzes text and returns its sentiment. It is deterministic and
// side-effect free: the text is lowercased, split on whitespace, and each
// token's lexicon valence is summed (unknown tokens contribute 0).
// Comparative is the score divided by the token count (minimum 1).
//
// Moods are classified from the raw score, not the comparative value, so
// longer utterances accumulate polarity. That matches the scoring used by
// the rest of the system; keep it that way.
func Score(text string) domain.Sentiment {
	tokens := strings.Fields(strings.ToLower(text))

	var score float64
	for _, tok := range tokens {
		score += float64(lexicon[trimToken(tok)])
	}

	count := len(tokens)
	if count < 1 {
		count = 1
	}

	return domain.Sentiment{
		Score:       score,
		Comparative: score / float64(count),
		Mood:        classify(score),
	}
}

func classify(score float64) domain.Mood {
	switch {
	case score > positiveThreshold:
		return domain.MoodPositive
	case score < negativeThreshold:
		return domain.MoodNegative
	default:
		return domain.MoodNeutral
	}
}

// trimToken strips leading and trailing punctuation so "love!" and
// "(great)" still hit the lexicon.
func trimToken(tok string) string {
	return strings.Trim(tok, ".,!?;:'\"()[]{}")
}
