package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/convobridge/convobridge/internal/domain"
)

func TestScore_Positive(t *testing.T) {
	got := Score("I love this!")

	assert.Equal(t, float64(3), got.Score)
	assert.InDelta(t, 1.0, got.Comparative, 1e-9)
	assert.Equal(t, domain.MoodPositive, got.Mood)
}

func TestScore_Negative(t *testing.T) {
	got := Score("this is terrible and broken")

	assert.Equal(t, float64(-4), got.Score)
	assert.Equal(t, domain.MoodNegative, got.Mood)
}

func TestScore_Neutral(t *testing.T) {
	got := Score("the weather is cloudy today")

	assert.Equal(t, float64(0), got.Score)
	assert.Equal(t, float64(0), got.Comparative)
	assert.Equal(t, domain.MoodNeutral, got.Mood)
}

func TestScore_Empty(t *testing.T) {
	got := Score("")

	assert.Equal(t, float64(0), got.Score)
	assert.Equal(t, float64(0), got.Comparative)
	assert.Equal(t, domain.MoodNeutral, got.Mood)
}

func TestScore_WhitespaceOnly(t *testing.T) {
	got := Score("   \t\n  ")

	assert.Equal(t, float64(0), got.Score)
	assert.Equal(t, domain.MoodNeutral, got.Mood)
}

func TestScore_CaseInsensitive(t *testing.T) {
	assert.Equal(t, Score("love"), Score("LOVE"))
	assert.Equal(t, Score("Terrible"), Score("terrible"))
}

func TestScore_PunctuationTrimmed(t *testing.T) {
	assert.Equal(t, float64(3), Score("love!").Score)
	assert.Equal(t, float64(3), Score("(great)").Score)
	assert.Equal(t, float64(3), Score("\"nice.\"").Score)
}

func TestScore_MixedPolarity(t *testing.T) {
	// love (+3) + terrible (-3) cancel out
	got := Score("love terrible")
	assert.Equal(t, float64(0), got.Score)
	assert.Equal(t, domain.MoodNeutral, got.Mood)
}

func TestScore_Comparative(t *testing.T) {
	// amazing (+4) over 4 tokens
	got := Score("this is really amazing")
	assert.Equal(t, float64(4), got.Score)
	assert.InDelta(t, 1.0, got.Comparative, 1e-9)
}

func TestScore_Deterministic(t *testing.T) {
	text := "great product but slow and buggy support was helpful"
	first := Score(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(text))
	}
}

func TestClassify_Thresholds(t *testing.T) {
	// Strictly greater / strictly less; the boundary itself is neutral.
	assert.Equal(t, domain.MoodPositive, classify(0.5))
	assert.Equal(t, domain.MoodNegative, classify(-0.5))
	assert.Equal(t, domain.MoodNeutral, classify(0))
	assert.Equal(t, domain.MoodNeutral, classify(0.2))
	assert.Equal(t, domain.MoodNeutral, classify(-0.2))
	assert.Equal(t, domain.MoodPositive, classify(0.2000001))
	assert.Equal(t, domain.MoodNegative, classify(-0.2000001))
}

func TestScore_UnknownTokens(t *testing.T) {
	got := Score("xyzzy plugh quux")
	assert.Equal(t, float64(0), got.Score)
	assert.Equal(t, domain.MoodNeutral, got.Mood)
}

func TestScore_RawScoreNotComparativeDrivesMood(t *testing.T) {
	// One +3 word diluted across many neutral tokens: comparative is tiny
	// but the raw score still classifies positive.
	got := Score("love a b c d e f g h i j k l m n o p q r s")
	assert.Equal(t, float64(3), got.Score)
	assert.Less(t, got.Comparative, 0.2)
	assert.Equal(t, domain.MoodPositive, got.Mood)
}
