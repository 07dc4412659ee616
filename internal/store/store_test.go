package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convobridge/convobridge/internal/domain"
	"github.com/convobridge/convobridge/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func scored(score float64, mood domain.Mood) *domain.Sentiment {
	return &domain.Sentiment{Score: score, Comparative: score, Mood: mood}
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	// Running migrate again should be a no-op
	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"widget_configs", "conversations", "messages", "conversation_metrics", "conversation_feedback"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- Conversation Store tests ---

func TestConversationStore_Create(t *testing.T) {
	cs := NewConversationStore(testDB(t))

	conv, err := cs.Create(context.Background(), "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.NotEmpty(t, conv.OwnerToken)
	assert.Equal(t, "cfg-1", conv.ConfigID)
	assert.Equal(t, "agent-1", conv.AgentID)
	assert.True(t, conv.Active())
}

func TestConversationStore_Create_RegistersWidgetConfig(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	ctx := context.Background()

	_, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)
	_, err = cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM widget_configs WHERE id = 'cfg-1'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConversationStore_AppendAndGet(t *testing.T) {
	cs := NewConversationStore(testDB(t))
	ctx := context.Background()

	conv, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	err = cs.AppendMessage(ctx, conv.ID, conv.OwnerToken, domain.Message{
		Role:      domain.RoleUser,
		Content:   "I love this",
		Timestamp: time.Now(),
		Sentiment: scored(3, domain.MoodPositive),
	})
	require.NoError(t, err)

	err = cs.AppendMessage(ctx, conv.ID, conv.OwnerToken, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   "Glad to hear it",
		Timestamp: time.Now(),
		Sentiment: scored(1, domain.MoodPositive),
	})
	require.NoError(t, err)

	got, err := cs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalTurns)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, domain.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "I love this", got.Messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, got.Messages[1].Role)
	require.NotNil(t, got.Messages[0].Sentiment)
	assert.Equal(t, domain.MoodPositive, got.Messages[0].Sentiment.Mood)
}

func TestConversationStore_OverallSentimentIsMean(t *testing.T) {
	cs := NewConversationStore(testDB(t))
	ctx := context.Background()

	conv, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	scores := []float64{3, -2, 1}
	for _, sc := range scores {
		mood := domain.MoodNeutral
		err := cs.AppendMessage(ctx, conv.ID, conv.OwnerToken, domain.Message{
			Role:      domain.RoleUser,
			Content:   "x",
			Timestamp: time.Now(),
			Sentiment: scored(sc, mood),
		})
		require.NoError(t, err)
	}

	got, err := cs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.InDelta(t, (3.0-2.0+1.0)/3.0, got.OverallSentiment, 1e-9)
}

func TestConversationStore_UnscoredMessagesCountAsTurns(t *testing.T) {
	cs := NewConversationStore(testDB(t))
	ctx := context.Background()

	conv, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	require.NoError(t, cs.AppendMessage(ctx, conv.ID, conv.OwnerToken, domain.Message{
		Role: domain.RoleUser, Content: "scored", Timestamp: time.Now(),
		Sentiment: scored(2, domain.MoodPositive),
	}))
	require.NoError(t, cs.AppendMessage(ctx, conv.ID, conv.OwnerToken, domain.Message{
		Role: domain.RoleAssistant, Content: "unscored", Timestamp: time.Now(),
	}))

	got, err := cs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalTurns)
	// Only the scored message contributes to the mean.
	assert.InDelta(t, 2.0, got.OverallSentiment, 1e-9)
	assert.Len(t, got.SentimentTrend, 1)
}

func TestConversationStore_AppendWrongOwner(t *testing.T) {
	cs := NewConversationStore(testDB(t))
	ctx := context.Background()

	conv, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	err = cs.AppendMessage(ctx, conv.ID, "not-the-owner", domain.Message{
		Role: domain.RoleUser, Content: "x", Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, ErrNotOwner)

	got, err := cs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalTurns)
	assert.Empty(t, got.Messages)
}

func TestConversationStore_AppendUnknownConversation(t *testing.T) {
	cs := NewConversationStore(testDB(t))

	err := cs.AppendMessage(context.Background(), "nope", "token", domain.Message{
		Role: domain.RoleUser, Content: "x", Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationStore_Finalize(t *testing.T) {
	cs := NewConversationStore(testDB(t))
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	conv, err := cs.Create(ctx, "cfg-1", "agent-1", started)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, cs.AppendMessage(ctx, conv.ID, conv.OwnerToken, domain.Message{
			Role: domain.RoleUser, Content: "x", Timestamp: time.Now(),
		}))
	}

	ended := started.Add(time.Minute)
	metrics, err := cs.Finalize(ctx, conv.ID, conv.OwnerToken, ended)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, metrics.AvgResponseTime, 1e-6) // 60s over 3 turns
	assert.InDelta(t, 60.0, metrics.UserEngagementScore, 1e-9)
	assert.InDelta(t, 100.0, metrics.CompletionRate, 1e-9)

	got, err := cs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, got.Active())
	require.NotNil(t, got.EndedAt)
	assert.InDelta(t, 60.0, got.DurationSeconds, 1e-6)

	stored, err := cs.Metrics(ctx, conv.ID)
	require.NoError(t, err)
	assert.InDelta(t, metrics.AvgResponseTime, stored.AvgResponseTime, 1e-9)
}

func TestConversationStore_Finalize_ZeroTurns(t *testing.T) {
	cs := NewConversationStore(testDB(t))
	ctx := context.Background()

	started := time.Now().Add(-30 * time.Second)
	conv, err := cs.Create(ctx, "cfg-1", "agent-1", started)
	require.NoError(t, err)

	metrics, err := cs.Finalize(ctx, conv.ID, conv.OwnerToken, started.Add(30*time.Second))
	require.NoError(t, err)
	// Divisor clamps to 1, engagement is turns*20.
	assert.InDelta(t, 30.0, metrics.AvgResponseTime, 1e-6)
	assert.InDelta(t, 0.0, metrics.UserEngagementScore, 1e-9)
}

func TestConversationStore_Finalize_EngagementCapped(t *testing.T) {
	cs := NewConversationStore(testDB(t))
	ctx := context.Background()

	conv, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, cs.AppendMessage(ctx, conv.ID, conv.OwnerToken, domain.Message{
			Role: domain.RoleUser, Content: "x", Timestamp: time.Now(),
		}))
	}

	metrics, err := cs.Finalize(ctx, conv.ID, conv.OwnerToken, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 100.0, metrics.UserEngagementScore, 1e-9)
}

func TestConversationStore_Finalize_Idempotent(t *testing.T) {
	cs := NewConversationStore(testDB(t))
	ctx := context.Background()

	conv, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	_, err = cs.Finalize(ctx, conv.ID, conv.OwnerToken, time.Now())
	require.NoError(t, err)

	_, err = cs.Finalize(ctx, conv.ID, conv.OwnerToken, time.Now())
	assert.ErrorIs(t, err, ErrFinalized)

	// Exactly one metrics row.
	var count int
	err = cs.db.sql.QueryRow(
		"SELECT COUNT(*) FROM conversation_metrics WHERE conversation_id = ?", conv.ID,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConversationStore_AppendAfterFinalize(t *testing.T) {
	cs := NewConversationStore(testDB(t))
	ctx := context.Background()

	conv, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	_, err = cs.Finalize(ctx, conv.ID, conv.OwnerToken, time.Now())
	require.NoError(t, err)

	err = cs.AppendMessage(ctx, conv.ID, conv.OwnerToken, domain.Message{
		Role: domain.RoleUser, Content: "too late", Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestConversationStore_Get_NotFound(t *testing.T) {
	cs := NewConversationStore(testDB(t))

	_, err := cs.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationStore_MostRecent(t *testing.T) {
	cs := NewConversationStore(testDB(t))
	ctx := context.Background()

	older, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	newer, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	got, err := cs.MostRecent(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.NotEqual(t, older.ID, got.ID)
}

func TestConversationStore_MostRecent_Empty(t *testing.T) {
	cs := NewConversationStore(testDB(t))

	_, err := cs.MostRecent(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationStore_Metrics_NotFound(t *testing.T) {
	cs := NewConversationStore(testDB(t))

	_, err := cs.Metrics(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Feedback Store tests ---

func TestFeedbackStore_Add(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	fs := NewFeedbackStore(db)
	ctx := context.Background()

	conv, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	fb, err := fs.Add(ctx, domain.ConversationFeedback{
		ConversationID: conv.ID,
		Rating:         5,
		Feedback:       "great session",
		Sentiment:      domain.MoodPositive,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, fb.ID)
	assert.False(t, fb.CreatedAt.IsZero())
}

func TestFeedbackStore_Add_InvalidRating(t *testing.T) {
	fs := NewFeedbackStore(testDB(t))

	_, err := fs.Add(context.Background(), domain.ConversationFeedback{
		ConversationID: "any", Rating: 0,
	})
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = fs.Add(context.Background(), domain.ConversationFeedback{
		ConversationID: "any", Rating: 6,
	})
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestFeedbackStore_Recent(t *testing.T) {
	db := testDB(t)
	cs := NewConversationStore(db)
	fs := NewFeedbackStore(db)
	ctx := context.Background()

	conv, err := cs.Create(ctx, "cfg-1", "agent-1", time.Now())
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := fs.Add(ctx, domain.ConversationFeedback{
			ConversationID: conv.ID,
			Rating:         i + 1,
			Feedback:       "fb",
			Sentiment:      domain.MoodNeutral,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	recent, err := fs.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Newest first
	assert.Equal(t, 3, recent[0].Rating)
	assert.Equal(t, 2, recent[1].Rating)
}

func TestFeedbackStore_Recent_Empty(t *testing.T) {
	fs := NewFeedbackStore(testDB(t))

	recent, err := fs.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, recent)
	assert.Empty(t, recent)
}
