package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/convobridge/convobridge/internal/domain"
)

// timeFormat is how timestamps are stored. SQLite's datetime() parses this
// directly, so range queries wrap columns with datetime() for comparisons.
const timeFormat = time.RFC3339Nano

// ConversationStore owns the conversation/message/metrics tables.
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a conversation store using the given database.
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Create inserts a new active conversation and mints its owner token. The
// returned conversation carries the token; every later write needs it.
func (s *ConversationStore) Create(ctx context.Context, configID, agentID string, startedAt time.Time) (*domain.Conversation, error) {
	conv := &domain.Conversation{
		ID:         uuid.New().String(),
		ConfigID:   configID,
		AgentID:    agentID,
		OwnerToken: uuid.New().String(),
		StartedAt:  startedAt.UTC(),
	}

	// Widget configs are registered lazily from the first conversation
	// that references them.
	if conv.ConfigID != "" {
		if _, err := s.db.sql.ExecContext(ctx,
			`INSERT OR IGNORE INTO widget_configs (id, agent_id) VALUES (?, ?)`,
			conv.ConfigID, conv.AgentID,
		); err != nil {
			return nil, err
		}
	}

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO conversations (id, config_id, agent_id, owner_token, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.ConfigID, conv.AgentID, conv.OwnerToken, conv.StartedAt.Format(timeFormat),
	)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// AppendMessage stores one message and bumps the conversation's running
// aggregates (turn count, sentiment sum/count) in the same transaction.
// Messages without sentiment count as turns but are excluded from the mean.
// Fails with ErrNotOwner on a wrong token and ErrFinalized after close.
func (s *ConversationStore) AppendMessage(ctx context.Context, convID, ownerToken string, msg domain.Message) error {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var scoreDelta float64
	var countDelta int
	if msg.Sentiment != nil {
		scoreDelta = msg.Sentiment.Score
		countDelta = 1
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations
		 SET total_turns = total_turns + 1,
		     sentiment_sum = sentiment_sum + ?,
		     sentiment_count = sentiment_count + ?
		 WHERE id = ? AND owner_token = ? AND ended_at IS NULL`,
		scoreDelta, countDelta, convID, ownerToken,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.writeRefusal(ctx, convID, ownerToken)
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var score, comparative sql.NullFloat64
	var mood sql.NullString
	if msg.Sentiment != nil {
		score = sql.NullFloat64{Float64: msg.Sentiment.Score, Valid: true}
		comparative = sql.NullFloat64{Float64: msg.Sentiment.Comparative, Valid: true}
		mood = sql.NullString{String: string(msg.Sentiment.Mood), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, timestamp, score, comparative, mood)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		convID, string(msg.Role), msg.Content, ts.UTC().Format(timeFormat), score, comparative, mood,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Finalize closes a conversation exactly once: sets endedAt, computes the
// duration, and writes the single metrics row. A finalize after the first
// reports ErrFinalized; callers treat that as a no-op.
func (s *ConversationStore) Finalize(ctx context.Context, convID, ownerToken string, endedAt time.Time) (*domain.ConversationMetrics, error) {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var startedStr string
	var turns int
	err = tx.QueryRowContext(ctx,
		`SELECT started_at, total_turns FROM conversations WHERE id = ? AND owner_token = ?`,
		convID, ownerToken,
	).Scan(&startedStr, &turns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.writeRefusal(ctx, convID, ownerToken)
	}
	if err != nil {
		return nil, err
	}

	startedAt, err := time.Parse(timeFormat, startedStr)
	if err != nil {
		return nil, err
	}
	duration := endedAt.Sub(startedAt).Seconds()
	if duration < 0 {
		duration = 0
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET ended_at = ?, duration_secs = ?
		 WHERE id = ? AND owner_token = ? AND ended_at IS NULL`,
		endedAt.UTC().Format(timeFormat), duration, convID, ownerToken,
	)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrFinalized
	}

	divisor := turns
	if divisor < 1 {
		divisor = 1
	}
	engagement := float64(turns) * 20
	if engagement > 100 {
		engagement = 100
	}
	metrics := &domain.ConversationMetrics{
		ConversationID:      convID,
		AvgResponseTime:     duration / float64(divisor),
		UserEngagementScore: engagement,
		CompletionRate:      100,
	}

	// INSERT OR IGNORE keeps exactly-once even if a racing finalize slipped
	// between the update and here.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversation_metrics
		 (conversation_id, avg_response_time, user_engagement_score, completion_rate,
		  successful_interruptions, failed_interruptions)
		 VALUES (?, ?, ?, ?, 0, 0)`,
		metrics.ConversationID, metrics.AvgResponseTime, metrics.UserEngagementScore, metrics.CompletionRate,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return metrics, nil
}

// Get loads a conversation with its messages and the derived sentiment
// trend and emotional-state snapshots.
func (s *ConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, err := s.scanConversation(ctx,
		`SELECT id, config_id, agent_id, owner_token, started_at, ended_at,
		        duration_secs, total_turns, interruptions, sentiment_sum, sentiment_count
		 FROM conversations WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadMessages(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// MostRecent returns the latest conversation by start time, or ErrNotFound
// when the ledger is empty.
func (s *ConversationStore) MostRecent(ctx context.Context) (*domain.Conversation, error) {
	conv, err := s.scanConversation(ctx,
		`SELECT id, config_id, agent_id, owner_token, started_at, ended_at,
		        duration_secs, total_turns, interruptions, sentiment_sum, sentiment_count
		 FROM conversations ORDER BY datetime(started_at) DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if err := s.loadMessages(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Metrics returns the metrics row for a conversation, or ErrNotFound.
func (s *ConversationStore) Metrics(ctx context.Context, convID string) (*domain.ConversationMetrics, error) {
	m := &domain.ConversationMetrics{ConversationID: convID}
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT avg_response_time, user_engagement_score, completion_rate,
		        successful_interruptions, failed_interruptions
		 FROM conversation_metrics WHERE conversation_id = ?`, convID,
	).Scan(&m.AvgResponseTime, &m.UserEngagementScore, &m.CompletionRate,
		&m.SuccessfulInterruptions, &m.FailedInterruptions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ConversationStore) scanConversation(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	var conv domain.Conversation
	var startedStr string
	var endedStr sql.NullString
	var sentSum float64
	var sentCount int

	err := s.db.sql.QueryRowContext(ctx, query, args...).Scan(
		&conv.ID, &conv.ConfigID, &conv.AgentID, &conv.OwnerToken,
		&startedStr, &endedStr, &conv.DurationSeconds, &conv.TotalTurns,
		&conv.Interruptions, &sentSum, &sentCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	conv.StartedAt, _ = time.Parse(timeFormat, startedStr)
	if endedStr.Valid {
		t, err := time.Parse(timeFormat, endedStr.String)
		if err == nil {
			conv.EndedAt = &t
		}
	}
	if sentCount > 0 {
		conv.OverallSentiment = sentSum / float64(sentCount)
	}
	return &conv, nil
}

func (s *ConversationStore) loadMessages(ctx context.Context, conv *domain.Conversation) error {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT role, content, timestamp, score, comparative, mood
		 FROM messages WHERE conversation_id = ? ORDER BY id`, conv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var msg domain.Message
		var ts string
		var score, comparative sql.NullFloat64
		var mood sql.NullString

		if err := rows.Scan(&msg.Role, &msg.Content, &ts, &score, &comparative, &mood); err != nil {
			return err
		}
		msg.Timestamp, _ = time.Parse(timeFormat, ts)

		if score.Valid {
			msg.Sentiment = &domain.Sentiment{
				Score:       score.Float64,
				Comparative: comparative.Float64,
				Mood:        domain.Mood(mood.String),
			}
			conv.SentimentTrend = append(conv.SentimentTrend, domain.SentimentPoint{
				Timestamp: msg.Timestamp,
				Score:     score.Float64,
			})
			conv.EmotionalStates = append(conv.EmotionalStates, domain.EmotionalState{
				Timestamp: msg.Timestamp,
				Score:     score.Float64,
				Mood:      domain.Mood(mood.String),
			})
		}

		conv.Messages = append(conv.Messages, msg)
	}
	return rows.Err()
}

// writeRefusal distinguishes why a guarded write touched zero rows.
func (s *ConversationStore) writeRefusal(ctx context.Context, convID, ownerToken string) error {
	var owner string
	var ended sql.NullString
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT owner_token, ended_at FROM conversations WHERE id = ?`, convID,
	).Scan(&owner, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != ownerToken {
		return ErrNotOwner
	}
	if ended.Valid {
		return ErrFinalized
	}
	return ErrNotFound
}
