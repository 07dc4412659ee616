package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/convobridge/convobridge/internal/domain"
)

// FeedbackStore owns the conversation_feedback table.
type FeedbackStore struct {
	db *DB
}

// NewFeedbackStore creates a feedback store using the given database.
func NewFeedbackStore(db *DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

// Add stores one feedback row for a conversation. The conversation must
// exist (FK) and the rating must be 1-5.
func (s *FeedbackStore) Add(ctx context.Context, fb domain.ConversationFeedback) (*domain.ConversationFeedback, error) {
	if fb.Rating < 1 || fb.Rating > 5 {
		return nil, ErrInvalidRating
	}
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	fb.CreatedAt = fb.CreatedAt.UTC()

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO conversation_feedback (id, conversation_id, rating, feedback, sentiment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.ConversationID, fb.Rating, fb.Feedback, string(fb.Sentiment), fb.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// Recent returns the latest n feedback rows, newest first.
func (s *FeedbackStore) Recent(ctx context.Context, n int) ([]domain.ConversationFeedback, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, conversation_id, rating, feedback, sentiment, created_at
		 FROM conversation_feedback ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ConversationFeedback{}
	for rows.Next() {
		var fb domain.ConversationFeedback
		var sentiment, created string
		if err := rows.Scan(&fb.ID, &fb.ConversationID, &fb.Rating, &fb.Feedback, &sentiment, &created); err != nil {
			return nil, err
		}
		fb.Sentiment = domain.Mood(sentiment)
		fb.CreatedAt, _ = time.Parse(timeFormat, created)
		out = append(out, fb)
	}
	return out, rows.Err()
}
