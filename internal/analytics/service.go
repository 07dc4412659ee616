// Package analytics answers read-only dashboard queries over the
// conversation ledger.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/convobridge/convobridge/internal/domain"
	"github.com/convobridge/convobridge/internal/logging"
	"github.com/convobridge/convobridge/internal/store"
)

// recentFeedbackLimit caps the feedback rows returned by FeedbackSummary.
const recentFeedbackLimit = 10

// Range is an optional [start, end] filter on conversation start time.
// Nil bounds are open.
type Range struct {
	Start *time.Time
	End   *time.Time
}

// MoodCount is one bucket of a mood histogram.
type MoodCount struct {
	Mood  domain.Mood `json:"mood"`
	Count int         `json:"count"`
}

// MetricsSummary is the dashboard's top-level aggregate view.
type MetricsSummary struct {
	TotalConversations int                     `json:"totalConversations"`
	AvgDuration        float64                 `json:"avgDuration"`
	AvgEngagement      float64                 `json:"avgUserEngagementScore"`
	AvgSentiment       float64                 `json:"avgSentiment"`
	SentimentTrend     []domain.SentimentPoint `json:"sentimentTrend"`
	MoodDistribution   []MoodCount             `json:"emotionalStateDistribution"`
}

// FeedbackSummary aggregates user-submitted conversation feedback.
type FeedbackSummary struct {
	SentimentDistribution []MoodCount                   `json:"sentimentDistribution"`
	Recent                []domain.ConversationFeedback `json:"recent"`
}

// DetailMessage is a message normalized for dashboard consumption:
// synthetic sequential id and RFC3339 timestamp.
type DetailMessage struct {
	ID        int               `json:"id"`
	Role      domain.Role       `json:"role"`
	Content   string            `json:"content"`
	Timestamp string            `json:"timestamp"`
	Sentiment *domain.Sentiment `json:"sentiment,omitempty"`
}

// ConversationDetail is one conversation shaped for the dashboard.
type ConversationDetail struct {
	ID               string          `json:"id"`
	ConfigID         string          `json:"configId"`
	AgentID          string          `json:"agentId"`
	StartedAt        string          `json:"startedAt"`
	EndedAt          string          `json:"endedAt,omitempty"`
	Duration         float64         `json:"duration"`
	TotalTurns       int             `json:"totalTurns"`
	OverallSentiment float64         `json:"overallSentiment"`
	Messages         []DetailMessage `json:"messages"`
}

// Service runs the aggregation queries. It only ever reads.
type Service struct {
	db       *store.DB
	convs    *store.ConversationStore
	feedback *store.FeedbackStore
	log      *logging.Logger
}

// New creates an analytics service over the given ledger.
func New(db *store.DB, convs *store.ConversationStore, feedback *store.FeedbackStore, log *logging.Logger) *Service {
	return &Service{db: db, convs: convs, feedback: feedback, log: log.Sub("analytics")}
}

// MetricsSummary computes the aggregate dashboard metrics for the range.
// An empty ledger yields zeroes and empty slices, never an error.
func (s *Service) MetricsSummary(ctx context.Context, r Range) (*MetricsSummary, error) {
	out := &MetricsSummary{
		SentimentTrend:   []domain.SentimentPoint{},
		MoodDistribution: []MoodCount{},
	}

	where, args := rangeClause("started_at", r)

	var avgDuration, avgSentiment sql.NullFloat64
	err := s.db.SQL().QueryRowContext(ctx,
		`SELECT COUNT(*),
		        AVG(duration_secs),
		        AVG(CASE WHEN sentiment_count > 0 THEN sentiment_sum / sentiment_count END)
		 FROM conversations`+where, args...,
	).Scan(&out.TotalConversations, &avgDuration, &avgSentiment)
	if err != nil {
		return nil, err
	}
	out.AvgDuration = avgDuration.Float64
	out.AvgSentiment = avgSentiment.Float64

	whereC, argsC := rangeClause("c.started_at", r)
	var avgEngagement sql.NullFloat64
	err = s.db.SQL().QueryRowContext(ctx,
		`SELECT AVG(m.user_engagement_score)
		 FROM conversation_metrics m
		 JOIN conversations c ON c.id = m.conversation_id`+whereC, argsC...,
	).Scan(&avgEngagement)
	if err != nil {
		return nil, err
	}
	out.AvgEngagement = avgEngagement.Float64

	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT m.timestamp, m.score
		 FROM messages m
		 JOIN conversations c ON c.id = m.conversation_id
		 `+andClause(whereC, "m.score IS NOT NULL")+`
		 ORDER BY datetime(m.timestamp)`, argsC...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ts string
		var point domain.SentimentPoint
		if err := rows.Scan(&ts, &point.Score); err != nil {
			return nil, err
		}
		point.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out.SentimentTrend = append(out.SentimentTrend, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	moodRows, err := s.db.SQL().QueryContext(ctx,
		`SELECT m.mood, COUNT(*)
		 FROM messages m
		 JOIN conversations c ON c.id = m.conversation_id
		 `+andClause(whereC, "m.mood IS NOT NULL")+`
		 GROUP BY m.mood ORDER BY m.mood`, argsC...)
	if err != nil {
		return nil, err
	}
	defer moodRows.Close()
	for moodRows.Next() {
		var mc MoodCount
		if err := moodRows.Scan(&mc.Mood, &mc.Count); err != nil {
			return nil, err
		}
		out.MoodDistribution = append(out.MoodDistribution, mc)
	}
	return out, moodRows.Err()
}

// FeedbackSummary returns the sentiment-label distribution plus the most
// recent feedback rows.
func (s *Service) FeedbackSummary(ctx context.Context) (*FeedbackSummary, error) {
	out := &FeedbackSummary{
		SentimentDistribution: []MoodCount{},
		Recent:                []domain.ConversationFeedback{},
	}

	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT sentiment, COUNT(*)
		 FROM conversation_feedback
		 WHERE sentiment != ''
		 GROUP BY sentiment ORDER BY sentiment`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var mc MoodCount
		if err := rows.Scan(&mc.Mood, &mc.Count); err != nil {
			return nil, err
		}
		out.SentimentDistribution = append(out.SentimentDistribution, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := s.feedback.Recent(ctx, recentFeedbackLimit)
	if err != nil {
		return nil, err
	}
	out.Recent = recent
	return out, nil
}

// ConversationDetail fetches one conversation by id, or the most recent
// one when id is empty. Returns store.ErrNotFound for unknown ids.
func (s *Service) ConversationDetail(ctx context.Context, id string) (*ConversationDetail, error) {
	var conv *domain.Conversation
	var err error
	if id == "" {
		conv, err = s.convs.MostRecent(ctx)
	} else {
		conv, err = s.convs.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	detail := &ConversationDetail{
		ID:               conv.ID,
		ConfigID:         conv.ConfigID,
		AgentID:          conv.AgentID,
		StartedAt:        conv.StartedAt.Format(time.RFC3339),
		Duration:         conv.DurationSeconds,
		TotalTurns:       conv.TotalTurns,
		OverallSentiment: conv.OverallSentiment,
		Messages:         []DetailMessage{},
	}
	if conv.EndedAt != nil {
		detail.EndedAt = conv.EndedAt.Format(time.RFC3339)
	}
	for i, msg := range conv.Messages {
		detail.Messages = append(detail.Messages, DetailMessage{
			ID:        i + 1,
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp.Format(time.RFC3339),
			Sentiment: msg.Sentiment,
		})
	}
	return detail, nil
}

// IsNotFound reports whether err is the ledger's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// rangeClause builds a WHERE clause for an optional time range on col.
func rangeClause(col string, r Range) (string, []any) {
	var conds string
	var args []any
	if r.Start != nil {
		conds = " WHERE datetime(" + col + ") >= datetime(?)"
		args = append(args, r.Start.UTC().Format(time.RFC3339Nano))
	}
	if r.End != nil {
		if conds == "" {
			conds = " WHERE "
		} else {
			conds += " AND "
		}
		conds += "datetime(" + col + ") <= datetime(?)"
		args = append(args, r.End.UTC().Format(time.RFC3339Nano))
	}
	return conds, args
}

// andClause appends an extra condition to a possibly-empty WHERE clause.
func andClause(where, cond string) string {
	if where == "" {
		return " WHERE " + cond
	}
	return where + " AND " + cond
}
