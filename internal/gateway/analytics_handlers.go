package gateway

import (
	"net/http"
	"time"

	"github.com/convobridge/convobridge/internal/analytics"
)

// parseTimeParam accepts RFC3339 or a bare calendar date.
func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t, err = time.Parse("2006-01-02", value)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func parseRange(r *http.Request) (analytics.Range, error) {
	start, err := parseTimeParam(r.URL.Query().Get("startDate"))
	if err != nil {
		return analytics.Range{}, err
	}
	end, err := parseTimeParam(r.URL.Query().Get("endDate"))
	if err != nil {
		return analytics.Range{}, err
	}
	return analytics.Range{Start: start, End: end}, nil
}

// handleAnalyticsMetrics serves the aggregate dashboard metrics.
func (s *Server) handleAnalyticsMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rng, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "startDate and endDate must be ISO-8601")
		return
	}

	summary, err := s.analytics.MetricsSummary(r.Context(), rng)
	if err != nil {
		s.log.Error().Err(err).Msg("metrics query failed")
		writeError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleAnalyticsFeedback serves the feedback distribution and recents.
func (s *Server) handleAnalyticsFeedback(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := s.analytics.FeedbackSummary(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("feedback query failed")
		writeError(w, http.StatusInternalServerError, "failed to load feedback")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleAnalyticsConversation serves one conversation in dashboard shape.
// With no conversationId it falls back to the most recent conversation.
func (s *Server) handleAnalyticsConversation(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.URL.Query().Get("conversationId")

	detail, err := s.analytics.ConversationDetail(r.Context(), id)
	if err != nil {
		if analytics.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.log.Error().Err(err).Msg("conversation query failed")
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
