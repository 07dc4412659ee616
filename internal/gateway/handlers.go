package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/convobridge/convobridge/internal/analytics"
	"github.com/convobridge/convobridge/internal/domain"
	"github.com/convobridge/convobridge/internal/sentiment"
	"github.com/convobridge/convobridge/internal/version"
)

// errorResponse is the body for every non-2xx JSON reply.
type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// handleHealth reports liveness and basic runtime facts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  version.Version,
		"uptime":   time.Since(s.startedAt).Round(time.Second).String(),
		"sessions": s.Sessions(),
	})
}

// authorize checks the Bearer token against the configured gateway key.
func (s *Server) authorize(r *http.Request) bool {
	if s.cfg.Gateway.APIKey == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Gateway.APIKey)) == 1
}

// clientKey identifies the caller for rate limiting. Remote host only;
// the port changes per connection.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handleSignedURL authenticates the caller, applies the issuance rate
// limit, and forwards the request to the provider.
func (s *Server) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	agentID := r.URL.Query().Get("agentId")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}

	res, err := s.limiter.Allow(r.Context(), clientKey(r))
	if err != nil {
		s.log.Warn().Err(err).Msg("rate limit check failed")
	}
	if res.Exceeded {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"message":   "rate limit exceeded",
			"resetTime": res.ResetAt.UTC().Format(time.RFC3339),
		})
		return
	}

	signedURL, err := s.provider.SignedURL(r.Context(), agentID)
	if err != nil {
		s.log.Error().Err(err).Str("agentId", agentID).Msg("signed url request failed")
		writeError(w, http.StatusInternalServerError, "failed to obtain signed URL")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"signedUrl": signedURL})
}

// feedbackRequest is the POST /api/feedback body.
type feedbackRequest struct {
	ConversationID string `json:"conversationId"`
	Rating         int    `json:"rating"`
	Feedback       string `json:"feedback"`
}

// handleSubmitFeedback stores one end-of-conversation rating.
func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "conversationId is required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	if _, err := s.ledger.Get(r.Context(), req.ConversationID); err != nil {
		if analytics.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.log.Error().Err(err).Msg("failed to look up conversation")
		writeError(w, http.StatusInternalServerError, "failed to store feedback")
		return
	}

	mood := domain.MoodNeutral
	if req.Feedback != "" {
		mood = sentiment.Score(req.Feedback).Mood
	}

	fb, err := s.feedback.Add(r.Context(), domain.ConversationFeedback{
		ConversationID: req.ConversationID,
		Rating:         req.Rating,
		Feedback:       req.Feedback,
		Sentiment:      mood,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to store feedback")
		writeError(w, http.StatusInternalServerError, "failed to store feedback")
		return
	}

	writeJSON(w, http.StatusCreated, fb)
}
