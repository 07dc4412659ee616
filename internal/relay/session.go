// Package relay bridges one widget connection and one upstream provider
// connection for the lifetime of a conversation, scoring each text turn
// and appending it to the conversation ledger.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/convobridge/convobridge/internal/domain"
	"github.com/convobridge/convobridge/internal/logging"
	"github.com/convobridge/convobridge/internal/sentiment"
	"github.com/convobridge/convobridge/internal/store"
)

// State is the session lifecycle position.
type State string

const (
	StateInit       State = "INIT"
	StateConnecting State = "CONNECTING_UPSTREAM"
	StateActive     State = "ACTIVE"
	// StateDegraded is reached when the upstream dial fails: the widget
	// leg stays open and sees an error event, and transport-level
	// reconnect is left to the client.
	StateDegraded State = "DEGRADED"
	StateClosing  State = "CLOSING"
	StateClosed   State = "CLOSED"
)

// dialTimeout bounds the upstream connection attempt.
const dialTimeout = 15 * time.Second

// finalizeTimeout bounds the ledger write performed during shutdown.
const finalizeTimeout = 5 * time.Second

type source int

const (
	srcClient source = iota
	srcUpstream
)

// inbound is one frame (or terminal read error) from either leg, merged
// onto the session's single event channel.
type inbound struct {
	src  source
	data []byte
	err  error
}

// Config wires a session's collaborators.
type Config struct {
	Ledger *store.ConversationStore
	// Dial opens the upstream leg; nil uses DialUpstream.
	Dial Dialer
	Log  *logging.Logger
}

// Session is the per-connection actor. A single sequential loop consumes
// frames from both legs, so the state machine needs no locking: the relay
// instance is the one writer for its conversation.
type Session struct {
	id       string
	client   Transport
	upstream Transport
	dial     Dialer
	ledger   *store.ConversationStore
	log      *logging.Logger

	state     State
	conv      *domain.Conversation
	finalized bool

	events chan inbound
	done   chan struct{}
}

// NewSession creates a session for an accepted widget connection.
func NewSession(client Transport, cfg Config) *Session {
	dial := cfg.Dial
	if dial == nil {
		dial = DialUpstream
	}
	id := uuid.New().String()
	return &Session{
		id:     id,
		client: client,
		dial:   dial,
		ledger: cfg.Ledger,
		log:    cfg.Log.Sub("relay").WithConversation(id),
		state:  StateInit,
		events: make(chan inbound, 64),
		done:   make(chan struct{}),
	}
}

// State returns the current lifecycle state. Only meaningful from the
// session's own goroutine or after Run returns.
func (s *Session) State() State { return s.state }

// ConversationID returns the ledger id for this session, or "" before init.
func (s *Session) ConversationID() string {
	if s.conv == nil {
		return ""
	}
	return s.conv.ID
}

// Run drives the session until either leg closes or ctx is cancelled.
// It always closes both legs and finalizes the conversation before
// returning; finalization is idempotent.
func (s *Session) Run(ctx context.Context) {
	defer s.shutdown()

	go s.readLoop(srcClient, s.client)

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("session context cancelled")
			return
		case evt := <-s.events:
			if evt.err != nil {
				s.log.Debug().Err(evt.err).Int("leg", int(evt.src)).Msg("leg closed")
				return
			}
			var err error
			switch evt.src {
			case srcClient:
				err = s.handleClientFrame(ctx, evt.data)
			case srcUpstream:
				err = s.handleUpstreamFrame(ctx, evt.data)
			}
			if err != nil {
				s.log.Warn().Err(err).Msg("session ending")
				return
			}
		}
	}
}

// readLoop pumps one leg's frames onto the merged event channel until the
// leg errors or the session finishes.
func (s *Session) readLoop(src source, t Transport) {
	for {
		data, err := t.ReadFrame()
		select {
		case s.events <- inbound{src: src, data: data, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// handleClientFrame processes one widget frame. A non-nil return tears the
// session down; recoverable problems (protocol errors, upstream send
// failures, ledger write failures) are logged and swallowed to keep the
// session interactive.
func (s *Session) handleClientFrame(ctx context.Context, data []byte) error {
	var evt ClientEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		s.log.Warn().Err(err).Msg("dropping malformed client frame")
		return nil
	}

	switch evt.Type {
	case EventInit:
		if s.state != StateInit {
			s.log.Warn().Str("state", string(s.state)).Msg("ignoring duplicate init event")
			return nil
		}
		s.handleInit(ctx, evt)
		return nil

	case EventMessage:
		if s.state != StateActive {
			s.log.Warn().Str("state", string(s.state)).Msg("dropping message outside ACTIVE state")
			return nil
		}
		s.handleClientMessage(ctx, evt.Content)
		return nil

	default:
		s.log.Warn().Str("type", evt.Type).Msg("dropping unknown client event")
		return nil
	}
}

// handleInit creates the conversation record and opens the upstream leg.
func (s *Session) handleInit(ctx context.Context, evt ClientEvent) {
	if s.ledger != nil {
		conv, err := s.ledger.Create(ctx, evt.ConfigID, evt.AgentID, time.Now())
		if err != nil {
			// Best effort: the session stays live even if nothing persists.
			s.log.Error().Err(err).Msg("failed to create conversation record")
		} else {
			s.conv = conv
			s.log = s.log.WithConversation(conv.ID)
		}
	}

	s.state = StateConnecting
	s.log.Info().Str("agentId", evt.AgentID).Msg("connecting upstream")

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	upstream, err := s.dial(dialCtx, evt.SignedURL)
	if err != nil {
		s.log.Error().Err(err).Msg("upstream connect failed")
		s.state = StateDegraded
		s.sendError("failed to connect to the conversation agent")
		return
	}

	s.upstream = upstream
	s.state = StateActive
	go s.readLoop(srcUpstream, upstream)
	s.log.Info().Msg("session active")
}

// handleClientMessage forwards one user turn upstream and records it.
func (s *Session) handleClientMessage(ctx context.Context, content string) {
	payload, err := marshalUserMessage(content)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode user message")
		return
	}
	if err := s.upstream.WriteRaw(payload); err != nil {
		s.log.Error().Err(err).Msg("upstream send failed")
		s.sendError("failed to deliver message to the conversation agent")
	}

	s.recordMessage(ctx, domain.RoleUser, content)
}

// handleUpstreamFrame forwards one provider frame to the widget and, for
// content and status events, records or normalizes it. A client write
// failure is terminal: with the widget gone there is nobody to relay for.
func (s *Session) handleUpstreamFrame(ctx context.Context, data []byte) error {
	if err := s.client.WriteRaw(data); err != nil {
		return errors.New("client write failed: " + err.Error())
	}

	var evt upstreamEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		s.log.Debug().Msg("passed through unparseable upstream frame")
		return nil
	}

	switch evt.Type {
	case upstreamAgentResponse:
		s.recordMessage(ctx, domain.RoleAssistant, evt.Text)

	case upstreamStatus:
		if status, ok := normalizeStatus(evt.Status); ok {
			if err := s.client.WriteJSON(VoiceStatusEvent{Type: EventVoiceStatus, Status: status}); err != nil {
				return errors.New("client write failed: " + err.Error())
			}
		}
	}
	return nil
}

// recordMessage scores content and appends it to the ledger. Persistence
// is best effort relative to live relaying.
func (s *Session) recordMessage(ctx context.Context, role domain.Role, content string) {
	if s.conv == nil || s.ledger == nil {
		return
	}
	scored := sentiment.Score(content)
	err := s.ledger.AppendMessage(ctx, s.conv.ID, s.conv.OwnerToken, domain.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Sentiment: &scored,
	})
	if err != nil {
		s.log.Error().Err(err).Str("role", string(role)).Msg("ledger append failed")
	}
}

func (s *Session) sendError(message string) {
	if err := s.client.WriteJSON(ErrorEvent{Type: EventError, Message: message}); err != nil {
		s.log.Debug().Err(err).Msg("failed to deliver error event")
	}
}

// shutdown closes both legs promptly (no drain) and finalizes the
// conversation exactly once.
func (s *Session) shutdown() {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosing
	close(s.done)

	if s.upstream != nil {
		s.upstream.Close()
	}
	s.client.Close()

	if s.conv != nil && !s.finalized {
		ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()

		metrics, err := s.ledger.Finalize(ctx, s.conv.ID, s.conv.OwnerToken, time.Now())
		switch {
		case errors.Is(err, store.ErrFinalized):
			s.log.Debug().Msg("conversation already finalized")
		case err != nil:
			s.log.Error().Err(err).Msg("failed to finalize conversation")
		default:
			s.log.Info().
				Float64("avgResponseTime", metrics.AvgResponseTime).
				Float64("engagement", metrics.UserEngagementScore).
				Msg("conversation finalized")
		}
		s.finalized = true
	}

	s.state = StateClosed
	s.log.Info().Msg("session closed")
}
