// Package gateway is the convobridge HTTP + WebSocket server: the widget
// relay endpoint, signed-URL issuance, and the analytics read API.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/convobridge/convobridge/internal/analytics"
	"github.com/convobridge/convobridge/internal/config"
	"github.com/convobridge/convobridge/internal/logging"
	"github.com/convobridge/convobridge/internal/ratelimit"
	"github.com/convobridge/convobridge/internal/relay"
	"github.com/convobridge/convobridge/internal/store"
)

// ProviderClient issues signed URLs from the upstream provider.
type ProviderClient interface {
	SignedURL(ctx context.Context, agentID string) (string, error)
}

// Server is the convobridge gateway server.
type Server struct {
	cfg       config.Config
	log       *logging.Logger
	ledger    *store.ConversationStore
	feedback  *store.FeedbackStore
	analytics *analytics.Service
	limiter   *ratelimit.Limiter
	provider  ProviderClient

	// dial opens relay upstream legs; overridable for tests.
	dial relay.Dialer

	mu       sync.Mutex
	sessions int

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithUpstreamDialer overrides how relay sessions open their upstream leg.
func WithUpstreamDialer(d relay.Dialer) ServerOption {
	return func(s *Server) { s.dial = d }
}

// New creates a gateway server.
func New(
	cfg config.Config,
	log *logging.Logger,
	ledger *store.ConversationStore,
	feedback *store.FeedbackStore,
	analyticsSvc *analytics.Service,
	limiter *ratelimit.Limiter,
	provider ProviderClient,
	opts ...ServerOption,
) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log.Sub("gateway"),
		ledger:    ledger,
		feedback:  feedback,
		analytics: analyticsSvc,
		limiter:   limiter,
		provider:  provider,
		dial:      relay.DialUpstream,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkWebSocketOrigin validates WebSocket Origin headers. Requests with
// no Origin header (non-browser clients) are allowed; browser origins must
// match the configured allowlist.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections. It blocks
// until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := withMiddleware(mux, s.log, s.cfg.Gateway.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Gateway.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.Gateway.TLS.CertPath, s.cfg.Gateway.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Gateway.Bind != "loopback" && s.cfg.Gateway.Bind != "" {
		s.log.Warn().Msg("TLS is not enabled; API keys will be transmitted in cleartext")
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// Sessions returns the number of live relay sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/signed-url", s.handleSignedURL)
	mux.HandleFunc("GET /api/analytics/metrics", s.handleAnalyticsMetrics)
	mux.HandleFunc("GET /api/analytics/feedback", s.handleAnalyticsFeedback)
	mux.HandleFunc("GET /api/analytics/conversation", s.handleAnalyticsConversation)
	mux.HandleFunc("POST /api/feedback", s.handleSubmitFeedback)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// handleWebSocket upgrades the widget connection and runs one relay
// session for its lifetime.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(1 * 1024 * 1024) // 1MB; text turns are small

	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sessions--
		s.mu.Unlock()
	}()

	session := relay.NewSession(relay.NewWebsocketTransport(conn), relay.Config{
		Ledger: s.ledger,
		Dial:   s.dial,
		Log:    s.log,
	})

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("widget connected")
	session.Run(r.Context())
}
