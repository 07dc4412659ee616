package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/convobridge/convobridge/internal/analytics"
	"github.com/convobridge/convobridge/internal/config"
	"github.com/convobridge/convobridge/internal/gateway"
	"github.com/convobridge/convobridge/internal/provider"
	"github.com/convobridge/convobridge/internal/ratelimit"
	"github.com/convobridge/convobridge/internal/store"
)

// janitorInterval is how often the in-memory rate limit store drops
// expired windows.
const janitorInterval = 5 * time.Minute

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the convobridge gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if logLevel == "" && cfg.Logging.Level != "" {
				log.SetLevel(cfg.Logging.Level)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dbPath := cfg.Ledger.Path
			if dbPath == "" {
				dbPath = filepath.Join(paths.Data, "convobridge.db")
			}
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening ledger database: %w", err)
			}
			defer db.Close()
			log.Info().Str("path", dbPath).Msg("conversation ledger open")

			ledger := store.NewConversationStore(db)
			feedback := store.NewFeedbackStore(db)
			analyticsSvc := analytics.New(db, ledger, feedback, log)

			limiter, err := buildLimiter(ctx, cfg.RateLimit)
			if err != nil {
				return err
			}

			providerClient := provider.New(
				cfg.Provider.BaseURL,
				cfg.Provider.APIKey,
				time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
			)

			srv := gateway.New(cfg, log, ledger, feedback, analyticsSvc, limiter, providerClient)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// buildLimiter assembles the issuance rate limiter from config: a local
// in-process store by default, or Redis when multiple gateway instances
// need to share one budget.
func buildLimiter(ctx context.Context, cfg config.RateLimitConfig) (*ratelimit.Limiter, error) {
	window := time.Duration(cfg.WindowMs) * time.Millisecond
	if window <= 0 {
		window = ratelimit.DefaultWindow
	}
	max := cfg.MaxRequests
	if max <= 0 {
		max = ratelimit.DefaultMaxRequests
	}

	switch cfg.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis rate limit store")
		return ratelimit.New(ratelimit.NewRedisStore(client), window, max), nil

	default:
		mem := ratelimit.NewMemoryStore()
		mem.StartJanitor(ctx, janitorInterval)
		return ratelimit.New(mem, window, max), nil
	}
}
