package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"mission-quiz-service/internal/app"
	"mission-quiz-service/internal/config"
	"mission-quiz-service/internal/content"
	"mission-quiz-service/internal/engine"
	"mission-quiz-service/internal/infra/memory"
	pginfra "mission-quiz-service/internal/infra/postgres"
	redisinfra "mission-quiz-service/internal/infra/redis"
	transport "mission-quiz-service/internal/transport/http"
)

// resultStore records passed attempts and answers fragment lookups.
type resultStore interface {
	engine.ResultSink
	transport.FragmentLister
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the mission server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	normalizer := content.NewNormalizer(cfg.Preset)
	samples, err := sampleMissions(normalizer)
	if err != nil {
		return err
	}
	static := memory.NewStaticContentLoader(samples)

	primary := memory.ChainLoader{}
	if pool != nil {
		primary = append(primary, pginfra.NewContentLoader(pool, normalizer))
	}
	if cfg.Content.Dir != "" {
		primary = append(primary, memory.NewDirContentLoader(cfg.Content.Dir, normalizer))
	}
	primary = append(primary, static)

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var contents app.ContentRepository
	if redisClient != nil {
		contents = redisinfra.NewContentRepository(redisClient, primary, contentTTL)
	} else {
		contents = memory.NewContentRepository(primary, contentTTL)
	}

	fallback := memory.ChainLoader{}
	if cfg.Content.FallbackDir != "" {
		fallback = append(fallback, memory.NewDirContentLoader(cfg.Content.FallbackDir, normalizer))
	}
	fallback = append(fallback, static)

	var attempts app.AttemptRepository
	if redisClient != nil {
		attempts = redisinfra.NewAttemptStore(redisClient, redisTTL)
	} else {
		attempts = memory.NewAttemptStore()
	}

	sink := newResultStore(pool, redisClient)
	service := app.NewMissionService(attempts, contents, sink,
		app.WithFallbackContent(memory.NewContentRepository(fallback, contentTTL)),
		app.WithLogger(logger),
	)

	router := transport.NewRouter(transport.NewWSHandler(service, logger), cfg.AllPresets, sink, logger)
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Str("port", finalPort).Int("missions", len(samples)).Msg("starting mission service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down server...")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newResultStore prefers Postgres, then Redis, then memory.
func newResultStore(pool *pgxpool.Pool, client *redis.Client) resultStore {
	switch {
	case pool != nil:
		return pginfra.NewResultSink(pool)
	case client != nil:
		return redisinfra.NewResultSink(client)
	default:
		return memory.NewResultSink()
	}
}
