package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/audience-segments/internal/ai"
	"github.com/ignite/audience-segments/internal/api"
	"github.com/ignite/audience-segments/internal/cache"
	"github.com/ignite/audience-segments/internal/config"
	"github.com/ignite/audience-segments/internal/export"
	"github.com/ignite/audience-segments/internal/pkg/logger"
	"github.com/ignite/audience-segments/internal/pkg/retry"
	"github.com/ignite/audience-segments/internal/repository/memory"
	"github.com/ignite/audience-segments/internal/repository/postgres"
	"github.com/ignite/audience-segments/internal/segmentation"
	"github.com/ignite/audience-segments/internal/service/segment"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		db       *sql.DB
		repo     segment.Repository
		audience segmentation.AudienceStore
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err = openPostgres(ctx, cfg.Database)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		repo = postgres.NewSegmentRepo(db)
		audience = postgres.NewAudienceStore(db)
	case config.DriverMemory:
		logger.Warn("using in-memory storage; segments are lost on restart")
		repo = memory.NewSegmentRepo()
		audience = memory.NewAudienceStore()
	default:
		logger.Error("unknown database driver", "driver", cfg.Database.Driver)
		os.Exit(1)
	}

	opts := []segment.Option{}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable; counts are uncached and AI generation is not rate limited", "error", err)
		} else {
			defer redisClient.Close()
			opts = append(opts,
				segment.WithCountCache(cache.NewCountCache(redisClient, cfg.Redis.CountTTL())),
				segment.WithRateLimiter(cache.NewRateLimiter(redisClient, cfg.Redis.AIRatePerMinute)),
			)
		}
	}

	if completer, err := newCompleter(ctx, cfg.AI); err != nil {
		logger.Warn("AI generation disabled", "error", err)
	} else if completer != nil {
		gen := ai.NewGenerator(completer, ai.WithRetryPolicy(retry.Fixed(cfg.AI.MaxAttempts, cfg.AI.RetryDelay())))
		opts = append(opts, segment.WithGenerator(gen))
		logger.Info("AI generation enabled", "provider", cfg.AI.Provider)
	}

	if cfg.Export.Bucket != "" {
		exporter, err := export.NewS3Exporter(ctx, export.Config{
			Bucket:   cfg.Export.Bucket,
			Prefix:   cfg.Export.Prefix,
			Region:   cfg.Export.Region,
			Compress: cfg.Export.Compress,
		})
		if err != nil {
			logger.Warn("segment export disabled", "error", err)
		} else {
			opts = append(opts, segment.WithExporter(exporter))
		}
	}

	svc := segment.NewService(repo, segmentation.NewEngine(audience), opts...)
	server := api.NewServer(cfg.Server, api.NewSegmentHandlers(svc), api.NewHealthChecker(db, redisClient))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", server.Addr(), "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required for the postgres driver")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to postgres")
	return db, nil
}

// newCompleter returns nil without error when the provider is not
// configured.
func newCompleter(ctx context.Context, cfg config.AIConfig) (ai.Completer, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, cfg.Timeout()), nil
	case config.ProviderBedrock:
		c, err := ai.NewBedrockClient(ctx, cfg.Region, cfg.BedrockModelID, cfg.Timeout())
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.New("unknown AI provider " + cfg.Provider)
	}
}
