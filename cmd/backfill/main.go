// Command backfill converts legacy per-installment and per-workflow filter
// columns into owned filter groups. It is safe to run repeatedly: owners that
// already have groups are skipped. A distributed lock keeps two runs from
// converting the same owners concurrently.
package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/audience-segments/internal/cache"
	"github.com/ignite/audience-segments/internal/pkg/distlock"
	"github.com/ignite/audience-segments/internal/pkg/logger"
	"github.com/ignite/audience-segments/internal/repository/postgres"
	"github.com/ignite/audience-segments/internal/service/segment"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		logger.SetLevel(logger.ParseLevel(lvl))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("ping failed", "error", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if url := os.Getenv("REDIS_URL"); url != "" {
		rdb, err = cache.Connect(ctx, url)
		if err != nil {
			logger.Warn("redis unavailable, using advisory lock", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	lock := distlock.New(rdb, db, "segments:backfill", time.Hour)
	if err := lock.Acquire(ctx); err != nil {
		if errors.Is(err, distlock.ErrHeld) {
			logger.Info("another backfill is running")
			return
		}
		logger.Error("lock failed", "error", err)
		os.Exit(1)
	}

	report, err := segment.NewBackfill(postgres.NewLegacyRepo(db)).Run(ctx)
	lock.Release(context.Background())
	if err != nil {
		logger.Error("backfill aborted", "error", err)
		os.Exit(1)
	}
	if report.Failed > 0 {
		os.Exit(2)
	}
}
