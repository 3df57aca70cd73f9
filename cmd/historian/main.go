// cmd/historian/main.go drains the move history queue from Redis into the session database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/playtogether/internal/cache"
	"github.com/jason-s-yu/playtogether/internal/catalog"
	"github.com/jason-s-yu/playtogether/internal/config"
	"github.com/jason-s-yu/playtogether/internal/database"
	"github.com/jason-s-yu/playtogether/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred closes run before exit.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		logrus.Errorf("config: %v", err)
		return 1
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := drain(ctx, cfg, logger); err != nil {
		logger.Errorf("historian exited: %v", err)
		return 1
	}
	return 0
}

func drain(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	sink, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	queue := cache.NewMoveQueue(rdb, cfg.HistorianQueueName)
	svc := historian.New(queue, sink, historian.Options{
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: time.Duration(cfg.HistorianFlushMs) * time.Millisecond,
		Logger:     logger,
	})
	logger.Infof("draining %s into %s store", queue.Name(), cfg.StoreBackend)
	return svc.Run(ctx)
}

// openSink opens the durable move table for STORE_BACKEND. The returned func closes it.
func openSink(ctx context.Context, cfg config.Config) (historian.Sink, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.PostgresURL())
		if err != nil {
			return nil, nil, err
		}
		repo := database.NewPostgresRepository(pool, catalog.Default())
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return repo, pool.Close, nil
	case config.StoreSQLite:
		repo, err := database.OpenSQLite(ctx, cfg.SQLitePath, catalog.Default())
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("historian needs STORE_BACKEND=%s or %s, got %q", config.StorePostgres, config.StoreSQLite, cfg.StoreBackend)
	}
}
