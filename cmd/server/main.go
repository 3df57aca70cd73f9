// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/playtogether/internal/auth"
	"github.com/jason-s-yu/playtogether/internal/cache"
	"github.com/jason-s-yu/playtogether/internal/catalog"
	"github.com/jason-s-yu/playtogether/internal/config"
	"github.com/jason-s-yu/playtogether/internal/database"
	"github.com/jason-s-yu/playtogether/internal/handlers"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/jason-s-yu/playtogether/internal/realtime"
	"github.com/jason-s-yu/playtogether/internal/session"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code. Every cleanup is deferred inside it so it runs
// before the process exits.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		logrus.Errorf("config: %v", err)
		return 1
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Errorf("server exited: %v", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	games := catalog.Default()

	repo, closeRepo, err := openRepository(ctx, cfg, games, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		logger.Infof("connected to redis at %s", cfg.RedisAddr)
	}

	hub := realtime.NewHub(logger, realtime.DefaultBuffer)
	notifier, err := startSync(ctx, cfg, hub, rdb, games, logger)
	if err != nil {
		return err
	}

	var history session.HistorySink
	if cfg.HistoryEnabled {
		q := cache.NewMoveQueue(rdb, cfg.HistorianQueueName)
		history = q
		logger.Infof("recording move history to redis list %s", q.Name())
	}

	ttl, err := auth.ParseTTL(cfg.TokenExpireTime)
	if err != nil {
		return err
	}
	issuer, err := newIssuer(cfg, ttl)
	if err != nil {
		return err
	}

	store := session.NewStore(session.Options{
		Catalog:    games,
		Repo:       repo,
		Notifier:   notifier,
		History:    history,
		Logger:     logger,
		WaitingTTL: cfg.WaitingSessionTTL,
	})
	store.OnCompleted = func(s *models.GameSession) {
		logger.WithFields(logrus.Fields{
			"session": s.ID,
			"game":    s.GameID,
			"winner":  s.Winner,
		}).Info("game finished")
	}
	go store.RunSweeper(ctx, cfg.SweepInterval)

	srv := &handlers.Server{
		Store:           store,
		Hub:             hub,
		Issuer:          issuer,
		Personalization: cfg.Personalization,
		OriginPatterns:  cfg.OriginPatterns(),
		Logger:          logger,
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s (store=%s, sync=%s)", httpServer.Addr, cfg.StoreBackend, cfg.SyncBackend)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openRepository picks the session repository for STORE_BACKEND. The returned func releases it.
func openRepository(ctx context.Context, cfg config.Config, games *catalog.Catalog, logger *logrus.Logger) (session.Repository, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.PostgresURL())
		if err != nil {
			return nil, nil, err
		}
		repo := database.NewPostgresRepository(pool, games)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using postgres session store")
		return repo, pool.Close, nil

	case config.StoreSQLite:
		repo, err := database.OpenSQLite(ctx, cfg.SQLitePath, games)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using sqlite session store at %s", cfg.SQLitePath)
		return repo, closer(repo, logger), nil

	default:
		logger.Info("using in-memory session store")
		return session.NewMemoryRepository(), func() {}, nil
	}
}

// startSync returns the notifier the store publishes through. With a shared backend the
// bridge relays every event back into hub, including this instance's own.
func startSync(ctx context.Context, cfg config.Config, hub *realtime.Hub, rdb *redis.Client, games *catalog.Catalog, logger *logrus.Logger) (session.Notifier, error) {
	switch cfg.SyncBackend {
	case config.SyncRedis:
		bridge := realtime.NewRedisBridge(rdb, hub, games, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("redis bridge stopped")
			}
		}()
		return bridge, nil

	case config.SyncNATS:
		nc, err := realtime.ConnectNATS(cfg.NATSURL, "playtogether-server")
		if err != nil {
			return nil, err
		}
		bridge := realtime.NewNATSBridge(nc, hub, games, logger)
		go func() {
			defer nc.Close()
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("nats bridge stopped")
			}
		}()
		return bridge, nil

	default:
		return hub, nil
	}
}

func newIssuer(cfg config.Config, ttl time.Duration) (*auth.Issuer, error) {
	if cfg.JWTPrivateKeyPath != "" {
		return auth.NewIssuerFromFiles(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, ttl)
	}
	issuer, err := auth.NewIssuer(ttl)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	return issuer, nil
}

func closer(c io.Closer, logger *logrus.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.WithError(err).Warn("close failed")
		}
	}
}
