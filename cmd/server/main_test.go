package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jason-s-yu/playtogether/internal/catalog"
	"github.com/jason-s-yu/playtogether/internal/config"
	"github.com/jason-s-yu/playtogether/internal/realtime"
	"github.com/jason-s-yu/playtogether/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRunFailsOnBadConfig(t *testing.T) {
	t.Setenv("SYNC_BACKEND", "carrier-pigeon")
	assert.Equal(t, 1, run())
}

func TestOpenRepositorySQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{StoreBackend: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "sessions.db")}
	repo, closeRepo, err := openRepository(ctx, cfg, catalog.Default(), quietLogger())
	require.NoError(t, err)
	defer closeRepo()

	list, err := repo.List(ctx, session.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStartSyncLocalUsesHub(t *testing.T) {
	hub := realtime.NewHub(quietLogger(), 0)
	n, err := startSync(context.Background(), config.Config{SyncBackend: config.SyncLocal}, hub, nil, catalog.Default(), quietLogger())
	require.NoError(t, err)
	assert.Same(t, hub, n)
}
