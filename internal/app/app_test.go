// Package app_test contains unit tests for the app package.
package app_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/app"
	"github.com/JakeFAU/realtime-search/internal/config"
	memorypublisher "github.com/JakeFAU/realtime-search/internal/publisher/memory"
	"github.com/JakeFAU/realtime-search/internal/storage/local"
	"github.com/JakeFAU/realtime-search/internal/storage/memory"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Backend = config.BackendMemory
	return cfg
}

func TestNewMemoryServices(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	cfg.Events.Backend = config.EventsMemory

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memory.BlobStore{}, a.Store())
	assert.IsType(t, &memorypublisher.Publisher{}, a.Publisher())
	assert.Nil(t, a.FetchLog())
	assert.Nil(t, a.RunLog())
	assert.NotNil(t, a.Logger())
	assert.Equal(t, cfg.Index.Prefix, a.Config().Index.Prefix)
}

func TestNewLocalStore(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.BaseDir = t.TempDir()

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.IsType(t, &local.BlobStore{}, a.Store())
	assert.Nil(t, a.Publisher())

	_, err = a.Store().PutObject(context.Background(), "probe.txt", "text/plain", bytes.NewReader([]byte("ok")))
	require.NoError(t, err)
}

func TestNewConfigErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "unknown storage backend",
			mutate: func(c *config.Config) { c.Storage.Backend = "s3" },
			want:   "unknown storage backend: s3",
		},
		{
			name:   "local store without directory",
			mutate: func(c *config.Config) { c.Storage.Backend = config.BackendLocal; c.Storage.BaseDir = "" },
			want:   "base directory is required",
		},
		{
			name:   "pubsub without project",
			mutate: func(c *config.Config) { c.Events.Backend = config.EventsPubSub },
			want:   "pubsub project and topic are required",
		},
		{
			name:   "unknown events backend",
			mutate: func(c *config.Config) { c.Events.Backend = "kafka" },
			want:   "unknown events backend: kafka",
		},
		{
			name:   "malformed fetch log dsn",
			mutate: func(c *config.Config) { c.FetchLog.DSN = "postgres://%zz" },
			want:   "initialize fetch log",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig(t)
			tt.mutate(&cfg)
			a, err := app.New(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.Nil(t, a)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
