package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazylotto/tradescan/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Scanner.Contracts = []string{"0.0.123"}
	cfg.ContentStore.URL = "https://content.example.com"
	cfg.ContentStore.Token = "sekrit"
	return &cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWireWithoutOptionalBackends(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Mirror)
	assert.NotNil(t, deps.Decoder)
	assert.NotNil(t, deps.Resolver)
	assert.NotNil(t, deps.Checkpoints)
	assert.NotNil(t, deps.Cache)
	assert.Nil(t, deps.Locks)
	assert.Nil(t, deps.Runs)
	assert.Nil(t, deps.Blobs)
}

func TestRecentRunsRequiresRunStore(t *testing.T) {
	a := New(testConfig(), testLogger())

	_, err := a.RecentRuns(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
