package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/repoingest/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.IndexDir = filepath.Join(t.TempDir(), "index")
	cfg.EmbeddingProvider = config.ProviderLocal
	cfg.EmbeddingModel = config.DefaultLocalModel
	cfg.EmbeddingDimensions = 8
	return cfg
}

func TestOpen_CreatesIndexDirectory(t *testing.T) {
	cfg := testConfig(t)

	a, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	_, err = os.Stat(cfg.DatabasePath())
	assert.NoError(t, err)
	assert.Equal(t, config.ProviderLocal, a.Embedder.Provider())
	assert.Equal(t, 8, a.Embedder.Dimension())
	assert.NotNil(t, a.Counter)
}

func TestOpen_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.EmbeddingProvider = "nope"

	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewIndexer_RunsAgainstStorage(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "main.go"),
		[]byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "notes.txt"),
		[]byte("plain text\n"), 0o644))

	idx, sink, err := a.NewIndexer(RunOptions{Extensions: []string{"go"}, Collection: "custom"})
	require.NoError(t, err)

	summary, err := idx.Run(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 1, summary.BatchesDispatched)
	assert.Equal(t, "custom", sink.Collection().Name)

	status, err := a.Storage.GetStatus(ctx, sink.Collection().ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.ChunksCount)
	assert.Equal(t, 1, status.EmbeddingsCount)
}
