package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.yaml")

	cfg := Default()
	cfg.Store.Path = "/data/books.db"
	cfg.Log.Level = "debug"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/books.db", loaded.Store.Path)
	assert.Equal(t, ":8470", loaded.Server.Listen)
	assert.Equal(t, "debug", loaded.Log.Level)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "tally.db", cfg.Store.Path)
	assert.Equal(t, ":8470", cfg.Server.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
}
