package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaywantadh/gridstore/internal/chunksize"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Same(t, Config, cfg)

	require.Equal(t, "./data", cfg.StoragePath)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.True(t, cfg.CompressionEnabled)
	require.Empty(t, cfg.CompressibleMediaTypes)
	require.False(t, cfg.Debug)

	preset, err := cfg.ChunkPreset()
	require.NoError(t, err)
	require.Equal(t, chunksize.Default, preset)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `storage_path: /var/lib/gridstore
chunk_size: large_1M
compressible_media_types:
  - text/*
  - application/json
listen_addr: 127.0.0.1:9000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("GRIDSTORE_LISTEN_ADDR", ":7000")
	t.Setenv("GRIDSTORE_DEBUG", "true")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/gridstore", cfg.StoragePath)
	require.Equal(t, []string{"text/*", "application/json"}, cfg.CompressibleMediaTypes)
	require.Equal(t, ":7000", cfg.ListenAddr)
	require.True(t, cfg.Debug)

	preset, err := cfg.ChunkPreset()
	require.NoError(t, err)
	require.Equal(t, chunksize.Large1M, preset)
	require.Equal(t, 1024*1024-100, preset.Bytes())
}

func TestLoadConfigUnknownPreset(t *testing.T) {
	t.Setenv("GRIDSTORE_CHUNK_SIZE", "enormous")
	_, err := LoadConfig(t.TempDir())
	require.True(t, errors.Is(err, chunksize.ErrUnknownPreset))
}
