package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novats/internal/record"
	"github.com/tuannm99/novats/internal/storage"
)

const sampleConfig = `
app_name: metrics-db
storage:
  workdir: /var/lib/novats
  durability: fast
  strict_order: true
server:
  addr: 0.0.0.0:9000
  debug: true
tables:
  cpu:
    locked: true
    fields:
      - name: host
        type: string
      - name: load
        type: float
        default: 0
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "novats.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	require.Equal(t, "metrics-db", cfg.AppName)
	require.Equal(t, "/var/lib/novats", cfg.Storage.Workdir)
	require.Equal(t, "fast", cfg.Storage.Durability)
	require.True(t, cfg.Storage.StrictOrder)
	require.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	require.True(t, cfg.Server.Debug)
	require.Empty(t, cfg.Server.MetricsAddr)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	require.Equal(t, storage.DurabilityFast, opts.Durability)
	require.True(t, opts.StrictOrder)

	s, ok := opts.Schemas["cpu"]
	require.True(t, ok)
	require.True(t, s.Locked)
	require.Equal(t, []string{"time", "host", "load"}, s.Names())
	f, _ := s.Field("load")
	require.Equal(t, record.TypeFloat, f.Type)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "novats", cfg.AppName)
	require.Equal(t, "./data", cfg.Storage.Workdir)
	require.Equal(t, "safe", cfg.Storage.Durability)
	require.Equal(t, "127.0.0.1:8866", cfg.Server.Addr)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	require.Equal(t, storage.DurabilitySafe, opts.Durability)
	require.Empty(t, opts.Schemas)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("NOVATS_SERVER_ADDR", "127.0.0.1:7777")
	t.Setenv("NOVATS_STORAGE_DURABILITY", "fast")

	cfg, err := LoadConfig(writeConfig(t, "app_name: x\n"))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7777", cfg.Server.Addr)
	require.Equal(t, "fast", cfg.Storage.Durability)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "storage:\n  durability: sometimes\n"))
	require.Error(t, err)

	cfg, err := LoadConfig(writeConfig(t, "tables:\n  t:\n    fields:\n      - name: x\n        type: blob\n"))
	require.NoError(t, err)
	_, err = cfg.Schemas()
	require.ErrorIs(t, err, record.ErrUnknownType)
}
