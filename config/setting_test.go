package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()
	require.NoError(t, cfg.verify())
	assert.Equal(t, 10, cfg.Transport.WindowSize)
	assert.Equal(t, 32, cfg.Transport.SeqModulo)
	assert.Equal(t, 500, cfg.Transport.MaxData)
	assert.Equal(t, 100, cfg.Transport.TimeoutMs)
}

func TestVerifyRejectsWindowAtSequenceSpace(t *testing.T) {
	cfg := defaults()
	cfg.Transport.WindowSize = 32
	assert.Error(t, cfg.verify())

	cfg = defaults()
	cfg.Transport.WindowSize = 31
	assert.NoError(t, cfg.verify())
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netlab.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"log": {"level": "debug"},
		"transport": {"window_size": 4, "timeout_ms": 50}
	}`), 0o644))

	old := GlobalCfg
	defer func() { GlobalCfg = old }()

	require.NoError(t, Reload(path))
	assert.Equal(t, "debug", GlobalCfg.Log.Level)
	assert.Equal(t, 4, GlobalCfg.Transport.WindowSize)
	assert.Equal(t, 50, GlobalCfg.Transport.TimeoutMs)
	// Unset values fall back to the defaults.
	assert.Equal(t, 32, GlobalCfg.Transport.SeqModulo)

	assert.Error(t, Reload(filepath.Join(dir, "missing.json")))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"transport": {"window_size": 40}}`), 0o644))
	assert.Error(t, Reload(bad))
}
