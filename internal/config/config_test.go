package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/modbridge/internal/core/observability/log"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "yaml", cfg.Bridge.UserDataCodec)
	assert.False(t, cfg.Console.Enabled)
}

func TestParseOverridesDefaults(t *testing.T) {
	src := `
log:
  level: debug
  encoding: json
bridge:
  max_traversal_nodes: 64
  userdata_codec: json
console:
  enabled: true
  addr: ":9000"
  write_timeout: 2s
`
	cfg, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 64, cfg.Bridge.MaxTraversalNodes)
	assert.Equal(t, Default().Bridge.MaxOverlayDepth, cfg.Bridge.MaxOverlayDepth)
	assert.Equal(t, "json", cfg.Bridge.UserDataCodec)
	assert.Equal(t, ":9000", cfg.Console.Addr)
	assert.Equal(t, "/console", cfg.Console.Path)
	assert.Equal(t, 2*time.Second, cfg.Console.WriteTimeout)

	opts := cfg.LogOptions()
	assert.Equal(t, log.LevelDebug, opts.Level)
	assert.Equal(t, "json", opts.Encoding)
}

func TestParseEmptyInput(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("bridge:\n  max_nodes: 3\n"))
	assert.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Bridge.MaxTraversalNodes = 0
	cfg.Bridge.UserDataCodec = "xml"
	cfg.Console.Enabled = true
	cfg.Console.Path = "console"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"log.level", "max_traversal_nodes", "userdata_codec", "console.path"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scripts:\n  dir: mods\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mods", cfg.Scripts.Dir)
	assert.Equal(t, "*.go", cfg.Scripts.Pattern)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
