package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsWithNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "chance_then_break", cfg.Reactor.ToolLoopMode)
}

func TestLoad_ExplicitFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
backends:
  openai:
    type: openai
    api_key: sk-test
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	require.Contains(t, cfg.Backends, "openai")
	assert.Equal(t, "sk-test", cfg.Backends["openai"].APIKey)
}

func TestValidate_FlagsMissingBackendFields(t *testing.T) {
	cfg := &Config{
		Backends: map[string]BackendConfig{
			"openai": {Type: "openai"},
			"vertex": {Type: "gemini-vertex"},
			"qwen":   {Type: "qwen-oauth"},
			"weird":  {Type: "not-a-real-type"},
		},
		Reactor: ReactorConfig{ToolLoopMode: "break"},
	}
	errs := Validate(cfg)
	assert.Len(t, errs, 4)
}

func TestValidate_PassesWellFormedConfig(t *testing.T) {
	cfg := &Config{
		Backends: map[string]BackendConfig{
			"openai": {Type: "openai", APIKey: "sk-test"},
		},
		Reactor: ReactorConfig{ToolLoopMode: "chance_then_break"},
	}
	assert.Empty(t, Validate(cfg))
}

func TestValidate_FlagsNoBackendsAndBadLoopMode(t *testing.T) {
	cfg := &Config{Reactor: ReactorConfig{ToolLoopMode: "invalid"}}
	errs := Validate(cfg)
	assert.Len(t, errs, 2)
}
