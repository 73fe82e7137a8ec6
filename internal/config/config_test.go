package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the working and home directories at empty temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NotNil(t, cfg)
	assert.Equal(t, "text", cfg.Format)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "/tmp/calltap-%d.sock", cfg.SocketTemplate)
	assert.Equal(t, 2, cfg.Prefix)
	assert.False(t, cfg.ShowTime)
	assert.True(t, cfg.ShowDuration)
	assert.Equal(t, 250, cfg.Defaults.Slow)
	assert.Empty(t, cfg.Defaults.Tracers)
}

func TestLoad(t *testing.T) {
	t.Run("returns defaults when no config file exists", func(t *testing.T) {
		isolate(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("loads project config from current directory", func(t *testing.T) {
		dir := isolate(t)
		content := `
format: json
timeout: 10s
prefix: 4
defaults:
  slow: 100
  tracers:
    - io
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".calltap.yaml"), []byte(content), 0644))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.Format)
		assert.Equal(t, 10*time.Second, cfg.Timeout)
		assert.Equal(t, 4, cfg.Prefix)
		assert.Equal(t, 100, cfg.Defaults.Slow)
		assert.Equal(t, []string{"io"}, cfg.Defaults.Tracers)
		assert.True(t, cfg.ShowDuration, "unset keys keep defaults")
	})

	t.Run("environment overrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("CALLTAP_FORMAT", "json")
		t.Setenv("CALLTAP_TIMEOUT", "2s")
		t.Setenv("CALLTAP_SLOW", "50")
		t.Setenv("CALLTAP_SHOW_TIME", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.Format)
		assert.Equal(t, 2*time.Second, cfg.Timeout)
		assert.Equal(t, 50, cfg.Defaults.Slow)
		assert.True(t, cfg.ShowTime)
	})

	t.Run("invalid config file is an error", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".calltap.yaml"), []byte("format: [\n"), 0644))

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadFromFile(t *testing.T) {
	t.Run("returns error for non-existent file", func(t *testing.T) {
		cfg, err := LoadFromFile("/nonexistent/path/config.yaml")
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644))

		cfg, err := LoadFromFile(configPath)
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("parses all config fields", func(t *testing.T) {
		content := `
format: json
verbose: true
timeout: 7s
socket_template: /run/calltap/%d.sock
metrics_addr: 127.0.0.1:9464
prefix: 1
show_time: true
show_duration: false
defaults:
  slow: 500
  output: trace.log
  append: true
  tracers:
    - io
    - ./my.tracer
`
		configPath := filepath.Join(t.TempDir(), "calltap.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		cfg, err := LoadFromFile(configPath)
		require.NoError(t, err)

		assert.Equal(t, &Config{
			Format:         "json",
			Verbose:        true,
			Timeout:        7 * time.Second,
			SocketTemplate: "/run/calltap/%d.sock",
			MetricsAddr:    "127.0.0.1:9464",
			Prefix:         1,
			ShowTime:       true,
			ShowDuration:   false,
			Defaults: DefaultsConfig{
				Slow:    500,
				Output:  "trace.log",
				Append:  true,
				Tracers: []string{"io", "./my.tracer"},
			},
		}, cfg)
	})
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calltap.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Timeout, cfg.Timeout)
	assert.Equal(t, Default().Defaults.Slow, cfg.Defaults.Slow)

	assert.Error(t, WriteDefault(path), "existing files are kept")
}

func TestFindConfigFile(t *testing.T) {
	t.Run("finds .calltap.yaml in current directory", func(t *testing.T) {
		dir := isolate(t)
		configPath := filepath.Join(dir, ".calltap.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("format: text"), 0644))

		// Resolve symlinks for comparison (macOS /var -> /private/var)
		expected, _ := filepath.EvalSymlinks(configPath)
		found, _ := filepath.EvalSymlinks(findConfigFile())
		assert.Equal(t, expected, found)
	})

	t.Run("prefers .calltap.yaml over .calltap.yml", func(t *testing.T) {
		dir := isolate(t)
		yamlPath := filepath.Join(dir, ".calltap.yaml")
		require.NoError(t, os.WriteFile(yamlPath, []byte("format: yaml"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".calltap.yml"), []byte("format: yml"), 0644))

		expected, _ := filepath.EvalSymlinks(yamlPath)
		found, _ := filepath.EvalSymlinks(findConfigFile())
		assert.Equal(t, expected, found)
	})

	t.Run("falls back to home directory", func(t *testing.T) {
		isolate(t)
		home := os.Getenv("HOME")
		configPath := filepath.Join(home, ".calltap.yml")
		require.NoError(t, os.WriteFile(configPath, []byte("format: text"), 0644))

		assert.Equal(t, configPath, findConfigFile())
		assert.Equal(t, configPath, ConfigFile())
	})

	t.Run("returns empty string when no config found", func(t *testing.T) {
		isolate(t)
		assert.Empty(t, findConfigFile())
	})
}
