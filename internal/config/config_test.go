package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.False(t, cfg.App.Development())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./zine-landing.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Telemetry.Record)
	assert.Empty(t, cfg.Telemetry.TrackURL)
	assert.Equal(t, 5*time.Second, cfg.Engagement.CheckInterval)
	assert.Equal(t, 30*time.Minute, cfg.Engagement.IdleTimeout)
	assert.InDelta(t, 6.0, cfg.Waitlist.RatePerMinute, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
app:
  env: development
server:
  port: 3000
  secure_cookies: true
log:
  level: debug
  format: console
telemetry:
  track_url: https://collector.example/track
engagement:
  check_interval: 2s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.App.Development())
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.Server.SecureCookies)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "https://collector.example/track", cfg.Telemetry.TrackURL)
	assert.Equal(t, 2*time.Second, cfg.Engagement.CheckInterval)
	// Unset keys keep their defaults.
	assert.Equal(t, "./zine-landing.db", cfg.Store.Path)
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ZINE_SERVER_PORT", "9999")
	t.Setenv("ZINE_STORE_PATH", "/tmp/other.db")
	t.Setenv("ZINE_APP_ENV", "development")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.True(t, cfg.App.Development())
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	chdirTemp(t)
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestWriteThenLoad(t *testing.T) {
	dir := chdirTemp(t)

	cfg := Defaults()
	cfg.Server.Port = 4321
	cfg.Telemetry.TagURL = "https://tags.example/collect"
	cfg.Engagement.CheckInterval = 3 * time.Second

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, Write(path, &cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4321, loaded.Server.Port)
	assert.Equal(t, "https://tags.example/collect", loaded.Telemetry.TagURL)
	assert.Equal(t, 3*time.Second, loaded.Engagement.CheckInterval)
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}

func TestLoadRejectsNonPositiveIntervals(t *testing.T) {
	dir := chdirTemp(t)

	for _, body := range []string{
		"engagement:\n  reap_interval: 0s\n",
		"engagement:\n  check_interval: -5s\n",
		"waitlist:\n  burst: 0\n",
		"server:\n  port: 70000\n",
	} {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		_, err := Load(path)
		assert.Error(t, err, body)
	}
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}
