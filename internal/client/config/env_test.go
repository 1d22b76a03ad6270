package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_Variables(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	t.Setenv("SUBMAN_API_BASE_URL", "http://env.example/api")
	t.Setenv("SUBMAN_ONLINE_CHECK_INTERVAL", "15s")
	t.Setenv("SUBMAN_REMINDER_WINDOW", "72h")

	cfg := defaults()
	parseEnv(cfg)

	assert.Equal(t, "http://env.example/api", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, 72*time.Hour, cfg.ReminderWindow)
	assert.Equal(t, "subman.db", cfg.DatabasePath, "unset variables keep the value")
}

func TestParseEnv_DotenvFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "subman.env")
	require.NoError(t, os.WriteFile(path, []byte("SUBMAN_METRICS_ADDR=:9200\nSUBMAN_LOG_FORMAT=json\n"), 0o600))
	t.Setenv("SUBMAN_LOG_FORMAT", "text")
	t.Cleanup(func() { _ = os.Unsetenv("SUBMAN_METRICS_ADDR") })
	os.Args = []string{"testbin", "-env-file", path}

	cfg := defaults()
	parseEnv(cfg)

	assert.Equal(t, ":9200", cfg.MetricsAddr)
	assert.Equal(t, "text", cfg.LogFormat, "the process environment wins over the file")
}

func TestParseEnv_BadValuePanics(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}
	t.Setenv("SUBMAN_REQUEST_TIMEOUT", "later")

	require.Panics(t, func() { parseEnv(defaults()) })
}
