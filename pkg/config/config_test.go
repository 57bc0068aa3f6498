package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STREAK_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("QUIZ_PASS_THRESHOLD", "80")
	t.Setenv("OUTLINE_CACHE_TTL", "2m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "America/Sao_Paulo", cfg.Streaks.Timezone)
	assert.Equal(t, 80.0, cfg.Quiz.PassThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Cache.OutlineTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
}

func TestLoadFallsBackOnInvalidThreshold(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("QUIZ_PASS_THRESHOLD", "250")
	t.Setenv("CERTIFICATE_RETRY_DELAY", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 70.0, cfg.Quiz.PassThreshold)
	assert.Equal(t, 30*time.Second, cfg.Certificates.RetryDelay)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
