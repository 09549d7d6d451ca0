package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
postgres:
  host: localhost
  user: songvote
  dbname: songvote
redis:
  host: localhost
rabbitmq:
  host: localhost
  user: guest
jwt:
  secret_key: test-secret
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Voting.MaxVotesPerUser)
	assert.Equal(t, 5, cfg.Voting.MaxVotesPerSong)
	assert.Equal(t, 3, cfg.Voting.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Voting.RetryDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Voting.RealtimeDebounce)
	assert.Equal(t, 10*time.Second, cfg.Voting.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Tally.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Tally.CacheTTL)
	assert.Equal(t, "songs", cfg.Media.Bucket)
	assert.Equal(t, time.Hour, cfg.Media.URLExpiry)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SONGVOTE_VOTING_MAX_VOTES_PER_USER", "12")
	t.Setenv("SONGVOTE_JWT_SECRET_KEY", "from-env")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Voting.MaxVotesPerUser)
	assert.Equal(t, "from-env", cfg.JWT.SecretKey)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		message string
	}{
		{"per song above per user", "voting:\n  max_votes_per_song: 11\n", "voting.max_votes_per_song"},
		{"zero attempts", "voting:\n  retry_attempts: 0\n", "voting.retry_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, minimalConfig+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SONGVOTE_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("SONGVOTE_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("SONGVOTE_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
