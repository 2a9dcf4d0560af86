package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"DB_PORT", "SERVER_PORT", "ACCESS_TOKEN_MAX_AGE", "COMMENT_CACHE_TTL", "RATE_LIMIT_PER_MINUTE", "S3_BUCKET"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 3600, cfg.AccessTokenMaxAge)
	assert.Equal(t, 60*time.Second, cfg.CommentCacheTTL)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.False(t, cfg.MediaEnabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ACCESS_TOKEN_MAX_AGE", "120")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-4")
	t.Setenv("S3_BUCKET", "forum")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3_PUBLIC_URL", "https://cdn.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 120, cfg.AccessTokenMaxAge)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.True(t, cfg.MediaEnabled())
}
