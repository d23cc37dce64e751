package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Password: "supersecret", URL: "postgres://u:p@host/db"},
		Redis:    RedisConfig{Password: "redispw"},
		Embedding: EmbeddingConfig{APIKey: "sk-abc123"},
		Cursor:   CursorConfig{HMACSecret: "cursor-secret"},
		App:      AppConfig{Name: "agent-memory"},
	}

	sanitized := NewDefaultConfigSanitizer().Sanitize(cfg)

	assert.Equal(t, "***REDACTED***", sanitized.Database.Password)
	assert.Equal(t, "***REDACTED***", sanitized.Redis.Password)
	assert.Equal(t, "***REDACTED***", sanitized.Embedding.APIKey)
	assert.Equal(t, "***REDACTED***", sanitized.Cursor.HMACSecret)
	assert.Equal(t, "***REDACTED***", sanitized.Database.URL)

	// Original must be untouched.
	assert.Equal(t, "supersecret", cfg.Database.Password)
}

func TestSanitizeCustomRedactionValue(t *testing.T) {
	cfg := &Config{Redis: RedisConfig{Password: "x"}}
	s := NewConfigSanitizer("<hidden>")
	assert.Equal(t, "<hidden>", s.Sanitize(cfg).Redis.Password)
}
