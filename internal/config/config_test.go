package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	viperReset(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ProfileLite, cfg.Profile)
	assert.Equal(t, StorageBackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.IsDevelopment())
}

func TestValidateRejectsProfileBackendMismatch(t *testing.T) {
	cfg := &Config{
		Profile: ProfileLite,
		Storage: StorageConfig{Backend: StorageBackendPostgres},
		Server:  ServerConfig{Port: 8080, Host: "127.0.0.1"},
		Log:     LogConfig{Level: "info"},
		App:     AppConfig{Name: "agent-memory", Environment: "development"},
	}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateRequiresCursorSecretOutsideDevelopment(t *testing.T) {
	cfg := &Config{
		Profile: ProfileLite,
		Storage: StorageConfig{Backend: StorageBackendSQLite},
		Server:  ServerConfig{Port: 8080, Host: "127.0.0.1"},
		Log:     LogConfig{Level: "info"},
		App:     AppConfig{Name: "agent-memory", Environment: "production"},
		Cursor:  CursorConfig{HMACSecret: "   "},
	}
	err := cfg.Validate()
	assert.Error(t, err)

	cfg.Cursor.HMACSecret = "a-real-secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvalidPort(t *testing.T) {
	cfg := &Config{
		Profile: ProfileLite,
		Storage: StorageConfig{Backend: StorageBackendSQLite},
		Server:  ServerConfig{Port: 0, Host: "127.0.0.1"},
		Log:     LogConfig{Level: "info"},
		App:     AppConfig{Name: "agent-memory", Environment: "development"},
	}
	assert.Error(t, cfg.Validate())
}

func TestDefaultDataDirFallsBackToHome(t *testing.T) {
	cfg := &Config{}
	dir, err := cfg.DefaultDataDir(func() (string, error) { return "/home/agent", nil })
	require.NoError(t, err)
	assert.Equal(t, "/home/agent/.agent-memory", dir)
}
