// Package config is the registry-driven configuration layer: each option
// has an env key, a default, and a validation rule, parsed once at
// startup by viper. Representative options are covered in
// Config.Validate; reloads are explicit via Service.Reload in service.go.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully parsed, validated application configuration.
type Config struct {
	// Profile selects the deployment shape: "lite" (embedded sqlite,
	// in-process cache/lock/event bus, single node) or "standard"
	// (Postgres + Redis, horizontally adapter-swappable).
	Profile DeploymentProfile `mapstructure:"profile"`

	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Lock      LockConfig      `mapstructure:"lock"`
	App       AppConfig       `mapstructure:"app"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cursor    CursorConfig    `mapstructure:"cursor"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Backup    BackupConfig    `mapstructure:"backup"`
}

// DeploymentProfile is the lite/standard deployment switch.
type DeploymentProfile string

const (
	// ProfileLite: embedded sqlite, in-process LRU cache, in-process file
	// locks, in-process event bus. No external dependencies.
	ProfileLite DeploymentProfile = "lite"
	// ProfileStandard: Postgres + Redis cache/lock/event bus.
	ProfileStandard DeploymentProfile = "standard"
)

// StorageBackend names the StorageAdapter implementation.
type StorageBackend string

const (
	StorageBackendSQLite   StorageBackend = "sqlite"
	StorageBackendPostgres StorageBackend = "postgres"
)

// StorageConfig configures the StorageAdapter.
type StorageConfig struct {
	Backend        StorageBackend `mapstructure:"backend"`
	FilesystemPath string         `mapstructure:"filesystem_path"`
}

// ServerConfig configures the REST/JSON-RPC transports.
type ServerConfig struct {
	Port                    int           `mapstructure:"port"`
	Host                    string        `mapstructure:"host"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
	StdinMaxBytes           int64         `mapstructure:"stdin_max_bytes"`
}

// DatabaseConfig configures the pgadapter (standard profile).
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	TxMaxRetries    int           `mapstructure:"tx_max_retries"`
	TxBackoff       time.Duration `mapstructure:"tx_backoff"`
	URL             string        `mapstructure:"url"`
}

// RedisConfig configures the rediscache/redislock/redisbus adapters.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// EmbeddingConfig configures the optional semantic path.
type EmbeddingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Dimension   int           `mapstructure:"dimension"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Workers     int           `mapstructure:"workers"`
	QueueDepth  int           `mapstructure:"queue_depth"`
	VectorStore string        `mapstructure:"vector_store_path"`
}

// LogConfig configures slog + lumberjack rotation.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// CacheConfig configures both the query result cache and generic
// CacheAdapter defaults.
type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	MaxTTL          time.Duration `mapstructure:"max_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxEntries      int           `mapstructure:"max_entries"`
	MaxBytes        int64         `mapstructure:"max_bytes"`
	EnableMetrics   bool          `mapstructure:"enable_metrics"`
}

// LockConfig configures the LockAdapter defaults.
type LockConfig struct {
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

// AppConfig carries general application settings.
type AppConfig struct {
	Name          string        `mapstructure:"name"`
	Version       string        `mapstructure:"version"`
	Environment   string        `mapstructure:"environment"`
	Debug         bool          `mapstructure:"debug"`
	DataDir       string        `mapstructure:"data_dir"`
	MaxWorkers    int           `mapstructure:"max_workers"`
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`

	// MemoryHighWatermarkBytes is the allocated-heap threshold above which
	// the runtime's memory-pressure coordinator reports UnderPressure,
	// letting the embedding queue and query cache shed load. Zero disables
	// the check (coordinator always reports not-under-pressure).
	MemoryHighWatermarkBytes int64         `mapstructure:"memory_high_watermark_bytes"`
	MemorySampleInterval     time.Duration `mapstructure:"memory_sample_interval"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// RateLimitConfig configures the token-bucket rate limiter.
type RateLimitConfig struct {
	Enabled      bool                      `mapstructure:"enabled"`
	DefaultRate  float64                   `mapstructure:"default_rate_per_sec"`
	DefaultBurst int                       `mapstructure:"default_burst"`
	CleanupEvery time.Duration             `mapstructure:"cleanup_every"`
	Classes      map[string]RateLimitClass `mapstructure:"classes"`
}

// RateLimitClass overrides the default rate/burst for one operation class
// (e.g. "query", "write", "embedding").
type RateLimitClass struct {
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	Burst      int     `mapstructure:"burst"`
}

// CursorConfig configures pagination cursor signing.
type CursorConfig struct {
	HMACSecret string `mapstructure:"hmac_secret"`
	MaxBytes   int    `mapstructure:"max_bytes"`
}

// AuditConfig configures the audit log.
type AuditConfig struct {
	MaxSnapshotBytes int           `mapstructure:"max_snapshot_bytes"`
	Retention        time.Duration `mapstructure:"retention"`
}

// BackupConfig configures the `backup` CLI/tool surface's on-disk
// snapshot directory and retention.
type BackupConfig struct {
	Dir        string `mapstructure:"dir"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoadConfig loads configuration from an optional file plus environment
// variables, applying defaults first.
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("AGENT_MEMORY")

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("profile", "lite")
	viper.SetDefault("storage.backend", "sqlite")
	viper.SetDefault("storage.filesystem_path", "")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown_timeout", "30s")
	viper.SetDefault("server.stdin_max_bytes", 10*1024*1024)

	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "agent_memory")
	viper.SetDefault("database.username", "agent_memory")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.min_connections", 2)
	viper.SetDefault("database.max_conn_lifetime", "1h")
	viper.SetDefault("database.max_conn_idle_time", "30m")
	viper.SetDefault("database.connect_timeout", "10s")
	viper.SetDefault("database.query_timeout", "30s")
	viper.SetDefault("database.tx_max_retries", 5)
	viper.SetDefault("database.tx_backoff", "50ms")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.min_retry_backoff", "100ms")
	viper.SetDefault("redis.max_retry_backoff", "500ms")

	viper.SetDefault("embedding.enabled", false)
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.api_key", "")
	viper.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimension", 1536)
	viper.SetDefault("embedding.timeout", "10s")
	viper.SetDefault("embedding.max_retries", 5)
	viper.SetDefault("embedding.workers", 4)
	viper.SetDefault("embedding.queue_depth", 256)
	viper.SetDefault("embedding.vector_store_path", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.filename", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("cache.default_ttl", "5m")
	viper.SetDefault("cache.max_ttl", "1h")
	viper.SetDefault("cache.cleanup_interval", "1m")
	viper.SetDefault("cache.max_entries", 10000)
	viper.SetDefault("cache.max_bytes", 64*1024*1024)
	viper.SetDefault("cache.enable_metrics", true)

	viper.SetDefault("lock.default_ttl", "60s")
	viper.SetDefault("lock.max_retries", 3)
	viper.SetDefault("lock.retry_interval", "100ms")
	viper.SetDefault("lock.acquire_timeout", "5s")

	viper.SetDefault("app.name", "agent-memory")
	viper.SetDefault("app.version", "0.1.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", "")
	viper.SetDefault("app.max_workers", 10)
	viper.SetDefault("app.worker_timeout", "5m")
	viper.SetDefault("app.memory_high_watermark_bytes", 512*1024*1024)
	viper.SetDefault("app.memory_sample_interval", "15s")

	viper.SetDefault("backup.dir", "")
	viper.SetDefault("backup.max_backups", 7)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.port", 9090)

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.default_rate_per_sec", 10.0)
	viper.SetDefault("rate_limit.default_burst", 20)
	viper.SetDefault("rate_limit.cleanup_every", "5m")

	viper.SetDefault("cursor.hmac_secret", "")
	viper.SetDefault("cursor.max_bytes", 2048)

	viper.SetDefault("audit.max_snapshot_bytes", 8192)
	viper.SetDefault("audit.retention", "720h")
}

// Validate checks the representative invariants of the configuration.
func (c *Config) Validate() error {
	if err := c.validateProfile(); err != nil {
		return fmt.Errorf("profile validation failed: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.Profile == ProfileStandard {
		if c.Database.Driver == "" {
			return fmt.Errorf("database driver cannot be empty (required for standard profile)")
		}
		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty (required for standard profile)")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name cannot be empty (required for standard profile)")
		}
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr cannot be empty (required for standard profile)")
		}
	}

	if c.Log.Level == "" {
		return fmt.Errorf("log level cannot be empty")
	}
	if c.App.Name == "" {
		return fmt.Errorf("app name cannot be empty")
	}

	if strings.TrimSpace(c.Cursor.HMACSecret) == "" && !c.IsDevelopment() {
		return fmt.Errorf("cursor.hmac_secret must be non-empty and non-whitespace outside development")
	}

	if c.Embedding.Enabled && c.Embedding.Workers <= 0 {
		return fmt.Errorf("embedding.workers must be positive when embedding is enabled")
	}

	return nil
}

func (c *Config) validateProfile() error {
	if c.Profile != ProfileLite && c.Profile != ProfileStandard {
		return fmt.Errorf("invalid deployment profile: %s (must be 'lite' or 'standard')", c.Profile)
	}
	if c.Storage.Backend != StorageBackendSQLite && c.Storage.Backend != StorageBackendPostgres {
		return fmt.Errorf("invalid storage backend: %s (must be 'sqlite' or 'postgres')", c.Storage.Backend)
	}

	switch c.Profile {
	case ProfileLite:
		if c.Storage.Backend != StorageBackendSQLite {
			return fmt.Errorf("lite profile requires storage.backend='sqlite' (got '%s')", c.Storage.Backend)
		}
	case ProfileStandard:
		if c.Storage.Backend != StorageBackendPostgres {
			return fmt.Errorf("standard profile requires storage.backend='postgres' (got '%s')", c.Storage.Backend)
		}
	}
	return nil
}

// GetDatabaseURL constructs the pgx DSN from configuration.
func (c *Config) GetDatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Username, c.Database.Password, c.Database.Host,
		c.Database.Port, c.Database.Database, sslMode)
}

// IsDevelopment reports whether the permissive-mode environment gate is open.
func (c *Config) IsDevelopment() bool { return c.App.Environment == "development" }

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool { return c.App.Environment == "production" }

// IsDebug reports whether verbose logging/debug behavior is enabled.
func (c *Config) IsDebug() bool { return c.App.Debug || c.IsDevelopment() }

// IsLiteProfile reports the lite deployment profile.
func (c *Config) IsLiteProfile() bool { return c.Profile == ProfileLite }

// IsStandardProfile reports the standard deployment profile.
func (c *Config) IsStandardProfile() bool { return c.Profile == ProfileStandard }

// DefaultDataDir resolves the data directory per spec §6.4: env var is
// handled by viper binding of app.data_dir; absent that, fall back to
// <user home>/.agent-memory.
func (c *Config) DefaultDataDir(userHomeDir func() (string, error)) (string, error) {
	if c.App.DataDir != "" {
		return c.App.DataDir, nil
	}
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return home + "/.agent-memory", nil
}
