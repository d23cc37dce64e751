package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Service owns the live configuration snapshot. Hot-reloadable settings
// (rate limits, embedding provider keys) are read through Current(); a
// reload atomically swaps the whole snapshot so readers never observe a
// partially-updated Config (spec.md §9, "Global mutable state").
type Service interface {
	// Current returns the live, read-only configuration snapshot.
	Current() *Config

	// Reload re-parses configuration from the original source and, if
	// valid, atomically swaps it in. The previous snapshot remains valid
	// for any caller already holding a reference to it.
	Reload(ctx context.Context) error

	// Export returns a sanitized or raw view of the current configuration.
	Export(ctx context.Context, opts GetConfigOptions) (*ConfigResponse, error)

	// Version returns a SHA256 hash of the current configuration.
	Version() string

	// Source reports where the configuration was loaded from.
	Source() ConfigSource
}

// GetConfigOptions controls Service.Export.
type GetConfigOptions struct {
	Format   string
	Sanitize bool
	Sections []string
}

// ConfigResponse is the exported view of configuration.
type ConfigResponse struct {
	Version        string                 `json:"version"`
	Source         ConfigSource           `json:"source"`
	LoadedAt       time.Time              `json:"loaded_at"`
	ConfigFilePath string                 `json:"config_file_path,omitempty"`
	Config         map[string]interface{} `json:"config"`
}

// ConfigSource identifies where configuration came from.
type ConfigSource string

const (
	ConfigSourceFile     ConfigSource = "file"
	ConfigSourceEnv      ConfigSource = "env"
	ConfigSourceDefaults ConfigSource = "defaults"
	ConfigSourceMixed    ConfigSource = "mixed"
)

type service struct {
	snapshot   atomic.Pointer[Config]
	configPath string
	loadedAt   atomic.Value // time.Time
	source     ConfigSource
	sanitizer  ConfigSanitizer

	cacheMu     sync.RWMutex
	cachedResp  *ConfigResponse
	cacheKey    string
	cacheExpiry time.Time
}

// NewService constructs a Service holding the given initial snapshot.
func NewService(cfg *Config, configPath string, loadedAt time.Time, source ConfigSource) Service {
	s := &service{
		configPath: configPath,
		source:     source,
		sanitizer:  NewDefaultConfigSanitizer(),
	}
	s.snapshot.Store(cfg)
	s.loadedAt.Store(loadedAt)
	return s
}

func (s *service) Current() *Config {
	return s.snapshot.Load()
}

func (s *service) Reload(ctx context.Context) error {
	cfg, err := LoadConfig(s.configPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	s.snapshot.Store(cfg)
	s.loadedAt.Store(time.Now())
	s.cacheMu.Lock()
	s.cachedResp = nil
	s.cacheMu.Unlock()
	return nil
}

func (s *service) Version() string {
	configJSON, err := json.Marshal(s.Current())
	if err != nil {
		return fmt.Sprintf("error-%d", time.Now().Unix())
	}
	hash := sha256.Sum256(configJSON)
	return hex.EncodeToString(hash[:])
}

func (s *service) Source() ConfigSource { return s.source }

func (s *service) Export(ctx context.Context, opts GetConfigOptions) (*ConfigResponse, error) {
	if opts.Format == "" {
		opts.Format = "json"
	}

	cacheKey := s.buildCacheKey(opts)
	if cached := s.getCachedResponse(cacheKey); cached != nil {
		return cached, nil
	}

	cfg := s.deepCopy(s.Current())
	if opts.Sanitize {
		cfg = s.sanitizer.Sanitize(cfg)
	}
	if len(opts.Sections) > 0 {
		cfg = s.filterSections(cfg, opts.Sections)
	}

	configMap, err := s.toMap(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to convert config to map: %w", err)
	}

	loadedAt, _ := s.loadedAt.Load().(time.Time)
	resp := &ConfigResponse{
		Version:        s.Version(),
		Source:         s.source,
		LoadedAt:       loadedAt,
		ConfigFilePath: s.configPath,
		Config:         configMap,
	}
	s.setCachedResponse(cacheKey, resp)
	return resp, nil
}

func (s *service) buildCacheKey(opts GetConfigOptions) string {
	sectionsKey := ""
	if len(opts.Sections) > 0 {
		sectionsKey = fmt.Sprintf("-%v", opts.Sections)
	}
	return fmt.Sprintf("%s-%s-%t%s", s.Version(), opts.Format, opts.Sanitize, sectionsKey)
}

func (s *service) getCachedResponse(cacheKey string) *ConfigResponse {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	if s.cachedResp != nil && s.cacheKey == cacheKey && time.Now().Before(s.cacheExpiry) {
		return s.cachedResp
	}
	return nil
}

func (s *service) setCachedResponse(cacheKey string, resp *ConfigResponse) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cachedResp = resp
	s.cacheKey = cacheKey
	s.cacheExpiry = time.Now().Add(time.Second)
}

func (s *service) deepCopy(cfg *Config) *Config {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}
	var cp Config
	if err := json.Unmarshal(configJSON, &cp); err != nil {
		return cfg
	}
	return &cp
}

func (s *service) filterSections(cfg *Config, sections []string) *Config {
	filtered := &Config{}
	for _, section := range sections {
		switch section {
		case "server":
			filtered.Server = cfg.Server
		case "database":
			filtered.Database = cfg.Database
		case "redis":
			filtered.Redis = cfg.Redis
		case "embedding":
			filtered.Embedding = cfg.Embedding
		case "log":
			filtered.Log = cfg.Log
		case "cache":
			filtered.Cache = cfg.Cache
		case "lock":
			filtered.Lock = cfg.Lock
		case "app":
			filtered.App = cfg.App
		case "metrics":
			filtered.Metrics = cfg.Metrics
		case "rate_limit":
			filtered.RateLimit = cfg.RateLimit
		case "cursor":
			filtered.Cursor = cfg.Cursor
		case "audit":
			filtered.Audit = cfg.Audit
		}
	}
	return filtered
}

func (s *service) toMap(cfg *Config) (map[string]interface{}, error) {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(configJSON, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config to map: %w", err)
	}
	return m, nil
}
