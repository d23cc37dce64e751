// Package ratelimit implements the token-bucket limiter keyed by
// (agent_id, operation_class), grounded directly on the teacher's
// internal/api/middleware/rate_limit.go: a map of golang.org/x/time/rate
// limiters guarded by a mutex, one limiter per key, with a Cleanup pass
// that reclaims limiters sitting at a full bucket. Keys here combine
// agent id and operation class rather than the teacher's single client
// id, since a class's rate/burst can differ per class.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agent-memory/agent-memory/internal/metrics"
)

// ClassConfig is one operation class's refill rate and burst capacity.
type ClassConfig struct {
	RatePerSec float64
	Burst      int
}

// Key identifies one bucket.
type Key struct {
	AgentID        string
	OperationClass string
}

// Limiter enforces a per-(agent, operation class) token bucket.
type Limiter struct {
	enabled      bool
	defaultRate  float64
	defaultBurst int
	classes      map[string]ClassConfig
	metrics      *metrics.Registry
	logger       *slog.Logger

	mu       sync.RWMutex
	limiters map[Key]*rate.Limiter
	bursts   map[Key]int // burst each limiter was constructed with, for Cleanup's "sitting full" check

	warnedZeroRate sync.Map // operation_class -> struct{}, logs the zero-rate misconfiguration once
}

// New constructs a Limiter. classes overrides the default rate/burst
// per operation class; operation classes absent from it use
// defaultRate/defaultBurst.
func New(enabled bool, defaultRate float64, defaultBurst int, classes map[string]ClassConfig, m *metrics.Registry, logger *slog.Logger) *Limiter {
	if classes == nil {
		classes = make(map[string]ClassConfig)
	}
	return &Limiter{
		enabled:      enabled,
		defaultRate:  defaultRate,
		defaultBurst: defaultBurst,
		classes:      classes,
		metrics:      m,
		logger:       logger,
		limiters:     make(map[Key]*rate.Limiter),
		bursts:       make(map[Key]int),
	}
}

// Allow reports whether one unit of work for (agentID, operationClass)
// may proceed. When disabled, the fast path always allows. A
// misconfigured class with a zero or negative rate is treated as
// unlimited, logged once per class rather than on every call. The
// underlying rate.Limiter's own token accounting already saturates at
// zero and never goes negative.
func (l *Limiter) Allow(agentID, operationClass string) bool {
	if !l.enabled {
		return true
	}

	ratePerSec, burst := l.defaultRate, l.defaultBurst
	if cfg, ok := l.classes[operationClass]; ok {
		ratePerSec, burst = cfg.RatePerSec, cfg.Burst
	}

	if ratePerSec <= 0 {
		if _, already := l.warnedZeroRate.LoadOrStore(operationClass, struct{}{}); !already && l.logger != nil {
			l.logger.Warn("rate limit class has a non-positive refill rate, treating as unlimited",
				"operation_class", operationClass, "rate_per_sec", ratePerSec)
		}
		return true
	}

	key := Key{AgentID: agentID, OperationClass: operationClass}
	allowed := l.limiterFor(key, ratePerSec, burst).Allow()
	if !allowed && l.metrics != nil {
		l.metrics.RateLimiterRejections.WithLabelValues(operationClass).Inc()
	}
	return allowed
}

func (l *Limiter) limiterFor(key Key, ratePerSec float64, burst int) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	l.limiters[key] = lim
	l.bursts[key] = burst
	return lim
}

// Cleanup drops limiters sitting at a full bucket, the teacher's own
// signal that a client (here, an agent/class pair) has been idle long
// enough that its limiter is safe to forget.
func (l *Limiter) Cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(l.bursts[key]) {
			delete(l.limiters, key)
			delete(l.bursts, key)
		}
	}
}
