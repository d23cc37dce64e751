package runtime

import (
	"context"
	"sync"

	"github.com/agent-memory/agent-memory/internal/config"
)

// Container is the process-level holder of a single Runtime, per
// spec.md §4.11. Every caller in the process shares the Runtime
// returned by Bootstrap/Get; Reset tears it down so tests never leak a
// background goroutine or open storage connection into the next test.
type Container struct {
	mu sync.Mutex
	rt *Runtime
}

var global = &Container{}

// Bootstrap builds a Runtime from cfg and stores it as the process
// singleton, replacing (and shutting down) any prior one.
func (c *Container) Bootstrap(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rt != nil {
		_ = c.rt.Shutdown(ctx)
		c.rt = nil
	}

	rt, err := Bootstrap(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.rt = rt
	return rt, nil
}

// Get returns the current Runtime, or nil if Bootstrap has not been
// called yet.
func (c *Container) Get() *Runtime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rt
}

// Reset shuts down the held Runtime, if any, and clears it. Intended
// for test teardown between cases that each call Bootstrap fresh.
func (c *Container) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt != nil {
		_ = c.rt.Shutdown(ctx)
		c.rt = nil
	}
}

// Global returns the process-wide Container. cmd/agent-memory and
// internal/transport both bootstrap through this single instance so
// there is never more than one live Runtime per process.
func Global() *Container { return global }
