// Package quota holds the persisted generation counter.
package quota

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/studio/internal/storage"
)

// CountKey is the storage key holding the counter
const CountKey = "generationCount"

// ErrExhausted is returned by Policy.Check when generations are refused
var ErrExhausted = errors.New("generation quota exhausted")

// Counter is a persisted integer. It is not clamped; Decrement may go negative.
type Counter struct {
	kv    storage.Store
	count int
	mu    sync.Mutex
}

// Open reads the counter from kv. A missing or unparseable value reads as 0.
func Open(ctx context.Context, kv storage.Store) *Counter {
	c := &Counter{kv: kv}

	raw, ok, err := kv.Get(ctx, CountKey)
	if err != nil {
		slog.Warn("Unable to read generation count", "err", err)
		return c
	}
	if !ok {
		return c
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("Ignoring unparseable generation count", "value", raw, "err", err)
		return c
	}
	c.count = n
	return c
}

func (c *Counter) Get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Decrement lowers the counter by one and returns the new value
func (c *Counter) Decrement(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count--
	c.write(ctx)
	return c.count
}

// Set stores an explicit value
func (c *Counter) Set(ctx context.Context, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = n
	c.write(ctx)
}

// Reset sets the counter to 0 and removes the persisted key
func (c *Counter) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	if err := c.kv.Delete(context.WithoutCancel(ctx), CountKey); err != nil {
		slog.Error("Unable to reset generation count", "err", err)
	}
}

func (c *Counter) write(ctx context.Context) {
	if err := c.kv.Set(context.WithoutCancel(ctx), CountKey, strconv.Itoa(c.count)); err != nil {
		slog.Error("Unable to persist generation count", "count", c.count, "err", err)
	}
}

// Policy decides whether a generation may start. The counter itself never refuses.
type Policy struct {
	Enforce bool
}

// Check returns ErrExhausted when enforcement is on and nothing remains
func (p Policy) Check(c *Counter) error {
	if p.Enforce && c.Get() <= 0 {
		return ErrExhausted
	}
	return nil
}
