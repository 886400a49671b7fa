package quota

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/studio/internal/storage"
)

func TestCounterDefaultsToZero(t *testing.T) {
	c := Open(context.Background(), storage.NewMemory())
	if c.Get() != 0 {
		t.Errorf("Expected 0, got %d", c.Get())
	}
}

func TestCounterPersists(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	c := Open(ctx, kv)
	c.Set(ctx, 5)
	c.Decrement(ctx)
	if got := c.Decrement(ctx); got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}

	raw, ok, _ := kv.Get(ctx, CountKey)
	if !ok || raw != "3" {
		t.Errorf("Expected persisted \"3\", got %q", raw)
	}

	reopened := Open(ctx, kv)
	if reopened.Get() != 3 {
		t.Errorf("Expected 3 after reopen, got %d", reopened.Get())
	}
}

func TestCounterGoesNegative(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, storage.NewMemory())
	if got := c.Decrement(ctx); got != -1 {
		t.Errorf("Expected -1, got %d", got)
	}
}

func TestCounterReset(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	c := Open(ctx, kv)
	c.Set(ctx, 7)
	c.Reset(ctx)

	if c.Get() != 0 {
		t.Errorf("Expected 0 after reset, got %d", c.Get())
	}
	if _, ok, _ := kv.Get(ctx, CountKey); ok {
		t.Error("Expected key removed after reset")
	}
}

func TestCounterIgnoresGarbage(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	kv.Set(ctx, CountKey, "lots")

	if got := Open(ctx, kv).Get(); got != 0 {
		t.Errorf("Expected 0 for unparseable value, got %d", got)
	}
}

func TestPolicy(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, storage.NewMemory())

	if err := (Policy{}).Check(c); err != nil {
		t.Errorf("Expected no refusal without enforcement, got %v", err)
	}
	if err := (Policy{Enforce: true}).Check(c); !errors.Is(err, ErrExhausted) {
		t.Errorf("Expected ErrExhausted, got %v", err)
	}
	c.Set(ctx, 1)
	if err := (Policy{Enforce: true}).Check(c); err != nil {
		t.Errorf("Expected generation allowed with 1 remaining, got %v", err)
	}
}

func TestCounterPersistsOnCancelledContext(t *testing.T) {
	kv, err := storage.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "studio.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	c := Open(context.Background(), kv)
	c.Set(cancelled, 4)
	c.Decrement(cancelled)

	if got := Open(context.Background(), kv).Get(); got != 3 {
		t.Errorf("Expected persisted count 3, got %d", got)
	}

	c.Reset(cancelled)
	if _, ok, _ := kv.Get(context.Background(), CountKey); ok {
		t.Error("Expected reset to remove the stored count")
	}
}
