package storage

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Expected missing key to be absent, got ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "sessionState", `{"sessions":[]}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := s.Get(ctx, "sessionState")
	if err != nil || !ok {
		t.Fatalf("Expected key to exist, got ok=%v err=%v", ok, err)
	}
	if v != `{"sessions":[]}` {
		t.Errorf("Expected stored value, got %q", v)
	}

	if err := s.Set(ctx, "sessionState", "second"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if v, _, _ := s.Get(ctx, "sessionState"); v != "second" {
		t.Errorf("Expected overwritten value, got %q", v)
	}

	if err := s.Delete(ctx, "sessionState"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "sessionState"); ok {
		t.Error("Expected key to be gone after delete")
	}
	if err := s.Delete(ctx, "sessionState"); err != nil {
		t.Errorf("Deleting an absent key should not fail: %v", err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s, err := NewDir(dir)
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}
	exerciseStore(t, s)

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected directory to be created: %v", err)
	}
}

func TestDirPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Set(ctx, "generationCount", "3"); err != nil {
		t.Fatal(err)
	}

	second, err := NewDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	v, ok, err := second.Get(ctx, "generationCount")
	if err != nil || !ok || v != "3" {
		t.Errorf("Expected 3 from a reopened store, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "studio.db")
	s, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedis(context.Background(), "redis://"+mr.Addr(), "studio-test:")
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)

	if err := s.Set(context.Background(), "generationCount", "7"); err != nil {
		t.Fatal(err)
	}
	if got, err := mr.Get("studio-test:generationCount"); err != nil || got != "7" {
		t.Errorf("Expected prefixed key in redis, got %q (%v)", got, err)
	}
}

func TestRedisUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	if _, err := NewRedis(context.Background(), "redis://"+addr, ""); err == nil {
		t.Error("Expected error when redis is unreachable")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "etcd"}); err == nil {
		t.Error("Expected error for unsupported backend")
	}
}
