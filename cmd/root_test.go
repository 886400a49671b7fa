package cmd

import (
	"context"
	"testing"

	"github.com/lehigh-university-libraries/studio/internal/config"
	"github.com/lehigh-university-libraries/studio/internal/imgbb"
	"github.com/lehigh-university-libraries/studio/internal/storage"
)

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"serve", "generate", "sessions", "quota"} {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Errorf("Expected %s subcommand: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil || root.PersistentFlags().Lookup("log-level") == nil {
		t.Error("Expected --config and --log-level flags")
	}
}

func TestOpenApp(t *testing.T) {
	cfg := config.Default()
	cfg.Storage = storage.Options{Backend: storage.BackendSQLite, Path: t.TempDir() + "/studio.db"}
	cfg.Hosting.Backend = config.HostingNone

	ctx := context.Background()
	a, err := openApp(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	created, ok := a.studio.CreateSession(ctx)
	if !ok {
		t.Fatal("Expected a design to be created")
	}
	a.studio.SetQuota(ctx, 5)
	a.Close()

	reopened, err := openApp(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if _, ok := reopened.studio.Session(created.ID); !ok {
		t.Error("Expected design to survive reopen")
	}
	if reopened.studio.Quota() != 5 {
		t.Errorf("Expected quota 5 after reopen, got %d", reopened.studio.Quota())
	}
}

func TestNewHost(t *testing.T) {
	cfg := config.Default()
	host, err := newHost(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := host.(*imgbb.Client); !ok {
		t.Errorf("Expected ImgBB host by default, got %T", host)
	}

	cfg.Hosting.Backend = config.HostingNone
	host, err = newHost(context.Background(), cfg)
	if err != nil || host != nil {
		t.Errorf("Expected no host, got %v, %v", host, err)
	}
}
