package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/studio/internal/config"
	"github.com/lehigh-university-libraries/studio/internal/dispatch"
	"github.com/lehigh-university-libraries/studio/internal/imgbb"
	"github.com/lehigh-university-libraries/studio/internal/providers"
	"github.com/lehigh-university-libraries/studio/internal/quota"
	"github.com/lehigh-university-libraries/studio/internal/replicate"
	"github.com/lehigh-university-libraries/studio/internal/s3host"
	"github.com/lehigh-university-libraries/studio/internal/sessions"
	"github.com/lehigh-university-libraries/studio/internal/storage"
	"github.com/lehigh-university-libraries/studio/internal/studio"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "studio",
		Short: "Design studio for prompt-driven image generation and editing",
		Long: `Studio generates and edits images through remote Flux models on Replicate.

Each design keeps a versioned history of generations, inpaint edits and
depth-guided edits. Designs and the generation counter are persisted locally,
in SQLite or in Redis.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			optional := !cmd.Flags().Changed("config")
			cfg, err := config.Load(opts.configPath, optional)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			level, err := config.ParseLevel(cfg.Logging.Level)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "studio.yaml", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// Add subcommands
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newGenerateCmd(opts))
	cmd.AddCommand(newSessionsCmd(opts))
	cmd.AddCommand(newQuotaCmd(opts))

	return cmd
}

// app is the wired service plus the storage it must release
type app struct {
	studio *studio.Service
	kv     storage.Store
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		slog.Error("Unable to close storage", "err", err)
	}
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	kv, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	host, err := newHost(ctx, cfg)
	if err != nil {
		kv.Close()
		return nil, err
	}

	generator := replicate.New(cfg.Replicate.APIToken)
	if cfg.Replicate.BaseURL != "" {
		generator.BaseURL = cfg.Replicate.BaseURL
	}
	if cfg.Replicate.APIToken == "" {
		slog.Warn("REPLICATE_API_TOKEN is not set; generations will fail")
	}

	svc := studio.New(
		sessions.Open(ctx, kv),
		quota.Open(ctx, kv),
		dispatch.New(cfg.Models, generator),
		studio.Options{
			Host:   host,
			Rehost: cfg.Hosting.Rehost,
			Policy: quota.Policy{Enforce: cfg.Quota.Enforce},
		},
	)

	slog.Debug("Studio ready", "storage", cfg.Storage.Backend, "hosting", cfg.Hosting.Backend)
	return &app{studio: svc, kv: kv}, nil
}

func newHost(ctx context.Context, cfg *config.Config) (providers.Host, error) {
	switch cfg.Hosting.Backend {
	case config.HostingS3:
		host, err := s3host.New(ctx, cfg.Hosting.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to configure S3 hosting: %w", err)
		}
		return host, nil
	case config.HostingImgBB:
		if cfg.Hosting.ImgBB.APIKey == "" {
			slog.Warn("IMGBB_API_KEY is not set; uploads will fail")
		}
		return imgbb.New(cfg.Hosting.ImgBB.APIKey), nil
	default:
		return nil, nil
	}
}
