// Package config loads the studio configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/studio/internal/dispatch"
	"github.com/lehigh-university-libraries/studio/internal/s3host"
	"github.com/lehigh-university-libraries/studio/internal/storage"
	"gopkg.in/yaml.v3"
)

// Hosting backends
const (
	HostingImgBB = "imgbb"
	HostingS3    = "s3"
	HostingNone  = "none"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   storage.Options `yaml:"storage"`
	Replicate ReplicateConfig `yaml:"replicate"`
	Models    dispatch.Config `yaml:"models"`
	Hosting   HostingConfig   `yaml:"hosting"`
	Quota     QuotaConfig     `yaml:"quota"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type ReplicateConfig struct {
	APIToken string `yaml:"api_token"`
	BaseURL  string `yaml:"base_url"`
}

type HostingConfig struct {
	Backend string `yaml:"backend"`
	// Rehost copies generated images to the host before recording them
	Rehost bool          `yaml:"rehost"`
	ImgBB  ImgBBConfig   `yaml:"imgbb"`
	S3     s3host.Config `yaml:"s3"`
}

type ImgBBConfig struct {
	APIKey string `yaml:"api_key"`
}

type QuotaConfig struct {
	Enforce bool `yaml:"enforce"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8888"},
		Storage: storage.Options{Backend: storage.BackendDir},
		Models:  dispatch.DefaultConfig(),
		Hosting: HostingConfig{Backend: HostingImgBB},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error when optional is set.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case optional && errors.Is(err, fs.ErrNotExist):
			slog.Debug("No config file found, using defaults", "path", path)
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "STUDIO_PORT")
	setString(&cfg.Storage.Backend, "STUDIO_STORAGE")
	setString(&cfg.Storage.Path, "STUDIO_STORAGE_PATH")
	setString(&cfg.Storage.RedisURL, "STUDIO_REDIS_URL")
	setString(&cfg.Replicate.APIToken, "REPLICATE_API_TOKEN")
	setString(&cfg.Replicate.BaseURL, "REPLICATE_BASE_URL")
	setString(&cfg.Hosting.Backend, "STUDIO_HOSTING")
	setBool(&cfg.Hosting.Rehost, "STUDIO_REHOST")
	setString(&cfg.Hosting.ImgBB.APIKey, "IMGBB_API_KEY")
	setString(&cfg.Hosting.S3.Bucket, "S3_BUCKET")
	setString(&cfg.Hosting.S3.Region, "S3_REGION")
	setString(&cfg.Hosting.S3.Endpoint, "S3_ENDPOINT")
	setString(&cfg.Hosting.S3.PublicBaseURL, "S3_PUBLIC_BASE_URL")
	setString(&cfg.Hosting.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&cfg.Hosting.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setBool(&cfg.Quota.Enforce, "STUDIO_ENFORCE_QUOTA")
	setString(&cfg.Logging.Level, "STUDIO_LOG_LEVEL")
}

func applyDefaults(cfg *Config) {
	d := dispatch.DefaultConfig()
	if cfg.Models.InitialModel == "" {
		cfg.Models.InitialModel = d.InitialModel
	}
	if cfg.Models.InpaintModel == "" {
		cfg.Models.InpaintModel = d.InpaintModel
	}
	if cfg.Models.ControlnetModel == "" {
		cfg.Models.ControlnetModel = d.ControlnetModel
	}
	if cfg.Models.Steps == 0 {
		cfg.Models.Steps = d.Steps
	}
	if cfg.Models.NumSamples == 0 {
		cfg.Models.NumSamples = d.NumSamples
	}
	if cfg.Models.DefaultExt == "" {
		cfg.Models.DefaultExt = d.DefaultExt
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8888"
	}
	if cfg.Hosting.Backend == "" {
		cfg.Hosting.Backend = HostingImgBB
	}
	if cfg.Hosting.S3.Prefix == "" {
		cfg.Hosting.S3.Prefix = "studio/"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "studio:"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks the enumerated settings
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case storage.BackendMemory, storage.BackendDir, storage.BackendSQLite, storage.BackendRedis:
	default:
		return fmt.Errorf("config invalid: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == storage.BackendRedis && c.Storage.RedisURL == "" {
		return fmt.Errorf("config invalid: redis storage requires redis_url")
	}
	switch c.Hosting.Backend {
	case HostingImgBB, HostingNone:
	case HostingS3:
		if c.Hosting.S3.Bucket == "" {
			return fmt.Errorf("config invalid: s3 hosting requires a bucket")
		}
	default:
		return fmt.Errorf("config invalid: unknown hosting backend %q", c.Hosting.Backend)
	}
	if c.Hosting.Rehost && c.Hosting.Backend == HostingNone {
		return fmt.Errorf("config invalid: rehost requires an image host")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	return nil
}

// ParseLevel maps a level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Ignoring invalid boolean environment variable", "key", key, "value", v)
		return
	}
	*dst = b
}
