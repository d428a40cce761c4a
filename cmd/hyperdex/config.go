package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/agiz/HyperDex"
	"github.com/agiz/HyperDex/archive"
	"github.com/agiz/HyperDex/reshard"
	"github.com/agiz/HyperDex/resource"
	"github.com/agiz/HyperDex/shard"
	"github.com/agiz/HyperDex/testutil"
)

// Config is the YAML configuration shared by all commands.
type Config struct {
	Dir       string          `yaml:"dir" validate:"required"`
	Shard     string          `yaml:"shard" validate:"required,excludesall=/\\"`
	Geometry  shard.Geometry  `yaml:"geometry"`
	Log       LogConfig       `yaml:"log"`
	Resources resource.Config `yaml:"resources"`
	Policy    reshard.Policy  `yaml:"policy"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Store     StoreConfig     `yaml:"store"`
	Bench     BenchConfig     `yaml:"bench"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// ArchiveConfig configures archive export.
type ArchiveConfig struct {
	Codec     archive.Codec `yaml:"codec"`
	BlockSize int           `yaml:"block_size" validate:"gte=0"`
}

// StoreConfig selects where archives are kept.
type StoreConfig struct {
	Kind string `yaml:"kind" validate:"oneof=local s3 minio"`
	// Path is the root directory of a local store.
	Path   string `yaml:"path" validate:"required_if=Kind local"`
	Bucket string `yaml:"bucket" validate:"required_unless=Kind local"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`

	// MinIO only.
	Endpoint  string `yaml:"endpoint" validate:"required_if=Kind minio"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// BenchConfig describes the bench workload.
type BenchConfig struct {
	Ops  int          `yaml:"ops" validate:"min=1"`
	Keys int          `yaml:"keys" validate:"min=1"`
	Mix  testutil.Mix `yaml:"mix"`
	Skew float64      `yaml:"skew" validate:"gte=0"`
	Seed int64        `yaml:"seed"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address /metrics is served on. Empty disables it.
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		Dir:       "./data",
		Shard:     "0001.shard",
		Geometry:  shard.DefaultGeometry(),
		Log:       LogConfig{Level: "info", Format: "text"},
		Resources: resource.Config{MaxWorkers: 2},
		Policy:    reshard.DefaultPolicy(),
		Archive:   ArchiveConfig{Codec: archive.CodecZstd, BlockSize: archive.DefaultBlockSize},
		Store:     StoreConfig{Kind: "local", Path: "./archives"},
		Bench: BenchConfig{
			Ops:  100000,
			Keys: 10000,
			Mix:  testutil.Mix{Get: 0.5, Put: 0.4, Del: 0.1},
			Skew: 1.1,
			Seed: 42,
		},
	}
}

var validate = validator.New()

// LoadConfig reads the YAML file at path over the defaults and validates the
// result. An empty path yields the validated defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks struct tags and the shard geometry.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return c.Geometry.Validate()
}

// Logger builds the configured logger.
func (c Config) Logger() *hyperdex.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Log.Level))
	if c.Log.Format == "json" {
		return hyperdex.NewJSONLogger(level)
	}
	return hyperdex.NewTextLogger(level)
}

// ArchiveOptions returns the export options for cfg.
func (c Config) ArchiveOptions(rc *resource.Controller, logger *hyperdex.Logger) []archive.Option {
	return []archive.Option{
		archive.WithCodec(c.Archive.Codec),
		archive.WithBlockSize(c.Archive.BlockSize),
		archive.WithController(rc),
		archive.WithLogger(logger.Logger),
	}
}
