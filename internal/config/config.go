// Package config loads the CLI configuration file (lattice.yaml).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/aretw0/lattice/internal/tracing"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "lattice.yaml"

// Store and lock drivers.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is the CLI configuration.
type Config struct {
	GraphsDir string        `yaml:"graphs_dir"`
	Log       LogConfig     `yaml:"log"`
	Engine    EngineConfig  `yaml:"engine"`
	Store     StoreConfig   `yaml:"store"`
	Lock      LockConfig    `yaml:"lock"`
	Redis     RedisConfig   `yaml:"redis"`
	Serve     ServeConfig   `yaml:"serve"`
	Tracing   TracingConfig `yaml:"tracing"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type EngineConfig struct {
	Parallelism int           `yaml:"parallelism"`
	NodeTimeout time.Duration `yaml:"node_timeout"`
	CacheReuse  bool          `yaml:"cache_reuse"`
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	UserID      string        `yaml:"user_id"`
}

// StoreConfig selects where node outputs are mirrored. Path is the directory
// for the file driver and the database file for sqlite.
//
// EncryptionKey is a base64 AES-256 key; when set, outputs are sealed before
// they reach the driver. FallbackKeys still decrypt data written under a
// previous key. Mask lists regular expressions of output keys whose values
// are replaced before storage.
type StoreConfig struct {
	Driver        string   `yaml:"driver"`
	Path          string   `yaml:"path"`
	EncryptionKey string   `yaml:"encryption_key,omitempty"`
	FallbackKeys  []string `yaml:"fallback_keys,omitempty"`
	Mask          []string `yaml:"mask,omitempty"`
}

type LockConfig struct {
	Driver string        `yaml:"driver"`
	TTL    time.Duration `yaml:"ttl"`
}

// RedisConfig is shared by the redis store and lock drivers.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

type TracingConfig struct {
	Enabled        bool `yaml:"enabled"`
	tracing.Config `yaml:",inline"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		GraphsDir: ".",
		Log:       LogConfig{Level: "info", Format: "text"},
		Store:     StoreConfig{Driver: DriverNone},
		Lock:      LockConfig{Driver: DriverNone, TTL: time.Minute},
		Redis:     RedisConfig{Addr: "localhost:6379", Prefix: "lattice:"},
		Serve:     ServeConfig{Addr: ":8080"},
		Tracing:   TracingConfig{Config: tracing.DefaultConfig("lattice")},
	}
}

// Load reads the file at path over the defaults. A missing file is only an
// error when required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Decode parses YAML into cfg, keeping fields the document leaves out.
// Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate checks drivers and numeric ranges.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "", DriverNone, DriverMemory, DriverFile, DriverSQLite, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Lock.Driver {
	case "", DriverNone, DriverMemory, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown lock driver %q", c.Lock.Driver))
	}
	if c.Engine.Parallelism < 0 {
		errs = append(errs, errors.New("engine.parallelism must not be negative"))
	}
	if c.Engine.NodeTimeout < 0 {
		errs = append(errs, errors.New("engine.node_timeout must not be negative"))
	}
	if c.Engine.CacheSize < 0 {
		errs = append(errs, errors.New("engine.cache_size must not be negative"))
	}
	if (c.Store.EncryptionKey != "" || len(c.Store.Mask) > 0) && (c.Store.Driver == "" || c.Store.Driver == DriverNone) {
		errs = append(errs, errors.New("store.encryption_key and store.mask need a store driver"))
	}
	if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
