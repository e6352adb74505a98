// Package config loads the editor server configuration from YAML, TOML or JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/layout"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreRemote = "remote"
)

// StoreKinds lists the supported store kinds.
var StoreKinds = []string{StoreMemory, StoreFile, StoreRedis, StoreSQLite, StoreMongo, StoreRemote}

// Duration is a time.Duration written as "1s", "250ms" in every format.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete server configuration.
type Config struct {
	Listen      string        `yaml:"listen" toml:"listen" json:"listen"`
	LogLevel    string        `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogFormat   string        `yaml:"log_format" toml:"log_format" json:"log_format"`
	Debounce    Duration      `yaml:"debounce" toml:"debounce" json:"debounce"`
	SaveTimeout Duration      `yaml:"save_timeout" toml:"save_timeout" json:"save_timeout"`
	LockTTL     Duration      `yaml:"lock_ttl" toml:"lock_ttl" json:"lock_ttl"`
	Layout      layout.Config `yaml:"layout" toml:"layout" json:"layout"`
	Store       Store         `yaml:"store" toml:"store" json:"store"`
}

// Store selects and configures the bot repository.
type Store struct {
	Kind string `yaml:"kind" toml:"kind" json:"kind"`
	// Path is the directory of the file store.
	Path string `yaml:"path" toml:"path" json:"path"`
	// DSN is the database path of the sqlite store.
	DSN    string `yaml:"dsn" toml:"dsn" json:"dsn"`
	Redis  Redis  `yaml:"redis" toml:"redis" json:"redis"`
	Mongo  Mongo  `yaml:"mongo" toml:"mongo" json:"mongo"`
	Remote Remote `yaml:"remote" toml:"remote" json:"remote"`
}

type Redis struct {
	Addr     string `yaml:"addr" toml:"addr" json:"addr"`
	Password string `yaml:"password" toml:"password" json:"password"`
	DB       int    `yaml:"db" toml:"db" json:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix" json:"prefix"`
	// Lock enables the distributed session lock.
	Lock bool `yaml:"lock" toml:"lock" json:"lock"`
}

type Mongo struct {
	URI        string `yaml:"uri" toml:"uri" json:"uri"`
	Database   string `yaml:"database" toml:"database" json:"database"`
	Collection string `yaml:"collection" toml:"collection" json:"collection"`
}

type Remote struct {
	BaseURL string   `yaml:"base_url" toml:"base_url" json:"base_url"`
	Timeout Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Listen:      ":8080",
		LogLevel:    "info",
		LogFormat:   "text",
		Debounce:    Duration(time.Second),
		SaveTimeout: Duration(10 * time.Second),
		LockTTL:     Duration(30 * time.Second),
		Layout:      layout.DefaultConfig(),
		Store: Store{
			Kind: StoreFile,
			Path: ".bozchat/bots",
			DSN:  ".bozchat/bots.db",
			Redis: Redis{
				Addr:   "localhost:6379",
				Prefix: "bozchat:bot:",
			},
			Mongo: Mongo{
				URI:        "mongodb://localhost:27017",
				Database:   "bozchat",
				Collection: "bots",
			},
			Remote: Remote{Timeout: Duration(10 * time.Second)},
		},
	}
}

// Load reads path over the defaults. The format follows the file extension:
// .toml, .json, anything else is YAML. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(StoreKinds, c.Store.Kind) {
		errs = append(errs, fmt.Errorf("store.kind %q must be one of %s", c.Store.Kind, strings.Join(StoreKinds, ", ")))
	}
	if c.Store.Kind == StoreRemote && c.Store.Remote.BaseURL == "" {
		errs = append(errs, errors.New("store.remote.base_url is required for the remote store"))
	}
	if c.Debounce < 0 {
		errs = append(errs, errors.New("debounce must not be negative"))
	}
	if c.SaveTimeout < 0 {
		errs = append(errs, errors.New("save_timeout must not be negative"))
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}
	return errors.Join(errs...)
}
