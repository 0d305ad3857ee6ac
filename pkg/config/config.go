// Package config loads the pathdag configuration file.
//
// Configuration is TOML. Every field has a default, so an absent file yields
// a working in-memory setup:
//
//	[store]
//	kind = "badger"          # memory | badger | mongo
//	path = "/var/lib/pathdag"
//
//	[mongo]
//	uri = "mongodb://localhost:27017"
//	database = "pathdag"
//
//	[redis]
//	addr = "localhost:6379"  # optional shared path-id counter
//
//	[server]
//	listen = ":8080"
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
	StoreMongo  = "mongo"
)

// Config is the root configuration.
type Config struct {
	Store  StoreConfig  `toml:"store"`
	Mongo  MongoConfig  `toml:"mongo"`
	Redis  RedisConfig  `toml:"redis"`
	Server ServerConfig `toml:"server"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	// Kind is one of memory, badger, mongo.
	Kind string `toml:"kind"`

	// Path is the badger database directory. Used when Kind is badger.
	Path string `toml:"path"`

	// SyncWrites makes badger fsync every commit. Used when Kind is badger.
	SyncWrites bool `toml:"sync_writes"`
}

// MongoConfig configures the mongo backend. Used when store.kind is mongo.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// RedisConfig configures the optional shared path-id allocator.
// An empty Addr disables it and the store uses its local id source.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Listen string `toml:"listen"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Kind:       StoreMemory,
			SyncWrites: true,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "pathdag",
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file is
// not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory:
	case StoreBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required when store.kind is %q", StoreBadger)
		}
	case StoreMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri required when store.kind is %q", StoreMongo)
		}
		if c.Mongo.Database == "" {
			return fmt.Errorf("mongo.database required when store.kind is %q", StoreMongo)
		}
	default:
		return fmt.Errorf("unknown store.kind %q", c.Store.Kind)
	}
	return nil
}
