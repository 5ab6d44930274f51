package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent grove configuration stored as config.toml
// in the .grove/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Sync        SyncConfig        `toml:"sync"`
	AI          AIConfig          `toml:"ai"`
	API         APIConfig         `toml:"api"`
	EventStream EventStreamConfig `toml:"event_stream"`
	Identity    IdentityConfig    `toml:"identity"`
}

// StorageConfig selects and configures the remote conversation store.
type StorageConfig struct {
	Provider            string `toml:"provider,omitempty"`
	SQLitePath          string `toml:"sqlite_path,omitempty"`
	PostgresDSN         string `toml:"postgres_dsn,omitempty"`
	RedisAddr           string `toml:"redis_addr,omitempty"`
	FirestoreProject    string `toml:"firestore_project,omitempty"`
	FirestoreCollection string `toml:"firestore_collection,omitempty"`
}

// SyncConfig holds the debounced save settings.
type SyncConfig struct {
	DebounceMS uint `toml:"debounce_ms,omitempty"`
}

// AIConfig holds the AI service settings.
type AIConfig struct {
	Provider    string `toml:"provider,omitempty"`
	APIKey      string `toml:"api_key,omitempty"`
	FastModel   string `toml:"fast_model,omitempty"`
	ReasonModel string `toml:"reason_model,omitempty"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventStreamConfig holds conversation-saved event publishing settings.
// Brokers is a comma separated list.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// IdentityConfig names the owner used by CLI sessions. Empty means signed out.
type IdentityConfig struct {
	User string `toml:"user,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error {
			if !isStorageProvider(v) {
				return fmt.Errorf("invalid value for storage.provider: %q (available: %s)", v, storageProviderList())
			}
			c.Storage.Provider = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"storage.redis_addr": {
		get: func(c *Config) string { return c.Storage.RedisAddr },
		set: func(c *Config, v string) error { c.Storage.RedisAddr = v; return nil },
	},
	"storage.firestore_project": {
		get: func(c *Config) string { return c.Storage.FirestoreProject },
		set: func(c *Config, v string) error { c.Storage.FirestoreProject = v; return nil },
	},
	"storage.firestore_collection": {
		get: func(c *Config) string { return c.Storage.FirestoreCollection },
		set: func(c *Config, v string) error { c.Storage.FirestoreCollection = v; return nil },
	},
	"sync.debounce_ms": {
		get: func(c *Config) string {
			if c.Sync.DebounceMS == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Sync.DebounceMS), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for sync.debounce_ms: %w", err)
			}
			c.Sync.DebounceMS = uint(n)
			return nil
		},
	},
	"ai.provider": {
		get: func(c *Config) string { return c.AI.Provider },
		set: func(c *Config, v string) error { c.AI.Provider = v; return nil },
	},
	"ai.api_key": {
		get: func(c *Config) string { return c.AI.APIKey },
		set: func(c *Config, v string) error { c.AI.APIKey = v; return nil },
	},
	"ai.fast_model": {
		get: func(c *Config) string { return c.AI.FastModel },
		set: func(c *Config, v string) error { c.AI.FastModel = v; return nil },
	},
	"ai.reason_model": {
		get: func(c *Config) string { return c.AI.ReasonModel },
		set: func(c *Config, v string) error { c.AI.ReasonModel = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"event_stream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error { c.EventStream.Provider = v; return nil },
	},
	"event_stream.brokers": {
		get: func(c *Config) string { return c.EventStream.Brokers },
		set: func(c *Config, v string) error { c.EventStream.Brokers = v; return nil },
	},
	"event_stream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"identity.user": {
		get: func(c *Config) string { return c.Identity.User },
		set: func(c *Config, v string) error { c.Identity.User = v; return nil },
	},
}

// orderedKeys lists the keys in TOML section order for display.
var orderedKeys = []string{
	"storage.provider",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"storage.redis_addr",
	"storage.firestore_project",
	"storage.firestore_collection",
	"sync.debounce_ms",
	"ai.provider",
	"ai.api_key",
	"ai.fast_model",
	"ai.reason_model",
	"api.listen",
	"event_stream.provider",
	"event_stream.brokers",
	"event_stream.topic",
	"identity.user",
}
