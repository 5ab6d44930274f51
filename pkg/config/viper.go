package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/grove/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the GROVE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (GROVE_API_LISTEN, GROVE_STORAGE_PROVIDER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("GROVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The Gemini SDK convention is honoured as a fallback for the API key.
	_ = v.BindEnv("ai.api_key", "GROVE_AI_API_KEY", "GEMINI_API_KEY")

	return v, nil
}

// FromViper materializes the effective configuration.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Provider:            v.GetString("storage.provider"),
			SQLitePath:          v.GetString("storage.sqlite_path"),
			PostgresDSN:         v.GetString("storage.postgres_dsn"),
			RedisAddr:           v.GetString("storage.redis_addr"),
			FirestoreProject:    v.GetString("storage.firestore_project"),
			FirestoreCollection: v.GetString("storage.firestore_collection"),
		},
		Sync: SyncConfig{
			DebounceMS: v.GetUint("sync.debounce_ms"),
		},
		AI: AIConfig{
			Provider:    v.GetString("ai.provider"),
			APIKey:      v.GetString("ai.api_key"),
			FastModel:   v.GetString("ai.fast_model"),
			ReasonModel: v.GetString("ai.reason_model"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("event_stream.provider"),
			Brokers:  v.GetString("event_stream.brokers"),
			Topic:    v.GetString("event_stream.topic"),
		},
		Identity: IdentityConfig{
			User: v.GetString("identity.user"),
		},
	}

	applyDefaults(cfg)
	return cfg
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	for _, key := range orderedKeys {
		v.SetDefault(key, configKeys[key].get(d))
	}

	// typed so GetUint on an unset key still works
	v.SetDefault("sync.debounce_ms", d.Sync.DebounceMS)
}
