package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag on
// "grove serve" and "grove chat" cannot drift.
type Flag struct {
	// Name is the long flag name (e.g. "storage").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "storage.provider").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen      = "listen"
	FlagStorage     = "storage"
	FlagSQLite      = "sqlite"
	FlagPostgres    = "postgres"
	FlagRedis       = "redis"
	FlagFirestore   = "firestore-project"
	FlagUser        = "user"
	FlagAPIKey      = "api-key"
	FlagFastModel   = "fast-model"
	FlagReasonModel = "reason-model"
	FlagDebounce    = "debounce-ms"
	FlagEvents      = "event-stream"
	FlagBrokers     = "brokers"
)

// Flags is the registry shared by every grove command.
var Flags = FlagSet{
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the HTTP API to listen on",
	},
	FlagStorage: {
		Name:        "storage",
		Shorthand:   "s",
		ViperKey:    "storage.provider",
		Description: "Conversation store (inmemory, sqlite, postgres, redis, firestore)",
	},
	FlagSQLite: {
		Name:        "sqlite",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite database (default <grove dir>/grove.db)",
	},
	FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string",
	},
	FlagRedis: {
		Name:        "redis",
		ViperKey:    "storage.redis_addr",
		Description: "Redis address (host:port)",
	},
	FlagFirestore: {
		Name:        "firestore-project",
		ViperKey:    "storage.firestore_project",
		Description: "GCP project for the Firestore store",
	},
	FlagUser: {
		Name:        "user",
		Shorthand:   "u",
		ViperKey:    "identity.user",
		Description: "Identity that owns the conversations (empty = signed out)",
	},
	FlagAPIKey: {
		Name:        "api-key",
		ViperKey:    "ai.api_key",
		Description: "Gemini API key (defaults to $GEMINI_API_KEY)",
	},
	FlagFastModel: {
		Name:        "fast-model",
		ViperKey:    "ai.fast_model",
		Description: "Model used for transcription and summaries",
	},
	FlagReasonModel: {
		Name:        "reason-model",
		ViperKey:    "ai.reason_model",
		Description: "Model used to answer turns",
	},
	FlagDebounce: {
		Name:        "debounce-ms",
		ViperKey:    "sync.debounce_ms",
		Description: "Delay in milliseconds between the last change and a save",
	},
	FlagEvents: {
		Name:        "event-stream",
		ViperKey:    "event_stream.provider",
		Description: "Save event publisher (nop, kafka)",
	},
	FlagBrokers: {
		Name:        "brokers",
		ViperKey:    "event_stream.brokers",
		Description: "Comma separated Kafka brokers",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
