package config

import (
	"slices"
	"strings"
)

const (
	defaultStorageProvider     = StorageSQLite
	defaultFirestoreCollection = "conversations"

	defaultDebounceMS = 1000

	defaultAIProvider  = "gemini"
	defaultFastModel   = "gemini-2.5-flash"
	defaultReasonModel = "gemini-3-pro-preview"

	defaultAPIListen = ":8090"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "grove.conversations"
)

// Storage provider names accepted by storage.provider.
const (
	StorageInMemory  = "inmemory"
	StorageSQLite    = "sqlite"
	StoragePostgres  = "postgres"
	StorageRedis     = "redis"
	StorageFirestore = "firestore"
)

var storageProviders = []string{StorageInMemory, StorageSQLite, StoragePostgres, StorageRedis, StorageFirestore}

func isStorageProvider(name string) bool {
	return slices.Contains(storageProviders, name)
}

func storageProviderList() string {
	return strings.Join(storageProviders, ", ")
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:            defaultStorageProvider,
			FirestoreCollection: defaultFirestoreCollection,
		},
		Sync: SyncConfig{
			DebounceMS: defaultDebounceMS,
		},
		AI: AIConfig{
			Provider:    defaultAIProvider,
			FastModel:   defaultFastModel,
			ReasonModel: defaultReasonModel,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
