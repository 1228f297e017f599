package persistence

import (
	"fmt"
)

// NewGraphStore creates a GraphStore based on the configuration.
func NewGraphStore(config StoreConfig) (GraphStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryGraphStore(), nil
	case StoreTypeFile:
		return NewFileGraphStore(config)
	case StoreTypeRedis:
		return NewRedisGraphStore(config)
	case StoreTypeGorm:
		return NewGormGraphStore(config)
	case StoreTypeMongo:
		return NewMongoGraphStore(config)
	default:
		return nil, fmt.Errorf("unsupported graph store type: %s", config.Type)
	}
}

// MustNewGraphStore creates a GraphStore or panics on error. Only for
// use during application initialization.
func MustNewGraphStore(config StoreConfig) GraphStore {
	store, err := NewGraphStore(config)
	if err != nil {
		panic(fmt.Sprintf("failed to create graph store: %v", err))
	}
	return store
}
