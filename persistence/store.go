// Package persistence provides versioned graph storage backends behind
// a common compare-and-swap contract.
//
// Every write carries the version the caller last observed. A write
// succeeds only when that version still matches the stored one; the new
// version is the old one plus one. A stale write is rejected with a
// CONFLICT error carrying both versions and never applied partially.
//
// Supported backends:
// - Memory: for development and testing (default)
// - File: for single-node deployments
// - Redis: for distributed deployments
// - Gorm: SQL databases (sqlite, mysql, postgres)
// - Mongo: document storage
package persistence

import (
	"context"

	"github.com/BaSui01/flowcanvas/types"
)

// StoreType represents the type of storage backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeGorm   StoreType = "gorm"
	StoreTypeMongo  StoreType = "mongo"
)

// GraphStore is the versioned persistence surface for graphs and the
// MCP server registry.
//
// A missing graph reads as version 0, so PutGraph with expectedVersion
// 0 creates it at version 1. Every backend applies the same rule to the
// registry document.
type GraphStore interface {
	// ListGraphs returns the stored graph names, sorted.
	ListGraphs(ctx context.Context) ([]string, error)

	// GetGraph returns a graph and its current version.
	GetGraph(ctx context.Context, name string) (types.GraphConfig, int64, error)

	// PutGraph writes a graph if expectedVersion matches the stored
	// version and returns the new version.
	PutGraph(ctx context.Context, cfg types.GraphConfig, expectedVersion int64) (int64, error)

	// DeleteGraph removes a graph.
	DeleteGraph(ctx context.Context, name string) error

	// RenameGraph moves a graph to a new name, bumping its version. The
	// target name must be free.
	RenameGraph(ctx context.Context, oldName, newName string, expectedVersion int64) (int64, error)

	// GetRegistry returns the MCP server registry and its version. An
	// empty registry at version 0 is returned before the first write.
	GetRegistry(ctx context.Context) (types.ServerRegistry, int64, error)

	// PutRegistry writes the registry under the same CAS contract.
	PutRegistry(ctx context.Context, reg types.ServerRegistry, expectedVersion int64) (int64, error)

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// RedisStoreConfig contains Redis-specific configuration.
type RedisStoreConfig struct {
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// DatabaseStoreConfig contains SQL-specific configuration.
type DatabaseStoreConfig struct {
	// Dialect selects the SQL driver: sqlite, mysql or postgres.
	Dialect string `json:"dialect" yaml:"dialect"`
	// DSN is the driver-specific connection string.
	DSN string `json:"dsn" yaml:"dsn"`
}

// MongoStoreConfig contains MongoDB-specific configuration.
type MongoStoreConfig struct {
	URI        string `json:"uri" yaml:"uri"`
	Database   string `json:"database" yaml:"database"`
	Collection string `json:"collection" yaml:"collection"`
}

// StoreConfig is the base configuration for all store implementations.
type StoreConfig struct {
	// Type is the storage backend type.
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage.
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// Redis configuration (only used when Type is "redis").
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`

	// Database configuration (only used when Type is "gorm").
	Database DatabaseStoreConfig `json:"database" yaml:"database"`

	// Mongo configuration (only used when Type is "mongo").
	Mongo MongoStoreConfig `json:"mongo" yaml:"mongo"`
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/graphs",
		Redis: RedisStoreConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "flowcanvas:",
		},
		Database: DatabaseStoreConfig{
			Dialect: "sqlite",
			DSN:     "./data/flowcanvas.db",
		},
		Mongo: MongoStoreConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "flowcanvas",
			Collection: "graphs",
		},
	}
}
