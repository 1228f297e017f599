package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/flowcanvas/types"
)

// graphRecord is the SQL row of one graph. Data holds the JSON-encoded
// GraphConfig.
type graphRecord struct {
	Name    string `gorm:"primaryKey;size:255"`
	Version int64  `gorm:"not null"`
	Data    []byte `gorm:"not null"`
}

func (graphRecord) TableName() string { return "graphs" }

// registryRecord is the singleton row holding the MCP server registry.
type registryRecord struct {
	ID      int    `gorm:"primaryKey"`
	Version int64  `gorm:"not null"`
	Data    []byte `gorm:"not null"`
}

func (registryRecord) TableName() string { return "server_registry" }

const registryRowID = 1

// GormGraphStore is a SQL implementation of GraphStore on top of gorm.
// Optimistic concurrency is enforced with a version column: updates run
// as UPDATE ... WHERE name = ? AND version = ?, and zero affected rows
// means a concurrent writer won.
type GormGraphStore struct {
	db *gorm.DB
}

// OpenDialector resolves a configured dialect to a gorm dialector.
func OpenDialector(config DatabaseStoreConfig) (gorm.Dialector, error) {
	switch config.Dialect {
	case "sqlite", "":
		return sqlite.Open(config.DSN), nil
	case "mysql":
		return mysql.Open(config.DSN), nil
	case "postgres":
		return postgres.Open(config.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database dialect: %s (supported: sqlite, mysql, postgres)", config.Dialect)
	}
}

// NewGormGraphStore opens the configured SQL database and ensures the
// schema exists.
func NewGormGraphStore(config StoreConfig) (*GormGraphStore, error) {
	dialector, err := OpenDialector(config.Database)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return NewGormGraphStoreWithDB(db)
}

// NewGormGraphStoreWithDB wraps an already-open gorm handle. The schema
// is migrated in place.
func NewGormGraphStoreWithDB(db *gorm.DB) (*GormGraphStore, error) {
	if err := db.AutoMigrate(&graphRecord{}, &registryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate graph schema: %w", err)
	}
	return &GormGraphStore{db: db}, nil
}

func (s *GormGraphStore) ListGraphs(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&graphRecord{}).
		Order("name").
		Pluck("name", &names).Error
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "failed to list graphs").WithCause(err)
	}
	return names, nil
}

func (s *GormGraphStore) GetGraph(ctx context.Context, name string) (types.GraphConfig, int64, error) {
	var rec graphRecord
	err := s.db.WithContext(ctx).First(&rec, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	if err != nil {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrTransport, "failed to read graph %q", name).WithCause(err)
	}
	var cfg types.GraphConfig
	if err := json.Unmarshal(rec.Data, &cfg); err != nil {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrTransport, "corrupt graph row %q", name).WithCause(err)
	}
	return cfg, rec.Version, nil
}

func (s *GormGraphStore) PutGraph(ctx context.Context, cfg types.GraphConfig, expectedVersion int64) (int64, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return 0, types.NewErrorf(types.ErrTransport, "failed to encode graph %q", cfg.Name).WithCause(err)
	}

	var newVersion int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		var rec graphRecord
		findErr := tx.First(&rec, "name = ?", cfg.Name).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			current = 0
		case findErr != nil:
			return findErr
		default:
			current = rec.Version
		}
		if current != expectedVersion {
			return types.NewConflictError(current, expectedVersion)
		}
		newVersion = current + 1
		if current == 0 {
			return tx.Create(&graphRecord{Name: cfg.Name, Version: newVersion, Data: data}).Error
		}
		res := tx.Model(&graphRecord{}).
			Where("name = ? AND version = ?", cfg.Name, expectedVersion).
			Updates(map[string]any{"version": newVersion, "data": data})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewConflictError(current, expectedVersion)
		}
		return nil
	})
	if err != nil {
		if types.IsConflict(err) {
			return 0, err
		}
		return 0, types.NewErrorf(types.ErrTransport, "failed to write graph %q", cfg.Name).WithCause(err)
	}
	return newVersion, nil
}

func (s *GormGraphStore) DeleteGraph(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Delete(&graphRecord{}, "name = ?", name)
	if res.Error != nil {
		return types.NewErrorf(types.ErrTransport, "failed to delete graph %q", name).WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	return nil
}

func (s *GormGraphStore) RenameGraph(ctx context.Context, oldName, newName string, expectedVersion int64) (int64, error) {
	var newVersion int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec graphRecord
		findErr := tx.First(&rec, "name = ?", oldName).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return types.NewErrorf(types.ErrNotFound, "graph %q not found", oldName)
		}
		if findErr != nil {
			return findErr
		}

		var taken int64
		if err := tx.Model(&graphRecord{}).Where("name = ?", newName).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return types.NewErrorf(types.ErrDuplicateName, "graph %q already exists", newName)
		}
		if rec.Version != expectedVersion {
			return types.NewConflictError(rec.Version, expectedVersion)
		}

		var cfg types.GraphConfig
		if err := json.Unmarshal(rec.Data, &cfg); err != nil {
			return fmt.Errorf("corrupt graph row %q: %w", oldName, err)
		}
		cfg.Name = newName
		data, err := json.Marshal(cfg)
		if err != nil {
			return err
		}

		newVersion = rec.Version + 1
		if err := tx.Delete(&graphRecord{}, "name = ?", oldName).Error; err != nil {
			return err
		}
		return tx.Create(&graphRecord{Name: newName, Version: newVersion, Data: data}).Error
	})
	if err != nil {
		if fe, ok := types.AsError(err); ok {
			return 0, fe
		}
		return 0, types.NewErrorf(types.ErrTransport, "failed to rename graph %q", oldName).WithCause(err)
	}
	return newVersion, nil
}

func (s *GormGraphStore) GetRegistry(ctx context.Context) (types.ServerRegistry, int64, error) {
	var rec registryRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", registryRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ServerRegistry{}, 0, nil
	}
	if err != nil {
		return types.ServerRegistry{}, 0, types.NewError(types.ErrTransport, "failed to read server registry").WithCause(err)
	}
	var reg types.ServerRegistry
	if err := json.Unmarshal(rec.Data, &reg); err != nil {
		return types.ServerRegistry{}, 0, types.NewError(types.ErrTransport, "corrupt server registry row").WithCause(err)
	}
	return reg, rec.Version, nil
}

func (s *GormGraphStore) PutRegistry(ctx context.Context, reg types.ServerRegistry, expectedVersion int64) (int64, error) {
	data, err := json.Marshal(reg)
	if err != nil {
		return 0, types.NewError(types.ErrTransport, "failed to encode server registry").WithCause(err)
	}

	var newVersion int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		var rec registryRecord
		findErr := tx.First(&rec, "id = ?", registryRowID).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			current = 0
		case findErr != nil:
			return findErr
		default:
			current = rec.Version
		}
		if current != expectedVersion {
			return types.NewConflictError(current, expectedVersion)
		}
		newVersion = current + 1
		if current == 0 {
			return tx.Create(&registryRecord{ID: registryRowID, Version: newVersion, Data: data}).Error
		}
		res := tx.Model(&registryRecord{}).
			Where("id = ? AND version = ?", registryRowID, expectedVersion).
			Updates(map[string]any{"version": newVersion, "data": data})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewConflictError(current, expectedVersion)
		}
		return nil
	})
	if err != nil {
		if types.IsConflict(err) {
			return 0, err
		}
		return 0, types.NewError(types.ErrTransport, "failed to write server registry").WithCause(err)
	}
	return newVersion, nil
}

func (s *GormGraphStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormGraphStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ GraphStore = (*GormGraphStore)(nil)
