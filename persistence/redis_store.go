package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/flowcanvas/types"
)

// RedisGraphStore is a Redis-based implementation of GraphStore.
// Suitable for distributed deployments. Compare-and-swap writes use
// WATCH/MULTI transactions; a concurrent write between the version read
// and the commit aborts the transaction and surfaces as a conflict.
type RedisGraphStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisGraphStore creates a Redis-backed store and verifies the
// connection.
func NewRedisGraphStore(config StoreConfig) (*RedisGraphStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := config.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "flowcanvas:"
	}
	return &RedisGraphStore{client: client, keyPrefix: keyPrefix}, nil
}

func (s *RedisGraphStore) graphKey(name string) string {
	return s.keyPrefix + "graph:" + name
}

func (s *RedisGraphStore) namesKey() string {
	return s.keyPrefix + "graphs"
}

func (s *RedisGraphStore) registryKey() string {
	return s.keyPrefix + "registry"
}

// readGraph fetches the stored envelope via any redis command runner.
// A missing key reads as version 0.
func readGraph(ctx context.Context, c redis.Cmdable, key string) (storedGraph, bool, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return storedGraph{}, false, nil
	}
	if err != nil {
		return storedGraph{}, false, err
	}
	var stored storedGraph
	if err := json.Unmarshal(data, &stored); err != nil {
		return storedGraph{}, false, fmt.Errorf("corrupt graph entry %s: %w", key, err)
	}
	return stored, true, nil
}

func (s *RedisGraphStore) ListGraphs(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "failed to list graphs").WithCause(err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisGraphStore) GetGraph(ctx context.Context, name string) (types.GraphConfig, int64, error) {
	stored, ok, err := readGraph(ctx, s.client, s.graphKey(name))
	if err != nil {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrTransport, "failed to read graph %q", name).WithCause(err)
	}
	if !ok {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	return stored.Config, stored.Version, nil
}

func (s *RedisGraphStore) PutGraph(ctx context.Context, cfg types.GraphConfig, expectedVersion int64) (int64, error) {
	key := s.graphKey(cfg.Name)
	var newVersion int64

	txf := func(tx *redis.Tx) error {
		stored, _, err := readGraph(ctx, tx, key)
		if err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return types.NewConflictError(stored.Version, expectedVersion)
		}
		newVersion = stored.Version + 1
		data, err := json.Marshal(storedGraph{Version: newVersion, Config: cfg})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, s.namesKey(), cfg.Name)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Lost the race between read and commit. Report the winner's
		// version.
		stored, _, readErr := readGraph(ctx, s.client, key)
		if readErr != nil {
			return 0, types.NewErrorf(types.ErrTransport, "failed to write graph %q", cfg.Name).WithCause(readErr)
		}
		return 0, types.NewConflictError(stored.Version, expectedVersion)
	}
	if err != nil {
		if types.IsConflict(err) {
			return 0, err
		}
		return 0, types.NewErrorf(types.ErrTransport, "failed to write graph %q", cfg.Name).WithCause(err)
	}
	return newVersion, nil
}

func (s *RedisGraphStore) DeleteGraph(ctx context.Context, name string) error {
	key := s.graphKey(name)
	txf := func(tx *redis.Tx) error {
		_, ok, err := readGraph(ctx, tx, key)
		if err != nil {
			return err
		}
		if !ok {
			return types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.namesKey(), name)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	if err != nil {
		if types.IsNotFound(err) {
			return err
		}
		return types.NewErrorf(types.ErrTransport, "failed to delete graph %q", name).WithCause(err)
	}
	return nil
}

func (s *RedisGraphStore) RenameGraph(ctx context.Context, oldName, newName string, expectedVersion int64) (int64, error) {
	oldKey := s.graphKey(oldName)
	newKey := s.graphKey(newName)
	var newVersion int64

	txf := func(tx *redis.Tx) error {
		stored, ok, err := readGraph(ctx, tx, oldKey)
		if err != nil {
			return err
		}
		if !ok {
			return types.NewErrorf(types.ErrNotFound, "graph %q not found", oldName)
		}
		if _, taken, err := readGraph(ctx, tx, newKey); err != nil {
			return err
		} else if taken {
			return types.NewErrorf(types.ErrDuplicateName, "graph %q already exists", newName)
		}
		if stored.Version != expectedVersion {
			return types.NewConflictError(stored.Version, expectedVersion)
		}
		newVersion = stored.Version + 1
		stored.Version = newVersion
		stored.Config.Name = newName
		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, newKey, data, 0)
			pipe.Del(ctx, oldKey)
			pipe.SAdd(ctx, s.namesKey(), newName)
			pipe.SRem(ctx, s.namesKey(), oldName)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, oldKey, newKey)
	if err != nil {
		if fe, ok := types.AsError(err); ok {
			return 0, fe
		}
		return 0, types.NewErrorf(types.ErrTransport, "failed to rename graph %q", oldName).WithCause(err)
	}
	return newVersion, nil
}

func (s *RedisGraphStore) GetRegistry(ctx context.Context) (types.ServerRegistry, int64, error) {
	data, err := s.client.Get(ctx, s.registryKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.ServerRegistry{}, 0, nil
	}
	if err != nil {
		return types.ServerRegistry{}, 0, types.NewError(types.ErrTransport, "failed to read server registry").WithCause(err)
	}
	var stored storedRegistry
	if err := json.Unmarshal(data, &stored); err != nil {
		return types.ServerRegistry{}, 0, types.NewError(types.ErrTransport, "corrupt server registry").WithCause(err)
	}
	return stored.Registry, stored.Version, nil
}

func (s *RedisGraphStore) PutRegistry(ctx context.Context, reg types.ServerRegistry, expectedVersion int64) (int64, error) {
	key := s.registryKey()
	var newVersion int64

	txf := func(tx *redis.Tx) error {
		var current int64
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			current = 0
		case err != nil:
			return err
		default:
			var stored storedRegistry
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("corrupt server registry: %w", err)
			}
			current = stored.Version
		}
		if current != expectedVersion {
			return types.NewConflictError(current, expectedVersion)
		}
		newVersion = current + 1
		payload, err := json.Marshal(storedRegistry{Version: newVersion, Registry: reg})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		_, current, readErr := s.GetRegistry(ctx)
		if readErr != nil {
			return 0, readErr
		}
		return 0, types.NewConflictError(current, expectedVersion)
	}
	if err != nil {
		if types.IsConflict(err) {
			return 0, err
		}
		return 0, types.NewError(types.ErrTransport, "failed to write server registry").WithCause(err)
	}
	return newVersion, nil
}

func (s *RedisGraphStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisGraphStore) Close() error {
	return s.client.Close()
}

var _ GraphStore = (*RedisGraphStore)(nil)
