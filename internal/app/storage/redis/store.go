// Package redis implements the option store on Redis. Records are stored as
// JSON values under a per-instance key; retired instance IDs live in a set so
// a deleted slot is never reinitialised.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/covenant-network/option-layer/internal/app/domain/option"
	"github.com/covenant-network/option-layer/internal/app/storage"
)

const (
	statePrefix = "options:state:"
	retiredSet  = "options:retired"
)

// Store implements storage.OptionStore backed by Redis.
type Store struct {
	client *redis.Client
}

var _ storage.OptionStore = (*Store)(nil)

// New wraps an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Open connects to the Redis instance at addr and verifies the connection.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client), nil
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func stateKey(id string) string { return statePrefix + id }

func (s *Store) CreateOption(ctx context.Context, id string, st option.State) error {
	retired, err := s.client.SIsMember(ctx, retiredSet, id).Result()
	if err != nil {
		return fmt.Errorf("check retired: %w", err)
	}
	if retired {
		return storage.ErrRetired
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode option: %w", err)
	}
	created, err := s.client.SetNX(ctx, stateKey(id), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("store option: %w", err)
	}
	if !created {
		return storage.ErrExists
	}
	return nil
}

func (s *Store) GetOption(ctx context.Context, id string) (option.State, error) {
	raw, err := s.client.Get(ctx, stateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return option.State{}, storage.ErrNotFound
	}
	if err != nil {
		return option.State{}, fmt.Errorf("load option: %w", err)
	}

	var st option.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return option.State{}, fmt.Errorf("decode option: %w", err)
	}
	return st, nil
}

func (s *Store) UpdateOption(ctx context.Context, id string, st option.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode option: %w", err)
	}
	updated, err := s.client.SetXX(ctx, stateKey(id), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("store option: %w", err)
	}
	if !updated {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteOption(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, stateKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete option: %w", err)
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	if err := s.client.SAdd(ctx, retiredSet, id).Err(); err != nil {
		return fmt.Errorf("retire option: %w", err)
	}
	return nil
}

func (s *Store) ListOptions(ctx context.Context) ([]storage.Record, error) {
	var records []storage.Record

	iter := s.client.Scan(ctx, 0, statePrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // deleted between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("load option: %w", err)
		}
		var st option.State
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("decode option: %w", err)
		}
		records = append(records, storage.Record{
			ID:    strings.TrimPrefix(key, statePrefix),
			State: st,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan options: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}
