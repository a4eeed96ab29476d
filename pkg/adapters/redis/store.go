package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "lattice:output:"

// Store implements ports.OutputStore using Redis.
// Each output is a JSON string; a sorted set per graph indexes the node ids.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for stored outputs.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(graphID, nodeID string) string {
	return s.prefix + graphID + ":" + nodeID
}

func (s *Store) indexKey(graphID string) string {
	return s.prefix + graphID + ":index"
}

// Save persists the output to Redis.
func (s *Store) Save(ctx context.Context, graphID, nodeID string, output map[string]any) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	pipe := s.client.Pipeline()

	// Use 0 for no expiration if ttl is not set.
	pipe.Set(ctx, s.key(graphID, nodeID), data, s.ttl)

	// Score = Now + TTL, so List can prune entries whose key expired.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(graphID), backend.Z{
		Score:  score,
		Member: nodeID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the output from Redis.
func (s *Store) Load(ctx context.Context, graphID, nodeID string) (map[string]any, error) {
	val, err := s.client.Get(ctx, s.key(graphID, nodeID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrOutputNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	return out, nil
}

// Delete removes the output and its index entry.
func (s *Store) Delete(ctx context.Context, graphID, nodeID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(graphID, nodeID))
	pipe.ZRem(ctx, s.indexKey(graphID), nodeID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the node ids with a live output, pruning expired index entries.
func (s *Store) List(ctx context.Context, graphID string) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(graphID), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired outputs: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(graphID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
