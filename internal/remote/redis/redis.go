// Package redis is the remote store backed by Redis. Each entity is a hash
// of id to JSON document plus a sorted set that keeps creation order.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

var _ types.RemoteStore = (*Store)(nil)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "casebook"

// Options configures the client.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// MaxRetries follows go-redis: 0 means three retries, -1 disables them.
	MaxRetries  int
	DialTimeout time.Duration
}

// Store implements types.RemoteStore on Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a client for opts.Addr. It does not dial until first use.
func New(opts Options) *Store {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		MaxRetries:  opts.MaxRetries,
		DialTimeout: opts.DialTimeout,
	})
	return NewWithClient(rdb, opts.Prefix)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) hashKey(entity string) string {
	return s.prefix + ":" + entity
}

func (s *Store) orderKey(entity string) string {
	return s.prefix + ":" + entity + ":order"
}

func score(rec types.Record) float64 {
	return float64(rec.CreatedAt.UnixMilli())
}

// List returns the entity's records in creation order. Filters are not
// pushed down.
func (s *Store) List(ctx context.Context, entity string, _ types.Filter) ([]types.Record, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey(entity), 0, -1).Result()
	if err != nil {
		return nil, unavailable("list", err)
	}
	out := []types.Record{}
	if len(ids) == 0 {
		return out, nil
	}
	vals, err := s.client.HMGet(ctx, s.hashKey(entity), ids...).Result()
	if err != nil {
		return nil, unavailable("list", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Order entry without a document: deleted between the two reads.
			continue
		}
		rec, err := decode(raw)
		if err != nil {
			return nil, unavailable("list", fmt.Errorf("record %s: %w", ids[i], err))
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns the record or ErrNotFound.
func (s *Store) Get(ctx context.Context, entity, id string) (types.Record, error) {
	raw, err := s.client.HGet(ctx, s.hashKey(entity), id).Result()
	if errors.Is(err, redis.Nil) {
		return types.Record{}, fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	if err != nil {
		return types.Record{}, unavailable("get", err)
	}
	rec, err := decode(raw)
	if err != nil {
		return types.Record{}, unavailable("get", err)
	}
	return rec, nil
}

// Create stores record unless its id is taken.
func (s *Store) Create(ctx context.Context, entity string, record types.Record) (types.Record, error) {
	out, err := s.BulkCreate(ctx, entity, []types.Record{record})
	if err != nil {
		return types.Record{}, err
	}
	return out[0], nil
}

// Update merges fields into the stored document under WATCH so a
// concurrent writer aborts the transaction instead of being overwritten.
func (s *Store) Update(ctx context.Context, entity, id string, fields map[string]any, updatedAt time.Time) (types.Record, error) {
	hash := s.hashKey(entity)
	var updated types.Record
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, hash, id).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
		}
		if err != nil {
			return err
		}
		rec, err := decode(raw)
		if err != nil {
			return err
		}
		rec = rec.Merge(fields)
		rec.UpdatedAt = updatedAt.UTC()
		if rec.UpdatedAt.Before(rec.CreatedAt) {
			rec.UpdatedAt = rec.CreatedAt
		}
		doc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("%w: encoding %s: %w", types.ErrValidation, id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hash, id, doc)
			return nil
		})
		updated = rec
		return err
	}, hash)
	if err != nil {
		return types.Record{}, classify("update", err)
	}
	return updated, nil
}

// Delete removes the document and its order entry.
func (s *Store) Delete(ctx context.Context, entity, id string) error {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, s.hashKey(entity), id)
		pipe.ZRem(ctx, s.orderKey(entity), id)
		return nil
	})
	if err != nil {
		return unavailable("delete", err)
	}
	if removed.Val() == 0 {
		return fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	return nil
}

// BulkCreate writes every record in one MULTI/EXEC after checking, under
// WATCH, that none of the ids exist.
func (s *Store) BulkCreate(ctx context.Context, entity string, records []types.Record) ([]types.Record, error) {
	if len(records) == 0 {
		return []types.Record{}, nil
	}
	docs := make([]string, len(records))
	ids := make([]string, len(records))
	for i, rec := range records {
		doc, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding %s: %w", types.ErrValidation, rec.ID, err)
		}
		docs[i] = string(doc)
		ids[i] = rec.ID
	}

	hash, order := s.hashKey(entity), s.orderKey(entity)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := tx.HMGet(ctx, hash, ids...).Result()
		if err != nil {
			return err
		}
		for i, v := range existing {
			if v != nil {
				return fmt.Errorf("%w: duplicate id %s", types.ErrValidation, ids[i])
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, rec := range records {
				pipe.HSet(ctx, hash, rec.ID, docs[i])
				pipe.ZAdd(ctx, order, redis.Z{Score: score(rec), Member: rec.ID})
			}
			return nil
		})
		return err
	}, hash)
	if err != nil {
		return nil, classify("bulk create", err)
	}

	out := make([]types.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone().WithSource(types.SourceRemote)
	}
	return out, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(raw string) (types.Record, error) {
	var rec types.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return types.Record{}, fmt.Errorf("decoding document: %w", err)
	}
	if rec.Fields == nil {
		rec.Fields = map[string]any{}
	}
	return rec.WithSource(types.SourceRemote), nil
}

func classify(op string, err error) error {
	if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrValidation) {
		return err
	}
	return unavailable(op, err)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %w", types.ErrRemoteUnavailable, op, err)
}
