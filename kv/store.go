// Package kv provides the key-value store each service exclusively owns.
// Entity records and write-ahead log records share one key space and are told
// apart by the "log:" key prefix. The store's one non-trivial primitive is
// Pipelined: a group of writes committed atomically, used to couple an entity
// mutation with its UPDATE/CREATE log record.
package kv

import (
	"context"
)

// Batch collects writes that Pipelined commits as one atomic unit.
type Batch interface {
	// Set queues a raw value write under key.
	Set(key string, value []byte)
}

// Store is the per-service key-value store.
type Store interface {
	// Set writes a raw value under key.
	Set(ctx context.Context, key string, value []byte) error
	// Get reads the raw value under key. Found is false when the key is absent.
	Get(ctx context.Context, key string) (found bool, value []byte, err error)
	// SetStruct marshals value and writes it under key.
	SetStruct(ctx context.Context, key string, value any) error
	// GetStruct reads and unmarshals the value under key into target.
	// Found is false when the key is absent.
	GetStruct(ctx context.Context, key string, target any) (found bool, err error)
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys []string) error
	// Incr atomically increments the integer under key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Keys lists all keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Pipelined runs fn to queue writes, then commits them atomically.
	// Partial application is impossible: either every queued write lands or none.
	Pipelined(ctx context.Context, fn func(b Batch) error) error
}
