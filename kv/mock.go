package kv

import (
	"context"
	"strings"
	"sync"

	"github.com/sharedcode/storefront"
)

// Mock is a map-backed Store used in tests. Pipelined applies its queued
// writes under one lock acquisition so commit atomicity matches Redis.
type Mock struct {
	mu      sync.Mutex
	lookup  map[string][]byte
	counter map[string]int64

	// Err, when set, is returned by every operation. Lets tests exercise
	// the StoreError paths.
	Err error
}

// NewMock returns a new store mock.
func NewMock() *Mock {
	return &Mock{
		lookup:  make(map[string][]byte),
		counter: make(map[string]int64),
	}
}

func (m *Mock) Set(ctx context.Context, key string, value []byte) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookup[key] = append([]byte(nil), value...)
	return nil
}

func (m *Mock) Get(ctx context.Context, key string) (bool, []byte, error) {
	if m.Err != nil {
		return false, nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ba, ok := m.lookup[key]
	if !ok {
		return false, nil, nil
	}
	return true, append([]byte(nil), ba...), nil
}

func (m *Mock) SetStruct(ctx context.Context, key string, value any) error {
	ba, err := storefront.DefaultMarshaler.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, ba)
}

func (m *Mock) GetStruct(ctx context.Context, key string, target any) (bool, error) {
	found, ba, err := m.Get(ctx, key)
	if err != nil || !found {
		return found, err
	}
	return true, storefront.DefaultMarshaler.Unmarshal(ba, target)
}

func (m *Mock) Delete(ctx context.Context, keys []string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.lookup, k)
	}
	return nil
}

func (m *Mock) Incr(ctx context.Context, key string) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter[key]++
	return m.counter[key], nil
}

func (m *Mock) Keys(ctx context.Context, prefix string) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.lookup {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type mockBatch struct {
	writes []struct {
		key   string
		value []byte
	}
}

func (b *mockBatch) Set(key string, value []byte) {
	b.writes = append(b.writes, struct {
		key   string
		value []byte
	}{key, append([]byte(nil), value...)})
}

func (m *Mock) Pipelined(ctx context.Context, fn func(b Batch) error) error {
	if m.Err != nil {
		return m.Err
	}
	var b mockBatch
	if err := fn(&b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range b.writes {
		m.lookup[w.key] = w.value
	}
	return nil
}
