package kv

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/storefront"
)

type client struct {
	conn *Connection
}

// NewClient wraps an open Redis connection with the Store interface.
func NewClient(conn *Connection) Store {
	return &client{conn: conn}
}

// keyNotFound will detect whether error signifies key not found by Redis.
func (c client) keyNotFound(err error) bool {
	return err == redis.Nil
}

func (c client) storeErr(err error) error {
	return storefront.NewError(storefront.StoreError, err)
}

// Set executes the redis Set command with no expiration; records live until
// the sweeper or their owner deletes them.
func (c client) Set(ctx context.Context, key string, value []byte) error {
	if err := c.conn.Client.Set(ctx, key, value, 0).Err(); err != nil {
		return c.storeErr(err)
	}
	return nil
}

// Get executes the redis Get command.
func (c client) Get(ctx context.Context, key string) (bool, []byte, error) {
	ba, err := c.conn.Client.Get(ctx, key).Bytes()
	if c.keyNotFound(err) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, c.storeErr(err)
	}
	return true, ba, nil
}

// SetStruct marshals value then executes the redis Set command.
func (c client) SetStruct(ctx context.Context, key string, value any) error {
	ba, err := storefront.DefaultMarshaler.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, ba)
}

// GetStruct executes the redis Get command and unmarshals into target.
func (c client) GetStruct(ctx context.Context, key string, target any) (bool, error) {
	found, ba, err := c.Get(ctx, key)
	if err != nil || !found {
		return found, err
	}
	if err := storefront.DefaultMarshaler.Unmarshal(ba, target); err != nil {
		return true, err
	}
	return true, nil
}

// Delete executes the redis Del command.
func (c client) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.conn.Client.Del(ctx, keys...).Err(); err != nil && !c.keyNotFound(err) {
		return c.storeErr(err)
	}
	return nil
}

// Incr executes the redis Incr command.
func (c client) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.conn.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, c.storeErr(err)
	}
	return n, nil
}

// Keys lists keys matching prefix via the redis Keys command.
func (c client) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := c.conn.Client.Keys(ctx, prefix+"*").Result()
	if err != nil {
		return nil, c.storeErr(err)
	}
	return keys, nil
}

type redisBatch struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (b redisBatch) Set(key string, value []byte) {
	b.pipe.Set(b.ctx, key, value, 0)
}

// Pipelined commits the writes queued by fn inside a Redis MULTI/EXEC block.
func (c client) Pipelined(ctx context.Context, fn func(b Batch) error) error {
	_, err := c.conn.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(redisBatch{ctx: ctx, pipe: pipe})
	})
	if err != nil {
		return c.storeErr(err)
	}
	return nil
}
