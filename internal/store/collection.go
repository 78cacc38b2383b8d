package store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Collection is a typed view over a KV keyspace. Values are msgpack-encoded
// using their json field names.
type Collection[T any] struct {
	kv KV
}

// NewCollection wraps kv.
func NewCollection[T any](kv KV) *Collection[T] {
	return &Collection[T]{kv: kv}
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// Get returns the value for key or ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := decode(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// Put stores v under key, replacing any previous value.
func (c *Collection[T]) Put(ctx context.Context, key string, v T) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.kv.Put(ctx, key, data)
}

// PutIfAbsent stores v only when key is new and returns the stored value.
func (c *Collection[T]) PutIfAbsent(ctx context.Context, key string, v T) (T, bool, error) {
	var out T
	data, err := encode(v)
	if err != nil {
		return out, false, fmt.Errorf("encode %s: %w", key, err)
	}
	cur, created, err := c.kv.PutIfAbsent(ctx, key, data)
	if err != nil {
		return out, false, err
	}
	if created {
		return v, true, nil
	}
	if err := decode(cur, &out); err != nil {
		return out, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, false, nil
}

// Delete removes key or returns ErrNotFound.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.kv.Delete(ctx, key)
}

// List returns values in insertion order together with the total count.
func (c *Collection[T]) List(ctx context.Context, offset, limit int) ([]T, int, error) {
	entries, total, err := c.kv.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := decode(e.Value, &v); err != nil {
			return nil, 0, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		out = append(out, v)
	}
	return out, total, nil
}
