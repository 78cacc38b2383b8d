package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("store: not found")

// Entry is one key/value pair returned by List.
type Entry struct {
	Key   string
	Value []byte
}

// Reader provides read access to a keyed store.
type Reader interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns entries in insertion order together with the total count.
	// Overwriting a key keeps its original position.
	List(ctx context.Context, offset, limit int) ([]Entry, int, error)
}

// Writer provides write access to a keyed store.
type Writer interface {
	Put(ctx context.Context, key string, value []byte) error
	// PutIfAbsent stores value only when key is new. It returns the value that
	// is stored after the call and whether this call created it.
	PutIfAbsent(ctx context.Context, key string, value []byte) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// KV combines all keyed store operations.
type KV interface {
	Reader
	Writer
}

// Factory opens the named keyspace of a backend.
type Factory func(name string) (KV, error)
