package store

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	DBPath   string
	RedisURL string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns a Factory for the configured backend and a Closer releasing its connection.
func Open(ctx context.Context, opts Options) (Factory, io.Closer, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return func(string) (KV, error) { return NewMemory(), nil }, nopCloser{}, nil

	case BackendSQLite:
		db, err := OpenSQLite(opts.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return func(name string) (KV, error) { return NewSQLite(db, name) }, db, nil

	case BackendRedis:
		ro, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(ro)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return func(name string) (KV, error) { return NewRedis(rdb, "leadsniper:"+name), nil }, rdb, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
