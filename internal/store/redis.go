package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var _ KV = (*Redis)(nil)

// Redis is a KV backend keeping values in a hash and insertion order in a sorted set.
//
//	<prefix>:data   HASH  key -> value
//	<prefix>:order  ZSET  key scored by insertion sequence
//	<prefix>:seq    INCR  sequence counter
type Redis struct {
	rdb                  redis.UniversalClient
	data, order, counter string
}

// NewRedis creates a Redis-backed keyspace under prefix.
func NewRedis(rdb redis.UniversalClient, prefix string) *Redis {
	return &Redis{
		rdb:     rdb,
		data:    prefix + ":data",
		order:   prefix + ":order",
		counter: prefix + ":seq",
	}
}

func (r *Redis) keys() []string { return []string{r.data, r.order, r.counter} }

var putScript = redis.NewScript(`
local existed = redis.call('HEXISTS', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if existed == 0 then
	redis.call('ZADD', KEYS[2], redis.call('INCR', KEYS[3]), ARGV[1])
end
return existed
`)

var putIfAbsentScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 1 then
	redis.call('ZADD', KEYS[2], redis.call('INCR', KEYS[3]), ARGV[1])
	return {1, ARGV[2]}
end
return {0, redis.call('HGET', KEYS[1], ARGV[1])}
`)

var deleteScript = redis.NewScript(`
local n = redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[1])
return n
`)

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.rdb.HGet(ctx, r.data, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	return putScript.Run(ctx, r.rdb, r.keys(), key, value).Err()
}

func (r *Redis) PutIfAbsent(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	res, err := putIfAbsentScript.Run(ctx, r.rdb, r.keys(), key, value).Slice()
	if err != nil {
		return nil, false, err
	}
	if len(res) != 2 {
		return nil, false, fmt.Errorf("unexpected script reply %v", res)
	}
	created, _ := res[0].(int64)
	cur, _ := res[1].(string)
	return []byte(cur), created == 1, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	n, err := deleteScript.Run(ctx, r.rdb, r.keys(), key).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) List(ctx context.Context, offset, limit int) ([]Entry, int, error) {
	n, err := r.rdb.ZCard(ctx, r.order).Result()
	if err != nil {
		return nil, 0, err
	}
	total := int(n)
	lo, hi := window(offset, limit, total)
	if lo == hi {
		return []Entry{}, total, nil
	}
	keys, err := r.rdb.ZRange(ctx, r.order, int64(lo), int64(hi-1)).Result()
	if err != nil {
		return nil, 0, err
	}
	if len(keys) == 0 {
		return []Entry{}, total, nil
	}
	vals, err := r.rdb.HMGet(ctx, r.data, keys...).Result()
	if err != nil {
		return nil, 0, err
	}
	out := make([]Entry, 0, len(keys))
	for i, k := range keys {
		s, ok := vals[i].(string)
		if !ok {
			// Deleted between ZRANGE and HMGET.
			continue
		}
		out = append(out, Entry{Key: k, Value: []byte(s)})
	}
	return out, total, nil
}
