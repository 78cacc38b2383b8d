package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sqlite, err := NewSQLite(db, "test")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return map[string]KV{
		"memory": NewMemory(),
		"sqlite": sqlite,
		"redis":  NewRedis(rdb, "test"),
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, kv KV)) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) { fn(t, kv) })
	}
}

func TestKV_GetPutDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()

		if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
		}
		if err := kv.Put(ctx, "a", []byte("one")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := kv.Get(ctx, "a")
		if err != nil || string(got) != "one" {
			t.Fatalf("Get = %q, %v; want one", got, err)
		}
		if err := kv.Put(ctx, "a", []byte("two")); err != nil {
			t.Fatalf("Put overwrite: %v", err)
		}
		got, _ = kv.Get(ctx, "a")
		if string(got) != "two" {
			t.Errorf("after overwrite Get = %q, want two", got)
		}
		if err := kv.Delete(ctx, "a"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := kv.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete: err = %v, want ErrNotFound", err)
		}
		if _, err := kv.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
		}
	})
}

func TestKV_PutIfAbsent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()

		cur, created, err := kv.PutIfAbsent(ctx, "k", []byte("first"))
		if err != nil || !created || string(cur) != "first" {
			t.Fatalf("first PutIfAbsent = %q, %v, %v", cur, created, err)
		}
		cur, created, err = kv.PutIfAbsent(ctx, "k", []byte("second"))
		if err != nil || created || string(cur) != "first" {
			t.Fatalf("second PutIfAbsent = %q, %v, %v; want first, false", cur, created, err)
		}
	})
}

func TestKV_ListInsertionOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		for i := range 5 {
			if err := kv.Put(ctx, fmt.Sprintf("k%d", i), []byte{byte(i)}); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}
		// Overwrite keeps position; delete removes it.
		_ = kv.Put(ctx, "k1", []byte{42})
		_ = kv.Delete(ctx, "k3")

		all, total, err := kv.List(ctx, 0, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		var keys []string
		for _, e := range all {
			keys = append(keys, e.Key)
		}
		want := []string{"k0", "k1", "k2", "k4"}
		if fmt.Sprint(keys) != fmt.Sprint(want) {
			t.Errorf("keys = %v, want %v", keys, want)
		}
		if all[1].Value[0] != 42 {
			t.Errorf("k1 value = %v, want 42", all[1].Value)
		}

		page, total, err := kv.List(ctx, 1, 2)
		if err != nil {
			t.Fatalf("List page: %v", err)
		}
		if total != 4 || len(page) != 2 || page[0].Key != "k1" || page[1].Key != "k2" {
			t.Errorf("page = %+v total %d", page, total)
		}

		empty, _, err := kv.List(ctx, 10, 5)
		if err != nil || len(empty) != 0 {
			t.Errorf("List past end = %v, %v", empty, err)
		}
	})
}

func TestKV_ConcurrentPutIfAbsent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		const n = 20
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, created, err := kv.PutIfAbsent(ctx, "race", []byte{byte(i)})
				if err != nil {
					t.Errorf("PutIfAbsent: %v", err)
					return
				}
				if created {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if winners != 1 {
			t.Errorf("winners = %d, want 1", winners)
		}
		_, total, _ := kv.List(ctx, 0, 0)
		if total != 1 {
			t.Errorf("total = %d, want 1", total)
		}
	})
}

type record struct {
	ID      string         `json:"id"`
	Score   *float64       `json:"score,omitempty"`
	Tags    []string       `json:"tags"`
	Extra   map[string]any `json:"extra,omitempty"`
	Created time.Time      `json:"created"`
}

func TestCollection_RoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		c := NewCollection[record](kv)
		score := 82.5
		in := record{
			ID:      "r1",
			Score:   &score,
			Tags:    []string{"a", "b"},
			Extra:   map[string]any{"k": "v"},
			Created: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		if err := c.Put(ctx, in.ID, in); err != nil {
			t.Fatalf("Put: %v", err)
		}
		out, err := c.Get(ctx, "r1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if out.ID != in.ID || out.Score == nil || *out.Score != score || len(out.Tags) != 2 {
			t.Errorf("Get = %+v, want %+v", out, in)
		}
		if !out.Created.Equal(in.Created) {
			t.Errorf("Created = %v, want %v", out.Created, in.Created)
		}
		if out.Extra["k"] != "v" {
			t.Errorf("Extra = %v", out.Extra)
		}

		got, created, err := c.PutIfAbsent(ctx, "r1", record{ID: "other"})
		if err != nil || created || got.ID != "r1" {
			t.Errorf("PutIfAbsent existing = %+v, %v, %v", got, created, err)
		}

		list, total, err := c.List(ctx, 0, 10)
		if err != nil || total != 1 || len(list) != 1 || list[0].ID != "r1" {
			t.Errorf("List = %+v, %d, %v", list, total, err)
		}

		if _, err := c.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get missing: %v", err)
		}
	})
}

func TestNewSQLite_RejectsBadTableName(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()
	if _, err := NewSQLite(db, "bad name;"); err == nil {
		t.Error("expected error for invalid table name")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"default memory", Options{}, false},
		{"sqlite", Options{Backend: BackendSQLite, DBPath: filepath.Join(t.TempDir(), "o.db")}, false},
		{"redis", Options{Backend: BackendRedis, RedisURL: "redis://" + mr.Addr()}, false},
		{"unknown", Options{Backend: "etcd"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, closer, err := Open(ctx, tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer closer.Close()
			kv, err := factory("leads")
			if err != nil {
				t.Fatalf("factory: %v", err)
			}
			if err := kv.Put(ctx, "x", []byte("y")); err != nil {
				t.Fatalf("Put: %v", err)
			}
		})
	}
}
