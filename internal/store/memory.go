package store

import (
	"context"
	"slices"
	"sync"
)

var _ KV = (*Memory)(nil)

// Memory is a process-lifetime KV backend.
type Memory struct {
	mu    sync.RWMutex
	data  map[string][]byte
	order []string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		m.order = append(m.order, key)
	}
	m.data[key] = slices.Clone(value)
	return nil
}

func (m *Memory) PutIfAbsent(_ context.Context, key string, value []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.data[key]; ok {
		return slices.Clone(cur), false, nil
	}
	m.order = append(m.order, key)
	m.data[key] = slices.Clone(value)
	return slices.Clone(value), true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return ErrNotFound
	}
	delete(m.data, key)
	if i := slices.Index(m.order, key); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	return nil
}

func (m *Memory) List(_ context.Context, offset, limit int) ([]Entry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := len(m.order)
	lo, hi := window(offset, limit, total)
	out := make([]Entry, 0, hi-lo)
	for _, k := range m.order[lo:hi] {
		out = append(out, Entry{Key: k, Value: slices.Clone(m.data[k])})
	}
	return out, total, nil
}

// window clamps an offset/limit pair to [0,total]. A non-positive limit means no limit.
func window(offset, limit, total int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}
