// Package persist defines the key/value persistence contract used by the
// stores, an in-memory implementation, and an ordered background writer.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Adapter is durable key/value storage for serialized snapshots.
// Get reports ok=false when the key is absent.
type Adapter interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// GetJSON loads key and decodes it into out. ok is false when the key is absent.
func GetJSON(ctx context.Context, a Adapter, key string, out any) (bool, error) {
	raw, ok, err := a.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, a Adapter, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return a.Set(ctx, key, string(b))
}

// Memory is an in-process Adapter. The zero value is not usable; use NewMemory.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory { return &Memory{data: make(map[string]string)} }

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
