package storage

import (
	"context"
	"sync"
)

// Memory implements in-memory storage.
//
// Suitable for tests and for sessions that must not outlive the process.
type Memory struct {
	values sync.Map
}

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{}
}

// Get retrieves a value by key.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	value, ok := m.values.Load(key)
	if !ok {
		return "", false, nil
	}
	return value.(string), true, nil
}

// Set stores a value.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.values.Store(key, value)
	return nil
}

// Remove deletes a value.
func (m *Memory) Remove(ctx context.Context, key string) error {
	m.values.Delete(key)
	return nil
}

// Clear deletes every value.
func (m *Memory) Clear(ctx context.Context) error {
	m.values.Range(func(key, _ any) bool {
		m.values.Delete(key)
		return true
	})
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	n := 0
	m.values.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
