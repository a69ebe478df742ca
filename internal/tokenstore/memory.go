package tokenstore

import (
	"context"
	"sync"
)

type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Read(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Write(_ context.Context, key string, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteIf(_ context.Context, key string, expected string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.values[key]; !ok || v != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *Memory) ClearAll(_ context.Context) error {
	m.mu.Lock()
	for _, key := range Keys {
		delete(m.values, key)
	}
	m.mu.Unlock()
	return nil
}

// MemoryFactory keeps one Memory per namespace for the life of the process.
type MemoryFactory struct {
	mu     sync.Mutex
	stores map[string]*Memory
}

func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{stores: map[string]*Memory{}}
}

func (f *MemoryFactory) Scoped(namespace string) Store {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.stores[namespace]; ok {
		return s
	}
	s := NewMemory()
	f.stores[namespace] = s
	return s
}

// Drop forgets namespace. The next Scoped call for it starts empty.
func (f *MemoryFactory) Drop(namespace string) {
	f.mu.Lock()
	delete(f.stores, namespace)
	f.mu.Unlock()
}
