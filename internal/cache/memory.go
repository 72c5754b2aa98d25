package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory is a process-local Store, used in tests and when no persistence is wanted.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]Entry{}}
}

func (m *Memory) Get(_ context.Context, ns, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[ns][key]
	return e, ok, nil
}

func (m *Memory) Set(_ context.Context, ns, key string, value []byte) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[ns] == nil {
		m.data[ns] = map[string]Entry{}
	}
	m.data[ns][key] = Entry{Value: append(json.RawMessage(nil), value...), WrittenAt: time.Now().UTC()}
	return nil
}

func (m *Memory) Clear(_ context.Context, ns string) error {
	m.mu.Lock()
	delete(m.data, ns)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Stats(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.data))
	for ns, entries := range m.data {
		out[ns] = len(entries)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
