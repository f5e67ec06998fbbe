package resilience

import (
	"context"
	"encoding/json"
	"sync"
)

// MemorySnapshots is an in-process SnapshotStore. It can be seeded with a
// static dataset so deployments without a shared snapshot store still
// degrade to a known state instead of hard-failing.
type MemorySnapshots struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemorySnapshots creates an empty in-memory snapshot store.
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{data: make(map[string][]byte)}
}

// Put stores the JSON encoding of v under key.
func (m *MemorySnapshots) Put(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

// Get decodes the last value stored under key into out.
func (m *MemorySnapshots) Get(_ context.Context, key string, out any) error {
	m.mu.RLock()
	data, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return ErrNoSnapshot
	}

	return json.Unmarshal(data, out)
}

// Seed pre-populates a key, typically from a static fallback dataset.
func (m *MemorySnapshots) Seed(key string, v any) error {
	return m.Put(context.Background(), key, v)
}

// Ensure MemorySnapshots implements SnapshotStore.
var _ SnapshotStore = (*MemorySnapshots)(nil)
