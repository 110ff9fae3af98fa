package session

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	data      []byte
	expiresAt time.Time
}

// MemoryBackend keeps sessions in process memory. Sessions are lost on
// restart and are not shared between instances.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]memoryRecord), now: time.Now}
}

func (m *MemoryBackend) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok || !rec.expiresAt.After(m.now()) {
		return nil, nil
	}
	return append([]byte(nil), rec.data...), nil
}

func (m *MemoryBackend) Save(_ context.Context, id string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = memoryRecord{data: append([]byte(nil), data...), expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryBackend) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := m.now()
	for id, rec := range m.records {
		if !rec.expiresAt.After(now) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored records, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
