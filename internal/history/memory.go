package history

import (
	"context"
	"sync"
)

// DefaultMemoryLimit is how many jobs the in-memory store keeps.
const DefaultMemoryLimit = 500

// MemoryStore keeps the most recent records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	order   []string
	limit   int
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryStore{records: make(map[string]Record), limit: limit}
}

func (m *MemoryStore) Create(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[r.SessionID]; !ok {
		m.order = append(m.order, r.SessionID)
	}
	m.records[r.SessionID] = r

	for len(m.order) > m.limit {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.records, oldest)
	}
	return nil
}

func (m *MemoryStore) Finish(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.records[r.SessionID]
	if !ok {
		// Evicted while running; keep the terminal state anyway.
		m.order = append(m.order, r.SessionID)
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = prev.StartedAt
	}
	if r.LessonID == "" {
		r.LessonID = prev.LessonID
	}
	m.records[r.SessionID] = r
	for len(m.order) > m.limit {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.records, oldest)
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[sessionID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
