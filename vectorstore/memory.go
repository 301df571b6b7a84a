package vectorstore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryBackend is a brute-force in-process backend. Nothing survives a
// restart; it is meant for local runs without a vector database.
type MemoryBackend struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record)}
}

func (m *MemoryBackend) Add(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			return errors.New("record without id")
		}
		if _, ok := m.records[r.ID]; !ok {
			m.order = append(m.order, r.ID)
		}
		m.records[r.ID] = r
	}
	return nil
}

func (m *MemoryBackend) Nearest(_ context.Context, vector []float32, n int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 {
		n = 5
	}

	type scored struct {
		record Record
		score  float64
	}
	all := make([]scored, 0, len(m.order))
	for _, id := range m.order {
		r := m.records[id]
		all = append(all, scored{record: r, score: cosineSimilarity(vector, r.Vector)})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	if n > len(all) {
		n = len(all)
	}
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = all[i].record
	}
	return out, nil
}

func (m *MemoryBackend) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.records[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}

func (m *MemoryBackend) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.records = make(map[string]Record)
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
