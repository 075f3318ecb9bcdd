package vectorstore

import (
	"context"
	"sort"
	"sync"
)

// Memory is a brute-force in-process store.
type Memory struct {
	mu      sync.RWMutex
	dims    int
	resumes map[string]map[string]Record
}

// NewMemory creates an empty store. dims <= 0 accepts any size.
func NewMemory(dims int) *Memory {
	return &Memory{dims: dims, resumes: make(map[string]map[string]Record)}
}

// Upsert stores records, replacing any with the same chunk id.
func (m *Memory) Upsert(_ context.Context, records []Record) error {
	for _, r := range records {
		if err := checkDims(r.Vector, m.dims); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		chunks, ok := m.resumes[r.Chunk.ResumeID]
		if !ok {
			chunks = make(map[string]Record)
			m.resumes[r.Chunk.ResumeID] = chunks
		}
		r.Vector = append([]float32(nil), r.Vector...)
		chunks[r.Chunk.ID] = r
	}
	return nil
}

// Query returns up to k chunks of resumeID ordered by distance.
func (m *Memory) Query(_ context.Context, vector []float32, k int, resumeID string) ([]Neighbor, error) {
	if err := checkDims(vector, m.dims); err != nil {
		return nil, err
	}

	m.mu.RLock()
	out := make([]Neighbor, 0, len(m.resumes[resumeID]))
	for _, r := range m.resumes[resumeID] {
		out = append(out, Neighbor{Chunk: r.Chunk, Distance: CosineDistance(vector, r.Vector)})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance == out[j].Distance {
			return out[i].Chunk.ID < out[j].Chunk.ID
		}
		return out[i].Distance < out[j].Distance
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Count returns how many chunks resumeID has.
func (m *Memory) Count(_ context.Context, resumeID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.resumes[resumeID]), nil
}

// DeleteResume removes every chunk of resumeID.
func (m *Memory) DeleteResume(_ context.Context, resumeID string) error {
	m.mu.Lock()
	delete(m.resumes, resumeID)
	m.mu.Unlock()
	return nil
}

// Close does nothing.
func (m *Memory) Close() error { return nil }
