package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"webrag/internal/rag"
	"webrag/internal/vector"
)

// Store is an in-process vector store partitioned by context URL. Distances
// are squared Euclidean, matching the l2-squared metric of the Weaviate class.
type Store struct {
	mu         sync.RWMutex
	partitions map[string][]vector.Record
	dim        int
}

func NewStore() *Store {
	return &Store{partitions: make(map[string][]vector.Record)}
}

func (s *Store) Insert(ctx context.Context, records []vector.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	for _, r := range records {
		if len(r.Vector) == 0 {
			return 0, fmt.Errorf("record %d of %s has no vector", r.ChunkIndex, r.ContextURL)
		}
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim {
			return 0, fmt.Errorf("vector dimension %d does not match store dimension %d", len(r.Vector), dim)
		}
	}
	s.dim = dim
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		s.partitions[r.ContextURL] = append(s.partitions[r.ContextURL], r)
	}
	return len(records), nil
}

func (s *Store) Search(ctx context.Context, vec []float32, contextURL string, topK int) ([]rag.Chunk, error) {
	if topK <= 0 {
		return []rag.Chunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.partitions[contextURL]
	hits := make([]rag.Chunk, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != len(vec) {
			return nil, fmt.Errorf("query dimension %d does not match stored dimension %d", len(vec), len(r.Vector))
		}
		hits = append(hits, rag.Chunk{ContextURL: r.ContextURL, Text: r.Text, Distance: squaredL2(vec, r.Vector)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *Store) ListContexts(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.partitions))
	for url := range s.partitions {
		out = append(out, url)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) DeleteContext(ctx context.Context, contextURL string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.partitions[contextURL])
	delete(s.partitions, contextURL)
	return n, nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, records := range s.partitions {
		total += len(records)
	}
	return total, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
