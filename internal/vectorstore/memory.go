package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"
)

type memoryCollection struct {
	createdAt time.Time
	dimension int
	chunks    []Chunk
	index     map[string]int
}

// MemoryStore keeps collections in process memory and searches them by brute
// force. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
		now:         time.Now,
	}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, name string) (*Collection, error) {
	if name == "" {
		return nil, ErrEmptyCollection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensureLocked(name)
	return &Collection{Name: name, CreatedAt: c.createdAt}, nil
}

func (s *MemoryStore) ensureLocked(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{createdAt: s.now(), index: make(map[string]int)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) GetCollection(_ context.Context, name string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return &Collection{Name: name, CreatedAt: c.createdAt}, nil
}

func (s *MemoryStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return ErrCollectionNotFound
	}
	delete(s.collections, name)
	return nil
}

func (s *MemoryStore) ListCollections(_ context.Context) ([]Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Collection, 0, len(s.collections))
	for name, c := range s.collections {
		out = append(out, Collection{Name: name, CreatedAt: c.createdAt})
	}
	slices.SortFunc(out, func(a, b Collection) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *MemoryStore) Insert(_ context.Context, name string, chunks []Chunk) error {
	if name == "" {
		return ErrEmptyCollection
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := 0
	if c, ok := s.collections[name]; ok {
		dim = c.dimension
	}
	for _, ch := range chunks {
		if ch.ID == "" {
			return fmt.Errorf("insert into %s failed: chunk id is empty", name)
		}
		if dim == 0 {
			dim = len(ch.Embedding)
		}
		if len(ch.Embedding) != dim {
			return fmt.Errorf("insert %s failed: %w", ch.ID, ErrDimensionMismatch)
		}
	}

	c := s.ensureLocked(name)
	c.dimension = dim
	for _, ch := range chunks {
		ch.Embedding = slices.Clone(ch.Embedding)
		if i, ok := c.index[ch.ID]; ok {
			c.chunks[i] = ch
			continue
		}
		c.index[ch.ID] = len(c.chunks)
		c.chunks = append(c.chunks, ch)
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, name string, vector []float32, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if k <= 0 || len(c.chunks) == 0 {
		return []Match{}, nil
	}
	if len(vector) != c.dimension {
		return nil, ErrDimensionMismatch
	}

	matches := make([]Match, 0, len(c.chunks))
	for _, ch := range c.chunks {
		matches = append(matches, Match{
			ID:       ch.ID,
			Document: ch.Document,
			Metadata: ch.Metadata,
			Distance: l2(ch.Embedding, vector),
		})
	}
	slices.SortStableFunc(matches, func(a, b Match) int { return cmp.Compare(a.Distance, b.Distance) })
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *MemoryStore) Stats(_ context.Context, name string) (*CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	sources := map[string]struct{}{}
	descriptions := map[string]struct{}{}
	for _, ch := range c.chunks {
		sources[ch.Metadata.Source] = struct{}{}
		descriptions[ch.Metadata.Description] = struct{}{}
	}
	return &CollectionStats{
		Name:         name,
		ChunkCount:   len(c.chunks),
		Sources:      sortedKeys(sources),
		Descriptions: sortedKeys(descriptions),
	}, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
