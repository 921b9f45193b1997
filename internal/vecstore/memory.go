package vecstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chorale/internal/embedding"
)

// MemoryStore is an in-process Store. It exists for tests and for
// running without a Qdrant server; semantics match QdrantStore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dims   int
	points map[string]Point
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, name string, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		if col.dims != dims {
			return fmt.Errorf("collection %s exists with dims=%d, requested %d", name, col.dims, dims)
		}
		return nil
	}
	s.collections[name] = &memCollection{dims: dims, points: make(map[string]Point)}
	return nil
}

func (s *MemoryStore) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("unknown collection: %s", collection)
	}
	for _, p := range points {
		if len(p.Vector) != col.dims {
			return fmt.Errorf("point %s has %d dims, collection %s expects %d", p.ID, len(p.Vector), collection, col.dims)
		}
		col.points[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection: %s", collection)
	}

	var hits []ScoredPoint
	for _, p := range col.points {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		sim, err := embedding.CosineSimilarity(vector, p.Vector)
		if err != nil {
			return nil, err
		}
		hits = append(hits, ScoredPoint{ID: p.ID, Score: float32(sim), Payload: p.Payload})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *MemoryStore) Delete(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("unknown collection: %s", collection)
	}
	for _, id := range ids {
		delete(col.points, id)
	}
	return nil
}

func (s *MemoryStore) Scroll(_ context.Context, collection string, filter *Filter, limit int) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection: %s", collection)
	}

	var out []Point
	for _, p := range col.points {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context, collection string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("unknown collection: %s", collection)
	}
	return uint64(len(col.points)), nil
}

func (s *MemoryStore) Close() error { return nil }

// matchesFilter evaluates the conjunction against a payload. A match
// condition succeeds on an equal string field or on list membership;
// a range condition succeeds on a numeric field within bounds.
func matchesFilter(payload map[string]any, filter *Filter) bool {
	if filter == nil {
		return true
	}
	for _, cond := range filter.Must {
		val, ok := payload[cond.Key]
		if !ok {
			return false
		}
		if cond.Range != nil {
			num, ok := asFloat(val)
			if !ok {
				return false
			}
			if cond.Range.GTE != nil && num < *cond.Range.GTE {
				return false
			}
			if cond.Range.LT != nil && num >= *cond.Range.LT {
				return false
			}
			continue
		}
		switch v := val.(type) {
		case string:
			if v != cond.MatchValue {
				return false
			}
		case []string:
			found := false
			for _, item := range v {
				if item == cond.MatchValue {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
