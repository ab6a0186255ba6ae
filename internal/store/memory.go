package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kmarsden/fabricstash/internal/types"
)

// Memory is an in-memory Catalog for tests and dev mode.
type Memory struct {
	mu     sync.RWMutex
	byID   map[int64]*types.Fabric
	byURL  map[string]int64
	nextID int64
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[int64]*types.Fabric),
		byURL:  make(map[string]int64),
		nextID: 1,
	}
}

func (m *Memory) FindByURL(_ context.Context, canonicalURL string) (*types.Fabric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byURL[canonicalURL]
	if !ok {
		return nil, types.ErrNotFound
	}
	return cloneFabric(m.byID[id]), nil
}

func (m *Memory) Insert(_ context.Context, f *types.Fabric) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byURL[f.URL]; exists {
		return 0, &types.StoreError{Op: "insert", Err: types.ErrInvalidURL}
	}

	f.ID = m.nextID
	m.nextID++
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	m.byID[f.ID] = cloneFabric(f)
	m.byURL[f.URL] = f.ID
	return f.ID, nil
}

func (m *Memory) Update(_ context.Context, f *types.Fabric) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.byID[f.ID]
	if !ok {
		return types.ErrNotFound
	}
	f.UpdatedAt = time.Now()
	clone := cloneFabric(f)
	m.byID[f.ID] = clone
	if existing.URL != f.URL {
		delete(m.byURL, existing.URL)
		m.byURL[f.URL] = f.ID
	}
	return nil
}

func (m *Memory) Get(_ context.Context, id int64) (*types.Fabric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.byID[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return cloneFabric(f), nil
}

func (m *Memory) List(_ context.Context, filter Filter) ([]*types.Fabric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*types.Fabric
	skipped := 0
	for _, id := range ids {
		f := m.byID[id]
		if filter.Rating != "" && f.Rating != filter.Rating {
			continue
		}
		if filter.Origin != "" && !strings.Contains(f.Origin, filter.Origin) {
			continue
		}
		if skipped < filter.Skip {
			skipped++
			continue
		}
		out = append(out, cloneFabric(f))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) UpdateRating(_ context.Context, id int64, rating types.Rating) (*types.Fabric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	f.Rating = rating
	f.UpdatedAt = time.Now()
	return cloneFabric(f), nil
}

func (m *Memory) Delete(_ context.Context, id int64) (*types.Fabric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byURL, f.URL)
	return f, nil
}

func (m *Memory) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{
		Total:   int64(len(m.byID)),
		Ratings: make(map[types.Rating]int64),
	}
	originSet := make(map[string]bool)
	for _, f := range m.byID {
		stats.Ratings[f.Rating]++
		if f.Origin != "" {
			originSet[f.Origin] = true
		}
	}
	for origin := range originSet {
		stats.Origins = append(stats.Origins, origin)
	}
	sort.Strings(stats.Origins)
	return stats, nil
}

func (m *Memory) Close(context.Context) error { return nil }

func cloneFabric(f *types.Fabric) *types.Fabric {
	clone := *f
	clone.ImageURLs = append([]string(nil), f.ImageURLs...)
	clone.ImagePaths = append([]string(nil), f.ImagePaths...)
	return &clone
}
