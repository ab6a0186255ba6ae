package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kmarsden/fabricstash/internal/types"
)

// Upserter reconciles freshly extracted records against the catalog by
// canonical URL. Writers for the same URL serialize on a keyed lock, so
// overlapping batch runs see at-most-one effective writer per URL.
type Upserter struct {
	catalog Catalog
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*urlLock
}

// urlLock serializes writers for one canonical URL. Entries are
// refcounted and pruned once the last writer releases, so the map
// stays bounded by in-flight URLs rather than every URL ever seen.
type urlLock struct {
	mu   sync.Mutex
	refs int
}

// NewUpserter creates an upsert engine over the given catalog.
func NewUpserter(catalog Catalog, logger *slog.Logger) *Upserter {
	return &Upserter{
		catalog: catalog,
		logger:  logger.With("component", "upserter"),
		locks:   make(map[string]*urlLock),
	}
}

// Upsert inserts fresh if its URL is absent, otherwise updates the
// existing record's descriptive fields in place. ID, URL, rating, and
// created-at never change on re-ingest. The image list is replaced
// wholesale (the extractor already de-duplicates by source URL).
// Returns the stored record and whether it was newly inserted.
func (u *Upserter) Upsert(ctx context.Context, fresh *types.Fabric) (*types.Fabric, bool, error) {
	key := fresh.URL
	lock := u.lockKey(key)
	defer u.unlockKey(key, lock)

	existing, err := u.catalog.FindByURL(ctx, key)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, false, err
	}

	if existing == nil {
		fresh.Rating = types.RatingUnrated
		if _, err := u.catalog.Insert(ctx, fresh); err != nil {
			return nil, false, err
		}
		u.logger.Info("fabric added", "id", fresh.ID, "url", key, "name", fresh.Name)
		return fresh, true, nil
	}

	merged := mergeFabric(existing, fresh)
	if err := u.catalog.Update(ctx, merged); err != nil {
		return nil, false, err
	}
	u.logger.Info("fabric updated", "id", merged.ID, "url", key, "name", merged.Name)
	return merged, false, nil
}

// mergeFabric applies fresh descriptive fields onto the existing
// record's identity and user state.
func mergeFabric(existing, fresh *types.Fabric) *types.Fabric {
	merged := *fresh
	merged.ID = existing.ID
	merged.URL = existing.URL
	merged.Rating = existing.Rating
	merged.CreatedAt = existing.CreatedAt
	return &merged
}

// lockKey acquires the mutex guarding one canonical URL.
func (u *Upserter) lockKey(key string) *urlLock {
	u.mu.Lock()
	lock, ok := u.locks[key]
	if !ok {
		lock = &urlLock{}
		u.locks[key] = lock
	}
	lock.refs++
	u.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// unlockKey releases the URL's mutex and prunes the entry once no
// writer holds or waits on it.
func (u *Upserter) unlockKey(key string, lock *urlLock) {
	lock.mu.Unlock()

	u.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(u.locks, key)
	}
	u.mu.Unlock()
}
