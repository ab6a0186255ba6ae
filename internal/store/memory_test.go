package store

import (
	"context"
	"errors"
	"testing"

	"github.com/kmarsden/fabricstash/internal/types"
)

func seed(t *testing.T, m *Memory, url string, rating types.Rating, origin string) *types.Fabric {
	t.Helper()
	f := &types.Fabric{Name: "f-" + url, URL: url, Rating: rating, Origin: origin}
	if _, err := m.Insert(context.Background(), f); err != nil {
		t.Fatalf("insert %s: %v", url, err)
	}
	return f
}

func TestMemoryInsertAndLookup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	f := seed(t, m, "https://a.example.com/x", types.RatingUnrated, "a.example.com")
	if f.ID != 1 {
		t.Errorf("expected first ID 1, got %d", f.ID)
	}

	byURL, err := m.FindByURL(ctx, f.URL)
	if err != nil {
		t.Fatalf("find by url: %v", err)
	}
	if byURL.ID != f.ID {
		t.Errorf("lookup mismatch: %d vs %d", byURL.ID, f.ID)
	}

	if _, err := m.FindByURL(ctx, "https://a.example.com/missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Get(ctx, 999); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Duplicate URL is rejected.
	if _, err := m.Insert(ctx, &types.Fabric{Name: "dup", URL: f.URL}); err == nil {
		t.Error("expected duplicate URL insert to fail")
	}
}

func TestMemoryListFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	seed(t, m, "https://a.example.com/1", types.RatingYes, "a.example.com")
	seed(t, m, "https://a.example.com/2", types.RatingNo, "a.example.com")
	seed(t, m, "https://b.example.com/3", types.RatingYes, "b.example.com")

	all, err := m.List(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].ID > all[1].ID || all[1].ID > all[2].ID {
		t.Error("expected list sorted by ID")
	}

	yes, _ := m.List(ctx, Filter{Rating: types.RatingYes})
	if len(yes) != 2 {
		t.Errorf("expected 2 rated yes, got %d", len(yes))
	}

	bOnly, _ := m.List(ctx, Filter{Origin: "b.example.com"})
	if len(bOnly) != 1 {
		t.Errorf("expected 1 from b.example.com, got %d", len(bOnly))
	}

	paged, _ := m.List(ctx, Filter{Skip: 1, Limit: 1})
	if len(paged) != 1 || paged[0].ID != 2 {
		t.Errorf("expected page [2], got %v", paged)
	}
}

func TestMemoryUpdateRatingAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	f := seed(t, m, "https://a.example.com/1", types.RatingUnrated, "a.example.com")

	rated, err := m.UpdateRating(ctx, f.ID, types.RatingMaybe)
	if err != nil {
		t.Fatalf("update rating: %v", err)
	}
	if rated.Rating != types.RatingMaybe {
		t.Errorf("expected maybe, got %q", rated.Rating)
	}

	deleted, err := m.Delete(ctx, f.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != f.ID {
		t.Errorf("deleted wrong record %d", deleted.ID)
	}
	if _, err := m.Get(ctx, f.ID); !errors.Is(err, types.ErrNotFound) {
		t.Error("record still present after delete")
	}
	if _, err := m.FindByURL(ctx, f.URL); !errors.Is(err, types.ErrNotFound) {
		t.Error("URL index still present after delete")
	}
	if _, err := m.Delete(ctx, f.ID); !errors.Is(err, types.ErrNotFound) {
		t.Error("second delete should report not found")
	}
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	seed(t, m, "https://a.example.com/1", types.RatingYes, "a.example.com")
	seed(t, m, "https://a.example.com/2", types.RatingYes, "a.example.com")
	seed(t, m, "https://b.example.com/3", types.RatingUnrated, "b.example.com")

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	if stats.Ratings[types.RatingYes] != 2 {
		t.Errorf("expected 2 yes, got %d", stats.Ratings[types.RatingYes])
	}
	if len(stats.Origins) != 2 || stats.Origins[0] != "a.example.com" {
		t.Errorf("unexpected origins %v", stats.Origins)
	}
}
