package store

import (
	"context"

	"github.com/kmarsden/fabricstash/internal/types"
)

// Filter narrows catalog listings.
type Filter struct {
	Rating types.Rating // empty = all
	Origin string       // substring match on host; empty = all
	Skip   int
	Limit  int // 0 = server default
}

// Stats aggregates the catalog for the stats endpoint.
type Stats struct {
	Total   int64                  `json:"total"`
	Ratings map[types.Rating]int64 `json:"ratings"`
	Origins []string               `json:"origins"`
}

// Catalog is the fabric record store. FindByURL keys on the canonical
// URL; Insert assigns the record's numeric ID.
type Catalog interface {
	FindByURL(ctx context.Context, canonicalURL string) (*types.Fabric, error)
	Insert(ctx context.Context, f *types.Fabric) (int64, error)
	Update(ctx context.Context, f *types.Fabric) error

	Get(ctx context.Context, id int64) (*types.Fabric, error)
	List(ctx context.Context, filter Filter) ([]*types.Fabric, error)
	UpdateRating(ctx context.Context, id int64, rating types.Rating) (*types.Fabric, error)
	Delete(ctx context.Context, id int64) (*types.Fabric, error)
	Stats(ctx context.Context) (*Stats, error)

	Close(ctx context.Context) error
}
