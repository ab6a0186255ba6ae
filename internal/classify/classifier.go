package classify

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/kmarsden/fabricstash/internal/types"
)

// Kind is the classification of a fetched page.
type Kind string

const (
	// Detail is a page describing exactly one product.
	Detail Kind = "detail"

	// Listing is a page enumerating multiple products, possibly paginated.
	Listing Kind = "listing"
)

// Classifier decides whether a page is a single-product detail page or a
// multi-product listing. Ambiguous pages classify as Detail: a false
// listing risks silently ingesting zero products, a false detail only a
// degraded single record.
type Classifier struct {
	logger *slog.Logger
}

// New creates a page classifier.
func New(logger *slog.Logger) *Classifier {
	return &Classifier{logger: logger.With("component", "classifier")}
}

// listingPathSegments are URL path fragments typical of catalog listings.
var listingPathSegments = []string{
	"/all-fabrics/",
	"/search",
	"/collection/",
	"/collections/",
	"/category/",
	"/catalog/",
}

// listingQueryKeys are query parameters typical of sorted or paginated
// catalog listings.
var listingQueryKeys = []string{"order", "sort", "p", "page"}

// gridSelectors match product-grid containers on listing pages.
var gridSelectors = []string{
	".product-grid",
	".products-grid",
	".product-list",
	"ul.products",
	"[class*=\"product-card\"]",
	"[class*=\"product-item\"]",
}

// paginationSelectors match pagination controls.
var paginationSelectors = []string{
	".pagination",
	"nav[aria-label*=\"agination\"]",
	"a[rel=\"next\"]",
	"[class*=\"pagination\"]",
}

// Classify inspects the URL and, when a page is supplied, its document.
func (c *Classifier) Classify(rawURL string, page *types.Page) Kind {
	if c.urlLooksLikeListing(rawURL) {
		c.logger.Debug("classified by URL shape", "url", rawURL, "kind", Listing)
		return Listing
	}

	if page != nil && c.docLooksLikeListing(page) {
		c.logger.Debug("classified by document", "url", rawURL, "kind", Listing)
		return Listing
	}

	return Detail
}

// urlLooksLikeListing matches known listing URL signatures.
func (c *Classifier) urlLooksLikeListing(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	lowerPath := strings.ToLower(u.Path)
	for _, seg := range listingPathSegments {
		if strings.Contains(lowerPath, seg) {
			return true
		}
	}

	q := u.Query()
	for _, key := range listingQueryKeys {
		if q.Get(key) != "" {
			return true
		}
	}

	return false
}

// docLooksLikeListing matches pagination controls or a product grid
// with more than one product link.
func (c *Classifier) docLooksLikeListing(page *types.Page) bool {
	doc, err := page.Document()
	if err != nil {
		return false
	}

	for _, sel := range paginationSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}

	for _, sel := range gridSelectors {
		if doc.Find(sel).Length() > 1 {
			return true
		}
	}

	// A single grid container still counts if it holds several links.
	for _, sel := range gridSelectors {
		if grid := doc.Find(sel).First(); grid.Length() > 0 {
			if grid.Find("a[href]").Length() > 1 {
				return true
			}
		}
	}

	return false
}
