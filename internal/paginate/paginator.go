package paginate

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kmarsden/fabricstash/internal/types"
)

// Fetcher is the page retrieval dependency. Pagination is inherently
// sequential per listing: page N's next link is only known after page N
// is parsed.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*types.Page, error)
}

// Paginator enumerates the product detail URLs of a listing across all
// of its pages.
type Paginator struct {
	fetcher  Fetcher
	maxPages int
	logger   *slog.Logger
}

// New creates a paginator. maxPages guards against pagination loops on
// the source site.
func New(fetcher Fetcher, maxPages int, logger *slog.Logger) *Paginator {
	return &Paginator{
		fetcher:  fetcher,
		maxPages: maxPages,
		logger:   logger.With("component", "paginator"),
	}
}

// Walk is a lazy, finite, non-restartable traversal of one listing.
// Product URLs come out in page order; URLs repeated across pages (a
// stale next link may loop back) are yielded once.
type Walk struct {
	p       *Paginator
	queued  []string
	nextURL string
	pages   int
	seen    map[string]bool
	done    bool

	// LimitHit records that the page cap stopped the traversal. It is
	// a normal termination, not a failure.
	LimitHit bool
}

// Start begins a traversal from an already-fetched listing page.
func (p *Paginator) Start(page *types.Page) *Walk {
	w := &Walk{
		p:    p,
		seen: make(map[string]bool),
	}
	w.ingestPage(page)
	return w
}

// Next returns the next product URL. ok is false when the listing is
// exhausted. A fetch error on a follow-up page ends the walk with the
// URLs accumulated so far.
func (w *Walk) Next(ctx context.Context) (string, bool, error) {
	for {
		if len(w.queued) > 0 {
			u := w.queued[0]
			w.queued = w.queued[1:]
			return u, true, nil
		}
		if w.done || w.nextURL == "" {
			return "", false, nil
		}
		if w.pages >= w.p.maxPages {
			w.p.logger.Warn("page cap reached, stopping pagination",
				"pages", w.pages, "cap", w.p.maxPages)
			w.LimitHit = true
			w.done = true
			return "", false, nil
		}

		pageURL := w.nextURL
		w.nextURL = ""
		page, err := w.p.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			w.done = true
			return "", false, err
		}

		before := len(w.seen)
		w.ingestPage(page)
		if len(w.seen) == before {
			// A page yielding zero new product links means the next
			// link looped back; stop here.
			w.p.logger.Debug("no new product links, stopping pagination", "url", pageURL)
			w.done = true
		}
	}
}

// ingestPage extracts product links and the next-page URL from a page.
func (w *Walk) ingestPage(page *types.Page) {
	w.pages++

	doc, err := page.Document()
	if err != nil {
		w.done = true
		return
	}

	links := productLinks(doc, page.FinalURL)
	added := 0
	for _, link := range links {
		key := types.CanonicalURL(link)
		if w.seen[key] {
			continue
		}
		w.seen[key] = true
		w.queued = append(w.queued, link)
		added++
	}

	w.nextURL = nextPageURL(doc, page.FinalURL)

	w.p.logger.Debug("listing page ingested",
		"url", page.FinalURL,
		"page", w.pages,
		"products", added,
		"next", w.nextURL != "",
	)
}

// productLinkSelectors match product anchors on listing pages, most
// specific first.
var productLinkSelectors = []string{
	"a[href*=\"/product/\"]",
	"a[href*=\"/fabric/\"]",
	".product-card a[href]",
	".product-item a[href]",
	"[class*=\"product\"] a[href]",
}

var pageQueryRe = regexp.MustCompile(`[?&](?:p|page)=\d+`)

// productLinks extracts candidate product URLs in document order.
func productLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string

	for _, selector := range productLinkSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			abs := resolveLink(base, href)
			if abs == "" {
				return
			}
			// Pagination links to the listing itself are not products.
			if pageQueryRe.MatchString(abs) {
				return
			}
			if !seen[abs] {
				seen[abs] = true
				links = append(links, abs)
			}
		})
		if len(links) > 0 {
			break
		}
	}

	return links
}

var nextTextRe = regexp.MustCompile(`(?i)^\s*(next|→|»|>)\s*$`)

// nextPageURL finds the next-page affordance: an explicit next link
// first, then a page-number increment in the listing's own URL.
func nextPageURL(doc *goquery.Document, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	explicit := []string{
		"a[rel=\"next\"]",
		"a.next",
		"[class*=\"pagination\"] a[class*=\"next\"]",
		"a[aria-label*=\"ext\"]",
	}
	for _, selector := range explicit {
		if href, ok := doc.Find(selector).First().Attr("href"); ok {
			if abs := resolveLink(base, href); abs != "" {
				return abs
			}
		}
	}

	// Anchor whose visible text is a next marker.
	var textNext string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !nextTextRe.MatchString(sel.Text()) {
			return true
		}
		if href, ok := sel.Attr("href"); ok {
			if abs := resolveLink(base, href); abs != "" {
				textNext = abs
				return false
			}
		}
		return true
	})
	if textNext != "" {
		return textNext
	}

	// Predictable page-number increment: only when the listing URL
	// already carries a page parameter.
	q := base.Query()
	for _, key := range []string{"p", "page"} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				continue
			}
			q.Set(key, strconv.Itoa(n+1))
			next := *base
			next.RawQuery = q.Encode()
			return next.String()
		}
	}

	return ""
}

// resolveLink absolutizes an anchor href, dropping non-HTTP schemes.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}
