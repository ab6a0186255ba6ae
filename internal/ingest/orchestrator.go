package ingest

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/kmarsden/fabricstash/internal/classify"
	"github.com/kmarsden/fabricstash/internal/config"
	"github.com/kmarsden/fabricstash/internal/extract"
	"github.com/kmarsden/fabricstash/internal/paginate"
	"github.com/kmarsden/fabricstash/internal/types"
)

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*types.Page, error)
}

// ImageAcquirer downloads a record's images, soft-failing per image.
type ImageAcquirer interface {
	AcquireAll(ctx context.Context, imageURLs []string, recordName string) []string
}

// Upserter reconciles an extracted record against the catalog.
type Upserter interface {
	Upsert(ctx context.Context, fresh *types.Fabric) (*types.Fabric, bool, error)
}

// Orchestrator drives ingestion for one URL, a batch, or the full
// configured URL list. Every error is caught at the single-URL boundary
// and converted into an outcome; nothing aborts a batch.
type Orchestrator struct {
	cfg        *config.IngestConfig
	fetcher    Fetcher
	classifier *classify.Classifier
	extractor  *extract.Extractor
	paginator  *paginate.Paginator
	images     ImageAcquirer
	upserter   Upserter
	logger     *slog.Logger

	throttleMu sync.Mutex
	throttle   map[string]*hostThrottle
}

// hostThrottle spaces fetches to one host by the politeness delay.
type hostThrottle struct {
	mu        sync.Mutex
	lastFetch time.Time
}

// New wires an orchestrator from its collaborators.
func New(
	cfg *config.IngestConfig,
	fetcher Fetcher,
	classifier *classify.Classifier,
	extractor *extract.Extractor,
	paginator *paginate.Paginator,
	images ImageAcquirer,
	upserter Upserter,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		fetcher:    fetcher,
		classifier: classifier,
		extractor:  extractor,
		paginator:  paginator,
		images:     images,
		upserter:   upserter,
		logger:     logger.With("component", "orchestrator"),
		throttle:   make(map[string]*hostThrottle),
	}
}

// IngestBatch processes each URL independently with bounded concurrency
// and returns the partitioned outcomes. The configured batch timeout
// halts further work and returns partial results.
func (o *Orchestrator) IngestBatch(ctx context.Context, urls []string) types.BatchResult {
	start := time.Now()

	if o.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.BatchTimeout)
		defer cancel()
	}

	var (
		mu     sync.Mutex
		result types.BatchResult
	)

	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, rawURL := range urls {
		wg.Add(1)
		go func(rawURL string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				result.Add(types.Failure(rawURL, ctx.Err()))
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			sub := o.IngestURL(ctx, rawURL)
			mu.Lock()
			result.Merge(sub)
			mu.Unlock()
		}(rawURL)
	}
	wg.Wait()

	result.Elapsed = time.Since(start)
	o.logger.Info("batch complete",
		"urls", len(urls),
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"elapsed", result.Elapsed,
	)
	return result
}

// IngestAll runs the full configured URL list. Scheduled runs call this
// once per trigger; a wholly failed run is logged but never escalates.
func (o *Orchestrator) IngestAll(ctx context.Context) types.BatchResult {
	o.logger.Info("full ingestion run starting", "urls", len(o.cfg.URLs))
	result := o.IngestBatch(ctx, o.cfg.URLs)
	if result.Total() > 0 && len(result.Succeeded) == 0 {
		o.logger.Error("full ingestion run produced no successes",
			"failed", len(result.Failed))
	}
	return result
}

// IngestURL runs the state machine for one submitted URL. A detail page
// yields one outcome; a listing yields one outcome per discovered
// product, and failures on individual members do not abort the rest.
func (o *Orchestrator) IngestURL(ctx context.Context, rawURL string) types.BatchResult {
	var result types.BatchResult

	if err := types.ValidateURL(rawURL); err != nil {
		result.Add(types.Failure(rawURL, err))
		return result
	}

	page, err := o.fetchThrottled(ctx, rawURL)
	if err != nil {
		result.Add(types.Failure(rawURL, err))
		return result
	}

	switch o.classifier.Classify(page.FinalURL, page) {
	case classify.Listing:
		return o.ingestListing(ctx, page)
	default:
		result.Add(o.ingestDetailPage(ctx, page))
		return result
	}
}

// ingestListing walks all pages of a listing and runs every discovered
// detail URL through the detail path. Pagination is sequential (page
// N+1 is only known after page N); the member detail pages run through
// the detail path one by one to keep ordering and host pacing simple.
func (o *Orchestrator) ingestListing(ctx context.Context, page *types.Page) types.BatchResult {
	var result types.BatchResult

	walk := o.paginator.Start(page)
	for {
		productURL, ok, err := walk.Next(ctx)
		if err != nil {
			// A dead follow-up page ends the walk; members already
			// yielded were processed.
			o.logger.Warn("pagination stopped early", "listing", page.FinalURL, "error", err)
			break
		}
		if !ok {
			break
		}
		result.Add(o.ingestDetail(ctx, productURL))
	}

	o.logger.Info("listing ingested",
		"listing", page.FinalURL,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"page_cap_hit", walk.LimitHit,
	)
	return result
}

// ingestDetail fetches a product page and runs the detail path.
func (o *Orchestrator) ingestDetail(ctx context.Context, rawURL string) types.Outcome {
	page, err := o.fetchThrottled(ctx, rawURL)
	if err != nil {
		return types.Failure(rawURL, err)
	}
	return o.ingestDetailPage(ctx, page)
}

// ingestDetailPage is the detail path for an already-fetched page:
// extract, acquire images, upsert.
func (o *Orchestrator) ingestDetailPage(ctx context.Context, page *types.Page) types.Outcome {
	fabric, err := o.extractor.Extract(page)
	if err != nil {
		return types.Failure(page.URL, err)
	}

	fabric.ImagePaths = o.images.AcquireAll(ctx, fabric.ImageURLs, fabric.Name)

	stored, inserted, err := o.upserter.Upsert(ctx, fabric)
	if err != nil {
		return types.Failure(page.URL, err)
	}

	o.logger.Debug("url ingested",
		"url", stored.URL,
		"id", stored.ID,
		"inserted", inserted,
		"images", len(stored.ImagePaths),
	)
	return types.Success(page.URL, stored)
}

// fetchThrottled spaces page fetches per host by the politeness delay.
func (o *Orchestrator) fetchThrottled(ctx context.Context, rawURL string) (*types.Page, error) {
	if o.cfg.PolitenessDelay > 0 {
		if host := hostOf(rawURL); host != "" {
			if err := o.waitTurn(ctx, host); err != nil {
				return nil, err
			}
		}
	}
	return o.fetcher.Fetch(ctx, rawURL)
}

// waitTurn blocks until this host's politeness window has passed.
func (o *Orchestrator) waitTurn(ctx context.Context, host string) error {
	o.throttleMu.Lock()
	th, ok := o.throttle[host]
	if !ok {
		th = &hostThrottle{}
		o.throttle[host] = th
	}
	o.throttleMu.Unlock()

	th.mu.Lock()
	defer th.mu.Unlock()

	wait := o.cfg.PolitenessDelay - time.Since(th.lastFetch)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	th.lastFetch = time.Now()
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
