package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kmarsden/fabricstash/internal/store"
	"github.com/kmarsden/fabricstash/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeIngestor records one canned record per submitted URL.
type fakeIngestor struct {
	catalog store.Catalog
	fail    map[string]string // url -> failure reason
}

func (fi *fakeIngestor) IngestURL(ctx context.Context, rawURL string) types.BatchResult {
	var result types.BatchResult
	if reason, ok := fi.fail[rawURL]; ok {
		result.Add(types.Failure(rawURL, fmt.Errorf("%s", reason)))
		return result
	}
	f := &types.Fabric{Name: "Scraped " + rawURL, URL: rawURL, Rating: types.RatingUnrated}
	if _, err := fi.catalog.Insert(ctx, f); err != nil {
		result.Add(types.Failure(rawURL, err))
		return result
	}
	result.Add(types.Success(rawURL, f))
	return result
}

func (fi *fakeIngestor) IngestBatch(ctx context.Context, urls []string) types.BatchResult {
	var result types.BatchResult
	for _, u := range urls {
		result.Merge(fi.IngestURL(ctx, u))
	}
	return result
}

// fakeImages tracks removals in a temp dir.
type fakeImages struct {
	dir     string
	removed []string
}

func (fi *fakeImages) Remove(relPath string) error {
	fi.removed = append(fi.removed, relPath)
	return nil
}

func (fi *fakeImages) Dir() string { return fi.dir }

type fixture struct {
	catalog *store.Memory
	images  *fakeImages
	server  *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := store.NewMemory()
	images := &fakeImages{dir: t.TempDir()}
	ingestor := &fakeIngestor{catalog: catalog, fail: map[string]string{}}
	return &fixture{
		catalog: catalog,
		images:  images,
		server:  NewServer(0, catalog, ingestor, images, testLogger),
	}
}

func (fx *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func (fx *fixture) seed(t *testing.T, name, url string, rating types.Rating) *types.Fabric {
	t.Helper()
	f := &types.Fabric{Name: name, URL: url, Rating: rating, Origin: types.Origin(url)}
	if _, err := fx.catalog.Insert(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestHealth(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(t, "GET", "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListFabrics(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, "Linen", "https://a.example.com/1", types.RatingYes)
	fx.seed(t, "Wool", "https://a.example.com/2", types.RatingNo)
	fx.seed(t, "Silk", "https://b.example.com/3", types.RatingYes)

	rec := fx.do(t, "GET", "/api/fabrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if got := decode[[]*types.Fabric](t, rec); len(got) != 3 {
		t.Errorf("expected 3 fabrics, got %d", len(got))
	}

	rec = fx.do(t, "GET", "/api/fabrics?rating=yes", nil)
	if got := decode[[]*types.Fabric](t, rec); len(got) != 2 {
		t.Errorf("expected 2 rated yes, got %d", len(got))
	}

	rec = fx.do(t, "GET", "/api/fabrics?origin=b.example.com", nil)
	if got := decode[[]*types.Fabric](t, rec); len(got) != 1 {
		t.Errorf("expected 1 from b.example.com, got %d", len(got))
	}

	rec = fx.do(t, "GET", "/api/fabrics?rating=amazing", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad rating, got %d", rec.Code)
	}
}

func TestListFabricsEmptyIsArray(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(t, "GET", "/api/fabrics", nil)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty catalog must serialize as [], got %q", body)
	}
}

func TestGetFabric(t *testing.T) {
	fx := newFixture(t)
	f := fx.seed(t, "Linen", "https://a.example.com/1", types.RatingUnrated)

	rec := fx.do(t, "GET", fmt.Sprintf("/api/fabrics/%d", f.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[*types.Fabric](t, rec); got.Name != "Linen" {
		t.Errorf("unexpected fabric %+v", got)
	}

	if rec := fx.do(t, "GET", "/api/fabrics/999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := fx.do(t, "GET", "/api/fabrics/abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", rec.Code)
	}
}

func TestUpdateRating(t *testing.T) {
	fx := newFixture(t)
	f := fx.seed(t, "Linen", "https://a.example.com/1", types.RatingUnrated)

	rec := fx.do(t, "PATCH", fmt.Sprintf("/api/fabrics/%d/rating", f.ID),
		map[string]string{"rating": "yes"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if got := decode[*types.Fabric](t, rec); got.Rating != types.RatingYes {
		t.Errorf("expected rating yes, got %q", got.Rating)
	}

	rec = fx.do(t, "PATCH", fmt.Sprintf("/api/fabrics/%d/rating", f.ID),
		map[string]string{"rating": "amazing"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid rating, got %d", rec.Code)
	}

	rec = fx.do(t, "PATCH", "/api/fabrics/999/rating", map[string]string{"rating": "no"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteFabricCascadesImages(t *testing.T) {
	fx := newFixture(t)
	f := &types.Fabric{
		Name:       "Linen",
		URL:        "https://a.example.com/1",
		Rating:     types.RatingUnrated,
		ImagePaths: []string{"linen_aaaa.jpg", "linen_bbbb.jpg"},
	}
	if _, err := fx.catalog.Insert(context.Background(), f); err != nil {
		t.Fatal(err)
	}

	rec := fx.do(t, "DELETE", fmt.Sprintf("/api/fabrics/%d", f.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	if _, err := fx.catalog.Get(context.Background(), f.ID); err == nil {
		t.Error("fabric still present after delete")
	}
	if len(fx.images.removed) != 2 {
		t.Errorf("expected 2 image removals, got %v", fx.images.removed)
	}

	if rec := fx.do(t, "DELETE", fmt.Sprintf("/api/fabrics/%d", f.ID), nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestScrape(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, "POST", "/api/fabrics/scrape",
		map[string]string{"url": "https://shop.example.com/linen"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	got := decode[*types.Fabric](t, rec)
	if got.ID == 0 {
		t.Error("scraped fabric not persisted")
	}

	if rec := fx.do(t, "POST", "/api/fabrics/scrape", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing url, got %d", rec.Code)
	}
}

func TestScrapeFailure(t *testing.T) {
	fx := newFixture(t)
	ingestor := &fakeIngestor{
		catalog: fx.catalog,
		fail:    map[string]string{"https://dead.example.com/x": "HTTP 404"},
	}
	fx.server = NewServer(0, fx.catalog, ingestor, fx.images, testLogger)

	rec := fx.do(t, "POST", "/api/fabrics/scrape",
		map[string]string{"url": "https://dead.example.com/x"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body)
	}
	if body := decode[map[string]string](t, rec); !strings.Contains(body["error"], "404") {
		t.Errorf("expected failure reason in error, got %v", body)
	}
}

func TestScrapeBatch(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, "POST", "/api/fabrics/scrape-batch", map[string][]string{
		"urls": {"https://shop.example.com/a", "https://shop.example.com/b"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	got := decode[types.BatchResult](t, rec)
	if len(got.Succeeded) != 2 {
		t.Errorf("expected 2 successes, got %+v", got)
	}

	if rec := fx.do(t, "POST", "/api/fabrics/scrape-batch", map[string][]string{"urls": {}}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty url list, got %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, "Linen", "https://a.example.com/1", types.RatingYes)
	fx.seed(t, "Wool", "https://b.example.com/2", types.RatingUnrated)

	rec := fx.do(t, "GET", "/api/fabrics/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	got := decode[store.Stats](t, rec)
	if got.Total != 2 {
		t.Errorf("expected total 2, got %d", got.Total)
	}
	if len(got.Origins) != 2 {
		t.Errorf("expected 2 origins, got %v", got.Origins)
	}
}

func TestStaticImages(t *testing.T) {
	fx := newFixture(t)
	if err := os.WriteFile(filepath.Join(fx.images.Dir(), "linen_aaaa.jpg"), []byte("jpegbytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := fx.do(t, "GET", "/static/images/linen_aaaa.jpg", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "jpegbytes" {
		t.Errorf("unexpected body %q", rec.Body)
	}
}
