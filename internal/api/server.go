package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kmarsden/fabricstash/internal/store"
	"github.com/kmarsden/fabricstash/internal/types"
)

// Ingestor is the orchestrator surface the API relays submissions to.
type Ingestor interface {
	IngestURL(ctx context.Context, rawURL string) types.BatchResult
	IngestBatch(ctx context.Context, urls []string) types.BatchResult
}

// ImageStore removes stored images when a catalog entry is deleted and
// names the directory the static file server exposes.
type ImageStore interface {
	Remove(relPath string) error
	Dir() string
}

// Server exposes the catalog and the ingestion pipeline over REST.
type Server struct {
	mux      *http.ServeMux
	httpSrv  *http.Server
	catalog  store.Catalog
	ingestor Ingestor
	images   ImageStore
	logger   *slog.Logger
}

// NewServer builds the API server.
func NewServer(port int, catalog store.Catalog, ingestor Ingestor, images ImageStore, logger *slog.Logger) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		catalog:  catalog,
		ingestor: ingestor,
		images:   images,
		logger:   logger.With("component", "api_server"),
	}
	s.registerRoutes()
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("API server starting", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the route handler (exposed for tests).
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("GET /api/fabrics", s.handleListFabrics)
	s.mux.HandleFunc("GET /api/fabrics/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/fabrics/{id}", s.handleGetFabric)
	s.mux.HandleFunc("DELETE /api/fabrics/{id}", s.handleDeleteFabric)
	s.mux.HandleFunc("PATCH /api/fabrics/{id}/rating", s.handleUpdateRating)

	s.mux.HandleFunc("POST /api/fabrics/scrape", s.handleScrape)
	s.mux.HandleFunc("POST /api/fabrics/scrape-batch", s.handleScrapeBatch)

	s.mux.Handle("GET /static/images/",
		http.StripPrefix("/static/images/", http.FileServer(http.Dir(s.images.Dir()))))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFabrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.Filter{
		Origin: q.Get("origin"),
		Skip:   intQuery(q.Get("skip"), 0),
		Limit:  intQuery(q.Get("limit"), 1000),
	}
	if rating := q.Get("rating"); rating != "" && rating != "all" {
		rt := types.Rating(rating)
		if !rt.Valid() {
			s.jsonError(w, http.StatusBadRequest, "rating must be yes, no, maybe, or unrated")
			return
		}
		filter.Rating = rt
	}

	fabrics, err := s.catalog.List(r.Context(), filter)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if fabrics == nil {
		fabrics = []*types.Fabric{}
	}
	s.jsonResponse(w, http.StatusOK, fabrics)
}

func (s *Server) handleGetFabric(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	fabric, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.notFoundOrError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, fabric)
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		s.jsonError(w, http.StatusBadRequest, "body must be {\"url\": \"...\"}")
		return
	}

	result := s.ingestor.IngestURL(r.Context(), body.URL)
	if len(result.Succeeded) == 0 {
		reason := "no products found"
		if len(result.Failed) > 0 {
			reason = result.Failed[0].Reason
		}
		s.jsonError(w, http.StatusUnprocessableEntity, reason)
		return
	}
	if result.Total() == 1 {
		s.jsonResponse(w, http.StatusOK, result.Succeeded[0].Fabric)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleScrapeBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.URLs) == 0 {
		s.jsonError(w, http.StatusBadRequest, "body must be {\"urls\": [\"...\"]}")
		return
	}

	result := s.ingestor.IngestBatch(r.Context(), body.URLs)
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleUpdateRating(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Rating types.Rating `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.Rating.Valid() {
		s.jsonError(w, http.StatusBadRequest, "rating must be yes, no, maybe, or unrated")
		return
	}

	fabric, err := s.catalog.UpdateRating(r.Context(), id, body.Rating)
	if err != nil {
		s.notFoundOrError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, fabric)
}

func (s *Server) handleDeleteFabric(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	fabric, err := s.catalog.Delete(r.Context(), id)
	if err != nil {
		s.notFoundOrError(w, err)
		return
	}

	// Image files cascade with the catalog entry.
	for _, rel := range fabric.ImagePaths {
		if err := s.images.Remove(rel); err != nil {
			s.logger.Warn("image cleanup failed", "path", rel, "error", err)
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "fabric deleted"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

// --- helpers ---

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid fabric id")
		return 0, false
	}
	return id, true
}

func (s *Server) notFoundOrError(w http.ResponseWriter, err error) {
	if errors.Is(err, types.ErrNotFound) {
		s.jsonError(w, http.StatusNotFound, "fabric not found")
		return
	}
	s.jsonError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, msg string) {
	s.jsonResponse(w, status, map[string]string{"error": msg})
}

func intQuery(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
