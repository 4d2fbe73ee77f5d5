// Package chi implements the HTTP API surface.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/recallwatch/recallsearch/internal/domain"
	dombatch "github.com/recallwatch/recallsearch/internal/domain/batch"
	domrec "github.com/recallwatch/recallsearch/internal/domain/record"
	"github.com/recallwatch/recallsearch/internal/domain/search/query"
	"github.com/recallwatch/recallsearch/internal/transport/httpcache"
	healthuc "github.com/recallwatch/recallsearch/internal/usecase/health"
	ingestuc "github.com/recallwatch/recallsearch/internal/usecase/ingest"
	pageuc "github.com/recallwatch/recallsearch/internal/usecase/page"
)

// RecordReader serves the single-record detail view.
type RecordReader interface {
	Get(ctx context.Context, id string) (domrec.Record, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the use-case services into chi routes.
type Server struct {
	pages         *pageuc.Service
	ingest        *ingestuc.Service
	records       RecordReader
	health        *healthuc.Service
	logger        *zap.Logger
	searchPolicy  httpcache.Policy
	detailPolicy  httpcache.Policy
	apiKeys       []string
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(
	pages *pageuc.Service,
	ingest *ingestuc.Service,
	records RecordReader,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		pages:        pages,
		ingest:       ingest,
		records:      records,
		health:       health,
		logger:       logger,
		searchPolicy: httpcache.SearchPolicy,
		detailPolicy: httpcache.DetailPolicy,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidCursor, http.StatusBadRequest, codeInvalidCursor),
		sentinelHandler(domain.ErrCursorExpired, http.StatusGone, codeCursorExpired),
		sentinelHandler(domain.ErrCursorFilterMismatch, http.StatusBadRequest, codeCursorFilterMismatch),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeRecallNotFound),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
	}
	return s
}

// WithCachePolicies overrides the response freshness policies.
func (s *Server) WithCachePolicies(search, detail httpcache.Policy) *Server {
	s.searchPolicy = search
	s.detailPolicy = detail
	return s
}

// WithAPIKeys guards the ingestion routes with bearer-token auth.
// Read endpoints stay public.
func (s *Server) WithAPIKeys(keys []string) *Server {
	s.apiKeys = keys
	return s
}

// Routes mounts all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Get("/recalls/{id}", s.GetRecall)
		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(s.apiKeys))
			r.Put("/recalls/{id}", s.UpsertRecall)
			r.Post("/recalls/batch", s.BatchUpsert)
		})
	})
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	q, err := queryFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	pg, err := s.pages.Page(r.Context(), &q, req.Cursor)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := searchResponse{
		Items: make([]searchResultItem, len(pg.Items)),
		AsOf:  pg.AsOf,
	}
	for i := range pg.Items {
		resp.Items[i] = itemToResponse(&pg.Items[i])
	}
	if pg.NextCursor != "" {
		resp.NextCursor = &pg.NextCursor
	}

	body, err := json.Marshal(resp)
	if err != nil {
		s.handleDomainError(w, fmt.Errorf("marshal search response: %w", err))
		return
	}

	if httpcache.Negotiate(w, r, httpcache.Fingerprint(body), time.Time{}, s.searchPolicy) {
		return
	}
	writeRaw(w, http.StatusOK, body)
}

// GetRecall handles GET /api/v1/recalls/{id}.
func (s *Server) GetRecall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.records.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	body, err := json.Marshal(recordToResponse(&rec))
	if err != nil {
		s.handleDomainError(w, fmt.Errorf("marshal recall response: %w", err))
		return
	}

	etag := httpcache.DetailFingerprint(body, rec.LastModified())
	if httpcache.Negotiate(w, r, etag, rec.LastModified(), s.detailPolicy) {
		return
	}
	writeRaw(w, http.StatusOK, body)
}

// UpsertRecall handles PUT /api/v1/recalls/{id}.
func (s *Server) UpsertRecall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var payload recallPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rec, err := recordFromPayload(id, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	res, err := s.ingest.Upsert(r.Context(), &rec)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if res.Status() == dombatch.StatusInserted {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/v1/recalls/"+id)
	}
	writeJSON(w, status, upsertOutcome{ID: res.ID(), Status: string(res.Status())})
}

// BatchUpsert handles POST /api/v1/recalls/batch.
func (s *Server) BatchUpsert(w http.ResponseWriter, r *http.Request) {
	var req batchUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "records must not be empty")
		return
	}

	// Payload validation failures are reported per record, like storage
	// failures: one bad record never aborts the batch.
	recs := make([]domrec.Record, 0, len(req.Records))
	rejected := make(map[int]dombatch.Result, 0)
	for i, item := range req.Records {
		rec, err := recordFromPayload(item.ID, item.recallPayload)
		if err != nil {
			rejected[i] = dombatch.NewError(item.ID, err)
			continue
		}
		recs = append(recs, rec)
	}

	var stored []dombatch.Result
	if len(recs) > 0 {
		var err error
		stored, err = s.ingest.BulkUpsert(r.Context(), recs)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
	}

	results := make([]dombatch.Result, len(req.Records))
	next := 0
	for i := range req.Records {
		if res, ok := rejected[i]; ok {
			results[i] = res
			continue
		}
		results[i] = stored[next]
		next++
	}

	counts := dombatch.Tally(results)
	resp := batchUpsertResponse{
		Items:    make([]batchResultItem, len(results)),
		Inserted: counts.Inserted,
		Updated:  counts.Updated,
		Failed:   counts.Failed,
	}
	for i, res := range results {
		resp.Items[i] = batchItemToResponse(res)
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func queryFromRequest(req searchRequest) (query.Query, error) {
	dateFrom, err := parseDate(req.DateFrom)
	if err != nil {
		return query.Query{}, fmt.Errorf("date_from: %w", err)
	}
	dateTo, err := parseDate(req.DateTo)
	if err != nil {
		return query.Query{}, fmt.Errorf("date_to: %w", err)
	}

	q, err := query.New(
		req.ID, req.Product, req.Keywords, req.Category,
		domrec.Severity(req.Severity), dateFrom, dateTo, req.PageSize,
	)
	if err != nil {
		return query.Query{}, fmt.Errorf("build query: %w", err)
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidCursor,
		domain.ErrCursorExpired,
		domain.ErrCursorFilterMismatch,
		domain.ErrInvalidQuery,
		domain.ErrNotFound,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
