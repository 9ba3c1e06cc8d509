// Package v1 provides the REST API handlers for dispatch table access.
package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/involucelate/chef/internal/api/common"
	"github.com/involucelate/chef/internal/service"
	"github.com/involucelate/chef/internal/status"
	"github.com/involucelate/chef/internal/table"
	"github.com/involucelate/chef/internal/telemetry"
	"github.com/involucelate/chef/internal/versions"
)

// ResolveRequest is the body of POST /api/v1/resolve and
// POST /api/v1/candidates
type ResolveRequest struct {
	// Table targets a specific dispatch table; empty means the default table
	Table string `json:"table,omitempty"`

	// Key is the dispatch key to look up
	Key string `json:"key"`

	// Attributes is the node attribute document the registration filters
	// are matched against; omitted means every registration matches
	Attributes json.RawMessage `json:"attributes,omitempty"`

	// Canonical restricts matching to registrations whose canonical flag
	// equals it
	Canonical *bool `json:"canonical,omitempty"`
}

// CandidatesResponse is the body of a POST /api/v1/candidates response
type CandidatesResponse struct {
	Table      string              `json:"table,omitempty"`
	Key        string              `json:"key"`
	Candidates []service.Candidate `json:"candidates"`
	Total      int                 `json:"total"`
}

// RegisterRequest is the body of POST /api/v1/registrations
type RegisterRequest struct {
	// Table targets a specific dispatch table; empty means the default table
	Table string `json:"table,omitempty"`

	// Entry is the registration to add
	Entry *table.Entry `json:"entry"`
}

// DeleteCanonicalRequest is the body of DELETE /api/v1/keys/{key}/canonical
type DeleteCanonicalRequest struct {
	// Table targets a specific dispatch table; empty means the default table
	Table string `json:"table,omitempty"`

	// Value selects which canonical registrations to remove; only those
	// whose registered value equals it are deleted
	Value any `json:"value"`
}

// DeleteCanonicalResponse reports the matchers remaining under the key
// after a canonical delete
type DeleteCanonicalResponse struct {
	Key       string `json:"key"`
	Remaining int    `json:"remaining"`
}

// KeysResponse lists the registered keys of one table
type KeysResponse struct {
	Keys  []string `json:"keys"`
	Total int      `json:"total"`
}

// ListTablesResponse lists summary information for every loaded table
type ListTablesResponse struct {
	Tables []service.TableInfo `json:"tables"`
	Total  int                 `json:"total"`
}

// SyncStatusResponse maps table names to their persisted sync status
type SyncStatusResponse struct {
	Tables map[string]*status.SyncStatus `json:"tables"`
}

// TriggerSyncResponse acknowledges a manual sync request
type TriggerSyncResponse struct {
	Table  string `json:"table"`
	Status string `json:"status"`
}

// Routes defines the routes for the dispatch API with dependency injection
type Routes struct {
	service service.DispatchService
	status  status.StatusPersistence
	trigger func(tableName string) error
	metrics *telemetry.DispatchMetrics
}

// Option configures optional Routes dependencies
type Option func(*Routes)

// WithStatusReader exposes persisted sync status through GET /status
func WithStatusReader(sp status.StatusPersistence) Option {
	return func(routes *Routes) {
		routes.status = sp
	}
}

// WithSyncTrigger wires POST /tables/{tableName}/sync to the sync
// coordinator's manual trigger
func WithSyncTrigger(trigger func(tableName string) error) Option {
	return func(routes *Routes) {
		routes.trigger = trigger
	}
}

// WithMetrics records resolution outcomes on the given instruments
func WithMetrics(m *telemetry.DispatchMetrics) Option {
	return func(routes *Routes) {
		routes.metrics = m
	}
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc service.DispatchService, opts ...Option) *Routes {
	routes := &Routes{
		service: svc,
	}
	for _, opt := range opts {
		opt(routes)
	}
	return routes
}

// Router creates a new router for the dispatch API
func Router(svc service.DispatchService, opts ...Option) http.Handler {
	routes := NewRoutes(svc, opts...)

	r := chi.NewRouter()

	r.Route("/keys", func(r chi.Router) {
		r.Get("/", routes.listKeys)
		r.Delete("/{key}/canonical", routes.deleteCanonical)
	})

	r.Route("/tables", func(r chi.Router) {
		r.Get("/", routes.listTables)
		r.Post("/{tableName}/sync", routes.triggerSync)
	})

	r.Post("/resolve", routes.resolve)
	r.Post("/candidates", routes.candidates)
	r.Post("/registrations", routes.register)
	r.Get("/status", routes.getSyncStatus)

	return r
}

// resolve handles POST /api/v1/resolve. The response is the single
// highest-priority registration matching the supplied attributes.
func (dr *Routes) resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		common.WriteErrorResponse(w, "Key is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	resolution, err := dr.service.Resolve(r.Context(), req.Key, lookupOptions[service.ResolveOptions](&req)...)
	duration := time.Since(start)

	if err != nil {
		if isMiss(err) {
			dr.metrics.RecordResolution(r.Context(), req.Table, duration, false)
		}
		writeServiceError(w, err)
		return
	}

	dr.metrics.RecordResolution(r.Context(), resolution.Table, duration, true)
	common.WriteJSONResponse(w, resolution, http.StatusOK)
}

// candidates handles POST /api/v1/candidates. The response lists every
// matching registration, highest priority first.
func (dr *Routes) candidates(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		common.WriteErrorResponse(w, "Key is required", http.StatusBadRequest)
		return
	}

	candidates, err := dr.service.Candidates(r.Context(), req.Key, lookupOptions[service.CandidatesOptions](&req)...)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if candidates == nil {
		candidates = []service.Candidate{}
	}

	common.WriteJSONResponse(w, CandidatesResponse{
		Table:      req.Table,
		Key:        req.Key,
		Candidates: candidates,
		Total:      len(candidates),
	}, http.StatusOK)
}

// register handles POST /api/v1/registrations. The registration is
// applied even when it collides with an existing equivalent one; a
// collision is reported with status 409 and the conflict advisory in
// the response body.
func (dr *Routes) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Entry == nil {
		common.WriteErrorResponse(w, "Entry is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Entry.Key) == "" {
		common.WriteErrorResponse(w, "Entry key is required", http.StatusBadRequest)
		return
	}

	opts := []service.Option[service.RegisterOptions]{service.WithEntry(req.Entry)}
	if req.Table != "" {
		opts = append(opts, service.WithTable[service.RegisterOptions](req.Table))
	}

	result, err := dr.service.Register(r.Context(), opts...)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	statusCode := http.StatusCreated
	if result.Conflict != nil {
		statusCode = http.StatusConflict
	}
	common.WriteJSONResponse(w, result, statusCode)
}

// deleteCanonical handles DELETE /api/v1/keys/{key}/canonical
func (dr *Routes) deleteCanonical(w http.ResponseWriter, r *http.Request) {
	key, err := common.GetAndValidateURLParam(r, "key")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req DeleteCanonicalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts := []service.Option[service.DeleteCanonicalOptions]{}
	if req.Table != "" {
		opts = append(opts, service.WithTable[service.DeleteCanonicalOptions](req.Table))
	}

	remaining, err := dr.service.DeleteCanonical(r.Context(), key, req.Value, opts...)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	common.WriteJSONResponse(w, DeleteCanonicalResponse{
		Key:       key,
		Remaining: remaining,
	}, http.StatusOK)
}

// listKeys handles GET /api/v1/keys. The optional "table" query
// parameter selects the table.
func (dr *Routes) listKeys(w http.ResponseWriter, r *http.Request) {
	opts := []service.Option[service.KeysOptions]{}
	if tableName := r.URL.Query().Get("table"); tableName != "" {
		opts = append(opts, service.WithTable[service.KeysOptions](tableName))
	}

	keys, err := dr.service.Keys(r.Context(), opts...)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}

	common.WriteJSONResponse(w, KeysResponse{
		Keys:  keys,
		Total: len(keys),
	}, http.StatusOK)
}

// listTables handles GET /api/v1/tables
func (dr *Routes) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := dr.service.ListTables(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list tables", "error", err)
		common.WriteErrorResponse(w, "Failed to list tables", http.StatusInternalServerError)
		return
	}
	if tables == nil {
		tables = []service.TableInfo{}
	}

	common.WriteJSONResponse(w, ListTablesResponse{
		Tables: tables,
		Total:  len(tables),
	}, http.StatusOK)
}

// getSyncStatus handles GET /api/v1/status
func (dr *Routes) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	if dr.status == nil {
		common.WriteErrorResponse(w, "Sync status is not available", http.StatusNotFound)
		return
	}

	all, err := dr.status.LoadAllStatus(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load sync status", "error", err)
		common.WriteErrorResponse(w, "Failed to load sync status", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, SyncStatusResponse{Tables: all}, http.StatusOK)
}

// triggerSync handles POST /api/v1/tables/{tableName}/sync. The sync
// itself runs in the background; 202 only acknowledges the request.
func (dr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	tableName, err := common.GetAndValidateURLParam(r, "tableName")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if dr.trigger == nil {
		common.WriteErrorResponse(w, "Manual sync is not available", http.StatusNotFound)
		return
	}

	if err := dr.trigger(tableName); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}

	slog.InfoContext(r.Context(), "Manual sync requested", "table", tableName)
	common.WriteJSONResponse(w, TriggerSyncResponse{
		Table:  tableName,
		Status: "sync-requested",
	}, http.StatusAccepted)
}

// lookupOptions converts a ResolveRequest into service lookup options
// for either Resolve or Candidates
func lookupOptions[T service.ResolveOptions | service.CandidatesOptions](req *ResolveRequest) []service.Option[T] {
	opts := []service.Option[T]{}
	if req.Table != "" {
		opts = append(opts, service.WithTable[T](req.Table))
	}
	if len(req.Attributes) > 0 {
		opts = append(opts, service.WithAttributes[T](req.Attributes))
	}
	if req.Canonical != nil {
		opts = append(opts, service.WithCanonical[T](*req.Canonical))
	}
	return opts
}

// isMiss reports whether err is a lookup that ran but found nothing,
// as opposed to a request that never reached the table
func isMiss(err error) bool {
	return errors.Is(err, service.ErrNoMatch) || errors.Is(err, service.ErrKeyNotFound)
}

// writeServiceError maps service sentinel errors onto HTTP status codes
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrKeyNotFound),
		errors.Is(err, service.ErrNoMatch):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidAttributes):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotReady):
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	default:
		common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
	}
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc service.DispatchService) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessHandler handles readiness check requests. Readiness holds
// until every configured table has been loaded at least once.
func readinessHandler(svc service.DispatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			common.WriteErrorResponse(w, "Dispatch service not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// versionHandler handles version information requests
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
