package transport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/obelixia/reclock/internal/apierror"
	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/record"
)

// Services are the domain services exposed over REST.
type Services struct {
	Records     *record.Service
	Collections *collection.Service
	Activity    *activity.Service
}

// Server wires HTTP handlers.
type Server struct {
	services Services
	logger   *slog.Logger
}

// NewServer creates the REST router. authMiddleware guards /v1 only, so the
// caller may mount other handlers (the MCP endpoint) beside it.
func NewServer(services Services, authMiddleware func(http.Handler) http.Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	srv := &Server{services: services, logger: logger}

	r.Get("/health", srv.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if authMiddleware == nil {
			authMiddleware = DefaultTenantMiddleware(auth.DefaultTenant)
		}
		r.Use(authMiddleware)
		r.Use(SessionMiddleware)

		r.Get("/collections", srv.listCollections)
		r.Post("/collections", srv.createCollection)

		r.Get("/records", srv.listRecords)
		r.Post("/records", srv.createRecord)
		r.Get("/records/{id}", srv.getRecord)
		r.Delete("/records/{id}", srv.deleteRecord)
		r.Put("/records/{id}", srv.updateRecord)
		r.Put("/records/{id}/force", srv.forceRecord)
		r.Post("/records/{id}/check", srv.checkRecord)

		r.Get("/activity", srv.listActivity)
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.DebugContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func tenant(r *http.Request) string {
	tenantID, _ := TenantFromContext(r.Context())
	return tenantID
}

type createCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.services.Collections.List(r.Context(), tenant(r))
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	c, err := s.services.Collections.Create(r.Context(), tenant(r), collection.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type createRecordRequest struct {
	ID         string        `json:"id"`
	Collection string        `json:"collection"`
	Fields     record.Fields `json:"fields"`
}

type updateRecordRequest struct {
	Fields  record.Fields   `json:"fields"`
	Version *record.Version `json:"version"`
	Replace bool            `json:"replace"`
}

type forceRecordRequest struct {
	Fields  record.Fields `json:"fields"`
	Replace bool          `json:"replace"`
}

type checkRecordRequest struct {
	Version *record.Version `json:"version"`
	Fields  record.Fields   `json:"fields"`
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}

	refs, err := s.services.Records.List(r.Context(), tenant(r), record.ListRecordsOptions{
		Collection: q.Get("collection"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": refs})
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	rec, err := s.services.Records.Create(r.Context(), tenant(r), record.CreateRequest{
		SessionID:  session(r),
		ID:         req.ID,
		Collection: req.Collection,
		Fields:     req.Fields,
	})
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.services.Records.Get(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Records.Delete(r.Context(), tenant(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	var req updateRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	if req.Version == nil {
		writeError(w, apierror.Map(errMissingVersion))
		return
	}
	out := s.services.Records.GuardedUpdate(r.Context(), tenant(r), record.UpdateRequest{
		SessionID: session(r),
		ID:        chi.URLParam(r, "id"),
		Fields:    req.Fields,
		Version:   *req.Version,
		Replace:   req.Replace,
	})
	writeOutcome(w, out)
}

func (s *Server) forceRecord(w http.ResponseWriter, r *http.Request) {
	var req forceRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	out := s.services.Records.ForceUpdate(r.Context(), tenant(r), record.ForceRequest{
		SessionID: session(r),
		ID:        chi.URLParam(r, "id"),
		Fields:    req.Fields,
		Replace:   req.Replace,
	})
	writeOutcome(w, out)
}

func (s *Server) checkRecord(w http.ResponseWriter, r *http.Request) {
	var req checkRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	if req.Version == nil {
		writeError(w, apierror.Map(errMissingVersion))
		return
	}
	info, err := s.services.Records.Detect(r.Context(), tenant(r), record.DetectRequest{
		ID:      chi.URLParam(r, "id"),
		Version: *req.Version,
		Fields:  req.Fields,
	})
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	if info == nil {
		writeJSON(w, http.StatusOK, CheckResponse{Status: "ok"})
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{Status: "conflict", Conflict: info})
}

func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}

	var since record.Version
	if raw := q.Get("since_version"); raw != "" {
		if since, err = record.ParseVersion(raw); err != nil || since < 0 {
			writeError(w, apierror.Map(errBadQuery))
			return
		}
	}

	opts := activity.ListActivityOptions{
		Collection:   q.Get("collection"),
		SinceVersion: int64(since),
		Limit:        limit,
		Offset:       offset,
	}
	if v := q.Get("record_id"); v != "" {
		opts.RecordID = &v
	}
	if v := q.Get("session_id"); v != "" {
		opts.SessionID = &v
	}
	if v := q.Get("type"); v != "" {
		t := activity.ActivityType(v)
		opts.ActivityType = &t
	}

	entries, err := s.services.Activity.GetRecentActivity(r.Context(), tenant(r), opts)
	if err != nil {
		writeError(w, apierror.Map(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errBadQuery
	}
	return n, nil
}
