package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"clipper/internal/logging"
	"clipper/internal/media/source"
	"clipper/internal/outcome"
	"clipper/internal/params"
	"clipper/internal/services"
	"clipper/internal/supervisor"
	"clipper/internal/timerange"
	"clipper/internal/upload"
	"clipper/internal/workflow"
)

const (
	maxRequestBytes = 1 << 20
	maxEventWait    = 30 * time.Second
)

// Workflow is the subset of *workflow.Manager the handlers use.
type Workflow interface {
	Select(ctx context.Context, path string) (*source.MediaSource, error)
	Process(ctx context.Context, req workflow.Request) (*workflow.Submission, error)
	Lookup(id string) (*supervisor.Handle, bool)
	Outcome(id string) (outcome.Outcome, bool)
	Cancel(id string) error
	Status() workflow.StatusSummary
	Health() []workflow.ComponentHealth
}

// Uploader posts finished clips to a file host.
type Uploader interface {
	Upload(ctx context.Context, path string, service upload.Service) (upload.Result, error)
}

// Options configures the HTTP handler.
type Options struct {
	AllowedOrigins []string
	Token          string
	DefaultService upload.Service
	Logger         *slog.Logger
}

// Handler serves the control API.
type Handler struct {
	workflow       Workflow
	uploader       Uploader
	defaultService upload.Service
	logger         *slog.Logger
}

// NewHandler wires the routes, authentication and CORS around wf and up.
func NewHandler(wf Workflow, up Uploader, opts Options) http.Handler {
	h := &Handler{
		workflow:       wf,
		uploader:       up,
		defaultService: opts.DefaultService,
		logger:         logging.NewComponentLogger(opts.Logger, "api-server"),
	}
	if h.defaultService == "" {
		h.defaultService = upload.ServiceCatbox
	}

	r := NewRouter(h)
	r.Use(h.requestID)
	r.Use(authMiddleware(opts.Token, "/api/health"))

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

// NewRouter registers the API routes on a fresh router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/api/probe", h.Probe).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs", h.CreateJob).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs/current", h.CurrentJob).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", h.GetJob).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}/events", h.JobEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}/cancel", h.CancelJob).Methods(http.MethodPost)
	r.HandleFunc("/api/uploads", h.Upload).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	return r
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, FromHealth(h.workflow.Health()))
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, FromStatusSummary(h.workflow.Status()))
}

// Probe handles POST /api/probe.
func (h *Handler) Probe(w http.ResponseWriter, r *http.Request) {
	var req ProbeRequest
	if !h.decode(w, r, &req) {
		return
	}
	src, err := h.workflow.Select(r.Context(), req.Path)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FromSource(src))
}

// CreateJob handles POST /api/jobs.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.workflow.Process(r.Context(), workflow.Request{
		Source:    req.Source,
		Start:     req.Start,
		End:       req.End,
		OutputDir: req.OutputDir,
		Options:   req.Options.Raw(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := JobResponse{JobID: sub.JobID}
	if sub.Source != nil {
		trim := FromTrim(sub.Trim)
		resp.Trim = &trim
	}
	if handle := sub.Handle(); handle != nil {
		job := FromJob(handle.Snapshot())
		resp.Job = &job
	}
	if early, ok := sub.Early(); ok {
		out := FromOutcome(early)
		resp.Outcome = &out
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

// CurrentJob handles GET /api/jobs/current.
func (h *Handler) CurrentJob(w http.ResponseWriter, r *http.Request) {
	status := h.workflow.Status()
	if status.Job == nil {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no job has run yet"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.jobResponse(status.Job.ID))
}

// GetJob handles GET /api/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	resp := h.jobResponse(id)
	if resp.Job == nil && resp.Outcome == nil {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown job", JobID: id})
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) jobResponse(id string) JobResponse {
	resp := JobResponse{JobID: id}
	if handle, ok := h.workflow.Lookup(id); ok {
		job := FromJob(handle.Snapshot())
		resp.Job = &job
	}
	if out, ok := h.workflow.Outcome(id); ok {
		dto := FromOutcome(out)
		resp.Outcome = &dto
	}
	return resp
}

// JobEvents handles GET /api/jobs/{id}/events?after=N&wait=5s. With wait set
// the request blocks until a new event arrives or the wait elapses.
func (h *Handler) JobEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	handle, ok := h.workflow.Lookup(id)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown job", JobID: id})
		return
	}
	query := r.URL.Query()
	after, err := parseNonNegative(query.Get("after"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "after: " + err.Error()})
		return
	}
	wait, err := parseWait(query.Get("wait"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "wait: " + err.Error()})
		return
	}

	events := handle.EventsSince(after)
	if len(events) == 0 && wait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		if _, ok := <-handle.Subscribe(ctx, after); ok {
			events = handle.EventsSince(after)
		}
		cancel()
	}

	resp := EventsResponse{Events: FromEvents(events), Next: after}
	if n := len(events); n > 0 {
		resp.Next = events[n-1].Seq
		resp.Done = events[n-1].Type == supervisor.EventTerminal
	}
	if !resp.Done {
		if _, finished := handle.Result(); finished && len(handle.EventsSince(resp.Next)) == 0 {
			resp.Done = true
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CancelJob handles POST /api/jobs/{id}/cancel.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.workflow.Cancel(id); err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("cancel requested via api",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldEventType, "api_cancel"),
	)
	h.writeJSON(w, http.StatusAccepted, CancelResponse{JobID: id, CancelPending: true})
}

// Upload handles POST /api/uploads.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "uploads are not configured"})
		return
	}
	var req UploadRequest
	if !h.decode(w, r, &req) {
		return
	}
	service := h.defaultService
	if strings.TrimSpace(req.Service) != "" {
		parsed, err := upload.ParseService(req.Service)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: "service"})
			return
		}
		service = parsed
	}
	path := strings.TrimSpace(req.Path)
	if path == "" && req.JobID != "" {
		out, ok := h.workflow.Outcome(req.JobID)
		if !ok || out.Status != outcome.StatusSuccess {
			h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: "job has no finished output", JobID: req.JobID})
			return
		}
		path = out.Path
	}
	if path == "" {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "path or jobId is required", Field: "path"})
		return
	}

	res, err := h.uploader.Upload(r.Context(), path, service)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, UploadResponse{
		URL:       res.URL,
		Service:   string(res.Service),
		Path:      res.Path,
		SizeBytes: res.Size,
		Attempts:  res.Attempts,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps domain errors onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		busy      *supervisor.BusyError
		paramErr  *params.ValidationError
		rangeErr  *timerange.ValidationError
		uploadErr *upload.Error
	)
	switch {
	case errors.As(err, &busy):
		h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: "Busy", JobID: busy.JobID})
	case errors.As(err, &paramErr):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: paramErr.Field, Kind: "ValidationError"})
	case errors.As(err, &rangeErr):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: string(rangeErr.Kind)})
	case errors.As(err, &uploadErr):
		status := http.StatusBadGateway
		switch uploadErr.Kind {
		case upload.KindFileMissing, upload.KindTooLarge:
			status = http.StatusBadRequest
		case upload.KindCancelled:
			status = http.StatusServiceUnavailable
		}
		h.writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: string(uploadErr.Kind)})
	case errors.Is(err, supervisor.ErrJobFinished):
		h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrValidation):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "ValidationError"})
	case errors.Is(err, services.ErrExternalTool):
		h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Kind: "MissingTool"})
	default:
		h.logger.Error("api request failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_error"),
		)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		logging.WithContext(ctx, h.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseNonNegative(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}

func parseWait(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		secs, convErr := strconv.Atoi(value)
		if convErr != nil {
			return 0, errors.New("must be a duration such as 5s")
		}
		d = time.Duration(secs) * time.Second
	}
	if d < 0 {
		return 0, errors.New("must not be negative")
	}
	return min(d, maxEventWait), nil
}
