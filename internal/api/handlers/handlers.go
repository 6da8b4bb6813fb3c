package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nlozovan/budget-ledger/internal/api/middleware"
	"github.com/nlozovan/budget-ledger/internal/importer"
	"github.com/nlozovan/budget-ledger/internal/jobs"
	"github.com/nlozovan/budget-ledger/internal/ledger"
	"github.com/nlozovan/budget-ledger/internal/match"
	"github.com/nlozovan/budget-ledger/internal/report"
)

// defaultSyncWindowDays is the fetch window when the caller does not name a
// start date.
const defaultSyncWindowDays = 30

// SyncHandler handles ledger sync endpoints.
type SyncHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// EnqueueSync handles POST /api/sync
func (h *SyncHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"user_id"`
		StartDate string `json:"start_date"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	startDate := time.Now().AddDate(0, 0, -defaultSyncWindowDays)
	if req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format, want YYYY-MM-DD")
			return
		}
		startDate = parsed
	}

	job := &jobs.SyncLedgerJob{
		UserID:    req.UserID,
		StartDate: startDate,
	}

	if err := h.publisher.PublishSyncLedger(r.Context(), job); err != nil {
		if errors.Is(err, jobs.ErrSyncInProgress) {
			middleware.WriteError(w, http.StatusConflict, "A sync is already in progress for this user")
			return
		}
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to enqueue sync job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("user_id", req.UserID).Msg("Sync job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"user_id": req.UserID,
		"status":  string(job.Status),
	})
}

// GetSyncJob handles GET /api/sync/jobs/{id}
func (h *SyncHandler) GetSyncJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	resp := map[string]interface{}{
		"job": job,
	}
	if job.Outcome != nil {
		resp["report"] = report.BuildSyncReport(job.Outcome)
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// ListSyncJobs handles GET /api/sync/jobs
func (h *SyncHandler) ListSyncJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sync jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list sync jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// ImportHandler handles the import preview endpoint.
type ImportHandler struct {
	ledger ledger.Store
	opts   match.Options
	log    zerolog.Logger
}

// NewImportHandler creates a new import handler. Zero opts selects the
// production matcher defaults.
func NewImportHandler(store ledger.Store, opts match.Options, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		ledger: store,
		opts:   opts,
		log:    log,
	}
}

// PreviewImport handles POST /api/import/preview
// The CSV export is the request body, either as a multipart "file" part or
// raw. The user is named in the user_id query parameter.
func (h *ImportHandler) PreviewImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	body, err := importBody(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Could not read CSV upload")
		return
	}
	defer body.Close()

	candidates, warnings, err := importer.ParseCSV(ctx, body)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("Rejected unparseable import")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := h.ledger.Load(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load ledger")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load ledger")
		return
	}

	result := match.FindMatches(candidates, transactions, h.opts)
	groups := match.GroupByDuplicates(result, candidates)
	preview := report.BuildImportPreview(result, groups, len(candidates))

	h.log.Info().
		Str("user_id", userID).
		Int("candidates", preview.TotalCandidates).
		Int("duplicates", preview.LikelyDuplicates).
		Int("new", preview.NewTransactions).
		Msg("Import preview built")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"preview":  preview,
		"warnings": warnings,
	})
}

// importBody returns the uploaded CSV stream, preferring a multipart "file"
// part when present.
func importBody(r *http.Request) (io.ReadCloser, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return file, nil
	}
	return r.Body, nil
}
