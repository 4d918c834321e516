// -----------------------------------------------------------------------
// Job Handler - Generation job API
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
	"github.com/delsolprimehomes/clustergen/internal/services/generator"
)

// JobHandler handles generation-job API requests
type JobHandler struct {
	orchestrator   *generator.Orchestrator
	jobStorage     interfaces.JobStorage
	stallThreshold time.Duration
	logger         arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(orchestrator *generator.Orchestrator, jobStorage interfaces.JobStorage, cfg *common.GenerationConfig, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		orchestrator:   orchestrator,
		jobStorage:     jobStorage,
		stallThreshold: common.ParseDurationOr(cfg.StallThreshold, 5*time.Minute),
		logger:         logger,
	}
}

// jobView is the API shape of a job row. Stalled is derived from the
// heartbeat at read time, never stored.
type jobView struct {
	*models.GenerationJob
	Stalled bool `json:"stalled"`
}

func (h *JobHandler) view(job *models.GenerationJob) *jobView {
	return &jobView{
		GenerationJob: job,
		Stalled:       job.IsStalled(time.Now().UTC(), h.stallThreshold),
	}
}

// SubmitHandler starts a generation job
// POST /api/jobs
func (h *JobHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req generator.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	jobID, err := h.orchestrator.Submit(r.Context(), &req)
	if err != nil {
		if errors.Is(err, generator.ErrClusterBusy) {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Warn().Err(err).Msg("Job submission rejected")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteStarted(w, jobID, "Generation job started")
}

// ListJobsHandler returns a paginated list of jobs with derived stall state
// GET /api/jobs?status=generating&limit=50&offset=0
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.JobListOptions{
		Status: r.URL.Query().Get("status"),
		Limit:  50,
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		opts.Offset = offset
	}

	jobs, err := h.jobStorage.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	views := make([]*jobView, len(jobs))
	for i, job := range jobs {
		views[i] = h.view(job)
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  views,
		"count": len(views),
	})
}

// JobRoutes dispatches /api/jobs/{id} and its subroutes
func (h *JobHandler) JobRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}
	jobID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.getJob(w, r, jobID)
		case http.MethodDelete:
			h.cancelJob(w, r, jobID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "resume" && r.Method == http.MethodPost {
		h.resumeJob(w, r, jobID)
		return
	}

	WriteError(w, http.StatusNotFound, "Unknown job route")
}

func (h *JobHandler) getJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.jobStorage.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	WriteJSON(w, http.StatusOK, h.view(job))
}

func (h *JobHandler) cancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.orchestrator.Cancel(r.Context(), jobID); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "cancelled",
		"job_id": jobID,
	})
}

func (h *JobHandler) resumeJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.orchestrator.Resume(r.Context(), jobID); err != nil {
		if errors.Is(err, generator.ErrClusterBusy) {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteStarted(w, jobID, "Job resumed")
}
