package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/httpkit"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
)

type CreateJobRequest struct {
	// Key is the object-store key of an already-uploaded input.
	Key string `json:"key"`
	// Pipeline is optional; when omitted a default is derived from the
	// input's media kind.
	Pipeline []string `json:"pipeline"`
}

// PostJob validates the pipeline, writes the PENDING ledger entry, and
// enqueues the job-ready notification. Validation failures happen before
// anything is persisted or published.
func (h *Handler) PostJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	var req CreateJobRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid json body", nil)
		return
	}

	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "key is required",
			map[string]any{"field": "key"})
		return
	}

	pipeline := req.Pipeline
	if len(pipeline) == 0 {
		pipeline = model.DefaultPipeline(req.Key)
		if pipeline == nil {
			httpkit.WriteErr(w, 400, string(errors.CodeValidation),
				"unsupported file type, provide an explicit pipeline",
				map[string]any{"field": "pipeline"})
			return
		}
	}

	pipeline, err := model.ValidatePipeline(pipeline)
	if err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), err.Error(),
			map[string]any{"field": "pipeline"})
		return
	}

	job, err := h.ledger.CreateJob(ctx, req.Key, pipeline)
	if err != nil {
		log.Error("job insert failed", "error", err.Error())
		httpkit.WriteAppErr(w, err)
		return
	}

	if err := h.publisher.Publish(ctx, job.ID); err != nil {
		// The ledger entry exists but no worker will ever see it; surface
		// the failure so the client retries instead of polling forever.
		log.Error("job enqueue failed", "job_id", job.ID, "error", err.Error())
		httpkit.WriteErr(w, 503, string(errors.CodeUnavailable), "failed to enqueue job",
			map[string]any{"job_id": job.ID})
		return
	}

	log.Info("job created", "job_id", job.ID, "pipeline", pipeline)
	httpkit.WriteJSON(w, 202, map[string]any{"job_id": job.ID})
}

// GetJob returns the job view with freshly signed output URLs.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobID")

	job, err := h.ledger.GetJob(ctx, jobID)
	if err != nil {
		if errors.IsNotFound(err) {
			httpkit.WriteErr(w, 404, string(errors.CodeNotFound), "job not found",
				map[string]any{"job_id": jobID})
			return
		}
		h.log.FromContext(ctx).Error("job load failed", "job_id", jobID, "error", err.Error())
		httpkit.WriteAppErr(w, err)
		return
	}

	view, err := h.resolver.Resolve(ctx, job)
	if err != nil {
		h.log.FromContext(ctx).Error("url signing failed", "job_id", jobID, "error", err.Error())
		httpkit.WriteAppErr(w, err)
		return
	}

	httpkit.WriteJSON(w, 200, view)
}

// ListJobs returns recent jobs without signed URLs (signing is per-job).
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	limit := 50
	if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	jobs, err := h.ledger.ListJobs(ctx, status, limit)
	if err != nil {
		h.log.FromContext(ctx).Error("job list failed", "error", err.Error())
		httpkit.WriteAppErr(w, err)
		return
	}

	type item struct {
		ID        string       `json:"id"`
		Status    model.Status `json:"status"`
		Progress  int          `json:"progress"`
		Pipeline  []string     `json:"pipeline"`
		CreatedAt time.Time    `json:"created_at"`
	}
	out := make([]item, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, item{
			ID:        j.ID,
			Status:    j.Status,
			Progress:  j.Progress,
			Pipeline:  j.Pipeline,
			CreatedAt: j.CreatedAt,
		})
	}

	httpkit.WriteJSON(w, 200, map[string]any{"jobs": out})
}
