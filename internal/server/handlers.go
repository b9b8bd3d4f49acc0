package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/reframelab/reframe-api/internal/job"
	"github.com/reframelab/reframe-api/internal/ratio"
)

// JobService is the slice of the coordinator the handlers need.
type JobService interface {
	Submit(ctx context.Context, imageBytes []byte, customPrompt string) (*job.Job, error)
	Poll(ctx context.Context, jobID string) (job.StatusView, error)
	Abandon(ctx context.Context, jobID string) (job.StatusView, error)
	ReadResult(ctx context.Context, locator string) ([]byte, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   JobService
	validator *validator.Validate
	logger    *slog.Logger
	target    ratio.Ratio
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithResizeTarget overrides the default 16:9 target for the resize endpoint.
func WithResizeTarget(r ratio.Ratio) HandlerOption {
	return func(h *Handlers) {
		h.target = r
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service JobService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
		target:    ratio.Widescreen,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Resize handles POST /resize requests: pad the image to the target ratio and
// return it synchronously, together with the recorded geometry.
func (h *Handlers) Resize(w http.ResponseWriter, r *http.Request) {
	var req ResizeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	imageBytes, ok := h.decodeBase64(w, req.ImageBase64)
	if !ok {
		return
	}

	padded, info, format, err := ratio.PadImageBytes(imageBytes, h.target)
	if err != nil {
		if errors.Is(err, ratio.ErrInvalidImage) {
			writeError(w, http.StatusBadRequest, "image could not be decoded", "INVALID_IMAGE")
			return
		}
		h.logger.Error("resize failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "resize failed", "RESIZE_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, ResizeResponse{
		ImageBase64:  base64.StdEncoding.EncodeToString(padded),
		Format:       format,
		Width:        info.CanvasWidth,
		Height:       info.CanvasHeight,
		SourceWidth:  info.SourceWidth,
		SourceHeight: info.SourceHeight,
		Geometry:     info.Geometry,
	})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	imageBytes, ok := h.decodeBase64(w, req.ImageBase64)
	if !ok {
		return
	}

	created, err := h.service.Submit(r.Context(), imageBytes, req.Prompt)
	if err != nil {
		if errors.Is(err, ratio.ErrInvalidImage) {
			writeError(w, http.StatusBadRequest, "image could not be decoded", "INVALID_IMAGE")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// GetJob handles GET /jobs/{id} requests. Each call is one poll: the backend
// is consulted for non-terminal jobs and the job may advance as a result.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	view, err := h.service.Poll(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to poll job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to poll job", "JOB_POLL_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, h.jobResponse(r.Context(), view))
}

// AbandonJob handles DELETE /jobs/{id} requests. The job is marked abandoned
// locally; the backend keeps running to its own completion.
func (h *Handlers) AbandonJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	view, err := h.service.Abandon(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		case errors.Is(err, job.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "job already finished", "JOB_ALREADY_TERMINAL")
		default:
			h.logger.Error("failed to abandon job",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to abandon job", "JOB_ABANDON_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusOK, h.jobResponse(r.Context(), view))
}

// jobResponse maps a status view to the HTTP DTO, resolving the result
// locator for succeeded jobs: https locators are returned as URLs, local
// paths are inlined as base64.
func (h *Handlers) jobResponse(ctx context.Context, view job.StatusView) JobResponse {
	resp := JobResponse{
		ID:          view.ID,
		Status:      string(view.Status),
		Error:       view.Error,
		ErrorStage:  string(view.ErrorStage),
		SubmittedAt: view.SubmittedAt,
		CompletedAt: view.CompletedAt,
	}

	if view.Status != job.StatusSucceeded || view.ResultLocator == "" {
		return resp
	}

	if strings.HasPrefix(view.ResultLocator, "http") {
		resp.VideoURL = view.ResultLocator
		return resp
	}

	videoData, err := h.service.ReadResult(ctx, view.ResultLocator)
	if err != nil {
		h.logger.Error("failed to read result",
			slog.String("job_id", view.ID),
			slog.String("locator", view.ResultLocator),
			slog.String("error", err.Error()),
		)
		// Don't fail the request, just log and omit the video.
		return resp
	}
	resp.VideoBase64 = base64.StdEncoding.EncodeToString(videoData)
	return resp
}

// decodeAndValidate decodes the JSON body into req and runs struct
// validation, writing the error response itself on failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) decodeBase64(w http.ResponseWriter, s string) ([]byte, bool) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 image", "INVALID_BASE64")
		return nil, false
	}
	return data, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
