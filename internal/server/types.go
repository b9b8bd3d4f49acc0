// Package server provides the HTTP server for the reframe API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/reframelab/reframe-api/internal/ratio"
)

// ResizeRequest is the HTTP request body for the synchronous pad endpoint.
type ResizeRequest struct {
	// ImageBase64 is the base64-encoded source image.
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
}

// ResizeResponse is the HTTP response for the synchronous pad endpoint.
type ResizeResponse struct {
	// ImageBase64 is the base64-encoded padded image.
	ImageBase64 string `json:"image_base64"`
	// Format is the encoding of the returned image ("jpeg" or "png").
	Format string `json:"format"`
	// Width and Height are the padded canvas dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`
	// SourceWidth and SourceHeight are the original image dimensions.
	SourceWidth  int `json:"source_width"`
	SourceHeight int `json:"source_height"`
	// Geometry records the margins that were added.
	Geometry ratio.Geometry `json:"geometry"`
}

// CreateJobRequest is the HTTP request body for creating a new generation job.
type CreateJobRequest struct {
	// ImageBase64 is the base64-encoded source image.
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
	// Prompt optionally overrides the default motion description.
	Prompt string `json:"prompt" validate:"omitempty,max=2000"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for polling job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Error contains the failure detail if the job failed.
	Error string `json:"error,omitempty"`
	// ErrorStage says which pipeline phase failed ("generation" or
	// "post_processing").
	ErrorStage string `json:"error_stage,omitempty"`
	// VideoBase64 is the base64-encoded video content for local storage
	// deployments, set once the job succeeded.
	VideoBase64 string `json:"video_base64,omitempty"`
	// VideoURL is the object URL of the result for S3 deployments, set once
	// the job succeeded.
	VideoURL string `json:"video_url,omitempty"`
	// SubmittedAt is when the job was accepted.
	SubmittedAt time.Time `json:"submitted_at"`
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
