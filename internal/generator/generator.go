// Package generator defines the capability port for external video
// generation backends. The backend is poll-only: it is asked for status,
// it never pushes.
package generator

import "context"

// State is the backend's report of where a generation task stands.
type State string

const (
	// StateRunning means the backend is still working.
	StateRunning State = "RUNNING"
	// StateSucceeded means the backend produced a result.
	StateSucceeded State = "SUCCEEDED"
	// StateFailed means the backend terminated with an explicit failure.
	StateFailed State = "FAILED"
)

// SubmitOptions contains parameters for submitting a generation task.
type SubmitOptions struct {
	// Prompt is the text prompt accompanying the image.
	Prompt string
}

// StatusResult is the outcome of a single status check.
type StatusResult struct {
	// State is the backend-reported state.
	State State
	// ResultRef is the backend's reference to the generated asset, set when
	// State is SUCCEEDED.
	ResultRef string
	// Width and Height are the generated asset's resolution if the backend
	// declares it; zero when unknown (the caller probes the asset instead).
	Width  int
	Height int
	// Detail is the backend's failure detail, verbatim, set when State is
	// FAILED.
	Detail string
}

// Backend is the generation capability: submit an image, poll the handle,
// fetch the result.
type Backend interface {
	// Submit sends a padded PNG for generation and returns an opaque handle.
	Submit(ctx context.Context, imagePNG []byte, opts SubmitOptions) (handle string, err error)

	// CheckStatus reports the current state of the task behind handle.
	// Transport-level failures are returned as errors and must never be
	// conflated with StateFailed.
	CheckStatus(ctx context.Context, handle string) (StatusResult, error)

	// Fetch downloads the generated asset behind a result reference.
	Fetch(ctx context.Context, resultRef string) ([]byte, error)
}
