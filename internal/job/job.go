// Package job provides the GenerationJob aggregate for tracking long-running
// video generation tasks, the repository ports for persisting them, and the
// coordinator that drives the pad/submit/poll/crop lifecycle.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/reframelab/reframe-api/internal/job/id"
	"github.com/reframelab/reframe-api/internal/ratio"
)

// Status represents the current state of a GenerationJob.
type Status string

const (
	// StatusPending indicates the job was accepted but the backend has not
	// yet confirmed it is running.
	StatusPending Status = "PENDING"
	// StatusRunning indicates the backend has confirmed the job is in flight.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded indicates generation and post-processing both finished.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates the job terminated with an error.
	StatusFailed Status = "FAILED"
	// StatusAbandoned indicates the caller gave up on the job locally. The
	// backend is never contacted; the id is never reused.
	StatusAbandoned Status = "ABANDONED"
)

// Stage identifies which phase of the pipeline produced a job's error, so
// "generation failed" and "generation succeeded but post-processing failed"
// stay distinguishable.
type Stage string

const (
	// StageGeneration covers submission and the backend's own processing.
	StageGeneration Stage = "generation"
	// StagePostProcessing covers cropping and persisting the result after the
	// backend reported success.
	StagePostProcessing Stage = "post_processing"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("job: invalid state transition")

// validTransitions defines which state transitions are allowed. Nothing
// leaves a terminal state.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusAbandoned},
	StatusRunning:   {StatusSucceeded, StatusFailed, StatusAbandoned},
	StatusSucceeded: {},
	StatusFailed:    {},
	StatusAbandoned: {},
}

func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job is the GenerationJob aggregate. The coordinator owns the record
// exclusively; the backend only ever reports state.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// BackendHandle is the backend's reference for the running operation.
	BackendHandle string
	// InputLocator points at the padded input written to the blob store.
	InputLocator string
	// ResultLocator points at the cropped result, set on success.
	ResultLocator string
	// Prompt is the generation prompt submitted with the padded image.
	Prompt string

	// Geometry is the pad geometry applied before submission, recorded
	// exactly so the crop never has to inspect pixels.
	Geometry ratio.Geometry
	// CanvasWidth and CanvasHeight are the padded canvas dimensions.
	CanvasWidth  int
	CanvasHeight int
	// SourceWidth and SourceHeight are the original image dimensions.
	SourceWidth  int
	SourceHeight int

	// Error holds the failure detail, verbatim for backend failures.
	Error string
	// ErrorStage says which pipeline phase failed.
	ErrorStage Stage

	// SubmittedAt is when the job was accepted.
	SubmittedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID in PENDING status.
func New() *Job {
	now := time.Now()
	return &Job{
		ID:          id.Generate(),
		Status:      StatusPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}

// NewWithID creates a new Job with the specified ID in PENDING status.
// Useful for testing or when the ID is generated externally.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:          jobID,
		Status:      StatusPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusSucceeded, StatusFailed, StatusAbandoned:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Run transitions the job from PENDING to RUNNING.
func (j *Job) Run() error {
	return j.TransitionTo(StatusRunning)
}

// Succeed transitions the job to SUCCEEDED and records the result locator.
func (j *Job) Succeed(resultLocator string) error {
	j.mu.Lock()
	j.ResultLocator = resultLocator
	j.mu.Unlock()
	return j.TransitionTo(StatusSucceeded)
}

// Fail transitions the job to FAILED, recording the failure detail and the
// pipeline stage that produced it.
func (j *Job) Fail(stage Stage, detail string) error {
	j.mu.Lock()
	j.Error = detail
	j.ErrorStage = stage
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Abandon marks the job abandoned locally without contacting the backend.
func (j *Job) Abandon() error {
	return j.TransitionTo(StatusAbandoned)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return isTerminal(j.Status)
}

func isTerminal(s Status) bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusAbandoned
}

// StatusView is the caller-facing snapshot returned by polls.
type StatusView struct {
	ID            string    `json:"id"`
	Status        Status    `json:"status"`
	ResultLocator string    `json:"result_locator,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorStage    Stage     `json:"error_stage,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
	CompletedAt   time.Time `json:"completed_at,omitzero"`
}

// View returns a caller-facing snapshot of the job.
func (j *Job) View() StatusView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return StatusView{
		ID:            j.ID,
		Status:        j.Status,
		ResultLocator: j.ResultLocator,
		Error:         j.Error,
		ErrorStage:    j.ErrorStage,
		SubmittedAt:   j.SubmittedAt,
		CompletedAt:   j.CompletedAt,
	}
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:            j.ID,
		Status:        j.Status,
		BackendHandle: j.BackendHandle,
		InputLocator:  j.InputLocator,
		ResultLocator: j.ResultLocator,
		Prompt:        j.Prompt,
		Geometry:      j.Geometry,
		CanvasWidth:   j.CanvasWidth,
		CanvasHeight:  j.CanvasHeight,
		SourceWidth:   j.SourceWidth,
		SourceHeight:  j.SourceHeight,
		Error:         j.Error,
		ErrorStage:    j.ErrorStage,
		SubmittedAt:   j.SubmittedAt,
		UpdatedAt:     j.UpdatedAt,
		CompletedAt:   j.CompletedAt,
	}
}
