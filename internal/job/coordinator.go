package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/reframelab/reframe-api/internal/generator"
	"github.com/reframelab/reframe-api/internal/media"
	"github.com/reframelab/reframe-api/internal/metrics"
	"github.com/reframelab/reframe-api/internal/prompt"
	"github.com/reframelab/reframe-api/internal/ratio"
	"github.com/reframelab/reframe-api/internal/storage"
)

// Coordinator drives the generation lifecycle: pad the image, submit it,
// answer polls, and on backend success crop and persist the result.
//
// The coordinator is the single writer for job state. Per-job mutual
// exclusion makes the observe-and-transition in Poll atomic, so two
// concurrent polls that both see backend success produce exactly one
// SUCCEEDED transition and one result write. Polling cadence is the
// caller's responsibility; there is no background loop here.
type Coordinator struct {
	repo      Repository
	backend   generator.Backend
	store     storage.Store
	processor media.Processor
	logger    *slog.Logger
	target    ratio.Ratio

	// locks holds one mutex per job id, created on first use.
	locks sync.Map
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTargetRatio overrides the default 16:9 canvas ratio.
func WithTargetRatio(r ratio.Ratio) CoordinatorOption {
	return func(c *Coordinator) {
		c.target = r
	}
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(
	repo Repository,
	backend generator.Backend,
	store storage.Store,
	processor media.Processor,
	logger *slog.Logger,
	opts ...CoordinatorOption,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		repo:      repo,
		backend:   backend,
		store:     store,
		processor: processor,
		logger:    logger,
		target:    ratio.Widescreen,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lockFor returns the mutex guarding a job id's state transitions.
func (c *Coordinator) lockFor(jobID string) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(jobID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Submit decodes and pads the image, stores the padded input, hands it to
// the backend, and returns the new PENDING job. It does not wait for
// generation; the caller polls for progress.
func (c *Coordinator) Submit(ctx context.Context, imageBytes []byte, customPrompt string) (*Job, error) {
	img, _, err := ratio.Decode(imageBytes)
	if err != nil {
		return nil, err
	}

	padded, err := ratio.PadToRatio(img, c.target)
	if err != nil {
		return nil, err
	}

	paddedPNG, err := ratio.EncodePNG(padded)
	if err != nil {
		return nil, err
	}

	j := New()
	inputLocator, err := c.store.Write(ctx, "inputs/"+j.ID+".png", bytes.NewReader(paddedPNG))
	if err != nil {
		return nil, fmt.Errorf("store padded input: %w", err)
	}

	p := prompt.ForGeometry(customPrompt, padded.Geometry)
	handle, err := c.backend.Submit(ctx, paddedPNG, generator.SubmitOptions{Prompt: p})
	if err != nil {
		return nil, fmt.Errorf("submit to backend: %w", err)
	}

	j.BackendHandle = handle
	j.InputLocator = inputLocator
	j.Prompt = p
	j.Geometry = padded.Geometry
	j.CanvasWidth = padded.CanvasWidth
	j.CanvasHeight = padded.CanvasHeight
	j.SourceWidth = padded.SourceWidth
	j.SourceHeight = padded.SourceHeight

	if err := c.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	metrics.JobsSubmitted.Inc()
	c.logger.Info("job submitted",
		slog.String("job_id", j.ID),
		slog.String("backend_handle", handle),
		slog.String("orientation", string(padded.Geometry.Orientation)),
		slog.Int("canvas_width", padded.CanvasWidth),
		slog.Int("canvas_height", padded.CanvasHeight),
	)

	return j, nil
}

// Poll reports a job's current state, advancing it when the backend has
// news. Terminal jobs are answered from the stored record without touching
// the backend. Poll only fails for unknown ids; job failures are reported
// inside the returned view.
func (c *Coordinator) Poll(ctx context.Context, jobID string) (StatusView, error) {
	mu := c.lockFor(jobID)
	mu.Lock()
	defer mu.Unlock()

	j, err := c.repo.FindByID(ctx, jobID)
	if err != nil {
		return StatusView{}, err
	}

	if j.IsTerminal() {
		return j.View(), nil
	}

	res, err := c.backend.CheckStatus(ctx, j.BackendHandle)
	if err != nil {
		// A backend hiccup says nothing about the job. Leave the state
		// alone and let the caller re-poll.
		c.logger.Warn("backend status check failed, will retry on next poll",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return j.View(), nil
	}

	// The first confirmed sighting collapses PENDING into RUNNING.
	if j.GetStatus() == StatusPending {
		if err := j.Run(); err != nil {
			return StatusView{}, fmt.Errorf("promote job %s: %w", jobID, err)
		}
	}

	switch res.State {
	case generator.StateRunning:
		// Nothing to do until the backend finishes.

	case generator.StateFailed:
		if err := j.Fail(StageGeneration, res.Detail); err != nil {
			return StatusView{}, fmt.Errorf("fail job %s: %w", jobID, err)
		}
		metrics.JobsFailed.Inc()
		c.logger.Info("job failed in backend",
			slog.String("job_id", jobID),
			slog.String("error", res.Detail),
		)

	case generator.StateSucceeded:
		locator, ferr := c.finalize(ctx, j, res)
		switch {
		case ferr == nil:
			if err := j.Succeed(locator); err != nil {
				return StatusView{}, fmt.Errorf("complete job %s: %w", jobID, err)
			}
			metrics.JobsSucceeded.Inc()
			c.logger.Info("job succeeded",
				slog.String("job_id", jobID),
				slog.String("result_locator", locator),
			)
		case errors.As(ferr, new(*fetchError)):
			// The asset exists but we could not download it; the next poll
			// will try again.
			c.logger.Warn("result fetch failed, will retry on next poll",
				slog.String("job_id", jobID),
				slog.String("error", ferr.Error()),
			)
		default:
			// Generation succeeded but post-processing did not. The stage
			// keeps that distinction visible to operators.
			if err := j.Fail(StagePostProcessing, ferr.Error()); err != nil {
				return StatusView{}, fmt.Errorf("fail job %s: %w", jobID, err)
			}
			metrics.JobsFailed.Inc()
			c.logger.Error("post-processing failed after successful generation",
				slog.String("job_id", jobID),
				slog.String("error", ferr.Error()),
			)
		}
	}

	if err := c.repo.Save(ctx, j); err != nil {
		return StatusView{}, fmt.Errorf("save job %s: %w", jobID, err)
	}
	return j.View(), nil
}

// Abandon marks a job abandoned locally. The backend keeps running to its
// own completion; it is never contacted.
func (c *Coordinator) Abandon(ctx context.Context, jobID string) (StatusView, error) {
	mu := c.lockFor(jobID)
	mu.Lock()
	defer mu.Unlock()

	j, err := c.repo.FindByID(ctx, jobID)
	if err != nil {
		return StatusView{}, err
	}

	if err := j.Abandon(); err != nil {
		return StatusView{}, err
	}
	if err := c.repo.Save(ctx, j); err != nil {
		return StatusView{}, fmt.Errorf("save job %s: %w", jobID, err)
	}

	c.logger.Info("job abandoned", slog.String("job_id", jobID))
	return j.View(), nil
}

// fetchError wraps a failed result download so Poll can tell "retry later"
// apart from genuine post-processing failures.
type fetchError struct {
	err error
}

func (e *fetchError) Error() string { return e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// finalize downloads the generated asset, crops the pad margins back out at
// the generated resolution, and persists the result. It returns the result
// locator.
func (c *Coordinator) finalize(ctx context.Context, j *Job, res generator.StatusResult) (string, error) {
	data, err := c.backend.Fetch(ctx, res.ResultRef)
	if err != nil {
		return "", &fetchError{err: err}
	}

	srcPath, err := c.store.SaveTemp(ctx, j.ID+"_generated", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("save generated asset: %w", err)
	}
	temps := []string{srcPath}
	defer func() {
		if err := c.store.CleanupTemp(ctx, temps); err != nil {
			c.logger.Warn("temp cleanup failed", slog.String("error", err.Error()))
		}
	}()

	genW, genH := res.Width, res.Height
	if genW == 0 || genH == 0 {
		genW, genH, err = c.processor.VideoDimensions(ctx, srcPath)
		if err != nil {
			return "", fmt.Errorf("probe generated asset: %w", err)
		}
	}

	spec, err := ratio.ScaleGeometry(j.Geometry,
		ratio.Resolution{Width: j.CanvasWidth, Height: j.CanvasHeight},
		ratio.Resolution{Width: genW, Height: genH},
	)
	if err != nil {
		return "", fmt.Errorf("derive crop: %w", err)
	}

	resultName := "results/" + j.ID + ".mp4"

	if spec.Geometry.IsZero() {
		// The input needed no padding, so the generated asset ships as-is.
		locator, err := c.store.Write(ctx, resultName, bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("store result: %w", err)
		}
		return locator, nil
	}

	croppedPath := srcPath + "_cropped.mp4"
	temps = append(temps, croppedPath)
	if err := c.processor.CropVideo(ctx, srcPath, croppedPath, spec.Rect()); err != nil {
		return "", fmt.Errorf("crop generated asset: %w", err)
	}

	cropped, err := os.Open(croppedPath) // #nosec G304 - path derived from our own temp file
	if err != nil {
		return "", fmt.Errorf("open cropped asset: %w", err)
	}
	defer func() { _ = cropped.Close() }()

	locator, err := c.store.Write(ctx, resultName, cropped)
	if err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return locator, nil
}

// ReadResult streams the blob behind a result locator. Used by the HTTP
// layer to inline small results for local storage deployments.
func (c *Coordinator) ReadResult(ctx context.Context, locator string) ([]byte, error) {
	r, err := c.store.Read(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
