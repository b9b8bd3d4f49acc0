package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidCropRect is returned when the crop rectangle is empty or negative.
	ErrInvalidCropRect = errors.New("media: invalid crop rectangle")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("media: ffprobe execution failed")
)

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor. Empty paths default to
// "ffmpeg" and "ffprobe" found via PATH.
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// VideoDimensions probes the first video stream's width and height.
func (p *FFmpegProcessor) VideoDimensions(ctx context.Context, path string) (int, int, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, 0, fmt.Errorf("media: ffprobe cancelled: %w", ctx.Err())
		}
		return 0, 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseDimensions(stdout.String())
}

// parseDimensions parses ffprobe's "WIDTHxHEIGHT" output.
func parseDimensions(out string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(out), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected output %q", ErrFFprobeExecution, out)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: parse width %q: %w", ErrFFprobeExecution, parts[0], err)
	}
	h, err := strconv.Atoi(strings.TrimSuffix(parts[1], "x"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: parse height %q: %w", ErrFFprobeExecution, parts[1], err)
	}
	return w, h, nil
}

// CropVideo re-encodes src into dst keeping only rect.
func (p *FFmpegProcessor) CropVideo(ctx context.Context, src, dst string, rect image.Rectangle) error {
	args, err := cropArgs(src, dst, rect)
	if err != nil {
		return err
	}
	return p.runFFmpeg(ctx, args)
}

// cropArgs builds the ffmpeg argument list for an exact-edge crop. The
// generated clips carry no audio track, so audio is dropped outright.
func cropArgs(src, dst string, rect image.Rectangle) ([]string, error) {
	if rect.Empty() || rect.Min.X < 0 || rect.Min.Y < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCropRect, rect)
	}

	filter := fmt.Sprintf("crop=%d:%d:%d:%d", rect.Dx(), rect.Dy(), rect.Min.X, rect.Min.Y)
	return []string{
		"-y",      // Overwrite output file without asking
		"-i", src, // Input file
		"-vf", filter, // Crop filter
		"-c:v", "libx264", // Video codec
		"-preset", "fast", // Encoding speed preset
		"-crf", "23", // Quality (lower = better, 23 is default)
		"-an", // No audio
		dst,   // Output file
	}, nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("media: ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("media: ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
