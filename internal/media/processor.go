// Package media provides video processing capabilities for the
// post-generation pipeline: probing a generated clip's resolution and
// cropping padded margins back out of it.
package media

import (
	"context"
	"image"
)

// Processor defines the video operations the coordinator needs.
// Implementations should use ffmpeg or similar tools.
type Processor interface {
	// VideoDimensions returns the pixel width and height of the first video
	// stream in the file at path.
	VideoDimensions(ctx context.Context, path string) (width, height int, err error)

	// CropVideo re-encodes the video at src into dst keeping only the given
	// rectangle. The crop edge must be exact: no blending or scaling.
	CropVideo(ctx context.Context, src, dst string, rect image.Rectangle) error
}
