// Package prompt builds the text prompts sent to the generation backend.
// The backend animates the padded canvas, so the prompt has to pin down two
// things: the video keeps the input format, and the sentinel bars stay
// untouched for the whole clip.
package prompt

import (
	"strings"

	"github.com/reframelab/reframe-api/internal/ratio"
)

// basePrompt is the default motion description when the caller supplies none.
const basePrompt = "A high-quality, cinematic rotation around the subject."

// formatClause is always present: the backend must not re-frame the canvas.
const formatClause = "The video format must be kept the same as the image."

// barsClause is added when the input was padded. The magenta bars mark
// regions that are cropped out afterwards, so the model must not animate,
// blend, or remove them.
const barsClause = "The solid magenta bars in the image are a fixed frame: " +
	"they must remain completely static and unaltered for the entire video."

// ForGeometry builds the full prompt for a padded input. A custom motion
// description replaces the default one; the format and bar constraints are
// always appended.
func ForGeometry(custom string, g ratio.Geometry) string {
	motion := strings.TrimSpace(custom)
	if motion == "" {
		motion = basePrompt
	}

	parts := []string{motion, formatClause}
	if g.Orientation != ratio.OrientationNone {
		parts = append(parts, barsClause)
	}
	return strings.Join(parts, " ")
}
