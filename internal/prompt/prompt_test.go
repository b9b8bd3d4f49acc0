package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reframelab/reframe-api/internal/ratio"
)

func TestForGeometryDefaults(t *testing.T) {
	g := ratio.Geometry{Left: 39, Right: 39, Orientation: ratio.OrientationPillarbox}

	p := ForGeometry("", g)
	assert.True(t, strings.HasPrefix(p, basePrompt))
	assert.Contains(t, p, formatClause)
	assert.Contains(t, p, barsClause)
}

func TestForGeometryCustomMotion(t *testing.T) {
	g := ratio.Geometry{Top: 11, Bottom: 12, Orientation: ratio.OrientationLetterbox}

	p := ForGeometry("  waves crashing at dusk  ", g)
	assert.True(t, strings.HasPrefix(p, "waves crashing at dusk"))
	assert.NotContains(t, p, basePrompt)
	assert.Contains(t, p, barsClause)
}

func TestForGeometryNoPadding(t *testing.T) {
	p := ForGeometry("", ratio.Geometry{Orientation: ratio.OrientationNone})
	assert.Contains(t, p, formatClause)
	assert.NotContains(t, p, "magenta")
}
