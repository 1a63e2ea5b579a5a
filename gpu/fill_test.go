package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogicalDimensionsStretch(t *testing.T) {
	w, h := LogicalDimensions(1.0, FillMethod{Kind: FillStretch}, 1920, 1080)
	assert.Equal(t, float32(1920), w)
	assert.Equal(t, float32(1080), h)
}

func TestLogicalDimensionsCenterUsesContentSize(t *testing.T) {
	w, h := LogicalDimensions(1.0, FillMethod{Kind: FillCenter, ContentWidth: 640, ContentHeight: 480}, 1920, 1080)
	assert.Equal(t, float32(640), w)
	assert.Equal(t, float32(480), h)
}

func TestFillParametersStretchIsIdentity(t *testing.T) {
	sx, sy, ox, oy, wx, wy := FillParameters(1.0, FillMethod{Kind: FillStretch}, 1920, 1080, 1920, 1080)
	assert.Equal(t, float32(1), sx)
	assert.Equal(t, float32(1), sy)
	assert.Equal(t, float32(0), ox)
	assert.Equal(t, float32(0), oy)
	assert.Equal(t, float32(0), wx)
	assert.Equal(t, float32(0), wy)
}

func TestFillParametersCenterOffsetsSymmetrically(t *testing.T) {
	method := FillMethod{Kind: FillCenter, ContentWidth: 640, ContentHeight: 480}
	logicalW, logicalH := LogicalDimensions(1.0, method, 1920, 1080)
	sx, sy, ox, oy, _, _ := FillParameters(1.0, method, 1920, 1080, logicalW, logicalH)

	assert.Equal(t, float32(1), sx)
	assert.Equal(t, float32(1), sy)
	// left = (1920-640)/2 = 640, offsetX = -640 * scaleX = -640
	assert.Equal(t, float32(-640), ox)
	// bottom = (1080-480)/2 = 300, offsetY = -300
	assert.Equal(t, float32(-300), oy)
}

func TestFillParametersTileSetsWrapPeriod(t *testing.T) {
	method := FillMethod{Kind: FillTile, RepeatX: 4, RepeatY: 2}
	logicalW, logicalH := LogicalDimensions(1.0, method, 1920, 1080)
	sx, sy, _, _, wx, wy := FillParameters(1.0, method, 1920, 1080, logicalW, logicalH)

	assert.Equal(t, float32(4), sx)
	assert.Equal(t, float32(2), sy)
	assert.Equal(t, float32(1920)/4, wx)
	assert.Equal(t, float32(1080)/2, wy)
}

func TestFillParametersTileWithZeroRepeatsLeavesWrapOff(t *testing.T) {
	method := FillMethod{Kind: FillTile, RepeatX: 0, RepeatY: 0}
	logicalW, logicalH := LogicalDimensions(1.0, method, 1920, 1080)
	sx, sy, _, _, wx, wy := FillParameters(1.0, method, 1920, 1080, logicalW, logicalH)

	assert.Equal(t, float32(1), sx)
	assert.Equal(t, float32(1), sy)
	assert.Equal(t, float32(0), wx)
	assert.Equal(t, float32(0), wy)
}
