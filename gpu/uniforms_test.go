package gpu

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestUniformLayout asserts the bit-exact offsets the shader prologue
// requires, plus the 208-byte primary-field prefix and the full encoded
// buffer size (see the doc comment on PrimaryFieldsSize in uniforms.go for
// why iSurface/iFill/iFillWrap extend past that prefix).
func TestUniformLayout(t *testing.T) {
	assert.Equal(t, 0, OffsetResolution)
	assert.Equal(t, 16, OffsetTime)
	assert.Equal(t, 32, OffsetMouse)
	assert.Equal(t, 48, OffsetDate)
	assert.Equal(t, 64, OffsetSampleRate)
	assert.Equal(t, 68, OffsetFade)
	assert.Equal(t, 80, OffsetChannelTime)
	assert.Equal(t, 144, OffsetChannelResolution)
	assert.Equal(t, 208, PrimaryFieldsSize)
	assert.Equal(t, 16, EncodedAlign)
	assert.Equal(t, 256, EncodedSize)
}

func TestEncodeRoundTripsFieldsAtOffsets(t *testing.T) {
	u := NewUniforms(1920, 1080)
	u.SetSurface(1920, 1080)
	u.SetFill(1, 1, 0, 0)
	u.SetFillWrap(1, 0)
	u.SetChannelResolution(0, 256, 256)
	u.Time = 12.5
	u.Fade = 0.75

	buf := u.Encode()
	assert.Len(t, buf, EncodedSize)

	decodedFade := decodeF32(buf[OffsetFade:])
	assert.InDelta(t, 0.75, decodedFade, 1e-6)

	decodedTime := decodeF32(buf[OffsetTime:])
	assert.InDelta(t, 12.5, decodedTime, 1e-6)

	decodedResW := decodeF32(buf[OffsetResolution:])
	assert.InDelta(t, 1920, decodedResW, 1e-6)
}

func decodeF32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

func TestUpdateTimeFreeRunFirstFrameHasZeroDelta(t *testing.T) {
	var u Uniforms
	var origin, lastFrame time.Time
	var frame int32
	now := time.Now()

	u.UpdateTime(&origin, &lastFrame, &frame, now, nil, [4]float32{})
	assert.Equal(t, float32(0), u.Time)
	assert.Equal(t, float32(0), u.TimeDelta)
	assert.Equal(t, int32(1), frame)

	later := now.Add(500 * time.Millisecond)
	u.UpdateTime(&origin, &lastFrame, &frame, later, nil, [4]float32{})
	assert.InDelta(t, 0.5, float64(u.Time), 0.01)
	assert.InDelta(t, 0.5, float64(u.TimeDelta), 0.01)
	assert.Equal(t, int32(2), frame)
}

func TestUpdateTimeExplicitSampleIsDeterministic(t *testing.T) {
	var u Uniforms
	var origin, lastFrame time.Time
	var frame int32
	now := time.Now()

	u.UpdateTime(&origin, &lastFrame, &frame, now, &TimeSample{Seconds: 3.0, FrameIndex: 90}, [4]float32{})
	assert.Equal(t, float32(3.0), u.Time)
	assert.Equal(t, int32(90), u.Frame)
	assert.Equal(t, int32(90), frame)

	u.UpdateTime(&origin, &lastFrame, &frame, now, &TimeSample{Seconds: 3.0166, FrameIndex: 91}, [4]float32{})
	assert.InDelta(t, 0.0166, float64(u.TimeDelta), 0.001)
}

func TestRefreshDateSetsComponents(t *testing.T) {
	var u Uniforms
	now := time.Date(2026, time.March, 5, 13, 0, 0, 0, time.UTC)
	u.RefreshDate(now)
	assert.Equal(t, float32(2026), u.Date[0])
	assert.Equal(t, float32(3), u.Date[1])
	assert.Equal(t, float32(5), u.Date[2])
	assert.InDelta(t, 13*3600, float64(u.Date[3]), 1)
}
