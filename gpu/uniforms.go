// Package gpu is the rendering core: it owns the device, surface,
// swapchain, pipelines, uniform buffer, channel resources, cross-fade
// envelope, and frame pacing, built on github.com/gogpu/wgpu.
package gpu

import (
	"encoding/binary"
	"math"
	"time"
)

// ChannelCount is the number of iChannel slots.
const ChannelCount = 4

// Byte offsets of the uniform block's std140 fields. The offsets of
// iResolution, iTime, iMouse, iDate, iSampleRate, iFade, iChannelTime,
// and iChannelResolution (0, 16, 32, 48, 64, 68, 80, 144) are a frozen
// contract shared with the shader prologue. PrimaryFieldsSize (208) is
// the size of the struct prefix ending at the close of
// iChannelResolution; the fill-method fields iSurface/iFill/iFillWrap
// follow immediately after as three more vec4 fields, bringing the full
// encoded buffer to EncodedSize bytes.
const (
	OffsetResolution         = 0
	OffsetTime               = 16
	OffsetTimeDelta          = 20
	OffsetFrame              = 24
	OffsetMouse              = 32
	OffsetDate                = 48
	OffsetSampleRate          = 64
	OffsetFade                = 68
	OffsetChannelTime         = 80
	OffsetChannelResolution   = 144
	PrimaryFieldsSize         = 208
	OffsetSurface             = PrimaryFieldsSize
	OffsetFill                = OffsetSurface + 16
	OffsetFillWrap            = OffsetFill + 16
	EncodedSize               = OffsetFillWrap + 16
	EncodedAlign              = 16
)

// Uniforms is the Go-side working copy of the std140 uniform block.
// Encode() serialises it into the exact byte layout a wgpu
// uniform buffer expects; Go's own struct layout rules do not guarantee
// std140 alignment, so the wire format is produced explicitly rather than
// relying on unsafe.Sizeof of this struct.
type Uniforms struct {
	Resolution [4]float32 // w, h, _, iTime mirror

	Time      float32
	TimeDelta float32
	Frame     int32

	Mouse [4]float32
	Date  [4]float32

	SampleRate float32
	Fade       float32

	ChannelTime       [ChannelCount][4]float32
	ChannelResolution [ChannelCount][4]float32

	Surface  [4]float32
	Fill     [4]float32
	FillWrap [4]float32
}

// NewUniforms initialises a Uniforms with resolution set and iFade=1.0.
func NewUniforms(width, height float32) Uniforms {
	var u Uniforms
	u.SetResolution(width, height)
	u.Fade = 1.0
	return u
}

// SetResolution sets iResolution.xy and mirrors iTime into iResolution.w.
func (u *Uniforms) SetResolution(width, height float32) {
	u.Resolution[0] = width
	u.Resolution[1] = height
	u.Resolution[3] = u.Time
}

// SetSurface sets iSurface.xy to the presentable surface size.
func (u *Uniforms) SetSurface(width, height float32) {
	u.Surface[0] = width
	u.Surface[1] = height
}

// SetFill sets the fill-transform scale/offset uniform.
func (u *Uniforms) SetFill(scaleX, scaleY, offsetX, offsetY float32) {
	u.Fill = [4]float32{scaleX, scaleY, offsetX, offsetY}
}

// SetFillWrap sets the fill wrap-around periods for x and y.
func (u *Uniforms) SetFillWrap(wrapX, wrapY float32) {
	u.FillWrap = [4]float32{wrapX, wrapY, 0, 0}
}

// SetFade sets the cross-fade mix for this draw.
func (u *Uniforms) SetFade(fade float32) { u.Fade = fade }

// SetChannelResolution records channel's texture resolution (w, h, 1, 0)
// for the iChannelResolution array.
func (u *Uniforms) SetChannelResolution(channel int, width, height float32) {
	u.ChannelResolution[channel] = [4]float32{width, height, 1, 0}
}

// TimeSample is an explicit, caller-provided animation time for
// still/export render policies, so those modes are deterministic.
type TimeSample struct {
	Seconds    float64
	FrameIndex int32
}

// UpdateTime advances iTime/iTimeDelta/iFrame either from an explicit
// TimeSample (still/export modes) or from the monotonic wall clock
// (free-run). origin and lastFrame are mutated
// in place; frameCounter tracks the free-run frame index.
func (u *Uniforms) UpdateTime(origin, lastFrame *time.Time, frameCounter *int32, now time.Time, sample *TimeSample, mouse [4]float32) {
	if sample != nil {
		if *frameCounter == 0 {
			u.TimeDelta = 0
		} else {
			u.TimeDelta = float32(sample.Seconds) - u.Time
		}
		u.Time = float32(sample.Seconds)
		u.Frame = sample.FrameIndex
		*frameCounter = sample.FrameIndex
		*origin = now
		*lastFrame = now
	} else {
		if *frameCounter == 0 {
			*origin = now
			*lastFrame = now
		}
		u.Time = float32(now.Sub(*origin).Seconds())
		u.TimeDelta = float32(now.Sub(*lastFrame).Seconds())
		u.Frame = *frameCounter
		*lastFrame = now
		*frameCounter++
	}
	u.Resolution[3] = u.Time
	u.Mouse = mouse
}

// RefreshDate sets iDate from the local wall-clock: year, month (1-based),
// day, and seconds-since-midnight, matching GLSL's iDate convention.
func (u *Uniforms) RefreshDate(now time.Time) {
	y, m, d := now.Date()
	secondsSinceMidnight := now.Sub(time.Date(y, m, d, 0, 0, 0, 0, now.Location())).Seconds()
	u.Date = [4]float32{float32(y), float32(int(m)), float32(d), float32(secondsSinceMidnight)}
}

// Encode serialises u into the exact EncodedSize-byte std140 layout.
func (u *Uniforms) Encode() [EncodedSize]byte {
	var buf [EncodedSize]byte
	putVec4(buf[OffsetResolution:], u.Resolution)
	putF32(buf[OffsetTime:], u.Time)
	putF32(buf[OffsetTimeDelta:], u.TimeDelta)
	binary.LittleEndian.PutUint32(buf[OffsetFrame:], uint32(u.Frame))
	putVec4(buf[OffsetMouse:], u.Mouse)
	putVec4(buf[OffsetDate:], u.Date)
	putF32(buf[OffsetSampleRate:], u.SampleRate)
	putF32(buf[OffsetFade:], u.Fade)
	for i := 0; i < ChannelCount; i++ {
		putVec4(buf[OffsetChannelTime+i*16:], u.ChannelTime[i])
	}
	for i := 0; i < ChannelCount; i++ {
		putVec4(buf[OffsetChannelResolution+i*16:], u.ChannelResolution[i])
	}
	putVec4(buf[OffsetSurface:], u.Surface)
	putVec4(buf[OffsetFill:], u.Fill)
	putVec4(buf[OffsetFillWrap:], u.FillWrap)
	return buf
}

func putF32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

func putVec4(dst []byte, v [4]float32) {
	for i, f := range v {
		putF32(dst[i*4:], f)
	}
}
