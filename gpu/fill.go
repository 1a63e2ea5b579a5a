package gpu

// FillMethod selects how a shader's logical render target maps onto the
// physical surface.
type FillMethod struct {
	Kind          FillMethodKind
	ContentWidth  uint32
	ContentHeight uint32
	RepeatX       float32
	RepeatY       float32
}

type FillMethodKind int

const (
	FillStretch FillMethodKind = iota
	FillCenter
	FillTile
)

func max1(v uint32) float32 {
	if v < 1 {
		return 1
	}
	return float32(v)
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// LogicalDimensions computes the logical render-target size for a fill
// method against a physical surface, with fillScale already applied.
func LogicalDimensions(fillScale float32, method FillMethod, surfaceWidth, surfaceHeight uint32) (width, height float32) {
	surfaceW := max1(surfaceWidth)
	surfaceH := max1(surfaceHeight)
	switch method.Kind {
	case FillCenter:
		return maxF(float32(method.ContentWidth), 1.0) * fillScale, maxF(float32(method.ContentHeight), 1.0) * fillScale
	default: // FillStretch, FillTile
		return surfaceW * fillScale, surfaceH * fillScale
	}
}

// FillParameters computes the iFill scale/offset and the iFillWrap wrap
// periods (logical size divided by the repeat count for tiling, 0
// otherwise) for a fill method, given the surface size and the logical dimensions already
// produced by LogicalDimensions.
func FillParameters(fillScale float32, method FillMethod, surfaceWidth, surfaceHeight uint32, logicalWidth, logicalHeight float32) (scaleX, scaleY, offsetX, offsetY, wrapX, wrapY float32) {
	surfaceW := max1(surfaceWidth)
	surfaceH := max1(surfaceHeight)

	if surfaceW > 0 {
		scaleX = logicalWidth / surfaceW
	} else {
		scaleX = maxF(fillScale, 0.0001)
	}
	if surfaceH > 0 {
		scaleY = logicalHeight / surfaceH
	} else {
		scaleY = maxF(fillScale, 0.0001)
	}

	switch method.Kind {
	case FillStretch:
		// scale/offset/wrap stay at their defaults.
	case FillCenter:
		contentW := maxF(float32(method.ContentWidth), 1.0)
		contentH := maxF(float32(method.ContentHeight), 1.0)
		contentPhysicalW := minF(contentW, surfaceW)
		contentPhysicalH := minF(contentH, surfaceH)

		if contentPhysicalW > 0 {
			scaleX = (contentW * fillScale) / contentPhysicalW
		}
		if contentPhysicalH > 0 {
			scaleY = (contentH * fillScale) / contentPhysicalH
		}

		left := (surfaceW - contentPhysicalW) * 0.5
		bottom := (surfaceH - contentPhysicalH) * 0.5
		offsetX = -left * scaleX
		offsetY = -bottom * scaleY
	case FillTile:
		repeatsX := maxF(method.RepeatX, 0)
		repeatsY := maxF(method.RepeatY, 0)
		if repeatsX > 0 {
			wrapX = logicalWidth / repeatsX
			scaleX *= repeatsX
		}
		if repeatsY > 0 {
			wrapY = logicalHeight / repeatsY
			scaleY *= repeatsY
		}
	}

	return scaleX, scaleY, offsetX, offsetY, wrapX, wrapY
}
