package imaging

import (
	"image"
	"math"
)

// DefaultMinSharpness is the Laplacian variance below which a capture is
// considered too blurry for reliable OCR.
const DefaultMinSharpness = 50.0

// FocusResult reports how sharp a capture is.
type FocusResult struct {
	// Measure is the variance of the Laplacian over 8-bit luminance.
	Measure float64 `json:"measure"`

	// Threshold is the minimum measure the capture was checked against.
	Threshold float64 `json:"threshold"`

	// Focused is true when Measure exceeds Threshold.
	Focused bool `json:"focused"`
}

// FocusMeasure returns the variance of the Laplacian of the image.
//
// The image is converted to luminance (ITU-R BT.601 weights, 0-255 scale) and
// convolved with the 4-neighbour Laplacian kernel:
//
//	0  1  0
//	1 -4  1
//	0  1  0
//
// Sharp text produces strong second derivatives and a high variance; defocused
// or motion-blurred captures produce a low one. Border pixels use clamped
// (replicated) edge values.
func FocusMeasure(img image.Image) float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	gray := luminanceMatrix(img)

	var sum, sumSq float64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			lap := gray[clamp(y-1, 0, height-1)][x] +
				gray[clamp(y+1, 0, height-1)][x] +
				gray[y][clamp(x-1, 0, width-1)] +
				gray[y][clamp(x+1, 0, width-1)] -
				4*gray[y][x]
			sum += lap
			sumSq += lap * lap
		}
	}

	n := float64(width * height)
	mean := sum / n
	return sumSq/n - mean*mean
}

// CheckFocus compares the focus measure against minSharpness. A non-positive
// minSharpness uses DefaultMinSharpness.
func CheckFocus(img image.Image, minSharpness float64) FocusResult {
	if minSharpness <= 0 {
		minSharpness = DefaultMinSharpness
	}
	measure := FocusMeasure(img)
	return FocusResult{
		Measure:   math.Round(measure*100) / 100,
		Threshold: minSharpness,
		Focused:   measure > minSharpness,
	}
}

// IsFocused reports whether the focus measure exceeds minSharpness.
func IsFocused(img image.Image, minSharpness float64) bool {
	return CheckFocus(img, minSharpness).Focused
}

// luminanceMatrix converts an image to a row-major matrix of 8-bit luminance
// values stored as float64.
func luminanceMatrix(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, height)
	for y := 0; y < height; y++ {
		gray[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			gray[y][x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return gray
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
