package imaging

import (
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// LowContrast is the contrast below which a capture is treated as washed out
// and gets a contrast stretch before global thresholding.
const LowContrast = 25.0

// Stats summarises the tonal distribution of an image.
type Stats struct {
	// Contrast is the standard deviation of CIE L*, scaled to 0-255.
	Contrast float64 `json:"contrast"`

	// MeanLightness is the mean CIE L*, scaled to 0-255.
	MeanLightness float64 `json:"mean_lightness"`

	// DarkRatio is the fraction of pixels darker than mid-grey.
	DarkRatio float64 `json:"dark_ratio"`
}

// Contrast returns the standard deviation of perceptual lightness.
//
// Lightness is CIE L* (0-100) computed by go-colorful and rescaled to the
// 0-255 range so it is comparable with 8-bit pixel statistics.
func Contrast(img image.Image) float64 {
	return Analyze(img).Contrast
}

// DarkRatio returns the fraction of pixels whose lightness is below
// mid-grey. A binarised page with a ratio above 0.6 is most likely light
// text on a dark background.
func DarkRatio(img image.Image) float64 {
	return Analyze(img).DarkRatio
}

// Analyze computes lightness statistics over every pixel.
//
// Fully transparent pixels are treated as white paper.
func Analyze(img image.Image) Stats {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return Stats{}
	}

	var sum, sumSq float64
	dark := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := lightness(img, x, y)
			sum += l
			sumSq += l * l
			if l < 127.5 {
				dark++
			}
		}
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	return Stats{
		Contrast:      math.Round(math.Sqrt(variance)*100) / 100,
		MeanLightness: math.Round(mean*100) / 100,
		DarkRatio:     float64(dark) / float64(n),
	}
}

// lightness returns the CIE L* of a pixel on a 0-255 scale.
func lightness(img image.Image, x, y int) float64 {
	c, ok := colorful.MakeColor(img.At(x, y))
	if !ok {
		return 255
	}
	l, _, _ := c.Lab()
	if l < 0 {
		l = 0
	}
	if l > 1 {
		l = 1
	}
	return l * 255
}
