package preprocess

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// toGray converts any image to a single-channel image. *image.Gray input is
// returned as is.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// fixedThreshold sets pixels at or above level to white and the rest to black.
func fixedThreshold(img image.Image, level int) *image.Gray {
	return segment.Threshold(img, uint8(level))
}

// adaptiveThreshold compares every pixel with the mean of its block x block
// neighbourhood. Pixels brighter than mean - c become white.
func adaptiveThreshold(img image.Image, block int, c float64) *image.Gray {
	gray := toGray(img)
	mean := toGray(blur.Box(gray, float64(block-1)/2))

	b := gray.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(gray.GrayAt(x, y).Y)
			m := float64(mean.GrayAt(x-b.Min.X+mean.Rect.Min.X, y-b.Min.Y+mean.Rect.Min.Y).Y)
			if v > m-c {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// otsuLevel returns the luminance that maximises the between-class variance
// of the image histogram.
func otsuLevel(img image.Image) int {
	hist := imaging.Histogram(img)

	var total float64
	for i, p := range hist {
		total += float64(i) * p
	}

	var sumB, wB float64
	best := 0
	bestVar := -1.0
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := 1 - wB
		if wF <= 0 {
			break
		}
		sumB += float64(t) * hist[t]
		mB := sumB / wB
		mF := (total - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	return best
}

// otsuThreshold binarises with the Otsu level; pixels above it become white.
func otsuThreshold(img image.Image) (*image.Gray, int) {
	level := otsuLevel(img)
	return fixedThreshold(img, min(level+1, 255)), level
}

// stretchContrast linearly maps the 1st..99th luminance percentile onto the
// full 0-255 range.
func stretchContrast(img image.Image) image.Image {
	hist := imaging.Histogram(img)

	lo, hi := 0, 255
	var acc float64
	for i := 0; i < 256; i++ {
		acc += hist[i]
		if acc >= 0.01 {
			lo = i
			break
		}
	}
	acc = 0
	for i := 255; i >= 0; i-- {
		acc += hist[i]
		if acc >= 0.01 {
			hi = i
			break
		}
	}
	if hi <= lo {
		return img
	}

	scale := 255 / float64(hi-lo)
	stretch := func(v uint8) uint8 {
		f := (float64(v) - float64(lo)) * scale
		switch {
		case f < 0:
			return 0
		case f > 255:
			return 255
		}
		return uint8(f + 0.5)
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
	})
}
