// Package preprocess turns a capture into an image tuned for OCR.
//
// The chain is a pure function of the capture and Options. Steps run in a
// fixed order: region of interest, upscale, grayscale, denoise, sharpen,
// deskew, threshold, polarity. Every applied step is recorded on the result
// so that word boxes can be mapped back to the capture and runs can be
// compared.
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/ironsheep/doccam-ocr/internal/detection"
	"github.com/ironsheep/doccam-ocr/internal/errs"
	source "github.com/ironsheep/doccam-ocr/internal/imaging"
	"github.com/ironsheep/doccam-ocr/internal/logging"
)

// PolarityRatio is the dark-pixel share above which a binarised page is
// inverted.
const PolarityRatio = 0.6

// maxUpscaledSide bounds the longer side after upscaling so a thin strip
// does not explode into a huge image.
const maxUpscaledSide = 4096

// minSkewCorrection is the smallest estimated skew, in degrees, worth a
// rotation.
const minSkewCorrection = 0.2

// PreprocessedImage is the output of the filter chain.
type PreprocessedImage struct {
	Image      image.Image       `json:"-"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	ColorSpace source.ColorSpace `json:"color_space"`

	// Scale is the resize factor applied to the capture, 1 when not resized.
	Scale float64 `json:"scale"`

	// Offset is the top-left of the region of interest in capture
	// coordinates.
	Offset image.Point `json:"offset"`

	// SkewDegrees is the counter-clockwise rotation applied by deskew.
	SkewDegrees float64 `json:"skew_degrees"`

	// Threshold is the binarisation actually used; auto resolves to otsu or
	// adaptive.
	Threshold ThresholdMode `json:"threshold"`

	// Contrast is the lightness spread measured before binarisation.
	Contrast float64 `json:"contrast"`

	Inverted bool     `json:"inverted"`
	Steps    []string `json:"steps"`
}

// Channels returns the channel count of the result.
func (p *PreprocessedImage) Channels() int {
	return p.ColorSpace.Channels()
}

// ToSource maps a point in preprocessed coordinates back to the capture.
//
// Deskew rotations are small and about the centre, so they are ignored.
func (p *PreprocessedImage) ToSource(pt image.Point) image.Point {
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	return image.Point{
		X: int(math.Round(float64(pt.X)/scale)) + p.Offset.X,
		Y: int(math.Round(float64(pt.Y)/scale)) + p.Offset.Y,
	}
}

// Preprocessor applies a validated filter chain.
type Preprocessor struct {
	opts   Options
	logger zerolog.Logger
}

// New validates opts and returns a preprocessor.
func New(opts Options) (*Preprocessor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Preprocessor{
		opts:   opts,
		logger: logging.Component("preprocess"),
	}, nil
}

// Options returns the chain configuration.
func (p *Preprocessor) Options() Options {
	return p.opts
}

// Process runs the filter chain over a capture.
//
// Returns an ImageError when the capture is nil or has zero width or height.
// The capture's pixels are never modified.
func (p *Preprocessor) Process(captured *source.CapturedImage) (*PreprocessedImage, error) {
	if captured == nil || captured.Image == nil {
		return nil, errs.Errorf(errs.ImageError, "preprocess", "no image")
	}
	b := captured.Image.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errs.Errorf(errs.ImageError, "preprocess", "image has zero dimensions (%dx%d)", b.Dx(), b.Dy())
	}

	o := p.opts
	img := captured.Image
	out := &PreprocessedImage{Scale: 1, Threshold: ThresholdNone, Steps: []string{}}

	switch o.ROI {
	case ROIMargin:
		if o.ROIMargin > 0 {
			cropped, offset, err := source.CropMargin(img, o.ROIMargin)
			if err != nil {
				return nil, errs.E(errs.ImageError, "preprocess roi", err)
			}
			img = cropped
			out.Offset = offset
			out.Steps = append(out.Steps, "roi:margin")
		}
	case ROIAuto:
		if bounds, ok := detection.TextBounds(img, 0.3); ok {
			cropped, err := source.CropRect(img, bounds.Rect())
			if err == nil {
				img = cropped
				out.Offset = bounds.Rect().Min.Sub(b.Min)
				out.Steps = append(out.Steps, "roi:auto")
			}
		}
	}

	if o.Upscale {
		if scale := upscaleFactor(img, o.MinSide, o.TargetSide); scale > 1 {
			w, h := img.Bounds().Dx(), img.Bounds().Dy()
			nw := max(1, int(float64(w)*scale))
			nh := max(1, int(float64(h)*scale))
			img = imaging.Resize(img, nw, nh, imaging.Lanczos)
			out.Scale = scale
			out.Steps = append(out.Steps, fmt.Sprintf("upscale:%.3f", scale))
		}
	}

	gray := o.Grayscale || o.Threshold != ThresholdNone
	if gray {
		if _, already := img.(*image.Gray); !already {
			img = toGray(effect.Grayscale(img))
			out.Steps = append(out.Steps, "grayscale")
		}
	}
	keep := func(result image.Image) image.Image {
		if gray {
			return toGray(result)
		}
		return result
	}

	switch o.Denoise {
	case DenoiseGaussian:
		img = keep(blur.Gaussian(img, o.DenoiseRadius))
		out.Steps = append(out.Steps, "denoise:gaussian")
	case DenoiseMedian:
		img = keep(effect.Median(img, o.DenoiseRadius))
		out.Steps = append(out.Steps, "denoise:median")
	case DenoiseMorph:
		img = keep(effect.Erode(effect.Dilate(img, o.DenoiseRadius), o.DenoiseRadius))
		out.Steps = append(out.Steps, "denoise:morph")
	}

	if o.Sharpen > 0 {
		img = keep(imaging.Sharpen(img, o.Sharpen))
		out.Steps = append(out.Steps, "sharpen")
	}

	if o.Deskew {
		skew := detection.EstimateSkew(img, o.MaxSkewDegrees, 0.25)
		if math.Abs(skew.Angle) >= minSkewCorrection && skew.Confidence > 0 {
			w, h := img.Bounds().Dx(), img.Bounds().Dy()
			rotated := imaging.Rotate(img, skew.Angle, color.White)
			img = keep(imaging.CropCenter(rotated, w, h))
			out.SkewDegrees = skew.Angle
			out.Steps = append(out.Steps, fmt.Sprintf("deskew:%.2f", skew.Angle))
		}
	}

	out.Contrast = source.Contrast(img)

	mode := o.Threshold
	if mode == ThresholdAuto {
		if out.Contrast < source.LowContrast {
			img = stretchContrast(img)
			out.Steps = append(out.Steps, "stretch")
			mode = ThresholdOtsu
		} else {
			mode = ThresholdAdaptive
		}
	}
	switch mode {
	case ThresholdFixed:
		img = fixedThreshold(img, o.FixedLevel)
	case ThresholdAdaptive:
		img = adaptiveThreshold(img, o.AdaptiveBlock, o.AdaptiveC)
	case ThresholdOtsu:
		var level int
		img, level = otsuThreshold(img)
		p.logger.Debug().Int("level", level).Msg("Otsu threshold")
	}
	if mode != ThresholdNone {
		out.Threshold = mode
		out.Steps = append(out.Steps, "threshold:"+string(mode))

		if o.NormalizePolarity && source.DarkRatio(img) > PolarityRatio {
			img = toGray(effect.Invert(img))
			out.Inverted = true
			out.Steps = append(out.Steps, "invert")
		}
	}

	out.Image = img
	out.Width = img.Bounds().Dx()
	out.Height = img.Bounds().Dy()
	out.ColorSpace = source.ColorSpaceOf(img)

	p.logger.Debug().
		Int("width", out.Width).
		Int("height", out.Height).
		Float64("scale", out.Scale).
		Float64("contrast", out.Contrast).
		Strs("steps", out.Steps).
		Msg("Preprocessed capture")

	return out, nil
}

// upscaleFactor returns the factor that brings the shorter side of a small
// image up to target, or 1 when both sides are at least minSide.
func upscaleFactor(img image.Image, minSide, target int) float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w >= minSide && h >= minSide {
		return 1
	}
	scale := math.Max(float64(target)/float64(w), float64(target)/float64(h))
	if longer := float64(max(w, h)); longer*scale > maxUpscaledSide {
		scale = maxUpscaledSide / longer
	}
	return scale
}

// Capture wraps a preprocessed image as a capture so it can be fed through
// the chain again or handed to a tool that expects a capture.
func (p *PreprocessedImage) Capture(label string) (*source.CapturedImage, error) {
	return source.FromImage(p.Image, label)
}
