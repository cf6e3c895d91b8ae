package preprocess

import (
	"github.com/ironsheep/doccam-ocr/internal/errs"
)

// ThresholdMode selects how the image is binarised.
type ThresholdMode string

const (
	ThresholdNone     ThresholdMode = "none"
	ThresholdFixed    ThresholdMode = "fixed"
	ThresholdAdaptive ThresholdMode = "adaptive"
	ThresholdOtsu     ThresholdMode = "otsu"

	// ThresholdAuto picks a contrast stretch plus Otsu for washed-out
	// captures and adaptive thresholding otherwise.
	ThresholdAuto ThresholdMode = "auto"
)

// DenoiseMode selects the noise filter.
type DenoiseMode string

const (
	DenoiseNone     DenoiseMode = "none"
	DenoiseGaussian DenoiseMode = "gaussian"
	DenoiseMedian   DenoiseMode = "median"

	// DenoiseMorph is a morphological closing (dilate then erode) that
	// removes dark specks smaller than the radius.
	DenoiseMorph DenoiseMode = "morph"
)

// ROIMode selects the region of interest handed to OCR.
type ROIMode string

const (
	ROINone   ROIMode = "none"
	ROIMargin ROIMode = "margin"
	ROIAuto   ROIMode = "auto"
)

// Options configures the filter chain.
type Options struct {
	Grayscale bool `yaml:"grayscale" json:"grayscale"`

	Threshold     ThresholdMode `yaml:"threshold" json:"threshold"`
	FixedLevel    int           `yaml:"fixed_level" json:"fixed_level"`
	AdaptiveBlock int           `yaml:"adaptive_block" json:"adaptive_block"` // odd window size
	AdaptiveC     float64       `yaml:"adaptive_c" json:"adaptive_c"`         // subtracted from the local mean

	Denoise       DenoiseMode `yaml:"denoise" json:"denoise"`
	DenoiseRadius float64     `yaml:"denoise_radius" json:"denoise_radius"`

	Deskew         bool    `yaml:"deskew" json:"deskew"`
	MaxSkewDegrees float64 `yaml:"max_skew_degrees" json:"max_skew_degrees"`

	// Upscale enlarges captures smaller than MinSide on either side so the
	// shorter side reaches TargetSide.
	Upscale    bool `yaml:"upscale" json:"upscale"`
	MinSide    int  `yaml:"min_side" json:"min_side"`
	TargetSide int  `yaml:"target_side" json:"target_side"`

	// Sharpen is the unsharp sigma; 0 disables sharpening.
	Sharpen float64 `yaml:"sharpen" json:"sharpen"`

	ROI       ROIMode `yaml:"roi" json:"roi"`
	ROIMargin float64 `yaml:"roi_margin" json:"roi_margin"`

	// NormalizePolarity inverts binarised pages that are mostly dark so text
	// is always dark on a light background.
	NormalizePolarity bool `yaml:"normalize_polarity" json:"normalize_polarity"`
}

// DefaultOptions returns the chain used for document camera captures.
func DefaultOptions() Options {
	return Options{
		Grayscale:         true,
		Threshold:         ThresholdAuto,
		FixedLevel:        128,
		AdaptiveBlock:     11,
		AdaptiveC:         2,
		Denoise:           DenoiseMedian,
		DenoiseRadius:     1,
		Deskew:            true,
		MaxSkewDegrees:    15,
		Upscale:           true,
		MinSide:           400,
		TargetSide:        600,
		Sharpen:           0,
		ROI:               ROINone,
		ROIMargin:         0.1,
		NormalizePolarity: true,
	}
}

// Validate reports the first invalid option as an ImageError.
func (o Options) Validate() error {
	switch o.Threshold {
	case ThresholdNone, ThresholdFixed, ThresholdAdaptive, ThresholdOtsu, ThresholdAuto:
	default:
		return invalid("threshold", "unknown mode %q", o.Threshold)
	}
	if o.FixedLevel < 0 || o.FixedLevel > 255 {
		return invalid("fixed_level", "%d outside [0, 255]", o.FixedLevel)
	}
	if o.Threshold == ThresholdAdaptive || o.Threshold == ThresholdAuto {
		if o.AdaptiveBlock < 3 || o.AdaptiveBlock%2 == 0 {
			return invalid("adaptive_block", "must be an odd number >= 3, got %d", o.AdaptiveBlock)
		}
	}

	switch o.Denoise {
	case DenoiseNone:
	case DenoiseGaussian, DenoiseMedian, DenoiseMorph:
		if o.DenoiseRadius <= 0 {
			return invalid("denoise_radius", "must be positive, got %g", o.DenoiseRadius)
		}
	default:
		return invalid("denoise", "unknown mode %q", o.Denoise)
	}

	if o.Deskew && (o.MaxSkewDegrees <= 0 || o.MaxSkewDegrees > 45) {
		return invalid("max_skew_degrees", "%g outside (0, 45]", o.MaxSkewDegrees)
	}
	if o.Upscale && (o.MinSide <= 0 || o.TargetSide < o.MinSide) {
		return invalid("target_side", "need 0 < min_side <= target_side, got %d and %d", o.MinSide, o.TargetSide)
	}
	if o.Sharpen < 0 {
		return invalid("sharpen", "must not be negative, got %g", o.Sharpen)
	}

	switch o.ROI {
	case ROINone, ROIAuto:
	case ROIMargin:
		if o.ROIMargin < 0 || o.ROIMargin >= 0.5 {
			return invalid("roi_margin", "%g outside [0, 0.5)", o.ROIMargin)
		}
	default:
		return invalid("roi", "unknown mode %q", o.ROI)
	}
	return nil
}

func invalid(option, format string, args ...any) error {
	return errs.Errorf(errs.ImageError, "preprocess option "+option, format, args...)
}
