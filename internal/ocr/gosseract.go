//go:build cgo && linux

package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"github.com/ironsheep/doccam-ocr/internal/errs"
	source "github.com/ironsheep/doccam-ocr/internal/imaging"
	"github.com/ironsheep/doccam-ocr/internal/logging"
	"github.com/ironsheep/doccam-ocr/internal/preprocess"
)

// gosseractAvailable reports whether the linked libtesseract answers with a
// version.
func gosseractAvailable() bool {
	return gosseract.Version() != ""
}

// GosseractEngine recognises text in-process through libtesseract.
type GosseractEngine struct {
	opts   Options
	logger zerolog.Logger
}

// NewGosseract returns the in-process backend.
func NewGosseract(opts Options) *GosseractEngine {
	return &GosseractEngine{
		opts:   opts,
		logger: logging.Component("ocr").With().Str("backend", string(BackendGosseract)).Logger(),
	}
}

// Name returns "gosseract".
func (e *GosseractEngine) Name() string {
	return string(BackendGosseract)
}

// Recognize runs Tesseract on the PNG-encoded image and groups the word
// boxes into lines.
//
// The cgo call cannot be interrupted; ctx is only checked before and after.
func (e *GosseractEngine) Recognize(ctx context.Context, img *preprocess.PreprocessedImage) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, interrupted("start recognition", err)
	}
	if img == nil || img.Image == nil {
		return nil, errs.Errorf(errs.ImageError, "ocr", "no image")
	}

	data, err := source.EncodePNG(img.Image)
	if err != nil {
		return nil, errs.E(errs.ImageError, "ocr", err)
	}
	psm, err := e.opts.PSM()
	if err != nil {
		return nil, errs.E(errs.RecognitionError, "ocr", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if e.opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.opts.TessdataPrefix); err != nil {
			return nil, errs.E(errs.EngineUnavailable, "ocr", fmt.Errorf("failed to set tessdata path: %w", err))
		}
	}
	if err := client.SetLanguage(e.opts.language()); err != nil {
		return nil, errs.E(errs.EngineUnavailable, "ocr", fmt.Errorf("failed to set language: %w", err))
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		return nil, errs.E(errs.RecognitionError, "ocr", fmt.Errorf("failed to set page segmentation mode: %w", err))
	}
	for k, v := range e.opts.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return nil, errs.E(errs.RecognitionError, "ocr", fmt.Errorf("failed to set variable %s: %w", k, err))
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, errs.E(errs.ImageError, "ocr", fmt.Errorf("failed to set image: %w", err))
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		if strings.Contains(err.Error(), "initialize") {
			return nil, errs.E(errs.EngineUnavailable, "ocr", err)
		}
		return nil, errs.E(errs.RecognitionError, "ocr", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, interrupted("finish recognition", err)
	}

	result := groupBoxes(boxes)
	result.Engine = e.Name()
	result.Language = e.opts.language()
	result.toSource(img)
	result.finish(e.opts.MinConfidence)

	e.logger.Debug().
		Int("lines", len(result.Lines)).
		Int("words", result.WordCount()).
		Float64("mean_confidence", result.MeanConfidence).
		Msg("Recognized text")

	return result, nil
}

// groupBoxes turns verbose word boxes into lines in reading order.
func groupBoxes(boxes []gosseract.BoundingBox) *Result {
	sort.SliceStable(boxes, func(i, j int) bool {
		a, b := boxes[i], boxes[j]
		if a.BlockNum != b.BlockNum {
			return a.BlockNum < b.BlockNum
		}
		if a.ParNum != b.ParNum {
			return a.ParNum < b.ParNum
		}
		if a.LineNum != b.LineNum {
			return a.LineNum < b.LineNum
		}
		return a.WordNum < b.WordNum
	})

	result := &Result{Lines: []Line{}}
	index := make(map[lineKey]int)
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		key := lineKey{block: box.BlockNum, par: box.ParNum, line: box.LineNum}
		i, ok := index[key]
		if !ok {
			i = len(result.Lines)
			index[key] = i
			result.Lines = append(result.Lines, Line{})
		}
		result.Lines[i].Words = append(result.Lines[i].Words, Word{
			Text:       word,
			Confidence: box.Confidence / 100,
			Bounds: &Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}
	return result
}

// Info reports the linked libtesseract version and installed languages.
func (e *GosseractEngine) Info(ctx context.Context) EngineInfo {
	info := EngineInfo{Backend: e.Name()}

	version := gosseract.Version()
	if version == "" {
		info.Error = "libtesseract reported no version"
		return info
	}
	info.Available = true
	info.Version = version

	if langs, err := gosseract.GetAvailableLanguages(); err == nil {
		info.Languages = langs
	}
	return info
}
