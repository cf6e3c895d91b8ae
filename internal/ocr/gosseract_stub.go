//go:build !(cgo && linux)

package ocr

import (
	"context"

	"github.com/ironsheep/doccam-ocr/internal/errs"
	"github.com/ironsheep/doccam-ocr/internal/preprocess"
)

func gosseractAvailable() bool { return false }

const gosseractMissing = "gosseract backend requires a Linux build with cgo; use the cli backend"

// GosseractEngine is unavailable in this build.
type GosseractEngine struct {
	opts Options
}

// NewGosseract returns a backend whose Recognize always fails with
// EngineUnavailable.
func NewGosseract(opts Options) *GosseractEngine {
	return &GosseractEngine{opts: opts}
}

// Name returns "gosseract".
func (e *GosseractEngine) Name() string {
	return string(BackendGosseract)
}

// Recognize reports EngineUnavailable.
func (e *GosseractEngine) Recognize(ctx context.Context, img *preprocess.PreprocessedImage) (*Result, error) {
	return nil, errs.Errorf(errs.EngineUnavailable, "ocr", gosseractMissing)
}

// Info reports the backend as unavailable.
func (e *GosseractEngine) Info(ctx context.Context) EngineInfo {
	return EngineInfo{Backend: e.Name(), Error: gosseractMissing}
}
