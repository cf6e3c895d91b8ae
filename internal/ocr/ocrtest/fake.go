// Package ocrtest provides an in-memory ocr.Engine for tests.
package ocrtest

import (
	"context"
	"strings"
	"sync"

	"github.com/ironsheep/doccam-ocr/internal/ocr"
	"github.com/ironsheep/doccam-ocr/internal/preprocess"
)

// Engine returns canned text. It is safe for concurrent use.
type Engine struct {
	// Lines are returned one ocr.Line per entry, split on spaces.
	Lines []string

	// Confidence is given to every word.
	Confidence float64

	// Err, when set, is returned by Recognize instead of a result.
	Err error

	mu    sync.Mutex
	calls int
}

// New returns an engine that recognises lines with confidence 0.95.
func New(lines ...string) *Engine {
	return &Engine{Lines: lines, Confidence: 0.95}
}

// Name returns "fake".
func (e *Engine) Name() string { return "fake" }

// Recognize returns the canned lines.
func (e *Engine) Recognize(ctx context.Context, img *preprocess.PreprocessedImage) (*ocr.Result, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Err != nil {
		return nil, e.Err
	}

	result := &ocr.Result{Engine: e.Name(), Language: "eng", Lines: []ocr.Line{}}
	for _, l := range e.Lines {
		var line ocr.Line
		for _, w := range strings.Fields(l) {
			line.Words = append(line.Words, ocr.Word{Text: w, Confidence: e.Confidence})
		}
		result.Lines = append(result.Lines, line)
	}
	if result.WordCount() > 0 {
		result.MeanConfidence = e.Confidence
	}
	return result, nil
}

// Info reports the fake as available.
func (e *Engine) Info(ctx context.Context) ocr.EngineInfo {
	return ocr.EngineInfo{Available: true, Backend: e.Name(), Version: "test", Languages: []string{"eng"}}
}

// Calls returns how many times Recognize ran.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
