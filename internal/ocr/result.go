package ocr

import (
	"context"
	"image"
	"math"
	"strings"

	"github.com/ironsheep/doccam-ocr/internal/preprocess"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Word is one recognised token.
type Word struct {
	Text string `json:"text"`

	// Confidence is the engine's certainty in [0, 1].
	Confidence float64 `json:"confidence"`

	// Bounds is nil when the engine reported no position.
	Bounds *Bounds `json:"bounds,omitempty"`

	// Uncertain marks words below the configured minimum confidence. They
	// are kept so the corrector sees every token in order.
	Uncertain bool `json:"uncertain,omitempty"`
}

// Line is an ordered run of words.
type Line struct {
	Words []Word `json:"words"`
}

// Text joins the words of the line with single spaces.
func (l Line) Text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Result is the recognised text of one image in engine reading order.
type Result struct {
	Lines          []Line  `json:"lines"`
	Engine         string  `json:"engine"`
	Language       string  `json:"language"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// Text returns the recognised text, one line per row.
func (r *Result) Text() string {
	rows := make([]string, len(r.Lines))
	for i, l := range r.Lines {
		rows[i] = l.Text()
	}
	return strings.Join(rows, "\n")
}

// WordCount returns the number of words across all lines.
func (r *Result) WordCount() int {
	n := 0
	for _, l := range r.Lines {
		n += len(l.Words)
	}
	return n
}

// finish clamps confidences, flags uncertain words and computes the mean.
func (r *Result) finish(minConfidence float64) {
	var sum float64
	n := 0
	for i := range r.Lines {
		for j := range r.Lines[i].Words {
			w := &r.Lines[i].Words[j]
			w.Confidence = clampConfidence(w.Confidence)
			w.Uncertain = w.Confidence < minConfidence
			sum += w.Confidence
			n++
		}
	}
	if n > 0 {
		r.MeanConfidence = math.Round(sum/float64(n)*1000) / 1000
	}
}

// toSource moves word bounds from preprocessed to capture coordinates.
func (r *Result) toSource(pre *preprocess.PreprocessedImage) {
	for i := range r.Lines {
		for j := range r.Lines[i].Words {
			b := r.Lines[i].Words[j].Bounds
			if b == nil {
				continue
			}
			tl := pre.ToSource(image.Point{X: b.X1, Y: b.Y1})
			br := pre.ToSource(image.Point{X: b.X2, Y: b.Y2})
			*b = Bounds{X1: tl.X, Y1: tl.Y, X2: br.X, Y2: br.Y}
		}
	}
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// EngineInfo describes an OCR backend and whether it can run.
type EngineInfo struct {
	Available bool     `json:"available"`
	Backend   string   `json:"backend"`
	Version   string   `json:"version,omitempty"`
	Path      string   `json:"path,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Engine recognises text in a preprocessed image.
type Engine interface {
	// Name is the backend name reported in results.
	Name() string

	// Recognize runs OCR. It returns an EngineUnavailable error when the
	// engine is missing and a RecognitionError when its output is malformed.
	Recognize(ctx context.Context, img *preprocess.PreprocessedImage) (*Result, error)

	// Info reports availability and version.
	Info(ctx context.Context) EngineInfo
}
