// Package pipeline runs a capture through every stage:
//
//	capture -> preprocess -> recognize -> correct -> export
//
// A run is synchronous and never retried. The first failing stage ends the
// run and its error is returned wrapped with the stage name; the error kind
// from package errs is preserved. Nothing is persisted by a failed run.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ironsheep/doccam-ocr/internal/config"
	"github.com/ironsheep/doccam-ocr/internal/correct"
	"github.com/ironsheep/doccam-ocr/internal/errs"
	"github.com/ironsheep/doccam-ocr/internal/export"
	"github.com/ironsheep/doccam-ocr/internal/imaging"
	"github.com/ironsheep/doccam-ocr/internal/logging"
	"github.com/ironsheep/doccam-ocr/internal/ocr"
	"github.com/ironsheep/doccam-ocr/internal/preprocess"
)

// Stage names used in errors, timings and logs.
const (
	StageCapture    = "capture"
	StagePreprocess = "preprocess"
	StageRecognize  = "recognize"
	StageCorrect    = "correct"
	StageExport     = "export"
)

// Request describes one run. Exactly one of ImagePath and Image is set.
type Request struct {
	ImagePath string      `json:"image_path,omitempty"`
	Image     image.Image `json:"-"`

	// Source labels an in-memory image in logs and reports.
	Source string `json:"source,omitempty"`

	// OutputPath is the PDF to write. Empty uses a timestamped name in the
	// exporter's output directory.
	OutputPath string `json:"output_path,omitempty"`

	SkipCorrection bool `json:"skip_correction,omitempty"`
	SkipExport     bool `json:"skip_export,omitempty"`
}

// StageTiming is the wall time of one stage.
type StageTiming struct {
	Stage      string  `json:"stage"`
	DurationMs float64 `json:"duration_ms"`
}

// Report is everything a run produced.
type Report struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`

	Capture *imaging.ImageInfo  `json:"capture"`
	Focus   imaging.FocusResult `json:"focus"`

	// Blurry is set when the focus measure is below the configured
	// minimum. The run continues regardless.
	Blurry bool `json:"blurry"`

	Preprocess *preprocess.PreprocessedImage `json:"preprocess"`
	OCR        *ocr.Result                   `json:"ocr"`
	Corrected  *correct.CorrectedText        `json:"corrected,omitempty"`
	Assessment *correct.Assessment           `json:"assessment,omitempty"`
	Document   *export.ExportedDocument      `json:"document,omitempty"`

	// Learned is set when the corrected text was added to the training
	// store.
	Learned bool `json:"learned,omitempty"`

	Timings []StageTiming `json:"timings"`
}

// Text returns the corrected text when correction ran, else the raw OCR
// text.
func (r *Report) Text() string {
	if r.Corrected != nil {
		return r.Corrected.Text()
	}
	if r.OCR != nil {
		return r.OCR.Text()
	}
	return ""
}

// Pipeline wires the stages together. Corrector and Exporter may be nil to
// disable those stages; Cache may be nil to read every capture from disk.
type Pipeline struct {
	Preprocessor *preprocess.Preprocessor
	Engine       ocr.Engine
	Corrector    *correct.Corrector
	Exporter     *export.Exporter

	// Training, when set, keeps corrected texts whose assessment reaches
	// MinTrainingConfidence and teaches their words to the corrector.
	Training              *correct.TrainingStore
	MinTrainingConfidence float64

	Cache *imaging.CaptureCache

	// MinSharpness is the focus measure below which a capture is reported
	// as blurry.
	MinSharpness float64
}

// New builds every stage from cfg.
func New(cfg *config.Config) (*Pipeline, error) {
	pre, err := preprocess.New(cfg.Preprocess)
	if err != nil {
		return nil, err
	}
	engine, err := ocr.New(cfg.OCR)
	if err != nil {
		return nil, err
	}
	exporter, err := export.New(cfg.Export)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Preprocessor: pre,
		Engine:       engine,
		Exporter:     exporter,
		Cache:        imaging.NewCaptureCache(),
		MinSharpness: cfg.Pipeline.MinSharpness,
	}
	if cfg.Correction.Enabled {
		corrector, err := correct.New(cfg.Correction)
		if err != nil {
			return nil, err
		}
		p.Corrector = corrector

		if cfg.Correction.TrainingPath != "" {
			p.Training, err = correct.OpenTrainingStore(cfg.Correction.TrainingPath, corrector)
			if err != nil {
				return nil, err
			}
			p.MinTrainingConfidence = cfg.Correction.MinTrainingConfidence
		}
	}
	return p, nil
}

func stageErr(stage string, err error) error {
	return fmt.Errorf("stage %s: %w", stage, err)
}

// Run executes one request through every enabled stage.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Source:    req.ImagePath,
		StartedAt: time.Now(),
		Timings:   []StageTiming{},
	}
	if report.Source == "" {
		report.Source = req.Source
	}
	logger := logging.Run(report.RunID, "pipeline")
	logger.Info().Str("source", report.Source).Msg("Run started")

	timed := func(stage string, fn func(zerolog.Logger) error) error {
		if err := ctx.Err(); err != nil {
			return stageErr(stage, err)
		}
		start := time.Now()
		err := fn(logging.Run(report.RunID, stage))
		report.Timings = append(report.Timings, StageTiming{
			Stage:      stage,
			DurationMs: float64(time.Since(start).Microseconds()) / 1000,
		})
		if err != nil {
			logger.Error().Err(err).Str("stage", stage).Str("kind", string(errs.KindOf(err))).Msg("Run failed")
			return stageErr(stage, err)
		}
		return nil
	}

	var captured *imaging.CapturedImage
	err := timed(StageCapture, func(log zerolog.Logger) error {
		var err error
		captured, err = p.capture(req)
		if err != nil {
			return err
		}
		report.Capture, err = imaging.Info(captured)
		if err != nil {
			return errs.E(errs.ImageError, "capture", err)
		}
		report.Focus = imaging.CheckFocus(captured.Image, p.MinSharpness)
		report.Blurry = !report.Focus.Focused
		if report.Blurry {
			log.Warn().Float64("focus", report.Focus.Measure).Float64("threshold", report.Focus.Threshold).Msg("Capture looks blurry")
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	err = timed(StagePreprocess, func(zerolog.Logger) error {
		var err error
		report.Preprocess, err = p.Preprocessor.Process(captured)
		return err
	})
	if err != nil {
		return report, err
	}

	err = timed(StageRecognize, func(log zerolog.Logger) error {
		var err error
		report.OCR, err = p.Engine.Recognize(ctx, report.Preprocess)
		if err == nil {
			log.Debug().Int("lines", len(report.OCR.Lines)).Int("words", report.OCR.WordCount()).Msg("Recognized")
		}
		return err
	})
	if err != nil {
		return report, err
	}

	corrected := passThrough(report.OCR)
	if p.Corrector != nil && !req.SkipCorrection {
		err = timed(StageCorrect, func(log zerolog.Logger) error {
			corrected = p.Corrector.Correct(report.OCR)
			a := p.Corrector.Assess(corrected.Text())
			report.Corrected = corrected
			report.Assessment = &a
			log.Debug().Int("corrections", corrected.Corrections).Str("quality", a.Quality).Msg("Corrected")

			if p.Training != nil && a.Overall >= p.MinTrainingConfidence {
				var err error
				if report.Learned, _, err = p.Training.Add(corrected.Text(), p.MinTrainingConfidence); err != nil {
					log.Warn().Err(err).Msg("Failed to store training text")
				}
			}
			return nil
		})
		if err != nil {
			return report, err
		}
	}

	if p.Exporter != nil && !req.SkipExport {
		err = timed(StageExport, func(zerolog.Logger) error {
			var err error
			report.Document, err = p.Exporter.Export(corrected, req.OutputPath)
			return err
		})
		if err != nil {
			return report, err
		}
	}

	if p.Cache != nil && req.ImagePath != "" {
		p.Cache.Evict(req.ImagePath)
	}

	logger.Info().
		Int("words", report.OCR.WordCount()).
		Bool("blurry", report.Blurry).
		Msg("Run finished")
	return report, nil
}

func (p *Pipeline) capture(req Request) (*imaging.CapturedImage, error) {
	switch {
	case req.ImagePath != "" && req.Image != nil:
		return nil, errs.Errorf(errs.ImageError, "capture", "both an image path and an image were given")
	case req.ImagePath != "":
		if p.Cache != nil {
			return p.Cache.Load(req.ImagePath)
		}
		return imaging.Load(req.ImagePath)
	case req.Image != nil:
		label := req.Source
		if label == "" {
			label = "memory"
		}
		return imaging.FromImage(req.Image, label)
	}
	return nil, errs.Errorf(errs.ImageError, "capture", "no image given")
}

// passThrough turns an OCR result into uncorrected text with the same
// shape.
func passThrough(result *ocr.Result) *correct.CorrectedText {
	out := &correct.CorrectedText{Lines: make([]correct.CorrectedLine, len(result.Lines))}
	for i, l := range result.Lines {
		tokens := make([]correct.Token, len(l.Words))
		for j, w := range l.Words {
			tokens[j] = correct.Token{Original: w.Text, Text: w.Text, Confidence: w.Confidence}
		}
		out.Lines[i] = correct.CorrectedLine{Tokens: tokens}
	}
	return out
}
