package ocr

import (
	"fmt"
	"sort"
	"time"
)

// Backend names an Engine implementation.
type Backend string

const (
	BackendAuto      Backend = "auto"
	BackendGosseract Backend = "gosseract"
	BackendCLI       Backend = "cli"
)

// PageSegPresets maps preset names to Tesseract page segmentation modes.
var PageSegPresets = map[string]int{
	"auto":          3,
	"default":       6,
	"uniform_block": 6,
	"single_line":   7,
	"single_word":   8,
	"sparse_text":   11,
}

// DefaultEngineMode selects the default Tesseract engine (legacy + LSTM as
// available).
const DefaultEngineMode = 3

// Options configures the OCR adapter.
type Options struct {
	Backend  Backend `yaml:"backend" json:"backend"`
	Language string  `yaml:"language" json:"language"`

	// PageSegMode is a preset name from PageSegPresets.
	PageSegMode string `yaml:"page_seg_mode" json:"page_seg_mode"`
	EngineMode  int    `yaml:"engine_mode" json:"engine_mode"`

	// TesseractPath is the executable used by the cli backend; empty means
	// look it up on PATH.
	TesseractPath  string `yaml:"tesseract_path" json:"tesseract_path"`
	TessdataPrefix string `yaml:"tessdata_prefix" json:"tessdata_prefix"`

	// Variables are passed to Tesseract as -c key=value.
	Variables map[string]string `yaml:"variables" json:"variables"`

	// MinConfidence marks words below it as uncertain.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultOptions returns English, uniform block segmentation, auto backend.
func DefaultOptions() Options {
	return Options{
		Backend:       BackendAuto,
		Language:      "eng",
		PageSegMode:   "default",
		EngineMode:    DefaultEngineMode,
		MinConfidence: 0.5,
		Timeout:       60 * time.Second,
	}
}

// PSM resolves the page segmentation preset.
func (o Options) PSM() (int, error) {
	if o.PageSegMode == "" {
		return PageSegPresets["default"], nil
	}
	psm, ok := PageSegPresets[o.PageSegMode]
	if !ok {
		names := make([]string, 0, len(PageSegPresets))
		for name := range PageSegPresets {
			names = append(names, name)
		}
		sort.Strings(names)
		return 0, fmt.Errorf("unknown page segmentation preset %q (want one of %v)", o.PageSegMode, names)
	}
	return psm, nil
}

// Validate checks backend, preset, engine mode and confidence range.
func (o Options) Validate() error {
	switch o.Backend {
	case "", BackendAuto, BackendGosseract, BackendCLI:
	default:
		return fmt.Errorf("unknown OCR backend %q", o.Backend)
	}
	if _, err := o.PSM(); err != nil {
		return err
	}
	if o.EngineMode < 0 || o.EngineMode > 3 {
		return fmt.Errorf("engine mode %d outside [0, 3]", o.EngineMode)
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return fmt.Errorf("min confidence %g outside [0, 1]", o.MinConfidence)
	}
	return nil
}

func (o Options) language() string {
	if o.Language == "" {
		return "eng"
	}
	return o.Language
}

// New returns the engine selected by opts.Backend. Auto picks gosseract
// when libtesseract is linked and reports a version, else the cli backend.
//
// Construction only fails for invalid options. An engine whose backend is
// not installed is still returned; its Recognize reports EngineUnavailable
// and its Info explains why.
func New(opts Options) (Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Backend {
	case BackendGosseract:
		return NewGosseract(opts), nil
	case BackendCLI:
		return NewCLI(opts), nil
	}
	if gosseractAvailable() {
		return NewGosseract(opts), nil
	}
	return NewCLI(opts), nil
}
