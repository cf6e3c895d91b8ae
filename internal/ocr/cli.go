package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ironsheep/doccam-ocr/internal/errs"
	source "github.com/ironsheep/doccam-ocr/internal/imaging"
	"github.com/ironsheep/doccam-ocr/internal/logging"
	"github.com/ironsheep/doccam-ocr/internal/preprocess"
)

// CLIEngine runs the tesseract executable.
type CLIEngine struct {
	opts    Options
	path    string
	lookErr error
	logger  zerolog.Logger
}

// NewCLI locates the tesseract executable. A missing executable is not an
// error here; Recognize reports it as EngineUnavailable.
func NewCLI(opts Options) *CLIEngine {
	name := opts.TesseractPath
	if name == "" {
		name = "tesseract"
	}
	path, err := exec.LookPath(name)
	return &CLIEngine{
		opts:    opts,
		path:    path,
		lookErr: err,
		logger:  logging.Component("ocr").With().Str("backend", string(BackendCLI)).Logger(),
	}
}

// Name returns "cli".
func (e *CLIEngine) Name() string {
	return string(BackendCLI)
}

// args builds the tesseract command line reading PNG from stdin and writing
// TSV to stdout.
func (e *CLIEngine) args() ([]string, error) {
	psm, err := e.opts.PSM()
	if err != nil {
		return nil, err
	}
	args := []string{"stdin", "stdout",
		"-l", e.opts.language(),
		"--psm", strconv.Itoa(psm),
		"--oem", strconv.Itoa(e.opts.EngineMode),
	}
	if e.opts.TessdataPrefix != "" {
		args = append(args, "--tessdata-dir", e.opts.TessdataPrefix)
	}
	keys := make([]string, 0, len(e.opts.Variables))
	for k := range e.opts.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-c", k+"="+e.opts.Variables[k])
	}
	return append(args, "tsv"), nil
}

// Recognize pipes the image into tesseract and parses its TSV output.
func (e *CLIEngine) Recognize(ctx context.Context, img *preprocess.PreprocessedImage) (*Result, error) {
	if e.lookErr != nil {
		return nil, errs.E(errs.EngineUnavailable, "ocr", e.lookErr)
	}
	if img == nil || img.Image == nil {
		return nil, errs.Errorf(errs.ImageError, "ocr", "no image")
	}

	data, err := source.EncodePNG(img.Image)
	if err != nil {
		return nil, errs.E(errs.ImageError, "ocr", err)
	}
	args, err := e.args()
	if err != nil {
		return nil, errs.E(errs.RecognitionError, "ocr", err)
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug().Str("path", e.path).Strs("args", args).Msg("Running tesseract")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, interrupted("run tesseract", ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || languageMissing(msg) {
			return nil, errs.E(errs.EngineUnavailable, "ocr", fmt.Errorf("%w: %s", err, msg))
		}
		return nil, errs.E(errs.RecognitionError, "ocr", fmt.Errorf("%w: %s", err, msg))
	}

	result, err := ParseTSV(&stdout)
	if err != nil {
		return nil, err
	}
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

// interrupted reports a cancelled or timed out recognition as a
// RecognitionError. errors.Is still matches the context error.
func interrupted(op string, ctxErr error) error {
	return errs.E(errs.RecognitionError, "ocr", fmt.Errorf("%s: %w", op, ctxErr))
}

// languageMissing reports whether tesseract's stderr says the language data
// could not be loaded.
func languageMissing(stderr string) bool {
	return strings.Contains(stderr, "Failed loading language") ||
		strings.Contains(stderr, "Could not initialize tesseract")
}

// Info runs tesseract --version and --list-langs.
func (e *CLIEngine) Info(ctx context.Context) EngineInfo {
	info := EngineInfo{Backend: e.Name(), Path: e.path}
	if e.lookErr != nil {
		info.Error = e.lookErr.Error()
		return info
	}

	out, err := exec.CommandContext(ctx, e.path, "--version").CombinedOutput()
	if err != nil {
		info.Error = fmt.Sprintf("failed to run tesseract --version: %v", err)
		return info
	}
	info.Available = true
	info.Version = parseVersion(string(out))

	if langs, err := exec.CommandContext(ctx, e.path, "--list-langs").CombinedOutput(); err == nil {
		info.Languages = parseLanguages(string(langs))
	}
	return info
}

// parseVersion returns the version from the first line of
// "tesseract 5.3.0\n leptonica-1.82.0 ...".
func parseVersion(out string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(first), "tesseract"))
}

// parseLanguages skips the "List of available languages" header.
func parseLanguages(out string) []string {
	langs := make([]string, 0)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of available languages") {
			continue
		}
		langs = append(langs, line)
	}
	return langs
}
