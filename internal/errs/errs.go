// Package errs defines the error kinds surfaced by each pipeline stage.
//
// Every stage reports failures as an *Error carrying one Kind. Callers test
// for a kind with errors.Is:
//
//	if errors.Is(err, errs.EngineUnavailable) {
//	    // tell the user to install tesseract
//	}
//
// Stages never retry and never swallow a failure; the kind travels up to
// whichever surface (CLI, MCP server, HTTP API) triggered the run.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kind values are comparable and implement error,
// so they can be used directly as errors.Is targets.
type Kind string

const (
	// ImageError: the input image is empty, undecodable or has zero dimensions,
	// or a preprocessing option is invalid.
	ImageError Kind = "image error"

	// EngineUnavailable: the OCR engine is not installed or cannot be reached.
	EngineUnavailable Kind = "engine unavailable"

	// RecognitionError: the OCR engine produced output that could not be parsed.
	RecognitionError Kind = "recognition error"

	// DictionaryLoadError: the word list could not be read.
	DictionaryLoadError Kind = "dictionary load error"

	// ExportError: the PDF could not be rendered or written.
	ExportError Kind = "export error"
)

func (k Kind) Error() string { return string(k) }

// Error is a stage failure with its kind, the operation that failed and the
// underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error. err may be nil when the kind and op say everything.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error whose cause is a formatted message.
func Errorf(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}
