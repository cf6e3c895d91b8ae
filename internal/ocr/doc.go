// Package ocr adapts the Tesseract OCR engine to the pipeline.
//
// The adapter is a pass-through: it marshals a preprocessed image into the
// form the engine expects and parses the engine's positional output into an
// ordered Result of lines and words. No recognition logic lives here.
//
// # Backends
//
// Two backends implement Engine:
//
//   - gosseract: in-process bindings to libtesseract (otiai10/gosseract/v2).
//     Only compiled on Linux with cgo; elsewhere the backend reports
//     errs.EngineUnavailable.
//   - cli: runs the tesseract executable with TSV output. Works anywhere the
//     binary is on PATH or configured explicitly.
//
// New picks one according to Options.Backend; "auto" prefers gosseract.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr (libtesseract-dev for cgo builds)
//   - macOS: brew install tesseract
//   - Windows: Download from https://github.com/UB-Mannheim/tesseract/wiki
//
// Language data files are required for each language, e.g. tesseract-ocr-eng.
//
// # Errors
//
// A missing executable, library or language pack is reported as
// errs.EngineUnavailable. Output that cannot be parsed is reported as
// errs.RecognitionError. In both cases no Result is returned.
//
// # Coordinates
//
// Word bounds are reported in capture coordinates: the resize factor and
// region-of-interest offset recorded by preprocessing are undone.
package ocr
