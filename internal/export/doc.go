// Package export writes corrected text and captures to PDF.
//
// Text is laid out with go-pdf/fpdf on A4 pages, one source line per
// MultiCell, and transcoded to Windows-1252 for the core Helvetica font.
// The rendered bytes are checked with pdfcpu before anything touches disk
// and are then written atomically: a temporary file in the target
// directory is renamed over the destination. A failed export leaves no
// file behind and never modifies an existing one.
//
// All failures are reported as errs.ExportError.
package export
