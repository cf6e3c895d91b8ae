package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/ironsheep/doccam-ocr/internal/correct"
	"github.com/ironsheep/doccam-ocr/internal/errs"
	source "github.com/ironsheep/doccam-ocr/internal/imaging"
	"github.com/ironsheep/doccam-ocr/internal/logging"
)

// A4 page size in millimetres.
const (
	a4Width  = 210.0
	a4Height = 297.0
)

// ExportedDocument is a PDF that has been written to disk.
type ExportedDocument struct {
	Path string `json:"path"`

	// Bytes is the PDF as written.
	Bytes []byte `json:"-"`

	Size  int `json:"size_bytes"`
	Pages int `json:"pages"`

	// Lines is the number of text lines laid out, 0 for image exports.
	Lines     int       `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
}

// Exporter renders PDFs.
type Exporter struct {
	opts   Options
	logger zerolog.Logger
}

// New returns an exporter with validated options.
func New(opts Options) (*Exporter, error) {
	if err := opts.Validate(); err != nil {
		return nil, errs.E(errs.ExportError, "export options", err)
	}
	if opts.FilePrefix == "" {
		opts.FilePrefix = DefaultPrefix
	}
	if opts.FontFamily == "" {
		opts.FontFamily = "Helvetica"
	}
	return &Exporter{opts: opts, logger: logging.Component("export")}, nil
}

// Options returns the exporter's options.
func (e *Exporter) Options() Options { return e.opts }

// Filename returns <prefix>_YYYY-MM-DD_HH-MM-SS.pdf inside dir.
func Filename(dir, prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.pdf", prefix, now.Format("2006-01-02_15-04-05")))
}

// maxNameAttempts bounds the numbered suffixes tried for a default name.
const maxNameAttempts = 1000

// reserve claims a default file name by creating it empty with O_EXCL.
// Names already taken get a numeric suffix: _1, _2 and so on.
func (e *Exporter) reserve(now time.Time) (string, error) {
	base := Filename(e.opts.OutputDir, e.opts.FilePrefix, now)
	stem := strings.TrimSuffix(base, ".pdf")

	for n := 0; n < maxNameAttempts; n++ {
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s_%d.pdf", stem, n)
		}
		f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", errs.E(errs.ExportError, "write pdf", err)
		}
	}
	return "", errs.Errorf(errs.ExportError, "write pdf", "no free file name for %s after %d attempts", base, maxNameAttempts)
}

func (e *Exporter) newDocument(now time.Time) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(e.opts.Margin, e.opts.Margin, e.opts.Margin)
	pdf.SetAutoPageBreak(true, e.opts.PageBreakMargin)
	pdf.SetCreator("doccam-ocr", false)
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	return pdf
}

// RenderLines lays out lines of text and returns the PDF bytes. Empty lines
// are kept as blank rows.
func (e *Exporter) RenderLines(lines []string, now time.Time) ([]byte, error) {
	pdf := e.newDocument(now)
	pdf.AddPage()

	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	for _, line := range lines {
		style := ""
		if strings.Contains(line, TableCellMarker) {
			style = "B"
			line = strings.ReplaceAll(line, TableCellMarker, "Cell: ")
		}
		safe, err := enc.String(line)
		if err != nil {
			return nil, fmt.Errorf("failed to transcode line: %w", err)
		}
		pdf.SetFont(e.opts.FontFamily, style, e.opts.FontSize)
		pdf.MultiCell(0, e.opts.LineHeight, safe, "", "L", false)
	}

	return output(pdf)
}

// RenderImage places img on a single page at the top-left margin, scaled to
// the configured width and kept inside the page.
func (e *Exporter) RenderImage(img image.Image, now time.Time) ([]byte, error) {
	data, err := source.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	pdf := e.newDocument(now)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("capture", opts, bytes.NewReader(data))

	w := e.opts.ImageWidth
	h := 0.0
	b := img.Bounds()
	maxH := a4Height - 2*e.opts.Margin
	if b.Dx() > 0 && w*float64(b.Dy())/float64(b.Dx()) > maxH {
		w, h = 0, maxH
	}
	pdf.ImageOptions("capture", e.opts.Margin, e.opts.Margin, w, h, false, opts, 0, "")

	return output(pdf)
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfcpuMu serialises pdfcpu, whose default configuration is process-wide.
var pdfcpuMu sync.Mutex

// PageCount validates a PDF and returns its number of pages.
func PageCount(data []byte) (int, error) {
	pdfcpuMu.Lock()
	defer pdfcpuMu.Unlock()

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("failed to validate pdf: %w", err)
	}
	return ctx.PageCount, nil
}

// Export renders text and writes it to path. An empty path writes a
// timestamped file in the output directory that never replaces an
// existing one.
func (e *Exporter) Export(text *correct.CorrectedText, path string) (*ExportedDocument, error) {
	var lines []string
	if text != nil {
		lines = make([]string, len(text.Lines))
		for i, l := range text.Lines {
			lines[i] = l.Text()
		}
	}
	return e.ExportLines(lines, path)
}

// ExportText splits text on newlines and exports it.
func (e *Exporter) ExportText(text, path string) (*ExportedDocument, error) {
	return e.ExportLines(strings.Split(text, "\n"), path)
}

// ExportLines renders lines and writes them to path.
func (e *Exporter) ExportLines(lines []string, path string) (*ExportedDocument, error) {
	now := time.Now()
	data, err := e.RenderLines(lines, now)
	if err != nil {
		return nil, errs.E(errs.ExportError, "render pdf", err)
	}
	doc, err := e.write(path, data, now)
	if err != nil {
		return nil, err
	}
	doc.Lines = len(lines)

	e.logger.Info().
		Str("path", doc.Path).
		Int("pages", doc.Pages).
		Int("lines", doc.Lines).
		Int("bytes", doc.Size).
		Msg("Exported text")
	return doc, nil
}

// ExportImage writes a one-page PDF holding img.
func (e *Exporter) ExportImage(img image.Image, path string) (*ExportedDocument, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errs.Errorf(errs.ExportError, "render pdf", "no image to export")
	}
	now := time.Now()
	data, err := e.RenderImage(img, now)
	if err != nil {
		return nil, errs.E(errs.ExportError, "render pdf", err)
	}
	doc, err := e.write(path, data, now)
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("path", doc.Path).Int("bytes", doc.Size).Msg("Exported image")
	return doc, nil
}

func (e *Exporter) write(path string, data []byte, now time.Time) (*ExportedDocument, error) {
	pages := 0
	if e.opts.ValidatePDF {
		n, err := PageCount(data)
		if err != nil {
			return nil, errs.E(errs.ExportError, "validate pdf", err)
		}
		pages = n
	}

	if path == "" {
		reserved, err := e.reserve(now)
		if err != nil {
			return nil, err
		}
		if err := WriteAtomic(reserved, data); err != nil {
			os.Remove(reserved)
			return nil, err
		}
		path = reserved
	} else if err := WriteAtomic(path, data); err != nil {
		return nil, err
	}
	return &ExportedDocument{
		Path:      path,
		Bytes:     data,
		Size:      len(data),
		Pages:     pages,
		CreatedAt: now,
	}, nil
}

// WriteAtomic writes data to a temporary file next to path and renames it
// into place. An existing path must be a writable file. On failure the
// temporary file is removed and path is left untouched.
func WriteAtomic(path string, data []byte) error {
	if path == "" {
		return errs.Errorf(errs.ExportError, "write pdf", "no output path")
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return errs.E(errs.ExportError, "write pdf", err)
	}
	if !info.IsDir() {
		return errs.Errorf(errs.ExportError, "write pdf", "%s is not a directory", dir)
	}
	if fi, err := os.Stat(path); err == nil {
		if err := checkWritable(path, fi); err != nil {
			return errs.E(errs.ExportError, "write pdf", err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.E(errs.ExportError, "write pdf", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return errs.E(errs.ExportError, "write pdf", err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.E(errs.ExportError, "write pdf", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errs.E(errs.ExportError, "write pdf", err)
	}
	return nil
}

// checkWritable rejects an existing target that is a directory, has no
// write permission bits or cannot be opened for writing. The bit check
// also holds for root, which bypasses file permissions on open.
func checkWritable(path string, fi fs.FileInfo) error {
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if fi.Mode().Perm()&0222 == 0 {
		return fmt.Errorf("%s is read-only", path)
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	return f.Close()
}
