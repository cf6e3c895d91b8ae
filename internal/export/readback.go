package export

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ironsheep/doccam-ocr/internal/errs"
)

// ReadBack returns the text rows of a PDF, top to bottom, page by page.
// Blank rows carry no text and are not returned.
func ReadBack(path string) (rows []string, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errs.E(errs.ExportError, "read pdf", err)
	}
	defer f.Close()

	// The content interpreter panics on malformed operators.
	defer func() {
		if p := recover(); p != nil {
			rows, err = nil, errs.Errorf(errs.ExportError, "read pdf", "malformed content stream: %v", p)
		}
	}()

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows = append(rows, pageRows(page.Content().Text)...)
	}
	return rows, nil
}

// pageRows groups glyphs sharing a baseline into rows. Baselines closer
// than half the font size belong to the same row.
func pageRows(glyphs []pdf.Text) []string {
	type row struct {
		y      float64
		size   float64
		glyphs []pdf.Text
	}

	var rows []*row
	for _, g := range glyphs {
		var match *row
		for _, r := range rows {
			tol := math.Max(r.size, g.FontSize) / 2
			if math.Abs(r.y-g.Y) <= tol {
				match = r
				break
			}
		}
		if match == nil {
			match = &row{y: g.Y, size: g.FontSize}
			rows = append(rows, match)
		}
		match.glyphs = append(match.glyphs, g)
	}

	// PDF y grows upwards.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	var out []string
	for _, r := range rows {
		sort.SliceStable(r.glyphs, func(i, j int) bool { return r.glyphs[i].X < r.glyphs[j].X })
		var b strings.Builder
		for _, g := range r.glyphs {
			b.WriteString(g.S)
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
