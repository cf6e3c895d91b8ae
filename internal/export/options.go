package export

import "fmt"

// DefaultPrefix starts generated file names.
const DefaultPrefix = "DocCamOCR"

// TableCellMarker marks lines that are rendered bold.
const TableCellMarker = "[TABLE CELL]"

// Options controls page layout and where files go.
type Options struct {
	// OutputDir is used when Export is called without a path.
	OutputDir  string `yaml:"output_dir" json:"output_dir"`
	FilePrefix string `yaml:"file_prefix" json:"file_prefix"`

	FontFamily string  `yaml:"font_family" json:"font_family"`
	FontSize   float64 `yaml:"font_size" json:"font_size"`

	// LineHeight and the margins are in millimetres.
	LineHeight      float64 `yaml:"line_height" json:"line_height"`
	Margin          float64 `yaml:"margin" json:"margin"`
	PageBreakMargin float64 `yaml:"page_break_margin" json:"page_break_margin"`

	// ImageWidth is the width of an exported capture.
	ImageWidth float64 `yaml:"image_width" json:"image_width"`

	// ValidatePDF runs the rendered bytes through pdfcpu before writing.
	ValidatePDF bool `yaml:"validate" json:"validate"`
}

// DefaultOptions returns the A4 layout: Helvetica 12, 8 mm lines, 10 mm
// margins and a 15 mm page break margin.
func DefaultOptions() Options {
	return Options{
		OutputDir:       ".",
		FilePrefix:      DefaultPrefix,
		FontFamily:      "Helvetica",
		FontSize:        12,
		LineHeight:      8,
		Margin:          10,
		PageBreakMargin: 15,
		ImageWidth:      190,
		ValidatePDF:     true,
	}
}

// Validate checks that sizes are positive and fit an A4 page.
func (o Options) Validate() error {
	if o.FontSize <= 0 || o.LineHeight <= 0 {
		return fmt.Errorf("font size and line height must be positive, got %g and %g", o.FontSize, o.LineHeight)
	}
	if o.Margin < 0 || o.Margin >= a4Width/2 {
		return fmt.Errorf("margin %g outside [0, %g)", o.Margin, a4Width/2)
	}
	if o.PageBreakMargin < 0 || o.PageBreakMargin >= a4Height/2 {
		return fmt.Errorf("page break margin %g outside [0, %g)", o.PageBreakMargin, a4Height/2)
	}
	if o.ImageWidth <= 0 || o.ImageWidth > a4Width-o.Margin {
		return fmt.Errorf("image width %g outside (0, %g]", o.ImageWidth, a4Width-o.Margin)
	}
	return nil
}
