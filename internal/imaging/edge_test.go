package imaging

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// createTextImage renders black text on white using basicfont.
func createTextImage(width, height int, text string) *image.RGBA {
	img := createInMemoryImage(width, height, color.White)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, height/2),
	}
	d.DrawString(text)
	return img
}

func TestFocusMeasure_UniformImage(t *testing.T) {
	img := createInMemoryImage(50, 50, color.RGBA{128, 128, 128, 255})

	if m := FocusMeasure(img); m != 0 {
		t.Errorf("uniform image should have zero Laplacian variance, got %f", m)
	}
	if IsFocused(img, 0) {
		t.Error("uniform image should not be reported as focused")
	}
}

func TestFocusMeasure_SharpText(t *testing.T) {
	img := createTextImage(200, 40, "Hello World")

	result := CheckFocus(img, 0)
	if result.Threshold != DefaultMinSharpness {
		t.Errorf("Threshold: got %f, want %f", result.Threshold, DefaultMinSharpness)
	}
	if !result.Focused {
		t.Errorf("crisp text should be focused, measure %f", result.Measure)
	}
}

func TestFocusMeasure_Thresholds(t *testing.T) {
	img := createTextImage(200, 40, "Hello World")
	measure := FocusMeasure(img)

	tests := []struct {
		name string
		min  float64
		want bool
	}{
		{"below measure", measure / 2, true},
		{"above measure", measure * 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFocused(img, tt.min); got != tt.want {
				t.Errorf("IsFocused(%f) = %v, want %v (measure %f)", tt.min, got, tt.want, measure)
			}
		})
	}
}

func TestFocusMeasure_Empty(t *testing.T) {
	if m := FocusMeasure(image.NewRGBA(image.Rect(0, 0, 0, 0))); m != 0 {
		t.Errorf("empty image: got %f, want 0", m)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, min, max, want int
	}{
		{5, 0, 10, 5},
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
		{0, 0, 10, 0},
		{10, 0, 10, 10},
	}

	for _, tt := range tests {
		if got := clamp(tt.val, tt.min, tt.max); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.val, tt.min, tt.max, got, tt.want)
		}
	}
}
