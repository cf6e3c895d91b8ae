package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodedImage is an image encoded as base64 PNG for JSON transports.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropMargin removes a fractional margin from every edge of the image.
//
// A margin of 0.1 keeps the central 80% of both width and height. The margin
// must be in [0, 0.5); zero returns the image unchanged. The returned offset is
// the top-left corner of the kept region in source coordinates.
func CropMargin(img image.Image, margin float64) (image.Image, image.Point, error) {
	if margin < 0 || margin >= 0.5 {
		return nil, image.Point{}, fmt.Errorf("roi margin %.3f outside [0, 0.5)", margin)
	}
	bounds := img.Bounds()
	if margin == 0 {
		return img, image.Point{}, nil
	}

	mx := int(float64(bounds.Dx()) * margin)
	my := int(float64(bounds.Dy()) * margin)
	rect := image.Rect(bounds.Min.X+mx, bounds.Min.Y+my, bounds.Max.X-mx, bounds.Max.Y-my)
	if rect.Empty() {
		return nil, image.Point{}, fmt.Errorf("roi margin %.3f leaves an empty region", margin)
	}

	return imaging.Crop(img, rect), image.Point{X: mx, Y: my}, nil
}

// CropRect extracts a rectangular region, clamped to the image bounds.
func CropRect(img image.Image, rect image.Rectangle) (image.Image, error) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("crop region outside image bounds")
	}
	return imaging.Crop(img, rect), nil
}

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64PNG encodes an image for transports that carry JSON.
func EncodeBase64PNG(img image.Image) (*EncodedImage, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}, nil
}
