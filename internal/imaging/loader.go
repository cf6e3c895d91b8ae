package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder

	"github.com/ironsheep/doccam-ocr/internal/errs"
)

// ColorSpace names the channel layout of an image.
type ColorSpace string

const (
	ColorSpaceGray ColorSpace = "gray"
	ColorSpaceRGB  ColorSpace = "rgb"
	ColorSpaceRGBA ColorSpace = "rgba"
)

// Channels returns the number of channels for the colour space.
func (c ColorSpace) Channels() int {
	switch c {
	case ColorSpaceGray:
		return 1
	case ColorSpaceRGB:
		return 3
	default:
		return 4
	}
}

// ColorSpaceOf reports the colour space of an in-memory image.
func ColorSpaceOf(img image.Image) ColorSpace {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return ColorSpaceGray
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return ColorSpaceRGBA
	default:
		return ColorSpaceRGB
	}
}

// CapturedImage is a raster image as delivered by the image source.
//
// It is created on capture and owned by a single pipeline run. The pixel
// buffer must not be mutated once captured; preprocessing always produces a
// new image.
type CapturedImage struct {
	Image      image.Image `json:"-"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	ColorSpace ColorSpace  `json:"color_space"`

	// Format is the decoder that recognised the data: "png", "jpeg", "gif",
	// "tiff", "bmp" or "memory" for images built in-process.
	Format string `json:"format"`

	// Source is the file path the image came from, or a caller-supplied label.
	Source string `json:"source"`
}

// Channels returns the channel count of the captured image.
func (c *CapturedImage) Channels() int {
	return c.ColorSpace.Channels()
}

// FromImage wraps an in-memory image as a capture.
//
// Returns an ImageError when img is nil or has zero width or height.
func FromImage(img image.Image, source string) (*CapturedImage, error) {
	if img == nil {
		return nil, errs.Errorf(errs.ImageError, "capture", "no image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errs.Errorf(errs.ImageError, "capture", "image has zero dimensions (%dx%d)", b.Dx(), b.Dy())
	}
	return &CapturedImage{
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		ColorSpace: ColorSpaceOf(img),
		Format:     "memory",
		Source:     source,
	}, nil
}

// Decode reads an encoded image from r.
//
// The stream is sniffed with image.DecodeConfig first so that empty input and
// zero-sized images are rejected before any pixel data is decoded. JPEG EXIF
// orientation is applied, which matters for phone and document-camera photos.
func Decode(r io.Reader, source string) (*CapturedImage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.E(errs.ImageError, "read image", err)
	}
	if len(data) == 0 {
		return nil, errs.Errorf(errs.ImageError, "decode image", "empty image data from %s", source)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errs.E(errs.ImageError, "decode image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errs.Errorf(errs.ImageError, "decode image", "image has zero dimensions (%dx%d)", cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errs.E(errs.ImageError, "decode image", err)
	}

	captured, err := FromImage(img, source)
	if err != nil {
		return nil, err
	}
	captured.Format = format
	return captured, nil
}

// Load opens and decodes an image file.
func Load(path string) (*CapturedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.E(errs.ImageError, "open image", err)
	}
	defer f.Close()

	return Decode(f, path)
}

// CaptureCache keeps decoded captures so that a failed run can be retried
// without re-reading the file.
//
// The cache stores captures keyed by their file path. Once an image is
// loaded, subsequent Load() calls for the same path return the cached copy
// without disk I/O. CaptureCache is safe for concurrent use.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or
// Clear(). The pipeline evicts a capture after a successful run.
type CaptureCache struct {
	mu     sync.RWMutex
	images map[string]*CapturedImage
}

// NewCaptureCache creates and initializes a new empty capture cache.
func NewCaptureCache() *CaptureCache {
	return &CaptureCache{
		images: make(map[string]*CapturedImage),
	}
}

// Load retrieves a capture from the cache or loads it from disk if not cached.
//
// The capture is cached using the exact path string provided. Different paths
// to the same file (e.g., relative vs absolute) result in separate entries.
func (c *CaptureCache) Load(path string) (*CapturedImage, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Len returns the number of cached captures.
func (c *CaptureCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all captures from the cache.
func (c *CaptureCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*CapturedImage)
	c.mu.Unlock()
}

// Evict removes a specific capture from the cache by its path.
//
// If the path is not in the cache, this method does nothing.
func (c *CaptureCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// ImageInfo contains metadata about a captured image.
type ImageInfo struct {
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Format     string     `json:"format"`
	ColorSpace ColorSpace `json:"color_space"`
	Channels   int        `json:"channels"`

	// FileSizeBytes is the size of the image file on disk, 0 for in-memory
	// captures.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// Info returns metadata about a capture. The file size is read from disk when
// the capture's source is an existing file.
func Info(img *CapturedImage) (*ImageInfo, error) {
	if img == nil {
		return nil, fmt.Errorf("no capture")
	}
	info := &ImageInfo{
		Width:      img.Width,
		Height:     img.Height,
		Format:     img.Format,
		ColorSpace: img.ColorSpace,
		Channels:   img.Channels(),
	}
	if img.Source != "" {
		if stat, err := os.Stat(img.Source); err == nil && !stat.IsDir() {
			info.FileSizeBytes = stat.Size()
		}
	}
	return info, nil
}
