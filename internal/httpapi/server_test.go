package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/doccam-ocr/internal/config"
	"github.com/ironsheep/doccam-ocr/internal/correct"
	"github.com/ironsheep/doccam-ocr/internal/errs"
	"github.com/ironsheep/doccam-ocr/internal/export"
	"github.com/ironsheep/doccam-ocr/internal/imaging"
	"github.com/ironsheep/doccam-ocr/internal/ocr/ocrtest"
	"github.com/ironsheep/doccam-ocr/internal/pipeline"
	"github.com/ironsheep/doccam-ocr/internal/preprocess"
)

func newTestServer(t *testing.T, engine *ocrtest.Engine) *Server {
	t.Helper()
	pre, err := preprocess.New(preprocess.DefaultOptions())
	require.NoError(t, err)

	exportOpts := export.DefaultOptions()
	exportOpts.OutputDir = t.TempDir()
	exporter, err := export.New(exportOpts)
	require.NoError(t, err)

	p := &pipeline.Pipeline{
		Preprocessor: pre,
		Engine:       engine,
		Corrector: correct.NewWithDictionary(
			correct.NewDictionary([]string{"hello", "world"}, "test"),
			correct.Aggressive,
		),
		Exporter:     exporter,
		Cache:        imaging.NewCaptureCache(),
		MinSharpness: imaging.DefaultMinSharpness,
	}
	return New(p, "test", config.Default().Server)
}

func pngBytes(t *testing.T, text string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 60))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: basicfont.Face7x13, Dot: fixed.P(20, 35)}
	d.DrawString(text)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, target, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, ocrtest.New())

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	body := decodeJSON(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestEngine(t *testing.T) {
	s := newTestServer(t, ocrtest.New())

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/engine", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeJSON(t, resp)["available"])
}

func TestOCR(t *testing.T) {
	engine := ocrtest.New("Hello Wor1d")
	s := newTestServer(t, engine)

	req := uploadRequest(t, "/v1/ocr", "image", "page.png", pngBytes(t, "Hello World"))
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "page.png", body["source"])
	assert.NotContains(t, body, "document")
	corrected, ok := body["corrected"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), corrected["corrections"])
	assert.Equal(t, 1, engine.Calls())
}

func TestOCR_SkipCorrection(t *testing.T) {
	s := newTestServer(t, ocrtest.New("Hello Wor1d"))

	req := uploadRequest(t, "/v1/ocr?skip_correction=true", "image", "page.png", pngBytes(t, "Hello World"))
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, decodeJSON(t, resp), "corrected")
}

func TestOCR_Errors(t *testing.T) {
	unavailable := ocrtest.New()
	unavailable.Err = errs.Errorf(errs.EngineUnavailable, "ocr", "tesseract not found")

	garbled := ocrtest.New()
	garbled.Err = errs.Errorf(errs.RecognitionError, "ocr", "bad tsv")

	tests := []struct {
		name       string
		engine     *ocrtest.Engine
		field      string
		data       []byte
		wantStatus int
		wantKind   errs.Kind
	}{
		{"not an image", ocrtest.New(), "image", []byte("plain text"), http.StatusBadRequest, errs.ImageError},
		{"empty upload", ocrtest.New(), "image", nil, http.StatusBadRequest, errs.ImageError},
		{"wrong field", ocrtest.New(), "file", []byte("x"), http.StatusBadRequest, errs.ImageError},
		{"engine unavailable", unavailable, "image", nil, http.StatusServiceUnavailable, errs.EngineUnavailable},
		{"recognition error", garbled, "image", nil, http.StatusBadGateway, errs.RecognitionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			if data == nil && tt.wantKind != errs.ImageError {
				data = pngBytes(t, "Hello")
			}
			s := newTestServer(t, tt.engine)

			resp, err := s.App().Test(uploadRequest(t, "/v1/ocr", tt.field, "page.png", data), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decodeJSON(t, resp)
			assert.Equal(t, string(tt.wantKind), body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestPDF(t *testing.T) {
	s := newTestServer(t, ocrtest.New("Hello Wor1d", "Second line"))

	req := uploadRequest(t, "/v1/pdf", "image", "scan.jpg.png", pngBytes(t, "Hello World"))
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "scan.jpg.pdf")
	assert.Equal(t, "1", resp.Header.Get("X-Page-Count"))
	assert.NotEmpty(t, resp.Header.Get("X-Run-ID"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, os.WriteFile(path, data, 0644))
	rows, err := export.ReadBack(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello World", "Second line"}, rows)
}

func TestPDF_ExportDisabled(t *testing.T) {
	s := newTestServer(t, ocrtest.New("Hello"))
	s.pipeline.Exporter = nil

	resp, err := s.App().Test(uploadRequest(t, "/v1/pdf", "image", "page.png", pngBytes(t, "Hello")), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestCorrect(t *testing.T) {
	s := newTestServer(t, ocrtest.New())

	req := httptest.NewRequest(http.MethodPost, "/v1/correct", strings.NewReader(`{"text":"Hello Wor1d"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "Hello World", body["text"])
	assert.Equal(t, float64(1), body["corrections"])
	assert.Contains(t, body, "assessment")
}

func TestCorrect_BadBody(t *testing.T) {
	s := newTestServer(t, ocrtest.New())

	req := httptest.NewRequest(http.MethodPost, "/v1/correct", strings.NewReader(`{"text":`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBodyLimit(t *testing.T) {
	engine := ocrtest.New("Hello")
	s := New(newTestServer(t, engine).pipeline, "test", config.ServerConfig{BodyLimitMB: 1})

	req := uploadRequest(t, "/v1/ocr", "image", "big.png", bytes.Repeat([]byte{0}, 2*1024*1024))
	// fasthttp rejects the body while reading it, before any handler runs.
	_, err := s.App().Test(req, -1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body size exceeds the given limit")
	assert.Equal(t, 0, engine.Calls())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.Errorf(errs.ImageError, "capture", "empty"), http.StatusBadRequest},
		{fmt.Errorf("stage recognize: %w", errs.Errorf(errs.EngineUnavailable, "ocr", "missing")), http.StatusServiceUnavailable},
		{errs.Errorf(errs.RecognitionError, "ocr", "bad"), http.StatusBadGateway},
		{errs.E(errs.RecognitionError, "ocr", fmt.Errorf("run tesseract: %w", context.DeadlineExceeded)), http.StatusGatewayTimeout},
		{errs.Errorf(errs.DictionaryLoadError, "dictionary", "missing"), http.StatusInternalServerError},
		{errs.Errorf(errs.ExportError, "export", "denied"), http.StatusInternalServerError},
		{fiber.NewError(http.StatusTeapot, "teapot"), http.StatusTeapot},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
