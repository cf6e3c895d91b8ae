package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/doccam-ocr/internal/errs"
	"github.com/ironsheep/doccam-ocr/internal/export"
)

// callTool sends one tools/call request through Serve. On success it decodes
// the text content into a map; on failure it returns the JSON-RPC error.
func callTool(t *testing.T, s *Server, name string, args interface{}) (map[string]interface{}, *MCPError) {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	req := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":%s}`, params)

	responses := serve(t, s, req)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	resp := responses[0]
	if resp.Error != nil {
		return nil, resp.Error
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]interface{})
	item := content[0].(map[string]interface{})
	if item["type"] != "text" {
		t.Fatalf("content type: got %v, want text", item["type"])
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(item["text"].(string)), &out); err != nil {
		t.Fatalf("tool result is not a JSON object: %v", err)
	}
	return out, nil
}

func mustSucceed(t *testing.T, s *Server, name string, args interface{}) map[string]interface{} {
	t.Helper()
	out, rpcErr := callTool(t, s, name, args)
	if rpcErr != nil {
		t.Fatalf("%s failed: %d %s %v", name, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}
	return out
}

func errorKind(t *testing.T, rpcErr *MCPError) string {
	t.Helper()
	if rpcErr == nil {
		t.Fatal("expected an error response")
	}
	if rpcErr.Code != CodeToolFailed {
		t.Fatalf("code: got %d, want %d", rpcErr.Code, CodeToolFailed)
	}
	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T", rpcErr.Data)
	}
	if data["error"] == "" {
		t.Error("error data has no message")
	}
	kind, _ := data["kind"].(string)
	return kind
}

func TestHandleLoadImage(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeTextImage(t, "Hello World")

	out := mustSucceed(t, s, "ocr_load_image", map[string]interface{}{"path": path})
	if out["width"] != float64(400) {
		t.Errorf("width: got %v, want 400", out["width"])
	}
	if out["format"] != "png" {
		t.Errorf("format: got %v, want png", out["format"])
	}
	if _, ok := out["focus"].(map[string]interface{}); !ok {
		t.Error("missing focus result")
	}
	if _, ok := out["contrast"].(map[string]interface{}); !ok {
		t.Error("missing contrast stats")
	}
	if s.pipeline.Cache.Len() != 1 {
		t.Errorf("cache length: got %d, want 1", s.pipeline.Cache.Len())
	}
}

func TestHandleLoadImage_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing path", map[string]interface{}{}},
		{"nonexistent file", map[string]interface{}{"path": "/nonexistent/capture.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rpcErr := callTool(t, s, "ocr_load_image", tt.args)
			if kind := errorKind(t, rpcErr); kind != string(errs.ImageError) {
				t.Errorf("kind: got %q, want %q", kind, errs.ImageError)
			}
		})
	}
}

func TestHandleLoadImage_NotAnImage(t *testing.T) {
	s, _ := newTestServer(t)
	path := filepath.Join(t.TempDir(), "notes.png")
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}

	_, rpcErr := callTool(t, s, "ocr_load_image", map[string]interface{}{"path": path})
	if kind := errorKind(t, rpcErr); kind != string(errs.ImageError) {
		t.Errorf("kind: got %q, want %q", kind, errs.ImageError)
	}
}

func TestHandleFocusCheck(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeTextImage(t, "Hello World")

	out := mustSucceed(t, s, "ocr_focus_check", map[string]interface{}{"path": path, "min_sharpness": 1e9})
	if out["focused"] != false {
		t.Errorf("focused: got %v, want false against an unreachable threshold", out["focused"])
	}
	if out["threshold"] != 1e9 {
		t.Errorf("threshold: got %v", out["threshold"])
	}

	out = mustSucceed(t, s, "ocr_focus_check", map[string]interface{}{"path": path})
	if out["threshold"] != s.pipeline.MinSharpness {
		t.Errorf("default threshold: got %v, want %v", out["threshold"], s.pipeline.MinSharpness)
	}
}

func TestHandlePreprocess(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeTextImage(t, "Hello World")

	out := mustSucceed(t, s, "ocr_preprocess", map[string]interface{}{
		"path":         path,
		"options":      map[string]interface{}{"threshold": "otsu", "deskew": false},
		"return_image": true,
	})
	if out["threshold"] != "otsu" {
		t.Errorf("threshold: got %v, want otsu", out["threshold"])
	}
	img, ok := out["image"].(map[string]interface{})
	if !ok {
		t.Fatal("expected an encoded image")
	}
	if img["mime_type"] != "image/png" || img["image_base64"] == "" {
		t.Errorf("encoded image: got %v", img)
	}
	if img["width"] != out["width"] {
		t.Errorf("image width %v differs from reported width %v", img["width"], out["width"])
	}
}

func TestHandlePreprocess_DefaultOmitsImage(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeTextImage(t, "Hello World")

	out := mustSucceed(t, s, "ocr_preprocess", map[string]interface{}{"path": path})
	if _, ok := out["image"]; ok {
		t.Error("image returned without return_image")
	}
	if steps, _ := out["steps"].([]interface{}); len(steps) == 0 {
		t.Error("expected applied steps")
	}
}

func TestHandlePreprocess_InvalidOption(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeTextImage(t, "Hello World")

	_, rpcErr := callTool(t, s, "ocr_preprocess", map[string]interface{}{
		"path":    path,
		"options": map[string]interface{}{"threshold": "sepia"},
	})
	if kind := errorKind(t, rpcErr); kind != string(errs.ImageError) {
		t.Errorf("kind: got %q, want %q", kind, errs.ImageError)
	}
}

func TestHandleDetectTextRegions(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeTextImage(t, "Hello World", "Second line of text", "Third line of text")

	// Small bitmap glyphs score below the default threshold.
	out := mustSucceed(t, s, "ocr_detect_text_regions", map[string]interface{}{"path": path, "min_confidence": 0.1})
	if count, _ := out["count"].(float64); count < 1 {
		t.Errorf("count: got %v, want at least 1", out["count"])
	}
}

func TestHandleEstimateSkew(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeTextImage(t, "Hello World", "Second line of text", "Third line")

	out := mustSucceed(t, s, "ocr_estimate_skew", map[string]interface{}{"path": path, "max_degrees": 5})
	angle, _ := out["angle"].(float64)
	if math.Abs(angle) > 1 {
		t.Errorf("angle: got %v, want about 0 for level text", angle)
	}
}

func TestHandleRecognize(t *testing.T) {
	s, engine := newTestServer(t, "Hello Wor1d")
	path := writeTextImage(t, "Hello World")

	out := mustSucceed(t, s, "ocr_recognize", map[string]interface{}{"path": path})
	if out["engine"] != "fake" {
		t.Errorf("engine: got %v, want fake", out["engine"])
	}
	if engine.Calls() != 1 {
		t.Errorf("engine calls: got %d, want 1", engine.Calls())
	}
}

func TestHandleRecognize_EngineUnavailable(t *testing.T) {
	s, engine := newTestServer(t)
	engine.Err = errs.Errorf(errs.EngineUnavailable, "ocr", "tesseract not found")
	path := writeTextImage(t, "Hello World")

	_, rpcErr := callTool(t, s, "ocr_recognize", map[string]interface{}{"path": path})
	if kind := errorKind(t, rpcErr); kind != string(errs.EngineUnavailable) {
		t.Errorf("kind: got %q, want %q", kind, errs.EngineUnavailable)
	}
}

func TestHandleCorrectText(t *testing.T) {
	s, _ := newTestServer(t)

	out := mustSucceed(t, s, "ocr_correct_text", map[string]interface{}{"text": "Hello Wor1d"})
	if out["text"] != "Hello World" {
		t.Errorf("text: got %q, want %q", out["text"], "Hello World")
	}
	if out["corrections"] != float64(1) {
		t.Errorf("corrections: got %v, want 1", out["corrections"])
	}
}

func TestHandleCorrectText_Disabled(t *testing.T) {
	s, _ := newTestServer(t)
	s.pipeline.Corrector = nil

	_, rpcErr := callTool(t, s, "ocr_correct_text", map[string]interface{}{"text": "Hello"})
	if kind := errorKind(t, rpcErr); kind != "" {
		t.Errorf("kind: got %q, want none", kind)
	}
}

func TestHandleAssessText(t *testing.T) {
	s, _ := newTestServer(t)

	good := mustSucceed(t, s, "ocr_assess_text", map[string]interface{}{"text": "Hello World document camera"})
	bad := mustSucceed(t, s, "ocr_assess_text", map[string]interface{}{"text": "xq zzkt vvwp qqq"})

	g, _ := good["overall_confidence"].(float64)
	b, _ := bad["overall_confidence"].(float64)
	if g <= b {
		t.Errorf("expected dictionary text (%v) to score above garbage (%v)", g, b)
	}
}

func TestHandleExportPDF_Text(t *testing.T) {
	s, _ := newTestServer(t)
	out := filepath.Join(t.TempDir(), "note.pdf")

	doc := mustSucceed(t, s, "ocr_export_pdf", map[string]interface{}{"text": "Hello World", "output_path": out})
	if doc["path"] != out {
		t.Errorf("path: got %v, want %s", doc["path"], out)
	}
	if doc["pages"] != float64(1) {
		t.Errorf("pages: got %v, want 1", doc["pages"])
	}

	rows, err := export.ReadBack(out)
	if err != nil {
		t.Fatalf("ReadBack: %v", err)
	}
	if len(rows) != 1 || rows[0] != "Hello World" {
		t.Errorf("rows: got %q", rows)
	}
}

func TestHandleExportPDF_Image(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeTextImage(t, "Hello World")
	out := filepath.Join(t.TempDir(), "scan.pdf")

	doc := mustSucceed(t, s, "ocr_export_pdf", map[string]interface{}{"image_path": path, "output_path": out})
	if doc["pages"] != float64(1) {
		t.Errorf("pages: got %v, want 1", doc["pages"])
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("pdf not written: %v", err)
	}
}

func TestHandleExportPDF_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()

	tests := []struct {
		name     string
		args     map[string]interface{}
		wantKind string
	}{
		{"neither text nor image", map[string]interface{}{}, ""},
		{"both text and image", map[string]interface{}{"text": "x", "image_path": "/x.png"}, ""},
		{"missing parent dir", map[string]interface{}{
			"text":        "Hello",
			"output_path": filepath.Join(dir, "missing", "out.pdf"),
		}, string(errs.ExportError)},
		{"output is a directory", map[string]interface{}{"text": "Hello", "output_path": dir}, string(errs.ExportError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rpcErr := callTool(t, s, "ocr_export_pdf", tt.args)
			if kind := errorKind(t, rpcErr); kind != tt.wantKind {
				t.Errorf("kind: got %q, want %q", kind, tt.wantKind)
			}
		})
	}
}

func TestHandleRunPipeline(t *testing.T) {
	s, engine := newTestServer(t, "Hello Wor1d")
	engine.Confidence = 0.5
	path := writeTextImage(t, "Hello World")
	out := filepath.Join(t.TempDir(), "run.pdf")

	report := mustSucceed(t, s, "ocr_run_pipeline", map[string]interface{}{"path": path, "output_path": out})
	if report["run_id"] == "" {
		t.Error("missing run_id")
	}
	doc, ok := report["document"].(map[string]interface{})
	if !ok || doc["path"] != out {
		t.Errorf("document: got %v", report["document"])
	}
	corrected, ok := report["corrected"].(map[string]interface{})
	if !ok || corrected["corrections"] != float64(1) {
		t.Errorf("corrected: got %v", report["corrected"])
	}
}

func TestHandleRunPipeline_SkipExport(t *testing.T) {
	s, _ := newTestServer(t, "Hello World")
	path := writeTextImage(t, "Hello World")

	report := mustSucceed(t, s, "ocr_run_pipeline", map[string]interface{}{"path": path, "skip_export": true, "skip_correction": true})
	if _, ok := report["document"]; ok {
		t.Error("document written despite skip_export")
	}
	if _, ok := report["corrected"]; ok {
		t.Error("correction ran despite skip_correction")
	}
}

func TestHandleEngineInfo(t *testing.T) {
	s, _ := newTestServer(t)
	out := mustSucceed(t, s, "ocr_engine_info", map[string]interface{}{})
	if out["available"] != true {
		t.Errorf("available: got %v", out["available"])
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s, _ := newTestServer(t)
	_, rpcErr := callTool(t, s, "image_crop", map[string]interface{}{})
	errorKind(t, rpcErr)
}

func TestHandleToolsCall_BadArguments(t *testing.T) {
	s, _ := newTestServer(t)
	_, rpcErr := callTool(t, s, "ocr_focus_check", map[string]interface{}{"path": 42})
	errorKind(t, rpcErr)
}

func TestExecuteTool_CancelledRecognize(t *testing.T) {
	s, _ := newTestServer(t, "Hello")
	path := writeTextImage(t, "Hello")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	args, _ := json.Marshal(map[string]interface{}{"path": path})
	if _, err := s.executeTool(ctx, "ocr_recognize", args); err == nil {
		t.Error("expected context error")
	}
}
