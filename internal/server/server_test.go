package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/doccam-ocr/internal/correct"
	"github.com/ironsheep/doccam-ocr/internal/export"
	"github.com/ironsheep/doccam-ocr/internal/imaging"
	"github.com/ironsheep/doccam-ocr/internal/ocr/ocrtest"
	"github.com/ironsheep/doccam-ocr/internal/pipeline"
	"github.com/ironsheep/doccam-ocr/internal/preprocess"
)

// newTestServer builds a server around a fake engine that recognises lines.
func newTestServer(t *testing.T, lines ...string) (*Server, *ocrtest.Engine) {
	t.Helper()
	pre, err := preprocess.New(preprocess.DefaultOptions())
	if err != nil {
		t.Fatalf("preprocess.New: %v", err)
	}
	exportOpts := export.DefaultOptions()
	exportOpts.OutputDir = t.TempDir()
	exporter, err := export.New(exportOpts)
	if err != nil {
		t.Fatalf("export.New: %v", err)
	}

	engine := ocrtest.New(lines...)
	p := &pipeline.Pipeline{
		Preprocessor: pre,
		Engine:       engine,
		Corrector: correct.NewWithDictionary(
			correct.NewDictionary([]string{"hello", "world", "document", "camera"}, "test"),
			correct.Moderate,
		),
		Exporter:     exporter,
		Cache:        imaging.NewCaptureCache(),
		MinSharpness: imaging.DefaultMinSharpness,
	}
	return New(p, "test"), engine
}

// writeTextImage draws text onto a white PNG and returns its path.
func writeTextImage(t *testing.T, lines ...string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 40+20*len(lines)))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: basicfont.Face7x13}
	for i, l := range lines {
		d.Dot = fixed.P(20, 30+20*i)
		d.DrawString(l)
	}

	path := filepath.Join(t.TempDir(), "capture.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

// serve runs the requests through Serve and decodes every response line.
func serve(t *testing.T, s *Server, requests ...string) []MCPResponse {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var responses []MCPResponse
	dec := json.NewDecoder(&out)
	for dec.More() {
		var resp MCPResponse
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestServe_Initialize(t *testing.T) {
	s, _ := newTestServer(t)
	responses := serve(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}

	result, ok := responses[0].Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result is %T", responses[0].Result)
	}
	if result["protocolVersion"] != ProtocolVersion {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}
	info := result["serverInfo"].(map[string]interface{})
	if info["name"] != "doccam-ocr" || info["version"] != "test" {
		t.Errorf("serverInfo: got %v", info)
	}
}

func TestServe_NotificationHasNoResponse(t *testing.T) {
	s, _ := newTestServer(t)
	responses := serve(t, s,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0].ID != float64(2) {
		t.Errorf("ID: got %v, want 2", responses[0].ID)
	}
	if responses[0].Error != nil {
		t.Errorf("ping failed: %v", responses[0].Error)
	}
}

func TestServe_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	responses := serve(t, s,
		`not json`,
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":"oops"}`,
	)
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}

	want := []int{CodeParseError, CodeMethodNotFound, CodeInvalidParams}
	for i, code := range want {
		if responses[i].Error == nil {
			t.Errorf("response %d: expected error", i)
			continue
		}
		if responses[i].Error.Code != code {
			t.Errorf("response %d: code %d, want %d", i, responses[i].Error.Code, code)
		}
	}
}

func TestServe_SkipsBlankLines(t *testing.T) {
	s, _ := newTestServer(t)
	responses := serve(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, "")
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
}

func TestServe_ToolsList(t *testing.T) {
	s, _ := newTestServer(t)
	responses := serve(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	result := responses[0].Result.(map[string]interface{})
	tools := result["tools"].([]interface{})
	if len(tools) != len(GetToolDefinitions()) {
		t.Errorf("got %d tools, want %d", len(tools), len(GetToolDefinitions()))
	}
}

func TestServe_CancelledContext(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := s.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &out)
	if err == nil {
		t.Fatal("expected context error")
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestToolDefinitions_Schema(t *testing.T) {
	seen := make(map[string]bool)
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if !strings.HasPrefix(tool.Name, "ocr_") {
				t.Errorf("tool name %q lacks ocr_ prefix", tool.Name)
			}
			if seen[tool.Name] {
				t.Errorf("duplicate tool %q", tool.Name)
			}
			seen[tool.Name] = true
			if tool.Description == "" {
				t.Error("Tool has empty description")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want object", tool.InputSchema["type"])
			}
			if _, ok := tool.InputSchema["properties"]; !ok {
				t.Error("InputSchema missing 'properties' field")
			}
		})
	}
}

func TestToolDefinitions_EveryToolDispatches(t *testing.T) {
	s, _ := newTestServer(t)
	for _, tool := range GetToolDefinitions() {
		_, err := s.executeTool(context.Background(), tool.Name, json.RawMessage(`{}`))
		if err != nil && strings.HasPrefix(err.Error(), "unknown tool") {
			t.Errorf("%s is listed but not dispatched", tool.Name)
		}
	}
}
