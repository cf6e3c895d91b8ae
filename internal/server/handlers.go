package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/doccam-ocr/internal/correct"
	"github.com/ironsheep/doccam-ocr/internal/detection"
	"github.com/ironsheep/doccam-ocr/internal/errs"
	"github.com/ironsheep/doccam-ocr/internal/imaging"
	"github.com/ironsheep/doccam-ocr/internal/pipeline"
	"github.com/ironsheep/doccam-ocr/internal/preprocess"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ocr_recognize").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// ToolErrorData is the data member of a failed tools/call response.
type ToolErrorData struct {
	// Kind is the pipeline error kind, empty for argument errors.
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

// errDisabled is returned by tools whose stage is turned off in the
// configuration.
var errDisabled = errors.New("stage disabled by configuration")

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000
// and the error kind in data.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		kind := errs.KindOf(err)
		s.logger.Warn().Err(err).Str("tool", params.Name).Str("kind", string(kind)).Msg("Tool failed")
		return errorResponse(req.ID, CodeToolFailed, "Tool execution failed", ToolErrorData{Kind: string(kind), Error: err.Error()})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Capture
	case "ocr_load_image":
		return s.handleLoadImage(args)
	case "ocr_focus_check":
		return s.handleFocusCheck(args)

	// Preprocessing
	case "ocr_preprocess":
		return s.handlePreprocess(args)
	case "ocr_detect_text_regions":
		return s.handleDetectTextRegions(args)
	case "ocr_estimate_skew":
		return s.handleEstimateSkew(args)

	// Recognition and correction
	case "ocr_recognize":
		return s.handleRecognize(ctx, args)
	case "ocr_correct_text":
		return s.handleCorrectText(args)
	case "ocr_assess_text":
		return s.handleAssessText(args)

	// Export
	case "ocr_export_pdf":
		return s.handleExportPDF(args)

	// Whole pipeline
	case "ocr_run_pipeline":
		return s.handleRunPipeline(ctx, args)
	case "ocr_engine_info":
		return s.pipeline.Engine.Info(ctx), nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func (s *Server) load(path string) (*imaging.CapturedImage, error) {
	if path == "" {
		return nil, errs.Errorf(errs.ImageError, "load image", "path is required")
	}
	if s.pipeline.Cache != nil {
		return s.pipeline.Cache.Load(path)
	}
	return imaging.Load(path)
}

// === Capture Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

type loadImageResult struct {
	*imaging.ImageInfo
	Focus    imaging.FocusResult `json:"focus"`
	Contrast imaging.Stats       `json:"contrast"`
}

func (s *Server) handleLoadImage(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	info, err := imaging.Info(img)
	if err != nil {
		return nil, err
	}
	return loadImageResult{
		ImageInfo: info,
		Focus:     imaging.CheckFocus(img.Image, s.pipeline.MinSharpness),
		Contrast:  imaging.Analyze(img.Image),
	}, nil
}

type focusCheckArgs struct {
	Path         string  `json:"path"`
	MinSharpness float64 `json:"min_sharpness"`
}

func (s *Server) handleFocusCheck(args json.RawMessage) (interface{}, error) {
	var a focusCheckArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.MinSharpness == 0 {
		a.MinSharpness = s.pipeline.MinSharpness
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.CheckFocus(img.Image, a.MinSharpness), nil
}

// === Preprocessing Handlers ===

type preprocessArgs struct {
	Path        string          `json:"path"`
	Options     json.RawMessage `json:"options"`
	ReturnImage bool            `json:"return_image"`
}

type preprocessResult struct {
	*preprocess.PreprocessedImage
	Image *imaging.EncodedImage `json:"image,omitempty"`
}

func (s *Server) handlePreprocess(args json.RawMessage) (interface{}, error) {
	var a preprocessArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	pre := s.pipeline.Preprocessor
	if len(a.Options) > 0 {
		opts := pre.Options()
		if err := json.Unmarshal(a.Options, &opts); err != nil {
			return nil, fmt.Errorf("invalid options: %w", err)
		}
		var err error
		if pre, err = preprocess.New(opts); err != nil {
			return nil, err
		}
	}

	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	out, err := pre.Process(img)
	if err != nil {
		return nil, err
	}

	result := preprocessResult{PreprocessedImage: out}
	if a.ReturnImage {
		if result.Image, err = imaging.EncodeBase64PNG(out.Image); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type detectTextRegionsArgs struct {
	Path          string  `json:"path"`
	MinConfidence float64 `json:"min_confidence"`
}

func (s *Server) handleDetectTextRegions(args json.RawMessage) (interface{}, error) {
	var a detectTextRegionsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.MinConfidence == 0 {
		a.MinConfidence = 0.5
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	return detection.DetectTextBlocks(img.Image, a.MinConfidence), nil
}

type estimateSkewArgs struct {
	Path       string  `json:"path"`
	MaxDegrees float64 `json:"max_degrees"`
}

func (s *Server) handleEstimateSkew(args json.RawMessage) (interface{}, error) {
	var a estimateSkewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.MaxDegrees == 0 {
		a.MaxDegrees = 15
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	return detection.EstimateSkew(img.Image, a.MaxDegrees, 0), nil
}

// === Recognition and Correction Handlers ===

func (s *Server) handleRecognize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	pre, err := s.pipeline.Preprocessor.Process(img)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Engine.Recognize(ctx, pre)
}

type textArgs struct {
	Text string `json:"text"`
}

type correctTextResult struct {
	Text        string                  `json:"text"`
	Corrections int                     `json:"corrections"`
	Lines       []correct.CorrectedLine `json:"lines"`
}

func (s *Server) handleCorrectText(args json.RawMessage) (interface{}, error) {
	var a textArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.pipeline.Corrector == nil {
		return nil, errDisabled
	}
	corrected := s.pipeline.Corrector.CorrectText(a.Text)
	return correctTextResult{
		Text:        corrected.Text(),
		Corrections: corrected.Corrections,
		Lines:       corrected.Lines,
	}, nil
}

func (s *Server) handleAssessText(args json.RawMessage) (interface{}, error) {
	var a textArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.pipeline.Corrector == nil {
		return nil, errDisabled
	}
	return s.pipeline.Corrector.Assess(a.Text), nil
}

// === Export Handlers ===

type exportPDFArgs struct {
	Text       *string `json:"text"`
	ImagePath  string  `json:"image_path"`
	OutputPath string  `json:"output_path"`
}

func (s *Server) handleExportPDF(args json.RawMessage) (interface{}, error) {
	var a exportPDFArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.pipeline.Exporter == nil {
		return nil, errDisabled
	}

	switch {
	case a.Text != nil && a.ImagePath != "":
		return nil, errors.New("give either text or image_path, not both")
	case a.ImagePath != "":
		img, err := s.load(a.ImagePath)
		if err != nil {
			return nil, err
		}
		return s.pipeline.Exporter.ExportImage(img.Image, a.OutputPath)
	case a.Text != nil:
		return s.pipeline.Exporter.ExportText(*a.Text, a.OutputPath)
	}
	return nil, errors.New("text or image_path is required")
}

// === Pipeline Handlers ===

type runPipelineArgs struct {
	Path           string `json:"path"`
	OutputPath     string `json:"output_path"`
	SkipCorrection bool   `json:"skip_correction"`
	SkipExport     bool   `json:"skip_export"`
}

func (s *Server) handleRunPipeline(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a runPipelineArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errs.Errorf(errs.ImageError, "load image", "path is required")
	}
	return s.pipeline.Run(ctx, pipeline.Request{
		ImagePath:      a.Path,
		OutputPath:     a.OutputPath,
		SkipCorrection: a.SkipCorrection,
		SkipExport:     a.SkipExport,
	})
}
