// Package server implements the MCP (Model Context Protocol) server for the
// document OCR pipeline.
//
// The server exposes each pipeline stage as a tool so that an MCP client can
// inspect a capture, try preprocessing settings, recognize, correct and
// export without going through the command line.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Capture:
//   - ocr_load_image: Load an image and report metadata, focus and contrast
//   - ocr_focus_check: Laplacian-variance focus check
//
// Preprocessing:
//   - ocr_preprocess: Run preprocessing, optionally with overridden options
//   - ocr_detect_text_regions: Find text line bounding boxes
//   - ocr_estimate_skew: Estimate document rotation
//
// Recognition and correction:
//   - ocr_recognize: Preprocess and recognize an image
//   - ocr_correct_text: Dictionary correction of plain text
//   - ocr_assess_text: Score text quality
//
// Export:
//   - ocr_export_pdf: Write text or an image to a PDF
//
// Pipeline:
//   - ocr_run_pipeline: Run every stage on one image
//   - ocr_engine_info: Report OCR engine availability
//
// # Image Caching
//
// Loaded captures are cached by path in the pipeline's CaptureCache and reused
// across tool calls. A successful ocr_run_pipeline evicts its capture.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: "Tool execution failed"
//   - data: {"kind": <error kind>, "error": <error string>}
//
// # Usage
//
//	p, err := pipeline.New(cfg)
//	if err != nil {
//	    return err
//	}
//	return server.New(p, version).Run(ctx)
package server
