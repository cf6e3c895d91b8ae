package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the image file",
}

var outputPathProperty = map[string]interface{}{
	"type":        "string",
	"description": "PDF file to write. Omit to use a timestamped name in the configured output directory.",
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Capture
		{
			Name:        "ocr_load_image",
			Description: "Load an image file and return its dimensions, format, focus measure and contrast. The decoded image is cached for the other tools.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_focus_check",
			Description: "Measure sharpness as the variance of the Laplacian and report whether the capture is in focus.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"min_sharpness": map[string]interface{}{
						"type":        "number",
						"description": "Minimum focus measure (default from configuration, usually 50)",
					},
				},
				"required": []string{"path"},
			},
		},

		// Preprocessing
		{
			Name:        "ocr_preprocess",
			Description: "Run the preprocessing chain (ROI, upscale, grayscale, denoise, sharpen, deskew, threshold, polarity) and return the applied steps. Optionally returns the processed image as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"options": map[string]interface{}{
						"type":        "object",
						"description": "Overrides for preprocessing options, e.g. {\"threshold\": \"otsu\", \"deskew\": false}",
					},
					"return_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the processed image as base64 PNG",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_detect_text_regions",
			Description: "Find regions likely to contain text using edge density analysis.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"min_confidence": map[string]interface{}{
						"type":        "number",
						"description": "Minimum confidence threshold 0-1 (default 0.5)",
						"default":     0.5,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_estimate_skew",
			Description: "Estimate the rotation, in degrees, that straightens the text lines of a capture.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"max_degrees": map[string]interface{}{
						"type":        "number",
						"description": "Largest skew searched in either direction (default 15)",
						"default":     15,
					},
				},
				"required": []string{"path"},
			},
		},

		// Recognition and correction
		{
			Name:        "ocr_recognize",
			Description: "Preprocess an image and extract its text with Tesseract. Returns lines of words with confidences and bounding boxes in image coordinates.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_correct_text",
			Description: "Correct misspelled words against the dictionary. Line and word counts are preserved.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Text to correct, one line per row",
					},
				},
				"required": []string{"text"},
			},
		},
		{
			Name:        "ocr_assess_text",
			Description: "Score how much text looks like valid language: dictionary coverage, word runs, lengths, capitalisation, and a HIGH/MEDIUM/LOW/POOR label.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Text to assess",
					},
				},
				"required": []string{"text"},
			},
		},

		// Export
		{
			Name:        "ocr_export_pdf",
			Description: "Write text, or an image snapshot, to a PDF file. Give either text or image_path.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Text to lay out, one line per row. Lines containing [TABLE CELL] are bold.",
					},
					"image_path": map[string]interface{}{
						"type":        "string",
						"description": "Image to place on a single page instead of text",
					},
					"output_path": outputPathProperty,
				},
			},
		},

		// Whole pipeline
		{
			Name:        "ocr_run_pipeline",
			Description: "Run capture, preprocessing, OCR, correction and PDF export for one image and return the full report.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        pathProperty,
					"output_path": outputPathProperty,
					"skip_correction": map[string]interface{}{
						"type":        "boolean",
						"description": "Export the raw OCR text",
						"default":     false,
					},
					"skip_export": map[string]interface{}{
						"type":        "boolean",
						"description": "Do not write a PDF",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_engine_info",
			Description: "Report which OCR backend is configured, whether it is installed, its version and available languages.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}
