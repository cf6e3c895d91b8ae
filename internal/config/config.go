// Package config loads the application configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/doccam-ocr/internal/correct"
	"github.com/ironsheep/doccam-ocr/internal/export"
	"github.com/ironsheep/doccam-ocr/internal/imaging"
	"github.com/ironsheep/doccam-ocr/internal/logging"
	"github.com/ironsheep/doccam-ocr/internal/ocr"
	"github.com/ironsheep/doccam-ocr/internal/preprocess"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "DOCCAM_"

// PipelineConfig controls runs that go through every stage.
type PipelineConfig struct {
	// MinSharpness is the focus measure below which a capture is flagged
	// as blurry. Blurry captures are still processed.
	MinSharpness float64 `yaml:"min_sharpness" json:"min_sharpness"`

	// Workers bounds concurrent runs in a batch.
	Workers int `yaml:"workers" json:"workers"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" json:"http_addr"`

	// BodyLimitMB caps uploaded images.
	BodyLimitMB int `yaml:"body_limit_mb" json:"body_limit_mb"`
}

// Config is the complete application configuration.
type Config struct {
	Logging    logging.LogConfig  `yaml:"logging" json:"logging"`
	Preprocess preprocess.Options `yaml:"preprocess" json:"preprocess"`
	OCR        ocr.Options        `yaml:"ocr" json:"ocr"`
	Correction correct.Options    `yaml:"correction" json:"correction"`
	Export     export.Options     `yaml:"export" json:"export"`
	Pipeline   PipelineConfig     `yaml:"pipeline" json:"pipeline"`
	Server     ServerConfig       `yaml:"server" json:"server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging:    *logging.DefaultLogConfig(),
		Preprocess: preprocess.DefaultOptions(),
		OCR:        ocr.DefaultOptions(),
		Correction: correct.DefaultOptions(),
		Export:     export.DefaultOptions(),
		Pipeline: PipelineConfig{
			MinSharpness: imaging.DefaultMinSharpness,
			Workers:      4,
		},
		Server: ServerConfig{
			HTTPAddr:    ":8080",
			BodyLimitMB: 20,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from DOCCAM_* variables using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.OutputFile)
	str("TESSERACT_PATH", &c.OCR.TesseractPath)
	str("TESSDATA_PREFIX", &c.OCR.TessdataPrefix)
	str("OCR_LANGUAGE", &c.OCR.Language)
	str("OCR_PSM", &c.OCR.PageSegMode)
	str("DICTIONARY", &c.Correction.DictionaryPath)
	str("TRAINING_FILE", &c.Correction.TrainingPath)
	str("OUTPUT_DIR", &c.Export.OutputDir)
	str("HTTP_ADDR", &c.Server.HTTPAddr)

	if v, ok := lookup(EnvPrefix + "OCR_BACKEND"); ok && v != "" {
		c.OCR.Backend = ocr.Backend(v)
	}
	if v, ok := lookup(EnvPrefix + "WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sWORKERS %q: %w", EnvPrefix, v, err)
		}
		c.Pipeline.Workers = n
	}
	if v, ok := lookup(EnvPrefix + "CORRECTION"); ok && v != "" {
		preset, found := correct.AggressivenessPresets[v]
		switch {
		case v == "off":
			c.Correction.Enabled = false
		case found:
			c.Correction.Enabled = true
			c.Correction.Aggressiveness = preset
		default:
			return fmt.Errorf("invalid %sCORRECTION %q", EnvPrefix, v)
		}
	}
	return nil
}

// Validate checks every section and joins the problems found.
func (c *Config) Validate() error {
	var problems []error
	add := func(section string, err error) {
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", section, err))
		}
	}

	add("preprocess", c.Preprocess.Validate())
	add("ocr", c.OCR.Validate())
	add("correction", c.Correction.Validate())
	add("export", c.Export.Validate())
	if c.Pipeline.Workers < 1 {
		add("pipeline", fmt.Errorf("workers must be at least 1, got %d", c.Pipeline.Workers))
	}
	if c.Pipeline.MinSharpness < 0 {
		add("pipeline", fmt.Errorf("min sharpness must not be negative, got %g", c.Pipeline.MinSharpness))
	}
	if c.Server.BodyLimitMB < 1 {
		add("server", fmt.Errorf("body limit must be at least 1 MB, got %d", c.Server.BodyLimitMB))
	}
	return errors.Join(problems...)
}
