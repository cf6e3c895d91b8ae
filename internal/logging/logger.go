// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`             // debug, info, warn, error
	Format     string `yaml:"format" json:"format"`           // json, pretty
	OutputFile string `yaml:"output_file" json:"output_file"` // file path for logs, empty disables
	Console    bool   `yaml:"console" json:"console"`         // also log to console
	Stderr     bool   `yaml:"-" json:"-"`                     // console writes to stderr instead of stdout
}

// DefaultLogConfig returns sensible defaults
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:   "info",
		Format:  "pretty",
		Console: true,
	}
}

// SetupLogger configures the global logger. The returned closer releases the
// log file, if one was opened.
func SetupLogger(config *LogConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if config.Console {
		var out io.Writer = os.Stdout
		if config.Stderr {
			out = os.Stderr
		}
		if config.Format == "pretty" {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        out,
				TimeFormat: time.RFC3339,
			})
		} else {
			writers = append(writers, out)
		}
	}

	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0755); err != nil {
			return nil, err
		}
		logFile, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		writers = append(writers, logFile)
		closer = logFile
	}

	switch len(writers) {
	case 0:
		log.Logger = zerolog.Nop()
	case 1:
		log.Logger = zerolog.New(writers[0]).With().Timestamp().Logger()
	default:
		log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	}

	log.Debug().
		Str("level", config.Level).
		Str("format", config.Format).
		Str("output_file", config.OutputFile).
		Bool("console", config.Console).
		Msg("Logger initialized")

	return closer, nil
}

// Component returns a logger tagged with a component name.
func Component(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Run returns a logger for one pipeline run and stage.
func Run(runID, stage string) zerolog.Logger {
	return log.With().
		Str("run_id", runID).
		Str("stage", stage).
		Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
