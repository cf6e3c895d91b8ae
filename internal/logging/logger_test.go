package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger_FileOutput(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	path := filepath.Join(t.TempDir(), "logs", "doccam.log")
	closer, err := SetupLogger(&LogConfig{Level: "info", Format: "json", OutputFile: path})
	require.NoError(t, err)

	logger := Component("test")
	logger.Info().Str("k", "v").Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, `"component":"test"`), line)
	assert.True(t, strings.Contains(line, `"message":"hello"`), line)
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	_, err := SetupLogger(&LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestSetupLogger_NoWriters(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	closer, err := SetupLogger(&LogConfig{Level: "debug"})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.Equal(t, zerolog.Disabled, log.Logger.GetLevel())
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.Empty(t, cfg.OutputFile)
}
