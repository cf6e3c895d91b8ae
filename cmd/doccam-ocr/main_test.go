package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/doccam-ocr/internal/export"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DOCCAM_OUTPUT_DIR", t.TempDir())
	t.Setenv("DOCCAM_LOG_LEVEL", "error")
	var out bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestRun_Version(t *testing.T) {
	out, err := runCLI(t, "", "--version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "doccam-ocr dev"), out)
}

func TestRun_Help(t *testing.T) {
	for _, arg := range []string{"--help", "-h", "help"} {
		out, err := runCLI(t, "", arg)
		require.NoError(t, err, arg)
		assert.Contains(t, out, "Commands:", arg)
	}
}

func TestRun_NoCommand(t *testing.T) {
	out, err := runCLI(t, "")
	assert.Error(t, err)
	assert.Contains(t, out, "Usage:")
}

func TestRun_UnknownCommand(t *testing.T) {
	_, err := runCLI(t, "", "scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "scan"`)
}

func TestRun_MissingConfig(t *testing.T) {
	_, err := runCLI(t, "", "-config", filepath.Join(t.TempDir(), "missing.yaml"), "info")
	assert.Error(t, err)
}

func TestRun_RunRequiresInput(t *testing.T) {
	_, err := runCLI(t, "", "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-in is required")
}

func TestRun_RunMissingImage(t *testing.T) {
	_, err := runCLI(t, "", "run", "-in", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage capture")
}

func TestRun_BatchRequiresImages(t *testing.T) {
	_, err := runCLI(t, "", "batch", "-out", t.TempDir())
	assert.Error(t, err)
}

func TestBatchOutputs(t *testing.T) {
	images := []string{
		filepath.Join("scans", "monday", "page.png"),
		filepath.Join("scans", "tuesday", "page.jpg"),
		"receipt.png",
		filepath.Join("scans", "page_1.png"),
		filepath.Join("other", "page.tiff"),
	}
	want := []string{
		filepath.Join("out", "page.pdf"),
		filepath.Join("out", "page_1.pdf"),
		filepath.Join("out", "receipt.pdf"),
		filepath.Join("out", "page_1_1.pdf"),
		filepath.Join("out", "page_2.pdf"),
	}
	assert.Equal(t, want, batchOutputs("out", images))
}

func TestRun_Inspect(t *testing.T) {
	opts := export.DefaultOptions()
	opts.OutputDir = t.TempDir()
	exporter, err := export.New(opts)
	require.NoError(t, err)
	path := filepath.Join(opts.OutputDir, "note.pdf")
	_, err = exporter.ExportText("Hello World\nSecond line", path)
	require.NoError(t, err)

	out, err := runCLI(t, "", "inspect", path)
	require.NoError(t, err)
	assert.Equal(t, path+": 1 pages, 2 lines\nHello World\nSecond line\n", out)
}

func TestRun_InspectErrors(t *testing.T) {
	_, err := runCLI(t, "", "inspect")
	assert.Error(t, err)

	_, err = runCLI(t, "", "inspect", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestRun_Info(t *testing.T) {
	out, err := runCLI(t, "", "info")
	require.NoError(t, err)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "dev", report["version"])
	assert.Contains(t, report, "engine")
	dict, ok := report["dictionary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "fallback", dict["source"])
}

func TestRun_Serve(t *testing.T) {
	out, err := runCLI(t, `{"jsonrpc":"2.0","id":7,"method":"ping"}`+"\n", "serve")
	require.NoError(t, err)
	assert.Contains(t, out, `"id":7`)
	assert.Contains(t, out, `"result":{}`)
}
