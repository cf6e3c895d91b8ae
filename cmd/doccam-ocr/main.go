package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/doccam-ocr/internal/config"
	"github.com/ironsheep/doccam-ocr/internal/export"
	"github.com/ironsheep/doccam-ocr/internal/httpapi"
	"github.com/ironsheep/doccam-ocr/internal/logging"
	"github.com/ironsheep/doccam-ocr/internal/ocr"
	"github.com/ironsheep/doccam-ocr/internal/pipeline"
	"github.com/ironsheep/doccam-ocr/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `doccam-ocr - document camera OCR to PDF

Usage: doccam-ocr [-config FILE] <command> [options]

Commands:
  run -in IMG [-out PDF]        Recognize one image and write a PDF
  batch -out DIR IMG...         Recognize several images, one PDF each
  inspect PDF                   Print page count and text of a PDF
  serve                         MCP server over stdin/stdout
  http [-addr ADDR]             HTTP API
  info                          Report OCR engine and dictionary status

Options:
  -config FILE     YAML configuration (default $DOCCAM_CONFIG)
  --version, -v    Print version information
  --help, -h       Print this help message

Environment variables:
  DOCCAM_LOG_LEVEL=debug        Enable debug logging
  DOCCAM_TESSERACT_PATH=PATH    Tesseract binary
  DOCCAM_OCR_LANGUAGE=eng       Tesseract language
  DOCCAM_DICTIONARY=PATH        Word list for correction
  DOCCAM_OUTPUT_DIR=DIR         Directory for generated PDFs
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "doccam-ocr: %v\n", err)
		os.Exit(1)
	}
}

// run parses the command line and executes one command.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Fprintf(stdout, "doccam-ocr %s\n", Version)
			fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
			return nil
		case "--help", "-h", "help":
			fmt.Fprint(stdout, usage)
			return nil
		}
	}

	global := flag.NewFlagSet("doccam-ocr", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	configPath := global.String("config", os.Getenv("DOCCAM_CONFIG"), "YAML configuration file")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(stdout, usage)
			return nil
		}
		return err
	}

	args = global.Args()
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("no command given")
	}

	cmd, args := args[0], args[1:]
	if cmd == "inspect" {
		return inspect(args, stdout)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	// stdout carries command output and, for serve, the MCP protocol.
	cfg.Logging.Stderr = true
	closer, err := logging.SetupLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	log.Debug().Str("version", Version).Str("build_time", BuildTime).Str("commit", GitCommit).Str("command", cmd).Msg("Starting")

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	switch cmd {
	case "run":
		return runOne(ctx, p, args, stdout)
	case "batch":
		return runBatch(ctx, p, cfg.Pipeline.Workers, args, stdout)
	case "serve":
		return server.New(p, Version).Serve(ctx, stdin, stdout)
	case "http":
		fs := flag.NewFlagSet("http", flag.ContinueOnError)
		addr := fs.String("addr", cfg.Server.HTTPAddr, "listen address")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return httpapi.New(p, Version, cfg.Server).Listen(ctx, *addr)
	case "info":
		return info(ctx, p, stdout)
	default:
		return fmt.Errorf("unknown command %q (see --help)", cmd)
	}
}

func runOne(ctx context.Context, p *pipeline.Pipeline, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	in := fs.String("in", "", "input image")
	out := fs.String("out", "", "output PDF (default: timestamped name in the output directory)")
	noCorrect := fs.Bool("no-correct", false, "skip dictionary correction")
	noExport := fs.Bool("no-pdf", false, "print the text without writing a PDF")
	asJSON := fs.Bool("json", false, "print the full run report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" && fs.NArg() == 1 {
		*in = fs.Arg(0)
	}
	if *in == "" {
		return errors.New("run: -in is required")
	}

	report, err := p.Run(ctx, pipeline.Request{
		ImagePath:      *in,
		OutputPath:     *out,
		SkipCorrection: *noCorrect,
		SkipExport:     *noExport,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintln(stdout, report.Text())
	if report.Blurry {
		fmt.Fprintf(os.Stderr, "warning: capture looks blurry (focus %.1f < %.1f)\n", report.Focus.Measure, report.Focus.Threshold)
	}
	if report.Assessment != nil {
		fmt.Fprintf(os.Stderr, "quality: %s (%.2f), %d corrections\n", report.Assessment.Quality, report.Assessment.Overall, report.Corrected.Corrections)
	}
	if report.Document != nil {
		fmt.Fprintf(os.Stderr, "wrote %s (%d pages)\n", report.Document.Path, report.Document.Pages)
	}
	return nil
}

func runBatch(ctx context.Context, p *pipeline.Pipeline, workers int, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	outDir := fs.String("out", "", "directory for the PDFs (default: configured output directory)")
	fs.IntVar(&workers, "workers", workers, "concurrent runs")
	noCorrect := fs.Bool("no-correct", false, "skip dictionary correction")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("batch: no images given")
	}

	requests := make([]pipeline.Request, fs.NArg())
	var outputs []string
	if *outDir != "" {
		outputs = batchOutputs(*outDir, fs.Args())
	}
	for i, path := range fs.Args() {
		requests[i] = pipeline.Request{ImagePath: path, SkipCorrection: *noCorrect}
		if outputs != nil {
			requests[i].OutputPath = outputs[i]
		}
	}

	items := p.Batch(ctx, requests, workers)
	for _, item := range items {
		if item.Err != nil {
			fmt.Fprintf(stdout, "FAIL %s: %v\n", item.Request.ImagePath, item.Err)
			continue
		}
		fmt.Fprintf(stdout, "ok   %s -> %s\n", item.Request.ImagePath, item.Report.Document.Path)
	}

	if failed := pipeline.Failed(items); failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(items))
	}
	return nil
}

// batchOutputs names one PDF per image inside dir after the image's base
// name. Images sharing a base name get _1, _2 suffixes in argument order.
func batchOutputs(dir string, images []string) []string {
	out := make([]string, len(images))
	used := make(map[string]bool, len(images))
	for i, path := range images {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		name := base + ".pdf"
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s_%d.pdf", base, n)
		}
		used[name] = true
		out[i] = filepath.Join(dir, name)
	}
	return out
}

func inspect(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("inspect: exactly one PDF path is required")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	pages, err := export.PageCount(data)
	if err != nil {
		return err
	}
	rows, err := export.ReadBack(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %d pages, %d lines\n", args[0], pages, len(rows))
	for _, row := range rows {
		fmt.Fprintln(stdout, row)
	}
	return nil
}

type infoReport struct {
	Version    string         `json:"version"`
	Engine     ocr.EngineInfo `json:"engine"`
	Dictionary *dictInfo      `json:"dictionary,omitempty"`
}

type dictInfo struct {
	Source string `json:"source"`
	Words  int    `json:"words"`
}

func info(ctx context.Context, p *pipeline.Pipeline, stdout io.Writer) error {
	report := infoReport{
		Version: Version,
		Engine:  p.Engine.Info(ctx),
	}
	if p.Corrector != nil {
		d := p.Corrector.Dictionary()
		report.Dictionary = &dictInfo{Source: d.Source(), Words: d.Len()}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
