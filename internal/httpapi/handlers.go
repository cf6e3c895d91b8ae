package httpapi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ironsheep/doccam-ocr/internal/correct"
	"github.com/ironsheep/doccam-ocr/internal/errs"
	"github.com/ironsheep/doccam-ocr/internal/imaging"
	"github.com/ironsheep/doccam-ocr/internal/pipeline"
)

// health returns the service status
func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "doccam-ocr",
		"version":   s.version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) engine(c *fiber.Ctx) error {
	return c.JSON(s.pipeline.Engine.Info(c.UserContext()))
}

// upload decodes the multipart "image" field.
func upload(c *fiber.Ctx) (*imaging.CapturedImage, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, errs.E(errs.ImageError, "upload", fmt.Errorf("no image uploaded: %w", err))
	}
	src, err := file.Open()
	if err != nil {
		return nil, errs.E(errs.ImageError, "upload", err)
	}
	defer src.Close()

	return imaging.Decode(src, file.Filename)
}

func (s *Server) ocr(c *fiber.Ctx) error {
	captured, err := upload(c)
	if err != nil {
		return err
	}

	report, err := s.pipeline.Run(c.UserContext(), pipeline.Request{
		Image:          captured.Image,
		Source:         captured.Source,
		SkipCorrection: c.QueryBool("skip_correction", false),
		SkipExport:     true,
	})
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (s *Server) pdf(c *fiber.Ctx) error {
	if s.pipeline.Exporter == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "export is disabled")
	}
	captured, err := upload(c)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "doccam-http-*")
	if err != nil {
		return errs.E(errs.ExportError, "export pdf", err)
	}
	defer os.RemoveAll(dir)

	name := strings.TrimSuffix(filepath.Base(captured.Source), filepath.Ext(captured.Source))
	if name == "" || name == "." {
		name = "document"
	}
	name += ".pdf"

	report, err := s.pipeline.Run(c.UserContext(), pipeline.Request{
		Image:          captured.Image,
		Source:         captured.Source,
		OutputPath:     filepath.Join(dir, name),
		SkipCorrection: c.QueryBool("skip_correction", false),
	})
	if err != nil {
		return err
	}

	c.Set("X-Run-ID", report.RunID)
	c.Set("X-Page-Count", fmt.Sprint(report.Document.Pages))
	c.Attachment(name)
	c.Type("pdf")
	return c.Send(report.Document.Bytes)
}

type correctRequest struct {
	Text string `json:"text"`
}

type correctResponse struct {
	Text        string             `json:"text"`
	Corrections int                `json:"corrections"`
	Assessment  correct.Assessment `json:"assessment"`
}

func (s *Server) correct(c *fiber.Ctx) error {
	if s.pipeline.Corrector == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "correction is disabled")
	}
	var req correctRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	corrected := s.pipeline.Corrector.CorrectText(req.Text)
	return c.JSON(correctResponse{
		Text:        corrected.Text(),
		Corrections: corrected.Corrections,
		Assessment:  s.pipeline.Corrector.Assess(corrected.Text()),
	})
}
