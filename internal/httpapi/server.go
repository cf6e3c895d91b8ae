// Package httpapi serves the OCR pipeline over HTTP.
//
// Routes:
//
//	GET  /health      liveness and version
//	GET  /v1/engine   OCR engine availability
//	POST /v1/ocr      multipart "image" upload, returns the run report as JSON
//	POST /v1/pdf      multipart "image" upload, returns the exported PDF
//	POST /v1/correct  {"text": "..."}, returns the corrected text and assessment
//
// Pipeline failures map to status codes by error kind; the body is always
// {"error": "...", "kind": "..."}.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ironsheep/doccam-ocr/internal/config"
	"github.com/ironsheep/doccam-ocr/internal/errs"
	"github.com/ironsheep/doccam-ocr/internal/logging"
	"github.com/ironsheep/doccam-ocr/internal/pipeline"
)

// Server is the HTTP front end of a pipeline.
type Server struct {
	app      *fiber.App
	pipeline *pipeline.Pipeline
	version  string
	logger   zerolog.Logger
}

// New builds the fiber app and registers the routes.
func New(p *pipeline.Pipeline, version string, cfg config.ServerConfig) *Server {
	s := &Server{
		pipeline: p,
		version:  version,
		logger:   logging.Component("http"),
	}

	bodyLimit := cfg.BodyLimitMB * 1024 * 1024
	if bodyLimit <= 0 {
		bodyLimit = fiber.DefaultBodyLimit
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "doccam-ocr",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	s.app.Use(s.accessLog)

	s.app.Get("/health", s.health)
	v1 := s.app.Group("/v1")
	v1.Get("/engine", s.engine)
	v1.Post("/ocr", s.ocr)
	v1.Post("/pdf", s.pdf)
	v1.Post("/correct", s.correct)

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()
	s.logger.Info().Str("addr", addr).Str("version", s.version).Msg("HTTP server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Info().
		Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("latency", time.Since(start)).
		Msg("Request")
	return err
}

// StatusFor maps a pipeline error to an HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusGatewayTimeout
	}
	switch errs.KindOf(err) {
	case errs.ImageError:
		return fiber.StatusBadRequest
	case errs.EngineUnavailable:
		return fiber.StatusServiceUnavailable
	case errs.RecognitionError:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Path()).Int("status", code).Msg("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  string(errs.KindOf(err)),
	})
}
