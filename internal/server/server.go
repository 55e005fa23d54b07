package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"keywordscout-go/internal/config"
	"keywordscout-go/internal/handler"
	"keywordscout-go/pkg/logger"
)

// Server wraps the fiber app and its route controller.
type Server struct {
	app  *fiber.App
	cfg  config.ServerConfig
	log  *logger.Logger
	ctrl *handler.Controller
}

func New(cfg config.ServerConfig, ctrl *handler.Controller) *Server {
	log := logger.GetLogger().WithField("component", "server")

	app := fiber.New(fiber.Config{
		AppName:      "keywordscout",
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		ErrorHandler: errorHandler(log),
	})
	app.Use(recover.New())

	ctrl.Register(app)

	return &Server{app: app, cfg: cfg, log: log, ctrl: ctrl}
}

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.log.WithField("addr", addr).Info("HTTP server listening")
	return s.app.Listen(addr)
}

// Shutdown drains connections with a deadline.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.log.Info("HTTP server shutting down")
	return s.app.ShutdownWithTimeout(timeout)
}

func errorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithField("path", ctx.Path()).Error("request failed")
		}
		return ctx.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
