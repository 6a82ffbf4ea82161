// Package api wires the HTTP surface: routing, middleware, and the
// request/response shapes of the crewmate backend.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/crewmate-app/crewmate/internal/auth"
	"github.com/crewmate-app/crewmate/internal/health"
	"github.com/crewmate-app/crewmate/internal/metrics"
	"github.com/crewmate-app/crewmate/internal/requestid"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	ListenAddr  string
	CORSOrigins string
	RateLimit   RateLimitConfig
	// Verifier authenticates /api/v1 requests. Nil disables auth and
	// every request runs as a fixed local identity.
	Verifier auth.Verifier
}

// Server is the crewmate Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures the API server.
func NewServer(
	cfg ServerConfig,
	handlers *Handlers,
	checker *health.Checker,
	metricsCollector *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "api_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, metricsCollector, logger)
	s.setupRoutes(handlers, checker, metricsCollector)

	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, m *metrics.Metrics, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(requestid.Middleware())

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-Id",
			AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
		}))
	}

	if cfg.RateLimit.RPS > 0 {
		s.app.Use(NewRateLimitMiddleware(cfg.RateLimit))
	}

	if m != nil {
		s.app.Use(func(c *fiber.Ctx) error {
			start := time.Now()
			err := c.Next()
			route := c.Route().Path
			m.RecordRequest(route, strconv.Itoa(c.Response().StatusCode()))
			m.ObserveRequest(route, time.Since(start).Seconds())
			return err
		})
	}

	// Request log, skipping noisy probes
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}
		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Str("request_id", requestid.FromContext(c.UserContext())).
			Msg("api request")
		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, checker *health.Checker, m *metrics.Metrics) {
	// Probes and metrics stay unauthenticated
	s.app.Get("/healthz", health.LivenessHandler())
	s.app.Get("/readyz", checker.ReadinessHandler())
	if m != nil {
		s.app.Get("/metrics", httpHandler(m.Handler()))
	}

	v1 := s.app.Group("/api/v1")
	if s.config.Verifier != nil {
		v1.Use(auth.Middleware(s.config.Verifier))
	} else {
		v1.Use(auth.Anonymous())
	}

	v1.Post("/projects", h.CreateProject)
	v1.Get("/projects", h.ListProjects)
	v1.Get("/projects/:id", h.GetProject)
	v1.Post("/projects/:id/day/advance", h.AdvanceDay)
	v1.Get("/projects/:id/teammates", h.Teammates)

	v1.Post("/projects/:id/chat", h.PostChat)
	v1.Get("/projects/:id/chat", h.GetChat)

	v1.Get("/projects/:id/kanban", h.ListTasks)
	v1.Post("/projects/:id/kanban", h.CreateTask)
	v1.Post("/projects/:id/kanban/generate", h.GenerateDeliverables)
	v1.Patch("/projects/:id/kanban/:taskId", h.UpdateTask)
	v1.Delete("/projects/:id/kanban/:taskId", h.DeleteTask)

	v1.Post("/projects/:id/grade", h.GradeSubmission)
}

// httpHandler adapts a net/http handler (the Prometheus one) to Fiber.
func httpHandler(h http.Handler) fiber.Handler {
	fastHandler := fasthttpadaptor.NewFastHTTPHandler(h)
	return func(c *fiber.Ctx) error {
		fastHandler(c.Context())
		return nil
	}
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("api server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     typeForStatus(code),
			Title:    http.StatusText(code),
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}

func typeForStatus(code int) string {
	switch code {
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusTooManyRequests:
		return "rate_limit_exceeded"
	default:
		return "internal_error"
	}
}
