// Package server exposes the simulation core over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chronoscribe/chronoscribe/internal/agent"
	"github.com/chronoscribe/chronoscribe/internal/config"
	"github.com/chronoscribe/chronoscribe/internal/metrics"
	"github.com/chronoscribe/chronoscribe/internal/provider"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps the echo HTTP server around one agent loop.
type Server struct {
	echo     *echo.Echo
	loop     *agent.Loop
	cfg      *config.Config
	validate *validator.Validate
}

// New creates the HTTP server and registers routes.
func New(cfg *config.Config, loop *agent.Loop) *Server {
	metrics.Register()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(requestLogging())

	s := &Server{
		echo:     e,
		loop:     loop,
		cfg:      cfg,
		validate: newValidator(),
	}

	e.GET("/health", s.handleHealth)
	e.POST("/simulate", s.handleSimulate)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.echo.Server.ReadTimeout = s.cfg.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.cfg.Server.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("http server stopped")
	return nil
}

// Echo returns the underlying echo instance (used in tests).
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleSimulate(c echo.Context) error {
	req := &simulateRequest{}
	if err := c.Bind(req); err != nil {
		metrics.SimulateRequests.WithLabelValues("invalid_request").Inc()
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := defaults.Set(req); err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "request defaulting failed"})
	}
	if err := s.validate.Struct(req); err != nil {
		metrics.SimulateRequests.WithLabelValues("invalid_request").Inc()
		return c.JSON(http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
	}

	// Temperature is left alone here: the loop resolves it after presets
	// apply, so a zero request value picks up the preset's temperature.
	agentReq := req.toAgentRequest(s.cfg.Agent.DefaultHorizon, s.cfg.ToolsEnabled())
	if agentReq.ReferenceYear == 0 {
		agentReq.ReferenceYear = s.cfg.Agent.ReferenceYear
	}

	result, err := s.loop.Simulate(c.Request().Context(), agentReq)
	if err != nil {
		return endpointFailureResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// endpointFailureResponse maps the single fatal error kind onto a response
// code the caller can act on.
func endpointFailureResponse(c echo.Context, err error) error {
	var ee *provider.EndpointError
	status := http.StatusBadGateway
	if errors.As(err, &ee) && ee.Kind == provider.FailureQuota {
		status = http.StatusServiceUnavailable
	}
	slog.Error("simulation failed", "error", err)
	return c.JSON(status, errorResponse{Error: err.Error()})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("field %q failed validation rule %q", fe.Field(), fe.Tag())
	}
	return "invalid request"
}

// requestLogging logs one line per request through slog.
func requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds())
			return err
		}
	}
}
