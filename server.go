package main

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"gaslink/handlers/redirect"
	h "gaslink/helpers"
	"gaslink/metrics"
)

type Server struct {
	E        *echo.Echo
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Redirect *redirect.Handler
	Limiter  *h.RateLimiter
	AppEnv   string
}

// NewServer wires routes. limiter may be nil.
func NewServer(log *zap.Logger, m *metrics.Metrics, rh *redirect.Handler, limiter *h.RateLimiter, appEnv string) *Server {
	e := echo.New()

	// essential middleware only
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())

	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		E:        e,
		Log:      log,
		Metrics:  m,
		Redirect: rh,
		Limiter:  limiter,
		AppEnv:   appEnv,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.E.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	s.E.GET("/api/health", s.health)
	if s.Metrics != nil {
		s.E.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}

	// platform API lives elsewhere; never let it fall through to a tenant
	s.E.Any("/api/*", func(c echo.Context) error {
		return h.JSONError(c, http.StatusNotFound, "not found")
	})

	var mw []echo.MiddlewareFunc
	if s.Limiter != nil {
		mw = append(mw, s.Limiter.Middleware)
	}
	for _, path := range []string{"/", "/*"} {
		s.E.GET(path, s.Redirect.Redirect, mw...)
		s.E.HEAD(path, s.Redirect.Redirect, mw...)
	}
}

// GET /api/health
func (s *Server) health(c echo.Context) error {
	return h.JSONSuccess(c, http.StatusOK, map[string]any{
		"status":      "ok",
		"timestamp":   time.Now().UnixMilli(),
		"environment": s.AppEnv,
	}, "")
}

func (s *Server) Start(addr string) error {
	s.Log.Info("server starting", zap.String("addr", addr))
	return s.E.Start(addr)
}
