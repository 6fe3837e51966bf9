// Package api exposes the metric calculators over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"weekly-metrics/internal/batch"
	"weekly-metrics/internal/calendar"
	"weekly-metrics/internal/periods"
	"weekly-metrics/internal/source"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

// Settings are the request defaults and limits of the API.
type Settings struct {
	DefaultWeek string
	NumWeeks    int
	// RawDir bounds the paths the metadata endpoint will open.
	RawDir string
}

// Server routes HTTP requests to the orchestrator.
type Server struct {
	echo     *echo.Echo
	orch     *batch.Orchestrator
	settings Settings
}

// New builds the router.
func New(orch *batch.Orchestrator, settings Settings) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, orch: orch, settings: settings}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("requestID", v.RequestID).
				Msg("HTTP request")
			return nil
		},
	}))

	api := e.Group("/api")
	api.GET("/health", s.health)
	api.GET("/periods", s.periods)
	api.GET("/metrics/table1", s.table1)
	api.GET("/markets/top", s.family(batch.SlotMarkets))
	api.GET("/online-kpis", s.family(batch.SlotKPIs))
	api.GET("/families/:family", s.family(""))
	api.GET("/batch", s.batch)
	api.POST("/cache/clear", s.clearCache)
	api.POST("/cache/invalidate/:base_week", s.invalidate)
	api.POST("/data/reload", s.reload)
	api.POST("/files/metadata", s.metadata)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP API listening")
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down HTTP API")
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) baseWeek(c echo.Context) string {
	if w := strings.TrimSpace(c.QueryParam("base_week")); w != "" {
		return w
	}
	return s.settings.DefaultWeek
}

func (s *Server) numWeeks(c echo.Context) (int, error) {
	raw := c.QueryParam("num_weeks")
	if raw == "" {
		return s.settings.NumWeeks, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("num_weeks must be an integer")
	}
	return n, nil
}

func (s *Server) periods(c echo.Context) error {
	res, err := periods.Resolve(s.baseWeek(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) table1(c echo.Context) error {
	var requested []string
	if raw := c.QueryParam("periods"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				requested = append(requested, p)
			}
		}
	}
	includeYTD := true
	if raw := c.QueryParam("include_ytd"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return s.fail(c, badRequest("include_ytd must be a boolean"))
		}
		includeYTD = v
	}

	week := s.baseWeek(c)
	res, err := s.orch.Table1(c.Request().Context(), week, requested, includeYTD)
	if err != nil {
		return s.fail(c, err)
	}
	set, _ := periods.ForWeek(week)
	return c.JSON(http.StatusOK, map[string]any{
		"periods": set.Labels(),
		"metrics": res,
	})
}

// family serves a single family; an empty name is taken from the path.
func (s *Server) family(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		fam := name
		if fam == "" {
			fam = c.Param("family")
		}
		n, err := s.numWeeks(c)
		if err != nil {
			return s.fail(c, err)
		}
		res, err := s.orch.Family(c.Request().Context(), fam, s.baseWeek(c), n)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func (s *Server) batch(c echo.Context) error {
	n, err := s.numWeeks(c)
	if err != nil {
		return s.fail(c, err)
	}
	res, err := s.orch.ComputeAll(c.Request().Context(), s.baseWeek(c), n, nil)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) clearCache(c echo.Context) error {
	s.orch.ClearCaches()
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) invalidate(c echo.Context) error {
	week := c.Param("base_week")
	if err := s.orch.InvalidateWeek(week); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "invalidated", "base_week": week})
}

func (s *Server) reload(c echo.Context) error {
	s.orch.ReloadRaw()
	return c.JSON(http.StatusOK, map[string]string{"status": "reloading"})
}

type metadataRequest struct {
	Path       string `json:"path"`
	SourceKind string `json:"source_kind"`
}

func (s *Server) metadata(c echo.Context) error {
	var req metadataRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	kind, err := source.ParseKind(req.SourceKind)
	if err != nil {
		return s.fail(c, badRequest(err.Error()))
	}
	path, err := s.confine(req.Path)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, source.ExtractFileMetadata(path, kind))
}

func (s *Server) confine(path string) (string, error) {
	if s.settings.RawDir == "" {
		if path == "" {
			return "", badRequest("path is required")
		}
		return path, nil
	}
	return source.Confine(s.settings.RawDir, path)
}

type requestError struct{ msg string }

func (e requestError) Error() string { return e.msg }

func badRequest(msg string) error { return requestError{msg} }

// fail maps domain errors onto status codes. Unexpected errors are logged
// and hidden behind a generic message.
func (s *Server) fail(c echo.Context, err error) error {
	var reqErr requestError
	switch {
	case errors.As(err, &reqErr), errors.Is(err, calendar.ErrInvalidPeriod), errors.Is(err, source.ErrOutsideRoot):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, batch.ErrUnknownFamily):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("Request failed")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
