// Package adminhttp exposes read-only HTTP introspection over the running
// chat server: health, the current roster, and a few counters. It never
// mutates chat state — every write path (kick, mute, rename, ...) stays on
// the UDP wire protocol, per spec.md's Non-goals. Grounded on the teacher's
// api.go: an echo.Echo wrapped in a small server type, request logging via
// middleware.RequestLoggerWithConfig routed through log.Printf, a JSON error
// handler, and a context-cancelable Run with graceful Shutdown.
package adminhttp

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ichat/internal/audit"
	"ichat/internal/roster"
)

// Server is the read-only admin HTTP surface.
type Server struct {
	roster *roster.Roster
	audit  *audit.Log // optional; nil disables /api/audit
	echo   *echo.Echo

	startedAt time.Time
}

// New constructs a Server and registers its routes. auditLog may be nil.
func New(r *roster.Roster, auditLog *audit.Log) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[adminhttp] %s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		}
		_ = c.JSON(code, map[string]string{"error": msg})
	}

	s := &Server{roster: r, audit: auditLog, echo: e, startedAt: time.Now()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/api/roster", s.handleRoster)
	s.echo.GET("/api/metrics", s.handleMetrics)
	if s.audit != nil {
		s.echo.GET("/api/audit", s.handleAudit)
	}
}

// Run starts the HTTP server on addr and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[adminhttp] server error: %v", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		log.Printf("[adminhttp] shutdown: %v", err)
	}
}

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Clients: s.roster.Count(),
		Uptime:  time.Since(s.startedAt).String(),
	})
}

// EntryResponse is one element of the GET /api/roster array. It
// deliberately omits the mute set and the raw *net.UDPAddr — the former is
// per-client private state, the latter is an internal transport detail.
type EntryResponse struct {
	Name       string `json:"name"`
	Admin      bool   `json:"admin"`
	LastActive string `json:"last_active"`
}

// RosterResponse is the payload for GET /api/roster.
type RosterResponse struct {
	Count   int             `json:"count"`
	Entries []EntryResponse `json:"entries"`
}

func (s *Server) handleRoster(c echo.Context) error {
	snaps := s.roster.All()
	entries := make([]EntryResponse, 0, len(snaps))
	for _, snap := range snaps {
		entries = append(entries, EntryResponse{
			Name:       snap.Name,
			Admin:      snap.Admin,
			LastActive: snap.LastActive.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, RosterResponse{Count: len(entries), Entries: entries})
}

// MetricsResponse is the payload for GET /api/metrics.
type MetricsResponse struct {
	Clients int    `json:"clients"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, MetricsResponse{
		Clients: s.roster.Count(),
		Uptime:  time.Since(s.startedAt).String(),
	})
}

// AuditEntryResponse is one element of the GET /api/audit array.
type AuditEntryResponse struct {
	ActorName string `json:"actor_name"`
	Target    string `json:"target"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleAudit(c echo.Context) error {
	entries, err := s.audit.Recent(100)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ActorName: e.ActorName,
			Target:    e.Target,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, out)
}
