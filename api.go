package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyguts/screenrelay/store"
)

// Version is the current server version. Set at build time via -ldflags.
var Version = "0.1.0-dev"

// APIServer provides read-only HTTP endpoints for health checking,
// roster inspection, and Prometheus scraping. It carries no authority
// over the live protocol — it only reads Hub state and the optional
// diagnostic Store (§6 side-channel, §9 Observability).
type APIServer struct {
	hub            *Hub
	store          *store.Store // optional, may be nil
	echo           *echo.Echo
	tlsFingerprint string // empty when -tls is off
}

// NewAPIServer constructs an APIServer and registers all routes.
// reg is the Prometheus registerer whose collectors back GET /metrics.
// tlsFingerprint is the SHA-256 fingerprint of the WS listener's
// self-signed certificate when -tls is set, empty otherwise; it is
// served back at GET /api/tls-fingerprint so a client can pin it on
// first connect (trust-on-first-use, §1 Non-goals).
func NewAPIServer(hub *Hub, st *store.Store, reg prometheus.Gatherer, tlsFingerprint string) *APIServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[api] %s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &APIServer{hub: hub, store: st, echo: e, tlsFingerprint: tlsFingerprint}
	s.registerRoutes(reg)
	return s
}

func (s *APIServer) registerRoutes(reg prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/version", s.handleVersion)
	s.echo.GET("/api/roster", s.handleRoster)
	s.echo.GET("/api/rooms", s.handleRooms)
	s.echo.GET("/api/audit", s.handleAuditLog)
	s.echo.GET("/api/tls-fingerprint", s.handleTLSFingerprint)
	if reg != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
}

// Run starts the Echo HTTP server on addr and blocks until ctx is cancelled.
func (s *APIServer) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		log.Printf("[api] shutdown: %v", err)
	}
}

// VersionResponse is the payload for GET /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}

func (s *APIServer) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, VersionResponse{Version: Version})
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	OnlineUsers int    `json:"online_users"`
	ActiveRooms int    `json:"active_rooms"`
}

func (s *APIServer) handleHealth(c echo.Context) error {
	rooms, _, _ := s.hub.Rooms.Stats()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		OnlineUsers: len(s.hub.Presence.Roster()),
		ActiveRooms: rooms,
	})
}

// handleRoster returns the live in-memory roster. This is the
// authoritative view — unlike GET /api/audit it is never a stale
// snapshot (§3 OnlineRoster).
func (s *APIServer) handleRoster(c echo.Context) error {
	roster := s.hub.Presence.Roster()
	if roster == nil {
		roster = []RosterEntry{}
	}
	return c.JSON(http.StatusOK, roster)
}

func (s *APIServer) handleRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, s.hub.Rooms.Snapshot())
}

// handleAuditLog returns recent diagnostic events from the optional
// Store. Returns 404 when no store is configured (§6 "implementations
// MAY omit persistence").
func (s *APIServer) handleAuditLog(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit log persistence is disabled")
	}
	action := c.QueryParam("action")
	limit := 100
	entries, err := s.store.RecentAuditEvents(action, limit)
	if err != nil && err != sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// TLSFingerprintResponse is the payload for GET /api/tls-fingerprint.
type TLSFingerprintResponse struct {
	Enabled     bool   `json:"enabled"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// handleTLSFingerprint lets a client fetch the WS listener's current
// certificate fingerprint out-of-band (over this read-only API, not the
// WS handshake itself) so it can pin it on first connect and detect a
// change on every later one. Enabled is false when -tls is off.
func (s *APIServer) handleTLSFingerprint(c echo.Context) error {
	return c.JSON(http.StatusOK, TLSFingerprintResponse{
		Enabled:     s.tlsFingerprint != "",
		Fingerprint: s.tlsFingerprint,
	})
}

// jsonErrorHandler ensures all error responses have a consistent JSON body:
//
//	{"error": "message"}
//
// This replaces Echo's default handler which varies between text and JSON.
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code) //nolint:errcheck
		} else {
			c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
		}
	}
}
