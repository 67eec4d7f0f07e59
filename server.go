package smartbus

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/theoremus-urban-solutions/smartbus/gtfs"
	"github.com/theoremus-urban-solutions/smartbus/utils"
	"github.com/theoremus-urban-solutions/smartbus/weather"
)

// DefaultSegmentLimit caps the backdrop edges returned by /graph.
const DefaultSegmentLimit = 2000

// WeatherSource yields the latest observation. *weather.Client satisfies it.
type WeatherSource interface {
	Fetch(ctx context.Context) (*weather.Observation, error)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWeather enables /weather.
func WithWeather(w WeatherSource) ServerOption {
	return func(s *Server) { s.weather = w }
}

// WithGraph enables /graph with a prebuilt stop graph.
func WithGraph(g *gtfs.StopGraph) ServerOption {
	return func(s *Server) { s.graph = g }
}

// WithCacheTTL reports in /api/health when the cached snapshot stops being reused.
func WithCacheTTL(ttl time.Duration) ServerOption {
	return func(s *Server) { s.cacheTTL = ttl }
}

// Server exposes the monitor over HTTP.
type Server struct {
	addr     string
	monitor  *Monitor
	weather  WeatherSource
	graph    *gtfs.StopGraph
	cacheTTL time.Duration
	e        *echo.Echo
}

// NewServer routes the dashboard endpoints for m on addr.
func NewServer(addr string, m *Monitor, opts ...ServerOption) *Server {
	s := &Server{addr: addr, monitor: m}
	for _, o := range opts {
		o(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/api/health"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(log.Fields{
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request failed")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.GET("/", s.handleRoot)
	e.GET("/buses", s.handleBuses)
	e.GET("/weather", s.handleWeather)
	e.GET("/graph", s.handleGraph)
	e.GET("/api/health", s.handleHealth)
	s.e = e
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.e }

// Run serves until ctx is canceled, then shuts down within 10s.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server shut down successfully")
	return nil
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "running"})
}

// Errors are reported with 200 and an error member; the dashboard shows the text as is.
func (s *Server) handleBuses(c echo.Context) error {
	return c.JSON(http.StatusOK, s.monitor.GetBuses(c.Request().Context()))
}

func (s *Server) handleWeather(c echo.Context) error {
	if s.weather == nil {
		return c.JSON(http.StatusOK, errorResponse{Error: "weather feed not configured"})
	}
	obs, err := s.weather.Fetch(c.Request().Context())
	if err != nil {
		log.WithError(err).Warn("weather fetch failed")
		return c.JSON(http.StatusOK, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, obs)
}

func (s *Server) handleGraph(c echo.Context) error {
	if s.graph == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "stop graph not loaded"})
	}
	limit := DefaultSegmentLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit: " + strconv.Quote(v)})
		}
		limit = n
	}
	return c.JSON(http.StatusOK, graphResponse{
		Nodes:    s.graph.NodeCount(),
		Edges:    s.graph.EdgeCount(),
		Segments: s.graph.Segments(limit),
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := healthResponse{Status: "ok", RoutePrefix: s.monitor.RoutePrefix()}
	if last, ok := s.monitor.LastCycle(); ok {
		resp.LatestGTFSRealtimeEpoch = utils.EpochSeconds(last.FetchedAt)
		resp.LastFetch = utils.Iso8601(last.FetchedAt)
		resp.FeedTimestamp = utils.Iso8601FromUnixSeconds(last.HeaderTimestamp)
		resp.ValidUntil = utils.ValidUntilFrom(last.FetchedAt, s.cacheTTL)
		resp.Vehicles = last.Vehicles
	}
	return c.JSON(http.StatusOK, resp)
}
