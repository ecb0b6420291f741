package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cpanel_exporter/internal/config"
	"cpanel_exporter/internal/exposition"
	"cpanel_exporter/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	promcollectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Scraper produces one snapshot per inbound metrics request.
type Scraper interface {
	Snapshot(ctx context.Context) (*metrics.Snapshot, error)
}

// Server is the HTTP surface: the panel metrics endpoint, a health
// check, and the exporter's own telemetry.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	httpServer *http.Server
	registry   *prometheus.Registry
	scraper    Scraper

	requestDuration prometheus.Histogram
	failedScrapes   prometheus.Counter
}

// Params are the dependencies for the server.
type Params struct {
	Config  *config.Config
	Logger  *zap.Logger
	Scraper Scraper
}

// New creates the server and wires its routes.
func New(params *Params) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		promcollectors.NewGoCollector(),
		promcollectors.NewProcessCollector(promcollectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		config:   params.Config,
		logger:   params.Logger,
		registry: registry,
		scraper:  params.Scraper,
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "cpanel_exporter_request_duration_seconds",
			Help: "Time spent answering /metrics requests.",
		}),
		failedScrapes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cpanel_exporter_failed_scrapes_total",
			Help: "Scrape requests that failed because account enumeration failed.",
		}),
	}
	registry.MustRegister(s.requestDuration, s.failedScrapes)

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)

	// Exporter self-telemetry, kept off the panel metrics endpoint.
	mux.Handle("/internal/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
	})

	s.httpServer = &http.Server{
		Addr:         params.Config.Server.Addr,
		Handler:      mux,
		ReadTimeout:  params.Config.Server.ReadTimeout,
		WriteTimeout: params.Config.Server.WriteTimeout,
	}
	return s
}

// Handler exposes the route mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap, err := s.scraper.Snapshot(r.Context())
	s.requestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.failedScrapes.Inc()
		s.logger.Error("scrape failed", zap.Error(err))
		http.Error(w, "scrape failed: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", exposition.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exposition.Encode(snap))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.httpServer.Addr),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server failed", zap.Error(err))
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// Lifecycle adapts the server to fx start/stop hooks.
type Lifecycle struct {
	server *Server
	logger *zap.Logger
}

func NewLifecycle(server *Server, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		server: server,
		logger: logger,
	}
}

func (l *Lifecycle) Start(ctx context.Context) error {
	go func() {
		if err := l.server.Start(); err != nil {
			l.logger.Error("server startup failed", zap.Error(err))
		}
	}()
	return nil
}

func (l *Lifecycle) Stop(ctx context.Context) error {
	return l.server.Stop(ctx)
}
