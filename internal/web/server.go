package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/KaramelBytes/recoveryplot/internal/chart"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds server-specific configuration.
type Config struct {
	Addr        string
	MaxUploadMB int
	MaxRows     int
	ChartWidth  int
	ChartHeight int
	// ChartFormat picks the inline chart image on the page. Both formats
	// stay downloadable.
	ChartFormat chart.Format
	Palette     chart.Palette
}

// upload is the raw input held for one tab. Results are never cached; every
// request re-runs the pipeline from these bytes.
type upload struct {
	ID        string
	Filename  string
	Data      []byte
	OrderName string
	OrderData []byte
	Uploaded  time.Time
}

type Server struct {
	cfg     Config
	logger  *zap.Logger
	router  chi.Router
	metrics *metrics

	mu      sync.Mutex
	uploads map[string]*upload
}

func NewServer(cfg Config, logger *zap.Logger) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	if cfg.ChartFormat == "" {
		cfg.ChartFormat = chart.PNG
	}
	if cfg.Palette.Mean == nil {
		cfg.Palette = chart.DefaultPalette()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: newMetrics(),
		uploads: map[string]*upload{},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cylinder", http.StatusFound)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	r.Route("/{pipeline}", func(r chi.Router) {
		r.Get("/", s.handlePage)
		r.Post("/upload", s.handleUpload)
		r.Post("/clear", s.handleClear)
		r.Get("/chart.png", s.handleChart(chart.PNG))
		r.Get("/chart.svg", s.handleChart(chart.SVG))
		r.Get("/summary.json", s.handleSummaryJSON)
		r.Get("/summary.xlsx", s.handleSummaryXLSX)
		r.Get("/summary.md", s.handleSummaryMarkdown)
	})
	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting server", zap.String("addr", s.cfg.Addr))

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown error", zap.Error(err))
		}
	}()

	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil // Graceful shutdown
	}
	return err
}

func (s *Server) current(pipeline string) *upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads[pipeline]
}

func (s *Server) store(pipeline string, u *upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		delete(s.uploads, pipeline)
		return
	}
	s.uploads[pipeline] = u
}
