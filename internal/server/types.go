package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ketutoka/printlabel/internal/label"
	"github.com/ketutoka/printlabel/internal/layout"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Renderer is the part of label.Composer the server uses.
type Renderer interface {
	Compose(ctx context.Context, req label.Request) (*label.RenderedLabel, error)
	Layout(req label.Request) (*label.Rendering, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pool        *rendererPool
	outputDir   string
	corsOrigin  string
	maxBody     int64
	timeout     time.Duration
	rateLimiter *RateLimiter
	version     string
	logger      *slog.Logger
}

// Config holds server configuration.
type Config struct {
	CORSOrigin string
	MaxBodyKB  int64
	TimeoutSec int
	// OutputDir is where rendered files are written and served from. It
	// must match the directory of the renderers' sink.
	OutputDir string
	// Composers is the number of renderers in the pool.
	Composers   int
	NewRenderer func() Renderer
	// RateLimiter is optional.
	RateLimiter *RateLimiter
	Version     string
	Logger      *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ProfilesResponse struct {
	Profiles []layout.PaperProfile `json:"profiles"`
	Aliases  []string              `json:"aliases"`
}

type LabelInfo struct {
	ID      string `json:"id"`
	File    string `json:"file"`
	URL     string `json:"url"`
	Format  string `json:"format"`
	Profile string `json:"profile"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type RenderResponse struct {
	Success bool       `json:"success"`
	Label   *LabelInfo `json:"label,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// NewServer creates a label server. NewRenderer is required.
func NewServer(config Config) (*Server, error) {
	if config.NewRenderer == nil {
		return nil, errors.New("server: NewRenderer is required")
	}
	if config.OutputDir == "" {
		return nil, errors.New("server: OutputDir is required")
	}
	if config.Composers <= 0 {
		config.Composers = 1
	}
	if config.MaxBodyKB <= 0 {
		config.MaxBodyKB = 64
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = 30
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Server{
		pool:        newRendererPool(config.Composers, config.NewRenderer),
		outputDir:   config.OutputDir,
		corsOrigin:  config.CORSOrigin,
		maxBody:     config.MaxBodyKB * 1024,
		timeout:     time.Duration(config.TimeoutSec) * time.Second,
		rateLimiter: config.RateLimiter,
		version:     config.Version,
		logger:      config.Logger,
	}, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware("/health", s.healthHandler))
	mux.HandleFunc("/profiles", s.corsMiddleware("/profiles", s.profilesHandler))
	mux.HandleFunc("/labels/render", s.corsMiddleware("/labels/render", s.rateLimitMiddleware(s.renderHandler)))
	mux.HandleFunc("/labels/preview", s.corsMiddleware("/labels/preview", s.rateLimitMiddleware(s.previewHandler)))
	mux.HandleFunc("/labels/", s.corsMiddleware("/labels/{file}", s.downloadHandler))
	mux.HandleFunc("/ws/preview", s.previewWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
