package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/hudscan/internal/pipeline"
	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	catalog    *region.Catalog
	extractor  pipeline.FieldExtractor
	closer     io.Closer
	workers    int
	fps        float64
	framesRoot string
	corsOrigin string
	logger     *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string

	// Catalog defaults to the built-in region layout.
	Catalog   *region.Catalog
	Extractor pipeline.FieldExtractor
	// Closer is released by Close, typically the recognizer behind Extractor.
	Closer io.Closer

	// Workers is used when a request does not ask for a pool size.
	Workers int
	// FPS derives frame offsets when a request does not carry one.
	FPS float64
	// FramesRoot confines requested directories; empty allows any path.
	FramesRoot string

	Logger *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Commit  string `json:"commit,omitempty"`
	Time    string `json:"time"`
}

type RegionsResponse struct {
	Regions []region.Spec `json:"regions"`
	Count   int           `json:"count"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a new extraction server instance.
func NewServer(config Config) (*Server, error) {
	if config.Extractor == nil {
		return nil, errors.New("server requires a field extractor")
	}
	catalog := config.Catalog
	if catalog == nil {
		catalog = region.DefaultCatalog()
	}
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	corsOrigin := config.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		catalog:    catalog,
		extractor:  config.Extractor,
		closer:     config.Closer,
		workers:    workers,
		fps:        config.FPS,
		framesRoot: config.FramesRoot,
		corsOrigin: corsOrigin,
		logger:     logger,
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.route("health", s.healthHandler))
	mux.HandleFunc("/regions", s.route("regions", s.regionsHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws/extract", s.extractWebSocketHandler)
}
