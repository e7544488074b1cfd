package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bridgeflow-backend/internal/pipeline"
	"bridgeflow-backend/internal/utils"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Config holds HTTP server configuration
type Config struct {
	Addr            string        `json:"addr"`
	ReadTimeout     time.Duration `json:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
	AllowedOrigins  []string      `json:"allowedOrigins"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:            utils.Env("HTTP_ADDR", ":8080"),
		ReadTimeout:     utils.EnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    utils.EnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  utils.EnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}, ","),
	}
}

// DashboardBuilder builds the dashboard of a request
type DashboardBuilder interface {
	Build(ctx context.Context, req pipeline.Request) (*pipeline.Dashboard, error)
}

// SnapshotHub serves WebSocket clients
type SnapshotHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

// Server represents the HTTP server
type Server struct {
	config  Config
	builder DashboardBuilder
	hub     SnapshotHub
	router  *mux.Router
	logger  *zap.Logger
	started time.Time
}

// NewServer creates a server and registers its routes
func NewServer(config Config, builder DashboardBuilder, hub SnapshotHub, logger *zap.Logger) *Server {
	s := &Server{
		config:  config,
		builder: builder,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  utils.ComponentLogger(logger, utils.ServerComponent),
		started: time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/charts/volume", s.handleVolume).Methods(http.MethodGet)
	api.HandleFunc("/charts/cumulative", s.handleCumulative).Methods(http.MethodGet)
	api.HandleFunc("/heatmap", s.handleHeatmap).Methods(http.MethodGet)
	api.HandleFunc("/totals", s.handleTotals).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Health check endpoint (for compatibility)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.hub.ServeWS)
}

// Handler returns the router wrapped with CORS
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.config.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return utils.WrapError(err, utils.ErrorTypeInternal, "LISTEN_FAILED", "HTTP server failed", utils.ServerComponent)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
