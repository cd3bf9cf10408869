// Package web hosts the canvas over HTTP: the JSON API, the automation queue
// and the WebSocket streams browsers render from.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/automation"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/backend"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/charmbracelet/log"
)

// Package-level logger
var logger *log.Logger

func init() {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "web",
	})
}

// SetLogLevel sets the logging level for the web package.
func SetLogLevel(level log.Level) {
	logger.SetLevel(level)
}

// Config holds the web server configuration.
type Config struct {
	Host           string   // Host to bind to (default: "localhost")
	Port           string   // Port to listen on (default: "5174")
	MaxConnections int      // Maximum concurrent WebSockets (0 = unlimited)
	AllowOrigins   []string // Allowed origins for CORS (empty = all)
	Debug          bool     // Enable debug logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Host: "localhost",
		Port: "5174",
	}
}

// Server serves one canvas store.
type Server struct {
	config     Config
	store      *canvas.Store
	queue      *automation.Queue
	keymap     canvas.Keymap
	backend    *backend.Client
	links      *backend.Manager
	httpServer *http.Server
	connCount  atomic.Int32
}

// Option configures a Server.
type Option func(*Server)

// WithQueue serves q under /api/canvas/{spawn,pending,ack,health}.
func WithQueue(q *automation.Queue) Option {
	return func(s *Server) { s.queue = q }
}

// WithKeymap resolves keys sent over /ws.
func WithKeymap(k canvas.Keymap) Option {
	return func(s *Server) { s.keymap = k }
}

// WithBackend enables the profile list and the terminal relay.
func WithBackend(client *backend.Client, links *backend.Manager) Option {
	return func(s *Server) {
		s.backend = client
		s.links = links
	}
}

// NewServer creates a server for store.
func NewServer(config Config, store *canvas.Store, opts ...Option) *Server {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == "" {
		config.Port = "5174"
	}

	if config.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	s := &Server{
		config: config,
		store:  store,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = automation.NewQueue()
	}

	logger.Info("creating web server",
		"host", config.Host,
		"port", config.Port,
		"max_connections", config.MaxConnections,
		"backend", s.backend != nil,
	)
	return s
}

// Queue returns the automation queue served by s.
func (s *Server) Queue() *automation.Queue { return s.queue }

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, s.config.Port)
}

// Handler returns the routes of the server wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	automation.NewHandler(s.queue).RegisterRoutes(mux)

	mux.HandleFunc("GET /api/canvas/state", s.handleState)
	mux.HandleFunc("POST /api/canvas/terminals", s.handleSpawnTerminal)
	mux.HandleFunc("PATCH /api/canvas/terminals/{id}", s.handleUpdateTerminal)
	mux.HandleFunc("DELETE /api/canvas/terminals/{id}", s.handleRemoveTerminal)
	mux.HandleFunc("POST /api/canvas/files", s.handleDropFiles)
	mux.HandleFunc("PATCH /api/canvas/files/{id}", s.handleUpdateFile)
	mux.HandleFunc("DELETE /api/canvas/files/{id}", s.handleRemoveFile)
	mux.HandleFunc("GET /api/canvas/files/{id}/render", s.handleRenderFile)
	mux.HandleFunc("GET /api/canvas/layouts", s.handleListLayouts)
	mux.HandleFunc("POST /api/canvas/layouts", s.handleSaveLayout)
	mux.HandleFunc("POST /api/canvas/layouts/{id}/load", s.handleLoadLayout)
	mux.HandleFunc("DELETE /api/canvas/layouts/{id}", s.handleDeleteLayout)
	mux.HandleFunc("POST /api/canvas/viewport/reset", s.handleResetViewport)
	mux.HandleFunc("POST /api/canvas/viewport/zoom", s.handleZoom)
	mux.HandleFunc("GET /api/canvas/profiles", s.handleProfiles)

	mux.HandleFunc("GET /ws", s.handleEvents)
	mux.HandleFunc("GET /ws/terminals/{id}", s.handleTerminal)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return s.cors(mux)
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	addr := s.Addr()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting",
			"addr", addr,
			"url", fmt.Sprintf("http://%s", addr),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// cors answers preflight requests and tags responses for allowed origins.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			if len(s.config.AllowOrigins) == 0 {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.config.AllowOrigins) == 0 {
		return true
	}
	return slices.Contains(s.config.AllowOrigins, origin) || slices.Contains(s.config.AllowOrigins, "*")
}

// checkConnectionLimit returns true if connection is allowed.
func (s *Server) checkConnectionLimit() bool {
	if s.config.MaxConnections <= 0 {
		return true
	}
	newCount := s.connCount.Add(1)
	if int(newCount) > s.config.MaxConnections {
		s.connCount.Add(-1)
		logger.Warn("connection limit reached",
			"current", newCount-1,
			"max", s.config.MaxConnections,
		)
		return false
	}
	logger.Debug("connection accepted", "count", newCount)
	return true
}

func (s *Server) releaseConnection() {
	if s.config.MaxConnections <= 0 {
		return
	}
	newCount := s.connCount.Add(-1)
	logger.Debug("connection released", "count", newCount)
}
