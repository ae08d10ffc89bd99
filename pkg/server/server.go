// Package server provides the HTTP serving wrapper around the activation
// engine. Concurrent requests share one catalog store; each request
// classifies against the single snapshot it captures at entry.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/rulekit/rulekit/pkg/catalog"
	"github.com/rulekit/rulekit/pkg/engine"
	"github.com/rulekit/rulekit/pkg/logger"
	"github.com/rulekit/rulekit/pkg/signals"
)

// Config holds the configuration for the HTTP server
type Config struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Server exposes the activation engine over HTTP
type Server struct {
	router *mux.Router
	store  *catalog.Store
	policy engine.PolicyConfig
	config *Config
	server *http.Server
}

// NewServer creates a new activation server over the given catalog store
func NewServer(store *catalog.Store, policy engine.PolicyConfig, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router: mux.NewRouter(),
		store:  store,
		policy: policy,
		config: config,
	}
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/select", s.handleSelect).Methods(http.MethodPost)
	s.router.HandleFunc("/api/catalog", s.handleCatalog).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.G(ctx).WithField("addr", addr).Info("Activation server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var wc signals.WorkContext
	if err := json.NewDecoder(r.Body).Decode(&wc); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid work context"))
		return
	}

	if wc.Scope != "" {
		scope, err := signals.ParseTaskScope(string(wc.Scope))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		wc.Scope = scope
	}

	// One snapshot per request; a catalog reload mid-flight never mixes views
	idx := s.store.Snapshot()
	selection := engine.Classify(r.Context(), idx, wc, s.policy, time.Now())

	s.writeJSON(w, http.StatusOK, selection)
}

// catalogEntry is the wire form of a content unit in catalog listings
type catalogEntry struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Lifecycle   string `json:"lifecycle"`
	Priority    int    `json:"priority"`
	Description string `json:"description"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	idx := s.store.Snapshot()

	entries := make([]catalogEntry, 0, idx.Len())
	for _, unit := range idx.Units() {
		entries = append(entries, catalogEntry{
			ID:          unit.ID,
			Category:    string(unit.Category),
			Lifecycle:   string(unit.Lifecycle),
			Priority:    unit.Priority,
			Description: unit.Description,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"units": entries,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.G(context.Background()).WithError(err).Warn("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
