// Package server exposes crop widgets over HTTP. REST endpoints create,
// inspect, retarget, resize and destroy crops; a websocket per crop carries
// pointer, wheel and layout events in and widget events out.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/config"
	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/messages"
)

// Server serves the crops of one registry.
type Server struct {
	registry *imagecropper.Registry
	cfg      config.ServerConfig
	defaults cropper.Config
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]map[*conn]struct{}
}

// New creates a server. defaults seeds the configuration of created crops.
func New(reg *imagecropper.Registry, cfg config.ServerConfig, defaults cropper.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: reg,
		cfg:      cfg,
		defaults: defaults,
		logger:   logger,
		conns:    make(map[string]map[*conn]struct{}),
	}
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverPanics)
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.health).Methods("GET")

	r.HandleFunc("/crops", s.list).Methods("GET")
	r.HandleFunc("/crops", s.create).Methods("POST")
	r.HandleFunc("/crops/{id}", s.get).Methods("GET")
	r.HandleFunc("/crops/{id}", s.destroy).Methods("DELETE")
	r.HandleFunc("/crops/{id}/target", s.setTarget).Methods("PUT")
	r.HandleFunc("/crops/{id}/size", s.resize).Methods("PUT")

	r.HandleFunc("/ws/crops/{id}", s.serveWS)
	return r
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	s.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) track(id string, c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[id] == nil {
		s.conns[id] = make(map[*conn]struct{})
	}
	s.conns[id][c] = struct{}{}
}

func (s *Server) untrack(id string, c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns[id], c)
	if len(s.conns[id]) == 0 {
		delete(s.conns, id)
	}
}

// closeCrop disconnects every websocket of the crop.
func (s *Server) closeCrop(id string) {
	s.mu.Lock()
	var cs []*conn
	for c := range s.conns[id] {
		cs = append(cs, c)
	}
	s.mu.Unlock()

	for _, c := range cs {
		c.ws.Close(websocket.StatusGoingAway, "crop destroyed")
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.closeCrop(id)
	}
}

// stateOf snapshots the crop.
func stateOf(c *cropper.Crop) (State, error) {
	data, err := c.Data()
	if err != nil {
		return State{}, err
	}
	return State{
		ID:       c.ID(),
		Data:     data,
		Visual:   c.Visual(),
		Frame:    c.Frame(),
		Policy:   c.Policy(),
		Dragging: c.Dragging(),
		Handles:  c.Handles(),
		Messages: messagesOf(c),
	}, nil
}

func messagesOf(c *cropper.Crop) []messages.Message {
	if b, ok := c.Messenger().(*messages.Board); ok {
		return b.Messages()
	}
	return []messages.Message{}
}
