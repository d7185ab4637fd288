package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/interaction"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/types"
)

type createRequest struct {
	ID        string        `json:"id"`
	Target    *types.Target `json:"target"`
	KeepRatio *bool         `json:"keepRatio"`
	Crop      *types.Output `json:"crop"`
	MinWidth  float64       `json:"minWidth"`
	MinHeight float64       `json:"minHeight"`
	Natural   types.Size    `json:"natural"`
	Display   types.Size    `json:"display"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"ids": s.registry.IDs()})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: "invalid request body"})
		return
	}

	cfg := s.defaults
	cfg.ID = req.ID
	cfg.Target = req.Target
	cfg.Crop = req.Crop
	if req.KeepRatio != nil {
		cfg.KeepRatio = req.KeepRatio
	}
	if req.MinWidth > 0 {
		cfg.MinWidth = req.MinWidth
	}
	if req.MinHeight > 0 {
		cfg.MinHeight = req.MinHeight
	}

	c, created := s.registry.Create(cfg)
	if !created {
		s.writeState(w, http.StatusOK, c)
		return
	}
	if err := c.Load(req.Natural.W, req.Natural.H, req.Display.W, req.Display.H); err != nil {
		s.registry.Destroy(c.ID())
		writeError(w, err)
		return
	}
	s.writeState(w, http.StatusCreated, c)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeState(w, http.StatusOK, c)
}

func (s *Server) destroy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.registry.Destroy(id) {
		writeJSON(w, http.StatusNotFound, ErrorPayload{Error: "crop not found"})
		return
	}
	s.closeCrop(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setTarget(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req TargetPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: "invalid request body"})
		return
	}
	if err := c.SetTarget(req.Target); err != nil {
		writeError(w, err)
		return
	}
	s.writeState(w, http.StatusOK, c)
}

func (s *Server) resize(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req ResizePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: "invalid request body"})
		return
	}
	if err := c.Resize(req.Width, req.Height); err != nil {
		writeError(w, err)
		return
	}
	s.writeState(w, http.StatusOK, c)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*cropper.Crop, bool) {
	c, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorPayload{Error: "crop not found"})
	}
	return c, ok
}

func (s *Server) writeState(w http.ResponseWriter, status int, c *cropper.Crop) {
	st, err := stateOf(c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, st)
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ratio.ErrInvalidTarget),
		errors.Is(err, frame.ErrDegenerateImage),
		errors.Is(err, frame.ErrHiddenFrame):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cropper.ErrNotLoaded),
		errors.Is(err, interaction.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, cropper.ErrDestroyed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), ErrorPayload{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
