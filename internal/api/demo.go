package api

import (
	"encoding/json"
	"net/http"
)

// startDemoRequest is the body for POST /demo.
type startDemoRequest struct {
	Server     string `json:"server"`
	Fullscreen bool   `json:"fullscreen"`
}

// handleGetDemo returns the active demo session.
func (s *Server) handleGetDemo(w http.ResponseWriter, _ *http.Request) {
	demo, ok := s.controller.Demo()
	if !ok {
		writeNotFound(w, "no active demo")
		return
	}
	// The access token stays between the agents; consoles have no use for it.
	demo.Token = ""
	writeJSON(w, http.StatusOK, demo)
}

// handleStartDemo broadcasts the named server device's screen to the room.
func (s *Server) handleStartDemo(w http.ResponseWriter, r *http.Request) {
	var req startDemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Server == "" {
		writeBadRequest(w, "server is required")
		return
	}

	if err := s.controller.StartDemo(r.Context(), req.Server, req.Fullscreen); err != nil {
		writeDomainError(w, err)
		return
	}

	demo, _ := s.controller.Demo()
	demo.Token = ""
	s.publishDemoEvent("started", demo)
	writeJSON(w, http.StatusCreated, demo)
}

// handleStopDemo tears down the active demo broadcast. Stopping when no demo
// is active succeeds without contacting any agent.
func (s *Server) handleStopDemo(w http.ResponseWriter, r *http.Request) {
	demo, active := s.controller.Demo()

	if err := s.controller.StopDemo(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}

	if active {
		demo.Token = ""
		s.publishDemoEvent("stopped", demo)
	}
	w.WriteHeader(http.StatusNoContent)
}
