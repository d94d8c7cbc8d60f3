package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roomwatch/roomwatch-core/internal/auth"
	"github.com/roomwatch/roomwatch-core/internal/directory"
	"github.com/roomwatch/roomwatch-core/internal/monitor"
)

// handleListRooms returns every room in the directory.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.directory.ListRooms(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// createRoomRequest is the body for POST /rooms.
type createRoomRequest struct {
	DN   string `json:"dn"`
	Name string `json:"name"`
}

// handleCreateRoom adds a room to the directory. Admin only.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DN == "" || req.Name == "" {
		writeBadRequest(w, "dn and name are required")
		return
	}

	room := directory.Room{DN: req.DN, Name: req.Name}
	if err := s.directory.CreateRoom(r.Context(), &room); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// handleDeleteRoom removes a room and its devices from the directory.
// Admin only. The active room keeps running until the next selection.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	name := chi.URLParam(r, "name")
	room, err := s.directory.GetRoom(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.directory.DeleteRoom(r.Context(), room.DN); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSelectRoom resolves the named room's roster from the directory and
// makes it the active room. The previous room's pollers are fully drained
// before the new roster starts.
func (s *Server) handleSelectRoom(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	room, err := s.directory.GetRoom(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	entries, err := s.directory.GetDevices(r.Context(), room.DN)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	devices := make([]monitor.Device, 0, len(entries))
	for _, entry := range entries {
		devices = append(devices, monitor.Device{
			Name:       entry.Name,
			Addresses:  entry.Addresses,
			MACAddress: entry.MACAddress,
			IsTeacher:  entry.IsTeacher,
		})
	}

	target := monitor.Room{Name: room.Name, DN: room.DN}
	if err := s.controller.SelectRoom(target, devices); err != nil {
		writeDomainError(w, err)
		return
	}

	s.publishRoomSelected(target, len(devices))

	writeJSON(w, http.StatusOK, map[string]any{
		"room":    target,
		"devices": len(devices),
	})
}

// handleActiveRoom returns the currently monitored room.
func (s *Server) handleActiveRoom(w http.ResponseWriter, _ *http.Request) {
	room, ok := s.controller.Room()
	if !ok {
		writeNotFound(w, "no active room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// requireAdmin rejects the request unless the caller holds the admin role.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := claimsFrom(r.Context())
	if !ok || claims.Role != auth.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "admin role required")
		return false
	}
	return true
}
