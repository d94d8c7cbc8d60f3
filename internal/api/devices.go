package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roomwatch/roomwatch-core/internal/agent"
	"github.com/roomwatch/roomwatch-core/internal/directory"
	"github.com/roomwatch/roomwatch-core/internal/monitor"
)

// deviceCommand is the shared signature of single-device controller commands.
type deviceCommand func(ctx context.Context, name string) error

// handleListDevices returns a state snapshot of every device in the active
// room. One-shot changed flags are left untouched.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	if _, ok := s.controller.Room(); !ok {
		writeNotFound(w, "no active room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.controller.ListDevices(),
	})
}

// handleChangedDevices returns snapshots of the devices whose state changed
// since the last call, consuming their one-shot flags. Polling consoles use
// this to repaint only what moved.
func (s *Server) handleChangedDevices(w http.ResponseWriter, _ *http.Request) {
	if _, ok := s.controller.Room(); !ok {
		writeNotFound(w, "no active room")
		return
	}
	changed := s.controller.ChangedDevices()
	if changed == nil {
		changed = []monitor.DeviceSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": changed,
	})
}

// createDeviceRequest is the body for POST /devices.
type createDeviceRequest struct {
	Name       string   `json:"name"`
	Room       string   `json:"room"`
	Addresses  []string `json:"addresses"`
	MACAddress string   `json:"mac_address"`
	IsTeacher  bool     `json:"is_teacher"`
}

// handleCreateDevice adds a device to a room's roster. Admin only. The
// change takes effect the next time the room is selected.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Room == "" {
		writeBadRequest(w, "name and room are required")
		return
	}

	room, err := s.directory.GetRoom(r.Context(), req.Room)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	device := directory.Device{
		Name:       req.Name,
		RoomDN:     room.DN,
		Addresses:  req.Addresses,
		MACAddress: req.MACAddress,
		IsTeacher:  req.IsTeacher,
	}
	if err := s.directory.CreateDevice(r.Context(), &device); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

// handleDeleteDevice removes a device from the roster. Admin only.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	name := chi.URLParam(r, "name")
	if err := s.directory.DeleteDevice(r.Context(), name); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lockRequest is the body for the screen-lock and input-lock endpoints.
type lockRequest struct {
	Locked bool `json:"locked"`
}

// handleScreenLock locks or unlocks the device's screen.
func (s *Server) handleScreenLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	name := chi.URLParam(r, "name")
	if err := s.controller.LockScreen(r.Context(), name, req.Locked); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "locked": req.Locked})
}

// handleInputLock locks or unlocks the device's keyboard and mouse.
func (s *Server) handleInputLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	name := chi.URLParam(r, "name")
	if err := s.controller.LockInput(r.Context(), name, req.Locked); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "locked": req.Locked})
}

// handlePowerOn starts the device, via the agent when it is reachable and
// Wake-on-LAN otherwise.
func (s *Server) handlePowerOn(w http.ResponseWriter, r *http.Request) {
	s.runDeviceCommand(w, r, s.controller.PowerOn)
}

// handlePowerOff shuts the device down.
func (s *Server) handlePowerOff(w http.ResponseWriter, r *http.Request) {
	s.runDeviceCommand(w, r, s.controller.PowerOff)
}

// handleRestart reboots the device.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.runDeviceCommand(w, r, s.controller.Restart)
}

// handleLogout ends the interactive user session on the device.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.runDeviceCommand(w, r, s.controller.LogoutUser)
}

// runDeviceCommand resolves the device name and runs a single-device command.
func (s *Server) runDeviceCommand(w http.ResponseWriter, r *http.Request, command deviceCommand) {
	name := chi.URLParam(r, "name")
	if err := command(r.Context(), name); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"name": name})
}

// handleScreenshot captures the device's screen and returns the raw image.
// Width and height query parameters are optional; out-of-bounds values are
// clamped to the configured maximums.
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	width := intQuery(r, "width")
	height := intQuery(r, "height")

	image, format, err := s.controller.Screenshot(r.Context(), name, width, height)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	contentType := "image/jpeg"
	if format == agent.FormatPNG {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(image)
}

// intQuery parses an integer query parameter, returning 0 when absent or
// malformed.
func intQuery(r *http.Request, key string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return value
}
