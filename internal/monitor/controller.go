package monitor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roomwatch/roomwatch-core/internal/agent"
)

// ScreenshotConfig bounds framebuffer captures requested through the
// controller.
type ScreenshotConfig struct {
	// Format is the preferred image format ("jpeg" or "png"); the other
	// format is tried as a fallback when an agent rejects the first.
	Format string

	Quality     int
	Compression int

	// MaxWidth and MaxHeight cap the requested dimensions. Zero means the
	// agent's native size.
	MaxWidth  int
	MaxHeight int
}

// Config holds controller settings.
type Config struct {
	Poll       PollConfig
	Screenshot ScreenshotConfig
}

// Controller owns the active room: its roster, one poller per device, and
// the demo broadcast state. Exactly one room is active at a time; selecting
// a new room fully drains the previous room's pollers first.
//
// Thread Safety:
//   - All methods are safe for concurrent use. The controller's lock is
//     never held across an agent network call.
type Controller struct {
	client AgentAPI
	cfg    Config
	logger Logger

	// baseCtx parents all poller lifetimes so Close can stop everything.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	// wakeFn sends a Wake-on-LAN packet; swappable in tests.
	wakeFn func(mac string) error

	mu      sync.Mutex
	room    *Room
	pollers map[string]*Poller
	demo    *DemoSession
}

// NewController creates a room controller that drives devices through client.
func NewController(client AgentAPI, cfg Config, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		client:     client,
		cfg:        cfg,
		logger:     logger,
		baseCtx:    ctx,
		baseCancel: cancel,
		wakeFn:     wake,
		pollers:    make(map[string]*Poller),
	}
}

// SelectRoom makes room the active room, monitored through devices.
//
// All pollers of the previously active room are stopped and joined before the
// new roster starts, so no stale worker can write into state that now
// represents a different room. An empty roster is a contract violation and
// fails with ErrEmptyRoom, leaving the previous room active.
//
// An active demo session survives the switch: its server keeps broadcasting
// until StopDemo, which reaches it through the recorded server host even
// though the device is no longer in the roster.
func (c *Controller) SelectRoom(room Room, devices []Device) error {
	if len(devices) == 0 {
		return ErrEmptyRoom
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.drainLocked()

	c.room = &room
	c.pollers = make(map[string]*Poller, len(devices))
	for _, device := range devices {
		poller := NewPoller(device, c.client, c.cfg.Poll, c.logger)
		c.pollers[device.Name] = poller
		poller.Start(c.baseCtx)
	}

	c.logger.Info("room selected", "room", room.Name, "devices", len(devices))
	return nil
}

// drainLocked stops and joins all active pollers. Caller holds c.mu.
// Stop flags are set for every poller before the first join so the workers
// wind down in parallel; total latency is bounded by one request timeout.
func (c *Controller) drainLocked() {
	for _, poller := range c.pollers {
		poller.Stop()
	}
	for _, poller := range c.pollers {
		poller.Wait()
	}
	c.pollers = make(map[string]*Poller)
}

// Close stops all pollers and joins them. The controller cannot be reused.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.baseCancel()
	c.drainLocked()
	c.room = nil
	c.demo = nil
}

// Room returns the active room, if any.
func (c *Controller) Room() (Room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return Room{}, false
	}
	return *c.room, true
}

// Demo returns the active demo session, if any.
func (c *Controller) Demo() (DemoSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.demo == nil {
		return DemoSession{}, false
	}
	return *c.demo, true
}

// ListDevices returns a snapshot of every device in the active room, sorted
// by name. It never blocks on polling and does not consume changed flags.
func (c *Controller) ListDevices() []DeviceSnapshot {
	pollers := c.sortedPollers()
	snapshots := make([]DeviceSnapshot, 0, len(pollers))
	for _, poller := range pollers {
		snapshots = append(snapshots, poller.Snapshot())
	}
	return snapshots
}

// ChangedDevices returns snapshots of the devices whose state changed since
// they were last reported, consuming their one-shot flags.
func (c *Controller) ChangedDevices() []DeviceSnapshot {
	var snapshots []DeviceSnapshot
	for _, poller := range c.sortedPollers() {
		if poller.HasChanged() {
			snapshots = append(snapshots, poller.Snapshot())
		}
	}
	return snapshots
}

// sortedPollers returns the active pollers ordered by device name.
func (c *Controller) sortedPollers() []*Poller {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.pollers))
	for name := range c.pollers {
		names = append(names, name)
	}
	sort.Strings(names)

	pollers := make([]*Poller, 0, len(names))
	for _, name := range names {
		pollers = append(pollers, c.pollers[name])
	}
	return pollers
}

// poller resolves a device name to its poller, enforcing the addressing
// precondition shared by all single-device commands.
func (c *Controller) poller(name string) (*Poller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room == nil {
		return nil, ErrNoActiveRoom
	}
	poller, ok := c.pollers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	if !poller.Device().ConfigurationOK() {
		return nil, fmt.Errorf("%w: %s has no addresses", ErrDeviceNotConfigured, name)
	}
	return poller, nil
}

// commandHost picks the address commands for this device should target: the
// poller's cached reachable address when it has one, the first roster
// address otherwise.
func commandHost(p *Poller) string {
	if host := p.ReachableAddress(); host != "" {
		return host
	}
	return p.Device().Addresses[0]
}

// LockScreen locks or unlocks the screen of the named device.
func (c *Controller) LockScreen(ctx context.Context, name string, locked bool) error {
	return c.setDeviceFeature(ctx, name, agent.FeatureScreenLock, locked)
}

// LockInput locks or unlocks keyboard and mouse of the named device.
func (c *Controller) LockInput(ctx context.Context, name string, locked bool) error {
	return c.setDeviceFeature(ctx, name, agent.FeatureInputLock, locked)
}

// PowerOff shuts the named device down.
func (c *Controller) PowerOff(ctx context.Context, name string) error {
	return c.setDeviceFeature(ctx, name, agent.FeaturePowerDown, true)
}

// Restart reboots the named device.
func (c *Controller) Restart(ctx context.Context, name string) error {
	return c.setDeviceFeature(ctx, name, agent.FeatureReboot, true)
}

// LogoutUser ends the interactive session on the named device.
func (c *Controller) LogoutUser(ctx context.Context, name string) error {
	return c.setDeviceFeature(ctx, name, agent.FeatureUserLogout, true)
}

// PowerOn starts the named device. A connected device gets the agent feature
// call; an unreachable one gets a Wake-on-LAN packet, since a powered-off
// machine has no agent to talk to.
func (c *Controller) PowerOn(ctx context.Context, name string) error {
	poller, err := c.poller(name)
	if err != nil {
		return err
	}

	if poller.Snapshot().Connectivity == ConnectivityConnected {
		return c.client.SetFeature(ctx, commandHost(poller), agent.FeaturePowerOn, true, nil)
	}

	mac := poller.Device().MACAddress
	if mac == "" {
		return fmt.Errorf("%w: %s has no MAC address for wake-on-lan", ErrDeviceNotConfigured, name)
	}
	return c.wakeFn(mac)
}

// setDeviceFeature is the single-device pass-through used by the lock, power
// and logout commands.
func (c *Controller) setDeviceFeature(ctx context.Context, name string, feature agent.Feature, active bool) error {
	poller, err := c.poller(name)
	if err != nil {
		return err
	}
	return c.client.SetFeature(ctx, commandHost(poller), feature, active, nil)
}

// StartDemo broadcasts the screen of the named server device to every other
// connected device in the room.
//
// The server feature is started first; if that fails no client is touched.
// Teacher devices among the clients always join windowed, regardless of the
// fullscreen argument. Per-client failures are logged and skipped so one
// broken device cannot block the broadcast for the rest of the class.
func (c *Controller) StartDemo(ctx context.Context, serverName string, fullscreen bool) error {
	server, err := c.poller(serverName)
	if err != nil {
		return err
	}

	token := uuid.NewString()
	serverHost := commandHost(server)

	session := &DemoSession{
		Token:      token,
		ServerName: serverName,
		ServerHost: serverHost,
		Fullscreen: fullscreen,
		StartedAt:  time.Now(),
	}

	c.mu.Lock()
	if c.demo != nil {
		c.mu.Unlock()
		return ErrDemoActive
	}
	// Reserve the session before the first agent call so a concurrent start
	// fails with ErrDemoActive instead of racing the fan-out.
	c.demo = session
	clients := make([]*Poller, 0, len(c.pollers))
	for name, poller := range c.pollers {
		if name != serverName {
			clients = append(clients, poller)
		}
	}
	c.mu.Unlock()

	err = c.client.SetFeature(ctx, serverHost, agent.FeatureDemoServer, true, map[string]string{
		agent.ArgDemoAccessToken: token,
	})
	if err != nil {
		c.mu.Lock()
		if c.demo == session {
			c.demo = nil
		}
		c.mu.Unlock()
		return fmt.Errorf("starting demo server on %s: %w", serverName, err)
	}

	var clientNames []string
	for _, client := range clients {
		snapshot := client.Snapshot()
		if snapshot.Connectivity != ConnectivityConnected {
			continue
		}

		// Fixed policy: the teacher's device never goes fullscreen, so the
		// teacher keeps control of their own machine during the broadcast.
		clientFullscreen := fullscreen
		if client.Device().IsTeacher || snapshot.TeacherLogin {
			clientFullscreen = false
		}

		err := c.client.SetFeature(ctx, commandHost(client), agent.FeatureDemoClient, true, map[string]string{
			agent.ArgDemoAccessToken: token,
			agent.ArgDemoServerHost:  serverHost,
			agent.ArgFullscreen:      strconv.FormatBool(clientFullscreen),
		})
		if err != nil {
			c.logger.Warn("demo client start failed",
				"device", client.Device().Name,
				"error", err,
			)
			continue
		}
		clientNames = append(clientNames, client.Device().Name)
	}

	// Demo() hands out copies of *c.demo under the lock, so the session's
	// fields are only written while holding it. A StopDemo that raced the
	// fan-out has already cleared the reservation; leave it cleared.
	c.mu.Lock()
	if c.demo == session {
		c.demo.ClientNames = clientNames
	}
	c.mu.Unlock()

	c.logger.Info("demo started",
		"server", serverName,
		"clients", len(clientNames),
		"fullscreen", fullscreen,
	)
	return nil
}

// StopDemo tears down the active demo broadcast.
//
// When no demo is active this is a silent no-op: no agent is contacted.
// Otherwise the client-stop call goes to every device in the room
// unconditionally (stopping an already-stopped client is not an error) and
// the server-stop call goes to the recorded demo server, even if a room
// switch has since removed it from the roster.
func (c *Controller) StopDemo(ctx context.Context) error {
	c.mu.Lock()
	demo := c.demo
	c.demo = nil
	clients := make([]*Poller, 0, len(c.pollers))
	for _, poller := range c.pollers {
		if poller.Device().ConfigurationOK() {
			clients = append(clients, poller)
		}
	}
	c.mu.Unlock()

	if demo == nil {
		return nil
	}

	for _, client := range clients {
		if err := c.client.SetFeature(ctx, commandHost(client), agent.FeatureDemoClient, false, nil); err != nil {
			c.logger.Warn("demo client stop failed",
				"device", client.Device().Name,
				"error", err,
			)
		}
	}

	if err := c.client.SetFeature(ctx, demo.ServerHost, agent.FeatureDemoServer, false, nil); err != nil {
		c.logger.Warn("demo server stop failed",
			"server", demo.ServerName,
			"error", err,
		)
	}

	c.logger.Info("demo stopped", "server", demo.ServerName)
	return nil
}

// Screenshot captures the named device's screen, trying the configured
// format first and the alternative format as a fallback on every known
// address. Returns ErrScreenshotUnavailable when nothing produced an image.
func (c *Controller) Screenshot(ctx context.Context, name string, width, height int) ([]byte, agent.ScreenshotFormat, error) {
	poller, err := c.poller(name)
	if err != nil {
		return nil, "", err
	}

	if limit := c.cfg.Screenshot.MaxWidth; limit > 0 && (width <= 0 || width > limit) {
		width = limit
	}
	if limit := c.cfg.Screenshot.MaxHeight; limit > 0 && (height <= 0 || height > limit) {
		height = limit
	}

	return poller.Screenshot(ctx, c.screenshotCandidates(width, height))
}

// screenshotCandidates builds the format fallback order for a capture.
func (c *Controller) screenshotCandidates(width, height int) []agent.ScreenshotRequest {
	primary := agent.FormatJPEG
	fallback := agent.FormatPNG
	if c.cfg.Screenshot.Format == string(agent.FormatPNG) {
		primary, fallback = fallback, primary
	}

	base := agent.ScreenshotRequest{
		Quality:     c.cfg.Screenshot.Quality,
		Compression: c.cfg.Screenshot.Compression,
		Width:       width,
		Height:      height,
	}

	first, second := base, base
	first.Format = primary
	second.Format = fallback
	return []agent.ScreenshotRequest{first, second}
}
