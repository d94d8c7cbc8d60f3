package monitor

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/roomwatch/roomwatch-core/internal/agent"
)

// AgentAPI is the slice of the agent client the monitor needs. Defined here
// so tests can substitute a fake and the package stays decoupled from the
// HTTP implementation.
type AgentAPI interface {
	Ping(ctx context.Context, host string) error
	GetUserInfo(ctx context.Context, host string) (agent.UserInfo, error)
	GetFeatureStatus(ctx context.Context, host string, feature agent.Feature) (bool, error)
	SetFeature(ctx context.Context, host string, feature agent.Feature, active bool, arguments map[string]string) error
	GetScreenshot(ctx context.Context, host string, req agent.ScreenshotRequest) ([]byte, error)
	RemoveSession(ctx context.Context, host string)
}

// Logger defines the logging interface used by the monitor package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PollConfig holds poller timing settings.
type PollConfig struct {
	// Interval is the base delay between poll cycles.
	Interval time.Duration

	// Jitter is the maximum random addition to Interval per cycle, spreading
	// agent traffic so a full room does not poll in lockstep.
	Jitter time.Duration
}

// Default poller timings, applied for zero config values.
const (
	defaultPollInterval = 5 * time.Second
	defaultPollJitter   = 500 * time.Millisecond

	// sessionTeardownTimeout bounds the best-effort agent logout when a
	// poller shuts down.
	sessionTeardownTimeout = 2 * time.Second
)

// trackedFeatures are polled every cycle, in order.
var trackedFeatures = []agent.Feature{
	agent.FeatureScreenLock,
	agent.FeatureInputLock,
	agent.FeatureDemoServer,
	agent.FeatureDemoClient,
}

// Poller owns the live state of exactly one device. A single goroutine,
// started with Start, refreshes the state cells each cycle; any number of
// consumers may read snapshots concurrently.
//
// A cycle either lands completely or marks the device disconnected: partial
// readings are never committed, so consumers cannot observe a torn mix of
// fields from a failed refresh.
type Poller struct {
	device Device
	client AgentAPI
	cfg    PollConfig
	logger Logger

	connectivity Cell[Connectivity]
	userLogin    Cell[string]
	userFullName Cell[string]
	teacherLogin Cell[bool]
	screenLocked Cell[Flag]
	inputLocked  Cell[Flag]
	demoServer   Cell[Flag]
	demoClient   Cell[Flag]

	// reachable caches the address that last answered a ping. It is the
	// first candidate for the next cycle and for controller commands.
	reachableMu sync.Mutex
	reachable   string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller for device. It does not start polling.
func NewPoller(device Device, client AgentAPI, cfg PollConfig, logger Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.Jitter <= 0 {
		cfg.Jitter = defaultPollJitter
	}
	if logger == nil {
		logger = noopLogger{}
	}

	return &Poller{
		device: device,
		client: client,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Device returns the roster entry this poller owns.
func (p *Poller) Device() Device {
	return p.device
}

// Start launches the poll loop. The loop runs until Stop is called or ctx is
// cancelled.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

// Stop requests cooperative shutdown. It does not wait; callers that must
// know the worker has exited call Wait.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until the poll loop has exited.
func (p *Poller) Wait() {
	<-p.done
}

// run is the poll loop. It re-checks cancellation immediately after every
// blocking call so shutdown latency is bounded by one request timeout.
func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer p.teardown()

	p.logger.Debug("poller started", "device", p.device.Name)

	for {
		p.cycle(ctx)

		if ctx.Err() != nil {
			p.logger.Debug("poller stopped", "device", p.device.Name)
			return
		}

		select {
		case <-ctx.Done():
			p.logger.Debug("poller stopped", "device", p.device.Name)
			return
		case <-time.After(p.cfg.Interval + rand.N(p.cfg.Jitter)):
		}
	}
}

// teardown drops the agent session for the last reachable address.
func (p *Poller) teardown() {
	host := p.ReachableAddress()
	if host == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionTeardownTimeout)
	defer cancel()
	p.client.RemoveSession(ctx, host)
}

// cycle refreshes all state cells once. On any failure the device is marked
// disconnected and the remaining readings of this cycle are discarded.
func (p *Poller) cycle(ctx context.Context) {
	host := p.pickHost(ctx)
	if host == "" {
		p.markDisconnected()
		return
	}

	info, err := p.client.GetUserInfo(ctx, host)
	if err != nil {
		p.logger.Debug("user info query failed", "device", p.device.Name, "host", host, "error", err)
		p.markDisconnected()
		return
	}

	features := make(map[agent.Feature]bool, len(trackedFeatures))
	for _, feature := range trackedFeatures {
		active, err := p.client.GetFeatureStatus(ctx, host, feature)
		if err != nil {
			p.logger.Debug("feature query failed",
				"device", p.device.Name,
				"host", host,
				"feature", feature,
				"error", err,
			)
			p.markDisconnected()
			return
		}
		features[feature] = active
	}

	// All readings succeeded; commit the batch.
	p.connectivity.Set(ConnectivityConnected)
	p.userLogin.Set(info.Login)
	p.userFullName.Set(info.FullName)
	p.teacherLogin.Set(info.TeacherLogin)
	p.screenLocked.Set(flagOf(features[agent.FeatureScreenLock]))
	p.inputLocked.Set(flagOf(features[agent.FeatureInputLock]))
	p.demoServer.Set(flagOf(features[agent.FeatureDemoServer]))
	p.demoClient.Set(flagOf(features[agent.FeatureDemoClient]))
}

// markDisconnected records a failed cycle. Only connectivity flips; the other
// cells keep the values from the last successful cycle so consumers never see
// a half-updated device.
func (p *Poller) markDisconnected() {
	p.connectivity.Set(ConnectivityDisconnected)
	p.setReachable("")
}

// pickHost returns the first device address that answers a ping, preferring
// the address that worked last cycle. Returns "" when none respond.
func (p *Poller) pickHost(ctx context.Context) string {
	for _, host := range p.candidateHosts() {
		if err := p.client.Ping(ctx, host); err != nil {
			if ctx.Err() != nil {
				return ""
			}
			continue
		}
		p.setReachable(host)
		return host
	}
	return ""
}

// candidateHosts lists the device's addresses with the cached reachable
// address moved to the front.
func (p *Poller) candidateHosts() []string {
	cached := p.ReachableAddress()
	if cached == "" {
		return p.device.Addresses
	}

	hosts := make([]string, 0, len(p.device.Addresses)+1)
	hosts = append(hosts, cached)
	for _, host := range p.device.Addresses {
		if host != cached {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// ReachableAddress returns the address that last answered a ping, or "".
func (p *Poller) ReachableAddress() string {
	p.reachableMu.Lock()
	defer p.reachableMu.Unlock()
	return p.reachable
}

func (p *Poller) setReachable(host string) {
	p.reachableMu.Lock()
	p.reachable = host
	p.reachableMu.Unlock()
}

// Snapshot returns the current state cells plus identity fields. It does not
// touch the changed flags.
func (p *Poller) Snapshot() DeviceSnapshot {
	snap := DeviceSnapshot{
		Name:             p.device.Name,
		Addresses:        p.device.Addresses,
		MACAddress:       p.device.MACAddress,
		IsTeacher:        p.device.IsTeacher,
		Connectivity:     ConnectivityUnknown,
		ReachableAddress: p.ReachableAddress(),
		ScreenLocked:     FlagUnknown,
		InputLocked:      FlagUnknown,
		DemoServer:       FlagUnknown,
		DemoClient:       FlagUnknown,
	}

	if v, ok := p.connectivity.Get(); ok {
		snap.Connectivity = v
	}
	snap.UserLogin = p.userLogin.Value()
	snap.UserFullName = p.userFullName.Value()
	snap.TeacherLogin = p.teacherLogin.Value()
	if v, ok := p.screenLocked.Get(); ok {
		snap.ScreenLocked = v
	}
	if v, ok := p.inputLocked.Get(); ok {
		snap.InputLocked = v
	}
	if v, ok := p.demoServer.Get(); ok {
		snap.DemoServer = v
	}
	if v, ok := p.demoClient.Get(); ok {
		snap.DemoClient = v
	}
	return snap
}

// HasChanged reports whether any state cell changed since the last call, and
// consumes all the one-shot flags. A device is therefore reported exactly
// once per distinct change.
func (p *Poller) HasChanged() bool {
	changed := p.connectivity.Consume()
	changed = p.userLogin.Consume() || changed
	changed = p.userFullName.Consume() || changed
	changed = p.teacherLogin.Consume() || changed
	changed = p.screenLocked.Consume() || changed
	changed = p.inputLocked.Consume() || changed
	changed = p.demoServer.Consume() || changed
	changed = p.demoClient.Consume() || changed
	return changed
}

// Screenshot tries each known address, and for each address every requested
// format, until one capture succeeds. It returns ErrScreenshotUnavailable
// when everything is exhausted; individual failures are not propagated.
func (p *Poller) Screenshot(ctx context.Context, requests []agent.ScreenshotRequest) ([]byte, agent.ScreenshotFormat, error) {
	for _, host := range p.candidateHosts() {
		for _, req := range requests {
			image, err := p.client.GetScreenshot(ctx, host, req)
			if err == nil {
				return image, req.Format, nil
			}
			if ctx.Err() != nil {
				return nil, "", ErrScreenshotUnavailable
			}

			p.logger.Debug("screenshot attempt failed",
				"device", p.device.Name,
				"host", host,
				"format", req.Format,
				"error", err,
			)

			// A transport failure rules out the whole address; move on to
			// the next one instead of retrying formats against it.
			if agent.IsConnectionError(err) {
				break
			}
		}
	}
	return nil, "", ErrScreenshotUnavailable
}
