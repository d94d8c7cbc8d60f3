package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/roomwatch/roomwatch-core/internal/agent"
	"github.com/roomwatch/roomwatch-core/internal/auth"
	"github.com/roomwatch/roomwatch-core/internal/directory"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/config"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/logging"
	"github.com/roomwatch/roomwatch-core/internal/monitor"
)

const testJWTSecret = "test-secret-0123456789abcdef0123"

// fakeDirectory is an in-memory directory.Repository.
type fakeDirectory struct {
	mu      sync.Mutex
	rooms   map[string]directory.Room   // by name
	devices map[string]directory.Device // by name
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		rooms:   make(map[string]directory.Room),
		devices: make(map[string]directory.Device),
	}
}

func (f *fakeDirectory) GetRoom(_ context.Context, name string) (*directory.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[name]
	if !ok {
		return nil, directory.ErrRoomNotFound
	}
	return &room, nil
}

func (f *fakeDirectory) ListRooms(_ context.Context) ([]directory.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rooms := make([]directory.Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (f *fakeDirectory) CreateRoom(_ context.Context, room *directory.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.Name]; ok {
		return directory.ErrRoomExists
	}
	f.rooms[room.Name] = *room
	return nil
}

func (f *fakeDirectory) DeleteRoom(_ context.Context, dn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, room := range f.rooms {
		if room.DN == dn {
			delete(f.rooms, name)
			return nil
		}
	}
	return directory.ErrRoomNotFound
}

func (f *fakeDirectory) GetDevice(_ context.Context, name string) (*directory.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.devices[name]
	if !ok {
		return nil, directory.ErrDeviceNotFound
	}
	return &device, nil
}

func (f *fakeDirectory) GetDevices(_ context.Context, roomDN string) ([]directory.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var devices []directory.Device
	for _, device := range f.devices {
		if device.RoomDN == roomDN {
			devices = append(devices, device)
		}
	}
	return devices, nil
}

func (f *fakeDirectory) CreateDevice(_ context.Context, device *directory.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[device.Name]; ok {
		return directory.ErrDeviceExists
	}
	f.devices[device.Name] = *device
	return nil
}

func (f *fakeDirectory) DeleteDevice(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[name]; !ok {
		return directory.ErrDeviceNotFound
	}
	delete(f.devices, name)
	return nil
}

// commandAgent is a monitor.AgentAPI that accepts everything and records
// feature commands.
type commandAgent struct {
	mu       sync.Mutex
	features []agent.Feature
}

func (a *commandAgent) Ping(context.Context, string) error { return nil }

func (a *commandAgent) GetUserInfo(context.Context, string) (agent.UserInfo, error) {
	return agent.UserInfo{}, nil
}

func (a *commandAgent) GetFeatureStatus(context.Context, string, agent.Feature) (bool, error) {
	return false, nil
}

func (a *commandAgent) SetFeature(_ context.Context, _ string, feature agent.Feature, _ bool, _ map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.features = append(a.features, feature)
	return nil
}

func (a *commandAgent) GetScreenshot(context.Context, string, agent.ScreenshotRequest) ([]byte, error) {
	return []byte("image"), nil
}

func (a *commandAgent) RemoveSession(context.Context, string) {}

func (a *commandAgent) sentFeatures() []agent.Feature {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]agent.Feature(nil), a.features...)
}

// testServer bundles the router with the fakes behind it.
type testServer struct {
	router http.Handler
	dir    *fakeDirectory
	agent  *commandAgent
}

// newTestServer builds a server over in-memory fakes, with one seeded room
// holding two devices. The HTTP listener is not started; requests go through
// the router directly.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := newFakeDirectory()
	dir.rooms["lab-1"] = directory.Room{DN: "dn-lab-1", Name: "lab-1"}
	dir.devices["pc-01"] = directory.Device{
		Name: "pc-01", RoomDN: "dn-lab-1", Addresses: []string{"10.0.0.1"},
	}
	dir.devices["pc-02"] = directory.Device{
		Name: "pc-02", RoomDN: "dn-lab-1", Addresses: []string{"10.0.0.2"},
	}

	agentClient := &commandAgent{}
	controller := monitor.NewController(agentClient, monitor.Config{
		Poll: monitor.PollConfig{Interval: time.Hour, Jitter: time.Millisecond},
	}, nil)
	t.Cleanup(controller.Close)

	server, err := New(Deps{
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret},
		},
		Logger:     logging.New(config.LoggingConfig{Level: "error"}, "test"),
		Controller: controller,
		Directory:  dir,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testServer{
		router: server.buildRouter(),
		dir:    dir,
		agent:  agentClient,
	}
}

// request performs an authenticated request against the router.
func (ts *testServer) request(t *testing.T, method, path, body string, role auth.Role) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		token, err := auth.GenerateAccessToken("tester", role, testJWTSecret, 15)
		if err != nil {
			t.Fatalf("generating token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthWithoutAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health body = %s, want status ok", rec.Body.String())
	}
}

func TestServer_RejectsMissingToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/rooms", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated request status = %d, want 401", rec.Code)
	}
}

func TestServer_RejectsBadToken(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rec.Code)
	}
}

func TestServer_TokenQueryParameterAccepted(t *testing.T) {
	ts := newTestServer(t)

	token, err := auth.GenerateAccessToken("tester", auth.RoleOperator, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms?token="+token, nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("token query parameter status = %d, want 200", rec.Code)
	}
}

func TestServer_RosterWritesRequireAdmin(t *testing.T) {
	ts := newTestServer(t)

	body := `{"dn":"dn-lab-2","name":"lab-2"}`
	rec := ts.request(t, http.MethodPost, "/api/v1/rooms", body, auth.RoleOperator)
	if rec.Code != http.StatusForbidden {
		t.Errorf("operator create room status = %d, want 403", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/rooms", body, auth.RoleAdmin)
	if rec.Code != http.StatusCreated {
		t.Errorf("admin create room status = %d, want 201", rec.Code)
	}
}

func TestServer_CreateRoomConflict(t *testing.T) {
	ts := newTestServer(t)

	body := `{"dn":"dn-lab-1","name":"lab-1"}`
	rec := ts.request(t, http.MethodPost, "/api/v1/rooms", body, auth.RoleAdmin)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate room status = %d, want 409", rec.Code)
	}
}

func TestServer_CreateRoomBadBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/v1/rooms", "{not json", auth.RoleAdmin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/rooms", `{"dn":"","name":""}`, auth.RoleAdmin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty fields status = %d, want 400", rec.Code)
	}
}

func TestServer_ActiveRoomLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/room", "", auth.RoleOperator)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /room before select status = %d, want 404", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/rooms/lab-1/select", "", auth.RoleOperator)
	if rec.Code != http.StatusOK {
		t.Fatalf("select room status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/room", "", auth.RoleOperator)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /room after select status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"lab-1"`) {
		t.Errorf("active room body = %s, want lab-1", rec.Body.String())
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/devices/", "", auth.RoleOperator)
	if rec.Code != http.StatusOK {
		t.Fatalf("list devices status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"pc-01"`) || !strings.Contains(rec.Body.String(), `"pc-02"`) {
		t.Errorf("device list = %s, want both seeded devices", rec.Body.String())
	}
}

func TestServer_SelectUnknownRoom(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/v1/rooms/nowhere/select", "", auth.RoleOperator)
	if rec.Code != http.StatusNotFound {
		t.Errorf("select unknown room status = %d, want 404", rec.Code)
	}
}

func TestServer_DevicesWithoutActiveRoom(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/devices/", "/api/v1/devices/changed"} {
		rec := ts.request(t, http.MethodGet, path, "", auth.RoleOperator)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s without room status = %d, want 404", path, rec.Code)
		}
	}
}

func TestServer_ScreenLockCommand(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/v1/rooms/lab-1/select", "", auth.RoleOperator)
	if rec.Code != http.StatusOK {
		t.Fatalf("select room status = %d", rec.Code)
	}

	rec = ts.request(t, http.MethodPut, "/api/v1/devices/pc-01/screen-lock", `{"locked":true}`, auth.RoleOperator)
	if rec.Code != http.StatusOK {
		t.Fatalf("screen-lock status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var found bool
	for _, feature := range ts.agent.sentFeatures() {
		if feature == agent.FeatureScreenLock {
			found = true
		}
	}
	if !found {
		t.Errorf("agent received %v, want screen_lock", ts.agent.sentFeatures())
	}
}

func TestServer_CommandUnknownDevice(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/v1/rooms/lab-1/select", "", auth.RoleOperator)
	if rec.Code != http.StatusOK {
		t.Fatalf("select room status = %d", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/devices/pc-99/restart", "", auth.RoleOperator)
	if rec.Code != http.StatusNotFound {
		t.Errorf("restart unknown device status = %d, want 404", rec.Code)
	}
}

func TestServer_CreateDeviceUnknownRoom(t *testing.T) {
	ts := newTestServer(t)

	body := `{"name":"pc-50","room":"nowhere","addresses":["10.0.0.50"]}`
	rec := ts.request(t, http.MethodPost, "/api/v1/devices/", body, auth.RoleAdmin)
	if rec.Code != http.StatusNotFound {
		t.Errorf("create device in unknown room status = %d, want 404", rec.Code)
	}
}

func TestServer_DemoLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/v1/rooms/lab-1/select", "", auth.RoleOperator)
	if rec.Code != http.StatusOK {
		t.Fatalf("select room status = %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/demo/", "", auth.RoleOperator)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /demo before start status = %d, want 404", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/demo/", `{"server":"pc-01","fullscreen":true}`, auth.RoleOperator)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start demo status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/demo/", "", auth.RoleOperator)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /demo after start status = %d, want 200", rec.Code)
	}
	// The shared secret stays between the agents.
	if strings.Contains(rec.Body.String(), `"token":"`) &&
		!strings.Contains(rec.Body.String(), `"token":""`) {
		t.Errorf("demo body exposes the access token: %s", rec.Body.String())
	}

	rec = ts.request(t, http.MethodDelete, "/api/v1/demo/", "", auth.RoleOperator)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("stop demo status = %d, want 204", rec.Code)
	}
}
