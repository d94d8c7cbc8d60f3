package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeAgent is an in-process stand-in for a device agent. It issues
// sequential session tokens and serves canned user and feature state.
type fakeAgent struct {
	mu           sync.Mutex
	authCalls    int
	userCalls    int
	validTokens  map[string]bool
	revokeFirst  bool // reject the first issued token once, as if it expired
	rejectFormat ScreenshotFormat
	lastFeature  struct {
		name      string
		active    bool
		arguments map[string]string
	}
	removedSessions []string
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{validTokens: make(map[string]bool)}
}

func (f *fakeAgent) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/authentication", f.handleAuth)
	mux.HandleFunc("DELETE /api/v1/authentication", f.handleRemoveSession)
	mux.HandleFunc("GET /api/v1/user", f.handleUser)
	mux.HandleFunc("GET /api/v1/feature/{name}", f.handleGetFeature)
	mux.HandleFunc("PUT /api/v1/feature/{name}", f.handleSetFeature)
	mux.HandleFunc("GET /api/v1/framebuffer", f.handleFramebuffer)
	return mux
}

func (f *fakeAgent) handleAuth(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	f.authCalls++
	token := fmt.Sprintf("session-%d", f.authCalls)
	f.validTokens[token] = true
	f.mu.Unlock()

	writeAgentJSON(w, http.StatusOK, map[string]any{
		"connection-uid": token,
		"validUntil":     time.Now().Add(time.Minute).Unix(),
	})
}

func (f *fakeAgent) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	token := r.Header.Get("Connection-Uid")
	delete(f.validTokens, token)
	f.removedSessions = append(f.removedSessions, token)
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// checkSession validates the presented token, optionally revoking the first
// session once to exercise the re-authentication path.
func (f *fakeAgent) checkSession(w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	token := r.Header.Get("Connection-Uid")
	valid := f.validTokens[token]
	if valid && f.revokeFirst && token == "session-1" {
		delete(f.validTokens, token)
		f.revokeFirst = false
		valid = false
	}
	f.mu.Unlock()

	if !valid {
		writeAgentError(w, CodeInvalidSession, "invalid session")
		return false
	}
	return true
}

func (f *fakeAgent) handleUser(w http.ResponseWriter, r *http.Request) {
	if !f.checkSession(w, r) {
		return
	}
	f.mu.Lock()
	f.userCalls++
	f.mu.Unlock()

	writeAgentJSON(w, http.StatusOK, UserInfo{
		Login:        "student42",
		FullName:     "Student Fortytwo",
		SessionID:    7,
		TeacherLogin: false,
	})
}

func (f *fakeAgent) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	if !f.checkSession(w, r) {
		return
	}
	if r.PathValue("name") == string(FeatureScreenLock) {
		writeAgentJSON(w, http.StatusOK, map[string]bool{"active": true})
		return
	}
	writeAgentJSON(w, http.StatusOK, map[string]bool{"active": false})
}

func (f *fakeAgent) handleSetFeature(w http.ResponseWriter, r *http.Request) {
	if !f.checkSession(w, r) {
		return
	}
	var body struct {
		Active    bool              `json:"active"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAgentError(w, CodeInvalidData, "bad body")
		return
	}

	f.mu.Lock()
	f.lastFeature.name = r.PathValue("name")
	f.lastFeature.active = body.Active
	f.lastFeature.arguments = body.Arguments
	f.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (f *fakeAgent) handleFramebuffer(w http.ResponseWriter, r *http.Request) {
	if !f.checkSession(w, r) {
		return
	}
	if r.URL.Query().Get("format") == string(f.rejectFormat) {
		writeAgentError(w, CodeUnsupportedImageFormat, "unsupported format")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("imagebytes")) //nolint:errcheck
}

func (f *fakeAgent) authCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authCalls
}

func writeAgentJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeAgentError(w http.ResponseWriter, code int, message string) {
	writeAgentJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

// startFakeAgent serves the fake and returns a client dialled at it plus the
// host to address it by.
func startFakeAgent(t *testing.T, fake *fakeAgent) (*Client, string) {
	t.Helper()

	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(server.URL, "http://"))
	if err != nil {
		t.Fatalf("parsing test server address: %v", err)
	}
	port, _ := strconv.Atoi(portStr) //nolint:errcheck

	client := NewClient(Config{
		Port:       port,
		AuthMethod: AuthMethodLogon,
		Username:   "roomwatch",
		Password:   "secret",
	})
	return client, host
}

func TestClient_GetUserInfo(t *testing.T) {
	fake := newFakeAgent()
	client, host := startFakeAgent(t, fake)

	info, err := client.GetUserInfo(context.Background(), host)
	if err != nil {
		t.Fatalf("GetUserInfo() error = %v", err)
	}
	if info.Login != "student42" {
		t.Errorf("Login = %q, want %q", info.Login, "student42")
	}
	if info.FullName != "Student Fortytwo" {
		t.Errorf("FullName = %q, want %q", info.FullName, "Student Fortytwo")
	}
	if fake.authCount() != 1 {
		t.Errorf("auth calls = %d, want 1", fake.authCount())
	}
}

func TestClient_SessionReusedAcrossCalls(t *testing.T) {
	fake := newFakeAgent()
	client, host := startFakeAgent(t, fake)

	for range 3 {
		if _, err := client.GetUserInfo(context.Background(), host); err != nil {
			t.Fatalf("GetUserInfo() error = %v", err)
		}
	}

	if fake.authCount() != 1 {
		t.Errorf("auth calls = %d, want 1 for three requests", fake.authCount())
	}
}

func TestClient_InvalidSessionRetriesOnce(t *testing.T) {
	fake := newFakeAgent()
	fake.revokeFirst = true
	client, host := startFakeAgent(t, fake)

	info, err := client.GetUserInfo(context.Background(), host)
	if err != nil {
		t.Fatalf("GetUserInfo() error = %v", err)
	}
	if info.Login != "student42" {
		t.Errorf("Login = %q, want %q", info.Login, "student42")
	}

	// One auth up front, one re-auth after the rejection.
	if fake.authCount() != 2 {
		t.Errorf("auth calls = %d, want 2", fake.authCount())
	}
}

func TestClient_GetFeatureStatus(t *testing.T) {
	fake := newFakeAgent()
	client, host := startFakeAgent(t, fake)

	active, err := client.GetFeatureStatus(context.Background(), host, FeatureScreenLock)
	if err != nil {
		t.Fatalf("GetFeatureStatus() error = %v", err)
	}
	if !active {
		t.Error("GetFeatureStatus(screen_lock) = false, want true")
	}

	active, err = client.GetFeatureStatus(context.Background(), host, FeatureInputLock)
	if err != nil {
		t.Fatalf("GetFeatureStatus() error = %v", err)
	}
	if active {
		t.Error("GetFeatureStatus(input_lock) = true, want false")
	}
}

func TestClient_SetFeaturePassesArguments(t *testing.T) {
	fake := newFakeAgent()
	client, host := startFakeAgent(t, fake)

	args := map[string]string{
		ArgDemoAccessToken: "tok",
		ArgDemoServerHost:  "10.0.0.9",
	}
	if err := client.SetFeature(context.Background(), host, FeatureDemoClient, true, args); err != nil {
		t.Fatalf("SetFeature() error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.lastFeature.name != string(FeatureDemoClient) {
		t.Errorf("feature = %q, want %q", fake.lastFeature.name, FeatureDemoClient)
	}
	if !fake.lastFeature.active {
		t.Error("active = false, want true")
	}
	if fake.lastFeature.arguments[ArgDemoServerHost] != "10.0.0.9" {
		t.Errorf("arguments = %v, want demo server host passed through", fake.lastFeature.arguments)
	}
}

func TestClient_GetScreenshotUnsupportedFormat(t *testing.T) {
	fake := newFakeAgent()
	fake.rejectFormat = FormatPNG
	client, host := startFakeAgent(t, fake)

	_, err := client.GetScreenshot(context.Background(), host, ScreenshotRequest{Format: FormatPNG})
	if AgentCode(err) != CodeUnsupportedImageFormat {
		t.Fatalf("GetScreenshot(png) error = %v, want agent code %d", err, CodeUnsupportedImageFormat)
	}

	image, err := client.GetScreenshot(context.Background(), host, ScreenshotRequest{Format: FormatJPEG})
	if err != nil {
		t.Fatalf("GetScreenshot(jpeg) error = %v", err)
	}
	if string(image) != "imagebytes" {
		t.Errorf("image = %q, want raw payload", image)
	}
}

func TestClient_RemoveSession(t *testing.T) {
	fake := newFakeAgent()
	client, host := startFakeAgent(t, fake)

	if _, err := client.GetUserInfo(context.Background(), host); err != nil {
		t.Fatalf("GetUserInfo() error = %v", err)
	}

	client.RemoveSession(context.Background(), host)

	fake.mu.Lock()
	removed := len(fake.removedSessions)
	fake.mu.Unlock()
	if removed != 1 {
		t.Errorf("removed sessions = %d, want 1", removed)
	}
	if _, ok := client.Sessions().Peek(host); ok {
		t.Error("session cache should be empty after RemoveSession")
	}
}

func TestClient_RemoveSessionWithoutSession(t *testing.T) {
	fake := newFakeAgent()
	client, host := startFakeAgent(t, fake)

	// No session was ever established; nothing should be sent.
	client.RemoveSession(context.Background(), host)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.removedSessions) != 0 {
		t.Errorf("removed sessions = %d, want 0", len(fake.removedSessions))
	}
}

func TestClient_PingUnreachable(t *testing.T) {
	// Grab a port that nothing listens on.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	client := NewClient(Config{
		Port:        port,
		AuthMethod:  AuthMethodLogon,
		Username:    "roomwatch",
		PingTimeout: 200 * time.Millisecond,
	})

	err = client.Ping(context.Background(), "127.0.0.1")
	if !IsConnectionError(err) {
		t.Errorf("Ping() error = %v, want *ConnectionError", err)
	}
}

func TestClient_PingEmptyHost(t *testing.T) {
	client := NewClient(Config{AuthMethod: AuthMethodLogon, Username: "u"})
	if err := client.Ping(context.Background(), ""); err != ErrEmptyHost {
		t.Errorf("Ping(\"\") error = %v, want ErrEmptyHost", err)
	}
}
