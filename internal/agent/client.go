package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Authentication methods accepted by the agents.
const (
	AuthMethodLogon   = "logon"   // username + password
	AuthMethodAuthKey = "authkey" // pre-shared key file
)

// Default client settings, used when Config leaves the field zero.
const (
	defaultAgentPort      = 11080
	defaultRequestTimeout = 10 * time.Second
	defaultPingTimeout    = 3 * time.Second

	// sessionHeader carries the session token on authenticated requests.
	sessionHeader = "Connection-Uid"
)

// maxErrorBodySize bounds how much of an error response body is read.
const maxErrorBodySize = 4096

// Config holds agent connection and authentication settings.
type Config struct {
	// Port is the TCP port the agent listens on. Default: 11080.
	Port int

	// AuthMethod selects how sessions are established: AuthMethodLogon or
	// AuthMethodAuthKey.
	AuthMethod string

	// Username and Password are the credentials for AuthMethodLogon.
	Username string
	Password string

	// KeyName and KeyFile identify the pre-shared key for AuthMethodAuthKey.
	KeyName string
	KeyFile string

	// RequestTimeout bounds every HTTP request. Default: 10s.
	RequestTimeout time.Duration

	// PingTimeout bounds the liveness check. Default: 3s.
	PingTimeout time.Duration
}

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client issues typed, host-scoped operations against device agents.
//
// Every operation takes the target host; sessions are obtained from the
// embedded SessionStore transparently. A request rejected with
// CodeInvalidSession invalidates the cached session and is retried exactly
// once with a fresh token.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg      Config
	http     *http.Client
	sessions *SessionStore
	logger   Logger
}

// NewClient creates an agent client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = defaultAgentPort
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.PingTimeout == 0 {
		cfg.PingTimeout = defaultPingTimeout
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: noopLogger{},
	}
	c.sessions = NewSessionStore(c.authenticate)
	return c
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Sessions exposes the client's session store for teardown paths that need
// Forget without going through an agent call.
func (c *Client) Sessions() *SessionStore {
	return c.sessions
}

// Ping checks whether the agent on host is reachable.
// A failed dial is returned as a *ConnectionError.
func (c *Client) Ping(ctx context.Context, host string) error {
	if host == "" {
		return ErrEmptyHost
	}

	dialer := net.Dialer{Timeout: c.cfg.PingTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.hostPort(host))
	if err != nil {
		return &ConnectionError{Host: host, Err: err}
	}
	conn.Close()
	return nil
}

// GetUserInfo returns the agent's report of the logged-in user.
// An empty Login means no interactive session is active.
func (c *Client) GetUserInfo(ctx context.Context, host string) (UserInfo, error) {
	var info UserInfo
	err := c.doSession(ctx, host, http.MethodGet, "/api/v1/user", nil, &info)
	if err != nil {
		return UserInfo{}, err
	}
	return info, nil
}

// GetFeatureStatus reports whether the named feature is active on host.
// Unknown feature names fail with an *AgentError (CodeInvalidFeature).
func (c *Client) GetFeatureStatus(ctx context.Context, host string, feature Feature) (bool, error) {
	var resp struct {
		Active bool `json:"active"`
	}
	err := c.doSession(ctx, host, http.MethodGet, "/api/v1/feature/"+url.PathEscape(string(feature)), nil, &resp)
	if err != nil {
		return false, err
	}
	return resp.Active, nil
}

// SetFeature activates or deactivates the named feature on host.
// Arguments is an open string map passed through to the agent; it may be nil.
func (c *Client) SetFeature(ctx context.Context, host string, feature Feature, active bool, arguments map[string]string) error {
	body := struct {
		Active    bool              `json:"active"`
		Arguments map[string]string `json:"arguments,omitempty"`
	}{
		Active:    active,
		Arguments: arguments,
	}
	return c.doSession(ctx, host, http.MethodPut, "/api/v1/feature/"+url.PathEscape(string(feature)), body, nil)
}

// GetScreenshot captures the framebuffer of host.
// A format the agent cannot encode fails with an *AgentError
// (CodeUnsupportedImageFormat); callers try their next candidate.
func (c *Client) GetScreenshot(ctx context.Context, host string, req ScreenshotRequest) ([]byte, error) {
	q := url.Values{}
	q.Set("format", string(req.Format))
	if req.Quality > 0 {
		q.Set("quality", strconv.Itoa(req.Quality))
	}
	if req.Compression > 0 {
		q.Set("compression", strconv.Itoa(req.Compression))
	}
	if req.Width > 0 {
		q.Set("width", strconv.Itoa(req.Width))
	}
	if req.Height > 0 {
		q.Set("height", strconv.Itoa(req.Height))
	}

	var image []byte
	err := c.doSession(ctx, host, http.MethodGet, "/api/v1/framebuffer?"+q.Encode(), nil, &image)
	if err != nil {
		return nil, err
	}
	return image, nil
}

// RemoveSession tears down the agent-side session for host, best effort.
// The local cache entry is dropped regardless of the outcome; a transport
// failure is logged, not returned.
func (c *Client) RemoveSession(ctx context.Context, host string) {
	session, ok := c.sessions.Peek(host)
	c.sessions.Forget(host)
	if !ok {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(host, "/api/v1/authentication"), nil)
	if err != nil {
		return
	}
	req.Header.Set(sessionHeader, session.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("session teardown failed", "host", host, "error", err)
		return
	}
	resp.Body.Close()
}

// authenticate performs the authentication call for host and returns the new
// session. It is the AuthFunc backing the session store.
func (c *Client) authenticate(ctx context.Context, host string) (Session, error) {
	credentials, err := c.credentials()
	if err != nil {
		return Session{}, err
	}

	body := struct {
		Method      string            `json:"method"`
		Credentials map[string]string `json:"credentials"`
	}{
		Method:      c.cfg.AuthMethod,
		Credentials: credentials,
	}

	var resp struct {
		ConnectionUID string `json:"connection-uid"`
		ValidUntil    int64  `json:"validUntil"`
	}
	if err := c.do(ctx, host, http.MethodPost, "/api/v1/authentication", "", body, &resp); err != nil {
		return Session{}, err
	}
	if resp.ConnectionUID == "" {
		return Session{}, &AgentError{Host: host, Code: CodeAuthenticationFailed, Message: "empty session token"}
	}

	c.logger.Debug("authenticated against agent", "host", host)
	return Session{
		Token:      resp.ConnectionUID,
		ValidUntil: time.Unix(resp.ValidUntil, 0),
	}, nil
}

// credentials builds the credential map for the configured auth method.
func (c *Client) credentials() (map[string]string, error) {
	switch c.cfg.AuthMethod {
	case AuthMethodLogon:
		return map[string]string{
			"username": c.cfg.Username,
			"password": c.cfg.Password,
		}, nil
	case AuthMethodAuthKey:
		key, err := os.ReadFile(c.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading agent key file: %w", err)
		}
		return map[string]string{
			"keyname": c.cfg.KeyName,
			"keydata": strings.TrimSpace(string(key)),
		}, nil
	default:
		return nil, fmt.Errorf("unknown agent auth method %q", c.cfg.AuthMethod)
	}
}

// doSession performs an authenticated request against host. If the agent
// rejects the token with CodeInvalidSession, the cached session is
// invalidated and the request retried once with a fresh token.
func (c *Client) doSession(ctx context.Context, host, method, path string, body, out any) error {
	token, err := c.sessions.Token(ctx, host)
	if err != nil {
		return err
	}

	err = c.do(ctx, host, method, path, token, body, out)
	if AgentCode(err) != CodeInvalidSession {
		return err
	}

	c.logger.Debug("session rejected, re-authenticating", "host", host)
	c.sessions.Invalidate(host)

	token, err = c.sessions.Token(ctx, host)
	if err != nil {
		return err
	}
	return c.do(ctx, host, method, path, token, body, out)
}

// do performs a single HTTP request and decodes the response.
// out may be *[]byte for raw payloads (framebuffer), any other non-nil
// pointer for JSON, or nil to discard the body.
func (c *Client) do(ctx context.Context, host, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(host, path), reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(sessionHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectionError{Host: host, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(host, resp)
	}

	switch target := out.(type) {
	case nil:
		return nil
	case *[]byte:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &ConnectionError{Host: host, Err: err}
		}
		*target = data
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return &ConnectionError{Host: host, Err: fmt.Errorf("decoding response: %w", err)}
		}
		return nil
	}
}

// decodeError turns a non-2xx response into an *AgentError when the agent
// sent a structured error body, or a *ConnectionError otherwise.
func (c *Client) decodeError(host string, resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return &ConnectionError{Host: host, Err: err}
	}

	var body struct {
		Error struct {
			Code    *int   `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Code != nil {
		return &AgentError{Host: host, Code: *body.Error.Code, Message: body.Error.Message}
	}

	return &ConnectionError{
		Host: host,
		Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
	}
}

// hostPort joins host with the configured agent port.
func (c *Client) hostPort(host string) string {
	return net.JoinHostPort(host, strconv.Itoa(c.cfg.Port))
}

// endpoint builds the full URL for an agent API path on host.
func (c *Client) endpoint(host, path string) string {
	return "http://" + c.hostPort(host) + path
}
