package agent

import (
	"context"
	"sync"
	"time"
)

// Session is an authenticated agent session for one host.
type Session struct {
	Token      string
	ValidUntil time.Time
}

// Valid reports whether the session can still be presented at the given time.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ValidUntil)
}

// AuthFunc authenticates against the agent on host and returns a fresh
// session. SessionStore calls it while holding only the per-host lock, so a
// slow authentication for one host never blocks token lookups for others.
type AuthFunc func(ctx context.Context, host string) (Session, error)

// SessionStore caches agent sessions per host and renews them on demand.
//
// Concurrent callers for the same host serialize on a per-host mutex with a
// validity re-check after acquiring it, so a burst of pollers hitting an
// expired entry converges on a single authentication call in the common case.
// Correctness only requires that at least one succeeds.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type SessionStore struct {
	auth AuthFunc

	mu    sync.Mutex
	hosts map[string]*hostSession
}

// hostSession is the cache entry for one host. Its own mutex guards the
// session fields and serializes renewal; the store's map lock is never held
// while authenticating.
type hostSession struct {
	mu      sync.Mutex
	session Session
}

// NewSessionStore creates a session store that renews sessions with auth.
func NewSessionStore(auth AuthFunc) *SessionStore {
	return &SessionStore{
		auth:  auth,
		hosts: make(map[string]*hostSession),
	}
}

// Token returns a valid session token for host, authenticating if the cached
// session is absent or expired.
func (s *SessionStore) Token(ctx context.Context, host string) (string, error) {
	if host == "" {
		return "", ErrEmptyHost
	}

	entry := s.entry(host)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Re-check after acquiring the host lock: another caller may have
	// renewed the session while we were waiting.
	if entry.session.Valid(time.Now()) {
		return entry.session.Token, nil
	}

	session, err := s.auth(ctx, host)
	if err != nil {
		return "", err
	}

	entry.session = session
	return session.Token, nil
}

// Invalidate drops the cached session for host so the next Token call
// re-authenticates. Called when the agent rejects a token with
// CodeInvalidSession.
func (s *SessionStore) Invalidate(host string) {
	s.mu.Lock()
	entry, ok := s.hosts[host]
	s.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.session = Session{}
	entry.mu.Unlock()
}

// Forget removes the cache entry for host without contacting the agent.
// Used on device teardown; the agent-side session expires on its own.
func (s *SessionStore) Forget(host string) {
	s.mu.Lock()
	delete(s.hosts, host)
	s.mu.Unlock()
}

// Peek returns the cached session for host without renewing it.
// The second return value reports whether an entry exists.
func (s *SessionStore) Peek(host string) (Session, bool) {
	s.mu.Lock()
	entry, ok := s.hosts[host]
	s.mu.Unlock()
	if !ok {
		return Session{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session, entry.session.Token != ""
}

// entry returns the cache entry for host, creating it if needed.
func (s *SessionStore) entry(host string) *hostSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.hosts[host]
	if !ok {
		entry = &hostSession{}
		s.hosts[host] = entry
	}
	return entry
}
