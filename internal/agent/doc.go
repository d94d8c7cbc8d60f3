// Package agent implements the HTTP client for the remote-management agent
// that runs on every classroom device.
//
// The agent exposes a small JSON API: authenticate, query or toggle a named
// feature, report the logged-in user, and capture the framebuffer. All
// feature and user calls require a session token obtained from the
// authentication endpoint; tokens are cached per host by SessionStore and
// renewed transparently when they expire or when the agent rejects one.
//
// Errors fall into two families: *ConnectionError for transport failures
// (unreachable host, timeout) and *AgentError for structured rejections
// reported by the agent itself (invalid feature, bad credentials, expired
// session). Callers distinguish them with errors.As.
package agent
