// Package monitor keeps a live, thread-safe view of every device in the
// active classroom and executes room-wide commands.
//
// One Poller goroutine per device refreshes connectivity, the logged-in user
// and the tracked feature flags through the agent client; readings land in
// per-field state cells that expose current/previous values and a one-shot
// changed flag. The Controller owns the active room: it drains the previous
// room's pollers before starting new ones, aggregates snapshots for the
// serving layer, and drives bulk actions such as screen locking, power
// control and demo broadcasts.
package monitor
