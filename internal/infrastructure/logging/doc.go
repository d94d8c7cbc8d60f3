// Package logging provides the structured logger used across Roomwatch Core.
//
// It is a thin wrapper around log/slog: configuration-driven level, format
// and destination, plus default service/version attributes on every record.
// Leaf packages do not import this package directly; they declare their own
// small Logger interface, which *Logger satisfies.
package logging
