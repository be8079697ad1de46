// Package logging provides structured logging for Boom Gate Core.
//
// It wraps the standard library's log/slog with service-wide default
// fields and config-driven level, format and destination selection.
// Components obtain a scoped logger via With:
//
//	log := logger.With("component", "dispatch")
package logging
