// Package logutil is a minimal bracketed-level logger shim, matching
// the convention the teacher repo uses ad hoc in prometheus.go
// ("[ERR] Error pushing to Prometheus! Err: %s"). The core never lets a
// producer/source/sink/callback fault reach the caller (spec.md §7);
// this is where those faults go instead of vanishing silently.
package logutil

import "log"

// Warnf logs a non-fatal, expected condition (a dropped buffer, a
// rejected registration).
func Warnf(format string, args ...any) {
	log.Printf("[WARN] "+format, args...)
}

// Errf logs an unexpected fault that was caught and contained (a
// panicking source, a failing sink delivery, a callback error).
func Errf(format string, args ...any) {
	log.Printf("[ERR] "+format, args...)
}
