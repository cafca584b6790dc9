package metrics

import (
	"errors"
	"fmt"
)

// wrapf wraps base with additional context, preserving errors.Is(err, base).
func wrapf(base error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{base}, args...)...)
}

// Error taxonomy from spec.md §7. All are sentinel errors checkable
// with errors.Is; callers that need more context get it via %w
// wrapping at the call site.
var (
	// ErrDuplicateName is returned by Registry methods when a metric
	// name is already registered. Fatal only to the offending call.
	ErrDuplicateName = errors.New("metrics: duplicate metric name in registry")

	// ErrNoMetricAnnotation is returned by the source builder when a
	// user object has neither a Source implementation nor any
	// `metric:"..."` tagged fields/methods to bind.
	ErrNoMetricAnnotation = errors.New("metrics: object has no metric-tagged fields or methods")

	// ErrHybridWithoutRegistry is returned by the source builder when a
	// user object both implements Source and carries metric-tagged
	// fields, but exposes no registry field to deposit them into.
	ErrHybridWithoutRegistry = errors.New("metrics: object implements Source and has metric tags but no registry field")

	// ErrConfig marks a malformed or contradictory configuration.
	// Non-fatal at Init; the orchestrator degrades to "configured" with
	// a logged warning rather than failing outright.
	ErrConfig = errors.New("metrics: configuration error")

	// ErrNotConfigured marks an orchestrator that has not completed
	// Start(). No operation in this package returns it: PublishMetricsNow,
	// for instance, is a silent no-op when the orchestrator is not
	// monitoring.
	ErrNotConfigured = errors.New("metrics: orchestrator is not configured")

	// ErrUnknownSinkClass is returned by NewSinkFromConfig when no
	// factory is registered for the configured sink class.
	ErrUnknownSinkClass = errors.New("metrics: unrecognized sink class")
)
