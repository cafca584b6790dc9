package metrics

// MetricInfo names and describes a metric or a record. Two MetricInfo
// values with equal Name and Description are canonicalized to the same
// pointer by the intern pool (see intern.go), so callers may compare
// infos with ==.
type MetricInfo struct {
	Name        string
	Description string
}

// Tag is a labeled string attached to a Record. Tags are interned by
// (MetricInfo, Value) so equal tags share identity.
type Tag struct {
	Info  *MetricInfo
	Value string
}

// ContextInfo names the well-known "Context" tag that every record
// carries when its owning registry has a context set (see
// Registry.SetContext and RecordBuilder.SetContext).
var ContextInfo = Info("Context", "Metrics context")

// HostnameInfo names the well-known "Hostname" tag the orchestrator
// injects into every record (spec.md §3, SourceAdapter step 3).
var HostnameInfo = Info("Hostname", "Local hostname")
