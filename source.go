package metrics

// Source is implemented by producer-side objects that contribute
// metric samples when asked (spec.md §3, §6). Implementations must not
// block on I/O, must not retain the Collector or any RecordBuilder
// after GetMetrics returns, and must tolerate being invoked
// concurrently with producer mutations on the same metric objects.
type Source interface {
	GetMetrics(c *Collector, all bool) error
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(c *Collector, all bool) error

func (f SourceFunc) GetMetrics(c *Collector, all bool) error { return f(c, all) }
