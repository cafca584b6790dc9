package metrics

// Sink is implemented by consumer-side plugins that receive and
// externalize records (spec.md §6). PutMetrics is invoked 1..N times
// per buffer, once per surviving record, followed by exactly one call
// to Flush. Either may return an error; a returned error triggers the
// owning SinkAdapter's retry state machine and never propagates
// further. Configure is called once, by the adapter, before first use.
type Sink interface {
	Configure(cfg SubConfig) error
	PutMetrics(r Record) error
	Flush() error
}

// Closer is optionally implemented by sinks that hold resources needing
// explicit teardown on orchestrator stop (sockets, file handles).
// Mirrors the teacher's ShutdownSink in the original sink.go.
type Closer interface {
	Close() error
}

// SinkFactory builds a Sink from its per-sink config subtree. Concrete
// plugins register a factory under a class name (spec.md §6:
// "*.sink.<name>.class"); the core never imports a concrete plugin
// package directly.
//
// Grounded on the teacher's sinkURLFactoryFunc/sinkRegistry in sink.go
// (scheme -> factory function), generalized from URL scheme to
// config-declared class name.
type SinkFactory func(cfg SubConfig) (Sink, error)

var sinkFactories = map[string]SinkFactory{}

// RegisterSinkFactory makes a sink class available to
// NewSinkFromConfig. Typically called from a plugin package's init().
func RegisterSinkFactory(class string, f SinkFactory) {
	sinkFactories[class] = f
}

// NewSinkFromConfig instantiates the sink named by cfg's "class" key
// (spec.md §6) and configures it.
func NewSinkFromConfig(cfg SubConfig) (Sink, error) {
	class := cfg.GetString("class", "")
	f, ok := sinkFactories[class]
	if !ok {
		return nil, wrapf(ErrUnknownSinkClass, "class %q", class)
	}
	sink, err := f(cfg)
	if err != nil {
		return nil, err
	}
	if err := sink.Configure(cfg); err != nil {
		return nil, err
	}
	return sink, nil
}
