package metrics

import "github.com/kestrel-oss/metricsys/internal/logutil"

// Callback is a lifecycle hook invoked synchronously, in registration
// order, around the orchestrator's start/stop transitions (spec.md §3,
// §4.7). Embed BaseCallback to get no-op defaults for the hooks you
// don't need.
type Callback interface {
	PreStart()
	PostStart()
	PreStop()
	PostStop()
}

// BaseCallback supplies no-op implementations of every Callback method;
// embed it and override only what's needed.
type BaseCallback struct{}

func (BaseCallback) PreStart()  {}
func (BaseCallback) PostStart() {}
func (BaseCallback) PreStop()   {}
func (BaseCallback) PostStop()  {}

// FuncCallback adapts plain functions to the Callback interface, the
// same "functional option" ergonomics the teacher uses for ConfigOption
// in start.go. Nil fields are no-ops.
type FuncCallback struct {
	OnPreStart  func()
	OnPostStart func()
	OnPreStop   func()
	OnPostStop  func()
}

func (f FuncCallback) PreStart() {
	if f.OnPreStart != nil {
		f.OnPreStart()
	}
}
func (f FuncCallback) PostStart() {
	if f.OnPostStart != nil {
		f.OnPostStart()
	}
}
func (f FuncCallback) PreStop() {
	if f.OnPreStop != nil {
		f.OnPreStop()
	}
}
func (f FuncCallback) PostStop() {
	if f.OnPostStop != nil {
		f.OnPostStop()
	}
}

// safeCallback wraps a Callback so that a panic from any hook is
// recovered, logged, and swallowed (spec.md §7: CallbackError "is
// suppressed and logged"; REDESIGN FLAGS §9: "replace the dynamic proxy
// with a thin wrapper type whose methods wrap user callbacks in
// try/log/swallow").
type safeCallback struct {
	name string
	cb   Callback
}

func (s safeCallback) run(hook string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			logutil.Errf("callback %q panicked during %s: %v", s.name, hook, r)
		}
	}()
	f()
}

func (s safeCallback) PreStart()  { s.run("PreStart", s.cb.PreStart) }
func (s safeCallback) PostStart() { s.run("PostStart", s.cb.PostStart) }
func (s safeCallback) PreStop()   { s.run("PreStop", s.cb.PreStop) }
func (s safeCallback) PostStop()  { s.run("PostStop", s.cb.PostStop) }
