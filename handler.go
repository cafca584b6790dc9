package metrics

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Handler returns an http.Handler exposing the management-bean surface
// from SPEC_FULL.md §6 - a Go-native stand-in for spec.md's "JMX-like
// introspection" (spec.md §9 REDESIGN FLAGS: JMX has no Go analogue).
// It serves:
//
//	GET  /source/<name>           cached, TTL-bounded snapshot of that source
//	POST /control/start           Orchestrator.Start()
//	POST /control/stop            Orchestrator.Stop()
//	POST /control/publish         Orchestrator.PublishMetricsNow()
//
// This handler is optional wiring: nothing in the core ever starts a
// listener itself, matching the teacher's posture of never owning one
// either (it only ever returns sinks/values for the caller to wire up).
func (o *Orchestrator) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/source/", o.handleSource)
	mux.HandleFunc("/control/start", o.handleControl(func() { _ = o.Start() }))
	mux.HandleFunc("/control/stop", o.handleControl(o.Stop))
	mux.HandleFunc("/control/publish", o.handleControl(o.PublishMetricsNow))
	return mux
}

func (o *Orchestrator) handleSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/source/")
	if name == "" {
		http.Error(w, "missing source name", http.StatusBadRequest)
		return
	}
	if name == selfSourceName {
		// selfSourceName's SourceFunc reads orchestrator state assuming
		// o.mu is held, which this HTTP path never does; see
		// registerSelfSourceLocked.
		http.Error(w, "unknown source: "+name, http.StatusNotFound)
		return
	}

	o.mu.Lock()
	sa, ok := o.sourceAdapters[name]
	contextTag := ""
	if ok {
		contextTag = sa.Config.GetString("context", "")
	}
	injected := o.injectedTags
	o.mu.Unlock()

	if !ok {
		http.Error(w, "unknown source: "+name, http.StatusNotFound)
		return
	}

	records := sa.CachedSnapshot(contextTag, injected)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

func (o *Orchestrator) handleControl(op func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		op()
		w.WriteHeader(http.StatusNoContent)
	}
}
