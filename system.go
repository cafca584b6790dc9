package metrics

import (
	"fmt"
	"sync"
)

// DefaultMetricsSystem is the process-wide, prefix-keyed registry of
// Orchestrators (spec.md §3: "Orchestrator (one per prefix)"). Library
// and application code that doesn't need a hand-held Orchestrator gets
// one on demand via DefaultMetricsSystem(prefix).
//
// Grounded on the teacher's globalMetrics atomic.Value singleton in
// start.go; generalized from one process-wide *Metrics slot to a
// mutex-guarded map because this core supports more than one
// orchestrator prefix concurrently (the teacher never needed to, since
// it only ever had one global instance).
type defaultSystem struct {
	mu            sync.Mutex
	orchestrators map[string]*Orchestrator
	nameSeq       map[string]int
}

var theDefaultSystem = &defaultSystem{
	orchestrators: make(map[string]*Orchestrator),
	nameSeq:       make(map[string]int),
}

// DefaultMetricsSystem returns the process-wide Orchestrator registered
// under prefix, creating and storing it on first use.
func DefaultMetricsSystem(prefix string) *Orchestrator {
	return theDefaultSystem.orchestrator(prefix)
}

func (s *defaultSystem) orchestrator(prefix string) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orchestrators[prefix]
	if !ok {
		o = NewOrchestrator(prefix)
		s.orchestrators[prefix] = o
	}
	return o
}

// SourceName returns name as-is when unique is false. When unique is
// true, it returns name the first time it's requested for prefix, and a
// "name-N" monotonic suffix on every subsequent request for the same
// (prefix, name) pair - letting callers register many instances of the
// same kind of source (e.g. one per connection pool) without colliding
// in the registry.
func SourceName(prefix, name string, unique bool) string {
	return theDefaultSystem.sourceName(prefix, name, unique)
}

func (s *defaultSystem) sourceName(prefix, name string, unique bool) string {
	if !unique {
		return name
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := prefix + "\x00" + name
	n := s.nameSeq[key]
	s.nameSeq[key] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s-%d", name, n)
}

// ResetDefaultMetricsSystemForTest stops and discards every orchestrator
// the default system holds. Test-only: production code never needs to
// un-create a process-wide singleton.
func ResetDefaultMetricsSystemForTest() {
	theDefaultSystem.mu.Lock()
	orchestrators := make([]*Orchestrator, 0, len(theDefaultSystem.orchestrators))
	for _, o := range theDefaultSystem.orchestrators {
		orchestrators = append(orchestrators, o)
	}
	theDefaultSystem.orchestrators = make(map[string]*Orchestrator)
	theDefaultSystem.nameSeq = make(map[string]int)
	theDefaultSystem.mu.Unlock()

	for _, o := range orchestrators {
		o.Stop()
	}
}
