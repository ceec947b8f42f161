// pkg/orchestrator/state.go
package orchestrator

import (
	"sync"
	"time"
)

// Status is the lifecycle state of one tool within a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusVerified   Status = "verified"
	StatusFailed     Status = "failed"
)

// Diagnostic reasons used in reports. Dependency failures and
// cancellations are distinguished from build and verification failures
// so operators can tell why a tool was never attempted.
const (
	ReasonDependencyFailed = "dependency failed"
	ReasonCancelled        = "cancelled"
	ReasonAlreadyInstalled = "already installed"
	ReasonNotStarted       = "not started"
)

type toolState struct {
	status   Status
	reason   string
	duration time.Duration
}

// installState tracks per-tool status for one run. All transitions go
// through Set under the lock; concurrent workers each own distinct
// entries but share the map.
type installState struct {
	mu      sync.RWMutex
	entries map[string]*toolState
}

func newInstallState(order []string) *installState {
	s := &installState{entries: make(map[string]*toolState, len(order))}
	for _, name := range order {
		s.entries[name] = &toolState{status: StatusPending, reason: ReasonNotStarted}
	}
	return s
}

func (s *installState) set(name string, status Status, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[name]
	entry.status = status
	entry.reason = reason
}

func (s *installState) setDuration(name string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name].duration = d
}

func (s *installState) get(name string) (Status, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.entries[name]
	return entry.status, entry.reason
}

func (s *installState) snapshot(name string) toolState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.entries[name]
}
