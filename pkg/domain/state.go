package domain

import "time"

// ExecutionStatus is the lifecycle status of a debug session.
type ExecutionStatus string

const (
	StatusCreated ExecutionStatus = "created" // Session exists, no run started
	StatusRunning ExecutionStatus = "running" // Continuous drive in progress
	StatusPaused  ExecutionStatus = "paused"  // Suspended on a breakpoint, pause() or a manual step
	StatusStopped ExecutionStatus = "stopped" // Run finished or stopped explicitly
	StatusError   ExecutionStatus = "error"   // Run aborted by an engine failure
)

// Terminal reports whether no further step can happen in the current run.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusStopped || s == StatusError
}

// Scope holds the variables of one run.
type Scope map[string]any

// Clone returns a shallow copy of the scope.
func (s Scope) Clone() Scope {
	out := make(Scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// HistoryEntry records one executed step. Entries are append-only.
type HistoryEntry struct {
	NodeID    string    `json:"nodeId"`
	Kind      NodeKind  `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	StepIndex int       `json:"stepIndex"`
	Effects   []Effect  `json:"effects,omitempty"`
}
