package domain

import (
	"reflect"
	"time"
)

// Snapshot is a point-in-time, immutable copy of a debug session.
type Snapshot struct {
	BotID         string          `json:"botId"`
	UserID        string          `json:"userId,omitempty"`
	RunID         string          `json:"runId,omitempty"`
	Status        ExecutionStatus `json:"status"`
	CurrentNodeID string          `json:"currentNodeId,omitempty"`
	Variables     Scope           `json:"variables"`
	History       []HistoryEntry  `json:"history"`
	StepCount     int             `json:"stepCount"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	StoppedAt     *time.Time      `json:"stoppedAt,omitempty"`
	ExecutionTime time.Duration   `json:"executionTime"`
	LastError     string          `json:"lastError,omitempty"`
	ErrorKind     string          `json:"errorKind,omitempty"`
}

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// BotID is always present to identify the target.
	BotID string `json:"botId"`

	RunID         *string          `json:"runId,omitempty"`
	CurrentNodeID *string          `json:"currentNodeId,omitempty"`
	Status        *ExecutionStatus `json:"status,omitempty"`
	StepCount     *int             `json:"stepCount,omitempty"`

	// Variables contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Variables map[string]any `json:"variables,omitempty"`

	// History contains the entries appended since the old snapshot.
	// A new run resets history; Reset is then true and History holds the full list.
	History []HistoryEntry `json:"history,omitempty"`
	Reset   bool           `json:"reset,omitempty"`

	LastError *string `json:"lastError,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap.
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{BotID: newSnap.BotID}

	if oldSnap == nil || oldSnap.RunID != newSnap.RunID {
		diff.RunID = &newSnap.RunID
	}
	if oldSnap == nil || oldSnap.CurrentNodeID != newSnap.CurrentNodeID {
		diff.CurrentNodeID = &newSnap.CurrentNodeID
	}
	if oldSnap == nil || oldSnap.Status != newSnap.Status {
		diff.Status = &newSnap.Status
	}
	if oldSnap == nil || oldSnap.StepCount != newSnap.StepCount {
		diff.StepCount = &newSnap.StepCount
	}
	if (oldSnap == nil && newSnap.LastError != "") || (oldSnap != nil && oldSnap.LastError != newSnap.LastError) {
		diff.LastError = &newSnap.LastError
	}

	diff.Variables = diffVariables(oldSnap, newSnap)
	diff.History, diff.Reset = diffHistory(oldSnap, newSnap)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffVariables(oldSnap, newSnap *Snapshot) map[string]any {
	delta := make(map[string]any)

	if oldSnap == nil {
		for k, v := range newSnap.Variables {
			delta[k] = v
		}
	} else {
		for k, newVal := range newSnap.Variables {
			oldVal, exists := oldSnap.Variables[k]
			if !exists || !reflect.DeepEqual(oldVal, newVal) {
				delta[k] = newVal
			}
		}
		for k := range oldSnap.Variables {
			if _, exists := newSnap.Variables[k]; !exists {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory assumes append-only history within a run.
func diffHistory(oldSnap, newSnap *Snapshot) ([]HistoryEntry, bool) {
	if oldSnap == nil {
		if len(newSnap.History) == 0 {
			return nil, false
		}
		return newSnap.History, false
	}

	oldLen, newLen := len(oldSnap.History), len(newSnap.History)
	if oldSnap.RunID != newSnap.RunID || newLen < oldLen {
		return newSnap.History, true
	}
	if newLen > oldLen {
		return newSnap.History[oldLen:], false
	}
	return nil, false
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.RunID == nil &&
		d.CurrentNodeID == nil &&
		d.Status == nil &&
		d.StepCount == nil &&
		d.LastError == nil &&
		len(d.Variables) == 0 &&
		len(d.History) == 0 &&
		!d.Reset
}
