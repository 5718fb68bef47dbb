package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no graph, session or node exists for an id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when an operation is not allowed in the current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrMalformedGraph is returned when a graph document is structurally invalid.
	ErrMalformedGraph = errors.New("malformed graph")

	// ErrAmbiguousBranch is returned when a non-condition node has several outgoing connections.
	ErrAmbiguousBranch = errors.New("ambiguous branch")

	// ErrUnreachableBranch is returned when no connection of a condition matches its result.
	ErrUnreachableBranch = errors.New("unreachable branch")

	// ErrStepLimitExceeded is returned when a run exceeds the step ceiling.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// TransitionError describes a refused session operation.
type TransitionError struct {
	Op     string
	Status ExecutionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed while session is %s", e.Op, e.Status)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// GraphError describes a structural problem in a graph.
type GraphError struct {
	NodeID string
	Reason string
}

func (e *GraphError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("malformed graph: %s", e.Reason)
	}
	return fmt.Sprintf("malformed graph at node '%s': %s", e.NodeID, e.Reason)
}

func (e *GraphError) Unwrap() error { return ErrMalformedGraph }

// BranchError describes a failure to pick the next node.
type BranchError struct {
	NodeID string
	Kind   NodeKind
	// Outgoing is the number of connections leaving the node.
	Outgoing int
	// Result is the condition outcome, set for unreachable branches.
	Result *bool
}

func (e *BranchError) Error() string {
	if e.Result != nil {
		return fmt.Sprintf("node '%s': no connection for condition result %t", e.NodeID, *e.Result)
	}
	return fmt.Sprintf("node '%s' (%s) has %d outgoing connections", e.NodeID, e.Kind, e.Outgoing)
}

func (e *BranchError) Unwrap() error {
	if e.Result != nil {
		return ErrUnreachableBranch
	}
	return ErrAmbiguousBranch
}

// StepLimitError reports the ceiling a run hit.
type StepLimitError struct {
	Limit  int
	NodeID string
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("step limit of %d exceeded at node '%s'", e.Limit, e.NodeID)
}

func (e *StepLimitError) Unwrap() error { return ErrStepLimitExceeded }

// ErrorKind maps an error to the taxonomy name exposed by transports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrMalformedGraph):
		return "MalformedGraph"
	case errors.Is(err, ErrAmbiguousBranch):
		return "AmbiguousBranch"
	case errors.Is(err, ErrUnreachableBranch):
		return "UnreachableBranch"
	case errors.Is(err, ErrStepLimitExceeded):
		return "StepLimitExceeded"
	}
	return "Internal"
}

// IsGraphFailure reports whether err aborts a run (the session moves to error).
func IsGraphFailure(err error) bool {
	return errors.Is(err, ErrMalformedGraph) ||
		errors.Is(err, ErrAmbiguousBranch) ||
		errors.Is(err, ErrUnreachableBranch) ||
		errors.Is(err, ErrStepLimitExceeded)
}
