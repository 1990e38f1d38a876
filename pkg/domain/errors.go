package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrGraphInvalid     = errors.New("pipeline graph is invalid")
	ErrGraphCycle       = errors.New("pipeline graph contains a cycle")
	ErrMissingInput     = errors.New("node has no upstream input")
	ErrQualityGate      = errors.New("data quality below threshold")
	ErrUnknownConnector = errors.New("unknown connector type")
	ErrUnknownAdapter   = errors.New("unknown export adapter type")
	ErrRunNotFound      = errors.New("run not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrConfigInvalid    = errors.New("invalid configuration")
)

// NodeError wraps a failure with the node it occurred on. The engine uses it
// to build run-level error messages that name the failing node.
type NodeError struct {
	NodeID   string
	NodeType NodeType
	Attempts int
	Err      error
}

func (e *NodeError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("node %s failed after %d attempts: %v", e.NodeID, e.Attempts, e.Err)
	}
	return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// GraphError wraps a structural defect detected before any node runs.
type GraphError struct {
	Reason string
	Err    error
}

func (e *GraphError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return e.Err.Error()
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a node failure is worth another attempt.
// Structural problems and absent inputs never heal on retry; everything
// else (handler I/O, quality gates, engine errors) might.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrMissingInput),
		errors.Is(err, ErrGraphInvalid),
		errors.Is(err, ErrGraphCycle),
		errors.Is(err, ErrUnknownConnector),
		errors.Is(err, ErrUnknownAdapter):
		return false
	}
	return true
}
