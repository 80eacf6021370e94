package pipeline

import "fmt"

// PersistenceError reports a failed file or store write for a run phase.
type PersistenceError struct {
	Phase  string
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s to %s: %v", e.Phase, e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
