package triage

import "fmt"

// Stage names the pipeline step where a triage call failed.
type Stage string

const (
	StageRetrieve Stage = "retrieve"
	StageDecide   Stage = "decide"
	StageAppend   Stage = "append"
)

// TriageError wraps a pipeline failure with the stage that produced it.
// The cause is reachable through errors.Is/As.
type TriageError struct {
	Stage Stage
	Err   error
}

func (e *TriageError) Error() string {
	return fmt.Sprintf("triage failed at %s: %v", e.Stage, e.Err)
}

func (e *TriageError) Unwrap() error {
	return e.Err
}
