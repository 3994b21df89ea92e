package pipeline

import "fmt"

// StageError reports the stage that aborted a run. Err is the LLM call or
// schema failure that caused it.
type StageError struct {
	Stage StageID
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
