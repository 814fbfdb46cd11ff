package pipeline

import "fmt"

// Stage is a state of the run.
type Stage string

// Run stages, in execution order.
const (
	StageStart         Stage = "START"
	StageReadInput     Stage = "READ_INPUT"
	StageCompilePrompt Stage = "COMPILE_PROMPT"
	StageGenerate      Stage = "GENERATE"
	StageValidate      Stage = "VALIDATE"
	StagePersistStore  Stage = "PERSIST_STORE"
	StageCompileDeck   Stage = "COMPILE_DECK"
	StageExportDeck    Stage = "EXPORT_DECK"
	StageDone          Stage = "DONE"
	StageFailed        Stage = "FAILED"
)

// StageError records the stage at which a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}
