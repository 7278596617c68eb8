package nlsql

import (
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/loksabha/internal/sqlguard"
)

// Kind classifies why an attempt failed.
type Kind string

const (
	KindEmptyInput          Kind = "EmptyInput"
	KindGenerationFailed    Kind = "GenerationFailed"
	KindExtractionEmpty     Kind = Kind(sqlguard.KindExtractionEmpty)
	KindSyntaxInvalid       Kind = Kind(sqlguard.KindSyntaxInvalid)
	KindUnsafeOperation     Kind = Kind(sqlguard.KindUnsafeOperation)
	KindStatementChaining   Kind = Kind(sqlguard.KindStatementChaining)
	KindExecutionFailed     Kind = "ExecutionFailed"
	KindSummarizationFailed Kind = "SummarizationFailed"
)

// Stage names a pipeline step.
type Stage string

const (
	StageInput     Stage = "input"
	StageGenerate  Stage = "generate"
	StageValidate  Stage = "validate"
	StageExecute   Stage = "execute"
	StageSummarize Stage = "summarize"
)

// StageError is the terminal error of an attempt.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Unsafe reports whether the statement was rejected as a non-read.
func (e *StageError) Unsafe() bool {
	return e.Kind == KindUnsafeOperation || e.Kind == KindStatementChaining
}

// Reason returns the human readable cause without the stage prefix.
func (e *StageError) Reason() string {
	var gerr *sqlguard.Error
	if errors.As(e.Err, &gerr) {
		return gerr.Reason
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// KindOf extracts the failure kind from err, or "" if err is not a pipeline error.
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	var gerr *sqlguard.Error
	if errors.As(err, &gerr) {
		return Kind(gerr.Kind)
	}
	return ""
}
