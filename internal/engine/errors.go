package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/snipd/internal/symbols"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeCollision indicates a fragment would redeclare an existing name.
	ErrCodeCollision ErrorCode = "COLLISION"

	// ErrCodeExecution indicates the interpreter reported an ordinary error.
	ErrCodeExecution ErrorCode = "EXECUTION"
)

// ErrNoRevision is returned when restoring a revision index that does not exist.
var ErrNoRevision = errors.New("no such revision")

// Strategy names how a code fragment was run.
type Strategy string

const (
	StrategyRegister Strategy = "register"
	StrategyProduce  Strategy = "produce"
)

// CollisionError is returned when preflight blocks a fragment.
// It is never retried: the snippet has already been disabled.
type CollisionError struct {
	SnippetID string
	Symbols   []symbols.Symbol
}

// Error implements the error interface.
func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: snippet %s declares already existing %s",
		ErrCodeCollision, e.SnippetID, e.list())
}

// LogMessage is the error log text for the collision.
func (e *CollisionError) LogMessage() string {
	return fmt.Sprintf(
		"Execution blocked: snippet declares already existing %s. Snippet was disabled to prevent a fatal error.",
		e.list(),
	)
}

func (e *CollisionError) list() string {
	parts := make([]string, len(e.Symbols))
	for i, s := range e.Symbols {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// ExecutionError wraps an ordinary failure reported while running a
// fragment. The snippet stays enabled.
type ExecutionError struct {
	SnippetID string
	Strategy  Strategy
	Err       error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: snippet %s (%s): %v", ErrCodeExecution, e.SnippetID, e.Strategy, e.Err)
}

// Unwrap returns the interpreter error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// LogMessage is the error log text for the failure.
func (e *ExecutionError) LogMessage() string {
	if e.Strategy == StrategyRegister {
		return "Hook-based execution failed: " + e.Err.Error()
	}
	return "Execution failed: " + e.Err.Error()
}

// IsCollision returns true if err is or wraps a *CollisionError.
func IsCollision(err error) bool {
	var ce *CollisionError
	return errors.As(err, &ce)
}

// IsExecution returns true if err is or wraps an *ExecutionError.
func IsExecution(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
