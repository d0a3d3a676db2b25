package txn

import (
	"errors"
	"fmt"
)

// Build invariant violations.
var (
	// ErrEmptyInstructionSet is returned when building with no instructions.
	ErrEmptyInstructionSet = errors.New("empty instruction set")

	// ErrSignatureCount is returned when signing produced the wrong
	// number of signatures for the message's required signers.
	ErrSignatureCount = errors.New("signature count does not match required signers")
)

// BuildError reports a transaction construction failure.
type BuildError struct {
	Reason string
	err    error // wrapped sentinel or cause
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build transaction: %s", e.Reason)
}

func (e *BuildError) Unwrap() error {
	return e.err
}

func buildErr(sentinel error, format string, args ...interface{}) *BuildError {
	return &BuildError{Reason: fmt.Sprintf(format, args...), err: sentinel}
}
