// Package vm implements an EVM-compatible execution engine with dual
// metering: computational gas and a per-frame storage-deposit meter. The
// bytecode interpreter itself is an external collaborator driven through the
// Interpreter and Host interfaces.
package vm

import (
	"errors"
	"fmt"
)

// Sentinel execution errors. A frame that fails with one of these is
// discarded; they propagate to the parent as values, never as panics.
var (
	ErrOutOfGas                = errors.New("out of gas")
	ErrOutOfStorage            = errors.New("out of storage")
	ErrOutOfFund               = errors.New("insufficient balance for transfer")
	ErrCallTooDeep             = errors.New("call stack too deep")
	ErrCreateCollision         = errors.New("contract address collision")
	ErrCreateContractLimit     = errors.New("contract code size exceeds limit")
	ErrConflictContractAddress = errors.New("derived address conflicts with reserved system range")
	ErrWriteProtection         = errors.New("write protection")
	ErrStackOverflow           = errors.New("stack overflow")
	ErrStackUnderflow          = errors.New("stack underflow")
	ErrInvalidJump             = errors.New("invalid jump destination")
	ErrExecutionReverted       = errors.New("execution reverted")
	ErrNoPermission            = errors.New("caller is not the maintainer of an unpublished contract")
)

// FatalError marks an unrecoverable failure (cost-calculation overflow,
// backing-store corruption). The root meter is marked failed so the whole
// budget is billed, and the frame is discarded.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal: %v", e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so that exitReason classifies it as Exit-Fatal.
func Fatal(err error) error { return &FatalError{Err: err} }

// ExitKind is the propagation class of a frame's terminal state.
type ExitKind uint8

const (
	// ExitSucceed commits the frame; all metering folds upward.
	ExitSucceed ExitKind = iota
	// ExitRevert rolls back state but preserves output and returns the gas
	// stipend to the parent.
	ExitRevert
	// ExitError discards the frame; no stipend is returned.
	ExitError
	// ExitFatal discards the frame and bills the entire gas budget.
	ExitFatal
)

// ExitReason is the terminal outcome of one call or create frame.
type ExitReason struct {
	Kind ExitKind
	Err  error
}

// ExitSucceeded returns the committed-frame outcome.
func ExitSucceeded() ExitReason { return ExitReason{Kind: ExitSucceed} }

// ExitReverted returns the deliberate-rollback outcome.
func ExitReverted() ExitReason { return ExitReason{Kind: ExitRevert, Err: ErrExecutionReverted} }

// ExitErrored wraps err as a discarding failure.
func ExitErrored(err error) ExitReason { return ExitReason{Kind: ExitError, Err: err} }

// ExitFataled wraps err as an unrecoverable failure.
func ExitFataled(err error) ExitReason { return ExitReason{Kind: ExitFatal, Err: err} }

func (r ExitReason) IsSucceed() bool { return r.Kind == ExitSucceed }
func (r ExitReason) IsRevert() bool  { return r.Kind == ExitRevert }
func (r ExitReason) IsError() bool   { return r.Kind == ExitError }
func (r ExitReason) IsFatal() bool   { return r.Kind == ExitFatal }

// String implements fmt.Stringer.
func (r ExitReason) String() string {
	switch r.Kind {
	case ExitSucceed:
		return "succeed"
	case ExitRevert:
		return "revert"
	case ExitError:
		return fmt.Sprintf("error: %v", r.Err)
	default:
		return fmt.Sprintf("fatal: %v", r.Err)
	}
}

// exitReason classifies an interpreter result. A nil error is Succeed,
// ErrExecutionReverted is Revert with output preserved, a FatalError is
// Fatal, anything else is Error.
func exitReason(err error) ExitReason {
	if err == nil {
		return ExitSucceeded()
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return ExitFataled(err)
	}
	if errors.Is(err, ErrExecutionReverted) {
		return ExitReverted()
	}
	return ExitErrored(err)
}
