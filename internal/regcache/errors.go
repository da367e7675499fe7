package regcache

import (
	"errors"
	"fmt"
)

// FatalKind classifies a FatalError.
type FatalKind byte

const (
	// FatalExhausted means no physical register was free or evictable.
	FatalExhausted FatalKind = iota + 1
	// FatalTempsExhausted means all scratch temporaries are taken.
	FatalTempsExhausted
	// FatalUnreleasedLock means Flush found a spill-locked register.
	FatalUnreleasedLock
	// FatalImmediate means an operation was asked to map, store or discard an immediate.
	FatalImmediate
	// FatalPackRetry means PackRegisters could not pack its operands even after writing them back.
	FatalPackRetry
	// FatalInvalidRegister means a physical or virtual register outside the target was named.
	FatalInvalidRegister
	// FatalNotPacked means a packed-only operation was applied to a register that is not packed.
	FatalNotPacked
	// FatalInvariant means verification found the table inconsistent.
	FatalInvariant
)

// String implements fmt.Stringer.
func (k FatalKind) String() string {
	switch k {
	case FatalExhausted:
		return "registers exhausted"
	case FatalTempsExhausted:
		return "temps exhausted"
	case FatalUnreleasedLock:
		return "unreleased lock"
	case FatalImmediate:
		return "immediate"
	case FatalPackRetry:
		return "pack retry"
	case FatalInvalidRegister:
		return "invalid register"
	case FatalNotPacked:
		return "not packed"
	case FatalInvariant:
		return "invariant"
	}
	return "unknown"
}

// FatalError is the panic value of allocator bugs and broken caller contracts. Compilation of the current
// block must be abandoned when one is raised. Use Recover to turn it into an error at the compilation
// boundary.
type FatalError struct {
	Kind    FatalKind
	Message string
	// Err is the underlying cause, an *InvariantError for FatalInvariant.
	Err error
}

// Error implements error.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fpu register cache: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatalf(kind FatalKind, format string, args ...interface{}) {
	panic(&FatalError{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Recover stores a *FatalError raised in the calling function into *err. Other panics are propagated.
// It must be deferred directly:
//
//	func compile(...) (err error) {
//		defer regcache.Recover(&err)
//		...
//	}
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		var fatal *FatalError
		if errors.As(e, &fatal) {
			*err = fatal
			return
		}
	}
	panic(r)
}
