// Package dberrors implements the structured error taxonomy the engine
// uses to classify failures for callers: is this the caller's fault, is it
// worth retrying, does it mean the process needs attention, or is data on
// disk suspect.
package dberrors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Category classifies an error by the handling strategy it implies.
type Category int

const (
	// Budget covers per-query resource cap violations: memory, instructions,
	// wall time, result cardinality, or cooperative abort.
	Budget Category = iota

	// Validation covers malformed plans: unknown table/column, type
	// mismatch, arity mismatch. Caused by the caller, never by engine state.
	Validation

	// IO covers file open/read/write/fsync failures.
	IO

	// Corruption covers bad page magic, bad WAL CRC, out-of-range record
	// lengths — evidence that on-disk state does not match what wrote it.
	Corruption

	// Concurrency covers write-in-read-only-transaction and
	// shutdown-in-progress conditions.
	Concurrency
)

func (c Category) String() string {
	switch c {
	case Budget:
		return "Budget"
	case Validation:
		return "Validation"
	case IO:
		return "IO"
	case Corruption:
		return "Corruption"
	case Concurrency:
		return "Concurrency"
	default:
		return "Unknown"
	}
}

// StatusClass returns the HTTP-style status class an excluded HTTP adapter
// should map this category to. The core never imports net/http; this is
// just the contract the adapter consumes.
func (c Category) StatusClass() int {
	switch c {
	case Budget:
		return 429
	case Validation:
		return 400
	case Concurrency:
		return 503
	case IO, Corruption:
		return 500
	default:
		return 500
	}
}

// Error is a structured engine error carrying enough context to diagnose
// a failure without re-deriving it from a bare string.
type Error struct {
	Code      string   // stable identifier, e.g. "WAL_CRC_MISMATCH"
	Category  Category
	Message   string
	Operation string // e.g. "InsertTuple", "SeqScan", "CheckpointManager.checkpoint"
	Component string // e.g. "BufferPool", "WAL", "ExecutionContext"
	Cause     error
	Stack     []uintptr
}

// New creates an Error with no wrapped cause.
func New(category Category, code, message string) *Error {
	return &Error{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Wrap attaches engine context to an existing error. If err is already an
// *Error, Operation/Component are filled in only where still empty so the
// innermost call site keeps credit.
func Wrap(err error, category Category, code, operation, component string) *Error {
	if err == nil {
		return nil
	}

	if e, ok := err.(*Error); ok {
		if e.Operation == "" {
			e.Operation = operation
		}
		if e.Component == "" {
			e.Component = component
		}
		return e
	}

	return &Error{
		Code:      code,
		Category:  category,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))
	if e.Operation != "" {
		b.WriteString(fmt.Sprintf(" (operation: %s", e.Operation))
		if e.Component != "" {
			b.WriteString(fmt.Sprintf(", component: %s", e.Component))
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(" caused by: %v", e.Cause))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// FormatStack renders the captured call stack for diagnostics.
func (e *Error) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)
	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		b.WriteString(fmt.Sprintf("  %s\n    %s:%d\n", f.Function, f.File, f.Line))
		if !more {
			break
		}
	}
	return b.String()
}

// CategoryOf returns the Category of err if it is (or wraps) an *Error,
// otherwise IO — the conservative default for an error this package didn't
// originate.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return IO
}
