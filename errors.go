// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tilegrid structured error types
package tilegrid

import (
	"errors"
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Invalid argument errors
	ErrTypeInvalidArg ErrorType = iota
	// Operand shapes incompatible for multiplication
	ErrTypeDimensionMismatch
	// Kernel execution errors
	ErrTypeExecution
	// Thread-pool task failures
	ErrTypeWorkerFailure
	// Numerical errors
	ErrTypeNumerical
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tilegrid %s error in %s: %s (caused by: %v)",
			e.Type, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("tilegrid %s error in %s: %s", e.Type, e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same type. Sentinels only
// carry a type, so errors.Is(err, ErrWorkerFailure) matches any worker failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return t.Type == e.Type
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeDimensionMismatch:
		return "DimensionMismatch"
	case ErrTypeExecution:
		return "Execution"
	case ErrTypeWorkerFailure:
		return "WorkerFailure"
	case ErrTypeNumerical:
		return "Numerical"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &Error{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// NewDimensionMismatchError reports incompatible operand shapes. Both
// effective dimensions end up in the message.
func NewDimensionMismatchError(op string, aWidth, bHeight int) error {
	return &Error{
		Type: ErrTypeDimensionMismatch,
		Op:   op,
		Message: fmt.Sprintf("incompatible matrix width and height A.width=%d while B.height=%d",
			aWidth, bHeight),
	}
}

// NewExecutionError creates an execution error
func NewExecutionError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeExecution,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewWorkerFailureError wraps the first failure observed in a pool batch
func NewWorkerFailureError(op string, task int, err error) error {
	return &Error{
		Type:    ErrTypeWorkerFailure,
		Op:      op,
		Message: fmt.Sprintf("task %d failed", task),
		Err:     err,
	}
}

// NewNumericalError reports a result that is not a finite number
func NewNumericalError(op string, message string) error {
	return &Error{
		Type:    ErrTypeNumerical,
		Op:      op,
		Message: message,
	}
}

// Common pre-defined errors

var (
	// ErrDimensionMismatch matches any operand shape mismatch
	ErrDimensionMismatch = &Error{Type: ErrTypeDimensionMismatch}

	// ErrWorkerFailure matches any failed pool task
	ErrWorkerFailure = &Error{Type: ErrTypeWorkerFailure}

	// ErrExecution matches any failed kernel launch
	ErrExecution = &Error{Type: ErrTypeExecution}

	// ErrInvalidArg matches any invalid argument
	ErrInvalidArg = &Error{Type: ErrTypeInvalidArg}

	// ErrInvalidRange indicates a launch range with a non-positive extent
	ErrInvalidRange = NewInvalidArgError("Range", "extents must be positive")

	// ErrBarrierBroken is returned to barrier waiters after a peer failed
	ErrBarrierBroken = errors.New("tilegrid: barrier broken")

	// ErrAlreadyExecuted is returned by a second Execute on a single-use pipeline
	ErrAlreadyExecuted = NewInvalidArgError("Execute", "already executed")

	// ErrPoolClosed is returned when work is submitted to a closed pool
	ErrPoolClosed = NewInvalidArgError("Pool", "pool is closed")
)

// IsDimensionMismatch checks if an error is an operand shape mismatch
func IsDimensionMismatch(err error) bool {
	return errors.Is(err, ErrDimensionMismatch)
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	return errors.Is(err, ErrInvalidArg)
}
