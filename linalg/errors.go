// SPDX-License-Identifier: MIT
// Package linalg: sentinel error set.
// Errors fall into four classes, each with a root sentinel. Every specific
// sentinel wraps its class root, so callers may match either level with
// errors.Is:
//
//	ErrType       ⊃ ErrNotDeviceArray, ErrUnsupportedDType, ErrForeignContext
//	ErrShape      ⊃ ErrBadRank, ErrNonSquare
//	ErrCapability
//	ErrNumerical  ⊃ ErrNotPositiveDefinite, ErrSolverParameter
//
// Numerical failures are returned as *NotPositiveDefiniteError and
// *SolverParameterError, which carry the solver status.

package linalg

import (
	"errors"
	"fmt"
)

var (
	// ErrType is the root of input representation errors.
	ErrType = errors.New("linalg: type error")

	// ErrNotDeviceArray is returned for nil, released or unbacked arrays.
	ErrNotDeviceArray = fmt.Errorf("%w: not a device array", ErrType)

	// ErrUnsupportedDType is returned for element types with no real
	// floating-point promotion (complex, invalid).
	ErrUnsupportedDType = fmt.Errorf("%w: unsupported dtype", ErrType)

	// ErrForeignContext is returned when an array lives on another device
	// context than the solver.
	ErrForeignContext = fmt.Errorf("%w: array belongs to another device context", ErrType)

	// ErrShape is the root of rank and dimension errors.
	ErrShape = errors.New("linalg: shape error")

	// ErrBadRank is returned when a two-dimensional array is required.
	ErrBadRank = fmt.Errorf("%w: array must be two-dimensional", ErrShape)

	// ErrNonSquare is returned when the last two dimensions differ.
	ErrNonSquare = fmt.Errorf("%w: last two dimensions must be square", ErrShape)

	// ErrCapability is returned when the dense solver library is not usable
	// in this build or on this device. It is checked before any device work.
	ErrCapability = errors.New("linalg: dense solver unavailable")

	// ErrNumerical is the root of errors reported by the solver status.
	ErrNumerical = errors.New("linalg: numerical error")

	// ErrNotPositiveDefinite is matched by *NotPositiveDefiniteError.
	ErrNotPositiveDefinite = fmt.Errorf("%w: matrix is not positive definite", ErrNumerical)

	// ErrSolverParameter is matched by *SolverParameterError and by solver
	// calls that reject their arguments outright.
	ErrSolverParameter = fmt.Errorf("%w: invalid solver parameter", ErrNumerical)
)

// NotPositiveDefiniteError reports a positive solver status: the leading
// minor of order Order (1-based) is not positive definite.
type NotPositiveDefiniteError struct {
	Order int
}

func (e *NotPositiveDefiniteError) Error() string {
	return fmt.Sprintf("linalg: matrix is not positive definite: leading minor of order %d", e.Order)
}

func (e *NotPositiveDefiniteError) Unwrap() error { return ErrNotPositiveDefinite }

// SolverParameterError reports a negative solver status; -Status is the
// position of the rejected argument.
type SolverParameterError struct {
	Status int
}

func (e *SolverParameterError) Error() string {
	return fmt.Sprintf("linalg: solver rejected argument %d (status %d)", -e.Status, e.Status)
}

func (e *SolverParameterError) Unwrap() error { return ErrSolverParameter }

// Operation tags for uniform error wrapping.
const (
	opNewSolver  = "NewSolver"
	opCholesky   = "Cholesky"
	opTril       = "Tril"
	opAsType     = "AsType"
	opEmpty      = "Empty"
	opFromSlice  = "FromSlice"
	opToHost     = "ToHost"
	opNewSquare  = "NewSquareMatrix"
	opResolve    = "ResolveDType"
	opDeviceArr  = "ValidateDeviceArray"
	opRank2      = "ValidateRank2"
	opSquare     = "ValidateSquare"
	opStatusRead = "Cholesky: status"
)

// linalgErrorf wraps err with an operation tag, preserving it for errors.Is/As.
func linalgErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
