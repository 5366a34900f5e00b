// SPDX-License-Identifier: MIT
// Package: linalg
//
// Purpose:
//   - One canonical source for the input checks shared by the decompositions.
//   - Each validator accepts any number of arrays and stops at the first
//     violation; the error names the check and the offending rank or shape.
//
// Note:
//   - The composite order is fixed: device array → rank 2 → square.
//   - ValidateRank2 and ValidateSquare reject nil but do not check for a
//     released buffer; run ValidateDeviceArray first.

package linalg

import "fmt"

// ValidateDeviceArray – Ensures every array is non-nil, unreleased and
// backed by a device buffer.
//
// Inputs: any number of arrays; none is a no-op.
// Returns: nil or ErrNotDeviceArray (an ErrType) naming the argument index.
// Complexity: O(len(arrays)).
func ValidateDeviceArray(arrays ...*Array) error {
	for i, a := range arrays {
		if a == nil || a.ctx == nil || a.buf == nil {
			return linalgErrorf(opDeviceArr, fmt.Errorf("%w: argument %d is %v", ErrNotDeviceArray, i, a))
		}
	}
	return nil
}

// ValidateRank2 – Ensures every array is two-dimensional.
//
// Implementation: nil arrays fail as ErrNotDeviceArray; released arrays keep
// their shape and are checked like live ones.
// Returns: nil, ErrNotDeviceArray, or ErrBadRank (an ErrShape) naming the rank.
// Complexity: O(len(arrays)).
func ValidateRank2(arrays ...*Array) error {
	for i, a := range arrays {
		if a == nil {
			return linalgErrorf(opRank2, fmt.Errorf("%w: argument %d is nil", ErrNotDeviceArray, i))
		}
		if nd := a.Ndim(); nd != 2 {
			return linalgErrorf(opRank2, fmt.Errorf("%w: got %d-dimensional array", ErrBadRank, nd))
		}
	}
	return nil
}

// ValidateSquare – Ensures the last two dimensions of every array are equal.
//
// Returns: nil, ErrNotDeviceArray for nil arrays, ErrBadRank for arrays with
// fewer than two dimensions, or ErrNonSquare (an ErrShape) naming the shape.
// Complexity: O(len(arrays)).
func ValidateSquare(arrays ...*Array) error {
	for i, a := range arrays {
		if a == nil {
			return linalgErrorf(opSquare, fmt.Errorf("%w: argument %d is nil", ErrNotDeviceArray, i))
		}
		nd := a.Ndim()
		if nd < 2 {
			return linalgErrorf(opSquare, fmt.Errorf("%w: got %d-dimensional array", ErrBadRank, nd))
		}
		if a.shape[nd-1] != a.shape[nd-2] {
			return linalgErrorf(opSquare, fmt.Errorf("%w: got shape %v", ErrNonSquare, a.shape))
		}
	}
	return nil
}

// SquareMatrix is an N×N device array that has passed the validators.
type SquareMatrix struct {
	arr *Array
}

// NewSquareMatrix validates a (device array, rank 2, square) and wraps it.
// The matrix shares a's buffer.
func NewSquareMatrix(a *Array) (*SquareMatrix, error) {
	if err := ValidateDeviceArray(a); err != nil {
		return nil, linalgErrorf(opNewSquare, err)
	}
	if err := ValidateRank2(a); err != nil {
		return nil, linalgErrorf(opNewSquare, err)
	}
	if err := ValidateSquare(a); err != nil {
		return nil, linalgErrorf(opNewSquare, err)
	}
	return &SquareMatrix{arr: a}, nil
}

// N is the order of the matrix.
func (m *SquareMatrix) N() int { return m.arr.shape[0] }

// Array returns the underlying array.
func (m *SquareMatrix) Array() *Array { return m.arr }
