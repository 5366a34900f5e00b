// SPDX-License-Identifier: MIT

// Package linalg provides dense decompositions of device-resident arrays,
// dispatched to the solver library of a device context.
//
// The package provides:
//
//   - Array, a row-major N-d array living in a device.Buffer, and
//     SquareMatrix, its validated N×N view.
//   - Validators (ValidateDeviceArray, ValidateRank2, ValidateSquare) shared by
//     every decomposition.
//   - ResolveDType, which maps any real element type to float32 or float64.
//   - Solver.Cholesky, returning the lower-triangular factor L of a
//     symmetric positive definite matrix, and Tril, the triangular mask.
//
// Errors are grouped under four roots (ErrType, ErrShape, ErrCapability,
// ErrNumerical); match them with errors.Is. A Solver resolves the native
// solver capability once and borrows the context's handle, so a Solver and
// its context must not be shared between goroutines without locking.
//
// Each call to Cholesky increments lvgpu_linalg_cholesky_total and, on
// success, observes lvgpu_linalg_cholesky_seconds in the default Prometheus
// registry.
package linalg
