// SPDX-License-Identifier: MIT

package device

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/katalvlaran/lvgpu/dtype"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// Positions of the ?potrf arguments, used for negative status codes.
const (
	argFill = iota + 1
	argN
	argA
	argLda
	argWork
	argLwork
	argInfo
)

// hostSolver runs the unblocked Cholesky factorization on host memory.
// Matrices are interpreted column-major with leading dimension lda, so the
// status codes and the touched triangle match the vendor library exactly.
type hostSolver struct {
	ctx *HostContext
}

var _ Solver = (*hostSolver)(nil)

// PotrfBufferSize returns n: the workspace holds one gathered column.
func (s *hostSolver) PotrfBufferSize(fill FillMode, n int, a Buffer, lda int) (int, error) {
	ab, err := s.ctx.own("PotrfBufferSize", a)
	if err != nil {
		return 0, err
	}
	if arg := checkPotrfArgs(fill, n, ab, lda); arg != 0 {
		return 0, deviceErrorf("PotrfBufferSize",
			fmt.Errorf("%w: argument %d", ErrInvalidParameter, arg))
	}
	return n, nil
}

// Potrf factors the n×n matrix in a in place and writes the status to info.
// Invalid arguments are reported through info as -position, as LAPACK does;
// only an unusable info buffer or foreign buffers produce a returned error.
func (s *hostSolver) Potrf(fill FillMode, n int, a Buffer, lda int, work Buffer, lwork int, info Buffer) error {
	ib, err := s.ctx.own("Potrf", info)
	if err != nil {
		return err
	}
	status, ok := ib.data.([]int32)
	if !ok || len(status) < 1 {
		return deviceErrorf("Potrf",
			fmt.Errorf("%w: argument %d: want a one-element int32 buffer", ErrInvalidParameter, argInfo))
	}
	ab, err := s.ctx.own("Potrf", a)
	if err != nil {
		return err
	}
	wb, err := s.ctx.own("Potrf", work)
	if err != nil {
		return err
	}

	if arg := checkPotrfArgs(fill, n, ab, lda); arg != 0 {
		status[0] = int32(-arg)
		return nil
	}
	if wb.dt != ab.dt || wb.n < lwork {
		status[0] = -argWork
		return nil
	}
	if lwork < n {
		status[0] = -argLwork
		return nil
	}

	switch data := ab.data.(type) {
	case []float32:
		status[0] = int32(kernel32.potf2(fill, n, data, lda, wb.data.([]float32)))
	case []float64:
		status[0] = int32(kernel64.potf2(fill, n, data, lda, wb.data.([]float64)))
	}
	return nil
}

// checkPotrfArgs returns the position of the first invalid argument, or 0.
func checkPotrfArgs(fill FillMode, n int, a *hostBuffer, lda int) int {
	switch {
	case fill != FillLower && fill != FillUpper:
		return argFill
	case n < 0:
		return argN
	case a.dt != dtype.Float32 && a.dt != dtype.Float64:
		return argA
	case lda < max(1, n):
		return argLda
	case n > 0 && !fitsColumnMajor(a.n, n, lda):
		return argA
	}
	return 0
}

// fitsColumnMajor reports whether size elements hold an n×n column-major
// matrix with leading dimension lda, i.e. (n-1)*lda+n <= size, without
// overflowing int.
func fitsColumnMajor(size, n, lda int) bool {
	if size < n {
		return false
	}
	return n == 1 || lda <= (size-n)/(n-1)
}

type potf2Kernel[T float32 | float64] struct {
	dot   func(n int, x []T, incX int, y []T, incY int) T
	gemv  func(tA blas.Transpose, m, n int, alpha T, a []T, lda int, x []T, incX int, beta T, y []T, incY int)
	scal  func(n int, alpha T, x []T, incX int)
	sqrt  func(T) T
	isNaN func(T) bool
}

var (
	kernel32 = potf2Kernel[float32]{
		dot:   blas32.Implementation().Sdot,
		gemv:  blas32.Implementation().Sgemv,
		scal:  blas32.Implementation().Sscal,
		sqrt:  math32.Sqrt,
		isNaN: math32.IsNaN,
	}
	kernel64 = potf2Kernel[float64]{
		dot:   blas64.Implementation().Ddot,
		gemv:  blas64.Implementation().Dgemv,
		scal:  blas64.Implementation().Dscal,
		sqrt:  math.Sqrt,
		isNaN: math.IsNaN,
	}
)

// potf2 factors a column-major matrix. A column-major upper triangle is the
// row-major lower triangle of the same storage, so FillUpper runs the
// row-major A = L*Lᵀ sweep and FillLower the row-major A = Uᵀ*U sweep.
// It returns 0 or the order of the first leading minor that is not positive
// definite; the offending diagonal entry is left holding the reduced pivot.
func (k potf2Kernel[T]) potf2(fill FillMode, n int, a []T, lda int, work []T) int {
	if fill == FillUpper {
		return k.rowLower(n, a, lda)
	}
	return k.rowUpper(n, a, lda, work)
}

func (k potf2Kernel[T]) rowLower(n int, a []T, lda int) int {
	for j := 0; j < n; j++ {
		ajj := a[j*lda+j]
		if j != 0 {
			ajj -= k.dot(j, a[j*lda:], 1, a[j*lda:], 1)
		}
		if ajj <= 0 || k.isNaN(ajj) {
			a[j*lda+j] = ajj
			return j + 1
		}
		ajj = k.sqrt(ajj)
		a[j*lda+j] = ajj
		if j < n-1 {
			k.gemv(blas.NoTrans, n-j-1, j, -1, a[(j+1)*lda:], lda, a[j*lda:], 1, 1, a[(j+1)*lda+j:], lda)
			k.scal(n-j-1, 1/ajj, a[(j+1)*lda+j:], lda)
		}
	}
	return 0
}

func (k potf2Kernel[T]) rowUpper(n int, a []T, lda int, work []T) int {
	for j := 0; j < n; j++ {
		// column j above the diagonal is strided; gather it
		col := work[:j]
		for i := range col {
			col[i] = a[i*lda+j]
		}
		ajj := a[j*lda+j]
		if j != 0 {
			ajj -= k.dot(j, col, 1, col, 1)
		}
		if ajj <= 0 || k.isNaN(ajj) {
			a[j*lda+j] = ajj
			return j + 1
		}
		ajj = k.sqrt(ajj)
		a[j*lda+j] = ajj
		if j < n-1 {
			k.gemv(blas.Trans, j, n-j-1, -1, a[j+1:], lda, col, 1, 1, a[j*lda+j+1:], 1)
			k.scal(n-j-1, 1/ajj, a[j*lda+j+1:], 1)
		}
	}
	return 0
}
