// SPDX-License-Identifier: MIT

package linalg

import (
	"errors"
	"fmt"
	"time"

	"github.com/katalvlaran/lvgpu/device"
	"github.com/katalvlaran/lvgpu/dtype"
	"github.com/katalvlaran/lvgpu/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Solver dispatches dense factorizations to the solver of one device context.
// The solver capability is resolved once, in NewSolver. A Solver borrows the
// context's native handle and is not safe for concurrent use.
type Solver struct {
	ctx    device.Context
	native device.Solver
	capErr error
	logger *zap.Logger
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger for debug traces. Defaults to the process logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSolver binds a solver to ctx and resolves the native solver capability.
// An unavailable solver library is not an error here; it is reported by
// Available and, at call time, as ErrCapability.
//
// Errors: ErrCapability for a nil context.
func NewSolver(ctx device.Context, opts ...Option) (*Solver, error) {
	if ctx == nil {
		return nil, linalgErrorf(opNewSolver, fmt.Errorf("%w: nil device context", ErrCapability))
	}
	s := &Solver{ctx: ctx, logger: log.Logger()}
	for _, opt := range opts {
		opt(s)
	}
	s.native, s.capErr = ctx.Solver()
	if s.capErr != nil {
		s.native = nil
		s.logger.Debug("dense solver unavailable",
			zap.String("backend", ctx.Backend().Name),
			zap.Error(s.capErr))
	}
	return s, nil
}

// Available reports whether the native solver can be called.
func (s *Solver) Available() bool { return s.native != nil }

// Cholesky computes the lower-triangular factor L of the symmetric positive
// definite matrix a, such that a = L·Lᵀ. Only the lower triangle of a is
// read. a is not modified.
//
// Implementation:
//   - Stage 1: check the solver capability, then the input (device array,
//     rank 2, square, same context as the solver).
//   - Stage 2: copy a into a working array of the resolved precision
//     (see ResolveDType).
//   - Stage 3: query the workspace size, allocate workspace and a status
//     scalar, and factor in place with the upper fill mode. Column-major
//     upper is row-major lower, so the factor lands in the lower triangle.
//   - Stage 4: read the status back and classify it.
//   - Stage 5: zero the strict upper triangle, which still holds input data.
//
// Returns:
//   - a new N×N array of the resolved dtype; N = 0 yields an empty array.
//
// Errors:
//   - ErrCapability when the native solver is unavailable.
//   - ErrType / ErrShape from the validators and ResolveDType.
//   - *NotPositiveDefiniteError (ErrNotPositiveDefinite) for status > 0.
//   - *SolverParameterError (ErrSolverParameter) for status < 0.
//
// Workspace and status buffers are always released; the working array is
// released on every failure.
func (s *Solver) Cholesky(a *Array) (*Array, error) {
	start := time.Now()
	label := "unknown"
	if a != nil {
		if dt, err := ResolveDType(a.dtype); err == nil {
			label = dt.String()
		}
	}
	out, err := s.cholesky(a)
	observeCholesky(label, err, time.Since(start))
	if err != nil {
		return nil, linalgErrorf(opCholesky, err)
	}
	return out, nil
}

func (s *Solver) cholesky(a *Array) (_ *Array, err error) {
	if s.native == nil {
		return nil, fmt.Errorf("%w: %w", ErrCapability, s.capErr)
	}
	m, err := NewSquareMatrix(a)
	if err != nil {
		return nil, err
	}
	if a.ctx != s.ctx {
		return nil, ErrForeignContext
	}
	dt, err := ResolveDType(a.dtype)
	if err != nil {
		return nil, err
	}
	x, err := a.AsType(dt)
	if err != nil {
		return nil, err
	}
	n := m.N()
	if n == 0 {
		return x, nil
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, x.Close())
		}
	}()

	lwork, err := s.native.PotrfBufferSize(device.FillUpper, n, x.buf, n)
	if err != nil {
		return nil, solverCallError(err)
	}
	work, err := s.ctx.NewBuffer(lwork, dt)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, work.Close()) }()
	info, err := s.ctx.NewBuffer(1, dtype.Int32)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, info.Close()) }()

	s.logger.Debug("cholesky",
		zap.Int("n", n),
		zap.Stringer("dtype", dt),
		zap.Int("lwork", lwork),
		zap.String("backend", s.ctx.Backend().Name))

	if err = s.native.Potrf(device.FillUpper, n, x.buf, n, work, lwork, info); err != nil {
		return nil, solverCallError(err)
	}
	if err = s.ctx.Synchronize(); err != nil {
		return nil, err
	}
	status := make([]int32, 1)
	if err = info.Download(status); err != nil {
		return nil, linalgErrorf(opStatusRead, err)
	}
	if err = classifyStatus(status[0]); err != nil {
		s.logger.Debug("cholesky failed", zap.Int("n", n), zap.Int32("status", status[0]))
		return nil, err
	}
	if err = Tril(x, 0); err != nil {
		return nil, err
	}
	return x, nil
}

// classifyStatus maps a LAPACK-style status to nil or a numerical error.
func classifyStatus(status int32) error {
	switch {
	case status > 0:
		return &NotPositiveDefiniteError{Order: int(status)}
	case status < 0:
		return &SolverParameterError{Status: int(status)}
	}
	return nil
}

// solverCallError classifies a failed solver entry point: rejected arguments
// are parameter errors, anything else is passed through.
func solverCallError(err error) error {
	if errors.Is(err, device.ErrInvalidParameter) {
		return fmt.Errorf("%w: %w", ErrSolverParameter, err)
	}
	return err
}

// Cholesky is NewSolver(ctx) followed by Solver.Cholesky.
func Cholesky(ctx device.Context, a *Array) (*Array, error) {
	s, err := NewSolver(ctx)
	if err != nil {
		return nil, err
	}
	return s.Cholesky(a)
}

// Tril zeroes, in place, every element of the M×N array x strictly above its
// k-th diagonal: element (u, v) is kept iff v-u <= k. k = 0 is the main
// diagonal, k < 0 lies below it and k > 0 above it.
//
// Errors: ErrNotDeviceArray, ErrBadRank.
func Tril(x *Array, k int) error {
	if err := ValidateDeviceArray(x); err != nil {
		return linalgErrorf(opTril, err)
	}
	if err := ValidateRank2(x); err != nil {
		return linalgErrorf(opTril, err)
	}
	if err := x.ctx.Tril(x.buf, x.shape[0], x.shape[1], k); err != nil {
		return linalgErrorf(opTril, err)
	}
	return nil
}
