// SPDX-License-Identifier: MIT
package linalg_test

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/katalvlaran/lvgpu/device"
	"github.com/katalvlaran/lvgpu/dtype"
	"github.com/katalvlaran/lvgpu/linalg"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"
)

func hostContext(t *testing.T) *device.HostContext {
	t.Helper()
	ctx, err := device.NewHostBackend().NewHostContext(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

// spd returns a random symmetric positive definite n×n matrix B·Bᵀ + n·I.
func spd(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	b := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			b.Set(i, j, rng.Float64()*2-1)
		}
	}
	var a mat.Dense
	a.Mul(b, b.T())
	for i := 0; i < n; i++ {
		a.Set(i, i, a.At(i, i)+float64(n))
	}
	return a.RawMatrix().Data
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func TestCholeskyReconstructs(t *testing.T) {
	ctx := hostContext(t)
	solver, err := linalg.NewSolver(ctx)
	require.NoError(t, err)
	require.True(t, solver.Available())

	for _, n := range []int{1, 2, 3, 5, 16, 33} {
		data := spd(n, int64(n))
		for _, dt := range []dtype.DType{dtype.Float32, dtype.Float64} {
			var in *linalg.Array
			if dt == dtype.Float32 {
				in, err = linalg.FromSlice(ctx, toFloat32(data), n, n)
			} else {
				in, err = linalg.FromSlice(ctx, data, n, n)
			}
			require.NoError(t, err)

			l, err := solver.Cholesky(in)
			require.NoErrorf(t, err, "n=%d dtype=%s", n, dt)
			assert.Equal(t, []int{n, n}, l.Shape())
			assert.Equal(t, dt, l.DType())

			got, err := l.Float64s()
			require.NoError(t, err)
			for u := 0; u < n; u++ {
				for v := u + 1; v < n; v++ {
					require.Zerof(t, got[u*n+v], "upper element (%d,%d) n=%d", u, v, n)
				}
			}

			lm := mat.NewDense(n, n, got)
			var rec mat.Dense
			rec.Mul(lm, lm.T())
			tol := 1e-10
			if dt == dtype.Float32 {
				tol = 1e-4 * float64(n)
			}
			assert.Truef(t, mat.EqualApprox(&rec, mat.NewDense(n, n, data), tol),
				"L·Lᵀ != A for n=%d dtype=%s", n, dt)

			var chol mat.Cholesky
			require.True(t, chol.Factorize(mat.NewSymDense(n, append([]float64(nil), data...))))
			var want mat.TriDense
			chol.LTo(&want)
			assert.Truef(t, mat.EqualApprox(lm, &want, tol), "factor differs from gonum for n=%d dtype=%s", n, dt)

			require.NoError(t, l.Close())
			require.NoError(t, in.Close())
		}
	}
	assert.Equal(t, 0, ctx.LiveBuffers())
}

func TestCholeskyScalar(t *testing.T) {
	ctx := hostContext(t)
	in, err := linalg.FromSlice(ctx, []float64{9}, 1, 1)
	require.NoError(t, err)

	l, err := linalg.Cholesky(ctx, in)
	require.NoError(t, err)
	got, err := l.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, got)
}

func TestCholeskyEmpty(t *testing.T) {
	ctx := hostContext(t)
	in, err := linalg.Empty(ctx, dtype.Int8, 0, 0)
	require.NoError(t, err)

	l, err := linalg.Cholesky(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, l.Shape())
	assert.Equal(t, dtype.Float32, l.DType())
	assert.Equal(t, 0, l.Size())
}

func TestCholeskyLeavesInputAndUpperTriangle(t *testing.T) {
	ctx := hostContext(t)
	// upper triangle is garbage; only the lower triangle is read
	data := []float64{
		4, 99, 99,
		12, 37, 99,
		-16, -43, 98,
	}
	in, err := linalg.FromSlice(ctx, append([]float64(nil), data...), 3, 3)
	require.NoError(t, err)

	l, err := linalg.Cholesky(ctx, in)
	require.NoError(t, err)
	got, err := l.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{
		2, 0, 0,
		6, 1, 0,
		-8, 5, 3,
	}, got)

	orig, err := in.Float64s()
	require.NoError(t, err)
	assert.Equal(t, data, orig)
}

func TestCholeskyDeterministic(t *testing.T) {
	ctx := hostContext(t)
	in, err := linalg.FromSlice(ctx, spd(12, 7), 12, 12)
	require.NoError(t, err)

	first, err := linalg.Cholesky(ctx, in)
	require.NoError(t, err)
	second, err := linalg.Cholesky(ctx, in)
	require.NoError(t, err)

	a, err := first.Float64s()
	require.NoError(t, err)
	b, err := second.Float64s()
	require.NoError(t, err)
	require.Len(t, b, len(a))
	for i := range a {
		require.Equal(t, math.Float64bits(a[i]), math.Float64bits(b[i]), "element %d", i)
	}
}

func TestCholeskyDTypeResolution(t *testing.T) {
	ctx := hostContext(t)

	tests := []struct {
		name string
		in   func() (*linalg.Array, error)
		want dtype.DType
	}{
		{"int16", func() (*linalg.Array, error) { return linalg.FromSlice(ctx, []int16{4, 2, 2, 5}, 2, 2) }, dtype.Float32},
		{"uint8", func() (*linalg.Array, error) { return linalg.FromSlice(ctx, []uint8{4, 2, 2, 5}, 2, 2) }, dtype.Float32},
		{"int64", func() (*linalg.Array, error) { return linalg.FromSlice(ctx, []int64{4, 2, 2, 5}, 2, 2) }, dtype.Float64},
		{"uint32", func() (*linalg.Array, error) { return linalg.FromSlice(ctx, []uint32{4, 2, 2, 5}, 2, 2) }, dtype.Float64},
		{"bool", func() (*linalg.Array, error) { return linalg.FromSlice(ctx, []bool{true, false, false, true}, 2, 2) }, dtype.Float32},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, err := tc.in()
			require.NoError(t, err)
			l, err := linalg.Cholesky(ctx, in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, l.DType())

			got, err := l.Float64s()
			require.NoError(t, err)
			if tc.name == "bool" {
				assert.Equal(t, []float64{1, 0, 0, 1}, got)
				return
			}
			// [[4,2],[2,5]] = L·Lᵀ with L = [[2,0],[1,2]]
			assert.InDeltaSlice(t, []float64{2, 0, 1, 2}, got, 1e-6)
		})
	}
}

func TestCholeskyShapeErrors(t *testing.T) {
	ctx := hostContext(t)

	rect, err := linalg.Empty(ctx, dtype.Float64, 2, 3)
	require.NoError(t, err)
	vec, err := linalg.Empty(ctx, dtype.Float64, 4)
	require.NoError(t, err)
	cube, err := linalg.Empty(ctx, dtype.Float64, 2, 2, 2)
	require.NoError(t, err)
	live := ctx.LiveBuffers()

	tests := []struct {
		name    string
		in      *linalg.Array
		wantErr error
		msg     string
	}{
		{"2x3", rect, linalg.ErrNonSquare, "[2 3]"},
		{"rank 1", vec, linalg.ErrBadRank, "1-dimensional"},
		{"rank 3", cube, linalg.ErrBadRank, "3-dimensional"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := linalg.Cholesky(ctx, tc.in)
			require.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, linalg.ErrShape)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
	assert.Equal(t, live, ctx.LiveBuffers())
}

func TestCholeskyTypeErrors(t *testing.T) {
	ctx := hostContext(t)

	_, err := linalg.Cholesky(ctx, nil)
	assert.ErrorIs(t, err, linalg.ErrNotDeviceArray)
	assert.ErrorIs(t, err, linalg.ErrType)

	closed, err := linalg.FromSlice(ctx, []float64{1}, 1, 1)
	require.NoError(t, err)
	require.NoError(t, closed.Close())
	_, err = linalg.Cholesky(ctx, closed)
	assert.ErrorIs(t, err, linalg.ErrNotDeviceArray)

	cplx, err := linalg.FromSlice(ctx, []complex128{1, 0, 0, 1}, 2, 2)
	require.NoError(t, err)
	_, err = linalg.Cholesky(ctx, cplx)
	assert.ErrorIs(t, err, linalg.ErrUnsupportedDType)

	other := hostContext(t)
	foreign, err := linalg.FromSlice(other, []float64{1}, 1, 1)
	require.NoError(t, err)
	_, err = linalg.Cholesky(ctx, foreign)
	assert.ErrorIs(t, err, linalg.ErrForeignContext)
}

func TestCholeskyNotPositiveDefinite(t *testing.T) {
	ctx := hostContext(t)

	tests := []struct {
		name  string
		data  []float64
		n     int
		order int
	}{
		{"negative eigenvalue", []float64{1, 2, 2, 1}, 2, 2},
		{"negative pivot", []float64{-1, 0, 0, 1}, 2, 1},
		{"third minor", []float64{
			2, 0, 0,
			0, 2, 0,
			0, 0, -3,
		}, 3, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, err := linalg.FromSlice(ctx, tc.data, tc.n, tc.n)
			require.NoError(t, err)
			live := ctx.LiveBuffers()

			out, err := linalg.Cholesky(ctx, in)
			require.Nil(t, out)
			require.ErrorIs(t, err, linalg.ErrNotPositiveDefinite)
			assert.ErrorIs(t, err, linalg.ErrNumerical)

			var npd *linalg.NotPositiveDefiniteError
			require.True(t, errors.As(err, &npd))
			assert.Equal(t, tc.order, npd.Order)
			assert.Equal(t, live, ctx.LiveBuffers(), "working buffers must be released")
		})
	}
}

// noSolverContext is a host context whose dense solver is missing.
type noSolverContext struct {
	*device.HostContext
}

func (c noSolverContext) Solver() (device.Solver, error) {
	return nil, device.ErrSolverUnavailable
}

func TestCholeskyCapability(t *testing.T) {
	ctx := noSolverContext{hostContext(t)}

	solver, err := linalg.NewSolver(ctx)
	require.NoError(t, err)
	assert.False(t, solver.Available())

	// shape is wrong too; capability is checked first
	in, err := linalg.Empty(ctx, dtype.Float64, 2, 3)
	require.NoError(t, err)
	_, err = solver.Cholesky(in)
	assert.ErrorIs(t, err, linalg.ErrCapability)
	assert.ErrorIs(t, err, device.ErrSolverUnavailable)

	_, err = linalg.NewSolver(nil)
	assert.ErrorIs(t, err, linalg.ErrCapability)
}

// statusSolver reports a fixed status from Potrf.
type statusSolver struct {
	status int32
}

func (s statusSolver) PotrfBufferSize(_ device.FillMode, n int, _ device.Buffer, _ int) (int, error) {
	return n, nil
}

func (s statusSolver) Potrf(_ device.FillMode, _ int, _ device.Buffer, _ int, _ device.Buffer, _ int, info device.Buffer) error {
	return info.Upload([]int32{s.status})
}

type statusContext struct {
	*device.HostContext
	solver statusSolver
}

func (c statusContext) Solver() (device.Solver, error) { return c.solver, nil }

func TestCholeskySolverParameter(t *testing.T) {
	host := hostContext(t)
	ctx := statusContext{HostContext: host, solver: statusSolver{status: -4}}

	in, err := linalg.FromSlice(ctx, []float64{1, 0, 0, 1}, 2, 2)
	require.NoError(t, err)
	live := host.LiveBuffers()

	_, err = linalg.Cholesky(ctx, in)
	require.ErrorIs(t, err, linalg.ErrSolverParameter)
	assert.ErrorIs(t, err, linalg.ErrNumerical)
	assert.NotErrorIs(t, err, linalg.ErrNotPositiveDefinite)

	var perr *linalg.SolverParameterError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, -4, perr.Status)
	assert.Contains(t, err.Error(), "argument 4")
	assert.Equal(t, live, host.LiveBuffers())
}

func TestCholeskyLogsAndMetrics(t *testing.T) {
	ctx := hostContext(t)
	core, logs := observer.New(zap.DebugLevel)
	solver, err := linalg.NewSolver(ctx, linalg.WithLogger(zap.New(core)))
	require.NoError(t, err)

	ok := linalg.CholeskyTotal.WithLabelValues("float64", linalg.ResultOK)
	npd := linalg.CholeskyTotal.WithLabelValues("float64", linalg.ResultNotPositiveDefinite)
	okBefore, npdBefore := testutil.ToFloat64(ok), testutil.ToFloat64(npd)

	in, err := linalg.FromSlice(ctx, []float64{4, 2, 2, 5}, 2, 2)
	require.NoError(t, err)
	_, err = solver.Cholesky(in)
	require.NoError(t, err)

	bad, err := linalg.FromSlice(ctx, []float64{1, 2, 2, 1}, 2, 2)
	require.NoError(t, err)
	_, err = solver.Cholesky(bad)
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, npdBefore+1, testutil.ToFloat64(npd))

	require.NotZero(t, logs.FilterMessage("cholesky").Len())
	failed := logs.FilterMessage("cholesky failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].ContextMap()["n"])
}

func BenchmarkCholesky(b *testing.B) {
	ctx, err := device.NewHostBackend().NewHostContext(0)
	require.NoError(b, err)
	for _, n := range []int{16, 64, 256} {
		in, err := linalg.FromSlice(ctx, spd(n, 1), n, n)
		require.NoError(b, err)
		solver, err := linalg.NewSolver(ctx)
		require.NoError(b, err)
		b.Run(dtype.Float64.String()+"/"+strconv.Itoa(n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				l, err := solver.Cholesky(in)
				if err != nil {
					b.Fatal(err)
				}
				_ = l.Close()
			}
		})
	}
}
