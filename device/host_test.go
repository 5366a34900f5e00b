// SPDX-License-Identifier: MIT
package device_test

import (
	"errors"
	"math"
	"testing"

	"github.com/katalvlaran/lvgpu/device"
	"github.com/katalvlaran/lvgpu/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func newHost(t *testing.T) *device.HostContext {
	t.Helper()
	ctx, err := device.NewHostBackend().NewHostContext(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func upload(t *testing.T, ctx device.Context, data any) device.Buffer {
	t.Helper()
	dt, n, ok := device.SliceInfo(data)
	require.True(t, ok)
	buf, err := ctx.NewBuffer(n, dt)
	require.NoError(t, err)
	require.NoError(t, buf.Upload(data))
	return buf
}

func TestRegistry(t *testing.T) {
	b, err := device.Lookup(device.HostBackendName)
	require.NoError(t, err)
	assert.True(t, b.Available())

	_, err = device.Lookup("opencl")
	assert.ErrorIs(t, err, device.ErrNoBackend)

	names := []string{}
	for _, info := range device.Backends() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{device.CUDABackendName, device.HostBackendName}, names)

	ctx, err := device.Open(device.HostBackendName, 0)
	require.NoError(t, err)
	assert.Equal(t, "HostCPU", ctx.Device().Name)
	require.NoError(t, ctx.Close())

	_, err = device.Open(device.HostBackendName, 1)
	assert.ErrorIs(t, err, device.ErrDeviceIndex)

	cuda, err := device.Lookup(device.CUDABackendName)
	require.NoError(t, err)
	if !cuda.Available() {
		_, err = device.Open(device.CUDABackendName, 0)
		assert.ErrorIs(t, err, device.ErrBackendUnavailable)
	}
}

func TestHostBuffer(t *testing.T) {
	ctx := newHost(t)

	buf := upload(t, ctx, []float64{1, 2, 3})
	assert.Equal(t, 1, ctx.LiveBuffers())
	assert.Equal(t, dtype.Float64, buf.DType())
	assert.Equal(t, 3, buf.Len())

	out := make([]float64, 3)
	require.NoError(t, buf.Download(out))
	assert.Equal(t, []float64{1, 2, 3}, out)

	assert.ErrorIs(t, buf.Upload([]float32{1, 2, 3}), device.ErrUnsupportedDType)
	assert.ErrorIs(t, buf.Upload([]float64{1}), device.ErrLengthMismatch)
	assert.ErrorIs(t, buf.Download(make([]float64, 2)), device.ErrLengthMismatch)

	require.NoError(t, buf.Close())
	require.NoError(t, buf.Close())
	assert.Equal(t, 0, ctx.LiveBuffers())
	assert.ErrorIs(t, buf.Download(out), device.ErrBufferClosed)

	_, err := ctx.NewBuffer(-1, dtype.Float32)
	assert.ErrorIs(t, err, device.ErrInvalidLength)
	_, err = ctx.NewBuffer(1, dtype.Invalid)
	assert.ErrorIs(t, err, device.ErrUnsupportedDType)

	other := newHost(t)
	foreign := upload(t, other, []float64{0, 0, 0})
	dst, err := ctx.NewBuffer(3, dtype.Float64)
	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Cast(dst, foreign), device.ErrForeignBuffer)
}

func TestHostCast(t *testing.T) {
	ctx := newHost(t)

	tests := []struct {
		name string
		src  any
		to   dtype.DType
		want []float64
	}{
		{"int16 to float32", []int16{-3, 0, 7}, dtype.Float32, []float64{-3, 0, 7}},
		{"bool to float64", []bool{true, false, true}, dtype.Float64, []float64{1, 0, 1}},
		{"uint64 to float64", []uint64{1 << 40, 2, 3}, dtype.Float64, []float64{1 << 40, 2, 3}},
		{"float16 to float32", []float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-2), 0}, dtype.Float32, []float64{0.5, -2, 0}},
		{"float64 to float32", []float64{0.25, 1, 2}, dtype.Float32, []float64{0.25, 1, 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := upload(t, ctx, tc.src)
			dst, err := ctx.NewBuffer(src.Len(), tc.to)
			require.NoError(t, err)
			require.NoError(t, ctx.Cast(dst, src))

			host, err := device.SliceOf(tc.to, dst.Len())
			require.NoError(t, err)
			require.NoError(t, dst.Download(host))
			got := make([]float64, dst.Len())
			switch h := host.(type) {
			case []float32:
				for i, v := range h {
					got[i] = float64(v)
				}
			case []float64:
				copy(got, h)
			}
			assert.Equal(t, tc.want, got)
		})
	}

	src := upload(t, ctx, []complex64{1, 2})
	dst, err := ctx.NewBuffer(2, dtype.Float32)
	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Cast(dst, src), device.ErrUnsupportedDType)

	short, err := ctx.NewBuffer(1, dtype.Float32)
	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Cast(short, upload(t, ctx, []int8{1, 2})), device.ErrLengthMismatch)
}

func TestHostTril(t *testing.T) {
	ctx := newHost(t)
	base := []int32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
	}

	tests := []struct {
		k    int
		want []int32
	}{
		{0, []int32{1, 0, 0, 0, 5, 6, 0, 0, 9, 10, 11, 0}},
		{-1, []int32{0, 0, 0, 0, 5, 0, 0, 0, 9, 10, 0, 0}},
		{1, []int32{1, 2, 0, 0, 5, 6, 7, 0, 9, 10, 11, 12}},
		{-5, make([]int32, 12)},
		{3, base},
		{math.MaxInt, base},
		{math.MinInt, make([]int32, 12)},
	}
	for _, tc := range tests {
		buf := upload(t, ctx, base)
		require.NoError(t, ctx.Tril(buf, 3, 4, tc.k))
		got := make([]int32, 12)
		require.NoError(t, buf.Download(got))
		assert.Equalf(t, tc.want, got, "k=%d", tc.k)
	}

	buf := upload(t, ctx, base)
	assert.ErrorIs(t, ctx.Tril(buf, 3, 3, 0), device.ErrLengthMismatch)
	assert.ErrorIs(t, ctx.Tril(buf, -3, -4, 0), device.ErrInvalidLength)
}

// potrf runs the full query/allocate/factor sequence and returns the status
// and the factored storage.
func potrf(t *testing.T, ctx device.Context, fill device.FillMode, n int, a any) (int32, any) {
	t.Helper()
	buf := upload(t, ctx, a)
	solver, err := ctx.Solver()
	require.NoError(t, err)

	lda := max(1, n)
	lwork, err := solver.PotrfBufferSize(fill, n, buf, lda)
	require.NoError(t, err)
	work, err := ctx.NewBuffer(lwork, buf.DType())
	require.NoError(t, err)
	info, err := ctx.NewBuffer(1, dtype.Int32)
	require.NoError(t, err)

	require.NoError(t, solver.Potrf(fill, n, buf, lda, work, lwork, info))
	status := make([]int32, 1)
	require.NoError(t, info.Download(status))

	out, err := device.SliceOf(buf.DType(), buf.Len())
	require.NoError(t, err)
	require.NoError(t, buf.Download(out))
	return status[0], out
}

func TestHostPotrf(t *testing.T) {
	ctx := newHost(t)
	spd := []float64{
		4, 12, -16,
		12, 37, -43,
		-16, -43, 98,
	}

	t.Run("upper fill yields row-major lower factor", func(t *testing.T) {
		info, out := potrf(t, ctx, device.FillUpper, 3, append([]float64(nil), spd...))
		require.Zero(t, info)
		got := out.([]float64)
		// lower triangle holds L, strict upper is untouched
		assert.Equal(t, []float64{
			2, 12, -16,
			6, 1, -43,
			-8, 5, 3,
		}, got)
	})

	t.Run("lower fill yields row-major upper factor", func(t *testing.T) {
		info, out := potrf(t, ctx, device.FillLower, 3, append([]float64(nil), spd...))
		require.Zero(t, info)
		assert.Equal(t, []float64{
			2, 6, -8,
			12, 1, 5,
			-16, -43, 3,
		}, out.([]float64))
	})

	t.Run("float32", func(t *testing.T) {
		a := []float32{4, 12, -16, 12, 37, -43, -16, -43, 98}
		info, out := potrf(t, ctx, device.FillUpper, 3, a)
		require.Zero(t, info)
		got := out.([]float32)
		assert.InDeltaSlice(t, []float32{2, 6, 1, -8, 5, 3},
			[]float32{got[0], got[3], got[4], got[6], got[7], got[8]}, 1e-5)
	})

	t.Run("not positive definite", func(t *testing.T) {
		for _, fill := range []device.FillMode{device.FillUpper, device.FillLower} {
			info, _ := potrf(t, ctx, fill, 2, []float64{1, 2, 2, 1})
			assert.Equalf(t, int32(2), info, "fill=%s", fill)

			info, _ = potrf(t, ctx, fill, 2, []float64{-1, 0, 0, 1})
			assert.Equalf(t, int32(1), info, "fill=%s", fill)
		}
	})

	t.Run("empty", func(t *testing.T) {
		info, _ := potrf(t, ctx, device.FillUpper, 0, []float64{})
		assert.Zero(t, info)
	})
}

func TestHostPotrfParameters(t *testing.T) {
	ctx := newHost(t)
	solver, err := ctx.Solver()
	require.NoError(t, err)

	a := upload(t, ctx, []float64{4, 0, 0, 4})
	work, err := ctx.NewBuffer(2, dtype.Float64)
	require.NoError(t, err)
	info, err := ctx.NewBuffer(1, dtype.Int32)
	require.NoError(t, err)

	status := func() int32 {
		out := make([]int32, 1)
		require.NoError(t, info.Download(out))
		return out[0]
	}

	tests := []struct {
		name  string
		fill  device.FillMode
		n     int
		lda   int
		lwork int
		want  int32
	}{
		{"fill", device.FillMode(7), 2, 2, 2, -1},
		{"n", device.FillUpper, -1, 2, 2, -2},
		{"a too short", device.FillUpper, 2, 3, 2, -3},
		{"lda", device.FillUpper, 2, 1, 2, -4},
		{"lda past the buffer end", device.FillUpper, 2, math.MaxInt, 2, -3},
		{"work too short", device.FillUpper, 2, 2, 3, -5},
		{"lwork", device.FillUpper, 2, 2, 1, -6},
		{"ok", device.FillUpper, 2, 2, 2, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, solver.Potrf(tc.fill, tc.n, a, tc.lda, work, tc.lwork, info))
			assert.Equal(t, tc.want, status())
		})
	}

	_, err = solver.PotrfBufferSize(device.FillUpper, 2, a, 1)
	assert.ErrorIs(t, err, device.ErrInvalidParameter)
	_, err = solver.PotrfBufferSize(device.FillUpper, 3, a, math.MaxInt/2)
	assert.ErrorIs(t, err, device.ErrInvalidParameter)

	ints := upload(t, ctx, []int32{4, 0, 0, 4})
	_, err = solver.PotrfBufferSize(device.FillUpper, 2, ints, 2)
	assert.ErrorIs(t, err, device.ErrInvalidParameter)

	badInfo, err := ctx.NewBuffer(1, dtype.Int64)
	require.NoError(t, err)
	err = solver.Potrf(device.FillUpper, 2, a, 2, work, 2, badInfo)
	assert.ErrorIs(t, err, device.ErrInvalidParameter)

	var nerr *device.NativeError
	assert.False(t, errors.As(err, &nerr))
}

func TestClosedContext(t *testing.T) {
	ctx := newHost(t)
	require.NoError(t, ctx.Close())

	_, err := ctx.NewBuffer(1, dtype.Float32)
	assert.ErrorIs(t, err, device.ErrContextClosed)
	_, err = ctx.Solver()
	assert.ErrorIs(t, err, device.ErrContextClosed)
}

func TestDriverPresentDoesNotPanic(t *testing.T) {
	_ = device.DriverPresent()
}
