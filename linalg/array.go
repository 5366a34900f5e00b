// SPDX-License-Identifier: MIT

package linalg

import (
	"fmt"
	"math"

	"github.com/katalvlaran/lvgpu/device"
	"github.com/katalvlaran/lvgpu/dtype"
)

// Array is a dense, row-major, device-resident N-d array. The zero value and
// a released array are not device arrays; validators reject them.
type Array struct {
	ctx   device.Context
	buf   device.Buffer
	shape []int
	dtype dtype.DType
}

// Empty allocates a zero-filled array of the given dtype and shape on ctx.
//
// Errors: ErrNotDeviceArray for a nil context, ErrShape for negative
// dimensions, device allocation errors otherwise.
func Empty(ctx device.Context, dt dtype.DType, shape ...int) (*Array, error) {
	if ctx == nil {
		return nil, linalgErrorf(opEmpty, fmt.Errorf("%w: nil device context", ErrNotDeviceArray))
	}
	size, err := shapeSize(shape)
	if err != nil {
		return nil, linalgErrorf(opEmpty, err)
	}
	buf, err := ctx.NewBuffer(size, dt)
	if err != nil {
		return nil, linalgErrorf(opEmpty, err)
	}
	return &Array{ctx: ctx, buf: buf, shape: append([]int(nil), shape...), dtype: dt}, nil
}

// FromSlice uploads data to ctx as an array of the given shape. Without a
// shape the array is one-dimensional. The element type of data picks the
// dtype; see device.SliceOf for the accepted slice types.
//
// Errors: ErrUnsupportedDType for unknown element types, ErrShape when the
// shape does not hold len(data) elements.
func FromSlice[T any](ctx device.Context, data []T, shape ...int) (*Array, error) {
	return FromHost(ctx, data, shape...)
}

// FromHost is FromSlice for a host slice whose element type is only known at
// run time, such as one returned by device.SliceOf.
func FromHost(ctx device.Context, data any, shape ...int) (*Array, error) {
	dt, n, ok := device.SliceInfo(data)
	if !ok {
		return nil, linalgErrorf(opFromSlice, fmt.Errorf("%w: %T", ErrUnsupportedDType, data))
	}
	if len(shape) == 0 {
		shape = []int{n}
	}
	size, err := shapeSize(shape)
	if err != nil {
		return nil, linalgErrorf(opFromSlice, err)
	}
	if size != n {
		return nil, linalgErrorf(opFromSlice,
			fmt.Errorf("%w: shape %v holds %d elements, got %d", ErrShape, shape, size, n))
	}
	a, err := Empty(ctx, dt, shape...)
	if err != nil {
		return nil, err
	}
	if err := a.buf.Upload(data); err != nil {
		_ = a.Close()
		return nil, linalgErrorf(opFromSlice, err)
	}
	return a, nil
}

// shapeSize is the element count of shape. Products that overflow int are
// rejected; a zero dimension makes any shape empty.
func shapeSize(shape []int) (int, error) {
	empty := false
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
		}
		empty = empty || d == 0
	}
	if empty {
		return 0, nil
	}
	size := 1
	for _, d := range shape {
		if size > math.MaxInt/d {
			return 0, fmt.Errorf("%w: shape %v overflows the element count", ErrShape, shape)
		}
		size *= d
	}
	return size, nil
}

// Shape returns a copy of the dimensions.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

func (a *Array) Ndim() int { return len(a.shape) }

// Size is the number of elements.
func (a *Array) Size() int {
	size, _ := shapeSize(a.shape)
	return size
}

func (a *Array) DType() dtype.DType { return a.dtype }

// Context returns the device context that owns the array's buffer.
func (a *Array) Context() device.Context { return a.ctx }

// AsType returns a copy of a converted to dt. The copy is made even when dt
// equals the current dtype, so the result may be mutated freely.
func (a *Array) AsType(dt dtype.DType) (*Array, error) {
	if err := ValidateDeviceArray(a); err != nil {
		return nil, linalgErrorf(opAsType, err)
	}
	out, err := Empty(a.ctx, dt, a.shape...)
	if err != nil {
		return nil, linalgErrorf(opAsType, err)
	}
	if dt.IsFloat() && dt != dtype.Float16 {
		err = a.ctx.Cast(out.buf, a.buf)
	} else {
		err = a.stageCopy(out, dt)
	}
	if err != nil {
		_ = out.Close()
		return nil, linalgErrorf(opAsType, err)
	}
	return out, nil
}

// stageCopy copies through host memory; only identical dtypes are supported.
func (a *Array) stageCopy(out *Array, dt dtype.DType) error {
	if dt != a.dtype {
		return fmt.Errorf("%w: cannot convert %s to %s", ErrUnsupportedDType, a.dtype, dt)
	}
	host, err := a.ToHost()
	if err != nil {
		return err
	}
	return out.buf.Upload(host)
}

// ToHost downloads the array into a new host slice of the matching type.
func (a *Array) ToHost() (any, error) {
	if err := ValidateDeviceArray(a); err != nil {
		return nil, linalgErrorf(opToHost, err)
	}
	host, err := device.SliceOf(a.dtype, a.buf.Len())
	if err != nil {
		return nil, linalgErrorf(opToHost, err)
	}
	if err := a.buf.Download(host); err != nil {
		return nil, linalgErrorf(opToHost, err)
	}
	return host, nil
}

// Float64s downloads the array converted to float64.
func (a *Array) Float64s() ([]float64, error) {
	host, err := a.ToHost()
	if err != nil {
		return nil, err
	}
	if v, ok := host.([]float64); ok {
		return v, nil
	}
	out := make([]float64, a.buf.Len())
	if err := device.CastHost(out, host); err != nil {
		return nil, linalgErrorf(opToHost, err)
	}
	return out, nil
}

// Float32s downloads the array converted to float32.
func (a *Array) Float32s() ([]float32, error) {
	host, err := a.ToHost()
	if err != nil {
		return nil, err
	}
	if v, ok := host.([]float32); ok {
		return v, nil
	}
	out := make([]float32, a.buf.Len())
	if err := device.CastHost(out, host); err != nil {
		return nil, linalgErrorf(opToHost, err)
	}
	return out, nil
}

// Close releases the device buffer. The array is unusable afterwards.
func (a *Array) Close() error {
	if a == nil || a.buf == nil {
		return nil
	}
	err := a.buf.Close()
	a.buf = nil
	return err
}

func (a *Array) String() string {
	if a == nil {
		return "Array(nil)"
	}
	return fmt.Sprintf("Array(shape=%v, dtype=%s)", a.shape, a.dtype)
}
