// SPDX-License-Identifier: MIT

package device

import (
	"fmt"

	"github.com/katalvlaran/lvgpu/dtype"
	"github.com/x448/float16"
)

// SliceOf allocates a zeroed host slice of n elements matching dt:
// []bool, []int8 … []uint64, []float16.Float16, []float32, []float64,
// []complex64 or []complex128.
func SliceOf(dt dtype.DType, n int) (any, error) {
	if n < 0 {
		return nil, ErrInvalidLength
	}
	switch dt {
	case dtype.Bool:
		return make([]bool, n), nil
	case dtype.Int8:
		return make([]int8, n), nil
	case dtype.Int16:
		return make([]int16, n), nil
	case dtype.Int32:
		return make([]int32, n), nil
	case dtype.Int64:
		return make([]int64, n), nil
	case dtype.Uint8:
		return make([]uint8, n), nil
	case dtype.Uint16:
		return make([]uint16, n), nil
	case dtype.Uint32:
		return make([]uint32, n), nil
	case dtype.Uint64:
		return make([]uint64, n), nil
	case dtype.Float16:
		return make([]float16.Float16, n), nil
	case dtype.Float32:
		return make([]float32, n), nil
	case dtype.Float64:
		return make([]float64, n), nil
	case dtype.Complex64:
		return make([]complex64, n), nil
	case dtype.Complex128:
		return make([]complex128, n), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, dt)
}

// SliceInfo reports the element type and length of a host slice accepted by
// Buffer.Upload. ok is false for unsupported values.
func SliceInfo(s any) (dt dtype.DType, n int, ok bool) {
	switch v := s.(type) {
	case []bool:
		return dtype.Bool, len(v), true
	case []int8:
		return dtype.Int8, len(v), true
	case []int16:
		return dtype.Int16, len(v), true
	case []int32:
		return dtype.Int32, len(v), true
	case []int64:
		return dtype.Int64, len(v), true
	case []uint8:
		return dtype.Uint8, len(v), true
	case []uint16:
		return dtype.Uint16, len(v), true
	case []uint32:
		return dtype.Uint32, len(v), true
	case []uint64:
		return dtype.Uint64, len(v), true
	case []float16.Float16:
		return dtype.Float16, len(v), true
	case []float32:
		return dtype.Float32, len(v), true
	case []float64:
		return dtype.Float64, len(v), true
	case []complex64:
		return dtype.Complex64, len(v), true
	case []complex128:
		return dtype.Complex128, len(v), true
	}
	return dtype.Invalid, 0, false
}

// copyHost copies len(dst) elements of src into dst. src must have the same
// element type and at least len(dst) elements.
func copyHost[T any](dst []T, src any) error {
	s, ok := src.([]T)
	if !ok {
		return fmt.Errorf("%w: host slice %T", ErrUnsupportedDType, src)
	}
	if len(s) < len(dst) {
		return ErrLengthMismatch
	}
	copy(dst, s[:len(dst)])
	return nil
}

// copyOut copies all of src into the host slice dst, which must have the same
// element type and at least len(src) elements.
func copyOut[T any](src []T, dst any) error {
	d, ok := dst.([]T)
	if !ok {
		return fmt.Errorf("%w: host slice %T", ErrUnsupportedDType, dst)
	}
	if len(d) < len(src) {
		return ErrLengthMismatch
	}
	copy(d, src)
	return nil
}

type realNumber interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func convertReal[D float32 | float64, S realNumber](dst []D, src []S) {
	for i := range dst {
		dst[i] = D(src[i])
	}
}

// castHost converts the host slice src element-wise into dst (float32 or
// float64). Each element is rounded once, directly to the destination width.
// Complex sources are rejected.
func castHost[D float32 | float64](dst []D, src any) error {
	_, n, ok := SliceInfo(src)
	if !ok {
		return fmt.Errorf("%w: host slice %T", ErrUnsupportedDType, src)
	}
	if n < len(dst) {
		return ErrLengthMismatch
	}
	switch s := src.(type) {
	case []bool:
		for i := range dst {
			if s[i] {
				dst[i] = 1
			} else {
				dst[i] = 0
			}
		}
	case []int8:
		convertReal(dst, s)
	case []int16:
		convertReal(dst, s)
	case []int32:
		convertReal(dst, s)
	case []int64:
		convertReal(dst, s)
	case []uint8:
		convertReal(dst, s)
	case []uint16:
		convertReal(dst, s)
	case []uint32:
		convertReal(dst, s)
	case []uint64:
		convertReal(dst, s)
	case []float16.Float16:
		for i := range dst {
			dst[i] = D(s[i].Float32())
		}
	case []float32:
		convertReal(dst, s)
	case []float64:
		convertReal(dst, s)
	default:
		return fmt.Errorf("%w: cannot cast %T to a real type", ErrUnsupportedDType, src)
	}
	return nil
}

// CastHost converts the host slice src element-wise into dst, which must be
// a []float32 or []float64 no longer than src.
func CastHost(dst, src any) error {
	return castInto(dst, src)
}

// castInto converts src into the typed host slice dst.
func castInto(dst any, src any) error {
	switch d := dst.(type) {
	case []float32:
		return castHost(d, src)
	case []float64:
		return castHost(d, src)
	}
	return fmt.Errorf("%w: cast target %T", ErrUnsupportedDType, dst)
}

// trilHost zeroes data[u*cols+v] for every v-u > k.
func trilHost[T any](data []T, rows, cols, k int) {
	var zero T
	for u := 0; u < rows; u++ {
		start, ok := trilStart(u, cols, k)
		if !ok {
			continue
		}
		row := data[u*cols : (u+1)*cols]
		for v := start; v < cols; v++ {
			row[v] = zero
		}
	}
}

// trilStart returns the first column of row u strictly above the k-th
// diagonal, and false when the whole row is kept. It compares before adding
// so that k near the int limits cannot wrap.
func trilStart(u, cols, k int) (int, bool) {
	if k >= cols-1-u {
		return 0, false
	}
	return max(u+k+1, 0), true
}

// trilAny dispatches trilHost over the concrete slice type.
func trilAny(data any, rows, cols, k int) error {
	switch d := data.(type) {
	case []bool:
		trilHost(d, rows, cols, k)
	case []int8:
		trilHost(d, rows, cols, k)
	case []int16:
		trilHost(d, rows, cols, k)
	case []int32:
		trilHost(d, rows, cols, k)
	case []int64:
		trilHost(d, rows, cols, k)
	case []uint8:
		trilHost(d, rows, cols, k)
	case []uint16:
		trilHost(d, rows, cols, k)
	case []uint32:
		trilHost(d, rows, cols, k)
	case []uint64:
		trilHost(d, rows, cols, k)
	case []float16.Float16:
		trilHost(d, rows, cols, k)
	case []float32:
		trilHost(d, rows, cols, k)
	case []float64:
		trilHost(d, rows, cols, k)
	case []complex64:
		trilHost(d, rows, cols, k)
	case []complex128:
		trilHost(d, rows, cols, k)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedDType, data)
	}
	return nil
}
