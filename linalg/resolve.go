// SPDX-License-Identifier: MIT

package linalg

import (
	"fmt"

	"github.com/katalvlaran/lvgpu/dtype"
)

// ResolveDType picks the working precision of a factorization: float32 and
// float64 pass through, every other real type becomes the smallest type both
// it and float32 cast to safely. So bool, 8/16-bit integers and float16 work
// in float32, wider integers in float64.
//
// Errors: ErrUnsupportedDType for invalid and complex types.
func ResolveDType(dt dtype.DType) (dtype.DType, error) {
	switch dt {
	case dtype.Float32, dtype.Float64:
		return dt, nil
	}
	if !dt.Valid() {
		return dtype.Invalid, linalgErrorf(opResolve, fmt.Errorf("%w: %s", ErrUnsupportedDType, dt))
	}
	common := dtype.FindCommonType(dt, dtype.Float32)
	if common != dtype.Float32 && common != dtype.Float64 {
		return dtype.Invalid, linalgErrorf(opResolve,
			fmt.Errorf("%w: %s promotes to %s", ErrUnsupportedDType, dt, common))
	}
	return common, nil
}
