// SPDX-License-Identifier: MIT
package linalg_test

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvgpu/device"
	"github.com/katalvlaran/lvgpu/linalg"
)

// ExampleCholesky factors a 3×3 symmetric positive definite matrix on the
// host backend.
func ExampleCholesky() {
	ctx, err := device.Open(device.HostBackendName, 0)
	if err != nil {
		panic(err)
	}
	defer ctx.Close()

	a, _ := linalg.FromSlice(ctx, []float64{
		4, 12, -16,
		12, 37, -43,
		-16, -43, 98,
	}, 3, 3)
	l, err := linalg.Cholesky(ctx, a)
	if err != nil {
		panic(err)
	}
	v, _ := l.Float64s()
	for i := 0; i < 3; i++ {
		fmt.Println(v[i*3 : i*3+3])
	}
	// Output:
	// [2 0 0]
	// [6 1 0]
	// [-8 5 3]
}

// ExampleSolver_Cholesky_notPositiveDefinite shows how a failed factorization
// reports the order of the offending leading minor.
func ExampleSolver_Cholesky_notPositiveDefinite() {
	ctx, _ := device.Open(device.HostBackendName, 0)
	defer ctx.Close()
	solver, _ := linalg.NewSolver(ctx)

	a, _ := linalg.FromSlice(ctx, []int16{1, 2, 2, 1}, 2, 2)
	_, err := solver.Cholesky(a)

	var npd *linalg.NotPositiveDefiniteError
	if errors.As(err, &npd) {
		fmt.Println("leading minor:", npd.Order)
	}
	fmt.Println(errors.Is(err, linalg.ErrNumerical))
	// Output:
	// leading minor: 2
	// true
}

// ExampleTril masks a rectangular array above its first superdiagonal.
func ExampleTril() {
	ctx, _ := device.Open(device.HostBackendName, 0)
	defer ctx.Close()

	x, _ := linalg.FromSlice(ctx, []int32{1, 2, 3, 4, 5, 6, 7, 8}, 2, 4)
	_ = linalg.Tril(x, 1)
	v, _ := x.ToHost()
	fmt.Println(v)
	// Output:
	// [1 2 0 0 5 6 7 0]
}
