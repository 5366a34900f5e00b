// Package lvgpu factors dense symmetric positive definite matrices on a
// compute device, returning the lower Cholesky factor L with A = L·Lᵀ.
//
// What is inside:
//
//	dtype/  element types, aliases and numpy-style type promotion
//	device/ backend registry, host (CPU) and CUDA/cuSOLVER backends
//	linalg/ device arrays, validators, dtype resolution, Solver.Cholesky, Tril
//	config/ layered configuration for the command-line tool
//	log/    process-wide zap logger with optional rotating file
//	cmd/lvchol command-line front-end
//
// The host backend is always available and follows the same storage
// conventions and status codes as cuSOLVER. The CUDA backend is compiled
// only with the cuda build tag and cgo:
//
//	go build -tags cuda ./...
//
// Quick example:
//
//	ctx, _ := device.Open(device.HostBackendName, 0)
//	defer ctx.Close()
//	a, _ := linalg.FromSlice(ctx, []float64{4, 2, 2, 3}, 2, 2)
//	l, _ := linalg.Cholesky(ctx, a) // [[2 0] [1 1.414…]]
//
//	go get github.com/katalvlaran/lvgpu
package lvgpu
