// SPDX-License-Identifier: MIT

// Package device is the runtime layer under linalg: backend discovery,
// execution contexts, device buffers and the native dense solver.
//
// Two backends are registered at init:
//
//   - "host" keeps buffers in host memory and runs ?potrf on the CPU with
//     gonum BLAS kernels. It mirrors the vendor library's storage order and
//     status codes, so code above it cannot tell the difference.
//   - "cuda" allocates with the CUDA runtime and calls cuSOLVER. It needs the
//     cuda build tag and cgo; otherwise a placeholder reporting
//     Available() == false is registered under the same name.
//
// Solver matrices are column-major, as in LAPACK. A context owns its solver
// handle and is not safe for concurrent use.
package device
