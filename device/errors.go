// SPDX-License-Identifier: MIT

package device

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBackend is returned when no backend is registered under the requested name.
	ErrNoBackend = errors.New("device: no backend registered")

	// ErrBackendUnavailable is returned when the backend is registered but cannot run
	// on the current system (no device, driver missing, built without support).
	ErrBackendUnavailable = errors.New("device: backend unavailable")

	// ErrSolverUnavailable is returned by Context.Solver when the dense solver
	// library is not part of the build or failed to initialize.
	ErrSolverUnavailable = errors.New("device: solver library unavailable")

	// ErrDeviceIndex is returned for device indices outside [0, device count).
	ErrDeviceIndex = errors.New("device: device index out of range")

	// ErrInvalidLength is returned for negative element counts or dimensions.
	ErrInvalidLength = errors.New("device: invalid length")

	// ErrLengthMismatch is returned when host slices or buffers are shorter than required.
	ErrLengthMismatch = errors.New("device: length mismatch")

	// ErrUnsupportedDType is returned when an operation does not support the element type
	// or a host slice does not match the buffer element type.
	ErrUnsupportedDType = errors.New("device: unsupported element type")

	// ErrBufferClosed is returned when a released buffer is used.
	ErrBufferClosed = errors.New("device: buffer closed")

	// ErrContextClosed is returned when a released context is used.
	ErrContextClosed = errors.New("device: context closed")

	// ErrInvalidParameter is returned by solver entry points for arguments the
	// library rejects before running (bad fill mode, dimensions or buffers).
	ErrInvalidParameter = errors.New("device: invalid solver parameter")

	// ErrForeignBuffer is returned when a buffer allocated by another context is passed in.
	ErrForeignBuffer = errors.New("device: buffer belongs to another context")
)

// deviceErrorf tags err with the failing operation.
func deviceErrorf(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// NativeError reports a non-success status code returned by a vendor runtime
// or library call.
type NativeError struct {
	Library string // "cudart" or "cusolver"
	Op      string // entry point that failed
	Code    int    // raw status code
	Message string // vendor message, when available
}

func (e *NativeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("device: %s %s failed with status %d: %s", e.Library, e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("device: %s %s failed with status %d", e.Library, e.Op, e.Code)
}
