// SPDX-License-Identifier: MIT

//go:build !cuda || !cgo

package device

// CUDABackend is a placeholder registered when the module is built without
// the cuda build tag or without cgo. It is never available.
type CUDABackend struct{}

// NewCUDABackend returns the placeholder backend.
func NewCUDABackend() *CUDABackend { return &CUDABackend{} }

func (b *CUDABackend) Info() BackendInfo {
	return BackendInfo{
		Name:        CUDABackendName,
		Version:     "stub",
		Description: "CUDA backend (built without cuda support)",
	}
}

func (b *CUDABackend) Available() bool { return false }

func (b *CUDABackend) Devices() ([]DeviceInfo, error) {
	return nil, ErrBackendUnavailable
}

func (b *CUDABackend) NewContext(_ int) (Context, error) {
	return nil, ErrBackendUnavailable
}
