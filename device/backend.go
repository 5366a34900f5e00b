// SPDX-License-Identifier: MIT

package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/katalvlaran/lvgpu/dtype"
	"github.com/katalvlaran/lvgpu/log"
	"go.uber.org/zap"
)

// CUDABackendName is the registry name of the CUDA/cuSOLVER backend. It is
// registered in every build; without the cuda build tag it is never available.
const CUDABackendName = "cuda"

// FillMode tells the solver which triangle of a symmetric matrix is significant.
// Values follow the cuBLAS numbering.
type FillMode int

const (
	FillLower FillMode = 0
	FillUpper FillMode = 1
)

func (f FillMode) String() string {
	switch f {
	case FillLower:
		return "lower"
	case FillUpper:
		return "upper"
	default:
		return fmt.Sprintf("fill(%d)", int(f))
	}
}

// BackendInfo describes a registered backend.
type BackendInfo struct {
	Name        string
	Version     string
	Description string
}

// DeviceInfo describes one device exposed by a backend.
type DeviceInfo struct {
	Index      int
	Name       string
	Vendor     string
	Driver     string
	MemoryMB   int
	ComputeCap string
}

// Backend is implemented by device runtimes (host, CUDA).
// It is responsible for device discovery and context creation.
type Backend interface {
	Info() BackendInfo
	Available() bool
	Devices() ([]DeviceInfo, error)
	NewContext(deviceIndex int) (Context, error)
}

// Context is a backend-specific execution context tied to one device. It owns
// the solver handle; callers borrow it through Solver and must not use one
// context from several goroutines at once.
type Context interface {
	Backend() BackendInfo
	Device() DeviceInfo
	// NewBuffer allocates a zero-initialized device buffer of elemCount elements.
	NewBuffer(elemCount int, dt dtype.DType) (Buffer, error)
	// Cast converts src element-wise into dst. Both buffers must have equal length;
	// dst must be float32 or float64.
	Cast(dst, src Buffer) error
	// Tril zeroes every element (u, v) of the row-major rows×cols buffer with v-u > k.
	Tril(buf Buffer, rows, cols, k int) error
	// Solver returns the dense solver bound to this context, or ErrSolverUnavailable.
	Solver() (Solver, error)
	// Synchronize blocks until all queued device work has completed.
	Synchronize() error
	Close() error
}

// Buffer is a device buffer holding Len elements of one DType.
type Buffer interface {
	Len() int
	DType() dtype.DType
	// Upload copies Len elements from the host slice src (see SliceOf for types).
	Upload(src any) error
	// Download copies Len elements into the host slice dst.
	Download(dst any) error
	Close() error
}

// Solver exposes the dense Cholesky entry points of a vendor solver library.
// The precision is taken from the dtype of a (float32 or float64); work must
// have the same dtype and info must be a one-element int32 buffer.
//
// Storage is column-major with leading dimension lda, as in LAPACK. On return
// info holds 0 on success, i > 0 when the leading minor of order i is not
// positive definite, and -i when parameter i is invalid.
type Solver interface {
	PotrfBufferSize(fill FillMode, n int, a Buffer, lda int) (int, error)
	Potrf(fill FillMode, n int, a Buffer, lda int, work Buffer, lwork int, info Buffer) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Backend{}
)

// Register adds b under b.Info().Name, replacing any previous backend with
// that name. Passing nil is a no-op.
func Register(b Backend) {
	if b == nil {
		return
	}
	info := b.Info()
	registryMu.Lock()
	registry[info.Name] = b
	registryMu.Unlock()
	log.Logger().Debug("device backend registered",
		zap.String("backend", info.Name),
		zap.String("version", info.Version))
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, error) {
	registryMu.RLock()
	b, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoBackend, name)
	}
	return b, nil
}

// Backends lists registered backends sorted by name.
func Backends() []BackendInfo {
	registryMu.RLock()
	out := make([]BackendInfo, 0, len(registry))
	for _, b := range registry {
		out = append(out, b.Info())
	}
	registryMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Open looks up the named backend, checks it can run here and creates a
// context on device deviceIndex.
func Open(name string, deviceIndex int) (Context, error) {
	b, err := Lookup(name)
	if err != nil {
		return nil, deviceErrorf("Open", err)
	}
	if !b.Available() {
		return nil, deviceErrorf("Open", fmt.Errorf("%w: %q", ErrBackendUnavailable, name))
	}
	ctx, err := b.NewContext(deviceIndex)
	if err != nil {
		return nil, deviceErrorf("Open", err)
	}
	log.Logger().Debug("device context opened",
		zap.String("backend", name),
		zap.Int("device", deviceIndex),
		zap.String("name", ctx.Device().Name))
	return ctx, nil
}

func init() {
	Register(NewHostBackend())
	Register(NewCUDABackend())
}
