// SPDX-License-Identifier: MIT

//go:build cuda && cgo

package device

/*
#cgo LDFLAGS: -lcusolver -lcudart
#include <cuda_runtime.h>
#include <cusolverDn.h>
*/
import "C"

import (
	"fmt"
	"math"
	"reflect"
	"sync"
	"unsafe"

	"github.com/katalvlaran/lvgpu/dtype"
	"github.com/katalvlaran/lvgpu/log"
	"go.uber.org/zap"
)

// CUDABackend runs on NVIDIA devices through the CUDA runtime and cuSOLVER.
type CUDABackend struct {
	once      sync.Once
	available bool
}

// NewCUDABackend returns the CUDA backend. Probing happens lazily.
func NewCUDABackend() *CUDABackend { return &CUDABackend{} }

func (b *CUDABackend) Info() BackendInfo {
	var runtimeVersion C.int
	C.cudaRuntimeGetVersion(&runtimeVersion)
	return BackendInfo{
		Name:        CUDABackendName,
		Version:     fmt.Sprintf("%d.%d", runtimeVersion/1000, (runtimeVersion%1000)/10),
		Description: "CUDA runtime with cuSOLVER dense solver",
	}
}

// Available reports whether the driver is loaded and at least one device is visible.
func (b *CUDABackend) Available() bool {
	b.once.Do(func() {
		if !DriverPresent() {
			return
		}
		n, err := deviceCount()
		b.available = err == nil && n > 0
	})
	return b.available
}

func (b *CUDABackend) Devices() ([]DeviceInfo, error) {
	if !b.Available() {
		return nil, ErrBackendUnavailable
	}
	n, err := deviceCount()
	if err != nil {
		return nil, err
	}
	var driver C.int
	C.cudaDriverGetVersion(&driver)
	out := make([]DeviceInfo, 0, n)
	for i := 0; i < n; i++ {
		var prop C.struct_cudaDeviceProp
		if err := cudaCheck("cudaGetDeviceProperties", C.cudaGetDeviceProperties(&prop, C.int(i))); err != nil {
			return nil, err
		}
		out = append(out, DeviceInfo{
			Index:      i,
			Name:       C.GoString(&prop.name[0]),
			Vendor:     "NVIDIA",
			Driver:     fmt.Sprintf("%d.%d", driver/1000, (driver%1000)/10),
			MemoryMB:   int(prop.totalGlobalMem >> 20),
			ComputeCap: fmt.Sprintf("%d.%d", int(prop.major), int(prop.minor)),
		})
	}
	return out, nil
}

func (b *CUDABackend) NewContext(deviceIndex int) (Context, error) {
	devices, err := b.Devices()
	if err != nil {
		return nil, err
	}
	if deviceIndex < 0 || deviceIndex >= len(devices) {
		return nil, fmt.Errorf("%w: %d of %d", ErrDeviceIndex, deviceIndex, len(devices))
	}
	c := &cudaContext{backend: b.Info(), device: devices[deviceIndex]}
	if err := c.bind(); err != nil {
		return nil, err
	}
	// a missing or broken cuSOLVER is reported by Solver, not here
	if st := C.cusolverDnCreate(&c.handle); st != C.CUSOLVER_STATUS_SUCCESS {
		c.solverErr = fmt.Errorf("%w: %w", ErrSolverUnavailable,
			&NativeError{Library: "cusolver", Op: "cusolverDnCreate", Code: int(st)})
		log.Logger().Debug("cusolver handle unavailable",
			zap.Int("device", deviceIndex), zap.Error(c.solverErr))
	}
	return c, nil
}

func deviceCount() (int, error) {
	var n C.int
	if err := cudaCheck("cudaGetDeviceCount", C.cudaGetDeviceCount(&n)); err != nil {
		return 0, err
	}
	return int(n), nil
}

func cudaCheck(op string, e C.cudaError_t) error {
	if e == C.cudaSuccess {
		return nil
	}
	return &NativeError{
		Library: "cudart",
		Op:      op,
		Code:    int(e),
		Message: C.GoString(C.cudaGetErrorString(e)),
	}
}

func cusolverCheck(op string, st C.cusolverStatus_t) error {
	if st == C.CUSOLVER_STATUS_SUCCESS {
		return nil
	}
	return &NativeError{Library: "cusolver", Op: op, Code: int(st)}
}

type cudaContext struct {
	backend   BackendInfo
	device    DeviceInfo
	handle    C.cusolverDnHandle_t
	solverErr error
	closed    bool
}

var _ Context = (*cudaContext)(nil)

func (c *cudaContext) Backend() BackendInfo { return c.backend }

func (c *cudaContext) Device() DeviceInfo { return c.device }

func (c *cudaContext) bind() error {
	if c.closed {
		return ErrContextClosed
	}
	return cudaCheck("cudaSetDevice", C.cudaSetDevice(C.int(c.device.Index)))
}

func (c *cudaContext) NewBuffer(elemCount int, dt dtype.DType) (Buffer, error) {
	if elemCount < 0 {
		return nil, deviceErrorf("NewBuffer", ErrInvalidLength)
	}
	if !dt.Valid() {
		return nil, deviceErrorf("NewBuffer", fmt.Errorf("%w: %s", ErrUnsupportedDType, dt))
	}
	if err := c.bind(); err != nil {
		return nil, deviceErrorf("NewBuffer", err)
	}
	b := &cudaBuffer{owner: c, dt: dt, n: elemCount}
	size := C.size_t(b.bytes())
	if size == 0 {
		return b, nil
	}
	if err := cudaCheck("cudaMalloc", C.cudaMalloc(&b.ptr, size)); err != nil {
		return nil, deviceErrorf("NewBuffer", err)
	}
	if err := cudaCheck("cudaMemset", C.cudaMemset(b.ptr, 0, size)); err != nil {
		C.cudaFree(b.ptr)
		return nil, deviceErrorf("NewBuffer", err)
	}
	return b, nil
}

func (c *cudaContext) own(op string, b Buffer) (*cudaBuffer, error) {
	cb, ok := b.(*cudaBuffer)
	if !ok || cb.owner != c {
		return nil, deviceErrorf(op, ErrForeignBuffer)
	}
	if cb.closed {
		return nil, deviceErrorf(op, ErrBufferClosed)
	}
	return cb, nil
}

// Cast stages both buffers through host memory.
func (c *cudaContext) Cast(dst, src Buffer) error {
	d, err := c.own("Cast", dst)
	if err != nil {
		return err
	}
	s, err := c.own("Cast", src)
	if err != nil {
		return err
	}
	if d.n != s.n {
		return deviceErrorf("Cast", ErrLengthMismatch)
	}
	in, err := SliceOf(s.dt, s.n)
	if err != nil {
		return deviceErrorf("Cast", err)
	}
	out, err := SliceOf(d.dt, d.n)
	if err != nil {
		return deviceErrorf("Cast", err)
	}
	if err := s.Download(in); err != nil {
		return err
	}
	if err := castInto(out, in); err != nil {
		return deviceErrorf("Cast", err)
	}
	return d.Upload(out)
}

// Tril clears the tail of every row with one cudaMemset per row; an all-zero
// bit pattern is the zero value of every supported dtype.
func (c *cudaContext) Tril(buf Buffer, rows, cols, k int) error {
	b, err := c.own("Tril", buf)
	if err != nil {
		return err
	}
	if rows < 0 || cols < 0 {
		return deviceErrorf("Tril", ErrInvalidLength)
	}
	if rows*cols != b.n {
		return deviceErrorf("Tril", ErrLengthMismatch)
	}
	if err := c.bind(); err != nil {
		return deviceErrorf("Tril", err)
	}
	size := b.dt.ItemSize()
	for u := 0; u < rows; u++ {
		start, ok := trilStart(u, cols, k)
		if !ok {
			continue
		}
		at := unsafe.Add(b.ptr, (u*cols+start)*size)
		if err := cudaCheck("cudaMemset", C.cudaMemset(at, 0, C.size_t((cols-start)*size))); err != nil {
			return deviceErrorf("Tril", err)
		}
	}
	return nil
}

func (c *cudaContext) Solver() (Solver, error) {
	if c.closed {
		return nil, deviceErrorf("Solver", ErrContextClosed)
	}
	if c.solverErr != nil {
		return nil, deviceErrorf("Solver", c.solverErr)
	}
	return &cudaSolver{ctx: c}, nil
}

func (c *cudaContext) Synchronize() error {
	if err := c.bind(); err != nil {
		return deviceErrorf("Synchronize", err)
	}
	if err := cudaCheck("cudaDeviceSynchronize", C.cudaDeviceSynchronize()); err != nil {
		return deviceErrorf("Synchronize", err)
	}
	return nil
}

func (c *cudaContext) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.solverErr == nil {
		if err := cusolverCheck("cusolverDnDestroy", C.cusolverDnDestroy(c.handle)); err != nil {
			return deviceErrorf("Close", err)
		}
	}
	log.Logger().Debug("device context closed",
		zap.String("backend", c.backend.Name), zap.Int("device", c.device.Index))
	return nil
}

type cudaBuffer struct {
	owner  *cudaContext
	dt     dtype.DType
	n      int
	ptr    unsafe.Pointer
	closed bool
}

func (b *cudaBuffer) Len() int { return b.n }

func (b *cudaBuffer) DType() dtype.DType { return b.dt }

func (b *cudaBuffer) bytes() int { return b.n * b.dt.ItemSize() }

// hostSlice checks that s is a host slice of b's dtype with at least b.n
// elements and returns a pointer to its first element.
func (b *cudaBuffer) hostSlice(s any) (unsafe.Pointer, error) {
	dt, n, ok := SliceInfo(s)
	if !ok || dt != b.dt {
		return nil, fmt.Errorf("%w: host slice %T for %s buffer", ErrUnsupportedDType, s, b.dt)
	}
	if n < b.n {
		return nil, ErrLengthMismatch
	}
	if n == 0 {
		return nil, nil
	}
	return reflect.ValueOf(s).UnsafePointer(), nil
}

func (b *cudaBuffer) Upload(src any) error {
	if b.closed {
		return deviceErrorf("Upload", ErrBufferClosed)
	}
	host, err := b.hostSlice(src)
	if err != nil {
		return deviceErrorf("Upload", err)
	}
	if b.n == 0 {
		return nil
	}
	e := C.cudaMemcpy(b.ptr, host, C.size_t(b.bytes()), C.cudaMemcpyHostToDevice)
	if err := cudaCheck("cudaMemcpy", e); err != nil {
		return deviceErrorf("Upload", err)
	}
	return nil
}

func (b *cudaBuffer) Download(dst any) error {
	if b.closed {
		return deviceErrorf("Download", ErrBufferClosed)
	}
	host, err := b.hostSlice(dst)
	if err != nil {
		return deviceErrorf("Download", err)
	}
	if b.n == 0 {
		return nil
	}
	e := C.cudaMemcpy(host, b.ptr, C.size_t(b.bytes()), C.cudaMemcpyDeviceToHost)
	if err := cudaCheck("cudaMemcpy", e); err != nil {
		return deviceErrorf("Download", err)
	}
	return nil
}

func (b *cudaBuffer) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.ptr == nil {
		return nil
	}
	if err := cudaCheck("cudaFree", C.cudaFree(b.ptr)); err != nil {
		return deviceErrorf("Close", err)
	}
	b.ptr = nil
	return nil
}

type cudaSolver struct {
	ctx *cudaContext
}

var _ Solver = (*cudaSolver)(nil)

func (s *cudaSolver) PotrfBufferSize(fill FillMode, n int, a Buffer, lda int) (int, error) {
	ab, err := s.ctx.own("PotrfBufferSize", a)
	if err != nil {
		return 0, err
	}
	if err := s.ctx.bind(); err != nil {
		return 0, deviceErrorf("PotrfBufferSize", err)
	}
	if err := checkCUDAPotrfShape(ab, n, lda); err != nil {
		return 0, deviceErrorf("PotrfBufferSize", err)
	}
	uplo := C.cublasFillMode_t(fill)
	var lwork C.int
	switch ab.dt {
	case dtype.Float32:
		err = cusolverCheck("cusolverDnSpotrf_bufferSize", C.cusolverDnSpotrf_bufferSize(
			s.ctx.handle, uplo, C.int(n), (*C.float)(ab.ptr), C.int(lda), &lwork))
	case dtype.Float64:
		err = cusolverCheck("cusolverDnDpotrf_bufferSize", C.cusolverDnDpotrf_bufferSize(
			s.ctx.handle, uplo, C.int(n), (*C.double)(ab.ptr), C.int(lda), &lwork))
	default:
		err = fmt.Errorf("%w: argument %d: %s", ErrInvalidParameter, argA, ab.dt)
	}
	if err != nil {
		return 0, deviceErrorf("PotrfBufferSize", err)
	}
	return int(lwork), nil
}

func (s *cudaSolver) Potrf(fill FillMode, n int, a Buffer, lda int, work Buffer, lwork int, info Buffer) error {
	ab, err := s.ctx.own("Potrf", a)
	if err != nil {
		return err
	}
	wb, err := s.ctx.own("Potrf", work)
	if err != nil {
		return err
	}
	ib, err := s.ctx.own("Potrf", info)
	if err != nil {
		return err
	}
	if ib.dt != dtype.Int32 || ib.n < 1 {
		return deviceErrorf("Potrf",
			fmt.Errorf("%w: argument %d: want a one-element int32 buffer", ErrInvalidParameter, argInfo))
	}
	if err := checkCUDAPotrfShape(ab, n, lda); err != nil {
		return deviceErrorf("Potrf", err)
	}
	if wb.dt != ab.dt {
		return deviceErrorf("Potrf", fmt.Errorf("%w: argument %d: %s workspace for %s matrix",
			ErrInvalidParameter, argWork, wb.dt, ab.dt))
	}
	if err := s.ctx.bind(); err != nil {
		return deviceErrorf("Potrf", err)
	}
	uplo := C.cublasFillMode_t(fill)
	switch ab.dt {
	case dtype.Float32:
		err = cusolverCheck("cusolverDnSpotrf", C.cusolverDnSpotrf(s.ctx.handle, uplo, C.int(n),
			(*C.float)(ab.ptr), C.int(lda), (*C.float)(wb.ptr), C.int(lwork), (*C.int)(ib.ptr)))
	case dtype.Float64:
		err = cusolverCheck("cusolverDnDpotrf", C.cusolverDnDpotrf(s.ctx.handle, uplo, C.int(n),
			(*C.double)(ab.ptr), C.int(lda), (*C.double)(wb.ptr), C.int(lwork), (*C.int)(ib.ptr)))
	default:
		err = fmt.Errorf("%w: argument %d: %s", ErrInvalidParameter, argA, ab.dt)
	}
	if err != nil {
		return deviceErrorf("Potrf", err)
	}
	return nil
}

// checkCUDAPotrfShape rejects n and lda that do not fit the C int arguments
// of cuSOLVER or that address past the end of a.
func checkCUDAPotrfShape(a *cudaBuffer, n, lda int) error {
	switch {
	case n < 0 || n > math.MaxInt32:
		return fmt.Errorf("%w: argument %d: n=%d", ErrInvalidParameter, argN, n)
	case lda < max(1, n) || lda > math.MaxInt32:
		return fmt.Errorf("%w: argument %d: lda=%d", ErrInvalidParameter, argLda, lda)
	case n > 0 && !fitsColumnMajor(a.n, n, lda):
		return fmt.Errorf("%w: argument %d: %d elements for n=%d lda=%d", ErrInvalidParameter, argA, a.n, n, lda)
	}
	return nil
}
