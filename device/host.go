// SPDX-License-Identifier: MIT

package device

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/katalvlaran/lvgpu/dtype"
	"github.com/katalvlaran/lvgpu/log"
	"github.com/x448/float16"
	"go.uber.org/zap"
)

// HostBackendName is the registry name of the CPU-backed backend.
const HostBackendName = "host"

// HostBackend is a CPU-backed backend. It satisfies the device interfaces,
// keeps buffers in host memory and runs the dense solver on the CPU with the
// same storage conventions and status codes as the vendor library.
type HostBackend struct {
	device DeviceInfo
}

// NewHostBackend returns a host backend exposing a single device.
func NewHostBackend() *HostBackend {
	return &HostBackend{
		device: DeviceInfo{
			Index:      0,
			Name:       "HostCPU",
			Vendor:     runtime.GOARCH,
			Driver:     "host",
			ComputeCap: hostFeatures(),
		},
	}
}

func (b *HostBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        HostBackendName,
		Version:     "1",
		Description: "CPU-backed backend with a gonum dense solver",
	}
}

func (b *HostBackend) Available() bool { return true }

func (b *HostBackend) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{b.device}, nil
}

func (b *HostBackend) NewContext(deviceIndex int) (Context, error) {
	return b.NewHostContext(deviceIndex)
}

// NewHostContext is NewContext with the concrete return type.
func (b *HostBackend) NewHostContext(deviceIndex int) (*HostContext, error) {
	if deviceIndex != 0 {
		return nil, fmt.Errorf("%w: host backend has 1 device, got index %d", ErrDeviceIndex, deviceIndex)
	}
	c := &HostContext{backend: b.Info(), device: b.device}
	c.solver = &hostSolver{ctx: c}
	return c, nil
}

// HostContext is the execution context of the host backend.
type HostContext struct {
	backend BackendInfo
	device  DeviceInfo
	solver  *hostSolver
	live    atomic.Int64
	closed  atomic.Bool
}

var _ Context = (*HostContext)(nil)

func (c *HostContext) Backend() BackendInfo { return c.backend }

func (c *HostContext) Device() DeviceInfo { return c.device }

// LiveBuffers reports how many buffers allocated by c are not yet closed.
func (c *HostContext) LiveBuffers() int { return int(c.live.Load()) }

func (c *HostContext) NewBuffer(elemCount int, dt dtype.DType) (Buffer, error) {
	if c.closed.Load() {
		return nil, deviceErrorf("NewBuffer", ErrContextClosed)
	}
	if elemCount < 0 {
		return nil, deviceErrorf("NewBuffer", ErrInvalidLength)
	}
	data, err := SliceOf(dt, elemCount)
	if err != nil {
		return nil, deviceErrorf("NewBuffer", err)
	}
	c.live.Add(1)
	return &hostBuffer{owner: c, dt: dt, n: elemCount, data: data}, nil
}

// own returns b as a live host buffer of this context.
func (c *HostContext) own(op string, b Buffer) (*hostBuffer, error) {
	hb, ok := b.(*hostBuffer)
	if !ok || hb.owner != c {
		return nil, deviceErrorf(op, ErrForeignBuffer)
	}
	if hb.data == nil {
		return nil, deviceErrorf(op, ErrBufferClosed)
	}
	return hb, nil
}

func (c *HostContext) Cast(dst, src Buffer) error {
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
	if err := castInto(d.data, s.data); err != nil {
		return deviceErrorf("Cast", err)
	}
	return nil
}

func (c *HostContext) Tril(buf Buffer, rows, cols, k int) error {
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
	if err := trilAny(b.data, rows, cols, k); err != nil {
		return deviceErrorf("Tril", err)
	}
	return nil
}

func (c *HostContext) Solver() (Solver, error) {
	if c.closed.Load() {
		return nil, deviceErrorf("Solver", ErrContextClosed)
	}
	return c.solver, nil
}

// Synchronize is a no-op: host work completes before each call returns.
func (c *HostContext) Synchronize() error { return nil }

func (c *HostContext) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	log.Logger().Debug("device context closed",
		zap.String("backend", c.backend.Name),
		zap.Int("live_buffers", c.LiveBuffers()))
	return nil
}

type hostBuffer struct {
	owner *HostContext
	dt    dtype.DType
	n     int
	data  any // typed slice, nil once closed
}

func (b *hostBuffer) Len() int { return b.n }

func (b *hostBuffer) DType() dtype.DType { return b.dt }

func (b *hostBuffer) Upload(src any) error {
	if b.data == nil {
		return deviceErrorf("Upload", ErrBufferClosed)
	}
	if err := copyAny(b.data, src); err != nil {
		return deviceErrorf("Upload", err)
	}
	return nil
}

func (b *hostBuffer) Download(dst any) error {
	if b.data == nil {
		return deviceErrorf("Download", ErrBufferClosed)
	}
	if err := copyOutAny(b.data, dst); err != nil {
		return deviceErrorf("Download", err)
	}
	return nil
}

func (b *hostBuffer) Close() error {
	if b.data == nil {
		return nil
	}
	b.data = nil
	b.owner.live.Add(-1)
	return nil
}

// copyAny copies len(dst) elements from src into the typed slice dst.
func copyAny(dst, src any) error {
	switch d := dst.(type) {
	case []bool:
		return copyHost(d, src)
	case []int8:
		return copyHost(d, src)
	case []int16:
		return copyHost(d, src)
	case []int32:
		return copyHost(d, src)
	case []int64:
		return copyHost(d, src)
	case []uint8:
		return copyHost(d, src)
	case []uint16:
		return copyHost(d, src)
	case []uint32:
		return copyHost(d, src)
	case []uint64:
		return copyHost(d, src)
	case []float16.Float16:
		return copyHost(d, src)
	case []float32:
		return copyHost(d, src)
	case []float64:
		return copyHost(d, src)
	case []complex64:
		return copyHost(d, src)
	case []complex128:
		return copyHost(d, src)
	}
	return fmt.Errorf("%w: %T", ErrUnsupportedDType, dst)
}

// copyOutAny copies every element of the typed slice src into dst.
func copyOutAny(src, dst any) error {
	switch s := src.(type) {
	case []bool:
		return copyOut(s, dst)
	case []int8:
		return copyOut(s, dst)
	case []int16:
		return copyOut(s, dst)
	case []int32:
		return copyOut(s, dst)
	case []int64:
		return copyOut(s, dst)
	case []uint8:
		return copyOut(s, dst)
	case []uint16:
		return copyOut(s, dst)
	case []uint32:
		return copyOut(s, dst)
	case []uint64:
		return copyOut(s, dst)
	case []float16.Float16:
		return copyOut(s, dst)
	case []float32:
		return copyOut(s, dst)
	case []float64:
		return copyOut(s, dst)
	case []complex64:
		return copyOut(s, dst)
	case []complex128:
		return copyOut(s, dst)
	}
	return fmt.Errorf("%w: %T", ErrUnsupportedDType, src)
}
