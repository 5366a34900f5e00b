// SPDX-License-Identifier: MIT

//go:build linux

package device

import "golang.org/x/sys/unix"

// nvidiaControlNode exists whenever the NVIDIA kernel driver is loaded.
const nvidiaControlNode = "/dev/nvidiactl"

// DriverPresent reports whether a GPU kernel driver appears to be loaded. It
// only inspects the device nodes and never initializes a runtime.
func DriverPresent() bool {
	return unix.Access(nvidiaControlNode, unix.F_OK) == nil
}
