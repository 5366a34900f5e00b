// SPDX-License-Identifier: MIT

package device

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// hostFeatures lists the SIMD extensions of the host CPU that the BLAS
// kernels may use, for example "avx2+fma".
func hostFeatures() string {
	var feats []string
	switch {
	case cpu.X86.HasAVX512F:
		feats = append(feats, "avx512f")
	case cpu.X86.HasAVX2:
		feats = append(feats, "avx2")
	case cpu.X86.HasSSE42:
		feats = append(feats, "sse4.2")
	}
	if cpu.X86.HasFMA {
		feats = append(feats, "fma")
	}
	if cpu.ARM64.HasASIMD {
		feats = append(feats, "asimd")
	}
	if len(feats) == 0 {
		return "generic"
	}
	return strings.Join(feats, "+")
}
