//go:build darwin

package vector

import (
	"log/slog"
	"unsafe"

	"github.com/ebitengine/purego"
)

// newNativeDot binds Accelerate's vDSP_dotpr via purego (no cgo). If the
// library or symbol can't be resolved, it falls back to nil and callers
// use the pure-Go SIMD-4 path instead (spec §4.E.3 "graceful fallback").
func newNativeDot() nativeDotFunc {
	lib, err := purego.Dlopen("/System/Library/Frameworks/Accelerate.framework/Accelerate", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		slog.Debug("vector: Accelerate not available, using pure-Go dot product", "error", err)
		return nil
	}

	var vDSPDotpr func(a unsafe.Pointer, strideA uintptr, b unsafe.Pointer, strideB uintptr, out unsafe.Pointer, n uintptr)
	purego.RegisterLibFunc(&vDSPDotpr, lib, "vDSP_dotpr")

	return func(a, b []float32) float32 {
		if len(a) == 0 {
			return 0
		}
		var result float32
		vDSPDotpr(
			unsafe.Pointer(&a[0]), 1,
			unsafe.Pointer(&b[0]), 1,
			unsafe.Pointer(&result),
			uintptr(len(a)),
		)
		return result
	}
}
