//go:build !amd64 && !386

package fpucache

import "github.com/allegrex-jit/fpucache/internal/asm/amd64"

// NativeSupported is true when the host can run the code the cache emits.
const NativeSupported = false

const defaultArch = amd64.ArchAMD64
