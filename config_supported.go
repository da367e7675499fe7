//go:build amd64 || 386

package fpucache

import "runtime"

// NativeSupported is true when the host can run the code the cache emits.
const NativeSupported = true

const defaultArch = runtime.GOARCH
