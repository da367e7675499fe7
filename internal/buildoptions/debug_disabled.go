//go:build !debug_regcache
// +build !debug_regcache

package buildoptions

// IsDebugMode is the default of the register cache verification mode. Build with the "debug_regcache"
// tag to check the cache invariants after every mutating operation unless a config says otherwise.
const IsDebugMode = false
