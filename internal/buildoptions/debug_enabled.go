//go:build debug_regcache
// +build debug_regcache

package buildoptions

const IsDebugMode = true
