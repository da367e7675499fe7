package fpucache

import (
	"io"

	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
	"github.com/allegrex-jit/fpucache/internal/buildoptions"
	"github.com/allegrex-jit/fpucache/internal/regcache"
)

// Target architectures accepted by CacheConfig.WithArch.
const (
	ArchAMD64 = amd64.ArchAMD64
	Arch386   = amd64.Arch386
)

// CacheConfig controls how NewCache builds a register cache, with the default implementation as NewCacheConfig.
type CacheConfig struct {
	arch        string
	layout      Layout
	verify      bool
	diagnostics io.Writer
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &CacheConfig{
	arch:        defaultArch,
	verify:      buildoptions.IsDebugMode,
	diagnostics: io.Discard,
}

// clone ensures all fields are copied even if nil.
func (c *CacheConfig) clone() *CacheConfig {
	return &CacheConfig{
		arch:        c.arch,
		layout:      c.layout,
		verify:      c.verify,
		diagnostics: c.diagnostics,
	}
}

// NewCacheConfig returns the default configuration: the host architecture if it is amd64 or 386 (amd64
// otherwise), the default guest state layout of that architecture, and no diagnostics.
func NewCacheConfig() *CacheConfig {
	return defaultConfig.clone()
}

// WithArch selects the target architecture, ArchAMD64 or Arch386. This decides how many XMM registers the
// cache allocates from and, unless WithLayout is used, the guest state base register.
func (c *CacheConfig) WithArch(arch string) *CacheConfig {
	ret := c.clone()
	ret.arch = arch
	return ret
}

// WithLayout places the home slots of the guest registers. The zero value restores the default layout of the
// target architecture.
func (c *CacheConfig) WithLayout(layout Layout) *CacheConfig {
	ret := c.clone()
	ret.layout = layout
	return ret
}

// WithVerification runs the consistency checker after every operation that changes the cache and panics with
// a *FatalError on the first inconsistency. This defaults to false unless built with the debug_regcache tag.
//
// Note: This is slow, and intended for tests and for chasing allocator bugs.
func (c *CacheConfig) WithVerification(enabled bool) *CacheConfig {
	ret := c.clone()
	ret.verify = enabled
	return ret
}

// WithDiagnostics sets where non-fatal warnings, such as misaligned home slots, are written. Defaults to
// io.Discard if nil.
func (c *CacheConfig) WithDiagnostics(w io.Writer) *CacheConfig {
	if w == nil {
		w = io.Discard
	}
	ret := c.clone()
	ret.diagnostics = w
	return ret
}

// Arch returns the configured target architecture.
func (c *CacheConfig) Arch() string {
	return c.arch
}

// Layout returns the guest state layout the cache will use.
func (c *CacheConfig) Layout() Layout {
	if c.layout == (Layout{}) {
		return regcache.DefaultLayout(c.arch)
	}
	return c.layout
}

func (c *CacheConfig) options() regcache.Options {
	return regcache.Options{
		Arch:        c.arch,
		Layout:      c.layout,
		Verify:      c.verify,
		Diagnostics: c.diagnostics,
	}
}
