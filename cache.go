// Package fpucache is a register cache for a just-in-time compiler of Allegrex (PSP MIPS) code to amd64 and
// 386. It keeps the 32 scalar floating point registers, the 128 VFPU lanes and a handful of temporaries in
// XMM registers while a block is compiled, packing VFPU lanes into the lanes of one XMM register for vector
// operations.
//
// A typical block compilation looks like this:
//
//	a, _ := fpucache.NewAssembler(config)
//	c, _ := fpucache.NewCache(a, config)
//	func() (err error) {
//		defer fpucache.Recover(&err)
//		for _, inst := range block {
//			c.SpillLock(...)   // sources
//			c.MapRegister(...) // or PackRegisters for vector operations
//			// emit the operation on c.PhysicalOf(...)
//			c.ReleaseAllSpillLocks()
//		}
//		c.Flush()
//		return nil
//	}()
//	code, _ := a.Assemble()
package fpucache

import (
	"fmt"

	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
	"github.com/allegrex-jit/fpucache/internal/regcache"
	"github.com/allegrex-jit/fpucache/internal/vfpu"
)

type (
	// Cache is the register cache. See regcache.Cache for its operations.
	Cache = regcache.Cache
	// Emitter receives the data movement instructions the cache emits.
	Emitter = regcache.Emitter
	// Assembler is an Emitter producing machine code.
	Assembler = amd64.Assembler
	// Layout places the home slots of the guest registers in the guest state.
	Layout = regcache.Layout
	// Location is where a guest register currently lives.
	Location = regcache.Location
	// State is a snapshot taken by Cache.GetState.
	State = regcache.State
	// MapFlags tune how a register is mapped.
	MapFlags = regcache.MapFlags
	// FatalError is the panic value of allocator bugs and broken caller contracts.
	FatalError = regcache.FatalError
	// InvariantError is returned by Cache.CheckInvariants.
	InvariantError = regcache.InvariantError
	// VectorSize is the length of a VFPU vector operand.
	VectorSize = vfpu.VectorSize
	// MatrixSize is the side of a VFPU matrix operand.
	MatrixSize = vfpu.MatrixSize
)

const (
	MapInit   = regcache.MapInit
	MapNoInit = regcache.MapNoInit
	MapClean  = regcache.MapClean
	MapDirty  = regcache.MapDirty

	NumFPRs        = regcache.NumFPRs
	NumTemps       = regcache.NumTemps
	Temp0          = regcache.Temp0
	NumVirtualRegs = regcache.NumVirtualRegs

	VectorSizeSingle = vfpu.VectorSizeSingle
	VectorSizePair   = vfpu.VectorSizePair
	VectorSizeTriple = vfpu.VectorSizeTriple
	VectorSizeQuad   = vfpu.VectorSizeQuad

	MatrixSize1x1 = vfpu.MatrixSize1x1
	MatrixSize2x2 = vfpu.MatrixSize2x2
	MatrixSize3x3 = vfpu.MatrixSize3x3
	MatrixSize4x4 = vfpu.MatrixSize4x4
)

// Recover stores a *FatalError raised in the calling function into *err and lets other panics through.
// It must be deferred directly: defer fpucache.Recover(&err)
var Recover = regcache.Recover

// NewCache returns a register cache emitting through emitter, configured by config. A nil config means
// NewCacheConfig.
func NewCache(emitter Emitter, config *CacheConfig) (*Cache, error) {
	if config == nil {
		config = NewCacheConfig()
	}
	c, err := regcache.New(emitter, config.options())
	if err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}
	return c, nil
}

// NewAssembler returns an Assembler for the architecture of config. A nil config means NewCacheConfig.
func NewAssembler(config *CacheConfig) (Assembler, error) {
	if config == nil {
		config = NewCacheConfig()
	}
	return amd64.NewAssembler(config.arch)
}

// VectorRegs decodes a VFPU vector register operand into its lane indices (0-127).
func VectorRegs(size VectorSize, reg int) []uint8 {
	return vfpu.VectorRegs(size, reg)
}

// MatrixRegs decodes a VFPU matrix register operand into lane indices laid out as [column*4+row].
func MatrixRegs(size MatrixSize, reg int) [16]uint8 {
	return vfpu.MatrixRegs(size, reg)
}
