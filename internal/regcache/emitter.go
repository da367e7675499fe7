package regcache

import (
	"github.com/allegrex-jit/fpucache/internal/asm"
	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
)

// Emitter is the part of the assembler the cache emits through. amd64.Assembler, amd64.Recorder and
// the simd.Machine simulator implement it.
type Emitter interface {
	CompileMemoryToRegisterInstruction(inst asm.Instruction, sourceBaseReg asm.Register, sourceOffsetConst int64, destinationReg asm.Register)
	CompileRegisterToMemoryInstruction(inst asm.Instruction, sourceRegister asm.Register, destinationBaseRegister asm.Register, destinationOffsetConst int64)
	CompileRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register)
	CompileConstModeRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register, mode int64)
}

var (
	_ Emitter = amd64.Assembler(nil)
	_ Emitter = &amd64.Recorder{}
)

// loadScalar moves the scalar at from into lane 0 of dst.
// From memory the upper lanes are zeroed; from a register they are kept.
func (c *Cache) loadScalar(dst asm.Register, from Location) {
	switch from.Kind {
	case LocationRegister:
		c.emit.CompileRegisterToRegisterInstruction(amd64.MOVSS, from.Reg, dst)
	case LocationHome:
		c.emit.CompileMemoryToRegisterInstruction(amd64.MOVSS, from.Reg, from.Offset, dst)
	default:
		fatalf(FatalImmediate, "cannot load %s into %s", from, amd64.RegisterName(dst))
	}
}

// storeScalar stores lane 0 of src at to.
func (c *Cache) storeScalar(to Location, src asm.Register) {
	c.emit.CompileRegisterToMemoryInstruction(amd64.MOVSS, src, to.Reg, to.Offset)
}

func (c *Cache) unpcklps(from, to asm.Register) {
	c.emit.CompileRegisterToRegisterInstruction(amd64.UNPCKLPS, from, to)
}

func (c *Cache) shufps(from, to asm.Register, mode int64) {
	c.emit.CompileConstModeRegisterToRegisterInstruction(amd64.SHUFPS, from, to, mode)
}

// swapTo0 returns the SHUFPS selector exchanging lane 0 with lane.
func swapTo0(lane int) int64 {
	switch lane {
	case 1:
		return amd64.Shuffle(3, 2, 0, 1)
	case 2:
		return amd64.Shuffle(3, 0, 1, 2)
	case 3:
		return amd64.Shuffle(0, 2, 1, 3)
	}
	return amd64.Shuffle(3, 2, 1, 0)
}
