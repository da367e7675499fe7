package amd64

import (
	"fmt"

	"github.com/allegrex-jit/fpucache/internal/asm"
)

// Arch names accepted by NewAssembler.
const (
	ArchAMD64 = "amd64"
	Arch386   = "386"
)

// NewAssembler returns an Assembler emitting machine code for arch, which is either ArchAMD64 or Arch386.
func NewAssembler(arch string) (Assembler, error) {
	switch arch {
	case ArchAMD64, Arch386:
	default:
		return nil, fmt.Errorf("unsupported arch %q", arch)
	}
	return newGolangAsmAssembler(arch)
}

// Assembler is the SSE subset of the amd64 assembler. Both the 64-bit and 32-bit encodings share it.
type Assembler interface {
	asm.AssemblerBase

	// CompileRegisterToRegisterInstruction adds an instruction where source and destination operands are registers.
	CompileRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register)
	// CompileConstModeRegisterToRegisterInstruction adds an instruction taking an imm8 "mode" as its first operand,
	// e.g. "SHUFPS $mode, from, to".
	CompileConstModeRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register, mode int64)
	// CompileMemoryToRegisterInstruction adds an instruction where source operand is the memory address specified by
	// `sourceBaseReg+sourceOffsetConst` and the destination is `destinationReg` register.
	CompileMemoryToRegisterInstruction(inst asm.Instruction, sourceBaseReg asm.Register, sourceOffsetConst int64, destinationReg asm.Register)
	// CompileRegisterToMemoryInstruction adds an instruction where source operand is `sourceRegister` register and the
	// destination is the memory address specified by `destinationBaseRegister+destinationOffsetConst`.
	CompileRegisterToMemoryInstruction(inst asm.Instruction, sourceRegister asm.Register, destinationBaseRegister asm.Register, destinationOffsetConst int64)
}
