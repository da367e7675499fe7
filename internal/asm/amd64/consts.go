package amd64

import (
	"fmt"

	"github.com/allegrex-jit/fpucache/internal/asm"
)

// Instructions the register cache and its callers emit.
const (
	NONE asm.Instruction = iota
	ADDPS
	ADDSS
	DIVSS
	MOVAPS
	MOVSS
	MULPS
	MULSS
	SHUFPS
	SUBPS
	SUBSS
	UNPCKLPS
	XORPS

	instructionEnd
)

// InstructionName returns the assembler mnemonic of the given instruction.
func InstructionName(instruction asm.Instruction) string {
	switch instruction {
	case ADDPS:
		return "ADDPS"
	case ADDSS:
		return "ADDSS"
	case DIVSS:
		return "DIVSS"
	case MOVAPS:
		return "MOVAPS"
	case MOVSS:
		return "MOVSS"
	case MULPS:
		return "MULPS"
	case MULSS:
		return "MULSS"
	case SHUFPS:
		return "SHUFPS"
	case SUBPS:
		return "SUBPS"
	case SUBSS:
		return "SUBSS"
	case UNPCKLPS:
		return "UNPCKLPS"
	case XORPS:
		return "XORPS"
	}
	return "NONE"
}

// InstructionByName is the inverse of InstructionName.
func InstructionByName(name string) (asm.Instruction, bool) {
	for i := NONE + 1; i < instructionEnd; i++ {
		if InstructionName(i) == name {
			return i, true
		}
	}
	return NONE, false
}

// intRegisterIotaBegin and floatRegisterIotaBegin equal x86.REG_AX and x86.REG_X0 of golang-asm.
const (
	intRegisterIotaBegin   asm.Register = 2064
	floatRegisterIotaBegin asm.Register = 2108
)

const (
	REG_AX asm.Register = intRegisterIotaBegin + iota
	REG_CX
	REG_DX
	REG_BX
	REG_SP
	REG_BP
	REG_SI
	REG_DI
	REG_R8
	REG_R9
	REG_R10
	REG_R11
	REG_R12
	REG_R13
	REG_R14
	REG_R15
)

const (
	REG_X0 asm.Register = floatRegisterIotaBegin + iota
	REG_X1
	REG_X2
	REG_X3
	REG_X4
	REG_X5
	REG_X6
	REG_X7
	REG_X8
	REG_X9
	REG_X10
	REG_X11
	REG_X12
	REG_X13
	REG_X14
	REG_X15
)

var intRegisterNames = [...]string{
	"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI",
	"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15",
}

// IsFloatRegister reports whether reg is one of X0-X15.
func IsFloatRegister(reg asm.Register) bool {
	return REG_X0 <= reg && reg <= REG_X15
}

// IsIntRegister reports whether reg is one of AX-R15.
func IsIntRegister(reg asm.Register) bool {
	return REG_AX <= reg && reg <= REG_R15
}

// FloatRegister returns the register X<index>.
func FloatRegister(index int) asm.Register {
	return REG_X0 + asm.Register(index)
}

// FloatRegisterIndex returns n for the register Xn.
func FloatRegisterIndex(reg asm.Register) int {
	return int(reg - REG_X0)
}

// RegisterName returns the golang-asm spelling of the register, e.g. "X6" or "R14".
func RegisterName(reg asm.Register) string {
	switch {
	case reg == asm.NilRegister:
		return "nil"
	case IsFloatRegister(reg):
		return fmt.Sprintf("X%d", FloatRegisterIndex(reg))
	case IsIntRegister(reg):
		return intRegisterNames[reg-REG_AX]
	}
	return fmt.Sprintf("unknown(%d)", reg)
}

// Shuffle returns the SHUFPS immediate selecting lanes (d, c, b, a) for the result lanes (3, 2, 1, 0).
func Shuffle(d, c, b, a byte) int64 {
	return int64(d)<<6 | int64(c)<<4 | int64(b)<<2 | int64(a)
}
