// Package simd interprets the SSE instructions used by the register cache against a simulated register
// file and guest state, so that allocator output can be executed without running generated code.
package simd

import (
	"fmt"
	"math"

	"github.com/allegrex-jit/fpucache/internal/asm"
	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
)

// Machine is a simulated XMM register file plus a guest state arena addressed from one base register.
// Each operation is executed as it is compiled and recorded for listings.
//
// The first invalid operation is kept in Err and the machine stops executing after it.
type Machine struct {
	*amd64.Recorder

	// XMM is the register file, lanes as raw float32 bits.
	XMM [16][4]uint32
	// State is the guest state arena in 4-byte words.
	State []uint32

	base asm.Register
	err  error
}

// NewMachine returns a Machine whose guest state has the given number of words, addressed from base.
func NewMachine(base asm.Register, words int) *Machine {
	return &Machine{Recorder: amd64.NewRecorder(), State: make([]uint32, words), base: base}
}

// Err returns the first execution error.
func (m *Machine) Err() error {
	return m.err
}

// Load returns the guest state word at byte offset off as a float32.
func (m *Machine) Load(off int64) float32 {
	return math.Float32frombits(m.State[off/4])
}

// Store sets the guest state word at byte offset off.
func (m *Machine) Store(off int64, v float32) {
	m.State[off/4] = math.Float32bits(v)
}

// Lane returns lane i of reg as a float32.
func (m *Machine) Lane(reg asm.Register, i int) float32 {
	return math.Float32frombits(m.XMM[amd64.FloatRegisterIndex(reg)][i])
}

// SetLane sets lane i of reg.
func (m *Machine) SetLane(reg asm.Register, i int, v float32) {
	m.XMM[amd64.FloatRegisterIndex(reg)][i] = math.Float32bits(v)
}

func (m *Machine) fail(format string, args ...interface{}) {
	if m.err == nil {
		m.err = fmt.Errorf(format, args...)
	}
}

func (m *Machine) xmm(reg asm.Register) *[4]uint32 {
	if !amd64.IsFloatRegister(reg) {
		m.fail("%s is not an XMM register", amd64.RegisterName(reg))
		return nil
	}
	return &m.XMM[amd64.FloatRegisterIndex(reg)]
}

func (m *Machine) word(base asm.Register, off int64) *uint32 {
	if base != m.base {
		m.fail("unexpected base register %s", amd64.RegisterName(base))
		return nil
	}
	if off&3 != 0 || off < 0 || off/4 >= int64(len(m.State)) {
		m.fail("invalid guest state offset 0x%x", off)
		return nil
	}
	return &m.State[off/4]
}

// CompileMemoryToRegisterInstruction implements regcache.Emitter.
func (m *Machine) CompileMemoryToRegisterInstruction(inst asm.Instruction, sourceBaseReg asm.Register, sourceOffsetConst int64, destinationReg asm.Register) {
	m.Recorder.CompileMemoryToRegisterInstruction(inst, sourceBaseReg, sourceOffsetConst, destinationReg)
	if m.err != nil {
		return
	}
	src, dst := m.word(sourceBaseReg, sourceOffsetConst), m.xmm(destinationReg)
	if src == nil || dst == nil {
		return
	}
	switch inst {
	case amd64.MOVSS:
		*dst = [4]uint32{*src, 0, 0, 0}
	case amd64.ADDSS, amd64.SUBSS, amd64.MULSS, amd64.DIVSS:
		dst[0] = scalarOp(inst, dst[0], *src)
	default:
		m.fail("unsupported memory source for %s", amd64.InstructionName(inst))
	}
}

// CompileRegisterToMemoryInstruction implements regcache.Emitter.
func (m *Machine) CompileRegisterToMemoryInstruction(inst asm.Instruction, sourceRegister asm.Register, destinationBaseRegister asm.Register, destinationOffsetConst int64) {
	m.Recorder.CompileRegisterToMemoryInstruction(inst, sourceRegister, destinationBaseRegister, destinationOffsetConst)
	if m.err != nil {
		return
	}
	src, dst := m.xmm(sourceRegister), m.word(destinationBaseRegister, destinationOffsetConst)
	if src == nil || dst == nil {
		return
	}
	if inst != amd64.MOVSS {
		m.fail("unsupported memory destination for %s", amd64.InstructionName(inst))
		return
	}
	*dst = src[0]
}

// CompileRegisterToRegisterInstruction implements regcache.Emitter.
func (m *Machine) CompileRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register) {
	m.Recorder.CompileRegisterToRegisterInstruction(inst, from, to)
	if m.err != nil {
		return
	}
	src, dst := m.xmm(from), m.xmm(to)
	if src == nil || dst == nil {
		return
	}
	s := *src
	switch inst {
	case amd64.MOVSS:
		// Register to register keeps the upper lanes.
		dst[0] = s[0]
	case amd64.MOVAPS:
		*dst = s
	case amd64.UNPCKLPS:
		*dst = [4]uint32{dst[0], s[0], dst[1], s[1]}
	case amd64.XORPS:
		for i := range dst {
			dst[i] ^= s[i]
		}
	case amd64.ADDSS, amd64.SUBSS, amd64.MULSS, amd64.DIVSS:
		dst[0] = scalarOp(inst, dst[0], s[0])
	case amd64.ADDPS, amd64.SUBPS, amd64.MULPS:
		for i := range dst {
			dst[i] = scalarOp(inst, dst[i], s[i])
		}
	default:
		m.fail("unsupported register operands for %s", amd64.InstructionName(inst))
	}
}

// CompileConstModeRegisterToRegisterInstruction implements regcache.Emitter.
func (m *Machine) CompileConstModeRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register, mode int64) {
	m.Recorder.CompileConstModeRegisterToRegisterInstruction(inst, from, to, mode)
	if m.err != nil {
		return
	}
	src, dst := m.xmm(from), m.xmm(to)
	if src == nil || dst == nil {
		return
	}
	if inst != amd64.SHUFPS {
		m.fail("unsupported mode operand for %s", amd64.InstructionName(inst))
		return
	}
	s, d := *src, *dst
	*dst = [4]uint32{d[mode&3], d[(mode>>2)&3], s[(mode>>4)&3], s[(mode>>6)&3]}
}

func scalarOp(inst asm.Instruction, a, b uint32) uint32 {
	x, y := math.Float32frombits(a), math.Float32frombits(b)
	var r float32
	switch inst {
	case amd64.ADDSS, amd64.ADDPS:
		r = x + y
	case amd64.SUBSS, amd64.SUBPS:
		r = x - y
	case amd64.MULSS, amd64.MULPS:
		r = x * y
	case amd64.DIVSS:
		r = x / y
	}
	return math.Float32bits(r)
}
