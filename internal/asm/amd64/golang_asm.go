package amd64

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/allegrex-jit/fpucache/internal/asm"
	"github.com/allegrex-jit/fpucache/internal/asm/golang_asm"
)

// assemblerGoAsmImpl implements Assembler for golang-asm library.
type assemblerGoAsmImpl struct {
	*golang_asm.GolangAsmBaseAssembler
	// recorder mirrors every prog as a node so that listings and offsets are available.
	recorder *Recorder
}

var _ Assembler = &assemblerGoAsmImpl{}

func newGolangAsmAssembler(arch string) (*assemblerGoAsmImpl, error) {
	g, err := golang_asm.NewGolangAsmBaseAssembler(arch)
	if err != nil {
		return nil, err
	}
	return &assemblerGoAsmImpl{GolangAsmBaseAssembler: g, recorder: NewRecorder()}, nil
}

// Assemble implements asm.AssemblerBase.Assemble.
func (a *assemblerGoAsmImpl) Assemble() ([]byte, error) {
	code, err := a.GolangAsmBaseAssembler.Assemble()
	if err != nil {
		return nil, err
	}
	offsets := a.Offsets()
	for i, n := 0, a.recorder.root; n != nil; i, n = i+1, n.next {
		n.offsetInBinary = offsets[i]
	}
	return code, nil
}

// Nodes implements asm.AssemblerBase.Nodes.
func (a *assemblerGoAsmImpl) Nodes() []asm.Node {
	return a.recorder.Nodes()
}

// CompileRegisterToRegisterInstruction implements Assembler.CompileRegisterToRegisterInstruction.
func (a *assemblerGoAsmImpl) CompileRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction[inst]
	p.To.Type = obj.TYPE_REG
	p.To.Reg = int16(to)
	p.From.Type = obj.TYPE_REG
	p.From.Reg = int16(from)
	a.AddInstruction(p)
	a.recorder.CompileRegisterToRegisterInstruction(inst, from, to)
}

// CompileConstModeRegisterToRegisterInstruction implements Assembler.CompileConstModeRegisterToRegisterInstruction.
func (a *assemblerGoAsmImpl) CompileConstModeRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register, mode int64) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction[inst]
	p.To.Type = obj.TYPE_REG
	p.To.Reg = int16(to)
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = mode
	p.RestArgs = append(p.RestArgs, obj.Addr{Reg: int16(from), Type: obj.TYPE_REG})
	a.AddInstruction(p)
	a.recorder.CompileConstModeRegisterToRegisterInstruction(inst, from, to, mode)
}

// CompileMemoryToRegisterInstruction implements Assembler.CompileMemoryToRegisterInstruction.
func (a *assemblerGoAsmImpl) CompileMemoryToRegisterInstruction(inst asm.Instruction, sourceBaseReg asm.Register, sourceOffsetConst int64, destinationReg asm.Register) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction[inst]
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = int16(sourceBaseReg)
	p.From.Offset = sourceOffsetConst
	p.To.Type = obj.TYPE_REG
	p.To.Reg = int16(destinationReg)
	a.AddInstruction(p)
	a.recorder.CompileMemoryToRegisterInstruction(inst, sourceBaseReg, sourceOffsetConst, destinationReg)
}

// CompileRegisterToMemoryInstruction implements Assembler.CompileRegisterToMemoryInstruction.
func (a *assemblerGoAsmImpl) CompileRegisterToMemoryInstruction(inst asm.Instruction, sourceRegister asm.Register, destinationBaseRegister asm.Register, destinationOffsetConst int64) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction[inst]
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = int16(destinationBaseRegister)
	p.To.Offset = destinationOffsetConst
	p.From.Type = obj.TYPE_REG
	p.From.Reg = int16(sourceRegister)
	a.AddInstruction(p)
	a.recorder.CompileRegisterToMemoryInstruction(inst, sourceRegister, destinationBaseRegister, destinationOffsetConst)
}

var castAsGolangAsmInstruction = map[asm.Instruction]obj.As{
	ADDPS:    x86.AADDPS,
	ADDSS:    x86.AADDSS,
	DIVSS:    x86.ADIVSS,
	MOVAPS:   x86.AMOVAPS,
	MOVSS:    x86.AMOVSS,
	MULPS:    x86.AMULPS,
	MULSS:    x86.AMULSS,
	SHUFPS:   x86.ASHUFPS,
	SUBPS:    x86.ASUBPS,
	SUBSS:    x86.ASUBSS,
	UNPCKLPS: x86.AUNPCKLPS,
	XORPS:    x86.AXORPS,
}
