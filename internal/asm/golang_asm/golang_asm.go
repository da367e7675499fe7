// Package golang_asm holds the architecture independent part of the assemblers backed by golang-asm.
package golang_asm

import (
	"errors"
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
)

// GolangAsmBaseAssembler implements *part of* asm.AssemblerBase for golang-asm library.
type GolangAsmBaseAssembler struct {
	b *goasm.Builder
	// progs are the instructions in the order they were added.
	progs []*obj.Prog
}

func NewGolangAsmBaseAssembler(arch string) (*GolangAsmBaseAssembler, error) {
	// We can choose arbitrary number instead of 1024 which indicates the cache size in the builder.
	b, err := goasm.NewBuilder(arch, 1024)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new assembly builder: %w", err)
	}
	return &GolangAsmBaseAssembler{b: b}, nil
}

// Assemble implements asm.AssemblerBase.Assemble
func (a *GolangAsmBaseAssembler) Assemble() ([]byte, error) {
	if len(a.progs) == 0 {
		return nil, errors.New("nothing to assemble")
	}
	return a.b.Assemble(), nil
}

// Offsets returns the offset in the assembled binary of each instruction, in the order they were added.
// Only valid after Assemble.
func (a *GolangAsmBaseAssembler) Offsets() []int64 {
	ret := make([]int64, len(a.progs))
	for i, p := range a.progs {
		ret[i] = p.Pc
	}
	return ret
}

// AddInstruction is used in architecture specific assembler implementation for golang-asm.
func (a *GolangAsmBaseAssembler) AddInstruction(next *obj.Prog) {
	a.b.AddInstruction(next)
	a.progs = append(a.progs, next)
}

// NewProg is used in architecture specific assembler implementation for golang-asm.
func (a *GolangAsmBaseAssembler) NewProg() (prog *obj.Prog) {
	prog = a.b.NewProg()
	return
}
