package amd64

import (
	"fmt"

	"github.com/allegrex-jit/fpucache/internal/asm"
)

// nodeImpl implements asm.Node for amd64.
type nodeImpl struct {
	instruction asm.Instruction

	// offsetInBinary represents the offset of this node in the final binary.
	offsetInBinary int64
	// next holds the next node from this node in the assembled linked list.
	next *nodeImpl

	types              operandTypes
	srcReg, dstReg     asm.Register
	srcConst, dstConst int64

	mode    byte
	hasMode bool
}

// OffsetInBinary implements asm.Node.OffsetInBinary.
func (n *nodeImpl) OffsetInBinary() int64 {
	return n.offsetInBinary
}

// String implements fmt.Stringer.
func (n *nodeImpl) String() (ret string) {
	instName := InstructionName(n.instruction)
	switch n.types {
	case operandTypesRegisterToRegister:
		if n.hasMode {
			ret = fmt.Sprintf("%s %s, %s, 0x%x", instName, RegisterName(n.srcReg), RegisterName(n.dstReg), n.mode)
		} else {
			ret = fmt.Sprintf("%s %s, %s", instName, RegisterName(n.srcReg), RegisterName(n.dstReg))
		}
	case operandTypesRegisterToMemory:
		ret = fmt.Sprintf("%s %s, [%s + 0x%x]", instName, RegisterName(n.srcReg), RegisterName(n.dstReg), n.dstConst)
	case operandTypesMemoryToRegister:
		ret = fmt.Sprintf("%s [%s + 0x%x], %s", instName, RegisterName(n.srcReg), n.srcConst, RegisterName(n.dstReg))
	default:
		ret = instName
	}
	return
}

type operandType byte

const (
	operandTypeNone operandType = iota
	operandTypeRegister
	operandTypeMemory
)

func (o operandType) String() (ret string) {
	switch o {
	case operandTypeNone:
		ret = "none"
	case operandTypeRegister:
		ret = "register"
	case operandTypeMemory:
		ret = "memory"
	}
	return
}

type operandTypes struct{ src, dst operandType }

var (
	operandTypesRegisterToRegister = operandTypes{operandTypeRegister, operandTypeRegister}
	operandTypesRegisterToMemory   = operandTypes{operandTypeRegister, operandTypeMemory}
	operandTypesMemoryToRegister   = operandTypes{operandTypeMemory, operandTypeRegister}
)

func (o operandTypes) String() string {
	return fmt.Sprintf("from:%s,to:%s", o.src, o.dst)
}

// Recorder keeps the operations handed to it as a linked list of nodes without encoding them.
// It is used for listings, and embedded by the golang-asm backed Assembler and by simulators.
type Recorder struct {
	root, current *nodeImpl
	count         int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// newNode creates a new Node and appends it into the linked list.
func (r *Recorder) newNode(instruction asm.Instruction, srcType, dstType operandType) *nodeImpl {
	n := &nodeImpl{
		instruction: instruction,
		types:       operandTypes{src: srcType, dst: dstType},
	}
	r.addNode(n)
	return n
}

// addNode appends the new node into the linked list.
func (r *Recorder) addNode(node *nodeImpl) {
	if r.root == nil {
		r.root = node
		r.current = node
	} else {
		parent := r.current
		parent.next = node
		r.current = node
	}
	r.count++
}

// Len returns the number of recorded operations.
func (r *Recorder) Len() int {
	return r.count
}

// Reset drops every recorded operation.
func (r *Recorder) Reset() {
	r.root, r.current, r.count = nil, nil, 0
}

// Nodes implements asm.AssemblerBase.Nodes.
func (r *Recorder) Nodes() []asm.Node {
	ret := make([]asm.Node, 0, r.count)
	for n := r.root; n != nil; n = n.next {
		ret = append(ret, n)
	}
	return ret
}

// Listing returns the textual form of every recorded operation.
func (r *Recorder) Listing() []string {
	ret := make([]string, 0, r.count)
	for n := r.root; n != nil; n = n.next {
		ret = append(ret, n.String())
	}
	return ret
}

// CompileRegisterToRegisterInstruction implements Assembler.CompileRegisterToRegisterInstruction.
func (r *Recorder) CompileRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register) {
	n := r.newNode(inst, operandTypeRegister, operandTypeRegister)
	n.srcReg = from
	n.dstReg = to
}

// CompileConstModeRegisterToRegisterInstruction implements Assembler.CompileConstModeRegisterToRegisterInstruction.
func (r *Recorder) CompileConstModeRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register, mode int64) {
	n := r.newNode(inst, operandTypeRegister, operandTypeRegister)
	n.srcReg = from
	n.dstReg = to
	n.mode = byte(mode)
	n.hasMode = true
}

// CompileMemoryToRegisterInstruction implements Assembler.CompileMemoryToRegisterInstruction.
func (r *Recorder) CompileMemoryToRegisterInstruction(inst asm.Instruction, sourceBaseReg asm.Register, sourceOffsetConst int64, destinationReg asm.Register) {
	n := r.newNode(inst, operandTypeMemory, operandTypeRegister)
	n.srcReg = sourceBaseReg
	n.srcConst = sourceOffsetConst
	n.dstReg = destinationReg
}

// CompileRegisterToMemoryInstruction implements Assembler.CompileRegisterToMemoryInstruction.
func (r *Recorder) CompileRegisterToMemoryInstruction(inst asm.Instruction, sourceRegister asm.Register, destinationBaseRegister asm.Register, destinationOffsetConst int64) {
	n := r.newNode(inst, operandTypeRegister, operandTypeMemory)
	n.srcReg = sourceRegister
	n.dstReg = destinationBaseRegister
	n.dstConst = destinationOffsetConst
}
