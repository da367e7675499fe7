package asm

import "fmt"

// Register represents architecture-specific registers.
//
// The numbering follows golang-asm so values can be handed to its obj.Prog without translation.
type Register int16

// NilRegister is the only architecture-independent register, and
// can be used to indicate that no register is specified.
const NilRegister Register = 0

// Instruction represents architecture-specific instructions.
type Instruction byte

// Node represents a node in the linked list of assembled operations.
type Node interface {
	fmt.Stringer
	// OffsetInBinary returns the offset of this node in the assembled binary.
	// Only valid after AssemblerBase.Assemble returned.
	OffsetInBinary() int64
}

// AssemblerBase is the common interface for assemblers among multiple architectures.
type AssemblerBase interface {
	// Assemble produces the final binary for the assembled operations.
	Assemble() ([]byte, error)
	// Nodes returns the operations added so far, in emission order.
	Nodes() []Node
}
