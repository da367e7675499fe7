package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorder_addNode(t *testing.T) {
	r := NewRecorder()

	root := &nodeImpl{}
	r.addNode(root)
	require.Equal(t, r.root, root)
	require.Equal(t, r.current, root)
	require.Nil(t, root.next)

	next := &nodeImpl{}
	r.addNode(next)
	require.Equal(t, r.root, root)
	require.Equal(t, r.current, next)
	require.Equal(t, next, root.next)
	require.Nil(t, next.next)
	require.Equal(t, 2, r.Len())

	r.Reset()
	require.Nil(t, r.root)
	require.Zero(t, r.Len())
}

func TestRecorder_newNode(t *testing.T) {
	r := NewRecorder()
	actual := r.newNode(MOVSS, operandTypeMemory, operandTypeRegister)
	require.Equal(t, MOVSS, actual.instruction)
	require.Equal(t, operandTypeMemory, actual.types.src)
	require.Equal(t, operandTypeRegister, actual.types.dst)
	require.Equal(t, actual, r.root)
	require.Equal(t, actual, r.current)
}

func TestRecorder_Listing(t *testing.T) {
	r := NewRecorder()
	r.CompileMemoryToRegisterInstruction(MOVSS, REG_R14, 0x280, REG_X6)
	r.CompileRegisterToRegisterInstruction(UNPCKLPS, REG_X7, REG_X6)
	r.CompileConstModeRegisterToRegisterInstruction(SHUFPS, REG_X6, REG_X6, Shuffle(3, 2, 0, 1))
	r.CompileRegisterToMemoryInstruction(MOVSS, REG_X6, REG_BP, 0)

	require.Equal(t, []string{
		"MOVSS [R14 + 0x280], X6",
		"UNPCKLPS X7, X6",
		"SHUFPS X6, X6, 0xe1",
		"MOVSS X6, [BP + 0x0]",
	}, r.Listing())
	require.Len(t, r.Nodes(), 4)
}

func TestInstructionByName(t *testing.T) {
	for inst := NONE + 1; inst < instructionEnd; inst++ {
		actual, ok := InstructionByName(InstructionName(inst))
		require.True(t, ok)
		require.Equal(t, inst, actual)
	}
	_, ok := InstructionByName("VFMADD231PS")
	require.False(t, ok)
}

func TestRegisterName(t *testing.T) {
	require.Equal(t, "X0", RegisterName(REG_X0))
	require.Equal(t, "X15", RegisterName(REG_X15))
	require.Equal(t, "R14", RegisterName(REG_R14))
	require.Equal(t, "BP", RegisterName(REG_BP))
	require.Equal(t, "nil", RegisterName(0))
	require.True(t, IsFloatRegister(FloatRegister(7)))
	require.Equal(t, 7, FloatRegisterIndex(REG_X7))
}
