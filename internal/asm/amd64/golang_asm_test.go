package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

func TestGolangAsmCompatibility(t *testing.T) {
	require.Equal(t, intRegisterIotaBegin, REG_AX)
	require.Equal(t, int16(x86.REG_AX), int16(REG_AX))
	require.Equal(t, int16(x86.REG_R14), int16(REG_R14))
	require.Equal(t, int16(x86.REG_X0), int16(REG_X0))
	require.Equal(t, int16(x86.REG_X15), int16(REG_X15))
}

func TestNewAssembler(t *testing.T) {
	t.Run("unsupported", func(t *testing.T) {
		_, err := NewAssembler("mips")
		require.EqualError(t, err, `unsupported arch "mips"`)
	})
	t.Run("empty", func(t *testing.T) {
		a, err := NewAssembler(ArchAMD64)
		require.NoError(t, err)
		_, err = a.Assemble()
		require.EqualError(t, err, "nothing to assemble")
	})
}

func TestAssemblerGoAsmImpl_amd64(t *testing.T) {
	for _, tc := range []struct {
		name     string
		setup    func(a Assembler)
		expected []byte
		listing  string
	}{
		{
			name: "movss load",
			setup: func(a Assembler) {
				a.CompileMemoryToRegisterInstruction(MOVSS, REG_R14, 0x14, REG_X6)
			},
			expected: []byte{0xf3, 0x41, 0x0f, 0x10, 0x76, 0x14},
			listing:  "MOVSS [R14 + 0x14], X6",
		},
		{
			name: "movss store",
			setup: func(a Assembler) {
				a.CompileRegisterToMemoryInstruction(MOVSS, REG_X6, REG_R14, 0x14)
			},
			expected: []byte{0xf3, 0x41, 0x0f, 0x11, 0x76, 0x14},
			listing:  "MOVSS X6, [R14 + 0x14]",
		},
		{
			name: "unpcklps",
			setup: func(a Assembler) {
				a.CompileRegisterToRegisterInstruction(UNPCKLPS, REG_X7, REG_X6)
			},
			expected: []byte{0x0f, 0x14, 0xf7},
			listing:  "UNPCKLPS X7, X6",
		},
		{
			name: "shufps",
			setup: func(a Assembler) {
				a.CompileConstModeRegisterToRegisterInstruction(SHUFPS, REG_X7, REG_X6, Shuffle(3, 0, 1, 2))
			},
			expected: []byte{0x0f, 0xc6, 0xf7, 0xc6},
			listing:  "SHUFPS X7, X6, 0xc6",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			a, err := NewAssembler(ArchAMD64)
			require.NoError(t, err)
			tc.setup(a)

			code, err := a.Assemble()
			require.NoError(t, err)
			require.Equal(t, tc.expected, code)

			nodes := a.Nodes()
			require.Len(t, nodes, 1)
			require.Equal(t, tc.listing, nodes[0].String())
			require.Equal(t, int64(0), nodes[0].OffsetInBinary())
		})
	}
}

func TestAssemblerGoAsmImpl_386(t *testing.T) {
	a, err := NewAssembler(Arch386)
	require.NoError(t, err)
	a.CompileMemoryToRegisterInstruction(MOVSS, REG_BP, 0x14, REG_X2)
	a.CompileRegisterToRegisterInstruction(MOVSS, REG_X3, REG_X2)

	code, err := a.Assemble()
	require.NoError(t, err)
	require.Equal(t, []byte{0xf3, 0x0f, 0x10, 0x55, 0x14, 0xf3, 0x0f, 0x10, 0xd3}, code)

	nodes := a.Nodes()
	require.Len(t, nodes, 2)
	require.Equal(t, int64(5), nodes[1].OffsetInBinary())
}
