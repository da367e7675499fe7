package fpucache

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
	"github.com/allegrex-jit/fpucache/internal/buildoptions"
)

func TestCacheConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	layout := Layout{BaseRegister: amd64.REG_R15, VFPUOffset: 0x100, TempOffset: 0x400}
	tests := []struct {
		name     string
		with     func(*CacheConfig) *CacheConfig
		expected *CacheConfig
	}{
		{
			name: "WithArch",
			with: func(c *CacheConfig) *CacheConfig {
				return c.WithArch(Arch386)
			},
			expected: &CacheConfig{arch: Arch386},
		},
		{
			name: "WithLayout",
			with: func(c *CacheConfig) *CacheConfig {
				return c.WithLayout(layout)
			},
			expected: &CacheConfig{layout: layout},
		},
		{
			name: "WithVerification",
			with: func(c *CacheConfig) *CacheConfig {
				return c.WithVerification(true)
			},
			expected: &CacheConfig{verify: true},
		},
		{
			name: "WithDiagnostics",
			with: func(c *CacheConfig) *CacheConfig {
				return c.WithDiagnostics(buf)
			},
			expected: &CacheConfig{diagnostics: buf},
		},
		{
			name: "WithDiagnostics nil",
			with: func(c *CacheConfig) *CacheConfig {
				return c.WithDiagnostics(nil)
			},
			expected: &CacheConfig{diagnostics: io.Discard},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			input := &CacheConfig{}
			rc := tc.with(input)
			require.Equal(t, tc.expected, rc)
			// The source wasn't modified
			require.Equal(t, &CacheConfig{}, input)
		})
	}
}

func TestNewCacheConfig(t *testing.T) {
	c := NewCacheConfig()
	require.Equal(t, defaultArch, c.Arch())
	require.Equal(t, buildoptions.IsDebugMode, c.verify)
	require.Equal(t, io.Discard, c.diagnostics)
	// The default is not shared.
	c.arch = "changed"
	require.Equal(t, defaultArch, NewCacheConfig().Arch())
}

func TestCacheConfig_Layout(t *testing.T) {
	require.Equal(t, amd64.REG_R14, NewCacheConfig().WithArch(ArchAMD64).Layout().BaseRegister)
	require.Equal(t, amd64.REG_BP, NewCacheConfig().WithArch(Arch386).Layout().BaseRegister)

	custom := Layout{BaseRegister: amd64.REG_R15, VFPUOffset: 0x100, TempOffset: 0x400}
	require.Equal(t, custom, NewCacheConfig().WithLayout(custom).Layout())
}
