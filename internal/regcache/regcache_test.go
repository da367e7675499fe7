package regcache

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/allegrex-jit/fpucache/internal/asm"
	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
	"github.com/allegrex-jit/fpucache/internal/simd"
	"github.com/allegrex-jit/fpucache/internal/vfpu"
)

// newSimulatedCache returns a verifying cache emitting into a simulator whose guest state holds every home
// slot of the default layout, each seeded with homeValue(i).
func newSimulatedCache(t *testing.T, arch string) (*Cache, *simd.Machine) {
	layout := DefaultLayout(arch)
	m := simd.NewMachine(layout.BaseRegister, NumVirtualRegs)
	c, err := New(m, Options{Arch: arch, Verify: true})
	require.NoError(t, err)
	for i := 0; i < NumVirtualRegs; i++ {
		m.Store(c.DefaultLocation(i).Offset, homeValue(i))
	}
	return c, m
}

// newRecordingCache returns a verifying amd64 cache emitting into a Recorder.
func newRecordingCache(t *testing.T) (*Cache, *amd64.Recorder) {
	r := amd64.NewRecorder()
	c, err := New(r, Options{Arch: amd64.ArchAMD64, Verify: true})
	require.NoError(t, err)
	return c, r
}

func homeValue(i int) float32 {
	return float32(i) + 0.5
}

func vreg(v uint8) int {
	return int(v) + NumFPRs
}

// current returns the value virtual register i holds right now, wherever it lives.
func current(c *Cache, m *simd.Machine, i int) float32 {
	if c.IsMapped(i) {
		lane := c.LaneOf(i)
		if lane > 0 {
			lane--
		}
		return m.Lane(c.PhysicalOf(i), lane)
	}
	return m.Load(c.DefaultLocation(i).Offset)
}

func requireFatal(t *testing.T, kind FatalKind, fn func()) {
	var err error
	func() {
		defer Recover(&err)
		fn()
	}()
	require.Error(t, err)
	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	require.Equal(t, kind, fatal.Kind, err.Error())
}

func TestNew(t *testing.T) {
	t.Run("amd64", func(t *testing.T) {
		c, err := New(amd64.NewRecorder(), Options{Arch: amd64.ArchAMD64})
		require.NoError(t, err)
		require.Equal(t, amd64.REG_R14, c.Layout().BaseRegister)
		order := c.AllocationOrder()
		require.Len(t, order, 14)
		require.Equal(t, amd64.REG_X6, order[0])
		require.Equal(t, amd64.REG_X5, order[13])
		require.NotContains(t, order, amd64.REG_X0)
		require.NotContains(t, order, amd64.REG_X1)
		require.False(t, c.PendingFlush())
	})
	t.Run("386", func(t *testing.T) {
		c, err := New(amd64.NewRecorder(), Options{Arch: amd64.Arch386})
		require.NoError(t, err)
		require.Equal(t, amd64.REG_BP, c.Layout().BaseRegister)
		require.Equal(t, []asm.Register{
			amd64.REG_X2, amd64.REG_X3, amd64.REG_X4, amd64.REG_X5, amd64.REG_X6, amd64.REG_X7,
		}, c.AllocationOrder())
	})
	t.Run("nil emitter", func(t *testing.T) {
		_, err := New(nil, Options{Arch: amd64.ArchAMD64})
		require.EqualError(t, err, "nil emitter")
	})
	t.Run("unsupported arch", func(t *testing.T) {
		_, err := New(amd64.NewRecorder(), Options{Arch: "arm64"})
		require.EqualError(t, err, `unsupported arch "arm64"`)
	})
	t.Run("invalid base register", func(t *testing.T) {
		_, err := New(amd64.NewRecorder(), Options{
			Arch:   amd64.ArchAMD64,
			Layout: Layout{BaseRegister: amd64.REG_X0, VFPUOffset: 128},
		})
		require.EqualError(t, err, "invalid layout base register X0")
	})
}

func TestCache_DefaultLocation(t *testing.T) {
	c, _ := newRecordingCache(t)
	for _, tc := range []struct {
		index    int
		expected int64
	}{
		{index: 0, expected: 0},
		{index: 3, expected: 12},
		{index: 31, expected: 124},
		{index: NumFPRs, expected: 128},
		{index: NumFPRs + 1, expected: 128 + 4*4},
		{index: NumFPRs + 32, expected: 128 + 1*4},
		{index: Temp0, expected: 640},
		{index: Temp0 + 15, expected: 700},
	} {
		loc := c.DefaultLocation(tc.index)
		require.Equal(t, LocationHome, loc.Kind, RegisterName(tc.index))
		require.Equal(t, amd64.REG_R14, loc.Reg)
		require.Equal(t, tc.expected, loc.Offset, RegisterName(tc.index))
	}

	requireFatal(t, FatalInvalidRegister, func() { c.DefaultLocation(NumVirtualRegs) })
	requireFatal(t, FatalInvalidRegister, func() { c.DefaultLocation(-1) })
}

func TestCache_Start(t *testing.T) {
	c, r := newRecordingCache(t)
	c.MapRegister(1, true, true)
	require.True(t, c.PendingFlush())

	next := amd64.NewRecorder()
	c.Start(next)
	require.False(t, c.PendingFlush())
	require.False(t, c.IsMapped(1))
	require.Equal(t, c.DefaultLocation(1), c.LocationOf(1))

	c.MapRegister(2, true, false)
	require.Equal(t, 1, r.Len())
	require.Equal(t, []string{"MOVSS [R14 + 0x8], X6"}, next.Listing())
}

func TestCache_String(t *testing.T) {
	c, _ := newRecordingCache(t)
	c.MapRegister(1, true, true)
	c.PackRegisters([]uint8{0, 1}, vfpu.VectorSizePair, MapInit)
	require.Equal(t, "pending=true, regs=[X6=[F1]*, X7=[S000 S010]]", c.String())
}

func TestRegisterName(t *testing.T) {
	require.Equal(t, "F31", RegisterName(31))
	require.Equal(t, "S000", RegisterName(NumFPRs))
	require.Equal(t, "S733", RegisterName(Temp0-1))
	require.Equal(t, "T0", RegisterName(Temp0))
	require.Equal(t, "invalid(176)", RegisterName(NumVirtualRegs))
}

func TestParseRegister(t *testing.T) {
	for i := 0; i < NumVirtualRegs; i++ {
		actual, err := ParseRegister(RegisterName(i))
		require.NoError(t, err)
		require.Equal(t, i, actual)
	}
	actual, err := ParseRegister("s012")
	require.NoError(t, err)
	require.Equal(t, NumFPRs+2*32+1, actual)

	for _, name := range []string{"", "F", "F32", "Fx", "T16", "S8", "S800", "S040", "S0000", "X1"} {
		_, err := ParseRegister(name)
		require.Error(t, err, name)
	}
}

func TestRecover(t *testing.T) {
	t.Run("fatal", func(t *testing.T) {
		var err error
		func() {
			defer Recover(&err)
			fatalf(FatalExhausted, "no %s", "luck")
		}()
		require.EqualError(t, err, "fpu register cache: registers exhausted: no luck")
	})
	t.Run("other panics propagate", func(t *testing.T) {
		require.PanicsWithValue(t, "boom", func() {
			var err error
			defer Recover(&err)
			panic("boom")
		})
	})
	t.Run("no panic", func(t *testing.T) {
		var err error
		func() {
			defer Recover(&err)
		}()
		require.NoError(t, err)
	})
}

func TestCache_diagnostics(t *testing.T) {
	buf := &bytes.Buffer{}
	r := amd64.NewRecorder()
	c, err := New(r, Options{
		Arch:        amd64.ArchAMD64,
		Layout:      Layout{BaseRegister: amd64.REG_R14, FPROffset: 2, VFPUOffset: 130, TempOffset: 642},
		Diagnostics: buf,
	})
	require.NoError(t, err)

	c.MapRegister(0, true, false)
	require.Equal(t, "WARNING - misaligned fp register location [R14 + 0x2] for F0\n", buf.String())
	// The load still happens.
	require.Equal(t, []string{"MOVSS [R14 + 0x2], X6"}, r.Listing())

	buf.Reset()
	c.MapRegister(1, false, true)
	require.Zero(t, buf.Len())
}
