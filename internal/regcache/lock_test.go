package regcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
	"github.com/allegrex-jit/fpucache/internal/vfpu"
)

func TestCache_SpillLock(t *testing.T) {
	c, _ := newRecordingCache(t)
	c.SpillLock(1, 2, Temp0)
	require.True(t, c.regs[1].locked)
	require.True(t, c.regs[2].locked)
	require.True(t, c.regs[Temp0].locked)

	c.ReleaseSpillLock(2)
	require.False(t, c.regs[2].locked)

	c.SpillLockVector(0, vfpu.VectorSizeQuad)
	for _, lane := range vfpu.VectorRegs(vfpu.VectorSizeQuad, 0) {
		require.True(t, c.regs[vreg(lane)].locked)
	}
	v := []uint8{100, 101}
	c.SpillLockVectorRegs(v, vfpu.VectorSizePair)
	require.True(t, c.regs[vreg(101)].locked)
	c.ReleaseSpillLockVectorRegs(v, vfpu.VectorSizePair)
	require.False(t, c.regs[vreg(100)].locked)
	require.False(t, c.regs[vreg(101)].locked)

	c.ReleaseAllSpillLocks()
	for i := range c.regs {
		require.False(t, c.regs[i].locked, RegisterName(i))
	}

	requireFatal(t, FatalInvalidRegister, func() { c.SpillLock(NumVirtualRegs) })
}

func TestCache_AcquireTemp(t *testing.T) {
	c, r := newRecordingCache(t)
	require.Equal(t, Temp0, c.AcquireTemp())
	require.True(t, c.PendingFlush())
	require.Equal(t, Temp0+1, c.AcquireTemp())
	for i := 2; i < NumTemps; i++ {
		require.Equal(t, Temp0+i, c.AcquireTemp())
	}
	requireFatal(t, FatalTempsExhausted, func() { c.AcquireTemp() })

	c.ReleaseAllSpillLocks()
	require.Equal(t, Temp0, c.AcquireTemp())
	require.Zero(t, r.Len())
}

func TestCache_temps_are_discarded(t *testing.T) {
	c, m := newSimulatedCache(t, amd64.ArchAMD64)
	temp := c.AcquireTemp()
	c.MapRegister(temp, false, true)
	xr := c.PhysicalOf(temp)
	require.True(t, c.IsTempPhysical(xr))
	m.SetLane(xr, 0, 123)

	c.ReleaseAllSpillLocks()
	require.False(t, c.IsMapped(temp))
	require.False(t, c.regs[temp].tempLocked)
	require.Equal(t, noReg, c.Occupants(xr)[0])
	c.Flush()
	require.Equal(t, homeValue(temp), m.Load(c.DefaultLocation(temp).Offset))
	require.Zero(t, m.Len())
}

func TestCache_Discard(t *testing.T) {
	t.Run("one lane", func(t *testing.T) {
		c, m := newSimulatedCache(t, amd64.ArchAMD64)
		v := []uint8{0, 1, 2, 3}
		c.PackRegisters(v, vfpu.VectorSizeQuad, MapDirty)
		group := c.VectorPhysicalOf(0)
		for i := 0; i < 4; i++ {
			m.SetLane(group, i, float32(10+i))
		}

		c.DiscardVector(1)
		require.False(t, c.IsMapped(vreg(1)))
		require.Equal(t, c.DefaultLocation(vreg(1)), c.LocationOf(vreg(1)))
		for i, lane := range v {
			if i == 1 {
				continue
			}
			require.Equal(t, float32(10+i), current(c, m, vreg(lane)))
		}

		c.Flush()
		require.Equal(t, float32(10), m.Load(c.DefaultLocation(vreg(0)).Offset))
		require.Equal(t, homeValue(vreg(1)), m.Load(c.DefaultLocation(vreg(1)).Offset))
		require.Equal(t, float32(12), m.Load(c.DefaultLocation(vreg(2)).Offset))
		require.Equal(t, float32(13), m.Load(c.DefaultLocation(vreg(3)).Offset))
		require.NoError(t, m.Err())
	})
	t.Run("first lane of clean group", func(t *testing.T) {
		c, r := newRecordingCache(t)
		v := []uint8{0, 1}
		c.PackRegisters(v, vfpu.VectorSizePair, MapInit)
		n := r.Len()
		c.DiscardVector(0)
		require.False(t, c.IsMapped(vreg(0)))
		require.False(t, c.IsMapped(vreg(1)))
		require.Equal(t, n, r.Len())
	})
	t.Run("scalar", func(t *testing.T) {
		c, r := newRecordingCache(t)
		c.MapRegister(4, true, true)
		xr := c.PhysicalOf(4)
		c.Discard(4)
		require.False(t, c.IsMapped(4))
		require.False(t, c.IsDirty(xr))
		require.Equal(t, noReg, c.Occupants(xr)[0])
		c.Flush()
		require.Equal(t, 1, r.Len())
	})
	t.Run("never resident clears temp lock", func(t *testing.T) {
		c, _ := newRecordingCache(t)
		temp := c.AcquireTemp()
		c.Discard(temp)
		require.False(t, c.regs[temp].tempLocked)
		require.Equal(t, temp, c.AcquireTemp())
	})
	t.Run("immediate", func(t *testing.T) {
		c, _ := newRecordingCache(t)
		c.regs[4].location = Location{Kind: LocationImmediate}
		requireFatal(t, FatalImmediate, func() { c.Discard(4) })
	})
}

func TestCache_DiscardPacked(t *testing.T) {
	t.Run("whole group", func(t *testing.T) {
		c, m := newSimulatedCache(t, amd64.ArchAMD64)
		v := []uint8{0, 1, 2, 3}
		c.PackRegisters(v, vfpu.VectorSizeQuad, MapDirty)
		group := c.VectorPhysicalOf(0)
		for i := 0; i < 4; i++ {
			m.SetLane(group, i, 99)
		}
		n := m.Len()

		c.DiscardPacked(2)
		require.Equal(t, n, m.Len())
		require.False(t, c.IsDirty(group))
		require.Equal(t, [4]int{noReg, noReg, noReg, noReg}, c.Occupants(group))
		for _, lane := range v {
			require.False(t, c.IsMapped(vreg(lane)))
			require.Zero(t, c.LaneOf(vreg(lane)))
		}
		c.Flush()
		for _, lane := range v {
			require.Equal(t, homeValue(vreg(lane)), m.Load(c.DefaultLocation(vreg(lane)).Offset))
		}
	})
	t.Run("not resident", func(t *testing.T) {
		c, r := newRecordingCache(t)
		c.DiscardPacked(7)
		require.Zero(t, r.Len())
	})
	t.Run("plain register", func(t *testing.T) {
		c, _ := newRecordingCache(t)
		c.MapVectorLane(7, MapInit)
		requireFatal(t, FatalNotPacked, func() { c.DiscardPacked(7) })
	})
}
