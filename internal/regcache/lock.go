package regcache

import "github.com/allegrex-jit/fpucache/internal/vfpu"

// SpillLock pins the given virtual registers: a physical register holding any of them is never evicted.
// Locks must be released before Flush.
func (c *Cache) SpillLock(regs ...int) {
	for _, r := range regs {
		c.virtual(r).locked = true
	}
}

// ReleaseSpillLock unpins the given virtual registers.
func (c *Cache) ReleaseSpillLock(regs ...int) {
	for _, r := range regs {
		c.virtual(r).locked = false
	}
}

// SpillLockVector pins every lane of the vector register operand vec.
func (c *Cache) SpillLockVector(vec int, size vfpu.VectorSize) {
	c.SpillLockVectorRegs(vfpu.VectorRegs(size, vec), size)
}

// SpillLockVectorRegs pins the VFPU lanes v[0:size].
func (c *Cache) SpillLockVectorRegs(v []uint8, size vfpu.VectorSize) {
	for i := 0; i < size.Elements(); i++ {
		c.virtual(int(v[i]) + NumFPRs).locked = true
	}
}

// ReleaseSpillLockVectorRegs unpins the VFPU lanes v[0:size].
func (c *Cache) ReleaseSpillLockVectorRegs(v []uint8, size vfpu.VectorSize) {
	for i := 0; i < size.Elements(); i++ {
		c.virtual(int(v[i]) + NumFPRs).locked = false
	}
}

// ReleaseAllSpillLocks unpins every register and discards every scratch temporary.
// It is called at the end of each guest instruction.
func (c *Cache) ReleaseAllSpillLocks() {
	for i := range c.regs {
		c.regs[i].locked = false
	}
	for i := Temp0; i < Temp0+NumTemps; i++ {
		c.Discard(i)
	}
}

// AcquireTemp reserves a scratch temporary and returns its virtual register index. The temporary stays
// reserved until it is discarded, at the latest by ReleaseAllSpillLocks.
func (c *Cache) AcquireTemp() int {
	c.pendingFlush = true
	for i := Temp0; i < Temp0+NumTemps; i++ {
		r := &c.regs[i]
		if !r.away && !r.tempLocked {
			r.tempLocked = true
			return i
		}
	}
	fatalf(FatalTempsExhausted, "all %d temps in use", NumTemps)
	return -1
}

// Discard drops virtual register i without writing it back; its home slot keeps the old value.
// A lane of a packed register leaves the group, and the remaining lanes are written back and sent home.
func (c *Cache) Discard(i int) {
	r := c.virtual(i)
	if r.location.IsImmediate() {
		fatalf(FatalImmediate, "discard of %s holding an immediate", RegisterName(i))
	}
	if r.away {
		xr := r.location.Reg
		x := c.physical(xr)
		if r.lane != 0 {
			x.mipsRegs[r.lane-1] = noReg
			r.lane = 0
			c.storeLanes(xr, x)
		} else {
			x.mipsRegs[0] = noReg
		}
		x.dirty = false
		r.location = c.DefaultLocation(i)
		r.away = false
	}
	r.tempLocked = false
	c.invariant()
}

// DiscardVector is Discard for the VFPU lane v.
func (c *Cache) DiscardVector(v int) {
	c.Discard(v + NumFPRs)
}

// DiscardPacked drops the whole packed register holding the VFPU lane v without writing anything back.
// It is fatal if v is mapped but not packed.
func (c *Cache) DiscardPacked(v int) {
	mr := v + NumFPRs
	r := c.virtual(mr)
	if r.location.IsImmediate() {
		fatalf(FatalImmediate, "discard of %s holding an immediate", RegisterName(mr))
	}
	if !r.away {
		r.tempLocked = false
		c.invariant()
		return
	}
	if r.lane == 0 {
		fatalf(FatalNotPacked, "packed discard of plain register %s", RegisterName(mr))
	}

	x := c.physical(r.location.Reg)
	for j := 0; j < 4; j++ {
		occupant := x.mipsRegs[j]
		if occupant != noReg {
			o := &c.regs[occupant]
			o.location = c.DefaultLocation(occupant)
			o.away = false
			o.lane = 0
			o.tempLocked = false
		}
		x.mipsRegs[j] = noReg
	}
	x.dirty = false
	c.invariant()
}
