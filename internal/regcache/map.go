package regcache

import (
	"github.com/allegrex-jit/fpucache/internal/asm"
	"github.com/allegrex-jit/fpucache/internal/vfpu"
)

// MapRegister makes virtual register i resident alone in a physical register. If doLoad is set the
// current value is loaded. makeDirty marks the register as modified.
//
// A register packed into a multi-lane group is written back with its group first and then mapped again.
func (c *Cache) MapRegister(i int, doLoad, makeDirty bool) {
	c.pendingFlush = true
	r := c.virtual(i)
	if r.location.IsImmediate() {
		fatalf(FatalImmediate, "map of %s holding an immediate", RegisterName(i))
	}

	if !r.away {
		xr := c.FreeRegister()
		x := c.physical(xr)
		x.mipsRegs[0] = i
		x.dirty = makeDirty
		if doLoad {
			if r.location.Offset&3 != 0 {
				c.warnf("misaligned fp register location %s for %s", r.location, RegisterName(i))
			}
			c.loadScalar(xr, r.location)
		}
		r.location = registerLocation(xr)
		r.lane = 0
		r.away = true
	} else if r.lane != 0 {
		// Packed: leave the group and come back as a plain register.
		c.StoreFromRegister(i)
		c.MapRegister(i, doLoad, makeDirty)
		return
	} else {
		x := c.physical(r.location.Reg)
		x.dirty = x.dirty || makeDirty
	}
	c.invariant()
}

// MapVectorLane maps the VFPU lane v (0-127) alone in a physical register.
func (c *Cache) MapVectorLane(v int, flags MapFlags) {
	c.MapRegister(v+NumFPRs, flags&MapNoInit == 0, flags&MapDirty != 0)
}

// MapVector maps every lane of the vector register operand vec, each alone in a physical register.
// The lanes are spill-locked so mapping one cannot evict another.
func (c *Cache) MapVector(vec int, size vfpu.VectorSize, flags MapFlags) {
	c.MapVectorRegs(vfpu.VectorRegs(size, vec), size, flags)
}

// MapVectorRegs is like MapVector on decoded lanes.
func (c *Cache) MapVectorRegs(v []uint8, size vfpu.VectorSize, flags MapFlags) {
	c.SpillLockVectorRegs(v, size)
	for i := 0; i < size.Elements(); i++ {
		c.MapVectorLane(int(v[i]), flags)
	}
}

// FreeRegister returns a physical register with no occupant, evicting an unlocked one if none is free.
func (c *Cache) FreeRegister() asm.Register {
	regs := c.FreeRegisters(1, true)
	if len(regs) != 1 {
		fatalf(FatalExhausted, "ran out of fp registers: %s", c)
	}
	return regs[0]
}

// FreeRegisters returns up to n physical registers with no occupant, in allocation order. If spill is
// set and fewer than n are free, unlocked occupied registers are written back and evicted to make up the
// difference. Fewer than n are returned only if everything else is locked.
//
// Asking for more registers than the allocation order holds is fatal.
func (c *Cache) FreeRegisters(n int, spill bool) []asm.Register {
	if n <= 0 {
		return nil
	}
	c.pendingFlush = true
	if n > c.numPhysical-2 {
		fatalf(FatalExhausted, "cannot obtain %d fp registers at once", n)
	}

	ret := make([]asm.Register, 0, n)
	for _, xr := range c.allocationOrder {
		if c.physical(xr).mipsReg() == noReg {
			ret = append(ret, xr)
			if len(ret) == n {
				return ret
			}
		}
	}

	if spill {
		for _, xr := range c.allocationOrder {
			x := c.physical(xr)
			if x.mipsReg() == noReg || c.physicalLocked(x) {
				continue
			}
			c.StoreFromRegister(x.mipsReg())
			ret = append(ret, xr)
			if len(ret) == n {
				break
			}
		}
	}
	return ret
}

// StoreFromRegister writes virtual register i back to its home slot if it is dirty and releases its
// physical register. A packed register takes its whole group with it.
func (c *Cache) StoreFromRegister(i int) {
	r := c.virtual(i)
	if r.location.IsImmediate() {
		fatalf(FatalImmediate, "store of %s holding an immediate", RegisterName(i))
	}
	if r.away {
		xr := r.location.Reg
		x := c.physical(xr)
		if r.lane != 0 {
			c.storeLanes(xr, x)
		} else {
			home := c.DefaultLocation(i)
			if x.dirty {
				c.storeScalar(home, xr)
			}
			x.mipsRegs[0] = noReg
			r.location = home
		}
		x.dirty = false
		r.away = false
	}
	c.invariant()
}

// storeLanes writes back every occupied lane of xr if it is dirty and sends them home.
// Lane j is rotated into lane 0 before its store, so the register is left scrambled.
func (c *Cache) storeLanes(xr asm.Register, x *PhysicalReg) {
	for j := 0; j < 4; j++ {
		mr := x.mipsRegs[j]
		if mr == noReg {
			continue
		}
		home := c.DefaultLocation(mr)
		if x.dirty {
			if j != 0 {
				c.shufps(xr, xr, swapTo0(j))
			}
			c.storeScalar(home, xr)
		}
		r := &c.regs[mr]
		r.location = home
		r.away = false
		r.lane = 0
		x.mipsRegs[j] = noReg
	}
}

// StoreFromVector is StoreFromRegister for the VFPU lane v.
func (c *Cache) StoreFromVector(v int) {
	c.StoreFromRegister(v + NumFPRs)
}

// FlushPhysical writes back and releases whatever occupies the physical register xr.
func (c *Cache) FlushPhysical(xr asm.Register) {
	x := c.physical(xr)
	if x.mipsReg() != noReg {
		c.StoreFromRegister(x.mipsReg())
	}
}

// IsMapped reports whether virtual register i lives in a physical register.
func (c *Cache) IsMapped(i int) bool {
	return c.virtual(i).away
}

// IsMappedVector reports whether the VFPU lane v lives alone in a physical register.
func (c *Cache) IsMappedVector(v int) bool {
	r := c.virtual(v + NumFPRs)
	return r.away && r.lane == 0
}

// IsMappedPacked reports whether the VFPU lane v lives in a lane of a packed register.
func (c *Cache) IsMappedPacked(v int) bool {
	r := c.virtual(v + NumFPRs)
	return r.away && r.lane != 0
}

// IsMappedPackedGroup reports whether v lives in one physical register exactly as given: v[i] in lane i
// and nothing else in the register.
func (c *Cache) IsMappedPackedGroup(v []uint8, size vfpu.VectorSize) bool {
	n := size.Elements()
	r := c.virtual(int(v[0]) + NumFPRs)
	if !r.away || r.lane == 0 {
		return false
	}
	xr := r.location.Reg
	for i := 0; i < 4; i++ {
		if i < n {
			vr := &c.regs[int(v[i])+NumFPRs]
			if !vr.away || vr.lane != i+1 || vr.location.Reg != xr {
				return false
			}
		} else if c.physical(xr).mipsRegs[i] != noReg {
			return false
		}
	}
	return true
}

// PhysicalOf returns the physical register holding virtual register i. It is fatal if i is not mapped.
func (c *Cache) PhysicalOf(i int) asm.Register {
	r := c.virtual(i)
	if !r.location.IsRegister() {
		fatalf(FatalInvalidRegister, "%s is not in a register but at %s", RegisterName(i), r.location)
	}
	return r.location.Reg
}

// VectorPhysicalOf is PhysicalOf for the VFPU lane v.
func (c *Cache) VectorPhysicalOf(v int) asm.Register {
	return c.PhysicalOf(v + NumFPRs)
}

// LocationOf returns the current operand descriptor of virtual register i.
func (c *Cache) LocationOf(i int) Location {
	return c.virtual(i).location
}

// LaneOf returns 0 if virtual register i is not packed, otherwise its lane plus one.
func (c *Cache) LaneOf(i int) int {
	return c.virtual(i).lane
}

// IsTempPhysical reports whether the physical register xr holds a scratch temporary.
func (c *Cache) IsTempPhysical(xr asm.Register) bool {
	return c.physical(xr).mipsReg() >= Temp0
}

// IsDirty reports whether the physical register xr has been modified since its last load.
func (c *Cache) IsDirty(xr asm.Register) bool {
	return c.physical(xr).dirty
}

// Occupants returns the virtual registers in each lane of xr, -1 for empty lanes.
func (c *Cache) Occupants(xr asm.Register) [4]int {
	return c.physical(xr).mipsRegs
}

func (c *Cache) virtual(i int) *VirtualReg {
	if i < 0 || i >= NumVirtualRegs {
		fatalf(FatalInvalidRegister, "virtual register %d out of range", i)
	}
	return &c.regs[i]
}
