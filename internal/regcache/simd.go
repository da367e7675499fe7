package regcache

import (
	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
	"github.com/allegrex-jit/fpucache/internal/vfpu"
)

// canPack reports whether TryPackRegisters would succeed on v without touching anything.
func (c *Cache) canPack(v []uint8, size vfpu.VectorSize) bool {
	n := size.Elements()
	v0 := c.virtual(int(v[0]) + NumFPRs)
	if v0.lane != 0 {
		return c.isPackedExactly(v, n)
	}
	if v0.locked {
		return false
	}
	for i := 1; i < n; i++ {
		vi := c.virtual(int(v[i]) + NumFPRs)
		if vi.lane != 0 || vi.locked {
			return false
		}
	}
	return true
}

// isPackedExactly reports whether v[0] heads a packed register holding exactly v[0:n] in lanes 0 to n-1.
func (c *Cache) isPackedExactly(v []uint8, n int) bool {
	v0 := &c.regs[int(v[0])+NumFPRs]
	if !v0.away || !v0.location.IsRegister() {
		fatalf(FatalInvariant, "packed %s is not in a register", RegisterName(int(v[0])+NumFPRs))
	}
	if v0.lane != 1 {
		return false
	}
	x := c.physical(v0.location.Reg)
	for i := 1; i < 4; i++ {
		if i < n {
			if x.mipsRegs[i] != int(v[i])+NumFPRs {
				return false
			}
		} else if x.mipsRegs[i] != noReg {
			return false
		}
	}
	return true
}

// TryPackRegisters maps the VFPU lanes v[0:size] into the lanes of a single physical register, v[i] in
// lane i. It returns false without changing anything if the lanes are packed some other way or one of them
// is spill-locked. If they already are packed exactly so, only the dirty state is updated.
//
// Unless MapNoInit is set the packed register holds the current values. Every lane that was resident in a
// plain register is released, and the group is dirty if any of them was or if MapDirty is set.
func (c *Cache) TryPackRegisters(v []uint8, size vfpu.VectorSize, flags MapFlags) bool {
	n := size.Elements()
	v0 := c.virtual(int(v[0]) + NumFPRs)

	if v0.lane != 0 {
		if !c.isPackedExactly(v, n) {
			return false
		}
		if flags&MapDirty != 0 {
			c.physical(v0.location.Reg).dirty = true
		}
		c.invariant()
		return true
	}

	if v0.locked {
		return false
	}
	if v0.location.IsImmediate() {
		fatalf(FatalImmediate, "pack of %s holding an immediate", RegisterName(int(v[0])+NumFPRs))
	}
	for i := 1; i < n; i++ {
		vi := c.virtual(int(v[i]) + NumFPRs)
		if vi.lane != 0 || vi.locked {
			return false
		}
		if vi.location.IsImmediate() {
			fatalf(FatalImmediate, "pack of %s holding an immediate", RegisterName(int(v[i])+NumFPRs))
		}
	}

	if n == 1 {
		c.MapVectorLane(int(v[0]), flags)
		c.regs[int(v[0])+NumFPRs].lane = 1
		c.invariant()
		return true
	}

	res := c.FreeRegisters(2, true)
	if len(res) != 2 {
		fatalf(FatalExhausted, "ran out of fp registers for packing %d lanes: %s", n, c)
	}
	reg1, reg2 := res[0], res[1]

	if flags&MapNoInit == 0 {
		loc := func(i int) Location {
			return c.regs[int(v[i])+NumFPRs].location
		}
		switch n {
		case 2:
			c.loadScalar(reg1, loc(0))
			c.loadScalar(reg2, loc(1))
			c.unpcklps(reg2, reg1)
		case 3:
			c.loadScalar(reg2, loc(2))
			c.loadScalar(reg1, loc(1))
			c.shufps(reg2, reg1, amd64.Shuffle(3, 0, 0, 0))
			c.loadScalar(reg2, loc(0))
			c.loadScalar(reg1, registerLocation(reg2))
		case 4:
			c.loadScalar(reg2, loc(2))
			c.loadScalar(reg1, loc(3))
			c.unpcklps(reg1, reg2)
			c.loadScalar(reg1, loc(1))
			c.shufps(reg2, reg1, amd64.Shuffle(1, 0, 0, 3))
			c.loadScalar(reg2, loc(0))
			c.loadScalar(reg1, registerLocation(reg2))
		}
	}

	dirty := flags&MapDirty != 0
	newLoc := registerLocation(reg1)
	x1 := c.physical(reg1)
	for i := 0; i < n; i++ {
		mr := int(v[i]) + NumFPRs
		vr := &c.regs[mr]
		if vr.away {
			// Leave the plain register behind, carrying its dirt to the group.
			x := c.physical(vr.location.Reg)
			x.mipsRegs[0] = noReg
			if x.dirty {
				dirty = true
				x.dirty = false
			}
		}
		x1.mipsRegs[i] = mr
		vr.location = newLoc
		vr.lane = i + 1
		vr.away = true
	}
	x1.dirty = dirty

	c.invariant()
	return true
}

// PackRegisters is TryPackRegisters that cannot fail: if the lanes are packed some other way they are
// written back first and packing is retried once. A second failure is fatal.
func (c *Cache) PackRegisters(v []uint8, size vfpu.VectorSize, flags MapFlags) {
	if c.TryPackRegisters(v, size, flags) {
		return
	}
	for i := 0; i < size.Elements(); i++ {
		c.StoreFromVector(int(v[i]))
	}
	if !c.TryPackRegisters(v, size, flags) {
		fatalf(FatalPackRetry, "could not pack %d lanes from %s", size.Elements(), RegisterName(int(v[0])+NumFPRs))
	}
}

// TryMapPackedDestructive packs the two sources vs and vt and the destination vd of a vector operation.
// The destination is marked dirty, and not loaded if avoidLoad is set. It returns false if any of the three
// cannot be packed, in which case the sources may already have been packed.
func (c *Cache) TryMapPackedDestructive(vd []uint8, size vfpu.VectorSize, vs []uint8, sSize vfpu.VectorSize,
	vt []uint8, tSize vfpu.VectorSize, avoidLoad bool) bool {
	if !c.canPack(vd, size) || !c.canPack(vs, sSize) || !c.canPack(vt, tSize) {
		return false
	}

	// Operands may still overlap in ways that only show once the first is packed.
	success := c.TryPackRegisters(vs, sSize, MapClean)
	if success {
		c.SpillLockVectorRegs(vs, sSize)
		success = c.TryPackRegisters(vt, tSize, MapClean)
	}
	if success {
		c.SpillLockVectorRegs(vt, tSize)
		flags := MapDirty
		if avoidLoad {
			flags |= MapNoInit
		}
		success = c.TryPackRegisters(vd, size, flags)
	}
	c.ReleaseSpillLockVectorRegs(vs, sSize)
	c.ReleaseSpillLockVectorRegs(vt, tSize)
	return success
}

// SimpleScalar brings the VFPU lane v into plain scalar form: a packed lane is discarded if MapNoInit says
// it is about to be overwritten, and written back otherwise. A lane already alone in a register only gets
// marked dirty under MapDirty.
func (c *Cache) SimpleScalar(v uint8, flags MapFlags) {
	mr := int(v) + NumFPRs
	vr := c.virtual(mr)
	if vr.lane != 0 {
		if flags&MapNoInit != 0 {
			c.Discard(mr)
		} else {
			c.StoreFromRegister(mr)
		}
	} else if vr.away {
		if !vr.location.IsRegister() {
			fatalf(FatalInvariant, "%s is away but at %s", RegisterName(mr), vr.location)
		}
		if flags&MapDirty != 0 {
			c.physical(vr.location.Reg).dirty = true
		}
	}
	c.invariant()
}

// SimpleVector applies SimpleScalar to every lane of v.
func (c *Cache) SimpleVector(v []uint8, size vfpu.VectorSize, flags MapFlags) {
	for i := 0; i < size.Elements(); i++ {
		c.SimpleScalar(v[i], flags)
	}
}

// SimpleMatrix applies SimpleScalar to every lane of the matrix m laid out as by vfpu.MatrixRegs.
func (c *Cache) SimpleMatrix(m [16]uint8, size vfpu.MatrixSize, flags MapFlags) {
	side := size.Side()
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			c.SimpleScalar(m[j*4+i], flags)
		}
	}
}
