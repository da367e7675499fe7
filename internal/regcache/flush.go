package regcache

// Flush writes back every dirty register and returns the cache to the default mapping. It does nothing
// unless something was mapped since the last Flush or Start. A spill-lock still held is fatal.
func (c *Cache) Flush() {
	if !c.pendingFlush {
		return
	}
	for i := range c.regs {
		if c.regs[i].locked {
			fatalf(FatalUnreleasedLock, "%s is still spill-locked at flush", RegisterName(i))
		}
	}
	for i := range c.regs {
		r := &c.regs[i]
		if !r.away {
			continue
		}
		if !r.location.IsRegister() {
			fatalf(FatalImmediate, "flush of %s holding %s", RegisterName(i), r.location)
		}
		c.StoreFromRegister(i)
	}
	c.pendingFlush = false
	c.invariant()
}

// GetState returns a copy of the whole mapping.
func (c *Cache) GetState() State {
	return State{regs: c.regs, xregs: c.xregs}
}

// RestoreState reinstates a mapping taken by GetState. Nothing is emitted: the generated code must reach
// this point with the registers holding what the snapshot says. Flush work is always considered pending
// afterwards.
func (c *Cache) RestoreState(s State) {
	c.regs = s.regs
	c.xregs = s.xregs
	c.pendingFlush = true
	c.invariant()
}
