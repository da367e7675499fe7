// Package regcache caches guest floating point and VFPU registers in host SSE registers while a block is
// being compiled.
//
// Every guest register has a home slot in the guest state. While a block is compiled, the cache decides
// which host XMM register holds which guest register, packs up to four VFPU lanes into one XMM register
// for vector operations, evicts and writes back under pressure, and can snapshot the whole mapping so
// that several compiled paths agree on it at a join point.
//
// The cache is owned by a single block compilation and is not safe for concurrent use.
package regcache

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/allegrex-jit/fpucache/internal/asm"
	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
	"github.com/allegrex-jit/fpucache/internal/vfpu"
)

const (
	// NumFPRs is the number of scalar floating point registers, which use indices 0-31.
	NumFPRs = 32
	// NumTemps is the number of scratch temporaries, which use indices Temp0 and up.
	NumTemps = 16
	// Temp0 is the index of the first scratch temporary.
	Temp0 = NumFPRs + vfpu.NumLanes
	// NumVirtualRegs is the size of the virtual register index space.
	NumVirtualRegs = Temp0 + NumTemps
	// NumPhysicalRegs is the size of the physical register table, X0-X15.
	NumPhysicalRegs = 16
)

// noReg marks an empty lane slot.
const noReg = -1

// MapFlags tune how a register is mapped.
type MapFlags byte

const (
	// MapNoInit leaves the mapped register undefined instead of loading the current value.
	MapNoInit MapFlags = 1 << iota
	// MapDirty marks the mapped register as modified, so it is written back later.
	MapDirty
)

const (
	// MapInit loads the current value. It is the zero value.
	MapInit MapFlags = 0
	// MapClean leaves the dirty state alone. It is the zero value.
	MapClean MapFlags = 0
)

// VirtualReg is the cache entry of one guest register.
type VirtualReg struct {
	location Location
	// away is true while the register lives in a physical register.
	away bool
	// lane is 0 if the register is alone in its physical register or at home, otherwise 1-4 for lanes 0-3.
	lane int
	// locked is the spill-lock: the current instruction depends on this mapping.
	locked bool
	// tempLocked is held by a scratch temporary until it is discarded.
	tempLocked bool
}

// PhysicalReg is the cache entry of one host XMM register.
type PhysicalReg struct {
	// mipsRegs holds the virtual register in each lane, or noReg. A plain register uses slot 0 only.
	mipsRegs [4]int
	dirty    bool
}

func (x *PhysicalReg) mipsReg() int {
	return x.mipsRegs[0]
}

// State is a snapshot of the whole cache table, taken by Cache.GetState.
type State struct {
	regs  [NumVirtualRegs]VirtualReg
	xregs [NumPhysicalRegs]PhysicalReg
}

// Options configure New.
type Options struct {
	// Arch is amd64.ArchAMD64 or amd64.Arch386 and selects the allocation order.
	Arch string
	// Layout places the home slots. The zero value selects DefaultLayout(Arch).
	Layout Layout
	// Verify runs CheckInvariants after every mutating operation and panics on the first violation.
	Verify bool
	// Diagnostics receives non-fatal warnings. Nil discards them.
	Diagnostics io.Writer
}

// Cache is the register cache.
type Cache struct {
	emit Emitter

	layout          Layout
	allocationOrder []asm.Register
	numPhysical     int
	verify          bool
	diagnostics     io.Writer

	regs         [NumVirtualRegs]VirtualReg
	xregs        [NumPhysicalRegs]PhysicalReg
	pendingFlush bool

	// initial is the table every block starts from, computed once on first use.
	initial *State
}

// New returns a Cache emitting through emitter, reset to the default mapping.
func New(emitter Emitter, opts Options) (*Cache, error) {
	if emitter == nil {
		return nil, errors.New("nil emitter")
	}
	order, numPhysical, err := allocationOrderFor(opts.Arch)
	if err != nil {
		return nil, err
	}

	layout := opts.Layout
	if layout == (Layout{}) {
		layout = DefaultLayout(opts.Arch)
	}
	if !amd64.IsIntRegister(layout.BaseRegister) {
		return nil, fmt.Errorf("invalid layout base register %s", amd64.RegisterName(layout.BaseRegister))
	}

	diagnostics := opts.Diagnostics
	if diagnostics == nil {
		diagnostics = io.Discard
	}

	c := &Cache{
		layout:          layout,
		allocationOrder: order,
		numPhysical:     numPhysical,
		verify:          opts.Verify,
		diagnostics:     diagnostics,
	}
	c.Start(emitter)
	return c, nil
}

// Start resets the cache to the default mapping: every register at home, every physical register free.
// It must be called at the beginning of each block. A non-nil emitter replaces the current one.
func (c *Cache) Start(emitter Emitter) {
	if emitter != nil {
		c.emit = emitter
	}
	if c.initial == nil {
		c.initial = c.setupInitialRegs()
	}
	c.regs = c.initial.regs
	c.xregs = c.initial.xregs
	c.pendingFlush = false
}

func (c *Cache) setupInitialRegs() *State {
	s := &State{}
	for i := range s.xregs {
		s.xregs[i].mipsRegs = [4]int{noReg, noReg, noReg, noReg}
	}
	for i := range s.regs {
		s.regs[i].location = c.DefaultLocation(i)
	}
	return s
}

// Layout returns the home slot layout in use.
func (c *Cache) Layout() Layout {
	return c.layout
}

// AllocationOrder returns the physical registers the cache allocates from, in priority order.
func (c *Cache) AllocationOrder() []asm.Register {
	return append([]asm.Register(nil), c.allocationOrder...)
}

// PendingFlush reports whether Flush has write-back work to do.
func (c *Cache) PendingFlush() bool {
	return c.pendingFlush
}

// physicalIndex returns the table index of reg, or false if reg is not a physical register of the target.
func (c *Cache) physicalIndex(reg asm.Register) (int, bool) {
	if !amd64.IsFloatRegister(reg) {
		return 0, false
	}
	i := amd64.FloatRegisterIndex(reg)
	return i, i < c.numPhysical
}

func (c *Cache) physical(reg asm.Register) *PhysicalReg {
	i, ok := c.physicalIndex(reg)
	if !ok {
		fatalf(FatalInvalidRegister, "%s is not a physical register of this target", amd64.RegisterName(reg))
	}
	return &c.xregs[i]
}

// physicalLocked reports whether any register resident in x is spill-locked.
func (c *Cache) physicalLocked(x *PhysicalReg) bool {
	for _, mr := range x.mipsRegs {
		if mr != noReg && c.regs[mr].locked {
			return true
		}
	}
	return false
}

func (c *Cache) warnf(format string, args ...interface{}) {
	fmt.Fprintf(c.diagnostics, "WARNING - "+format+"\n", args...)
}

// String implements fmt.Stringer. It lists the occupied physical registers.
func (c *Cache) String() string {
	var entries []string
	for i := range c.xregs {
		x := &c.xregs[i]
		if x.mipsReg() == noReg {
			continue
		}
		var lanes []string
		for _, mr := range x.mipsRegs {
			if mr != noReg {
				lanes = append(lanes, RegisterName(mr))
			}
		}
		entry := fmt.Sprintf("X%d=[%s]", i, strings.Join(lanes, " "))
		if x.dirty {
			entry += "*"
		}
		entries = append(entries, entry)
	}
	return fmt.Sprintf("pending=%v, regs=[%s]", c.pendingFlush, strings.Join(entries, ", "))
}

// RegisterName returns a readable name for a virtual register index, e.g. "F3", "S012" or "T1".
func RegisterName(i int) string {
	switch {
	case i < 0 || i >= NumVirtualRegs:
		return fmt.Sprintf("invalid(%d)", i)
	case i < NumFPRs:
		return fmt.Sprintf("F%d", i)
	case i < Temp0:
		return vfpu.LaneName(i - NumFPRs)
	default:
		return fmt.Sprintf("T%d", i-Temp0)
	}
}

// ParseRegister is the inverse of RegisterName.
func ParseRegister(name string) (int, error) {
	if len(name) < 2 {
		return 0, fmt.Errorf("invalid register name %q", name)
	}
	switch name[0] {
	case 'F', 'f':
		n, err := strconv.Atoi(name[1:])
		if err != nil || n < 0 || n >= NumFPRs {
			return 0, fmt.Errorf("invalid fp register %q", name)
		}
		return n, nil
	case 'T', 't':
		n, err := strconv.Atoi(name[1:])
		if err != nil || n < 0 || n >= NumTemps {
			return 0, fmt.Errorf("invalid temp %q", name)
		}
		return Temp0 + n, nil
	case 'S', 's':
		if len(name) != 4 {
			return 0, fmt.Errorf("invalid vfpu lane %q", name)
		}
		mtx, col, row := name[1]-'0', name[2]-'0', name[3]-'0'
		if mtx > 7 || col > 3 || row > 3 {
			return 0, fmt.Errorf("invalid vfpu lane %q", name)
		}
		return NumFPRs + int(mtx)*4 + int(col) + int(row)*32, nil
	}
	return 0, fmt.Errorf("invalid register name %q", name)
}
