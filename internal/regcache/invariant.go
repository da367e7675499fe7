package regcache

import (
	"fmt"

	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
)

// Violation is a class of table inconsistency found by CheckInvariants.
type Violation byte

const (
	ViolationNone Violation = iota
	// ViolationImmediate: a virtual register holds an immediate.
	ViolationImmediate
	// ViolationAwayMismatch: away disagrees with the location kind.
	ViolationAwayMismatch
	// ViolationLaneRange: lane is outside 0-4.
	ViolationLaneRange
	// ViolationLaneAtHome: a register at home has a lane.
	ViolationLaneAtHome
	// ViolationInvalidPhysical: a register is away in something that is not a physical register of the target.
	ViolationInvalidPhysical
	// ViolationScalarBackReference: a plain register's physical register does not name it in slot 0.
	ViolationScalarBackReference
	// ViolationScalarWithLanes: a plain register shares its physical register with lanes.
	ViolationScalarWithLanes
	// ViolationLaneBackReference: a packed register's lane slot does not name it.
	ViolationLaneBackReference
	// ViolationDirtyEmpty: an empty physical register is dirty.
	ViolationDirtyEmpty
	// ViolationLaneHole: an occupied lane slot follows an empty one.
	ViolationLaneHole
	// ViolationLaneLocation: a lane slot names a register that is not in this physical register.
	ViolationLaneLocation
	// ViolationLaneNumber: a lane slot names a register whose lane is not that slot.
	ViolationLaneNumber
)

// String implements fmt.Stringer.
func (v Violation) String() string {
	switch v {
	case ViolationNone:
		return "none"
	case ViolationImmediate:
		return "immediate in fp register"
	case ViolationAwayMismatch:
		return "away does not match location"
	case ViolationLaneRange:
		return "lane out of range"
	case ViolationLaneAtHome:
		return "lane set while at home"
	case ViolationInvalidPhysical:
		return "invalid physical register"
	case ViolationScalarBackReference:
		return "physical register does not hold scalar"
	case ViolationScalarWithLanes:
		return "scalar shares physical register with lanes"
	case ViolationLaneBackReference:
		return "physical register lane does not hold lane"
	case ViolationDirtyEmpty:
		return "empty physical register is dirty"
	case ViolationLaneHole:
		return "hole in lanes"
	case ViolationLaneLocation:
		return "lane not located in physical register"
	case ViolationLaneNumber:
		return "lane slot does not match lane"
	}
	return "unknown"
}

// InvariantError is returned by CheckInvariants.
type InvariantError struct {
	Violation Violation
	// Physical is true if Index is a physical register table index, false if a virtual register.
	Physical bool
	Index    int
}

// Error implements error.
func (e *InvariantError) Error() string {
	if e.Physical {
		return fmt.Sprintf("%s: %s", e.Violation, amd64.RegisterName(amd64.FloatRegister(e.Index)))
	}
	return fmt.Sprintf("%s: %s", e.Violation, RegisterName(e.Index))
}

// CheckInvariants validates the whole table and returns the first inconsistency found, or nil.
func (c *Cache) CheckInvariants() error {
	for i := range c.regs {
		mr := &c.regs[i]
		bad := func(v Violation) error {
			return &InvariantError{Violation: v, Index: i}
		}
		if mr.location.IsImmediate() {
			return bad(ViolationImmediate)
		}
		reallyAway := mr.location.IsRegister()
		if reallyAway != mr.away {
			return bad(ViolationAwayMismatch)
		}
		if mr.lane < 0 || mr.lane > 4 {
			return bad(ViolationLaneRange)
		}
		if mr.lane != 0 && !reallyAway {
			return bad(ViolationLaneAtHome)
		}
		if !mr.away {
			continue
		}
		xi, ok := c.physicalIndex(mr.location.Reg)
		if !ok {
			return bad(ViolationInvalidPhysical)
		}
		x := &c.xregs[xi]
		if mr.lane == 0 {
			if x.mipsRegs[0] != i {
				return bad(ViolationScalarBackReference)
			}
			for j := 1; j < 4; j++ {
				if x.mipsRegs[j] != noReg {
					return bad(ViolationScalarWithLanes)
				}
			}
		} else if x.mipsRegs[mr.lane-1] != i {
			return bad(ViolationLaneBackReference)
		}
	}

	for i := range c.xregs {
		x := &c.xregs[i]
		bad := func(v Violation) error {
			return &InvariantError{Violation: v, Index: i, Physical: true}
		}
		hasReg := x.mipsReg() != noReg
		if !hasReg && x.dirty {
			return bad(ViolationDirtyEmpty)
		}
		hasMoreRegs := hasReg
		for j := 0; j < 4; j++ {
			occupant := x.mipsRegs[j]
			if occupant == noReg {
				hasMoreRegs = false
				continue
			}
			if !hasMoreRegs {
				return bad(ViolationLaneHole)
			}
			if occupant < 0 || occupant >= NumVirtualRegs {
				return bad(ViolationLaneLocation)
			}
			loc := c.regs[occupant].location
			if !loc.IsRegister() || loc.Reg != amd64.FloatRegister(i) {
				return bad(ViolationLaneLocation)
			}
			// A plain register sits in slot 0 with lane 0.
			if lane := c.regs[occupant].lane; lane != j+1 && (j != 0 || lane != 0) {
				return bad(ViolationLaneNumber)
			}
		}
	}
	return nil
}

// invariant panics with a FatalInvariant error if verification is on and the table is inconsistent.
func (c *Cache) invariant() {
	if !c.verify {
		return
	}
	if err := c.CheckInvariants(); err != nil {
		panic(&FatalError{Kind: FatalInvariant, Message: err.Error(), Err: err})
	}
}
