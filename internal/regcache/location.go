package regcache

import (
	"fmt"

	"github.com/allegrex-jit/fpucache/internal/asm"
	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
	"github.com/allegrex-jit/fpucache/internal/vfpu"
)

// LocationKind is where a virtual register currently lives.
type LocationKind byte

const (
	// LocationHome is the register's slot in the guest state, addressed relative to Layout.BaseRegister.
	LocationHome LocationKind = iota
	// LocationRegister is a physical XMM register.
	LocationRegister
	// LocationImmediate is a constant. The floating point cache never produces it.
	LocationImmediate
)

// String implements fmt.Stringer.
func (k LocationKind) String() string {
	switch k {
	case LocationHome:
		return "home"
	case LocationRegister:
		return "register"
	case LocationImmediate:
		return "immediate"
	}
	return "unknown"
}

// Location is an operand descriptor for a virtual register.
type Location struct {
	Kind LocationKind
	// Reg is the physical register for LocationRegister, and the base register for LocationHome.
	Reg asm.Register
	// Offset is the displacement from Reg for LocationHome.
	Offset int64
}

// IsRegister reports whether the location is a physical register.
func (l Location) IsRegister() bool {
	return l.Kind == LocationRegister
}

// IsImmediate reports whether the location is an immediate.
func (l Location) IsImmediate() bool {
	return l.Kind == LocationImmediate
}

// String implements fmt.Stringer.
func (l Location) String() string {
	switch l.Kind {
	case LocationRegister:
		return amd64.RegisterName(l.Reg)
	case LocationHome:
		return fmt.Sprintf("[%s + 0x%x]", amd64.RegisterName(l.Reg), l.Offset)
	}
	return l.Kind.String()
}

func registerLocation(reg asm.Register) Location {
	return Location{Kind: LocationRegister, Reg: reg}
}

// Layout places the home slots of the virtual registers in the guest state.
type Layout struct {
	// BaseRegister holds the address of the guest state in compiled code.
	BaseRegister asm.Register
	// FPROffset is the offset of the scalar register block. Register i lives at FPROffset+i*4.
	FPROffset int64
	// VFPUOffset is the offset of the VFPU block. Lane i lives at VFPUOffset+vfpu.VOffset[i]*4.
	VFPUOffset int64
	// TempOffset is the offset of the scratch temporaries. Temp i lives at TempOffset+i*4.
	TempOffset int64
}

// DefaultLayout returns the guest state layout used when none is configured.
func DefaultLayout(arch string) Layout {
	base := amd64.REG_R14
	if arch == amd64.Arch386 {
		base = amd64.REG_BP
	}
	return Layout{
		BaseRegister: base,
		FPROffset:    0,
		VFPUOffset:   NumFPRs * 4,
		TempOffset:   (NumFPRs + vfpu.NumLanes) * 4,
	}
}

// DefaultLocation returns the home slot of virtual register i.
func (c *Cache) DefaultLocation(i int) Location {
	var offset int64
	switch {
	case i < 0 || i >= NumVirtualRegs:
		fatalf(FatalInvalidRegister, "virtual register %d out of range", i)
	case i < NumFPRs:
		offset = c.layout.FPROffset + int64(i)*4
	case i < Temp0:
		offset = c.layout.VFPUOffset + int64(vfpu.VOffset[i-NumFPRs])*4
	default:
		offset = c.layout.TempOffset + int64(i-Temp0)*4
	}
	return Location{Kind: LocationHome, Reg: c.layout.BaseRegister, Offset: offset}
}

// allocationOrderFor returns the physical registers to allocate from and the size of the register file.
// X0 and X1 are left to the callers as scratch.
func allocationOrderFor(arch string) ([]asm.Register, int, error) {
	switch arch {
	case amd64.ArchAMD64:
		return []asm.Register{
			amd64.REG_X6, amd64.REG_X7, amd64.REG_X8, amd64.REG_X9, amd64.REG_X10,
			amd64.REG_X11, amd64.REG_X12, amd64.REG_X13, amd64.REG_X14, amd64.REG_X15,
			amd64.REG_X2, amd64.REG_X3, amd64.REG_X4, amd64.REG_X5,
		}, 16, nil
	case amd64.Arch386:
		return []asm.Register{
			amd64.REG_X2, amd64.REG_X3, amd64.REG_X4, amd64.REG_X5, amd64.REG_X6, amd64.REG_X7,
		}, 8, nil
	}
	return nil, 0, fmt.Errorf("unsupported arch %q", arch)
}
