package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/allegrex-jit/fpucache"
	"github.com/allegrex-jit/fpucache/internal/regcache"
	"github.com/allegrex-jit/fpucache/internal/vfpu"
)

// trace is a sequence of blocks, each compiled from a fresh mapping and flushed at its end.
type trace struct {
	// Arch is the target architecture, overridden by --arch.
	Arch string `yaml:"arch,omitempty"`
	// State seeds the home slots of the simulated guest state. Unlisted registers start at zero.
	State map[string]float32 `yaml:"state,omitempty"`
	// Expect lists guest register values required after the last block. It implies simulation.
	Expect map[string]float32 `yaml:"expect,omitempty"`
	Blocks []block            `yaml:"blocks"`
}

type block struct {
	Name  string `yaml:"name,omitempty"`
	Steps []step `yaml:"steps"`
}

// step is one cache operation. Which fields matter depends on Op:
//
//	map            MapRegister on each of Regs (flags: noinit, dirty)
//	lane           MapVectorLane on each lane of Regs
//	pack, trypack  PackRegisters or TryPackRegisters on the lanes of Regs
//	destructive    TryMapPackedDestructive with destination Regs and sources Src, Src2 (flag noinit)
//	simple         SimpleVector on the lanes of Regs
//	lock, release  SpillLock or ReleaseSpillLock on Regs
//	releaseall     ReleaseAllSpillLocks
//	temp           AcquireTemp, mapped dirty without loading
//	discard        Discard on each of Regs
//	discardpacked  DiscardPacked on each lane of Regs
//	store          StoreFromRegister on each of Regs
//	flush          Flush in the middle of a block
//	snapshot       GetState, kept as Name
//	restore        RestoreState of the snapshot Name
//	emit           Inst from the register of Regs[1] into the register of Regs[0], with Mode for SHUFPS
//	check          CheckInvariants
type step struct {
	Op    string   `yaml:"op"`
	Regs  []string `yaml:"regs,omitempty"`
	Src   []string `yaml:"src,omitempty"`
	Src2  []string `yaml:"src2,omitempty"`
	Flags []string `yaml:"flags,omitempty"`
	Inst  string   `yaml:"inst,omitempty"`
	Mode  int64    `yaml:"mode,omitempty"`
	Name  string   `yaml:"name,omitempty"`
}

func readTrace(path string) (*trace, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseTrace(buf)
}

func parseTrace(buf []byte) (*trace, error) {
	var t trace
	if err := yaml.Unmarshal(buf, &t); err != nil {
		return nil, fmt.Errorf("invalid trace: %w", err)
	}
	if len(t.Blocks) == 0 {
		return nil, fmt.Errorf("invalid trace: no blocks")
	}
	return &t, nil
}

func (s *step) registers() ([]int, error) {
	if len(s.Regs) == 0 {
		return nil, fmt.Errorf("%s: missing regs", s.Op)
	}
	return parseRegisters(s.Regs)
}

func parseRegisters(names []string) ([]int, error) {
	ret := make([]int, 0, len(names))
	for _, name := range names {
		i, err := regcache.ParseRegister(name)
		if err != nil {
			return nil, err
		}
		ret = append(ret, i)
	}
	return ret, nil
}

// parseLanes returns the VFPU lane indices of names and the vector size they form.
func parseLanes(names []string) ([]uint8, vfpu.VectorSize, error) {
	size, err := vfpu.VectorSizeOf(len(names))
	if err != nil {
		return nil, 0, err
	}
	regs, err := parseRegisters(names)
	if err != nil {
		return nil, 0, err
	}
	lanes := make([]uint8, len(regs))
	for i, r := range regs {
		if r < fpucache.NumFPRs || r >= fpucache.Temp0 {
			return nil, 0, fmt.Errorf("%s is not a vfpu lane", names[i])
		}
		lanes[i] = uint8(r - fpucache.NumFPRs)
	}
	return lanes, size, nil
}

func (s *step) mapFlags() (fpucache.MapFlags, error) {
	var flags fpucache.MapFlags
	for _, f := range s.Flags {
		switch f {
		case "noinit":
			flags |= fpucache.MapNoInit
		case "dirty":
			flags |= fpucache.MapDirty
		default:
			return 0, fmt.Errorf("%s: unknown flag %q", s.Op, f)
		}
	}
	return flags, nil
}
