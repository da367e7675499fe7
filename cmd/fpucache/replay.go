package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/allegrex-jit/fpucache"
	"github.com/allegrex-jit/fpucache/internal/asm"
	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
	"github.com/allegrex-jit/fpucache/internal/regcache"
	"github.com/allegrex-jit/fpucache/internal/simd"
)

type replayOptions struct {
	arch     archFlag
	verify   bool
	simulate bool
	hex      bool
}

func newReplayCmd(out, errOut io.Writer) *cobra.Command {
	var opts replayOptions
	cmd := &cobra.Command{
		Use:   "replay <trace.yaml>",
		Short: "Replay a trace and print the instructions the cache emits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTrace(args[0])
			if err != nil {
				return err
			}
			return replay(t, &opts, out, errOut)
		},
	}
	flags := cmd.Flags()
	addArchFlag(flags, &opts.arch)
	flags.BoolVar(&opts.verify, "verify", true, "check cache consistency after every operation")
	flags.BoolVarP(&opts.simulate, "simulate", "s", false, "execute the emitted instructions and print the guest registers that changed")
	flags.BoolVar(&opts.hex, "hex", false, "print the machine code of each block")
	return cmd
}

// emitters fans every instruction out to each of its Emitters in order.
type emitters []fpucache.Emitter

func (e emitters) CompileRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register) {
	for _, em := range e {
		em.CompileRegisterToRegisterInstruction(inst, from, to)
	}
}

func (e emitters) CompileConstModeRegisterToRegisterInstruction(inst asm.Instruction, from, to asm.Register, mode int64) {
	for _, em := range e {
		em.CompileConstModeRegisterToRegisterInstruction(inst, from, to, mode)
	}
}

func (e emitters) CompileMemoryToRegisterInstruction(inst asm.Instruction, sourceBaseReg asm.Register, sourceOffsetConst int64, destinationReg asm.Register) {
	for _, em := range e {
		em.CompileMemoryToRegisterInstruction(inst, sourceBaseReg, sourceOffsetConst, destinationReg)
	}
}

func (e emitters) CompileRegisterToMemoryInstruction(inst asm.Instruction, sourceRegister asm.Register, destinationBaseRegister asm.Register, destinationOffsetConst int64) {
	for _, em := range e {
		em.CompileRegisterToMemoryInstruction(inst, sourceRegister, destinationBaseRegister, destinationOffsetConst)
	}
}

type replayer struct {
	out    io.Writer
	config *fpucache.CacheConfig
	cache  *fpucache.Cache
	// machine is nil unless simulating.
	machine *simd.Machine

	emitters  emitters
	recorder  *amd64.Recorder
	printed   int
	snapshots map[string]fpucache.State
}

func replay(t *trace, opts *replayOptions, out, errOut io.Writer) error {
	config := fpucache.NewCacheConfig().WithVerification(opts.verify).WithDiagnostics(errOut)
	switch {
	case opts.arch != "":
		config = config.WithArch(string(opts.arch))
	case t.Arch != "":
		var a archFlag
		if err := a.Set(t.Arch); err != nil {
			return err
		}
		config = config.WithArch(t.Arch)
	}

	c, err := fpucache.NewCache(amd64.NewRecorder(), config)
	if err != nil {
		return err
	}
	r := &replayer{out: out, config: config, cache: c, snapshots: map[string]fpucache.State{}}

	var initial []uint32
	if opts.simulate || len(t.Expect) > 0 {
		r.machine = simd.NewMachine(config.Layout().BaseRegister, fpucache.NumVirtualRegs)
		for name, v := range t.State {
			i, err := regcache.ParseRegister(name)
			if err != nil {
				return err
			}
			r.machine.Store(c.DefaultLocation(i).Offset, v)
		}
		initial = append(initial, r.machine.State...)
	}

	for n := range t.Blocks {
		if err := r.block(n, &t.Blocks[n], opts.hex); err != nil {
			return err
		}
	}

	if r.machine != nil {
		return r.report(initial, t.Expect)
	}
	return nil
}

// block compiles one block. A FatalError abandons the block and is returned.
func (r *replayer) block(n int, b *block, withCode bool) (err error) {
	name := b.Name
	if name == "" {
		name = strconv.Itoa(n)
	}
	fmt.Fprintf(r.out, "block %s:\n", name)

	r.recorder = amd64.NewRecorder()
	r.printed = 0
	r.emitters = emitters{r.recorder}
	var a fpucache.Assembler
	if withCode {
		if a, err = fpucache.NewAssembler(r.config); err != nil {
			return err
		}
		r.emitters = append(r.emitters, a)
	}
	if r.machine != nil {
		r.emitters = append(r.emitters, r.machine)
	}
	r.cache.Start(r.emitters)

	defer func() {
		r.sync()
		if err != nil {
			err = fmt.Errorf("block %s: %w", name, err)
		}
	}()
	defer fpucache.Recover(&err)

	for i := range b.Steps {
		if err := r.step(&b.Steps[i]); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	r.cache.Flush()

	if r.machine != nil {
		if err := r.machine.Err(); err != nil {
			return err
		}
	}
	if a != nil && len(a.Nodes()) > 0 {
		code, err := a.Assemble()
		if err != nil {
			return err
		}
		r.sync()
		fmt.Fprintf(r.out, "\tcode: %s\n", hex.EncodeToString(code))
	}
	return nil
}

// sync prints the instructions emitted since the last call.
func (r *replayer) sync() {
	listing := r.recorder.Listing()
	for _, line := range listing[r.printed:] {
		fmt.Fprintf(r.out, "\t%s\n", line)
	}
	r.printed = len(listing)
}

func (r *replayer) notef(format string, args ...interface{}) {
	r.sync()
	fmt.Fprintf(r.out, "\t; "+format+"\n", args...)
}

func (r *replayer) step(s *step) error {
	c := r.cache
	flags, err := s.mapFlags()
	if err != nil {
		return err
	}

	switch s.Op {
	case "map", "lock", "release", "discard", "store":
		regs, err := s.registers()
		if err != nil {
			return err
		}
		switch s.Op {
		case "map":
			for _, i := range regs {
				c.MapRegister(i, flags&fpucache.MapNoInit == 0, flags&fpucache.MapDirty != 0)
			}
		case "lock":
			c.SpillLock(regs...)
		case "release":
			c.ReleaseSpillLock(regs...)
		case "discard":
			for _, i := range regs {
				c.Discard(i)
			}
		case "store":
			for _, i := range regs {
				c.StoreFromRegister(i)
			}
		}
	case "lane", "discardpacked":
		if len(s.Regs) == 0 {
			return fmt.Errorf("%s: missing regs", s.Op)
		}
		for _, name := range s.Regs {
			lanes, _, err := parseLanes([]string{name})
			if err != nil {
				return err
			}
			if s.Op == "lane" {
				c.MapVectorLane(int(lanes[0]), flags)
			} else {
				c.DiscardPacked(int(lanes[0]))
			}
		}
	case "pack", "trypack", "simple":
		lanes, size, err := parseLanes(s.Regs)
		if err != nil {
			return err
		}
		switch s.Op {
		case "pack":
			c.PackRegisters(lanes, size, flags)
		case "trypack":
			ok := c.TryPackRegisters(lanes, size, flags)
			r.notef("trypack %s: %t", strings.Join(s.Regs, " "), ok)
		case "simple":
			c.SimpleVector(lanes, size, flags)
		}
	case "destructive":
		vd, size, err := parseLanes(s.Regs)
		if err != nil {
			return err
		}
		vs, sSize, err := parseLanes(s.Src)
		if err != nil {
			return err
		}
		vt, tSize, err := parseLanes(s.Src2)
		if err != nil {
			return err
		}
		ok := c.TryMapPackedDestructive(vd, size, vs, sSize, vt, tSize, flags&fpucache.MapNoInit != 0)
		r.notef("destructive %s: %t", strings.Join(s.Regs, " "), ok)
	case "releaseall":
		c.ReleaseAllSpillLocks()
	case "temp":
		t := c.AcquireTemp()
		c.MapRegister(t, false, true)
		r.notef("temp %s in %s", regcache.RegisterName(t), amd64.RegisterName(c.PhysicalOf(t)))
	case "flush":
		c.Flush()
	case "snapshot", "restore":
		if s.Name == "" {
			return fmt.Errorf("%s: missing name", s.Op)
		}
		if s.Op == "snapshot" {
			r.snapshots[s.Name] = c.GetState()
			return nil
		}
		st, ok := r.snapshots[s.Name]
		if !ok {
			return fmt.Errorf("restore: unknown snapshot %q", s.Name)
		}
		c.RestoreState(st)
	case "emit":
		inst, ok := amd64.InstructionByName(s.Inst)
		if !ok {
			return fmt.Errorf("emit: unknown instruction %q", s.Inst)
		}
		if len(s.Regs) != 2 {
			return fmt.Errorf("emit: want destination and source regs, got %d", len(s.Regs))
		}
		regs, err := parseRegisters(s.Regs)
		if err != nil {
			return err
		}
		to, from := c.PhysicalOf(regs[0]), c.PhysicalOf(regs[1])
		if inst == amd64.SHUFPS {
			r.emitters.CompileConstModeRegisterToRegisterInstruction(inst, from, to, s.Mode)
		} else {
			r.emitters.CompileRegisterToRegisterInstruction(inst, from, to)
		}
	case "check":
		return c.CheckInvariants()
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	return nil
}

// report prints every guest register whose home slot changed and checks the expected values.
func (r *replayer) report(initial []uint32, expect map[string]float32) error {
	fmt.Fprintln(r.out, "state:")
	for i := 0; i < fpucache.NumVirtualRegs; i++ {
		off := r.cache.DefaultLocation(i).Offset
		if r.machine.State[off/4] != initial[off/4] {
			fmt.Fprintf(r.out, "\t%s = %g\n", regcache.RegisterName(i), r.machine.Load(off))
		}
	}

	names := make([]string, 0, len(expect))
	for name := range expect {
		names = append(names, name)
	}
	sort.Strings(names)
	var mismatches []string
	for _, name := range names {
		i, err := regcache.ParseRegister(name)
		if err != nil {
			return err
		}
		if actual, want := r.machine.Load(r.cache.DefaultLocation(i).Offset), expect[name]; actual != want {
			mismatches = append(mismatches, fmt.Sprintf("%s = %g, expected %g", name, actual, want))
		}
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("unexpected guest state: %s", strings.Join(mismatches, "; "))
	}
	return nil
}
