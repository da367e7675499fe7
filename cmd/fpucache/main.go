package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/allegrex-jit/fpucache"
	"github.com/allegrex-jit/fpucache/internal/asm/amd64"
	"github.com/allegrex-jit/fpucache/internal/regcache"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is separated out for the purpose of unit testing.
func run(args []string, out, errOut io.Writer) int {
	rootCmd := newRootCmd(out, errOut)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(errOut, "fpucache: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fpucache",
		Short: "fpucache replays register cache traces",
		Long: `fpucache drives the floating point register cache of the Allegrex JIT from
YAML traces and prints the data movement it emits. Traces can be executed
against a simulated register file to check that every guest register ends
up holding the right value.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.AddCommand(newReplayCmd(out, errOut), newLayoutCmd(out))
	return rootCmd
}

// archFlag is a pflag.Value accepting only the architectures the cache can target.
type archFlag string

func (a *archFlag) String() string {
	return string(*a)
}

func (a *archFlag) Set(s string) error {
	switch s {
	case amd64.ArchAMD64, amd64.Arch386:
		*a = archFlag(s)
		return nil
	}
	return fmt.Errorf("unsupported arch %q (want %s or %s)", s, amd64.ArchAMD64, amd64.Arch386)
}

func (a *archFlag) Type() string {
	return "arch"
}

func addArchFlag(flags *pflag.FlagSet, a *archFlag) {
	flags.Var(a, "arch", "target architecture: amd64 or 386 (default: the trace's, then the host's)")
}

func newLayoutCmd(out io.Writer) *cobra.Command {
	var arch archFlag
	cmd := &cobra.Command{
		Use:   "layout [register...]",
		Short: "Print the guest state home slot of each register",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := fpucache.NewCacheConfig()
			if arch != "" {
				config = config.WithArch(string(arch))
			}
			c, err := fpucache.NewCache(amd64.NewRecorder(), config)
			if err != nil {
				return err
			}

			regs := make([]int, 0, fpucache.NumVirtualRegs)
			if len(args) == 0 {
				for i := 0; i < fpucache.NumVirtualRegs; i++ {
					regs = append(regs, i)
				}
			}
			for _, name := range args {
				i, err := regcache.ParseRegister(name)
				if err != nil {
					return err
				}
				regs = append(regs, i)
			}
			for _, i := range regs {
				fmt.Fprintf(out, "%s\t%s\n", regcache.RegisterName(i), c.DefaultLocation(i))
			}
			return nil
		},
	}
	addArchFlag(cmd.Flags(), &arch)
	return cmd
}
