package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jenkinsjamesb/brisc/pkg/asm"
	"github.com/jenkinsjamesb/brisc/pkg/isa"
	"github.com/jenkinsjamesb/brisc/pkg/report"
	"github.com/jenkinsjamesb/brisc/pkg/sim"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "brisc",
		Short: "BRISC — assembler and simulator for a 16-bit educational ISA",
	}

	// asm command
	var asmOut string
	var asmListing bool
	var asmTrace bool

	asmCmd := &cobra.Command{
		Use:   "asm [source.asm]",
		Short: "Assemble a source file to a machine-code image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := assembleFile(args[0], asmTrace)
			if err != nil {
				return err
			}

			if asmListing {
				fmt.Print(prog.Listing())
			}

			if asmOut != "" {
				if err := os.WriteFile(asmOut, prog.Image, 0o644); err != nil {
					return err
				}
				fmt.Printf("wrote %d bytes to %s\n", len(prog.Image), asmOut)
				return nil
			}
			if !asmListing {
				for _, w := range prog.Words() {
					fmt.Printf("%04X\n", uint16(w))
				}
			}
			return nil
		},
	}
	asmCmd.Flags().StringVarP(&asmOut, "output", "o", "", "Output image file (default: hex words to stdout)")
	asmCmd.Flags().BoolVar(&asmListing, "listing", false, "Print a source/machine-code listing")
	asmCmd.Flags().BoolVar(&asmTrace, "trace", false, "Print the assembly diagnostic trail to stderr")

	// run command
	var runData string
	var runRegs []string
	var runJSON bool
	var runLimit int
	var runTrace bool

	runCmd := &cobra.Command{
		Use:   "run [source.asm]",
		Short: "Assemble a source file and run it until it halts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine(args[0], runData, runRegs, runTrace)
			if err != nil {
				return err
			}

			var runErr error
			if runLimit > 0 {
				for i := 0; i < runLimit && m.Running; i++ {
					runErr = m.Step()
				}
			} else {
				runErr = m.Run()
			}

			printSnapshot(m.Snapshot(), runJSON)
			return runErr
		},
	}
	runCmd.Flags().StringVar(&runData, "data", "", "Binary file preloaded into data memory")
	runCmd.Flags().StringArrayVar(&runRegs, "reg", nil, "Seed a register, e.g. --reg 0=0x20 (repeatable)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the final snapshot as JSON")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Stop after N cycles even if not halted (0 = no limit)")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "Print the assembly diagnostic trail to stderr")

	// step command
	var stepCount int
	var stepData string
	var stepRegs []string
	var stepJSON bool

	stepCmd := &cobra.Command{
		Use:   "step [source.asm]",
		Short: "Assemble a source file and advance a fixed number of cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine(args[0], stepData, stepRegs, false)
			if err != nil {
				return err
			}

			var stepErr error
			for i := 0; i < stepCount && m.Running; i++ {
				stepErr = m.Step()
			}

			printSnapshot(m.Snapshot(), stepJSON)
			return stepErr
		},
	}
	stepCmd.Flags().IntVarP(&stepCount, "count", "n", 1, "Number of cycles to step")
	stepCmd.Flags().StringVar(&stepData, "data", "", "Binary file preloaded into data memory")
	stepCmd.Flags().StringArrayVar(&stepRegs, "reg", nil, "Seed a register, e.g. --reg 0=0x20 (repeatable)")
	stepCmd.Flags().BoolVar(&stepJSON, "json", false, "Print the snapshot as JSON")

	// disasm command
	disasmCmd := &cobra.Command{
		Use:   "disasm [image.bin]",
		Short: "Disassemble a machine-code image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if len(image)%2 != 0 {
				return fmt.Errorf("image length %d is not 16-bit aligned", len(image))
			}
			for i := 0; i+2 <= len(image); i += 2 {
				w := isa.Word(image[i])<<8 | isa.Word(image[i+1])
				fmt.Printf("0x%04X  %04X  %s\n", i, uint16(w), isa.Disassemble(w))
			}
			return nil
		},
	}

	rootCmd.AddCommand(asmCmd, runCmd, stepCmd, disasmCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// assembleFile reads and assembles one source file.
func assembleFile(path string, trace bool) (*asm.Program, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a := &asm.Assembler{}
	if trace {
		a.Trace = os.Stderr
	}
	return a.Assemble(string(source))
}

// newMachine assembles a source file and builds a seeded machine from it.
func newMachine(path, dataPath string, regs []string, trace bool) (*sim.Machine, error) {
	prog, err := assembleFile(path, trace)
	if err != nil {
		return nil, err
	}

	m := sim.New()
	m.LoadText(prog.Image)

	if dataPath != "" {
		data, err := os.ReadFile(dataPath)
		if err != nil {
			return nil, err
		}
		if len(data) > sim.MemSize {
			return nil, fmt.Errorf("data image is %d bytes, memory is %d", len(data), sim.MemSize)
		}
		m.LoadData(data)
	}

	for _, spec := range regs {
		idx, val, err := parseRegSeed(spec)
		if err != nil {
			return nil, err
		}
		if err := m.WriteRegister(idx, val); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// parseRegSeed parses an i=value register seed flag.
func parseRegSeed(spec string) (int, uint16, error) {
	idxStr, valStr, ok := strings.Cut(spec, "=")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --reg %q: want index=value", spec)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --reg index %q", idxStr)
	}
	val, err := strconv.ParseInt(valStr, 0, 32)
	if err != nil || val < -0x8000 || val > 0xFFFF {
		return 0, 0, fmt.Errorf("invalid --reg value %q", valStr)
	}
	return idx, uint16(val), nil
}

func printSnapshot(snap sim.Snapshot, asJSON bool) {
	if asJSON {
		report.WriteJSON(os.Stdout, snap)
		return
	}
	fmt.Print(report.Status(snap))
	fmt.Print(report.Registers(snap))
	fmt.Println("data memory:")
	fmt.Print(report.Memory(snap.DataMemory[:], 8))
}
