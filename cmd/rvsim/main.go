// Package main provides the entry point for rvsim, a minimal runner that
// loads a raw memory image or a RISC-V ELF binary and drives a hart.Hart
// to completion.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/rvsim/hart"
	"github.com/sarchlab/rvsim/isa"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/xlen"

	yaml "go.yaml.in/yaml/v3"
)

var (
	isaPath     = flag.String("isa", "", "path to a JSON ISA configuration file")
	isaYAMLPath = flag.String("isa-yaml", "", "path to a YAML ISA configuration file")
	memSize     = flag.Uint64("mem-size", 1<<20, "flat memory size in bytes")
	loadAddr    = flag.Uint64("load-addr", 0, "address the raw image is loaded at (ignored for -elf)")
	entry       = flag.Uint64("entry", 0, "entry point PC (ignored for -elf; taken from the ELF header)")
	maxInstr    = flag.Uint64("max-instructions", 0, "stop after this many instructions (0 = unbounded)")
	elfMode     = flag.Bool("elf", false, "treat the argument as a RISC-V ELF binary rather than a raw image")
	verbose     = flag.Bool("v", false, "verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: rvsim [options] <image.bin|program.elf>\n\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	flags, err := loadISA()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading ISA configuration: %v\n", err)
		os.Exit(1)
	}

	path := flag.Arg(0)
	var mem *hart.FlatMemory
	entryPoint := *entry

	if *elfMode {
		prog, err := loader.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading ELF: %v\n", err)
			os.Exit(1)
		}
		flags.XLEN = prog.XLEN
		entryPoint = prog.EntryPoint

		size := prog.HighestAddr()
		if size < *memSize {
			size = *memSize
		}
		mem = hart.NewFlatMemory(int(size))
		if err := prog.Apply(mem.Bytes); err != nil {
			fmt.Fprintf(os.Stderr, "Error applying ELF segments: %v\n", err)
			os.Exit(1)
		}

		if *verbose {
			fmt.Printf("Loaded ELF: %s (entry=0x%x, XLEN=%d, %d segments)\n",
				path, entryPoint, prog.XLEN, len(prog.Segments))
		}
	} else {
		image, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading image: %v\n", err)
			os.Exit(1)
		}

		mem = hart.NewFlatMemory(int(*memSize))
		if int(*loadAddr)+len(image) > len(mem.Bytes) {
			fmt.Fprintf(os.Stderr, "Error: image does not fit in a %d-byte memory at load address 0x%x\n", *memSize, *loadAddr)
			os.Exit(1)
		}
		copy(mem.Bytes[*loadAddr:], image)

		if *verbose {
			fmt.Printf("Loaded: %s (%d bytes at 0x%x)\n", path, len(image), *loadAddr)
		}
	}

	if err := flags.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid ISA configuration: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("ISA: RV%dI%s%s%s%s%s\n", flags.XLEN, ext(flags.M, "M"), ext(flags.A, "A"),
			ext(flags.F, "F"), ext(flags.D, "D"), ext(flags.C, "C"))
	}

	count, runErr := run(flags, mem, entryPoint)

	if *verbose {
		fmt.Printf("Instructions executed: %d\n", count)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Execution error: %v\n", runErr)
		os.Exit(1)
	}
}

func ext(on bool, name string) string {
	if on {
		return name
	}
	return ""
}

func loadISA() (isa.Flags, error) {
	switch {
	case *isaPath != "":
		data, err := os.ReadFile(*isaPath)
		if err != nil {
			return isa.Flags{}, fmt.Errorf("failed to read ISA config file: %w", err)
		}
		flags := isa.Default()
		if err := json.Unmarshal(data, &flags); err != nil {
			return isa.Flags{}, fmt.Errorf("failed to parse ISA config: %w", err)
		}
		return flags, nil
	case *isaYAMLPath != "":
		data, err := os.ReadFile(*isaYAMLPath)
		if err != nil {
			return isa.Flags{}, fmt.Errorf("failed to read ISA config file: %w", err)
		}
		flags := isa.Default()
		if err := yaml.Unmarshal(data, &flags); err != nil {
			return isa.Flags{}, fmt.Errorf("failed to parse ISA config: %w", err)
		}
		return flags, nil
	default:
		return isa.Default(), nil
	}
}

// run instantiates the hart at the configured XLEN and runs it to
// completion or failure, returning the instruction count either way.
func run(flags isa.Flags, mem hart.Memory, entryPoint uint64) (uint64, error) {
	switch flags.XLEN {
	case 32:
		return runHart[xlen.Word32](flags, mem, entryPoint)
	case 64:
		return runHart[xlen.Word64](flags, mem, entryPoint)
	case 128:
		return runHart[xlen.Word128](flags, mem, entryPoint)
	default:
		return 0, fmt.Errorf("unsupported XLEN %d", flags.XLEN)
	}
}

func runHart[W xlen.Value[W]](flags isa.Flags, mem hart.Memory, entryPoint uint64) (uint64, error) {
	priv := hart.NewNullPrivilege()
	h := hart.New[W](flags, mem, priv,
		hart.WithEntryPoint[W](entryPoint),
		hart.WithMaxInstructions[W](*maxInstr),
	)
	err := h.Run()
	return h.InstructionCount(), err
}
