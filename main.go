// Package main provides a banner entry point for rvsim.
// rvsim is a RISC-V user-mode instruction-level emulator core.
//
// For the full CLI, use: go run ./cmd/rvsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvsim - RISC-V instruction-level emulator core")
	fmt.Println("")
	fmt.Println("Usage: rvsim [options] <program.bin>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -load-addr   Base address to load the program image at")
	fmt.Println("  -isa         Path to an ISA configuration JSON file")
	fmt.Println("  -isa-yaml    Path to an ISA configuration YAML file")
	fmt.Println("  -v           Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvsim' for the full CLI, or")
	fmt.Println("'go run ./cmd/specrun' for the decode/execution smoke tests.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: you provided arguments. Use 'go run ./cmd/rvsim' instead.")
	}
}
