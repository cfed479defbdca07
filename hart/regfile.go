// Package hart assembles the decode, xlen, and isa packages into a
// fetch-decode-execute hart: a generic register file, an integer ALU, an
// FPU, a decoded-uop cache, and the dispatch loop that drives them against
// a pair of external Memory and Privilege collaborators.
package hart

import "github.com/sarchlab/rvsim/xlen"

// RegFile is the generic integer register file. X[0] is hardwired to the
// zero value and every write to it is discarded, mirroring the ARM64
// teacher's XZR handling for x31.
type RegFile[W xlen.Value[W]] struct {
	X  [32]W
	PC W
}

// Read returns the value of register reg. Register 0 always reads as zero.
func (r *RegFile[W]) Read(reg uint8) W {
	if reg == 0 {
		var zero W
		return zero
	}
	return r.X[reg]
}

// Write stores value into register reg. Writes to register 0 are discarded.
func (r *RegFile[W]) Write(reg uint8, value W) {
	if reg == 0 {
		return
	}
	r.X[reg] = value
}
