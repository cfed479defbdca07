// Package isa describes the build-time configuration surface shared by the
// decoder and the hart: which address width and which standard extensions
// are enabled.
package isa

import "fmt"

// Flags is the set of boolean build options plus the static XLEN choice.
// D implies F, RV128 implies RV64, and Q implies D; Validate checks these.
type Flags struct {
	// XLEN is the register width in bits: 32, 64, or 128.
	XLEN int

	A bool // atomic
	C bool // compressed
	D bool // double-precision float
	F bool // single-precision float
	M bool // integer multiply/divide
	Q bool // quad-precision float

	Zicsr    bool // CSR access
	Zifencei bool // instruction-fetch fence
	E        bool // reduced register file (x0-x15 only)
}

// Default returns RV64IMAFDC with Zicsr/Zifencei enabled.
func Default() Flags {
	return Flags{
		XLEN:     64,
		A:        true,
		C:        true,
		D:        true,
		F:        true,
		M:        true,
		Zicsr:    true,
		Zifencei: true,
	}
}

// Validate checks the cross-feature implications §6 requires.
func (f Flags) Validate() error {
	switch f.XLEN {
	case 32, 64, 128:
	default:
		return fmt.Errorf("isa: XLEN must be 32, 64, or 128, got %d", f.XLEN)
	}
	if f.Q && !f.D {
		return fmt.Errorf("isa: Q requires D")
	}
	if f.D && !f.F {
		return fmt.Errorf("isa: D requires F")
	}
	return nil
}

// MaxGPR returns the highest legal general-purpose register index: 15 with
// the reduced register file, 31 otherwise.
func (f Flags) MaxGPR() uint8 {
	if f.E {
		return 15
	}
	return 31
}
