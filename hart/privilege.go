package hart

import "github.com/sarchlab/rvsim/decode"

// Privilege is the external collaborator that owns CSR state and
// privilege-level transitions. Hart never interprets a CSR address or an
// Exception itself — it only calls through this interface, mirroring
// privilege/mod.rs's near-total todo!() stub in the original.
type Privilege interface {
	// Raise handles a trap. Implementations decide what happens next
	// (redirect to a trap vector, halt, panic); the hart only needs to
	// know whether execution should stop, which Raise reports via the
	// returned Halt flag.
	Raise(exc decode.Exception) (halt bool)

	// CsrRead/CsrWrite/CsrSet/CsrClear implement the three CSR access
	// patterns. Suppress is true for CSRRS/CSRRC(I) forms whose
	// mask/uimm operand is zero, per the RISC-V privileged spec's rule
	// that such accesses must not raise write-only-field traps or
	// trigger CSR side effects — Privilege uses it to skip the write
	// while still returning the read value.
	CsrRead(addr uint16) (value uint64, err error)
	CsrWrite(addr uint16, value uint64, suppress bool) (old uint64, err error)
	CsrSet(addr uint16, mask uint64, suppress bool) (old uint64, err error)
	CsrClear(addr uint16, mask uint64, suppress bool) (old uint64, err error)
}

// NullPrivilege is a default Privilege that halts on any trap and treats
// every CSR as a read-write-zero scratch register, good enough for
// running user-mode-only programs that never touch CSRs or raise
// exceptions other than the end-of-program ebreak/ecall.
type NullPrivilege struct {
	scratch map[uint16]uint64
}

// NewNullPrivilege builds a NullPrivilege with an empty CSR scratch space.
func NewNullPrivilege() *NullPrivilege {
	return &NullPrivilege{scratch: make(map[uint16]uint64)}
}

func (p *NullPrivilege) Raise(exc decode.Exception) bool {
	return true
}

func (p *NullPrivilege) CsrRead(addr uint16) (uint64, error) {
	return p.scratch[addr], nil
}

func (p *NullPrivilege) CsrWrite(addr uint16, value uint64, suppress bool) (uint64, error) {
	old := p.scratch[addr]
	if !suppress {
		p.scratch[addr] = value
	}
	return old, nil
}

func (p *NullPrivilege) CsrSet(addr uint16, mask uint64, suppress bool) (uint64, error) {
	old := p.scratch[addr]
	if !suppress {
		p.scratch[addr] = old | mask
	}
	return old, nil
}

func (p *NullPrivilege) CsrClear(addr uint16, mask uint64, suppress bool) (uint64, error) {
	old := p.scratch[addr]
	if !suppress {
		p.scratch[addr] = old &^ mask
	}
	return old, nil
}
