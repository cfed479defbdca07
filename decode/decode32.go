package decode

import "github.com/sarchlab/rvsim/isa"

// Opcode group selectors: bits [6:2] of a 32-bit instruction whose low two
// bits are 0b11.
const (
	opGroupLoad     = 0b00000
	opGroupLoadFp   = 0b00001
	opGroupMiscMem  = 0b00011
	opGroupOpImm    = 0b00100
	opGroupAuipc    = 0b00101
	opGroupOpImm32  = 0b00110
	opGroupStore    = 0b01000
	opGroupStoreFp  = 0b01001
	opGroupAmo      = 0b01011
	opGroupOp       = 0b01100
	opGroupLui      = 0b01101
	opGroupOp32     = 0b01110
	opGroupMadd     = 0b10000
	opGroupMsub     = 0b10001
	opGroupNmsub    = 0b10010
	opGroupNmadd    = 0b10011
	opGroupOpFp     = 0b10100
	opGroupBranch   = 0b11000
	opGroupJalr     = 0b11001
	opGroupJal      = 0b11011
	opGroupSystem   = 0b11100
)

// Decoder decodes 16- and 32-bit RISC-V instruction words against a fixed
// set of ISA flags. It never allocates and never suspends; every
// unsupported or malformed encoding resolves to Trap(IllegalInstr).
type Decoder struct {
	ISA isa.Flags
}

// NewDecoder builds a Decoder for the given ISA configuration.
func NewDecoder(flags isa.Flags) *Decoder {
	return &Decoder{ISA: flags}
}

func (d *Decoder) maxGPR() uint8 { return d.ISA.MaxGPR() }

// Decode32 decodes a full 32-bit instruction word (bits [1:0] must be 0b11;
// callers route by is-compressed before calling this).
func (d *Decoder) Decode32(ins uint32) Instr {
	switch opcode(ins) {
	case opGroupLoad:
		return d.decLoad(ins)
	case opGroupLoadFp:
		return d.decLoadFp(ins)
	case opGroupMiscMem:
		return d.decMiscMem(ins)
	case opGroupOpImm:
		return d.decOpImm(ins, false)
	case opGroupAuipc:
		if !checkGPR(rd(ins), d.maxGPR()) {
			return illegal()
		}
		return Instr{Kind: Auipc, Rd: rd(ins), Imm: uImm(ins)}
	case opGroupOpImm32:
		if d.ISA.XLEN < 64 {
			return illegal()
		}
		return d.decOpImm(ins, true)
	case opGroupStore:
		return d.decStore(ins)
	case opGroupStoreFp:
		return d.decStoreFp(ins)
	case opGroupAmo:
		return d.decAmo(ins)
	case opGroupOp:
		return d.decOp(ins, false)
	case opGroupLui:
		// LUI has no separate micro-op: it is OpImm(rd, x0, imm, Add),
		// exactly as the reference decoder's dec32_lui reuses OpImm.
		if !checkGPR(rd(ins), d.maxGPR()) {
			return illegal()
		}
		return Instr{Kind: OpImm, Rd: rd(ins), Rs1: gpZero, Imm: uImm(ins), BinOp: Add}
	case opGroupOp32:
		if d.ISA.XLEN < 64 {
			return illegal()
		}
		return d.decOp(ins, true)
	case opGroupMadd, opGroupMsub, opGroupNmsub, opGroupNmadd:
		return d.decFpOp3(ins, opcode(ins))
	case opGroupOpFp:
		return d.decOpFp(ins)
	case opGroupBranch:
		return d.decBranch(ins)
	case opGroupJalr:
		return d.decJalr(ins)
	case opGroupJal:
		return d.decJal(ins)
	case opGroupSystem:
		return d.decSystem(ins)
	default:
		return illegal()
	}
}

func (d *Decoder) decLoad(ins uint32) Instr {
	if !checkGPR(rd(ins), d.maxGPR()) || !checkGPR(rs1(ins), d.maxGPR()) {
		return illegal()
	}
	var width MemWidth
	switch fn3(ins) {
	case 0b000:
		width = WidthB
	case 0b001:
		width = WidthH
	case 0b010:
		width = WidthW
	case 0b011:
		if d.ISA.XLEN < 64 {
			return illegal()
		}
		width = WidthD
	case 0b100:
		width = WidthBU
	case 0b101:
		width = WidthHU
	case 0b110:
		if d.ISA.XLEN < 64 {
			return illegal()
		}
		width = WidthWU
	default:
		return illegal()
	}
	return Instr{Kind: Load, Rd: rd(ins), Rs1: rs1(ins), Imm: iImm(ins), Width: width}
}

func (d *Decoder) decStore(ins uint32) Instr {
	if !checkGPR(rs1(ins), d.maxGPR()) || !checkGPR(rs2(ins), d.maxGPR()) {
		return illegal()
	}
	var width MemWidth
	switch fn3(ins) {
	case 0b000:
		width = WidthB
	case 0b001:
		width = WidthH
	case 0b010:
		width = WidthW
	case 0b011:
		if d.ISA.XLEN < 64 {
			return illegal()
		}
		width = WidthD
	default:
		return illegal()
	}
	return Instr{Kind: Store, Rs1: rs1(ins), Rs2: rs2(ins), Imm: sImm(ins), Width: width}
}

func (d *Decoder) decMiscMem(ins uint32) Instr {
	switch fn3(ins) {
	case 0b000:
		pred := uint8(selectBits(ins, 27, 24))
		succ := uint8(selectBits(ins, 23, 20))
		fm := selectBits(ins, 31, 28)
		mode := FenceNormal
		if fm == 0b1000 && pred == 0b0011 && succ == 0b0011 {
			mode = FenceTSO
		}
		return Instr{Kind: MiscMemFence, Pred: pred, Succ: succ, FenceMode: mode}
	case 0b001:
		if !d.ISA.Zifencei {
			return illegal()
		}
		return Instr{Kind: MiscMemFenceI}
	default:
		return illegal()
	}
}

func (d *Decoder) decOpImm(ins uint32, word32 bool) Instr {
	rdv, rs1v := rd(ins), rs1(ins)
	if !checkGPR(rdv, d.maxGPR()) || !checkGPR(rs1v, d.maxGPR()) {
		return illegal()
	}
	imm := iImm(ins)
	xlen := d.ISA.XLEN
	if word32 {
		xlen = 32
	}
	switch fn3(ins) {
	case 0b000:
		return Instr{Kind: OpImm, Rd: rdv, Rs1: rs1v, Imm: imm, BinOp: opOrW(Add, AddW, word32)}
	case 0b010:
		if word32 {
			return illegal()
		}
		return Instr{Kind: OpImm, Rd: rdv, Rs1: rs1v, Imm: imm, BinOp: Slt}
	case 0b011:
		if word32 {
			return illegal()
		}
		return Instr{Kind: OpImm, Rd: rdv, Rs1: rs1v, Imm: imm, BinOp: SltU}
	case 0b100:
		if word32 {
			return illegal()
		}
		return Instr{Kind: OpImm, Rd: rdv, Rs1: rs1v, Imm: imm, BinOp: Xor}
	case 0b110:
		if word32 {
			return illegal()
		}
		return Instr{Kind: OpImm, Rd: rdv, Rs1: rs1v, Imm: imm, BinOp: Or}
	case 0b111:
		if word32 {
			return illegal()
		}
		return Instr{Kind: OpImm, Rd: rdv, Rs1: rs1v, Imm: imm, BinOp: And}
	case 0b001:
		op, ok := slImm(imm, xlen)
		if !ok {
			return illegal()
		}
		return Instr{Kind: OpImm, Rd: rdv, Rs1: rs1v, Imm: imm & 0x7f, BinOp: opOrW(op, SllW, word32)}
	case 0b101:
		op, shamt, ok := srImm(imm, xlen)
		if !ok {
			return illegal()
		}
		return Instr{Kind: OpImm, Rd: rdv, Rs1: rs1v, Imm: shamt, BinOp: opOrW(op, srlOrSraW(op), word32)}
	default:
		return illegal()
	}
}

func opOrW(base, wVariant BinaryOp, word32 bool) BinaryOp {
	if word32 {
		return wVariant
	}
	return base
}

func srlOrSraW(op BinaryOp) BinaryOp {
	if op == Sra {
		return SraW
	}
	return SrlW
}

func (d *Decoder) decOp(ins uint32, word32 bool) Instr {
	rdv, rs1v, rs2v := rType(ins)
	if !checkGPR(rdv, d.maxGPR()) || !checkGPR(rs1v, d.maxGPR()) || !checkGPR(rs2v, d.maxGPR()) {
		return illegal()
	}
	f3, f7 := fn3(ins), fn7(ins)
	var op BinaryOp
	switch f7 {
	case 0b0000000:
		switch f3 {
		case 0b000:
			op = opOrW(Add, AddW, word32)
		case 0b001:
			op = opOrW(Sll, SllW, word32)
		case 0b010:
			if word32 {
				return illegal()
			}
			op = Slt
		case 0b011:
			if word32 {
				return illegal()
			}
			op = SltU
		case 0b100:
			if word32 {
				return illegal()
			}
			op = Xor
		case 0b101:
			op = opOrW(Srl, SrlW, word32)
		case 0b110:
			if word32 {
				return illegal()
			}
			op = Or
		case 0b111:
			if word32 {
				return illegal()
			}
			op = And
		default:
			return illegal()
		}
	case 0b0100000:
		switch f3 {
		case 0b000:
			op = opOrW(Sub, SubW, word32)
		case 0b101:
			op = opOrW(Sra, SraW, word32)
		default:
			return illegal()
		}
	case 0b0000001:
		if !d.ISA.M {
			return illegal()
		}
		switch f3 {
		case 0b000:
			op = opOrW(Mul, MulW, word32)
		case 0b001:
			if word32 {
				return illegal()
			}
			op = Mulh
		case 0b010:
			if word32 {
				return illegal()
			}
			op = MulhSU
		case 0b011:
			if word32 {
				return illegal()
			}
			op = MulhU
		case 0b100:
			op = opOrW(Div, DivW, word32)
		case 0b101:
			op = opOrW(DivU, DivUW, word32)
		case 0b110:
			op = opOrW(Rem, RemW, word32)
		case 0b111:
			op = opOrW(RemU, RemUW, word32)
		default:
			return illegal()
		}
	default:
		return illegal()
	}
	return Instr{Kind: Op, Rd: rdv, Rs1: rs1v, Rs2: rs2v, BinOp: op}
}

func (d *Decoder) decBranch(ins uint32) Instr {
	rs1v, rs2v := rs1(ins), rs2(ins)
	if !checkGPR(rs1v, d.maxGPR()) || !checkGPR(rs2v, d.maxGPR()) {
		return illegal()
	}
	var cond CmpCond
	switch fn3(ins) {
	case 0b000:
		cond = Eq
	case 0b001:
		cond = Ne
	case 0b100:
		cond = Lt
	case 0b101:
		cond = Ge
	case 0b110:
		cond = LtU
	case 0b111:
		cond = GeU
	default:
		return illegal()
	}
	return Instr{Kind: Branch, Rs1: rs1v, Rs2: rs2v, Imm: bImm(ins), Cond: cond}
}

func (d *Decoder) decJalr(ins uint32) Instr {
	if fn3(ins) != 0 {
		return illegal()
	}
	rdv, rs1v := rd(ins), rs1(ins)
	if !checkGPR(rdv, d.maxGPR()) || !checkGPR(rs1v, d.maxGPR()) {
		return illegal()
	}
	return Instr{Kind: Jalr, Rd: rdv, Rs1: rs1v, Imm: iImm(ins)}
}

func (d *Decoder) decJal(ins uint32) Instr {
	rdv := rd(ins)
	if !checkGPR(rdv, d.maxGPR()) {
		return illegal()
	}
	return Instr{Kind: Jal, Rd: rdv, Imm: jImm(ins)}
}

func (d *Decoder) decSystem(ins uint32) Instr {
	if fn3(ins) == 0 {
		switch ins >> 7 {
		case 0:
			return Instr{Kind: Trap, Exc: ExcEcall}
		case 0b10_0000_0000_0000:
			return Instr{Kind: Trap, Exc: ExcEbreak}
		default:
			return illegal()
		}
	}
	if !d.ISA.Zicsr {
		return illegal()
	}
	rdv := rd(ins)
	if !checkGPR(rdv, d.maxGPR()) {
		return illegal()
	}
	addr := uint16(selectBits(ins, 31, 20))
	var op CsrOp
	var rs1Field uint8
	switch fn3(ins) {
	case 0b001:
		op = CsrRW
		rs1Field = rs1(ins)
		if !checkGPR(rs1Field, d.maxGPR()) {
			return illegal()
		}
	case 0b010:
		op = CsrRS
		rs1Field = rs1(ins)
		if !checkGPR(rs1Field, d.maxGPR()) {
			return illegal()
		}
	case 0b011:
		op = CsrRC
		rs1Field = rs1(ins)
		if !checkGPR(rs1Field, d.maxGPR()) {
			return illegal()
		}
	case 0b101:
		op = CsrRWI
		rs1Field = rs1(ins) // 5-bit unsigned immediate, not a register
	case 0b110:
		op = CsrRSI
		rs1Field = rs1(ins)
	case 0b111:
		op = CsrRCI
		rs1Field = rs1(ins)
	default:
		return illegal()
	}
	return Instr{Kind: Csr, Rd: rdv, Rs1: rs1Field, CsrAddr: addr, CsrOp: op}
}

func (d *Decoder) decAmo(ins uint32) Instr {
	if !d.ISA.A {
		return illegal()
	}
	rdv, rs1v, rs2v := rType(ins)
	if !checkGPR(rdv, d.maxGPR()) || !checkGPR(rs1v, d.maxGPR()) || !checkGPR(rs2v, d.maxGPR()) {
		return illegal()
	}
	var width MemWidth
	switch fn3(ins) {
	case 0b010:
		width = WidthW
	case 0b011:
		if d.ISA.XLEN < 64 {
			return illegal()
		}
		width = WidthD
	default:
		return illegal()
	}
	orderBits := selectBits(ins, 26, 25)
	var order MemOrder
	switch orderBits {
	case 0b00:
		order = Relaxed
	case 0b01:
		order = Release
	case 0b10:
		order = Acquire
	case 0b11:
		order = AcqRel
	}
	funct5 := selectBits(ins, 31, 27)
	switch funct5 {
	case 0b00010: // LR
		if rs2v != 0 {
			return illegal()
		}
		return Instr{Kind: LoadReserved, Rd: rdv, Rs1: rs1v, Order: order, Width: width}
	case 0b00011: // SC
		return Instr{Kind: StoreConditional, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Order: order, Width: width}
	case 0b00001:
		return Instr{Kind: Amo, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Order: order, Width: width, BinOp: Second}
	case 0b00000:
		return Instr{Kind: Amo, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Order: order, Width: width, BinOp: Add}
	case 0b00100:
		return Instr{Kind: Amo, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Order: order, Width: width, BinOp: Xor}
	case 0b01100:
		return Instr{Kind: Amo, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Order: order, Width: width, BinOp: And}
	case 0b01000:
		return Instr{Kind: Amo, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Order: order, Width: width, BinOp: Or}
	case 0b10000:
		return Instr{Kind: Amo, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Order: order, Width: width, BinOp: Min}
	case 0b10100:
		return Instr{Kind: Amo, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Order: order, Width: width, BinOp: Max}
	case 0b11000:
		return Instr{Kind: Amo, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Order: order, Width: width, BinOp: MinU}
	case 0b11100:
		return Instr{Kind: Amo, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Order: order, Width: width, BinOp: MaxU}
	default:
		return illegal()
	}
}
