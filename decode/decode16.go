package decode

// Compressed-instruction register field helpers. rhigh/rlow read the full
// 5-bit register fields used by quadrants C1/C2; crhigh/crlow read the
// 3-bit fields that implicitly bias into the x8-x15 window used by the
// "popular registers" forms in quadrant C0 and parts of C1.
func rhigh16(ins uint16) uint8  { return uint8(selectBits16(ins, 11, 7)) }
func rlow16(ins uint16) uint8   { return uint8(selectBits16(ins, 6, 2)) }
func crhigh16(ins uint16) uint8 { return uint8(selectBits16(ins, 9, 7)) + 8 }
func crlow16(ins uint16) uint8  { return uint8(selectBits16(ins, 4, 2)) + 8 }
func fn3_16(ins uint16) uint8   { return uint8(selectBits16(ins, 15, 13)) }

func cregs16(ins uint16) (rl, rh uint8) { return crlow16(ins), crhigh16(ins) }

func sext16(imm uint16, signBit uint8) int32 {
	return sext(uint32(imm), signBit)
}

func jImm16(ins uint16) int32 {
	imm := uint16(0)
	imm |= testBit16u(ins, 12) << 11
	imm |= testBit16u(ins, 11) << 4
	imm |= selectBits16(ins, 10, 9) << 8
	imm |= testBit16u(ins, 8) << 10
	imm |= testBit16u(ins, 7) << 6
	imm |= testBit16u(ins, 6) << 7
	imm |= selectBits16(ins, 5, 3) << 1
	imm |= testBit16u(ins, 2) << 5
	return sext16(imm, 11)
}

func testBit16u(ins uint16, bit uint8) uint16 {
	if testBit16(ins, bit) {
		return 1
	}
	return 0
}

// ls4bUimm decodes the 4-byte load/store scaled offset shared by C.LW/C.SW
// (and C.FLW/C.FSW on RV32).
func ls4bUimm(ins uint16) int32 {
	imm := selectBits16(ins, 5, 5) << 6
	imm |= selectBits16(ins, 12, 10) << 3
	imm |= selectBits16(ins, 6, 6) << 2
	return int32(imm)
}

// ls8bUimm decodes the 8-byte load/store scaled offset shared by C.LD/C.SD
// (and C.FLD/C.FSD).
func ls8bUimm(ins uint16) int32 {
	imm := selectBits16(ins, 6, 5) << 6
	imm |= selectBits16(ins, 12, 10) << 3
	return int32(imm)
}

func opImm6(ins uint16) int32 {
	imm := selectBits16(ins, 6, 2)
	imm |= selectBits16(ins, 12, 12) << 5
	return sext16(imm, 5)
}

func lsp4bUimm(ins uint16) int32 {
	imm := selectBits16(ins, 3, 2) << 6
	imm |= selectBits16(ins, 12, 12) << 5
	imm |= selectBits16(ins, 6, 4) << 2
	return int32(imm)
}

func lsp8bUimm(ins uint16) int32 {
	imm := selectBits16(ins, 4, 2) << 6
	imm |= selectBits16(ins, 12, 12) << 5
	imm |= selectBits16(ins, 6, 5) << 3
	return int32(imm)
}

func ssp4bUimm(ins uint16) int32 {
	imm := selectBits16(ins, 8, 7) << 6
	imm |= selectBits16(ins, 12, 9) << 2
	return int32(imm)
}

func ssp8bUimm(ins uint16) int32 {
	imm := selectBits16(ins, 9, 7) << 6
	imm |= selectBits16(ins, 12, 10) << 3
	return int32(imm)
}

func dec16Addi4spn(ins uint16) Instr {
	rd := crlow16(ins)
	imm := selectBits16(ins, 10, 7) << 6
	imm |= selectBits16(ins, 12, 11) << 4
	imm |= selectBits16(ins, 5, 5) << 3
	imm |= selectBits16(ins, 6, 6) << 2
	if imm == 0 {
		return illegal()
	}
	return Instr{Kind: COpImm, Rd: rd, Rs1: gpSP, Imm: int32(imm), BinOp: Add}
}

func dec16Lw(ins uint16) Instr {
	rd, r1 := cregs16(ins)
	return Instr{Kind: CLoad, Rd: rd, Rs1: r1, Imm: ls4bUimm(ins), Width: WidthW}
}

func dec16Sw(ins uint16) Instr {
	rs2, r1 := cregs16(ins)
	return Instr{Kind: CStore, Rs1: r1, Rs2: rs2, Imm: ls4bUimm(ins), Width: WidthW}
}

func dec16Addi(ins uint16) Instr {
	rdRs1 := rhigh16(ins)
	return Instr{Kind: COpImm, Rd: rdRs1, Rs1: rdRs1, Imm: opImm6(ins), BinOp: Add}
}

func dec16Li(ins uint16) Instr {
	return Instr{Kind: COpImm, Rd: rhigh16(ins), Rs1: gpZero, Imm: opImm6(ins), BinOp: Add}
}

func dec16Addi16spLui(ins uint16) Instr {
	rd := rhigh16(ins)
	if rd == 2 {
		imm := selectBits16(ins, 6, 6) << 4
		imm |= selectBits16(ins, 2, 2) << 5
		imm |= selectBits16(ins, 5, 5) << 6
		imm |= selectBits16(ins, 4, 3) << 7
		imm |= selectBits16(ins, 12, 12) << 9
		v := sext16(imm, 9)
		if v == 0 {
			return illegal()
		}
		return Instr{Kind: COpImm, Rd: gpSP, Rs1: gpSP, Imm: v, BinOp: Add}
	}
	imm := selectBits16(ins, 6, 2) << 12
	imm |= selectBits16(ins, 12, 12) << 17
	v := sext16(imm, 17)
	if v == 0 {
		return illegal()
	}
	return Instr{Kind: COpImm, Rd: rd, Rs1: gpZero, Imm: v, BinOp: Add}
}

func dec16Andi(ins uint16, rdRs1 uint8) Instr {
	return Instr{Kind: COpImm, Rd: rdRs1, Rs1: rdRs1, Imm: opImm6(ins), BinOp: And}
}

func dec16J(ins uint16) Instr {
	return Instr{Kind: CJal, Rd: gpZero, Imm: jImm16(ins)}
}

func dec16Branch(ins uint16, cond CmpCond) Instr {
	r1 := crhigh16(ins)
	imm := selectBits16(ins, 2, 2) << 5
	imm |= selectBits16(ins, 4, 3) << 1
	imm |= selectBits16(ins, 6, 5) << 6
	imm |= selectBits16(ins, 11, 10) << 3
	imm |= selectBits16(ins, 12, 12) << 8
	return Instr{Kind: CBranch, Rs1: r1, Imm: sext16(imm, 8), Cond: cond}
}

func dec16Lwsp(ins uint16) Instr {
	rd := rhigh16(ins)
	if rd == 0 {
		return illegal()
	}
	return Instr{Kind: CLoad, Rd: rd, Rs1: gpSP, Imm: lsp4bUimm(ins), Width: WidthW}
}

func dec16Misc(ins uint16) Instr {
	rs1 := rhigh16(ins)
	rs2 := rlow16(ins)
	bit12 := testBit16(ins, 12)
	switch {
	case !bit12 && rs1 == 0 && rs2 == 0:
		return illegal()
	case !bit12 && rs2 == 0:
		return Instr{Kind: CJalr, Rd: gpZero, Rs1: rs1}
	case !bit12:
		return Instr{Kind: COpImm, Rd: rs1, Rs1: rs2, Imm: 0, BinOp: Add}
	case bit12 && rs1 == 0 && rs2 == 0:
		return Instr{Kind: Trap, Exc: ExcEbreak}
	case bit12 && rs2 == 0:
		return Instr{Kind: CJalr, Rd: gpRA, Rs1: rs1}
	default:
		return Instr{Kind: COp, Rd: rs1, Rs1: rs1, Rs2: rs2, BinOp: Add}
	}
}

func dec16Swsp(ins uint16) Instr {
	return Instr{Kind: CStore, Rs1: gpSP, Rs2: rlow16(ins), Imm: ssp4bUimm(ins), Width: WidthW}
}

func (d *Decoder) dec16LqFld(ins uint16) Instr {
	rd, r1 := cregs16(ins)
	if d.ISA.XLEN >= 128 {
		return illegal()
	}
	if !d.ISA.D {
		return illegal()
	}
	return Instr{Kind: CLoadFp, Rd: rd, Rs1: r1, Imm: ls8bUimm(ins), Precision: PrecisionD}
}

func (d *Decoder) dec16LdFlw(ins uint16) Instr {
	rd, r1 := cregs16(ins)
	if d.ISA.XLEN >= 64 {
		return Instr{Kind: CLoad, Rd: rd, Rs1: r1, Imm: ls8bUimm(ins), Width: WidthD}
	}
	if !d.ISA.F {
		return illegal()
	}
	return Instr{Kind: CLoadFp, Rd: rd, Rs1: r1, Imm: ls4bUimm(ins), Precision: PrecisionS}
}

func (d *Decoder) dec16SqFsd(ins uint16) Instr {
	rs2, r1 := cregs16(ins)
	if d.ISA.XLEN >= 128 {
		return illegal()
	}
	if !d.ISA.D {
		return illegal()
	}
	return Instr{Kind: CStoreFp, Rs1: r1, Rs2: rs2, Imm: ls8bUimm(ins), Precision: PrecisionD}
}

func (d *Decoder) dec16SdFsw(ins uint16) Instr {
	rs2, r1 := cregs16(ins)
	if d.ISA.XLEN >= 64 {
		return Instr{Kind: CStore, Rs1: r1, Rs2: rs2, Imm: ls8bUimm(ins), Width: WidthD}
	}
	if !d.ISA.F {
		return illegal()
	}
	return Instr{Kind: CStoreFp, Rs1: r1, Rs2: rs2, Imm: ls4bUimm(ins), Precision: PrecisionS}
}

func (d *Decoder) dec16C0(ins uint16) Instr {
	switch fn3_16(ins) {
	case 0b000:
		return dec16Addi4spn(ins)
	case 0b001:
		return d.dec16LqFld(ins)
	case 0b010:
		return dec16Lw(ins)
	case 0b011:
		return d.dec16LdFlw(ins)
	case 0b101:
		return d.dec16SqFsd(ins)
	case 0b110:
		return dec16Sw(ins)
	case 0b111:
		return d.dec16SdFsw(ins)
	default:
		return illegal()
	}
}

func dec16JalAddiw(ins uint16, xlen int) Instr {
	if xlen >= 64 {
		rdRs1 := rhigh16(ins)
		if rdRs1 == 0 {
			return illegal()
		}
		return Instr{Kind: COpImm, Rd: rdRs1, Rs1: rdRs1, Imm: opImm6(ins), BinOp: AddW}
	}
	return Instr{Kind: CJal, Rd: gpRA, Imm: jImm16(ins)}
}

// dec16Shamt decodes the compressed 6-bit shift amount, rejecting a
// set-but-oversized amount on RV32.
func dec16Shamt(ins uint16, xlen int) (int32, bool) {
	imm := selectBits16(ins, 6, 2)
	imm |= selectBits16(ins, 12, 12) << 5
	v := int32(imm)
	if xlen >= 64 {
		return v, true
	}
	if v >= 32 {
		return 0, false
	}
	return v, true
}

func dec16Srli(ins uint16, rdRs1 uint8, xlen int) Instr {
	imm, ok := dec16Shamt(ins, xlen)
	if !ok {
		return illegal()
	}
	return Instr{Kind: COpImm, Rd: rdRs1, Rs1: rdRs1, Imm: imm, BinOp: Srl}
}

func dec16Srai(ins uint16, rdRs1 uint8, xlen int) Instr {
	imm, ok := dec16Shamt(ins, xlen)
	if !ok {
		return illegal()
	}
	return Instr{Kind: COpImm, Rd: rdRs1, Rs1: rdRs1, Imm: imm, BinOp: Sra}
}

func dec16Op(ins uint16, rdRs1 uint8, xlen int) Instr {
	rs2 := crlow16(ins)
	bit12 := testBit16(ins, 12)
	sel := selectBits16(ins, 6, 5)
	var op BinaryOp
	switch {
	case !bit12 && sel == 0b00:
		op = Sub
	case !bit12 && sel == 0b01:
		op = Xor
	case !bit12 && sel == 0b10:
		op = Or
	case !bit12 && sel == 0b11:
		op = And
	case bit12 && sel == 0b00:
		if xlen < 64 {
			return illegal()
		}
		op = SubW
	case bit12 && sel == 0b01:
		if xlen < 64 {
			return illegal()
		}
		op = AddW
	default:
		return illegal()
	}
	return Instr{Kind: COp, Rd: rdRs1, Rs1: rdRs1, Rs2: rs2, BinOp: op}
}

func dec16MiscAlu(ins uint16, xlen int) Instr {
	rdRs1 := crhigh16(ins)
	switch selectBits16(ins, 11, 10) {
	case 0b00:
		return dec16Srli(ins, rdRs1, xlen)
	case 0b01:
		return dec16Srai(ins, rdRs1, xlen)
	case 0b10:
		return dec16Andi(ins, rdRs1)
	default:
		return dec16Op(ins, rdRs1, xlen)
	}
}

func (d *Decoder) dec16C1(ins uint16) Instr {
	switch fn3_16(ins) {
	case 0b000:
		return dec16Addi(ins)
	case 0b001:
		return dec16JalAddiw(ins, d.ISA.XLEN)
	case 0b010:
		return dec16Li(ins)
	case 0b011:
		return dec16Addi16spLui(ins)
	case 0b100:
		return dec16MiscAlu(ins, d.ISA.XLEN)
	case 0b101:
		return dec16J(ins)
	case 0b110:
		return dec16Branch(ins, Eq)
	default:
		return dec16Branch(ins, Ne)
	}
}

func dec16Slli(ins uint16, xlen int) Instr {
	rdRs1 := rhigh16(ins)
	imm, ok := dec16Shamt(ins, xlen)
	if !ok {
		return illegal()
	}
	return Instr{Kind: COpImm, Rd: rdRs1, Rs1: rdRs1, Imm: imm, BinOp: Sll}
}

func (d *Decoder) dec16LqFldSp(ins uint16) Instr {
	rd := rhigh16(ins)
	if d.ISA.XLEN >= 128 {
		return illegal()
	}
	if !d.ISA.D {
		return illegal()
	}
	return Instr{Kind: CLoadFp, Rd: rd, Rs1: gpSP, Imm: lsp8bUimm(ins), Precision: PrecisionD}
}

func (d *Decoder) dec16LdFlwSp(ins uint16) Instr {
	rd := rhigh16(ins)
	if d.ISA.XLEN >= 64 {
		if rd == 0 {
			return illegal()
		}
		return Instr{Kind: CLoad, Rd: rd, Rs1: gpSP, Imm: lsp8bUimm(ins), Width: WidthD}
	}
	if !d.ISA.F {
		return illegal()
	}
	return Instr{Kind: CLoadFp, Rd: rd, Rs1: gpSP, Imm: lsp4bUimm(ins), Precision: PrecisionS}
}

func (d *Decoder) dec16SqFsdSp(ins uint16) Instr {
	rs2 := rlow16(ins)
	if d.ISA.XLEN >= 128 {
		return illegal()
	}
	if !d.ISA.D {
		return illegal()
	}
	return Instr{Kind: CStoreFp, Rs1: gpSP, Rs2: rs2, Imm: ssp8bUimm(ins), Precision: PrecisionD}
}

func (d *Decoder) dec16SdFswSp(ins uint16) Instr {
	rs2 := rlow16(ins)
	if d.ISA.XLEN >= 64 {
		return Instr{Kind: CStore, Rs1: gpSP, Rs2: rs2, Imm: ssp8bUimm(ins), Width: WidthD}
	}
	if !d.ISA.F {
		return illegal()
	}
	return Instr{Kind: CStoreFp, Rs1: gpSP, Rs2: rs2, Imm: ssp4bUimm(ins), Precision: PrecisionS}
}

func (d *Decoder) dec16C2(ins uint16) Instr {
	switch fn3_16(ins) {
	case 0b000:
		return dec16Slli(ins, d.ISA.XLEN)
	case 0b001:
		return d.dec16LqFldSp(ins)
	case 0b010:
		return dec16Lwsp(ins)
	case 0b011:
		return d.dec16LdFlwSp(ins)
	case 0b100:
		return dec16Misc(ins)
	case 0b101:
		return d.dec16SqFsdSp(ins)
	case 0b110:
		return dec16Swsp(ins)
	default:
		return d.dec16SdFswSp(ins)
	}
}

// Decode16 decodes a 16-bit compressed instruction word. Compressed
// encoding is only legal when the C extension is enabled; with it
// disabled, every halfword whose low bits mark it as compressed is a
// reserved (illegal) encoding rather than a real instruction.
func (d *Decoder) Decode16(ins uint16) Instr {
	if !d.ISA.C {
		return illegal()
	}
	switch selectBits16(ins, 1, 0) {
	case 0b00:
		return d.dec16C0(ins)
	case 0b01:
		return d.dec16C1(ins)
	case 0b10:
		return d.dec16C2(ins)
	default:
		return illegal()
	}
}
