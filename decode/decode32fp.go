package decode

// decLsPrecision decodes the 3-bit load/store-fp width field (funct3 of
// LOAD-FP/STORE-FP) into a Precision, gating D on the D extension.
func (d *Decoder) decLsPrecision(fmt uint8) (Precision, bool) {
	switch fmt {
	case 0b010:
		return PrecisionS, true
	case 0b011:
		if !d.ISA.D {
			return 0, false
		}
		return PrecisionD, true
	default:
		return 0, false
	}
}

// decFpPrecision decodes the 2-bit OP-FP/FMADD-family fmt field into a
// Precision.
func (d *Decoder) decFpPrecision(fmt uint8) (Precision, bool) {
	switch fmt {
	case 0b00:
		return PrecisionS, true
	case 0b01:
		if !d.ISA.D {
			return 0, false
		}
		return PrecisionD, true
	default:
		return 0, false
	}
}

func (d *Decoder) decLoadFp(ins uint32) Instr {
	if !d.ISA.F {
		return illegal()
	}
	rdv, rs1v := rd(ins), rs1(ins)
	if !checkGPR(rs1v, d.maxGPR()) {
		return illegal()
	}
	pr, ok := d.decLsPrecision(fn3(ins))
	if !ok {
		return illegal()
	}
	return Instr{Kind: LoadFp, Rd: rdv, Rs1: rs1v, Imm: iImm(ins), Precision: pr}
}

func (d *Decoder) decStoreFp(ins uint32) Instr {
	if !d.ISA.F {
		return illegal()
	}
	rs1v, rs2v := rs1(ins), rs2(ins)
	if !checkGPR(rs1v, d.maxGPR()) {
		return illegal()
	}
	pr, ok := d.decLsPrecision(fn3(ins))
	if !ok {
		return illegal()
	}
	return Instr{Kind: StoreFp, Rs1: rs1v, Rs2: rs2v, Imm: sImm(ins), Precision: pr}
}

func (d *Decoder) decFpOp3(ins uint32, group uint32) Instr {
	if !d.ISA.F {
		return illegal()
	}
	var ternOp FpTernaryOp
	switch group {
	case opGroupMadd:
		ternOp = FMAdd
	case opGroupMsub:
		ternOp = FMSub
	case opGroupNmsub:
		ternOp = FNMSub
	default:
		ternOp = FNMAdd
	}
	rdv, rs1v, rs2v, rs3v := r4Type(ins)
	rm, ok := roundMode(fn3(ins))
	if !ok {
		return illegal()
	}
	pr, ok := d.decFpPrecision(fn2(ins))
	if !ok {
		return illegal()
	}
	return Instr{Kind: FpOp3, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Rs3: rs3v, RoundMode: rm, Precision: pr, FpTernOp: ternOp}
}

func (d *Decoder) decFpOp2(ins uint32, pr Precision, op FpBinaryOp) Instr {
	rdv, rs1v, rs2v := rType(ins)
	rm, ok := roundMode(fn3(ins))
	if !ok {
		return illegal()
	}
	return Instr{Kind: FpOp2, Rd: rdv, Rs1: rs1v, Rs2: rs2v, RoundMode: rm, Precision: pr, FpBinOp: op}
}

func (d *Decoder) decFpSgnj(ins uint32, pr Precision) Instr {
	rdv, rs1v, rs2v := rType(ins)
	var op FpBinaryOp
	switch fn3(ins) {
	case 0b000:
		op = FSgnJ
	case 0b001:
		op = FSgnJN
	case 0b010:
		op = FSgnJX
	default:
		return illegal()
	}
	return Instr{Kind: FpOp2, Rd: rdv, Rs1: rs1v, Rs2: rs2v, RoundMode: RmNone, Precision: pr, FpBinOp: op}
}

func (d *Decoder) decFpMinMax(ins uint32, pr Precision) Instr {
	rdv, rs1v, rs2v := rType(ins)
	var op FpBinaryOp
	switch fn3(ins) {
	case 0b000:
		op = FMin
	case 0b001:
		op = FMax
	default:
		return illegal()
	}
	return Instr{Kind: FpOp2, Rd: rdv, Rs1: rs1v, Rs2: rs2v, RoundMode: RmNone, Precision: pr, FpBinOp: op}
}

func (d *Decoder) decFpCvtFp(ins uint32, pr Precision) Instr {
	rdv, rs1v, rs2v := rType(ins)
	rm, ok := roundMode(fn3(ins))
	if !ok {
		return illegal()
	}
	fromPr, ok := d.decFpPrecision(rs2v)
	if !ok {
		return illegal()
	}
	return Instr{Kind: FpCvtFp, Rd: rdv, Rs1: rs1v, RoundMode: rm, FromPrec: fromPr, Precision: pr}
}

func (d *Decoder) decFpOp1(ins uint32, pr Precision, op FpUnaryOp) Instr {
	rdv, rs1v, rs2v := rType(ins)
	rm, ok := roundMode(fn3(ins))
	if !ok {
		return illegal()
	}
	if rs2v != 0 {
		return illegal()
	}
	return Instr{Kind: FpOp1, Rd: rdv, Rs1: rs1v, RoundMode: rm, Precision: pr, FpUnOp: op}
}

func (d *Decoder) decFpCmp(ins uint32, pr Precision) Instr {
	rdv, rs1v, rs2v := rType(ins)
	var cond FpCmpCond
	switch fn3(ins) {
	case 0b000:
		cond = FLe
	case 0b001:
		cond = FLt
	case 0b010:
		cond = FEq
	default:
		return illegal()
	}
	if !checkGPR(rdv, d.maxGPR()) {
		return illegal()
	}
	return Instr{Kind: FpCmp, Rd: rdv, Rs1: rs1v, Rs2: rs2v, Precision: pr, FpCmpCond: cond}
}

func (d *Decoder) decFpCvtGp(ins uint32, pr Precision) Instr {
	rdv, rs1v, rs2v := rType(ins)
	if !checkGPR(rdv, d.maxGPR()) {
		return illegal()
	}
	rm, ok := roundMode(fn3(ins))
	if !ok {
		return illegal()
	}
	var op FpGpOp
	switch rs2v {
	case 0b00:
		op = FpToW
	case 0b01:
		op = FpToWU
	case 0b10:
		if d.ISA.XLEN < 64 {
			return illegal()
		}
		op = FpToL
	case 0b11:
		if d.ISA.XLEN < 64 {
			return illegal()
		}
		op = FpToLU
	default:
		return illegal()
	}
	return Instr{Kind: FpCvtGp, Rd: rdv, Rs1: rs1v, RoundMode: rm, Precision: pr, FpGpOp: op}
}

func (d *Decoder) decGpCvtFp(ins uint32, pr Precision) Instr {
	rdv, rs1v, rs2v := rType(ins)
	if !checkGPR(rs1v, d.maxGPR()) {
		return illegal()
	}
	rm, ok := roundMode(fn3(ins))
	if !ok {
		return illegal()
	}
	var op GpFpOp
	switch rs2v {
	case 0b00:
		op = GpToW
	case 0b01:
		op = GpToWU
	case 0b10:
		if d.ISA.XLEN < 64 {
			return illegal()
		}
		op = GpToL
	case 0b11:
		if d.ISA.XLEN < 64 {
			return illegal()
		}
		op = GpToLU
	default:
		return illegal()
	}
	return Instr{Kind: GpCvtFp, Rd: rdv, Rs1: rs1v, RoundMode: rm, Precision: pr, GpFpOp: op}
}

func (d *Decoder) checkFpMv(pr Precision) bool {
	if pr == PrecisionD {
		return d.ISA.XLEN >= 64
	}
	return true
}

func (d *Decoder) decFpMvGp(ins uint32, pr Precision) Instr {
	rdv, rs1v, rs2v := rType(ins)
	if !checkGPR(rdv, d.maxGPR()) {
		return illegal()
	}
	if rs2v != 0 {
		return illegal()
	}
	var op FpGpOp
	switch fn3(ins) {
	case 0b0:
		if !d.checkFpMv(pr) {
			return illegal()
		}
		op = FpMv
	case 0b1:
		op = FpClass
	default:
		return illegal()
	}
	return Instr{Kind: FpCvtGp, Rd: rdv, Rs1: rs1v, RoundMode: RmNone, Precision: pr, FpGpOp: op}
}

func (d *Decoder) decGpMvFp(ins uint32, pr Precision) Instr {
	rdv, rs1v, rs2v := rType(ins)
	if !checkGPR(rs1v, d.maxGPR()) {
		return illegal()
	}
	if fn3(ins) != 0 || rs2v != 0 {
		return illegal()
	}
	if !d.checkFpMv(pr) {
		return illegal()
	}
	return Instr{Kind: GpCvtFp, Rd: rdv, Rs1: rs1v, RoundMode: RmNone, Precision: pr, GpFpOp: GpMv}
}

func (d *Decoder) decOpFp(ins uint32) Instr {
	if !d.ISA.F {
		return illegal()
	}
	pr, ok := d.decFpPrecision(fn2(ins))
	if !ok {
		return illegal()
	}
	switch rs3(ins) {
	case 0b00000:
		return d.decFpOp2(ins, pr, FAdd)
	case 0b00001:
		return d.decFpOp2(ins, pr, FSub)
	case 0b00010:
		return d.decFpOp2(ins, pr, FMul)
	case 0b00011:
		return d.decFpOp2(ins, pr, FDiv)
	case 0b00100:
		return d.decFpSgnj(ins, pr)
	case 0b00101:
		return d.decFpMinMax(ins, pr)
	case 0b01000:
		if !d.ISA.D {
			return illegal()
		}
		return d.decFpCvtFp(ins, pr)
	case 0b01011:
		return d.decFpOp1(ins, pr, FSqrt)
	case 0b10100:
		return d.decFpCmp(ins, pr)
	case 0b11000:
		return d.decFpCvtGp(ins, pr)
	case 0b11010:
		return d.decGpCvtFp(ins, pr)
	case 0b11100:
		return d.decFpMvGp(ins, pr)
	case 0b11110:
		return d.decGpMvFp(ins, pr)
	default:
		return illegal()
	}
}
