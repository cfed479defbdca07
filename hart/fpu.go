package hart

import (
	"math"
	"math/big"

	"github.com/sarchlab/rvsim/decode"
)

// FpExcept accumulates the sticky IEEE-754 exception flags a floating-point
// operation may raise: invalid, divide-by-zero, overflow, underflow, and
// inexact. Go has no portable way to read a host FPU's status register (the
// arch-specific MXCSR/FPSCR read the original reaches for needs assembly),
// so flags here are set explicitly by each operation from its own result
// inspection rather than synced from hardware.
type FpExcept uint8

const (
	FpeNX FpExcept = 1 << iota
	FpeUF
	FpeOF
	FpeDZ
	FpeNV
)

// AsByte packs the flags into the 5-bit layout the fflags/fcsr CSRs use.
func (e FpExcept) AsByte() uint8 { return uint8(e) }

const (
	canonNanS uint32 = 0x7fc00000
	canonNanD uint64 = 0x7ff8000000000000
)

// Fpu is the floating-point register file and its control state: 32
// registers, each stored as a raw 64-bit pattern so a single-precision value
// can be NaN-boxed in the high word, plus the sticky exception flags and the
// dynamic/active rounding modes.
type Fpu struct {
	fprs  [32]uint64
	fpe   FpExcept
	dynRm decode.RoundMode
	rm    decode.RoundMode
}

// NewFpu builds an Fpu whose dynamic rounding mode starts as RNE, the frm
// reset value, with no per-operation mode staged yet.
func NewFpu() *Fpu {
	return &Fpu{dynRm: decode.Rne, rm: decode.RmNone}
}

func (f *Fpu) readS(reg uint8) float32 {
	v := f.fprs[reg]
	if uint32(v>>32) != 0xffffffff {
		return math.Float32frombits(canonNanS)
	}
	return math.Float32frombits(uint32(v))
}

func (f *Fpu) writeS(reg uint8, v float32) {
	f.fprs[reg] = uint64(math.Float32bits(v)) | 0xffffffff00000000
}

func (f *Fpu) readD(reg uint8) float64 {
	return math.Float64frombits(f.fprs[reg])
}

func (f *Fpu) writeD(reg uint8, v float64) { f.fprs[reg] = math.Float64bits(v) }

func isNanBits32(bits uint32) bool {
	return bits&0x7f800000 == 0x7f800000 && bits&0x007fffff != 0
}

func isSignalingBits32(bits uint32) bool {
	return isNanBits32(bits) && bits&0x00400000 == 0
}

func isNanBits64(bits uint64) bool {
	return bits&0x7ff0000000000000 == 0x7ff0000000000000 && bits&0x000fffffffffffff != 0
}

func isSignalingBits64(bits uint64) bool {
	return isNanBits64(bits) && bits&0x0008000000000000 == 0
}

func noNanBoxS(v float32) float32 {
	if isNanBits32(math.Float32bits(v)) {
		return math.Float32frombits(canonNanS)
	}
	return v
}

func noNanBoxD(v float64) float64 {
	if isNanBits64(math.Float64bits(v)) {
		return math.Float64frombits(canonNanD)
	}
	return v
}

// bigRoundingMode maps an active RISC-V rounding mode to the big.Rounding
// mode that reproduces it exactly (RNE/RTZ/RDN/RUP/RMM correspond one-to-one
// to ToNearestEven/ToZero/ToNegativeInf/ToPositiveInf/ToNearestAway); an
// unresolved mode (RmNone, or Dyn with no dynamic mode configured) falls
// back to round-to-nearest-even.
func bigRoundingMode(rm decode.RoundMode) big.RoundingMode {
	switch rm {
	case decode.Rtz:
		return big.ToZero
	case decode.Rdn:
		return big.ToNegativeInf
	case decode.Rup:
		return big.ToPositiveInf
	case decode.Rmm:
		return big.ToNearestAway
	default:
		return big.ToNearestEven
	}
}

const (
	precS = 24 // float32 significand width, including the implicit bit
	precD = 53 // float64 significand width, including the implicit bit
)

func hasSpecialS(vs ...float32) bool {
	for _, v := range vs {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return true
		}
	}
	return false
}

func hasSpecialD(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// bigBinOpS evaluates a (+|-|*|/) b at working precision and rounds once to
// float32 under rm, so the result honors whatever mode fsrm/frm last set
// instead of Go's operators, which always round to nearest-even.
func bigBinOpS(rm decode.RoundMode, op byte, a, b float32) float32 {
	x := new(big.Float).SetPrec(precS).SetFloat64(float64(a))
	y := new(big.Float).SetPrec(precS).SetFloat64(float64(b))
	z := new(big.Float).SetPrec(precS).SetMode(bigRoundingMode(rm))
	switch op {
	case '+':
		z.Add(x, y)
	case '-':
		z.Sub(x, y)
	case '*':
		z.Mul(x, y)
	case '/':
		z.Quo(x, y)
	}
	v, _ := z.Float32()
	return v
}

func bigBinOpD(rm decode.RoundMode, op byte, a, b float64) float64 {
	x := new(big.Float).SetPrec(precD).SetFloat64(a)
	y := new(big.Float).SetPrec(precD).SetFloat64(b)
	z := new(big.Float).SetPrec(precD).SetMode(bigRoundingMode(rm))
	switch op {
	case '+':
		z.Add(x, y)
	case '-':
		z.Sub(x, y)
	case '*':
		z.Mul(x, y)
	case '/':
		z.Quo(x, y)
	}
	v, _ := z.Float64()
	return v
}

// roundedBinS and roundedBinD are the rounding-mode-aware entry points
// binaryOpS/D actually call. Go's native operators already implement
// IEEE-754 Inf/NaN semantics exactly regardless of rounding mode (there is
// no rounding choice to make when the result is Inf or NaN), and big.Float
// cannot represent NaN at all (Quo panics with ErrNaN on 0/0), so any
// operand that is NaN or Inf, or any divide by zero, skips the big.Float
// path and falls back to the native operator.
func roundedBinS(rm decode.RoundMode, op byte, a, b float32) float32 {
	if hasSpecialS(a, b) || (op == '/' && b == 0) {
		switch op {
		case '+':
			return a + b
		case '-':
			return a - b
		case '*':
			return a * b
		default:
			return a / b
		}
	}
	return bigBinOpS(rm, op, a, b)
}

func roundedBinD(rm decode.RoundMode, op byte, a, b float64) float64 {
	if hasSpecialD(a, b) || (op == '/' && b == 0) {
		switch op {
		case '+':
			return a + b
		case '-':
			return a - b
		case '*':
			return a * b
		default:
			return a / b
		}
	}
	return bigBinOpD(rm, op, a, b)
}

// roundedFmaS and roundedFmaD compute a*b+c with a single final rounding,
// the defining property of a fused multiply-add: the product is carried at
// double working precision (exact, since multiplying two precS/precD-bit
// values needs at most twice that many bits) so only the add is rounded,
// under rm.
func roundedFmaS(rm decode.RoundMode, a, b, c float32) float32 {
	wide := uint(2*precS + 8)
	x := new(big.Float).SetPrec(wide).SetFloat64(float64(a))
	y := new(big.Float).SetPrec(wide).SetFloat64(float64(b))
	prod := new(big.Float).SetPrec(wide).Mul(x, y)
	cc := new(big.Float).SetPrec(wide).SetFloat64(float64(c))
	z := new(big.Float).SetPrec(precS).SetMode(bigRoundingMode(rm))
	z.Add(prod, cc)
	v, _ := z.Float32()
	return v
}

func roundedFmaD(rm decode.RoundMode, a, b, c float64) float64 {
	wide := uint(2*precD + 8)
	x := new(big.Float).SetPrec(wide).SetFloat64(a)
	y := new(big.Float).SetPrec(wide).SetFloat64(b)
	prod := new(big.Float).SetPrec(wide).Mul(x, y)
	cc := new(big.Float).SetPrec(wide).SetFloat64(c)
	z := new(big.Float).SetPrec(precD).SetMode(bigRoundingMode(rm))
	z.Add(prod, cc)
	v, _ := z.Float64()
	return v
}

// roundedSqrtS and roundedSqrtD mirror roundedBinS/D for FSQRT: zero, NaN,
// and Inf are exact or rounding-mode-independent and go through math.Sqrt
// directly (and -0, equal to 0 by ==, must keep its sign, which big.Float's
// Sqrt does not promise), everything else rounds once under rm.
func roundedSqrtS(rm decode.RoundMode, v float32) float32 {
	if v == 0 || hasSpecialS(v) {
		return float32(math.Sqrt(float64(v)))
	}
	x := new(big.Float).SetPrec(precS).SetFloat64(float64(v))
	z := new(big.Float).SetPrec(precS).SetMode(bigRoundingMode(rm))
	z.Sqrt(x)
	r, _ := z.Float32()
	return r
}

func roundedSqrtD(rm decode.RoundMode, v float64) float64 {
	if v == 0 || hasSpecialD(v) {
		return math.Sqrt(v)
	}
	x := new(big.Float).SetPrec(precD).SetFloat64(v)
	z := new(big.Float).SetPrec(precD).SetMode(bigRoundingMode(rm))
	z.Sqrt(x)
	r, _ := z.Float64()
	return r
}

// TernaryOp performs one of the FMA-family ops: FMADD computes rs1*rs2+rs3,
// FMSUB rs1*rs2-rs3, FNMSUB -(rs1*rs2)+rs3, FNMADD -(rs1*rs2)-rs3.
func (f *Fpu) TernaryOp(rd, rs1, rs2, rs3 uint8, pr decode.Precision, op decode.FpTernaryOp) {
	switch pr {
	case decode.PrecisionS:
		f.ternaryOpS(rd, rs1, rs2, rs3, op)
	case decode.PrecisionD:
		f.ternaryOpD(rd, rs1, rs2, rs3, op)
	}
}

func (f *Fpu) ternaryOpS(rd, rs1, rs2, rs3 uint8, op decode.FpTernaryOp) {
	a := f.readS(rs1)
	b := f.readS(rs2)
	c := f.readS(rs3)
	if op == decode.FNMSub || op == decode.FNMAdd {
		b = -b
	}
	if op == decode.FMSub || op == decode.FNMAdd {
		c = -c
	}
	var res float32
	if (a == 0 && math.IsInf(float64(b), 0)) || (math.IsInf(float64(a), 0) && b == 0) {
		if isNanBits32(math.Float32bits(c)) {
			f.fpe |= FpeNV
			res = math.Float32frombits(canonNanS)
			f.writeS(rd, res)
			return
		}
		f.fpe |= FpeNV
		res = math.Float32frombits(canonNanS)
	} else if hasSpecialS(a, b, c) {
		res = float32(math.FMA(float64(a), float64(b), float64(c)))
	} else {
		res = roundedFmaS(f.rm, a, b, c)
	}
	f.writeS(rd, noNanBoxS(res))
}

func (f *Fpu) ternaryOpD(rd, rs1, rs2, rs3 uint8, op decode.FpTernaryOp) {
	a := f.readD(rs1)
	b := f.readD(rs2)
	c := f.readD(rs3)
	if op == decode.FNMSub || op == decode.FNMAdd {
		b = -b
	}
	if op == decode.FMSub || op == decode.FNMAdd {
		c = -c
	}
	var res float64
	if (a == 0 && math.IsInf(b, 0)) || (math.IsInf(a, 0) && b == 0) {
		f.fpe |= FpeNV
		res = math.Float64frombits(canonNanD)
	} else if hasSpecialD(a, b, c) {
		res = math.FMA(a, b, c)
	} else {
		res = roundedFmaD(f.rm, a, b, c)
	}
	f.writeD(rd, noNanBoxD(res))
}

// BinaryOp performs an Add/Sub/Mul/Div/SgnJ*/Min/Max OP-FP instruction.
func (f *Fpu) BinaryOp(rd, rs1, rs2 uint8, pr decode.Precision, op decode.FpBinaryOp) {
	switch pr {
	case decode.PrecisionS:
		f.binaryOpS(rd, rs1, rs2, op)
	case decode.PrecisionD:
		f.binaryOpD(rd, rs1, rs2, op)
	}
}

func (f *Fpu) binaryOpS(rd, rs1, rs2 uint8, op decode.FpBinaryOp) {
	a := f.readS(rs1)
	b := f.readS(rs2)
	aBits := math.Float32bits(a)
	bBits := math.Float32bits(b)
	switch op {
	case decode.FAdd:
		f.writeS(rd, noNanBoxS(roundedBinS(f.rm, '+', a, b)))
	case decode.FSub:
		f.writeS(rd, noNanBoxS(roundedBinS(f.rm, '-', a, b)))
	case decode.FMul:
		f.writeS(rd, noNanBoxS(roundedBinS(f.rm, '*', a, b)))
	case decode.FDiv:
		if b == 0 && a != 0 && !isNanBits32(aBits) {
			f.fpe |= FpeDZ
		}
		f.writeS(rd, noNanBoxS(roundedBinS(f.rm, '/', a, b)))
	case decode.FSgnJ:
		f.writeS(rd, math.Float32frombits((aBits&^0x80000000)|(bBits&0x80000000)))
	case decode.FSgnJN:
		f.writeS(rd, math.Float32frombits((aBits&^0x80000000)|(^bBits&0x80000000)))
	case decode.FSgnJX:
		f.writeS(rd, math.Float32frombits(aBits^(bBits&0x80000000)))
	case decode.FMin:
		f.writeS(rd, f.minMaxS(aBits, bBits, true))
	case decode.FMax:
		f.writeS(rd, f.minMaxS(aBits, bBits, false))
	}
}

func (f *Fpu) minMaxS(aBits, bBits uint32, isMin bool) float32 {
	aNan, bNan := isNanBits32(aBits), isNanBits32(bBits)
	if isSignalingBits32(aBits) || isSignalingBits32(bBits) {
		f.fpe |= FpeNV
		return math.Float32frombits(canonNanS)
	}
	if aNan && bNan {
		return math.Float32frombits(canonNanS)
	}
	if aNan {
		return math.Float32frombits(bBits)
	}
	if bNan {
		return math.Float32frombits(aBits)
	}
	a := math.Float32frombits(aBits)
	b := math.Float32frombits(bBits)
	if a == 0 && b == 0 {
		aNeg := aBits>>31 != 0
		bNeg := bBits>>31 != 0
		if aNeg != bNeg {
			if isMin == aNeg {
				return a
			}
			return b
		}
		return a
	}
	if isMin {
		if a < b {
			return a
		}
		return b
	}
	if a > b {
		return a
	}
	return b
}

func (f *Fpu) binaryOpD(rd, rs1, rs2 uint8, op decode.FpBinaryOp) {
	a := f.readD(rs1)
	b := f.readD(rs2)
	aBits := math.Float64bits(a)
	bBits := math.Float64bits(b)
	switch op {
	case decode.FAdd:
		f.writeD(rd, noNanBoxD(roundedBinD(f.rm, '+', a, b)))
	case decode.FSub:
		f.writeD(rd, noNanBoxD(roundedBinD(f.rm, '-', a, b)))
	case decode.FMul:
		f.writeD(rd, noNanBoxD(roundedBinD(f.rm, '*', a, b)))
	case decode.FDiv:
		if b == 0 && a != 0 && !isNanBits64(aBits) {
			f.fpe |= FpeDZ
		}
		f.writeD(rd, noNanBoxD(roundedBinD(f.rm, '/', a, b)))
	case decode.FSgnJ:
		f.writeD(rd, math.Float64frombits((aBits&^(uint64(1)<<63))|(bBits&(uint64(1)<<63))))
	case decode.FSgnJN:
		f.writeD(rd, math.Float64frombits((aBits&^(uint64(1)<<63))|(^bBits&(uint64(1)<<63))))
	case decode.FSgnJX:
		f.writeD(rd, math.Float64frombits(aBits^(bBits&(uint64(1)<<63))))
	case decode.FMin:
		f.writeD(rd, f.minMaxD(aBits, bBits, true))
	case decode.FMax:
		f.writeD(rd, f.minMaxD(aBits, bBits, false))
	}
}

func (f *Fpu) minMaxD(aBits, bBits uint64, isMin bool) float64 {
	aNan, bNan := isNanBits64(aBits), isNanBits64(bBits)
	if isSignalingBits64(aBits) || isSignalingBits64(bBits) {
		f.fpe |= FpeNV
		return math.Float64frombits(canonNanD)
	}
	if aNan && bNan {
		return math.Float64frombits(canonNanD)
	}
	if aNan {
		return math.Float64frombits(bBits)
	}
	if bNan {
		return math.Float64frombits(aBits)
	}
	a := math.Float64frombits(aBits)
	b := math.Float64frombits(bBits)
	if a == 0 && b == 0 {
		aNeg := aBits>>63 != 0
		bNeg := bBits>>63 != 0
		if aNeg != bNeg {
			if isMin == aNeg {
				return a
			}
			return b
		}
		return a
	}
	if isMin {
		if a < b {
			return a
		}
		return b
	}
	if a > b {
		return a
	}
	return b
}

// UnaryOp performs FSQRT.
func (f *Fpu) UnaryOp(rd, rs1 uint8, pr decode.Precision, op decode.FpUnaryOp) {
	switch pr {
	case decode.PrecisionS:
		v := f.readS(rs1)
		var res float32
		switch op {
		case decode.FSqrt:
			if v < 0 && !isNanBits32(math.Float32bits(v)) {
				f.fpe |= FpeNV
				res = math.Float32frombits(canonNanS)
			} else {
				res = roundedSqrtS(f.rm, v)
			}
		}
		f.writeS(rd, noNanBoxS(res))
	case decode.PrecisionD:
		v := f.readD(rs1)
		var res float64
		switch op {
		case decode.FSqrt:
			if v < 0 && !isNanBits64(math.Float64bits(v)) {
				f.fpe |= FpeNV
				res = math.Float64frombits(canonNanD)
			} else {
				res = roundedSqrtD(f.rm, v)
			}
		}
		f.writeD(rd, noNanBoxD(res))
	}
}

// Cmp evaluates an FEQ/FLT/FLE compare, returning 1/0.
func (f *Fpu) Cmp(rs1, rs2 uint8, pr decode.Precision, op decode.FpCmpCond) uint32 {
	switch pr {
	case decode.PrecisionS:
		return f.cmpS(rs1, rs2, op)
	case decode.PrecisionD:
		return f.cmpD(rs1, rs2, op)
	}
	return 0
}

func (f *Fpu) cmpS(rs1, rs2 uint8, op decode.FpCmpCond) uint32 {
	a, b := f.readS(rs1), f.readS(rs2)
	aBits, bBits := math.Float32bits(a), math.Float32bits(b)
	aNan, bNan := isNanBits32(aBits), isNanBits32(bBits)
	if aNan || bNan {
		if isSignalingBits32(aBits) || isSignalingBits32(bBits) || op != decode.FEq {
			f.fpe |= FpeNV
		}
		return 0
	}
	switch op {
	case decode.FEq:
		return b2u32(a == b)
	case decode.FLt:
		return b2u32(a < b)
	case decode.FLe:
		return b2u32(a <= b)
	}
	return 0
}

func (f *Fpu) cmpD(rs1, rs2 uint8, op decode.FpCmpCond) uint32 {
	a, b := f.readD(rs1), f.readD(rs2)
	aBits, bBits := math.Float64bits(a), math.Float64bits(b)
	aNan, bNan := isNanBits64(aBits), isNanBits64(bBits)
	if aNan || bNan {
		if isSignalingBits64(aBits) || isSignalingBits64(bBits) || op != decode.FEq {
			f.fpe |= FpeNV
		}
		return 0
	}
	switch op {
	case decode.FEq:
		return b2u32(a == b)
	case decode.FLt:
		return b2u32(a < b)
	case decode.FLe:
		return b2u32(a <= b)
	}
	return 0
}

func b2u32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Class returns the one-hot classify mask for rs1.
func (f *Fpu) Class(rs1 uint8, pr decode.Precision) uint32 {
	switch pr {
	case decode.PrecisionS:
		return classifyS(math.Float32bits(f.readS(rs1)))
	case decode.PrecisionD:
		return classifyD(math.Float64bits(f.readD(rs1)))
	}
	return 0
}

func classifyS(bits uint32) uint32 {
	neg := bits>>31 != 0
	exp := (bits >> 23) & 0xff
	mant := bits & 0x7fffff
	switch {
	case exp == 0xff && mant == 0:
		if neg {
			return 1 << 0
		}
		return 1 << 7
	case exp == 0xff:
		if mant&0x400000 == 0 {
			return 1 << 8
		}
		return 1 << 9
	case exp == 0 && mant == 0:
		if neg {
			return 1 << 3
		}
		return 1 << 4
	case exp == 0:
		if neg {
			return 1 << 2
		}
		return 1 << 5
	default:
		if neg {
			return 1 << 1
		}
		return 1 << 6
	}
}

func classifyD(bits uint64) uint32 {
	neg := bits>>63 != 0
	exp := (bits >> 52) & 0x7ff
	mant := bits & 0xfffffffffffff
	switch {
	case exp == 0x7ff && mant == 0:
		if neg {
			return 1 << 0
		}
		return 1 << 7
	case exp == 0x7ff:
		if mant&0x0008000000000000 == 0 {
			return 1 << 8
		}
		return 1 << 9
	case exp == 0 && mant == 0:
		if neg {
			return 1 << 3
		}
		return 1 << 4
	case exp == 0:
		if neg {
			return 1 << 2
		}
		return 1 << 5
	default:
		if neg {
			return 1 << 1
		}
		return 1 << 6
	}
}

// roundToInt rounds v to the nearest representable integer per rm, ahead of
// the saturating cast FpCvtGp performs; rm==RmNone/Dyn falls back to
// round-to-nearest-even, matching the active mode set by set_rt_rm.
func roundToInt(v float64, rm decode.RoundMode) float64 {
	switch rm {
	case decode.Rtz:
		return math.Trunc(v)
	case decode.Rdn:
		return math.Floor(v)
	case decode.Rup:
		return math.Ceil(v)
	case decode.Rmm:
		return math.Round(v)
	default:
		return math.RoundToEven(v)
	}
}

// FpCvtGp converts or moves rs1's floating-point value into a 64-bit pattern
// already sign/zero extended the way the destination GPR expects, so the
// dispatch loop only needs to widen it into the XLEN-generic register type.
func (f *Fpu) FpCvtGp(rs1 uint8, pr decode.Precision, op decode.FpGpOp, rm decode.RoundMode) uint64 {
	switch op {
	case decode.FpToW:
		return uint64(int64(f.fpToI32(rs1, pr, rm)))
	case decode.FpToWU:
		return uint64(int64(int32(f.fpToU32(rs1, pr, rm))))
	case decode.FpToL:
		return uint64(f.fpToI64(rs1, pr, rm))
	case decode.FpToLU:
		return f.fpToU64(rs1, pr, rm)
	case decode.FpMv:
		switch pr {
		case decode.PrecisionS:
			return uint64(int64(int32(math.Float32bits(f.readS(rs1)))))
		case decode.PrecisionD:
			return f.fprs[rs1]
		}
	case decode.FpClass:
		return uint64(f.Class(rs1, pr))
	}
	return 0
}

func (f *Fpu) fpToI32(rs1 uint8, pr decode.Precision, rm decode.RoundMode) int32 {
	v := f.toFloat64(rs1, pr)
	if math.IsNaN(v) {
		f.fpe |= FpeNV
		return math.MaxInt32
	}
	r := roundToInt(v, rm)
	if r != v {
		f.fpe |= FpeNX
	}
	switch {
	case r >= math.MaxInt32:
		f.fpe |= FpeNV
		return math.MaxInt32
	case r <= math.MinInt32:
		f.fpe |= FpeNV
		return math.MinInt32
	default:
		return int32(r)
	}
}

func (f *Fpu) fpToU32(rs1 uint8, pr decode.Precision, rm decode.RoundMode) uint32 {
	v := f.toFloat64(rs1, pr)
	if math.IsNaN(v) {
		f.fpe |= FpeNV
		return math.MaxUint32
	}
	r := roundToInt(v, rm)
	if r != v {
		f.fpe |= FpeNX
	}
	switch {
	case r >= math.MaxUint32:
		f.fpe |= FpeNV
		return math.MaxUint32
	case r <= 0:
		if r < 0 {
			f.fpe |= FpeNV
		}
		return 0
	default:
		return uint32(r)
	}
}

func (f *Fpu) fpToI64(rs1 uint8, pr decode.Precision, rm decode.RoundMode) int64 {
	v := f.toFloat64(rs1, pr)
	if math.IsNaN(v) {
		f.fpe |= FpeNV
		return math.MaxInt64
	}
	r := roundToInt(v, rm)
	if r != v {
		f.fpe |= FpeNX
	}
	switch {
	case r >= math.MaxInt64:
		f.fpe |= FpeNV
		return math.MaxInt64
	case r <= math.MinInt64:
		f.fpe |= FpeNV
		return math.MinInt64
	default:
		return int64(r)
	}
}

func (f *Fpu) fpToU64(rs1 uint8, pr decode.Precision, rm decode.RoundMode) uint64 {
	v := f.toFloat64(rs1, pr)
	if math.IsNaN(v) {
		f.fpe |= FpeNV
		return math.MaxUint64
	}
	r := roundToInt(v, rm)
	if r != v {
		f.fpe |= FpeNX
	}
	switch {
	case r >= math.MaxUint64:
		f.fpe |= FpeNV
		return math.MaxUint64
	case r <= 0:
		if r < 0 {
			f.fpe |= FpeNV
		}
		return 0
	default:
		return uint64(r)
	}
}

func (f *Fpu) toFloat64(rs1 uint8, pr decode.Precision) float64 {
	switch pr {
	case decode.PrecisionS:
		return float64(f.readS(rs1))
	case decode.PrecisionD:
		return f.readD(rs1)
	}
	return 0
}

// GpCvtFp converts a raw XLEN register pattern into rd, per op's source
// width/signedness, or bit-moves it when op is GpMv.
func (f *Fpu) GpCvtFp(rd uint8, raw uint64, pr decode.Precision, op decode.GpFpOp) {
	switch op {
	case decode.GpToW:
		f.writeFp(rd, pr, float64(int32(uint32(raw))))
	case decode.GpToWU:
		f.writeFp(rd, pr, float64(uint32(raw)))
	case decode.GpToL:
		f.writeFp(rd, pr, float64(int64(raw)))
	case decode.GpToLU:
		f.writeFp(rd, pr, float64(raw))
	case decode.GpMv:
		switch pr {
		case decode.PrecisionS:
			f.writeS(rd, math.Float32frombits(uint32(raw)))
		case decode.PrecisionD:
			f.writeD(rd, math.Float64frombits(raw))
		}
	}
}

func (f *Fpu) writeFp(rd uint8, pr decode.Precision, v float64) {
	switch pr {
	case decode.PrecisionS:
		f.writeS(rd, float32(v))
	case decode.PrecisionD:
		f.writeD(rd, v)
	}
}

// FpCvtFp converts between S and D precision: widening is exact, narrowing
// rounds and may raise NV/OF/NX.
func (f *Fpu) FpCvtFp(rd, rs1 uint8, from, to decode.Precision) {
	switch {
	case from == decode.PrecisionS && to == decode.PrecisionD:
		f.writeD(rd, float64(f.readS(rs1)))
	case from == decode.PrecisionD && to == decode.PrecisionS:
		v := f.readD(rs1)
		if isSignalingBits64(math.Float64bits(v)) {
			f.fpe |= FpeNV
		}
		narrow := float32(v)
		if !math.IsNaN(v) && !math.IsInf(v, 0) && math.IsInf(float64(narrow), 0) {
			f.fpe |= FpeOF
		}
		if float64(narrow) != v {
			f.fpe |= FpeNX
		}
		f.writeS(rd, noNanBoxS(narrow))
	}
}

// SetDynRm records the current dynamic rounding mode (from an frrm/fsrm-style
// CSR write); SetRtRm stages the rounding mode an FP op should use, resolving
// Dyn against it and reporting an illegal-instruction condition if Dyn was
// requested with no dynamic mode configured.
func (f *Fpu) SetDynRm(rm decode.RoundMode) { f.dynRm = rm }

// SetRtRm resolves rm against the dynamic mode and records it as active,
// returning false if a Dyn-rounded op was attempted with no valid dynamic
// mode set (the hart should raise IllegalInstr in that case).
func (f *Fpu) SetRtRm(rm decode.RoundMode) (decode.RoundMode, bool) {
	switch rm {
	case decode.Dyn:
		if f.dynRm == decode.RmNone {
			return 0, false
		}
		f.rm = f.dynRm
		return f.dynRm, true
	case decode.RmNone:
		return decode.RmNone, true
	default:
		f.rm = rm
		return rm, true
	}
}

// Fpe returns the accumulated sticky exception flags.
func (f *Fpu) Fpe() FpExcept { return f.fpe }

// SetFpe ORs mask into the sticky flags, for an fsflags-style CSR write.
func (f *Fpu) SetFpe(mask FpExcept) { f.fpe |= mask }

// ClrFpe clears exactly the bits set in mask.
func (f *Fpu) ClrFpe(mask FpExcept) { f.fpe &^= mask }

// ClrAllFpe clears every sticky flag.
func (f *Fpu) ClrAllFpe() { f.fpe = 0 }
