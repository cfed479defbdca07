package xlen

import "math/bits"

// Word64 is the XLEN=64 (RV64) concrete register value.
type Word64 uint64

func (w Word64) Add(rhs Word64) Word64 { return w + rhs }
func (w Word64) Sub(rhs Word64) Word64 { return w - rhs }
func (w Word64) And(rhs Word64) Word64 { return w & rhs }
func (w Word64) Or(rhs Word64) Word64  { return w | rhs }
func (w Word64) Xor(rhs Word64) Word64 { return w ^ rhs }

func (w Word64) Sll(amount uint32) Word64 { return w << (amount & 63) }
func (w Word64) Srl(amount uint32) Word64 { return w >> (amount & 63) }
func (w Word64) Sra(amount uint32) Word64 {
	return Word64(int64(w) >> (amount & 63))
}

func (w Word64) Scmp(rhs Word64) int {
	a, b := int64(w), int64(rhs)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (w Word64) Ucmp(rhs Word64) int {
	switch {
	case w < rhs:
		return -1
	case w > rhs:
		return 1
	default:
		return 0
	}
}

func (w Word64) Sext32() Word64 { return Word64(int64(int32(uint32(w)))) }
func (w Word64) Trunc32() Word64 { return Word64(uint32(w)) }
func (w Word64) Sext64() Word64  { return w }
func (w Word64) Trunc64() Word64 { return w }

func (w Word64) Mul(rhs Word64) Word64 { return w * rhs }

// u128MulH64 returns the high 64 bits of an unsigned 128-bit product of two
// 64-bit values via math/bits.Mul64, mirroring xlen.rs's u128_mul_h64.
func u128MulH64(lhs, rhs uint64) uint64 {
	hi, _ := bits.Mul64(lhs, rhs)
	return hi
}

func (w Word64) Mulhu(rhs Word64) Word64 {
	return Word64(u128MulH64(uint64(w), uint64(rhs)))
}

func (w Word64) Mulh(rhs Word64) Word64 {
	a, b := int64(w), int64(rhs)
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	// Correct the unsigned high-product for each negative operand: if a<0,
	// subtract b from the high word; if b<0, subtract a. Standard signed
	// 64x64->128 correction for a two's-complement multiply built on an
	// unsigned primitive.
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	_ = lo
	return Word64(hi)
}

func (w Word64) Mulhsu(rhs Word64) Word64 {
	a := int64(w)
	hi, _ := bits.Mul64(uint64(a), uint64(rhs))
	if a < 0 {
		hi -= uint64(rhs)
	}
	return Word64(hi)
}

func (w Word64) Div(rhs Word64) Word64 {
	if rhs == 0 {
		return ^Word64(0)
	}
	a, b := int64(w), int64(rhs)
	if a == -1<<63 && b == -1 {
		return w
	}
	return Word64(a / b)
}

func (w Word64) Rem(rhs Word64) Word64 {
	if rhs == 0 {
		return w
	}
	a, b := int64(w), int64(rhs)
	if a == -1<<63 && b == -1 {
		return 0
	}
	return Word64(a % b)
}

func (w Word64) Divu(rhs Word64) Word64 {
	if rhs == 0 {
		return ^Word64(0)
	}
	return w / rhs
}

func (w Word64) Remu(rhs Word64) Word64 {
	if rhs == 0 {
		return w
	}
	return w % rhs
}

func (w Word64) SignBlast() Word64 { return w.Sra(63) }

func (w Word64) IsZero() bool { return w == 0 }

func (w Word64) Uint64() uint64 { return uint64(w) }

func (w Word64) FromI32(imm int32) Word64 { return Word64(int64(imm)) }

func (w Word64) FromUint64(v uint64) Word64 { return Word64(v) }
