package xlen

// Word32 is the XLEN=32 (RV32) concrete register value.
type Word32 uint32

// Add wraps on overflow, matching RISC-V's defined two's-complement
// arithmetic.
func (w Word32) Add(rhs Word32) Word32 { return w + rhs }

// Sub wraps on underflow.
func (w Word32) Sub(rhs Word32) Word32 { return w - rhs }

func (w Word32) And(rhs Word32) Word32 { return w & rhs }
func (w Word32) Or(rhs Word32) Word32  { return w | rhs }
func (w Word32) Xor(rhs Word32) Word32 { return w ^ rhs }

func (w Word32) Sll(amount uint32) Word32 { return w << (amount & 31) }
func (w Word32) Srl(amount uint32) Word32 { return w >> (amount & 31) }
func (w Word32) Sra(amount uint32) Word32 {
	return Word32(int32(w) >> (amount & 31))
}

func (w Word32) Scmp(rhs Word32) int {
	a, b := int32(w), int32(rhs)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (w Word32) Ucmp(rhs Word32) int {
	switch {
	case w < rhs:
		return -1
	case w > rhs:
		return 1
	default:
		return 0
	}
}

// Sext32 is the identity at XLEN=32: the whole register already is the low
// 32 bits.
func (w Word32) Sext32() Word32 { return w }

// Trunc32 is likewise the identity at XLEN=32.
func (w Word32) Trunc32() Word32 { return w }

// Sext64/Trunc64 only matter for XLEN>=64; at XLEN=32 they are identities.
func (w Word32) Sext64() Word32  { return w }
func (w Word32) Trunc64() Word32 { return w }

func (w Word32) Mul(rhs Word32) Word32 { return w * rhs }

// u64MulH32 returns the high 32 bits of an unsigned 64-bit product of two
// 32-bit values, mirroring xlen.rs's u64_mul_h32 helper.
func u64MulH32(lhs, rhs uint32) uint32 {
	return uint32((uint64(lhs) * uint64(rhs)) >> 32)
}

func (w Word32) Mulhu(rhs Word32) Word32 {
	return Word32(u64MulH32(uint32(w), uint32(rhs)))
}

func (w Word32) Mulh(rhs Word32) Word32 {
	lhs64 := uint64(int64(int32(w)))
	rhs64 := uint64(int64(int32(rhs)))
	return Word32(uint32((lhs64 * rhs64) >> 32))
}

func (w Word32) Mulhsu(rhs Word32) Word32 {
	lhs64 := uint64(int64(int32(w)))
	rhs64 := uint64(rhs)
	return Word32(uint32((lhs64 * rhs64) >> 32))
}

func (w Word32) Div(rhs Word32) Word32 {
	if rhs == 0 {
		return ^Word32(0)
	}
	a, b := int32(w), int32(rhs)
	if a == -1<<31 && b == -1 {
		return w // MIN / -1 wraps to MIN
	}
	return Word32(a / b)
}

func (w Word32) Rem(rhs Word32) Word32 {
	if rhs == 0 {
		return w
	}
	a, b := int32(w), int32(rhs)
	if a == -1<<31 && b == -1 {
		return 0
	}
	return Word32(a % b)
}

func (w Word32) Divu(rhs Word32) Word32 {
	if rhs == 0 {
		return ^Word32(0)
	}
	return w / rhs
}

func (w Word32) Remu(rhs Word32) Word32 {
	if rhs == 0 {
		return w
	}
	return w % rhs
}

func (w Word32) SignBlast() Word32 { return w.Sra(31) }

func (w Word32) IsZero() bool { return w == 0 }

func (w Word32) Uint64() uint64 { return uint64(w) }

func (w Word32) FromI32(imm int32) Word32 { return Word32(uint32(imm)) }

func (w Word32) FromUint64(v uint64) Word32 { return Word32(uint32(v)) }
