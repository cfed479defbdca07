package xlen

import (
	"math/big"
	"math/bits"
)

// Word128 is the XLEN=128 (RV128) concrete register value, represented as
// two 64-bit limbs since Go has no native 128-bit integer type.
type Word128 struct {
	Lo uint64
	Hi uint64
}

func (w Word128) Add(rhs Word128) Word128 {
	lo, carry := bits.Add64(w.Lo, rhs.Lo, 0)
	hi, _ := bits.Add64(w.Hi, rhs.Hi, carry)
	return Word128{Lo: lo, Hi: hi}
}

func (w Word128) Sub(rhs Word128) Word128 {
	lo, borrow := bits.Sub64(w.Lo, rhs.Lo, 0)
	hi, _ := bits.Sub64(w.Hi, rhs.Hi, borrow)
	return Word128{Lo: lo, Hi: hi}
}

func (w Word128) And(rhs Word128) Word128 {
	return Word128{Lo: w.Lo & rhs.Lo, Hi: w.Hi & rhs.Hi}
}
func (w Word128) Or(rhs Word128) Word128 {
	return Word128{Lo: w.Lo | rhs.Lo, Hi: w.Hi | rhs.Hi}
}
func (w Word128) Xor(rhs Word128) Word128 {
	return Word128{Lo: w.Lo ^ rhs.Lo, Hi: w.Hi ^ rhs.Hi}
}

func (w Word128) Sll(amount uint32) Word128 {
	amount &= 127
	switch {
	case amount == 0:
		return w
	case amount < 64:
		hi := (w.Hi << amount) | (w.Lo >> (64 - amount))
		return Word128{Lo: w.Lo << amount, Hi: hi}
	default:
		return Word128{Lo: 0, Hi: w.Lo << (amount - 64)}
	}
}

func (w Word128) Srl(amount uint32) Word128 {
	amount &= 127
	switch {
	case amount == 0:
		return w
	case amount < 64:
		lo := (w.Lo >> amount) | (w.Hi << (64 - amount))
		return Word128{Lo: lo, Hi: w.Hi >> amount}
	default:
		return Word128{Lo: w.Hi >> (amount - 64), Hi: 0}
	}
}

func (w Word128) Sra(amount uint32) Word128 {
	amount &= 127
	signHi := uint64(0)
	if int64(w.Hi) < 0 {
		signHi = ^uint64(0)
	}
	switch {
	case amount == 0:
		return w
	case amount < 64:
		lo := (w.Lo >> amount) | (w.Hi << (64 - amount))
		hi := uint64(int64(w.Hi) >> amount)
		return Word128{Lo: lo, Hi: hi}
	default:
		return Word128{Lo: uint64(int64(w.Hi) >> (amount - 64)), Hi: signHi}
	}
}

func (w Word128) Scmp(rhs Word128) int {
	ah, bh := int64(w.Hi), int64(rhs.Hi)
	switch {
	case ah < bh:
		return -1
	case ah > bh:
		return 1
	}
	switch {
	case w.Lo < rhs.Lo:
		return -1
	case w.Lo > rhs.Lo:
		return 1
	default:
		return 0
	}
}

func (w Word128) Ucmp(rhs Word128) int {
	switch {
	case w.Hi < rhs.Hi:
		return -1
	case w.Hi > rhs.Hi:
		return 1
	}
	switch {
	case w.Lo < rhs.Lo:
		return -1
	case w.Lo > rhs.Lo:
		return 1
	default:
		return 0
	}
}

func (w Word128) Sext32() Word128 {
	sign := uint64(0)
	if int32(uint32(w.Lo)) < 0 {
		sign = ^uint64(0)
	}
	return Word128{Lo: uint64(int64(int32(uint32(w.Lo)))), Hi: sign}
}

func (w Word128) Trunc32() Word128 {
	return Word128{Lo: uint64(uint32(w.Lo)), Hi: 0}
}

func (w Word128) Sext64() Word128 {
	sign := uint64(0)
	if int64(w.Lo) < 0 {
		sign = ^uint64(0)
	}
	return Word128{Lo: w.Lo, Hi: sign}
}

func (w Word128) Trunc64() Word128 {
	return Word128{Lo: w.Lo, Hi: 0}
}

func (w Word128) Mul(rhs Word128) Word128 {
	hiLo, lo := bits.Mul64(w.Lo, rhs.Lo)
	hi := hiLo + w.Lo*rhs.Hi + w.Hi*rhs.Lo
	return Word128{Lo: lo, Hi: hi}
}

// u256Mul computes the full 256-bit unsigned product of two 128-bit values
// (each given as low/high 64-bit limbs) via the schoolbook four-limb
// decomposition: partial products al*bl, ah*bl, al*bh, ah*bh combined with
// carry propagation, mirroring xlen.rs's u256_mul. It returns the four
// 64-bit limbs of the result, least-significant first.
func u256Mul(alo, ahi, blo, bhi uint64) (r0, r1, r2, r3 uint64) {
	albl1, albl0 := bits.Mul64(alo, blo)
	ahbl1, ahbl0 := bits.Mul64(ahi, blo)
	albh1, albh0 := bits.Mul64(alo, bhi)
	ahbh1, ahbh0 := bits.Mul64(ahi, bhi)

	r0 = albl0

	mid, c1 := bits.Add64(albl1, ahbl0, 0)
	mid, c2 := bits.Add64(mid, albh0, 0)
	r1 = mid

	hi, c3 := bits.Add64(ahbl1, albh1, 0)
	hi, c4 := bits.Add64(hi, ahbh0, 0)
	hi, c5 := bits.Add64(hi, 0, c1+c2)
	r2 = hi

	r3 = ahbh1 + c3 + c4 + c5
	return
}

func (w Word128) Mulhu(rhs Word128) Word128 {
	_, _, r2, r3 := u256Mul(w.Lo, w.Hi, rhs.Lo, rhs.Hi)
	return Word128{Lo: r2, Hi: r3}
}

// signBlast128 returns the two limbs of SignBlast without going through the
// Value interface; SignBlast below is its only caller.
func signBlast128(w Word128) Word128 { return w.Sra(127) }

func (w Word128) Mulh(rhs Word128) Word128 {
	// Take the high 128 bits of the unsigned 256-bit product, then subtract
	// rhs if w is negative and w if rhs is negative; this equals the high
	// half of the signed product of the two sign-extended operands.
	_, _, r2, r3 := u256Mul(w.Lo, w.Hi, rhs.Lo, rhs.Hi)
	result := Word128{Lo: r2, Hi: r3}
	if int64(w.Hi) < 0 {
		result = result.Sub(rhs)
	}
	if int64(rhs.Hi) < 0 {
		result = result.Sub(w)
	}
	return result
}

func (w Word128) Mulhsu(rhs Word128) Word128 {
	_, _, r2, r3 := u256Mul(w.Lo, w.Hi, rhs.Lo, rhs.Hi)
	result := Word128{Lo: r2, Hi: r3}
	if int64(w.Hi) < 0 {
		result = result.Sub(rhs)
	}
	return result
}

func (w Word128) toBig(signed bool) *big.Int {
	buf := make([]byte, 16)
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(w.Hi >> (8 * i))
		buf[15-i] = byte(w.Lo >> (8 * i))
	}
	v := new(big.Int).SetBytes(buf)
	if signed && int64(w.Hi) < 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return v
}

func word128FromBig(v *big.Int) Word128 {
	mod := new(big.Int).Lsh(big.NewInt(1), 128)
	u := new(big.Int).Mod(v, mod)
	buf := make([]byte, 16)
	u.FillBytes(buf)
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(buf[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(buf[i])
	}
	return Word128{Lo: lo, Hi: hi}
}

func (w Word128) Div(rhs Word128) Word128 {
	if rhs.IsZero() {
		return Word128{Lo: ^uint64(0), Hi: ^uint64(0)}
	}
	a, b := w.toBig(true), rhs.toBig(true)
	min := new(big.Int).Lsh(big.NewInt(1), 127)
	min.Neg(min)
	if a.Cmp(min) == 0 && b.Cmp(big.NewInt(-1)) == 0 {
		return w
	}
	q := new(big.Int).Quo(a, b)
	return word128FromBig(q)
}

func (w Word128) Rem(rhs Word128) Word128 {
	if rhs.IsZero() {
		return w
	}
	a, b := w.toBig(true), rhs.toBig(true)
	min := new(big.Int).Lsh(big.NewInt(1), 127)
	min.Neg(min)
	if a.Cmp(min) == 0 && b.Cmp(big.NewInt(-1)) == 0 {
		return Word128{}
	}
	r := new(big.Int).Rem(a, b)
	return word128FromBig(r)
}

func (w Word128) Divu(rhs Word128) Word128 {
	if rhs.IsZero() {
		return Word128{Lo: ^uint64(0), Hi: ^uint64(0)}
	}
	a, b := w.toBig(false), rhs.toBig(false)
	return word128FromBig(new(big.Int).Quo(a, b))
}

func (w Word128) Remu(rhs Word128) Word128 {
	if rhs.IsZero() {
		return w
	}
	a, b := w.toBig(false), rhs.toBig(false)
	return word128FromBig(new(big.Int).Rem(a, b))
}

func (w Word128) SignBlast() Word128 { return signBlast128(w) }

func (w Word128) IsZero() bool { return w.Lo == 0 && w.Hi == 0 }

func (w Word128) Uint64() uint64 { return w.Lo }

func (w Word128) FromI32(imm int32) Word128 {
	sign := uint64(0)
	if imm < 0 {
		sign = ^uint64(0)
	}
	return Word128{Lo: uint64(int64(imm)), Hi: sign}
}

func (w Word128) FromUint64(v uint64) Word128 {
	return Word128{Lo: v, Hi: 0}
}
