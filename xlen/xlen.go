// Package xlen provides the width-generic integer abstraction the ALU and
// dispatch loop are built on. The same emulator logic runs at XLEN=32, 64,
// or 128 by operating against the Value interface rather than a concrete
// native integer type; Word32, Word64, and Word128 are the three concrete
// implementations.
package xlen

// Value is the set of operations the ALU and dispatch loop need from an
// XLEN-wide register value, independent of its concrete width. T is the
// concrete word type itself (Word32, Word64, or Word128), so methods both
// take and return T directly with no boxing.
type Value[T any] interface {
	Add(rhs T) T
	Sub(rhs T) T
	And(rhs T) T
	Or(rhs T) T
	Xor(rhs T) T

	// Sll/Srl/Sra shift by amount modulo XLEN: each implementation masks
	// amount to 0..XLEN-1 itself. W-suffixed callers reduce it to 0..31
	// before calling, since they operate on a truncated 32-bit value
	// represented in T.
	Sll(amount uint32) T
	Srl(amount uint32) T
	Sra(amount uint32) T

	// Scmp performs a signed three-way compare: -1, 0, or 1.
	Scmp(rhs T) int
	// Ucmp performs an unsigned three-way compare: -1, 0, or 1.
	Ucmp(rhs T) int

	// Sext32 sign-extends the low 32 bits across the full width.
	Sext32() T
	// Trunc32 zero-extends the low 32 bits across the full width.
	Trunc32() T
	// Sext64 sign-extends the low 64 bits across the full width (RV128 only;
	// identity at XLEN<=64).
	Sext64() T
	// Trunc64 zero-extends the low 64 bits across the full width (RV128
	// only; identity at XLEN<=64).
	Trunc64() T

	Mul(rhs T) T
	// Mulh/Mulhu/Mulhsu return the high XLEN bits of the 2*XLEN-bit product,
	// signed*signed, unsigned*unsigned, and signed(self)*unsigned(rhs)
	// respectively.
	Mulh(rhs T) T
	Mulhu(rhs T) T
	Mulhsu(rhs T) T

	// Div/Rem are signed; divide-by-zero yields an all-ones quotient and
	// the dividend as remainder, and MIN/-1 wraps to MIN with remainder 0.
	Div(rhs T) T
	Rem(rhs T) T
	// Divu/Remu are unsigned with the same zero rule.
	Divu(rhs T) T
	Remu(rhs T) T

	// SignBlast returns all-1s if the value is negative, else all-0s.
	SignBlast() T

	IsZero() bool
	// Uint64 returns the low 64 bits, for interop with addresses, CSR
	// values, and memory widths narrower than XLEN.
	Uint64() uint64

	// FromI32 builds a value from a sign-extended 32-bit immediate. It is a
	// method rather than a free function so generic code can call it on a
	// zero value of T without a separate type-level constructor.
	FromI32(imm int32) T
	// FromUint64 builds a value from a raw 64-bit pattern, truncating for
	// XLEN=32 and zero-extending for XLEN=128.
	FromUint64(v uint64) T
}

// Min returns the smaller of a, b per Scmp (signed order).
func Min[T Value[T]](a, b T) T {
	if a.Scmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the larger of a, b per Scmp (signed order).
func Max[T Value[T]](a, b T) T {
	if a.Scmp(b) >= 0 {
		return a
	}
	return b
}

// MinU returns the smaller of a, b per Ucmp (unsigned order).
func MinU[T Value[T]](a, b T) T {
	if a.Ucmp(b) <= 0 {
		return a
	}
	return b
}

// MaxU returns the larger of a, b per Ucmp (unsigned order).
func MaxU[T Value[T]](a, b T) T {
	if a.Ucmp(b) >= 0 {
		return a
	}
	return b
}
