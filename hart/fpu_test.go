package hart

import (
	"math"
	"testing"

	"github.com/sarchlab/rvsim/decode"
)

// TestNanBoxRoundTrip checks the NaN-boxing invariant readS/writeS/writeD
// enforce: a single-precision value written through writeS round-trips
// exactly through readS, but reading a genuine double through readS (whose
// upper 32 bits are not the all-ones box marker) yields the canonical
// single-precision NaN rather than truncating garbage.
func TestNanBoxRoundTrip(t *testing.T) {
	f := NewFpu()

	f.writeS(1, 1.5)
	if got := f.readS(1); got != 1.5 {
		t.Errorf("readS after writeS(1.5) = %v, want 1.5", got)
	}

	f.writeD(2, 1.5)
	got := f.readS(2)
	if !math.IsNaN(float64(got)) || math.Float32bits(got) != canonNanS {
		t.Errorf("readS of an unboxed double = %#x, want canonical NaN %#x", math.Float32bits(got), canonNanS)
	}
}

// TestNanBoxNarrowThenWideRead checks that reading a narrow (single
// precision) write at double width reinterprets the boxed raw bits, which
// always lands on some NaN pattern since the upper word is the all-ones box
// marker (an exponent field of all ones in double precision).
func TestNanBoxNarrowThenWideRead(t *testing.T) {
	f := NewFpu()
	f.writeS(3, 1.0)
	got := f.readD(3)
	if !math.IsNaN(got) {
		t.Errorf("readD of a NaN-boxed single = %v, want NaN", got)
	}
}

// TestSetRtRmDynamicUnset checks that requesting dynamic rounding before any
// frrm/fsrm-style write has established a dynamic mode is reported as
// unresolved, which the dispatch loop turns into an illegal-instruction
// trap.
func TestSetRtRmDynamicUnset(t *testing.T) {
	f := &Fpu{dynRm: decode.RmNone}
	if _, ok := f.SetRtRm(decode.Dyn); ok {
		t.Error("SetRtRm(Dyn) with no dynamic mode set should report ok=false")
	}
}

// TestSetRtRmDynamicResolves checks that once a dynamic mode is recorded,
// a Dyn-rounded op resolves to it and stays in effect as the active mode.
func TestSetRtRmDynamicResolves(t *testing.T) {
	f := &Fpu{dynRm: decode.RmNone}
	f.SetDynRm(decode.Rtz)

	resolved, ok := f.SetRtRm(decode.Dyn)
	if !ok {
		t.Fatal("SetRtRm(Dyn) after SetDynRm(Rtz) should resolve, got ok=false")
	}
	if resolved != decode.Rtz {
		t.Errorf("resolved rounding mode = %v, want Rtz", resolved)
	}
	if f.rm != decode.Rtz {
		t.Errorf("active rounding mode = %v, want Rtz", f.rm)
	}
}

// TestSetRtRmDefaultDynamicIsRne checks the reset state NewFpu establishes:
// a hart that never wrote frm still resolves Dyn to round-to-nearest-even,
// matching the architectural reset value of the frm CSR.
func TestSetRtRmDefaultDynamicIsRne(t *testing.T) {
	f := NewFpu()
	resolved, ok := f.SetRtRm(decode.Dyn)
	if !ok {
		t.Fatal("fresh Fpu should resolve Dyn to the reset dynamic mode")
	}
	if resolved != decode.Rne {
		t.Errorf("resolved rounding mode = %v, want Rne", resolved)
	}
}

// TestFAddHonorsRoundingMode adds 1.0 to 2^-24, exactly halfway between 1.0
// and its float32 successor: the active rounding mode is the only thing
// that decides which way a tie like this falls, so if FADD always rounded
// to nearest-even regardless of f.rm (as Go's native + does), every mode
// below would return the same bits.
func TestFAddHonorsRoundingMode(t *testing.T) {
	const half32 = float32(1.0 / (1 << 24))
	below := float32(1.0)
	above := math.Float32frombits(math.Float32bits(1.0) + 1)

	cases := []struct {
		rm   decode.RoundMode
		want float32
	}{
		{decode.Rne, below}, // tie, last mantissa bit of 1.0 is even
		{decode.Rtz, below}, // toward zero
		{decode.Rdn, below}, // toward -Inf
		{decode.Rup, above}, // toward +Inf
		{decode.Rmm, above}, // ties away from zero
	}
	for _, c := range cases {
		f := NewFpu()
		f.rm = c.rm
		f.writeS(1, 1.0)
		f.writeS(2, half32)
		f.BinaryOp(3, 1, 2, decode.PrecisionS, decode.FAdd)
		if got := f.readS(3); got != c.want {
			t.Errorf("FADD(1.0, 2^-24) under %v = %v, want %v", c.rm, got, c.want)
		}
	}
}

// TestFDivHonorsRoundingMode divides 1 by 3 in double precision, whose exact
// quotient is not representable in float64 and so must round somewhere;
// RDN and RUP bracket the true value on opposite sides, proving the result
// actually depends on f.rm rather than always landing on the nearest-even
// choice.
func TestFDivHonorsRoundingMode(t *testing.T) {
	fDown := NewFpu()
	fDown.rm = decode.Rdn
	fDown.writeD(1, 1.0)
	fDown.writeD(2, 3.0)
	fDown.BinaryOp(3, 1, 2, decode.PrecisionD, decode.FDiv)
	down := fDown.readD(3)

	fUp := NewFpu()
	fUp.rm = decode.Rup
	fUp.writeD(1, 1.0)
	fUp.writeD(2, 3.0)
	fUp.BinaryOp(3, 1, 2, decode.PrecisionD, decode.FDiv)
	up := fUp.readD(3)

	if down >= up {
		t.Fatalf("RDN result %v should be strictly less than RUP result %v", down, up)
	}
	if down > 1.0/3.0 {
		t.Errorf("RDN(1/3) = %v, should not exceed the true quotient", down)
	}
	if up < 1.0/3.0 {
		t.Errorf("RUP(1/3) = %v, should not be less than the true quotient", up)
	}
}
