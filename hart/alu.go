package hart

import (
	"github.com/sarchlab/rvsim/decode"
	"github.com/sarchlab/rvsim/xlen"
)

// execW32 narrows lhs/rhs to their low 32 bits, runs f using the exact
// 32-bit Word32 semantics (so the div/rem zero- and overflow-special-cases
// apply at the right width), and widens the result back to W by sign
// extension, as RV64's *W instructions require.
func execW32[W xlen.Value[W]](lhs, rhs W, f func(a, b xlen.Word32) xlen.Word32) W {
	a := xlen.Word32(uint32(lhs.Uint64()))
	b := xlen.Word32(uint32(rhs.Uint64()))
	r := f(a, b)
	var zero W
	return zero.FromUint64(uint64(uint32(r))).Sext32()
}

// Exec performs one decode.BinaryOp over two register values and returns
// the result, mirroring xlen.rs's BinaryOp::exec.
func Exec[W xlen.Value[W]](op decode.BinaryOp, lhs, rhs W) W {
	var zero W
	switch op {
	case decode.Add:
		return lhs.Add(rhs)
	case decode.Sll:
		return lhs.Sll(uint32(rhs.Uint64()))
	case decode.Slt:
		if lhs.Scmp(rhs) < 0 {
			return zero.FromUint64(1)
		}
		return zero
	case decode.SltU:
		if lhs.Ucmp(rhs) < 0 {
			return zero.FromUint64(1)
		}
		return zero
	case decode.Xor:
		return lhs.Xor(rhs)
	case decode.Srl:
		return lhs.Srl(uint32(rhs.Uint64()))
	case decode.Or:
		return lhs.Or(rhs)
	case decode.And:
		return lhs.And(rhs)
	case decode.Sub:
		return lhs.Sub(rhs)
	case decode.Sra:
		return lhs.Sra(uint32(rhs.Uint64()))

	case decode.AddW:
		return lhs.Add(rhs).Sext32()
	case decode.SllW:
		return lhs.Sll(uint32(rhs.Uint64()) % 32).Sext32()
	case decode.SrlW:
		return lhs.Trunc32().Srl(uint32(rhs.Uint64()) % 32).Sext32()
	case decode.SubW:
		return lhs.Sub(rhs).Sext32()
	case decode.SraW:
		return lhs.Sext32().Sra(uint32(rhs.Uint64()) % 32).Sext32()

	case decode.Mul:
		return lhs.Mul(rhs)
	case decode.Mulh:
		return lhs.Mulh(rhs)
	case decode.MulhU:
		return lhs.Mulhu(rhs)
	case decode.MulhSU:
		return lhs.Mulhsu(rhs)
	case decode.Div:
		return lhs.Div(rhs)
	case decode.DivU:
		return lhs.Divu(rhs)
	case decode.Rem:
		return lhs.Rem(rhs)
	case decode.RemU:
		return lhs.Remu(rhs)

	case decode.MulW:
		return lhs.Trunc32().Mul(rhs.Trunc32()).Sext32()
	case decode.DivW:
		return execW32(lhs, rhs, xlen.Word32.Div)
	case decode.DivUW:
		return execW32(lhs, rhs, xlen.Word32.Divu)
	case decode.RemW:
		return execW32(lhs, rhs, xlen.Word32.Rem)
	case decode.RemUW:
		return execW32(lhs, rhs, xlen.Word32.Remu)

	case decode.Second:
		return rhs
	case decode.Max:
		return xlen.Max(lhs, rhs)
	case decode.MaxU:
		return xlen.MaxU(lhs, rhs)
	case decode.Min:
		return xlen.Min(lhs, rhs)
	case decode.MinU:
		return xlen.MinU(lhs, rhs)
	default:
		return zero
	}
}

// TestCond evaluates a decode.CmpCond branch condition.
func TestCond[W xlen.Value[W]](cond decode.CmpCond, lhs, rhs W) bool {
	switch cond {
	case decode.Eq:
		return lhs.Ucmp(rhs) == 0
	case decode.Ne:
		return lhs.Ucmp(rhs) != 0
	case decode.Lt:
		return lhs.Scmp(rhs) < 0
	case decode.Ge:
		return lhs.Scmp(rhs) >= 0
	case decode.LtU:
		return lhs.Ucmp(rhs) < 0
	case decode.GeU:
		return lhs.Ucmp(rhs) >= 0
	default:
		return false
	}
}
