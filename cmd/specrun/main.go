// Package main provides specrun, a smoke-test harness that exercises the
// decode round-trip table and the Fibonacci end-to-end scenario against a
// built hart, the spiritual descendant of the teacher's spec-check tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/rvsim/decode"
	"github.com/sarchlab/rvsim/hart"
	"github.com/sarchlab/rvsim/isa"
	"github.com/sarchlab/rvsim/xlen"
)

// decodeCase is one row of the round-trip table: a raw encoding decoded
// under a given ISA configuration, checked against the Kind and fields the
// reference assembler's encoding is expected to produce.
type decodeCase struct {
	name string
	isa  isa.Flags
	word uint32
	want decode.Instr
}

func main() {
	cases := []decodeCase{
		{
			name: "jalr ret",
			isa:  isa.Default(),
			word: 0x00008067,
			want: decode.Instr{Kind: decode.Jalr, Rd: 0, Rs1: 1, Imm: 0},
		},
		{
			name: "ebreak",
			isa:  isa.Default(),
			word: 0x00100073,
			want: decode.Instr{Kind: decode.Trap, Exc: decode.ExcEbreak},
		},
		{
			name: "rv32 fence.i enabled",
			isa:  isa.Flags{XLEN: 32, Zifencei: true},
			word: 0x0000100f,
			want: decode.Instr{Kind: decode.MiscMemFenceI},
		},
		{
			name: "rv32 fence.i disabled",
			isa:  isa.Flags{XLEN: 32},
			word: 0x0000100f,
			want: decode.Instr{Kind: decode.Trap, Exc: decode.ExcIllegalInstr},
		},
		{
			name: "fence rw,rw tso",
			isa:  isa.Default(),
			word: 0x8330000f,
			want: decode.Instr{Kind: decode.MiscMemFence, FenceMode: decode.FenceTSO, Pred: 3, Succ: 3},
		},
	}

	// The first case to return an error cancels ctx, which the remaining
	// in-flight cases observe and bail out of rather than running the
	// whole table to completion regardless of earlier failures.
	g, ctx := errgroup.WithContext(context.Background())
	failures := make([]string, len(cases))
	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			d := decode.NewDecoder(c.isa)
			lo := uint16(c.word)
			hi := uint16(c.word >> 16)
			got, _ := d.Decode(lo, hi)
			if !decodeMatches(got, c.want) {
				msg := fmt.Sprintf("%s: got %+v, want %+v", c.name, got, c.want)
				failures[i] = msg
				return errors.New(msg)
			}
			return nil
		})
	}
	_ = g.Wait()

	ok := true
	for _, f := range failures {
		if f != "" {
			fmt.Fprintln(os.Stderr, "FAIL:", f)
			ok = false
		}
	}
	if ok {
		fmt.Printf("decode round-trip: %d/%d passed\n", len(cases), len(cases))
	}

	if err := runFibonacci(); err != nil {
		fmt.Fprintln(os.Stderr, "FAIL: fibonacci scenario:", err)
		ok = false
	} else {
		fmt.Println("fibonacci scenario: passed")
	}

	if !ok {
		os.Exit(1)
	}
}

// decodeMatches compares the fields the round-trip table actually
// constrains for each case; zero-valued fields the table leaves
// unspecified are not checked, since most Kinds only populate a handful of
// the Instr struct's fields.
func decodeMatches(got, want decode.Instr) bool {
	if got.Kind != want.Kind {
		return false
	}
	switch want.Kind {
	case decode.Jalr:
		return got.Rd == want.Rd && got.Rs1 == want.Rs1 && got.Imm == want.Imm
	case decode.Trap, decode.CTrap:
		return got.Exc == want.Exc
	case decode.MiscMemFence:
		return got.FenceMode == want.FenceMode && got.Pred == want.Pred && got.Succ == want.Succ
	default:
		return true
	}
}

// fibProgram is a small RV32I iterative Fibonacci: fib(0)=fib(1)=1,
// fib(n)=fib(n-1)+fib(n-2), matching the one-indexed convention where
// fib(20) is the 21st term of the standard 0-indexed sequence, 10946. It
// halts via ebreak with the result in x10.
var fibProgram = []byte{
	0x93, 0x02, 0x40, 0x01, // addi x5, x0, 20
	0x13, 0x03, 0x10, 0x00, // addi x6, x0, 1
	0x93, 0x03, 0x10, 0x00, // addi x7, x0, 1
	0x13, 0x0e, 0x00, 0x00, // addi x28, x0, 0
	0x63, 0x0c, 0x5e, 0x00, // beq x28, x5, +24
	0xb3, 0x0e, 0x73, 0x00, // add x29, x6, x7
	0x13, 0x83, 0x03, 0x00, // addi x6, x7, 0
	0x93, 0x83, 0x0e, 0x00, // addi x7, x29, 0
	0x13, 0x0e, 0x1e, 0x00, // addi x28, x28, 1
	0x6f, 0xf0, 0xdf, 0xfe, // jal x0, -20
	0x13, 0x05, 0x03, 0x00, // addi x10, x6, 0
	0x73, 0x00, 0x10, 0x00, // ebreak
}

func runFibonacci() error {
	mem := hart.NewFlatMemory(0x4000 + 0x1000)
	copy(mem.Bytes, fibProgram)

	priv := hart.NewNullPrivilege()
	h := hart.New[xlen.Word32](
		isa.Flags{XLEN: 32, M: true, Zicsr: true, Zifencei: true},
		mem, priv,
		hart.WithEntryPoint[xlen.Word32](0),
	)
	h.Regs().Write(2, xlen.Word32(0x4000)) // sp

	if err := h.Run(); err != nil {
		return err
	}
	got := h.Regs().Read(10).Uint64()
	if got != 10946 {
		return fmt.Errorf("x10 = %d, want 10946", got)
	}
	return nil
}
