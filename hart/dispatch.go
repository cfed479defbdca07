package hart

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sarchlab/rvsim/decode"
	"github.com/sarchlab/rvsim/isa"
	"github.com/sarchlab/rvsim/xlen"
)

// Outcome tags what a Step did to control flow. It stands in for the
// original's Result<(), ()> convention, where "error" really meant "PC was
// already redirected" rather than a genuine failure — a plain error return
// would conflate the two, so Step reports this instead and reserves error
// for real faults.
type Outcome uint8

const (
	// Sequential means PC advanced by the instruction's own size and
	// execution should continue normally.
	Sequential Outcome = iota
	// Redirected means the instruction itself set PC (branch taken, jal,
	// jalr) and execution should continue from the new address.
	Redirected
	// Trapped means Privilege.Raise ran and chose to continue (e.g. it
	// redirected to a trap handler); PC is whatever Raise left it at.
	Trapped
	// Halted means Privilege.Raise ran and chose to stop the hart.
	Halted
)

// StepResult reports the outcome of one Step call, mirroring the
// Exited/ExitCode/Err shape the ARM64 emulator's StepResult uses.
type StepResult struct {
	Outcome Outcome
	Err     error
}

// Option configures a Hart at construction time.
type Option[W xlen.Value[W]] func(*Hart[W])

// WithMaxInstructions caps the number of Step calls Run will perform; 0
// (the default) means no limit.
func WithMaxInstructions[W xlen.Value[W]](max uint64) Option[W] {
	return func(h *Hart[W]) { h.maxInstructions = max }
}

// WithEntryPoint sets the initial program counter.
func WithEntryPoint[W xlen.Value[W]](pc uint64) Option[W] {
	return func(h *Hart[W]) {
		var zero W
		h.regs.PC = zero.FromUint64(pc)
	}
}

// WithStdout sets the writer the ebreak halt message is printed to;
// os.Stdout is the default.
func WithStdout[W xlen.Value[W]](w io.Writer) Option[W] {
	return func(h *Hart[W]) { h.stdout = w }
}

// WithStderr sets the writer halt messages for every exception other than
// ebreak are printed to; os.Stderr is the default.
func WithStderr[W xlen.Value[W]](w io.Writer) Option[W] {
	return func(h *Hart[W]) { h.stderr = w }
}

// Hart assembles a register file, an FPU, a decoded-uop cache, and a
// decoder against a Memory and a Privilege collaborator, and drives the
// fetch-decode-execute loop over them at a single fixed XLEN.
type Hart[W xlen.Value[W]] struct {
	regs RegFile[W]
	fpu  *Fpu
	uops *UopCache
	dec  *decode.Decoder

	Mem  Memory
	Priv Privilege
	ISA  isa.Flags

	stdout io.Writer
	stderr io.Writer

	instructionCount uint64
	maxInstructions  uint64
}

// New builds a Hart against mem/priv, with PC and GPRs zeroed unless an
// option overrides them.
func New[W xlen.Value[W]](isaFlags isa.Flags, mem Memory, priv Privilege, opts ...Option[W]) *Hart[W] {
	h := &Hart[W]{
		fpu:    NewFpu(),
		uops:   NewUopCache(),
		dec:    &decode.Decoder{ISA: isaFlags},
		Mem:    mem,
		Priv:   priv,
		ISA:    isaFlags,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Regs returns the hart's register file.
func (h *Hart[W]) Regs() *RegFile[W] { return &h.regs }

// Fpu returns the hart's floating-point unit.
func (h *Hart[W]) Fpu() *Fpu { return h.fpu }

// InstructionCount returns the number of Step calls that completed.
func (h *Hart[W]) InstructionCount() uint64 { return h.instructionCount }

// Run steps the hart until Privilege halts it, a Step reports an error, or
// the instruction limit is reached.
func (h *Hart[W]) Run() error {
	for {
		if h.maxInstructions > 0 && h.instructionCount >= h.maxInstructions {
			return fmt.Errorf("hart: max instructions reached")
		}
		res := h.Step()
		if res.Err != nil {
			return res.Err
		}
		if res.Outcome == Halted {
			return nil
		}
	}
}

// Step fetches, decodes (through the uop cache), and executes one
// instruction.
func (h *Hart[W]) Step() StepResult {
	pc := h.regs.PC.Uint64()

	instr, size, hit := h.uops.Read(pc)
	if !hit {
		var err error
		instr, size, err = h.fetchDecode(pc)
		if err != nil {
			outcome, _ := h.raise(decode.ExcAccessFaultX)
			return StepResult{Outcome: outcome}
		}
		h.uops.Alloc(pc, instr, size)
	}

	h.instructionCount++
	outcome, err := h.execute(instr, size)
	return StepResult{Outcome: outcome, Err: err}
}

func (h *Hart[W]) fetchDecode(pc uint64) (decode.Instr, int, error) {
	if err := h.Mem.FetchCheck(pc); err != nil {
		return decode.Instr{}, 0, err
	}
	lo, err := h.Mem.Read16(pc)
	if err != nil {
		return decode.Instr{}, 0, err
	}
	if decode.IsCompressed(lo) {
		return h.dec.Decode16(lo), 2, nil
	}
	hi, err := h.Mem.Read16(pc + 2)
	if err != nil {
		return decode.Instr{}, 0, err
	}
	instr, size := h.dec.Decode(lo, hi)
	return instr, size, nil
}

func (h *Hart[W]) rdGpr(reg uint8) W { return h.regs.Read(reg) }
func (h *Hart[W]) wrGpr(reg uint8, val W) { h.regs.Write(reg, val) }

func (h *Hart[W]) advancePC(delta int32) Outcome {
	var zero W
	h.regs.PC = h.regs.PC.Add(zero.FromI32(delta))
	return Sequential
}

// jump moves PC by an arbitrary (non-instruction-size) offset, for a taken
// branch or jal: control flow left the linear pc+step stream even though
// the new address is still computed as an addition rather than an absolute
// write.
func (h *Hart[W]) jump(delta int32) Outcome {
	h.advancePC(delta)
	return Redirected
}

func (h *Hart[W]) setPC(addr W) Outcome {
	h.regs.PC = addr
	return Redirected
}

// raise hands a fault to the Privilege collaborator and reports whether the
// hart should keep running. A halt is printed to stderr so a caller running
// a program to completion can see why it stopped; ebreak halts are the
// common case and go to stdout instead, matching a debugger breakpoint hit
// rather than a fault.
func (h *Hart[W]) raise(exc decode.Exception) (Outcome, error) {
	halted := h.Priv.Raise(exc)
	if halted {
		if exc == decode.ExcEbreak {
			fmt.Fprintf(h.stdout, "hart: halted at pc=%#x (ebreak)\n", h.regs.PC.Uint64())
		} else {
			fmt.Fprintf(h.stderr, "hart: halted at pc=%#x (exception %d)\n", h.regs.PC.Uint64(), exc)
		}
		return Halted, nil
	}
	return Trapped, nil
}

// execute dispatches one decoded Instr, mirroring dispatch.rs's Instr::exec
// match. step is the encoding size in bytes (2 for C-forms, 4 otherwise),
// used for sequential PC advance and link-register values.
func (h *Hart[W]) execute(instr decode.Instr, step int) (Outcome, error) {
	switch instr.Kind {
	case decode.Undecoded:
		return h.raise(decode.ExcIllegalInstr)

	case decode.Trap, decode.CTrap:
		return h.raise(instr.Exc)

	case decode.Nop:
		return h.advancePC(int32(step)), nil

	case decode.OpImm, decode.COpImm:
		h.opImm(instr.Rd, instr.Rs1, instr.Imm, instr.BinOp)
		return h.advancePC(int32(step)), nil

	case decode.Op, decode.COp:
		h.op(instr.Rd, instr.Rs1, instr.Rs2, instr.BinOp)
		return h.advancePC(int32(step)), nil

	case decode.Auipc:
		var zero W
		h.wrGpr(instr.Rd, h.regs.PC.Add(zero.FromI32(instr.Imm)))
		return h.advancePC(int32(step)), nil

	case decode.Load, decode.CLoad:
		if err := h.load(instr.Rd, instr.Rs1, instr.Imm, instr.Width); err != nil {
			return h.raise(memFault(err, false))
		}
		return h.advancePC(int32(step)), nil

	case decode.Store, decode.CStore:
		if err := h.store(instr.Rs1, instr.Rs2, instr.Imm, instr.Width); err != nil {
			return h.raise(memFault(err, true))
		}
		return h.advancePC(int32(step)), nil

	case decode.MiscMemFence:
		h.Mem.Fence(instr.Pred, instr.Succ)
		if instr.FenceMode == decode.FenceTSO {
			h.Mem.FenceTSO()
		}
		return h.advancePC(int32(step)), nil

	case decode.MiscMemFenceI:
		h.Mem.FenceI()
		h.uops.Flush()
		return h.advancePC(int32(step)), nil

	case decode.Branch, decode.CBranch:
		lhs := h.rdGpr(instr.Rs1)
		rhs := h.rdGpr(instr.Rs2)
		if TestCond(instr.Cond, lhs, rhs) {
			return h.jump(instr.Imm), nil
		}
		return h.advancePC(int32(step)), nil

	case decode.Jal, decode.CJal:
		var zero W
		h.wrGpr(instr.Rd, h.regs.PC.Add(zero.FromI32(int32(step))))
		return h.jump(instr.Imm), nil

	case decode.Jalr, decode.CJalr:
		var zero W
		addr := h.rdGpr(instr.Rs1).Add(zero.FromI32(instr.Imm))
		h.wrGpr(instr.Rd, h.regs.PC.Add(zero.FromI32(int32(step))))
		return h.setPC(addr), nil

	case decode.Csr:
		return h.csr(instr), nil

	case decode.LoadReserved:
		return h.loadReserved(instr)
	case decode.StoreConditional:
		return h.storeConditional(instr)
	case decode.Amo:
		return h.amo(instr)

	case decode.LoadFp, decode.CLoadFp:
		if err := h.loadFp(instr.Rd, instr.Rs1, instr.Imm, instr.Precision); err != nil {
			return h.raise(memFault(err, false))
		}
		return h.advancePC(int32(step)), nil

	case decode.StoreFp, decode.CStoreFp:
		if err := h.storeFp(instr.Rs1, instr.Rs2, instr.Imm, instr.Precision); err != nil {
			return h.raise(memFault(err, true))
		}
		return h.advancePC(int32(step)), nil

	case decode.FpOp3:
		if ok := h.setRtRm(instr.RoundMode); !ok {
			return h.raise(decode.ExcIllegalInstr)
		}
		h.fpu.TernaryOp(instr.Rd, instr.Rs1, instr.Rs2, instr.Rs3, instr.Precision, instr.FpTernOp)
		return h.advancePC(int32(step)), nil

	case decode.FpOp2:
		if ok := h.setRtRm(instr.RoundMode); !ok {
			return h.raise(decode.ExcIllegalInstr)
		}
		h.fpu.BinaryOp(instr.Rd, instr.Rs1, instr.Rs2, instr.Precision, instr.FpBinOp)
		return h.advancePC(int32(step)), nil

	case decode.FpOp1:
		if ok := h.setRtRm(instr.RoundMode); !ok {
			return h.raise(decode.ExcIllegalInstr)
		}
		h.fpu.UnaryOp(instr.Rd, instr.Rs1, instr.Precision, instr.FpUnOp)
		return h.advancePC(int32(step)), nil

	case decode.FpCvtGp:
		rm, ok := h.fpu.SetRtRm(instr.RoundMode)
		if !ok {
			return h.raise(decode.ExcIllegalInstr)
		}
		bits := h.fpu.FpCvtGp(instr.Rs1, instr.Precision, instr.FpGpOp, rm)
		var zero W
		h.wrGpr(instr.Rd, zero.FromUint64(bits))
		return h.advancePC(int32(step)), nil

	case decode.GpCvtFp:
		if ok := h.setRtRm(instr.RoundMode); !ok {
			return h.raise(decode.ExcIllegalInstr)
		}
		h.fpu.GpCvtFp(instr.Rd, h.rdGpr(instr.Rs1).Uint64(), instr.Precision, instr.GpFpOp)
		return h.advancePC(int32(step)), nil

	case decode.FpCmp:
		val := h.fpu.Cmp(instr.Rs1, instr.Rs2, instr.Precision, instr.FpCmpCond)
		var zero W
		h.wrGpr(instr.Rd, zero.FromUint64(uint64(val)))
		return h.advancePC(int32(step)), nil

	case decode.FpCvtFp:
		if ok := h.setRtRm(instr.RoundMode); !ok {
			return h.raise(decode.ExcIllegalInstr)
		}
		h.fpu.FpCvtFp(instr.Rd, instr.Rs1, instr.FromPrec, instr.Precision)
		return h.advancePC(int32(step)), nil

	default:
		return h.raise(decode.ExcIllegalInstr)
	}
}

func (h *Hart[W]) setRtRm(rm decode.RoundMode) bool {
	_, ok := h.fpu.SetRtRm(rm)
	return ok
}

func (h *Hart[W]) opImm(rd, rs1 uint8, imm int32, op decode.BinaryOp) {
	var zero W
	h.wrGpr(rd, Exec(op, h.rdGpr(rs1), zero.FromI32(imm)))
}

func (h *Hart[W]) op(rd, rs1, rs2 uint8, op decode.BinaryOp) {
	h.wrGpr(rd, Exec(op, h.rdGpr(rs1), h.rdGpr(rs2)))
}

func (h *Hart[W]) effectiveAddr(rs1 uint8, offset int32) uint64 {
	var zero W
	return h.rdGpr(rs1).Add(zero.FromI32(offset)).Uint64()
}

func (h *Hart[W]) load(rd, rs1 uint8, offset int32, width decode.MemWidth) error {
	addr := h.effectiveAddr(rs1, offset)
	var zero W
	switch width {
	case decode.WidthB:
		v, err := h.Mem.Read8(addr)
		if err != nil {
			return err
		}
		h.wrGpr(rd, zero.FromI32(int32(int8(v))))
	case decode.WidthH:
		v, err := h.Mem.Read16(addr)
		if err != nil {
			return err
		}
		h.wrGpr(rd, zero.FromI32(int32(int16(v))))
	case decode.WidthW:
		v, err := h.Mem.Read32(addr)
		if err != nil {
			return err
		}
		h.wrGpr(rd, zero.FromI32(int32(v)))
	case decode.WidthD:
		v, err := h.Mem.Read64(addr)
		if err != nil {
			return err
		}
		h.wrGpr(rd, zero.FromUint64(v))
	case decode.WidthBU:
		v, err := h.Mem.Read8(addr)
		if err != nil {
			return err
		}
		h.wrGpr(rd, zero.FromUint64(uint64(v)))
	case decode.WidthHU:
		v, err := h.Mem.Read16(addr)
		if err != nil {
			return err
		}
		h.wrGpr(rd, zero.FromUint64(uint64(v)))
	case decode.WidthWU:
		v, err := h.Mem.Read32(addr)
		if err != nil {
			return err
		}
		h.wrGpr(rd, zero.FromUint64(uint64(v)))
	}
	return nil
}

func (h *Hart[W]) store(rs1, rs2 uint8, offset int32, width decode.MemWidth) error {
	addr := h.effectiveAddr(rs1, offset)
	data := h.rdGpr(rs2)
	switch width {
	case decode.WidthB:
		return h.Mem.Write8(addr, uint8(data.Uint64()))
	case decode.WidthH:
		return h.Mem.Write16(addr, uint16(data.Uint64()))
	case decode.WidthW:
		return h.Mem.Write32(addr, uint32(data.Uint64()))
	case decode.WidthD:
		return h.Mem.Write64(addr, data.Uint64())
	default:
		return fmt.Errorf("hart: bad store width %d", width)
	}
}

func (h *Hart[W]) loadFp(rd, rs1 uint8, offset int32, pr decode.Precision) error {
	addr := h.effectiveAddr(rs1, offset)
	switch pr {
	case decode.PrecisionS:
		v, err := h.Mem.Read32(addr)
		if err != nil {
			return err
		}
		h.fpu.writeS(rd, math.Float32frombits(v))
	case decode.PrecisionD:
		v, err := h.Mem.Read64(addr)
		if err != nil {
			return err
		}
		h.fpu.writeD(rd, math.Float64frombits(v))
	}
	return nil
}

func (h *Hart[W]) storeFp(rs1, rs2 uint8, offset int32, pr decode.Precision) error {
	addr := h.effectiveAddr(rs1, offset)
	switch pr {
	case decode.PrecisionS:
		return h.Mem.Write32(addr, math.Float32bits(h.fpu.readS(rs2)))
	case decode.PrecisionD:
		return h.Mem.Write64(addr, math.Float64bits(h.fpu.readD(rs2)))
	}
	return nil
}

func (h *Hart[W]) csr(instr decode.Instr) Outcome {
	var srcValue uint64
	switch instr.CsrOp {
	case decode.CsrRW, decode.CsrRS, decode.CsrRC:
		srcValue = h.rdGpr(instr.Rs1).Uint64()
	case decode.CsrRWI, decode.CsrRSI, decode.CsrRCI:
		srcValue = uint64(instr.Rs1)
	}

	var old uint64
	var err error
	switch instr.CsrOp {
	case decode.CsrRW, decode.CsrRWI:
		old, err = h.Priv.CsrWrite(instr.CsrAddr, srcValue, false)
	case decode.CsrRS, decode.CsrRSI:
		old, err = h.Priv.CsrSet(instr.CsrAddr, srcValue, srcValue == 0)
	case decode.CsrRC, decode.CsrRCI:
		old, err = h.Priv.CsrClear(instr.CsrAddr, srcValue, srcValue == 0)
	}
	if err != nil {
		outcome, _ := h.raise(decode.ExcIllegalInstr)
		return outcome
	}

	var zero W
	h.wrGpr(instr.Rd, zero.FromUint64(old))
	return h.advancePC(4)
}

func (h *Hart[W]) loadReserved(instr decode.Instr) (Outcome, error) {
	addr := h.rdGpr(instr.Rs1).Uint64()
	var zero W
	switch instr.Width {
	case decode.WidthW:
		v, err := h.Mem.LoadReserved32(addr, instr.Order)
		if err != nil {
			return h.raise(memFault(err, false))
		}
		h.wrGpr(instr.Rd, zero.FromI32(int32(v)))
	case decode.WidthD:
		v, err := h.Mem.LoadReserved64(addr, instr.Order)
		if err != nil {
			return h.raise(memFault(err, false))
		}
		h.wrGpr(instr.Rd, zero.FromUint64(v))
	default:
		return h.raise(decode.ExcIllegalInstr)
	}
	return h.advancePC(4), nil
}

func (h *Hart[W]) storeConditional(instr decode.Instr) (Outcome, error) {
	addr := h.rdGpr(instr.Rs1).Uint64()
	data := h.rdGpr(instr.Rs2).Uint64()
	var zero W
	var ok bool
	var err error
	switch instr.Width {
	case decode.WidthW:
		ok, err = h.Mem.StoreConditional32(addr, instr.Order, uint32(data))
	case decode.WidthD:
		ok, err = h.Mem.StoreConditional64(addr, instr.Order, data)
	default:
		return h.raise(decode.ExcIllegalInstr)
	}
	if err != nil {
		return h.raise(memFault(err, true))
	}
	if ok {
		h.wrGpr(instr.Rd, zero.FromUint64(0))
	} else {
		h.wrGpr(instr.Rd, zero.FromUint64(1))
	}
	return h.advancePC(4), nil
}

func (h *Hart[W]) amo(instr decode.Instr) (Outcome, error) {
	addr := h.rdGpr(instr.Rs1).Uint64()
	data := h.rdGpr(instr.Rs2).Uint64()
	var zero W
	switch instr.Width {
	case decode.WidthW:
		old, err := h.Mem.Amo32(addr, instr.Order, uint32(data), instr.BinOp)
		if err != nil {
			return h.raise(memFault(err, true))
		}
		h.wrGpr(instr.Rd, zero.FromI32(int32(old)))
	case decode.WidthD:
		old, err := h.Mem.Amo64(addr, instr.Order, data, instr.BinOp)
		if err != nil {
			return h.raise(memFault(err, true))
		}
		h.wrGpr(instr.Rd, zero.FromUint64(old))
	default:
		return h.raise(decode.ExcIllegalInstr)
	}
	return h.advancePC(4), nil
}

// memFault maps a Memory error into the matching architectural exception;
// implementations that already return decode.Exception-carrying errors can
// be layered in later, so for now any error is treated as an access fault.
func memFault(err error, write bool) decode.Exception {
	if write {
		return decode.ExcAccessFaultW
	}
	return decode.ExcAccessFaultR
}

