package hart

import (
	"github.com/sarchlab/rvsim/decode"
	"github.com/sarchlab/rvsim/xlen"
)

// Memory is the external collaborator that backs every load, store,
// instruction fetch, and A-extension atomic access. Hart never reasons
// about pages, caches, or bus widths itself — it only calls through this
// interface and reacts to the MemOrder tag and/or error it gets back.
//
// An implementation is free to model anything from a flat byte slice (as
// cmd/rvsim's default does) to a fully paged virtual address space; the
// hart does not care, mirroring how memory/mod.rs's Mem collaborator is
// left almost entirely unimplemented (todo!()) in the original.
type Memory interface {
	Read8(addr uint64) (uint8, error)
	Read16(addr uint64) (uint16, error)
	Read32(addr uint64) (uint32, error)
	Read64(addr uint64) (uint64, error)
	Write8(addr uint64, data uint8) error
	Write16(addr uint64, data uint16) error
	Write32(addr uint64, data uint32) error
	Write64(addr uint64, data uint64) error

	// FetchCheck is consulted before every instruction fetch so an
	// implementation can raise a fetch-time fault (misaligned, access,
	// or page fault) with higher priority than the fetch itself.
	FetchCheck(addr uint64) error

	// LoadReserved/StoreConditional/AMO back the A extension. order is
	// passed through uninterpreted; a single-hart implementation may
	// ignore it entirely.
	LoadReserved32(addr uint64, order decode.MemOrder) (uint32, error)
	LoadReserved64(addr uint64, order decode.MemOrder) (uint64, error)
	StoreConditional32(addr uint64, order decode.MemOrder, data uint32) (succeeded bool, err error)
	StoreConditional64(addr uint64, order decode.MemOrder, data uint64) (succeeded bool, err error)
	Amo32(addr uint64, order decode.MemOrder, data uint32, op decode.BinaryOp) (uint32, error)
	Amo64(addr uint64, order decode.MemOrder, data uint64, op decode.BinaryOp) (uint64, error)

	// Fence, FenceTSO, FenceI are ordering/flush hints with no required
	// effect on a single in-order hart; a multi-hart or caching
	// implementation may act on them.
	Fence(pred, succ uint8)
	FenceTSO()
	FenceI()
}

// FlatMemory is a minimal little-endian Memory backed by a byte slice, the
// default collaborator cmd/rvsim wires up for running a raw memory image.
// It has no MMU, no alignment enforcement beyond bounds checking, and
// treats every atomic operation as already-atomic single-hart arithmetic.
type FlatMemory struct {
	Bytes []byte
}

// NewFlatMemory allocates a FlatMemory of the given size, zero-initialized.
func NewFlatMemory(size int) *FlatMemory {
	return &FlatMemory{Bytes: make([]byte, size)}
}

func (m *FlatMemory) bounds(addr uint64, width int) error {
	if addr+uint64(width) > uint64(len(m.Bytes)) {
		return errOutOfBounds
	}
	return nil
}

func (m *FlatMemory) Read8(addr uint64) (uint8, error) {
	if err := m.bounds(addr, 1); err != nil {
		return 0, err
	}
	return m.Bytes[addr], nil
}

func (m *FlatMemory) Read16(addr uint64) (uint16, error) {
	if err := m.bounds(addr, 2); err != nil {
		return 0, err
	}
	return uint16(m.Bytes[addr]) | uint16(m.Bytes[addr+1])<<8, nil
}

func (m *FlatMemory) Read32(addr uint64) (uint32, error) {
	if err := m.bounds(addr, 4); err != nil {
		return 0, err
	}
	v := uint32(0)
	for i := 0; i < 4; i++ {
		v |= uint32(m.Bytes[addr+uint64(i)]) << (8 * i)
	}
	return v, nil
}

func (m *FlatMemory) Read64(addr uint64) (uint64, error) {
	if err := m.bounds(addr, 8); err != nil {
		return 0, err
	}
	v := uint64(0)
	for i := 0; i < 8; i++ {
		v |= uint64(m.Bytes[addr+uint64(i)]) << (8 * i)
	}
	return v, nil
}

func (m *FlatMemory) Write8(addr uint64, data uint8) error {
	if err := m.bounds(addr, 1); err != nil {
		return err
	}
	m.Bytes[addr] = data
	return nil
}

func (m *FlatMemory) Write16(addr uint64, data uint16) error {
	if err := m.bounds(addr, 2); err != nil {
		return err
	}
	m.Bytes[addr] = byte(data)
	m.Bytes[addr+1] = byte(data >> 8)
	return nil
}

func (m *FlatMemory) Write32(addr uint64, data uint32) error {
	if err := m.bounds(addr, 4); err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		m.Bytes[addr+uint64(i)] = byte(data >> (8 * i))
	}
	return nil
}

func (m *FlatMemory) Write64(addr uint64, data uint64) error {
	if err := m.bounds(addr, 8); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		m.Bytes[addr+uint64(i)] = byte(data >> (8 * i))
	}
	return nil
}

func (m *FlatMemory) FetchCheck(addr uint64) error { return m.bounds(addr, 2) }

func (m *FlatMemory) LoadReserved32(addr uint64, _ decode.MemOrder) (uint32, error) {
	return m.Read32(addr)
}

func (m *FlatMemory) LoadReserved64(addr uint64, _ decode.MemOrder) (uint64, error) {
	return m.Read64(addr)
}

// StoreConditional always succeeds on a single-hart FlatMemory: there is
// no other hart that could have broken the reservation.
func (m *FlatMemory) StoreConditional32(addr uint64, _ decode.MemOrder, data uint32) (bool, error) {
	if err := m.Write32(addr, data); err != nil {
		return false, err
	}
	return true, nil
}

func (m *FlatMemory) StoreConditional64(addr uint64, _ decode.MemOrder, data uint64) (bool, error) {
	if err := m.Write64(addr, data); err != nil {
		return false, err
	}
	return true, nil
}

func (m *FlatMemory) Amo32(addr uint64, _ decode.MemOrder, data uint32, op decode.BinaryOp) (uint32, error) {
	old, err := m.Read32(addr)
	if err != nil {
		return 0, err
	}
	result := uint32(Exec(op, xlen.Word32(old), xlen.Word32(data)))
	return old, m.Write32(addr, result)
}

func (m *FlatMemory) Amo64(addr uint64, _ decode.MemOrder, data uint64, op decode.BinaryOp) (uint64, error) {
	old, err := m.Read64(addr)
	if err != nil {
		return 0, err
	}
	result := uint64(Exec(op, xlen.Word64(old), xlen.Word64(data)))
	return old, m.Write64(addr, result)
}

func (m *FlatMemory) Fence(pred, succ uint8) {}
func (m *FlatMemory) FenceTSO()              {}
func (m *FlatMemory) FenceI()                {}
