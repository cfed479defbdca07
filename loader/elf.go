// Package loader provides ELF binary loading for RISC-V executables, so a
// hart can be pointed at a real statically-linked program rather than only
// a raw memory image.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultStackTop64 is the conventional stack top for a 64-bit RISC-V Linux
// user-space process.
const DefaultStackTop64 = 0x7ffffffff000

// DefaultStackTop32 is the conventional stack top for a 32-bit RISC-V Linux
// user-space process.
const DefaultStackTop32 = 0x7ffff000

// DefaultStackSize is the default stack size (8MB).
const DefaultStackSize = 8 * 1024 * 1024

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// XLEN is the register width implied by the ELF class (32 or 64).
	XLEN int
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint64
}

// HighestAddr returns the end address (one past the last byte) of the
// highest segment, for sizing a FlatMemory backing store before Apply.
func (p *Program) HighestAddr() uint64 {
	var highest uint64
	for _, seg := range p.Segments {
		end := seg.VirtAddr + seg.MemSize
		if end > highest {
			highest = end
		}
	}
	return highest
}

// Load parses a RISC-V ELF binary and returns a Program struct ready for
// loading into a hart's memory.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	var xlen int
	var stackTop uint64
	switch f.Class {
	case elf.ELFCLASS64:
		xlen = 64
		stackTop = DefaultStackTop64
	case elf.ELFCLASS32:
		xlen = 32
		stackTop = DefaultStackTop32
	default:
		return nil, fmt.Errorf("unrecognized ELF class: %v", f.Class)
	}

	prog := &Program{
		XLEN:       xlen,
		EntryPoint: f.Entry,
		InitialSP:  stackTop,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}

// Apply copies every segment's file contents into mem at its virtual
// address. mem must already be sized to cover HighestAddr(); BSS (the
// MemSize-Data gap) is left at memory's zero value, matching the teacher's
// ELF loader's own zero-fill-on-load convention.
func (p *Program) Apply(mem []byte) error {
	for _, seg := range p.Segments {
		end := seg.VirtAddr + uint64(len(seg.Data))
		if end > uint64(len(mem)) {
			return fmt.Errorf("segment at 0x%x overruns %d-byte memory", seg.VirtAddr, len(mem))
		}
		copy(mem[seg.VirtAddr:end], seg.Data)
	}
	return nil
}
