package decode

// IsCompressed reports whether the low two bits of the first halfword of an
// instruction stream mark it as a 16-bit compressed encoding.
func IsCompressed(firstHalfword uint16) bool {
	return selectBits16(firstHalfword, 1, 0) != 0b11
}

// Decode decodes one instruction from a little-endian instruction stream
// starting at lo (the first, lower-addressed halfword) and hi (the next
// halfword, only consulted for non-compressed words). It returns the
// decoded Instr together with the number of bytes consumed (2 or 4), so
// callers can advance their PC without re-inspecting the raw bits.
func (d *Decoder) Decode(lo, hi uint16) (Instr, int) {
	if IsCompressed(lo) {
		return d.Decode16(lo), 2
	}
	word := uint32(lo) | uint32(hi)<<16
	return d.Decode32(word), 4
}
