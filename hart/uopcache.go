package hart

import "github.com/sarchlab/rvsim/decode"

// uopEntry is a cached decode result together with how many bytes the
// original encoding occupied, so a cache hit can still advance PC
// correctly without re-inspecting the raw instruction bits.
type uopEntry struct {
	instr decode.Instr
	size  int
}

// UopCache maps instruction addresses to already-decoded micro-ops. The
// stub in the original implementation never stores anything (its read
// always misses); here the cache is real, keyed by PC, since repeatedly
// re-decoding a hot loop's instructions on every fetch is exactly the
// cost a decoded-uop cache exists to avoid.
type UopCache struct {
	entries map[uint64]uopEntry
}

// NewUopCache builds an empty UopCache.
func NewUopCache() *UopCache {
	return &UopCache{entries: make(map[uint64]uopEntry)}
}

// Read returns the cached decode for addr, or false on a miss.
func (c *UopCache) Read(addr uint64) (decode.Instr, int, bool) {
	e, ok := c.entries[addr]
	return e.instr, e.size, ok
}

// Alloc stores the decode result for addr, overwriting any prior entry.
func (c *UopCache) Alloc(addr uint64, instr decode.Instr, size int) {
	c.entries[addr] = uopEntry{instr: instr, size: size}
}

// Flush discards every cached entry, needed whenever the backing memory
// at an already-cached address may have changed (e.g. after fence.i).
func (c *UopCache) Flush() {
	c.entries = make(map[uint64]uopEntry)
}

// FlushPage discards every cached entry whose address falls on the same
// page as addr, for implementations that want finer granularity than a
// full flush.
func (c *UopCache) FlushPage(addr uint64, pageSize uint64) {
	base := addr &^ (pageSize - 1)
	for a := range c.entries {
		if a&^(pageSize-1) == base {
			delete(c.entries, a)
		}
	}
}
