package memory

/*
 * Katana - Device address maps
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"math/bits"
)

type entryType int

const (
	entryPhysical entryType = iota
	entryMMIO
	entryDevice
	entryMirror
)

// MapFunc fills in a device's address map. Mount-device entries apply the
// callee's map recursively at the parent's offset.
type MapFunc func(am *AddressMap)

type mapEntry struct {
	typ      entryType
	size     uint32
	addr     uint32
	addrMask uint32

	region     *Region // physical / mmio
	mapper     MapFunc // device
	mirrorAddr uint32  // mirror
}

// AddressMap is an ordered list of mount instructions, used only while an
// address space is being constructed.
type AddressMap struct {
	entries []mapEntry
}

// Mount maps a physical region at addr. Bits cleared in mask are mirror
// bits: every combination of them is materialized.
func (am *AddressMap) Mount(r *Region, size, addr, mask uint32) {
	am.entries = append(am.entries, mapEntry{
		typ:      entryPhysical,
		size:     size,
		addr:     addr,
		addrMask: mask,
		region:   r,
	})
}

// Handle maps an MMIO region at addr under mask.
func (am *AddressMap) Handle(r *Region, size, addr, mask uint32) {
	am.entries = append(am.entries, mapEntry{
		typ:      entryMMIO,
		size:     size,
		addr:     addr,
		addrMask: mask,
		region:   r,
	})
}

// Device merges another device's map at addr under mask.
func (am *AddressMap) Device(mapper MapFunc, size, addr, mask uint32) {
	am.entries = append(am.entries, mapEntry{
		typ:      entryDevice,
		size:     size,
		addr:     addr,
		addrMask: mask,
		mapper:   mapper,
	})
}

// Mirror aliases an already-resolved physical range at addr.
func (am *AddressMap) Mirror(physicalAddr, size, addr uint32) {
	am.entries = append(am.entries, mapEntry{
		typ:        entryMirror,
		size:       size,
		addr:       addr,
		addrMask:   0xffffffff,
		mirrorAddr: physicalAddr,
	})
}

// mirrorIterator walks every mirror of an address under a mask. The base is
// addr & mask; each cleared mask bit doubles the number of mirrors.
type mirrorIterator struct {
	base, mask, imask, step uint32
	i, addr                 uint32
	first                   bool
}

func newMirrorIterator(addr, mask uint32) *mirrorIterator {
	it := &mirrorIterator{
		base:  addr & mask,
		mask:  mask,
		imask: ^mask,
		first: true,
	}
	it.addr = it.base
	if it.imask != 0 {
		it.step = 1 << bits.TrailingZeros32(it.imask)
	}
	return it
}

func (it *mirrorIterator) next() bool {
	// First iteration just returns the base.
	if it.first {
		it.first = false
		return true
	}

	// Stop once the mask complement is completely set.
	if it.addr&it.imask == it.imask {
		return false
	}

	// Step to the next permutation, folding carries that land in masked
	// bits back into the next step.
	it.i += it.step
	for {
		carry := it.i & it.mask
		if carry == 0 {
			break
		}
		it.i += carry
	}

	it.addr = it.base | it.i

	return true
}
