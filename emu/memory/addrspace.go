package memory

/*
 * Katana - Guest address spaces
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
	"fmt"
	"unsafe"

	"github.com/tswindell/katana/util/fatal"
)

// AddressSpace presents a device with a uniform 32-bit guest address
// interface. Physical pages resolve to direct loads and stores against a
// host reservation the shared memory object is mapped into; MMIO pages
// dispatch to the owning region's handlers.
type AddressSpace struct {
	mem   *Memory
	pages [NumPages]uint32
	base  unsafe.Pointer
}

func (mem *Memory) NewAddressSpace() *AddressSpace {
	return &AddressSpace{mem: mem}
}

func isPageAligned(start, size uint32) bool {
	return start&pageOffsetMask == 0 && (start+size)&pageOffsetMask == 0
}

// mergeMap flattens an address map into the page table, expanding mirrors
// and recursing into mounted devices.
func (sp *AddressSpace) mergeMap(am *AddressMap, offset uint32) error {
	for i := range am.entries {
		entry := &am.entries[i]

		it := newMirrorIterator(offset+entry.addr, entry.addrMask)
		for it.next() {
			addr := it.addr
			size := entry.size

			if !isPageAligned(addr, size) {
				return fmt.Errorf("map entry at 0x%08x size 0x%x not page aligned", addr, size)
			}

			firstPage := pageIndex(addr)
			numPages := int(size >> PageOffsetBits)

			switch entry.typ {
			case entryPhysical, entryMMIO:
				for i := 0; i < numPages; i++ {
					regionOffset := uint32(i) * PageSize
					sp.pages[firstPage+i] = packPageEntry(entry.region.handle, regionOffset)
				}

			case entryDevice:
				var deviceMap AddressMap
				entry.mapper(&deviceMap)
				if err := sp.mergeMap(&deviceMap, addr); err != nil {
					return err
				}

			case entryMirror:
				if !isPageAligned(entry.mirrorAddr, size) {
					return fmt.Errorf("mirror source at 0x%08x not page aligned", entry.mirrorAddr)
				}

				// Copy the already-resolved page entries for the
				// physical range into the new span.
				firstPhysical := pageIndex(entry.mirrorAddr)
				for i := 0; i < numPages; i++ {
					sp.pages[firstPage+i] = sp.pages[firstPhysical+i]
				}
			}
		}
	}

	return nil
}

// numAdjacentPages returns how many pages starting at firstPage resolve to
// the same kind of region with contiguous backing, so they can be mapped in
// one host operation.
func (sp *AddressSpace) numAdjacentPages(firstPage int) int {
	i := firstPage
	for ; i < NumPages-1; i++ {
		page := sp.pages[i]
		nextPage := sp.pages[i+1]

		region := &sp.mem.regions[entryHandle(page)]
		nextRegion := &sp.mem.regions[entryHandle(nextPage)]

		if nextRegion.kind != region.kind {
			break
		}

		if region.kind == regionPhysical {
			delta := (nextRegion.shmemOffset + entryOffset(nextPage)) -
				(region.shmemOffset + entryOffset(page))
			if delta != PageSize {
				break
			}
		}
	}
	return (i + 1) - firstPage
}

// Map flattens the supplied address map into the page table, reserves the
// 2^32-byte host range and maps the shared memory object into every
// physical page. MMIO pages are left inaccessible so stray pointer access
// faults. Fatal failures here abort machine creation.
func (sp *AddressSpace) Map(name string, am *AddressMap) error {
	if err := sp.mergeMap(am, 0); err != nil {
		return fmt.Errorf("%s address space: %w", name, err)
	}

	base, err := reserveAddressSpace()
	if err != nil {
		return fmt.Errorf("%s address space: failed to reserve host range: %w", name, err)
	}
	sp.base = base

	for pageIdx := 0; pageIdx < NumPages; {
		page := sp.pages[pageIdx]

		if page == 0 {
			pageIdx++
			continue
		}

		region := &sp.mem.regions[entryHandle(page)]

		// Batch adjacent pages, mmap is fairly slow.
		numPages := sp.numAdjacentPages(pageIdx)
		addr := unsafe.Add(sp.base, uintptr(pageIdx)*PageSize)
		size := uint32(numPages) * PageSize

		if region.kind == regionPhysical {
			shmemOffset := region.shmemOffset + entryOffset(page)
			if err := mapShmemFixed(sp.mem.shmem, int64(shmemOffset), addr, size); err != nil {
				return fmt.Errorf("%s address space: failed to map %s: %w", name, region.name, err)
			}
		} else {
			// No access for MMIO ranges.
			if err := protectNone(addr, size); err != nil {
				return fmt.Errorf("%s address space: failed to protect %s: %w", name, region.name, err)
			}
		}

		pageIdx += numPages
	}

	return nil
}

func (sp *AddressSpace) Destroy() {
	if sp.base != nil {
		releaseAddressSpace(sp.base)
		sp.base = nil
	}
}

// lookupRegion resolves an address to its region and the offset within it.
func (sp *AddressSpace) lookupRegion(addr uint32) (*Region, uint32) {
	page := sp.pages[pageIndex(addr)]
	region := &sp.mem.regions[entryHandle(page)]
	return region, entryOffset(page) + pageOffset(addr)
}

// Translate returns the host pointer backing a physical guest address.
func (sp *AddressSpace) Translate(addr uint32) unsafe.Pointer {
	return unsafe.Add(sp.base, uintptr(addr))
}

// Slice returns size bytes of host backing starting at a physical guest
// address.
func (sp *AddressSpace) Slice(addr, size uint32) []byte {
	return unsafe.Slice((*byte)(sp.Translate(addr)), size)
}

func (sp *AddressSpace) Read8(addr uint32) uint8 {
	region, offset := sp.lookupRegion(addr)
	if region.kind == regionPhysical {
		return *(*uint8)(unsafe.Add(sp.base, uintptr(addr)))
	}
	return region.mmio.Read8(offset)
}

func (sp *AddressSpace) Read16(addr uint32) uint16 {
	region, offset := sp.lookupRegion(addr)
	if region.kind == regionPhysical {
		return *(*uint16)(unsafe.Add(sp.base, uintptr(addr)))
	}
	return region.mmio.Read16(offset)
}

func (sp *AddressSpace) Read32(addr uint32) uint32 {
	region, offset := sp.lookupRegion(addr)
	if region.kind == regionPhysical {
		return *(*uint32)(unsafe.Add(sp.base, uintptr(addr)))
	}
	return region.mmio.Read32(offset)
}

func (sp *AddressSpace) Write8(addr uint32, v uint8) {
	region, offset := sp.lookupRegion(addr)
	if region.kind == regionPhysical {
		*(*uint8)(unsafe.Add(sp.base, uintptr(addr))) = v
		return
	}
	region.mmio.Write8(offset, v)
}

func (sp *AddressSpace) Write16(addr uint32, v uint16) {
	region, offset := sp.lookupRegion(addr)
	if region.kind == regionPhysical {
		*(*uint16)(unsafe.Add(sp.base, uintptr(addr))) = v
		return
	}
	region.mmio.Write16(offset, v)
}

func (sp *AddressSpace) Write32(addr uint32, v uint32) {
	region, offset := sp.lookupRegion(addr)
	if region.kind == regionPhysical {
		*(*uint32)(unsafe.Add(sp.base, uintptr(addr))) = v
		return
	}
	region.mmio.Write32(offset, v)
}

// Memcpy copies size bytes between two guest addresses. The size must be a
// multiple of 4. The regions are resolved once; copies between two MMIO
// regions are unsupported.
func (sp *AddressSpace) Memcpy(dst, src, size uint32) {
	if size%4 != 0 {
		fatal.Fatalf("guest memcpy size 0x%x not a multiple of 4", size)
	}

	dstRegion, dstOffset := sp.lookupRegion(dst)
	srcRegion, srcOffset := sp.lookupRegion(src)

	switch {
	case dstRegion.kind == regionPhysical && srcRegion.kind == regionPhysical:
		copy(sp.Slice(dst, size), sp.Slice(src, size))
	case dstRegion.kind == regionPhysical:
		srcRegion.mmio.ReadBlock(sp.Slice(dst, size), srcOffset)
	case srcRegion.kind == regionPhysical:
		dstRegion.mmio.WriteBlock(dstOffset, sp.Slice(src, size))
	default:
		fatal.Fatalf("guest memcpy between two mmio regions (0x%08x <- 0x%08x)", dst, src)
	}
}

// MemcpyToHost copies size bytes from a guest address into a host buffer,
// assuming the range does not cross regions.
func (sp *AddressSpace) MemcpyToHost(dst []byte, src uint32) {
	srcRegion, srcOffset := sp.lookupRegion(src)

	if srcRegion.kind == regionPhysical {
		copy(dst, sp.Slice(src, uint32(len(dst))))
		return
	}
	srcRegion.mmio.ReadBlock(dst, srcOffset)
}

// MemcpyToGuest copies a host buffer to a guest address, assuming the range
// does not cross regions.
func (sp *AddressSpace) MemcpyToGuest(dst uint32, src []byte) {
	dstRegion, dstOffset := sp.lookupRegion(dst)

	if dstRegion.kind == regionPhysical {
		copy(sp.Slice(dst, uint32(len(src))), src)
		return
	}
	dstRegion.mmio.WriteBlock(dstOffset, src)
}
