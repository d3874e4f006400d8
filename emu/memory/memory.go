package memory

/*
 * Katana - Guest memory regions
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
	"log/slog"

	"github.com/tswindell/katana/util/fatal"
)

// The 32-bit guest space is split into pages, each of which resolves to a
// single region. A page table entry packs the region handle into the low
// bits and the page-aligned offset within the region into the high bits.
// Entry 0 is reserved as the null entry, so all valid entries are non-zero.
const (
	PageBits       = 12
	PageOffsetBits = 32 - PageBits
	PageSize       = 1 << PageOffsetBits
	pageOffsetMask = PageSize - 1
	NumPages       = 1 << PageBits

	regionHandleMask = PageSize - 1
	maxRegions       = NumPages

	addressSpaceSize = uint64(1) << 32
)

func pageIndex(addr uint32) int {
	return int(addr >> PageOffsetBits)
}

func pageOffset(addr uint32) uint32 {
	return addr & pageOffsetMask
}

func packPageEntry(handle int, regionOffset uint32) uint32 {
	return regionOffset | uint32(handle)
}

func entryHandle(page uint32) int {
	return int(page & regionHandleMask)
}

func entryOffset(page uint32) uint32 {
	return page &^ uint32(regionHandleMask)
}

type regionKind int

const (
	regionPhysical regionKind = iota
	regionMMIO
)

// MMIO handler set for a region. Any nil handler is replaced with a logging
// default that warns but does not crash.
type MMIOHandlers struct {
	Read8      func(addr uint32) uint8
	Read16     func(addr uint32) uint16
	Read32     func(addr uint32) uint32
	ReadBlock  func(dst []byte, src uint32)
	Write8     func(addr uint32, value uint8)
	Write16    func(addr uint32, value uint16)
	Write32    func(addr uint32, value uint32)
	WriteBlock func(dst uint32, src []byte)
}

// Region describes a named range of guest memory: either a slab of the
// process-wide shared memory object, or a set of MMIO handlers. Handles are
// dense small integers and never change after creation.
type Region struct {
	kind   regionKind
	handle int
	name   string
	size   uint32

	// Physical regions only.
	shmemOffset uint32

	// MMIO regions only.
	mmio MMIOHandlers
}

func (r *Region) Name() string {
	return r.name
}

func (r *Region) Size() uint32 {
	return r.size
}

// Memory owns the region table and the shared memory object that backs
// every physical region.
type Memory struct {
	shmem     shmemHandle
	shmemSize uint32
	shmemBase []byte

	regions    [maxRegions]Region
	numRegions int
}

func New() *Memory {
	mem := &Memory{shmem: shmemInvalid}

	// Region 0 is the null region. All valid handles are non-zero.
	mem.numRegions = 1

	return mem
}

// GetRegion returns the region with the given name, or nil.
func (mem *Memory) GetRegion(name string) *Region {
	for i := 1; i < mem.numRegions; i++ {
		r := &mem.regions[i]
		if r.name == name {
			return r
		}
	}
	return nil
}

// CreatePhysicalRegion reserves a slab of the shared memory object. The
// size must be a multiple of the host allocation granularity or mapping
// will confusingly fail later, so reject it up front. Creating a region
// with an existing name returns the existing region.
func (mem *Memory) CreatePhysicalRegion(name string, size uint32) *Region {
	if r := mem.GetRegion(name); r != nil {
		return r
	}

	granularity := uint32(allocationGranularity())
	if size == 0 || size%granularity != 0 {
		fatal.Fatalf("physical region %s size 0x%x not a multiple of the allocation granularity 0x%x",
			name, size, granularity)
	}
	if mem.numRegions >= maxRegions {
		fatal.Fatalf("region table exhausted creating %s", name)
	}

	r := &mem.regions[mem.numRegions]
	r.kind = regionPhysical
	r.handle = mem.numRegions
	r.name = name
	r.size = size
	r.shmemOffset = mem.shmemSize
	mem.shmemSize += size
	mem.numRegions++

	return r
}

// CreateMMIORegion registers a callback-backed region.
func (mem *Memory) CreateMMIORegion(name string, size uint32, handlers MMIOHandlers) *Region {
	if r := mem.GetRegion(name); r != nil {
		return r
	}

	if mem.numRegions >= maxRegions {
		fatal.Fatalf("region table exhausted creating %s", name)
	}

	r := &mem.regions[mem.numRegions]
	r.kind = regionMMIO
	r.handle = mem.numRegions
	r.name = name
	r.size = size
	r.mmio = handlers
	mem.numRegions++

	// Bind default handlers so unknown sub-addresses warn instead of crash.
	if r.mmio.Read8 == nil {
		r.mmio.Read8 = func(addr uint32) uint8 {
			slog.Warn("unexpected mmio read8", "region", name, "addr", fmt.Sprintf("0x%08x", addr))
			return 0
		}
	}
	if r.mmio.Read16 == nil {
		r.mmio.Read16 = func(addr uint32) uint16 {
			slog.Warn("unexpected mmio read16", "region", name, "addr", fmt.Sprintf("0x%08x", addr))
			return 0
		}
	}
	if r.mmio.Read32 == nil {
		r.mmio.Read32 = func(addr uint32) uint32 {
			slog.Warn("unexpected mmio read32", "region", name, "addr", fmt.Sprintf("0x%08x", addr))
			return 0
		}
	}
	if r.mmio.ReadBlock == nil {
		r.mmio.ReadBlock = func(dst []byte, src uint32) {
			slog.Warn("unexpected mmio block read", "region", name, "addr", fmt.Sprintf("0x%08x", src))
		}
	}
	if r.mmio.Write8 == nil {
		r.mmio.Write8 = func(addr uint32, value uint8) {
			slog.Warn("unexpected mmio write8", "region", name, "addr", fmt.Sprintf("0x%08x", addr))
		}
	}
	if r.mmio.Write16 == nil {
		r.mmio.Write16 = func(addr uint32, value uint16) {
			slog.Warn("unexpected mmio write16", "region", name, "addr", fmt.Sprintf("0x%08x", addr))
		}
	}
	if r.mmio.Write32 == nil {
		r.mmio.Write32 = func(addr uint32, value uint32) {
			slog.Warn("unexpected mmio write32", "region", name, "addr", fmt.Sprintf("0x%08x", addr))
		}
	}
	if r.mmio.WriteBlock == nil {
		r.mmio.WriteBlock = func(dst uint32, src []byte) {
			slog.Warn("unexpected mmio block write", "region", name, "addr", fmt.Sprintf("0x%08x", dst))
		}
	}

	return r
}

// Translate returns the host backing for a physical region starting at
// offset. Valid only after Init and only for physical regions.
func (mem *Memory) Translate(name string, offset uint32) []byte {
	r := mem.GetRegion(name)
	if r == nil || r.kind != regionPhysical {
		fatal.Fatalf("translate of unknown or non-physical region %s", name)
	}
	return mem.shmemBase[r.shmemOffset+offset : r.shmemOffset+r.size]
}

// Init creates the shared memory object now that every region has been
// created, and maps it once contiguously for Translate.
func (mem *Memory) Init() error {
	shmem, err := createShmem(int64(mem.shmemSize))
	if err != nil {
		return fmt.Errorf("failed to create shared memory object: %w", err)
	}
	mem.shmem = shmem

	// A machine with only MMIO regions has nothing to map.
	if mem.shmemSize != 0 {
		base, err := mapShmemSlice(mem.shmem, 0, int(mem.shmemSize))
		if err != nil {
			return fmt.Errorf("failed to map shared memory object: %w", err)
		}
		mem.shmemBase = base
	}

	return nil
}

func (mem *Memory) Destroy() {
	if mem.shmemBase != nil {
		unmapShmemSlice(mem.shmemBase)
		mem.shmemBase = nil
	}
	if mem.shmem != shmemInvalid {
		destroyShmem(mem.shmem)
		mem.shmem = shmemInvalid
	}
}
