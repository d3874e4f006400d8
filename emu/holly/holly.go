package holly

/*
 * Katana - HOLLY system controller
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

	"github.com/tswindell/katana/emu/device"
	"github.com/tswindell/katana/emu/memory"
)

// Interrupt kinds. Each kind has its own status register and per-level
// enable masks.
const (
	IntNormal = iota
	IntExternal
	IntError
)

// Line identifies a single interrupt source.
type Line struct {
	Kind int
	Mask uint32
}

// Normal interrupt sources (SB_ISTNRM bit layout).
var (
	IntRenderDoneTSP   = Line{IntNormal, 1 << 0}
	IntRenderDoneISP   = Line{IntNormal, 1 << 1}
	IntRenderDoneVideo = Line{IntNormal, 1 << 2}
	IntVBlankIn        = Line{IntNormal, 1 << 3}
	IntVBlankOut       = Line{IntNormal, 1 << 4}
	IntHBlank          = Line{IntNormal, 1 << 5}
	IntOpaqueDone      = Line{IntNormal, 1 << 6}
	IntOpaqueModDone   = Line{IntNormal, 1 << 7}
	IntTranslucentDone = Line{IntNormal, 1 << 8}
	IntTransModDone    = Line{IntNormal, 1 << 9}
	IntPVRDMADone      = Line{IntNormal, 1 << 10}
	IntMapleDMADone    = Line{IntNormal, 1 << 11}
	IntGDROMDMADone    = Line{IntNormal, 1 << 13}
	IntAICADMADone     = Line{IntNormal, 1 << 14}
	IntPunchThruDone   = Line{IntNormal, 1 << 21}
	IntYUVDone         = Line{IntNormal, 1 << 22}
)

// External interrupt sources (SB_ISTEXT bit layout).
var (
	IntGDROM = Line{IntExternal, 1 << 0}
	IntAICA  = Line{IntExternal, 1 << 1}
)

// System block register offsets, relative to the 0x005f6800 base.
const (
	SB_C2DSTAT = 0x000
	SB_C2DLEN  = 0x004
	SB_C2DST   = 0x008
	SB_LMMODE0 = 0x084
	SB_LMMODE1 = 0x088
	SB_FFST    = 0x08c
	SB_ISTNRM  = 0x100
	SB_ISTEXT  = 0x104
	SB_ISTERR  = 0x108
	SB_IML2NRM = 0x110
	SB_IML2EXT = 0x114
	SB_IML2ERR = 0x118
	SB_IML4NRM = 0x120
	SB_IML4EXT = 0x124
	SB_IML4ERR = 0x128
	SB_IML6NRM = 0x130
	SB_IML6EXT = 0x134
	SB_IML6ERR = 0x138
)

// Guest address layout inside the holly page.
const (
	sysRegBase   = 0xf6800 // system block registers
	sysRegTop    = 0xf7cff
	mapleRegBase = 0xf6c00 // maple bus slice
	mapleRegTop  = 0xf6cff
	g1RegBase    = 0xf7000 // GD-ROM / G1 slice
	g1RegTop     = 0xf70ff
	pvrRegBase   = 0xf8000 // PVR core registers
	pvrRegTop    = 0xf8fff
	paletteBase  = 0xf9000 // PVR palette RAM
	paletteTop   = 0xf9fff
)

// CPU receives interrupt level changes. Implemented by the SH-4 device and
// resolved by name at init.
type CPU interface {
	RequestInterrupt(level int)
	ClearInterrupt(level int)
}

// RegTarget handles a sub-block of the holly page. The PVR registers and
// palette RAM physically live behind HOLLY, so the PVR device registers
// itself here at init.
type RegTarget interface {
	RegRead32(offset uint32) uint32
	RegWrite32(offset uint32, value uint32)
}

type regCB struct {
	read  func() uint32
	write func(value uint32)
}

// Holly is the system controller: interrupt aggregation toward the SH-4
// plus the system-block register file.
type Holly struct {
	cpu   CPU
	pvr   RegTarget
	maple RegTarget
	gdrom RegTarget

	reg   [0x800]uint32 // system block registers, one per 4 bytes
	cb    map[uint32]regCB
	reg64 *memory.Region
}

func New(mem *memory.Memory) *Holly {
	h := &Holly{cb: make(map[uint32]regCB)}

	h.reg64 = mem.CreateMMIORegion("holly reg", memory.PageSize, memory.MMIOHandlers{
		Read32:  h.read32,
		Write32: h.write32,
		Read8:   func(addr uint32) uint8 { return uint8(h.read32(addr &^ 3) >> ((addr & 3) * 8)) },
		Read16:  func(addr uint32) uint16 { return uint16(h.read32(addr &^ 3) >> ((addr & 2) * 8)) },
		Write8: func(addr uint32, v uint8) {
			h.write32(addr&^3, uint32(v)<<((addr&3)*8))
		},
		Write16: func(addr uint32, v uint16) {
			h.write32(addr&^3, uint32(v)<<((addr&2)*8))
		},
	})

	// Registers with side effects are registered explicitly; everything
	// else reads and writes plain storage.
	h.register(SB_ISTNRM, h.istnrmRead, h.istnrmWrite)
	h.register(SB_ISTEXT, nil, h.istextWrite)
	h.register(SB_ISTERR, nil, h.isterrWrite)
	for _, off := range []uint32{
		SB_IML2NRM, SB_IML2EXT, SB_IML2ERR,
		SB_IML4NRM, SB_IML4EXT, SB_IML4ERR,
		SB_IML6NRM, SB_IML6EXT, SB_IML6ERR,
	} {
		off := off
		h.register(off, nil, func(v uint32) {
			h.reg[off>>2] = v
			h.updateCPU()
		})
	}

	return h
}

func (h *Holly) Name() string {
	return "holly"
}

func (h *Holly) Init(m device.Lookup) error {
	cpu, ok := m.Device("sh4").(CPU)
	if !ok {
		return fmt.Errorf("holly: no sh4 device to deliver interrupts to")
	}
	h.cpu = cpu

	pvr, ok := m.Device("pvr").(RegTarget)
	if !ok {
		return fmt.Errorf("holly: no pvr device behind the register window")
	}
	h.pvr = pvr

	// The maple and G1 slices are optional; their registers fall back to
	// plain storage when the devices are absent.
	h.maple, _ = m.Device("maple").(RegTarget)
	h.gdrom, _ = m.Device("gdrom").(RegTarget)

	return nil
}

func (h *Holly) Shutdown() {}

// InstallMap places the holly register page. The map is mounted by the
// SH-4 at the system block's base.
func (h *Holly) InstallMap(m device.Lookup, am *memory.AddressMap) {
	am.Handle(h.reg64, memory.PageSize, 0x00000000, 0xffffffff)
}

func (h *Holly) register(offset uint32, read func() uint32, write func(uint32)) {
	h.cb[offset] = regCB{read: read, write: write}
}

// LMMode0 reports the SB_LMMODE0 setting the TA consults on FIFO writes.
func (h *Holly) LMMode0() uint32 {
	return h.reg[SB_LMMODE0>>2]
}

func (h *Holly) read32(addr uint32) uint32 {
	switch {
	case addr >= mapleRegBase && addr <= mapleRegTop && h.maple != nil:
		return h.maple.RegRead32(addr - mapleRegBase)
	case addr >= g1RegBase && addr <= g1RegTop && h.gdrom != nil:
		return h.gdrom.RegRead32(addr - g1RegBase)
	case addr >= sysRegBase && addr <= sysRegTop:
		offset := addr - sysRegBase
		if cb, ok := h.cb[offset]; ok && cb.read != nil {
			return cb.read()
		}
		return h.reg[offset>>2]
	case addr >= pvrRegBase && addr <= paletteTop:
		return h.pvr.RegRead32(addr - pvrRegBase)
	}

	slog.Warn("holly read of unmapped address", "addr", fmt.Sprintf("0x%08x", addr))
	return 0
}

func (h *Holly) write32(addr uint32, v uint32) {
	switch {
	case addr >= mapleRegBase && addr <= mapleRegTop && h.maple != nil:
		h.maple.RegWrite32(addr-mapleRegBase, v)
		return
	case addr >= g1RegBase && addr <= g1RegTop && h.gdrom != nil:
		h.gdrom.RegWrite32(addr-g1RegBase, v)
		return
	case addr >= sysRegBase && addr <= sysRegTop:
		offset := addr - sysRegBase
		if cb, ok := h.cb[offset]; ok && cb.write != nil {
			cb.write(v)
			return
		}
		h.reg[offset>>2] = v
		return
	case addr >= pvrRegBase && addr <= paletteTop:
		h.pvr.RegWrite32(addr-pvrRegBase, v)
		return
	}

	slog.Warn("holly write to unmapped address", "addr", fmt.Sprintf("0x%08x", addr))
}

// RaiseInterrupt asserts an interrupt line and reevaluates the SH-4
// interrupt request levels.
func (h *Holly) RaiseInterrupt(line Line) {
	switch line.Kind {
	case IntNormal:
		h.reg[SB_ISTNRM>>2] |= line.Mask
	case IntExternal:
		h.reg[SB_ISTEXT>>2] |= line.Mask
	case IntError:
		h.reg[SB_ISTERR>>2] |= line.Mask
	}
	h.updateCPU()
}

// ClearInterrupt deasserts a level-triggered external line.
func (h *Holly) ClearInterrupt(line Line) {
	switch line.Kind {
	case IntNormal:
		h.reg[SB_ISTNRM>>2] &^= line.Mask
	case IntExternal:
		h.reg[SB_ISTEXT>>2] &^= line.Mask
	case IntError:
		h.reg[SB_ISTERR>>2] &^= line.Mask
	}
	h.updateCPU()
}

// istnrmRead folds summary bits for the external and error status into the
// top of SB_ISTNRM.
func (h *Holly) istnrmRead() uint32 {
	v := h.reg[SB_ISTNRM>>2]
	if h.reg[SB_ISTEXT>>2] != 0 {
		v |= 1 << 30
	}
	if h.reg[SB_ISTERR>>2] != 0 {
		v |= 1 << 31
	}
	return v
}

// Normal and error interrupt status is write-one-to-clear. External status
// clears when the source deasserts.
func (h *Holly) istnrmWrite(v uint32) {
	h.reg[SB_ISTNRM>>2] &^= v
	h.updateCPU()
}

func (h *Holly) istextWrite(v uint32) {
	h.updateCPU()
}

func (h *Holly) isterrWrite(v uint32) {
	h.reg[SB_ISTERR>>2] &^= v
	h.updateCPU()
}

func (h *Holly) pending(nrm, ext, errm uint32) bool {
	return h.reg[SB_ISTNRM>>2]&h.reg[nrm>>2] != 0 ||
		h.reg[SB_ISTEXT>>2]&h.reg[ext>>2] != 0 ||
		h.reg[SB_ISTERR>>2]&h.reg[errm>>2] != 0
}

func (h *Holly) updateCPU() {
	if h.cpu == nil {
		return
	}

	levels := []struct {
		level         int
		nrm, ext, err uint32
	}{
		{6, SB_IML6NRM, SB_IML6EXT, SB_IML6ERR},
		{4, SB_IML4NRM, SB_IML4EXT, SB_IML4ERR},
		{2, SB_IML2NRM, SB_IML2EXT, SB_IML2ERR},
	}

	for _, l := range levels {
		if h.pending(l.nrm, l.ext, l.err) {
			h.cpu.RequestInterrupt(l.level)
		} else {
			h.cpu.ClearInterrupt(l.level)
		}
	}
}
