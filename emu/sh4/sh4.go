package sh4

/*
 * Katana - SH-4 CPU device
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

// The CPU clock, used to convert scheduler nanosecond budgets to cycles.
const clockHz = 200000000

// Reset vector.
const resetPC = 0xa0000000

// Frontend executes guest code against a context, e.g. the dynamic
// recompiler. It returns the number of cycles actually consumed.
type Frontend interface {
	Execute(ctx *Context, space *memory.AddressSpace, cycles int64) int64
}

// SH4 is the main CPU device. It owns the primary guest address space,
// built by mounting every peer device's map at its canonical address.
type SH4 struct {
	ctx      Context
	space    *memory.AddressSpace
	frontend Frontend
	running  bool

	regRegion *memory.Region
	reg       [0x40000]uint32
}

func New(mem *memory.Memory) *SH4 {
	s := &SH4{running: true}

	s.space = mem.NewAddressSpace()

	s.regRegion = mem.CreateMMIORegion("sh4 reg", memory.PageSize, memory.MMIOHandlers{
		Read32:  s.regRead,
		Write32: s.regWrite,
	})

	s.ctx.PC = resetPC
	s.ctx.SR = srMD | srRB | srBL | srIMASK

	return s
}

func (s *SH4) Name() string {
	return "sh4"
}

func (s *SH4) Init(m device.Lookup) error {
	return nil
}

func (s *SH4) Shutdown() {}

func (s *SH4) Space() *memory.AddressSpace {
	return s.space
}

// Context exposes the CPU state to the frontend and the monitor.
func (s *SH4) Context() *Context {
	return &s.ctx
}

// SetFrontend installs the execution engine. Without one the CPU consumes
// its time budget idle.
func (s *SH4) SetFrontend(f Frontend) {
	s.frontend = f
}

// InstallMap builds the canonical guest address map: each peer's map is
// mounted at its base address, with the top three bits left as mirror bits
// so every mapping repeats through the P0 alias, P1, P2 and P3 segments.
func (s *SH4) InstallMap(m device.Lookup, am *memory.AddressMap) {
	const segMask = 0x1fffffff

	mount := func(name string, size, addr, mask uint32) {
		dev := m.Device(name)
		mapper, ok := dev.(device.Mapper)
		if !ok {
			slog.Warn("sh4 map skipping unknown device", "name", name)
			return
		}
		am.Device(func(sub *memory.AddressMap) {
			mapper.InstallMap(m, sub)
		}, size, addr, mask)
	}

	// area 0
	mount("boot", 0x00200000, 0x00000000, segMask)
	mount("flash", 0x00100000, 0x00200000, segMask)
	mount("holly", 0x00100000, 0x00500000, segMask)
	mount("aica", 0x00300000, 0x00700000, segMask)

	// area 1, the two video ram access paths
	mount("pvr", 0x02000000, 0x04000000, segMask)

	// area 3, 16mb of system ram mirrored four times through the
	// 0x0c-0x0f prefixes
	ram := m.Device("ram")
	if mapper, ok := ram.(device.Mapper); ok {
		am.Device(func(sub *memory.AddressMap) {
			mapper.InstallMap(m, sub)
		}, 0x01000000, 0x0c000000, 0x1cffffff)
	}

	// area 4, the tile accelerator fifos
	mount("ta", 0x02000000, 0x10000000, segMask)

	// area 7, on-chip registers
	am.Handle(s.regRegion, memory.PageSize, 0x1f000000, segMask)
}

func (s *SH4) regRead(addr uint32) uint32 {
	return s.reg[addr>>2]
}

func (s *SH4) regWrite(addr uint32, v uint32) {
	s.reg[addr>>2] = v
}

/*
 * execute interface
 */

func (s *SH4) Running() bool {
	return s.running
}

// Run advances the CPU by a budget of guest nanoseconds.
func (s *SH4) Run(ns int64) {
	cycles := ns * clockHz / 1000000000

	if s.frontend != nil {
		s.ctx.RanCycles += s.frontend.Execute(&s.ctx, s.space, cycles)
		return
	}

	// No execution engine attached; account the time as idle.
	s.ctx.RanCycles += cycles
}

/*
 * interrupt delivery from the system controller
 */

func (s *SH4) RequestInterrupt(level int) {
	s.ctx.Pending |= 1 << uint(level)
}

func (s *SH4) ClearInterrupt(level int) {
	s.ctx.Pending &^= 1 << uint(level)
}

/*
 * debug interface
 */

var regNames = []string{
	"pc", "pr", "sr", "gbr", "vbr", "mach", "macl",
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

func (s *SH4) NumRegs() int {
	return len(regNames)
}

func (s *SH4) ReadReg(n int) (string, uint64) {
	c := &s.ctx
	switch n {
	case 0:
		return "pc", uint64(c.PC)
	case 1:
		return "pr", uint64(c.PR)
	case 2:
		return "sr", uint64(c.SR)
	case 3:
		return "gbr", uint64(c.GBR)
	case 4:
		return "vbr", uint64(c.VBR)
	case 5:
		return "mach", uint64(c.MACH)
	case 6:
		return "macl", uint64(c.MACL)
	default:
		if n < len(regNames) {
			return regNames[n], uint64(c.R[n-7])
		}
	}
	return fmt.Sprintf("reg%d", n), 0
}

func (s *SH4) ReadMem(addr uint32, buf []byte) {
	for i := range buf {
		buf[i] = s.space.Read8(addr + uint32(i))
	}
}

func (s *SH4) Step() {
	s.Run(1000000000 / clockHz)
}
