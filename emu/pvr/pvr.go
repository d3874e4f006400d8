package pvr

/*
 * Katana - PVR raster back-end state
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
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/tswindell/katana/emu/device"
	"github.com/tswindell/katana/emu/holly"
	"github.com/tswindell/katana/emu/memory"
	"github.com/tswindell/katana/emu/sched"
	"github.com/tswindell/katana/util/fatal"
)

// The final accumulation buffer is rendered by the host rather than read
// back out of texture memory, which breaks programs that write to the
// framebuffer directly. Each framebuffer is marked with a cookie at
// STARTRENDER; if the cookie is gone at vblank the memory was written
// directly and is converted and pushed to the host as raw pixels.
const fbCookie = 0xdeadbeef

const (
	vramSize    = 0x00800000
	paletteSize = 0x1000
)

// VRAM64 converts a 32-bit access path address to its interleaved 64-bit
// path equivalent, which is the layout video ram is stored in.
func VRAM64(addr32 uint32) uint32 {
	const bankBit = uint32(0x00400000)
	bank := addr32 & bankBit
	offset := addr32 & (bankBit - 1)
	return ((offset &^ 0x3) << 1) | (bank >> 20) | (offset & 0x3)
}

// TileAccel is the slice of the TA the PVR registers drive. Resolved by
// name at init.
type TileAccel interface {
	ListInit()
	ListCont()
	StartRender()
	YUVInit()
	SoftReset()
}

// Client carries the host callbacks the PVR raises.
type Client struct {
	PushPixels func(rgb []byte, w, h int)
	VBlankIn   func(videoDisabled bool)
	VBlankOut  func()
}

type regCB struct {
	read  func() uint32
	write func(value uint32)
}

// PVR holds the raster back-end register state, palette RAM and the sync
// pulse generator timing.
type PVR struct {
	mem    *memory.Memory
	sch    *sched.Scheduler
	hly    *holly.Holly
	ta     TileAccel
	client Client

	reg     [0x1000 / 4]uint32
	cb      map[uint32]regCB
	palette [paletteSize]byte

	vram        []byte
	vramRegion  *memory.Region
	vram64Reg   *memory.Region
	vram32Reg   *memory.Region

	// Write hooks consulted by the texture cache's write watches.
	vramWriteHook    func(offset uint32, size int)
	paletteWriteHook func(offset uint32, size int)

	lineClock      int
	currentLine    uint32
	lineTimer      *sched.Timer
	gotStartRender bool

	framebuffer []byte
}

func New(mem *memory.Memory, sch *sched.Scheduler, hly *holly.Holly) *PVR {
	p := &PVR{
		mem:         mem,
		sch:         sch,
		hly:         hly,
		cb:          make(map[uint32]regCB),
		framebuffer: make([]byte, 1280*960*3),
	}

	p.vramRegion = mem.CreatePhysicalRegion("video ram", vramSize)

	// Texture cache invalidation watches only the canonical 64-bit path
	// addresses, so vram is never reached through fastmem. Both access
	// paths dispatch through handlers.
	p.vram64Reg = mem.CreateMMIORegion("pvr vram64", vramSize, memory.MMIOHandlers{
		Read8:      func(addr uint32) uint8 { return p.vram[addr] },
		Read16:     func(addr uint32) uint16 { return binary.LittleEndian.Uint16(p.vram[addr:]) },
		Read32:     func(addr uint32) uint32 { return binary.LittleEndian.Uint32(p.vram[addr:]) },
		ReadBlock:  func(dst []byte, src uint32) { copy(dst, p.vram[src:]) },
		Write8:     func(addr uint32, v uint8) { p.vram[addr] = v; p.vramWritten(addr, 1) },
		Write16:    func(addr uint32, v uint16) { binary.LittleEndian.PutUint16(p.vram[addr:], v); p.vramWritten(addr, 2) },
		Write32:    func(addr uint32, v uint32) { binary.LittleEndian.PutUint32(p.vram[addr:], v); p.vramWritten(addr, 4) },
		WriteBlock: func(dst uint32, src []byte) { copy(p.vram[dst:], src); p.vramWritten(dst, len(src)) },
	})

	p.vram32Reg = mem.CreateMMIORegion("pvr vram32", vramSize, memory.MMIOHandlers{
		Read8:  func(addr uint32) uint8 { return p.vram[VRAM64(addr)] },
		Read16: func(addr uint32) uint16 { return binary.LittleEndian.Uint16(p.vram[VRAM64(addr):]) },
		Read32: func(addr uint32) uint32 { return binary.LittleEndian.Uint32(p.vram[VRAM64(addr):]) },
		ReadBlock: func(dst []byte, src uint32) {
			if len(dst)%4 != 0 {
				panic("vram32 block read not a multiple of 4")
			}
			for i := 0; i < len(dst); i += 4 {
				copy(dst[i:i+4], p.vram[VRAM64(src+uint32(i)):])
			}
		},
		Write8: func(addr uint32, v uint8) {
			a := VRAM64(addr)
			p.vram[a] = v
			p.vramWritten(a, 1)
		},
		Write16: func(addr uint32, v uint16) {
			a := VRAM64(addr)
			binary.LittleEndian.PutUint16(p.vram[a:], v)
			p.vramWritten(a, 2)
		},
		Write32: func(addr uint32, v uint32) {
			a := VRAM64(addr)
			binary.LittleEndian.PutUint32(p.vram[a:], v)
			p.vramWritten(a, 4)
		},
		WriteBlock: func(dst uint32, src []byte) {
			if len(src)%4 != 0 {
				panic("vram32 block write not a multiple of 4")
			}
			for i := 0; i < len(src); i += 4 {
				a := VRAM64(dst + uint32(i))
				copy(p.vram[a:a+4], src[i:i+4])
				p.vramWritten(a, 4)
			}
		},
	})

	// Registers with side effects. Everything else is plain storage.
	p.registerWrite(SOFTRESET, func(v uint32) {
		if v&0x1 != 0 {
			p.ta.SoftReset()
		}
	})
	p.registerWrite(STARTRENDER, func(v uint32) {
		if v == 0 {
			return
		}
		p.ta.StartRender()
		p.markFramebuffer(p.Reg(FB_W_SOF1))
		p.markFramebuffer(p.Reg(FB_W_SOF2))
		p.gotStartRender = true
	})
	p.registerWrite(TA_LIST_INIT, func(v uint32) {
		if v&0x80000000 != 0 {
			p.ta.ListInit()
		}
	})
	p.registerWrite(TA_LIST_CONT, func(v uint32) {
		if v&0x80000000 != 0 {
			p.ta.ListCont()
		}
	})
	p.registerWrite(TA_YUV_TEX_BASE, func(v uint32) {
		p.setReg(TA_YUV_TEX_BASE, v)
		p.ta.YUVInit()
	})
	p.registerWrite(SPG_LOAD, func(v uint32) {
		p.setReg(SPG_LOAD, v)
		p.reconfigureSPG()
	})
	p.registerWrite(FB_R_CTRL, func(v uint32) {
		p.setReg(FB_R_CTRL, v)
		p.reconfigureSPG()
	})

	// Power-on defaults.
	p.setReg(ID, 0x17fd11db)
	p.setReg(REVISION, 0x00000011)
	p.setReg(SPG_CONTROL, 0x00000040)           // NTSC
	p.setReg(SPG_LOAD, (0x0106<<16)|0x0359)     // 263 lines, 858 pixels
	p.setReg(SPG_VBLANK_INT, (0x0150<<16)|0x0104)
	p.setReg(SPG_VBLANK, (0x0150<<16)|0x0104)
	p.setReg(SCALER_CTL, 0x00000400) // 1.0 in 6.10

	return p
}

func (p *PVR) registerWrite(offset uint32, write func(uint32)) {
	cb := p.cb[offset]
	cb.write = write
	p.cb[offset] = cb
}

func (p *PVR) Name() string {
	return "pvr"
}

func (p *PVR) SetClient(c Client) {
	p.client = c
}

func (p *PVR) Init(m device.Lookup) error {
	ta, ok := m.Device("ta").(TileAccel)
	if !ok {
		return fmt.Errorf("pvr: no ta device")
	}
	p.ta = ta

	p.vram = p.mem.Translate("video ram", 0)

	p.reconfigureSPG()

	return nil
}

func (p *PVR) Shutdown() {
	if p.lineTimer != nil {
		p.sch.CancelTimer(p.lineTimer)
		p.lineTimer = nil
	}
}

// InstallMap places video ram and its two access paths. The map is mounted
// by the SH-4 at area 1.
func (p *PVR) InstallMap(m device.Lookup, am *memory.AddressMap) {
	am.Mount(p.vramRegion, vramSize, 0x00000000, 0xffffffff)
	am.Handle(p.vram64Reg, vramSize, 0x00000000, 0xffffffff)
	am.Handle(p.vram32Reg, vramSize, 0x01000000, 0xffffffff)
}

// VRAM exposes the 64-bit path view of video ram.
func (p *PVR) VRAM() []byte {
	return p.vram
}

// Palette exposes palette RAM.
func (p *PVR) Palette() []byte {
	return p.palette[:]
}

// SetVRAMWriteHook installs the texture cache's write watch for video ram.
func (p *PVR) SetVRAMWriteHook(hook func(offset uint32, size int)) {
	p.vramWriteHook = hook
}

// SetPaletteWriteHook installs the texture cache's write watch for palette
// RAM.
func (p *PVR) SetPaletteWriteHook(hook func(offset uint32, size int)) {
	p.paletteWriteHook = hook
}

func (p *PVR) vramWritten(offset uint32, size int) {
	if p.vramWriteHook != nil {
		p.vramWriteHook(offset, size)
	}
}

// RegRead32 dispatches a read of the PVR register window. Offsets below
// 0x1000 are core registers, the rest is palette RAM.
func (p *PVR) RegRead32(offset uint32) uint32 {
	if offset >= 0x1000 {
		return binary.LittleEndian.Uint32(p.palette[offset-0x1000:])
	}

	if cb, ok := p.cb[offset]; ok && cb.read != nil {
		return cb.read()
	}
	return p.reg[offset>>2]
}

// RegWrite32 dispatches a write of the PVR register window.
func (p *PVR) RegWrite32(offset uint32, v uint32) {
	if offset >= 0x1000 {
		off := offset - 0x1000
		binary.LittleEndian.PutUint32(p.palette[off:], v)
		if p.paletteWriteHook != nil {
			p.paletteWriteHook(off, 4)
		}
		return
	}

	// The ID register is read-only. The bios fails to boot if a write
	// goes through to it.
	if offset == ID {
		return
	}

	if cb, ok := p.cb[offset]; ok && cb.write != nil {
		cb.write(v)
		return
	}
	p.reg[offset>>2] = v
}

/*
 * state exported to the TA's render context capture
 */

func (p *PVR) ParamBase() uint32 {
	return p.Reg(PARAM_BASE)
}

func (p *PVR) ISPBase() uint32 {
	return p.Reg(TA_ISP_BASE)
}

func (p *PVR) RegionBase() uint32 {
	return p.Reg(REGION_BASE)
}

func (p *PVR) RegionHeaderType() bool {
	return p.regionHeaderType()
}

func (p *PVR) Presort() bool {
	return p.presort()
}

// StrideBytes returns the texture stride in bytes.
func (p *PVR) StrideBytes() int {
	return int(p.textStride()) * 32
}

func (p *PVR) PaletteFormat() uint32 {
	return p.paletteFmt()
}

func (p *PVR) BgDepth() float32 {
	return math.Float32frombits(p.Reg(ISP_BACKGND_D))
}

func (p *PVR) PTAlphaRef() uint32 {
	return p.Reg(PT_ALPHA_REF)
}

func (p *PVR) BgTag() (tagOffset, tagAddress, skip uint32, shadow bool) {
	return p.bgTagOffset(), p.bgTagAddress(), p.bgSkip(), p.bgShadow()
}

func (p *PVR) IntensityVolumeMode() bool {
	return p.intensityVolumeMode()
}

func (p *PVR) YUVTexBase() uint32 {
	return p.Reg(TA_YUV_TEX_BASE)
}

func (p *PVR) YUVSize() (uSize, vSize int) {
	return int(p.yuvUSize()) + 1, int(p.yuvVSize()) + 1
}

func (p *PVR) YUVFormat() (format, tex uint32) {
	return p.yuvFormat(), p.yuvTex()
}

func (p *PVR) YUVCount() int {
	return int(p.Reg(TA_YUV_TEX_CNT))
}

func (p *PVR) SetYUVCount(n int) {
	p.setReg(TA_YUV_TEX_CNT, uint32(n))
}

// VideoSize derives the current output resolution from the SPG, video
// output and scaler state.
func (p *PVR) VideoSize() (w, h int) {
	vgaMode := !p.spgNTSC() && !p.spgPAL() && !p.spgInterlace()

	if vgaMode {
		w, h = 640, 480
	} else {
		w, h = 640, 240
	}

	if p.pixelDouble() {
		w /= 2
	}

	if p.spgInterlace() {
		h *= 2
	}

	// scale_x signals that the framebuffer is stored at half width; undo
	// it by scaling up the projected width.
	if p.scaleX() {
		w *= 2
	}

	// scale_y is a 6.10 fixed-point scaler, ignored when the scaler is
	// interlacing.
	if !p.scalerInterlace() {
		h = (h * int(p.scaleY())) >> 10
	}

	return w, h
}

/*
 * sync pulse generator
 */

func (p *PVR) reconfigureSPG() {
	pixelClock := 13500000
	if p.vclkDiv() {
		pixelClock *= 2
	}

	// hcount is the number of pixel clock cycles per line minus one.
	p.lineClock = pixelClock / (int(p.hcount()) + 1)
	if p.spgInterlace() {
		p.lineClock *= 2
	}

	mode := "VGA"
	if p.spgNTSC() {
		mode = "NTSC"
	} else if p.spgPAL() {
		mode = "PAL"
	}

	slog.Debug("pvr spg reconfigured",
		"mode", mode,
		"pixel_clock", pixelClock,
		"line_clock", p.lineClock,
		"vcount", p.vcount(),
		"hcount", p.hcount(),
		"interlace", p.spgInterlace())

	if p.lineTimer != nil {
		p.sch.CancelTimer(p.lineTimer)
		p.lineTimer = nil
	}
	p.lineTimer = p.sch.StartTimer(p.nextScanline, nil, hzToNano(p.lineClock))
}

func hzToNano(hz int) int64 {
	return int64(1000000000 / int64(hz))
}

func (p *PVR) nextScanline(any) {
	numLines := p.vcount() + 1
	p.currentLine = (p.currentLine + 1) % numLines

	switch p.hblankIntMode() {
	case 0:
		if p.currentLine == p.lineCompVal() {
			p.hly.RaiseInterrupt(holly.IntHBlank)
		}
	case 2:
		p.hly.RaiseInterrupt(holly.IntHBlank)
	default:
		fatal.Fatalf("unsupported hblank interrupt mode %d", p.hblankIntMode())
	}

	if p.currentLine == p.vblankInLine() {
		p.hly.RaiseInterrupt(holly.IntVBlankIn)
	}
	if p.currentLine == p.vblankOutLine() {
		p.hly.RaiseInterrupt(holly.IntVBlankOut)
	}

	wasVsync := p.vsync()
	var vsync bool
	if p.vbstart() < p.vbend() {
		vsync = p.currentLine >= p.vbstart() && p.currentLine < p.vbend()
	} else {
		vsync = p.currentLine >= p.vbstart() || p.currentLine < p.vbend()
	}

	fieldnum := p.fieldnum()
	if !wasVsync && vsync {
		// Entering the blanking period.
		if !p.gotStartRender {
			// STARTRENDER never arrived this frame; the guest may
			// have written the framebuffer directly.
			p.updateFramebuffer()
		} else {
			p.gotStartRender = false
		}

		if p.spgInterlace() {
			fieldnum ^= 1
		} else {
			fieldnum = 0
		}

		if p.client.VBlankIn != nil {
			p.client.VBlankIn(p.blankVideo())
		}
	}
	p.setSPGStatus(p.currentLine, fieldnum, vsync)

	if wasVsync && !vsync {
		if p.client.VBlankOut != nil {
			p.client.VBlankOut()
		}
	}

	p.lineTimer = p.sch.StartTimer(p.nextScanline, nil, hzToNano(p.lineClock))
}

/*
 * direct framebuffer access
 */

func (p *PVR) fbRead32(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(p.vram[VRAM64(addr):])
}

func (p *PVR) fbWrite32(addr uint32, v uint32) {
	binary.LittleEndian.PutUint32(p.vram[VRAM64(addr):], v)
}

func (p *PVR) testFramebuffer(addr uint32) bool {
	return p.fbRead32(addr) != fbCookie
}

// markFramebuffer writes the cookie at every plausible field start for the
// written framebuffer, so vblank can tell renderer output from direct
// writes.
func (p *PVR) markFramebuffer(addr uint32) {
	// Skip framebuffers being used as textures.
	if addr&0x01000000 != 0 {
		return
	}

	p.fbWrite32(addr, fbCookie)

	// Next frame this framebuffer could be read as field 2, offset one
	// line from the start.
	lineWidths := []uint32{320, 640}
	lineBpps := []uint32{2, 3, 4}
	lineScales := []uint32{1, 2}

	for _, w := range lineWidths {
		for _, bpp := range lineBpps {
			for _, scale := range lineScales {
				p.fbWrite32(addr+w*bpp*scale, fbCookie)
			}
		}
	}
}

// updateFramebuffer converts a directly-written framebuffer to 24-bit RGB
// and pushes it to the host.
func (p *PVR) updateFramebuffer() {
	fields := [2]uint32{p.Reg(FB_R_SOF1), p.Reg(FB_R_SOF2)}
	numFields := 1
	if p.spgInterlace() {
		numFields = 2
	}
	field := p.fieldnum()

	if !p.fbEnable() {
		return
	}

	// Nothing to do if the framebuffer was never written to.
	if !p.testFramebuffer(fields[field]) {
		return
	}

	// FB_R_SIZE values are in 32-bit units.
	lineMod := int(p.fbSizeMod())<<2 - 4
	xSize := int(p.fbSizeX()+1) << 2
	ySize := int(p.fbSizeY() + 1)

	w := int(p.fbSizeX() + 1)
	h := ySize
	if p.spgInterlace() {
		h *= 2
	}

	dst := p.framebuffer
	di := 0

	switch p.fbDepth() {
	case 0, 1:
		// 16-bit pixels; FB_R_SIZE.x counts 32-bit units.
		w *= 2

		for y := 0; y < ySize; y++ {
			for n := 0; n < numFields; n++ {
				for x := 0; x < xSize; x += 2 {
					rgb := binary.LittleEndian.Uint16(p.vram[VRAM64(fields[n]):])
					dst[di+0] = uint8((rgb & 0b1111100000000000) >> 8)
					dst[di+1] = uint8((rgb & 0b0000011111100000) >> 3)
					dst[di+2] = uint8((rgb & 0b0000000000011111) << 3)
					fields[n] += 2
					di += 3
				}
				fields[n] += uint32(lineMod)
			}
		}
	case 2:
		for y := 0; y < ySize; y++ {
			for n := 0; n < numFields; n++ {
				for x := 0; x < xSize; x += 3 {
					a := VRAM64(fields[n])
					dst[di+0] = p.vram[a+2]
					dst[di+1] = p.vram[a+1]
					dst[di+2] = p.vram[a+0]
					fields[n] += 3
					di += 3
				}
				fields[n] += uint32(lineMod)
			}
		}
	case 3:
		for y := 0; y < ySize; y++ {
			for n := 0; n < numFields; n++ {
				for x := 0; x < xSize; x += 4 {
					a := VRAM64(fields[n])
					dst[di+0] = p.vram[a+2]
					dst[di+1] = p.vram[a+1]
					dst[di+2] = p.vram[a+0]
					fields[n] += 4
					di += 3
				}
				fields[n] += uint32(lineMod)
			}
		}
	default:
		fatal.Fatalf("unexpected fb_depth %d", p.fbDepth())
	}

	if p.client.PushPixels != nil {
		p.client.PushPixels(dst[:di], w, h)
	}
}
