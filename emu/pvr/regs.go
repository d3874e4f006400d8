package pvr

/*
 * Katana - PVR register definitions
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

// Core register byte offsets.
const (
	ID              = 0x0000
	REVISION        = 0x0004
	SOFTRESET       = 0x0008
	STARTRENDER     = 0x0014
	PARAM_BASE      = 0x0020
	REGION_BASE     = 0x002c
	VO_BORDER_COL   = 0x0040
	FB_R_CTRL       = 0x0044
	FB_W_CTRL       = 0x0048
	FB_W_LINESTRIDE = 0x004c
	FB_R_SOF1       = 0x0050
	FB_R_SOF2       = 0x0054
	FB_R_SIZE       = 0x005c
	FB_W_SOF1       = 0x0060
	FB_W_SOF2       = 0x0064
	FPU_SHAD_SCALE  = 0x0074
	FPU_PARAM_CFG   = 0x007c
	ISP_BACKGND_D   = 0x0088
	ISP_BACKGND_T   = 0x008c
	ISP_FEED_CFG    = 0x0098
	SPG_HBLANK_INT  = 0x00c8
	SPG_VBLANK_INT  = 0x00cc
	SPG_CONTROL     = 0x00d0
	SPG_HBLANK      = 0x00d4
	SPG_LOAD        = 0x00d8
	SPG_VBLANK      = 0x00dc
	SPG_WIDTH       = 0x00e0
	TEXT_CONTROL    = 0x00e4
	VO_CONTROL      = 0x00e8
	SCALER_CTL      = 0x00f4
	PAL_RAM_CTRL    = 0x0108
	SPG_STATUS      = 0x010c
	PT_ALPHA_REF    = 0x011c
	TA_OL_BASE      = 0x0124
	TA_ISP_BASE     = 0x0128
	TA_OL_LIMIT     = 0x012c
	TA_ISP_LIMIT    = 0x0130
	TA_LIST_INIT    = 0x0144
	TA_YUV_TEX_BASE = 0x0148
	TA_YUV_TEX_CTRL = 0x014c
	TA_YUV_TEX_CNT  = 0x0150
	TA_LIST_CONT    = 0x0160
)

func bitfield(v uint32, shift, width uint) uint32 {
	return (v >> shift) & ((1 << width) - 1)
}

func bit(v uint32, shift uint) bool {
	return v&(1<<shift) != 0
}

// Reg returns raw register storage.
func (p *PVR) Reg(offset uint32) uint32 {
	return p.reg[offset>>2]
}

func (p *PVR) setReg(offset uint32, v uint32) {
	p.reg[offset>>2] = v
}

// SPG_CONTROL fields.
func (p *PVR) spgInterlace() bool { return bit(p.Reg(SPG_CONTROL), 4) }
func (p *PVR) spgNTSC() bool      { return bit(p.Reg(SPG_CONTROL), 6) }
func (p *PVR) spgPAL() bool       { return bit(p.Reg(SPG_CONTROL), 7) }

// VO_CONTROL fields.
func (p *PVR) blankVideo() bool  { return bit(p.Reg(VO_CONTROL), 3) }
func (p *PVR) pixelDouble() bool { return bit(p.Reg(VO_CONTROL), 8) }

// SCALER_CTL fields.
func (p *PVR) scaleY() uint32        { return bitfield(p.Reg(SCALER_CTL), 0, 16) }
func (p *PVR) scaleX() bool          { return bit(p.Reg(SCALER_CTL), 16) }
func (p *PVR) scalerInterlace() bool { return bit(p.Reg(SCALER_CTL), 17) }

// FB_R_CTRL fields.
func (p *PVR) fbEnable() bool  { return bit(p.Reg(FB_R_CTRL), 0) }
func (p *PVR) fbDepth() uint32 { return bitfield(p.Reg(FB_R_CTRL), 2, 2) }
func (p *PVR) vclkDiv() bool   { return bit(p.Reg(FB_R_CTRL), 23) }

// FB_R_SIZE fields.
func (p *PVR) fbSizeX() uint32   { return bitfield(p.Reg(FB_R_SIZE), 0, 10) }
func (p *PVR) fbSizeY() uint32   { return bitfield(p.Reg(FB_R_SIZE), 10, 10) }
func (p *PVR) fbSizeMod() uint32 { return bitfield(p.Reg(FB_R_SIZE), 20, 10) }

// SPG_LOAD fields.
func (p *PVR) hcount() uint32 { return bitfield(p.Reg(SPG_LOAD), 0, 10) }
func (p *PVR) vcount() uint32 { return bitfield(p.Reg(SPG_LOAD), 16, 10) }

// SPG_HBLANK_INT fields.
func (p *PVR) lineCompVal() uint32    { return bitfield(p.Reg(SPG_HBLANK_INT), 0, 10) }
func (p *PVR) hblankIntMode() uint32  { return bitfield(p.Reg(SPG_HBLANK_INT), 12, 2) }

// SPG_VBLANK_INT fields.
func (p *PVR) vblankInLine() uint32  { return bitfield(p.Reg(SPG_VBLANK_INT), 0, 10) }
func (p *PVR) vblankOutLine() uint32 { return bitfield(p.Reg(SPG_VBLANK_INT), 16, 10) }

// SPG_VBLANK fields.
func (p *PVR) vbstart() uint32 { return bitfield(p.Reg(SPG_VBLANK), 0, 10) }
func (p *PVR) vbend() uint32   { return bitfield(p.Reg(SPG_VBLANK), 16, 10) }

// SPG_STATUS fields. Status is maintained by the scanline timer.
func (p *PVR) fieldnum() uint32 { return bitfield(p.Reg(SPG_STATUS), 10, 1) }
func (p *PVR) vsync() bool      { return bit(p.Reg(SPG_STATUS), 13) }

func (p *PVR) setSPGStatus(scanline uint32, fieldnum uint32, vsync bool) {
	v := scanline & 0x3ff
	v |= fieldnum << 10
	if vsync {
		v |= 1 << 13
	}
	p.setReg(SPG_STATUS, v)
}

// ISP_BACKGND_T fields.
func (p *PVR) bgTagOffset() uint32  { return bitfield(p.Reg(ISP_BACKGND_T), 0, 3) }
func (p *PVR) bgTagAddress() uint32 { return bitfield(p.Reg(ISP_BACKGND_T), 3, 21) }
func (p *PVR) bgSkip() uint32       { return bitfield(p.Reg(ISP_BACKGND_T), 24, 3) }
func (p *PVR) bgShadow() bool       { return bit(p.Reg(ISP_BACKGND_T), 27) }

// FPU_SHAD_SCALE fields.
func (p *PVR) intensityVolumeMode() bool { return bit(p.Reg(FPU_SHAD_SCALE), 8) }

// FPU_PARAM_CFG fields.
func (p *PVR) regionHeaderType() bool { return bit(p.Reg(FPU_PARAM_CFG), 21) }

// ISP_FEED_CFG fields.
func (p *PVR) presort() bool { return bit(p.Reg(ISP_FEED_CFG), 0) }

// TEXT_CONTROL fields.
func (p *PVR) textStride() uint32 { return bitfield(p.Reg(TEXT_CONTROL), 0, 5) }

// PAL_RAM_CTRL fields.
func (p *PVR) paletteFmt() uint32 { return bitfield(p.Reg(PAL_RAM_CTRL), 0, 2) }

// TA_YUV_TEX_CTRL fields.
func (p *PVR) yuvUSize() uint32  { return bitfield(p.Reg(TA_YUV_TEX_CTRL), 0, 6) }
func (p *PVR) yuvVSize() uint32  { return bitfield(p.Reg(TA_YUV_TEX_CTRL), 8, 6) }
func (p *PVR) yuvTex() uint32    { return bitfield(p.Reg(TA_YUV_TEX_CTRL), 16, 1) }
func (p *PVR) yuvFormat() uint32 { return bitfield(p.Reg(TA_YUV_TEX_CTRL), 24, 1) }
