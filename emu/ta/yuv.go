package ta

/*
 * Katana - YUV420 to UYVY422 conversion
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
	"github.com/tswindell/katana/emu/holly"
	"github.com/tswindell/katana/util/fatal"
)

const (
	yuv420MacroblockSize = 384
	yuv422MacroblockSize = 512
)

// yuvReset latches the converter state from the YUV registers and resets
// the macroblock counter.
func (t *TA) yuvReset() {
	format, tex := t.pvr.YUVFormat()

	// FIXME only YUV420 -> YUV422 into a single texture supported.
	if format != 0 {
		fatal.Fatalf("unsupported ta yuv format %d", format)
	}
	if tex != 0 {
		fatal.Fatalf("unsupported ta yuv tex mode %d", tex)
	}

	uSize, vSize := t.pvr.YUVSize()

	t.yuvBase = t.pvr.YUVTexBase()
	t.yuvWidth = uSize * 16
	t.yuvHeight = vSize * 16
	t.yuvMacroblockSize = yuv420MacroblockSize
	t.yuvMacroblockCount = uSize * vSize

	t.pvr.SetYUVCount(0)
}

// yuvProcessBlock reencodes one 8x8 subblock of YUV420 data as UYVY422.
// The in slices address the U plane (with V at +64) and the Y plane; out is
// positioned at the subblock's top-left output pixel.
func (t *TA) yuvProcessBlock(inUV, inY, out []byte) {
	r0 := 0
	r1 := t.yuvWidth << 1
	uv := 0
	y := 0

	for j := 0; j < 8; j += 2 {
		for i := 0; i < 8; i += 2 {
			u := inUV[uv]
			v := inUV[uv+64]
			y0 := inY[y]
			y1 := inY[y+1]
			y2 := inY[y+8]
			y3 := inY[y+9]

			out[r0+0] = u
			out[r0+1] = y0
			out[r0+2] = v
			out[r0+3] = y1

			out[r1+0] = u
			out[r1+1] = y2
			out[r1+2] = v
			out[r1+3] = y3

			uv++
			y += 2
			r0 += 4
			r1 += 4
		}

		// Skip past the adjacent 8x8 subblock.
		uv += 4
		y += 8
		r0 += (t.yuvWidth << 2) - 16
		r1 += (t.yuvWidth << 2) - 16
	}
}

// yuvProcessMacroblock consumes one 16x16 YUV420 macroblock and writes it
// into the UYVY422 texture at TA_YUV_TEX_BASE. Once all macroblocks of the
// batch are converted, the completion interrupt is raised and the counter
// reset.
func (t *TA) yuvProcessMacroblock(in []byte) {
	uSize, _ := t.pvr.YUVSize()
	num := t.pvr.YUVCount()

	outX := (num % uSize) * 16
	outY := (num / uSize) * 16
	out := t.vram[t.yuvBase+uint32((outY*t.yuvWidth+outX)<<1):]

	// The four 8x8 subblocks: UV plane offsets 0/4/32/36, Y plane offsets
	// 128/192/256/320.
	t.yuvProcessBlock(in[0:], in[128:], out[0:])
	t.yuvProcessBlock(in[4:], in[192:], out[16:])
	t.yuvProcessBlock(in[32:], in[256:], out[t.yuvWidth*16:])
	t.yuvProcessBlock(in[36:], in[320:], out[t.yuvWidth*16+16:])

	num++
	t.pvr.SetYUVCount(num)

	if num >= t.yuvMacroblockCount {
		t.yuvReset()
		t.hly.RaiseInterrupt(holly.IntYUVDone)
	}
}
