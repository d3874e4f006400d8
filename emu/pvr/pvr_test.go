package pvr

/*
 * Katana - PVR tests
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
	"testing"
)

func TestVRAM64(t *testing.T) {
	tests := []struct {
		addr32 uint32
		want   uint32
	}{
		{0x00000000, 0x00000000},
		{0x00000004, 0x00000008},
		{0x00000008, 0x00000010},
		{0x00400000, 0x00000004},
		{0x00400004, 0x0000000c},
		{0x00000003, 0x00000003},
		{0x00400003, 0x00000007},
	}

	for _, test := range tests {
		if got := VRAM64(test.addr32); got != test.want {
			t.Errorf("VRAM64(0x%08x) got 0x%08x expected 0x%08x", test.addr32, got, test.want)
		}
	}
}

// Video size derivation per the SPG / scaler rules.
func TestVideoSize(t *testing.T) {
	const (
		ntsc        = 1 << 6
		pal         = 1 << 7
		interlace   = 1 << 4
		pixelDouble = 1 << 8
		scaleX      = 1 << 16
		scalerInt   = 1 << 17
		unityScale  = 0x400
	)

	tests := []struct {
		name    string
		spg     uint32
		vo      uint32
		scaler  uint32
		w, h    int
	}{
		{"vga", 0, 0, unityScale, 640, 480},
		{"ntsc progressive", ntsc, 0, unityScale, 640, 240},
		{"ntsc interlaced", ntsc | interlace, 0, unityScale | scalerInt, 640, 480},
		{"pal progressive", pal, 0, unityScale, 640, 240},
		{"pixel double", ntsc, pixelDouble, unityScale, 320, 240},
		{"scale x", ntsc, 0, unityScale | scaleX, 1280, 240},
		{"half scale y", ntsc, 0, 0x200, 640, 120},
	}

	for _, test := range tests {
		p := &PVR{}
		p.setReg(SPG_CONTROL, test.spg)
		p.setReg(VO_CONTROL, test.vo)
		p.setReg(SCALER_CTL, test.scaler)

		w, h := p.VideoSize()
		if w != test.w || h != test.h {
			t.Errorf("%s: video size got %dx%d expected %dx%d", test.name, w, h, test.w, test.h)
		}
	}
}

func TestRegisterFields(t *testing.T) {
	p := &PVR{}

	p.setReg(ISP_BACKGND_T, 5|0x1234<<3|2<<24|1<<27)
	tagOffset, tagAddress, skip, shadow := p.BgTag()
	if tagOffset != 5 || tagAddress != 0x1234 || skip != 2 || !shadow {
		t.Errorf("ISP_BACKGND_T fields got %d 0x%x %d %v", tagOffset, tagAddress, skip, shadow)
	}

	p.setReg(TEXT_CONTROL, 5)
	if p.StrideBytes() != 160 {
		t.Errorf("texture stride got %d expected 160", p.StrideBytes())
	}

	p.setReg(TA_YUV_TEX_CTRL, 3|2<<8)
	u, v := p.YUVSize()
	if u != 4 || v != 3 {
		t.Errorf("yuv size got %dx%d expected 4x3", u, v)
	}
}
