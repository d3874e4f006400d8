package ta

/*
 * Katana - PCW table tests
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

func pcwFor(para, list int, bits uint32) PCW {
	return PCW(uint32(para)<<29 | uint32(list)<<24 | bits)
}

func TestParamSizes(t *testing.T) {
	tests := []struct {
		name     string
		pcw      PCW
		vertType int
		want     int
	}{
		{"end of list", pcwFor(ParamEndOfList, 0, 0), NumVerts, 32},
		{"user tile clip", pcwFor(ParamUserTileClip, 0, 0), NumVerts, 32},
		{"sprite", pcwFor(ParamSprite, 0, 0), NumVerts, 32},
		{"flat poly", pcwFor(ParamPolyOrVol, 0, 0), NumVerts, 32},
		{"volume col2 poly", pcwFor(ParamPolyOrVol, 0, 1<<6|2<<4), NumVerts, 64},
		{"vertex type 0", pcwFor(ParamVertex, 0, 0), 0, 32},
		{"vertex type 5", pcwFor(ParamVertex, 0, 0), 5, 64},
		{"vertex type 11", pcwFor(ParamVertex, 0, 0), 11, 64},
		{"modvol vertex", pcwFor(ParamVertex, 0, 0), 17, 64},
	}

	for _, test := range tests {
		if got := ParamSize(test.pcw, test.vertType); got != test.want {
			t.Errorf("%s: param size got %d expected %d", test.name, got, test.want)
		}
	}
}

func TestPolyTypes(t *testing.T) {
	tests := []struct {
		name string
		pcw  PCW
		want int
	}{
		{"modvol list", pcwFor(ParamPolyOrVol, ListOpaqueModVol, 0), 6},
		{"sprite", pcwFor(ParamSprite, ListOpaque, 0), 5},
		{"volume packed", pcwFor(ParamPolyOrVol, ListOpaque, 1<<6), 3},
		{"volume col2", pcwFor(ParamPolyOrVol, ListOpaque, 1<<6|2<<4), 4},
		{"packed color", pcwFor(ParamPolyOrVol, ListOpaque, 0), 0},
		{"intensity textured", pcwFor(ParamPolyOrVol, ListOpaque, 2<<4|1<<3), 1},
		{"intensity textured offset", pcwFor(ParamPolyOrVol, ListOpaque, 2<<4|1<<3|1<<2), 2},
	}

	for _, test := range tests {
		if got := PolyType(test.pcw); got != test.want {
			t.Errorf("%s: poly type got %d expected %d", test.name, got, test.want)
		}
	}
}

func TestVertTypes(t *testing.T) {
	tests := []struct {
		name string
		pcw  PCW
		want int
	}{
		{"modvol list", pcwFor(ParamVertex, ListTranslucentModVol, 0), 17},
		{"textured sprite", pcwFor(ParamSprite, ListOpaque, 1<<3), 16},
		{"plain sprite", pcwFor(ParamSprite, ListOpaque, 0), 15},
		{"packed", pcwFor(ParamVertex, ListOpaque, 0), 0},
		{"floating", pcwFor(ParamVertex, ListOpaque, 1<<4), 1},
		{"textured packed", pcwFor(ParamVertex, ListOpaque, 1<<3), 3},
		{"textured packed uv16", pcwFor(ParamVertex, ListOpaque, 1<<3|1), 4},
		{"volume packed", pcwFor(ParamVertex, ListOpaque, 1<<6), 9},
		{"volume textured col2 uv16", pcwFor(ParamVertex, ListOpaque, 1<<6|2<<4|1<<3|1), 14},
	}

	for _, test := range tests {
		if got := VertType(test.pcw); got != test.want {
			t.Errorf("%s: vertex type got %d expected %d", test.name, got, test.want)
		}
	}
}

func TestTextureHelpers(t *testing.T) {
	// 64x32 RGB565, scan order, no mipmaps.
	tsp := TSP(3<<3 | 2)
	tcw := TCW(uint32(PixelRGB565)<<27 | 1<<26 | 0x100)

	if TextureTwiddled(tcw) {
		t.Errorf("scan order texture reported twiddled")
	}
	if w := TextureWidth(tsp, tcw); w != 64 {
		t.Errorf("texture width got %d expected 64", w)
	}
	if h := TextureHeight(tsp, tcw); h != 32 {
		t.Errorf("texture height got %d expected 32", h)
	}

	addr, size := TextureAddrSize(tsp, tcw)
	if addr != 0x100<<3 {
		t.Errorf("texture addr got 0x%x expected 0x%x", addr, 0x100<<3)
	}
	if size != 64*32*2 {
		t.Errorf("texture size got %d expected %d", size, 64*32*2)
	}

	// Paletted textures are twiddled regardless of scan order, and
	// mipmapped sizes sum every level.
	ptcw := TCW(uint32(Pixel4BPP)<<27 | 1<<31 | 5<<21)
	ptsp := TSP(0) // 8x8

	if !TextureTwiddled(ptcw) {
		t.Errorf("paletted texture not twiddled")
	}
	if !TextureMipMapped(ptcw) {
		t.Errorf("mip bit not honored")
	}

	_, psize := TextureAddrSize(ptsp, ptcw)
	want := 0
	for level := 0; level <= 3; level++ {
		side := 8 >> level
		want += side * side * 4 / 8
	}
	if psize != want {
		t.Errorf("mipmap texture size got %d expected %d", psize, want)
	}

	palAddr, palSize := PaletteAddrSize(ptcw)
	if palAddr != 5<<6 || palSize != 64 {
		t.Errorf("4bpp palette got addr 0x%x size %d expected 0x%x 64", palAddr, palSize, 5<<6)
	}

	tcw8 := TCW(uint32(Pixel8BPP)<<27 | 0x30<<21)
	palAddr, palSize = PaletteAddrSize(tcw8)
	if palAddr != (0x30>>4)<<10 || palSize != 1024 {
		t.Errorf("8bpp palette got addr 0x%x size %d", palAddr, palSize)
	}

	// VQ compression adds the codebook.
	vq := TCW(uint32(PixelRGB565)<<27 | 1<<26 | 1<<30)
	_, vqSize := TextureAddrSize(TSP(0), vq)
	if vqSize != codebookSize+8*8*2 {
		t.Errorf("vq texture size got %d expected %d", vqSize, codebookSize+8*8*2)
	}
}
