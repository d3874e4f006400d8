package ta

/*
 * Katana - TA parameter control word tables
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

// Parameter types (PCW bits 31:29).
const (
	ParamEndOfList = iota
	ParamUserTileClip
	ParamObjListSet
	ParamReserved0
	ParamPolyOrVol
	ParamSprite
	ParamReserved1
	ParamVertex

	NumParams
)

// List types (PCW bits 26:24).
const (
	ListOpaque = iota
	ListOpaqueModVol
	ListTranslucent
	ListTranslucentModVol
	ListPunchThrough

	NumLists
)

// Vertex parameter layouts.
const NumVerts = 18

// PCW is the parameter control word leading every TA command.
type PCW uint32

func (p PCW) UV16Bit() bool  { return p&(1<<0) != 0 }
func (p PCW) Gouraud() bool  { return p&(1<<1) != 0 }
func (p PCW) Offset() bool   { return p&(1<<2) != 0 }
func (p PCW) Texture() bool  { return p&(1<<3) != 0 }
func (p PCW) ColType() int   { return int(p>>4) & 3 }
func (p PCW) Volume() bool   { return p&(1<<6) != 0 }
func (p PCW) Shadow() bool   { return p&(1<<7) != 0 }
func (p PCW) ListType() int  { return int(p>>24) & 7 }
func (p PCW) ParaType() int  { return int(p>>29) & 7 }

// TSP is the texture and shading processor word of a poly parameter.
type TSP uint32

func (t TSP) TextureVSize() int { return int(t) & 7 }
func (t TSP) TextureUSize() int { return int(t>>3) & 7 }

// TCW is the texture control word of a poly parameter.
type TCW uint32

// Pixel formats (TCW bits 29:27).
const (
	PixelARGB1555 = iota
	PixelRGB565
	PixelARGB4444
	PixelYUV422
	PixelBump
	Pixel4BPP
	Pixel8BPP
	PixelReserved
)

func (t TCW) TextureAddr() uint32     { return uint32(t) & 0x1fffff }
func (t TCW) PaletteSelector() uint32 { return uint32(t>>21) & 0x3f }
func (t TCW) StrideSelect() bool      { return t&(1<<25) != 0 }
func (t TCW) ScanOrder() bool         { return t&(1<<26) != 0 }
func (t TCW) PixelFormat() int        { return int(t>>27) & 7 }
func (t TCW) VQCompressed() bool      { return t&(1<<30) != 0 }
func (t TCW) MipMapped() bool         { return t&(1<<31) != 0 }

// The poly type, vertex type and command size are all derived from the PCW.
// They're needed for every 32 bytes of the stream, so they're precomputed
// into tables keyed by the PCW's low byte plus the parameter type, and the
// current list type (poly / vertex type) or established vertex type (size).
// The vertex key space includes NumVerts itself, the "no vertex type
// established" state a fresh context starts in.
const numVertKeys = NumVerts + 1

var (
	paramSizes [0x100 * NumParams * numVertKeys]int
	polyTypes  [0x100 * NumParams * NumLists]int
	vertTypes  [0x100 * NumParams * NumLists]int
)

// See "57.1.1.2 Parameter Combinations" for the poly type layouts.
func polyTypeRaw(pcw PCW) int {
	if pcw.ListType() == ListOpaqueModVol || pcw.ListType() == ListTranslucentModVol {
		return 6
	}

	if pcw.ParaType() == ParamSprite {
		return 5
	}

	if pcw.Volume() {
		switch pcw.ColType() {
		case 0, 3:
			return 3
		case 2:
			return 4
		}
	}

	switch {
	case pcw.ColType() == 0 || pcw.ColType() == 1 || pcw.ColType() == 3:
		return 0
	case pcw.ColType() == 2 && pcw.Texture() && !pcw.Offset():
		return 1
	case pcw.ColType() == 2 && pcw.Texture() && pcw.Offset():
		return 2
	case pcw.ColType() == 2 && !pcw.Texture():
		return 1
	}

	return 0
}

// See "57.1.1.2 Parameter Combinations" for the vertex type layouts.
func vertTypeRaw(pcw PCW) int {
	if pcw.ListType() == ListOpaqueModVol || pcw.ListType() == ListTranslucentModVol {
		return 17
	}

	if pcw.ParaType() == ParamSprite {
		if pcw.Texture() {
			return 16
		}
		return 15
	}

	uv := func(with16, without int) int {
		if pcw.UV16Bit() {
			return with16
		}
		return without
	}

	if pcw.Volume() {
		if pcw.Texture() {
			switch pcw.ColType() {
			case 0:
				return uv(12, 11)
			case 2, 3:
				return uv(14, 13)
			}
		}

		switch pcw.ColType() {
		case 0:
			return 9
		case 2, 3:
			return 10
		}
	}

	if pcw.Texture() {
		switch pcw.ColType() {
		case 0:
			return uv(4, 3)
		case 1:
			return uv(6, 5)
		case 2, 3:
			return uv(8, 7)
		}
	}

	switch pcw.ColType() {
	case 0:
		return 0
	case 1:
		return 1
	case 2, 3:
		return 2
	}

	return 0
}

// Commands are 32 or 64 bytes. Every parameter's size is fixed by its PCW
// except vertex parameters, whose size depends on the established vertex
// type.
func paramSizeRaw(pcw PCW, vertType int) int {
	switch pcw.ParaType() {
	case ParamEndOfList, ParamUserTileClip, ParamObjListSet, ParamSprite:
		return 32
	case ParamPolyOrVol:
		t := polyTypeRaw(pcw)
		if t == 0 || t == 1 || t == 3 {
			return 32
		}
		return 64
	case ParamVertex:
		switch vertType {
		case 0, 1, 2, 3, 4, 7, 8, 9, 10:
			return 32
		default:
			return 64
		}
	default:
		return 0
	}
}

func init() {
	for i := 0; i < 0x100; i++ {
		for j := 0; j < NumParams; j++ {
			pcw := PCW(i) | PCW(j)<<29

			for k := 0; k < numVertKeys; k++ {
				paramSizes[i*NumParams*numVertKeys+j*numVertKeys+k] = paramSizeRaw(pcw, k)
			}

			for k := 0; k < NumLists; k++ {
				lpcw := pcw | PCW(k)<<24
				polyTypes[i*NumParams*NumLists+j*NumLists+k] = polyTypeRaw(lpcw)
				vertTypes[i*NumParams*NumLists+j*NumLists+k] = vertTypeRaw(lpcw)
			}
		}
	}
}

// ParamSize returns the full size in bytes of the command led by pcw, given
// the currently established vertex type.
func ParamSize(pcw PCW, vertType int) int {
	return paramSizes[int(pcw&0xff)*NumParams*numVertKeys+pcw.ParaType()*numVertKeys+vertType]
}

// PolyType returns the poly parameter layout selected by pcw.
func PolyType(pcw PCW) int {
	return polyTypes[int(pcw&0xff)*NumParams*NumLists+pcw.ParaType()*NumLists+pcw.ListType()]
}

// VertType returns the vertex parameter layout selected by pcw.
func VertType(pcw PCW) int {
	return vertTypes[int(pcw&0xff)*NumParams*NumLists+pcw.ParaType()*NumLists+pcw.ListType()]
}

// listTypeValid reports whether pcw establishes a new list type. The list
// type latches from the first global parameter after init and stays latched
// until end-of-list.
func listTypeValid(pcw PCW, current int) bool {
	if current != NumLists {
		return false
	}
	switch pcw.ParaType() {
	case ParamPolyOrVol, ParamSprite:
		return true
	}
	return false
}
