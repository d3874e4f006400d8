package ta

/*
 * Katana - Texture sources and cache
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
	"log/slog"
	"math/bits"

	"github.com/tswindell/katana/util/fatal"
)

// VQ-compressed textures carry a fixed 256-entry, 8-bytes-per-entry
// codebook ahead of the index data.
const codebookSize = 2048

const maxTextureEntries = 8192

/*
 * texture info helpers
 */

// TextureTwiddled reports whether the texel data is stored twiddled.
// Paletted textures are always twiddled.
func TextureTwiddled(tcw TCW) bool {
	return !tcw.ScanOrder() ||
		tcw.PixelFormat() == Pixel8BPP || tcw.PixelFormat() == Pixel4BPP
}

func TextureMipMapped(tcw TCW) bool {
	return TextureTwiddled(tcw) && tcw.MipMapped()
}

func TextureWidth(tsp TSP, tcw TCW) int {
	return 8 << tsp.TextureUSize()
}

func TextureHeight(tsp TSP, tcw TCW) int {
	if TextureMipMapped(tcw) {
		return TextureWidth(tsp, tcw)
	}
	return 8 << tsp.TextureVSize()
}

// TextureStride returns the texel row pitch, in texels. The global stride
// applies only to non-twiddled textures that select it.
func TextureStride(tsp TSP, tcw TCW, stride int) int {
	if !tcw.StrideSelect() || TextureTwiddled(tcw) {
		return TextureWidth(tsp, tcw)
	}
	return stride
}

func textureBPP(tcw TCW) int {
	switch tcw.PixelFormat() {
	case Pixel8BPP:
		return 8
	case Pixel4BPP:
		return 4
	default:
		return 16
	}
}

// TextureAddrSize returns the texel data's offset into video ram and its
// total size, summing every mipmap level and the VQ codebook when present.
func TextureAddrSize(tsp TSP, tcw TCW) (uint32, int) {
	addr := tcw.TextureAddr() << 3
	size := 0

	if tcw.VQCompressed() {
		size += codebookSize
	}

	width := TextureWidth(tsp, tcw)
	height := TextureHeight(tsp, tcw)
	bpp := textureBPP(tcw)

	levels := 1
	if TextureMipMapped(tcw) {
		levels = bits.TrailingZeros32(uint32(width)) + 1
	}
	for levels > 0 {
		levels--
		mipWidth := width >> levels
		mipHeight := height >> levels
		size += (mipWidth * mipHeight * bpp) >> 3
	}

	return addr, size
}

// PaletteAddrSize returns the palette RAM byte offset and size selected by
// a paletted texture's TCW, or (0, 0) for direct-color formats.
func PaletteAddrSize(tcw TCW) (uint32, int) {
	// Palette ram is 4096 bytes of 4-byte entries. In 4bpp mode the
	// selector forms the upper 6 bits of the palette index; in 8bpp mode
	// its upper 2 bits do.
	switch tcw.PixelFormat() {
	case Pixel4BPP:
		return tcw.PaletteSelector() << 6, 1 << 6
	case Pixel8BPP:
		return (tcw.PaletteSelector() >> 4) << 10, 1 << 10
	}
	return 0, 0
}

/*
 * texture cache
 */

// TextureKey fuses the two descriptor words into the cache identity.
type TextureKey uint64

func MakeTextureKey(tsp TSP, tcw TCW) TextureKey {
	return TextureKey(tsp)<<32 | TextureKey(tcw)
}

// TextureEntry tracks one registered texture source. Texture and Palette
// point into video ram and palette RAM; Handle is opaque storage for the
// host renderer.
type TextureEntry struct {
	TSP   TSP
	TCW   TCW
	Frame int
	Dirty bool

	Texture  []byte
	texStart uint32
	texSize  int

	Palette  []byte
	palStart uint32
	palSize  int

	Handle any

	texWatch    bool
	palWatch    bool
	invalidated bool
}

// Texture uploads happen on the video thread in parallel with the guest
// executing, which may write to a texture before the end-of-render
// interrupts arrive. To avoid racing on the dirty flag, write-watch fires
// only queue entries here; the queue is drained and marked dirty at the
// next STARTRENDER, when the threads are synchronized.
type textureCache struct {
	ta *TA

	entries     [maxTextureEntries]TextureEntry
	free        []*TextureEntry
	live        map[TextureKey]*TextureEntry
	invalidated []*TextureEntry
	numTextures int
}

func newTextureCache(t *TA) *textureCache {
	c := &textureCache{
		ta:   t,
		live: make(map[TextureKey]*TextureEntry),
	}
	for i := range c.entries {
		c.free = append(c.free, &c.entries[i])
	}
	return c
}

func (c *textureCache) alloc(tsp TSP, tcw TCW) *TextureEntry {
	if len(c.free) == 0 {
		fatal.Fatalf("texture cache exhausted")
	}
	entry := c.free[len(c.free)-1]
	c.free = c.free[:len(c.free)-1]

	*entry = TextureEntry{TSP: tsp, TCW: tcw}
	c.live[MakeTextureKey(tsp, tcw)] = entry
	c.numTextures++

	return entry
}

func (c *textureCache) find(tsp TSP, tcw TCW) *TextureEntry {
	return c.live[MakeTextureKey(tsp, tcw)]
}

// clear marks every live texture dirty, forcing reupload (and trace insert
// events) on next reference.
func (c *textureCache) clear() {
	slog.Info("texture cache cleared")

	for _, entry := range c.live {
		entry.Dirty = true
	}
}

// commitInvalidated dirties every entry queued by a write watch. Called at
// the STARTRENDER phase boundary only.
func (c *textureCache) commitInvalidated() {
	for _, entry := range c.invalidated {
		entry.Dirty = true
		entry.invalidated = false
	}
	c.invalidated = c.invalidated[:0]
}

func (c *textureCache) queueInvalidate(entry *TextureEntry) {
	if !entry.invalidated {
		c.invalidated = append(c.invalidated, entry)
		entry.invalidated = true
	}
}

func overlaps(start uint32, size int, wstart uint32, wsize int) bool {
	return wstart < start+uint32(size) && start < wstart+uint32(wsize)
}

// vramWritten is the write watch over texel memory. A fired watch is
// removed until the texture is registered again.
func (c *textureCache) vramWritten(offset uint32, size int) {
	for _, entry := range c.live {
		if entry.texWatch && overlaps(entry.texStart, entry.texSize, offset, size) {
			entry.texWatch = false
			c.queueInvalidate(entry)
		}
	}
}

// paletteWritten is the write watch over palette RAM.
func (c *textureCache) paletteWritten(offset uint32, size int) {
	for _, entry := range c.live {
		if entry.palWatch && overlaps(entry.palStart, entry.palSize, offset, size) {
			entry.palWatch = false
			c.queueInvalidate(entry)
		}
	}
}

// register marks a texture source valid for the current frame, creating the
// entry and resolving its vram and palette windows on first sight.
func (c *textureCache) register(tsp TSP, tcw TCW) {
	entry := c.find(tsp, tcw)
	if entry == nil {
		entry = c.alloc(tsp, tcw)
		entry.Dirty = true
	}

	firstThisFrame := entry.Frame != c.ta.frame
	entry.Frame = c.ta.frame

	if entry.Texture == nil {
		addr, size := TextureAddrSize(tsp, tcw)
		entry.texStart = addr
		entry.texSize = size
		entry.Texture = c.ta.vram[addr : addr+uint32(size)]
	}

	if entry.Palette == nil {
		if addr, size := PaletteAddrSize(tcw); size != 0 {
			entry.palStart = addr
			entry.palSize = size
			entry.Palette = c.ta.pvr.Palette()[addr : addr+uint32(size)]
		}
	}

	// Rearm write watches so future writes invalidate the entry.
	entry.texWatch = true
	if entry.Palette != nil {
		entry.palWatch = true
	}

	// Newly dirty textures are added to the trace ahead of the render
	// event that references them.
	if c.ta.traceWriter != nil && entry.Dirty && firstThisFrame {
		err := c.ta.traceWriter.InsertTexture(uint32(tsp), uint32(tcw),
			uint32(entry.Frame), entry.Palette, entry.Texture)
		if err != nil {
			slog.Warn("trace texture write failed", "err", err)
		}
	}
}

// registerTextureSources rescans a finished context's parameter stream and
// registers the source of every referenced texture. Uploads happen lazily
// on the video thread; registration just records where the data lives.
func (t *TA) registerTextureSources(ctx *Context) {
	data := ctx.Params[:ctx.Size]
	vertType := 0

	for off := 0; off < len(data); {
		pcw := PCW(binary.LittleEndian.Uint32(data[off:]))

		switch pcw.ParaType() {
		case ParamPolyOrVol, ParamSprite:
			vertType = VertType(pcw)

			if pcw.Texture() {
				tsp := TSP(binary.LittleEndian.Uint32(data[off+8:]))
				tcw := TCW(binary.LittleEndian.Uint32(data[off+12:]))
				t.cache.register(tsp, tcw)
			}
		}

		off += ParamSize(pcw, vertType)
	}
}

// LookupTexture resolves a registered texture for the render backend.
func (t *TA) LookupTexture(tsp TSP, tcw TCW) *TextureEntry {
	entry := t.cache.find(tsp, tcw)
	if entry == nil {
		return nil
	}

	// Video ram changes between frames; a stale frame number here means
	// thread synchronization is broken.
	if entry.Frame != t.frame {
		fatal.Fatalf("texture registered in frame %d looked up in frame %d", entry.Frame, t.frame)
	}

	return entry
}
