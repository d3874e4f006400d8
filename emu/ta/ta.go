package ta

/*
 * Katana - Tile accelerator command processor
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

	"github.com/tswindell/katana/emu/device"
	"github.com/tswindell/katana/emu/holly"
	"github.com/tswindell/katana/emu/memory"
	"github.com/tswindell/katana/emu/pvr"
	"github.com/tswindell/katana/emu/sched"
	"github.com/tswindell/katana/file/trace"
	"github.com/tswindell/katana/util/debug"
	"github.com/tswindell/katana/util/fatal"
)

const (
	maxContexts = 8
	maxParams   = 1 << 20

	// Three background vertices at the largest encoding.
	bgVerticesSize = 256

	// Each frame gets 10 ms to finish rendering on the host.
	renderTimeout = int64(10000000)
)

// Context accumulates one frame's parameter stream plus the PVR register
// state captured at STARTRENDER, making it renderable on its own long after
// the registers have changed.
type Context struct {
	Addr  uint32
	Frame int

	Params   [maxParams]byte
	Cursor   int
	Size     int
	ListType int
	VertType int

	Autosort    bool
	Stride      int
	PaletteFmt  uint32
	VideoWidth  int
	VideoHeight int
	BgISP       uint32
	BgTSP       uint32
	BgTCW       uint32
	BgDepth     float32
	PTAlphaRef  uint32
	BgVertices  [bgVerticesSize]byte
}

// Client carries the host render callbacks. StartRender transfers
// ownership of the context to the host; at the render deadline the TA calls
// FinishRender, which returns once the host is done with the context.
type Client struct {
	StartRender  func(ctx *Context)
	FinishRender func()
}

var listInterrupts = [NumLists]holly.Line{
	holly.IntOpaqueDone,
	holly.IntOpaqueModDone,
	holly.IntTranslucentDone,
	holly.IntTransModDone,
	holly.IntPunchThruDone,
}

// TA decodes the display-list parameter stream fed through the FIFO map
// into render contexts and hands finished contexts to the host.
type TA struct {
	mem    *memory.Memory
	sch    *sched.Scheduler
	hly    *holly.Holly
	pvr    *pvr.PVR
	space  *memory.AddressSpace
	vram   []byte
	client Client

	polyReg *memory.Region
	yuvReg  *memory.Region
	texReg  *memory.Region

	// yuv converter state
	yuvBase            uint32
	yuvWidth           int
	yuvHeight          int
	yuvMacroblockSize  int
	yuvMacroblockCount int

	contexts [maxContexts]Context
	free     []*Context
	live     []*Context
	curr     *Context

	// Frame counter asserting render-thread synchronization. Incremented
	// at STARTRENDER and again when render-complete fires.
	frame int

	cache *textureCache

	traceWriter *trace.Writer
}

func New(mem *memory.Memory, sch *sched.Scheduler) *TA {
	t := &TA{mem: mem, sch: sch}

	t.polyReg = mem.CreateMMIORegion("ta poly fifo", 0x00800000, memory.MMIOHandlers{
		WriteBlock: t.polyFifoWrite,
	})
	t.yuvReg = mem.CreateMMIORegion("ta yuv fifo", 0x00800000, memory.MMIOHandlers{
		WriteBlock: t.yuvFifoWrite,
	})
	t.texReg = mem.CreateMMIORegion("ta texture fifo", 0x01000000, memory.MMIOHandlers{
		WriteBlock: t.textureFifoWrite,
	})

	t.cache = newTextureCache(t)

	return t
}

func (t *TA) Name() string {
	return "ta"
}

func (t *TA) SetClient(c Client) {
	t.client = c
}

func (t *TA) Init(m device.Lookup) error {
	hly, ok := m.Device("holly").(*holly.Holly)
	if !ok {
		return fmt.Errorf("ta: no holly device")
	}
	t.hly = hly

	p, ok := m.Device("pvr").(*pvr.PVR)
	if !ok {
		return fmt.Errorf("ta: no pvr device")
	}
	t.pvr = p

	sh4, ok := m.Device("sh4").(device.BusMaster)
	if !ok {
		return fmt.Errorf("ta: no sh4 address space")
	}
	t.space = sh4.Space()

	t.vram = t.mem.Translate("video ram", 0)

	// Watch texel and palette memory for writes that invalidate cache
	// entries.
	p.SetVRAMWriteHook(t.cache.vramWritten)
	p.SetPaletteWriteHook(t.cache.paletteWritten)

	t.free = t.free[:0]
	for i := range t.contexts {
		t.free = append(t.free, &t.contexts[i])
	}

	return nil
}

func (t *TA) Shutdown() {
	if t.traceWriter != nil {
		t.traceWriter.Close()
		t.traceWriter = nil
	}
}

// InstallMap places the three FIFO bands. The map is mounted by the SH-4 at
// 0x10000000.
func (t *TA) InstallMap(m device.Lookup, am *memory.AddressMap) {
	am.Handle(t.polyReg, 0x00800000, 0x00000000, 0xffffffff)
	am.Handle(t.yuvReg, 0x00800000, 0x00800000, 0xffffffff)
	am.Handle(t.texReg, 0x01000000, 0x01000000, 0xffffffff)
}

/*
 * context pool
 */

func (t *TA) getContext(addr uint32) *Context {
	for _, ctx := range t.live {
		if ctx.Addr == addr {
			return ctx
		}
	}
	return nil
}

func (t *TA) demandContext(addr uint32) *Context {
	if ctx := t.getContext(addr); ctx != nil {
		return ctx
	}

	if len(t.free) == 0 {
		fatal.Fatalf("ta context pool exhausted for 0x%08x", addr)
	}
	ctx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	ctx.Addr = addr
	ctx.Cursor = 0
	ctx.Size = 0
	ctx.ListType = 0
	ctx.VertType = 0

	t.live = append(t.live, ctx)

	return ctx
}

func (t *TA) unlinkContext(ctx *Context) {
	for i, c := range t.live {
		if c == ctx {
			t.live = append(t.live[:i], t.live[i+1:]...)
			return
		}
	}
}

func (t *TA) freeContext(ctx *Context) {
	t.free = append(t.free, ctx)
}

/*
 * register interface, driven by the PVR register file
 */

// ListInit ensures a context exists for TA_ISP_BASE and resets its stream
// state.
func (t *TA) ListInit() {
	ctx := t.demandContext(t.pvr.ISPBase())
	ctx.Cursor = 0
	ctx.Size = 0
	ctx.ListType = NumLists
	ctx.VertType = NumVerts
	t.curr = ctx
}

// ListCont resumes an existing context. The cursor and size are retained;
// only the list and vertex state reset. Real hardware behavior here is
// undocumented.
func (t *TA) ListCont() {
	ctx := t.getContext(t.pvr.ISPBase())
	if ctx == nil {
		fatal.Fatalf("ta list continuation without a context for 0x%08x", t.pvr.ISPBase())
	}
	ctx.ListType = NumLists
	ctx.VertType = NumVerts
	t.curr = ctx
}

// StartRender transfers the context for PARAM_BASE to the host renderer.
func (t *TA) StartRender() {
	ctx := t.getContext(t.pvr.ParamBase())
	if ctx == nil {
		fatal.Fatalf("ta start render without a context for 0x%08x", t.pvr.ParamBase())
	}
	t.renderContext(ctx)
}

// YUVInit arms the YUV converter from the current register state.
func (t *TA) YUVInit() {
	t.yuvReset()
}

func (t *TA) SoftReset() {
	// FIXME what are we supposed to do here?
}

/*
 * parameter stream processing
 */

func (t *TA) polyFifoWrite(dst uint32, src []byte) {
	if t.hly.LMMode0() != 0 {
		fatal.Fatalf("ta poly fifo write with SB_LMMODE0 set")
	}
	if len(src)%32 != 0 {
		fatal.Fatalf("ta poly fifo write of %d bytes not a multiple of 32", len(src))
	}

	for off := 0; off < len(src); off += 32 {
		t.writeContext(t.curr, src[off:off+32])
	}
}

func (t *TA) yuvFifoWrite(dst uint32, src []byte) {
	if t.hly.LMMode0() != 0 {
		fatal.Fatalf("ta yuv fifo write with SB_LMMODE0 set")
	}
	if len(src)%t.yuvMacroblockSize != 0 {
		fatal.Fatalf("ta yuv fifo write of %d bytes not a multiple of the macroblock size %d",
			len(src), t.yuvMacroblockSize)
	}

	for off := 0; off < len(src); off += t.yuvMacroblockSize {
		t.yuvProcessMacroblock(src[off : off+t.yuvMacroblockSize])
	}
}

func (t *TA) textureFifoWrite(dst uint32, src []byte) {
	// Mask the destination to the canonical vram alias.
	dst &= 0xeeffffff
	copy(t.vram[dst:], src)
	t.cache.vramWritten(dst, len(src))
}

// writeContext appends one 32-byte burst to the context's parameter buffer
// and, on every 32-byte boundary, decodes any completed command.
func (t *TA) writeContext(ctx *Context, data []byte) {
	if ctx == nil {
		fatal.Fatalf("ta fifo write without a current context")
	}
	if ctx.Size+len(data) >= maxParams {
		fatal.Fatalf("ta context 0x%08x parameter buffer overflow", ctx.Addr)
	}

	copy(ctx.Params[ctx.Size:], data)
	ctx.Size += len(data)

	// Commands are 32 or 64 bytes with the PCW always leading the first
	// 32. Check every 32 bytes whether a complete command has arrived.
	if ctx.Size%32 != 0 {
		return
	}

	pcw := PCW(binary.LittleEndian.Uint32(ctx.Params[ctx.Cursor:]))

	size := ParamSize(pcw, ctx.VertType)
	recv := ctx.Size - ctx.Cursor

	if recv < size {
		// Wait for the entire command.
		return
	}

	if listTypeValid(pcw, ctx.ListType) {
		ctx.ListType = pcw.ListType()
	}

	switch pcw.ParaType() {
	// control params
	case ParamEndOfList:
		// An end-of-list before any list type has been established is
		// common; only raise completion for a real list.
		if ctx.ListType != NumLists {
			t.hly.RaiseInterrupt(listInterrupts[ctx.ListType])
		}
		ctx.ListType = NumLists
		ctx.VertType = NumVerts

	case ParamUserTileClip:
		// Consumed, nothing to do.

	case ParamObjListSet:
		fatal.Fatalf("ta obj list set unsupported")

	// global params
	case ParamPolyOrVol, ParamSprite:
		ctx.VertType = VertType(pcw)

	// vertex params
	case ParamVertex:

	default:
		fatal.Fatalf("unsupported ta parameter type %d", pcw.ParaType())
	}

	ctx.Cursor += recv
}

/*
 * rendering flow
 *
 * rendering runs asynchronously on the host, so everything the frame
 * depends on is snapshotted into the context before handoff
 */

func (t *TA) saveState(ctx *Context) {
	p := t.pvr

	ctx.Frame = t.frame

	// Autosort comes from one of two encodings depending on the region
	// header type.
	if p.RegionHeaderType() {
		// Region array data type 2.
		regionData := t.space.Read32(0x05000000 + p.RegionBase())
		ctx.Autosort = regionData&0x20000000 == 0
	} else {
		// Region array data type 1.
		ctx.Autosort = !p.Presort()
	}

	ctx.Stride = p.StrideBytes()
	ctx.PaletteFmt = p.PaletteFormat()
	ctx.VideoWidth, ctx.VideoHeight = p.VideoSize()

	tagOffset, tagAddress, skip, shadow := p.BgTag()

	// The documented background ISP address calculation produces addresses
	// past the end of vram in practice; examining memory dumps shows the
	// data low, so the offset is masked.
	vramOffset := 0x05000000 + ((ctx.Addr + tagAddress*4) & 0x7fffff)

	ctx.BgISP = t.space.Read32(vramOffset)
	ctx.BgTSP = t.space.Read32(vramOffset + 4)
	ctx.BgTCW = t.space.Read32(vramOffset + 8)
	vramOffset += 12

	ctx.BgDepth = p.BgDepth()
	ctx.PTAlphaRef = p.PTAlphaRef()

	// The vertex size is ISP_BACKGND_T.skip words, doubled when parameter
	// selection volume mode is off and the shadow bit is set, plus 3 words.
	vertexSize := skip
	if !p.IntensityVolumeMode() && shadow {
		vertexSize *= 2
	}
	vertexSize = (vertexSize + 3) * 4

	vramOffset += tagOffset * vertexSize

	bgOffset := uint32(0)
	for i := 0; i < 3; i++ {
		if bgOffset+vertexSize > bgVerticesSize {
			fatal.Fatalf("background vertices overflow context storage")
		}

		t.space.MemcpyToHost(ctx.BgVertices[bgOffset:bgOffset+vertexSize], vramOffset)

		bgOffset += vertexSize
		vramOffset += vertexSize
	}
}

func (t *TA) renderContext(ctx *Context) {
	t.unlinkContext(ctx)

	// The frame number is assigned to the context and to each texture it
	// registers, asserting the guest and video threads stay in sync.
	t.frame++

	// The video thread is guaranteed not to be touching texture data
	// here, so commit any invalidations queued by write watches.
	t.cache.commitInvalidated()

	t.registerTextureSources(ctx)

	t.saveState(ctx)

	debug.Debugf("ta", debug.DebugTA, "render context 0x%08x size %d frame %d", ctx.Addr, ctx.Size, ctx.Frame)

	if t.client.StartRender != nil {
		t.client.StartRender(ctx)
	}

	// TODO pick the deadline from a heuristic involving the number of
	// polygons submitted.
	t.sch.StartTimer(t.finishRender, ctx, renderTimeout)

	if t.traceWriter != nil {
		if err := t.traceWriter.RenderContext(traceContext(ctx)); err != nil {
			slog.Warn("trace context write failed", "err", err)
		}
	}
}

func (t *TA) finishRender(data any) {
	ctx := data.(*Context)

	// Ensure the host has finished rendering.
	if t.client.FinishRender != nil {
		t.client.FinishRender()
	}

	// Texture entries are only valid between each start / finish render
	// pair; bump the frame again to invalidate lookups.
	t.frame++

	t.freeContext(ctx)

	t.hly.RaiseInterrupt(holly.IntRenderDoneVideo)
	t.hly.RaiseInterrupt(holly.IntRenderDoneISP)
	t.hly.RaiseInterrupt(holly.IntRenderDoneTSP)
}

/*
 * tracing
 */

func traceContext(ctx *Context) *trace.ContextCmd {
	return &trace.ContextCmd{
		Autosort:    ctx.Autosort,
		Stride:      int32(ctx.Stride),
		PalPxlFmt:   ctx.PaletteFmt,
		VideoWidth:  int32(ctx.VideoWidth),
		VideoHeight: int32(ctx.VideoHeight),
		BgISP:       ctx.BgISP,
		BgTSP:       ctx.BgTSP,
		BgTCW:       ctx.BgTCW,
		BgDepth:     ctx.BgDepth,
		BgVertices:  ctx.BgVertices[:],
		Params:      ctx.Params[:ctx.Size],
	}
}

// ToggleTracing starts recording contexts and textures to the next free
// trace file, or stops an active recording.
func (t *TA) ToggleTracing() {
	if t.traceWriter == nil {
		filename, err := trace.NextFilename()
		if err != nil {
			slog.Info("failed to pick a trace filename", "err", err)
			return
		}

		w, err := trace.Create(filename)
		if err != nil {
			slog.Info("failed to start tracing", "err", err)
			return
		}
		t.traceWriter = w

		// Clear the cache so every referenced texture generates an
		// insert event while tracing.
		t.cache.clear()

		slog.Info("begin tracing", "file", filename)
		return
	}

	t.traceWriter.Close()
	t.traceWriter = nil

	slog.Info("end tracing")
}

// NumTextures reports the live texture count for the monitor.
func (t *TA) NumTextures() int {
	return t.cache.numTextures
}

// ClearTextureCache marks every live texture dirty.
func (t *TA) ClearTextureCache() {
	t.cache.clear()
}
