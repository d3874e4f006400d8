package ta

/*
 * Katana - TA command processor tests
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
	"testing"

	"github.com/tswindell/katana/emu/device"
	"github.com/tswindell/katana/emu/holly"
	"github.com/tswindell/katana/emu/machine"
	"github.com/tswindell/katana/emu/memory"
	"github.com/tswindell/katana/emu/pvr"
	"github.com/tswindell/katana/emu/sh4"
)

// Minimal ram device so the SH-4 map has system memory.
type testRAM struct {
	region *memory.Region
}

func (r *testRAM) Name() string               { return "ram" }
func (r *testRAM) Init(m device.Lookup) error { return nil }
func (r *testRAM) Shutdown()                  {}
func (r *testRAM) InstallMap(m device.Lookup, am *memory.AddressMap) {
	am.Mount(r.region, 0x01000000, 0x00000000, 0xffffffff)
}

type harness struct {
	m     *machine.Machine
	cpu   *sh4.SH4
	hly   *holly.Holly
	pvr   *pvr.PVR
	ta    *TA
	space *memory.AddressSpace

	started  []*Context
	finished int
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	m := machine.New()
	mem := m.Memory()

	h := &harness{m: m}
	h.cpu = sh4.New(mem)
	h.hly = holly.New(mem)
	h.pvr = pvr.New(mem, m.Scheduler(), h.hly)
	h.ta = New(mem, m.Scheduler())

	h.pvr.SetClient(pvr.Client{})
	h.ta.SetClient(Client{
		StartRender:  func(ctx *Context) { h.started = append(h.started, ctx) },
		FinishRender: func() { h.finished++ },
	})

	m.Register(h.cpu)
	m.Register(h.hly)
	m.Register(h.pvr)
	m.Register(h.ta)
	m.Register(&testRAM{region: mem.CreatePhysicalRegion("system ram", 0x01000000)})

	if err := m.Init(); err != nil {
		t.Fatalf("machine init failed: %v", err)
	}
	t.Cleanup(m.Shutdown)

	h.space = h.cpu.Space()

	return h
}

// istnrm reads interrupt status through the guest register window.
func (h *harness) istnrm() uint32 {
	return h.space.Read32(0x005f6900)
}

func (h *harness) ackAll() {
	h.space.Write32(0x005f6900, 0xffffffff)
}

// polyParam builds a 32-byte opaque polygon parameter.
func polyParam(listType int, textured bool, tsp, tcw uint32) []byte {
	buf := make([]byte, 32)

	pcw := uint32(ParamPolyOrVol)<<29 | uint32(listType)<<24
	if textured {
		pcw |= 1 << 3
	}
	binary.LittleEndian.PutUint32(buf[0:], pcw)
	binary.LittleEndian.PutUint32(buf[8:], tsp)
	binary.LittleEndian.PutUint32(buf[12:], tcw)

	return buf
}

func vertexParam() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:], uint32(ParamVertex)<<29)
	return buf
}

func endOfList() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:], uint32(ParamEndOfList)<<29)
	return buf
}

const fifoBase = 0x10000000

func TestEndOfListInterrupt(t *testing.T) {
	h := newHarness(t)

	h.pvr.RegWrite32(pvr.TA_ISP_BASE, 0x00100000)
	h.pvr.RegWrite32(pvr.TA_LIST_INIT, 0x80000000)

	var stream []byte
	stream = append(stream, polyParam(ListOpaque, false, 0, 0)...)
	stream = append(stream, vertexParam()...)
	stream = append(stream, endOfList()...)
	h.space.MemcpyToGuest(fifoBase, stream)

	if h.istnrm()&(1<<6) == 0 {
		t.Errorf("opaque list complete interrupt not raised, istnrm %08x", h.istnrm())
	}

	// The list and vertex state reset; a second end-of-list with no list
	// established raises nothing.
	h.ackAll()
	h.space.MemcpyToGuest(fifoBase, endOfList())
	if h.istnrm()&(1<<6) != 0 {
		t.Errorf("end of list without an established list raised an interrupt")
	}
}

func TestListTypeLatches(t *testing.T) {
	h := newHarness(t)

	h.pvr.RegWrite32(pvr.TA_ISP_BASE, 0x00100000)
	h.pvr.RegWrite32(pvr.TA_LIST_INIT, 0x80000000)

	// A punch-through list raises its own completion line.
	var stream []byte
	stream = append(stream, polyParam(ListPunchThrough, false, 0, 0)...)
	stream = append(stream, endOfList()...)
	h.space.MemcpyToGuest(fifoBase, stream)

	if h.istnrm()&(1<<21) == 0 {
		t.Errorf("punch-through complete interrupt not raised, istnrm %08x", h.istnrm())
	}
	if h.istnrm()&(1<<6) != 0 {
		t.Errorf("opaque interrupt raised for punch-through list")
	}
}

// Split command delivery must decode identically to one write.
func TestSplitCommandDelivery(t *testing.T) {
	h := newHarness(t)

	h.pvr.RegWrite32(pvr.TA_ISP_BASE, 0x00100000)
	h.pvr.RegWrite32(pvr.TA_LIST_INIT, 0x80000000)

	// A textured intensity poly in a volume takes 64 bytes; feed it in two
	// 32-byte writes.
	pcw := uint32(ParamPolyOrVol)<<29 | 1<<6 | 1<<3 | 2<<4 // volume, textured, col_type 2
	cmd := make([]byte, 64)
	binary.LittleEndian.PutUint32(cmd[0:], pcw)

	if got := ParamSize(PCW(pcw), NumVerts-1); got != 64 {
		t.Fatalf("expected a 64 byte poly parameter got %d", got)
	}

	h.space.MemcpyToGuest(fifoBase, cmd[:32])
	if h.ta.curr.VertType != NumVerts {
		t.Errorf("vertex type latched before the command completed")
	}

	h.space.MemcpyToGuest(fifoBase, cmd[32:])
	want := VertType(PCW(pcw))
	if h.ta.curr.VertType != want {
		t.Errorf("vertex type got %d expected %d", h.ta.curr.VertType, want)
	}
}

func TestListContRetainsCursor(t *testing.T) {
	h := newHarness(t)

	h.pvr.RegWrite32(pvr.TA_ISP_BASE, 0x00100000)
	h.pvr.RegWrite32(pvr.TA_LIST_INIT, 0x80000000)

	h.space.MemcpyToGuest(fifoBase, polyParam(ListOpaque, false, 0, 0))

	size := h.ta.curr.Size
	cursor := h.ta.curr.Cursor
	if size == 0 || cursor == 0 {
		t.Fatalf("context did not accumulate the parameter")
	}

	h.pvr.RegWrite32(pvr.TA_LIST_CONT, 0x80000000)

	if h.ta.curr.Size != size || h.ta.curr.Cursor != cursor {
		t.Errorf("list continuation rewound the buffer: size %d cursor %d", h.ta.curr.Size, h.ta.curr.Cursor)
	}
	if h.ta.curr.ListType != NumLists || h.ta.curr.VertType != NumVerts {
		t.Errorf("list continuation did not reset the list state")
	}
}

func TestStartRenderFlow(t *testing.T) {
	h := newHarness(t)

	h.pvr.RegWrite32(pvr.TA_ISP_BASE, 0x00100000)
	h.pvr.RegWrite32(pvr.TA_LIST_INIT, 0x80000000)

	var stream []byte
	stream = append(stream, polyParam(ListOpaque, false, 0, 0)...)
	stream = append(stream, endOfList()...)
	h.space.MemcpyToGuest(fifoBase, stream)

	h.ackAll()
	h.pvr.RegWrite32(pvr.PARAM_BASE, 0x00100000)
	h.pvr.RegWrite32(pvr.STARTRENDER, 1)

	if len(h.started) != 1 {
		t.Fatalf("start render callback fired %d times expected 1", len(h.started))
	}

	ctx := h.started[0]
	if ctx.Addr != 0x00100000 {
		t.Errorf("context address got %08x expected %08x", ctx.Addr, 0x00100000)
	}
	if ctx.Size != len(stream) {
		t.Errorf("context size got %d expected %d", ctx.Size, len(stream))
	}
	if ctx.VideoWidth == 0 || ctx.VideoHeight == 0 {
		t.Errorf("video size not captured: %dx%d", ctx.VideoWidth, ctx.VideoHeight)
	}

	// The render completes after the 10 ms deadline: the host ack runs
	// and the three render-complete interrupts are raised.
	h.m.Tick(renderTimeout)

	if h.finished != 1 {
		t.Errorf("finish render callback fired %d times expected 1", h.finished)
	}
	if got := h.istnrm() & 0x7; got != 0x7 {
		t.Errorf("render complete interrupts got %03b expected 111", got)
	}
}

func TestTextureRegistration(t *testing.T) {
	h := newHarness(t)

	h.pvr.RegWrite32(pvr.TA_ISP_BASE, 0x00100000)
	h.pvr.RegWrite32(pvr.TA_LIST_INIT, 0x80000000)

	// An 8x8 RGB565 twiddled texture at vram offset 0x2000.
	tsp := uint32(0)
	tcw := uint32(PixelRGB565)<<27 | (0x2000 >> 3)

	var stream []byte
	stream = append(stream, polyParam(ListOpaque, true, tsp, tcw)...)
	stream = append(stream, endOfList()...)
	h.space.MemcpyToGuest(fifoBase, stream)

	h.pvr.RegWrite32(pvr.PARAM_BASE, 0x00100000)
	h.pvr.RegWrite32(pvr.STARTRENDER, 1)

	entry := h.ta.LookupTexture(TSP(tsp), TCW(tcw))
	if entry == nil {
		t.Fatalf("texture source not registered")
	}
	if !entry.Dirty {
		t.Errorf("fresh texture entry not dirty")
	}
	if len(entry.Texture) != 8*8*2 {
		t.Errorf("texture size got %d expected %d", len(entry.Texture), 8*8*2)
	}
	if entry.Palette != nil {
		t.Errorf("direct color texture received a palette")
	}
}

func TestWriteWatchInvalidation(t *testing.T) {
	h := newHarness(t)

	h.pvr.RegWrite32(pvr.TA_ISP_BASE, 0x00100000)
	h.pvr.RegWrite32(pvr.TA_LIST_INIT, 0x80000000)

	tsp := uint32(0)
	tcw := uint32(PixelRGB565)<<27 | (0x2000 >> 3)

	var stream []byte
	stream = append(stream, polyParam(ListOpaque, true, tsp, tcw)...)
	stream = append(stream, endOfList()...)
	h.space.MemcpyToGuest(fifoBase, stream)

	h.pvr.RegWrite32(pvr.PARAM_BASE, 0x00100000)
	h.pvr.RegWrite32(pvr.STARTRENDER, 1)
	h.m.Tick(renderTimeout)

	entry := h.ta.cache.find(TSP(tsp), TCW(tcw))
	entry.Dirty = false

	// A guest write into the texel range through the 64-bit path queues
	// the entry but does not dirty it yet.
	h.space.Write32(0x04002000, 0xdeadbeef)

	if entry.Dirty {
		t.Errorf("texture dirtied outside a frame boundary")
	}
	if !entry.invalidated {
		t.Errorf("texture write did not queue an invalidation")
	}

	// The next start render is the safe point that commits it.
	h.pvr.RegWrite32(pvr.TA_LIST_INIT, 0x80000000)
	h.space.MemcpyToGuest(fifoBase, stream)
	h.pvr.RegWrite32(pvr.STARTRENDER, 1)

	if !entry.Dirty {
		t.Errorf("queued invalidation not committed at start render")
	}
}

func TestYUVConversion(t *testing.T) {
	h := newHarness(t)

	// One 16x16 macroblock into a texture at vram offset 0x4000.
	h.pvr.RegWrite32(pvr.TA_YUV_TEX_CTRL, 0)
	h.pvr.RegWrite32(pvr.TA_YUV_TEX_BASE, 0x4000)

	// Distinct plane values make the interleave visible.
	mb := make([]byte, yuv420MacroblockSize)
	for i := 0; i < 64; i++ {
		mb[i] = 0x10 // u
		mb[64+i] = 0x20 // v
	}
	for i := 0; i < 256; i++ {
		mb[128+i] = byte(i)
	}

	h.space.MemcpyToGuest(0x10800000, mb)

	// The batch completes immediately: interrupt raised, counter reset.
	if h.istnrm()&(1<<22) == 0 {
		t.Errorf("yuv complete interrupt not raised, istnrm %08x", h.istnrm())
	}
	if h.pvr.YUVCount() != 0 {
		t.Errorf("macroblock counter not reset got %d", h.pvr.YUVCount())
	}

	// First output row of the (0,0) subblock: U, Y0, V, Y1.
	vram := h.pvr.VRAM()
	out := vram[0x4000:]
	want := []byte{0x10, 0, 0x20, 1, 0x10, 2, 0x20, 3}
	for i, b := range want {
		if out[i] != b {
			t.Errorf("uyvy byte %d got %02x expected %02x", i, out[i], b)
		}
	}

	// Second output row repeats U and V with Y2 / Y3 from the next input
	// row. The output pitch is width * 2 bytes.
	row1 := out[16*2:]
	want = []byte{0x10, 8, 0x20, 9}
	for i, b := range want {
		if row1[i] != b {
			t.Errorf("uyvy row1 byte %d got %02x expected %02x", i, row1[i], b)
		}
	}
}

func TestTextureFifoWrite(t *testing.T) {
	h := newHarness(t)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	h.space.MemcpyToGuest(0x11000000+0x100, data)

	vram := h.pvr.VRAM()
	for i, b := range data {
		if vram[0x100+i] != b {
			t.Errorf("texture fifo byte %d got %02x expected %02x", i, vram[0x100+i], b)
		}
	}
}
