package memory

/*
 * Katana - Memory system tests
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

func TestMirrorIterator(t *testing.T) {
	tests := []struct {
		addr uint32
		mask uint32
		want []uint32
	}{
		{0x0c000000, 0xffffffff, []uint32{0x0c000000}},
		{0x0c000000, 0xfcffffff, []uint32{0x0c000000, 0x0d000000, 0x0e000000, 0x0f000000}},
		{0x00000000, 0xfffffffc, []uint32{0x0, 0x1, 0x2, 0x3}},
		{0x80000000, 0xafffffff, []uint32{0x80000000, 0x90000000, 0xc0000000, 0xd0000000}},
	}

	for _, test := range tests {
		var got []uint32
		it := newMirrorIterator(test.addr, test.mask)
		for it.next() {
			got = append(got, it.addr)
		}

		if len(got) != len(test.want) {
			t.Errorf("Mirror count for 0x%08x/0x%08x got %d expected %d",
				test.addr, test.mask, len(got), len(test.want))
			continue
		}
		for i := range test.want {
			if got[i] != test.want[i] {
				t.Errorf("Mirror %d for 0x%08x/0x%08x got 0x%08x expected 0x%08x",
					i, test.addr, test.mask, got[i], test.want[i])
			}
		}
	}
}

func TestDuplicateRegionName(t *testing.T) {
	mem := New()
	defer mem.Destroy()

	a := mem.CreatePhysicalRegion("system ram", 0x100000)
	b := mem.CreatePhysicalRegion("system ram", 0x100000)
	if a != b {
		t.Errorf("Duplicate region name did not return existing region")
	}
	if a.handle == 0 {
		t.Errorf("Region received the null handle")
	}
}

// Build a machine-shaped space: 16MB of RAM at 0x0c000000, with bits 24-25
// and the segment bits as mirror bits, so it repeats through the 0x0c-0x0f
// prefixes.
func buildRAMSpace(t *testing.T) (*Memory, *AddressSpace, *Region) {
	t.Helper()

	mem := New()
	ram := mem.CreatePhysicalRegion("system ram", 0x01000000)

	if err := mem.Init(); err != nil {
		t.Fatalf("Memory init failed: %v", err)
	}

	var am AddressMap
	am.Mount(ram, 0x01000000, 0x0c000000, 0x1cffffff)

	sp := mem.NewAddressSpace()
	if err := sp.Map("test", &am); err != nil {
		t.Fatalf("Address space map failed: %v", err)
	}

	return mem, sp, ram
}

func TestPhysicalReadWrite(t *testing.T) {
	mem, sp, _ := buildRAMSpace(t)
	defer mem.Destroy()
	defer sp.Destroy()

	sp.Write32(0x0c000100, 0xcafebabe)
	if v := sp.Read32(0x0c000100); v != 0xcafebabe {
		t.Errorf("Read32 got 0x%08x expected 0x%08x", v, 0xcafebabe)
	}

	sp.Write16(0x0c000200, 0xbeef)
	if v := sp.Read16(0x0c000200); v != 0xbeef {
		t.Errorf("Read16 got 0x%04x expected 0x%04x", v, 0xbeef)
	}

	sp.Write8(0x0c000300, 0x5a)
	if v := sp.Read8(0x0c000300); v != 0x5a {
		t.Errorf("Read8 got 0x%02x expected 0x%02x", v, 0x5a)
	}
}

func TestPhysicalMirrors(t *testing.T) {
	mem, sp, _ := buildRAMSpace(t)
	defer mem.Destroy()
	defer sp.Destroy()

	sp.Write32(0x0c000100, 0xcafebabe)

	for _, mirror := range []uint32{0x0c000100, 0x0d000100, 0x0e000100, 0x0f000100} {
		if v := sp.Read32(mirror); v != 0xcafebabe {
			t.Errorf("Mirror read at 0x%08x got 0x%08x expected 0x%08x", mirror, v, 0xcafebabe)
		}
	}

	// Writes through a mirror land in the same backing store, including
	// the segment mirrors.
	sp.Write32(0x0f001000, 0x12345678)
	if v := sp.Read32(0x0c001000); v != 0x12345678 {
		t.Errorf("Write through mirror not visible at base got 0x%08x", v)
	}
	if v := sp.Read32(0xac001000); v != 0x12345678 {
		t.Errorf("Write not visible through segment mirror got 0x%08x", v)
	}
}

func TestTranslateSharesBacking(t *testing.T) {
	mem, sp, _ := buildRAMSpace(t)
	defer mem.Destroy()
	defer sp.Destroy()

	// The contiguous shmem view and the address space view alias the same
	// storage.
	host := mem.Translate("system ram", 0)
	host[0x40] = 0xa5
	if v := sp.Read8(0x0c000040); v != 0xa5 {
		t.Errorf("Translate view not aliased with address space got 0x%02x", v)
	}
}

type mmioRecorder struct {
	lastAddr  uint32
	lastValue uint32
	reads     int
	writes    int
}

func buildMMIOSpace(t *testing.T) (*Memory, *AddressSpace, *mmioRecorder) {
	t.Helper()

	mem := New()
	rec := &mmioRecorder{}

	reg := mem.CreateMMIORegion("test reg", 0x100000, MMIOHandlers{
		Read32: func(addr uint32) uint32 {
			rec.reads++
			rec.lastAddr = addr
			return 0xdead0000 | addr
		},
		Write32: func(addr uint32, v uint32) {
			rec.writes++
			rec.lastAddr = addr
			rec.lastValue = v
		},
	})

	if err := mem.Init(); err != nil {
		t.Fatalf("Memory init failed: %v", err)
	}

	var am AddressMap
	am.Handle(reg, 0x100000, 0x00500000, 0xffffffff)

	sp := mem.NewAddressSpace()
	if err := sp.Map("test", &am); err != nil {
		t.Fatalf("Address space map failed: %v", err)
	}

	return mem, sp, rec
}

func TestMMIODispatch(t *testing.T) {
	mem, sp, rec := buildMMIOSpace(t)
	defer mem.Destroy()
	defer sp.Destroy()

	sp.Write32(0x00500010, 0x11223344)
	if rec.writes != 1 || rec.lastAddr != 0x10 || rec.lastValue != 0x11223344 {
		t.Errorf("MMIO write dispatched wrong got addr 0x%x value 0x%x", rec.lastAddr, rec.lastValue)
	}

	if v := sp.Read32(0x00500020); v != 0xdead0020 {
		t.Errorf("MMIO read got 0x%08x expected 0x%08x", v, 0xdead0020)
	}
	if rec.lastAddr != 0x20 {
		t.Errorf("MMIO read offset got 0x%x expected 0x%x", rec.lastAddr, 0x20)
	}
}

func TestMMIODefaultHandlers(t *testing.T) {
	mem := New()
	defer mem.Destroy()

	reg := mem.CreateMMIORegion("empty reg", 0x100000, MMIOHandlers{})

	// Unhandled reads return zero, unhandled writes drop.
	if v := reg.mmio.Read32(0x44); v != 0 {
		t.Errorf("Default read32 got 0x%x expected 0", v)
	}
	if v := reg.mmio.Read8(0x44); v != 0 {
		t.Errorf("Default read8 got 0x%x expected 0", v)
	}
	reg.mmio.Write32(0x44, 1)
}

func TestMemcpyGuest(t *testing.T) {
	mem, sp, _ := buildRAMSpace(t)
	defer mem.Destroy()
	defer sp.Destroy()

	for i := uint32(0); i < 16; i += 4 {
		sp.Write32(0x0c000000+i, 0x1000+i)
	}
	sp.Memcpy(0x0c100000, 0x0c000000, 16)
	for i := uint32(0); i < 16; i += 4 {
		if v := sp.Read32(0x0c100000 + i); v != 0x1000+i {
			t.Errorf("Memcpy at offset %d got 0x%x expected 0x%x", i, v, 0x1000+i)
		}
	}
}

func TestMemcpyHost(t *testing.T) {
	mem, sp, _ := buildRAMSpace(t)
	defer mem.Destroy()
	defer sp.Destroy()

	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	sp.MemcpyToGuest(0x0c200000, src)

	dst := make([]byte, 8)
	sp.MemcpyToHost(dst, 0x0c200000)
	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("MemcpyToHost byte %d got %d expected %d", i, dst[i], src[i])
		}
	}
}

func TestDeviceMount(t *testing.T) {
	mem := New()
	defer mem.Destroy()

	ram := mem.CreatePhysicalRegion("sub ram", 0x100000)
	if err := mem.Init(); err != nil {
		t.Fatalf("Memory init failed: %v", err)
	}

	// A device map mounted at an offset places its regions relative to
	// the mount address.
	sub := func(am *AddressMap) {
		am.Mount(ram, 0x100000, 0x00000000, 0xffffffff)
	}

	var am AddressMap
	am.Device(sub, 0x100000, 0x04000000, 0xffffffff)

	sp := mem.NewAddressSpace()
	if err := sp.Map("test", &am); err != nil {
		t.Fatalf("Address space map failed: %v", err)
	}
	defer sp.Destroy()

	sp.Write32(0x04000000, 0xfeedface)
	if v := sp.Read32(0x04000000); v != 0xfeedface {
		t.Errorf("Device-mounted region read got 0x%08x", v)
	}
}

func TestMirrorEntry(t *testing.T) {
	mem := New()
	defer mem.Destroy()

	ram := mem.CreatePhysicalRegion("main ram", 0x100000)
	if err := mem.Init(); err != nil {
		t.Fatalf("Memory init failed: %v", err)
	}

	var am AddressMap
	am.Mount(ram, 0x100000, 0x00000000, 0xffffffff)
	am.Mirror(0x00000000, 0x100000, 0x20000000)

	sp := mem.NewAddressSpace()
	if err := sp.Map("test", &am); err != nil {
		t.Fatalf("Address space map failed: %v", err)
	}
	defer sp.Destroy()

	sp.Write32(0x00000080, 0xabad1dea)
	if v := sp.Read32(0x20000080); v != 0xabad1dea {
		t.Errorf("Mirror entry read got 0x%08x expected 0x%08x", v, 0xabad1dea)
	}
}
