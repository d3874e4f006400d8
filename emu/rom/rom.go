package rom

/*
 * Katana - Boot ROM and flash devices
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
	"fmt"
	"log/slog"
	"os"

	"github.com/tswindell/katana/emu/device"
	"github.com/tswindell/katana/emu/memory"
)

const (
	bootSize  = 0x00200000
	flashSize = 0x00100000

	// The writable flash segment is smaller than its mapped page.
	flashDataSize = 0x00020000
)

// Boot is the 2MB system ROM.
type Boot struct {
	mem    *memory.Memory
	region *memory.Region
	path   string
}

func NewBoot(mem *memory.Memory) *Boot {
	b := &Boot{mem: mem}
	b.region = mem.CreatePhysicalRegion("boot rom", bootSize)
	return b
}

func (b *Boot) Name() string {
	return "boot"
}

// SetPath selects the ROM image loaded at init.
func (b *Boot) SetPath(path string) {
	b.path = path
}

func (b *Boot) Init(m device.Lookup) error {
	if b.path == "" {
		slog.Warn("no boot rom image configured")
		return nil
	}

	data, err := os.ReadFile(b.path)
	if err != nil {
		return fmt.Errorf("boot rom: %w", err)
	}
	if len(data) > bootSize {
		return fmt.Errorf("boot rom image %s larger than 0x%x bytes", b.path, bootSize)
	}

	copy(b.mem.Translate("boot rom", 0), data)

	return nil
}

func (b *Boot) Shutdown() {}

func (b *Boot) InstallMap(m device.Lookup, am *memory.AddressMap) {
	am.Mount(b.region, bootSize, 0x00000000, 0xffffffff)
}

// Flash is the 128KB settings flash, mapped through a 1MB page.
type Flash struct {
	mem    *memory.Memory
	region *memory.Region
	path   string
}

func NewFlash(mem *memory.Memory) *Flash {
	f := &Flash{mem: mem}
	f.region = mem.CreatePhysicalRegion("flash rom", flashSize)
	return f
}

func (f *Flash) Name() string {
	return "flash"
}

func (f *Flash) SetPath(path string) {
	f.path = path
}

func (f *Flash) Init(m device.Lookup) error {
	if f.path == "" {
		slog.Warn("no flash image configured")
		return nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("flash rom: %w", err)
	}
	if len(data) > flashDataSize {
		return fmt.Errorf("flash image %s larger than 0x%x bytes", f.path, flashDataSize)
	}

	copy(f.mem.Translate("flash rom", 0), data)

	return nil
}

// Shutdown writes modified settings back to the image.
func (f *Flash) Shutdown() {
	if f.path == "" {
		return
	}

	data := f.mem.Translate("flash rom", 0)[:flashDataSize]
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		slog.Warn("failed to save flash image", "path", f.path, "err", err)
	}
}

func (f *Flash) InstallMap(m device.Lookup, am *memory.AddressMap) {
	am.Mount(f.region, flashSize, 0x00000000, 0xffffffff)
}
