package dc

/*
 * Katana - Dreamcast machine assembly
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
	"github.com/tswindell/katana/emu/aica"
	"github.com/tswindell/katana/emu/device"
	"github.com/tswindell/katana/emu/gdrom"
	"github.com/tswindell/katana/emu/holly"
	"github.com/tswindell/katana/emu/machine"
	"github.com/tswindell/katana/emu/maple"
	"github.com/tswindell/katana/emu/memory"
	"github.com/tswindell/katana/emu/pvr"
	"github.com/tswindell/katana/emu/rom"
	"github.com/tswindell/katana/emu/sh4"
	"github.com/tswindell/katana/emu/ta"
)

const ramSize = 0x01000000

// Client is the host side of the machine: everything the guest pushes out
// lands in one of these callbacks.
type Client struct {
	PushAudio    func(samples []int16)
	PushPixels   func(rgb []byte, w, h int)
	StartRender  func(ctx *ta.Context)
	FinishRender func()
	VBlankIn     func(videoDisabled bool)
	VBlankOut    func()
	PollInput    func()
}

// ram is the 16MB of system memory, mounted by the SH-4 with the area 3
// mirror bits.
type ram struct {
	region *memory.Region
}

func (r *ram) Name() string                 { return "ram" }
func (r *ram) Init(m device.Lookup) error   { return nil }
func (r *ram) Shutdown()                    {}
func (r *ram) InstallMap(m device.Lookup, am *memory.AddressMap) {
	am.Mount(r.region, ramSize, 0x00000000, 0xffffffff)
}

// Dreamcast wires the full machine together.
type Dreamcast struct {
	m *machine.Machine

	SH4   *sh4.SH4
	Holly *holly.Holly
	PVR   *pvr.PVR
	TA    *ta.TA
	AICA  *aica.AICA
	ARM7  *aica.ARM7
	Boot  *rom.Boot
	Flash *rom.Flash
	GDROM *gdrom.GDROM
	Maple *maple.Maple
}

// New builds and initializes a machine. Paths for the boot ROM and flash
// default to the values loaded from the configuration file.
func New(client Client) (*Dreamcast, error) {
	m := machine.New()
	mem := m.Memory()
	sch := m.Scheduler()

	d := &Dreamcast{m: m}

	d.SH4 = sh4.New(mem)
	d.Holly = holly.New(mem)
	d.PVR = pvr.New(mem, sch, d.Holly)
	d.TA = ta.New(mem, sch)
	d.AICA = aica.New(mem, sch)
	d.ARM7 = aica.NewARM7()
	d.Boot = rom.NewBoot(mem)
	d.Flash = rom.NewFlash(mem)
	d.GDROM = gdrom.New()
	d.Maple = maple.New()

	d.Boot.SetPath(configured.bootPath)
	d.Flash.SetPath(configured.flashPath)

	d.PVR.SetClient(pvr.Client{
		PushPixels: client.PushPixels,
		VBlankIn:   client.VBlankIn,
		VBlankOut:  client.VBlankOut,
	})
	d.TA.SetClient(ta.Client{
		StartRender:  client.StartRender,
		FinishRender: client.FinishRender,
	})
	d.AICA.SetClient(aica.Client{
		PushAudio: client.PushAudio,
	})
	d.Maple.SetClient(maple.Client{
		PollInput: client.PollInput,
	})

	// Registration order is execution order.
	m.Register(d.SH4)
	m.Register(d.ARM7)
	m.Register(d.Holly)
	m.Register(d.PVR)
	m.Register(d.TA)
	m.Register(d.AICA)
	m.Register(d.Boot)
	m.Register(d.Flash)
	m.Register(&ram{region: mem.CreatePhysicalRegion("system ram", ramSize)})
	m.Register(d.GDROM)
	m.Register(d.Maple)

	if err := m.Init(); err != nil {
		m.Shutdown()
		return nil, err
	}

	return d, nil
}

// Machine exposes the underlying aggregate to the monitor.
func (d *Dreamcast) Machine() *machine.Machine {
	return d.m
}

// Tick advances guest time by ns nanoseconds.
func (d *Dreamcast) Tick(ns int64) {
	d.m.Tick(ns)
}

func (d *Dreamcast) Running() bool {
	return d.m.Running()
}

func (d *Dreamcast) Suspend() {
	d.m.Suspend()
}

func (d *Dreamcast) Resume() {
	d.m.Resume()
}

func (d *Dreamcast) Shutdown() {
	d.m.Shutdown()
}
