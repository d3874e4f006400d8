package aica

/*
 * Katana - AICA sound subsystem
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
	"time"

	"github.com/tswindell/katana/emu/device"
	"github.com/tswindell/katana/emu/memory"
	"github.com/tswindell/katana/emu/sched"
)

const (
	waveRAMSize = 0x00200000
	regRAMSize  = memory.PageSize

	// Guest sample rate.
	sampleRate = 44100

	// Samples produced per timer fire.
	batchFrames = 512
)

// Client carries the host audio callback.
type Client struct {
	PushAudio func(samples []int16)
}

// AICA is the sound subsystem: 2MB of wave memory, the channel register
// file, and the sample timer that feeds the host.
type AICA struct {
	mem    *memory.Memory
	sch    *sched.Scheduler
	client Client

	waveRegion *memory.Region
	regRegion  *memory.Region
	waveRAM    []byte

	reg [0x11000 / 4]uint32

	// RTC counter, seconds since the AICA epoch.
	rtc         uint32
	sampleTimer *sched.Timer
	samples     [batchFrames * 2]int16
}

func New(mem *memory.Memory, sch *sched.Scheduler) *AICA {
	a := &AICA{mem: mem, sch: sch}

	a.waveRegion = mem.CreatePhysicalRegion("aica wave ram", waveRAMSize)
	a.regRegion = mem.CreateMMIORegion("aica reg", regRAMSize, memory.MMIOHandlers{
		Read32:  a.regRead,
		Write32: a.regWrite,
		Read8: func(addr uint32) uint8 {
			return uint8(a.regRead(addr&^3) >> ((addr & 3) * 8))
		},
		Write8: func(addr uint32, v uint8) {
			shift := (addr & 3) * 8
			old := a.regRead(addr &^ 3)
			a.regWrite(addr&^3, (old&^(0xff<<shift))|uint32(v)<<shift)
		},
	})

	// The RTC epoch is 1/1/1950; seed it from the host clock.
	epoch := time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)
	a.rtc = uint32(time.Since(epoch) / time.Second)

	return a
}

func (a *AICA) Name() string {
	return "aica"
}

func (a *AICA) SetClient(c Client) {
	a.client = c
}

func (a *AICA) Init(m device.Lookup) error {
	a.waveRAM = a.mem.Translate("aica wave ram", 0)

	a.sampleTimer = a.sch.StartTimer(a.nextSample, nil, sampleBatchNanos())

	return nil
}

func (a *AICA) Shutdown() {
	if a.sampleTimer != nil {
		a.sch.CancelTimer(a.sampleTimer)
		a.sampleTimer = nil
	}
}

// InstallMap places the register file at the base of the map and wave ram
// 1MB above it. The SH-4 mounts this map at 0x00700000, which puts wave ram
// at 0x00800000.
func (a *AICA) InstallMap(m device.Lookup, am *memory.AddressMap) {
	am.Handle(a.regRegion, regRAMSize, 0x00000000, 0xffffffff)
	am.Mount(a.waveRegion, waveRAMSize, 0x00100000, 0xffffffff)
}

// WaveRAM exposes sound memory to the ARM7.
func (a *AICA) WaveRAM() []byte {
	return a.waveRAM
}

func sampleBatchNanos() int64 {
	return int64(batchFrames) * 1000000000 / sampleRate
}

// nextSample mixes a batch of frames and pushes them to the host. Channel
// synthesis follows the register file; an idle register file produces
// silence.
func (a *AICA) nextSample(any) {
	for i := range a.samples {
		a.samples[i] = 0
	}

	a.mixChannels(a.samples[:])

	if a.client.PushAudio != nil {
		a.client.PushAudio(a.samples[:])
	}

	a.sampleTimer = a.sch.StartTimer(a.nextSample, nil, sampleBatchNanos())
}

// mixChannels renders each active channel's PCM data into the interleaved
// stereo buffer.
func (a *AICA) mixChannels(out []int16) {
	for ch := 0; ch < 64; ch++ {
		base := uint32(ch * 0x80)

		// KYONB / playing state lives in the channel's first register.
		ctl := a.reg[base>>2]
		if ctl&0x4000 == 0 {
			continue
		}

		start := (ctl&0x1f)<<16 | a.reg[(base+0x04)>>2]&0xffff
		pos := a.channelPos(ch)

		for i := 0; i < len(out); i += 2 {
			addr := (start + pos) & (waveRAMSize - 1)
			sample := int16(binary.LittleEndian.Uint16(a.waveRAM[addr&^1:]))
			out[i] += sample / 2
			out[i+1] += sample / 2
			pos += 2
		}

		a.setChannelPos(ch, pos)
	}
}

func (a *AICA) channelPos(ch int) uint32 {
	return a.reg[(0x10000+ch*4)>>2]
}

func (a *AICA) setChannelPos(ch int, pos uint32) {
	a.reg[(0x10000+ch*4)>>2] = pos
}

func (a *AICA) regRead(addr uint32) uint32 {
	// RTC counter at 0x10000 / 0x10004, high and low halves.
	switch addr {
	case 0x10000:
		return a.rtc >> 16
	case 0x10004:
		return a.rtc & 0xffff
	}

	if int(addr>>2) < len(a.reg) {
		return a.reg[addr>>2]
	}
	return 0
}

func (a *AICA) regWrite(addr uint32, v uint32) {
	if int(addr>>2) < len(a.reg) {
		a.reg[addr>>2] = v
	}
}
