package gdrom

/*
 * Katana - GD-ROM drive controller
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

	"github.com/tswindell/katana/emu/device"
	"github.com/tswindell/katana/emu/holly"
	"github.com/tswindell/katana/util/debug"
)

// ATA register offsets within the G1 window.
const (
	regAltStatus = 0x18
	regData      = 0x80
	regError     = 0x84
	regIntReason = 0x84
	regSecNum    = 0x8c
	regByteCntLo = 0x90
	regByteCntHi = 0x94
	regDrvSel    = 0x98
	regStatus    = 0x9c
	regCommand   = 0x9c
)

// Status bits.
const (
	statusCheck = 1 << 0
	statusDRQ   = 1 << 3
	statusDSC   = 1 << 4
	statusDRDY  = 1 << 6
	statusBSY   = 1 << 7
)

// Disc states reported through the sector number register.
const (
	discBusy = iota
	discPause
	discStandby
	discPlay
	discSeek
	discScan
	discOpen
	discNoDisc
)

// Disc is the loaded media: the disc-image loaders live outside the core
// and satisfy this from a parsed image.
type Disc interface {
	ReadSector(lba int, buf []byte) error
}

// GDROM is the drive controller register block. It answers the ATA status
// protocol the bios polls at boot; packet transfers raise the external
// interrupt line through HOLLY.
type GDROM struct {
	hly  *holly.Holly
	disc Disc

	status    uint32
	intReason uint32
	secNum    uint32
	byteCount uint32
	features  uint32
}

func New() *GDROM {
	g := &GDROM{}
	g.status = statusDRDY | statusDSC
	g.secNum = discNoDisc << 4
	return g
}

func (g *GDROM) Name() string {
	return "gdrom"
}

func (g *GDROM) Init(m device.Lookup) error {
	hly, ok := m.Device("holly").(*holly.Holly)
	if !ok {
		return fmt.Errorf("gdrom: no holly device")
	}
	g.hly = hly
	return nil
}

func (g *GDROM) Shutdown() {}

// SetDisc loads or ejects media.
func (g *GDROM) SetDisc(d Disc) {
	g.disc = d
	if d != nil {
		g.secNum = discPause << 4
	} else {
		g.secNum = discNoDisc << 4
	}
}

// RegRead32 handles the drive's slice of the G1 register window.
func (g *GDROM) RegRead32(offset uint32) uint32 {
	switch offset {
	case regAltStatus:
		return g.status
	case regStatus:
		// Reading the status register acknowledges the interrupt.
		g.hly.ClearInterrupt(holly.IntGDROM)
		return g.status
	case regIntReason:
		return g.intReason
	case regSecNum:
		return g.secNum
	case regByteCntLo:
		return g.byteCount & 0xff
	case regByteCntHi:
		return g.byteCount >> 8
	}

	slog.Debug("gdrom read of unhandled register", "offset", fmt.Sprintf("0x%02x", offset))
	return 0
}

func (g *GDROM) RegWrite32(offset uint32, v uint32) {
	switch offset {
	case regByteCntLo:
		g.byteCount = g.byteCount&0xff00 | v&0xff
		return
	case regByteCntHi:
		g.byteCount = g.byteCount&0x00ff | (v&0xff)<<8
		return
	case regDrvSel:
		return
	case regCommand:
		g.command(v & 0xff)
		return
	}

	slog.Debug("gdrom write to unhandled register",
		"offset", fmt.Sprintf("0x%02x", offset), "value", fmt.Sprintf("0x%08x", v))
}

// command starts an ATA command. Only the subset the bios requires to
// reach the license screen is implemented.
func (g *GDROM) command(cmd uint32) {
	debug.Debugf("gdrom", debug.DebugGDROM, "ata command 0x%02x", cmd)

	switch cmd {
	case 0x08: // soft reset
		g.status = statusDRDY | statusDSC
	case 0xef: // set features
		g.status = statusDRDY | statusDSC
		g.hly.RaiseInterrupt(holly.IntGDROM)
	case 0xa0: // packet command follows via the data register
		g.intReason = 1
		g.status = statusDRDY | statusDRQ
	default:
		slog.Warn("gdrom unsupported ata command", "cmd", fmt.Sprintf("0x%02x", cmd))
		g.status = statusDRDY | statusCheck
		g.hly.RaiseInterrupt(holly.IntGDROM)
	}
}
