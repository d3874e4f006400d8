package maple

/*
 * Katana - Maple peripheral bus
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
	"github.com/tswindell/katana/emu/memory"
	"github.com/tswindell/katana/util/debug"
)

// Register offsets within the maple slice of the system block.
const (
	regMDSTAR = 0x04
	regMDTSEL = 0x10
	regMDEN   = 0x14
	regMDST   = 0x18
)

// Frame commands.
const (
	cmdDevInfo  = 1
	cmdGetCond  = 9
	respDevInfo = 5
	respDataTrf = 8
	respNone    = 0xff
)

// Client carries the input poll callback, invoked before a controller
// answers a get-condition request.
type Client struct {
	PollInput func()
}

// Controller is a standard pad on one port.
type Controller struct {
	Buttons  uint16
	LTrigger uint8
	RTrigger uint8
	JoyX     uint8
	JoyY     uint8
}

// Condition packs the controller state as the guest expects it. Buttons
// are active low.
func (c *Controller) Condition() [3]uint32 {
	var cond [3]uint32
	cond[0] = 0x01000000 // controller function
	cond[1] = uint32(^c.Buttons)&0xffff | uint32(c.RTrigger)<<16 | uint32(c.LTrigger)<<24
	cond[2] = uint32(c.JoyX) | uint32(c.JoyY)<<8 | 0x8080<<16
	return cond
}

// Maple is the peripheral bus controller. Transfer descriptors are fetched
// from system ram, each frame dispatched to the addressed port's device,
// and responses written back.
type Maple struct {
	hly    *holly.Holly
	space  *memory.AddressSpace
	client Client

	controllers [4]*Controller

	mdstar uint32
	mdtsel uint32
	mden   uint32
}

func New() *Maple {
	m := &Maple{}
	// Port A has a controller plugged in.
	m.controllers[0] = &Controller{}
	return m
}

func (mp *Maple) Name() string {
	return "maple"
}

func (mp *Maple) SetClient(c Client) {
	mp.client = c
}

func (mp *Maple) Init(m device.Lookup) error {
	hly, ok := m.Device("holly").(*holly.Holly)
	if !ok {
		return fmt.Errorf("maple: no holly device")
	}
	mp.hly = hly

	sh4, ok := m.Device("sh4").(device.BusMaster)
	if !ok {
		return fmt.Errorf("maple: no sh4 address space")
	}
	mp.space = sh4.Space()

	return nil
}

func (mp *Maple) Shutdown() {}

// Port returns the controller on a port, nil when nothing is plugged in.
func (mp *Maple) Port(n int) *Controller {
	return mp.controllers[n]
}

// RegRead32 handles the maple slice of the system block.
func (mp *Maple) RegRead32(offset uint32) uint32 {
	switch offset {
	case regMDSTAR:
		return mp.mdstar
	case regMDTSEL:
		return mp.mdtsel
	case regMDEN:
		return mp.mden
	case regMDST:
		// Transfers complete within the write, so status reads idle.
		return 0
	}

	slog.Debug("maple read of unhandled register", "offset", fmt.Sprintf("0x%02x", offset))
	return 0
}

func (mp *Maple) RegWrite32(offset uint32, v uint32) {
	switch offset {
	case regMDSTAR:
		mp.mdstar = v
	case regMDTSEL:
		mp.mdtsel = v
	case regMDEN:
		mp.mden = v
	case regMDST:
		if v&1 != 0 && mp.mden&1 != 0 {
			mp.transfer()
		}
	default:
		slog.Debug("maple write to unhandled register",
			"offset", fmt.Sprintf("0x%02x", offset), "value", fmt.Sprintf("0x%08x", v))
	}
}

// transfer walks the DMA descriptor list at SB_MDSTAR, dispatching each
// frame and writing responses to the supplied receive addresses.
func (mp *Maple) transfer() {
	addr := mp.mdstar

	for {
		desc := mp.space.Read32(addr)
		recvAddr := mp.space.Read32(addr + 4)
		last := desc&0x80000000 != 0
		port := int(desc>>16) & 3

		frame := mp.space.Read32(addr + 8)
		command := frame & 0xff
		numWords := frame >> 24
		addr += 12 + numWords*4

		debug.Debugf("maple", debug.DebugMaple, "frame port %d command %d recv 0x%08x", port, command, recvAddr)
		mp.dispatch(port, command, recvAddr)

		if last {
			break
		}
	}

	mp.hly.RaiseInterrupt(holly.IntMapleDMADone)
}

func (mp *Maple) dispatch(port int, command, recvAddr uint32) {
	ctrl := mp.controllers[port]
	if ctrl == nil {
		// No device on this port.
		mp.space.Write32(recvAddr, 0xffffffff)
		return
	}

	switch command {
	case cmdDevInfo:
		// Function code plus padded identity; enough for enumeration.
		mp.space.Write32(recvAddr, respDevInfo|28<<24)
		mp.space.Write32(recvAddr+4, 0x01000000)
		for i := uint32(8); i < 32; i += 4 {
			mp.space.Write32(recvAddr+i, 0)
		}

	case cmdGetCond:
		// Gather fresh input before answering.
		if mp.client.PollInput != nil {
			mp.client.PollInput()
		}

		cond := ctrl.Condition()
		mp.space.Write32(recvAddr, respDataTrf|3<<24)
		for i, w := range cond {
			mp.space.Write32(recvAddr+4+uint32(i)*4, w)
		}

	default:
		slog.Warn("maple unsupported command", "command", command)
		mp.space.Write32(recvAddr, respNone<<24)
	}
}
