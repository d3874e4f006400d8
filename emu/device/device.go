/*
 * Katana - Guest device interfaces
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a
 * copy of this software and associated documentation files (the "Software"),
 * to deal in the Software without restriction, including without limitation
 * the rights to use, copy, modify, merge, publish, distribute, sublicense,
 * and/or sell copies of the Software, and to permit persons to whom the
 * Software is furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
 * THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 */
package device

import (
	"github.com/tswindell/katana/emu/memory"
)

// Lookup resolves registered devices by name. Cross-device references are
// resolved through it during Init rather than held from construction.
type Lookup interface {
	Device(name string) Device
}

// Device is the interface every guest device implements. Optional
// capabilities are expressed by also implementing Executor, Mapper or
// Debugger.
type Device interface {
	Name() string

	// Init is called once all devices are registered and the memory
	// system is mapped. Devices resolve references to their peers here.
	Init(m Lookup) error

	// Shutdown releases any host resources the device holds.
	Shutdown()
}

// Executor is implemented by devices that consume emulated time. Run
// advances the device by a budget of guest nanoseconds. Run implementations
// may raise interrupts on peers but must not call back into the scheduler's
// tick.
type Executor interface {
	Device
	Running() bool
	Run(ns int64)
}

// Mapper is implemented by devices that contribute regions to a guest
// address space. A device's map may be mounted into another device's space.
type Mapper interface {
	Device

	// InstallMap records the device's view of the guest address space.
	InstallMap(m Lookup, am *memory.AddressMap)
}

// BusMaster is a mapper that owns a full guest address space, built from
// its map during machine init.
type BusMaster interface {
	Mapper
	Space() *memory.AddressSpace
}

// Debugger is implemented by devices that expose state to the monitor.
type Debugger interface {
	Device
	NumRegs() int
	ReadReg(n int) (string, uint64)
	ReadMem(addr uint32, buf []byte)
	Step()
}
