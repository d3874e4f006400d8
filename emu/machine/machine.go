package machine

/*
 * Katana - Guest machine aggregate
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
	"github.com/tswindell/katana/emu/memory"
	"github.com/tswindell/katana/emu/sched"
)

// Machine wires devices into a single guest machine: it owns the memory
// system, the scheduler and the device list. Control flow per host tick is
// Tick(ns), which drives the scheduler, which drives each executable
// device and every expiring timer in chronological order.
type Machine struct {
	mem *memory.Memory
	sch *sched.Scheduler

	devices []device.Device
	byName  map[string]device.Device

	// Executors cached at init so the scheduler's hot loop doesn't type
	// assert per slice.
	executors []device.Executor

	running bool
}

func New() *Machine {
	m := &Machine{
		mem:    memory.New(),
		byName: make(map[string]device.Device),
	}
	m.sch = sched.New(m)
	return m
}

func (m *Machine) Memory() *memory.Memory {
	return m.mem
}

func (m *Machine) Scheduler() *sched.Scheduler {
	return m.sch
}

// Register adds a device to the machine. Registration order is the order
// devices execute in.
func (m *Machine) Register(dev device.Device) {
	if _, ok := m.byName[dev.Name()]; ok {
		slog.Error("duplicate device registered", "name", dev.Name())
		panic("duplicate device " + dev.Name())
	}
	m.devices = append(m.devices, dev)
	m.byName[dev.Name()] = dev
}

// Device returns the registered device with the given name, or nil.
func (m *Machine) Device(name string) device.Device {
	return m.byName[name]
}

// Init brings the machine up: creates the shared memory object, flattens
// each mapping device's address map into its address space, then
// initializes every device. Failures here abort machine creation.
func (m *Machine) Init() error {
	if err := m.mem.Init(); err != nil {
		return err
	}

	for _, dev := range m.devices {
		master, ok := dev.(device.BusMaster)
		if !ok {
			continue
		}

		var am memory.AddressMap
		master.InstallMap(m, &am)

		if err := master.Space().Map(dev.Name(), &am); err != nil {
			return fmt.Errorf("device %s: %w", dev.Name(), err)
		}
	}

	for _, dev := range m.devices {
		if err := dev.Init(m); err != nil {
			return fmt.Errorf("device %s: %w", dev.Name(), err)
		}
		if exec, ok := dev.(device.Executor); ok {
			m.executors = append(m.executors, exec)
		}
	}

	m.running = true

	return nil
}

// Tick advances guest time by ns nanoseconds.
func (m *Machine) Tick(ns int64) {
	if m.running {
		m.sch.Tick(ns)
	}
}

func (m *Machine) Running() bool {
	return m.running
}

func (m *Machine) Suspend() {
	m.running = false
}

func (m *Machine) Resume() {
	m.running = true
}

// RunDevices hands each running executable device its time slice. Called
// from the scheduler only.
func (m *Machine) RunDevices(ns int64) {
	for _, exec := range m.executors {
		if exec.Running() {
			exec.Run(ns)
		}
	}
}

// Shutdown stops the machine and releases every device and the memory
// system.
func (m *Machine) Shutdown() {
	m.running = false

	for _, dev := range m.devices {
		dev.Shutdown()
	}
	for _, dev := range m.devices {
		if master, ok := dev.(device.BusMaster); ok {
			master.Space().Destroy()
		}
	}
	m.mem.Destroy()
}
