package aica

/*
 * Katana - ARM7 sound CPU
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

	"github.com/tswindell/katana/emu/device"
)

const arm7ClockHz = 22579200

// ARM7 is the sound program processor. It executes out of the AICA's wave
// memory. Execution stays suspended until Resume is called; no write to the
// AICA register file releases it.
type ARM7 struct {
	aica    *AICA
	running bool

	pc     uint32
	cycles int64
}

func NewARM7() *ARM7 {
	return &ARM7{}
}

func (c *ARM7) Name() string {
	return "arm7"
}

func (c *ARM7) Init(m device.Lookup) error {
	a, ok := m.Device("aica").(*AICA)
	if !ok {
		return fmt.Errorf("arm7: no aica device")
	}
	c.aica = a
	return nil
}

func (c *ARM7) Shutdown() {}

// Suspend halts the sound program, Resume restarts it from the reset
// vector.
func (c *ARM7) Suspend() {
	c.running = false
}

func (c *ARM7) Resume() {
	c.pc = 0
	c.running = true
}

func (c *ARM7) Running() bool {
	return c.running
}

// Run consumes the time slice. No sound program is executed; the elapsed
// time is only accumulated in the cycle counter.
func (c *ARM7) Run(ns int64) {
	c.cycles += ns * arm7ClockHz / 1000000000
}
