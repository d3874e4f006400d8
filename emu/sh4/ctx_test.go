package sh4

/*
 * Katana - SH-4 context tests
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

// The float file is stored pairwise swapped: FR0 lives at fr[1] and FR1 at
// fr[0].
func TestFloatRegisterSwap(t *testing.T) {
	var c Context

	c.FRSet(0, 1.0)
	c.FRSet(1, 2.0)

	if c.FR[1] != 1.0 {
		t.Errorf("FR0 not stored at fr[1], got %f", c.FR[1])
	}
	if c.FR[0] != 2.0 {
		t.Errorf("FR1 not stored at fr[0], got %f", c.FR[0])
	}
	if c.FRGet(0) != 1.0 || c.FRGet(1) != 2.0 {
		t.Errorf("scalar accessors did not fold the swap")
	}
}

func TestFloatBankSwitch(t *testing.T) {
	var c Context

	c.FRSet(0, 1.0)
	c.XFSet(0, 9.0)

	// Toggling FPSCR.FR swaps the banks whole, preserving the layout.
	c.SetFPSCR(c.FPSCR | fpscrFR)

	if c.FRGet(0) != 9.0 {
		t.Errorf("bank switch did not expose XF bank, got %f", c.FRGet(0))
	}
	if c.XFGet(0) != 1.0 {
		t.Errorf("bank switch did not stash FR bank, got %f", c.XFGet(0))
	}

	// Switching back restores everything.
	c.SetFPSCR(c.FPSCR &^ fpscrFR)
	if c.FRGet(0) != 1.0 || c.XFGet(0) != 9.0 {
		t.Errorf("double bank switch not an identity")
	}
}

func TestRegisterBankSwitch(t *testing.T) {
	var c Context

	c.R[0] = 0x11
	c.RAlt[0] = 0x22
	c.R[8] = 0x33

	c.SetSR(c.SR | srRB)

	if c.R[0] != 0x22 || c.RAlt[0] != 0x11 {
		t.Errorf("bank switch did not swap r0-r7")
	}
	if c.R[8] != 0x33 {
		t.Errorf("bank switch touched r8-r15")
	}
}

func TestInterruptMask(t *testing.T) {
	var c Context

	c.SetSR(0xb << 4)
	if c.IntMask() != 0xb {
		t.Errorf("imask got %x expected b", c.IntMask())
	}
}
