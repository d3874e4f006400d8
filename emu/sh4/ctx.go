package sh4

/*
 * Katana - SH-4 execution context
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

// SR bits.
const (
	srT    = 1 << 0
	srS    = 1 << 1
	srIMASK = 0xf << 4
	srQ    = 1 << 8
	srM    = 1 << 9
	srFD   = 1 << 15
	srBL   = 1 << 28
	srRB   = 1 << 29
	srMD   = 1 << 30
)

// FPSCR bits.
const (
	fpscrSZ = 1 << 20
	fpscrPR = 1 << 19
	fpscrFR = 1 << 21
)

// Context is the guest-visible CPU state the JIT frontend lowers against.
//
// The floating point register file is stored pairwise swapped: fr[0] holds
// FR1 and fr[1] holds FR0, and likewise through the bank. Host code
// accessing 64-bit pairs (fmov DRn) reads them contiguously this way; the
// FR / SetFR accessors fold the swap for scalar access. xf holds the
// inactive bank with the same layout.
type Context struct {
	PC  uint32
	PR  uint32
	SR  uint32
	SSR uint32
	SPC uint32
	GBR uint32
	VBR uint32
	DBR uint32
	SGR uint32

	MACH uint32
	MACL uint32

	R    [16]uint32
	RAlt [8]uint32

	FPSCR uint32
	FPUL  uint32
	FR    [16]float32
	XF    [16]float32

	// Pending interrupt request levels from the system controller,
	// one bit per level.
	Pending uint32

	// Cycles run so far, accumulated across run slices.
	RanCycles int64
}

// FRGet reads scalar register FRn, folding the pairwise swap.
func (c *Context) FRGet(n int) float32 {
	return c.FR[n^1]
}

func (c *Context) FRSet(n int, v float32) {
	c.FR[n^1] = v
}

// XFGet reads scalar register XFn of the inactive bank.
func (c *Context) XFGet(n int) float32 {
	return c.XF[n^1]
}

func (c *Context) XFSet(n int, v float32) {
	c.XF[n^1] = v
}

// SwapFPBanks exchanges the active and inactive float banks. Called when
// FPSCR.FR changes. The pairwise swap is preserved as-is, both banks carry
// the same layout.
func (c *Context) SwapFPBanks() {
	c.FR, c.XF = c.XF, c.FR
}

// SwapRegBank exchanges R0-R7 with the inactive bank. Called when SR.RB
// changes in privileged mode.
func (c *Context) SwapRegBank() {
	for i := 0; i < 8; i++ {
		c.R[i], c.RAlt[i] = c.RAlt[i], c.R[i]
	}
}

// SetSR updates SR, swapping the register bank when RB changes.
func (c *Context) SetSR(v uint32) {
	old := c.SR
	c.SR = v

	if (old^v)&srRB != 0 {
		c.SwapRegBank()
	}
}

// SetFPSCR updates FPSCR, swapping the float banks when FR changes.
func (c *Context) SetFPSCR(v uint32) {
	old := c.FPSCR
	c.FPSCR = v

	if (old^v)&fpscrFR != 0 {
		c.SwapFPBanks()
	}
}

// IntMask returns the SR.IMASK field.
func (c *Context) IntMask() uint32 {
	return (c.SR & srIMASK) >> 4
}
