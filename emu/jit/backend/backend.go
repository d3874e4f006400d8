package backend

/*
 * Katana - JIT backend target description
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
	"github.com/tswindell/katana/emu/jit/ir"
)

// Operand location flags. Register class bits are shared between register
// descriptors and emitter operand constraints; the immediate kinds describe
// what an emitter can encode inline.
const (
	RegI64 = 1 << iota
	RegF64
	RegV128
	ImmI32
	ImmI64
	ImmF32
	ImmF64
	ImmBlk

	// An emitter argument that may be absent.
	Optional

	// The emitter requires the result to share arg0's register.
	ReuseArg0

	// Register descriptor flags.
	Allocate
	CallerSave
)

// TypeMask selects the register class bits.
const TypeMask = RegI64 | RegF64 | RegV128

// Register describes one machine register available to the allocator.
type Register struct {
	Name  string
	Flags int
}

// Emitter describes the operand constraints of one opcode's encoder.
type Emitter struct {
	ResFlags int
	ArgFlags [ir.MaxArgs]int
}

// Target bundles the register file and per-op emitters of a host backend.
type Target struct {
	Registers []Register
	Emitters  [ir.NumOps]Emitter
}
