package regalloc

/*
 * Katana - Register allocation tests
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

	"github.com/tswindell/katana/emu/jit/backend"
	"github.com/tswindell/katana/emu/jit/ir"
)

// testTarget builds a register file with the requested number of integer
// registers, the first callerSave of which are caller-saved, plus two
// float registers. Emitters accept anything.
func testTarget(intRegs, callerSave int) *backend.Target {
	target := &backend.Target{}

	for i := 0; i < intRegs; i++ {
		flags := backend.RegI64 | backend.Allocate
		if i < callerSave {
			flags |= backend.CallerSave
		}
		target.Registers = append(target.Registers, backend.Register{
			Name:  "r" + string(rune('0'+i)),
			Flags: flags,
		})
	}
	for i := 0; i < 2; i++ {
		target.Registers = append(target.Registers, backend.Register{
			Name:  "f" + string(rune('0'+i)),
			Flags: backend.RegF64 | backend.Allocate,
		})
	}

	anyArg := backend.TypeMask | backend.ImmI32 | backend.ImmI64 |
		backend.ImmF32 | backend.ImmF64 | backend.ImmBlk | backend.Optional
	anyRes := backend.TypeMask | backend.Optional

	for op := ir.Op(0); op < ir.NumOps; op++ {
		e := backend.Emitter{ResFlags: anyRes}
		for i := range e.ArgFlags {
			e.ArgFlags[i] = anyArg
		}
		target.Emitters[op] = e
	}

	return target
}

func countOps(blk *ir.Block, op ir.Op) int {
	n := 0
	for instr := blk.Head; instr != nil; instr = instr.Next {
		if instr.Op == op {
			n++
		}
	}
	return n
}

func TestSimpleAllocation(t *testing.T) {
	u := ir.New()
	u.AppendBlock("entry")

	a := u.LoadContext(0x00, ir.TypeI32)
	b := u.LoadContext(0x04, ir.TypeI32)
	c := u.Add(a, b)
	u.StoreContext(0x08, c)

	ra := New(testTarget(4, 0))
	ra.Run(u)

	if a.Reg == ir.NoRegister || b.Reg == ir.NoRegister || c.Reg == ir.NoRegister {
		t.Fatalf("values left unallocated: %d %d %d", a.Reg, b.Reg, c.Reg)
	}
	if a.Reg == b.Reg {
		t.Errorf("simultaneously live values share register %d", a.Reg)
	}

	if gprs, _ := ra.Spilled(); gprs != 0 {
		t.Errorf("unexpected spills: %d", gprs)
	}
}

func TestFloatClassSelection(t *testing.T) {
	u := ir.New()
	u.AppendBlock("entry")

	a := u.LoadContext(0x00, ir.TypeF32)
	b := u.LoadContext(0x04, ir.TypeF32)
	c := u.Fadd(a, b)
	u.StoreContext(0x08, c)

	target := testTarget(2, 0)
	ra := New(target)
	ra.Run(u)

	// Floats land in the float registers, which follow the int file.
	if a.Reg < 2 || b.Reg < 2 {
		t.Errorf("float values allocated to integer registers: %d %d", a.Reg, b.Reg)
	}
}

func TestSpillUnderPressure(t *testing.T) {
	u := ir.New()
	u.AppendBlock("entry")

	// Five simultaneously live values in a two register file.
	var vals []*ir.Value
	for i := 0; i < 5; i++ {
		vals = append(vals, u.LoadContext(i*4, ir.TypeI32))
	}
	sum := vals[0]
	for _, v := range vals[1:] {
		sum = u.Add(sum, v)
	}
	u.StoreContext(0x40, sum)

	ra := New(testTarget(2, 0))
	ra.Run(u)

	gprs, _ := ra.Spilled()
	if gprs == 0 {
		t.Fatalf("no spills under register pressure")
	}

	blk := u.Blocks[0]
	if countOps(blk, ir.OpStoreLocal) != gprs {
		t.Errorf("spill stores got %d expected %d", countOps(blk, ir.OpStoreLocal), gprs)
	}
	if countOps(blk, ir.OpLoadLocal) == 0 {
		t.Errorf("spilled values never reloaded")
	}
}

func TestCallSpillsCallerSaved(t *testing.T) {
	u := ir.New()
	u.AppendBlock("entry")

	// a and b are live across the call, c dies at it.
	a := u.LoadContext(0x00, ir.TypeI32)
	b := u.LoadContext(0x04, ir.TypeI32)
	c := u.LoadContext(0x08, ir.TypeI32)
	u.Call(u.AllocI64(0x1234), c)
	sum := u.Add(a, b)
	u.StoreContext(0x0c, sum)

	// Every integer register is caller-saved.
	ra := New(testTarget(4, 4))
	ra.Run(u)

	blk := u.Blocks[0]

	// Both surviving temporaries spill before the call and refill before
	// their next use.
	stores := 0
	var call *ir.Instr
	for instr := blk.Head; instr != nil; instr = instr.Next {
		if instr.Op == ir.OpCall {
			call = instr
			break
		}
		if instr.Op == ir.OpStoreLocal {
			stores++
		}
	}
	if call == nil {
		t.Fatalf("call instruction lost")
	}
	if stores != 2 {
		t.Errorf("stores before call got %d expected 2", stores)
	}

	loads := 0
	for instr := call.Next; instr != nil; instr = instr.Next {
		if instr.Op == ir.OpLoadLocal {
			loads++
		}
	}
	if loads != 2 {
		t.Errorf("reloads after call got %d expected 2", loads)
	}
}

func TestReuseArg0(t *testing.T) {
	u := ir.New()
	u.AppendBlock("entry")

	a := u.LoadContext(0x00, ir.TypeI32)
	b := u.LoadContext(0x04, ir.TypeI32)
	sum := u.Add(a, b)
	u.StoreContext(0x08, sum)

	target := testTarget(4, 0)
	e := target.Emitters[ir.OpAdd]
	e.ResFlags |= backend.ReuseArg0
	target.Emitters[ir.OpAdd] = e

	ra := New(target)
	ra.Run(u)

	// a dies at the add, so its register is reused in place with no copy.
	if sum.Reg != a.Reg {
		t.Errorf("result register %d did not reuse arg0 register %d", sum.Reg, a.Reg)
	}
	if n := countOps(u.Blocks[0], ir.OpCopy); n != 0 {
		t.Errorf("unnecessary copies inserted: %d", n)
	}
}

func TestReuseArg0Copy(t *testing.T) {
	u := ir.New()
	u.AppendBlock("entry")

	a := u.LoadContext(0x00, ir.TypeI32)
	b := u.LoadContext(0x04, ir.TypeI32)
	sum := u.Add(a, b)
	// A later use keeps a alive past the add, forbidding in-place reuse.
	u.StoreContext(0x08, sum)
	u.StoreContext(0x0c, a)

	target := testTarget(4, 0)
	e := target.Emitters[ir.OpAdd]
	e.ResFlags |= backend.ReuseArg0
	target.Emitters[ir.OpAdd] = e

	ra := New(target)
	ra.Run(u)

	if sum.Reg == a.Reg {
		t.Errorf("result stole a live argument's register")
	}

	// The constraint is met through a copy into the result register.
	copies := 0
	for instr := u.Blocks[0].Head; instr != nil; instr = instr.Next {
		if instr.Op == ir.OpCopy && instr.Result.Reg == sum.Reg {
			copies++
		}
	}
	if copies != 1 {
		t.Errorf("reuse constraint copies got %d expected 1", copies)
	}
}
