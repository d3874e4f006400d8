package ir

/*
 * Katana - IR tests
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
	"strings"
	"testing"
)

func TestUseLists(t *testing.T) {
	u := New()
	u.AppendBlock("entry")

	a := u.LoadContext(0x10, TypeI32)
	b := u.LoadContext(0x14, TypeI32)
	sum := u.Add(a, b)

	if len(a.Uses) != 1 || len(b.Uses) != 1 {
		t.Fatalf("operand use lists got %d and %d expected 1 and 1", len(a.Uses), len(b.Uses))
	}
	if a.Uses[0].Instr != sum.Def || a.Uses[0].Arg != 0 {
		t.Errorf("use record does not point at the add")
	}

	// Replacing every use rewires the argument and moves the use record.
	c := u.AllocI32(5)
	u.ReplaceUses(a, c)

	if len(a.Uses) != 0 {
		t.Errorf("replaced value still has %d uses", len(a.Uses))
	}
	if sum.Def.Args[0] != c {
		t.Errorf("argument not rewritten to the constant")
	}
	if len(c.Uses) != 1 {
		t.Errorf("constant did not gain the use")
	}
}

func TestRemoveInstr(t *testing.T) {
	u := New()
	u.AppendBlock("entry")

	a := u.LoadContext(0x10, TypeI32)
	sum := u.Add(a, u.AllocI32(1))

	u.RemoveInstr(sum.Def)

	if len(a.Uses) != 0 {
		t.Errorf("removed instruction left %d uses behind", len(a.Uses))
	}

	blk := u.Blocks[0]
	if blk.Head == nil || blk.Head.Next != nil {
		t.Errorf("block list not a single instruction after removal")
	}
}

func TestLocalAlignment(t *testing.T) {
	u := New()

	a := u.AllocLocal(TypeI8)
	b := u.AllocLocal(TypeI32)
	c := u.AllocLocal(TypeI64)

	if a.Offset.I64 != 0 {
		t.Errorf("first local offset got %d expected 0", a.Offset.I64)
	}
	if b.Offset.I64 != 4 {
		t.Errorf("i32 local not aligned got %d expected 4", b.Offset.I64)
	}
	if c.Offset.I64 != 8 {
		t.Errorf("i64 local not aligned got %d expected 8", c.Offset.I64)
	}
}

func TestBlockEdges(t *testing.T) {
	u := New()
	entry := u.AppendBlock("entry")
	body := &Block{Label: "body", ir: u}
	u.Blocks = append(u.Blocks, body)

	u.SetInsertPoint(entry, nil)
	u.Branch(u.AllocBlockRef(body))

	if len(entry.Succs) != 1 || entry.Succs[0] != body {
		t.Errorf("branch did not record the successor edge")
	}
	if len(body.Preds) != 1 || body.Preds[0] != entry {
		t.Errorf("branch did not record the predecessor edge")
	}
}

// Dynamic shift semantics from the guest's SHAD / SHLD instructions.
func TestDynamicShifts(t *testing.T) {
	tests := []struct {
		fn   func(v, n uint32) uint32
		name string
		v    uint32
		n    uint32
		want uint32
	}{
		{EvalAshd, "ashd", 0x80000000, 0xffffffe1, 0xffffffff}, // -31
		{EvalAshd, "ashd", 0x80000000, 0x80000000, 0xffffffff},
		{EvalAshd, "ashd", 0x80000000, 1, 0x00000000},
		{EvalAshd, "ashd", 0x00000010, 0xfffffffe, 0x00000004}, // -2
		{EvalLshd, "lshd", 1, 31, 0x80000000},
		{EvalLshd, "lshd", 0x80000000, 0x80000000, 0},
		{EvalLshd, "lshd", 0x80000000, 0xffffffff, 0x40000000}, // -1
	}

	for _, test := range tests {
		if got := test.fn(test.v, test.n); got != test.want {
			t.Errorf("%s(0x%08x, 0x%08x) got 0x%08x expected 0x%08x",
				test.name, test.v, test.n, got, test.want)
		}
	}
}

func TestWriteParseRoundTrip(t *testing.T) {
	u := New()
	u.AppendBlock("entry")

	a := u.LoadContext(0x2c, TypeI32)
	b := u.Add(a, u.AllocI32(4))
	u.StoreContext(0x2c, b)
	cond := u.CmpEQ(b, u.AllocI32(0x10))
	_ = cond

	exit := &Block{Label: "exit", ir: u}
	u.Blocks = append(u.Blocks, exit)
	u.SetInsertPoint(u.Blocks[0], u.Blocks[0].Tail)
	u.Branch(u.AllocBlockRef(exit))

	u.SetInsertPoint(exit, nil)
	f := u.Fadd(u.AllocF32(1.5), u.AllocF32(2.5))
	u.StoreContext(0x40, f)

	var first strings.Builder
	u.Write(&first)

	parsed, err := Parse(strings.NewReader(first.String()))
	if err != nil {
		t.Fatalf("parse failed: %v\n%s", err, first.String())
	}

	var second strings.Builder
	parsed.Write(&second)

	if first.String() != second.String() {
		t.Errorf("round trip mismatch:\n--- wrote\n%s--- reparsed\n%s", first.String(), second.String())
	}
}
