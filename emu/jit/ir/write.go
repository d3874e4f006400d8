package ir

/*
 * Katana - IR text writer
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
	"io"
	"math"

	"github.com/tswindell/katana/util/fatal"
)

var typeNames = [NumTypes]string{
	TypeVoid:   "",
	TypeI8:     "i8",
	TypeI16:    "i16",
	TypeI32:    "i32",
	TypeI64:    "i64",
	TypeF32:    "f32",
	TypeF64:    "f64",
	TypeV128:   "v128",
	TypeBlock:  "blk",
	TypeString: "str",
}

func writeValue(v *Value, w io.Writer) {
	fmt.Fprintf(w, "%s ", typeNames[v.Type])

	if !v.IsConstant() {
		fmt.Fprintf(w, "%%%d", v.Def.Tag)
		return
	}

	switch v.Type {
	case TypeI8:
		fmt.Fprintf(w, "0x%x", uint8(v.I64))
	case TypeI16:
		fmt.Fprintf(w, "0x%x", uint16(v.I64))
	case TypeI32:
		fmt.Fprintf(w, "0x%x", uint32(v.I64))
	case TypeI64:
		fmt.Fprintf(w, "0x%x", uint64(v.I64))
	case TypeF32:
		fmt.Fprintf(w, "0x%x", math.Float32bits(v.F32))
	case TypeF64:
		fmt.Fprintf(w, "0x%x", math.Float64bits(v.F64))
	case TypeBlock:
		fmt.Fprintf(w, ".%s", v.Blk.Label)
	case TypeString:
		fmt.Fprintf(w, ".%s", v.Str)
	default:
		fatal.Fatalf("unexpected value type %d", v.Type)
	}
}

func writeInstr(instr *Instr, w io.Writer) {
	fmt.Fprintf(w, "  ")

	if instr.Result != nil {
		writeValue(instr.Result, w)
		fmt.Fprintf(w, " = ")
	}

	fmt.Fprintf(w, "%s", OpName(instr.Op))

	first := true
	for _, arg := range instr.Args {
		if arg == nil {
			continue
		}
		if first {
			fmt.Fprintf(w, " ")
			first = false
		} else {
			fmt.Fprintf(w, ", ")
		}
		writeValue(arg, w)
	}

	fmt.Fprintf(w, "\n")
}

// assignSlots numbers every instruction result for printing.
func (ir *IR) assignSlots() {
	slot := int64(0)
	for _, blk := range ir.Blocks {
		for instr := blk.Head; instr != nil; instr = instr.Next {
			if instr.Result == nil {
				continue
			}
			instr.Tag = slot
			slot++
		}
	}
}

// Write renders the IR as text, one block per label.
func (ir *IR) Write(w io.Writer) {
	ir.assignSlots()

	for _, blk := range ir.Blocks {
		fmt.Fprintf(w, ".%s:\n", blk.Label)
		for instr := blk.Head; instr != nil; instr = instr.Next {
			writeInstr(instr, w)
		}
	}
}
