package ir

/*
 * Katana - IR builder helpers
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
	"github.com/tswindell/katana/util/fatal"
)

func checkf(cond bool, format string, args ...any) {
	if !cond {
		fatal.Fatalf(format, args...)
	}
}

// Copy materializes a value into a fresh register.
func (ir *IR) Copy(v *Value) *Value {
	instr := ir.AppendInstr(OpCopy, v.Type)
	ir.SetArg(instr, 0, v)
	return instr.Result
}

/*
 * loads and stores
 */

// LoadHost reads from a raw host address.
func (ir *IR) LoadHost(addr *Value, t Type) *Value {
	checkf(addr.Type == TypeI64, "host address must be i64")

	instr := ir.AppendInstr(OpLoadHost, t)
	ir.SetArg(instr, 0, addr)
	return instr.Result
}

func (ir *IR) StoreHost(addr, v *Value) {
	checkf(addr.Type == TypeI64, "host address must be i64")

	instr := ir.AppendInstr(OpStoreHost, TypeVoid)
	ir.SetArg(instr, 0, addr)
	ir.SetArg(instr, 1, v)
}

// LoadFast reads a guest address through the page-table fast path.
func (ir *IR) LoadFast(addr *Value, t Type) *Value {
	checkf(addr.Type == TypeI32, "guest address must be i32")

	instr := ir.AppendInstr(OpLoadFast, t)
	ir.SetArg(instr, 0, addr)
	return instr.Result
}

func (ir *IR) StoreFast(addr, v *Value) {
	checkf(addr.Type == TypeI32, "guest address must be i32")

	instr := ir.AppendInstr(OpStoreFast, TypeVoid)
	ir.SetArg(instr, 0, addr)
	ir.SetArg(instr, 1, v)
}

// LoadSlow reads a guest address through the full MMIO dispatch path.
func (ir *IR) LoadSlow(addr *Value, t Type) *Value {
	checkf(addr.Type == TypeI32, "guest address must be i32")

	instr := ir.AppendInstr(OpLoadSlow, t)
	ir.SetArg(instr, 0, addr)
	return instr.Result
}

func (ir *IR) StoreSlow(addr, v *Value) {
	checkf(addr.Type == TypeI32, "guest address must be i32")

	instr := ir.AppendInstr(OpStoreSlow, TypeVoid)
	ir.SetArg(instr, 0, addr)
	ir.SetArg(instr, 1, v)
}

// LoadContext reads a field of the guest CPU context.
func (ir *IR) LoadContext(offset int, t Type) *Value {
	instr := ir.AppendInstr(OpLoadContext, t)
	ir.SetArg(instr, 0, ir.AllocI32(int32(offset)))
	return instr.Result
}

func (ir *IR) StoreContext(offset int, v *Value) {
	instr := ir.AppendInstr(OpStoreContext, TypeVoid)
	ir.SetArg(instr, 0, ir.AllocI32(int32(offset)))
	ir.SetArg(instr, 1, v)
}

// LoadLocal reads a stack slot.
func (ir *IR) LoadLocal(l *Local) *Value {
	instr := ir.AppendInstr(OpLoadLocal, l.Type)
	ir.SetArg(instr, 0, l.Offset)
	return instr.Result
}

func (ir *IR) StoreLocal(l *Local, v *Value) {
	instr := ir.AppendInstr(OpStoreLocal, TypeVoid)
	ir.SetArg(instr, 0, l.Offset)
	ir.SetArg(instr, 1, v)
}

/*
 * arithmetic
 */

func (ir *IR) binaryInt(op Op, a, b *Value) *Value {
	checkf(a.Type.IsInt() && a.Type == b.Type, "%s requires matching integer types", OpName(op))

	instr := ir.AppendInstr(op, a.Type)
	ir.SetArg(instr, 0, a)
	ir.SetArg(instr, 1, b)
	return instr.Result
}

func (ir *IR) unaryInt(op Op, a *Value) *Value {
	checkf(a.Type.IsInt(), "%s requires an integer", OpName(op))

	instr := ir.AppendInstr(op, a.Type)
	ir.SetArg(instr, 0, a)
	return instr.Result
}

func (ir *IR) binaryFloat(op Op, a, b *Value) *Value {
	checkf(a.Type.IsFloat() && a.Type == b.Type, "%s requires matching float types", OpName(op))

	instr := ir.AppendInstr(op, a.Type)
	ir.SetArg(instr, 0, a)
	ir.SetArg(instr, 1, b)
	return instr.Result
}

func (ir *IR) unaryFloat(op Op, a *Value) *Value {
	checkf(a.Type.IsFloat(), "%s requires a float", OpName(op))

	instr := ir.AppendInstr(op, a.Type)
	ir.SetArg(instr, 0, a)
	return instr.Result
}

func (ir *IR) Add(a, b *Value) *Value  { return ir.binaryInt(OpAdd, a, b) }
func (ir *IR) Sub(a, b *Value) *Value  { return ir.binaryInt(OpSub, a, b) }
func (ir *IR) Smul(a, b *Value) *Value { return ir.binaryInt(OpSmul, a, b) }
func (ir *IR) Umul(a, b *Value) *Value { return ir.binaryInt(OpUmul, a, b) }
func (ir *IR) Div(a, b *Value) *Value  { return ir.binaryInt(OpDiv, a, b) }
func (ir *IR) Neg(a *Value) *Value     { return ir.unaryInt(OpNeg, a) }
func (ir *IR) Abs(a *Value) *Value     { return ir.unaryInt(OpAbs, a) }

func (ir *IR) Fadd(a, b *Value) *Value { return ir.binaryFloat(OpFadd, a, b) }
func (ir *IR) Fsub(a, b *Value) *Value { return ir.binaryFloat(OpFsub, a, b) }
func (ir *IR) Fmul(a, b *Value) *Value { return ir.binaryFloat(OpFmul, a, b) }
func (ir *IR) Fdiv(a, b *Value) *Value { return ir.binaryFloat(OpFdiv, a, b) }
func (ir *IR) Fneg(a *Value) *Value    { return ir.unaryFloat(OpFneg, a) }
func (ir *IR) Fabs(a *Value) *Value    { return ir.unaryFloat(OpFabs, a) }
func (ir *IR) Sqrt(a *Value) *Value    { return ir.unaryFloat(OpSqrt, a) }

/*
 * vector
 */

func (ir *IR) Vbroadcast(a *Value) *Value {
	checkf(a.Type == TypeF32, "vbroadcast requires f32")

	instr := ir.AppendInstr(OpVbroadcast, TypeV128)
	ir.SetArg(instr, 0, a)
	return instr.Result
}

func (ir *IR) vectorBinary(op Op, a, b *Value, elType Type) *Value {
	checkf(a.Type.IsVector() && b.Type.IsVector(), "%s requires vectors", OpName(op))
	checkf(elType == TypeF32, "%s supports f32 lanes only", OpName(op))

	instr := ir.AppendInstr(op, a.Type)
	ir.SetArg(instr, 0, a)
	ir.SetArg(instr, 1, b)
	return instr.Result
}

func (ir *IR) Vadd(a, b *Value, elType Type) *Value {
	return ir.vectorBinary(OpVadd, a, b, elType)
}

func (ir *IR) Vmul(a, b *Value, elType Type) *Value {
	return ir.vectorBinary(OpVmul, a, b, elType)
}

// Vdot reduces to a scalar of the lane type.
func (ir *IR) Vdot(a, b *Value, elType Type) *Value {
	checkf(a.Type.IsVector() && b.Type.IsVector(), "vdot requires vectors")
	checkf(elType == TypeF32, "vdot supports f32 lanes only")

	instr := ir.AppendInstr(OpVdot, elType)
	ir.SetArg(instr, 0, a)
	ir.SetArg(instr, 1, b)
	return instr.Result
}

/*
 * bitwise
 */

func (ir *IR) And(a, b *Value) *Value { return ir.binaryInt(OpAnd, a, b) }
func (ir *IR) Or(a, b *Value) *Value  { return ir.binaryInt(OpOr, a, b) }
func (ir *IR) Xor(a, b *Value) *Value { return ir.binaryInt(OpXor, a, b) }
func (ir *IR) Not(a *Value) *Value    { return ir.unaryInt(OpNot, a) }

func (ir *IR) shift(op Op, a, n *Value) *Value {
	checkf(a.Type.IsInt() && n.Type == TypeI32, "%s requires an integer and an i32 count", OpName(op))

	instr := ir.AppendInstr(op, a.Type)
	ir.SetArg(instr, 0, a)
	ir.SetArg(instr, 1, n)
	return instr.Result
}

func (ir *IR) Shl(a, n *Value) *Value  { return ir.shift(OpShl, a, n) }
func (ir *IR) Ashr(a, n *Value) *Value { return ir.shift(OpAshr, a, n) }
func (ir *IR) Lshr(a, n *Value) *Value { return ir.shift(OpLshr, a, n) }

func (ir *IR) ShlI(a *Value, n int) *Value  { return ir.Shl(a, ir.AllocI32(int32(n))) }
func (ir *IR) AshrI(a *Value, n int) *Value { return ir.Ashr(a, ir.AllocI32(int32(n))) }
func (ir *IR) LshrI(a *Value, n int) *Value { return ir.Lshr(a, ir.AllocI32(int32(n))) }

// Ashd is the SH-4 dynamic arithmetic shift: the count's sign selects the
// direction, its magnitude is masked to 5 bits.
func (ir *IR) Ashd(a, n *Value) *Value {
	checkf(a.Type == TypeI32 && n.Type == TypeI32, "ashd requires i32 operands")
	return ir.shift(OpAshd, a, n)
}

// Lshd is the SH-4 dynamic logical shift.
func (ir *IR) Lshd(a, n *Value) *Value {
	checkf(a.Type == TypeI32 && n.Type == TypeI32, "lshd requires i32 operands")
	return ir.shift(OpLshd, a, n)
}

// EvalAshd gives the guest semantics of the dynamic arithmetic shift: a
// negative count shifts right by 32-(n&0x1f), with a zero masked magnitude
// saturating to the sign bit.
func EvalAshd(v, n uint32) uint32 {
	if n&0x80000000 != 0 {
		shift := n & 0x1f
		if shift == 0 {
			return uint32(int32(v) >> 31)
		}
		return uint32(int32(v) >> (32 - shift))
	}
	return v << (n & 0x1f)
}

// EvalLshd gives the guest semantics of the dynamic logical shift: a
// negative count shifts right, with a zero masked magnitude producing zero.
func EvalLshd(v, n uint32) uint32 {
	if n&0x80000000 != 0 {
		shift := n & 0x1f
		if shift == 0 {
			return 0
		}
		return v >> (32 - shift)
	}
	return v << (n & 0x1f)
}

/*
 * comparison and select
 */

func (ir *IR) cmp(a, b *Value, kind Cmp) *Value {
	checkf(a.Type.IsInt() && a.Type == b.Type, "cmp requires matching integer types")

	instr := ir.AppendInstr(OpCmp, TypeI8)
	ir.SetArg(instr, 0, a)
	ir.SetArg(instr, 1, b)
	ir.SetArg(instr, 2, ir.AllocI32(int32(kind)))
	return instr.Result
}

func (ir *IR) CmpEQ(a, b *Value) *Value  { return ir.cmp(a, b, CmpEQ) }
func (ir *IR) CmpNE(a, b *Value) *Value  { return ir.cmp(a, b, CmpNE) }
func (ir *IR) CmpSGE(a, b *Value) *Value { return ir.cmp(a, b, CmpSGE) }
func (ir *IR) CmpSGT(a, b *Value) *Value { return ir.cmp(a, b, CmpSGT) }
func (ir *IR) CmpUGE(a, b *Value) *Value { return ir.cmp(a, b, CmpUGE) }
func (ir *IR) CmpUGT(a, b *Value) *Value { return ir.cmp(a, b, CmpUGT) }
func (ir *IR) CmpSLE(a, b *Value) *Value { return ir.cmp(a, b, CmpSLE) }
func (ir *IR) CmpSLT(a, b *Value) *Value { return ir.cmp(a, b, CmpSLT) }
func (ir *IR) CmpULE(a, b *Value) *Value { return ir.cmp(a, b, CmpULE) }
func (ir *IR) CmpULT(a, b *Value) *Value { return ir.cmp(a, b, CmpULT) }

func (ir *IR) fcmp(a, b *Value, kind Cmp) *Value {
	checkf(a.Type.IsFloat() && a.Type == b.Type, "fcmp requires matching float types")

	instr := ir.AppendInstr(OpFcmp, TypeI8)
	ir.SetArg(instr, 0, a)
	ir.SetArg(instr, 1, b)
	ir.SetArg(instr, 2, ir.AllocI32(int32(kind)))
	return instr.Result
}

func (ir *IR) FcmpEQ(a, b *Value) *Value { return ir.fcmp(a, b, CmpEQ) }
func (ir *IR) FcmpNE(a, b *Value) *Value { return ir.fcmp(a, b, CmpNE) }
func (ir *IR) FcmpGE(a, b *Value) *Value { return ir.fcmp(a, b, CmpSGE) }
func (ir *IR) FcmpGT(a, b *Value) *Value { return ir.fcmp(a, b, CmpSGT) }
func (ir *IR) FcmpLE(a, b *Value) *Value { return ir.fcmp(a, b, CmpSLE) }
func (ir *IR) FcmpLT(a, b *Value) *Value { return ir.fcmp(a, b, CmpSLT) }

func (ir *IR) Select(cond, t, f *Value) *Value {
	checkf(cond.Type.IsInt() && t.Type.IsInt() && t.Type == f.Type,
		"select requires integer operands of one type")

	instr := ir.AppendInstr(OpSelect, t.Type)
	ir.SetArg(instr, 0, t)
	ir.SetArg(instr, 1, f)
	ir.SetArg(instr, 2, cond)
	return instr.Result
}

/*
 * conversions
 */

func (ir *IR) Sext(v *Value, dst Type) *Value {
	checkf(v.Type.IsInt() && dst.IsInt(), "sext requires integer types")

	instr := ir.AppendInstr(OpSext, dst)
	ir.SetArg(instr, 0, v)
	return instr.Result
}

func (ir *IR) Zext(v *Value, dst Type) *Value {
	checkf(v.Type.IsInt() && dst.IsInt(), "zext requires integer types")

	instr := ir.AppendInstr(OpZext, dst)
	ir.SetArg(instr, 0, v)
	return instr.Result
}

func (ir *IR) Trunc(v *Value, dst Type) *Value {
	checkf(v.Type.IsInt() && dst.IsInt(), "trunc requires integer types")

	instr := ir.AppendInstr(OpTrunc, dst)
	ir.SetArg(instr, 0, v)
	return instr.Result
}

func (ir *IR) Ftoi(v *Value, dst Type) *Value {
	checkf(v.Type.IsFloat() && dst.IsInt(), "ftoi requires float to integer")

	instr := ir.AppendInstr(OpFtoi, dst)
	ir.SetArg(instr, 0, v)
	return instr.Result
}

func (ir *IR) Itof(v *Value, dst Type) *Value {
	checkf(v.Type.IsInt() && dst.IsFloat(), "itof requires integer to float")

	instr := ir.AppendInstr(OpItof, dst)
	ir.SetArg(instr, 0, v)
	return instr.Result
}

func (ir *IR) Fext(v *Value, dst Type) *Value {
	checkf(v.Type == TypeF32 && dst == TypeF64, "fext requires f32 to f64")

	instr := ir.AppendInstr(OpFext, dst)
	ir.SetArg(instr, 0, v)
	return instr.Result
}

func (ir *IR) Ftrunc(v *Value, dst Type) *Value {
	checkf(v.Type == TypeF64 && dst == TypeF32, "ftrunc requires f64 to f32")

	instr := ir.AppendInstr(OpFtrunc, dst)
	ir.SetArg(instr, 0, v)
	return instr.Result
}

// Bitcast reinterprets between types of the same size.
func (ir *IR) Bitcast(v *Value, dst Type) *Value {
	checkf(v.Type.Size() == dst.Size(), "bitcast requires same-size types")

	instr := ir.AppendInstr(OpBitcast, dst)
	ir.SetArg(instr, 0, v)
	return instr.Result
}

/*
 * control flow
 */

// Branch jumps to a block reference, symbolic label or host address.
func (ir *IR) Branch(dst *Value) {
	checkf(dst.Type == TypeBlock || dst.Type == TypeString || dst.Type == TypeI64,
		"branch destination must be a block, label or address")

	from := ir.CurrentBlock
	instr := ir.AppendInstr(OpBranch, TypeVoid)
	ir.SetArg(instr, 0, dst)

	if dst.Type == TypeBlock && from != nil {
		AddEdge(from, dst.Blk)
	}
}

// BranchCond jumps to t when cond is non-zero, f otherwise.
func (ir *IR) BranchCond(cond, t, f *Value) {
	checkf(t.Type == TypeBlock || t.Type == TypeString || t.Type == TypeI64,
		"branch destination must be a block, label or address")
	checkf(f.Type == t.Type, "branch destinations must agree")

	from := ir.CurrentBlock
	instr := ir.AppendInstr(OpBranchCond, TypeVoid)
	ir.SetArg(instr, 0, t)
	ir.SetArg(instr, 1, f)
	ir.SetArg(instr, 2, cond)

	if t.Type == TypeBlock && from != nil {
		AddEdge(from, t.Blk)
		AddEdge(from, f.Blk)
	}
}

func (ir *IR) Call(fn *Value, args ...*Value) {
	checkf(len(args) <= 2, "call supports at most two arguments")

	instr := ir.AppendInstr(OpCall, TypeVoid)
	ir.SetArg(instr, 0, fn)
	for i, arg := range args {
		checkf(arg.Type.IsInt(), "call arguments must be integers")
		ir.SetArg(instr, i+1, arg)
	}
}

// CallFallback invokes the interpreter fallback for a guest instruction.
func (ir *IR) CallFallback(fallback uintptr, addr, rawInstr uint32) {
	checkf(fallback != 0, "fallback handler required")

	instr := ir.AppendInstr(OpCallFallback, TypeVoid)
	ir.SetArg(instr, 0, ir.AllocPtr(fallback))
	ir.SetArg(instr, 1, ir.AllocI32(int32(addr)))
	ir.SetArg(instr, 2, ir.AllocI32(int32(rawInstr)))
}

// DebugInfo records the source guest instruction for diagnostics.
func (ir *IR) DebugInfo(desc string, addr, rawInstr uint32) {
	instr := ir.AppendInstr(OpDebugInfo, TypeVoid)
	ir.SetArg(instr, 0, ir.AllocStr("%s", desc))
	ir.SetArg(instr, 1, ir.AllocI32(int32(addr)))
	ir.SetArg(instr, 2, ir.AllocI32(int32(rawInstr)))
}
