package ir

/*
 * Katana - JIT intermediate representation
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

	"github.com/tswindell/katana/util/fatal"
)

// MaxArgs is the largest argument count of any instruction.
const MaxArgs = 4

// NoRegister marks a value with no machine register assigned.
const NoRegister = -1

// Value types.
type Type int

const (
	TypeVoid Type = iota
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeF32
	TypeF64
	TypeV128
	TypeBlock
	TypeString

	NumTypes
)

func (t Type) IsInt() bool {
	return t >= TypeI8 && t <= TypeI64
}

func (t Type) IsFloat() bool {
	return t == TypeF32 || t == TypeF64
}

func (t Type) IsVector() bool {
	return t == TypeV128
}

// Size returns the natural size of a value in bytes.
func (t Type) Size() int {
	switch t {
	case TypeI8:
		return 1
	case TypeI16:
		return 2
	case TypeI32, TypeF32:
		return 4
	case TypeI64, TypeF64:
		return 8
	case TypeV128:
		return 16
	default:
		fatal.Fatalf("unexpected value type %d", t)
		return 0
	}
}

// Comparison kinds, encoded as the tag argument of cmp / fcmp.
type Cmp int

const (
	CmpEQ Cmp = iota
	CmpNE
	CmpSGE
	CmpSGT
	CmpUGE
	CmpUGT
	CmpSLE
	CmpSLT
	CmpULE
	CmpULT
)

// Opcodes.
type Op int

const (
	OpCopy Op = iota

	// loads and stores
	OpLoadHost
	OpStoreHost
	OpLoadFast
	OpStoreFast
	OpLoadSlow
	OpStoreSlow
	OpLoadContext
	OpStoreContext
	OpLoadLocal
	OpStoreLocal

	// arithmetic
	OpAdd
	OpSub
	OpSmul
	OpUmul
	OpDiv
	OpNeg
	OpAbs
	OpFadd
	OpFsub
	OpFmul
	OpFdiv
	OpFneg
	OpFabs
	OpSqrt

	// vector
	OpVbroadcast
	OpVadd
	OpVmul
	OpVdot

	// bitwise
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpAshr
	OpLshr
	OpAshd
	OpLshd

	// comparison and select
	OpCmp
	OpFcmp
	OpSelect

	// conversions
	OpSext
	OpZext
	OpTrunc
	OpFtoi
	OpItof
	OpFext
	OpFtrunc
	OpBitcast

	// control flow
	OpBranch
	OpBranchCond
	OpCall
	OpCallFallback

	OpDebugInfo

	NumOps
)

// Opdef flags.
const (
	FlagCall = 1 << iota
)

var opdefs = [NumOps]struct {
	name  string
	flags int
}{
	OpCopy:         {"copy", 0},
	OpLoadHost:     {"load_host", 0},
	OpStoreHost:    {"store_host", 0},
	OpLoadFast:     {"load_fast", 0},
	OpStoreFast:    {"store_fast", 0},
	OpLoadSlow:     {"load_slow", FlagCall},
	OpStoreSlow:    {"store_slow", FlagCall},
	OpLoadContext:  {"load_context", 0},
	OpStoreContext: {"store_context", 0},
	OpLoadLocal:    {"load_local", 0},
	OpStoreLocal:   {"store_local", 0},
	OpAdd:          {"add", 0},
	OpSub:          {"sub", 0},
	OpSmul:         {"smul", 0},
	OpUmul:         {"umul", 0},
	OpDiv:          {"div", 0},
	OpNeg:          {"neg", 0},
	OpAbs:          {"abs", 0},
	OpFadd:         {"fadd", 0},
	OpFsub:         {"fsub", 0},
	OpFmul:         {"fmul", 0},
	OpFdiv:         {"fdiv", 0},
	OpFneg:         {"fneg", 0},
	OpFabs:         {"fabs", 0},
	OpSqrt:         {"sqrt", 0},
	OpVbroadcast:   {"vbroadcast", 0},
	OpVadd:         {"vadd", 0},
	OpVmul:         {"vmul", 0},
	OpVdot:         {"vdot", 0},
	OpAnd:          {"and", 0},
	OpOr:           {"or", 0},
	OpXor:          {"xor", 0},
	OpNot:          {"not", 0},
	OpShl:          {"shl", 0},
	OpAshr:         {"ashr", 0},
	OpLshr:         {"lshr", 0},
	OpAshd:         {"ashd", 0},
	OpLshd:         {"lshd", 0},
	OpCmp:          {"cmp", 0},
	OpFcmp:         {"fcmp", 0},
	OpSelect:       {"select", 0},
	OpSext:         {"sext", 0},
	OpZext:         {"zext", 0},
	OpTrunc:        {"trunc", 0},
	OpFtoi:         {"ftoi", 0},
	OpItof:         {"itof", 0},
	OpFext:         {"fext", 0},
	OpFtrunc:       {"ftrunc", 0},
	OpBitcast:      {"bitcast", 0},
	OpBranch:       {"branch", 0},
	OpBranchCond:   {"branch_cond", 0},
	OpCall:         {"call", FlagCall},
	OpCallFallback: {"call_fallback", FlagCall},
	OpDebugInfo:    {"debug_info", 0},
}

// OpName returns an opcode's mnemonic.
func OpName(op Op) string {
	return opdefs[op].name
}

// OpFlags returns an opcode's flag set.
func OpFlags(op Op) int {
	return opdefs[op].flags
}

// Use records one argument slot referencing a value.
type Use struct {
	Instr *Instr
	Arg   int
}

// Value is an SSA value: either a constant, or the result of its defining
// instruction.
type Value struct {
	Type Type

	// Constant payloads. Def is nil for constants.
	I64 int64
	F32 float32
	F64 float64
	Str string
	Blk *Block

	Def *Instr

	// Machine register assigned by the allocator.
	Reg int

	// Uses of this value by instruction arguments.
	Uses []*Use

	// Scratch for passes.
	Tag int64
}

func (v *Value) IsConstant() bool {
	return v.Def == nil
}

// ZextConstant widens an integer constant to 64 unsigned bits.
func (v *Value) ZextConstant() uint64 {
	switch v.Type {
	case TypeI8:
		return uint64(uint8(v.I64))
	case TypeI16:
		return uint64(uint16(v.I64))
	case TypeI32:
		return uint64(uint32(v.I64))
	case TypeI64:
		return uint64(v.I64)
	default:
		fatal.Fatalf("unexpected value type %d", v.Type)
		return 0
	}
}

// Instr is one instruction in a block's list.
type Instr struct {
	Op     Op
	Args   [MaxArgs]*Value
	uses   [MaxArgs]Use
	Result *Value
	Block  *Block

	Prev *Instr
	Next *Instr

	// Scratch for passes.
	Tag int64
}

// Block holds a doubly-linked instruction list plus its control flow edges.
type Block struct {
	Label string

	Head *Instr
	Tail *Instr

	Preds []*Block
	Succs []*Block

	ir *IR
}

// Local is a stack slot in the translated block's frame.
type Local struct {
	Type   Type
	Offset *Value
}

// IR is the unit of translation: an ordered list of blocks plus the
// builder's insert point. All objects are owned by the IR and never freed
// individually.
type IR struct {
	Blocks []*Block

	// Insert point: instructions append after CurrentInstr inside
	// CurrentBlock (at the head when CurrentInstr is nil).
	CurrentBlock *Block
	CurrentInstr *Instr

	LocalsSize int

	labels int
}

func New() *IR {
	return &IR{}
}

// AppendBlock adds a new block and moves the insert point to it.
func (ir *IR) AppendBlock(label string) *Block {
	if label == "" {
		label = fmt.Sprintf("blk%d", ir.labels)
		ir.labels++
	}

	blk := &Block{Label: label, ir: ir}
	ir.Blocks = append(ir.Blocks, blk)

	ir.CurrentBlock = blk
	ir.CurrentInstr = nil

	return blk
}

// SetInsertPoint positions the builder so the next instruction appends
// after instr inside blk. A nil instr inserts at the head of the block.
func (ir *IR) SetInsertPoint(blk *Block, instr *Instr) {
	ir.CurrentBlock = blk
	ir.CurrentInstr = instr
}

// AddEdge records a control flow edge.
func AddEdge(from, to *Block) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

func (ir *IR) allocInstr(op Op) *Instr {
	instr := &Instr{Op: op}
	for i := range instr.uses {
		instr.uses[i] = Use{Instr: instr, Arg: i}
	}
	return instr
}

// AppendInstr inserts an instruction at the current insert point,
// allocating a result value of the requested type (TypeVoid for none).
func (ir *IR) AppendInstr(op Op, resultType Type) *Instr {
	if ir.CurrentBlock == nil {
		ir.AppendBlock("")
	}

	instr := ir.allocInstr(op)

	if resultType != TypeVoid {
		instr.Result = &Value{Type: resultType, Def: instr, Reg: NoRegister}
	}

	blk := ir.CurrentBlock
	after := ir.CurrentInstr

	instr.Block = blk
	if after == nil {
		instr.Next = blk.Head
		if blk.Head != nil {
			blk.Head.Prev = instr
		} else {
			blk.Tail = instr
		}
		blk.Head = instr
	} else {
		instr.Prev = after
		instr.Next = after.Next
		if after.Next != nil {
			after.Next.Prev = instr
		} else {
			blk.Tail = instr
		}
		after.Next = instr
	}

	ir.CurrentInstr = instr

	return instr
}

// RemoveInstr unlinks an instruction and drops its argument uses.
func (ir *IR) RemoveInstr(instr *Instr) {
	for i := range instr.Args {
		if instr.Args[i] != nil {
			removeUse(instr.Args[i], &instr.uses[i])
			instr.Args[i] = nil
		}
	}

	blk := instr.Block
	if instr.Prev != nil {
		instr.Prev.Next = instr.Next
	} else {
		blk.Head = instr.Next
	}
	if instr.Next != nil {
		instr.Next.Prev = instr.Prev
	} else {
		blk.Tail = instr.Prev
	}
}

func addUse(v *Value, use *Use) {
	v.Uses = append(v.Uses, use)
}

func removeUse(v *Value, use *Use) {
	for i, u := range v.Uses {
		if u == use {
			v.Uses = append(v.Uses[:i], v.Uses[i+1:]...)
			return
		}
	}
}

// SetArg replaces the n-th argument, maintaining use lists.
func (ir *IR) SetArg(instr *Instr, n int, v *Value) {
	if instr.Args[n] != nil {
		removeUse(instr.Args[n], &instr.uses[n])
	}
	instr.Args[n] = v
	if v != nil {
		addUse(v, &instr.uses[n])
	}
}

// ReplaceUse redirects a single use to another value.
func (ir *IR) ReplaceUse(use *Use, other *Value) {
	ir.SetArg(use.Instr, use.Arg, other)
}

// ReplaceUses redirects every use of v to other.
func (ir *IR) ReplaceUses(v, other *Value) {
	if v == other {
		fatal.Fatalf("replacing uses of a value with itself")
	}
	for len(v.Uses) > 0 {
		use := v.Uses[0]
		ir.ReplaceUse(use, other)
	}
}

/*
 * constants
 */

func (ir *IR) AllocInt(c int64, t Type) *Value {
	switch t {
	case TypeI8:
		return ir.AllocI8(int8(c))
	case TypeI16:
		return ir.AllocI16(int16(c))
	case TypeI32:
		return ir.AllocI32(int32(c))
	case TypeI64:
		return ir.AllocI64(c)
	default:
		fatal.Fatalf("unexpected value type %d", t)
		return nil
	}
}

func (ir *IR) AllocI8(c int8) *Value {
	return &Value{Type: TypeI8, I64: int64(c), Reg: NoRegister}
}

func (ir *IR) AllocI16(c int16) *Value {
	return &Value{Type: TypeI16, I64: int64(c), Reg: NoRegister}
}

func (ir *IR) AllocI32(c int32) *Value {
	return &Value{Type: TypeI32, I64: int64(c), Reg: NoRegister}
}

func (ir *IR) AllocI64(c int64) *Value {
	return &Value{Type: TypeI64, I64: c, Reg: NoRegister}
}

func (ir *IR) AllocF32(c float32) *Value {
	return &Value{Type: TypeF32, F32: c, Reg: NoRegister}
}

func (ir *IR) AllocF64(c float64) *Value {
	return &Value{Type: TypeF64, F64: c, Reg: NoRegister}
}

// AllocPtr stores a host pointer as an i64 constant.
func (ir *IR) AllocPtr(c uintptr) *Value {
	return ir.AllocI64(int64(c))
}

// AllocStr allocates a symbolic label value.
func (ir *IR) AllocStr(format string, args ...any) *Value {
	return &Value{Type: TypeString, Str: fmt.Sprintf(format, args...), Reg: NoRegister}
}

// AllocBlockRef references another block, e.g. as a branch target.
func (ir *IR) AllocBlockRef(blk *Block) *Value {
	return &Value{Type: TypeBlock, Blk: blk, Reg: NoRegister}
}

// AllocLocal reserves a stack slot aligned to the type's natural size.
func (ir *IR) AllocLocal(t Type) *Local {
	size := t.Size()
	ir.LocalsSize = (ir.LocalsSize + size - 1) &^ (size - 1)

	l := &Local{Type: t, Offset: ir.AllocI32(int32(ir.LocalsSize))}

	ir.LocalsSize += size

	return l
}

// ReuseLocal aliases an existing slot offset with a different type.
func (ir *IR) ReuseLocal(offset *Value, t Type) *Local {
	return &Local{Type: t, Offset: offset}
}
