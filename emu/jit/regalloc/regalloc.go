package regalloc

/*
 * Katana - Register allocation pass
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

/*
 * second-chance binpacking register allocator, based on "Quality and Speed
 * in Linear-scan Register Allocation" by Traub, Holloway and Smith
 */

import (
	"math"

	"github.com/tswindell/katana/emu/jit/backend"
	"github.com/tswindell/katana/emu/jit/ir"
	"github.com/tswindell/katana/util/fatal"
)

const (
	noTmp = -1
	noUse = -1
)

// bin is a single machine register into which temporaries are packed. A
// bin holds at most one live temporary at any time.
type bin struct {
	reg    *backend.Register
	regIdx int
	tmpIdx int
}

// tmp is an allocation candidate, created for each instruction result.
//
// The temporary starts out living in its defining value. Under register
// pressure it may be spilled to a stack slot, at which point value goes
// nil. Before its next use, a fill from the slot produces a new value to
// allocate for. Slots are never shared, so a temporary spills at most once.
type tmp struct {
	firstUseIdx int
	lastUseIdx  int
	nextUseIdx  int

	value *ir.Value
	slot  *ir.Local
}

// use is one instruction's reference of a temporary.
type use struct {
	ordinal int
	nextIdx int
}

// RA allocates machine registers for a target's register file and emitter
// constraints.
type RA struct {
	target *backend.Target

	bins []bin
	tmps []tmp
	uses []use

	gprsSpilled int
	fprsSpilled int

	validate bool
}

func New(target *backend.Target) *RA {
	ra := &RA{target: target, validate: true}

	for i := range target.Registers {
		ra.bins = append(ra.bins, bin{
			reg:    &target.Registers[i],
			regIdx: i,
			tmpIdx: noTmp,
		})
	}

	return ra
}

// Run allocates every block of the translation unit.
func (ra *RA) Run(u *ir.IR) {
	for _, blk := range u.Blocks {
		ra.reset(blk)
		ra.legalizeArgs(u, blk)
		ra.assignOrdinals(blk)
		ra.createTmps(blk)
		ra.allocBins(u, blk)
		if ra.validate {
			ra.validateBlock(blk)
		}
	}
}

// Spilled reports how many integer and float temporaries have been spilled.
func (ra *RA) Spilled() (gprs, fprs int) {
	return ra.gprsSpilled, ra.fprsSpilled
}

func (ra *RA) getTmp(v *ir.Value) *tmp {
	return &ra.tmps[v.Tag]
}

func (ra *RA) packed(b *bin) *tmp {
	if b.tmpIdx == noTmp {
		return nil
	}
	return &ra.tmps[b.tmpIdx]
}

func regCanStore(reg *backend.Register, v *ir.Value) bool {
	if reg.Flags&backend.Allocate == 0 {
		return false
	}
	switch {
	case v.Type.IsInt():
		return reg.Flags&backend.RegI64 != 0
	case v.Type.IsFloat():
		return reg.Flags&backend.RegF64 != 0
	case v.Type.IsVector():
		return reg.Flags&backend.RegV128 != 0
	}
	return false
}

func (ra *RA) reset(blk *ir.Block) {
	for i := range ra.bins {
		ra.bins[i].tmpIdx = noTmp
	}

	ra.tmps = ra.tmps[:0]
	ra.uses = ra.uses[:0]

	for instr := blk.Head; instr != nil; instr = instr.Next {
		if instr.Result != nil {
			instr.Result.Reg = ir.NoRegister
		}
	}
}

// legalizeArgs materializes any constant argument the emitter cannot
// encode as an immediate into a register copy inserted just before its
// use.
func (ra *RA) legalizeArgs(u *ir.IR, blk *ir.Block) {
	var prev *ir.Instr

	for instr := blk.Head; instr != nil; instr = instr.Next {
		emitter := &ra.target.Emitters[instr.Op]

		for i := 0; i < ir.MaxArgs; i++ {
			arg := instr.Args[i]
			if arg == nil || !arg.IsConstant() {
				continue
			}

			if canEncode(arg, emitter.ArgFlags[i]) {
				continue
			}

			u.SetInsertPoint(blk, prev)
			copyVal := u.Copy(arg)
			u.SetArg(instr, i, copyVal)
		}

		prev = instr
	}
}

func canEncode(arg *ir.Value, flags int) bool {
	switch {
	case flags&backend.ImmI32 != 0 && arg.Type >= ir.TypeI8 && arg.Type <= ir.TypeI32:
		return true
	case flags&backend.ImmI64 != 0 && arg.Type >= ir.TypeI8 && arg.Type <= ir.TypeI64:
		return true
	case flags&backend.ImmF32 != 0 && arg.Type == ir.TypeF32:
		return true
	case flags&backend.ImmF64 != 0 && arg.Type >= ir.TypeF32 && arg.Type <= ir.TypeF64:
		return true
	case flags&backend.ImmBlk != 0 && arg.Type == ir.TypeBlock:
		return true
	case arg.Type == ir.TypeString:
		// Labels are symbolic, nothing to materialize.
		return true
	}
	return false
}

// assignOrdinals numbers instructions, spacing them out so each argument
// fill inserted later can receive its own ordinal slot.
func (ra *RA) assignOrdinals(blk *ir.Block) {
	ordinal := 0
	for instr := blk.Head; instr != nil; instr = instr.Next {
		instr.Tag = int64(ordinal)
		ordinal += 1 + ir.MaxArgs
	}
}

func (ra *RA) addUse(t *tmp, ordinal int) {
	idx := len(ra.uses)
	ra.uses = append(ra.uses, use{ordinal: ordinal, nextIdx: noUse})

	if t.nextUseIdx == noUse {
		t.firstUseIdx = idx
		t.lastUseIdx = idx
		t.nextUseIdx = idx
	} else {
		ra.uses[t.lastUseIdx].nextIdx = idx
		t.lastUseIdx = idx
	}
}

func (ra *RA) createTmps(blk *ir.Block) {
	for instr := blk.Head; instr != nil; instr = instr.Next {
		ordinal := int(instr.Tag)

		if instr.Result != nil {
			idx := len(ra.tmps)
			ra.tmps = append(ra.tmps, tmp{
				firstUseIdx: noUse,
				lastUseIdx:  noUse,
				nextUseIdx:  noUse,
			})
			instr.Result.Tag = int64(idx)
			ra.addUse(&ra.tmps[idx], ordinal)
		}

		for _, arg := range instr.Args {
			if arg == nil || arg.IsConstant() {
				continue
			}
			ra.addUse(ra.getTmp(arg), ordinal)
		}
	}
}

func (ra *RA) allocBins(u *ir.IR, blk *ir.Block) {
	for instr := blk.Head; instr != nil; instr = instr.Next {
		// Expire temporaries whose next use has passed, freeing their
		// bins.
		ra.expireTmps(instr)

		// Rewrite arguments to use their temporary's latest value,
		// filling spilled temporaries back from the stack.
		for i := 0; i < ir.MaxArgs; i++ {
			ra.rewriteArg(u, instr, i)
		}

		ra.alloc(u, instr.Result)

		// Spill temporaries in caller-saved bins whose live range spans
		// a call. This must follow argument rewriting (which needs a
		// valid value) and result allocation (or arg0 reuse would be
		// lost).
		ra.spillAtCall(u, instr)
	}
}

func (ra *RA) expireTmps(current *ir.Instr) {
	currentOrdinal := int(current.Tag)

	for i := range ra.bins {
		b := &ra.bins[i]
		packed := ra.packed(b)
		if packed == nil {
			continue
		}

		for {
			nextUse := &ra.uses[packed.nextUseIdx]

			if nextUse.ordinal >= currentOrdinal {
				break
			}

			if nextUse.nextIdx == noUse {
				ra.packBin(b, nil)
				break
			}

			packed.nextUseIdx = nextUse.nextIdx
		}
	}
}

func (ra *RA) rewriteArg(u *ir.IR, instr *ir.Instr, arg int) {
	value := instr.Args[arg]
	if value == nil || value.IsConstant() {
		return
	}

	t := ra.getTmp(value)

	// Fill a spilled temporary back from its slot right before this use.
	if t.value == nil {
		if t.slot == nil {
			fatal.Fatalf("temporary has neither a register value nor a slot")
		}

		u.SetInsertPoint(instr.Block, instr.Prev)

		fill := u.LoadLocal(t.slot)
		fill.Def.Tag = instr.Tag - ir.MaxArgs + int64(arg)
		fill.Tag = value.Tag
		t.value = fill

		ra.alloc(u, fill)
	}

	u.SetArg(instr, arg, t.value)
}

func (ra *RA) packBin(b *bin, newTmp *tmp) {
	if old := ra.packed(b); old != nil {
		// The existing temporary no longer lives in this register.
		old.value = nil
	}

	if newTmp != nil {
		newTmp.value.Reg = b.regIdx
		b.tmpIdx = ra.tmpIndex(newTmp)
	} else {
		b.tmpIdx = noTmp
	}
}

func (ra *RA) tmpIndex(t *tmp) int {
	for i := range ra.tmps {
		if &ra.tmps[i] == t {
			return i
		}
	}
	fatal.Fatalf("temporary not in pool")
	return noTmp
}

func (ra *RA) spillTmp(u *ir.IR, t *tmp, before *ir.Instr) {
	if t.slot == nil {
		u.SetInsertPoint(before.Block, before.Prev)

		t.slot = u.AllocLocal(t.value.Type)
		u.StoreLocal(t.slot, t.value)

		if t.value.Type.IsInt() {
			ra.gprsSpilled++
		} else {
			ra.fprsSpilled++
		}
	}

	t.value = nil
}

// spillAtCall evicts every caller-saved temporary whose live range spans a
// call site.
func (ra *RA) spillAtCall(u *ir.IR, instr *ir.Instr) {
	if ir.OpFlags(instr.Op)&ir.FlagCall == 0 {
		return
	}

	currentOrdinal := int(instr.Tag)

	for i := range ra.tmps {
		t := &ra.tmps[i]
		if t.value == nil {
			continue
		}

		b := &ra.bins[t.value.Reg]
		if b.reg.Flags&backend.CallerSave == 0 {
			continue
		}

		firstUse := &ra.uses[t.firstUseIdx]
		lastUse := &ra.uses[t.lastUseIdx]

		// A temporary produced by this call, or last used by it, does
		// not need preserving.
		if firstUse.ordinal >= currentOrdinal {
			continue
		}
		if lastUse.ordinal <= currentOrdinal {
			continue
		}

		ra.spillTmp(u, t, instr)
		ra.packBin(b, nil)
	}
}

func (ra *RA) reuseArg0(u *ir.IR, t *tmp) bool {
	instr := t.value.Def

	if instr.Args[0] == nil || instr.Args[0].IsConstant() {
		return false
	}

	// The argument's register is only reusable if this is its last use.
	arg := ra.getTmp(instr.Args[0])
	nextUse := &ra.uses[arg.nextUseIdx]

	if arg.value == nil || arg.value.Reg == ir.NoRegister {
		fatal.Fatalf("argument temporary has no register")
	}

	if nextUse.nextIdx != noUse {
		return false
	}

	b := &ra.bins[arg.value.Reg]
	if !regCanStore(b.reg, t.value) {
		return false
	}

	ra.packBin(b, t)

	return true
}

func (ra *RA) allocFreeReg(t *tmp) bool {
	for i := range ra.bins {
		b := &ra.bins[i]
		if ra.packed(b) != nil {
			continue
		}
		if !regCanStore(b.reg, t.value) {
			continue
		}

		ra.packBin(b, t)
		return true
	}
	return false
}

// allocBlockedReg spills the resident temporary whose next use is furthest
// in the future and reuses its bin.
func (ra *RA) allocBlockedReg(u *ir.IR, t *tmp) bool {
	var spillBin *bin
	furthestUse := math.MinInt

	for i := range ra.bins {
		b := &ra.bins[i]
		packed := ra.packed(b)
		if packed == nil {
			continue
		}
		if !regCanStore(b.reg, t.value) {
			continue
		}

		nextUse := &ra.uses[packed.nextUseIdx]
		if nextUse.ordinal > furthestUse {
			furthestUse = nextUse.ordinal
			spillBin = b
		}
	}

	if spillBin == nil {
		return false
	}

	ra.spillTmp(u, ra.packed(spillBin), t.value.Def)
	ra.packBin(spillBin, t)

	return true
}

func (ra *RA) alloc(u *ir.IR, value *ir.Value) {
	if value == nil {
		return
	}

	instr := value.Def

	t := ra.getTmp(value)
	t.value = value

	if !ra.reuseArg0(u, t) {
		if !ra.allocFreeReg(t) {
			if !ra.allocBlockedReg(u, t) {
				fatal.Fatalf("failed to allocate register for %s", ir.OpName(instr.Op))
			}
		}
	}

	// If the emitter requires arg0 and the result to share a register but
	// reuse wasn't possible, copy arg0 into the result register first.
	emitter := &ra.target.Emitters[instr.Op]
	if emitter.ResFlags&backend.ReuseArg0 != 0 && value.Reg != instr.Args[0].Reg {
		u.SetInsertPoint(instr.Block, instr.Prev)

		copyVal := u.Copy(instr.Args[0])
		copyVal.Reg = value.Reg
	}
}

/*
 * post-allocation validation
 */

func (ra *RA) validateValue(v *ir.Value, flags int) bool {
	if v == nil {
		return flags == 0 || flags&backend.Optional != 0
	}

	if v.IsConstant() {
		return canEncode(v, flags)
	}

	// The register's class must satisfy at least one supported location.
	reg := &ra.target.Registers[v.Reg]
	return flags&reg.Flags&backend.TypeMask != 0
}

func (ra *RA) validateBlock(blk *ir.Block) {
	// No two simultaneously live temporaries share a register.
	active := make([]*ir.Value, len(ra.bins))

	for instr := blk.Head; instr != nil; instr = instr.Next {
		for _, arg := range instr.Args {
			if arg == nil || arg.IsConstant() {
				continue
			}

			if active[arg.Reg] != arg {
				fatal.Fatalf("register %s does not hold the argument of %s",
					ra.target.Registers[arg.Reg].Name, ir.OpName(instr.Op))
			}
		}

		// Caller-saved registers hold nothing across a call.
		if ir.OpFlags(instr.Op)&ir.FlagCall != 0 {
			for i := range ra.bins {
				if ra.bins[i].reg.Flags&backend.CallerSave != 0 {
					active[i] = nil
				}
			}
		}

		if instr.Result != nil {
			active[instr.Result.Reg] = instr.Result
		}
	}

	// Every operand satisfies its emitter's flags.
	for instr := blk.Head; instr != nil; instr = instr.Next {
		emitter := &ra.target.Emitters[instr.Op]

		for i, arg := range instr.Args {
			if !ra.validateValue(arg, emitter.ArgFlags[i]) {
				fatal.Fatalf("invalid argument %d allocation for %s", i, ir.OpName(instr.Op))
			}
		}
		if instr.Result != nil && !ra.validateValue(instr.Result, emitter.ResFlags) {
			fatal.Fatalf("invalid result allocation for %s", ir.OpName(instr.Op))
		}
	}
}
