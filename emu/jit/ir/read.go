package ir

/*
 * Katana - IR text parser
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
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Parse reads the text form produced by Write back into an IR. Forward
// references to blocks and value slots are resolved after all lines are
// read.
func Parse(r io.Reader) (*IR, error) {
	p := &parser{
		ir:     New(),
		blocks: make(map[string]*Block),
		slots:  make(map[int]*Value),
	}
	p.ir.CurrentBlock = nil

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := p.parseLine(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if err := p.resolve(); err != nil {
		return nil, err
	}

	return p.ir, nil
}

type pendingRef struct {
	instr *Instr
	arg   int
	slot  int    // value slot, or
	label string // block label
	kind  Type
}

type parser struct {
	ir     *IR
	blocks map[string]*Block
	slots  map[int]*Value
	refs   []pendingRef
}

func (p *parser) block(label string) *Block {
	if blk, ok := p.blocks[label]; ok {
		return blk
	}
	blk := &Block{Label: label, ir: p.ir}
	p.blocks[label] = blk
	return blk
}

func (p *parser) parseLine(line string) error {
	// Block header.
	if strings.HasPrefix(line, ".") && strings.HasSuffix(line, ":") {
		label := strings.TrimSuffix(strings.TrimPrefix(line, "."), ":")
		blk := p.block(label)
		p.ir.Blocks = append(p.ir.Blocks, blk)
		p.ir.CurrentBlock = blk
		p.ir.CurrentInstr = blk.Tail
		return nil
	}

	// Optional "type %N = " result prefix.
	resultSlot := -1
	resultType := TypeVoid

	body := line
	if eq := strings.Index(line, "="); eq >= 0 && strings.Contains(line[:eq], "%") {
		lhs := strings.Fields(strings.TrimSpace(line[:eq]))
		if len(lhs) != 2 || !strings.HasPrefix(lhs[1], "%") {
			return fmt.Errorf("malformed result %q", line[:eq])
		}
		t, err := parseType(lhs[0])
		if err != nil {
			return err
		}
		slot, err := strconv.Atoi(lhs[1][1:])
		if err != nil {
			return fmt.Errorf("malformed slot %q", lhs[1])
		}
		resultType = t
		resultSlot = slot
		body = strings.TrimSpace(line[eq+1:])
	}

	// Opcode.
	opEnd := strings.IndexByte(body, ' ')
	opName := body
	rest := ""
	if opEnd >= 0 {
		opName = body[:opEnd]
		rest = strings.TrimSpace(body[opEnd+1:])
	}

	op := Op(-1)
	for i := Op(0); i < NumOps; i++ {
		if opdefs[i].name == opName {
			op = i
			break
		}
	}
	if op < 0 {
		return fmt.Errorf("unexpected op %q", opName)
	}

	instr := p.ir.AppendInstr(op, resultType)
	if resultSlot >= 0 {
		p.slots[resultSlot] = instr.Result
	}

	if rest == "" {
		return nil
	}

	for i, argText := range strings.Split(rest, ",") {
		if i >= MaxArgs {
			return fmt.Errorf("too many arguments in %q", line)
		}
		if err := p.parseArg(instr, i, strings.TrimSpace(argText)); err != nil {
			return err
		}
	}

	return nil
}

func parseType(s string) (Type, error) {
	for t := TypeI8; t < NumTypes; t++ {
		if typeNames[t] == s {
			return t, nil
		}
	}
	return TypeVoid, fmt.Errorf("unexpected type %q", s)
}

func (p *parser) parseArg(instr *Instr, arg int, text string) error {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return fmt.Errorf("malformed argument %q", text)
	}

	t, err := parseType(fields[0])
	if err != nil {
		return err
	}
	lit := fields[1]

	switch {
	case strings.HasPrefix(lit, "%"):
		slot, err := strconv.Atoi(lit[1:])
		if err != nil {
			return fmt.Errorf("malformed slot %q", lit)
		}
		p.refs = append(p.refs, pendingRef{instr: instr, arg: arg, slot: slot, label: "", kind: t})

	case strings.HasPrefix(lit, "."):
		name := lit[1:]
		if t == TypeBlock {
			p.refs = append(p.refs, pendingRef{instr: instr, arg: arg, slot: -1, label: name, kind: t})
		} else {
			p.ir.SetArg(instr, arg, p.ir.AllocStr("%s", name))
		}

	case strings.HasPrefix(lit, "0x"):
		c, err := strconv.ParseUint(lit[2:], 16, 64)
		if err != nil {
			return fmt.Errorf("malformed constant %q", lit)
		}
		var v *Value
		switch t {
		case TypeI8, TypeI16, TypeI32, TypeI64:
			v = p.ir.AllocInt(int64(c), t)
		case TypeF32:
			v = p.ir.AllocF32(math.Float32frombits(uint32(c)))
		case TypeF64:
			v = p.ir.AllocF64(math.Float64frombits(c))
		default:
			return fmt.Errorf("unexpected constant type %q", fields[0])
		}
		p.ir.SetArg(instr, arg, v)

	default:
		return fmt.Errorf("unexpected argument %q", lit)
	}

	return nil
}

func (p *parser) resolve() error {
	for _, ref := range p.refs {
		if ref.label != "" {
			blk, ok := p.blocks[ref.label]
			if !ok {
				return fmt.Errorf("undefined block .%s", ref.label)
			}
			p.ir.SetArg(ref.instr, ref.arg, p.ir.AllocBlockRef(blk))

			switch ref.instr.Op {
			case OpBranch, OpBranchCond:
				AddEdge(ref.instr.Block, blk)
			}
			continue
		}

		v, ok := p.slots[ref.slot]
		if !ok {
			return fmt.Errorf("undefined slot %%%d", ref.slot)
		}
		p.ir.SetArg(ref.instr, ref.arg, v)
	}

	return nil
}
