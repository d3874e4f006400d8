package trace

/*
 * Katana - Render trace files
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
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// A trace is an append-only binary stream of commands. Each command is a
// fixed header followed by inline payload; payload positions are written as
// byte offsets relative to the command start and resolved to buffer slices
// at load time.
const (
	CmdContext = 0
	CmdTexture = 1

	contextHeaderSize = 56
	textureHeaderSize = 32
)

// ContextCmd is a rendered frame: the captured register state, the
// background vertices and the raw parameter stream.
type ContextCmd struct {
	Autosort    bool
	Stride      int32
	PalPxlFmt   uint32
	VideoWidth  int32
	VideoHeight int32
	BgISP       uint32
	BgTSP       uint32
	BgTCW       uint32
	BgDepth     float32
	BgVertices  []byte
	Params      []byte
}

// TextureCmd records a texture's source data the first time it is
// referenced while dirty.
type TextureCmd struct {
	TSP     uint32
	TCW     uint32
	Frame   uint32
	Palette []byte
	Texture []byte
}

// Cmd is one decoded trace command, linked to its neighbors. For texture
// commands, Override points at the previous texture command with the same
// TSP/TCW identity, letting a scrub-back restore the older texel data.
type Cmd struct {
	Type     int
	Prev     *Cmd
	Next     *Cmd
	Override *Cmd

	Context *ContextCmd
	Texture *TextureCmd
}

// Trace is a fully parsed trace file.
type Trace struct {
	Cmds      *Cmd
	NumFrames int
}

/*
 * writer
 */

type Writer struct {
	file *os.File
}

func Create(filename string) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &Writer{file: file}, nil
}

func (w *Writer) Close() {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
}

// RenderContext appends a context command.
func (w *Writer) RenderContext(cmd *ContextCmd) error {
	hdr := make([]byte, contextHeaderSize)
	le := binary.LittleEndian

	le.PutUint32(hdr[0:], CmdContext)
	var autosort uint32
	if cmd.Autosort {
		autosort = 1
	}
	le.PutUint32(hdr[4:], autosort)
	le.PutUint32(hdr[8:], uint32(cmd.Stride))
	le.PutUint32(hdr[12:], cmd.PalPxlFmt)
	le.PutUint32(hdr[16:], uint32(cmd.VideoWidth))
	le.PutUint32(hdr[20:], uint32(cmd.VideoHeight))
	le.PutUint32(hdr[24:], cmd.BgISP)
	le.PutUint32(hdr[28:], cmd.BgTSP)
	le.PutUint32(hdr[32:], cmd.BgTCW)
	le.PutUint32(hdr[36:], math.Float32bits(cmd.BgDepth))
	le.PutUint32(hdr[40:], uint32(len(cmd.BgVertices)))
	le.PutUint32(hdr[44:], contextHeaderSize)
	le.PutUint32(hdr[48:], uint32(len(cmd.Params)))
	le.PutUint32(hdr[52:], uint32(contextHeaderSize+len(cmd.BgVertices)))

	if _, err := w.file.Write(hdr); err != nil {
		return err
	}
	if _, err := w.file.Write(cmd.BgVertices); err != nil {
		return err
	}
	if len(cmd.Params) != 0 {
		if _, err := w.file.Write(cmd.Params); err != nil {
			return err
		}
	}
	return nil
}

// InsertTexture appends a texture command.
func (w *Writer) InsertTexture(tsp, tcw, frame uint32, palette, texture []byte) error {
	hdr := make([]byte, textureHeaderSize)
	le := binary.LittleEndian

	le.PutUint32(hdr[0:], CmdTexture)
	le.PutUint32(hdr[4:], tsp)
	le.PutUint32(hdr[8:], tcw)
	le.PutUint32(hdr[12:], frame)
	le.PutUint32(hdr[16:], uint32(len(palette)))
	le.PutUint32(hdr[20:], textureHeaderSize)
	le.PutUint32(hdr[24:], uint32(len(texture)))
	le.PutUint32(hdr[28:], uint32(textureHeaderSize+len(palette)))

	if _, err := w.file.Write(hdr); err != nil {
		return err
	}
	if len(palette) != 0 {
		if _, err := w.file.Write(palette); err != nil {
			return err
		}
	}
	if len(texture) != 0 {
		if _, err := w.file.Write(texture); err != nil {
			return err
		}
	}
	return nil
}

/*
 * parser
 */

// patchPointers decodes each command, resolving the relative payload
// offsets into absolute slices of the file buffer, and links the prev /
// next pointers.
func patchPointers(data []byte) (*Cmd, error) {
	le := binary.LittleEndian

	var head, prev *Cmd
	pos := 0

	for pos < len(data) {
		if len(data)-pos < 4 {
			return nil, fmt.Errorf("truncated trace command at offset %d", pos)
		}

		cmd := &Cmd{Type: int(le.Uint32(data[pos:]))}

		switch cmd.Type {
		case CmdContext:
			if len(data)-pos < contextHeaderSize {
				return nil, fmt.Errorf("truncated context command at offset %d", pos)
			}
			hdr := data[pos:]

			bgSize := int(le.Uint32(hdr[40:]))
			bgOff := pos + int(le.Uint32(hdr[44:]))
			paramsSize := int(le.Uint32(hdr[48:]))
			paramsOff := pos + int(le.Uint32(hdr[52:]))

			cmd.Context = &ContextCmd{
				Autosort:    le.Uint32(hdr[4:]) != 0,
				Stride:      int32(le.Uint32(hdr[8:])),
				PalPxlFmt:   le.Uint32(hdr[12:]),
				VideoWidth:  int32(le.Uint32(hdr[16:])),
				VideoHeight: int32(le.Uint32(hdr[20:])),
				BgISP:       le.Uint32(hdr[24:]),
				BgTSP:       le.Uint32(hdr[28:]),
				BgTCW:       le.Uint32(hdr[32:]),
				BgDepth:     math.Float32frombits(le.Uint32(hdr[36:])),
				BgVertices:  data[bgOff : bgOff+bgSize],
				Params:      data[paramsOff : paramsOff+paramsSize],
			}

			pos += contextHeaderSize + bgSize + paramsSize

		case CmdTexture:
			if len(data)-pos < textureHeaderSize {
				return nil, fmt.Errorf("truncated texture command at offset %d", pos)
			}
			hdr := data[pos:]

			palSize := int(le.Uint32(hdr[16:]))
			palOff := pos + int(le.Uint32(hdr[20:]))
			texSize := int(le.Uint32(hdr[24:]))
			texOff := pos + int(le.Uint32(hdr[28:]))

			cmd.Texture = &TextureCmd{
				TSP:     le.Uint32(hdr[4:]),
				TCW:     le.Uint32(hdr[8:]),
				Frame:   le.Uint32(hdr[12:]),
				Palette: data[palOff : palOff+palSize],
				Texture: data[texOff : texOff+texSize],
			}

			pos += textureHeaderSize + palSize + texSize

		default:
			return nil, fmt.Errorf("unexpected trace command type %d", cmd.Type)
		}

		if prev != nil {
			prev.Next = cmd
		} else {
			head = cmd
		}
		cmd.Prev = prev
		prev = cmd
	}

	return head, nil
}

// patchOverrides tags each texture command with the previous texture
// command it overrides, so state can be unwound when scrubbing backwards.
func patchOverrides(head *Cmd) {
	for cmd := head; cmd != nil; cmd = cmd.Next {
		if cmd.Type != CmdTexture {
			continue
		}

		key := uint64(cmd.Texture.TSP)<<32 | uint64(cmd.Texture.TCW)

		for prev := cmd.Prev; prev != nil; prev = prev.Prev {
			if prev.Type != CmdTexture {
				continue
			}
			prevKey := uint64(prev.Texture.TSP)<<32 | uint64(prev.Texture.TCW)
			if prevKey == key {
				cmd.Override = prev
				break
			}
		}
	}
}

// Parse loads a trace file.
func Parse(filename string) (*Trace, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	head, err := patchPointers(data)
	if err != nil {
		return nil, err
	}

	patchOverrides(head)

	trace := &Trace{Cmds: head}
	for cmd := head; cmd != nil; cmd = cmd.Next {
		if cmd.Type == CmdContext {
			trace.NumFrames++
		}
	}

	return trace, nil
}

// NextFilename returns the first unused N.trace name in the working
// directory.
func NextFilename() (string, error) {
	for i := 0; ; i++ {
		filename := fmt.Sprintf("%d.trace", i)
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			return filename, nil
		}
	}
}
