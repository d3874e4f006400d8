package trace

/*
 * Katana - Trace file tests
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
	"bytes"
	"path/filepath"
	"testing"
)

func TestTraceRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "0.trace")

	w, err := Create(filename)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	texA := []byte{1, 2, 3, 4}
	palA := []byte{9, 8}
	if err := w.InsertTexture(0x11, 0x22, 1, palA, texA); err != nil {
		t.Fatalf("insert texture failed: %v", err)
	}

	ctx := &ContextCmd{
		Autosort:    true,
		Stride:      64,
		PalPxlFmt:   2,
		VideoWidth:  640,
		VideoHeight: 480,
		BgISP:       0xaaaaaaaa,
		BgTSP:       0xbbbbbbbb,
		BgTCW:       0xcccccccc,
		BgDepth:     0.5,
		BgVertices:  []byte{1, 1, 2, 2},
		Params:      []byte{5, 6, 7, 8},
	}
	if err := w.RenderContext(ctx); err != nil {
		t.Fatalf("render context failed: %v", err)
	}

	// A second upload of the same texture identity.
	texB := []byte{4, 3, 2, 1}
	if err := w.InsertTexture(0x11, 0x22, 2, palA, texB); err != nil {
		t.Fatalf("insert texture failed: %v", err)
	}

	w.Close()

	trace, err := Parse(filename)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if trace.NumFrames != 1 {
		t.Errorf("frame count got %d expected 1", trace.NumFrames)
	}

	first := trace.Cmds
	if first == nil || first.Type != CmdTexture {
		t.Fatalf("first command is not a texture")
	}
	if !bytes.Equal(first.Texture.Texture, texA) {
		t.Errorf("texture payload got %v expected %v", first.Texture.Texture, texA)
	}
	if !bytes.Equal(first.Texture.Palette, palA) {
		t.Errorf("palette payload got %v expected %v", first.Texture.Palette, palA)
	}

	second := first.Next
	if second == nil || second.Type != CmdContext {
		t.Fatalf("second command is not a context")
	}
	got := second.Context
	if !got.Autosort || got.Stride != 64 || got.VideoWidth != 640 || got.VideoHeight != 480 {
		t.Errorf("context header mismatch: %+v", got)
	}
	if got.BgDepth != 0.5 {
		t.Errorf("background depth got %f expected 0.5", got.BgDepth)
	}
	if !bytes.Equal(got.Params, ctx.Params) {
		t.Errorf("params payload got %v expected %v", got.Params, ctx.Params)
	}
	if !bytes.Equal(got.BgVertices, ctx.BgVertices) {
		t.Errorf("vertices payload got %v expected %v", got.BgVertices, ctx.BgVertices)
	}
	if second.Prev != first {
		t.Errorf("prev pointer not linked")
	}

	third := second.Next
	if third == nil || third.Type != CmdTexture {
		t.Fatalf("third command is not a texture")
	}
	if third.Override != first {
		t.Errorf("texture override does not point at the earlier upload")
	}
	if !bytes.Equal(third.Texture.Texture, texB) {
		t.Errorf("override texture payload wrong")
	}
	if third.Next != nil {
		t.Errorf("trailing command list not terminated")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "bad.trace")

	w, err := Create(filename)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	w.file.Write([]byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0})
	w.Close()

	if _, err := Parse(filename); err == nil {
		t.Errorf("garbage trace parsed without error")
	}
}
