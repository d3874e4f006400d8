/*
 * Katana - Configuration parser tests
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

package configparser

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	name := filepath.Join(t.TempDir(), "test.cfg")
	if err := os.WriteFile(name, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return name
}

func TestOptionParsing(t *testing.T) {
	var gotValue string
	var gotExtras []Extra
	RegisterOption("TESTOPT", func(value string, extras []Extra) error {
		gotValue = value
		gotExtras = extras
		return nil
	})

	switched := false
	RegisterSwitch("TESTSWITCH", func() error {
		switched = true
		return nil
	})

	name := writeConfig(t, `
# comment line
testopt somevalue flag speed=20
testswitch
`)

	if err := LoadConfigFile(name); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if gotValue != "somevalue" {
		t.Errorf("option value got %q expected somevalue", gotValue)
	}
	if len(gotExtras) != 2 {
		t.Fatalf("extras got %d expected 2", len(gotExtras))
	}
	if gotExtras[0].Name != "flag" || gotExtras[0].EqualOpt != "" {
		t.Errorf("extra 0 got %+v", gotExtras[0])
	}
	if gotExtras[1].Name != "speed" || gotExtras[1].EqualOpt != "20" {
		t.Errorf("extra 1 got %+v", gotExtras[1])
	}
	if !switched {
		t.Errorf("switch handler not invoked")
	}
}

func TestQuotedValue(t *testing.T) {
	var gotValue string
	RegisterFile("TESTFILE", func(value string, _ []Extra) error {
		gotValue = value
		return nil
	})

	name := writeConfig(t, "testfile \"some file.bin\"\n")
	if err := LoadConfigFile(name); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if gotValue != "some file.bin" {
		t.Errorf("quoted value got %q", gotValue)
	}
}

func TestUnknownOption(t *testing.T) {
	name := writeConfig(t, "nosuchthing value\n")
	if err := LoadConfigFile(name); err == nil {
		t.Errorf("unknown option accepted")
	}
}

func TestMissingValue(t *testing.T) {
	RegisterOption("NEEDSVALUE", func(string, []Extra) error { return nil })

	name := writeConfig(t, "needsvalue\n")
	if err := LoadConfigFile(name); err == nil {
		t.Errorf("missing value accepted")
	}
}
