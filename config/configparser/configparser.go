/*
 * Katana - Configuration file parser
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a
 * copy of this software and associated documentation files (the "Software"),
 * to deal in the Software without restriction, including without limitation
 * the rights to use, copy, modify, merge, publish, distribute, sublicense,
 * and/or sell copies of the Software, and to permit persons to whom the
 * Software is furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
 * THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 */
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

/* Configuration file format:
 *
 * '#' indicates comment, rest of line is ignored.
 * <line> := <option> <whitespace> <value> *(<whitespace> <extra>) |
 *           <switch>
 * <option> ::= <string>
 * <value> ::= <string> | '"' *(<letter> | <whitespace>) '"'
 * <extra> ::= <string> ['=' <value>]
 * <string> ::= *(<letter> | <number> | '.' | '/' | '_' | '-')
 */

// Extra holds one trailing name[=value] option of a config line.
type Extra struct {
	Name     string // Name of option.
	EqualOpt string // Value of string after =.
}

// Option handler types.
const (
	TypeOption = 1 + iota // Option takes a value plus extras.
	TypeFile              // Option names a file.
	TypeSwitch            // Option is a bare flag.
)

type optionDef struct {
	create func(value string, extras []Extra) error
	ty     int
}

var options = map[string]optionDef{}

var lineNumber int

// RegisterOption should be called from init functions.
func RegisterOption(name string, fn func(value string, extras []Extra) error) {
	options[strings.ToUpper(name)] = optionDef{create: fn, ty: TypeOption}
}

// RegisterFile registers an option whose value is a file name.
func RegisterFile(name string, fn func(value string, extras []Extra) error) {
	options[strings.ToUpper(name)] = optionDef{create: fn, ty: TypeFile}
}

// RegisterSwitch registers a bare flag option.
func RegisterSwitch(name string, fn func() error) {
	options[strings.ToUpper(name)] = optionDef{
		create: func(string, []Extra) error { return fn() },
		ty:     TypeSwitch,
	}
}

// Current option line being parsed.
type optionLine struct {
	line string
	pos  int
}

// LoadConfigFile reads and applies a configuration file.
func LoadConfigFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	lineNumber = 0
	reader := bufio.NewReader(file)
	for {
		line := optionLine{}
		line.line, err = reader.ReadString('\n')
		lineNumber++
		if len(line.line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := line.parseLine(); err != nil {
			return err
		}
	}
	return nil
}

// Parse one line from the file.
func (line *optionLine) parseLine() error {
	name := line.parseWord()
	if name == "" {
		return nil
	}

	def, ok := options[strings.ToUpper(name)]
	if !ok {
		return fmt.Errorf("unknown option %s, line %d", name, lineNumber)
	}

	switch def.ty {
	case TypeSwitch:
		line.skipSpace()
		if !line.isEOL() {
			return fmt.Errorf("switch option %s followed by a value, line %d", name, lineNumber)
		}
		return def.create("", nil)

	case TypeOption, TypeFile:
		value := line.parseValue()
		if value == "" {
			return fmt.Errorf("option %s requires a value, line %d", name, lineNumber)
		}

		extras, err := line.parseExtras()
		if err != nil {
			return err
		}
		return def.create(value, extras)
	}

	return nil
}

// Skip forward over the line until a non-whitespace character.
func (line *optionLine) skipSpace() {
	for line.pos < len(line.line) {
		if !unicode.IsSpace(rune(line.line[line.pos])) {
			return
		}
		line.pos++
	}
}

// Check if at end of line or the start of a comment.
func (line *optionLine) isEOL() bool {
	return line.pos >= len(line.line) || line.line[line.pos] == '#'
}

func isWordByte(by byte) bool {
	return unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) ||
		by == '.' || by == '/' || by == '_' || by == '-'
}

// parseWord returns the next bare word.
func (line *optionLine) parseWord() string {
	line.skipSpace()

	var word strings.Builder
	for !line.isEOL() && isWordByte(line.line[line.pos]) {
		word.WriteByte(line.line[line.pos])
		line.pos++
	}
	return word.String()
}

// parseValue returns the next word or quoted string.
func (line *optionLine) parseValue() string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}

	if line.line[line.pos] == '"' {
		line.pos++
		var value strings.Builder
		for line.pos < len(line.line) && line.line[line.pos] != '"' {
			value.WriteByte(line.line[line.pos])
			line.pos++
		}
		if line.pos < len(line.line) {
			line.pos++
		}
		return value.String()
	}

	return line.parseWord()
}

// parseExtras collects trailing name[=value] options.
func (line *optionLine) parseExtras() ([]Extra, error) {
	var extras []Extra

	for {
		line.skipSpace()
		if line.isEOL() {
			return extras, nil
		}

		name := line.parseWord()
		if name == "" {
			return nil, fmt.Errorf("malformed option near %q, line %d",
				line.line[line.pos:], lineNumber)
		}

		extra := Extra{Name: name}
		if !line.isEOL() && line.line[line.pos] == '=' {
			line.pos++
			extra.EqualOpt = line.parseValue()
		}
		extras = append(extras, extra)
	}
}
