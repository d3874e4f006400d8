/*
 * Katana - Monitor command table
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

package command

import (
	"sort"
	"strings"

	"github.com/tswindell/katana/emu/dc"
)

// Func executes one monitor command. Returning true quits the monitor.
type Func func(d *dc.Dreamcast, args []string) (bool, error)

// Command describes one monitor command.
type Command struct {
	Name    string
	MinArgs int
	Help    string
	Fn      Func
}

var table = map[string]Command{}

// Register adds a command. Called from init functions.
func Register(c Command) {
	table[strings.ToLower(c.Name)] = c
}

// Lookup finds a command by full name.
func Lookup(name string) (Command, bool) {
	c, ok := table[strings.ToLower(name)]
	return c, ok
}

// Matches returns the command names starting with prefix, sorted.
func Matches(prefix string) []string {
	prefix = strings.ToLower(prefix)

	var names []string
	for name := range table {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// All returns every command, sorted by name.
func All() []Command {
	names := Matches("")

	cmds := make([]Command, 0, len(names))
	for _, name := range names {
		cmds = append(cmds, table[name])
	}
	return cmds
}
