/*
 * Katana - Monitor command parser
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

package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tswindell/katana/command/command"
	"github.com/tswindell/katana/emu/dc"
	"github.com/tswindell/katana/util/hex"
)

// ProcessCommand parses and runs one monitor line. The returned flag
// requests monitor exit.
func ProcessCommand(line string, d *dc.Dreamcast) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	matches := command.Matches(fields[0])
	switch {
	case len(matches) == 0:
		return false, errors.New("unknown command: " + fields[0])
	case len(matches) > 1:
		// An exact name wins over being a prefix of several.
		if _, ok := command.Lookup(fields[0]); !ok {
			return false, errors.New("ambiguous command: " + strings.Join(matches, ", "))
		}
		matches = []string{strings.ToLower(fields[0])}
	}

	cmd, _ := command.Lookup(matches[0])
	args := fields[1:]
	if len(args) < cmd.MinArgs {
		return false, fmt.Errorf("%s requires at least %d arguments", cmd.Name, cmd.MinArgs)
	}

	return cmd.Fn(d, args)
}

// CompleteCmd offers command name completion for the reader.
func CompleteCmd(line string) []string {
	if strings.ContainsRune(strings.TrimSpace(line), ' ') {
		return nil
	}
	return command.Matches(strings.TrimSpace(line))
}

func parseNumber(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, errors.New("bad hex number: " + s)
	}
	return uint32(v), nil
}

func init() {
	command.Register(command.Command{
		Name: "help", Help: "List commands",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			for _, c := range command.All() {
				fmt.Printf("  %-10s %s\n", c.Name, c.Help)
			}
			return false, nil
		},
	})

	command.Register(command.Command{
		Name: "quit", Help: "Shut the machine down and exit",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			return true, nil
		},
	})

	command.Register(command.Command{
		Name: "stop", Help: "Suspend the machine",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			d.Suspend()
			return false, nil
		},
	})

	command.Register(command.Command{
		Name: "cont", Help: "Resume the machine",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			d.Resume()
			return false, nil
		},
	})

	command.Register(command.Command{
		Name: "tick", MinArgs: 1, Help: "Advance guest time by N milliseconds",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			ms, err := strconv.Atoi(args[0])
			if err != nil {
				return false, errors.New("bad tick count: " + args[0])
			}
			d.Tick(int64(ms) * 1000000)
			return false, nil
		},
	})

	command.Register(command.Command{
		Name: "regs", Help: "Show CPU registers",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			for i := 0; i < d.SH4.NumRegs(); i++ {
				name, v := d.SH4.ReadReg(i)
				fmt.Printf("%-5s %08x", name, uint32(v))
				if i%4 == 3 {
					fmt.Println()
				} else {
					fmt.Print("  ")
				}
			}
			fmt.Println()
			return false, nil
		},
	})

	command.Register(command.Command{
		Name: "examine", MinArgs: 1, Help: "Dump guest memory: examine <addr> [len]",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			addr, err := parseNumber(args[0])
			if err != nil {
				return false, err
			}
			length := uint32(0x40)
			if len(args) > 1 {
				if length, err = parseNumber(args[1]); err != nil {
					return false, err
				}
			}

			buf := make([]byte, 16)
			for off := uint32(0); off < length; off += 16 {
				n := 16
				if int(length-off) < n {
					n = int(length - off)
				}
				d.SH4.ReadMem(addr+off, buf[:n])
				fmt.Println(hex.DumpLine(addr+off, buf[:n]))
			}
			return false, nil
		},
	})

	command.Register(command.Command{
		Name: "deposit", MinArgs: 2, Help: "Write guest memory: deposit <addr> <word>...",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			addr, err := parseNumber(args[0])
			if err != nil {
				return false, err
			}
			for i, arg := range args[1:] {
				v, err := parseNumber(arg)
				if err != nil {
					return false, err
				}
				d.SH4.Space().Write32(addr+uint32(i)*4, v)
			}
			return false, nil
		},
	})

	command.Register(command.Command{
		Name: "textures", Help: "Show texture cache statistics",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			fmt.Printf("live textures: %d\n", d.TA.NumTextures())
			return false, nil
		},
	})

	command.Register(command.Command{
		Name: "clearcache", Help: "Mark every cached texture dirty",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			d.TA.ClearTextureCache()
			return false, nil
		},
	})

	command.Register(command.Command{
		Name: "trace", Help: "Toggle render trace recording",
		Fn: func(d *dc.Dreamcast, args []string) (bool, error) {
			d.TA.ToggleTracing()
			return false, nil
		},
	})
}
