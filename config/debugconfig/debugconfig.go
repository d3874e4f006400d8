/*
 * Katana - Debug options configuration.
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

package debugconfig

import (
	"errors"
	"strings"

	config "github.com/tswindell/katana/config/configparser"
	"github.com/tswindell/katana/util/debug"
)

var modules = map[string]int{
	"SCHED": debug.DebugSched,
	"MEM":   debug.DebugMem,
	"HOLLY": debug.DebugHolly,
	"PVR":   debug.DebugPVR,
	"TA":    debug.DebugTA,
	"MAPLE": debug.DebugMaple,
	"GDROM": debug.DebugGDROM,
	"JIT":   debug.DebugJIT,
}

// register the debug option on initialize.
func init() {
	config.RegisterOption("DEBUG", setDebug)
}

// Enable debug output for the named modules.
func setDebug(value string, extras []config.Extra) error {
	names := []string{value}
	for _, extra := range extras {
		names = append(names, extra.Name)
	}

	for _, name := range names {
		bit, ok := modules[strings.ToUpper(name)]
		if !ok {
			return errors.New("debug option invalid: " + name)
		}
		debug.Enable(bit)
	}
	return nil
}
