/*
 * Katana - Log debug data to a file
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

package debug

import (
	"fmt"
	"os"

	config "github.com/tswindell/katana/config/configparser"
)

// Per-module debug mask bits.
const (
	DebugSched = 1 << iota
	DebugMem
	DebugHolly
	DebugPVR
	DebugTA
	DebugMaple
	DebugGDROM
	DebugJIT
)

var logFile *os.File

var mask int

// Enable turns on a module's debug output.
func Enable(bit int) {
	mask |= bit
}

// Generic debug message.
func Debugf(module string, bit int, format string, a ...interface{}) {
	if logFile != nil && mask&bit != 0 {
		fmt.Fprintf(logFile, module+": "+format+"\n", a...)
	}
}

// register the debug file option on initialize.
func init() {
	config.RegisterFile("DEBUGFILE", create)
}

// Create the debug output file.
func create(fileName string, _ []config.Extra) error {
	if logFile != nil {
		return fmt.Errorf("can't have more than one debug file, previous: %s", logFile.Name())
	}

	file, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("unable to create debug file: %s", fileName)
	}

	logFile = file
	return nil
}
