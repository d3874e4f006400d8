/*
 * Katana - Main process.
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

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"

	config "github.com/tswindell/katana/config/configparser"
	"github.com/tswindell/katana/command/reader"
	"github.com/tswindell/katana/emu/dc"
	"github.com/tswindell/katana/emu/ta"
	logger "github.com/tswindell/katana/util/logger"

	_ "github.com/tswindell/katana/config/debugconfig"
)

// Guest nanoseconds advanced per host frame.
const frameNanos = 16666666

func main() {
	optConfig := getopt.StringLong("config", 'c', "katana.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optBios := getopt.StringLong("bios", 'b', "", "Boot ROM image")
	optFlash := getopt.StringLong("flash", 'f', "", "Flash image")
	optDebug := getopt.BoolLong("debug", 'd', "Echo debug records to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	log := slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, *optDebug))
	slog.SetDefault(log)

	log.Info("Katana started")

	if _, err := os.Stat(*optConfig); err == nil {
		if err := config.LoadConfigFile(*optConfig); err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
	}

	if *optBios != "" {
		dc.SetBootPath(*optBios)
	}
	if *optFlash != "" {
		dc.SetFlashPath(*optFlash)
	}

	// The windowing shell provides the real client; standalone runs use a
	// headless one that acknowledges renders immediately.
	client := dc.Client{
		StartRender: func(ctx *ta.Context) {},
	}

	machine, err := dc.New(client)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	// Drive the machine at host frame pacing until shutdown.
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(frameNanos * time.Nanosecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				machine.Tick(frameNanos)
			}
		}
	}()

	// Exit the monitor on SIGINT / SIGTERM too.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Got quit signal")
		close(done)
	}()

	reader.ConsoleReader(machine)

	select {
	case <-done:
	default:
		close(done)
	}

	log.Info("Shutting down")
	machine.Shutdown()
}
