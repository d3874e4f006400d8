package sched

/*
 * Katana - Scheduler tests
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
	"testing"
)

// Test machine that records the device slices it was handed.
type testMachine struct {
	running bool
	slices  []int64
}

func (m *testMachine) Running() bool {
	return m.running
}

func (m *testMachine) RunDevices(ns int64) {
	m.slices = append(m.slices, ns)
}

func newTestScheduler() (*Scheduler, *testMachine) {
	m := &testMachine{running: true}
	return New(m), m
}

func TestTimerOrder(t *testing.T) {
	sch, _ := newTestScheduler()

	var order []string
	add := func(name string) Callback {
		return func(any) { order = append(order, name) }
	}

	sch.StartTimer(add("A"), nil, 10)
	sch.StartTimer(add("B"), nil, 5)
	sch.StartTimer(add("C"), nil, 10)

	sch.Tick(10)

	if sch.Now() != 10 {
		t.Errorf("Base time not advanced got %d expected %d", sch.Now(), 10)
	}
	want := []string{"B", "A", "C"}
	if len(order) != len(want) {
		t.Fatalf("Wrong number of callbacks got %d expected %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Callback %d fired out of order got %s expected %s", i, order[i], want[i])
		}
	}
}

func TestTimerPartialTick(t *testing.T) {
	sch, _ := newTestScheduler()

	fired := 0
	sch.StartTimer(func(any) { fired++ }, nil, 15)

	sch.Tick(10)
	if fired != 0 {
		t.Errorf("Timer fired early")
	}
	sch.Tick(10)
	if fired != 1 {
		t.Errorf("Timer fired %d times expected 1", fired)
	}
	if sch.Now() != 20 {
		t.Errorf("Base time not advanced got %d expected %d", sch.Now(), 20)
	}
}

func TestTimerReschedule(t *testing.T) {
	sch, _ := newTestScheduler()

	var times []int64
	var cb Callback
	cb = func(any) {
		times = append(times, sch.Now())
		sch.StartTimer(cb, nil, 5)
	}
	sch.StartTimer(cb, nil, 5)

	sch.Tick(20)

	want := []int64{5, 10, 15, 20}
	if len(times) != len(want) {
		t.Fatalf("Timer fired %d times expected %d", len(times), len(want))
	}
	for i := range want {
		if times[i] != want[i] {
			t.Errorf("Fire %d at wrong time got %d expected %d", i, times[i], want[i])
		}
	}
}

func TestTimerImmediateFromCallback(t *testing.T) {
	sch, _ := newTestScheduler()

	fired := false
	sch.StartTimer(func(any) {
		// Already expired relative to the current base. Must still fire
		// during this Tick.
		sch.StartTimer(func(any) { fired = true }, nil, 0)
	}, nil, 5)

	sch.Tick(5)

	if !fired {
		t.Errorf("Timer armed from callback with zero delay did not fire")
	}
}

func TestCancelTimer(t *testing.T) {
	sch, _ := newTestScheduler()

	fired := false
	tm := sch.StartTimer(func(any) { fired = true }, nil, 10)
	sch.CancelTimer(tm)
	// Cancel is idempotent.
	sch.CancelTimer(tm)

	sch.Tick(20)
	if fired {
		t.Errorf("Cancelled timer fired")
	}
}

func TestRemainingTime(t *testing.T) {
	sch, _ := newTestScheduler()

	tm := sch.StartTimer(func(any) {}, nil, 30)
	if r := sch.RemainingTime(tm); r != 30 {
		t.Errorf("Remaining time got %d expected %d", r, 30)
	}
	sch.Tick(10)
	if r := sch.RemainingTime(tm); r != 20 {
		t.Errorf("Remaining time got %d expected %d", r, 20)
	}
}

func TestDeviceSlices(t *testing.T) {
	sch, m := newTestScheduler()

	sch.StartTimer(func(any) {}, nil, 4)
	sch.Tick(10)

	// Devices run up to the timer expiry, then up to the tick target.
	want := []int64{4, 6}
	if len(m.slices) != len(want) {
		t.Fatalf("Wrong number of device slices got %d expected %d", len(m.slices), len(want))
	}
	for i := range want {
		if m.slices[i] != want[i] {
			t.Errorf("Slice %d got %d expected %d", i, m.slices[i], want[i])
		}
	}
}

func TestSuspendStopsTick(t *testing.T) {
	sch, m := newTestScheduler()

	sch.StartTimer(func(any) { m.running = false }, nil, 5)

	fired := false
	sch.StartTimer(func(any) { fired = true }, nil, 10)

	sch.Tick(20)

	if fired {
		t.Errorf("Timer fired after machine suspended")
	}
	if sch.Now() != 5 {
		t.Errorf("Base time advanced past suspension got %d expected %d", sch.Now(), 5)
	}
}
