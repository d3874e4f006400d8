package sched

/*
 * Katana - Deterministic guest scheduler
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
	"log/slog"
)

// Number of timer records in the pool. Exhausting the pool is a bug in the
// emulator, not the guest.
const maxTimers = 128

type Callback = func(data any)

type Timer struct {
	active bool
	expire int64 // Absolute expiry time in guest nanoseconds
	cb     Callback
	data   any
	prev   *Timer
	next   *Timer
}

// Machine is the view of the owning machine the scheduler needs while
// ticking: whether the machine is still running, and a way to hand each
// executable device its time slice.
type Machine interface {
	Running() bool
	RunDevices(ns int64)
}

// Scheduler advances a wall-clock-decoupled guest timeline, running each
// executable device and firing expired timers in chronological order.
type Scheduler struct {
	m        Machine
	timers   [maxTimers]Timer
	free     *Timer // Singly linked free list
	head     *Timer // Live list, ascending expiry
	tail     *Timer
	baseTime int64
}

func New(m Machine) *Scheduler {
	sch := &Scheduler{m: m}

	// All timers start on the free list.
	for i := range sch.timers {
		t := &sch.timers[i]
		t.next = sch.free
		sch.free = t
	}

	return sch
}

// Now returns the current base time in guest nanoseconds.
func (sch *Scheduler) Now() int64 {
	return sch.baseTime
}

// StartTimer arms a timer to fire cb(data) after ns guest nanoseconds.
func (sch *Scheduler) StartTimer(cb Callback, data any, ns int64) *Timer {
	t := sch.free
	if t == nil {
		slog.Error("scheduler timer pool exhausted")
		panic("scheduler timer pool exhausted")
	}
	sch.free = t.next

	t.active = true
	t.expire = sch.baseTime + ns
	t.cb = cb
	t.data = data
	t.prev = nil
	t.next = nil

	// Insert into the live list keeping ascending expiry. Ties fire in
	// insertion order, so walk past equal expiries.
	var after *Timer
	for it := sch.head; it != nil; it = it.next {
		if it.expire > t.expire {
			break
		}
		after = it
	}
	sch.insertAfter(after, t)

	return t
}

// CancelTimer disarms a timer. Cancelling an inactive timer is a no-op.
func (sch *Scheduler) CancelTimer(t *Timer) {
	if t == nil || !t.active {
		return
	}

	t.active = false
	sch.unlink(t)
	t.next = sch.free
	sch.free = t
}

// RemainingTime returns the time until the timer expires.
func (sch *Scheduler) RemainingTime(t *Timer) int64 {
	return t.expire - sch.baseTime
}

// Tick advances the base clock by ns, running devices up to each timer
// expiry and firing the timers in order. Timers armed by a callback with an
// expiry at or before the new base still fire during this call.
func (sch *Scheduler) Tick(ns int64) {
	target := sch.baseTime + ns

	for sch.m.Running() && sch.baseTime < target {
		// Run devices up to the next timer.
		next := target
		if sch.head != nil && sch.head.expire < next {
			next = sch.head.expire
		}

		// Update the base time before running devices and expiring
		// timers in case one of them arms a new timer.
		slice := next - sch.baseTime
		sch.baseTime = next

		sch.m.RunDevices(slice)

		// Fire expired timers.
		for sch.head != nil && sch.head.expire <= sch.baseTime {
			t := sch.head
			sch.CancelTimer(t)
			t.cb(t.data)
		}
	}
}

func (sch *Scheduler) insertAfter(after, t *Timer) {
	if after == nil {
		t.next = sch.head
		if sch.head != nil {
			sch.head.prev = t
		} else {
			sch.tail = t
		}
		sch.head = t
		return
	}

	t.prev = after
	t.next = after.next
	if after.next != nil {
		after.next.prev = t
	} else {
		sch.tail = t
	}
	after.next = t
}

func (sch *Scheduler) unlink(t *Timer) {
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		sch.head = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		sch.tail = t.prev
	}
	t.prev = nil
	t.next = nil
}
