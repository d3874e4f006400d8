package memory

/*
 * Katana - Shared memory and host address reservations
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
	"unsafe"

	"golang.org/x/sys/unix"
)

type shmemHandle = int

const shmemInvalid shmemHandle = -1

func allocationGranularity() int {
	return unix.Getpagesize()
}

// createShmem creates the anonymous shared memory object backing guest RAM.
func createShmem(size int64) (shmemHandle, error) {
	fd, err := unix.MemfdCreate("katana-guest", unix.MFD_CLOEXEC)
	if err != nil {
		return shmemInvalid, err
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		return shmemInvalid, err
	}
	return fd, nil
}

func destroyShmem(h shmemHandle) {
	unix.Close(h)
}

func mapShmemSlice(h shmemHandle, offset int64, size int) ([]byte, error) {
	return unix.Mmap(h, offset, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func unmapShmemSlice(b []byte) {
	if err := unix.Munmap(b); err != nil {
		slog.Warn("failed to unmap shared memory", "err", err)
	}
}

// reserveAddressSpace reserves a contiguous 1<<32 byte range of host
// virtual address space with no access. Physical pages are later mapped
// into the reservation; everything else faults on touch.
func reserveAddressSpace() (unsafe.Pointer, error) {
	return unix.MmapPtr(-1, 0, nil, uintptr(addressSpaceSize),
		unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
}

func releaseAddressSpace(base unsafe.Pointer) {
	if err := unix.MunmapPtr(base, uintptr(addressSpaceSize)); err != nil {
		slog.Warn("failed to release address space reservation", "err", err)
	}
}

// mapShmemFixed maps size bytes of the shared memory object at a fixed
// host address inside a reservation.
func mapShmemFixed(h shmemHandle, offset int64, addr unsafe.Pointer, size uint32) error {
	_, err := unix.MmapPtr(h, offset, addr, uintptr(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_FIXED)
	return err
}

// protectNone returns a range inside a reservation to the no-access state.
func protectNone(addr unsafe.Pointer, size uint32) error {
	_, err := unix.MmapPtr(-1, 0, addr, uintptr(size),
		unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE|unix.MAP_FIXED)
	return err
}
