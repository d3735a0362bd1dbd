// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hw

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem maps a window of physical memory through /dev/mem.
type DevMem struct {
	base uintptr
	mem  []byte
}

// OpenDevMem maps size bytes of physical address space starting at base.
func OpenDevMem(base uintptr, size int) (*DevMem, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mem, err := unix.Mmap(int(f.Fd()), int64(base), size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap 0x%x: %w", base, err)
	}
	return &DevMem{base: base, mem: mem}, nil
}

func (m *DevMem) word(addr uintptr) *uint32 {
	off := addr - m.base
	if addr < m.base || off+4 > uintptr(len(m.mem)) {
		panic(fmt.Errorf("hw: address 0x%x outside mapped window", addr))
	}
	return (*uint32)(unsafe.Pointer(&m.mem[off]))
}

func (m *DevMem) Read32(addr uintptr) uint32     { return atomic.LoadUint32(m.word(addr)) }
func (m *DevMem) Write32(addr uintptr, v uint32) { atomic.StoreUint32(m.word(addr), v) }

func (m *DevMem) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	return err
}
