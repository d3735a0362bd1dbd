// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

var ErrNotPresent = errors.New("hw: page not present")

// PhysMem is a DMA service backed by locked anonymous pages. Each buffer
// gets a page of its own so no buffer spans a physical page boundary.
type PhysMem struct {
	// Added to physical addresses to form bus addresses.
	BusOffset BusAddr

	mu       sync.Mutex
	pagemap  *os.File
	pageSize int
	next     Mapping
	mapped   map[Mapping]uintptr
}

func OpenPhysMem() (*PhysMem, error) {
	f, err := os.Open("/proc/self/pagemap")
	if err != nil {
		return nil, err
	}
	return &PhysMem{
		pagemap:  f,
		pageSize: os.Getpagesize(),
		mapped:   make(map[Mapping]uintptr),
	}, nil
}

func (p *PhysMem) Allocate(n int) ([]byte, error) {
	if n > p.pageSize {
		return nil, fmt.Errorf("hw: %d byte dma buffer exceeds page", n)
	}
	b, err := unix.Mmap(-1, 0, p.pageSize, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_LOCKED|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("hw: dma alloc: %w", err)
	}
	return b[:n], nil
}

func (p *PhysMem) Free(b []byte) error {
	return unix.Munmap(b[:cap(b)])
}

// pfn decodes a /proc/self/pagemap entry.
func pfn(entry uint64) (uint64, error) {
	if entry&(1<<63) == 0 {
		return 0, ErrNotPresent
	}
	n := entry & (1<<55 - 1)
	if n == 0 {
		// without CAP_SYS_ADMIN the kernel reports zero frames
		return 0, os.ErrPermission
	}
	return n, nil
}

func (p *PhysMem) Map(dir Direction, b []byte) (BusAddr, Mapping, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("hw: map %v: empty buffer", dir)
	}
	va := uintptr(unsafe.Pointer(&b[0]))
	page := va / uintptr(p.pageSize)
	var e [8]byte
	if _, err := p.pagemap.ReadAt(e[:], int64(page*8)); err != nil {
		return 0, 0, fmt.Errorf("hw: pagemap: %w", err)
	}
	n, err := pfn(binary.LittleEndian.Uint64(e[:]))
	if err != nil {
		return 0, 0, fmt.Errorf("hw: map %v 0x%x: %w", dir, va, err)
	}
	pa := BusAddr(n)*BusAddr(p.pageSize) + BusAddr(va%uintptr(p.pageSize))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	p.mapped[p.next] = va
	MemoryBarrier()
	return pa + p.BusOffset, p.next, nil
}

func (p *PhysMem) Unmap(m Mapping) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.mapped[m]; !ok {
		return fmt.Errorf("hw: unmap %d: not mapped", m)
	}
	delete(p.mapped, m)
	MemoryBarrier()
	return nil
}

func (p *PhysMem) Close() error { return p.pagemap.Close() }
