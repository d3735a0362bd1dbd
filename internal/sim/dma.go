// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sim

import (
	"fmt"
	"sync"

	"github.com/platinasystems/genet/hw"
	"github.com/platinasystems/genet/snp"
)

type mapping struct {
	addr hw.BusAddr
	dir  hw.Direction
	b    []byte
}

// DMA is a bus address allocator standing in for an IOMMU. Bus addresses
// start above 4G so both halves of descriptor addresses are exercised.
type DMA struct {
	// Fail the next FailMap calls to Map.
	FailMap int
	// Allocate fails once this many buffers are live; zero is unlimited.
	AllocLimit int

	mu     sync.Mutex
	next   hw.BusAddr
	handle hw.Mapping
	maps   map[hw.Mapping]*mapping
	byAddr map[hw.BusAddr]hw.Mapping
	live   int
}

func NewDMA() *DMA {
	return &DMA{
		next:   1 << 32,
		maps:   make(map[hw.Mapping]*mapping),
		byAddr: make(map[hw.BusAddr]hw.Mapping),
	}
}

func (d *DMA) Allocate(n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.AllocLimit > 0 && d.live >= d.AllocLimit {
		return nil, fmt.Errorf("sim: allocate %d bytes: %w", n, snp.ErrOutOfResources)
	}
	d.live++
	return make([]byte, n), nil
}

func (d *DMA) Free(b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.live == 0 {
		return fmt.Errorf("sim: free of unallocated buffer")
	}
	d.live--
	return nil
}

func (d *DMA) Map(dir hw.Direction, b []byte) (hw.BusAddr, hw.Mapping, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailMap > 0 {
		d.FailMap--
		return 0, 0, fmt.Errorf("sim: map %v: %w", dir, snp.ErrOutOfResources)
	}
	d.handle++
	m := &mapping{addr: d.next, dir: dir, b: b}
	d.next += hw.BusAddr((len(b) + 0xfff) &^ 0xfff)
	if len(b) == 0 {
		d.next += 0x1000
	}
	d.maps[d.handle] = m
	d.byAddr[m.addr] = d.handle
	return m.addr, d.handle, nil
}

func (d *DMA) Unmap(h hw.Mapping) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.maps[h]
	if !ok {
		return fmt.Errorf("sim: unmap of unknown mapping %d", h)
	}
	delete(d.maps, h)
	delete(d.byAddr, m.addr)
	return nil
}

// Resolve returns n bytes of host memory behind a bus address the way a
// bus master would see it.
func (d *DMA) Resolve(addr hw.BusAddr, n int, dir hw.Direction) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.byAddr[addr]
	if !ok {
		return nil, fmt.Errorf("sim: bus address 0x%x not mapped", uint64(addr))
	}
	m := d.maps[h]
	if m.dir != dir {
		return nil, fmt.Errorf("sim: bus address 0x%x mapped %v", uint64(addr), m.dir)
	}
	if n > len(m.b) {
		return nil, fmt.Errorf("sim: %d byte access past %d byte mapping",
			n, len(m.b))
	}
	return m.b[:n], nil
}

// Mapped returns the number of active mappings.
func (d *DMA) Mapped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.maps)
}

// Live returns the number of allocated buffers.
func (d *DMA) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}
