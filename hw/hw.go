// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package hw provides memory mapped register access, the stall primitive and
// the DMA service consumed by device drivers.
package hw

import (
	"fmt"
	"sync/atomic"
)

// Bus performs raw 32 bit reads and writes of physical addresses.
type Bus interface {
	Read32(addr uintptr) uint32
	Write32(addr uintptr, v uint32)
}

var fence uint32

// MemoryBarrier orders all preceding loads and stores before any that follow.
func MemoryBarrier() { atomic.AddUint32(&fence, 1) }

// Regs is a register block of a device at Base on Bus.
type Regs struct {
	Bus  Bus
	Base uintptr
}

func checkOffset(offset uint) {
	if offset&3 != 0 {
		panic(fmt.Errorf("hw: misaligned register offset 0x%x", offset))
	}
}

func (r *Regs) Read32(offset uint) uint32 {
	checkOffset(offset)
	return r.Bus.Read32(r.Base + uintptr(offset))
}

// Write32 stores v and then issues a barrier so subsequent reads observe
// the write.
func (r *Regs) Write32(offset uint, v uint32) {
	checkOffset(offset)
	r.Bus.Write32(r.Base+uintptr(offset), v)
	MemoryBarrier()
}

func (r *Regs) Or(offset uint, v uint32) (x uint32) {
	x = r.Read32(offset) | v
	r.Write32(offset, x)
	return
}

func (r *Regs) AndNot(offset uint, v uint32) (x uint32) {
	x = r.Read32(offset) &^ v
	r.Write32(offset, x)
	return
}

func lowestSetBit(mask uint32) uint32 { return mask & -mask }

// ShiftIn places v in the field selected by mask.
func ShiftIn(v, mask uint32) uint32 { return (v * lowestSetBit(mask)) & mask }

// ShiftOut extracts the field selected by mask from x.
func ShiftOut(x, mask uint32) uint32 { return (x & mask) / lowestSetBit(mask) }
