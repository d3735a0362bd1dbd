// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hw

import "fmt"

// BusAddr is an address as seen by a bus master.
type BusAddr uint64

func (a BusAddr) Lo() uint32 { return uint32(a) }
func (a BusAddr) Hi() uint32 { return uint32(a >> 32) }

// Mapping identifies an active bus mapping; zero means unmapped.
type Mapping uintptr

type Direction int

const (
	// Device reads host memory (transmit).
	ToDevice Direction = iota
	// Device writes host memory (receive).
	FromDevice
)

var directionNames = [...]string{
	ToDevice:   "to-device",
	FromDevice: "from-device",
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// DMA allocates DMA capable buffers and maps them for bus master access.
type DMA interface {
	Allocate(n int) ([]byte, error)
	Map(dir Direction, b []byte) (BusAddr, Mapping, error)
	Unmap(m Mapping) error
	Free(b []byte) error
}
