// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sim

import (
	"sync"
	"time"
)

// Clock is a hw.Staller that advances virtual time instead of spinning.
type Clock struct {
	mu      sync.Mutex
	elapsed time.Duration
	stalls  int
}

func (c *Clock) Stall(d time.Duration) {
	c.mu.Lock()
	c.elapsed += d
	c.stalls++
	c.mu.Unlock()
}

func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

func (c *Clock) Stalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stalls
}

// BCM2711 register base of the controller.
const DefaultBase = 0xfd580000

// Board wires a controller, transceiver, DMA service and clock together.
type Board struct {
	*Genet
	Clock *Clock
}

// NewBoard returns a controller at DefaultBase whose transceiver answers
// at MDIO address 1.
func NewBoard() *Board {
	return &Board{
		Genet: New(DefaultBase, NewDMA(), NewPHY(1)),
		Clock: new(Clock),
	}
}
