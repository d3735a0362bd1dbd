// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package genet

import (
	"fmt"
	"time"

	"github.com/platinasystems/genet/hw"
	"github.com/platinasystems/genet/phy"
	"github.com/platinasystems/genet/snp"
)

const (
	mdio_retry = 1000
	mdio_delay = 10 * time.Microsecond
)

func (c *Controller) mdio_wait(addr, r uint8) (v uint32, err error) {
	for i := 0; i < mdio_retry; i++ {
		if v = mdio_cmd.get(c); v&mdio_start_busy == 0 {
			return
		}
		c.staller.Stall(mdio_delay)
	}
	err = fmt.Errorf("genet: mdio phy %d reg %d: %w", addr, r, snp.ErrTimeout)
	return
}

func mdio_command(op uint32, addr, r uint8) uint32 {
	return op | mdio_start_busy |
		hw.ShiftIn(uint32(addr), mdio_pmd) |
		hw.ShiftIn(uint32(r), mdio_reg)
}

// PhyRead reads transceiver register r at MDIO address addr.
func (c *Controller) PhyRead(addr, r uint8) (uint16, error) {
	mdio_cmd.set(c, mdio_command(mdio_read, addr, r))
	v, err := c.mdio_wait(addr, r)
	if err != nil {
		return 0, err
	}
	return uint16(v & mdio_data), nil
}

func (c *Controller) PhyWrite(addr, r uint8, v uint16) error {
	mdio_cmd.set(c, mdio_command(mdio_write, addr, r)|uint32(v))
	_, err := c.mdio_wait(addr, r)
	return err
}

// mdio_bus binds the generic transceiver state machine to this MAC.
type mdio_bus struct{ c *Controller }

func (b mdio_bus) Read(addr, r uint8) (uint16, error) { return b.c.PhyRead(addr, r) }
func (b mdio_bus) Write(addr, r uint8, v uint16) error {
	return b.c.PhyWrite(addr, r, v)
}
func (b mdio_bus) Configure(s phy.Speed, d phy.Duplex) { b.c.ApplyLinkConfig(s, d) }

// PhyBus returns the controller's MDIO bus.
func (c *Controller) PhyBus() phy.Bus { return mdio_bus{c} }
