// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package genet is a driver for the Broadcom GENET v5 gigabit ethernet
// controller found in BCM2711 SoCs.
package genet

import (
	"github.com/platinasystems/genet/hw"
)

// MaxPacketSize is the largest frame, including ethernet header and
// hardware receive padding, that fits a ring buffer.
const MaxPacketSize = 1536

// Controller owns the register window and both descriptor rings of the
// default DMA queue. It is not safe for concurrent use.
type Controller struct {
	regs    hw.Regs
	staller hw.Staller
	dma     hw.DMA

	phyMode PhyMode

	tx tx_queue
	rx rx_queue
}

type tx_queue struct {
	// Frames owned by hardware, at most DescCount-1.
	queued     uint
	cons_index uint16
	prod_index uint16
	buf        [DescCount][]byte
}

type rx_queue struct {
	cons_index uint16
	buf        [DescCount][]byte
	addr       [DescCount]hw.BusAddr
	mapping    [DescCount]hw.Mapping
	unarmed    int
}

func NewController(bus hw.Bus, base uintptr, dma hw.DMA, s hw.Staller) *Controller {
	if s == nil {
		s = hw.BusyWait{}
	}
	return &Controller{
		regs:    hw.Regs{Bus: bus, Base: base},
		staller: s,
		dma:     dma,
	}
}

// Revision returns the major and minor hardware revision.
func (c *Controller) Revision() (major, minor uint32) {
	v := sys_rev_ctrl.get(c)
	major = hw.ShiftOut(v, sys_rev_major)
	minor = hw.ShiftOut(v, sys_rev_minor)
	return
}
