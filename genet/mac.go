// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package genet

import (
	"time"

	"github.com/platinasystems/genet/ethernet"
	"github.com/platinasystems/genet/hw"
	"github.com/platinasystems/genet/phy"
)

const reset_hold = 10 * time.Microsecond

// Reset flushes the receive buffer, soft resets the MAC and clears its
// counters.
func (c *Controller) Reset() {
	v := sys_rbuf_flush_ctrl.get(c) | sys_rbuf_flush_reset
	sys_rbuf_flush_ctrl.set(c, v)
	c.staller.Stall(reset_hold)
	sys_rbuf_flush_ctrl.set(c, v&^sys_rbuf_flush_reset)
	c.staller.Stall(reset_hold)
	sys_rbuf_flush_ctrl.set(c, 0)
	c.staller.Stall(reset_hold)

	umac_cmd.set(c, 0)
	umac_cmd.set(c, umac_cmd_lcl_loop_en|umac_cmd_sw_reset)
	c.staller.Stall(reset_hold)
	umac_cmd.set(c, 0)

	umac_mib_ctrl.set(c, umac_mib_reset_runt|umac_mib_reset_rx|umac_mib_reset_tx)
	umac_mib_ctrl.set(c, 0)

	umac_max_frame_len.set(c, MaxPacketSize)

	// Received frames start with two bytes of padding.
	rbuf_ctrl.or(c, rbuf_align_2b)
	rbuf_tbuf_size_ctrl.set(c, rbuf_tbuf_size1)
}

func (c *Controller) SetStationAddress(a ethernet.Address) {
	umac_mac0.set(c, uint32(a[0])<<24|uint32(a[1])<<16|uint32(a[2])<<8|uint32(a[3]))
	umac_mac1.set(c, uint32(a[4])<<8|uint32(a[5]))
}

func (c *Controller) StationAddress() (a ethernet.Address) {
	v := umac_mac0.get(c)
	a[0], a[1], a[2], a[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
	v = umac_mac1.get(c)
	a[4], a[5] = byte(v>>8), byte(v)
	return
}

func (c *Controller) SetPromiscuous(enable bool) {
	if enable {
		umac_cmd.or(c, umac_cmd_promisc)
	} else {
		umac_cmd.andnot(c, umac_cmd_promisc)
	}
}

// SetLoopback turns MAC local loopback on or off.
func (c *Controller) SetLoopback(enable bool) {
	if enable {
		umac_cmd.or(c, umac_cmd_lcl_loop_en)
	} else {
		umac_cmd.andnot(c, umac_cmd_lcl_loop_en)
	}
}

// SetPhyMode selects the external port mode.
func (c *Controller) SetPhyMode(m PhyMode) {
	c.phyMode = m
	var v uint32
	switch m {
	case PhyModeRGMII, PhyModeRGMII_RXID:
		v = sys_port_mode_ext_gphy
	}
	sys_port_ctrl.set(c, v)
}

// ApplyLinkConfig programs RGMII out of band link state and the MAC
// speed and duplex for a resolved link.
func (c *Controller) ApplyLinkConfig(s phy.Speed, d phy.Duplex) {
	v := ext_rgmii_oob_ctrl.get(c)
	v &^= ext_rgmii_oob_oob_disable
	v |= ext_rgmii_oob_rgmii_link | ext_rgmii_oob_rgmii_mode_en
	if c.phyMode == PhyModeRGMII {
		v |= ext_rgmii_oob_id_mode_disable
	}
	ext_rgmii_oob_ctrl.set(c, v)

	v = umac_cmd.get(c) &^ umac_cmd_speed
	switch s {
	case phy.Speed1000:
		v |= hw.ShiftIn(umac_cmd_speed_1000, umac_cmd_speed)
	case phy.Speed100:
		v |= hw.ShiftIn(umac_cmd_speed_100, umac_cmd_speed)
	default:
		v |= hw.ShiftIn(umac_cmd_speed_10, umac_cmd_speed)
	}
	if d == phy.FullDuplex {
		v &^= umac_cmd_hd_en
	} else {
		v |= umac_cmd_hd_en
	}
	umac_cmd.set(c, v)
}

// EnableTxRx starts both DMA engines, the MAC transmitter and receiver and
// unmasks DMA completion interrupts.
func (c *Controller) EnableTxRx() {
	tx_dma_ctrl.or(c, dma_ctrl_en|dma_ctrl_rbuf_en(defaultQueue))
	rx_dma_ctrl.or(c, dma_ctrl_en|dma_ctrl_rbuf_en(defaultQueue))
	umac_cmd.or(c, umac_cmd_txen|umac_cmd_rxen)
	intrl2_cpu_clr_mask.set(c, irq_txdma_done|irq_rxdma_done)
}

// DisableTxRx masks interrupts, stops the receiver and both DMA engines,
// flushes the transmit FIFO and then stops the transmitter.
func (c *Controller) DisableTxRx() {
	intrl2_cpu_set_mask.set(c, irq_all)
	intrl2_cpu_clear.set(c, irq_all)

	umac_cmd.andnot(c, umac_cmd_rxen)
	rx_dma_ctrl.andnot(c, dma_ctrl_en)
	tx_dma_ctrl.andnot(c, dma_ctrl_en)

	umac_tx_flush.set(c, 1)
	c.staller.Stall(reset_hold)
	umac_tx_flush.set(c, 0)

	umac_cmd.andnot(c, umac_cmd_txen)
}

// Interrupts returns and acknowledges pending unmasked interrupts.
func (c *Controller) Interrupts() (rx, tx bool) {
	v := intrl2_cpu_stat.get(c) &^ intrl2_cpu_stat_mask.get(c)
	if v != 0 {
		intrl2_cpu_clear.set(c, v)
	}
	rx = v&irq_rxdma_done != 0
	tx = v&irq_txdma_done != 0
	return
}
