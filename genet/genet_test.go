// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package genet

import (
	"errors"
	"io/ioutil"
	"testing"
	"time"

	"github.com/platinasystems/genet/ethernet"
	"github.com/platinasystems/genet/internal/sim"
	"github.com/platinasystems/genet/phy"
	"github.com/platinasystems/genet/snp"
	"github.com/platinasystems/log"
)

func init() { log.Tee(ioutil.Discard) }

var testAddr = ethernet.Address{0xdc, 0xa6, 0x32, 0x01, 0x02, 0x03}

func newController(t *testing.T) (*Controller, *sim.Board) {
	b := sim.NewBoard()
	return NewController(b.Genet, sim.DefaultBase, b.DMA, b.Clock), b
}

func TestRevision(t *testing.T) {
	c, _ := newController(t)
	major, minor := c.Revision()
	if major != 6 || minor != 0 {
		t.Errorf("revision: got %d.%d want 6.0", major, minor)
	}
}

func TestPhyRead(t *testing.T) {
	c, _ := newController(t)
	v, err := c.PhyRead(1, phy.PHYID1)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x600d {
		t.Errorf("id1: got %#x want 0x600d", v)
	}
	if v, err = c.PhyRead(0, phy.PHYID1); err != nil {
		t.Fatal(err)
	}
	if v != 0xffff {
		t.Errorf("absent phy: got %#x want 0xffff", v)
	}
}

func TestPhyWrite(t *testing.T) {
	c, b := newController(t)
	if err := c.PhyWrite(1, phy.ANAR, 0x01e1); err != nil {
		t.Fatal(err)
	}
	if v := b.PHY.Reg(phy.ANAR); v != 0x01e1 {
		t.Errorf("anar: got %#x want 0x1e1", v)
	}
}

func TestMdioTimeout(t *testing.T) {
	c, b := newController(t)
	b.MDIOStuck = true
	_, err := c.PhyRead(1, phy.BMSR)
	if !errors.Is(err, snp.ErrTimeout) {
		t.Fatalf("read: got %v want %v", err, snp.ErrTimeout)
	}
	if n := b.MDIOPolls(); n != mdio_retry {
		t.Errorf("polls: got %d want %d", n, mdio_retry)
	}
	if d := b.Clock.Elapsed(); d != 10*time.Millisecond {
		t.Errorf("elapsed: got %v want 10ms", d)
	}
	if err = c.PhyWrite(1, phy.BMCR, 0); !errors.Is(err, snp.ErrTimeout) {
		t.Errorf("write: got %v want %v", err, snp.ErrTimeout)
	}
}

func TestMacReset(t *testing.T) {
	c, b := newController(t)
	umac_cmd.set(c, umac_cmd_promisc|umac_cmd_txen)
	c.Reset()
	for _, x := range []struct {
		name string
		r    reg
		want uint32
	}{
		{"rbuf flush", sys_rbuf_flush_ctrl, 0},
		{"umac cmd", umac_cmd, 0},
		{"mib ctrl", umac_mib_ctrl, 0},
		{"max frame", umac_max_frame_len, MaxPacketSize},
		{"rbuf ctrl", rbuf_ctrl, rbuf_align_2b},
		{"tbuf size", rbuf_tbuf_size_ctrl, rbuf_tbuf_size1},
	} {
		if got := b.Reg(uint(x.r)); got != x.want {
			t.Errorf("%s: got %#x want %#x", x.name, got, x.want)
		}
	}
}

func TestStationAddress(t *testing.T) {
	c, b := newController(t)
	c.SetStationAddress(testAddr)
	if v := b.Reg(uint(umac_mac0)); v != 0xdca63201 {
		t.Errorf("mac0: got %#x want 0xdca63201", v)
	}
	if v := b.Reg(uint(umac_mac1)); v != 0x0203 {
		t.Errorf("mac1: got %#x want 0x0203", v)
	}
	if a := c.StationAddress(); a != testAddr {
		t.Errorf("address: got %v want %v", a, testAddr)
	}
}

func TestApplyLinkConfig(t *testing.T) {
	for _, x := range []struct {
		mode   PhyMode
		speed  phy.Speed
		duplex phy.Duplex
		oob    uint32
		cmd    uint32
	}{
		{PhyModeRGMII_RXID, phy.Speed1000, phy.FullDuplex,
			ext_rgmii_oob_rgmii_link | ext_rgmii_oob_rgmii_mode_en,
			umac_cmd_speed_1000 << 2},
		{PhyModeRGMII, phy.Speed100, phy.HalfDuplex,
			ext_rgmii_oob_rgmii_link | ext_rgmii_oob_rgmii_mode_en |
				ext_rgmii_oob_id_mode_disable,
			umac_cmd_speed_100<<2 | umac_cmd_hd_en},
		{PhyModeRGMII_RXID, phy.Speed10, phy.FullDuplex,
			ext_rgmii_oob_rgmii_link | ext_rgmii_oob_rgmii_mode_en,
			umac_cmd_speed_10 << 2},
	} {
		c, b := newController(t)
		ext_rgmii_oob_ctrl.set(c, ext_rgmii_oob_oob_disable)
		umac_cmd.set(c, umac_cmd_speed|umac_cmd_hd_en)
		c.SetPhyMode(x.mode)
		if v := b.Reg(uint(sys_port_ctrl)); v != sys_port_mode_ext_gphy {
			t.Errorf("%v port mode: got %d want %d", x.mode, v,
				sys_port_mode_ext_gphy)
		}
		c.ApplyLinkConfig(x.speed, x.duplex)
		if v := b.Reg(uint(ext_rgmii_oob_ctrl)); v != x.oob {
			t.Errorf("%v %v oob: got %#x want %#x", x.mode, x.speed, v,
				x.oob)
		}
		if v := b.Reg(uint(umac_cmd)); v != x.cmd {
			t.Errorf("%v %v %v cmd: got %#x want %#x", x.mode, x.speed,
				x.duplex, v, x.cmd)
		}
	}
}

func TestEnableDisableTxRx(t *testing.T) {
	c, b := newController(t)
	c.EnableTxRx()
	want := uint32(dma_ctrl_en | dma_ctrl_rbuf_en(defaultQueue))
	for _, r := range []reg{rx_dma_ctrl, tx_dma_ctrl} {
		if v := b.Reg(uint(r)); v != want {
			t.Errorf("dma ctrl %#x: got %#x want %#x", uint(r), v, want)
		}
	}
	if v := b.Reg(uint(umac_cmd)); v&(umac_cmd_txen|umac_cmd_rxen) !=
		umac_cmd_txen|umac_cmd_rxen {
		t.Errorf("cmd: got %#x want tx and rx enabled", v)
	}
	if v := b.Reg(uint(intrl2_cpu_stat_mask)); v !=
		^uint32(irq_txdma_done|irq_rxdma_done) {
		t.Errorf("mask: got %#x", v)
	}

	c.DisableTxRx()
	for _, r := range []reg{rx_dma_ctrl, tx_dma_ctrl} {
		if v := b.Reg(uint(r)); v&dma_ctrl_en != 0 {
			t.Errorf("dma ctrl %#x: got %#x want disabled", uint(r), v)
		}
	}
	if v := b.Reg(uint(umac_cmd)); v&(umac_cmd_txen|umac_cmd_rxen) != 0 {
		t.Errorf("cmd: got %#x want tx and rx disabled", v)
	}
	if v := b.Reg(uint(intrl2_cpu_stat_mask)); v != irq_all {
		t.Errorf("mask: got %#x want %#x", v, uint32(irq_all))
	}
	if v := b.Reg(uint(umac_tx_flush)); v != 0 {
		t.Errorf("tx flush: got %d want 0", v)
	}
}

func TestInterrupts(t *testing.T) {
	c, b := newController(t)
	c.EnableTxRx()
	intrl2_cpu_stat.set(c, irq_rxdma_done|irq_mdio_done)
	rx, tx := c.Interrupts()
	if !rx || tx {
		t.Errorf("interrupts: got rx %v tx %v want rx only", rx, tx)
	}
	// masked sources are neither reported nor acknowledged
	if v := b.Reg(uint(intrl2_cpu_stat)); v != irq_mdio_done {
		t.Errorf("stat: got %#x want %#x", v, uint32(irq_mdio_done))
	}
	if rx, tx = c.Interrupts(); rx || tx {
		t.Errorf("interrupts: got rx %v tx %v want none", rx, tx)
	}
}
