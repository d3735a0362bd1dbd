// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package genet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/platinasystems/genet/hw"
	"github.com/platinasystems/genet/internal/sim"
	"github.com/platinasystems/genet/snp"
)

// ringController returns a controller with both rings running.
func ringController(t *testing.T) (*Controller, *sim.Board) {
	c, b := newController(t)
	c.Reset()
	if err := c.AllocRxBuffers(); err != nil {
		t.Fatal(err)
	}
	c.InitRings()
	if err := c.MapRxRing(); err != nil {
		t.Fatal(err)
	}
	c.EnableTxRx()
	return c, b
}

func TestInitRings(t *testing.T) {
	c, b := newController(t)
	c.tx.queued, c.tx.prod_index, c.rx.cons_index = 3, 7, 9
	c.InitRings()
	if tc, tp, rc := c.RingIndices(); tc != 0 || tp != 0 || rc != 0 {
		t.Errorf("indices: got %d %d %d want 0 0 0", tc, tp, rc)
	}
	if c.TxQueued() != 0 {
		t.Errorf("queued: got %d want 0", c.TxQueued())
	}
	for _, x := range []struct {
		name string
		r    reg
		want uint32
	}{
		{"tx buf size", tx_dma_ring_buf_size, DescCount<<16 | MaxPacketSize},
		{"rx buf size", rx_dma_ring_buf_size, DescCount<<16 | MaxPacketSize},
		{"tx end", tx_dma_end_addr_lo, 767},
		{"rx end", rx_dma_end_addr_lo, 767},
		{"tx ring cfg", tx_dma_ring_cfg, 1 << defaultQueue},
		{"rx ring cfg", rx_dma_ring_cfg, 1 << defaultQueue},
		{"tx burst", tx_dma_scb_burst_size, 8},
		{"rx burst", rx_dma_scb_burst_size, 8},
		{"tx done threshold", tx_dma_mbuf_done_thres, 1},
		{"rx xon xoff", rx_dma_xon_xoff, 5<<16 | DescCount>>4},
		{"tx prod", tx_dma_prod_index, 0},
		{"rx cons", rx_dma_cons_index, 0},
	} {
		if got := b.Reg(uint(x.r)); got != x.want {
			t.Errorf("%s: got %#x want %#x", x.name, got, x.want)
		}
	}
}

func TestRxBuffers(t *testing.T) {
	c, b := newController(t)
	if err := c.AllocRxBuffers(); err != nil {
		t.Fatal(err)
	}
	if n := c.RxUnarmed(); n != DescCount {
		t.Errorf("unarmed after alloc: got %d want %d", n, DescCount)
	}
	if err := c.MapRxRing(); err != nil {
		t.Fatal(err)
	}
	if n := b.DMA.Mapped(); n != DescCount {
		t.Errorf("mapped: got %d want %d", n, DescCount)
	}
	if n := c.RxUnarmed(); n != 0 {
		t.Errorf("unarmed: got %d want 0", n)
	}
	// sim bus addresses start at 4G so both halves are programmed
	for i := uint(0); i < DescCount; i++ {
		d := rx_desc(i)
		addr := hw.BusAddr(b.Reg(uint(d.addr_hi())))<<32 |
			hw.BusAddr(b.Reg(uint(d.addr_lo())))
		if addr != c.rx.addr[i] {
			t.Fatalf("desc %d: got %#x want %#x", i, addr, c.rx.addr[i])
		}
	}
	if v := b.Reg(uint(rx_desc(0).addr_hi())); v != 1 {
		t.Errorf("desc 0 addr hi: got %d want 1", v)
	}
	for j := 0; j < 2; j++ {
		if err := c.UnmapRxRing(); err != nil {
			t.Fatal(err)
		}
		if n := b.DMA.Mapped(); n != 0 {
			t.Errorf("mapped after unmap %d: got %d want 0", j, n)
		}
		if n := c.RxUnarmed(); n != DescCount {
			t.Errorf("unarmed after unmap %d: got %d want %d", j, n,
				DescCount)
		}
	}
	if err := c.FreeRxBuffers(); err != nil {
		t.Fatal(err)
	}
	if n := b.DMA.Live(); n != 0 {
		t.Errorf("live: got %d want 0", n)
	}
}

func TestAllocRxBuffersFailure(t *testing.T) {
	c, b := newController(t)
	b.DMA.AllocLimit = 10
	err := c.AllocRxBuffers()
	if !errors.Is(err, snp.ErrOutOfResources) {
		t.Fatalf("got %v want %v", err, snp.ErrOutOfResources)
	}
	if n := b.DMA.Live(); n != 0 {
		t.Errorf("live: got %d want 0", n)
	}
	if n := c.RxUnarmed(); n != 0 {
		t.Errorf("unarmed: got %d want 0", n)
	}
}

func TestMapRxDescriptorTwice(t *testing.T) {
	c, _ := ringController(t)
	defer func() {
		if recover() == nil {
			t.Error("double map did not panic")
		}
	}()
	c.MapRxDescriptor(0)
}

func TestTriggerTx(t *testing.T) {
	c, b := newController(t)
	c.TriggerTx(0xffff, 0x1_2345_6000, 60)
	d := tx_desc(0xff)
	for _, x := range []struct {
		name string
		r    reg
		want uint32
	}{
		{"status", d.status(), 60<<16 | desc_status_sop |
			desc_status_eop | tx_desc_status_crc | tx_desc_status_qtag},
		{"addr lo", d.addr_lo(), 0x23456000},
		{"addr hi", d.addr_hi(), 1},
		{"prod", tx_dma_prod_index, 0},
	} {
		if got := b.Reg(uint(x.r)); got != x.want {
			t.Errorf("%s: got %#x want %#x", x.name, got, x.want)
		}
	}
}

func queueFrame(t *testing.T, c *Controller, b *sim.Board, n int) ([]byte, hw.Mapping) {
	buf := make([]byte, n)
	buf[0] = byte(c.tx.prod_index)
	addr, m, err := b.DMA.Map(hw.ToDevice, buf)
	if err != nil {
		t.Fatal(err)
	}
	c.QueueTx(buf, addr)
	return buf, m
}

func TestTxRingWrap(t *testing.T) {
	c, b := ringController(t)
	const frames = 0x10000 + 5
	for i := 0; i < frames; i++ {
		buf, m := queueFrame(t, c, b, 60)
		b.DMA.Unmap(m)
		got := c.ReconcileTx()
		if got == nil || &got[0] != &buf[0] {
			t.Fatalf("frame %d: not reclaimed", i)
		}
		if c.ReconcileTx() != nil {
			t.Fatalf("frame %d: reclaimed twice", i)
		}
	}
	tc, tp, _ := c.RingIndices()
	if tc != 5 || tp != 5 {
		t.Errorf("indices: got cons %d prod %d want 5 5", tc, tp)
	}
	if v := b.Reg(uint(tx_dma_prod_index)); v != 5 {
		t.Errorf("hardware prod: got %d want 5", v)
	}
	if len(b.Sent) != frames {
		t.Errorf("sent: got %d want %d", len(b.Sent), frames)
	}
	if len(b.Faults) != 0 {
		t.Errorf("faults: %v", b.Faults[0])
	}
}

func TestTxFull(t *testing.T) {
	c, b := ringController(t)
	b.HoldTx = true
	var bufs [][]byte
	for !c.TxFull() {
		buf, m := queueFrame(t, c, b, 60)
		b.DMA.Unmap(m)
		bufs = append(bufs, buf)
	}
	if n := c.TxQueued(); n != DescCount-1 {
		t.Fatalf("queued: got %d want %d", n, DescCount-1)
	}
	if c.ReconcileTx() != nil {
		t.Error("reclaimed before completion")
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("overflow did not panic")
			}
		}()
		c.QueueTx(make([]byte, 60), 0)
	}()
	b.CompleteTx()
	for i, want := range bufs {
		got := c.ReconcileTx()
		if got == nil || &got[0] != &want[0] {
			t.Fatalf("reclaim %d: wrong buffer", i)
		}
	}
	if c.ReconcileTx() != nil {
		t.Error("reclaimed past producer")
	}
	if c.TxFull() || c.TxQueued() != 0 {
		t.Errorf("queued: got %d want 0", c.TxQueued())
	}
}

func TestRxRingWrap(t *testing.T) {
	c, b := ringController(t)
	if _, _, ok := c.ReconcileRx(); ok {
		t.Fatal("frame on empty ring")
	}
	const frames = 0x10000 + 3
	frame := make([]byte, 64)
	for k := 0; k < frames; k++ {
		frame[0], frame[1] = byte(k>>8), byte(k)
		if err := b.Inject(frame); err != nil {
			t.Fatalf("inject %d: %v", k, err)
		}
		i, n, ok := c.ReconcileRx()
		if !ok {
			t.Fatalf("frame %d: not received", k)
		}
		if i != uint(k%DescCount) || n != uint(len(frame)+2) {
			t.Fatalf("frame %d: got slot %d len %d", k, i, n)
		}
		if err := c.UnmapRxDescriptor(i); err != nil {
			t.Fatal(err)
		}
		if got := c.RxBuffer(i)[2:n]; !bytes.Equal(got, frame) {
			t.Fatalf("frame %d: payload mismatch", k)
		}
		if err := c.MapRxDescriptor(i); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, rc := c.RingIndices(); rc != 3 {
		t.Errorf("cons: got %d want 3", rc)
	}
	if v := b.Reg(uint(rx_dma_cons_index)); v != 3 {
		t.Errorf("hardware cons: got %d want 3", v)
	}
	if b.Dropped != 0 {
		t.Errorf("dropped: got %d want 0", b.Dropped)
	}
}

func TestRxRingFull(t *testing.T) {
	c, b := ringController(t)
	frame := make([]byte, 64)
	for k := 0; k < DescCount; k++ {
		if err := b.Inject(frame); err != nil {
			t.Fatalf("inject %d: %v", k, err)
		}
	}
	if err := b.Inject(frame); !errors.Is(err, sim.ErrRxFull) {
		t.Errorf("inject: got %v want %v", err, sim.ErrRxFull)
	}
	for k := 0; k < DescCount; k++ {
		if _, _, ok := c.ReconcileRx(); !ok {
			t.Fatalf("frame %d: not received", k)
		}
	}
	if _, _, ok := c.ReconcileRx(); ok {
		t.Error("frame past producer")
	}
}
