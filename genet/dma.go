// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package genet

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/platinasystems/genet/hw"
	"github.com/platinasystems/genet/snp"
)

// InitRings resets software ring state and programs both rings of the
// default queue. DMA engines must be stopped.
func (c *Controller) InitRings() {
	const q = defaultQueue
	for i := range c.tx.buf {
		c.tx.buf[i] = nil
	}
	c.tx.queued = 0
	c.tx.cons_index = 0
	c.tx.prod_index = 0
	c.rx.cons_index = 0

	buf_size := hw.ShiftIn(DescCount, ring_buf_size_desc_count) |
		hw.ShiftIn(MaxPacketSize, ring_buf_size_buf_length)
	// End address is in words, not bytes.
	end := uint32(DescCount*descSize/4 - 1)

	tx_dma_scb_burst_size.set(c, 8)
	tx_dma_read_ptr_lo.set(c, 0)
	tx_dma_read_ptr_hi.set(c, 0)
	tx_dma_cons_index.set(c, 0)
	tx_dma_prod_index.set(c, 0)
	tx_dma_ring_buf_size.set(c, buf_size)
	tx_dma_start_addr_lo.set(c, 0)
	tx_dma_start_addr_hi.set(c, 0)
	tx_dma_end_addr_lo.set(c, end)
	tx_dma_end_addr_hi.set(c, 0)
	tx_dma_mbuf_done_thres.set(c, 1)
	tx_dma_flow_period.set(c, 0)
	tx_dma_write_ptr_lo.set(c, 0)
	tx_dma_write_ptr_hi.set(c, 0)
	tx_dma_ring_cfg.set(c, 1<<q)

	rx_dma_scb_burst_size.set(c, 8)
	rx_dma_write_ptr_lo.set(c, 0)
	rx_dma_write_ptr_hi.set(c, 0)
	rx_dma_prod_index.set(c, 0)
	rx_dma_cons_index.set(c, 0)
	rx_dma_ring_buf_size.set(c, buf_size)
	rx_dma_start_addr_lo.set(c, 0)
	rx_dma_start_addr_hi.set(c, 0)
	rx_dma_end_addr_lo.set(c, end)
	rx_dma_end_addr_hi.set(c, 0)
	rx_dma_xon_xoff.set(c, hw.ShiftIn(5, rx_xon_xoff_thres_lo)|
		hw.ShiftIn(DescCount>>4, rx_xon_xoff_thres_hi))
	rx_dma_read_ptr_lo.set(c, 0)
	rx_dma_read_ptr_hi.set(c, 0)
	rx_dma_ring_cfg.set(c, 1<<q)
}

// AllocRxBuffers allocates a buffer for every receive slot. Slots are left
// unarmed until MapRxRing. On failure everything allocated so far is
// released.
func (c *Controller) AllocRxBuffers() (err error) {
	for i := uint(0); i < DescCount; i++ {
		var b []byte
		if b, err = c.dma.Allocate(MaxPacketSize); err != nil {
			break
		}
		c.rx.buf[i] = b
		c.rx.unarmed++
	}
	if err != nil {
		err = fmt.Errorf("genet: rx buffers: %v: %w", err, snp.ErrOutOfResources)
		if ferr := c.FreeRxBuffers(); ferr != nil {
			err = multierror.Append(err, ferr)
		}
	}
	return
}

// FreeRxBuffers unmaps and frees every receive buffer.
func (c *Controller) FreeRxBuffers() error {
	var result *multierror.Error
	for i := uint(0); i < DescCount; i++ {
		if err := c.UnmapRxDescriptor(i); err != nil {
			result = multierror.Append(result, err)
		}
		if b := c.rx.buf[i]; b != nil {
			if err := c.dma.Free(b); err != nil {
				result = multierror.Append(result, err)
			}
			c.rx.buf[i] = nil
			c.rx.unarmed--
		}
	}
	return result.ErrorOrNil()
}

// MapRxDescriptor maps slot i for device writes and points its descriptor
// at the buffer.
func (c *Controller) MapRxDescriptor(i uint) error {
	if c.rx.mapping[i] != 0 {
		panic(fmt.Errorf("genet: rx descriptor %d already mapped", i))
	}
	if c.rx.buf[i] == nil {
		panic(fmt.Errorf("genet: rx descriptor %d has no buffer", i))
	}
	addr, m, err := c.dma.Map(hw.FromDevice, c.rx.buf[i])
	if err != nil {
		return fmt.Errorf("genet: map rx descriptor %d: %w", i, err)
	}
	c.rx.addr[i] = addr
	c.rx.mapping[i] = m
	c.rx.unarmed--
	d := rx_desc(i)
	d.addr_lo().set(c, addr.Lo())
	d.addr_hi().set(c, addr.Hi())
	return nil
}

// UnmapRxDescriptor is a no-op for slots that are not mapped.
func (c *Controller) UnmapRxDescriptor(i uint) error {
	m := c.rx.mapping[i]
	if m == 0 {
		return nil
	}
	c.rx.mapping[i] = 0
	c.rx.unarmed++
	if err := c.dma.Unmap(m); err != nil {
		return fmt.Errorf("genet: unmap rx descriptor %d: %w", i, err)
	}
	return nil
}

// MapRxRing maps every slot that holds a buffer but is not armed.
func (c *Controller) MapRxRing() error {
	if c.rx.unarmed == 0 {
		return nil
	}
	for i := uint(0); i < DescCount; i++ {
		if c.rx.buf[i] != nil && c.rx.mapping[i] == 0 {
			if err := c.MapRxDescriptor(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// UnmapRxRing unmaps every receive slot.
func (c *Controller) UnmapRxRing() error {
	var result *multierror.Error
	for i := uint(0); i < DescCount; i++ {
		if err := c.UnmapRxDescriptor(i); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// RxArmed reports whether slot i is mapped for the device.
func (c *Controller) RxArmed(i uint) bool { return c.rx.mapping[i] != 0 }

// RxUnarmed returns the number of slots waiting to be mapped.
func (c *Controller) RxUnarmed() int { return c.rx.unarmed }

// RxBuffer returns the host buffer of slot i.
func (c *Controller) RxBuffer(i uint) []byte { return c.rx.buf[i] }

// TriggerTx hands a single descriptor frame at addr to hardware. The
// descriptor must be complete before the producer index moves.
func (c *Controller) TriggerTx(index uint16, addr hw.BusAddr, n uint) {
	status := uint32(desc_status_sop|desc_status_eop|tx_desc_status_crc|
		tx_desc_status_qtag) | hw.ShiftIn(uint32(n), desc_status_buflen)
	d := tx_desc(uint(index))
	d.addr_lo().set(c, addr.Lo())
	d.addr_hi().set(c, addr.Hi())
	d.status().set(c, status)
	tx_dma_prod_index.set(c, uint32(index+1)&indexMask)
}

// TxFull reports whether the transmit ring has no free slot.
func (c *Controller) TxFull() bool { return c.tx.queued >= DescCount-1 }

func (c *Controller) TxQueued() uint { return c.tx.queued }

// QueueTx submits a mapped frame at the producer index. Callers must
// check TxFull first.
func (c *Controller) QueueTx(b []byte, addr hw.BusAddr) {
	if c.TxFull() {
		panic(fmt.Errorf("genet: tx ring overflow"))
	}
	c.tx.buf[uint(c.tx.prod_index)%DescCount] = b
	c.TriggerTx(c.tx.prod_index, addr, uint(len(b)))
	c.tx.prod_index++
	c.tx.queued++
}

// ReconcileTx releases the oldest queued frame once hardware has consumed
// at least one descriptor past the software consumer index. It returns
// nil when nothing completed.
func (c *Controller) ReconcileTx() (b []byte) {
	cons := uint16(tx_dma_cons_index.get(c) & indexMask)
	if c.tx.queued == 0 || cons == c.tx.cons_index {
		return
	}
	i := uint(c.tx.cons_index) % DescCount
	b, c.tx.buf[i] = c.tx.buf[i], nil
	c.tx.queued--
	c.tx.cons_index++
	return
}

// ReconcileRx returns the slot and length of the oldest frame produced by
// hardware and advances the consumer index past it. The slot stays mapped.
func (c *Controller) ReconcileRx() (i, n uint, ok bool) {
	prod := uint16(rx_dma_prod_index.get(c) & indexMask)
	if prod == c.rx.cons_index {
		return
	}
	i = uint(c.rx.cons_index) % DescCount
	n = uint(hw.ShiftOut(rx_desc(i).status().get(c), desc_status_buflen))
	c.rx.cons_index++
	rx_dma_cons_index.set(c, uint32(c.rx.cons_index))
	ok = true
	return
}

// RingIndices returns software consumer and producer cursors.
func (c *Controller) RingIndices() (tx_cons, tx_prod, rx_cons uint16) {
	return c.tx.cons_index, c.tx.prod_index, c.rx.cons_index
}
