// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package genet

// Register offset from the controller base.
type reg uint

func (r reg) get(c *Controller) uint32    { return c.regs.Read32(uint(r)) }
func (r reg) set(c *Controller, v uint32) { c.regs.Write32(uint(r), v) }
func (r reg) or(c *Controller, v uint32) uint32 {
	return c.regs.Or(uint(r), v)
}
func (r reg) andnot(c *Controller, v uint32) uint32 {
	return c.regs.AndNot(uint(r), v)
}

const (
	sys_rev_ctrl         reg = 0x000
	sys_port_ctrl        reg = 0x004
	sys_rbuf_flush_ctrl  reg = 0x008
	ext_rgmii_oob_ctrl   reg = 0x08c
	intrl2_cpu_stat      reg = 0x200
	intrl2_cpu_clear     reg = 0x208
	intrl2_cpu_stat_mask reg = 0x20c
	intrl2_cpu_set_mask  reg = 0x210
	intrl2_cpu_clr_mask  reg = 0x214
	rbuf_ctrl            reg = 0x300
	rbuf_tbuf_size_ctrl  reg = 0x3b4
	umac_cmd             reg = 0x808
	umac_mac0            reg = 0x80c
	umac_mac1            reg = 0x810
	umac_max_frame_len   reg = 0x814
	umac_tx_flush        reg = 0xb34
	umac_mib_ctrl        reg = 0xd80
	mdio_cmd             reg = 0xe14
)

const (
	sys_rev_major = 0x0f000000
	sys_rev_minor = 0x000f0000

	sys_port_mode_ext_gphy = 3

	sys_rbuf_flush_reset = 1 << 1

	ext_rgmii_oob_id_mode_disable = 1 << 16
	ext_rgmii_oob_rgmii_mode_en   = 1 << 6
	ext_rgmii_oob_oob_disable     = 1 << 5
	ext_rgmii_oob_rgmii_link      = 1 << 4

	irq_mdio_done   = 1 << 23
	irq_txdma_done  = 1 << 16
	irq_rxdma_done  = 1 << 13
	irq_all         = 0xffffffff
	rbuf_align_2b   = 1 << 1
	rbuf_tbuf_size1 = 1

	umac_cmd_lcl_loop_en = 1 << 15
	umac_cmd_sw_reset    = 1 << 13
	umac_cmd_hd_en       = 1 << 10
	umac_cmd_promisc     = 1 << 4
	umac_cmd_speed       = 3 << 2
	umac_cmd_speed_10    = 0
	umac_cmd_speed_100   = 1
	umac_cmd_speed_1000  = 2
	umac_cmd_rxen        = 1 << 1
	umac_cmd_txen        = 1 << 0

	umac_mib_reset_tx   = 1 << 2
	umac_mib_reset_runt = 1 << 1
	umac_mib_reset_rx   = 1 << 0

	mdio_start_busy = 1 << 29
	mdio_read       = 1 << 27
	mdio_write      = 1 << 26
	mdio_pmd        = 0x1f << 21
	mdio_reg        = 0x1f << 16
	mdio_data       = 0xffff
)

// DMA layout.
const (
	DescCount    = 256
	descSize     = 12
	defaultQueue = 16
	ringSize     = 0x40

	rx_base reg = 0x2000
	tx_base reg = 0x4000

	// Hardware ring indices are 16 bit counters independent of ring depth.
	indexMask = 0xffff

	ring_buf_size_desc_count = 0xffff0000
	ring_buf_size_buf_length = 0x0000ffff
	rx_xon_xoff_thres_lo     = 0xffff0000
	rx_xon_xoff_thres_hi     = 0x0000ffff

	desc_status_buflen  = 0x0fff0000
	desc_status_own     = 1 << 15
	desc_status_eop     = 1 << 14
	desc_status_sop     = 1 << 13
	tx_desc_status_qtag = 0x3f << 7
	tx_desc_status_crc  = 1 << 6

	dma_ctrl_en = 1 << 0
)

func dma_ctrl_rbuf_en(q uint) uint32 { return 1 << (1 + q) }

// Per ring registers of the default queue.
const (
	rx_ring = rx_base + 0xc00 + ringSize*defaultQueue
	tx_ring = tx_base + 0xc00 + ringSize*defaultQueue

	rx_dma_write_ptr_lo  = rx_ring + 0x00
	rx_dma_write_ptr_hi  = rx_ring + 0x04
	rx_dma_prod_index    = rx_ring + 0x08
	rx_dma_cons_index    = rx_ring + 0x0c
	rx_dma_ring_buf_size = rx_ring + 0x10
	rx_dma_start_addr_lo = rx_ring + 0x14
	rx_dma_start_addr_hi = rx_ring + 0x18
	rx_dma_end_addr_lo   = rx_ring + 0x1c
	rx_dma_end_addr_hi   = rx_ring + 0x20
	rx_dma_xon_xoff      = rx_ring + 0x28
	rx_dma_read_ptr_lo   = rx_ring + 0x2c
	rx_dma_read_ptr_hi   = rx_ring + 0x30

	tx_dma_read_ptr_lo     = tx_ring + 0x00
	tx_dma_read_ptr_hi     = tx_ring + 0x04
	tx_dma_cons_index      = tx_ring + 0x08
	tx_dma_prod_index      = tx_ring + 0x0c
	tx_dma_ring_buf_size   = tx_ring + 0x10
	tx_dma_start_addr_lo   = tx_ring + 0x14
	tx_dma_start_addr_hi   = tx_ring + 0x18
	tx_dma_end_addr_lo     = tx_ring + 0x1c
	tx_dma_end_addr_hi     = tx_ring + 0x20
	tx_dma_mbuf_done_thres = tx_ring + 0x24
	tx_dma_flow_period     = tx_ring + 0x28
	tx_dma_write_ptr_lo    = tx_ring + 0x2c
	tx_dma_write_ptr_hi    = tx_ring + 0x30

	rx_dma_ring_cfg       = rx_base + 0x1040
	rx_dma_ctrl           = rx_base + 0x1044
	rx_dma_scb_burst_size = rx_base + 0x104c
	tx_dma_ring_cfg       = tx_base + 0x1040
	tx_dma_ctrl           = tx_base + 0x1044
	tx_dma_scb_burst_size = tx_base + 0x104c
)

// Descriptor registers: status word then 64 bit bus address.
type desc reg

func rx_desc(i uint) desc { return desc(rx_base + reg(descSize*(i%DescCount))) }
func tx_desc(i uint) desc { return desc(tx_base + reg(descSize*(i%DescCount))) }

func (d desc) status() reg  { return reg(d) }
func (d desc) addr_lo() reg { return reg(d) + 4 }
func (d desc) addr_hi() reg { return reg(d) + 8 }

// RegsSize is the extent of the controller register window.
const RegsSize = 0x10000
