// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sim models the GENET ethernet controller, its transceiver and
// the platform DMA service at register level.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/platinasystems/genet/hw"
)

const (
	sysRevCtrl    = 0x000
	rbufFlushCtrl = 0x008
	intrl2Stat    = 0x200
	intrl2Clear   = 0x208
	intrl2Mask    = 0x20c
	intrl2SetMask = 0x210
	intrl2ClrMask = 0x214
	rbufCtrl      = 0x300
	umacCmd       = 0x808
	mdioCmd       = 0xe14

	irqTxDone = 1 << 16
	irqRxDone = 1 << 13

	rbufAlign2B = 1 << 1
	umacLoop    = 1 << 15

	mdioBusy  = 1 << 29
	mdioRead  = 1 << 27
	mdioWrite = 1 << 26
	mdioPMD   = 0x03e00000
	mdioReg   = 0x001f0000

	rxBase    = 0x2000
	txBase    = 0x4000
	queue     = 16
	descSize  = 12
	descCount = 256
	rxRing    = rxBase + 0xc00 + 0x40*queue
	txRing    = txBase + 0xc00 + 0x40*queue
	rxProd    = rxRing + 0x08
	rxCons    = rxRing + 0x0c
	txCons    = txRing + 0x08
	txProd    = txRing + 0x0c
	rxDmaCtrl = rxBase + 0x1044
	txDmaCtrl = txBase + 0x1044
	dmaEn     = 1 << 0

	descBufLen = 0x0fff0000
	descEOP    = 1 << 14
	descSOP    = 1 << 13

	// Size is the extent of the register window.
	Size = 0x10000
)

var (
	ErrRxDisabled = errors.New("sim: receive dma disabled")
	ErrRxFull     = errors.New("sim: receive ring full")
)

// Genet is a register level model of the controller. It satisfies hw.Bus
// for addresses in [Base, Base+Size).
type Genet struct {
	Base uintptr
	PHY  *PHY
	DMA  *DMA

	// MDIOStuck leaves the MDIO busy bit set forever.
	MDIOStuck bool
	// HoldTx captures transmitted frames but withholds completion until
	// CompleteTx.
	HoldTx bool
	// Loopback returns every transmitted frame to the receive ring, as does
	// setting the MAC local loopback bit.
	Loopback bool
	// Peer answers transmitted frames; replies are received in order.
	Peer func(frame []byte) [][]byte

	// Transmitted frames in wire order.
	Sent [][]byte
	// Frames lost because the receive ring was not ready.
	Dropped int
	// Descriptor faults seen by the DMA engines.
	Faults []error

	mu        sync.Mutex
	regs      map[uint]uint32
	mdioPolls int
	txSeen    uint16
}

func New(base uintptr, dma *DMA, phy *PHY) *Genet {
	g := &Genet{
		Base: base,
		PHY:  phy,
		DMA:  dma,
		regs: make(map[uint]uint32),
	}
	g.regs[intrl2Mask] = 0xffffffff
	g.regs[sysRevCtrl] = 0x06000000
	return g
}

func (g *Genet) offset(addr uintptr) uint {
	if addr < g.Base || addr >= g.Base+Size {
		panic(fmt.Errorf("sim: address 0x%x outside controller", addr))
	}
	return uint(addr - g.Base)
}

func (g *Genet) Read32(addr uintptr) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	off := g.offset(addr)
	if off == mdioCmd {
		g.mdioPolls++
	}
	return g.regs[off]
}

func (g *Genet) Write32(addr uintptr, v uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	off := g.offset(addr)
	switch off {
	case mdioCmd:
		g.mdio(v)
	case intrl2Clear:
		g.regs[intrl2Stat] &^= v
	case intrl2SetMask:
		g.regs[intrl2Mask] |= v
	case intrl2ClrMask:
		g.regs[intrl2Mask] &^= v
	case txProd:
		g.regs[off] = v & 0xffff
		g.transmit()
	default:
		g.regs[off] = v
	}
}

// Reg returns a register without side effects.
func (g *Genet) Reg(off uint) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.regs[off]
}

// MDIOPolls returns the number of reads of the MDIO command register.
func (g *Genet) MDIOPolls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mdioPolls
}

func (g *Genet) mdio(v uint32) {
	if v&mdioBusy == 0 || g.MDIOStuck {
		g.regs[mdioCmd] = v
		return
	}
	addr := uint8(hw.ShiftOut(v, mdioPMD))
	reg := uint8(hw.ShiftOut(v, mdioReg))
	present := g.PHY != nil && g.PHY.Addr == addr
	switch {
	case v&mdioRead != 0:
		data := uint16(0xffff)
		if present {
			data = g.PHY.Read(reg)
		}
		v = v&^0xffff | uint32(data)
	case v&mdioWrite != 0 && present:
		g.PHY.Write(reg, uint16(v))
	}
	g.regs[mdioCmd] = v &^ mdioBusy
}

func (g *Genet) desc(base uint, i uint16) (status, lo, hi uint) {
	d := base + descSize*uint(i%descCount)
	return d, d + 4, d + 8
}

func (g *Genet) transmit() {
	prod := uint16(g.regs[txProd])
	if g.regs[txDmaCtrl]&dmaEn == 0 {
		// ring (re)initialization
		g.txSeen = prod
		return
	}
	for ; g.txSeen != prod; g.txSeen++ {
		s, lo, hi := g.desc(txBase, g.txSeen)
		status := g.regs[s]
		addr := hw.BusAddr(g.regs[hi])<<32 | hw.BusAddr(g.regs[lo])
		n := int(hw.ShiftOut(status, descBufLen))
		b, err := g.DMA.Resolve(addr, n, hw.ToDevice)
		if err != nil {
			g.Faults = append(g.Faults, fmt.Errorf("tx %d: %w", g.txSeen, err))
			continue
		}
		frame := append([]byte(nil), b...)
		g.Sent = append(g.Sent, frame)
		if g.Loopback || g.regs[umacCmd]&umacLoop != 0 {
			g.receive(frame)
		}
		if g.Peer != nil {
			for _, reply := range g.Peer(frame) {
				g.receive(reply)
			}
		}
	}
	if !g.HoldTx {
		g.completeTx()
	}
}

func (g *Genet) completeTx() {
	if g.regs[txCons] != uint32(g.txSeen) {
		g.regs[txCons] = uint32(g.txSeen)
		g.regs[intrl2Stat] |= irqTxDone
	}
}

// CompleteTx retires every transmitted descriptor.
func (g *Genet) CompleteTx() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completeTx()
}

// Inject delivers a frame from the wire into the receive ring.
func (g *Genet) Inject(frame []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.receive(frame)
}

func (g *Genet) receive(frame []byte) (err error) {
	defer func() {
		if err != nil {
			g.Dropped++
		}
	}()
	if g.regs[rxDmaCtrl]&dmaEn == 0 {
		return ErrRxDisabled
	}
	prod := uint16(g.regs[rxProd])
	cons := uint16(g.regs[rxCons])
	if prod-cons >= descCount {
		return ErrRxFull
	}
	pad := 0
	if g.regs[rbufCtrl]&rbufAlign2B != 0 {
		pad = 2
	}
	s, lo, hi := g.desc(rxBase, prod)
	addr := hw.BusAddr(g.regs[hi])<<32 | hw.BusAddr(g.regs[lo])
	b, err := g.DMA.Resolve(addr, pad+len(frame), hw.FromDevice)
	if err != nil {
		err = fmt.Errorf("rx %d: %w", prod, err)
		g.Faults = append(g.Faults, err)
		return
	}
	for i := 0; i < pad; i++ {
		b[i] = 0
	}
	copy(b[pad:], frame)
	g.regs[s] = hw.ShiftIn(uint32(pad+len(frame)), descBufLen) | descSOP | descEOP
	g.regs[rxProd] = uint32(prod + 1)
	g.regs[intrl2Stat] |= irqRxDone
	return
}
