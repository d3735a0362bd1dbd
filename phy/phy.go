// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package phy drives a clause 22 ethernet transceiver through detection,
// reset, auto-negotiation and link polling.
package phy

import (
	"fmt"
	"time"

	"github.com/platinasystems/genet/hw"
	"github.com/platinasystems/genet/snp"
	"github.com/platinasystems/log"
)

type Speed int

const (
	Speed10   Speed = 10
	Speed100  Speed = 100
	Speed1000 Speed = 1000
)

func (s Speed) String() string { return fmt.Sprintf("%dMbps", int(s)) }

type Duplex int

const (
	HalfDuplex Duplex = iota
	FullDuplex
)

func (d Duplex) String() string {
	if d == FullDuplex {
		return "full-duplex"
	}
	return "half-duplex"
}

// Bus is implemented by the MAC that owns the MDIO interface.
type Bus interface {
	Read(addr, reg uint8) (uint16, error)
	Write(addr, reg uint8, v uint16) error
	// Configure programs the MAC for a newly resolved link.
	Configure(speed Speed, duplex Duplex)
}

type State int

const (
	Undetected State = iota
	Detected
	Reset
	Negotiating
	LinkDown
	LinkUp
)

var stateNames = [...]string{
	Undetected:  "undetected",
	Detected:    "detected",
	Reset:       "reset",
	Negotiating: "negotiating",
	LinkDown:    "link-down",
	LinkUp:      "link-up",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Poll budgets, each with a 1ms interval.
const (
	ResetTimeout = 500
	LinkTimeout  = 200
	AnegTimeout  = 200

	pollInterval = time.Millisecond
)

type Phy struct {
	Bus     Bus
	Staller hw.Staller

	Addr   uint8
	ID     uint32
	State  State
	LinkUp bool
	Speed  Speed
	Duplex Duplex
}

func New(bus Bus, s hw.Staller) *Phy {
	return &Phy{Bus: bus, Staller: s}
}

func (p *Phy) read(reg uint8) (uint16, error) { return p.Bus.Read(p.Addr, reg) }
func (p *Phy) write(reg uint8, v uint16) error {
	return p.Bus.Write(p.Addr, reg, v)
}

// Init detects, resets and starts negotiation on the first transceiver
// found on the bus.
func (p *Phy) Init() (err error) {
	if err = p.Detect(); err != nil {
		return
	}
	if err = p.Reset(); err != nil {
		return
	}
	return p.AutoNegotiate()
}

// Detect scans all bus addresses and records the first that answers with
// valid identifiers. Addresses whose reads fail are skipped.
func (p *Phy) Detect() error {
	for addr := uint8(0); addr < MaxAddr; addr++ {
		id1, err := p.Bus.Read(addr, PHYID1)
		if err != nil {
			continue
		}
		id2, err := p.Bus.Read(addr, PHYID2)
		if err != nil {
			continue
		}
		if id1 != 0xffff && id2 != 0xffff {
			p.Addr = addr
			p.ID = uint32(id1)<<16 | uint32(id2)
			p.State = Detected
			log.Printf("info", "phy detected at address 0x%02x id %04x:%04x",
				addr, id1, id2)
			return nil
		}
	}
	p.State = Undetected
	return fmt.Errorf("phy: %w", snp.ErrNotFound)
}

// Reset sets the self clearing reset bit and waits for the transceiver to
// clear it.
func (p *Phy) Reset() error {
	if err := p.write(BMCR, BMCR_RESET); err != nil {
		return err
	}
	for i := 0; i < ResetTimeout; i++ {
		v, err := p.read(BMCR)
		if err != nil {
			return err
		}
		if v&BMCR_RESET == 0 {
			p.State = Reset
			p.LinkUp = false
			return nil
		}
		p.Staller.Stall(pollInterval)
	}
	return fmt.Errorf("phy reset: %w", snp.ErrTimeout)
}

func (p *Phy) setBits(reg uint8, bits uint16) error {
	v, err := p.read(reg)
	if err != nil {
		return err
	}
	return p.write(reg, v|bits)
}

// AutoNegotiate advertises every 10/100/1000 mode and restarts
// negotiation. It does not wait for completion.
func (p *Phy) AutoNegotiate() (err error) {
	if err = p.setBits(ANAR, ANAR_100BASETX_FDX|ANAR_100BASETX|
		ANAR_10BASET_FDX|ANAR_10BASET); err != nil {
		return
	}
	if err = p.setBits(GBCR, GBCR_1000BASET_FDX|GBCR_1000BASET); err != nil {
		return
	}
	if err = p.setBits(BMCR, BMCR_ANE|BMCR_RESTART_AN); err != nil {
		return
	}
	p.State = Negotiating
	return
}

func (p *Phy) pollBMSR(bit uint16, budget int) (ok bool, err error) {
	var v uint16
	for i := 0; i < budget; i++ {
		if v, err = p.read(BMSR); err != nil {
			return
		}
		if ok = v&bit != 0; ok {
			return
		}
		p.Staller.Stall(pollInterval)
	}
	return
}

// linkStatus returns nil once link is up and negotiation has completed.
func (p *Phy) linkStatus() error {
	v, err := p.read(BMSR)
	if err != nil {
		return err
	}
	if v&BMSR_LINK_STATUS != 0 {
		return nil
	}
	ok, err := p.pollBMSR(BMSR_LINK_STATUS, LinkTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("phy link: %w", snp.ErrTimeout)
	}
	ok, err = p.pollBMSR(BMSR_ANEG_COMPLETE, AnegTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("phy auto-negotiation: %w", snp.ErrTimeout)
	}
	return nil
}

// Resolve picks the highest speed both ends advertise. Duplex is full when
// both ends advertise full duplex at that speed.
func Resolve(gbcr, gbsr, anar, anlpar uint16) (Speed, Duplex) {
	gb := (gbsr >> 2) & gbcr
	an := anlpar & anar
	switch {
	case gb&(GBCR_1000BASET_FDX|GBCR_1000BASET) != 0:
		return Speed1000, duplex(gb&GBCR_1000BASET_FDX != 0)
	case an&(ANAR_100BASETX_FDX|ANAR_100BASETX) != 0:
		return Speed100, duplex(an&ANAR_100BASETX_FDX != 0)
	default:
		return Speed10, duplex(an&ANAR_10BASET_FDX != 0)
	}
}

func duplex(full bool) Duplex {
	if full {
		return FullDuplex
	}
	return HalfDuplex
}

func (p *Phy) config() (s Speed, d Duplex, err error) {
	var v [4]uint16
	for i, reg := range []uint8{GBCR, GBSR, ANAR, ANLPAR} {
		if v[i], err = p.read(reg); err != nil {
			return
		}
	}
	s, d = Resolve(v[0], v[1], v[2], v[3])
	return
}

// UpdateConfig polls link state. The MAC is reconfigured only when link
// goes from down to up. A nil return means link is up.
func (p *Phy) UpdateConfig() error {
	lerr := p.linkStatus()
	up := lerr == nil
	if up != p.LinkUp {
		if up {
			s, d, err := p.config()
			if err != nil {
				return err
			}
			p.Speed, p.Duplex = s, d
			log.Print("info", "link up ", s, " ", d)
			p.Bus.Configure(s, d)
		} else {
			log.Print("info", "link down")
		}
	}
	p.LinkUp = up
	if up {
		p.State = LinkUp
	} else {
		p.State = LinkDown
	}
	return lerr
}
