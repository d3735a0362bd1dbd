// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sim

const (
	phyBMCR   = 0x00
	phyBMSR   = 0x01
	phyID1    = 0x02
	phyID2    = 0x03
	phyANAR   = 0x04
	phyANLPAR = 0x05
	phyGBCR   = 0x09
	phyGBSR   = 0x0a

	bmcrReset     = 1 << 15
	bmcrANE       = 1 << 12
	bmcrRestartAN = 1 << 9
	bmsrAComp     = 1 << 5
	bmsrLink      = 1 << 2
)

// PHY models a clause 22 gigabit transceiver.
type PHY struct {
	Addr     uint8
	ID1, ID2 uint16

	// BMCR reads before reset self clears; negative never clears.
	ResetReads int
	// Link is the state of the wire. Once present, link is reported
	// after LinkReads and negotiation complete after AnegReads BMSR
	// reads.
	Link                 bool
	LinkReads, AnegReads int
	// Link partner abilities as they appear in ANLPAR and GBSR.
	PartnerANLPAR, PartnerGBSR uint16

	Resets int

	regs      [32]uint16
	resetLeft int
	bmsrReads int
	restartAN int
}

// NewPHY returns a BCM54213PE-like transceiver at addr with link up to a
// gigabit full duplex partner.
func NewPHY(addr uint8) *PHY {
	p := &PHY{
		Addr:          addr,
		ID1:           0x600d,
		ID2:           0x84a2,
		Link:          true,
		PartnerANLPAR: 0x01e1,
		PartnerGBSR:   0x0c00,
	}
	p.powerOn()
	return p
}

func (p *PHY) powerOn() {
	p.regs = [32]uint16{}
	p.regs[phyBMCR] = bmcrANE | 0x0140
	p.regs[phyANAR] = 0x0001
	p.bmsrReads = 0
}

// SetLink changes the state of the wire.
func (p *PHY) SetLink(up bool) {
	p.Link = up
	p.bmsrReads = 0
}

// Reg returns the raw value of a register without side effects.
func (p *PHY) Reg(reg uint8) uint16 { return p.regs[reg&31] }

// RestartCount returns how many times negotiation was restarted.
func (p *PHY) RestartCount() int { return p.restartAN }

func (p *PHY) Read(reg uint8) uint16 {
	switch reg & 31 {
	case phyBMCR:
		if p.regs[phyBMCR]&bmcrReset != 0 && p.resetLeft >= 0 {
			if p.resetLeft == 0 {
				p.powerOn()
			} else {
				p.resetLeft--
			}
		}
		return p.regs[phyBMCR]
	case phyBMSR:
		v := uint16(0x7949)
		p.bmsrReads++
		if p.Link && p.bmsrReads > p.LinkReads {
			v |= bmsrLink
		}
		if p.Link && p.bmsrReads > p.AnegReads &&
			p.regs[phyBMCR]&bmcrANE != 0 {
			v |= bmsrAComp
		}
		return v
	case phyID1:
		return p.ID1
	case phyID2:
		return p.ID2
	case phyANLPAR:
		if p.Link {
			return p.PartnerANLPAR
		}
		return 0
	case phyGBSR:
		if p.Link {
			return p.PartnerGBSR
		}
		return 0
	}
	return p.regs[reg&31]
}

func (p *PHY) Write(reg uint8, v uint16) {
	switch reg & 31 {
	case phyBMCR:
		if v&bmcrReset != 0 {
			p.Resets++
			p.regs[phyBMCR] = v
			if p.ResetReads < 0 {
				p.resetLeft = -1
			} else {
				p.resetLeft = p.ResetReads
			}
			return
		}
		if v&bmcrRestartAN != 0 {
			p.restartAN++
			p.bmsrReads = 0
			v &^= bmcrRestartAN
		}
		p.regs[phyBMCR] = v
	case phyBMSR, phyID1, phyID2, phyANLPAR, phyGBSR:
		// read only
	default:
		p.regs[reg&31] = v
	}
}
