// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package probe checks that a network interface can reach a DHCP server by
// broadcasting a DISCOVER and waiting for an OFFER.
package probe

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/d2g/dhcp4"
	"github.com/jpillora/backoff"
	"github.com/platinasystems/genet/ethernet"
	"github.com/platinasystems/genet/snp"
	"github.com/platinasystems/log"
)

// Offer is the useful content of a DHCP OFFER.
type Offer struct {
	Server   net.IP
	Address  net.IP
	Mask     net.IPMask
	Router   net.IP
	Lease    time.Duration
	BootFile string
	Packet   dhcp4.Packet
}

func (o *Offer) String() string {
	s := fmt.Sprintf("%s from %s", o.Address, o.Server)
	if o.Mask != nil {
		ones, _ := o.Mask.Size()
		s = fmt.Sprintf("%s/%d from %s", o.Address, ones, o.Server)
	}
	if o.Router != nil {
		s += " via " + o.Router.String()
	}
	if o.Lease > 0 {
		s += " lease " + o.Lease.String()
	}
	if o.BootFile != "" {
		s += " boot " + o.BootFile
	}
	return s
}

var ErrNoOffer = errors.New("probe: no offer")

// Prober sends DISCOVER on Dev until an OFFER arrives. Each attempt waits
// one Backoff step longer than the last.
type Prober struct {
	Dev      snp.Interface
	Attempts int
	Backoff  backoff.Backoff
	// Interval between empty receive polls.
	Poll time.Duration
}

func New(dev snp.Interface) *Prober {
	return &Prober{
		Dev:      dev,
		Attempts: 4,
		Backoff: backoff.Backoff{
			Min:    time.Second,
			Max:    8 * time.Second,
			Factor: 2,
		},
		Poll: time.Millisecond,
	}
}

// DiscoverPacket returns a broadcast DHCP DISCOVER from a.
func DiscoverPacket(a ethernet.Address, xid []byte) dhcp4.Packet {
	p := dhcp4.NewPacket(dhcp4.BootRequest)
	p.SetCHAddr(net.HardwareAddr(a[:]))
	p.SetXId(xid)
	p.SetBroadcast(true)
	p.AddOption(dhcp4.OptionDHCPMessageType, []byte{byte(dhcp4.Discover)})
	p.AddOption(dhcp4.OptionParameterRequestList, []byte{
		byte(dhcp4.OptionSubnetMask),
		byte(dhcp4.OptionRouter),
		byte(dhcp4.OptionDomainNameServer),
	})
	p.PadToMinSize()
	return p
}

// DiscoverFrame wraps a DISCOVER in a broadcast ethernet frame.
func DiscoverFrame(a ethernet.Address, xid []byte) ([]byte, error) {
	return udpFrame(a, ethernet.BroadcastAddr, net.IPv4zero, net.IPv4bcast,
		ClientPort, ServerPort, DiscoverPacket(a, xid))
}

// ParseOffer returns the OFFER for transaction xid carried by frame.
func ParseOffer(frame []byte, xid []byte) (*Offer, error) {
	_, dport, payload, err := udpPayload(frame)
	if err != nil {
		return nil, err
	}
	if dport != ClientPort {
		return nil, fmt.Errorf("udp port %d", dport)
	}
	p := dhcp4.Packet(payload)
	if len(p) < 240 || p.OpCode() != dhcp4.BootReply {
		return nil, fmt.Errorf("not a bootp reply")
	}
	if !bytes.Equal(p.XId(), xid) {
		return nil, fmt.Errorf("xid %x", p.XId())
	}
	opts := p.ParseOptions()
	mt := opts[dhcp4.OptionDHCPMessageType]
	if len(mt) != 1 || dhcp4.MessageType(mt[0]) != dhcp4.Offer {
		return nil, fmt.Errorf("not an offer")
	}
	o := &Offer{
		Server:   p.SIAddr(),
		Address:  p.YIAddr(),
		BootFile: string(bytes.TrimRight(p.File(), "\x00")),
		Packet:   p,
	}
	if v := opts[dhcp4.OptionServerIdentifier]; len(v) == net.IPv4len {
		o.Server = net.IP(v)
	}
	if v := opts[dhcp4.OptionSubnetMask]; len(v) == net.IPv4len {
		o.Mask = net.IPMask(v)
	}
	if v := opts[dhcp4.OptionRouter]; len(v) >= net.IPv4len {
		o.Router = net.IP(v[:net.IPv4len])
	}
	if v := opts[dhcp4.OptionIPAddressLeaseTime]; len(v) == 4 {
		o.Lease = time.Duration(binary.BigEndian.Uint32(v)) * time.Second
	}
	return o, nil
}

// Run probes until an offer arrives, attempts run out or ctx is done.
func (p *Prober) Run(ctx context.Context) (*Offer, error) {
	m := p.Dev.Mode()
	xid := make([]byte, 4)
	if _, err := rand.Read(xid); err != nil {
		return nil, err
	}
	p.Backoff.Reset()
	buf := make([]byte, m.MaxPacketSize)
	for attempt := 0; attempt < p.Attempts; attempt++ {
		frame, err := DiscoverFrame(m.CurrentAddress, xid)
		if err != nil {
			return nil, err
		}
		deadline := time.Now().Add(p.Backoff.Duration())
		sent := false
		for time.Now().Before(deadline) {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
			if !sent {
				switch err = p.Dev.Transmit(0, frame, nil, nil, nil); {
				case err == nil:
					sent = true
				case !errors.Is(err, snp.ErrNotReady):
					return nil, err
				}
			}
			if _, err = p.Dev.GetStatus(); err != nil {
				return nil, err
			}
			var f snp.Frame
			f, err = p.Dev.Receive(buf)
			switch {
			case err == nil:
				if o, perr := ParseOffer(buf[:f.Len], xid); perr == nil {
					return o, nil
				}
				continue
			case errors.Is(err, snp.ErrBufferTooSmall):
				continue
			case !errors.Is(err, snp.ErrNotReady):
				return nil, err
			}
			time.Sleep(p.Poll)
		}
		log.Printf("info", "probe: attempt %d: no offer", attempt+1)
	}
	return nil, ErrNoOffer
}
