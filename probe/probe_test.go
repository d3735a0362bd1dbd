// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package probe

import (
	"context"
	"encoding/binary"
	"io/ioutil"
	"net"
	"testing"
	"time"

	"github.com/d2g/dhcp4"
	"github.com/jpillora/backoff"
	"github.com/platinasystems/genet/ethernet"
	"github.com/platinasystems/genet/genet"
	"github.com/platinasystems/genet/internal/sim"
	"github.com/platinasystems/log"
	"github.com/stretchr/testify/require"
)

func init() { log.Tee(ioutil.Discard) }

var (
	clientAddr = ethernet.Address{0xdc, 0xa6, 0x32, 0x01, 0x02, 0x03}
	serverAddr = ethernet.Address{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverIP   = net.IPv4(192, 168, 1, 1).To4()
	yourIP     = net.IPv4(192, 168, 1, 100).To4()
)

func offerFrame(req dhcp4.Packet, xid []byte) []byte {
	rep := dhcp4.NewPacket(dhcp4.BootReply)
	rep.SetXId(xid)
	rep.SetCHAddr(req.CHAddr())
	rep.SetYIAddr(yourIP)
	rep.SetSIAddr(serverIP)
	rep.AddOption(dhcp4.OptionDHCPMessageType, []byte{byte(dhcp4.Offer)})
	rep.AddOption(dhcp4.OptionServerIdentifier, serverIP)
	rep.AddOption(dhcp4.OptionSubnetMask, []byte{255, 255, 255, 0})
	rep.AddOption(dhcp4.OptionRouter, serverIP)
	rep.AddOption(dhcp4.OptionIPAddressLeaseTime, []byte{0, 0, 0x0e, 0x10})
	rep.PadToMinSize()
	var dst ethernet.Address
	copy(dst[:], req.CHAddr())
	f, err := udpFrame(serverAddr, dst, serverIP, yourIP, ServerPort,
		ClientPort, rep)
	if err != nil {
		panic(err)
	}
	return f
}

// server answers every DISCOVER, first with an offer for some other
// transaction.
func server(frame []byte) [][]byte {
	_, dport, payload, err := udpPayload(frame)
	if err != nil || dport != ServerPort {
		return nil
	}
	req := dhcp4.Packet(payload)
	mt := req.ParseOptions()[dhcp4.OptionDHCPMessageType]
	if len(mt) != 1 || dhcp4.MessageType(mt[0]) != dhcp4.Discover {
		return nil
	}
	other := append([]byte(nil), req.XId()...)
	other[0]++
	return [][]byte{
		offerFrame(req, other),
		offerFrame(req, req.XId()),
	}
}

func device(t *testing.T, peer func([]byte) [][]byte) *genet.Device {
	b := sim.NewBoard()
	b.Peer = peer
	cfg := genet.DefaultConfig()
	cfg.Address = clientAddr
	d, err := genet.New(cfg, b.Genet, b.DMA, b.Clock)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	require.NoError(t, d.Initialize(0, 0))
	return d
}

func quick(dev *genet.Device) *Prober {
	p := New(dev)
	p.Attempts = 2
	p.Backoff = backoff.Backoff{Min: time.Millisecond, Max: 2 * time.Millisecond}
	p.Poll = 100 * time.Microsecond
	return p
}

func TestDiscoverFrame(t *testing.T) {
	xid := []byte{1, 2, 3, 4}
	f, err := DiscoverFrame(clientAddr, xid)
	require.NoError(t, err)

	var eh ethernet.Header
	require.True(t, eh.Read(f))
	require.Equal(t, ethernet.BroadcastAddr, eh.Dst)
	require.Equal(t, clientAddr, eh.Src)
	require.Equal(t, ethernet.TypeIp4, eh.Type)

	ih := f[ethernet.HeaderBytes : ethernet.HeaderBytes+20]
	require.Equal(t, uint16(0), checksum(0, ih), "ip header checksum")

	ip, dport, payload, err := udpPayload(f)
	require.NoError(t, err)
	require.Equal(t, uint16(ServerPort), dport)
	require.True(t, ip.Dst.Equal(net.IPv4bcast))
	u := f[ethernet.HeaderBytes+20:]
	require.Equal(t, uint16(0),
		checksum(pseudoHeaderSum(ip.Src, ip.Dst, len(u)), u), "udp checksum")

	p := dhcp4.Packet(payload)
	require.Equal(t, dhcp4.BootRequest, p.OpCode())
	require.Equal(t, xid, p.XId())
	require.True(t, p.Broadcast())
	require.Equal(t, net.HardwareAddr(clientAddr[:]), p.CHAddr())
	mt := p.ParseOptions()[dhcp4.OptionDHCPMessageType]
	require.Equal(t, []byte{byte(dhcp4.Discover)}, mt)
}

func TestParseOffer(t *testing.T) {
	xid := []byte{9, 8, 7, 6}
	req := DiscoverPacket(clientAddr, xid)
	o, err := ParseOffer(offerFrame(req, xid), xid)
	require.NoError(t, err)
	require.True(t, o.Address.Equal(yourIP))
	require.True(t, o.Server.Equal(serverIP))
	require.True(t, o.Router.Equal(serverIP))
	require.Equal(t, net.IPMask{255, 255, 255, 0}, o.Mask)
	require.Equal(t, time.Hour, o.Lease)
	require.Equal(t, "192.168.1.100/24 from 192.168.1.1 via 192.168.1.1 lease 1h0m0s",
		o.String())

	_, err = ParseOffer(offerFrame(req, []byte{0, 0, 0, 0}), xid)
	require.Error(t, err, "foreign transaction")
	d, err := DiscoverFrame(clientAddr, xid)
	require.NoError(t, err)
	_, err = ParseOffer(d, xid)
	require.Error(t, err, "discover is not an offer")
	_, err = ParseOffer(make([]byte, 60), xid)
	require.Error(t, err, "not ipv4")
}

func TestUDPPayloadTruncated(t *testing.T) {
	f, err := DiscoverFrame(clientAddr, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	// udp length past the end of the datagram
	binary.BigEndian.PutUint16(f[ethernet.HeaderBytes+20+4:], 0xffff)
	_, _, _, err = udpPayload(f)
	require.Equal(t, errShort, err)
}

func TestRun(t *testing.T) {
	o, err := quick(device(t, server)).Run(context.Background())
	require.NoError(t, err)
	require.True(t, o.Address.Equal(yourIP))
	require.Equal(t, time.Hour, o.Lease)
}

func TestRunNoServer(t *testing.T) {
	dev := device(t, nil)
	_, err := quick(dev).Run(context.Background())
	require.Equal(t, ErrNoOffer, err)
	s, err := dev.Statistics(false)
	require.NoError(t, err)
	require.Equal(t, uint64(2), s.TxTotalFrames)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := quick(device(t, server)).Run(ctx)
	require.Equal(t, context.Canceled, err)
}
