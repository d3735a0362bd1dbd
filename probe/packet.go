// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package probe

import (
	"encoding/binary"
	"errors"
	"net"

	"github.com/platinasystems/genet/ethernet"
	"golang.org/x/net/ipv4"
)

const (
	ClientPort = 68
	ServerPort = 67

	udpHeaderBytes = 8
	protocolUDP    = 17
)

var (
	errNotIp4 = errors.New("not ipv4")
	errNotUDP = errors.New("not udp")
	errShort  = errors.New("truncated")
)

// checksum is the internet one's complement sum of b seeded with sum.
func checksum(sum uint32, b []byte) uint16 {
	for ; len(b) > 1; b = b[2:] {
		sum += uint32(b[0])<<8 | uint32(b[1])
	}
	if len(b) == 1 {
		sum += uint32(b[0]) << 8
	}
	for sum > 0xffff {
		sum = sum>>16 + sum&0xffff
	}
	return ^uint16(sum)
}

func pseudoHeaderSum(src, dst net.IP, n int) (sum uint32) {
	s, d := src.To4(), dst.To4()
	for i := 0; i < net.IPv4len; i += 2 {
		sum += uint32(s[i])<<8 | uint32(s[i+1])
		sum += uint32(d[i])<<8 | uint32(d[i+1])
	}
	return sum + protocolUDP + uint32(n)
}

// udpFrame returns an ethernet frame carrying payload in a UDP datagram.
func udpFrame(src, dst ethernet.Address, sip, dip net.IP, sport, dport uint16,
	payload []byte) ([]byte, error) {
	ulen := udpHeaderBytes + len(payload)
	h := ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + ulen,
		TTL:      64,
		Protocol: protocolUDP,
		Src:      sip.To4(),
		Dst:      dip.To4(),
	}
	ih, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	binary.BigEndian.PutUint16(ih[10:], checksum(0, ih))

	b := make([]byte, ethernet.HeaderBytes, ethernet.HeaderBytes+len(ih)+ulen)
	eh := ethernet.Header{Dst: dst, Src: src, Type: ethernet.TypeIp4}
	eh.Write(b)
	b = append(b, ih...)

	u := make([]byte, ulen)
	binary.BigEndian.PutUint16(u[0:], sport)
	binary.BigEndian.PutUint16(u[2:], dport)
	binary.BigEndian.PutUint16(u[4:], uint16(ulen))
	copy(u[udpHeaderBytes:], payload)
	cs := checksum(pseudoHeaderSum(sip, dip, ulen), u)
	if cs == 0 {
		cs = 0xffff
	}
	binary.BigEndian.PutUint16(u[6:], cs)
	return append(b, u...), nil
}

// udpPayload returns the addresses, destination port and payload of a UDP
// datagram in frame.
func udpPayload(frame []byte) (ip *ipv4.Header, dport uint16, payload []byte, err error) {
	var eh ethernet.Header
	if !eh.Read(frame) || eh.Type != ethernet.TypeIp4 {
		err = errNotIp4
		return
	}
	b := frame[ethernet.HeaderBytes:]
	if ip, err = ipv4.ParseHeader(b); err != nil {
		return
	}
	if ip.Protocol != protocolUDP {
		err = errNotUDP
		return
	}
	if ip.TotalLen > len(b) || ip.TotalLen < ip.Len+udpHeaderBytes {
		err = errShort
		return
	}
	u := b[ip.Len:ip.TotalLen]
	ulen := int(binary.BigEndian.Uint16(u[4:]))
	if ulen < udpHeaderBytes || ulen > len(u) {
		err = errShort
		return
	}
	dport = binary.BigEndian.Uint16(u[2:])
	payload = u[udpHeaderBytes:ulen]
	return
}
