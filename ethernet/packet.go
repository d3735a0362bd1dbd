// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ethernet describes the layout of ethernet frames.
package ethernet

import (
	"encoding/binary"
	"math/rand"
)

const (
	AddressBytes = 6
	HeaderBytes  = 14
)

// Packet type from ethernet header.
type Type uint16

const (
	TypeIp4  Type = 0x0800
	TypeArp  Type = 0x0806
	TypeVlan Type = 0x8100
	TypeIp6  Type = 0x86dd
)

// IEEE 802 local experimental ethertype.
const TypeExperimental Type = 0x88b5

type Address [AddressBytes]byte

var BroadcastAddr = Address{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

const (
	isMulticast           = 1 << 0
	isLocallyAdministered = 1 << 1
)

func (a *Address) IsBroadcast() bool { return *a == BroadcastAddr }
func (a *Address) IsMulticast() bool { return a[0]&isMulticast != 0 }
func (a *Address) IsLocallyAdministered() bool {
	return a[0]&isLocallyAdministered != 0
}
func (a *Address) IsUnicast() bool { return !a.IsMulticast() }
func (a *Address) IsZero() bool    { return *a == Address{} }

func (a *Address) FromUint64(x uint64) {
	for i := 0; i < AddressBytes; i++ {
		a[i] = byte(x >> uint(40-8*i))
	}
}

func (a *Address) ToUint64() (x uint64) {
	for i := 0; i < AddressBytes; i++ {
		x |= uint64(a[i]) << uint(40-8*i)
	}
	return
}

// Add increments the address by x modulo 2^48.
func (a *Address) Add(x uint64) { a.FromUint64(a.ToUint64() + x) }

func RandomAddress() (a Address) {
	for i := range a {
		a[i] = uint8(rand.Int())
	}
	// Make address unicast and locally administered.
	a[0] &^= isMulticast
	a[0] |= isLocallyAdministered
	return
}

// Header for ethernet packets as they appear on the network.
type Header struct {
	Dst  Address
	Src  Address
	Type Type
}

// Write stores the header at the start of b in network byte order.
func (h *Header) Write(b []byte) {
	_ = b[HeaderBytes-1]
	copy(b[0:], h.Dst[:])
	copy(b[AddressBytes:], h.Src[:])
	binary.BigEndian.PutUint16(b[2*AddressBytes:], uint16(h.Type))
}

// Read decodes the header from the start of b; ok is false when b is
// shorter than a header.
func (h *Header) Read(b []byte) (ok bool) {
	if ok = len(b) >= HeaderBytes; !ok {
		return
	}
	copy(h.Dst[:], b[0:])
	copy(h.Src[:], b[AddressBytes:])
	h.Type = Type(binary.BigEndian.Uint16(b[2*AddressBytes:]))
	return
}
