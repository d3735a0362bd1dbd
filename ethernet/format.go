// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ethernet

import (
	"fmt"
	"net"
)

func (a Address) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		a[0], a[1], a[2], a[3], a[4], a[5])
}

// ParseAddress accepts any of the forms understood by net.ParseMAC
// that carry exactly six octets.
func ParseAddress(s string) (a Address, err error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return
	}
	if len(hw) != AddressBytes {
		err = fmt.Errorf("%s: not an ethernet address", s)
		return
	}
	copy(a[:], hw)
	return
}

var typeNames = map[Type]string{
	TypeIp4:  "IP4",
	TypeArp:  "ARP",
	TypeVlan: "VLAN",
	TypeIp6:  "IP6",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("0x%04x", uint16(t))
}

func (h *Header) String() string {
	return fmt.Sprintf("%s: %s -> %s", h.Type, h.Src, h.Dst)
}
