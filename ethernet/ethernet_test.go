// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ethernet

import (
	"bytes"
	"testing"
)

func TestHeader(t *testing.T) {
	h := Header{
		Dst:  BroadcastAddr,
		Src:  Address{0xdc, 0xa6, 0x32, 0x01, 0x02, 0x03},
		Type: TypeIp4,
	}
	b := make([]byte, HeaderBytes+2)
	h.Write(b)
	want := []byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xdc, 0xa6, 0x32, 0x01, 0x02, 0x03,
		0x08, 0x00, 0, 0,
	}
	if !bytes.Equal(b, want) {
		t.Errorf("Write: got % x want % x", b, want)
	}
	var g Header
	if !g.Read(b) || g != h {
		t.Errorf("Read: got %v want %v", &g, &h)
	}
	if g.Read(b[:HeaderBytes-1]) {
		t.Error("Read: short buffer accepted")
	}
}

func TestAddress(t *testing.T) {
	a, err := ParseAddress("dc:a6:32:00:00:ff")
	if err != nil {
		t.Fatal(err)
	}
	a.Add(1)
	if got, want := a.String(), "dc:a6:32:00:01:00"; got != want {
		t.Errorf("Add: got %s want %s", got, want)
	}
	if !a.IsUnicast() || a.IsBroadcast() {
		t.Errorf("%s: unicast %v broadcast %v", a, a.IsUnicast(), a.IsBroadcast())
	}
	if _, err = ParseAddress("00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01"); err == nil {
		t.Error("ParseAddress: accepted infiniband address")
	}
	r := RandomAddress()
	if !r.IsUnicast() || !r.IsLocallyAdministered() {
		t.Errorf("RandomAddress: %s not local unicast", r)
	}
}

func TestTypeString(t *testing.T) {
	if got := TypeArp.String(); got != "ARP" {
		t.Errorf("got %s want ARP", got)
	}
	if got := Type(0x88cc).String(); got != "0x88cc" {
		t.Errorf("got %s want 0x88cc", got)
	}
}
