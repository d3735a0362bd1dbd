// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package snp defines the simple network device interface that a host
// drives an ethernet controller through.
package snp

import (
	"fmt"
	"net"

	"github.com/platinasystems/genet/ethernet"
	uuid "github.com/satori/go.uuid"
)

// ProtocolGUID identifies the simple network protocol.
var ProtocolGUID = uuid.FromStringOrNil("a19832b9-ac25-11d3-9a2d-0090273fc14d")

type State int

const (
	Stopped State = iota
	Started
	Initialized
)

var stateNames = [...]string{
	Stopped:     "stopped",
	Started:     "started",
	Initialized: "initialized",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type ReceiveFilter uint32

const (
	ReceiveUnicast ReceiveFilter = 1 << iota
	ReceiveMulticast
	ReceiveBroadcast
	ReceivePromiscuous
	ReceivePromiscuousMulticast
)

var receiveFilterNames = []string{
	"unicast", "multicast", "broadcast", "promiscuous", "promiscuous-multicast",
}

func (f ReceiveFilter) String() (s string) {
	for i, n := range receiveFilterNames {
		if f&(1<<uint(i)) != 0 {
			if s != "" {
				s += ","
			}
			s += n
		}
	}
	if s == "" {
		s = "none"
	}
	return
}

type InterruptStatus uint32

const (
	ReceiveInterrupt InterruptStatus = 1 << iota
	TransmitInterrupt
	CommandInterrupt
	SoftwareInterrupt
)

// IfTypeEthernet is the ARP hardware type of 10Mb ethernet.
const IfTypeEthernet = 1

// Mode is the public record of a device's state and capabilities.
type Mode struct {
	State                 State
	HwAddressSize         uint
	MediaHeaderSize       uint
	MaxPacketSize         uint
	NvRamSize             uint
	NvRamAccessSize       uint
	ReceiveFilterMask     ReceiveFilter
	ReceiveFilterSetting  ReceiveFilter
	MaxMCastFilterCount   uint
	MCastFilter           []ethernet.Address
	CurrentAddress        ethernet.Address
	BroadcastAddress      ethernet.Address
	PermanentAddress      ethernet.Address
	IfType                uint8
	MacAddressChangeable  bool
	MultipleTxSupported   bool
	MediaPresentSupported bool
	MediaPresent          bool
}

type Statistics struct {
	RxTotalFrames     uint64
	RxGoodFrames      uint64
	RxUndersizeFrames uint64
	RxDroppedFrames   uint64
	RxTotalBytes      uint64
	TxTotalFrames     uint64
	TxGoodFrames      uint64
	TxDroppedFrames   uint64
	TxTotalBytes      uint64
	RxRemapFailures   uint64
}

// Status is returned by GetStatus.
type Status struct {
	Interrupts InterruptStatus
	// Buffer of a completed transmit, nil if none was recycled.
	TxBuf        []byte
	MediaPresent bool
}

// Frame describes a received frame copied into the caller's buffer.
type Frame struct {
	HeaderSize uint
	Len        uint
	Src, Dst   ethernet.Address
	Type       ethernet.Type
}

type Interface interface {
	Mode() Mode
	Start() error
	Stop() error
	Initialize(extraRxBufferSize, extraTxBufferSize uint) error
	Reset(extendedVerification bool) error
	Shutdown() error
	ReceiveFilters(enable, disable ReceiveFilter, resetMCast bool, mcast []ethernet.Address) error
	StationAddress(reset bool, a *ethernet.Address) error
	Statistics(reset bool) (Statistics, error)
	MCastIPToMAC(ip net.IP) (ethernet.Address, error)
	NvData(read bool, offset uint, buf []byte) error
	GetStatus() (Status, error)
	// Transmit sends buf.  With a non-zero headerSize the driver fills in
	// the ethernet header at the start of buf from src, dst and typ.
	Transmit(headerSize uint, buf []byte, src, dst *ethernet.Address, typ *ethernet.Type) error
	// Receive copies the next frame, including its header, into buf.
	// ErrBufferTooSmall reports the required length in Frame.Len.
	Receive(buf []byte) (Frame, error)
}

// MCastIPToMAC maps an IPv4 or IPv6 multicast group to its ethernet
// multicast address.
func MCastIPToMAC(ip net.IP) (a ethernet.Address, err error) {
	if ip4 := ip.To4(); ip4 != nil {
		if !ip4.IsMulticast() {
			err = fmt.Errorf("%s: %w", ip, ErrInvalidParameter)
			return
		}
		a = ethernet.Address{0x01, 0x00, 0x5e, ip4[1] & 0x7f, ip4[2], ip4[3]}
		return
	}
	if len(ip) != net.IPv6len || !ip.IsMulticast() {
		err = fmt.Errorf("%v: %w", ip, ErrInvalidParameter)
		return
	}
	a = ethernet.Address{0x33, 0x33, ip[12], ip[13], ip[14], ip[15]}
	return
}
