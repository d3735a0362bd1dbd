// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package genet

import (
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/platinasystems/genet/ethernet"
	"github.com/platinasystems/genet/hw"
	"github.com/platinasystems/genet/phy"
	"github.com/platinasystems/genet/snp"
	"github.com/platinasystems/log"
	uuid "github.com/satori/go.uuid"
)

// DriverGUID identifies this driver to platform firmware.
var DriverGUID = uuid.FromStringOrNil("e2b1eaf3-50b7-4ae1-b79e-ec8020cb57ed")

// Hardware prepends this much padding to received frames.
const rx_pad = 2

// Device presents a controller as a simple network interface. Calls are
// mutually exclusive; a call that finds another in progress fails with
// snp.ErrAccessDenied rather than waiting.
type Device struct {
	mu sync.Mutex

	cfg    Config
	c      *Controller
	phy    *phy.Phy
	dma    hw.DMA
	mode   snp.Mode
	stats  snp.Statistics
	closed bool
}

var rx_log = log.NewLimited(16)

// New binds a controller described by cfg and allocates its receive
// buffers. The device starts out Stopped.
func New(cfg Config, bus hw.Bus, dma hw.DMA, s hw.Staller) (*Device, error) {
	if bus == nil || dma == nil {
		return nil, fmt.Errorf("genet: missing bus or dma: %w",
			snp.ErrInvalidParameter)
	}
	if !cfg.Address.IsUnicast() || cfg.Address.IsZero() {
		return nil, fmt.Errorf("genet: station address %v: %w",
			cfg.Address, snp.ErrInvalidParameter)
	}
	if s == nil {
		s = hw.BusyWait{}
	}
	c := NewController(bus, cfg.Base, dma, s)
	if err := c.AllocRxBuffers(); err != nil {
		return nil, err
	}
	d := &Device{
		cfg: cfg,
		c:   c,
		phy: phy.New(c.PhyBus(), s),
		dma: dma,
	}
	d.mode = snp.Mode{
		State:           snp.Stopped,
		HwAddressSize:   ethernet.AddressBytes,
		MediaHeaderSize: ethernet.HeaderBytes,
		MaxPacketSize:   MaxPacketSize,
		ReceiveFilterMask: snp.ReceiveUnicast | snp.ReceiveMulticast |
			snp.ReceiveBroadcast | snp.ReceivePromiscuous |
			snp.ReceivePromiscuousMulticast,
		CurrentAddress:        cfg.Address,
		BroadcastAddress:      ethernet.BroadcastAddr,
		PermanentAddress:      cfg.Address,
		IfType:                snp.IfTypeEthernet,
		MacAddressChangeable:  true,
		MediaPresentSupported: true,
	}
	d.mode.ReceiveFilterSetting = d.mode.ReceiveFilterMask
	log.Printf("info", "genet: bound at 0x%x address %v %v",
		cfg.Base, cfg.Address, cfg.PhyMode)
	return d, nil
}

// Controller exposes the register level driver for diagnostics.
func (d *Device) Controller() *Controller { return d.c }

// Phy exposes the transceiver state machine for diagnostics.
func (d *Device) Phy() *phy.Phy { return d.phy }

func (d *Device) lock() error {
	if !d.mu.TryLock() {
		return snp.ErrAccessDenied
	}
	return nil
}

// initialized returns nil only in the Initialized state; Started gives
// snp.ErrDeviceError and Stopped snp.ErrNotStarted.
func (d *Device) initialized() error {
	switch d.mode.State {
	case snp.Initialized:
		return nil
	case snp.Started:
		return snp.ErrDeviceError
	}
	return snp.ErrNotStarted
}

func (d *Device) Mode() snp.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.mode
	m.MCastFilter = append([]ethernet.Address(nil), d.mode.MCastFilter...)
	return m
}

func (d *Device) Start() error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if d.closed {
		return snp.ErrDeviceError
	}
	if d.mode.State != snp.Stopped {
		return snp.ErrAlreadyStarted
	}
	d.mode.State = snp.Started
	return nil
}

func (d *Device) Stop() error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	switch d.mode.State {
	case snp.Stopped:
		return snp.ErrNotStarted
	case snp.Initialized:
		return d.shutdown()
	}
	d.mode.State = snp.Stopped
	return nil
}

// Initialize brings up the MAC, transceiver and both rings. Extra buffer
// space requests are accepted and ignored.
func (d *Device) Initialize(extraRx, extraTx uint) (err error) {
	if err = d.lock(); err != nil {
		return
	}
	defer d.mu.Unlock()
	switch d.mode.State {
	case snp.Initialized:
		return nil
	case snp.Stopped:
		return snp.ErrNotStarted
	}
	c := d.c
	c.Reset()
	c.SetPhyMode(d.cfg.PhyMode)
	if err = d.phy.Init(); err != nil {
		log.Print("err", "genet: initialize: ", err)
		return
	}
	c.SetStationAddress(d.mode.CurrentAddress)
	c.SetPromiscuous(d.mode.ReceiveFilterSetting&snp.ReceivePromiscuous != 0)
	d.mode.MediaPresent = d.phy.UpdateConfig() == nil
	c.InitRings()
	if err = c.MapRxRing(); err != nil {
		if uerr := c.UnmapRxRing(); uerr != nil {
			err = multierror.Append(err, uerr)
		}
		log.Print("err", "genet: initialize: ", err)
		return
	}
	c.EnableTxRx()
	d.mode.State = snp.Initialized
	return nil
}

// Reset resets and renegotiates the transceiver only; rings and MAC
// state are untouched.
func (d *Device) Reset(extended bool) (err error) {
	if err = d.lock(); err != nil {
		return
	}
	defer d.mu.Unlock()
	if err = d.initialized(); err != nil {
		return
	}
	if err = d.phy.Reset(); err != nil {
		return
	}
	if err = d.phy.AutoNegotiate(); err != nil {
		return
	}
	d.mode.MediaPresent = false
	return nil
}

func (d *Device) Shutdown() error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if err := d.initialized(); err != nil {
		return err
	}
	return d.shutdown()
}

func (d *Device) shutdown() error {
	d.c.DisableTxRx()
	d.mode.State = snp.Stopped
	d.mode.MediaPresent = false
	return d.c.UnmapRxRing()
}

func (d *Device) ReceiveFilters(enable, disable snp.ReceiveFilter,
	resetMCast bool, mcast []ethernet.Address) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if err := d.initialized(); err != nil {
		return err
	}
	mask := d.mode.ReceiveFilterMask
	if enable&^mask != 0 || disable&^mask != 0 {
		return snp.ErrInvalidParameter
	}
	if !resetMCast && len(mcast) > int(d.mode.MaxMCastFilterCount) {
		return snp.ErrInvalidParameter
	}
	for _, a := range mcast {
		if !a.IsMulticast() {
			return snp.ErrInvalidParameter
		}
	}
	setting := (d.mode.ReceiveFilterSetting | enable) &^ disable
	if setting != d.mode.ReceiveFilterSetting {
		d.mode.ReceiveFilterSetting = setting
		d.c.SetPromiscuous(setting&snp.ReceivePromiscuous != 0)
	}
	if resetMCast {
		d.mode.MCastFilter = nil
	} else if mcast != nil {
		d.mode.MCastFilter = append([]ethernet.Address(nil), mcast...)
	}
	return nil
}

// StationAddress restores the permanent address when reset is set,
// otherwise programs a.
func (d *Device) StationAddress(reset bool, a *ethernet.Address) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if err := d.initialized(); err != nil {
		return err
	}
	var next ethernet.Address
	switch {
	case reset:
		next = d.mode.PermanentAddress
	case a == nil || !a.IsUnicast():
		return snp.ErrInvalidParameter
	default:
		next = *a
	}
	d.c.SetStationAddress(next)
	d.mode.CurrentAddress = next
	return nil
}

// Statistics returns counters collected so far, clearing them after the
// read when reset is set.
func (d *Device) Statistics(reset bool) (snp.Statistics, error) {
	if err := d.lock(); err != nil {
		return snp.Statistics{}, err
	}
	defer d.mu.Unlock()
	if err := d.initialized(); err != nil {
		return snp.Statistics{}, err
	}
	s := d.stats
	if reset {
		d.stats = snp.Statistics{}
	}
	return s, nil
}

func (d *Device) MCastIPToMAC(ip net.IP) (ethernet.Address, error) {
	if err := d.lock(); err != nil {
		return ethernet.Address{}, err
	}
	defer d.mu.Unlock()
	if err := d.initialized(); err != nil {
		return ethernet.Address{}, err
	}
	return snp.MCastIPToMAC(ip)
}

// NvData is unsupported; the controller has no attached non-volatile
// storage.
func (d *Device) NvData(read bool, offset uint, buf []byte) error {
	return snp.ErrUnsupported
}

// rearm retries mapping of receive slots whose earlier remap failed.
func (d *Device) rearm() {
	if d.c.RxUnarmed() == 0 {
		return
	}
	if err := d.c.MapRxRing(); err != nil {
		rx_log.Print("err", "genet: rearm: ", err)
	}
}

// GetStatus polls link state, returns and acknowledges pending interrupts
// and recycles at most one completed transmit buffer.
func (d *Device) GetStatus() (st snp.Status, err error) {
	if err = d.lock(); err != nil {
		return
	}
	defer d.mu.Unlock()
	if d.mode.State != snp.Initialized {
		err = snp.ErrNotStarted
		return
	}
	d.rearm()
	d.mode.MediaPresent = d.phy.UpdateConfig() == nil
	st.MediaPresent = d.mode.MediaPresent
	rx, tx := d.c.Interrupts()
	if rx {
		st.Interrupts |= snp.ReceiveInterrupt
	}
	if tx {
		st.Interrupts |= snp.TransmitInterrupt
	}
	if st.TxBuf = d.c.ReconcileTx(); st.TxBuf != nil {
		d.stats.TxGoodFrames++
	}
	return
}

// Transmit queues buf for transmission. With a non-zero headerSize the
// ethernet header is written into buf first from src, dst and typ; src
// defaults to the current station address. Ownership of buf passes to
// the device until GetStatus returns it.
func (d *Device) Transmit(headerSize uint, buf []byte, src, dst *ethernet.Address,
	typ *ethernet.Type) error {
	if len(buf) < ethernet.HeaderBytes || len(buf) > MaxPacketSize {
		return snp.ErrInvalidParameter
	}
	if headerSize != 0 && (headerSize != ethernet.HeaderBytes ||
		dst == nil || typ == nil) {
		return snp.ErrInvalidParameter
	}
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if d.mode.State != snp.Initialized {
		return snp.ErrNotStarted
	}
	if d.c.TxFull() || !d.phy.LinkUp {
		return snp.ErrNotReady
	}
	if headerSize != 0 {
		h := ethernet.Header{
			Dst:  *dst,
			Src:  d.mode.CurrentAddress,
			Type: *typ,
		}
		if src != nil {
			h.Src = *src
		}
		h.Write(buf)
	}
	addr, m, err := d.dma.Map(hw.ToDevice, buf)
	if err != nil {
		d.stats.TxDroppedFrames++
		return fmt.Errorf("genet: map tx: %v: %w", err, snp.ErrOutOfResources)
	}
	d.c.QueueTx(buf, addr)
	if err = d.dma.Unmap(m); err != nil {
		log.Print("err", "genet: unmap tx: ", err)
	}
	d.stats.TxTotalFrames++
	d.stats.TxTotalBytes += uint64(len(buf))
	return nil
}

// Receive copies the oldest received frame into buf. When buf is too
// small the frame is dropped and the returned Frame carries its length.
func (d *Device) Receive(buf []byte) (f snp.Frame, err error) {
	if buf == nil {
		err = snp.ErrInvalidParameter
		return
	}
	if err = d.lock(); err != nil {
		return
	}
	defer d.mu.Unlock()
	if d.mode.State != snp.Initialized {
		err = snp.ErrNotStarted
		return
	}
	d.rearm()
	c := d.c
	i, n, ok := c.ReconcileRx()
	if !ok {
		err = snp.ErrNotReady
		return
	}
	d.stats.RxTotalFrames++
	if uerr := c.UnmapRxDescriptor(i); uerr != nil {
		rx_log.Print("err", uerr)
	}
	defer d.remap(i)
	rb := c.RxBuffer(i)
	if n < rx_pad+ethernet.HeaderBytes || n > uint(len(rb)) {
		d.stats.RxUndersizeFrames++
		d.stats.RxDroppedFrames++
		err = snp.ErrNotReady
		return
	}
	frame := rb[rx_pad:n]
	f.Len = uint(len(frame))
	if len(buf) < len(frame) {
		d.stats.RxDroppedFrames++
		err = snp.ErrBufferTooSmall
		return
	}
	copy(buf, frame)
	var h ethernet.Header
	h.Read(frame)
	f.HeaderSize = ethernet.HeaderBytes
	f.Src, f.Dst, f.Type = h.Src, h.Dst, h.Type
	d.stats.RxGoodFrames++
	d.stats.RxTotalBytes += uint64(len(frame))
	return
}

// remap returns slot i to hardware. A failure leaves the slot unarmed for
// the next rearm.
func (d *Device) remap(i uint) {
	if err := d.c.MapRxDescriptor(i); err != nil {
		d.stats.RxRemapFailures++
		rx_log.Print("err", "genet: remap: ", err)
	}
}

// Close stops the device and releases its receive buffers.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	var result *multierror.Error
	if d.mode.State == snp.Initialized {
		if err := d.shutdown(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	d.mode.State = snp.Stopped
	if err := d.c.FreeRxBuffers(); err != nil {
		result = multierror.Append(result, err)
	}
	d.closed = true
	return result.ErrorOrNil()
}

var _ snp.Interface = (*Device)(nil)
