// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package tap forwards frames between a network device and a host port
// such as a Linux TAP interface.
package tap

import (
	"context"
	"errors"
	"time"

	"github.com/platinasystems/genet/snp"
	"github.com/platinasystems/log"
)

// Port is the host side of a bridge.
type Port interface {
	// ReadFrame returns 0 when no frame is pending.
	ReadFrame(b []byte) (int, error)
	WriteFrame(b []byte) error
	Close() error
}

type Counters struct {
	ToPort, FromPort uint64
	// Frames lost in either direction.
	Dropped uint64
}

type Bridge struct {
	Dev  snp.Interface
	Port Port
	Counters

	rx   []byte
	free [][]byte
	size int
}

func NewBridge(dev snp.Interface, port Port) *Bridge {
	size := int(dev.Mode().MaxPacketSize)
	return &Bridge{
		Dev:  dev,
		Port: port,
		rx:   make([]byte, size),
		size: size,
	}
}

// txBuf returns a buffer recycled from a completed transmit if there is
// one.
func (b *Bridge) txBuf() []byte {
	if n := len(b.free); n > 0 {
		buf := b.free[n-1]
		b.free = b.free[:n-1]
		return buf[:cap(buf)]
	}
	return make([]byte, b.size)
}

// Poll moves every frame pending on the device to the port and at most one
// frame from the port to the device. It returns the number moved.
func (b *Bridge) Poll() (moved int, err error) {
	st, err := b.Dev.GetStatus()
	if err != nil {
		return
	}
	if st.TxBuf != nil {
		b.free = append(b.free, st.TxBuf)
	}
	for {
		f, rerr := b.Dev.Receive(b.rx)
		if errors.Is(rerr, snp.ErrNotReady) {
			break
		}
		if errors.Is(rerr, snp.ErrBufferTooSmall) {
			b.Dropped++
			continue
		}
		if rerr != nil {
			err = rerr
			return
		}
		if err = b.Port.WriteFrame(b.rx[:f.Len]); err != nil {
			return
		}
		b.ToPort++
		moved++
	}
	buf := b.txBuf()
	n, err := b.Port.ReadFrame(buf)
	if err != nil || n == 0 {
		b.free = append(b.free, buf)
		return
	}
	switch terr := b.Dev.Transmit(0, buf[:n], nil, nil, nil); {
	case terr == nil:
		b.FromPort++
		moved++
	case errors.Is(terr, snp.ErrNotReady), errors.Is(terr, snp.ErrInvalidParameter):
		b.Dropped++
		b.free = append(b.free, buf)
	default:
		b.free = append(b.free, buf)
		err = terr
	}
	return
}

// Run polls until ctx is done, sleeping idle after polls that moved
// nothing.
func (b *Bridge) Run(ctx context.Context, idle time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			log.Printf("info", "bridge: %d to port, %d from port, %d dropped",
				b.ToPort, b.FromPort, b.Dropped)
			return nil
		default:
		}
		moved, err := b.Poll()
		if err != nil {
			return err
		}
		if moved == 0 {
			time.Sleep(idle)
		}
	}
}
