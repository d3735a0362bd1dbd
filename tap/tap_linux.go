// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package tap

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Tap is a non-blocking Linux TAP interface carrying whole ethernet
// frames without packet information headers.
type Tap struct {
	Name string
	fd   int
}

func Open(name string) (*Tap, error) {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("tap: /dev/net/tun: %w", err)
	}
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tap: %s: %w", name, err)
	}
	ifr.SetUint16(unix.IFF_TAP | unix.IFF_NO_PI)
	if err = unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tap: %s: TUNSETIFF: %w", name, err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tap: %s: %w", name, err)
	}
	return &Tap{Name: ifr.Name(), fd: fd}, nil
}

// ReadFrame returns 0 when no frame is pending.
func (t *Tap) ReadFrame(b []byte) (int, error) {
	n, err := unix.Read(t.fd, b)
	if errors.Is(err, unix.EAGAIN) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("tap: %s: %w", t.Name, err)
	}
	return n, nil
}

func (t *Tap) WriteFrame(b []byte) error {
	if _, err := unix.Write(t.fd, b); err != nil {
		return fmt.Errorf("tap: %s: %w", t.Name, err)
	}
	return nil
}

func (t *Tap) Close() error { return unix.Close(t.fd) }
