// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package loopback

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/platinasystems/genet/ethernet"
	"github.com/platinasystems/genet/genet"
	"github.com/platinasystems/genet/internal/board"
	"github.com/platinasystems/genet/snp"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
)

type Command struct{}

func (Command) String() string { return "loopback" }

func (Command) Usage() string {
	return "loopback [-n COUNT] [-size BYTES] " + board.Usage
}

func (Command) Apropos() string {
	return "send frames through MAC local loopback and verify them"
}

func (Command) Man() string {
	return `
DESCRIPTION
	Enable MAC local loopback, transmit COUNT frames of BYTES each
	(default 16 of 64) and compare what comes back.`
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-n", "-size")
	n, size := 16, 64
	for _, x := range []struct {
		name string
		v    *int
	}{
		{"-n", &n},
		{"-size", &size},
	} {
		if s := parm.ByName[x.name]; len(s) > 0 {
			u, err := strconv.ParseUint(s, 0, 32)
			if err != nil {
				return fmt.Errorf("%s: %w", x.name, err)
			}
			*x.v = int(u)
		}
	}
	b, args, err := board.New(args)
	if err != nil {
		return err
	}
	defer b.Close()
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	if err = b.Up(); err != nil {
		return err
	}
	r, err := Run(b.Dev, n, size)
	fmt.Println(r)
	return err
}

type Result struct {
	Sent, Received, Mismatched int
	Elapsed                    time.Duration
}

func (r Result) String() string {
	return fmt.Sprintf("%d sent, %d received, %d mismatched in %v",
		r.Sent, r.Received, r.Mismatched, r.Elapsed)
}

// Poll budget for each transmit and receive.
const polls = 1000

var ErrLost = errors.New("loopback: frame lost")

// Run sends n frames of size bytes through local loopback of an
// initialized device.
func Run(d *genet.Device, n, size int) (r Result, err error) {
	if size < ethernet.HeaderBytes || size > genet.MaxPacketSize {
		err = fmt.Errorf("loopback: %d byte frame: %w", size,
			snp.ErrInvalidParameter)
		return
	}
	c := d.Controller()
	c.SetLoopback(true)
	defer c.SetLoopback(false)

	dst := d.Mode().CurrentAddress
	typ := ethernet.TypeExperimental
	rx := make([]byte, genet.MaxPacketSize)
	start := time.Now()
	defer func() { r.Elapsed = time.Since(start) }()
	for i := 0; i < n; i++ {
		tx := make([]byte, size)
		for j := ethernet.HeaderBytes; j < size; j++ {
			tx[j] = byte(i + j)
		}
		if err = retry(d, func() error {
			return d.Transmit(ethernet.HeaderBytes, tx, nil, &dst, &typ)
		}); err != nil {
			return
		}
		r.Sent++
		var f snp.Frame
		if err = retry(d, func() (rerr error) {
			f, rerr = d.Receive(rx)
			return
		}); err != nil {
			if errors.Is(err, snp.ErrNotReady) {
				err = fmt.Errorf("%d: %w", i, ErrLost)
			}
			return
		}
		r.Received++
		if !bytes.Equal(rx[:f.Len], tx) {
			log.Printf("err", "loopback: frame %d mismatch", i)
			r.Mismatched++
		}
		if _, err = d.GetStatus(); err != nil {
			return
		}
	}
	// reclaim every transmit buffer
	for k := 0; k < polls; k++ {
		if c.TxQueued() == 0 {
			break
		}
		if _, err = d.GetStatus(); err != nil {
			return
		}
	}
	return
}

// retry calls f while it reports not ready, polling status in between.
func retry(d *genet.Device, f func() error) (err error) {
	for k := 0; k < polls; k++ {
		if err = f(); !errors.Is(err, snp.ErrNotReady) {
			return
		}
		if _, serr := d.GetStatus(); serr != nil {
			return serr
		}
		time.Sleep(10 * time.Microsecond)
	}
	return
}
