// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/genet/cmd/genet/internal/show"
	"github.com/platinasystems/genet/internal/board"
	"github.com/platinasystems/genet/snp"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
)

type Command struct{}

func (Command) String() string { return "phy" }

func (Command) Usage() string {
	return "phy [-r] [-w SECONDS] " + board.Usage
}

func (Command) Apropos() string {
	return "print or renegotiate the transceiver link"
}

func (Command) Man() string {
	return `
DESCRIPTION
	Print the transceiver identity and negotiated link.

OPTIONS
	-r	reset the transceiver and restart auto-negotiation
	-w SECONDS
		wait up to SECONDS for the link to come up`
}

func (Command) Main(args ...string) error {
	flag, args := flags.New(args, "-r")
	parm, args := parms.New(args, "-w")
	var wait time.Duration
	if s := parm.ByName["-w"]; len(s) > 0 {
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("-w: %w", err)
		}
		wait = time.Duration(n) * time.Second
	}
	b, args, err := board.New(args)
	if err != nil {
		return err
	}
	defer b.Close()
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	d := b.Dev
	if err = b.Up(); err != nil {
		return err
	}
	if flag.ByName["-r"] {
		if err = d.Reset(false); err != nil {
			return err
		}
	}
	if err = waitLink(d.GetStatus, wait); err != nil {
		return err
	}
	show.Phy(os.Stdout, d)
	return nil
}

// waitLink polls with exponential backoff until media is present or wait
// expires.
func waitLink(status func() (snp.Status, error), wait time.Duration) error {
	bo := &backoff.Backoff{
		Min:    10 * time.Millisecond,
		Max:    time.Second,
		Factor: 2,
	}
	deadline := time.Now().Add(wait)
	for {
		st, err := status()
		if err != nil {
			return err
		}
		if st.MediaPresent || !time.Now().Before(deadline) {
			return nil
		}
		d := bo.Duration()
		log.Printf("debug", "phy: no link, retry in %v", d)
		time.Sleep(d)
	}
}
