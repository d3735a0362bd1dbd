// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package probe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/platinasystems/genet/internal/board"
	"github.com/platinasystems/genet/probe"
	"github.com/platinasystems/parms"
)

type Command struct{}

func (Command) String() string { return "probe" }

func (Command) Usage() string {
	return "probe [-attempts N] [-t SECONDS] " + board.Usage
}

func (Command) Apropos() string {
	return "broadcast a DHCP discover and print the first offer"
}

func (Command) Man() string {
	return `
DESCRIPTION
	Check end to end connectivity by broadcasting DHCPDISCOVER from the
	station address and printing the first matching DHCPOFFER. No lease
	is requested and no address is configured.

OPTIONS
	-attempts N
		discover attempts, each with a longer wait (default 4)
	-t SECONDS
		overall time limit (default 30)`
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-attempts", "-t")
	timeout := 30 * time.Second
	if s := parm.ByName["-t"]; len(s) > 0 {
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("-t: %w", err)
		}
		timeout = time.Duration(n) * time.Second
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
	p := probe.New(b.Dev)
	if s := parm.ByName["-attempts"]; len(s) > 0 {
		if p.Attempts, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("-attempts: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	o, err := p.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(o)
	return nil
}
