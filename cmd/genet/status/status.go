// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package status

import (
	"fmt"
	"os"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/genet/cmd/genet/internal/show"
	"github.com/platinasystems/genet/genet"
	"github.com/platinasystems/genet/internal/board"
)

type Command struct{}

func (Command) String() string { return "status" }

func (Command) Usage() string {
	return "status [-n] " + board.Usage
}

func (Command) Apropos() string {
	return "print controller mode, link, rings and counters"
}

func (Command) Man() string {
	return `
DESCRIPTION
	Bring the controller up and print its mode, transceiver, DMA ring
	cursors and statistics.

OPTIONS
	-n	don't initialize; print the mode of the started device`
}

func (Command) Main(args ...string) error {
	flag, args := flags.New(args, "-n")
	b, args, err := board.New(args)
	if err != nil {
		return err
	}
	defer b.Close()
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	d := b.Dev
	if flag.ByName["-n"] {
		if err = d.Start(); err != nil {
			return err
		}
		show.Mode(os.Stdout, d.Mode())
		return nil
	}
	if err = b.Up(); err != nil {
		return err
	}
	if _, err = d.GetStatus(); err != nil {
		return err
	}
	fmt.Printf("driver %s\n", genet.DriverGUID)
	show.Mode(os.Stdout, d.Mode())
	show.Phy(os.Stdout, d)
	show.Rings(os.Stdout, d.Controller())
	s, err := d.Statistics(false)
	if err != nil {
		return err
	}
	show.Statistics(os.Stdout, s)
	return nil
}
