// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package bridge

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platinasystems/genet/internal/board"
	"github.com/platinasystems/genet/tap"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
)

type Command struct{}

func (Command) String() string { return "bridge" }

func (Command) Usage() string {
	return "bridge [-tap NAME] " + board.Usage
}

func (Command) Apropos() string {
	return "forward frames between the controller and a TAP interface"
}

func (Command) Man() string {
	return `
DESCRIPTION
	Create TAP interface NAME (default genet0) and forward frames
	between it and the controller until interrupted.`
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-tap")
	name := parm.ByName["-tap"]
	if len(name) == 0 {
		name = "genet0"
	}
	b, args, err := board.New(args)
	if err != nil {
		return err
	}
	defer b.Close()
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	t, err := tap.Open(name)
	if err != nil {
		return err
	}
	defer t.Close()
	if err = b.Up(); err != nil {
		return err
	}
	log.Print("info", "bridge: ", b.Dev.Mode().CurrentAddress, " <-> ",
		t.Name)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()
	return tap.NewBridge(b.Dev, t).Run(ctx, time.Millisecond)
}
