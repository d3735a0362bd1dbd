// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package publish

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/platinasystems/genet/internal/board"
	"github.com/platinasystems/genet/publish"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
)

const DefaultRedis = "/run/goes/socks/redisd"

type Command struct{}

func (Command) String() string { return "publish" }

func (Command) Usage() string {
	return "publish [-redis ADDR] [-key KEY] [-prefix PREFIX] [-i SECONDS] " +
		board.Usage
}

func (Command) Apropos() string {
	return "mirror device state into a redis hash"
}

func (Command) Man() string {
	return `
DESCRIPTION
	Bring the controller up then, every interval until interrupted,
	HSET changed mode and statistics fields in KEY (default platina)
	and PUBLISH each change on the channel of the same name.

OPTIONS
	-redis ADDR
		server address, a unix socket when it begins with '/'
		(default ` + DefaultRedis + `)
	-prefix PREFIX
		field prefix (default eth0)
	-i SECONDS
		publish interval (default 5)`
}

func (Command) Main(args ...string) error {
	parm, args := parms.New(args, "-redis", "-key", "-prefix", "-i")
	for name, def := range map[string]string{
		"-redis":  DefaultRedis,
		"-key":    publish.DefaultKey,
		"-prefix": "eth0",
		"-i":      "5",
	} {
		if len(parm.ByName[name]) == 0 {
			parm.ByName[name] = def
		}
	}
	n, err := strconv.ParseUint(parm.ByName["-i"], 0, 32)
	if err != nil || n == 0 {
		return fmt.Errorf("-i: %q: invalid interval", parm.ByName["-i"])
	}
	interval := time.Duration(n) * time.Second

	b, args, err := board.New(args)
	if err != nil {
		return err
	}
	defer b.Close()
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	p, err := publish.Dial(parm.ByName["-redis"], parm.ByName["-key"],
		parm.ByName["-prefix"])
	if err != nil {
		return err
	}
	defer p.Close()
	if err = b.Up(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err = b.Dev.GetStatus(); err != nil {
			return err
		}
		if _, err = p.Publish(b.Dev); err != nil {
			log.Print("err", "publish: ", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
