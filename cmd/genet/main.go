// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Genet runs diagnostics against a BCM GENET ethernet controller, either
// memory mapped on the running machine or simulated with -sim.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/platinasystems/genet/cmd/genet/bridge"
	"github.com/platinasystems/genet/cmd/genet/loopback"
	"github.com/platinasystems/genet/cmd/genet/phy"
	"github.com/platinasystems/genet/cmd/genet/probe"
	"github.com/platinasystems/genet/cmd/genet/publish"
	"github.com/platinasystems/genet/cmd/genet/status"
)

type Command interface {
	String() string
	Usage() string
	Apropos() string
	Man() string
	Main(args ...string) error
}

type ByName map[string]Command

func (m ByName) Plot(cmds ...Command) {
	for _, c := range cmds {
		m[c.String()] = c
	}
}

func (m ByName) apropos() {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-10s %s\n", name, m[name].Apropos())
	}
}

func (m ByName) Main(args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("COMMAND: missing; try help")
	}
	switch args[0] {
	case "help", "-h", "-help", "--help":
		if len(args) == 1 {
			fmt.Println("usage: genet COMMAND [ARGS]...")
			m.apropos()
			return nil
		}
		c, ok := m[args[1]]
		if !ok {
			return fmt.Errorf("%s: command not found", args[1])
		}
		fmt.Printf("usage: genet %s\n%s\n", c.Usage(), c.Man())
		return nil
	case "apropos":
		m.apropos()
		return nil
	}
	c, ok := m[args[0]]
	if !ok {
		return fmt.Errorf("%s: command not found", args[0])
	}
	return c.Main(args[1:]...)
}

func main() {
	g := make(ByName)
	g.Plot(
		bridge.Command{},
		loopback.Command{},
		phy.Command{},
		probe.Command{},
		publish.Command{},
		status.Command{},
	)
	if err := g.Main(os.Args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, "genet:", err)
		os.Exit(1)
	}
}
