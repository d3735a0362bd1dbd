// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package board binds a genet.Device to either the memory mapped
// controller of the running machine or a simulated board.
package board

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/genet/ethernet"
	"github.com/platinasystems/genet/genet"
	"github.com/platinasystems/genet/hw"
	"github.com/platinasystems/genet/internal/sim"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
)

// Flattened device tree of the running kernel.
const SysFDT = "/sys/firmware/fdt"

// Usage describes the options parsed by New.
const Usage = "[-sim] [-dtb FILE] [-base ADDR] [-addr MAC]"

type Board struct {
	Dev *genet.Device
	// Sim is nil on hardware.
	Sim *sim.Board

	closers []io.Closer
}

// New parses board options from args and binds a device, returning the
// remaining arguments.
func New(args []string) (*Board, []string, error) {
	flag, args := flags.New(args, "-sim")
	parm, args := parms.New(args, "-dtb", "-base", "-addr")

	cfg := genet.DefaultConfig()
	if !flag.ByName["-sim"] {
		fn := parm.ByName["-dtb"]
		if len(fn) == 0 {
			if _, err := os.Stat(SysFDT); err == nil {
				fn = SysFDT
			}
		}
		if len(fn) > 0 {
			b, err := ioutil.ReadFile(fn)
			if err != nil {
				return nil, args, err
			}
			if err = cfg.ParseFDT(b); err != nil {
				return nil, args, fmt.Errorf("%s: %w", fn, err)
			}
		}
	}
	if s := parm.ByName["-base"]; len(s) > 0 {
		base, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, args, fmt.Errorf("-base: %w", err)
		}
		cfg.Base = uintptr(base)
	}
	if s := parm.ByName["-addr"]; len(s) > 0 {
		a, err := ethernet.ParseAddress(s)
		if err != nil {
			return nil, args, fmt.Errorf("-addr: %w", err)
		}
		cfg.Address = a
	}
	if cfg.Address.IsZero() {
		cfg.Address = ethernet.RandomAddress()
		log.Print("warn", "genet: no station address, using ",
			cfg.Address)
	}

	b := new(Board)
	var err error
	if flag.ByName["-sim"] {
		b.Sim = sim.NewBoard()
		b.Dev, err = genet.New(cfg, b.Sim.Genet, b.Sim.DMA, b.Sim.Clock)
		return b, args, err
	}
	mem, err := hw.OpenDevMem(cfg.Base, genet.RegsSize)
	if err != nil {
		return nil, args, err
	}
	b.closers = append(b.closers, mem)
	dma, err := hw.OpenPhysMem()
	if err != nil {
		b.Close()
		return nil, args, err
	}
	b.closers = append(b.closers, dma)
	if b.Dev, err = genet.New(cfg, mem, dma, hw.BusyWait{}); err != nil {
		b.Close()
		return nil, args, err
	}
	return b, args, nil
}

// Up starts and initializes the device.
func (b *Board) Up() error {
	if err := b.Dev.Start(); err != nil {
		return err
	}
	return b.Dev.Initialize(0, 0)
}

// Close releases the device then the mappings it was bound to.
func (b *Board) Close() error {
	var result *multierror.Error
	if b.Dev != nil {
		if err := b.Dev.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
