// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package genet

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/platinasystems/fdt"
	"github.com/platinasystems/genet/ethernet"
	"github.com/platinasystems/genet/snp"
)

type PhyMode int

const (
	PhyModeMII PhyMode = iota
	PhyModeRGMII
	// RGMII with receive clock delay provided by the transceiver.
	PhyModeRGMII_RXID
)

var phyModeNames = [...]string{
	PhyModeMII:        "mii",
	PhyModeRGMII:      "rgmii",
	PhyModeRGMII_RXID: "rgmii-rxid",
}

func (m PhyMode) String() string {
	if int(m) < len(phyModeNames) {
		return phyModeNames[m]
	}
	return fmt.Sprintf("phy-mode(%d)", int(m))
}

func ParsePhyMode(s string) (PhyMode, error) {
	for m, name := range phyModeNames {
		if s == name {
			return PhyMode(m), nil
		}
	}
	return 0, fmt.Errorf("%s: unsupported phy mode: %w", s, snp.ErrUnsupported)
}

// Config is the fixed platform description of a controller.
type Config struct {
	Base    uintptr
	Address ethernet.Address
	PhyMode PhyMode
}

// BCM2711 register base as seen from the ARM cores.
const DefaultBase = 0xfd580000

// DefaultConfig returns the BCM2711 configuration. The station address is
// left for platform firmware to supply.
func DefaultConfig() Config {
	return Config{
		Base:    DefaultBase,
		PhyMode: PhyModeRGMII_RXID,
	}
}

// Compatible device tree strings of supported controllers.
var Compatible = []string{
	"brcm,bcm2711-genet-v5",
	"brcm,genet-v5",
}

// ParseFDT fills c from a compatible controller in a flattened device
// tree blob.
func (c *Config) ParseFDT(b []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("genet: device tree: %v: %w", r,
				snp.ErrInvalidParameter)
		}
	}()
	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	if err = t.Parse(b); err != nil {
		return fmt.Errorf("genet: device tree: %v: %w", err,
			snp.ErrInvalidParameter)
	}
	if t.RootNode == nil {
		return fmt.Errorf("genet: device tree: no root: %w",
			snp.ErrInvalidParameter)
	}
	return c.FromNode(t.RootNode)
}

// FromNode searches the tree below root for a compatible controller.
func (c *Config) FromNode(root *fdt.Node) error {
	path := find(nil, root)
	if path == nil {
		return fmt.Errorf("genet: device tree: %w", snp.ErrNotFound)
	}
	n := path[len(path)-1]
	if v, ok := n.Properties["reg"]; ok {
		base, err := translate(path, v)
		if err != nil {
			return err
		}
		c.Base = uintptr(base)
	}
	if v, ok := n.Properties["local-mac-address"]; ok {
		if len(v) != ethernet.AddressBytes {
			return fmt.Errorf("genet: local-mac-address: %d bytes: %w",
				len(v), snp.ErrInvalidParameter)
		}
		copy(c.Address[:], v)
	}
	if v, ok := n.Properties["phy-mode"]; ok {
		m, err := ParsePhyMode(cstring(v))
		if err != nil {
			return err
		}
		c.PhyMode = m
	}
	return nil
}

func cstring(b []byte) string { return strings.TrimRight(string(b), "\x00") }

func compatible(n *fdt.Node) bool {
	for _, s := range strings.Split(cstring(n.Properties["compatible"]), "\x00") {
		for _, want := range Compatible {
			if s == want {
				return true
			}
		}
	}
	return false
}

// find returns the path from root to the first compatible node.
func find(path []*fdt.Node, n *fdt.Node) []*fdt.Node {
	path = append(path, n)
	if compatible(n) {
		return path
	}
	for _, child := range n.Children {
		if p := find(path, child); p != nil {
			return p
		}
	}
	return nil
}

func cells(n *fdt.Node, name string, def int) int {
	if v, ok := n.Properties[name]; ok && len(v) == 4 {
		return int(binary.BigEndian.Uint32(v))
	}
	return def
}

func readCells(b []byte, n int) (v uint64, rest []byte) {
	for i := 0; i < n; i++ {
		v = v<<32 | uint64(binary.BigEndian.Uint32(b[4*i:]))
	}
	return v, b[4*n:]
}

// translate maps the first reg entry of the last node in path through
// the ranges of every ancestor bus.
func translate(path []*fdt.Node, reg []byte) (uint64, error) {
	ac := 2
	if len(path) > 1 {
		ac = cells(path[len(path)-2], "#address-cells", 2)
	}
	if len(reg) < 4*ac {
		return 0, fmt.Errorf("genet: reg: %d bytes: %w", len(reg),
			snp.ErrInvalidParameter)
	}
	addr, _ := readCells(reg, ac)
	for i := len(path) - 2; i > 0; i-- {
		bus, parent := path[i], path[i-1]
		ranges, ok := bus.Properties["ranges"]
		if !ok || len(ranges) == 0 {
			continue
		}
		cac := cells(bus, "#address-cells", 2)
		csc := cells(bus, "#size-cells", 1)
		pac := cells(parent, "#address-cells", 2)
		entry := 4 * (cac + pac + csc)
		found := false
		for ; len(ranges) >= entry; ranges = ranges[entry:] {
			child, r := readCells(ranges, cac)
			paddr, r := readCells(r, pac)
			size, _ := readCells(r, csc)
			if addr >= child && addr-child < size {
				addr = paddr + (addr - child)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("genet: reg 0x%x outside %s ranges: %w",
				addr, bus.Name, snp.ErrInvalidParameter)
		}
	}
	return addr, nil
}
