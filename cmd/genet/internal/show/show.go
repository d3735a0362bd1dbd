// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package show renders device state as tables.
package show

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/platinasystems/genet/genet"
	"github.com/platinasystems/genet/snp"
)

// Writer returns a table mirrored to w; box drawing is used only when w
// is a terminal.
func Writer(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		t.SetStyle(table.StyleLight)
	}
	return t
}

func Mode(w io.Writer, m snp.Mode) {
	t := Writer(w)
	t.SetTitle("Mode")
	t.AppendRows([]table.Row{
		{"state", m.State},
		{"address", m.CurrentAddress},
		{"permanent address", m.PermanentAddress},
		{"media present", m.MediaPresent},
		{"receive filters", m.ReceiveFilterSetting},
		{"max packet size", m.MaxPacketSize},
	})
	for i, a := range m.MCastFilter {
		t.AppendRow(table.Row{fmt.Sprint("multicast ", i), a})
	}
	t.Render()
}

func bytes(n uint64) string {
	return fmt.Sprintf("%d (%s)", n, humanize.IBytes(n))
}

func Statistics(w io.Writer, s snp.Statistics) {
	t := Writer(w)
	t.SetTitle("Statistics")
	t.AppendHeader(table.Row{"", "rx", "tx"})
	t.AppendRows([]table.Row{
		{"total frames", s.RxTotalFrames, s.TxTotalFrames},
		{"good frames", s.RxGoodFrames, s.TxGoodFrames},
		{"dropped frames", s.RxDroppedFrames, s.TxDroppedFrames},
		{"undersize frames", s.RxUndersizeFrames, ""},
		{"remap failures", s.RxRemapFailures, ""},
		{"total bytes", bytes(s.RxTotalBytes), bytes(s.TxTotalBytes)},
	})
	t.Render()
}

func Phy(w io.Writer, d *genet.Device) {
	p := d.Phy()
	t := Writer(w)
	t.SetTitle("PHY")
	t.AppendRows([]table.Row{
		{"address", p.Addr},
		{"id", fmt.Sprintf("%#08x", p.ID)},
		{"state", p.State},
		{"link", p.LinkUp},
	})
	if p.LinkUp {
		t.AppendRows([]table.Row{
			{"speed", p.Speed},
			{"duplex", p.Duplex},
		})
	}
	t.Render()
}

func Rings(w io.Writer, c *genet.Controller) {
	tc, tp, rc := c.RingIndices()
	major, minor := c.Revision()
	t := Writer(w)
	t.SetTitle("Rings (GENET v%d.%d)", major, minor)
	t.AppendHeader(table.Row{"", "consumer", "producer", "queued"})
	t.AppendRows([]table.Row{
		{"tx", tc, tp, c.TxQueued()},
		{"rx", rc, "", fmt.Sprint(c.RxUnarmed(), " unarmed")},
	})
	t.Render()
}
