// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package publish

import (
	"errors"
	"fmt"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/platinasystems/genet/ethernet"
	"github.com/platinasystems/genet/genet"
	"github.com/platinasystems/genet/internal/sim"
	"github.com/platinasystems/genet/snp"
	"github.com/platinasystems/log"
	"github.com/stretchr/testify/require"
)

func init() { log.Tee(ioutil.Discard) }

// conn records pipelined commands in place of a redis server.
type conn struct {
	sent    []string
	flushes int
	fail    error
	closed  bool
}

func (c *conn) Close() error { c.closed = true; return nil }
func (c *conn) Err() error   { return nil }
func (c *conn) Do(cmd string, args ...interface{}) (interface{}, error) {
	if cmd != "" {
		c.Send(cmd, args...)
	}
	c.flushes++
	return nil, c.fail
}
func (c *conn) Send(cmd string, args ...interface{}) error {
	s := fmt.Sprintln(append([]interface{}{cmd}, args...)...)
	c.sent = append(c.sent, strings.TrimSuffix(s, "\n"))
	return nil
}
func (c *conn) Flush() error                 { return nil }
func (c *conn) Receive() (interface{}, error) { return nil, nil }

var addr = ethernet.Address{0xdc, 0xa6, 0x32, 0x01, 0x02, 0x03}

func device(t *testing.T) (*genet.Device, *sim.Board) {
	b := sim.NewBoard()
	cfg := genet.DefaultConfig()
	cfg.Address = addr
	d, err := genet.New(cfg, b.Genet, b.DMA, b.Clock)
	require.NoError(t, err)
	return d, b
}

func TestFields(t *testing.T) {
	m := snp.Mode{
		State:                snp.Initialized,
		CurrentAddress:       addr,
		PermanentAddress:     addr,
		MediaPresent:         true,
		ReceiveFilterSetting: snp.ReceiveUnicast | snp.ReceiveBroadcast,
		MaxPacketSize:        1536,
	}
	f := Fields("eth0", m, nil)
	require.Equal(t, []Field{
		{"eth0.state", "initialized"},
		{"eth0.address", "dc:a6:32:01:02:03"},
		{"eth0.permanent-address", "dc:a6:32:01:02:03"},
		{"eth0.media-present", "true"},
		{"eth0.receive-filters", (snp.ReceiveUnicast | snp.ReceiveBroadcast).String()},
		{"eth0.max-packet-size", "1536"},
	}, f)
	f = Fields("eth0", m, &snp.Statistics{RxGoodFrames: 7, TxTotalBytes: 1 << 20})
	require.Len(t, f, 16)
	require.Contains(t, f, Field{"eth0.rx.good-frames", "7"})
	require.Contains(t, f, Field{"eth0.tx.total-bytes", "1048576"})
}

func TestPublish(t *testing.T) {
	d, _ := device(t)
	c := new(conn)
	p := New(c, DefaultKey, "eth0")

	n, err := p.Publish(d)
	require.NoError(t, err)
	require.Equal(t, 6, n, "stopped device has no statistics")
	require.Equal(t, 12, len(c.sent))
	require.Equal(t, "HSET platina eth0.state stopped", c.sent[0])
	require.Equal(t, "PUBLISH platina eth0.state: stopped", c.sent[1])
	require.Equal(t, 1, c.flushes)

	n, err = p.Publish(d)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, 1, c.flushes, "nothing to flush")

	require.NoError(t, d.Start())
	require.NoError(t, d.Initialize(0, 0))
	c.sent = nil
	n, err = p.Publish(d)
	require.NoError(t, err)
	// state, media and ten counters
	require.Equal(t, 12, n)
	require.Contains(t, c.sent, "HSET platina eth0.state initialized")
	require.Contains(t, c.sent, "HSET platina eth0.media-present true")
	require.Contains(t, c.sent, "HSET platina eth0.rx.total-frames 0")

	require.NoError(t, p.Close())
	require.True(t, c.closed)
}

func TestPublishFlushError(t *testing.T) {
	d, _ := device(t)
	c := &conn{fail: errors.New("broken pipe")}
	p := New(c, DefaultKey, "eth0")
	_, err := p.Publish(d)
	require.Error(t, err)
	c.fail = nil
	c.sent = nil
	n, err := p.Publish(d)
	require.NoError(t, err)
	require.Equal(t, 6, n, "everything resent after a failed flush")
}
