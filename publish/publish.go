// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package publish mirrors network device mode and counters into a redis
// hash and announces changed fields on the channel of the same name.
package publish

import (
	"fmt"
	"strconv"

	"github.com/garyburd/redigo/redis"
	"github.com/platinasystems/genet/snp"
)

// DefaultKey is the hash used by goes machines for platform state.
const DefaultKey = "platina"

type Field struct {
	Name, Value string
}

// Fields flattens a device's mode, and statistics when present, into
// hash fields prefixed with prefix.
func Fields(prefix string, m snp.Mode, s *snp.Statistics) []Field {
	f := []Field{
		{"state", m.State.String()},
		{"address", m.CurrentAddress.String()},
		{"permanent-address", m.PermanentAddress.String()},
		{"media-present", strconv.FormatBool(m.MediaPresent)},
		{"receive-filters", m.ReceiveFilterSetting.String()},
		{"max-packet-size", strconv.FormatUint(uint64(m.MaxPacketSize), 10)},
	}
	if s != nil {
		for _, x := range []struct {
			name string
			v    uint64
		}{
			{"rx.total-frames", s.RxTotalFrames},
			{"rx.good-frames", s.RxGoodFrames},
			{"rx.undersize-frames", s.RxUndersizeFrames},
			{"rx.dropped-frames", s.RxDroppedFrames},
			{"rx.total-bytes", s.RxTotalBytes},
			{"rx.remap-failures", s.RxRemapFailures},
			{"tx.total-frames", s.TxTotalFrames},
			{"tx.good-frames", s.TxGoodFrames},
			{"tx.dropped-frames", s.TxDroppedFrames},
			{"tx.total-bytes", s.TxTotalBytes},
		} {
			f = append(f, Field{x.name, strconv.FormatUint(x.v, 10)})
		}
	}
	for i := range f {
		f[i].Name = prefix + "." + f[i].Name
	}
	return f
}

type Publisher struct {
	Key    string
	Prefix string

	conn redis.Conn
	last map[string]string
}

func New(conn redis.Conn, key, prefix string) *Publisher {
	return &Publisher{
		Key:    key,
		Prefix: prefix,
		conn:   conn,
		last:   make(map[string]string),
	}
}

// Dial connects to the redis server at addr, a unix socket path when it
// starts with '/'.
func Dial(addr, key, prefix string) (*Publisher, error) {
	network := "tcp"
	if len(addr) > 0 && addr[0] == '/' {
		network = "unix"
	}
	conn, err := redis.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	return New(conn, key, prefix), nil
}

// Publish sets every field that changed since the last call and returns
// how many did.
func (p *Publisher) Publish(dev snp.Interface) (n int, err error) {
	m := dev.Mode()
	var sp *snp.Statistics
	if m.State == snp.Initialized {
		if s, serr := dev.Statistics(false); serr == nil {
			sp = &s
		}
	}
	for _, f := range Fields(p.Prefix, m, sp) {
		if v, ok := p.last[f.Name]; ok && v == f.Value {
			continue
		}
		if err = p.conn.Send("HSET", p.Key, f.Name, f.Value); err != nil {
			return
		}
		if err = p.conn.Send("PUBLISH", p.Key, f.Name+": "+f.Value); err != nil {
			return
		}
		p.last[f.Name] = f.Value
		n++
	}
	if n > 0 {
		if _, err = p.conn.Do(""); err != nil {
			// unknown which were applied
			p.last = make(map[string]string)
		}
	}
	return
}

func (p *Publisher) Close() error { return p.conn.Close() }
