// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hw

import (
	"os"
	"testing"
)

func TestPfn(t *testing.T) {
	for _, x := range []struct {
		entry uint64
		pfn   uint64
		err   error
	}{
		{1<<63 | 0x1234, 0x1234, nil},
		{1<<63 | 1<<62 | 0x42, 0x42, nil},
		{0x1234, 0, ErrNotPresent},
		{1 << 63, 0, os.ErrPermission},
	} {
		got, err := pfn(x.entry)
		if err != x.err {
			t.Errorf("pfn(%#x): err %v want %v", x.entry, err, x.err)
		}
		if got != x.pfn {
			t.Errorf("pfn(%#x): got %#x want %#x", x.entry, got, x.pfn)
		}
	}
}

func TestPhysMemAllocate(t *testing.T) {
	p, err := OpenPhysMem()
	if err != nil {
		t.Skip(err)
	}
	defer p.Close()
	b, err := p.Allocate(1536)
	if err != nil {
		t.Skip(err)
	}
	if len(b) != 1536 || cap(b) != os.Getpagesize() {
		t.Errorf("len %d cap %d", len(b), cap(b))
	}
	if _, err = p.Allocate(p.pageSize + 1); err == nil {
		t.Error("oversize allocation succeeded")
	}
	if err = p.Unmap(7); err == nil {
		t.Error("unmap of unknown mapping succeeded")
	}
	if err = p.Free(b); err != nil {
		t.Error(err)
	}
}
