// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hw

import "time"

// Staller busy waits for at least the given duration.
type Staller interface {
	Stall(d time.Duration)
}

// BusyWait spins on the monotonic clock; it never yields to a scheduler
// queue the way time.Sleep does.
type BusyWait struct{}

func (BusyWait) Stall(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}
