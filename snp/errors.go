// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package snp

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotStarted       = errors.New("not started")
	ErrAlreadyStarted   = errors.New("already started")
	ErrDeviceError      = errors.New("device error")
	ErrTimeout          = errors.New("timeout")
	ErrNotFound         = errors.New("not found")
	ErrNotReady         = errors.New("not ready")
	ErrBufferTooSmall   = errors.New("buffer too small")
	ErrOutOfResources   = errors.New("out of resources")
	ErrAccessDenied     = errors.New("access denied")
	ErrUnsupported      = errors.New("unsupported")
)
