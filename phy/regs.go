// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

// Clause 22 register numbers.
const (
	BMCR   = 0x00
	BMSR   = 0x01
	PHYID1 = 0x02
	PHYID2 = 0x03
	ANAR   = 0x04
	ANLPAR = 0x05
	GBCR   = 0x09
	GBSR   = 0x0a
)

const (
	BMCR_RESET      = 1 << 15
	BMCR_ANE        = 1 << 12
	BMCR_RESTART_AN = 1 << 9

	BMSR_ANEG_COMPLETE = 1 << 5
	BMSR_LINK_STATUS   = 1 << 2

	ANAR_100BASETX_FDX = 1 << 8
	ANAR_100BASETX     = 1 << 7
	ANAR_10BASET_FDX   = 1 << 6
	ANAR_10BASET       = 1 << 5

	// GBSR reports the partner's abilities two bits above these.
	GBCR_1000BASET_FDX = 1 << 9
	GBCR_1000BASET     = 1 << 8
)

// MaxAddr is one past the largest MDIO bus address.
const MaxAddr = 32
