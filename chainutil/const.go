// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainutil

const (
	// GlimPerEmberCent is the number of glim in one Ember cent.
	GlimPerEmberCent = 1e6

	// GlimPerEmber is the number of glim in one Ember (1 EMB). Amount
	// fields carry fixed-point values scaled by this factor.
	GlimPerEmber = 1e8

	// MaxGlim is the maximum amount representable in a single Amount. It
	// equals the limit of the mainnet block-subsidy series (50 EMB halved
	// every 210000 blocks); the genesis allocation is not counted in it.
	MaxGlim = 21e6 * GlimPerEmber
)
