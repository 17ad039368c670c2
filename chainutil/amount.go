// Copyright (c) 2013, 2014 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainutil

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AmountUnit describes a method of converting an Amount to something
// other than the base unit of Ember. The value of the AmountUnit is the
// exponent component of the decadic multiple to convert from an amount
// in Ember to an amount counted in units.
type AmountUnit int

// These constants define various units used when describing an Ember
// monetary amount.
const (
	AmountMegaEMB  AmountUnit = 6
	AmountKiloEMB  AmountUnit = 3
	AmountEMB      AmountUnit = 0
	AmountMilliEMB AmountUnit = -3
	AmountMicroEMB AmountUnit = -6
	AmountGlim     AmountUnit = -8
)

// String returns the unit as a string. For recognized units, the SI
// prefix is used, or "Glim" for the base unit.
func (u AmountUnit) String() string {
	switch u {
	case AmountMegaEMB:
		return "MEMB"
	case AmountKiloEMB:
		return "kEMB"
	case AmountEMB:
		return "EMB"
	case AmountMilliEMB:
		return "mEMB"
	case AmountMicroEMB:
		return "uEMB"
	case AmountGlim:
		return "Glim"
	default:
		return "1e" + strconv.FormatInt(int64(u), 10) + " EMB"
	}
}

// Amount represents the base Ember monetary unit (colloquially referred
// to as a "glim"). A single Amount is equal to 1e-8 of an Ember, matching
// the SIGNIFICANT_DIGITS fixed-point scale used for every on-wire and
// stored value.
type Amount int64

// round converts a floating point number, which may or may not be
// representable as an integer, to the Amount integer type by rounding to
// the nearest integer.
func round(f float64) Amount {
	if f < 0 {
		return Amount(f - 0.5)
	}
	return Amount(f + 0.5)
}

// NewAmount creates an Amount from a floating point value representing
// some value in Ember. NewAmount errors if f is NaN or +-Infinity.
func NewAmount(f float64) (Amount, error) {
	switch {
	case math.IsNaN(f):
		fallthrough
	case math.IsInf(f, 1):
		fallthrough
	case math.IsInf(f, -1):
		return 0, errors.New("invalid ember amount")
	}
	return round(f * GlimPerEmber), nil
}

// ToUnit converts a monetary amount counted in glim to a floating point
// value representing an amount of Ember in the requested unit.
func (a Amount) ToUnit(u AmountUnit) float64 {
	return float64(a) / math.Pow10(int(u+8))
}

// ToEMB is the equivalent of calling ToUnit with AmountEMB.
func (a Amount) ToEMB() float64 {
	return a.ToUnit(AmountEMB)
}

// Format formats a monetary amount counted in glim as a string for a
// given unit.
func (a Amount) Format(u AmountUnit) string {
	units := " " + u.String()
	formatted := strconv.FormatFloat(a.ToUnit(u), 'f', -int(u+8), 64)

	if u == AmountEMB {
		if strings.Contains(formatted, ".") {
			return fmt.Sprintf("%.8f%s", a.ToUnit(u), units)
		}
	}
	return formatted + units
}

// String is the equivalent of calling Format with AmountEMB.
func (a Amount) String() string {
	return a.Format(AmountEMB)
}

// MulF64 multiplies an Amount by a floating point value. Useful for fee
// calculations expressed as a percentage of an amount.
func (a Amount) MulF64(f float64) Amount {
	return round(float64(a) * f)
}
