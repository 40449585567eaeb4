package inventory

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UNITS - Canonical-unit conversion
// =============================================================================

// Unit is a measurement unit accepted at the API boundary. Storage is always
// in meters; rolls exist only at the edges.
type Unit string

const (
	UnitMeter Unit = "m"
	UnitRoll  Unit = "roll"
)

// RollLength is the site-wide fixed conversion: one roll is 200 meters.
var RollLength = decimal.NewFromInt(200)

// Valid reports whether u is a recognized unit.
func (u Unit) Valid() bool {
	return u == UnitMeter || u == UnitRoll
}

// ToMeters converts a quantity in the given unit to meters. Any unit outside
// the closed set fails with ErrInvalidUnit; there is no passthrough.
func ToMeters(qty decimal.Decimal, unit Unit) (decimal.Decimal, error) {
	switch unit {
	case UnitMeter:
		return qty, nil
	case UnitRoll:
		return qty.Mul(RollLength), nil
	default:
		return decimal.Decimal{}, &InvalidUnitError{Unit: unit}
	}
}

// FromMeters converts a meter quantity into the given display unit.
// Conversions preserve sign and magnitude: negative stock stays negative.
func FromMeters(meters decimal.Decimal, unit Unit) (decimal.Decimal, error) {
	switch unit {
	case UnitMeter:
		return meters, nil
	case UnitRoll:
		return meters.Div(RollLength), nil
	default:
		return decimal.Decimal{}, &InvalidUnitError{Unit: unit}
	}
}

// ParseQuantity converts a JSON number into a decimal quantity, rejecting
// the non-finite values float64 can smuggle in.
func ParseQuantity(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, &InvalidInputError{Field: "qty", Reason: "must be a finite number"}
	}
	return decimal.NewFromFloat(f), nil
}
