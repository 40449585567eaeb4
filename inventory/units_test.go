package inventory_test

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traider/fabric-inventory/inventory"
)

// =============================================================================
// UNIT CONVERSION TESTS
// =============================================================================

func TestToMeters_Meters_Passthrough(t *testing.T) {
	// GIVEN: A quantity already in meters
	// WHEN: Converting to meters
	// THEN: The quantity is unchanged

	got, err := inventory.ToMeters(decimal.NewFromFloat(12.5), inventory.UnitMeter)
	require.NoError(t, err)
	assert.Equal(t, "12.5", got.String())
}

func TestToMeters_Rolls_TimesRollLength(t *testing.T) {
	// GIVEN: A quantity in rolls
	// WHEN: Converting to meters
	// THEN: The quantity is multiplied by the 200m roll length

	got, err := inventory.ToMeters(decimal.NewFromFloat(2.5), inventory.UnitRoll)
	require.NoError(t, err)
	assert.Equal(t, "500", got.String())
}

func TestToMeters_NegativeRolls_PreservesSign(t *testing.T) {
	got, err := inventory.ToMeters(decimal.NewFromInt(-3), inventory.UnitRoll)
	require.NoError(t, err)
	assert.Equal(t, "-600", got.String())
}

func TestToMeters_UnknownUnit_Rejected(t *testing.T) {
	// GIVEN: A unit outside the closed {"m","roll"} set
	// WHEN: Converting
	// THEN: The conversion fails; there is no passthrough

	_, err := inventory.ToMeters(decimal.NewFromInt(1), inventory.Unit("yd"))
	assert.ErrorIs(t, err, inventory.ErrInvalidUnit)

	var unitErr *inventory.InvalidUnitError
	require.ErrorAs(t, err, &unitErr)
	assert.Equal(t, inventory.Unit("yd"), unitErr.Unit)
}

func TestFromMeters_Rolls(t *testing.T) {
	got, err := inventory.FromMeters(decimal.NewFromInt(450), inventory.UnitRoll)
	require.NoError(t, err)
	assert.Equal(t, "2.25", got.String())
}

func TestFromMeters_UnknownUnit_Rejected(t *testing.T) {
	_, err := inventory.FromMeters(decimal.NewFromInt(1), inventory.Unit(""))
	assert.ErrorIs(t, err, inventory.ErrInvalidUnit)
}

func TestUnit_Valid(t *testing.T) {
	assert.True(t, inventory.UnitMeter.Valid())
	assert.True(t, inventory.UnitRoll.Valid())
	assert.False(t, inventory.Unit("rolls").Valid())
	assert.False(t, inventory.Unit("").Valid())
}

// =============================================================================
// QUANTITY PARSING TESTS
// =============================================================================

func TestParseQuantity_Finite(t *testing.T) {
	got, err := inventory.ParseQuantity(0.125)
	require.NoError(t, err)
	assert.Equal(t, "0.125", got.String())
}

func TestParseQuantity_NonFinite_Rejected(t *testing.T) {
	// GIVEN: NaN and infinities, which float64 JSON plumbing can smuggle in
	// WHEN: Parsing
	// THEN: All are rejected as invalid input

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := inventory.ParseQuantity(f)
		assert.ErrorIs(t, err, inventory.ErrInvalidInput, "value %v should be rejected", f)
	}
}
