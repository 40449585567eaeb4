package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traider/fabric-inventory/inventory"
)

func TestNormalizeFabricCode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "AB_12", "AB_12"},
		{"lowercase", "ab_12", "AB_12"},
		{"dash becomes underscore", "ab-12", "AB_12"},
		{"space becomes underscore", "ab 12", "AB_12"},
		{"mixed separators collapse", "ab- _12", "AB_12"},
		{"leading trailing trimmed", "  -ab_12- ", "AB_12"},
		{"punctuation dropped", "ab.12/x", "AB12X"},
		{"tabs and newlines", "ab\t\n12", "AB_12"},
		{"empty", "", ""},
		{"separators only", "-- __ ", ""},
		{"unicode dropped", "tïssü-01", "TSS_01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, inventory.NormalizeFabricCode(tc.in))
		})
	}
}

func TestNormalizeColorCode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "C101", "C101"},
		{"lowercase", "c101", "C101"},
		{"separators dropped entirely", "c-1 01", "C101"},
		{"punctuation dropped", "c.101!", "C101"},
		{"empty", "", ""},
		{"no alphanumerics", "-- !", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, inventory.NormalizeColorCode(tc.in))
		})
	}
}

func TestVariantRef_Normalize(t *testing.T) {
	ref := inventory.VariantRef{FabricCode: "cot-popl 01", ColorCode: "c-101"}
	norm := ref.Normalize()
	assert.Equal(t, "COT_POPL_01", norm.FabricCode)
	assert.Equal(t, "C101", norm.ColorCode)
	assert.Equal(t, "COT_POPL_01/C101", norm.String())
}
