package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		raw  interface{}
		want string
	}{
		{"dollar prefix", "$30", "30"},
		{"plain decimal", "30.00", "30"},
		{"quetzal prefix", "Q30", "30"},
		{"comma separator", "30,00", "30"},
		{"currency suffix", "25 USD", "25"},
		{"json number", float64(30), "30"},
		{"fractional json number", 29.99, "29.99"},
		{"empty", "", "0"},
		{"nil", nil, "0"},
		{"garbage", "abc", "0"},
		{"multiple dots", "1.2.3", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.raw)
			assert.True(t, got.Equal(mustDecimal(t, tc.want)),
				"Normalize(%v) = %s, want %s", tc.raw, got, tc.want)
		})
	}
}

func TestNormalizeNeverNegativeFromSymbols(t *testing.T) {
	// The minus sign is stripped with every other non-digit character.
	assert.True(t, Normalize("-5").Equal(mustDecimal(t, "5")))
}

func TestNormalizeQty(t *testing.T) {
	assert.Equal(t, 3, NormalizeQty("3", 1))
	assert.Equal(t, 3, NormalizeQty(float64(3), 1))
	assert.Equal(t, 3, NormalizeQty(3, 1))
	assert.Equal(t, 1, NormalizeQty("x", 1))
	assert.Equal(t, 1, NormalizeQty(nil, 1))
	assert.Equal(t, 2, NormalizeQty("", 2))
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}
