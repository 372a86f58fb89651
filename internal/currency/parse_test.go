package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"$100.00", 100.00},
		{"189,00", 189.00},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"₺2.499,90", 2499.90},
		{"£ 79.99", 79.99},
		{"15,50 TL", 15.50},
		{"€89.95", 89.95},
		{"2,99", 2.99},
		{"1.99", 1.99},
		{"42", 42.0},
		{" 7 ", 7.0},
		{"0.85", 0.85},
	}

	for _, tc := range cases {
		got, err := ParsePrice(tc.raw)
		assert.NoError(t, err, "ParsePrice(%q)", tc.raw)
		assert.InDelta(t, tc.want, got, 0.0001, "ParsePrice(%q)", tc.raw)
	}
}

func TestParsePrice_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "$", "abc", "1,234,567", "12.34.56", "TL"} {
		_, err := ParsePrice(raw)
		assert.Error(t, err, "ParsePrice(%q) should fail", raw)
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 3420.0, Round2(3420.0))
	assert.Equal(t, 7087.5, Round2(7087.5))
	assert.Equal(t, 3.0, Round2(2.999))
	assert.Equal(t, 1.0, Round2(1.004))
	assert.Equal(t, 1.01, Round2(1.006))
	assert.Equal(t, -2.5, Round2(-2.499))
}
