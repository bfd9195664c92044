package ledger

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawFromDecimalString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals uint8
		want     string
	}{
		{"integer", "100", 6, "100000000"},
		{"fraction padded", "1.5", 9, "1500000000"},
		{"fraction exact", "0.000001", 6, "1"},
		{"fraction truncated", "1.23456789", 6, "1234567"},
		{"zero", "0", 9, "0"},
		{"no integer part", ".5", 6, "500000"},
		{"zero decimals", "42.9", 0, "42"},
		{"large value keeps digits", "92233720368547758.08", 9, "92233720368547758080000000"},
		{"scientific notation", "1.5e2", 6, "150000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := RawFromDecimalString(tt.input, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, raw.String())
		})
	}
}

func TestRawFromDecimalStringRejectsBadInput(t *testing.T) {
	for _, input := range []string{"", "-1", "abc", "1.2.3"} {
		_, err := RawFromDecimalString(input, 6)
		assert.Error(t, err, "input %q", input)
	}
}

func TestRawDecimalRoundTrip(t *testing.T) {
	// decimalToRaw(rawToDecimal(x, d), d) == x must hold for any
	// non-negative integer and decimal count up to 18.
	values := []int64{0, 1, 7, 999, 123456789, 1<<62 + 12345}
	for d := uint8(0); d <= 18; d++ {
		for _, v := range values {
			x := big.NewInt(v)
			human := DecimalFromRaw(x, d)
			raw, err := RawFromDecimalString(human.String(), d)
			require.NoError(t, err)
			assert.Zerof(t, x.Cmp(raw), "round trip failed for x=%d d=%d (got %s)", v, d, raw)
		}
	}
}

func TestRawDecimalRoundTripHugeValue(t *testing.T) {
	x, ok := new(big.Int).SetString(fmt.Sprintf("9%s", "000000000000000000000000001"), 10)
	require.True(t, ok)

	human := DecimalFromRaw(x, 18)
	raw, err := RawFromDecimalString(human.String(), 18)
	require.NoError(t, err)
	assert.Zero(t, x.Cmp(raw))
}
