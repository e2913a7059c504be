package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimalString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"integer", "12345", 12345},
		{"fraction", "0.25", 0.25},
		{"negative", "-42.5", -42.5},
		{"padded", "  100.5  ", 100.5},
		{"subgraph precision", "1234567.123456789012345678", 1234567.123456789012345678},
		{"beyond fixed-point precision", "1.1234567890123456789999", 1.123456789012345678},
		{"exponent notation", "1.5e3", 1500},
		{"negative exponent dust", "2.5e-3", 0.0025},
		{"zero", "0", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDecimalString(tc.raw)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}

	t.Run("errors", func(t *testing.T) {
		_, err := ParseDecimalString("")
		assert.ErrorIs(t, err, ErrValueEmpty)

		_, err = ParseDecimalString("   ")
		assert.ErrorIs(t, err, ErrValueEmpty)

		_, err = ParseDecimalString("not-a-number")
		assert.ErrorIs(t, err, ErrConversionFailed)

		_, err = ParseDecimalString("1.2.3")
		assert.ErrorIs(t, err, ErrConversionFailed)

		_, err = ParseDecimalString("1e")
		assert.ErrorIs(t, err, ErrConversionFailed)
	})
}

func TestParseNonNegativeDecimal(t *testing.T) {
	got, err := ParseNonNegativeDecimal("10.5")
	require.NoError(t, err)
	assert.InDelta(t, 10.5, got, 1e-9)

	_, err = ParseNonNegativeDecimal("-0.01")
	assert.ErrorIs(t, err, ErrValueNegative)

	_, err = ParseNonNegativeDecimal("")
	assert.ErrorIs(t, err, ErrValueEmpty)
}

func TestTruncateDecimalPlaces(t *testing.T) {
	// A fraction longer than LegacyDec's 18 places must be cut, not
	// rounded, before the fixed-point parse.
	long := "1." + strings.Repeat("9", 30)
	got, err := ParseDecimalString(long)
	require.NoError(t, err)
	assert.InDelta(t, 1.999999999999999999, got, 1e-9)
}

func TestParseFeeTier(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"100", 100},
		{"500", 500},
		{"3000", 3000},
		{"10000", 10000},
		{" 500 ", 500},
		{"0", 0},
	}

	for _, tc := range tests {
		got, err := ParseFeeTier(tc.raw)
		require.NoError(t, err, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, got)
	}

	t.Run("errors", func(t *testing.T) {
		_, err := ParseFeeTier("")
		assert.ErrorIs(t, err, ErrValueEmpty)

		_, err = ParseFeeTier("0.3%")
		assert.ErrorIs(t, err, ErrInvalidFeeTier)

		_, err = ParseFeeTier("-500")
		assert.ErrorIs(t, err, ErrInvalidFeeTier)
	})
}

func TestParseUnixTimestamp(t *testing.T) {
	got, err := ParseUnixTimestamp("1700265600")
	require.NoError(t, err)
	assert.Equal(t, int64(1700265600), got)

	_, err = ParseUnixTimestamp("")
	assert.ErrorIs(t, err, ErrValueEmpty)

	_, err = ParseUnixTimestamp("-1")
	assert.ErrorIs(t, err, ErrValueNegative)

	_, err = ParseUnixTimestamp("soon")
	assert.ErrorIs(t, err, ErrConversionFailed)
}
