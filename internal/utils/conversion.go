/*
This file contains utility functions for parsing the values subgraphs emit
as strings: BigDecimal USD amounts, basis-point fee tiers, and unix
timestamps. USD amounts go through fixed-point decimals rather than direct
float parsing so on-chain quantities are never round-tripped through binary
floating point.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrValueEmpty       = errors.New("value is empty")
	ErrValueNegative    = errors.New("value is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
	ErrInvalidFeeTier   = errors.New("fee tier is invalid")
)

// maxDecimalPlaces is the fractional precision LegacyDec carries. Subgraph
// BigDecimal strings frequently exceed it and are truncated before parsing.
const maxDecimalPlaces = 18

// ParseDecimalString converts a subgraph decimal string to float64 through a
// fixed-point decimal. The result is display-grade (APRs, scores); callers
// that need exact settlement math should keep the LegacyDec instead.
func ParseDecimalString(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ErrValueEmpty
	}

	// Exponent notation shows up on dust values; normalize it to a plain
	// literal before the fixed-point parse.
	if strings.ContainsAny(trimmed, "eE") {
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
		}
		trimmed = strconv.FormatFloat(f, 'f', -1, 64)
	}

	dec, err := sdkmath.LegacyNewDecFromStr(truncateDecimalPlaces(trimmed, maxDecimalPlaces))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	result, err := dec.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: parsed %q to %f", ErrNotFinite, raw, result)
	}

	return result, nil
}

// ParseNonNegativeDecimal is ParseDecimalString plus a sign check. Snapshot
// fee/volume/TVL figures must never be negative.
func ParseNonNegativeDecimal(raw string) (float64, error) {
	value, err := ParseDecimalString(raw)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: %q", ErrValueNegative, raw)
	}
	return value, nil
}

// truncateDecimalPlaces drops fractional digits beyond the given count
// without rounding. Truncation keeps the parse deterministic.
func truncateDecimalPlaces(s string, places int) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	frac := s[dot+1:]
	if len(frac) <= places {
		return s
	}
	return s[:dot+1+places]
}

// ParseFeeTier converts the subgraph's string-encoded basis-point fee tier
// to an int.
func ParseFeeTier(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ErrValueEmpty
	}

	tier, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidFeeTier, err)
	}
	if tier < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidFeeTier, tier)
	}

	return tier, nil
}

// ParseUnixTimestamp converts a string unix-seconds timestamp, as found in
// createdAtTimestamp.
func ParseUnixTimestamp(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ErrValueEmpty
	}

	ts, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if ts < 0 {
		return 0, fmt.Errorf("%w: %d", ErrValueNegative, ts)
	}

	return ts, nil
}
