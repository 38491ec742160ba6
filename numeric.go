// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package freqsynth

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// parseValue validates text as a unit-less number and returns the trimmed
// text, which is what gets sent to the instrument. Empty strings, NaN, Inf,
// unit suffixes and anything else decimal cannot represent are rejected.
func parseValue(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidInput)
	}
	if _, err := decimal.NewFromString(s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidInput, text)
	}
	return s, nil
}

// stepValue returns base + offset*magnitude formatted without exponent or
// binary rounding artifacts.
func stepValue(base float64, offset int, magnitude float64) (string, error) {
	if !isFinite(base) || !isFinite(magnitude) {
		return "", fmt.Errorf("%w: non-finite step operand", ErrInvalidInput)
	}
	delta := decimal.NewFromInt(int64(offset)).Mul(decimal.NewFromFloat(magnitude))
	return decimal.NewFromFloat(base).Add(delta).String(), nil
}

// parseResponse converts a numeric instrument response. Responses holding a
// comma separated list yield their first element.
func parseResponse(resp string) (float64, error) {
	head, _, _ := strings.Cut(resp, ",")
	v, err := strconv.ParseFloat(strings.TrimSpace(head), 64)
	if err != nil {
		return 0, err
	}
	if !isFinite(v) {
		return 0, fmt.Errorf("non-finite response %q", resp)
	}
	return v, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
