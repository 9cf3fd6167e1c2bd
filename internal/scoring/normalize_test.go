// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogScaleBoundaries(t *testing.T) {
	tests := []struct {
		name            string
		value, min, max float64
		want            float64
	}{
		{"zero value", 0, 0, 100, 0},
		{"negative value", -5, 0, 100, 0},
		{"value at min", 1, 1, 100, 0},
		{"value at max", 100, 1, 100, 1},
		{"degenerate population", 42, 42, 42, 1},
		{"degenerate population at zero min max", 5, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, LogScale(tt.value, tt.min, tt.max), 1e-9)
		})
	}
}

func TestLogScaleMonotonic(t *testing.T) {
	prev := LogScale(1, 1, 1e6)
	for _, v := range []float64{10, 100, 1000, 10000, 100000, 1000000} {
		cur := LogScale(v, 1, 1e6)
		assert.Greater(t, cur, prev, "log scale must increase with value")
		assert.GreaterOrEqual(t, cur, 0.0)
		assert.LessOrEqual(t, cur, 1.0)
		prev = cur
	}
}

func TestLogScaleCompressesLargeValues(t *testing.T) {
	// Log scaling keeps mid-range values meaningful against outliers.
	mid := LogScale(1000, 1, 1e6)
	assert.Greater(t, mid, 0.4)
}

func TestRecencyFraction(t *testing.T) {
	min := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	max := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)

	assert.InDelta(t, 0, RecencyFraction(min, min, max), 1e-9)
	assert.InDelta(t, 1, RecencyFraction(max, min, max), 1e-9)
	assert.InDelta(t, 0.5, RecencyFraction(min.AddDate(0, 0, 5), min, max), 1e-9)
}

func TestRecencyFractionDegenerate(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1, RecencyFraction(ts, ts, ts), 1e-9)
}
