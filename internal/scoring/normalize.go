// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

// Package scoring computes per-category utilities for eligible catalog items
// and assigns every item to exactly one category under a balanced capacity
// constraint.
package scoring

import (
	"math"
	"time"
)

// LogScale normalizes a value into [0,1] on a log1p scale over [min, max].
// Values at or below zero map to 0. When min == max the population is
// degenerate and every value maps to 1.
func LogScale(value, min, max float64) float64 {
	if value <= 0 {
		return 0
	}

	logMin := math.Log1p(min)
	logMax := math.Log1p(max)
	if logMax == logMin {
		return 1
	}

	return (math.Log1p(value) - logMin) / (logMax - logMin)
}

// RecencyFraction normalizes a timestamp linearly by its elapsed fraction
// within [min, max]. When min == max every value maps to 1.
func RecencyFraction(t, min, max time.Time) float64 {
	span := max.Sub(min).Seconds()
	if span == 0 {
		return 1
	}
	return t.Sub(min).Seconds() / span
}
