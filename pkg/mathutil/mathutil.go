// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/portion-planner/pkg/constants"
)

// RoundScale rounds a portion scale to two decimals.
func RoundScale(val float64) float64 {
	return math.Round(val*constants.ScalePrecision) / constants.ScalePrecision
}

// RoundLoss rounds an optimization loss to four decimals. Infinite losses are kept as is.
func RoundLoss(val float64) float64 {
	if math.IsInf(val, 0) || math.IsNaN(val) {
		return val
	}
	return math.Round(val*constants.LossPrecision) / constants.LossPrecision
}

// RoundInt rounds to the nearest integer, half away from zero. Non-finite
// values round to zero.
func RoundInt(val float64) int {
	if !IsFinite(val) {
		return 0
	}
	return int(math.Round(val))
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// RelativeError returns (value - target) / (target + epsilon).
func RelativeError(value, target, epsilon float64) float64 {
	return (value - target) / (target + epsilon)
}
