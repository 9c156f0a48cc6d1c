package mathutil

import (
	"math"
	"testing"
)

func TestRoundScale(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Round up at midpoint", 1.235, 1.24},
		{"Round down below midpoint", 1.234, 1.23},
		{"No rounding needed", 1.5, 1.5},
		{"Near upper bound", 1.99999, 2.0},
		{"Zero", 0.0, 0.0},
		{"Small scale", 0.304, 0.30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundScale(tt.input)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("RoundScale(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRoundLoss(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Four decimals", 0.003712, 0.0037},
		{"Round up", 0.12345, 0.1235},
		{"Zero", 0, 0},
		{"Infinity kept", math.Inf(1), math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundLoss(tt.input)
			if math.IsInf(tt.expected, 1) {
				if !math.IsInf(result, 1) {
					t.Errorf("RoundLoss(%v) = %v, expected +Inf", tt.input, result)
				}
				return
			}
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("RoundLoss(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRoundLossNaN(t *testing.T) {
	if !math.IsNaN(RoundLoss(math.NaN())) {
		t.Errorf("RoundLoss(NaN) should stay NaN")
	}
}

func TestRoundInt(t *testing.T) {
	tests := []struct {
		input    float64
		expected int
	}{
		{606.3, 606},
		{606.5, 607},
		{0.49, 0},
		{-1.5, -2},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}

	for _, tt := range tests {
		if got := RoundInt(tt.input); got != tt.expected {
			t.Errorf("RoundInt(%v) = %d, expected %d", tt.input, got, tt.expected)
		}
	}
}

func TestIsFinite(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected bool
	}{
		{"Regular", 1.5, true},
		{"Zero", 0, true},
		{"NaN", math.NaN(), false},
		{"Positive infinity", math.Inf(1), false},
		{"Negative infinity", math.Inf(-1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFinite(tt.input); got != tt.expected {
				t.Errorf("IsFinite(%v) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRelativeError(t *testing.T) {
	got := RelativeError(660, 600, 1e-5)
	if math.Abs(got-0.1) > 1e-6 {
		t.Errorf("RelativeError(660, 600) = %v, expected 0.1", got)
	}

	got = RelativeError(1, 0, 1e-5)
	if math.Abs(got-1e5) > 1e-3 {
		t.Errorf("RelativeError(1, 0) = %v, expected 1e5", got)
	}
}
