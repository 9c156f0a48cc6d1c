// Package nutrition defines the macro-nutrient vector, dish records and their
// lenient decoding from loosely typed food documents.
package nutrition

import (
	"math"
)

// Macro indexes into a Vector.
const (
	Energy = iota
	Protein
	Fat
	Carb

	NumMacros
)

// MacroNames are display labels indexed by macro.
var MacroNames = [NumMacros]string{"Energy", "Protein", "TotalFat", "Carb"}

// MacroUnits are display units indexed by macro.
var MacroUnits = [NumMacros]string{"kcal", "g", "g", "g"}

// Vector holds energy, protein, fat and carbohydrate, in that order.
type Vector [NumMacros]float64

// Add returns the element-wise sum of v and o.
func (v Vector) Add(o Vector) Vector {
	for i := range v {
		v[i] += o[i]
	}
	return v
}

// Scale multiplies every macro by factor.
func (v Vector) Scale(factor float64) Vector {
	for i := range v {
		v[i] *= factor
	}
	return v
}

// Sum adds the four macros together.
func (v Vector) Sum() float64 {
	var total float64
	for _, x := range v {
		total += x
	}
	return total
}

// IsZero reports whether all four macros are zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Finite reports whether every macro is a finite number.
func (v Vector) Finite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Negative reports whether any macro is below zero.
func (v Vector) Negative() bool {
	for _, x := range v {
		if x < 0 {
			return true
		}
	}
	return false
}

// Bounds is the closed range a portion scale must stay in.
type Bounds struct {
	Min float64 `json:"min" yaml:"min" mapstructure:"min"`
	Max float64 `json:"max" yaml:"max" mapstructure:"max"`
}

// Valid reports whether 0 < Min <= Max with both ends finite.
func (b Bounds) Valid() bool {
	if math.IsNaN(b.Min) || math.IsNaN(b.Max) || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) {
		return false
	}
	return b.Min > 0 && b.Min <= b.Max
}

// Contains reports whether x lies inside the bounds, inclusive.
func (b Bounds) Contains(x float64) bool {
	return x >= b.Min && x <= b.Max
}

// Clamp limits x to the bounds.
func (b Bounds) Clamp(x float64) float64 {
	if x < b.Min {
		return b.Min
	}
	if x > b.Max {
		return b.Max
	}
	return x
}
