// Package optimizer scales dish portions toward macro-nutrient targets. It
// holds the full-menu optimizer and the substitution scorer, which share one
// weighted relative squared error model.
package optimizer

import (
	"math"

	"github.com/iwvelando/portion-planner/pkg/mathutil"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
)

type lossModel struct {
	weights nutrition.Vector
	epsilon float64
}

// relative returns the signed relative error of value against target.
func (m lossModel) relative(value, target float64) float64 {
	return mathutil.RelativeError(value, target, m.epsilon)
}

// macroLoss is sum_n w[n] * ((achieved[n] - target[n]) / (target[n] + eps))^2.
func (m lossModel) macroLoss(achieved, target nutrition.Vector) float64 {
	var loss float64
	for n := 0; n < nutrition.NumMacros; n++ {
		d := m.relative(achieved[n], target[n])
		loss += m.weights[n] * d * d
	}
	return loss
}

// row returns the least-squares coefficients and right-hand side whose
// squared residual equals factor * w * ((a.x - target) / (target + eps))^2.
func (m lossModel) row(coeffs []float64, factor, weight, target float64) ([]float64, float64) {
	scale := math.Sqrt(factor*weight) / (target + m.epsilon)
	out := make([]float64, len(coeffs))
	for j, c := range coeffs {
		out[j] = scale * c
	}
	return out, scale * target
}
