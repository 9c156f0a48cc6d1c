package solver

import (
	"fmt"
	"math"

	"github.com/iwvelando/portion-planner/pkg/constants"
)

var (
	goldenRatio = 0.5 * (3.0 - math.Sqrt(5.0))
	sqrtEpsilon = math.Sqrt(2.220446049250313e-16)
)

// ScalarSettings controls MinimizeScalar termination.
type ScalarSettings struct {
	// Tolerance is the absolute tolerance on x.
	Tolerance      float64
	MaxEvaluations int
}

// DefaultScalarSettings returns the settings used when none are configured.
func DefaultScalarSettings() ScalarSettings {
	return ScalarSettings{
		Tolerance:      constants.DefaultScalarTolerance,
		MaxEvaluations: constants.DefaultScalarMaxEvaluations,
	}
}

// ScalarResult is the outcome of MinimizeScalar.
type ScalarResult struct {
	X           float64
	F           float64
	Evaluations int
	Success     bool
	Message     string
}

// MinimizeScalar finds a local minimum of f on [lower, upper] using Brent's
// method: golden-section steps, switching to parabolic interpolation when the
// parabola is well behaved. Only points strictly inside the interval are
// evaluated unless lower == upper.
func MinimizeScalar(f func(float64) float64, lower, upper float64, settings ScalarSettings) ScalarResult {
	if math.IsNaN(lower) || math.IsNaN(upper) || math.IsInf(lower, 0) || math.IsInf(upper, 0) {
		return ScalarResult{X: math.NaN(), F: math.NaN(), Message: "bounds must be finite"}
	}
	if lower > upper {
		return ScalarResult{X: math.NaN(), F: math.NaN(),
			Message: fmt.Sprintf("infeasible bounds [%g, %g]", lower, upper)}
	}
	if settings.Tolerance <= 0 {
		settings.Tolerance = constants.DefaultScalarTolerance
	}
	if settings.MaxEvaluations <= 0 {
		settings.MaxEvaluations = constants.DefaultScalarMaxEvaluations
	}

	a, b := lower, upper
	// x is the best point so far, w the second best, v the previous w.
	x := a + goldenRatio*(b-a)
	w, v := x, x
	fx := f(x)
	fw, fv := fx, fx
	fu := math.Inf(1)
	evaluations := 1

	var d, e float64
	mid := 0.5 * (a + b)
	tol1 := sqrtEpsilon*math.Abs(x) + settings.Tolerance/3.0
	tol2 := 2.0 * tol1

	for math.Abs(x-mid) > tol2-0.5*(b-a) {
		golden := true

		if math.Abs(e) > tol1 {
			golden = false
			r := (x - w) * (fx - fv)
			q := (x - v) * (fx - fw)
			p := (x-v)*q - (x-w)*r
			q = 2.0 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			prevE := e
			e = d

			if math.Abs(p) < math.Abs(0.5*q*prevE) && p > q*(a-x) && p < q*(b-x) {
				d = p / q
				u := x + d
				// keep away from the interval ends
				if u-a < tol2 || b-u < tol2 {
					d = tol1 * sign(mid-x)
				}
			} else {
				golden = true
			}
		}

		if golden {
			if x >= mid {
				e = a - x
			} else {
				e = b - x
			}
			d = goldenRatio * e
		}

		u := x + sign(d)*math.Max(math.Abs(d), tol1)
		fu = f(u)
		evaluations++

		if fu <= fx {
			if u >= x {
				a = x
			} else {
				b = x
			}
			v, fv = w, fw
			w, fw = x, fx
			x, fx = u, fu
		} else {
			if u < x {
				a = u
			} else {
				b = u
			}
			if fu <= fw || w == x {
				v, fv = w, fw
				w, fw = u, fu
			} else if fu <= fv || v == x || v == w {
				v, fv = u, fu
			}
		}

		mid = 0.5 * (a + b)
		tol1 = sqrtEpsilon*math.Abs(x) + settings.Tolerance/3.0
		tol2 = 2.0 * tol1

		if evaluations >= settings.MaxEvaluations {
			return ScalarResult{X: x, F: fx, Evaluations: evaluations,
				Message: fmt.Sprintf("evaluation limit of %d reached", settings.MaxEvaluations)}
		}
	}

	if math.IsNaN(x) || math.IsNaN(fx) || math.IsNaN(fu) {
		return ScalarResult{X: x, F: fx, Evaluations: evaluations, Message: "objective returned NaN"}
	}
	return ScalarResult{X: x, F: fx, Evaluations: evaluations, Success: true, Message: "converged"}
}

// sign returns -1 for negative values and 1 otherwise, so a zero step still moves.
func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
