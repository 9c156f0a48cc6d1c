// Package solver provides the bounded minimizers behind portion scaling: a
// projected Gauss-Newton method for box-constrained least squares and a
// bounded Brent method for single-variable problems.
package solver

import (
	"fmt"
	"math"

	"github.com/iwvelando/portion-planner/pkg/constants"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	armijoSlope   = 1e-4
	minStep       = 1e-12
	boundSlack    = 1e-12
	dampingFactor = 1e-10
)

// Problem is a least-squares objective f(x) = sum_i r_i(x)^2.
type Problem interface {
	// Dims returns the number of residuals and the number of variables.
	Dims() (residuals, variables int)
	// Residuals writes r(x) into dst.
	Residuals(dst, x []float64)
	// Jacobian writes dr/dx into dst, which has Dims() shape.
	Jacobian(dst *mat.Dense, x []float64)
}

// Settings controls BoundedLeastSquares termination.
type Settings struct {
	MaxIterations int
	// GradientTolerance bounds the infinity norm of the projected gradient at a solution.
	GradientTolerance float64
	// FunctionTolerance bounds the relative objective decrease between iterations.
	FunctionTolerance float64
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:     constants.DefaultMaxIterations,
		GradientTolerance: constants.DefaultGradientTolerance,
		FunctionTolerance: constants.DefaultFunctionTolerance,
	}
}

// Result is the outcome of a bounded minimization.
type Result struct {
	X          []float64
	F          float64
	Iterations int
	Success    bool
	Message    string
}

func failure(x []float64, f float64, iterations int, format string, args ...interface{}) Result {
	return Result{X: x, F: f, Iterations: iterations, Message: fmt.Sprintf(format, args...)}
}

// BoundedLeastSquares minimizes problem subject to lower <= x <= upper,
// starting from x0 projected onto the box.
//
// Each iteration fixes the variables held at a bound by the gradient, takes a
// damped Gauss-Newton step on the free ones and backtracks along the
// projected path until the Armijo condition holds. The returned X always lies
// inside the bounds; Success is false when the bounds are infeasible, the
// objective is not finite, the line search breaks down, or the iteration limit
// is reached.
func BoundedLeastSquares(problem Problem, lower, upper, x0 []float64, settings Settings) Result {
	m, n := problem.Dims()
	if n == 0 {
		return Result{X: []float64{}, Success: true, Message: "no variables"}
	}
	if len(lower) != n || len(upper) != n || len(x0) != n {
		return failure(nil, math.NaN(), 0, "dimension mismatch: %d variables, %d lower, %d upper, %d start",
			n, len(lower), len(upper), len(x0))
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(lower[i]) || math.IsNaN(upper[i]) || math.IsInf(lower[i], 0) || math.IsInf(upper[i], 0) {
			return failure(nil, math.NaN(), 0, "variable %d has non-finite bounds", i)
		}
		if lower[i] > upper[i] {
			return failure(nil, math.NaN(), 0, "variable %d has infeasible bounds [%g, %g]", i, lower[i], upper[i])
		}
	}
	if settings.MaxIterations <= 0 {
		settings.MaxIterations = constants.DefaultMaxIterations
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = clamp(x0[i], lower[i], upper[i])
	}
	if m == 0 {
		return Result{X: x, Success: true, Message: "no residuals"}
	}

	r := make([]float64, m)
	problem.Residuals(r, x)
	f := floats.Dot(r, r)
	if !finite(f) {
		return failure(x, f, 0, "objective is not finite at the starting point")
	}

	jac := mat.NewDense(m, n, nil)
	grad := make([]float64, n)
	trial := make([]float64, n)
	trialR := make([]float64, m)

	for iter := 1; iter <= settings.MaxIterations; iter++ {
		problem.Jacobian(jac, x)
		gradient(grad, jac, r)

		if projectedGradientNorm(x, grad, lower, upper) <= settings.GradientTolerance {
			return Result{X: x, F: f, Iterations: iter - 1, Success: true, Message: "projected gradient below tolerance"}
		}

		free := freeVariables(x, grad, lower, upper)
		dir, ok := newtonDirection(jac, grad, free)
		if !ok {
			dir = steepestDirection(grad, free)
		}

		step, fTrial, accepted := backtrack(problem, x, dir, grad, f, lower, upper, trial, trialR)
		if !accepted && ok {
			// Gauss-Newton direction failed; retry along the negative gradient.
			dir = steepestDirection(grad, free)
			step, fTrial, accepted = backtrack(problem, x, dir, grad, f, lower, upper, trial, trialR)
		}
		if !accepted {
			if projectedGradientNorm(x, grad, lower, upper) <= math.Sqrt(settings.GradientTolerance) {
				return Result{X: x, F: f, Iterations: iter, Success: true, Message: "no further decrease possible"}
			}
			return failure(x, f, iter, "line search failed after step %g", step)
		}
		if !finite(fTrial) {
			return failure(x, f, iter, "objective is not finite")
		}

		decrease := f - fTrial
		copy(x, trial)
		copy(r, trialR)
		f = fTrial

		if decrease <= settings.FunctionTolerance*math.Max(1, f) {
			return Result{X: x, F: f, Iterations: iter, Success: true, Message: "objective decrease below tolerance"}
		}
	}

	return failure(x, f, settings.MaxIterations, "iteration limit of %d reached", settings.MaxIterations)
}

// gradient computes 2 J^T r.
func gradient(dst []float64, jac *mat.Dense, r []float64) {
	m, n := jac.Dims()
	for j := 0; j < n; j++ {
		var sum float64
		for i := 0; i < m; i++ {
			sum += jac.At(i, j) * r[i]
		}
		dst[j] = 2 * sum
	}
}

func projectedGradientNorm(x, grad, lower, upper []float64) float64 {
	var norm float64
	for i := range x {
		d := math.Abs(x[i] - clamp(x[i]-grad[i], lower[i], upper[i]))
		if d > norm {
			norm = d
		}
	}
	return norm
}

// freeVariables excludes variables sitting on a bound that the gradient pushes outward.
func freeVariables(x, grad, lower, upper []float64) []int {
	free := make([]int, 0, len(x))
	for i := range x {
		atLower := x[i] <= lower[i]+boundSlack && grad[i] > 0
		atUpper := x[i] >= upper[i]-boundSlack && grad[i] < 0
		if atLower || atUpper {
			continue
		}
		free = append(free, i)
	}
	return free
}

// newtonDirection solves (2 J_f^T J_f + mu I) d_f = -g_f for the free
// variables; fixed variables get a zero component.
func newtonDirection(jac *mat.Dense, grad []float64, free []int) ([]float64, bool) {
	m, n := jac.Dims()
	dir := make([]float64, n)
	k := len(free)
	if k == 0 {
		return dir, false
	}

	h := mat.NewSymDense(k, nil)
	var maxDiag float64
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			var sum float64
			for i := 0; i < m; i++ {
				sum += jac.At(i, free[a]) * jac.At(i, free[b])
			}
			h.SetSym(a, b, 2*sum)
		}
		if d := h.At(a, a); d > maxDiag {
			maxDiag = d
		}
	}
	mu := dampingFactor * (maxDiag + 1)
	for a := 0; a < k; a++ {
		h.SetSym(a, a, h.At(a, a)+mu)
	}

	rhs := mat.NewVecDense(k, nil)
	for a, idx := range free {
		rhs.SetVec(a, -grad[idx])
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(h); !ok {
		return dir, false
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, rhs); err != nil {
		return dir, false
	}

	var slope float64
	for a, idx := range free {
		dir[idx] = sol.AtVec(a)
		slope += dir[idx] * grad[idx]
	}
	if !(slope < 0) {
		return dir, false
	}
	return dir, true
}

func steepestDirection(grad []float64, free []int) []float64 {
	dir := make([]float64, len(grad))
	for _, idx := range free {
		dir[idx] = -grad[idx]
	}
	return dir
}

// backtrack halves the step along the projected path x(t) = P(x + t*dir)
// until f(x(t)) <= f + c * g.(x(t) - x).
func backtrack(problem Problem, x, dir, grad []float64, f float64, lower, upper, trial, trialR []float64) (float64, float64, bool) {
	t := 1.0
	fTrial := math.NaN()
	for t >= minStep {
		moved := false
		var predicted float64
		for i := range x {
			trial[i] = clamp(x[i]+t*dir[i], lower[i], upper[i])
			delta := trial[i] - x[i]
			if delta != 0 {
				moved = true
			}
			predicted += grad[i] * delta
		}
		if !moved {
			return t, f, false
		}
		problem.Residuals(trialR, trial)
		fTrial = floats.Dot(trialR, trialR)
		if finite(fTrial) && fTrial <= f+armijoSlope*predicted && fTrial < f {
			return t, fTrial, true
		}
		t /= 2
	}
	return t, fTrial, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LinearProblem has residuals r(x) = A x - B.
type LinearProblem struct {
	A *mat.Dense
	B []float64
}

// Dims implements Problem.
func (p LinearProblem) Dims() (int, int) {
	return p.A.Dims()
}

// Residuals implements Problem.
func (p LinearProblem) Residuals(dst, x []float64) {
	m, _ := p.A.Dims()
	for i := 0; i < m; i++ {
		dst[i] = floats.Dot(p.A.RawRowView(i), x) - p.B[i]
	}
}

// Jacobian implements Problem.
func (p LinearProblem) Jacobian(dst *mat.Dense, _ []float64) {
	dst.Copy(p.A)
}

// Objective returns sum r_i(x)^2 for any Problem.
func Objective(problem Problem, x []float64) float64 {
	m, _ := problem.Dims()
	r := make([]float64, m)
	problem.Residuals(r, x)
	return floats.Dot(r, r)
}
