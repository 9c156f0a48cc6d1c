package optimizer

import (
	"fmt"

	"github.com/iwvelando/portion-planner/internal/config"
	"github.com/iwvelando/portion-planner/pkg/mathutil"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
	"github.com/iwvelando/portion-planner/pkg/optimization"
	"github.com/iwvelando/portion-planner/pkg/solver"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// MenuOptimizer jointly scales every dish of a menu toward the active part of
// a daily macro target.
type MenuOptimizer struct {
	logger   *zap.Logger
	policy   config.PolicyConfig
	settings solver.Settings
}

// MenuResult holds the annotated dishes, in input order, and the report.
type MenuResult struct {
	Dishes []nutrition.Dish        `json:"dishes" yaml:"dishes"`
	Report optimization.MenuReport `json:"report" yaml:"report"`
}

// menuPlan is everything derived from the inputs before solving. slots[i] is
// the meal slot of dish i, or -1.
type menuPlan struct {
	daily       nutrition.Vector
	active      nutrition.Vector
	activeShare float64
	slots       []int
	present     []bool
	slotTargets []float64
	bounds      []nutrition.Bounds
	weights     nutrition.Vector
	collapsed   []string
	distributed bool
}

// NewMenuOptimizer constructs a MenuOptimizer. A nil logger disables logging.
func NewMenuOptimizer(logger *zap.Logger, policy config.PolicyConfig, solverCfg config.SolverConfig) *MenuOptimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy.Normalize()
	solverCfg.Normalize()
	return &MenuOptimizer{logger: logger, policy: policy, settings: solverCfg.Settings()}
}

// Optimize returns annotated copies of menu with portion scales chosen to
// bring the menu's macros close to the target of the meal slots it covers.
// The input slice and dishes are never modified. When the solver fails every
// dish is served at scale 1.0.
func (o *MenuOptimizer) Optimize(daily nutrition.Vector, menu []nutrition.Dish) MenuResult {
	const op = "optimizer.MenuOptimizer.Optimize"

	if len(menu) == 0 {
		o.logger.Warn("menu empty, skipping optimization", zap.String("op", op))
		return MenuResult{
			Dishes: []nutrition.Dish{},
			Report: optimization.MenuReport{Notes: []string{"empty menu"}},
		}
	}

	plan := o.prepare(daily, menu)
	o.logger.Info("optimization target",
		zap.String("op", op),
		zap.Float64s("active", plan.active[:]),
		zap.Float64("activeShare", plan.activeShare),
		zap.Bool("distribution", plan.distributed),
	)
	for _, name := range plan.collapsed {
		o.logger.Info("severe shortage, reducing nutrient weight",
			zap.String("op", op),
			zap.String("nutrient", name),
			zap.Float64("weight", o.policy.ShortageWeight),
		)
	}

	problem := o.problem(plan, menu)
	ones := make([]float64, len(menu))
	for i := range ones {
		ones[i] = 1
	}

	report := optimization.MenuReport{Collapsed: plan.collapsed}
	scales, res, err := o.solve(problem, plan, ones)
	switch {
	case err != nil:
		o.logger.Warn("solver error, using default portions", zap.String("op", op), zap.Error(err))
		report.Fallback = true
		report.Notes = append(report.Notes, err.Error())
	case !res.Success:
		o.logger.Warn("solver failed, using default portions",
			zap.String("op", op),
			zap.String("message", res.Message),
			zap.Int("iterations", res.Iterations),
		)
		report.Fallback = true
		report.Iterations = res.Iterations
		report.Notes = append(report.Notes, "solver failed: "+res.Message)
	default:
		report.Converged = true
		report.Iterations = res.Iterations
	}
	if report.Fallback {
		scales = ones
	}

	report.Loss = safeLoss(problem, scales)
	report.BaselineLoss = safeLoss(problem, ones)

	dishes := make([]nutrition.Dish, len(menu))
	for i, dish := range menu {
		if report.Fallback {
			dishes[i] = dish.Annotate(scales[i])
		} else {
			dishes[i] = dish.AnnotateWithin(scales[i], plan.bounds[i])
		}
		o.logger.Info("portion",
			zap.String("op", op),
			zap.String("dish", dish.Name),
			zap.String("meal", dish.Meal),
			zap.Float64("scale", dishes[i].PortionScale),
			zap.Ints("final", dishes[i].Final[:]),
		)
	}

	o.fillReport(&report, plan, dishes)
	o.logReport(report)

	return MenuResult{Dishes: dishes, Report: report}
}

// prepare resolves meal slots, the active target, per-dish bounds and the
// adaptive weights.
func (o *MenuOptimizer) prepare(daily nutrition.Vector, menu []nutrition.Dish) menuPlan {
	p := o.policy
	plan := menuPlan{
		daily:       daily,
		slots:       make([]int, len(menu)),
		present:     make([]bool, len(p.MealSlots)),
		slotTargets: make([]float64, len(p.MealSlots)),
		bounds:      make([]nutrition.Bounds, len(menu)),
	}

	for s, slot := range p.MealSlots {
		plan.slotTargets[s] = daily[nutrition.Energy] * slot.Share
	}
	for i, dish := range menu {
		s, ok := p.SlotIndex(dish.Meal)
		if !ok {
			s = -1
		}
		plan.slots[i] = s
		if ok {
			plan.present[s] = true
		}
	}

	for s, slot := range p.MealSlots {
		if plan.present[s] {
			plan.active = plan.active.Add(daily.Scale(slot.Share))
			plan.activeShare += slot.Share
		}
	}
	if plan.active.Sum() == 0 {
		plan.active = daily
	}
	plan.distributed = plan.activeShare > p.DistributionActivation

	for i, dish := range menu {
		switch {
		case dish.Macros[nutrition.Energy] > p.TightBoundTrigger*p.SlotEnergy(dish.Meal, daily[nutrition.Energy]):
			plan.bounds[i] = p.TightBounds
		case dish.Bounds != nil:
			plan.bounds[i] = *dish.Bounds
		default:
			plan.bounds[i] = p.MenuBounds
		}
	}

	var servings nutrition.Vector
	for _, dish := range menu {
		servings = servings.Add(dish.Macros)
	}
	maxFeasible := servings.Scale(p.ShortageCeilingScale)
	plan.weights = p.Weights()
	for n := nutrition.Protein; n < nutrition.NumMacros; n++ {
		if maxFeasible[n] < p.ShortageThreshold*plan.active[n] {
			plan.weights[n] = p.ShortageWeight
			plan.collapsed = append(plan.collapsed, nutrition.MacroNames[n])
		}
	}

	return plan
}

// problem builds the linear least-squares form of
// factor * macroLoss + distributionLoss.
func (o *MenuOptimizer) problem(plan menuPlan, menu []nutrition.Dish) solver.LinearProblem {
	model := lossModel{weights: plan.weights, epsilon: o.policy.Epsilon}
	n := len(menu)

	var data, rhs []float64
	coeffs := make([]float64, n)
	for m := 0; m < nutrition.NumMacros; m++ {
		for j, dish := range menu {
			coeffs[j] = dish.Macros[m]
		}
		row, b := model.row(coeffs, o.policy.MacroLossFactor, plan.weights[m], plan.active[m])
		data = append(data, row...)
		rhs = append(rhs, b)
	}

	if plan.distributed {
		for s := range o.policy.MealSlots {
			if !plan.present[s] {
				continue
			}
			for j, dish := range menu {
				coeffs[j] = 0
				if plan.slots[j] == s {
					coeffs[j] = dish.Macros[nutrition.Energy]
				}
			}
			row, b := model.row(coeffs, 1, 1, plan.slotTargets[s])
			data = append(data, row...)
			rhs = append(rhs, b)
		}
	}

	return solver.LinearProblem{A: mat.NewDense(len(rhs), n, data), B: rhs}
}

// solve runs the bounded solver, converting invalid bounds and panics into
// errors.
func (o *MenuOptimizer) solve(problem solver.LinearProblem, plan menuPlan, start []float64) (scales []float64, res solver.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("solver panic: %v", r)
		}
	}()

	lower := make([]float64, len(plan.bounds))
	upper := make([]float64, len(plan.bounds))
	for i, b := range plan.bounds {
		if !b.Valid() {
			return nil, res, fmt.Errorf("dish %d has invalid bounds [%g, %g]", i, b.Min, b.Max)
		}
		lower[i], upper[i] = b.Min, b.Max
	}

	res = solver.BoundedLeastSquares(problem, lower, upper, start, o.settings)
	if res.Success {
		for _, x := range res.X {
			if !mathutil.IsFinite(x) {
				res.Success = false
				res.Message = "solver returned non-finite scales"
				break
			}
		}
	}
	return res.X, res, nil
}

func safeLoss(problem solver.LinearProblem, x []float64) (loss float64) {
	defer func() {
		if recover() != nil {
			loss = 0
		}
	}()
	loss = solver.Objective(problem, x)
	if !mathutil.IsFinite(loss) {
		return 0
	}
	return mathutil.RoundLoss(loss)
}
