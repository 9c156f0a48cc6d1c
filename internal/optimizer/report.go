package optimizer

import (
	"math"

	"github.com/iwvelando/portion-planner/pkg/constants"
	"github.com/iwvelando/portion-planner/pkg/mathutil"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
	"github.com/iwvelando/portion-planner/pkg/optimization"
	"go.uber.org/zap"
)

// fillReport compares the rounded per-dish results with the active target and
// the per-slot energy targets.
func (o *MenuOptimizer) fillReport(report *optimization.MenuReport, plan menuPlan, dishes []nutrition.Dish) {
	var total nutrition.Vector
	slotKcal := make([]int, len(o.policy.MealSlots))
	for i, dish := range dishes {
		total = total.Add(dish.FinalVector())
		if s := plan.slots[i]; s >= 0 {
			slotKcal[s] += dish.Final[nutrition.Energy]
		}
	}

	report.Nutrients = make([]optimization.NutrientLine, nutrition.NumMacros)
	for n := 0; n < nutrition.NumMacros; n++ {
		target := mathutil.RoundInt(plan.active[n])
		achieved := mathutil.RoundInt(total[n])
		deviation := achieved - target
		relative := math.Abs(float64(deviation)) / (float64(target) + o.policy.Epsilon)
		report.Nutrients[n] = optimization.NutrientLine{
			Nutrient:  nutrition.MacroNames[n],
			Unit:      nutrition.MacroUnits[n],
			Target:    target,
			Achieved:  achieved,
			Deviation: deviation,
			Weight:    plan.weights[n],
			Warning:   relative > o.policy.DeviationWarning && plan.weights[n] > constants.CollapsedWeightCeiling,
		}
	}

	for s, slot := range o.policy.MealSlots {
		if !plan.present[s] {
			continue
		}
		report.Meals = append(report.Meals, optimization.MealLine{
			Meal:         slot.Name,
			TargetKcal:   mathutil.RoundInt(plan.slotTargets[s]),
			AchievedKcal: slotKcal[s],
		})
	}
}

func (o *MenuOptimizer) logReport(report optimization.MenuReport) {
	const op = "optimizer.MenuOptimizer.report"
	for _, line := range report.Nutrients {
		o.logger.Info("nutrient",
			zap.String("op", op),
			zap.String("nutrient", line.Nutrient),
			zap.Int("target", line.Target),
			zap.Int("achieved", line.Achieved),
			zap.Int("deviation", line.Deviation),
			zap.String("unit", line.Unit),
			zap.Bool("warning", line.Warning),
		)
	}
	for _, line := range report.Meals {
		o.logger.Info("meal energy",
			zap.String("op", op),
			zap.String("meal", line.Meal),
			zap.Int("achievedKcal", line.AchievedKcal),
			zap.Int("targetKcal", line.TargetKcal),
		)
	}
}

// Compare lines up the macros of the dish being replaced with those of its
// replacement. The old dish contributes its final macros when it has been
// annotated and its realized macros otherwise. A line is flagged when the
// old value is positive and the replacement deviates by more than threshold
// as a fraction of it.
func Compare(old, replacement nutrition.Dish, threshold float64) []optimization.ComparisonLine {
	before := old.Realized()
	if old.Annotated {
		before = old.FinalVector()
	}
	after := replacement.Realized()
	if replacement.Annotated {
		after = replacement.FinalVector()
	}

	lines := make([]optimization.ComparisonLine, nutrition.NumMacros)
	for n := 0; n < nutrition.NumMacros; n++ {
		line := optimization.ComparisonLine{
			Nutrient: nutrition.MacroNames[n],
			Unit:     nutrition.MacroUnits[n],
			Old:      before[n],
			New:      after[n],
		}
		if before[n] > 0 {
			line.Deviation = (after[n] - before[n]) / before[n]
			line.Warning = math.Abs(line.Deviation) > threshold
		}
		lines[n] = line
	}
	return lines
}
