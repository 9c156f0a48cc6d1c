// Package validation provides menu validation utilities.
package validation

import (
	"fmt"

	"github.com/iwvelando/portion-planner/pkg/nutrition"
)

// SlotResolver maps a dish's meal label to a configured meal slot.
type SlotResolver interface {
	SlotIndex(meal string) (int, bool)
}

// ValidateDish returns warnings for one dish that the optimizers will accept
// but handle in a degraded way.
func ValidateDish(slots SlotResolver, dish nutrition.Dish) []string {
	var warnings []string

	if dish.Problem != nil {
		warnings = append(warnings, fmt.Sprintf("Dish '%s' has malformed fields: %v", dish.Name, dish.Problem))
	}
	if _, ok := slots.SlotIndex(dish.Meal); !ok {
		warnings = append(warnings, fmt.Sprintf("Dish '%s' has unknown meal slot '%s' - it will not count toward any slot target",
			dish.Name, dish.Meal))
	}
	if !dish.Macros.Finite() || dish.Macros.Negative() {
		warnings = append(warnings, fmt.Sprintf("Dish '%s' has non-finite or negative macros %v", dish.Name, dish.Macros))
	} else if dish.Macros.IsZero() {
		warnings = append(warnings, fmt.Sprintf("Dish '%s' has no macros - its portion cannot affect the result", dish.Name))
	}
	if dish.Bounds != nil && !dish.Bounds.Valid() {
		warnings = append(warnings, fmt.Sprintf("Dish '%s' has invalid solver bounds [%g, %g] - unless the dish is large enough for its meal to get the tight bounds, the menu will fall back to one serving per dish",
			dish.Name, dish.Bounds.Min, dish.Bounds.Max))
	}

	return warnings
}

// MenuWarnings validates every dish of a menu and returns the warnings in menu order.
func MenuWarnings(slots SlotResolver, menu []nutrition.Dish) []string {
	var warnings []string
	names := make(map[string]int, len(menu))
	for _, dish := range menu {
		warnings = append(warnings, ValidateDish(slots, dish)...)
		names[dish.Name]++
	}
	for _, dish := range menu {
		if n := names[dish.Name]; n > 1 {
			warnings = append(warnings, fmt.Sprintf("Dish '%s' appears %d times in the menu", dish.Name, n))
			names[dish.Name] = 0
		}
	}
	return warnings
}
