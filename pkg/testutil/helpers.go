// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/portion-planner/pkg/nutrition"
)

// Dish builds a dish with the given meal and per-serving macros.
func Dish(name, meal string, kcal, protein, fat, carbs float64) nutrition.Dish {
	return nutrition.Dish{
		Name:   name,
		Meal:   meal,
		Macros: nutrition.Vector{kcal, protein, fat, carbs},
	}
}

// WithBounds returns a copy of d carrying solver bounds.
func WithBounds(d nutrition.Dish, min, max float64) nutrition.Dish {
	d.Bounds = &nutrition.Bounds{Min: min, Max: max}
	return d
}

// Target builds a daily macro target.
func Target(kcal, protein, fat, carbs float64) nutrition.Vector {
	return nutrition.Vector{kcal, protein, fat, carbs}
}

// FindDish finds a dish by name in the results slice.
// Returns a pointer to the dish if found, nil otherwise.
func FindDish(dishes []nutrition.Dish, name string) *nutrition.Dish {
	for i := range dishes {
		if dishes[i].Name == name {
			return &dishes[i]
		}
	}
	return nil
}

// Names returns the dish names in order.
func Names(dishes []nutrition.Dish) []string {
	out := make([]string, len(dishes))
	for i, d := range dishes {
		out[i] = d.Name
	}
	return out
}
