// Package optimization provides shared data structures for optimization results.
package optimization

// NutrientLine compares one macro of the active target with the amount the
// optimized menu delivers.
type NutrientLine struct {
	Nutrient  string  `json:"nutrient" yaml:"nutrient"`
	Unit      string  `json:"unit" yaml:"unit"`
	Target    int     `json:"target" yaml:"target"`
	Achieved  int     `json:"achieved" yaml:"achieved"`
	Deviation int     `json:"deviation" yaml:"deviation"`
	Weight    float64 `json:"weight" yaml:"weight"`
	Warning   bool    `json:"warning" yaml:"warning"`
}

// MealLine reports the energy delivered to one meal slot present in the menu.
type MealLine struct {
	Meal         string `json:"meal" yaml:"meal"`
	TargetKcal   int    `json:"targetKcal" yaml:"targetKcal"`
	AchievedKcal int    `json:"achievedKcal" yaml:"achievedKcal"`
}

// MenuReport captures the diagnostics of a single menu optimization. It is
// informational only and never feeds back into the solve. BaselineLoss is the
// objective with every dish at one serving.
type MenuReport struct {
	Nutrients    []NutrientLine `json:"nutrients" yaml:"nutrients"`
	Meals        []MealLine     `json:"meals,omitempty" yaml:"meals,omitempty"`
	Collapsed    []string       `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
	Loss         float64        `json:"loss" yaml:"loss"`
	BaselineLoss float64        `json:"baselineLoss" yaml:"baselineLoss"`
	Iterations   int            `json:"iterations" yaml:"iterations"`
	Converged    bool           `json:"converged" yaml:"converged"`
	Fallback     bool           `json:"fallback" yaml:"fallback"`
	Notes        []string       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Warnings returns the nutrients flagged as deviating too far from target.
func (r MenuReport) Warnings() []string {
	var out []string
	for _, line := range r.Nutrients {
		if line.Warning {
			out = append(out, line.Nutrient)
		}
	}
	return out
}

// ComparisonLine compares one macro of the replaced dish with its replacement.
type ComparisonLine struct {
	Nutrient  string  `json:"nutrient" yaml:"nutrient"`
	Unit      string  `json:"unit" yaml:"unit"`
	Old       float64 `json:"old" yaml:"old"`
	New       float64 `json:"new" yaml:"new"`
	Deviation float64 `json:"deviation" yaml:"deviation"`
	Warning   bool    `json:"warning" yaml:"warning"`
}

// SubstitutionReport summarizes a substitution run.
type SubstitutionReport struct {
	Old        string           `json:"old" yaml:"old"`
	Best       string           `json:"best,omitempty" yaml:"best,omitempty"`
	BestScale  float64          `json:"bestScale,omitempty" yaml:"bestScale,omitempty"`
	Retrieved  int              `json:"retrieved" yaml:"retrieved"`
	Excluded   int              `json:"excluded" yaml:"excluded"`
	Scored     int              `json:"scored" yaml:"scored"`
	Rejected   int              `json:"rejected" yaml:"rejected"`
	Kept       int              `json:"kept" yaml:"kept"`
	Comparison []ComparisonLine `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	Notes      []string         `json:"notes,omitempty" yaml:"notes,omitempty"`
}
