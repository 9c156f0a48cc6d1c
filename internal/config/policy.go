package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/portion-planner/pkg/constants"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
)

// MealSlotConfig names one meal slot and its share of the daily target.
type MealSlotConfig struct {
	Name    string   `yaml:"name" mapstructure:"name"`
	Share   float64  `yaml:"share" mapstructure:"share"`
	Aliases []string `yaml:"aliases,omitempty" mapstructure:"aliases"`
}

// MacroWeights are the base weights of the four macro terms.
type MacroWeights struct {
	Energy  float64 `yaml:"energy" mapstructure:"energy"`
	Protein float64 `yaml:"protein" mapstructure:"protein"`
	Fat     float64 `yaml:"fat" mapstructure:"fat"`
	Carb    float64 `yaml:"carb" mapstructure:"carb"`
}

// Vector returns the weights in macro order.
func (w MacroWeights) Vector() nutrition.Vector {
	return nutrition.Vector{w.Energy, w.Protein, w.Fat, w.Carb}
}

// PolicyConfig carries every tunable of the menu optimizer and the
// substitution scorer.
type PolicyConfig struct {
	MealSlots    []MealSlotConfig `yaml:"mealSlots,omitempty" mapstructure:"mealSlots"`
	MacroWeights MacroWeights     `yaml:"macroWeights,omitempty" mapstructure:"macroWeights"`

	ShortageThreshold    float64 `yaml:"shortageThreshold,omitempty" mapstructure:"shortageThreshold"`
	ShortageWeight       float64 `yaml:"shortageWeight,omitempty" mapstructure:"shortageWeight"`
	ShortageCeilingScale float64 `yaml:"shortageCeilingScale,omitempty" mapstructure:"shortageCeilingScale"`

	TightBoundTrigger  float64          `yaml:"tightBoundTrigger,omitempty" mapstructure:"tightBoundTrigger"`
	TightBounds        nutrition.Bounds `yaml:"tightBounds,omitempty" mapstructure:"tightBounds"`
	MenuBounds         nutrition.Bounds `yaml:"menuBounds,omitempty" mapstructure:"menuBounds"`
	SubstitutionBounds nutrition.Bounds `yaml:"substitutionBounds,omitempty" mapstructure:"substitutionBounds"`

	UnknownMealEnergy      float64 `yaml:"unknownMealEnergy,omitempty" mapstructure:"unknownMealEnergy"`
	MacroLossFactor        float64 `yaml:"macroLossFactor,omitempty" mapstructure:"macroLossFactor"`
	DistributionActivation float64 `yaml:"distributionActivation,omitempty" mapstructure:"distributionActivation"`
	Epsilon                float64 `yaml:"epsilon,omitempty" mapstructure:"epsilon"`

	DeviationWarning     float64 `yaml:"deviationWarning,omitempty" mapstructure:"deviationWarning"`
	SwapDeviationWarning float64 `yaml:"swapDeviationWarning,omitempty" mapstructure:"swapDeviationWarning"`
	TopCandidates        int     `yaml:"topCandidates,omitempty" mapstructure:"topCandidates"`

	// MaxCandidateLoss drops scored candidates at or above this loss. Zero disables the filter.
	MaxCandidateLoss float64 `yaml:"maxCandidateLoss,omitempty" mapstructure:"maxCandidateLoss"`
}

// DefaultMealSlots returns the breakfast, lunch and dinner slots.
func DefaultMealSlots() []MealSlotConfig {
	return []MealSlotConfig{
		{Name: constants.MealBreakfast, Share: constants.DefaultBreakfastShare, Aliases: []string{"sáng", "morning"}},
		{Name: constants.MealLunch, Share: constants.DefaultLunchShare, Aliases: []string{"trưa", "midday", "noon"}},
		{Name: constants.MealDinner, Share: constants.DefaultDinnerShare, Aliases: []string{"tối", "evening", "supper"}},
	}
}

// DefaultPolicy returns a fully populated policy.
func DefaultPolicy() PolicyConfig {
	var p PolicyConfig
	p.Normalize()
	return p
}

// Normalize ensures defaults and canonical values are applied before validation.
func (p *PolicyConfig) Normalize() {
	if p == nil {
		return
	}

	if len(p.MealSlots) == 0 {
		p.MealSlots = DefaultMealSlots()
	}
	for i := range p.MealSlots {
		p.MealSlots[i].Name = canonicalMeal(p.MealSlots[i].Name)
		aliases := make([]string, 0, len(p.MealSlots[i].Aliases))
		for _, alias := range p.MealSlots[i].Aliases {
			if a := canonicalMeal(alias); a != "" {
				aliases = append(aliases, a)
			}
		}
		p.MealSlots[i].Aliases = aliases
	}

	if p.MacroWeights == (MacroWeights{}) {
		p.MacroWeights = MacroWeights{
			Energy:  constants.DefaultEnergyWeight,
			Protein: constants.DefaultProteinWeight,
			Fat:     constants.DefaultFatWeight,
			Carb:    constants.DefaultCarbWeight,
		}
	}

	setDefault(&p.ShortageThreshold, constants.DefaultShortageThreshold)
	setDefault(&p.ShortageWeight, constants.DefaultShortageWeight)
	setDefault(&p.ShortageCeilingScale, constants.DefaultShortageCeilingScale)
	setDefault(&p.TightBoundTrigger, constants.DefaultTightBoundTrigger)
	setDefaultBounds(&p.TightBounds, constants.DefaultTightBoundMin, constants.DefaultTightBoundMax)
	setDefaultBounds(&p.MenuBounds, constants.DefaultMenuBoundMin, constants.DefaultMenuBoundMax)
	setDefaultBounds(&p.SubstitutionBounds, constants.DefaultSubstitutionBoundMin, constants.DefaultSubstitutionBoundMax)
	setDefault(&p.UnknownMealEnergy, constants.DefaultUnknownMealEnergy)
	setDefault(&p.MacroLossFactor, constants.DefaultMacroLossFactor)
	setDefault(&p.DistributionActivation, constants.DefaultDistributionActivation)
	setDefault(&p.Epsilon, constants.DefaultEpsilon)
	setDefault(&p.DeviationWarning, constants.DefaultDeviationWarning)
	setDefault(&p.SwapDeviationWarning, constants.DefaultSwapDeviationWarning)
	if p.TopCandidates <= 0 {
		p.TopCandidates = constants.DefaultTopCandidates
	}
}

// Validate returns an error when the policy cannot drive the solvers.
func (p *PolicyConfig) Validate() error {
	if p == nil {
		return fmt.Errorf("policy configuration cannot be nil")
	}

	p.Normalize()

	seen := make(map[string]string)
	for _, slot := range p.MealSlots {
		if slot.Name == "" {
			return fmt.Errorf("meal slot name cannot be empty")
		}
		if !finite(slot.Share) || slot.Share < 0 || slot.Share > 1 {
			return fmt.Errorf("meal slot %q share %g must be within [0, 1]", slot.Name, slot.Share)
		}
		for _, key := range append([]string{slot.Name}, slot.Aliases...) {
			if owner, ok := seen[key]; ok {
				return fmt.Errorf("meal slot name %q is used by both %q and %q", key, owner, slot.Name)
			}
			seen[key] = slot.Name
		}
	}

	for i, w := range p.MacroWeights.Vector() {
		if !finite(w) || w < 0 {
			return fmt.Errorf("%s weight %g must be a non-negative number", nutrition.MacroNames[i], w)
		}
	}

	fractions := []struct {
		name  string
		value float64
	}{
		{"shortageThreshold", p.ShortageThreshold},
		{"tightBoundTrigger", p.TightBoundTrigger},
		{"distributionActivation", p.DistributionActivation},
		{"deviationWarning", p.DeviationWarning},
		{"swapDeviationWarning", p.SwapDeviationWarning},
	}
	for _, f := range fractions {
		if !finite(f.value) || f.value <= 0 || f.value > 1 {
			return fmt.Errorf("%s %g must be within (0, 1]", f.name, f.value)
		}
	}

	bounds := []struct {
		name  string
		value nutrition.Bounds
	}{
		{"tightBounds", p.TightBounds},
		{"menuBounds", p.MenuBounds},
		{"substitutionBounds", p.SubstitutionBounds},
	}
	for _, b := range bounds {
		if !b.value.Valid() {
			return fmt.Errorf("%s [%g, %g] must satisfy 0 < min <= max", b.name, b.value.Min, b.value.Max)
		}
	}

	if !finite(p.ShortageWeight) || p.ShortageWeight < 0 {
		return fmt.Errorf("shortageWeight %g must be non-negative", p.ShortageWeight)
	}
	if !finite(p.ShortageCeilingScale) || p.ShortageCeilingScale <= 0 {
		return fmt.Errorf("shortageCeilingScale %g must be positive", p.ShortageCeilingScale)
	}
	if !finite(p.UnknownMealEnergy) || p.UnknownMealEnergy < 0 {
		return fmt.Errorf("unknownMealEnergy %g must be non-negative", p.UnknownMealEnergy)
	}
	if !finite(p.MacroLossFactor) || p.MacroLossFactor <= 0 {
		return fmt.Errorf("macroLossFactor %g must be positive", p.MacroLossFactor)
	}
	if !finite(p.Epsilon) || p.Epsilon <= 0 {
		return fmt.Errorf("epsilon %g must be positive", p.Epsilon)
	}
	if !finite(p.MaxCandidateLoss) || p.MaxCandidateLoss < 0 {
		return fmt.Errorf("maxCandidateLoss %g must be non-negative", p.MaxCandidateLoss)
	}

	return nil
}

// SlotIndex resolves a dish's meal label to a slot. Exact name or alias
// matches win; otherwise the first slot whose name or alias occurs inside
// the label is used, so "Bữa trưa" resolves to lunch.
func (p PolicyConfig) SlotIndex(meal string) (int, bool) {
	label := canonicalMeal(meal)
	if label == "" {
		return -1, false
	}

	for i, slot := range p.MealSlots {
		if slot.Name == label {
			return i, true
		}
		for _, alias := range slot.Aliases {
			if alias == label {
				return i, true
			}
		}
	}

	for i, slot := range p.MealSlots {
		if slot.Name != "" && strings.Contains(label, slot.Name) {
			return i, true
		}
		for _, alias := range slot.Aliases {
			if strings.Contains(label, alias) {
				return i, true
			}
		}
	}
	return -1, false
}

// SlotEnergy returns the energy target of a dish's meal slot: the slot's share
// of the daily energy, or UnknownMealEnergy when the label matches no slot.
func (p PolicyConfig) SlotEnergy(meal string, dailyEnergy float64) float64 {
	if i, ok := p.SlotIndex(meal); ok {
		return dailyEnergy * p.MealSlots[i].Share
	}
	return p.UnknownMealEnergy
}

// Weights returns the base macro weights.
func (p PolicyConfig) Weights() nutrition.Vector {
	return p.MacroWeights.Vector()
}

func canonicalMeal(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func setDefault(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

func setDefaultBounds(b *nutrition.Bounds, min, max float64) {
	if *b == (nutrition.Bounds{}) {
		*b = nutrition.Bounds{Min: min, Max: max}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
