package config

import (
	"fmt"

	"github.com/iwvelando/portion-planner/pkg/constants"
	"github.com/iwvelando/portion-planner/pkg/solver"
)

// SolverConfig holds termination settings for both minimizers.
type SolverConfig struct {
	MaxIterations     int     `yaml:"maxIterations,omitempty" mapstructure:"maxIterations"`
	GradientTolerance float64 `yaml:"gradientTolerance,omitempty" mapstructure:"gradientTolerance"`
	FunctionTolerance float64 `yaml:"functionTolerance,omitempty" mapstructure:"functionTolerance"`

	ScalarTolerance      float64 `yaml:"scalarTolerance,omitempty" mapstructure:"scalarTolerance"`
	ScalarMaxEvaluations int     `yaml:"scalarMaxEvaluations,omitempty" mapstructure:"scalarMaxEvaluations"`
}

// DefaultSolver returns the default solver settings.
func DefaultSolver() SolverConfig {
	var s SolverConfig
	s.Normalize()
	return s
}

// Normalize fills unset values with defaults.
func (s *SolverConfig) Normalize() {
	if s.MaxIterations <= 0 {
		s.MaxIterations = constants.DefaultMaxIterations
	}
	if s.GradientTolerance <= 0 {
		s.GradientTolerance = constants.DefaultGradientTolerance
	}
	if s.FunctionTolerance <= 0 {
		s.FunctionTolerance = constants.DefaultFunctionTolerance
	}
	if s.ScalarTolerance <= 0 {
		s.ScalarTolerance = constants.DefaultScalarTolerance
	}
	if s.ScalarMaxEvaluations <= 0 {
		s.ScalarMaxEvaluations = constants.DefaultScalarMaxEvaluations
	}
}

// Validate rejects non-finite tolerances.
func (s *SolverConfig) Validate() error {
	s.Normalize()
	for name, v := range map[string]float64{
		"gradientTolerance": s.GradientTolerance,
		"functionTolerance": s.FunctionTolerance,
		"scalarTolerance":   s.ScalarTolerance,
	} {
		if !finite(v) {
			return fmt.Errorf("%s must be finite", name)
		}
	}
	return nil
}

// Settings converts to least-squares solver settings.
func (s SolverConfig) Settings() solver.Settings {
	return solver.Settings{
		MaxIterations:     s.MaxIterations,
		GradientTolerance: s.GradientTolerance,
		FunctionTolerance: s.FunctionTolerance,
	}
}

// ScalarSettings converts to scalar minimizer settings.
func (s SolverConfig) ScalarSettings() solver.ScalarSettings {
	return solver.ScalarSettings{
		Tolerance:      s.ScalarTolerance,
		MaxEvaluations: s.ScalarMaxEvaluations,
	}
}
