// Package constants provides shared constants for the portion-planner application.
package constants

// Rounding precision for reported values.
const (
	// ScalePrecision rounds portion scales to two decimals.
	ScalePrecision = 100

	// LossPrecision rounds optimization losses to four decimals.
	LossPrecision = 10000
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"

	// OutputFormatYAML is the YAML output format
	OutputFormatYAML = "yaml"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// EnvPrefix prefixes environment variable overrides, e.g. PORTION_LOGGING_LEVEL.
	EnvPrefix = "PORTION"
)

// Meal slot defaults. Shares are fractions of the daily target.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"

	DefaultBreakfastShare = 0.25
	DefaultLunchShare     = 0.40
	DefaultDinnerShare    = 0.35
)

// Macro weights used by both solvers.
const (
	DefaultEnergyWeight  = 3.0
	DefaultProteinWeight = 2.0
	DefaultFatWeight     = 1.0
	DefaultCarbWeight    = 1.0
)

// Policy thresholds for the menu optimizer.
const (
	// DefaultShortageThreshold is the fraction of the active target below which a nutrient's
	// maximum feasible amount counts as a structural shortage.
	DefaultShortageThreshold = 0.7

	// DefaultShortageWeight replaces the weight of a nutrient in structural shortage.
	DefaultShortageWeight = 0.01

	// DefaultShortageCeilingScale multiplies per-serving amounts to estimate the maximum feasible amount.
	DefaultShortageCeilingScale = 2.5

	// DefaultTightBoundTrigger is the fraction of a slot's energy target above which a single dish
	// gets the tight bound.
	DefaultTightBoundTrigger = 0.9

	DefaultTightBoundMin = 0.3
	DefaultTightBoundMax = 1.0

	DefaultMenuBoundMin = 0.5
	DefaultMenuBoundMax = 1.5

	DefaultSubstitutionBoundMin = 0.5
	DefaultSubstitutionBoundMax = 2.0

	// DefaultUnknownMealEnergy is the slot energy target for dishes outside the slot vocabulary.
	DefaultUnknownMealEnergy = 500.0

	// DefaultMacroLossFactor multiplies the macro term of the menu objective.
	DefaultMacroLossFactor = 2.0

	// DefaultDistributionActivation is the summed slot share above which the per-slot energy
	// distribution term joins the menu objective.
	DefaultDistributionActivation = 0.5

	// DefaultEpsilon keeps relative errors finite when a target is zero.
	DefaultEpsilon = 1e-5
)

// Reporting defaults
const (
	// DefaultDeviationWarning flags menu nutrients deviating more than 15% from target.
	DefaultDeviationWarning = 0.15

	// DefaultSwapDeviationWarning flags substitution nutrients deviating more than 20% from the old dish.
	DefaultSwapDeviationWarning = 0.20

	// DefaultTopCandidates is how many ranked substitution candidates are kept.
	DefaultTopCandidates = 10

	// CollapsedWeightCeiling separates collapsed nutrient weights from regular ones in reports.
	CollapsedWeightCeiling = 0.1
)

// Solver defaults
const (
	DefaultMaxIterations        = 200
	DefaultGradientTolerance    = 1e-8
	DefaultFunctionTolerance    = 1e-12
	DefaultScalarTolerance      = 1e-5
	DefaultScalarMaxEvaluations = 500
)
