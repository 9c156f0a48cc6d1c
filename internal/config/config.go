// Package config defines the data structures related to configuration and
// includes functions for loading and parsing the config.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iwvelando/portion-planner/pkg/constants"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for portion-planner.
type Configuration struct {
	Logging LoggingConfig `yaml:"logging,omitempty" mapstructure:"logging"`
	Output  OutputConfig  `yaml:"output,omitempty" mapstructure:"output"`
	Policy  PolicyConfig  `yaml:"policy,omitempty" mapstructure:"policy"`
	Solver  SolverConfig  `yaml:"solver,omitempty" mapstructure:"solver"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, json, yaml
}

// Default returns a configuration with every default applied.
func Default() *Configuration {
	conf := &Configuration{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Output:  OutputConfig{Format: constants.OutputFormatPretty},
	}
	conf.Normalize()
	return conf
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path loads defaults plus environment
// overrides.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %w", err)
		}
	}

	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %w", err)
	}
	return decode(v)
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an
// error when optional is true.
func LoadEnvFile(path string, optional bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to load env file %s: %w", path, err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every scalar key so environment overrides apply even
// when the key is absent from the file.
func setDefaults(v *viper.Viper) {
	p := DefaultPolicy()
	s := DefaultSolver()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)

	v.SetDefault("policy.macroWeights.energy", p.MacroWeights.Energy)
	v.SetDefault("policy.macroWeights.protein", p.MacroWeights.Protein)
	v.SetDefault("policy.macroWeights.fat", p.MacroWeights.Fat)
	v.SetDefault("policy.macroWeights.carb", p.MacroWeights.Carb)
	v.SetDefault("policy.shortageThreshold", p.ShortageThreshold)
	v.SetDefault("policy.shortageWeight", p.ShortageWeight)
	v.SetDefault("policy.shortageCeilingScale", p.ShortageCeilingScale)
	v.SetDefault("policy.tightBoundTrigger", p.TightBoundTrigger)
	v.SetDefault("policy.tightBounds.min", p.TightBounds.Min)
	v.SetDefault("policy.tightBounds.max", p.TightBounds.Max)
	v.SetDefault("policy.menuBounds.min", p.MenuBounds.Min)
	v.SetDefault("policy.menuBounds.max", p.MenuBounds.Max)
	v.SetDefault("policy.substitutionBounds.min", p.SubstitutionBounds.Min)
	v.SetDefault("policy.substitutionBounds.max", p.SubstitutionBounds.Max)
	v.SetDefault("policy.unknownMealEnergy", p.UnknownMealEnergy)
	v.SetDefault("policy.macroLossFactor", p.MacroLossFactor)
	v.SetDefault("policy.distributionActivation", p.DistributionActivation)
	v.SetDefault("policy.epsilon", p.Epsilon)
	v.SetDefault("policy.deviationWarning", p.DeviationWarning)
	v.SetDefault("policy.swapDeviationWarning", p.SwapDeviationWarning)
	v.SetDefault("policy.topCandidates", p.TopCandidates)
	v.SetDefault("policy.maxCandidateLoss", p.MaxCandidateLoss)

	v.SetDefault("solver.maxIterations", s.MaxIterations)
	v.SetDefault("solver.gradientTolerance", s.GradientTolerance)
	v.SetDefault("solver.functionTolerance", s.FunctionTolerance)
	v.SetDefault("solver.scalarTolerance", s.ScalarTolerance)
	v.SetDefault("solver.scalarMaxEvaluations", s.ScalarMaxEvaluations)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	configuration.Normalize()
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Normalize fills defaults for every unset value.
func (c *Configuration) Normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" {
		c.Output.Format = constants.OutputFormatPretty
	}
	c.Policy.Normalize()
	c.Solver.Normalize()
}

// Validate returns the first policy or solver problem found.
func (c *Configuration) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("invalid solver settings: %w", err)
	}
	return nil
}
