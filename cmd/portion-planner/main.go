package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/iwvelando/portion-planner/internal/config"
	"github.com/iwvelando/portion-planner/internal/planner"
	"github.com/iwvelando/portion-planner/internal/request"
	"github.com/iwvelando/portion-planner/pkg/constants"
	"github.com/iwvelando/portion-planner/pkg/output"
	"github.com/iwvelando/portion-planner/pkg/validation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	// Parse log level
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	// Determine log format
	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	// Configure encoder
	var zapConfig zap.Config
	switch format {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	// Results go to stdout, so logs default to stderr
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	// Configure output file if specified
	if loggingConfig.OutputFile != "" {
		// Ensure the directory exists
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}

		// Test if we can create/write to the file
		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zapConfig.Build()
}

// resolveConfigPath returns "" when the default config file is absent so
// the built-in defaults apply. An explicitly named file must exist.
func resolveConfigPath(path string) string {
	if path != constants.DefaultConfigFile {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return path
}

// render writes a plan in the requested output format.
func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case constants.OutputFormatJSON:
		return output.JSON(w, v)
	case constants.OutputFormatYAML:
		return output.YAML(w, v)
	}

	// Pretty output depends on the plan type
	switch plan := v.(type) {
	case *planner.MenuPlan:
		return output.PrettyMenu(w, plan)
	case *planner.SubstitutionPlan:
		return output.PrettySubstitution(w, plan)
	}
	return fmt.Errorf("no pretty output for %T", v)
}

// run dispatches a request to the planner.
func run(ctx context.Context, logger *zap.Logger, conf *config.Configuration, req *request.Request) (interface{}, error) {
	p, err := planner.New(logger, conf)
	if err != nil {
		return nil, err
	}

	switch req.Kind {
	case request.KindMenu:
		return p.PlanMenu(ctx, req.Target, req.Menu)
	case request.KindSubstitution:
		return p.Substitute(ctx, req.Old, planner.StaticCandidates(req.Candidates), req.Top)
	}
	return nil, request.ErrUnknownKind
}

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	requestLocation := flag.String("request", "", "path to a JSON or YAML request file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, json, yaml")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	envFile := flag.String("env-file", ".env", "path to an environment file with PORTION_ overrides")
	flag.Parse()

	// Load environment overrides before the configuration reads them.
	// Only an explicitly named env file has to exist
	envOptional := *envFile == ".env"
	if err := config.LoadEnvFile(*envFile, envOptional); err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load env file %s\", \"error\": \"%v\"}\n", *envFile, err)
		os.Exit(1)
	}

	// Load the config file to get logging configuration
	conf, err := config.LoadConfiguration(resolveConfigPath(*configLocation))
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	// Initialize logging based on config and CLI override
	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	// Load the request
	if *requestLocation == "" {
		logger.Fatal("a request file is required",
			zap.String("op", "main"),
		)
	}
	req, err := request.Load(*requestLocation)
	if err != nil {
		logger.Fatal("failed to load request",
			zap.String("op", "main"),
			zap.String("request", *requestLocation),
			zap.Error(err),
		)
	}
	logger.Debug("request loaded",
		zap.String("op", "main"),
		zap.Stringer("kind", req.Kind),
	)

	// Stop planning on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Run the planner to get the portions.
	result, err := run(ctx, logger, conf, req)
	if err != nil {
		logger.Fatal("failed to plan portions",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	// Handle output.
	if err := render(os.Stdout, outputFormat, result); err != nil {
		logger.Fatal("failed to write output",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}
