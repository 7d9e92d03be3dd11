package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"promptstore/pkg/config"
)

var (
	// Persistent flags.
	cfgPath string
	dbFlag  string
	verbose bool

	// Shared per-invocation state, built in PersistentPreRunE.
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd is the promptstore entry point.
var rootCmd = &cobra.Command{
	Use:   "promptstore",
	Short: "SQLite-backed store for parameterized AI prompt templates",
	Long: `promptstore manages a library of parameterized AI prompt templates in a
single SQLite file: schema migrations, legacy JSON import, integrity
validation, template rendering, and usage tracking.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbFlag != "" {
			cfg.Database.Path = dbFlag
		}
		logger, err = buildLogger(cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultConfigFile, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(useCmd)
}

// buildLogger constructs the CLI logger from configuration; --verbose wins
// over the configured level.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Log.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if cfg.Log.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
		}
		level = parsed
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// databasePath resolves the database location for commands that accept it as
// an optional positional argument.
func databasePath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Database.Path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
