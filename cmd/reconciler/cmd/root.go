package cmd

import (
	"fmt"

	"transfer-reconciliation-service/cmd/reconciler/config"
	"transfer-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// v holds file, environment and flag settings for every command
	v = config.NewViper()

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Inter-account transfer detection service",
	Long: `Reconciler finds bank transactions that are two legs of the same
transfer between accounts. Confident pairs are linked automatically, the rest
are queued for human review.

Configuration comes from an optional config file, TRANSFERS_* environment
variables and flags, in increasing order of precedence.

Examples:
  reconciler serve
  reconciler detect --statement 7d0c... --dry-run
  reconciler detect --account acct-1 --from 2024-03-01 --to 2024-03-31 --output-format json
  reconciler migrate up`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewCLIErrorHandler().HandleError(err)
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json")

	// Bind flags to viper
	v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads the config file, decodes the configuration and installs
// the global logger.
func initConfig(cmd *cobra.Command, _ []string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return configError("config", cfgFile, err)
		}
	}

	if verbose && !cmd.Flags().Changed("log-level") {
		v.Set("log.level", string(logger.DebugLevel))
	}

	loaded, err := config.Load(v)
	if err != nil {
		return configError("configuration", cfgFile, err)
	}
	cfg = loaded

	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return configError("log", cfg.Log, err)
	}
	logger.SetGlobalLogger(log)

	if cfgFile != "" {
		log.WithField("config_file", v.ConfigFileUsed()).Debug("Configuration loaded")
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(ver, c, d string) {
	version = ver
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
