package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/componentry/internal/config"
	"github.com/zjrosen/componentry/internal/log"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	closeLog = func() {}
)

// defaultConfigPath is where a default config is written when none exists.
const defaultConfigPath = ".componentry/config.yaml"

var rootCmd = &cobra.Command{
	Use:   "componentry",
	Short: "Inspect and run component manifests",
	Long: `Componentry resolves components by role and hint and wires their
dependencies. This tool validates, renders, compares and live-reloads the
YAML manifests that describe them.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { closeLog() },
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .componentry/config.yaml, then ~/.config/componentry/config.yaml)")
	rootCmd.PersistentFlags().String("log", "", "write debug log to this file")
	rootCmd.PersistentFlags().String("log-level", "", "minimum log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("strict", false, "reject duplicate role/hint registrations")

	_ = viper.BindPFlag("log.path", rootCmd.PersistentFlags().Lookup("log"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("registry.strict", rootCmd.PersistentFlags().Lookup("strict"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("log.path", defaults.Log.Path)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("registry.strict", defaults.Registry.Strict)
	viper.SetDefault("observation.dispatch_errors", defaults.Observation.DispatchErrors)
	viper.SetDefault("manifest.path", defaults.Manifest.Path)
	viper.SetDefault("manifest.debounce", defaults.Manifest.Debounce)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .componentry/config.yaml (current directory)
		// 2. ~/.config/componentry/config.yaml (user config)
		if _, err := os.Stat(defaultConfigPath); err == nil {
			viper.SetConfigFile(defaultConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "componentry"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .componentry/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if writeErr := config.WriteDefaultConfig(defaultConfigPath); writeErr == nil {
				viper.SetConfigFile(defaultConfigPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// setup validates the loaded config and starts the debug log.
func setup(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Log.Path != "" {
		closer, err := log.Init(cfg.Log.Path)
		if err != nil {
			return fmt.Errorf("opening log: %w", err)
		}
		closeLog = closer
		log.SetMinLevel(log.ParseLevel(cfg.Log.Level))
	}

	log.Debug(log.CatCLI, "command started",
		"command", cmd.CommandPath(),
		"config", viper.ConfigFileUsed())
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
