package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/qcircuit/internal/config"
	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/presentation"
	"github.com/zjrosen/qcircuit/internal/tracing"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	debugFlag   bool
	verboseFlag bool
	statsFlag   bool

	tracer     *tracing.Provider
	logCleanup func()

	defaultPath = filepath.Join(".qcircuit", "config.yaml")
)

var rootCmd = &cobra.Command{
	Use:   "qcircuit",
	Short: "Compile, trace and simulate quantum circuits",
	Long: `qcircuit loads circuits from YAML files (or the embedded examples), runs the
freeze/flatten/invert compile passes over them, traces them symbolically and samples
them on a state-vector simulator. Sampled runs are kept in a local history database.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if statsFlag {
			stats, err := dispatch.CallStats(prometheus.DefaultGatherer)
			if err != nil {
				return err
			}
			if err := presentation.NewFormatter(cmd.ErrOrStderr()).FormatStats(stats); err != nil {
				return err
			}
		}
		return teardown(cmd.Context())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .qcircuit/config.yaml, then ~/.config/qcircuit/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs to log.path (default: debug.log)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"write debug logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&statsFlag, "stats", false,
		"print dispatch counters to stderr when the command finishes")
}

func initConfig() {
	cfg = config.Defaults()
	viper.Reset()
	viper.SetDefault("log.level", cfg.Log.Level)
	viper.SetDefault("runtime.seed", cfg.Runtime.Seed)
	viper.SetDefault("runtime.shots", cfg.Runtime.Shots)
	viper.SetDefault("cache.enabled", cfg.Cache.Enabled)
	viper.SetDefault("store.enabled", cfg.Store.Enabled)
	viper.SetDefault("store.path", cfg.Store.Path)
	viper.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", cfg.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", cfg.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", cfg.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)

	viper.SetEnvPrefix("QCIRCUIT")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .qcircuit/config.yaml (current directory)
		// 2. ~/.config/qcircuit/config.yaml (user config)
		if _, err := os.Stat(defaultPath); err == nil {
			viper.SetConfigFile(defaultPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "qcircuit"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Nothing anywhere: seed the user config so 'config set' has a file to edit.
			if path := userConfigPath(); path != "" && config.WriteDefaultConfig(path) == nil {
				viper.SetConfigFile(path)
				_ = viper.ReadInConfig()
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "qcircuit", "config.yaml")
}

// configFilePath returns the file 'config set' edits.
func configFilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	return defaultPath
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	debug := os.Getenv("QCIRCUIT_DEBUG") != "" || debugFlag
	switch {
	case verboseFlag:
		log.InitWriter(cmd.ErrOrStderr())
	case debug || cfg.Log.Path != "":
		logPath := cfg.Log.Path
		if logPath == "" {
			logPath = "debug.log"
		}
		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing log: %w", err)
		}
		logCleanup = cleanup
	}
	if debug || verboseFlag {
		log.SetMinLevel(log.LevelDebug)
	} else {
		log.SetMinLevel(log.ParseLevel(cfg.Log.Level))
	}
	log.Info(log.CatConfig, "qcircuit starting", "version", version, "config", viper.ConfigFileUsed())

	dispatch.SetMatchCaching(cfg.Cache.Enabled)

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	tracer = provider
	return nil
}

func teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	if tracer != nil {
		err = tracer.Shutdown(ctx)
		tracer = nil
	}
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
	return err
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
