// Package cmd implements the roundtable command line interface.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MightyPrytanis/roundtable/internal/config"
	"github.com/MightyPrytanis/roundtable/internal/log"
)

var (
	version = "dev"
	cfgFile string
	debug   bool
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "roundtable",
	Short:   "Sequential multi-agent collaborative workflows",
	Long: `Roundtable runs a user query through an ordered pipeline of agents.
Each agent contributes one step, building on every prior step's output,
until the final agent produces the complete deliverable.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/roundtable/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug logging")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("storage_path", defaults.StoragePath)
	viper.SetDefault("attachments_dir", defaults.AttachmentsDir)
	viper.SetDefault("log_path", defaults.LogPath)
	viper.SetDefault("engine.step_timeout", defaults.Engine.StepTimeout)
	viper.SetDefault("engine.preview_limit", defaults.Engine.PreviewLimit)
	viper.SetDefault("engine.first_step_budget", defaults.Engine.FirstStepBudget)
	viper.SetDefault("engine.digest_budget", defaults.Engine.DigestBudget)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .roundtable/config.yaml (current directory)
		// 2. ~/.config/roundtable/config.yaml (user config)
		if _, err := os.Stat(".roundtable/config.yaml"); err == nil {
			viper.SetConfigFile(".roundtable/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "roundtable"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "warning: reading config: %v\n", err)
		}
	}

	_ = viper.Unmarshal(&cfg)

	if debug || os.Getenv("ROUNDTABLE_DEBUG") != "" {
		_ = os.MkdirAll(filepath.Dir(cfg.LogPath), 0750)
		if _, err := log.Init(cfg.LogPath); err != nil {
			fmt.Fprintf(os.Stderr, "warning: initializing debug log: %v\n", err)
		}
	}
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
