package main

import (
	"fmt"
	"os"

	"github.com/aretw0/weft/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft runs process images over a tuple space",
	Long: `Weft parks bytecode processes on channels of a tuple space and drives
them in scheduling rounds until they complete, fail or wait for more input.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a weft.yaml configuration file")
	rootCmd.PersistentFlags().String("backend", "", "Tuple space backend (memory, pathtree, badger, redis)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig reads the configuration file and environment, then applies the
// flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("backend") {
		cfg.Backend, _ = cmd.Flags().GetString("backend")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if f := cmd.Flags().Lookup("max-rounds"); f != nil && f.Changed {
		cfg.MaxRounds, _ = cmd.Flags().GetInt("max-rounds")
	}
	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		cfg.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if f := cmd.Flags().Lookup("listen"); f != nil && f.Changed {
		cfg.Listen, _ = cmd.Flags().GetString("listen")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
