// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the acmgentic CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/AliSaadatV/AcmGENTIC/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the acmgentic CLI.
var rootCmd = &cobra.Command{
	Use:   "acmgentic",
	Short: "Collect functional evidence for ACMG PS3/BS3 classification",
	Long: `acmgentic turns a genomic variant into an ACMG PS3/BS3 functional-evidence
call. It annotates the variant with Ensembl VEP, finds papers mentioning it
through LitVar2, screens them for functional experiments with an LLM,
extracts each experiment, and integrates the evidence into a decision.

Completed runs are archived in a local SQLite database; use history and
report to browse and re-render them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		applied, err := secrets.ApplyEnv(s)
		if err != nil {
			return err
		}
		if len(applied) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", applied)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./acmgentic.yaml or ~/.config/acmgentic/acmgentic.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "human-readable debug logging")
}

func initConfig() {
	// A missing .env is fine; the variables may come from the environment.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("acmgentic")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "acmgentic"))
		}
	}

	viper.SetEnvPrefix("ACMGENTIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger returns a production JSON logger, or a development console
// logger when verbose is set. Both write to stderr.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
