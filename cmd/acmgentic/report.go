// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AliSaadatV/AcmGENTIC/internal/report"
	"github.com/AliSaadatV/AcmGENTIC/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Re-render an archived run",
	Long: `Report loads a completed run from the archive and renders it again in any
output format. Text reports go to stdout; other formats are saved under the
output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if f, _ := cmd.Flags().GetString("output-format"); f != "" {
		cfg.Report.Format, err = report.ParseFormat(f)
	} else {
		cfg.Report.Format, err = report.ParseFormat(string(cfg.Report.Format))
	}
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("output-dir"); dir != "" {
		cfg.Report.OutputDir = dir
	}
	if dir, _ := cmd.Flags().GetString("store-dir"); dir != "" {
		cfg.Store.Dir = dir
	}

	s, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	return emitReport(res, cfg.Report)
}

func init() {
	reportCmd.Flags().String("output-format", "", "report format: html, json, yaml, or text")
	reportCmd.Flags().String("output-dir", "", "directory for saved reports")
	reportCmd.Flags().String("store-dir", "", "directory of the run archive database")

	rootCmd.AddCommand(reportCmd)
}
