// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AliSaadatV/AcmGENTIC/internal/store"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived runs",
	Long: `History lists completed runs from the archive, newest first. Filter by
variant with --chrom, --pos, --ref, and --alt, or by decision.`,
	RunE: runHistory,
}

var historyExperimentsCmd = &cobra.Command{
	Use:   "experiments",
	Short: "Search archived experiments across runs",
	Long: `Experiments searches every archived run's extracted experiments by PMID,
assay type substring, or evaluation.`,
	RunE: runHistoryExperiments,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>...",
	Short: "Remove runs from the archive",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistoryDelete,
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts, err := listOptsFromFlags(cmd)
	if err != nil {
		return err
	}
	runs, err := s.List(context.Background(), opts)
	if err != nil {
		return err
	}

	if format, _ := cmd.Flags().GetString("format"); format != "" {
		return store.Encode(os.Stdout, types.OutputFormat(format), runs)
	}
	formatRunTable(os.Stdout, runs)
	return nil
}

func runHistoryExperiments(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	pmid, _ := cmd.Flags().GetString("pmid")
	assay, _ := cmd.Flags().GetString("assay")
	evaluation, _ := cmd.Flags().GetString("evaluation")
	limit, _ := cmd.Flags().GetInt("limit")

	q := store.ExperimentQuery{PMID: pmid, Assay: assay, Evaluation: types.Evaluation(evaluation), MaxResults: limit}
	if q.Evaluation != "" && !q.Evaluation.Valid() {
		return fmt.Errorf("unknown evaluation %q", evaluation)
	}

	hits, err := s.FindExperiments(context.Background(), q)
	if err != nil {
		return err
	}

	if format, _ := cmd.Flags().GetString("format"); format != "" {
		return store.Encode(os.Stdout, types.OutputFormat(format), hits)
	}
	formatExperimentTable(os.Stdout, hits)
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, id := range args {
		if err := s.Delete(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("deleted run %s\n", id)
	}
	return nil
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("store-dir"); dir != "" {
		cfg.Store.Dir = dir
	}
	return store.NewStore(cfg.Store)
}

func listOptsFromFlags(cmd *cobra.Command) (store.ListOptions, error) {
	chrom, _ := cmd.Flags().GetString("chrom")
	pos, _ := cmd.Flags().GetInt("pos")
	ref, _ := cmd.Flags().GetString("ref")
	alt, _ := cmd.Flags().GetString("alt")
	decision, _ := cmd.Flags().GetString("decision")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := store.ListOptions{Decision: types.Decision(decision), MaxResults: limit}
	if chrom != "" || pos != 0 || ref != "" || alt != "" {
		vi, err := types.NewVariantIdentity(chrom, pos, ref, alt)
		if err != nil {
			return opts, err
		}
		opts.Variant = &vi
	}
	return opts, nil
}

func formatRunTable(w io.Writer, runs []store.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-8s  %-8s  %-10s  %-6s  %-6s  %s\n",
		"Run", "Variant", "Gene", "Decision", "Strength", "Papers", "Failed", "Started")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-20s  %-8s  %-8s  %-10s  %-6s  %-6d  %s\n",
			r.RunID, truncate(r.Variant, 20), truncate(r.GeneSymbol, 8), r.Decision, r.Strength,
			fmt.Sprintf("%d/%d", r.Functional, r.Candidates), r.Failures,
			r.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
}

func formatExperimentTable(w io.Writer, hits []store.ExperimentHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No experiments found.")
		return
	}

	fmt.Fprintf(w, "%-10s  %-30s  %-20s  %-26s  %-20s  %s\n",
		"PMID", "Assay", "System", "Effect", "Evaluation", "Variant")
	fmt.Fprintln(w, strings.Repeat("-", 130))
	for _, h := range hits {
		fmt.Fprintf(w, "%-10s  %-30s  %-20s  %-26s  %-20s  %s\n",
			h.PMID, truncate(h.AssayType, 30), truncate(h.System, 20), h.EffectDirection, h.Evaluation, h.Variant)
	}
	fmt.Fprintf(w, "\n%d experiments\n", len(hits))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	historyCmd.PersistentFlags().String("store-dir", "", "directory of the run archive database")
	historyCmd.PersistentFlags().String("format", "", "machine-readable output: json or yaml")
	historyCmd.PersistentFlags().Int("limit", 0, "maximum results (0 = default of 20)")

	historyCmd.Flags().String("chrom", "", "filter by chromosome")
	historyCmd.Flags().Int("pos", 0, "filter by position")
	historyCmd.Flags().String("ref", "", "filter by reference allele")
	historyCmd.Flags().String("alt", "", "filter by alternate allele")
	historyCmd.Flags().String("decision", "", "filter by decision: PS3, BS3, or none")

	historyExperimentsCmd.Flags().String("pmid", "", "filter by PMID")
	historyExperimentsCmd.Flags().String("assay", "", "filter by assay type substring")
	historyExperimentsCmd.Flags().String("evaluation", "", "filter by evaluation")

	historyCmd.AddCommand(historyExperimentsCmd, historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}
