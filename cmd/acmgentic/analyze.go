// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/AliSaadatV/AcmGENTIC/internal/acquire"
	"github.com/AliSaadatV/AcmGENTIC/internal/annotate"
	"github.com/AliSaadatV/AcmGENTIC/internal/convert"
	"github.com/AliSaadatV/AcmGENTIC/internal/extract"
	"github.com/AliSaadatV/AcmGENTIC/internal/literature"
	"github.com/AliSaadatV/AcmGENTIC/internal/pipeline"
	"github.com/AliSaadatV/AcmGENTIC/internal/report"
	"github.com/AliSaadatV/AcmGENTIC/internal/store"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Collect and integrate functional evidence for one variant",
	Long: `Analyze annotates a variant, finds papers that mention it, screens them for
functional experiments, extracts each experiment, and applies the PS3/BS3
integration rule.

Failures of individual lookups, papers, or LLM calls are recorded in the
report and do not stop the run. Only an invalid variant or an unsupported
assembly is fatal.`,
	Example: `  acmgentic analyze --chrom 2 --pos 162279995 --ref C --alt G
  acmgentic analyze --chrom chr17 --pos 43045712 --ref T --alt C --assembly GRCh38 --output-format text`,
	RunE: runAnalyze,
}

// flagKeys binds analyze flags to config keys.
var flagKeys = map[string]string{
	"provider":            "ai.provider",
	"model":               "ai.model",
	"temperature":         "ai.temperature",
	"output-format":       "report.format",
	"output-dir":          "report.output_dir",
	"pdf-path":            "pdf_dir",
	"concurrency":         "concurrency",
	"item-timeout":        "item_timeout",
	"min-controls-length": "assessment.min_controls_length",
	"store-dir":           "store.dir",
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if noAnnotation, _ := cmd.Flags().GetBool("no-annotation"); noAnnotation {
		viper.Set("annotation.enabled", false)
	}
	if download, _ := cmd.Flags().GetBool("download-pdfs"); download {
		viper.Set("acquisition.enabled", true)
	}
	if convertPDFs, _ := cmd.Flags().GetBool("convert-pdfs"); convertPDFs {
		viper.Set("conversion.enabled", true)
	}
	if noStore, _ := cmd.Flags().GetBool("no-store"); noStore {
		viper.Set("store.enabled", false)
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(string(cfg.Report.Format))
	if err != nil {
		return err
	}
	cfg.Report.Format = format

	req := requestFromFlags(cmd)

	log, err := newLogger(cmd)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := buildCollaborators(ctx, cfg)
	if err != nil {
		return err
	}

	p := pipeline.New(cfg, c, log)
	p.Progress = os.Stderr

	res, err := p.Run(ctx, req)
	if err != nil {
		return err
	}

	if cfg.Store.Enabled {
		archiveRun(ctx, cfg.Store, res, log)
	}

	return emitReport(res, cfg.Report)
}

func requestFromFlags(cmd *cobra.Command) pipeline.Request {
	chrom, _ := cmd.Flags().GetString("chrom")
	pos, _ := cmd.Flags().GetInt("pos")
	ref, _ := cmd.Flags().GetString("ref")
	alt, _ := cmd.Flags().GetString("alt")
	assembly, _ := cmd.Flags().GetString("assembly")
	return pipeline.Request{Chrom: chrom, Pos: pos, Ref: ref, Alt: alt, Assembly: assembly}
}

// buildCollaborators wires the HTTP clients for every pipeline stage and,
// when enabled, the container-backed PDF converter.
func buildCollaborators(ctx context.Context, cfg types.PipelineConfig) (pipeline.Collaborators, error) {
	backend, err := extract.NewBackend(cfg.AI, &http.Client{Timeout: cfg.AI.Timeout})
	if err != nil {
		return pipeline.Collaborators{}, fmt.Errorf("configuring LLM backend: %w", err)
	}

	pubmed := literature.NewPubMedClient(cfg.Literature)
	c := pipeline.Collaborators{
		Lookup:    literature.NewLitVarClient(cfg.Literature),
		Metadata:  pubmed,
		Text:      pubmed,
		Screener:  extract.NewScreener(backend, cfg.AI),
		Extractor: extract.NewExtractor(backend, cfg.AI, cfg.Literature.MaxTextChars),
	}
	if cfg.Annotation.Enabled {
		c.Annotator = annotate.NewVEPClient(cfg.Annotation)
	}
	if cfg.Acquisition.Enabled {
		c.PDFs = acquire.NewDownloader(cfg.Acquisition)
	}
	if cfg.Conversion.Enabled {
		conv, err := newConverter(ctx, cfg.Conversion)
		if err != nil {
			return pipeline.Collaborators{}, err
		}
		c.PDFText = convert.NewCache(conv)
	}
	return c, nil
}

// archiveRun saves res to the run archive. Archive failures are reported
// but do not fail the command.
func archiveRun(ctx context.Context, cfg types.StoreConfig, res *types.Result, log *zap.Logger) {
	s, err := store.NewStore(cfg)
	if err != nil {
		log.Warn("opening run archive", zap.Error(err))
		fmt.Fprintf(os.Stderr, "warning: run not archived: %v\n", err)
		return
	}
	defer s.Close()

	if err := s.Save(ctx, res); err != nil {
		log.Warn("archiving run", zap.String("run_id", res.RunID), zap.Error(err))
		fmt.Fprintf(os.Stderr, "warning: run not archived: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "archived run %s\n", res.RunID)
}

// emitReport prints text reports to stdout and saves every other format
// under the output directory.
func emitReport(res *types.Result, cfg types.ReportConfig) error {
	if cfg.Format == types.OutputText {
		return report.FormatText(res, os.Stdout)
	}
	path, err := report.Save(res, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}

func init() {
	analyzeCmd.Flags().String("chrom", "", "chromosome, with or without the chr prefix")
	analyzeCmd.Flags().Int("pos", 0, "1-based genomic position")
	analyzeCmd.Flags().String("ref", "", "reference allele")
	analyzeCmd.Flags().String("alt", "", "alternate allele")
	analyzeCmd.Flags().String("assembly", "GRCh38", "genome assembly: GRCh38 or GRCh37")
	for _, name := range []string{"chrom", "pos", "ref", "alt"} {
		_ = analyzeCmd.MarkFlagRequired(name)
	}

	analyzeCmd.Flags().String("provider", "", "LLM provider: openai, anthropic, or gemini")
	analyzeCmd.Flags().String("model", "", "LLM model identifier (default depends on provider)")
	analyzeCmd.Flags().Float64("temperature", 0, "LLM sampling temperature")
	analyzeCmd.Flags().String("output-format", "", "report format: html, json, yaml, or text")
	analyzeCmd.Flags().String("output-dir", "", "directory for saved reports")
	analyzeCmd.Flags().String("pdf-path", "", "directory of downloaded papers named {pmid}.pdf")
	analyzeCmd.Flags().Int("concurrency", 0, "concurrent requests per stage")
	analyzeCmd.Flags().Duration("item-timeout", 0, "timeout for each per-paper call")
	analyzeCmd.Flags().Int("min-controls-length", 0, "characters a controls description must exceed to count as high quality")
	analyzeCmd.Flags().String("store-dir", "", "directory of the run archive database")
	analyzeCmd.Flags().Bool("no-annotation", false, "skip Ensembl VEP annotation")
	analyzeCmd.Flags().Bool("download-pdfs", false, "download open-access PDFs of functional papers into --pdf-path")
	analyzeCmd.Flags().Bool("convert-pdfs", false, "extract from attached PDFs converted with markitdown instead of the PubMed record")
	analyzeCmd.Flags().Bool("no-store", false, "do not archive the run")

	for flag, key := range flagKeys {
		_ = viper.BindPFlag(key, analyzeCmd.Flags().Lookup(flag))
	}

	rootCmd.AddCommand(analyzeCmd)
}
