// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences one functional-evidence run: annotation,
// identifier derivation, citation lookup, metadata retrieval, screening,
// extraction, and integration. Every per-item collaborator failure is
// isolated to its item and recorded in Result.Failures; only an invalid
// variant or assembly aborts a run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AliSaadatV/AcmGENTIC/internal/assess"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

const (
	defaultConcurrency = 4
	defaultItemTimeout = 2 * time.Minute

	relevanceLitVarMention = "LitVar2 variant mention"
	sourceLitVar           = "litvar2"
)

// Annotator resolves coordinates to transcript-level annotation. A nil
// annotation with a nil error means no match.
type Annotator interface {
	Annotate(ctx context.Context, chrom string, pos int, ref, alt string, assembly types.Assembly) (*types.Annotation, error)
}

// CitationLookup returns the PMIDs of publications mentioning an identifier.
type CitationLookup interface {
	Lookup(ctx context.Context, identifier string) ([]string, error)
}

// MetadataSource returns a paper's title and abstract. A nil record with a
// nil error means the PMID could not be resolved.
type MetadataSource interface {
	Fetch(ctx context.Context, pmid string) (*types.PaperMetadata, error)
}

// TextSource returns markup-stripped paper text.
type TextSource interface {
	FetchText(ctx context.Context, pmid string) (string, error)
}

// Screener judges whether a paper reports experimental functional data.
type Screener interface {
	Screen(ctx context.Context, paper types.CandidatePaper, variantLabel string) (types.ScreeningDecision, error)
}

// Extractor returns raw experiment objects found in a paper's text.
type Extractor interface {
	Extract(ctx context.Context, paperText string, paper types.FunctionalPaper, variantLabel string) ([]map[string]any, error)
}

// PDFSource stores a paper's open-access PDF in dir and returns its path.
// An empty path with a nil error means no PDF is available.
type PDFSource interface {
	FetchPDF(ctx context.Context, pmid, dir string) (string, error)
}

// PDFTextSource converts an attached PDF to text.
type PDFTextSource interface {
	PDFText(ctx context.Context, pmid, pdfPath string) (string, error)
}

// Collaborators bundles the external services a run consults. Annotator,
// Text, PDFs and PDFText may be nil: annotation is then skipped, extraction
// sees empty text, only PDFs already in the PDF directory are attached, and
// attached PDFs are not read.
type Collaborators struct {
	Annotator Annotator
	Lookup    CitationLookup
	Metadata  MetadataSource
	Text      TextSource
	Screener  Screener
	Extractor Extractor
	PDFs      PDFSource
	PDFText   PDFTextSource
}

// Request identifies the variant to analyze.
type Request struct {
	Chrom    string
	Pos      int
	Ref      string
	Alt      string
	Assembly string
}

// Pipeline runs analyses with a fixed configuration and collaborator set.
// It holds no per-run state and may serve concurrent Run calls.
type Pipeline struct {
	cfg    types.PipelineConfig
	c      Collaborators
	log    *zap.Logger
	filter assess.QualityFilter

	// Progress receives human-readable stage lines. Nil discards them.
	Progress io.Writer

	now   func() time.Time
	newID func() string
}

// New returns a Pipeline. A nil logger is replaced with a no-op logger.
func New(cfg types.PipelineConfig, c Collaborators, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		c:      c,
		log:    log,
		filter: assess.NewQualityFilter(cfg.Assessment),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Run analyzes one variant. It returns an error only for an invalid
// variant, an unsupported assembly, or a cancelled context; in every other
// case the Result is complete, with per-item failures listed in Failures.
func (p *Pipeline) Run(ctx context.Context, req Request) (*types.Result, error) {
	assembly, err := types.ParseAssembly(req.Assembly)
	if err != nil {
		return nil, err
	}
	vi, err := types.NewVariantIdentity(req.Chrom, req.Pos, req.Ref, req.Alt)
	if err != nil {
		return nil, err
	}

	runID := p.newID()
	log := p.log.With(zap.String("run_id", runID), zap.String("variant", vi.GenomicNotation()))
	r := &run{Pipeline: p, log: log, out: p.progress()}

	res := &types.Result{
		RunID:     runID,
		Assembly:  assembly,
		StartedAt: p.now().UTC(),
	}

	fmt.Fprintf(r.out, "analyzing %s (%s)\n", vi.GenomicNotation(), assembly)
	log.Info("run started", zap.String("assembly", string(assembly)))

	vi = r.annotate(ctx, vi, assembly)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Variant = vi
	res.SearchIDs = vi.SearchIdentifiers()
	label := vi.Label()

	pmids, err := r.lookup(ctx, res.SearchIDs)
	if err != nil {
		return nil, err
	}
	if res.CandidatePapers, err = r.fetchMetadata(ctx, pmids); err != nil {
		return nil, err
	}
	if res.FunctionalPapers, err = r.screen(ctx, res.CandidatePapers, label); err != nil {
		return nil, err
	}
	if res.Experiments, err = r.extract(ctx, res.FunctionalPapers, label); err != nil {
		return nil, err
	}

	res.Assessment = assess.Integrate(res.Experiments, p.filter)
	res.Failures = r.failures.sorted()
	res.FinishedAt = p.now().UTC()

	fmt.Fprintf(r.out, "decision: %s", res.Assessment.Decision)
	if res.Assessment.Strength != "" {
		fmt.Fprintf(r.out, " (%s)", res.Assessment.Strength)
	}
	fmt.Fprintf(r.out, ", %d item failure(s)\n", len(res.Failures))

	log.Info("run finished",
		zap.String("decision", string(res.Assessment.Decision)),
		zap.String("strength", string(res.Assessment.Strength)),
		zap.Int("candidates", len(res.CandidatePapers)),
		zap.Int("functional", len(res.FunctionalPapers)),
		zap.Int("experiments", len(res.Experiments)),
		zap.Int("failures", len(res.Failures)),
	)
	return res, nil
}

func (p *Pipeline) progress() io.Writer {
	if p.Progress == nil {
		return io.Discard
	}
	return p.Progress
}

func (p *Pipeline) concurrency() int {
	if p.cfg.Concurrency <= 0 {
		return defaultConcurrency
	}
	return p.cfg.Concurrency
}

func (p *Pipeline) itemTimeout() time.Duration {
	if p.cfg.ItemTimeout <= 0 {
		return defaultItemTimeout
	}
	return p.cfg.ItemTimeout
}

// existingPDF returns the path of a previously downloaded PDF for pmid, if any.
func (p *Pipeline) existingPDF(pmid string) string {
	if p.cfg.PDFDir == "" {
		return ""
	}
	path := filepath.Join(p.cfg.PDFDir, pmid+".pdf")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
