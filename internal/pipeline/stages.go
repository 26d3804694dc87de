// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AliSaadatV/AcmGENTIC/internal/extract"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

var errNoRecord = errors.New("no PubMed record")

// run holds the state of one Run call.
type run struct {
	*Pipeline
	log      *zap.Logger
	failures failureLog

	outMu sync.Mutex
	out   io.Writer
}

func (r *run) printf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// fail records a per-item failure and logs it.
func (r *run) fail(stage types.Stage, key string, err error) {
	r.failures.add(types.ItemFailure{Stage: stage, Key: key, Error: err.Error()})
	r.log.Warn("item failed", zap.String("stage", string(stage)), zap.String("key", key), zap.Error(err))
	r.printf("failed  %s %s: %v\n", stage, key, err)
}

// forEach calls fn for indices [0, n) with bounded concurrency. fn never
// fails the group, so one item cannot cancel its siblings. The returned
// error is non-nil only when ctx is done.
func (r *run) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	var g errgroup.Group
	g.SetLimit(r.concurrency())
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			itemCtx, cancel := context.WithTimeout(ctx, r.itemTimeout())
			defer cancel()
			fn(itemCtx, i)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// annotate enriches vi from the annotator. Any failure leaves vi unchanged.
func (r *run) annotate(ctx context.Context, vi types.VariantIdentity, assembly types.Assembly) types.VariantIdentity {
	if r.c.Annotator == nil {
		return vi
	}
	r.printf("annotating %s\n", vi.GenomicNotation())

	actx, cancel := context.WithTimeout(ctx, r.itemTimeout())
	defer cancel()

	ann, err := r.c.Annotator.Annotate(actx, vi.Chrom, vi.Pos, vi.Ref, vi.Alt, assembly)
	if err != nil {
		if ctx.Err() == nil {
			r.fail(types.StageAnnotation, vi.GenomicNotation(), err)
		}
		return vi
	}
	if ann.IsEmpty() {
		r.log.Info("annotation returned no match")
		return vi
	}
	return vi.Enrich(ann)
}

// lookup returns the sorted union of PMIDs across identifiers.
func (r *run) lookup(ctx context.Context, ids []string) ([]string, error) {
	r.printf("looking up %d identifier(s)\n", len(ids))
	found := newKeyed[struct{}]()

	err := r.forEach(ctx, len(ids), func(ctx context.Context, i int) {
		id := ids[i]
		pmids, err := r.c.Lookup.Lookup(ctx, id)
		if err != nil {
			r.fail(types.StageLookup, id, err)
			return
		}
		for _, pmid := range pmids {
			found.put(pmid, struct{}{})
		}
		r.log.Debug("lookup", zap.String("identifier", id), zap.Int("pmids", len(pmids)))
	})
	if err != nil {
		return nil, err
	}

	pmids := found.keys()
	r.printf("found %d unique PMID(s)\n", len(pmids))
	return pmids, nil
}

// fetchMetadata builds one CandidatePaper per resolvable PMID.
func (r *run) fetchMetadata(ctx context.Context, pmids []string) ([]types.CandidatePaper, error) {
	papers := newKeyed[types.CandidatePaper]()

	err := r.forEach(ctx, len(pmids), func(ctx context.Context, i int) {
		pmid := pmids[i]
		md, err := r.c.Metadata.Fetch(ctx, pmid)
		if err == nil && md == nil {
			err = errNoRecord
		}
		if err != nil {
			r.fail(types.StageMetadata, pmid, err)
			return
		}
		papers.put(pmid, types.CandidatePaper{
			PMID:            pmid,
			Title:           md.Title,
			Abstract:        md.Abstract,
			Source:          sourceLitVar,
			RelevanceReason: relevanceLitVarMention,
		})
	})
	if err != nil {
		return nil, err
	}

	out := papers.values()
	r.printf("retrieved details for %d paper(s)\n", len(out))
	return out, nil
}

// screen keeps the candidates the screener judges functional.
func (r *run) screen(ctx context.Context, candidates []types.CandidatePaper, label string) ([]types.FunctionalPaper, error) {
	r.printf("screening %d paper(s)\n", len(candidates))
	functional := newKeyed[types.FunctionalPaper]()

	err := r.forEach(ctx, len(candidates), func(ctx context.Context, i int) {
		cp := candidates[i]
		d, err := r.c.Screener.Screen(ctx, cp, label)
		if err != nil {
			r.fail(types.StageScreening, cp.PMID, err)
			return
		}
		r.log.Debug("screened", zap.String("pmid", cp.PMID), zap.Bool("functional", d.IsFunctional))
		if !d.IsFunctional {
			return
		}
		functional.put(cp.PMID, types.FunctionalPaper{
			PMID:          cp.PMID,
			Title:         cp.Title,
			Justification: d.Justification,
			PDFPath:       r.attachPDF(ctx, cp.PMID),
		})
	})
	if err != nil {
		return nil, err
	}

	out := functional.values()
	r.printf("%d functionally relevant paper(s)\n", len(out))
	return out, nil
}

// attachPDF returns the local PDF path for a functional paper, downloading
// it when a PDFSource is configured. A failed download is recorded and
// leaves the paper without a PDF.
func (r *run) attachPDF(ctx context.Context, pmid string) string {
	if path := r.existingPDF(pmid); path != "" || r.c.PDFs == nil || r.cfg.PDFDir == "" {
		return path
	}
	path, err := r.c.PDFs.FetchPDF(ctx, pmid, r.cfg.PDFDir)
	if err != nil {
		r.fail(types.StagePDF, pmid, err)
		return ""
	}
	if path != "" {
		r.printf("saved PDF %s\n", path)
	}
	return path
}

// extract gathers typed experiment records from every functional paper.
// Records are ordered by PMID, then by their order within the paper.
func (r *run) extract(ctx context.Context, papers []types.FunctionalPaper, label string) ([]types.ExperimentRecord, error) {
	r.printf("extracting experiments from %d paper(s)\n", len(papers))
	perPaper := newKeyed[[]types.ExperimentRecord]()

	err := r.forEach(ctx, len(papers), func(ctx context.Context, i int) {
		fp := papers[i]

		text := r.paperText(ctx, fp)
		raw, err := r.c.Extractor.Extract(ctx, text, fp, label)
		if err != nil {
			r.fail(types.StageExtraction, fp.PMID, err)
			return
		}
		exps := extract.ParseExperiments(fp.PMID, raw)
		perPaper.put(fp.PMID, exps)
		r.printf("extracted %s (%d experiments)\n", fp.PMID, len(exps))
	})
	if err != nil {
		return nil, err
	}

	out := []types.ExperimentRecord{}
	for _, exps := range perPaper.values() {
		out = append(out, exps...)
	}
	return out, nil
}

// paperText returns the converted PDF text of fp when a PDF is attached,
// otherwise its PubMed record text. A failed conversion is recorded and
// falls back to the PubMed record. Failures yield empty text.
func (r *run) paperText(ctx context.Context, fp types.FunctionalPaper) string {
	if r.c.PDFText != nil && fp.PDFPath != "" {
		t, err := r.c.PDFText.PDFText(ctx, fp.PMID, fp.PDFPath)
		if err != nil {
			r.fail(types.StageConversion, fp.PMID, err)
		} else if strings.TrimSpace(t) != "" {
			r.log.Debug("using PDF text", zap.String("pmid", fp.PMID), zap.Int("chars", len(t)))
			return t
		}
	}

	if r.c.Text == nil {
		return ""
	}
	t, err := r.c.Text.FetchText(ctx, fp.PMID)
	if err != nil {
		r.fail(types.StageText, fp.PMID, err)
		return ""
	}
	return t
}

// keyed is a mutex-guarded map accumulating per-item results by key.
type keyed[T any] struct {
	mu sync.Mutex
	m  map[string]T
}

func newKeyed[T any]() *keyed[T] {
	return &keyed[T]{m: make(map[string]T)}
}

func (k *keyed[T]) put(key string, v T) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[key] = v
}

// keys returns the keys in ascending order.
func (k *keyed[T]) keys() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	keys := make([]string, 0, len(k.m))
	for key := range k.m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// values returns the values ordered by ascending key.
func (k *keyed[T]) values() []T {
	keys := k.keys()
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]T, 0, len(keys))
	for _, key := range keys {
		out = append(out, k.m[key])
	}
	return out
}

// stageOrder ranks stages for deterministic failure listings.
var stageOrder = map[types.Stage]int{
	types.StageAnnotation: 0,
	types.StageLookup:     1,
	types.StageMetadata:   2,
	types.StageScreening:  3,
	types.StagePDF:        4,
	types.StageConversion: 5,
	types.StageText:       6,
	types.StageExtraction: 7,
}

// failureLog collects ItemFailures from concurrent workers.
type failureLog struct {
	mu    sync.Mutex
	items []types.ItemFailure
}

func (f *failureLog) add(item types.ItemFailure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
}

// sorted returns the failures ordered by stage, then key.
func (f *failureLog) sorted() []types.ItemFailure {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]types.ItemFailure(nil), f.items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return stageOrder[out[i].Stage] < stageOrder[out[j].Stage]
		}
		return out[i].Key < out[j].Key
	})
	return out
}
