// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliSaadatV/AcmGENTIC/internal/literature"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

// --- fakes ---

type fakeAnnotator struct {
	ann *types.Annotation
	err error
}

func (f fakeAnnotator) Annotate(context.Context, string, int, string, string, types.Assembly) (*types.Annotation, error) {
	return f.ann, f.err
}

type fakeLookup struct {
	byID map[string][]string
	errs map[string]error

	mu   sync.Mutex
	seen []string
}

func (f *fakeLookup) Lookup(_ context.Context, id string) ([]string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, id)
	f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.byID[id], nil
}

type fakeMetadata struct {
	errs    map[string]error
	missing map[string]bool
}

func (f fakeMetadata) Fetch(_ context.Context, pmid string) (*types.PaperMetadata, error) {
	if err := f.errs[pmid]; err != nil {
		return nil, err
	}
	if f.missing[pmid] {
		return nil, nil
	}
	return &types.PaperMetadata{Title: "Title " + pmid, Abstract: "Abstract " + pmid}, nil
}

type fakeText struct {
	errs map[string]error
}

func (f fakeText) FetchText(_ context.Context, pmid string) (string, error) {
	if err := f.errs[pmid]; err != nil {
		return "", err
	}
	return "text of " + pmid, nil
}

type fakeScreener struct {
	functional map[string]bool
	errs       map[string]error

	mu     sync.Mutex
	labels []string
}

func (f *fakeScreener) Screen(_ context.Context, p types.CandidatePaper, label string) (types.ScreeningDecision, error) {
	f.mu.Lock()
	f.labels = append(f.labels, label)
	f.mu.Unlock()
	if err := f.errs[p.PMID]; err != nil {
		return types.ScreeningDecision{}, err
	}
	return types.ScreeningDecision{IsFunctional: f.functional[p.PMID], Justification: "reason " + p.PMID}, nil
}

type fakeExtractor struct {
	byPMID map[string][]map[string]any
	errs   map[string]error

	mu    sync.Mutex
	texts map[string]string
}

func (f *fakeExtractor) Extract(_ context.Context, text string, p types.FunctionalPaper, _ string) ([]map[string]any, error) {
	f.mu.Lock()
	if f.texts == nil {
		f.texts = map[string]string{}
	}
	f.texts[p.PMID] = text
	f.mu.Unlock()
	if err := f.errs[p.PMID]; err != nil {
		return nil, err
	}
	return f.byPMID[p.PMID], nil
}

var goodControls = "wild-type and empty-vector controls, three biological replicates"

func pathogenic(assay string) map[string]any {
	return map[string]any{
		"assay_type":        assay,
		"effect_direction":  "strong_loss_of_function",
		"controls_validity": goodControls,
		"evaluation":        "supports_pathogenic",
	}
}

// scenario wires a two-paper PS3-strong run: identifiers resolve to PMIDs
// 100, 200 and 300; 300 is screened out; 100 and 200 each yield experiments.
func scenario() (Collaborators, *fakeLookup, *fakeScreener, *fakeExtractor) {
	lookup := &fakeLookup{byID: map[string][]string{
		"2:162279995C>G": {"200", "100"},
		"rs121917956":    {"100", "300"},
	}}
	screener := &fakeScreener{functional: map[string]bool{"100": true, "200": true}}
	extractor := &fakeExtractor{byPMID: map[string][]map[string]any{
		"100": {pathogenic("patch clamp"), pathogenic("western blot")},
		"200": {pathogenic("surface biotinylation")},
	}}
	return Collaborators{
		Annotator: fakeAnnotator{ann: &types.Annotation{RSID: "rs121917956", GeneSymbol: "SCN2A"}},
		Lookup:    lookup,
		Metadata:  fakeMetadata{},
		Text:      fakeText{},
		Screener:  screener,
		Extractor: extractor,
	}, lookup, screener, extractor
}

func testPipeline(c Collaborators, cfg types.PipelineConfig) *Pipeline {
	p := New(cfg, c, nil)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	p.newID = func() string { return "run-1" }
	return p
}

var scn2a = Request{Chrom: "chr2", Pos: 162279995, Ref: "c", Alt: "g", Assembly: "GRCh38"}

func TestRunHappyPath(t *testing.T) {
	c, lookup, screener, extractor := scenario()
	var progress bytes.Buffer
	p := testPipeline(c, types.PipelineConfig{})
	p.Progress = &progress

	res, err := p.Run(context.Background(), scn2a)
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, types.AssemblyGRCh38, res.Assembly)
	assert.Equal(t, "2", res.Variant.Chrom)
	assert.Equal(t, "rs121917956", res.Variant.RSID)
	assert.Equal(t, []string{"2:162279995C>G", "rs121917956"}, res.SearchIDs)
	assert.ElementsMatch(t, res.SearchIDs, lookup.seen)

	var cands []string
	for _, cp := range res.CandidatePapers {
		cands = append(cands, cp.PMID)
		assert.Equal(t, "litvar2", cp.Source)
		assert.Equal(t, "LitVar2 variant mention", cp.RelevanceReason)
		assert.Equal(t, "Title "+cp.PMID, cp.Title)
	}
	assert.Equal(t, []string{"100", "200", "300"}, cands)

	want := []types.FunctionalPaper{
		{PMID: "100", Title: "Title 100", Justification: "reason 100"},
		{PMID: "200", Title: "Title 200", Justification: "reason 200"},
	}
	if diff := cmp.Diff(want, res.FunctionalPapers); diff != "" {
		t.Errorf("FunctionalPapers mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, res.Experiments, 3)
	assert.Equal(t, "patch clamp", res.Experiments[0].AssayType)
	assert.Equal(t, "western blot", res.Experiments[1].AssayType)
	assert.Equal(t, "200", res.Experiments[2].PMID)
	assert.Equal(t, "text of 100", extractor.texts["100"])

	assert.Equal(t, types.DecisionPS3, res.Assessment.Decision)
	assert.Equal(t, types.StrengthStrong, res.Assessment.Strength)
	assert.Equal(t, []string{"100", "200"}, res.Assessment.KeyPMIDs)
	assert.Empty(t, res.Failures)

	for _, l := range screener.labels {
		assert.Equal(t, res.Variant.Label(), l)
		assert.Contains(t, l, "symbol:SCN2A")
	}
	assert.Contains(t, progress.String(), "analyzing 2:162279995C>G (GRCh38)")
	assert.Contains(t, progress.String(), "decision: PS3 (strong)")
}

func TestRunFatalInputs(t *testing.T) {
	c, _, _, _ := scenario()
	p := testPipeline(c, types.PipelineConfig{})

	_, err := p.Run(context.Background(), Request{Chrom: "1", Pos: 0, Ref: "A", Alt: "G"})
	assert.ErrorIs(t, err, types.ErrInvalidVariant)

	_, err = p.Run(context.Background(), Request{Chrom: "1", Pos: 5, Ref: "A", Alt: "G", Assembly: "hg19"})
	assert.ErrorIs(t, err, types.ErrUnsupportedAssembly)
}

func TestRunAnnotationBestEffort(t *testing.T) {
	tests := []struct {
		name        string
		annotator   Annotator
		wantFailure bool
	}{
		{"annotator error", fakeAnnotator{err: errors.New("VEP down")}, true},
		{"no match", fakeAnnotator{}, false},
		{"no annotator", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _, _ := scenario()
			c.Annotator = tt.annotator

			res, err := testPipeline(c, types.PipelineConfig{}).Run(context.Background(), scn2a)
			require.NoError(t, err)
			assert.Empty(t, res.Variant.RSID)
			assert.Equal(t, []string{"2:162279995C>G"}, res.SearchIDs)
			assert.Equal(t, []string{"100", "200"}, pmidsOf(res.CandidatePapers))
			if tt.wantFailure {
				assert.Equal(t, []types.ItemFailure{{Stage: types.StageAnnotation, Key: "2:162279995C>G", Error: "VEP down"}}, res.Failures)
			} else {
				assert.Empty(t, res.Failures)
			}
		})
	}
}

func TestRunIsolatesItemFailures(t *testing.T) {
	c, lookup, screener, extractor := scenario()
	lookup.byID["2:162279995C>G"] = []string{"200", "100", "400", "500"}
	lookup.errs = map[string]error{"rs121917956": errors.New("HTTP 500")}
	c.Metadata = fakeMetadata{
		errs:    map[string]error{"400": errors.New("timeout")},
		missing: map[string]bool{"500": true},
	}
	screener.functional["300"] = true
	extractor.errs = map[string]error{"200": errors.New("malformed AI response")}
	c.Text = fakeText{errs: map[string]error{"100": errors.New("efetch 502")}}

	res, err := testPipeline(c, types.PipelineConfig{Concurrency: 3}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	assert.Equal(t, []string{"100", "200"}, pmidsOf(res.CandidatePapers), "300 only came from the failed identifier")
	assert.Len(t, res.FunctionalPapers, 2)

	require.Len(t, res.Experiments, 2, "paper 100 survives its text-fetch failure")
	assert.Equal(t, "100", res.Experiments[0].PMID)
	assert.Equal(t, "", extractor.texts["100"])

	assert.Equal(t, types.DecisionPS3, res.Assessment.Decision)
	assert.Equal(t, types.StrengthSupporting, res.Assessment.Strength)

	want := []types.ItemFailure{
		{Stage: types.StageLookup, Key: "rs121917956", Error: "HTTP 500"},
		{Stage: types.StageMetadata, Key: "400", Error: "timeout"},
		{Stage: types.StageMetadata, Key: "500", Error: "no PubMed record"},
		{Stage: types.StageText, Key: "100", Error: "efetch 502"},
		{Stage: types.StageExtraction, Key: "200", Error: "malformed AI response"},
	}
	if diff := cmp.Diff(want, res.Failures); diff != "" {
		t.Errorf("Failures mismatch (-want +got):\n%s", diff)
	}
}

func TestRunScreeningFailureExcludesPaper(t *testing.T) {
	c, _, screener, _ := scenario()
	screener.errs = map[string]error{"200": errors.New("malformed AI response")}

	res, err := testPipeline(c, types.PipelineConfig{}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	assert.Equal(t, []string{"100"}, pmidsOf(res.FunctionalPapers))
	assert.Len(t, res.Experiments, 2)
	assert.Equal(t, types.StrengthSupporting, res.Assessment.Strength)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, types.StageScreening, res.Failures[0].Stage)
}

func TestRunNoEvidence(t *testing.T) {
	c := Collaborators{
		Lookup:    &fakeLookup{},
		Metadata:  fakeMetadata{},
		Screener:  &fakeScreener{},
		Extractor: &fakeExtractor{},
	}
	res, err := testPipeline(c, types.PipelineConfig{}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	assert.NotNil(t, res.CandidatePapers)
	assert.NotNil(t, res.FunctionalPapers)
	assert.NotNil(t, res.Experiments)
	assert.Equal(t, types.DecisionNone, res.Assessment.Decision)
	assert.Empty(t, res.Assessment.KeyPMIDs)
}

func TestRunDeterministicAcrossConcurrency(t *testing.T) {
	var results []*types.Result
	for _, n := range []int{1, 2, 8} {
		c, _, _, _ := scenario()
		res, err := testPipeline(c, types.PipelineConfig{Concurrency: n}).Run(context.Background(), scn2a)
		require.NoError(t, err)
		results = append(results, res)
	}
	for _, res := range results[1:] {
		if diff := cmp.Diff(results[0], res); diff != "" {
			t.Errorf("result differs with concurrency (-seq +par):\n%s", diff)
		}
	}
}

// blockingScreener cancels the run once the first screening call starts.
type blockingScreener struct {
	cancel context.CancelFunc
	calls  atomic.Int32
}

func (b *blockingScreener) Screen(ctx context.Context, _ types.CandidatePaper, _ string) (types.ScreeningDecision, error) {
	b.calls.Add(1)
	b.cancel()
	<-ctx.Done()
	return types.ScreeningDecision{}, ctx.Err()
}

func TestRunCancelled(t *testing.T) {
	c, _, _, _ := scenario()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bs := &blockingScreener{cancel: cancel}
	c.Screener = bs

	res, err := testPipeline(c, types.PipelineConfig{Concurrency: 1}).Run(ctx, scn2a)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, int32(1), bs.calls.Load(), "no new items start after cancellation")
}

// slowLookup blocks until its context expires.
type slowLookup struct{}

func (slowLookup) Lookup(ctx context.Context, _ string) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunItemTimeoutIsItemFailure(t *testing.T) {
	c, _, _, _ := scenario()
	c.Lookup = slowLookup{}

	res, err := testPipeline(c, types.PipelineConfig{ItemTimeout: 10 * time.Millisecond}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	require.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.Equal(t, types.StageLookup, f.Stage)
		assert.True(t, strings.Contains(f.Error, "deadline exceeded"), f.Error)
	}
	assert.Equal(t, types.DecisionNone, res.Assessment.Decision)
}

func TestRunAttachesPDFPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "200.pdf"), []byte("%PDF-1.4"), 0o644))

	c, _, _, _ := scenario()
	res, err := testPipeline(c, types.PipelineConfig{PDFDir: dir}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	require.Len(t, res.FunctionalPapers, 2)
	assert.Empty(t, res.FunctionalPapers[0].PDFPath)
	assert.Equal(t, filepath.Join(dir, "200.pdf"), res.FunctionalPapers[1].PDFPath)
}

type fakePDFs struct {
	mu    sync.Mutex
	calls []string
	err   map[string]error
}

func (f *fakePDFs) FetchPDF(_ context.Context, pmid, dir string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pmid)
	f.mu.Unlock()
	if err := f.err[pmid]; err != nil {
		return "", err
	}
	return filepath.Join(dir, pmid+".pdf"), nil
}

func TestRunDownloadsMissingPDFs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "200.pdf"), []byte("%PDF-1.4"), 0o644))

	c, _, _, _ := scenario()
	pdfs := &fakePDFs{err: map[string]error{}}
	c.PDFs = pdfs
	res, err := testPipeline(c, types.PipelineConfig{PDFDir: dir}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	assert.Equal(t, []string{"100"}, pdfs.calls)
	assert.Equal(t, filepath.Join(dir, "100.pdf"), res.FunctionalPapers[0].PDFPath)
	assert.Equal(t, filepath.Join(dir, "200.pdf"), res.FunctionalPapers[1].PDFPath)
	assert.Empty(t, res.Failures)
}

func TestRunPDFFailureIsItemFailure(t *testing.T) {
	c, _, _, _ := scenario()
	c.PDFs = &fakePDFs{err: map[string]error{"100": errors.New("HTTP 403")}}
	res, err := testPipeline(c, types.PipelineConfig{PDFDir: t.TempDir()}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	require.Len(t, res.FunctionalPapers, 2)
	assert.Empty(t, res.FunctionalPapers[0].PDFPath)
	assert.Equal(t, []types.ItemFailure{{Stage: types.StagePDF, Key: "100", Error: "HTTP 403"}}, res.Failures)
	assert.Equal(t, types.DecisionPS3, res.Assessment.Decision)
}

func TestRunSkipsPDFsWithoutDirectory(t *testing.T) {
	c, _, _, _ := scenario()
	pdfs := &fakePDFs{}
	c.PDFs = pdfs
	_, err := testPipeline(c, types.PipelineConfig{}).Run(context.Background(), scn2a)
	require.NoError(t, err)
	assert.Empty(t, pdfs.calls)
}

type fakePDFText struct {
	err error

	mu    sync.Mutex
	paths []string
}

func (f *fakePDFText) PDFText(_ context.Context, pmid, pdfPath string) (string, error) {
	f.mu.Lock()
	f.paths = append(f.paths, pdfPath)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "pdf text of " + pmid, nil
}

func TestRunPrefersPDFText(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "100.pdf"), []byte("%PDF-1.4"), 0o644))

	c, _, _, extractor := scenario()
	conv := &fakePDFText{}
	c.PDFText = conv

	res, err := testPipeline(c, types.PipelineConfig{PDFDir: dir}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "100.pdf")}, conv.paths)
	assert.Equal(t, "pdf text of 100", extractor.texts["100"])
	assert.Equal(t, "text of 200", extractor.texts["200"])
	assert.Empty(t, res.Failures)
}

func TestRunConversionFailureFallsBackToRecord(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "100.pdf"), []byte("%PDF-1.4"), 0o644))

	c, _, _, extractor := scenario()
	c.PDFText = &fakePDFText{err: errors.New("markitdown exited 1")}

	res, err := testPipeline(c, types.PipelineConfig{PDFDir: dir}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	assert.Equal(t, []types.ItemFailure{
		{Stage: types.StageConversion, Key: "100", Error: "markitdown exited 1"},
	}, res.Failures)
	assert.Equal(t, "text of 100", extractor.texts["100"])
	assert.Len(t, res.Experiments, 3)
}

func TestRunFailureOrderConversionBeforeText(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "100.pdf"), []byte("%PDF-1.4"), 0o644))

	c, _, _, extractor := scenario()
	c.Text = fakeText{errs: map[string]error{"100": errors.New("efetch 502")}}
	c.PDFText = &fakePDFText{err: errors.New("markitdown exited 1")}

	res, err := testPipeline(c, types.PipelineConfig{PDFDir: dir}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	assert.Equal(t, []types.ItemFailure{
		{Stage: types.StageConversion, Key: "100", Error: "markitdown exited 1"},
		{Stage: types.StageText, Key: "100", Error: "efetch 502"},
	}, res.Failures)
	assert.Empty(t, extractor.texts["100"])
}

// An abstract-only PubMed record must not hide the attached PDF.
func TestRunPDFTextOverPubMedRecord(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>%s</PMID>
<Article><ArticleTitle>T</ArticleTitle><Abstract><AbstractText>Short abstract only.</AbstractText></Abstract></Article>
</MedlineCitation></PubmedArticle></PubmedArticleSet>`, r.URL.Query().Get("id"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "100.pdf"), []byte("%PDF-1.4"), 0o644))

	c, _, _, extractor := scenario()
	c.Text = &literature.PubMedClient{Client: ts.Client(), BaseURL: ts.URL}
	conv := &fakePDFText{}
	c.PDFText = conv

	res, err := testPipeline(c, types.PipelineConfig{PDFDir: dir}).Run(context.Background(), scn2a)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "100.pdf")}, conv.paths)
	assert.Equal(t, "pdf text of 100", extractor.texts["100"])
	assert.Equal(t, "200 T Short abstract only.", extractor.texts["200"])
	assert.Empty(t, res.Failures)
}

func TestRunUsesQualityThreshold(t *testing.T) {
	c, _, _, _ := scenario()
	cfg := types.PipelineConfig{Assessment: types.AssessmentConfig{MinControlsLength: 500}}

	res, err := testPipeline(c, cfg).Run(context.Background(), scn2a)
	require.NoError(t, err)
	assert.Equal(t, types.DecisionNone, res.Assessment.Decision)
}

func pmidsOf[T types.CandidatePaper | types.FunctionalPaper](items []T) []string {
	var out []string
	for _, it := range items {
		switch v := any(it).(type) {
		case types.CandidatePaper:
			out = append(out, v.PMID)
		case types.FunctionalPaper:
			out = append(out, v.PMID)
		}
	}
	return out
}
