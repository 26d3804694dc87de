// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

func sampleResult() *types.Result {
	return &types.Result{
		RunID:    "run-1",
		Assembly: types.AssemblyGRCh38,
		Variant: types.VariantIdentity{
			Chrom: "2", Pos: 162279995, Ref: "C", Alt: "G",
			RSID: "rs121917748", HGVSc: "c.2447G>C", HGVSp: "p.Arg816Pro", GeneSymbol: "SCN2A",
			Transcripts: types.TranscriptIDs{Ensembl: "ENST00000375437", MANE: "NM_021007.3"},
		},
		SearchIDs: []string{"2:162279995C>G", "SCN2A p.Arg816Pro", "rs121917748"},
		CandidatePapers: []types.CandidatePaper{
			{PMID: "30000002", Title: "Second <paper>"},
			{PMID: "9000001", Title: "First paper"},
		},
		FunctionalPapers: []types.FunctionalPaper{
			{PMID: "30000002", Title: "Second <paper>", Justification: "Patch clamp of the variant.", PDFPath: "pdfs/30000002.pdf"},
		},
		Experiments: []types.ExperimentRecord{
			{PMID: "30000002", AssayType: "patch clamp", System: "HEK293", EffectDirection: types.EffectStrongLoF, Evaluation: types.EvalSupportsPathogenic},
			{PMID: "30000002", AssayType: "western blot", System: "HEK293", EffectDirection: types.EffectAmbiguous, Evaluation: types.EvalAmbiguous},
		},
		Assessment: types.Assessment{
			Decision:  types.DecisionPS3,
			Strength:  types.StrengthSupporting,
			Narrative: "1 experiment(s) across 1 paper(s) support a damaging effect.",
			KeyPMIDs:  []string{"30000002"},
		},
		Failures: []types.ItemFailure{
			{Stage: types.StageMetadata, Key: "111", Error: "no PubMed record"},
		},
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 3, 5, 5, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    types.OutputFormat
		wantErr bool
	}{
		{"", types.OutputHTML, false},
		{"html", types.OutputHTML, false},
		{"JSON", types.OutputJSON, false},
		{"dict", types.OutputJSON, false},
		{" yaml ", types.OutputYAML, false},
		{"text", types.OutputText, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "2_162279995_C_G_GRCh38", BaseName(sampleResult()))
}

func TestFormatText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatText(sampleResult(), &buf))
	out := buf.String()

	for _, want := range []string{
		"VARIANT FUNCTIONAL EVIDENCE REPORT (PS3/BS3)",
		"Genomic coordinates: 2:162279995 C>G",
		"Gene: SCN2A",
		"MANE transcript: NM_021007.3",
		"   - SCN2A p.Arg816Pro",
		"Total papers from LitVar2: 2",
		"Justification: Patch clamp of the variant.",
		"PDF path: pdfs/30000002.pdf",
		"PMID 30000002 (2 experiment(s)):",
		"Experiment 2:",
		"Assay type: western blot",
		"Effect direction: strong_loss_of_function",
		"✓ PS3 - Functional evidence supports a damaging effect",
		"Strength: SUPPORTING",
		"Key PMIDs: 30000002",
		"- metadata 111: no PubMed record",
	} {
		assert.Contains(t, out, want)
	}

	// Papers are sampled in numeric PMID order.
	assert.Less(t, strings.Index(out, "PMID 9000001"), strings.Index(out, "PMID 30000002:"))
}

func TestFormatTextNoEvidence(t *testing.T) {
	res := &types.Result{
		Assembly: types.AssemblyGRCh37,
		Variant:  types.VariantIdentity{Chrom: "1", Pos: 10, Ref: "A", Alt: "T"},
		Assessment: types.Assessment{
			Decision:  types.DecisionNone,
			Narrative: "No functional experiments were identified.",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, FormatText(res, &buf))
	out := buf.String()

	assert.Contains(t, out, "No candidate papers identified from LitVar2.")
	assert.Contains(t, out, "No papers with direct functional experiments identified.")
	assert.Contains(t, out, "No functional experiments extracted.")
	assert.Contains(t, out, "✗ Neither PS3 nor BS3 applies")
	assert.NotContains(t, out, "Strength:")
	assert.NotContains(t, out, "Gene:")
}

func TestFormatTextSampleLimit(t *testing.T) {
	res := sampleResult()
	res.CandidatePapers = nil
	for i := 1; i <= 13; i++ {
		res.CandidatePapers = append(res.CandidatePapers, types.CandidatePaper{PMID: fmt.Sprint(i), Title: strings.Repeat("x", 150)})
	}

	var buf bytes.Buffer
	require.NoError(t, FormatText(res, &buf))
	out := buf.String()

	assert.Contains(t, out, "... and 3 more papers")
	assert.Contains(t, out, "PMID 10: "+strings.Repeat("x", 100)+"...\n")
	assert.NotContains(t, out, "PMID 11:")
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(sampleResult(), &buf))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	for _, key := range []string{"variant_info", "candidate_papers", "functional_papers", "experiments", "assessment", "failures"} {
		assert.Contains(t, got, key)
	}
	assert.Equal(t, "PS3", got["assessment"].(map[string]any)["decision"])
}

func TestFormatYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatYAML(sampleResult(), &buf))

	var got types.Result
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "SCN2A", got.Variant.GeneSymbol)
	assert.Len(t, got.Experiments, 2)
}

func TestFormatHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatHTML(sampleResult(), &buf))
	out := buf.String()

	assert.Contains(t, out, "1. Variant Information")
	assert.Contains(t, out, `class="decision ps3"`)
	assert.Contains(t, out, "(SUPPORTING)")
	assert.Contains(t, out, "Second &lt;paper&gt;")
	assert.NotContains(t, out, "Second <paper>")
	assert.Contains(t, out, "Experiment 2: western blot")
	assert.Contains(t, out, "metadata 111: no PubMed record")
}

func TestSave(t *testing.T) {
	for _, format := range []types.OutputFormat{types.OutputHTML, types.OutputJSON, types.OutputYAML} {
		t.Run(string(format), func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "reports")
			path, err := Save(sampleResult(), types.ReportConfig{Format: format, OutputDir: dir})
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "2_162279995_C_G_GRCh38."+string(format)), path)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "SCN2A")
		})
	}
}

func TestSaveText(t *testing.T) {
	_, err := Save(sampleResult(), types.ReportConfig{Format: types.OutputText, OutputDir: t.TempDir()})
	assert.Error(t, err)
}

func TestSaveHTMLFallsBackToJSON(t *testing.T) {
	dir := t.TempDir()
	// A directory in place of the HTML file makes the write fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "2_162279995_C_G_GRCh38.html"), 0o755))

	path, err := Save(sampleResult(), types.ReportConfig{Format: types.OutputHTML, OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2_162279995_C_G_GRCh38.json"), path)
	assert.FileExists(t, path)
}

func TestGroupByPMID(t *testing.T) {
	exps := []types.ExperimentRecord{
		{PMID: "2", AssayType: "a"},
		{PMID: "1", AssayType: "b"},
		{PMID: "2", AssayType: "c"},
	}
	groups := groupByPMID(exps)
	require.Len(t, groups, 2)
	assert.Equal(t, "2", groups[0].PMID)
	assert.Len(t, groups[0].Experiments, 2)
	assert.Equal(t, "c", groups[0].Experiments[1].AssayType)
	assert.Equal(t, "1", groups[1].PMID)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", preview("abc", 5))
	assert.Equal(t, "ab", preview("abc", 2))
	assert.Equal(t, "éé", preview("ééé", 2))
}
