// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a pipeline Result as a console report, JSON, YAML,
// or a standalone HTML page, and saves reports under an output directory.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

const (
	rule          = "================================================================================"
	sampleSize    = 10
	titlePreview  = 100
	defaultOutDir = "output_report"
)

// ParseFormat validates a user-supplied output format. "dict" is accepted
// as a synonym for json.
func ParseFormat(s string) (types.OutputFormat, error) {
	switch f := types.OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return types.OutputHTML, nil
	case types.OutputHTML, types.OutputJSON, types.OutputYAML, types.OutputText:
		return f, nil
	case "dict":
		return types.OutputJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q: use html, json, yaml, or text", s)
	}
}

// Render writes res to w in the given format.
func Render(res *types.Result, format types.OutputFormat, w io.Writer) error {
	switch format {
	case types.OutputText:
		return FormatText(res, w)
	case types.OutputJSON:
		return FormatJSON(res, w)
	case types.OutputYAML:
		return FormatYAML(res, w)
	case types.OutputHTML:
		return FormatHTML(res, w)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// FormatJSON writes res as indented JSON.
func FormatJSON(res *types.Result, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// FormatYAML writes res as YAML.
func FormatYAML(res *types.Result, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(res)
}

// BaseName returns the report file stem {chrom}_{pos}_{ref}_{alt}_{assembly}.
func BaseName(res *types.Result) string {
	v := res.Variant
	return fmt.Sprintf("%s_%d_%s_%s_%s", v.Chrom, v.Pos, v.Ref, v.Alt, res.Assembly)
}

// Save writes res into cfg.OutputDir and returns the written path. Text
// reports are not saved; use Render. When HTML rendering fails the result
// is saved as JSON instead and the returned error is nil.
func Save(res *types.Result, cfg types.ReportConfig) (string, error) {
	dir := cfg.OutputDir
	if dir == "" {
		dir = defaultOutDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	format := cfg.Format
	if format == "" {
		format = types.OutputHTML
	}
	if format == types.OutputText {
		return "", fmt.Errorf("text reports are written to the console, not saved")
	}

	path, err := saveAs(res, dir, format)
	if err != nil && format == types.OutputHTML {
		return saveAs(res, dir, types.OutputJSON)
	}
	return path, err
}

func saveAs(res *types.Result, dir string, format types.OutputFormat) (string, error) {
	path := filepath.Join(dir, BaseName(res)+"."+string(format))

	var sb strings.Builder
	if err := Render(res, format, &sb); err != nil {
		return "", fmt.Errorf("rendering %s report: %w", format, err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// FormatText writes the six-section console report.
func FormatText(res *types.Result, w io.Writer) error {
	v := res.Variant
	p := &printer{w: w}

	p.line("\n" + rule)
	p.line("VARIANT FUNCTIONAL EVIDENCE REPORT (PS3/BS3)")
	p.line(rule + "\n")

	p.line("1. Variant identifiers\n")
	p.f("   Genomic coordinates: %s:%d %s>%s\n", v.Chrom, v.Pos, v.Ref, v.Alt)
	p.opt("Gene", v.GeneSymbol)
	p.opt("rsID", v.RSID)
	p.opt("HGVSc", v.HGVSc)
	p.opt("HGVSp", v.HGVSp)
	p.opt("MANE transcript", v.Transcripts.MANE)
	p.opt("Ensembl transcript", v.Transcripts.Ensembl)
	p.line("\n   Identifiers used for search:")
	for _, id := range res.SearchIDs {
		p.f("   - %s\n", id)
	}
	p.line("")

	p.line("2. Literature retrieval summary\n")
	if len(res.CandidatePapers) == 0 {
		p.line("   No candidate papers identified from LitVar2.\n")
	} else {
		p.f("   Total papers from LitVar2: %d\n\n", len(res.CandidatePapers))
		p.line("   Sample of papers:")
		papers := append([]types.CandidatePaper(nil), res.CandidatePapers...)
		sort.SliceStable(papers, func(i, j int) bool { return pmidNumber(papers[i].PMID) < pmidNumber(papers[j].PMID) })
		for i, cp := range papers {
			if i == sampleSize {
				break
			}
			p.f("   - PMID %s: %s...\n", cp.PMID, preview(cp.Title, titlePreview))
		}
		if len(papers) > sampleSize {
			p.f("   ... and %d more papers\n", len(papers)-sampleSize)
		}
		p.line("")
	}

	p.line("3. Functionally relevant papers\n")
	if len(res.FunctionalPapers) == 0 {
		p.line("   No papers with direct functional experiments identified.\n")
	} else {
		p.f("   Found %d functionally relevant paper(s):\n\n", len(res.FunctionalPapers))
		for _, fp := range res.FunctionalPapers {
			p.f("   - PMID %s: %s\n", fp.PMID, fp.Title)
			p.f("     Justification: %s\n", fp.Justification)
			if fp.PDFPath != "" {
				p.f("     PDF path: %s\n", fp.PDFPath)
			}
			p.line("")
		}
	}

	p.line("4. Functional evidence per paper\n")
	if len(res.Experiments) == 0 {
		p.line("   No functional experiments extracted.\n")
	} else {
		for _, group := range groupByPMID(res.Experiments) {
			p.f("   PMID %s (%d experiment(s)):\n", group.PMID, len(group.Experiments))
			for i, e := range group.Experiments {
				p.f("\n     Experiment %d:\n", i+1)
				p.f("       Assay type: %s\n", e.AssayType)
				p.f("       System: %s\n", e.System)
				p.f("       Readout: %s\n", e.Readout)
				p.f("       Effect direction: %s\n", e.EffectDirection)
				p.f("       Magnitude & stats: %s\n", e.MagnitudeStats)
				p.f("       Controls & quality: %s\n", e.ControlsValidity)
				p.f("       Authors' conclusion: %s\n", e.AuthorsConclusion)
				p.f("       Evaluation: %s\n", e.Evaluation)
			}
			p.line("")
		}
	}

	a := res.Assessment
	p.line("5. Integrated assessment\n")
	p.line("   " + a.Narrative + "\n")

	p.line("6. ACMG functional criterion call\n")
	switch a.Decision {
	case types.DecisionPS3:
		p.line("   ✓ PS3 - Functional evidence supports a damaging effect")
	case types.DecisionBS3:
		p.line("   ✓ BS3 - Functional evidence supports no damaging effect")
	default:
		p.line("   ✗ Neither PS3 nor BS3 applies")
		p.line("     Functional evidence is insufficient or conflicting")
	}
	if a.Strength != "" {
		p.f("\n   Strength: %s\n", strings.ToUpper(string(a.Strength)))
	}
	if len(a.KeyPMIDs) > 0 {
		p.f("   Key PMIDs: %s\n", strings.Join(a.KeyPMIDs, ", "))
	}

	if len(res.Failures) > 0 {
		p.f("\n   %d item(s) failed during retrieval, screening, or extraction:\n", len(res.Failures))
		for _, f := range res.Failures {
			p.f("   - %s %s: %s\n", f.Stage, f.Key, f.Error)
		}
	}

	p.line("\n" + rule + "\n")
	return p.err
}

// printer writes formatted lines and keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) f(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) line(s string) { p.f("%s\n", s) }

// opt prints an indented label line when value is set.
func (p *printer) opt(label, value string) {
	if value != "" {
		p.f("   %s: %s\n", label, value)
	}
}

// PaperExperiments groups a paper's experiments in extraction order.
type PaperExperiments struct {
	PMID        string
	Experiments []types.ExperimentRecord
}

// groupByPMID groups experiments by PMID in order of first appearance.
func groupByPMID(exps []types.ExperimentRecord) []PaperExperiments {
	index := make(map[string]int)
	var groups []PaperExperiments
	for _, e := range exps {
		i, ok := index[e.PMID]
		if !ok {
			i = len(groups)
			index[e.PMID] = i
			groups = append(groups, PaperExperiments{PMID: e.PMID})
		}
		groups[i].Experiments = append(groups[i].Experiments, e)
	}
	return groups
}

// pmidNumber orders numeric PMIDs numerically; others sort first.
func pmidNumber(pmid string) int {
	n, err := strconv.Atoi(pmid)
	if err != nil {
		return 0
	}
	return n
}

// preview returns at most n runes of s.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
