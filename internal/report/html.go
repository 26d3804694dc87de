// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"html/template"
	"io"
	"strings"

	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

const projectURL = "https://github.com/AliSaadatV/AcmGENTIC"

// htmlData is the view model for the HTML page.
type htmlData struct {
	*types.Result
	Groups     []PaperExperiments
	ProjectURL string
}

var htmlFuncs = template.FuncMap{
	"preview": preview,
	"upper":   func(s types.Strength) string { return strings.ToUpper(string(s)) },
	"decisionClass": func(d types.Decision) string {
		switch d {
		case types.DecisionPS3:
			return "ps3"
		case types.DecisionBS3:
			return "bs3"
		default:
			return "none"
		}
	},
	"na": func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	},
	"inc": func(i int) int { return i + 1 },
}

var htmlTmpl = template.Must(template.New("report").Funcs(htmlFuncs).Parse(htmlPage))

// FormatHTML writes res as a self-contained HTML page.
func FormatHTML(res *types.Result, w io.Writer) error {
	return htmlTmpl.Execute(w, htmlData{
		Result:     res,
		Groups:     groupByPMID(res.Experiments),
		ProjectURL: projectURL,
	})
}

const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>PS3/BS3 Analysis Report</title>
<style>
body { font-family: system-ui, sans-serif; line-height: 1.5; color: #222; background: #eef1f6; margin: 0; padding: 20px; }
main { max-width: 1100px; margin: 0 auto; background: #fff; border-radius: 6px; overflow: hidden; }
header { background: #4b5bbf; color: #fff; padding: 24px; text-align: center; }
section { margin: 24px; padding-left: 16px; border-left: 4px solid #4b5bbf; }
dl { display: grid; grid-template-columns: max-content 1fr; gap: 4px 16px; }
dt { font-weight: 600; }
table { width: 100%; border-collapse: collapse; font-size: 0.95em; }
th, td { border-bottom: 1px solid #ddd; padding: 6px 8px; text-align: left; vertical-align: top; }
.stats { display: flex; gap: 16px; margin-bottom: 16px; }
.stat { background: #f3f4fa; border-radius: 6px; padding: 12px 20px; text-align: center; }
.stat b { display: block; font-size: 1.6em; }
.experiment { background: #fafafa; border: 1px solid #e3e3e3; border-radius: 4px; padding: 12px; margin: 8px 0; }
.decision { padding: 16px; border-radius: 6px; font-size: 1.2em; font-weight: 600; }
.decision.ps3 { background: #fde2e2; color: #8a1c1c; }
.decision.bs3 { background: #def5e3; color: #1d6b32; }
.decision.none { background: #eceff3; color: #444; }
.failures { color: #8a5a00; }
footer { text-align: center; font-size: 0.85em; color: #666; padding: 16px; }
</style>
</head>
<body>
<main>
<header>
<h1>Functional Evidence Report (PS3/BS3)</h1>
<p>{{.Variant.Chrom}}:{{.Variant.Pos}} {{.Variant.Ref}}&gt;{{.Variant.Alt}} ({{.Assembly}})</p>
</header>

<section>
<h2>1. Variant Information</h2>
<dl>
<dt>Genomic coordinates</dt><dd>{{.Variant.Chrom}}:{{.Variant.Pos}} {{.Variant.Ref}}&gt;{{.Variant.Alt}}</dd>
<dt>Gene</dt><dd>{{na .Variant.GeneSymbol}}</dd>
<dt>rsID</dt><dd>{{na .Variant.RSID}}</dd>
<dt>HGVSc</dt><dd>{{na .Variant.HGVSc}}</dd>
<dt>HGVSp</dt><dd>{{na .Variant.HGVSp}}</dd>
<dt>MANE transcript</dt><dd>{{na .Variant.Transcripts.MANE}}</dd>
<dt>Ensembl transcript</dt><dd>{{na .Variant.Transcripts.Ensembl}}</dd>
<dt>Search identifiers</dt><dd>{{range $i, $id := .SearchIDs}}{{if $i}}, {{end}}{{$id}}{{end}}</dd>
</dl>
</section>

<section>
<h2>2. Literature Summary</h2>
<div class="stats">
<div class="stat"><b>{{len .CandidatePapers}}</b>candidate papers</div>
<div class="stat"><b>{{len .FunctionalPapers}}</b>functional papers</div>
<div class="stat"><b>{{len .Experiments}}</b>experiments</div>
</div>
{{if .FunctionalPapers}}
<table>
<tr><th>PMID</th><th>Title</th><th>Justification</th></tr>
{{range .FunctionalPapers}}<tr><td><a href="https://pubmed.ncbi.nlm.nih.gov/{{.PMID}}/">{{.PMID}}</a></td><td>{{preview .Title 80}}</td><td>{{preview .Justification 60}}</td></tr>
{{end}}</table>
{{else}}<p>No papers with direct functional experiments identified.</p>{{end}}
</section>

<section>
<h2>3. Functional Experiments</h2>
{{range .Groups}}
<h3>PMID {{.PMID}}</h3>
{{range $i, $e := .Experiments}}<div class="experiment">
<h4>Experiment {{inc $i}}: {{$e.AssayType}}</h4>
<dl>
<dt>System</dt><dd>{{$e.System}}</dd>
<dt>Readout</dt><dd>{{$e.Readout}}</dd>
<dt>Effect direction</dt><dd>{{$e.EffectDirection}}</dd>
<dt>Magnitude &amp; stats</dt><dd>{{$e.MagnitudeStats}}</dd>
<dt>Controls &amp; quality</dt><dd>{{$e.ControlsValidity}}</dd>
<dt>Authors' conclusion</dt><dd>{{$e.AuthorsConclusion}}</dd>
<dt>Evaluation</dt><dd>{{$e.Evaluation}}</dd>
</dl>
</div>
{{end}}{{else}}<p>No functional experiments extracted.</p>{{end}}
</section>

<section>
<h2>4. ACMG Assessment</h2>
<div class="decision {{decisionClass .Assessment.Decision}}">Decision: {{.Assessment.Decision}}{{if .Assessment.Strength}} ({{upper .Assessment.Strength}}){{end}}</div>
<p>{{.Assessment.Narrative}}</p>
{{if .Assessment.KeyPMIDs}}<p><strong>Key PMIDs:</strong> {{range $i, $p := .Assessment.KeyPMIDs}}{{if $i}}, {{end}}{{$p}}{{end}}</p>{{end}}
{{if .Failures}}<div class="failures">
<h3>Item failures</h3>
<ul>{{range .Failures}}<li>{{.Stage}} {{.Key}}: {{.Error}}</li>{{end}}</ul>
</div>{{end}}
</section>

<footer>Run {{.RunID}} &middot; generated by <a href="{{.ProjectURL}}">AcmGENTIC</a></footer>
</main>
</body>
</html>
`
