// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"text/template"
)

// jsonOnlyInstruction is sent as the system message to every backend.
const jsonOnlyInstruction = "You are an expert clinical variant curator. Respond with a single JSON object and no other text."

// screeningPromptTmpl asks whether a paper contains experimental functional
// data on the variant of interest.
var screeningPromptTmpl = template.Must(template.New("screening").Parse(`You are assisting with ACMG variant curation for PS3/BS3.

Variant of interest: {{.Variant}}

Paper:
PMID: {{.PMID}}
Title: {{.Title}}
Abstract: {{.Abstract}}

Question: Does this paper include *experimental functional data* (in vitro or in vivo)
specifically on this variant (or clearly equivalent notation)?

Exclude:
- Purely in silico prediction
- Only genotype/phenotype correlations
- Reviews without new experiments
- Papers that only mention the variant without testing it

Respond in JSON with keys:
- "is_functional": true/false
- "justification": short string (1-3 sentences).
`))

// extractionPromptTmpl asks for every experiment in the paper that tests the
// variant of interest, with the fields ParseExperiments consumes.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are helping evaluate ACMG criteria PS3 and BS3 for a genetic variant.

Variant of interest: {{.Variant}}
Paper PMID: {{.PMID}}
Title: {{.Title}}

Below is the text (abstract and possibly more) for this paper:
---
{{.Text}}
---

ACMG functional criteria:
- PS3: Well-established in vitro or in vivo functional studies supportive of a damaging
  effect on the gene or gene product.
- BS3: Well-established in vitro or in vivo functional studies show no damaging effect
  on protein function or splicing.

Task:
Identify all experiments that directly test the functional impact of THIS variant.
For each experiment, extract:

- assay_type (e.g. "enzyme activity", "minigene splicing", "luciferase reporter")
- system (e.g. HEK293 cells, patient fibroblasts, mouse model, yeast)
- readout (e.g. catalytic activity, expression level, localization, splicing pattern)
- effect_direction: one of ["strong_loss_of_function", "partial_loss_of_function",
   "gain_of_function", "dominant_negative", "no_effect_vs_wildtype", "ambiguous"]
- magnitude_stats: brief text summarizing fold-changes, p-values, replicates
- controls_validity: brief text on controls, replication, assay quality
- authors_conclusion: short paraphrase of what authors say about variant effect
- evaluation: one of ["supports_pathogenic", "supports_benign", "ambiguous", "low_quality"]

Return JSON with key "experiments" containing a list of objects with the above keys.
If no relevant experiments found, return {"experiments": []}.
`))

type screeningPromptData struct {
	Variant  string
	PMID     string
	Title    string
	Abstract string
}

type extractionPromptData struct {
	Variant string
	PMID    string
	Title   string
	Text    string
}

// renderPrompt executes tmpl with data.
func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
