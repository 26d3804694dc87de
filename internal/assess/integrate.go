// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assess

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

// strongPaperThreshold is the number of distinct high-confidence papers
// needed, with no opposing high-confidence evidence, for strong strength.
const strongPaperThreshold = 2

const noEvidenceNarrative = "No functional experiments directly testing this variant were identified " +
	"in the retrieved literature. Therefore, PS3 and BS3 are not applied."

// Integrate maps experiments to a PS3/BS3 assessment. It is total over any
// input, including nil, and the result does not depend on input order.
// Duplicate records are counted as independent evidence items.
func Integrate(experiments []types.ExperimentRecord, filter QualityFilter) types.Assessment {
	var pathogenic, benign []types.ExperimentRecord
	for _, e := range experiments {
		switch e.Evaluation {
		case types.EvalSupportsPathogenic:
			pathogenic = append(pathogenic, e)
		case types.EvalSupportsBenign:
			benign = append(benign, e)
		}
	}

	hqPath := filter.Filter(pathogenic)
	hqBenign := filter.Filter(benign)

	decision, strength := decide(hqPath, hqBenign)

	return types.Assessment{
		Decision:  decision,
		Strength:  strength,
		Narrative: narrative(experiments, pathogenic, benign, decision, strength),
		KeyPMIDs:  distinctPMIDs(experiments),
	}
}

// decide applies the decision rule; the first matching branch wins.
func decide(hqPath, hqBenign []types.ExperimentRecord) (types.Decision, types.Strength) {
	switch {
	case len(distinctPMIDs(hqPath)) >= strongPaperThreshold && len(hqBenign) == 0:
		return types.DecisionPS3, types.StrengthStrong
	case len(distinctPMIDs(hqBenign)) >= strongPaperThreshold && len(hqPath) == 0:
		return types.DecisionBS3, types.StrengthStrong
	case len(hqPath) > 0 && len(hqBenign) == 0:
		return types.DecisionPS3, types.StrengthSupporting
	case len(hqBenign) > 0 && len(hqPath) == 0:
		return types.DecisionBS3, types.StrengthSupporting
	default:
		return types.DecisionNone, ""
	}
}

func narrative(all, pathogenic, benign []types.ExperimentRecord, decision types.Decision, strength types.Strength) string {
	if len(all) == 0 {
		return noEvidenceNarrative
	}

	var parts []string
	if len(pathogenic) > 0 {
		parts = append(parts, fmt.Sprintf(
			"%d experiment(s) across %d paper(s) reported impaired or abnormal function consistent with a damaging effect.",
			len(pathogenic), len(distinctPMIDs(pathogenic))))
	}
	if len(benign) > 0 {
		parts = append(parts, fmt.Sprintf(
			"%d experiment(s) across %d paper(s) reported normal or near-normal function, consistent with a benign effect.",
			len(benign), len(distinctPMIDs(benign))))
	}
	if len(pathogenic) == 0 && len(benign) == 0 {
		parts = append(parts, "All experiments were judged ambiguous or low-quality.")
	}

	switch decision {
	case types.DecisionPS3:
		parts = append(parts, fmt.Sprintf(
			"Taken together, these studies provide functional evidence supporting a damaging effect on the gene product, "+
				"compatible with application of PS3 (%s strength).", strength))
	case types.DecisionBS3:
		parts = append(parts, fmt.Sprintf(
			"Taken together, these studies provide functional evidence supporting a non-damaging effect on the gene product, "+
				"compatible with application of BS3 (%s strength).", strength))
	default:
		parts = append(parts, "However, the overall body of functional evidence is insufficient or conflicting "+
			"to confidently apply PS3 or BS3.")
	}

	return strings.Join(parts, " ")
}

// distinctPMIDs returns the sorted set of PMIDs in exps. The result is
// never nil so that serialized assessments carry an empty list.
func distinctPMIDs(exps []types.ExperimentRecord) []string {
	seen := make(map[string]bool, len(exps))
	pmids := []string{}
	for _, e := range exps {
		if seen[e.PMID] {
			continue
		}
		seen[e.PMID] = true
		pmids = append(pmids, e.PMID)
	}
	sort.Strings(pmids)
	return pmids
}
