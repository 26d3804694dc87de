// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// CandidatePaper is a paper that mentions the variant, one per unique PMID.
type CandidatePaper struct {
	PMID     string `json:"pmid" yaml:"pmid"`
	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract" yaml:"abstract"`

	// Source names the lookup service that surfaced the paper (e.g. "litvar2").
	Source string `json:"source" yaml:"source"`

	// RelevanceReason explains why the paper is a candidate.
	RelevanceReason string `json:"relevance_reason" yaml:"relevance_reason"`
}

// PaperMetadata is the bibliographic record returned by the metadata collaborator.
type PaperMetadata struct {
	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract" yaml:"abstract"`
}

// ScreeningDecision is the screening collaborator's verdict for one paper.
type ScreeningDecision struct {
	IsFunctional  bool   `json:"is_functional" yaml:"is_functional"`
	Justification string `json:"justification" yaml:"justification"`
}

// FunctionalPaper is a candidate judged to contain experimental functional
// data on the variant of interest.
type FunctionalPaper struct {
	PMID          string `json:"pmid" yaml:"pmid"`
	Title         string `json:"title" yaml:"title"`
	Justification string `json:"justification" yaml:"justification"`

	// PDFPath is the local path of a downloaded PDF, when one exists.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`
}

// EffectDirection is the direction of the measured functional effect.
type EffectDirection string

const (
	EffectStrongLoF        EffectDirection = "strong_loss_of_function"
	EffectPartialLoF       EffectDirection = "partial_loss_of_function"
	EffectGainOfFunction   EffectDirection = "gain_of_function"
	EffectDominantNegative EffectDirection = "dominant_negative"
	EffectNoEffect         EffectDirection = "no_effect_vs_wildtype"
	EffectAmbiguous        EffectDirection = "ambiguous"
)

// validEffectDirections is the set of accepted EffectDirection values.
var validEffectDirections = map[EffectDirection]bool{
	EffectStrongLoF:        true,
	EffectPartialLoF:       true,
	EffectGainOfFunction:   true,
	EffectDominantNegative: true,
	EffectNoEffect:         true,
	EffectAmbiguous:        true,
}

// Valid reports whether d is one of the known directions.
func (d EffectDirection) Valid() bool { return validEffectDirections[d] }

// Evaluation is the per-experiment judgement used by the integration rule.
type Evaluation string

const (
	EvalSupportsPathogenic Evaluation = "supports_pathogenic"
	EvalSupportsBenign     Evaluation = "supports_benign"
	EvalAmbiguous          Evaluation = "ambiguous"
	EvalLowQuality         Evaluation = "low_quality"
)

var validEvaluations = map[Evaluation]bool{
	EvalSupportsPathogenic: true,
	EvalSupportsBenign:     true,
	EvalAmbiguous:          true,
	EvalLowQuality:         true,
}

// Valid reports whether e is one of the known evaluations.
func (e Evaluation) Valid() bool { return validEvaluations[e] }

// ExperimentRecord is one assay extracted from one paper. Several records
// may share a PMID. Records are never merged, even literal duplicates.
type ExperimentRecord struct {
	PMID              string          `json:"pmid" yaml:"pmid"`
	AssayType         string          `json:"assay_type" yaml:"assay_type"`
	System            string          `json:"system" yaml:"system"`
	Readout           string          `json:"readout" yaml:"readout"`
	EffectDirection   EffectDirection `json:"effect_direction" yaml:"effect_direction"`
	MagnitudeStats    string          `json:"magnitude_stats" yaml:"magnitude_stats"`
	ControlsValidity  string          `json:"controls_validity" yaml:"controls_validity"`
	AuthorsConclusion string          `json:"authors_conclusion" yaml:"authors_conclusion"`
	Evaluation        Evaluation      `json:"evaluation" yaml:"evaluation"`
}

// Decision is the ACMG functional criterion applied.
type Decision string

const (
	DecisionPS3  Decision = "PS3"
	DecisionBS3  Decision = "BS3"
	DecisionNone Decision = "none"
)

// Strength qualifies a PS3/BS3 decision. The empty value means absent.
type Strength string

const (
	StrengthStrong     Strength = "strong"
	StrengthSupporting Strength = "supporting"
)

// Assessment is the integrated PS3/BS3 call for one run.
type Assessment struct {
	Decision  Decision `json:"decision" yaml:"decision"`
	Strength  Strength `json:"strength,omitempty" yaml:"strength,omitempty"`
	Narrative string   `json:"narrative" yaml:"narrative"`

	// KeyPMIDs lists every distinct PMID across all experiments, sorted ascending.
	KeyPMIDs []string `json:"key_pmids" yaml:"key_pmids"`
}

// Stage names a pipeline stage in failure records and logs.
type Stage string

const (
	StageAnnotation Stage = "annotation"
	StageLookup     Stage = "lookup"
	StageMetadata   Stage = "metadata"
	StageScreening  Stage = "screening"
	StagePDF        Stage = "pdf"
	StageConversion Stage = "conversion"
	StageText       Stage = "text"
	StageExtraction Stage = "extraction"
)

// ItemFailure records one isolated per-item failure. Key is the identifier,
// PMID, or variant notation the failing call was made for.
type ItemFailure struct {
	Stage Stage  `json:"stage" yaml:"stage"`
	Key   string `json:"key" yaml:"key"`
	Error string `json:"error" yaml:"error"`
}

// Result is the serializable output of one pipeline run.
type Result struct {
	RunID            string             `json:"run_id" yaml:"run_id"`
	Assembly         Assembly           `json:"assembly" yaml:"assembly"`
	Variant          VariantIdentity    `json:"variant_info" yaml:"variant_info"`
	SearchIDs        []string           `json:"search_identifiers" yaml:"search_identifiers"`
	CandidatePapers  []CandidatePaper   `json:"candidate_papers" yaml:"candidate_papers"`
	FunctionalPapers []FunctionalPaper  `json:"functional_papers" yaml:"functional_papers"`
	Experiments      []ExperimentRecord `json:"experiments" yaml:"experiments"`
	Assessment       Assessment         `json:"assessment" yaml:"assessment"`
	Failures         []ItemFailure      `json:"failures,omitempty" yaml:"failures,omitempty"`
	StartedAt        time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt       time.Time          `json:"finished_at" yaml:"finished_at"`
}
