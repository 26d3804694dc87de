// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assess turns extracted experiment records into an ACMG PS3/BS3
// call. It is pure: no I/O, no retries, no shared state.
package assess

import (
	"strings"
	"unicode/utf8"

	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

// DefaultMinControlsLength is the controls/validity length an experiment must
// exceed to count as high-confidence when no threshold is configured.
const DefaultMinControlsLength = 40

// QualityFilter separates high-confidence experiments from the rest.
//
// The signal is the length of the controls/validity description, a proxy for
// how thoroughly controls and replication were reported. Length is counted in
// runes after trimming surrounding whitespace, so longer text never turns a
// passing record into a failing one.
type QualityFilter struct {
	// MinControlsLength is the exclusive lower bound on description length.
	// Zero or negative selects DefaultMinControlsLength.
	MinControlsLength int
}

// NewQualityFilter returns a filter for cfg.
func NewQualityFilter(cfg types.AssessmentConfig) QualityFilter {
	return QualityFilter{MinControlsLength: cfg.MinControlsLength}
}

func (f QualityFilter) threshold() int {
	if f.MinControlsLength <= 0 {
		return DefaultMinControlsLength
	}
	return f.MinControlsLength
}

// IsHighConfidence reports whether e passes the informativeness threshold.
func (f QualityFilter) IsHighConfidence(e types.ExperimentRecord) bool {
	return utf8.RuneCountInString(strings.TrimSpace(e.ControlsValidity)) > f.threshold()
}

// Filter returns the high-confidence subset of exps in input order.
func (f QualityFilter) Filter(exps []types.ExperimentRecord) []types.ExperimentRecord {
	var out []types.ExperimentRecord
	for _, e := range exps {
		if f.IsHighConfidence(e) {
			out = append(out, e)
		}
	}
	return out
}
