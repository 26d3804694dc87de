// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

const defaultMaxResults = 20

// ListOptions filters archived runs. Zero values match everything.
type ListOptions struct {
	// Variant restricts runs to one identity key. Only Chrom, Pos, Ref and
	// Alt are compared.
	Variant *types.VariantIdentity

	Decision types.Decision

	// MaxResults limits result count. Zero uses the default of 20.
	MaxResults int
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Variant    string         `json:"variant" yaml:"variant"`
	Assembly   types.Assembly `json:"assembly" yaml:"assembly"`
	GeneSymbol string         `json:"gene_symbol,omitempty" yaml:"gene_symbol,omitempty"`
	Decision   types.Decision `json:"decision" yaml:"decision"`
	Strength   types.Strength `json:"strength,omitempty" yaml:"strength,omitempty"`
	Candidates int            `json:"candidates" yaml:"candidates"`
	Functional int            `json:"functional" yaml:"functional"`
	Failures   int            `json:"failures" yaml:"failures"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
}

// List returns run summaries, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT id, chrom, pos, ref, alt, assembly, gene_symbol, decision, strength,
			candidates, functional, failures, started_at
		FROM runs WHERE 1=1`)

	if v := opts.Variant; v != nil {
		qb.WriteString(` AND chrom = ? AND pos = ? AND ref = ? AND alt = ?`)
		args = append(args, v.Chrom, v.Pos, v.Ref, v.Alt)
	}
	if opts.Decision != "" {
		qb.WriteString(` AND decision = ?`)
		args = append(args, string(opts.Decision))
	}

	qb.WriteString(` ORDER BY started_at DESC, id LIMIT ?`)
	args = append(args, limit(opts.MaxResults))

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs                       RunSummary
			chrom, ref, alt          string
			pos                      int
			assembly, dec            string
			gene, strength           sql.NullString
			cand, functional, failed sql.NullInt64
			startedAt                sql.NullString
		)
		if err := rows.Scan(&rs.RunID, &chrom, &pos, &ref, &alt, &assembly, &gene, &dec, &strength,
			&cand, &functional, &failed, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rs.Variant = fmt.Sprintf("%s:%d%s>%s", chrom, pos, ref, alt)
		rs.Assembly = types.Assembly(assembly)
		rs.GeneSymbol = gene.String
		rs.Decision = types.Decision(dec)
		rs.Strength = types.Strength(strength.String)
		rs.Candidates = int(cand.Int64)
		rs.Functional = int(functional.Int64)
		rs.Failures = int(failed.Int64)
		rs.StartedAt = parseTime(startedAt.String)
		out = append(out, rs)
	}
	return out, rows.Err()
}

// ExperimentQuery filters archived experiments across runs.
type ExperimentQuery struct {
	PMID       string
	Evaluation types.Evaluation

	// Assay matches assay_type case-insensitively as a substring.
	Assay string

	MaxResults int
}

// ExperimentHit is an archived experiment with the run it came from.
type ExperimentHit struct {
	RunID            string                `json:"run_id" yaml:"run_id"`
	Variant          string                `json:"variant" yaml:"variant"`
	PMID             string                `json:"pmid" yaml:"pmid"`
	AssayType        string                `json:"assay_type" yaml:"assay_type"`
	System           string                `json:"system" yaml:"system"`
	EffectDirection  types.EffectDirection `json:"effect_direction" yaml:"effect_direction"`
	Evaluation       types.Evaluation      `json:"evaluation" yaml:"evaluation"`
	ControlsValidity string                `json:"controls_validity" yaml:"controls_validity"`
}

// FindExperiments searches experiments across all archived runs, ordered by
// PMID, then run, then position within the run.
func (s *Store) FindExperiments(ctx context.Context, q ExperimentQuery) ([]ExperimentHit, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT e.run_id, r.chrom, r.pos, r.ref, r.alt, e.pmid, e.assay_type, e.system,
			e.effect_direction, e.evaluation, e.controls_validity
		FROM experiments e
		JOIN runs r ON r.id = e.run_id
		WHERE 1=1`)

	if q.PMID != "" {
		qb.WriteString(` AND e.pmid = ?`)
		args = append(args, q.PMID)
	}
	if q.Evaluation != "" {
		qb.WriteString(` AND e.evaluation = ?`)
		args = append(args, string(q.Evaluation))
	}
	if q.Assay != "" {
		qb.WriteString(` AND lower(e.assay_type) LIKE ?`)
		args = append(args, "%"+strings.ToLower(q.Assay)+"%")
	}

	qb.WriteString(` ORDER BY e.pmid, e.run_id, e.seq LIMIT ?`)
	args = append(args, limit(q.MaxResults))

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying experiments: %w", err)
	}
	defer rows.Close()

	var out []ExperimentHit
	for rows.Next() {
		var (
			h               ExperimentHit
			chrom, ref, alt string
			pos             int
			assay, system   sql.NullString
			dir, eval, ctrl sql.NullString
		)
		if err := rows.Scan(&h.RunID, &chrom, &pos, &ref, &alt, &h.PMID, &assay, &system,
			&dir, &eval, &ctrl); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		h.Variant = fmt.Sprintf("%s:%d%s>%s", chrom, pos, ref, alt)
		h.AssayType = assay.String
		h.System = system.String
		h.EffectDirection = types.EffectDirection(dir.String)
		h.Evaluation = types.Evaluation(eval.String)
		h.ControlsValidity = ctrl.String
		out = append(out, h)
	}
	return out, rows.Err()
}

func limit(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	return n
}
