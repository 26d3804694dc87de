// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the acmgentic pipeline:
// the variant identity, literature evidence records, the integrated
// assessment, and per-stage configuration.
package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidVariant is returned when variant coordinates cannot form a
// VariantIdentity. It is the only fatal error of a pipeline run.
var ErrInvalidVariant = errors.New("invalid variant")

// ErrUnsupportedAssembly is returned for assemblies other than GRCh38 and GRCh37.
var ErrUnsupportedAssembly = errors.New("unsupported assembly")

// Assembly names the reference genome build used for annotation.
type Assembly string

const (
	AssemblyGRCh38 Assembly = "GRCh38"
	AssemblyGRCh37 Assembly = "GRCh37"
)

// ParseAssembly validates an assembly name. The empty string selects GRCh38.
func ParseAssembly(s string) (Assembly, error) {
	switch strings.TrimSpace(s) {
	case "", string(AssemblyGRCh38):
		return AssemblyGRCh38, nil
	case string(AssemblyGRCh37):
		return AssemblyGRCh37, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: GRCh38, GRCh37)", ErrUnsupportedAssembly, s)
	}
}

// TranscriptIDs holds the transcript identifiers chosen by annotation.
type TranscriptIDs struct {
	// Ensembl is the Ensembl transcript ID (e.g. "ENST00000303395").
	Ensembl string `json:"ensembl,omitempty" yaml:"ensembl,omitempty"`

	// MANE is the MANE Select RefSeq transcript (e.g. "NM_002055.5").
	MANE string `json:"mane,omitempty" yaml:"mane,omitempty"`
}

// VariantIdentity is the canonical record for one variant. Chrom, Pos, Ref
// and Alt form the permanent identity key and are fixed by
// NewVariantIdentity; the remaining fields are filled by Enrich.
type VariantIdentity struct {
	Chrom string `json:"chrom" yaml:"chrom"`
	Pos   int    `json:"pos" yaml:"pos"`
	Ref   string `json:"ref" yaml:"ref"`
	Alt   string `json:"alt" yaml:"alt"`

	// RSID is the dbSNP identifier (e.g. "rs121909211").
	RSID string `json:"rsid,omitempty" yaml:"rsid,omitempty"`

	// HGVSc is the coding-level HGVS notation of the picked transcript.
	HGVSc string `json:"hgvsc,omitempty" yaml:"hgvsc,omitempty"`

	// HGVSp is the protein-level HGVS notation of the picked transcript.
	HGVSp string `json:"hgvsp,omitempty" yaml:"hgvsp,omitempty"`

	GeneSymbol  string        `json:"gene_symbol,omitempty" yaml:"gene_symbol,omitempty"`
	Transcripts TranscriptIDs `json:"transcript_ids" yaml:"transcript_ids"`
}

// NewVariantIdentity validates coordinates and returns the identity key.
// A leading "chr" is stripped from chrom and alleles are upper-cased.
func NewVariantIdentity(chrom string, pos int, ref, alt string) (VariantIdentity, error) {
	chrom = strings.TrimSpace(chrom)
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		chrom = chrom[3:]
	}
	if chrom == "" {
		return VariantIdentity{}, fmt.Errorf("%w: empty chromosome", ErrInvalidVariant)
	}
	if pos < 1 {
		return VariantIdentity{}, fmt.Errorf("%w: position %d must be >= 1", ErrInvalidVariant, pos)
	}

	ref = strings.ToUpper(strings.TrimSpace(ref))
	alt = strings.ToUpper(strings.TrimSpace(alt))
	for _, allele := range []struct{ name, seq string }{{"ref", ref}, {"alt", alt}} {
		if allele.seq == "" {
			return VariantIdentity{}, fmt.Errorf("%w: empty %s allele", ErrInvalidVariant, allele.name)
		}
		if !isAllele(allele.seq) {
			return VariantIdentity{}, fmt.Errorf("%w: %s allele %q contains non-nucleotide characters", ErrInvalidVariant, allele.name, allele.seq)
		}
	}

	return VariantIdentity{Chrom: chrom, Pos: pos, Ref: ref, Alt: alt}, nil
}

func isAllele(s string) bool {
	for _, r := range s {
		switch r {
		case 'A', 'C', 'G', 'T', 'N', '-':
		default:
			return false
		}
	}
	return true
}

// GenomicNotation returns the compact genomic form "{chrom}:{pos}{ref}>{alt}"
// used as the first search identifier.
func (v VariantIdentity) GenomicNotation() string {
	return fmt.Sprintf("%s:%d%s>%s", v.Chrom, v.Pos, v.Ref, v.Alt)
}

// SearchIdentifiers returns the deduplicated, lexicographically sorted set of
// strings used for literature lookup. The genomic notation is always present,
// so the result is never empty.
func (v VariantIdentity) SearchIdentifiers() []string {
	candidates := []string{v.GenomicNotation(), v.RSID, v.HGVSc, v.HGVSp}
	if v.GeneSymbol != "" && v.HGVSp != "" {
		candidates = append(candidates, v.GeneSymbol+" "+v.HGVSp)
	}
	if v.GeneSymbol != "" && v.HGVSc != "" {
		candidates = append(candidates, v.GeneSymbol+" "+v.HGVSc)
	}

	seen := make(map[string]bool, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		ids = append(ids, c)
	}
	sort.Strings(ids)
	return ids
}

// Label returns the "variant of interest" string placed in screening and
// extraction prompts. Unset annotation fields render as NA.
func (v VariantIdentity) Label() string {
	return fmt.Sprintf("%s:%d %s>%s, HGVSp:%s, HGVSc:%s, rsID:%s, symbol:%s",
		v.Chrom, v.Pos, v.Ref, v.Alt,
		orNA(v.HGVSp), orNA(v.HGVSc), orNA(v.RSID), orNA(v.GeneSymbol))
}

func orNA(s string) string {
	if s == "" {
		return "NA"
	}
	return s
}

// Annotation is the optional output of the annotation collaborator.
type Annotation struct {
	RSID              string `json:"rsid,omitempty" yaml:"rsid,omitempty"`
	HGVSc             string `json:"hgvsc,omitempty" yaml:"hgvsc,omitempty"`
	HGVSp             string `json:"hgvsp,omitempty" yaml:"hgvsp,omitempty"`
	GeneSymbol        string `json:"gene_symbol,omitempty" yaml:"gene_symbol,omitempty"`
	EnsemblTranscript string `json:"ensembl_transcript,omitempty" yaml:"ensembl_transcript,omitempty"`
	MANETranscript    string `json:"mane_transcript,omitempty" yaml:"mane_transcript,omitempty"`
}

// IsEmpty reports whether the annotation carries no fields.
func (a *Annotation) IsEmpty() bool {
	return a == nil || *a == Annotation{}
}

// Enrich returns a copy of v with annotation fields applied. RSID, gene
// symbol and transcript IDs are only filled when unset; HGVSc and HGVSp are
// overwritten whenever the annotation provides them. The identity key is
// never touched.
func (v VariantIdentity) Enrich(a *Annotation) VariantIdentity {
	if a.IsEmpty() {
		return v
	}
	out := v

	if out.RSID == "" {
		out.RSID = a.RSID
	}
	if out.GeneSymbol == "" {
		out.GeneSymbol = a.GeneSymbol
	}
	if out.Transcripts.Ensembl == "" {
		out.Transcripts.Ensembl = a.EnsemblTranscript
	}
	if out.Transcripts.MANE == "" {
		out.Transcripts.MANE = a.MANETranscript
	}

	if a.HGVSc != "" {
		out.HGVSc = a.HGVSc
	}
	if a.HGVSp != "" {
		out.HGVSp = a.HGVSp
	}
	return out
}
