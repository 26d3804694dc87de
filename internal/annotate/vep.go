// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package annotate resolves variant coordinates to transcript-level
// annotation (rsID, HGVS, gene, transcripts) via the Ensembl VEP REST API.
package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AliSaadatV/AcmGENTIC/internal/httputil"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

// Ensembl REST servers. Declared as vars so tests can substitute an
// httptest server.
var (
	grch38Server = "https://rest.ensembl.org"
	grch37Server = "https://grch37.rest.ensembl.org"
)

const vepRegionEndpoint = "/vep/homo_sapiens/region"

// VEPClient annotates variants with the Ensembl Variant Effect Predictor.
// VEP picks one transcript consequence per variant (pick=1) and reports
// HGVS and MANE Select fields for it.
type VEPClient struct {
	Client *http.Client
	Cfg    types.AnnotationConfig
}

// NewVEPClient returns a client using cfg's timeout and User-Agent.
func NewVEPClient(cfg types.AnnotationConfig) *VEPClient {
	return &VEPClient{
		Client: &http.Client{Timeout: cfg.Timeout},
		Cfg:    cfg,
	}
}

type vepRequest struct {
	Variants []string `json:"variants"`
	HGVS     int      `json:"hgvs"`
	Pick     int      `json:"pick"`
	MANE     int      `json:"mane"`
}

// Annotate returns the annotation for one variant, or nil when VEP reports
// no result.
func (c *VEPClient) Annotate(ctx context.Context, chrom string, pos int, ref, alt string, assembly types.Assembly) (*types.Annotation, error) {
	server := grch38Server
	if assembly == types.AssemblyGRCh37 {
		server = grch37Server
	}

	// VCF-like, whitespace-delimited: CHROM POS ID REF ALT QUAL FILTER INFO.
	body, err := json.Marshal(vepRequest{
		Variants: []string{fmt.Sprintf("%s %d . %s %s . . .", chrom, pos, ref, alt)},
		HGVS:     1,
		Pick:     1,
		MANE:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling VEP request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+vepRegionEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.Cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("VEP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("VEP returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var entries []vepEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("parsing VEP response: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0].annotation(), nil
}

// VEP JSON structures.
type vepEntry struct {
	ColocatedVariants      []vepColocated   `json:"colocated_variants"`
	TranscriptConsequences []vepConsequence `json:"transcript_consequences"`
}

type vepColocated struct {
	ID  string   `json:"id"`
	IDs []string `json:"ids"`
}

type vepConsequence struct {
	TranscriptID string `json:"transcript_id"`
	GeneSymbol   string `json:"gene_symbol"`
	HGVSc        string `json:"hgvsc"`
	HGVSp        string `json:"hgvsp"`
	MANESelect   string `json:"mane_select"`
}

func (e vepEntry) annotation() *types.Annotation {
	a := &types.Annotation{RSID: e.rsID()}
	if len(e.TranscriptConsequences) > 0 {
		tx := e.TranscriptConsequences[0]
		a.HGVSc = tx.HGVSc
		a.HGVSp = tx.HGVSp
		a.GeneSymbol = tx.GeneSymbol
		a.EnsemblTranscript = tx.TranscriptID
		a.MANETranscript = tx.MANESelect
	}
	return a
}

// rsID returns the first dbSNP identifier among colocated variants.
func (e vepEntry) rsID() string {
	for _, cv := range e.ColocatedVariants {
		if strings.HasPrefix(cv.ID, "rs") {
			return cv.ID
		}
		for _, id := range cv.IDs {
			if strings.HasPrefix(id, "rs") {
				return id
			}
		}
	}
	return ""
}
