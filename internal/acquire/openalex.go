// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/AliSaadatV/AcmGENTIC/internal/httputil"
)

// Lookup endpoints. Declared as vars so tests can substitute an httptest
// server.
var (
	openAlexAPIBase = "https://api.openalex.org/works/"
	europePMCRender = "https://europepmc.org/articles/"
)

// openAlexResponse captures the fields we need from an OpenAlex work record.
type openAlexResponse struct {
	IDs            openAlexIDs       `json:"ids"`
	BestOALocation *openAlexLocation `json:"best_oa_location"`
}

type openAlexIDs struct {
	PMCID string `json:"pmcid"`
}

// openAlexLocation represents an open-access location in the OpenAlex response.
type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

// resolvePDFURL asks OpenAlex for the work with the given PMID and returns
// an open-access PDF URL: the best OA location's PDF if present, otherwise
// the Europe PMC rendering of its PubMed Central copy. It returns an empty
// string when the paper is unknown or has no open-access PDF.
func (d *Downloader) resolvePDFURL(ctx context.Context, pmid string) (string, error) {
	apiURL := openAlexAPIBase + "pmid:" + url.PathEscape(pmid)
	if d.Cfg.Mailto != "" {
		apiURL += "?mailto=" + url.QueryEscape(d.Cfg.Mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating OpenAlex request: %w", err)
	}
	if d.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.Cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, d.Client, req, maxRetries)
	if err != nil {
		return "", fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var oa openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oa); err != nil {
		return "", fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	if oa.BestOALocation != nil && oa.BestOALocation.PDFURL != "" {
		return oa.BestOALocation.PDFURL, nil
	}
	if pmcid := pmcIDFromURL(oa.IDs.PMCID); pmcid != "" {
		return europePMCRender + pmcid + "?pdf=render", nil
	}
	return "", nil
}

// pmcIDFromURL extracts "PMC1234567" from an OpenAlex pmcid value, which
// is a URL such as "https://www.ncbi.nlm.nih.gov/pmc/articles/1234567".
func pmcIDFromURL(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s == "" {
		return ""
	}
	id := s[strings.LastIndex(s, "/")+1:]
	id = strings.TrimPrefix(strings.ToUpper(id), "PMC")
	if id == "" {
		return ""
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return "PMC" + id
}
