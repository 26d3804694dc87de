// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package literature finds papers that mention a variant and retrieves their
// bibliographic metadata and text. LitVar2 maps variant identifiers to
// PMIDs; NCBI Entrez supplies titles, abstracts, and article XML.
package literature

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/AliSaadatV/AcmGENTIC/internal/httputil"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

// litvarAPIBase is the LitVar2 API root. Declared as a var so tests can
// substitute an httptest server.
var litvarAPIBase = "https://www.ncbi.nlm.nih.gov/research/litvar2-api"

// LitVarClient looks up PMIDs of publications mentioning a variant identifier.
type LitVarClient struct {
	Client   *http.Client
	Cfg      types.LiteratureConfig
	Throttle *httputil.Throttle
}

// NewLitVarClient returns a client throttled to cfg.LitVarInterval.
func NewLitVarClient(cfg types.LiteratureConfig) *LitVarClient {
	return &LitVarClient{
		Client:   &http.Client{Timeout: cfg.Timeout},
		Cfg:      cfg,
		Throttle: httputil.NewThrottle(cfg.LitVarInterval),
	}
}

// Lookup returns the PMIDs LitVar2 associates with identifier. An unknown
// identifier (HTTP 404) yields an empty result, not an error.
func (c *LitVarClient) Lookup(ctx context.Context, identifier string) ([]string, error) {
	if err := c.Throttle.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := litvarAPIBase + "/variant/get/litvar@" + escapeAll(identifier) + "%23%23/publications"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.Cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("LitVar2 request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("LitVar2 returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading LitVar2 response: %w", err)
	}
	return parsePublications(body)
}

// escapeAll percent-encodes every byte outside the unreserved set,
// including "/", ":" and ">" which occur in HGVS notation.
func escapeAll(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// pmidListKeys are the object keys under which LitVar2 has been observed
// to return publication lists. The first present key is used.
var pmidListKeys = []string{"pmids", "PMIDs", "publications", "results", "data"}

// parsePublications accepts the payload shapes LitVar2 produces: a list of
// objects carrying pmid/PMID, a list of bare IDs, or an object wrapping
// either under one of pmidListKeys. Duplicates are removed; order follows
// first appearance.
func parsePublications(body []byte) ([]string, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing LitVar2 response: %w", err)
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, key := range pmidListKeys {
			if list, ok := v[key]; ok {
				items, _ = list.([]any)
				break
			}
		}
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("parsing LitVar2 response: unexpected %T payload", raw)
	}

	seen := make(map[string]bool, len(items))
	var pmids []string
	for _, item := range items {
		var id string
		switch v := item.(type) {
		case map[string]any:
			id = pmidString(v["pmid"])
			if id == "" {
				id = pmidString(v["PMID"])
			}
		default:
			id = pmidString(v)
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		pmids = append(pmids, id)
	}
	return pmids, nil
}

// pmidString renders a JSON scalar as a PMID string. Numbers arrive as
// float64 from encoding/json.
func pmidString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x <= 0 {
			return ""
		}
		return strconv.FormatInt(int64(x), 10)
	default:
		return ""
	}
}
