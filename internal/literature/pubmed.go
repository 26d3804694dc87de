// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/AliSaadatV/AcmGENTIC/internal/httputil"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

// entrezBase is the NCBI E-utilities root. Package-level var for test substitution.
var entrezBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const entrezTool = "acmgentic"

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// PubMedClient retrieves PubMed records through Entrez efetch.
type PubMedClient struct {
	Client   *http.Client
	Cfg      types.LiteratureConfig
	Throttle *httputil.Throttle

	// BaseURL replaces the E-utilities root when set.
	BaseURL string
}

// NewPubMedClient returns a client throttled to cfg.PubMedInterval.
func NewPubMedClient(cfg types.LiteratureConfig) *PubMedClient {
	return &PubMedClient{
		Client:   &http.Client{Timeout: cfg.Timeout},
		Cfg:      cfg,
		Throttle: httputil.NewThrottle(cfg.PubMedInterval),
	}
}

// Fetch returns the title and abstract for pmid, or nil when PubMed has no
// article for it.
func (c *PubMedClient) Fetch(ctx context.Context, pmid string) (*types.PaperMetadata, error) {
	data, err := c.efetch(ctx, pmid)
	if err != nil {
		return nil, err
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing PubMed XML for %s: %w", pmid, err)
	}
	if len(set.Articles) == 0 {
		return nil, nil
	}

	art := set.Articles[0].Citation.Article
	var abstract []string
	for _, part := range art.Abstract {
		text := flatten(part.Inner)
		if text == "" {
			continue
		}
		if part.Label != "" {
			text = part.Label + ": " + text
		}
		abstract = append(abstract, text)
	}

	return &types.PaperMetadata{
		Title:    flatten(art.Title.Inner),
		Abstract: strings.Join(abstract, "\n"),
	}, nil
}

// FetchText returns the PubMed XML record for pmid with markup stripped and
// whitespace collapsed.
func (c *PubMedClient) FetchText(ctx context.Context, pmid string) (string, error) {
	data, err := c.efetch(ctx, pmid)
	if err != nil {
		return "", err
	}
	return flatten(string(data)), nil
}

func (c *PubMedClient) efetch(ctx context.Context, pmid string) ([]byte, error) {
	if err := c.Throttle.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"db":      {"pubmed"},
		"id":      {pmid},
		"retmode": {"xml"},
		"tool":    {entrezTool},
	}
	if c.Cfg.NCBIEmail != "" {
		params.Set("email", c.Cfg.NCBIEmail)
	}
	if c.Cfg.NCBIAPIKey != "" {
		params.Set("api_key", c.Cfg.NCBIAPIKey)
	}

	base := entrezBase
	if c.BaseURL != "" {
		base = c.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/efetch.fcgi?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.Cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Entrez efetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Entrez efetch returned HTTP %d for %s", resp.StatusCode, pmid)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading Entrez response: %w", err)
	}
	return data, nil
}

// flatten strips XML tags, decodes entities, and collapses whitespace.
func flatten(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// PubMed efetch XML structures. Title and abstract keep their inner XML so
// inline markup such as <i> does not truncate the text.
type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		Article struct {
			Title    innerXML         `xml:"ArticleTitle"`
			Abstract []pubmedAbstract `xml:"Abstract>AbstractText"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

type pubmedAbstract struct {
	Label string `xml:"Label,attr"`
	Inner string `xml:",innerxml"`
}

type innerXML struct {
	Inner string `xml:",innerxml"`
}
