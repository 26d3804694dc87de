// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded paper PDFs into Markdown text. Converted
// text is cached under a markdown/ subdirectory of the PDF directory so each
// paper is converted once.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// markdownDir is the subdirectory of the PDF directory holding converted text.
const markdownDir = "markdown"

// ErrEmptyOutput reports a conversion that produced no text.
var ErrEmptyOutput = errors.New("conversion produced empty output")

// Converter transforms a PDF file into Markdown text.
type Converter interface {
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// MarkdownPath returns the cache path of the converted text for pmid.
func MarkdownPath(pdfDir, pmid string) string {
	return filepath.Join(pdfDir, markdownDir, pmid+".md")
}

// Cache converts PDFs on first use and serves later requests from disk.
type Cache struct {
	Converter Converter

	now func() time.Time
}

// NewCache returns a Cache over c.
func NewCache(c Converter) *Cache {
	return &Cache{Converter: c, now: time.Now}
}

// PDFText returns the Markdown body of the paper at pdfPath, converting and
// caching it when no cached copy exists.
func (c *Cache) PDFText(ctx context.Context, pmid, pdfPath string) (string, error) {
	mdPath := MarkdownPath(filepath.Dir(pdfPath), pmid)
	if data, err := os.ReadFile(mdPath); err == nil {
		return stripFrontmatter(string(data)), nil
	}

	body, err := c.Converter.Convert(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(pdfPath), ErrEmptyOutput)
	}

	if err := os.MkdirAll(filepath.Dir(mdPath), 0o755); err != nil {
		return "", fmt.Errorf("creating markdown directory: %w", err)
	}
	if err := os.WriteFile(mdPath, []byte(c.addFrontmatter(pmid, pdfPath, body)), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", mdPath, err)
	}
	return body, nil
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any papers failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ConvertDir converts every {pmid}.pdf in pdfDir that has no cached text,
// printing per-file status to w. Individual failures are counted, not
// returned; the error is non-nil only when pdfDir cannot be read or ctx
// is done.
func (c *Cache) ConvertDir(ctx context.Context, pdfDir string, w io.Writer) (BatchResult, error) {
	var result BatchResult

	if _, err := os.Stat(pdfDir); err != nil {
		return result, fmt.Errorf("reading PDF directory: %w", err)
	}
	pdfs, err := filepath.Glob(filepath.Join(pdfDir, "*.pdf"))
	if err != nil {
		return result, err
	}
	sort.Strings(pdfs)

	for _, pdf := range pdfs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		pmid := strings.TrimSuffix(filepath.Base(pdf), filepath.Ext(pdf))
		if _, err := os.Stat(MarkdownPath(pdfDir, pmid)); err == nil {
			fmt.Fprintf(w, "skipped:   %s (already converted)\n", pmid)
			result.Skipped++
			continue
		}
		if _, err := c.PDFText(ctx, pmid, pdf); err != nil {
			fmt.Fprintf(w, "failed:    %s (%v)\n", pmid, err)
			result.Failed++
			continue
		}
		fmt.Fprintf(w, "converted: %s\n", pmid)
		result.Converted++
	}

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result, nil
}

// addFrontmatter prepends YAML frontmatter to the converted Markdown content.
func (c *Cache) addFrontmatter(pmid, pdfPath, body string) string {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "pmid: %q\n", pmid)
	fmt.Fprintf(&b, "source_pdf: %q\n", pdfPath)
	fmt.Fprintf(&b, "converted_at: %q\n", now().UTC().Format(time.RFC3339))
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}

// stripFrontmatter removes a leading frontmatter block written by addFrontmatter.
func stripFrontmatter(s string) string {
	rest, ok := strings.CutPrefix(s, "---\n")
	if !ok {
		return s
	}
	_, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return s
	}
	return strings.TrimPrefix(body, "\n")
}
