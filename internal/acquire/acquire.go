// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads open-access PDFs of functional papers by PMID.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/AliSaadatV/AcmGENTIC/internal/httputil"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

const maxRetries = 3

// pdfMagic is the signature every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// ErrNotPDF is returned when a download is not a PDF, typically an HTML
// landing or paywall page.
var ErrNotPDF = errors.New("response is not a PDF")

// Downloader fetches open-access PDFs into a directory as {pmid}.pdf.
type Downloader struct {
	Client *http.Client
	Cfg    types.AcquisitionConfig
}

// NewDownloader returns a Downloader using cfg's timeout and User-Agent.
func NewDownloader(cfg types.AcquisitionConfig) *Downloader {
	return &Downloader{
		Client: &http.Client{Timeout: cfg.Timeout},
		Cfg:    cfg,
	}
}

// PDFPath returns where the PDF for pmid is stored under dir.
func PDFPath(dir, pmid string) string {
	return filepath.Join(dir, pmid+".pdf")
}

// FetchPDF stores the open-access PDF for pmid in dir and returns its path.
// An existing file is returned without a download. A paper with no
// open-access PDF yields an empty path and a nil error.
func (d *Downloader) FetchPDF(ctx context.Context, pmid, dir string) (string, error) {
	dest := PDFPath(dir, pmid)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	pdfURL, err := d.resolvePDFURL(ctx, pmid)
	if err != nil {
		return "", err
	}
	if pdfURL == "" {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := d.download(ctx, pdfURL, dest); err != nil {
		return "", fmt.Errorf("downloading %s: %w", pmid, err)
	}
	return dest, nil
}

// download fetches url to destPath through a temporary file, renaming it
// into place only once the body is complete and starts with the PDF
// signature.
func (d *Downloader) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if d.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.Cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, d.Client, req, maxRetries)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(resp.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading download: %w", err)
	}
	if !bytes.Equal(head[:n], pdfMagic) {
		return ErrNotPDF
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, io.MultiReader(bytes.NewReader(head), resp.Body))
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
