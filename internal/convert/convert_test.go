// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeConverter returns canned Markdown or an error per PDF base name and
// counts calls.
type fakeConverter struct {
	outputs map[string]string
	errs    map[string]error
	calls   int
}

func (f *fakeConverter) Convert(_ context.Context, pdfPath string) (string, error) {
	f.calls++
	base := filepath.Base(pdfPath)
	if err, ok := f.errs[base]; ok {
		return "", err
	}
	if out, ok := f.outputs[base]; ok {
		return out, nil
	}
	return "", errors.New("unexpected path: " + pdfPath)
}

// writePDFs creates empty PDFs named {pmid}.pdf and returns the directory.
func writePDFs(t *testing.T, pmids ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, pmid := range pmids {
		if err := os.WriteFile(filepath.Join(dir, pmid+".pdf"), []byte("%PDF-1.7"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestCache(conv Converter) *Cache {
	c := NewCache(conv)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestPDFText(t *testing.T) {
	dir := writePDFs(t, "111")
	conv := &fakeConverter{outputs: map[string]string{"111.pdf": "# Results\n\nCurrent was reduced."}}
	c := newTestCache(conv)
	pdf := filepath.Join(dir, "111.pdf")

	text, err := c.PDFText(context.Background(), "111", pdf)
	if err != nil {
		t.Fatalf("PDFText: %v", err)
	}
	if text != "# Results\n\nCurrent was reduced." {
		t.Errorf("text = %q", text)
	}

	data, err := os.ReadFile(MarkdownPath(dir, "111"))
	if err != nil {
		t.Fatalf("reading cache: %v", err)
	}
	cached := string(data)
	for _, want := range []string{"---\n", `pmid: "111"`, `source_pdf:`, `converted_at: "2026-03-01T12:00:00Z"`, "# Results"} {
		if !strings.Contains(cached, want) {
			t.Errorf("cached file missing %q:\n%s", want, cached)
		}
	}

	// The second call is served from the cache without frontmatter.
	again, err := c.PDFText(context.Background(), "111", pdf)
	if err != nil {
		t.Fatalf("second PDFText: %v", err)
	}
	if again != text {
		t.Errorf("cached text = %q, want %q", again, text)
	}
	if conv.calls != 1 {
		t.Errorf("converter calls = %d, want 1", conv.calls)
	}
}

func TestPDFTextErrors(t *testing.T) {
	tests := []struct {
		name    string
		conv    *fakeConverter
		wantErr error
	}{
		{
			name:    "converter failure",
			conv:    &fakeConverter{errs: map[string]error{"222.pdf": io.ErrUnexpectedEOF}},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "empty output",
			conv:    &fakeConverter{outputs: map[string]string{"222.pdf": "  \n"}},
			wantErr: ErrEmptyOutput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writePDFs(t, "222")
			_, err := newTestCache(tt.conv).PDFText(context.Background(), "222", filepath.Join(dir, "222.pdf"))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if _, statErr := os.Stat(MarkdownPath(dir, "222")); !os.IsNotExist(statErr) {
				t.Error("failed conversion should not be cached")
			}
		})
	}
}

func TestConvertDir(t *testing.T) {
	dir := writePDFs(t, "1", "2", "3")
	if err := os.MkdirAll(filepath.Join(dir, markdownDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(MarkdownPath(dir, "2"), []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	conv := &fakeConverter{
		outputs: map[string]string{"1.pdf": "# Paper 1"},
		errs:    map[string]error{"3.pdf": errors.New("bad pdf")},
	}

	var log bytes.Buffer
	result, err := newTestCache(conv).ConvertDir(context.Background(), dir, &log)
	if err != nil {
		t.Fatalf("ConvertDir: %v", err)
	}

	if result.Converted != 1 {
		t.Errorf("converted = %d, want 1", result.Converted)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if !result.HasFailures() {
		t.Error("HasFailures should be true")
	}
	if result.Total() != 3 {
		t.Errorf("total = %d, want 3", result.Total())
	}

	output := log.String()
	for _, want := range []string{"converted: 1", "skipped:   2", "failed:    3 (bad pdf)", "Batch summary:"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestConvertDirMissing(t *testing.T) {
	_, err := NewCache(&fakeConverter{}).ConvertDir(context.Background(), filepath.Join(t.TempDir(), "nope"), io.Discard)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestConvertDirCancelled(t *testing.T) {
	dir := writePDFs(t, "1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conv := &fakeConverter{outputs: map[string]string{"1.pdf": "x"}}
	if _, err := NewCache(conv).ConvertDir(ctx, dir, io.Discard); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if conv.calls != 0 {
		t.Errorf("converter calls = %d, want 0", conv.calls)
	}
}

func TestStripFrontmatter(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"---\npmid: \"1\"\n---\n\n# Body", "# Body"},
		{"# No frontmatter", "# No frontmatter"},
		{"---\nunterminated", "---\nunterminated"},
	}
	for _, tt := range tests {
		if got := stripFrontmatter(tt.in); got != tt.want {
			t.Errorf("stripFrontmatter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
