package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/documentloaders"
)

var (
	// ErrUnsupportedContent is returned for files that are neither PDF, HTML nor plain text.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

type ExtractorConfig struct {
	Password string
	Logger   *slog.Logger
}

// Extractor turns a downloaded document into text. PDF pages are returned
// as paragraphs separated by blank lines.
type Extractor struct {
	config ExtractorConfig
	logger *slog.Logger
}

func NewWithConfig(config ExtractorConfig) *Extractor {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		config: config,
		logger: logger.With("component", "extractor"),
	}
}

func New() *Extractor {
	return NewWithConfig(ExtractorConfig{})
}

func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat document: %w", err)
	}

	head := make([]byte, 512)
	n, err := file.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	contentType := http.DetectContentType(head[:n])

	switch {
	case strings.HasPrefix(contentType, "application/pdf"):
		return e.extractPDF(ctx, file, info.Size())
	case strings.HasPrefix(contentType, "text/html"):
		return e.extractHTML(file)
	case strings.HasPrefix(contentType, "text/plain"):
		data, err := io.ReadAll(file)
		if err != nil {
			return "", fmt.Errorf("failed to read document: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, r io.ReaderAt, size int64) (text string, err error) {
	// The PDF parser panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to parse pdf: %v", rec)
		}
	}()

	var opts []documentloaders.PDFOptions
	if e.config.Password != "" {
		opts = append(opts, documentloaders.WithPassword(e.config.Password))
	}

	pages, err := documentloaders.NewPDF(r, size, opts...).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf: %w", err)
	}

	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		content := strings.TrimSpace(page.PageContent)
		if content != "" {
			parts = append(parts, content)
		}
	}
	e.logger.Debug("extracted pdf", "pages", len(pages), "non_empty", len(parts))

	return strings.Join(parts, "\n\n"), nil
}

func (e *Extractor) extractHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	return extractMainContent(doc), nil
}

func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer").Remove()

	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if content == "" {
		content = doc.Find("body").Text()
	}

	return cleanContent(content)
}

func cleanContent(content string) string {
	// Remove extra whitespace
	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}
