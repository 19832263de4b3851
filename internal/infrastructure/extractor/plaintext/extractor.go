package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/chunking"
)

// pageBreak separates pages in exported text files.
const pageBreak = "\f"

// Extractor reads stored text files and splits them into pages on form feeds.
// Pages longer than pageRunes are cut further on line boundaries.
// Text that is not UTF-8 is decoded with the configured fallback charset.
type Extractor struct {
	storage         ports.ObjectStorage
	fallbackCharset string
	paginator       *chunking.Paginator
}

func NewExtractor(storage ports.ObjectStorage, fallbackCharset string, pageRunes int) *Extractor {
	if fallbackCharset == "" {
		fallbackCharset = "gb18030"
	}
	return &Extractor{
		storage:         storage,
		fallbackCharset: fallbackCharset,
		paginator:       chunking.NewPaginator(pageRunes),
	}
}

func (e *Extractor) ExtractPages(ctx context.Context, doc *domain.Document) ([]string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	text, err := e.decode(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode text document", fmt.Errorf("%s: %w", doc.Name, err))
	}
	pages := make([]string, 0)
	for _, page := range SplitPages(text) {
		pages = append(pages, e.paginator.Paginate(page)...)
	}
	return pages, nil
}

func (e *Extractor) decode(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	r, err := charset.NewReaderLabel(e.fallbackCharset, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("charset %s: %w", e.fallbackCharset, err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode charset %s: %w", e.fallbackCharset, err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("unsupported binary content")
	}
	return string(decoded), nil
}

// SplitPages splits on form feeds and drops blank pages.
func SplitPages(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, pageBreak)
	pages := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			pages = append(pages, part)
		}
	}
	return pages
}
