package extractor

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

// Router picks a page extractor by MIME type, falling back to the file extension.
type Router struct {
	byType   map[string]ports.PageExtractor
	fallback ports.PageExtractor
}

func NewRouter(fallback ports.PageExtractor) *Router {
	return &Router{byType: make(map[string]ports.PageExtractor), fallback: fallback}
}

// Handle registers extractor for a MIME type such as "application/pdf".
func (r *Router) Handle(mimeType string, extractor ports.PageExtractor) *Router {
	r.byType[normalizeType(mimeType)] = extractor
	return r
}

func (r *Router) ExtractPages(ctx context.Context, doc *domain.Document) ([]string, error) {
	if e, ok := r.byType[normalizeType(doc.MimeType)]; ok {
		return e.ExtractPages(ctx, doc)
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(doc.Name))); byExt != "" {
		if e, ok := r.byType[normalizeType(byExt)]; ok {
			return e.ExtractPages(ctx, doc)
		}
	}
	if r.fallback != nil {
		return r.fallback.ExtractPages(ctx, doc)
	}
	return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", fmt.Errorf("unsupported content type %q", doc.MimeType))
}

func normalizeType(raw string) string {
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mediaType
}
