package chunking

import "strings"

const defaultPageRunes = 4000

// Paginator cuts long text into pages of at most PageRunes runes. Lines are kept
// whole unless a single line is longer than a page.
type Paginator struct {
	PageRunes int
}

func NewPaginator(pageRunes int) *Paginator {
	if pageRunes <= 0 {
		pageRunes = defaultPageRunes
	}
	return &Paginator{PageRunes: pageRunes}
}

func (p *Paginator) Paginate(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		pages []string
		page  strings.Builder
		size  int
	)
	flush := func() {
		if chunk := strings.TrimSpace(page.String()); chunk != "" {
			pages = append(pages, chunk)
		}
		page.Reset()
		size = 0
	}

	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		for len(runes) > p.PageRunes {
			flush()
			pages = append(pages, string(runes[:p.PageRunes]))
			runes = runes[p.PageRunes:]
		}
		if size > 0 && size+1+len(runes) > p.PageRunes {
			flush()
		}
		if size > 0 {
			page.WriteByte('\n')
			size++
		}
		page.WriteString(string(runes))
		size += len(runes)
	}
	flush()
	return pages
}
