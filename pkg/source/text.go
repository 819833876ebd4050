package source

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/irt-labs/studygraph/pkg/common"
)

var errBinaryContent = errors.New("document contains binary content")

// TextSpanSource extracts positioned spans from plain or lightly formatted
// text. Pages are separated by form feeds, paragraphs by blank lines.
// Markdown-style table rows become table_cell spans, bullet and numbered
// list items become bullet spans, and short unterminated lines followed by
// a paragraph are treated as headings.
type TextSpanSource struct{}

// NewTextSpanSource creates a plaintext span extractor.
func NewTextSpanSource() *TextSpanSource {
	return &TextSpanSource{}
}

var (
	bulletRe   = regexp.MustCompile(`^\s*([-•*]|\d+[.)])\s+`)
	tableRowRe = regexp.MustCompile(`\|`)
	delimRowRe = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)
)

// Extract splits the document into positioned spans in physical order.
// Empty input yields no spans and no error; an unreadable document (not
// valid text) is reported as an ExtractionError.
func (s *TextSpanSource) Extract(ctx context.Context, in Input) ([]common.Span, error) {
	text := string(in.Data)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if strings.ContainsRune(text, 0) {
		return nil, &ExtractionError{Document: in.Name, Err: errBinaryContent}
	}

	var spans []common.Span
	pages := strings.Split(text, "\f")
	for pageIdx, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spans = append(spans, extractPage(page, pageIdx+1)...)
	}
	return NormalizePositions(spans), nil
}

func extractPage(page string, pageNum int) []common.Span {
	lines := strings.Split(page, "\n")
	var spans []common.Span

	paragraph := 0
	var para []string
	paraStartLine := 0

	flushParagraph := func() {
		if len(para) == 0 {
			return
		}
		paragraph++
		text := strings.TrimSpace(strings.Join(para, " "))
		kind := common.SpanParagraph
		if looksLikeHeading(text, len(para)) {
			kind = common.SpanHeading
		}
		spans = append(spans, common.Span{
			Text:      text,
			Page:      pageNum,
			Paragraph: paragraph,
			Line:      paraStartLine,
			Kind:      kind,
		})
		para = nil
	}

	inTable := false
	for lineIdx, line := range lines {
		lineNum := lineIdx + 1
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flushParagraph()
			inTable = false
			continue
		}

		isTableRow := tableRowRe.MatchString(trimmed)
		if isTableRow && (inTable || nextLineIsDelim(lines, lineIdx)) {
			flushParagraph()
			inTable = true
			if delimRowRe.MatchString(trimmed) {
				continue // alignment row carries no content
			}
			paragraph++
			for _, cell := range splitTableRow(trimmed) {
				spans = append(spans, common.Span{
					Text:      cell,
					Page:      pageNum,
					Paragraph: paragraph,
					Line:      lineNum,
					Kind:      common.SpanTableCell,
				})
			}
			continue
		}
		inTable = false

		if bulletRe.MatchString(trimmed) {
			flushParagraph()
			paragraph++
			spans = append(spans, common.Span{
				Text:      trimmed,
				Page:      pageNum,
				Paragraph: paragraph,
				Line:      lineNum,
				Kind:      common.SpanBullet,
			})
			continue
		}

		if len(para) == 0 {
			paraStartLine = lineNum
		}
		para = append(para, trimmed)
	}
	flushParagraph()

	return spans
}

func nextLineIsDelim(lines []string, idx int) bool {
	return idx+1 < len(lines) && delimRowRe.MatchString(strings.TrimSpace(lines[idx+1]))
}

func splitTableRow(row string) []string {
	row = strings.Trim(strings.TrimSpace(row), "|")
	parts := strings.Split(row, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

func looksLikeHeading(text string, lineCount int) bool {
	if strings.HasPrefix(text, "#") {
		return true
	}
	if lineCount > 1 || len(text) > 80 {
		return false
	}
	return !strings.HasSuffix(text, ".") &&
		!strings.HasSuffix(text, "!") &&
		!strings.HasSuffix(text, "?") &&
		!strings.HasSuffix(text, ",") &&
		strings.ToUpper(text[:1]) == text[:1]
}
