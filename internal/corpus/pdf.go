package corpus

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// articleHeading matches the start of a provision in the gazette text,
// e.g. "ARTICULO 17." or "ARTÍCULO 17-". Case of the accent varies
// between editions.
var articleHeading = regexp.MustCompile(`(?m)^\s*ART[IÍ]CULO\s+(\d+)\s*[.\-:]`)

// titleHeading matches a constitutional title heading, e.g.
// "TITULO III" or "TÍTULO III".
var titleHeading = regexp.MustCompile(`(?m)^\s*T[IÍ]TULO\s+[IVXL]+\b.*$`)

// LoadPDF extracts articles from the official constitution PDF. The gazette
// layout puts each provision under an "ARTICULO N." heading; everything up to
// the next heading is the provision text.
func LoadPDF(path, baseURL string) ([]Article, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("reading text: %w", err)
	}

	return ParsePlainText(buf.String(), baseURL)
}

// ParsePlainText segments extracted gazette text into articles. Exported
// separately from LoadPDF so the segmentation logic is testable without a
// PDF fixture.
func ParsePlainText(text, baseURL string) ([]Article, error) {
	text = normalizeWhitespace(text)

	headings := articleHeading.FindAllStringSubmatchIndex(text, -1)
	if len(headings) == 0 {
		return nil, fmt.Errorf("no article headings found in text")
	}

	var articles []Article
	seen := make(map[int]bool)
	currentTitle := ""

	for i, h := range headings {
		num, err := strconv.Atoi(text[h[2]:h[3]])
		if err != nil || num <= 0 {
			return nil, fmt.Errorf("bad article number at offset %d", h[0])
		}
		if seen[num] {
			// Gazette PDFs repeat headings in page headers; keep the first.
			continue
		}
		seen[num] = true

		// Track the most recent title heading before this article.
		if m := lastTitleBefore(text[:h[0]]); m != "" {
			currentTitle = m
		}

		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		body := strings.TrimSpace(text[h[1]:end])

		// Drop a trailing title heading that belongs to the next section.
		if loc := titleHeading.FindStringIndex(body); loc != nil {
			body = strings.TrimSpace(body[:loc[0]])
		}
		if body == "" {
			return nil, fmt.Errorf("empty body for article %d", num)
		}

		articles = append(articles, Article{
			ID:         ArticleID(num),
			Number:     num,
			Title:      currentTitle,
			Text:       body,
			SourceLink: LinkFor(baseURL, num),
		})
	}

	return articles, nil
}

func lastTitleBefore(text string) string {
	matches := titleHeading.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1])
}

func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	// Collapse runs of spaces and tabs but keep line structure for the
	// heading regexps.
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.Join(lines, "\n")
}
