package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// jsonTitle mirrors one title block of the pre-segmented corpus JSON.
type jsonTitle struct {
	Titulo    string        `json:"titulo"`
	Articulos []jsonArticle `json:"articulos"`
}

type jsonArticle struct {
	Numero int    `json:"numero"`
	Texto  string `json:"texto"`
}

// Load reads a corpus file and returns its articles in document order.
// The format is chosen by extension: .json for the pre-segmented corpus,
// .pdf for the official gazette PDF.
func Load(path, baseURL string) ([]Article, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path, baseURL)
	case ".pdf":
		return LoadPDF(path, baseURL)
	default:
		return nil, fmt.Errorf("unsupported corpus format %q (want .json or .pdf)", filepath.Ext(path))
	}
}

// LoadJSON parses the pre-segmented corpus: an array of title blocks, each
// holding its articles with number and verbatim text.
func LoadJSON(path, baseURL string) ([]Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return ParseJSON(data, baseURL)
}

// ParseJSON decodes corpus JSON into articles. Article numbers must be
// positive and unique; duplicates indicate a malformed corpus and are
// rejected rather than silently overwritten.
func ParseJSON(data []byte, baseURL string) ([]Article, error) {
	var titles []jsonTitle
	if err := json.Unmarshal(data, &titles); err != nil {
		return nil, fmt.Errorf("parsing corpus JSON: %w", err)
	}

	seen := make(map[int]bool)
	var articles []Article
	for _, t := range titles {
		for _, a := range t.Articulos {
			if a.Numero <= 0 {
				return nil, fmt.Errorf("invalid article number %d under %q", a.Numero, t.Titulo)
			}
			if seen[a.Numero] {
				return nil, fmt.Errorf("duplicate article %d in corpus", a.Numero)
			}
			seen[a.Numero] = true

			text := strings.TrimSpace(a.Texto)
			if text == "" {
				return nil, fmt.Errorf("empty text for article %d", a.Numero)
			}

			articles = append(articles, Article{
				ID:         ArticleID(a.Numero),
				Number:     a.Numero,
				Title:      strings.TrimSpace(t.Titulo),
				Text:       text,
				SourceLink: LinkFor(baseURL, a.Numero),
			})
		}
	}

	if len(articles) == 0 {
		return nil, fmt.Errorf("corpus contains no articles")
	}
	return articles, nil
}
