package corpus

import "fmt"

// Article is one provision of the constitution, the unit of indexing and
// citation. IDs are derived from the article number and are stable across
// re-indexing runs.
type Article struct {
	ID         string // "articulo-17"
	Number     int
	Title      string // constitutional title heading the article belongs to
	Text       string // verbatim provision text, never paraphrased
	SourceLink string // canonical permalink to the official text
}

// ArticleID returns the stable identifier for an article number.
func ArticleID(number int) string {
	return fmt.Sprintf("articulo-%d", number)
}

// LinkFor builds the canonical permalink for an article number.
func LinkFor(baseURL string, number int) string {
	return fmt.Sprintf("%s/constitucion/articulo-%d", baseURL, number)
}
