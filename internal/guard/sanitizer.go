package guard

import (
	"regexp"
	"strings"
)

// articleCitation matches article citations like "Artículo 21", "articulo 21"
// or "Artículos 21". Used to detect fabricated citations when generation ran
// with no grounding context at all.
var articleCitation = regexp.MustCompile(`(?i)art[ií]culos?\s+\d+`)

const linkPlaceholder = "[enlace removido]"
const citationPlaceholder = "la Constitución"

// Sanitizer post-processes generated text. The prompt already instructs the
// model not to mention denylisted links, but an instruction is not an
// enforcement mechanism; this filter deterministically strips any match
// before the text reaches the citizen.
type Sanitizer struct {
	linkFilters []*regexp.Regexp
}

// NewSanitizer builds a Sanitizer for the given denied links. Each entry is
// treated as a URL prefix: the match extends over any trailing path or query
// characters so truncated or decorated variants are caught too.
func NewSanitizer(deniedLinks []string) *Sanitizer {
	s := &Sanitizer{}
	for _, link := range deniedLinks {
		if link == "" {
			continue
		}
		pattern := `(?i)` + quoteLoose(link) + `[^\s)\]}"']*`
		s.linkFilters = append(s.linkFilters, regexp.MustCompile(pattern))
	}
	return s
}

// quoteLoose escapes a URL for use in a regexp while letting accented
// characters match their unaccented forms: the gazette portal URL circulates
// both as "constitución" and "constitucion".
func quoteLoose(link string) string {
	var sb strings.Builder
	for _, r := range link {
		switch r {
		case 'í', 'i':
			sb.WriteString(`[ií]`)
		case 'ó', 'o':
			sb.WriteString(`[oó]`)
		case 'á', 'a':
			sb.WriteString(`[aá]`)
		case 'é', 'e':
			sb.WriteString(`[eé]`)
		case 'ú', 'u':
			sb.WriteString(`[uú]`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return sb.String()
}

// Clean applies the denylist filter and, when the generation ran with empty
// context, scrubs article citations the model cannot have grounded. It
// returns the sanitized text plus the list of violations found; cleaning
// never fails, and violations are for the caller to log.
func (s *Sanitizer) Clean(text string, contextEmpty bool) (string, []string) {
	var violations []string

	for _, filter := range s.linkFilters {
		for _, match := range filter.FindAllString(text, -1) {
			violations = append(violations, "denied link: "+match)
		}
		text = filter.ReplaceAllString(text, linkPlaceholder)
	}

	if contextEmpty {
		for _, match := range articleCitation.FindAllString(text, -1) {
			violations = append(violations, "ungrounded citation: "+match)
		}
		text = articleCitation.ReplaceAllString(text, citationPlaceholder)
	}

	return text, violations
}

// CitesArticle reports whether the text contains an article citation.
func CitesArticle(text string) bool {
	return articleCitation.MatchString(text)
}
