package composer

import (
	"fmt"
	"strings"

	"github.com/actpanama/guillermo/internal/retrieval"
	"github.com/actpanama/guillermo/internal/session"
)

// PromptRequest is the fully assembled generation request for one question.
// It is created fresh per request and never shared or mutated afterwards:
// concurrent questions each get their own value.
type PromptRequest struct {
	Persona  string
	Format   OutputFormat
	Question string
	Context  []retrieval.Hit // rank order preserved, most relevant first
	History  []session.Turn
	Prompt   string // rendered text sent to the generation backend
}

// Composer assembles prompts from the persona profile, retrieved articles,
// and conversation history. Assembly is pure and deterministic given its
// inputs, which is what makes answers auditable: the same question, context,
// and history always produce byte-identical prompts.
type Composer struct {
	profile Profile
}

// New creates a Composer for the given profile. Zero-value profile fields
// fall back to the defaults.
func New(profile Profile) *Composer {
	def := DefaultProfile()
	if profile.PersonaText == "" {
		profile.PersonaText = def.PersonaText
	}
	if !profile.Format.Valid() {
		profile.Format = def.Format
	}
	if profile.DeniedLinks == nil {
		profile.DeniedLinks = def.DeniedLinks
	}
	return &Composer{profile: profile}
}

// Profile returns the composer's profile.
func (c *Composer) Profile() Profile {
	return c.profile
}

// Assemble builds the PromptRequest for one question. Context is rendered in
// the retriever's rank order (generation models weight early context more
// heavily). An empty question is rejected here as a last line of defense;
// callers validate earlier.
func (c *Composer) Assemble(question string, hits []retrieval.Hit, history []session.Turn) (PromptRequest, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return PromptRequest{}, fmt.Errorf("question must not be empty")
	}

	var sb strings.Builder
	sb.WriteString(c.profile.PersonaText)
	sb.WriteString("\n\n")
	c.writeRules(&sb, len(hits) == 0)

	sb.WriteString("\n------\nHistorial de conversación:\n")
	if len(history) == 0 {
		sb.WriteString("(sin historial)\n")
	}
	for _, turn := range history {
		sb.WriteString("Ciudadano: ")
		sb.WriteString(turn.Question)
		sb.WriteString("\nGuillermo: ")
		sb.WriteString(turn.Answer)
		sb.WriteString("\n")
	}

	sb.WriteString("------\nContexto:\n")
	if len(hits) == 0 {
		sb.WriteString("(no se encontraron artículos relevantes)\n")
	}
	for _, h := range hits {
		sb.WriteString(formatHit(h))
	}

	sb.WriteString("------\nPregunta del ciudadano:\n")
	sb.WriteString(question)
	sb.WriteString("\n------\nRespuesta:\n")

	return PromptRequest{
		Persona:  c.profile.PersonaText,
		Format:   c.profile.Format,
		Question: question,
		Context:  hits,
		History:  history,
		Prompt:   sb.String(),
	}, nil
}

// writeRules renders the grounding and format rules. These are the
// non-negotiable structural constraints; the guard package re-enforces the
// link denylist after generation because instructions alone are not a hard
// guarantee.
func (c *Composer) writeRules(sb *strings.Builder, emptyContext bool) {
	sb.WriteString("Solo debes responder con base en los artículos que se te dan como contexto. No inventes información. Siempre que respondas, incluye el número del artículo, una breve explicación, y el enlace al texto oficial.\n\n")

	if emptyContext {
		sb.WriteString("No hay artículos en el contexto para esta pregunta. Responde con honestidad que no tienes suficiente información para contestar, y no cites ningún artículo.\n\n")
	} else {
		sb.WriteString("Si no tienes suficiente información en el contexto para responder, dilo con honestidad.\n\n")
	}

	switch c.profile.Format {
	case FormatMarkdown:
		sb.WriteString("Puedes usar un subconjunto limitado de Markdown: negritas, listas y enlaces. No uses encabezados ni tablas.\n\n")
	default:
		sb.WriteString("No uses ningún formato Markdown (.md). Escribe en texto plano, sin asteriscos, listas ni títulos con #.\n\n")
	}

	for _, link := range c.profile.DeniedLinks {
		sb.WriteString("Nunca pongas enlaces como: ")
		sb.WriteString(link)
		sb.WriteString("\nNo lo menciones ni lo enlaces, ni como sugerencia.\n")
	}
}

func formatHit(h retrieval.Hit) string {
	return fmt.Sprintf("[Artículo %d] (relevancia %.2f)\n%s\nFuente oficial: %s\n\n",
		h.ArticleNumber, h.Score, h.Text, h.SourceLink)
}
