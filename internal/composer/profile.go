package composer

// OutputFormat constrains how the model may format its answer. A deployment
// uses exactly one format; plain and markdown are never mixed.
type OutputFormat string

const (
	// FormatPlain forbids any Markdown: no asterisks, lists, or headings.
	FormatPlain OutputFormat = "plain"
	// FormatMarkdown allows a constrained subset: bold, lists, and links.
	FormatMarkdown OutputFormat = "markdown"
)

// Valid reports whether f is a known output format.
func (f OutputFormat) Valid() bool {
	return f == FormatPlain || f == FormatMarkdown
}

// Profile selects the persona and output contract for a deployment. The
// historical deployments differed only in persona text, output format, and
// alert webhook; they collapse into this one struct.
type Profile struct {
	PersonaText string
	Format      OutputFormat
	DeniedLinks []string // links the model must never mention; also enforced post-generation
}

// guillermoPersona is the production persona: a plain-language legal guide
// for Panamanian citizens.
const guillermoPersona = `Eres Guillermo, un asistente legal panameño entrenado exclusivamente con la Constitución de la República de Panamá.

Tu misión es ayudar a ciudadanos que no saben de leyes, explicándoles de forma clara, sencilla y sin tecnicismos cuáles son sus derechos constitucionales. Tu objetivo es guiarlos para que no sean víctimas de abusos por parte de autoridades u otras personas.`

// DeniedLinkDefault is the external portal the assistant must never link or
// mention. It serves a stale copy of the constitution.
const DeniedLinkDefault = "https://www.panamatramita.gob.pa/portal/constitución"

// DefaultProfile returns the Guillermo persona with plain-text output.
func DefaultProfile() Profile {
	return Profile{
		PersonaText: guillermoPersona,
		Format:      FormatPlain,
		DeniedLinks: []string{DeniedLinkDefault},
	}
}
