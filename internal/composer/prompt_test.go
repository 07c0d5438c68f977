package composer

import (
	"strings"
	"testing"
	"time"

	"github.com/actpanama/guillermo/internal/retrieval"
	"github.com/actpanama/guillermo/internal/session"
)

func testHits() []retrieval.Hit {
	return []retrieval.Hit{
		{ID: "articulo-21", ArticleNumber: 21, Text: "Nadie puede ser privado de su libertad sino por mandamiento escrito.", SourceLink: "https://actpanama.org/constitucion/articulo-21", Score: 0.91, Rank: 1},
		{ID: "articulo-22", ArticleNumber: 22, Text: "Toda persona detenida debe ser informada de las razones de su detención.", SourceLink: "https://actpanama.org/constitucion/articulo-22", Score: 0.83, Rank: 2},
	}
}

func TestAssembleDeterministic(t *testing.T) {
	c := New(DefaultProfile())
	history := []session.Turn{{Question: "hola", Answer: "buenas", AskedAt: time.Unix(0, 0)}}

	a, err := c.Assemble("¿me pueden detener sin orden?", testHits(), history)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Assemble("¿me pueden detener sin orden?", testHits(), history)
	if err != nil {
		t.Fatal(err)
	}
	if a.Prompt != b.Prompt {
		t.Error("identical inputs produced different prompts")
	}
}

func TestAssembleContextRankOrder(t *testing.T) {
	c := New(DefaultProfile())

	req, err := c.Assemble("pregunta", testHits(), nil)
	if err != nil {
		t.Fatal(err)
	}

	first := strings.Index(req.Prompt, "[Artículo 21]")
	second := strings.Index(req.Prompt, "[Artículo 22]")
	if first == -1 || second == -1 {
		t.Fatalf("context entries missing from prompt:\n%s", req.Prompt)
	}
	if first > second {
		t.Error("context not in rank order: most relevant article must come first")
	}
	if len(req.Context) != 2 {
		t.Errorf("context not propagated: %d hits", len(req.Context))
	}
}

func TestAssembleGroundingRules(t *testing.T) {
	c := New(DefaultProfile())
	req, err := c.Assemble("pregunta", testHits(), nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"Solo debes responder con base en los artículos",
		"No inventes información",
		"dilo con honestidad",
		DeniedLinkDefault,
		"texto plano",
	} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing rule %q", want)
		}
	}
}

func TestAssembleEmptyContext(t *testing.T) {
	c := New(DefaultProfile())
	req, err := c.Assemble("pregunta sin respaldo", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(req.Prompt, "no se encontraron artículos relevantes") {
		t.Error("prompt should state the context is empty")
	}
	if !strings.Contains(req.Prompt, "no tienes suficiente información") {
		t.Error("prompt should instruct an insufficient-information answer")
	}
	if !strings.Contains(req.Prompt, "no cites ningún artículo") {
		t.Error("prompt should forbid citations when context is empty")
	}
}

func TestAssembleHistorySection(t *testing.T) {
	c := New(DefaultProfile())
	history := []session.Turn{
		{Question: "¿qué es el habeas corpus?", Answer: "Es un recurso."},
		{Question: "¿y cómo lo pido?", Answer: "Ante un juez."},
	}

	req, err := c.Assemble("¿cuánto tarda?", testHits(), history)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(req.Prompt, "¿qué es el habeas corpus?") {
		t.Error("history question missing from prompt")
	}
	// Oldest turn first.
	if strings.Index(req.Prompt, "habeas corpus") > strings.Index(req.Prompt, "cómo lo pido") {
		t.Error("history not oldest-first")
	}
}

func TestAssembleFormatModes(t *testing.T) {
	plain, err := New(Profile{Format: FormatPlain}).Assemble("q", testHits(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(plain.Prompt, "texto plano") {
		t.Error("plain profile missing plain-text rule")
	}
	if strings.Contains(plain.Prompt, "subconjunto limitado de Markdown") {
		t.Error("plain profile must not carry markdown rules")
	}

	md, err := New(Profile{Format: FormatMarkdown}).Assemble("q", testHits(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md.Prompt, "subconjunto limitado de Markdown") {
		t.Error("markdown profile missing markdown rule")
	}
	if strings.Contains(md.Prompt, "texto plano") {
		t.Error("markdown profile must not carry the plain-text rule")
	}
}

func TestAssembleRejectsEmptyQuestion(t *testing.T) {
	c := New(DefaultProfile())
	if _, err := c.Assemble("   ", nil, nil); err == nil {
		t.Fatal("expected error for blank question")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Profile{})
	p := c.Profile()
	if p.PersonaText == "" {
		t.Error("persona default not applied")
	}
	if p.Format != FormatPlain {
		t.Errorf("expected plain default, got %q", p.Format)
	}
	if len(p.DeniedLinks) == 0 {
		t.Error("denylist default not applied")
	}
}
