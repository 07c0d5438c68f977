package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/actpanama/guillermo/internal/composer"
	"github.com/actpanama/guillermo/internal/retrieval"
)

// TextGenerator produces a completion for a rendered prompt.
type TextGenerator interface {
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

// Answer is a generated response together with the passages it was grounded on.
type Answer struct {
	Text    string
	Context []retrieval.Hit
}

// Gateway runs prompts through the generation model, bounding each attempt
// with a timeout and retrying once on transient failure.
type Gateway struct {
	generator TextGenerator
	model     string
	timeout   time.Duration
}

const defaultTimeout = 60 * time.Second

// NewGateway creates a Gateway using the given model. A non-positive timeout
// falls back to the default.
func NewGateway(generator TextGenerator, model string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{generator: generator, model: model, timeout: timeout}
}

// Generate produces an answer for the rendered prompt in req. A transient
// failure (attempt timeout, dropped connection) is retried exactly once;
// permanent backend errors and caller cancellation fail immediately.
func (g *Gateway) Generate(ctx context.Context, req composer.PromptRequest) (Answer, error) {
	text, err := g.attempt(ctx, req.Prompt)
	if err != nil {
		if ctx.Err() != nil {
			return Answer{}, fmt.Errorf("generation canceled: %w", ctx.Err())
		}
		if !isTransient(err) {
			return Answer{}, fmt.Errorf("generating answer: %w", err)
		}
		slog.Warn("generation attempt failed, retrying", "model", g.model, "error", err)
		text, err = g.attempt(ctx, req.Prompt)
		if err != nil {
			return Answer{}, fmt.Errorf("generating answer: %w", err)
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Answer{}, fmt.Errorf("generation produced an empty answer")
	}

	return Answer{Text: text, Context: req.Context}, nil
}

func (g *Gateway) attempt(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.generator.Generate(attemptCtx, g.model, prompt)
}

// isTransient reports whether a failed attempt is worth one more try: the
// attempt timed out or the connection dropped mid-flight. Anything else (bad
// model name, rejected request) fails identically on a second call.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}
