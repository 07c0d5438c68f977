package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/actpanama/guillermo/internal/alert"
	"github.com/actpanama/guillermo/internal/composer"
	"github.com/actpanama/guillermo/internal/generation"
	"github.com/actpanama/guillermo/internal/guard"
	"github.com/actpanama/guillermo/internal/retrieval"
	"github.com/actpanama/guillermo/internal/session"
	"github.com/actpanama/guillermo/internal/storage"
)

// ErrEmptyQuestion is returned when a request carries no usable question.
// It signals a client fault; no upstream call is made.
var ErrEmptyQuestion = errors.New("question is empty")

// ErrUpstream wraps failures of the generation backend so callers can map them
// to a gateway error distinct from client faults.
var ErrUpstream = errors.New("upstream failure")

// Retriever finds the passages most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]retrieval.Hit, error)
}

// Generator produces an answer from an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, req composer.PromptRequest) (generation.Answer, error)
}

// ConsultationSaver records answered questions for auditing.
type ConsultationSaver interface {
	SaveConsultation(c storage.Consultation) error
}

// Result is the outcome of answering one question.
type Result struct {
	SessionID string
	Answer    string
	Context   []retrieval.Hit
}

// Answerer runs the full question-answering flow: retrieve, compose, generate,
// sanitize, remember.
type Answerer struct {
	retriever Retriever
	composer  *composer.Composer
	generator Generator
	sanitizer *guard.Sanitizer
	sessions  *session.Store
	saver     ConsultationSaver
	notifier  alert.Notifier
	topK      int
}

// NewAnswerer wires the answering flow. saver may be nil to disable the audit
// trail; notifier may be nil to disable alerts.
func NewAnswerer(
	retriever Retriever,
	comp *composer.Composer,
	generator Generator,
	sanitizer *guard.Sanitizer,
	sessions *session.Store,
	saver ConsultationSaver,
	notifier alert.Notifier,
	topK int,
) *Answerer {
	if topK <= 0 {
		topK = 3
	}
	if notifier == nil {
		notifier = alert.Noop{}
	}
	return &Answerer{
		retriever: retriever,
		composer:  comp,
		generator: generator,
		sanitizer: sanitizer,
		sessions:  sessions,
		saver:     saver,
		notifier:  notifier,
		topK:      topK,
	}
}

// Ask answers a question within the given session. An empty sessionID starts a
// new session; the assigned ID is returned in the result.
func (a *Answerer) Ask(ctx context.Context, sessionID, question string) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}

	sessionID, history := a.sessions.Get(sessionID)
	start := time.Now()

	hits, err := a.retriever.Retrieve(ctx, question, a.topK)
	if err != nil {
		// A broken index must not silence the assistant: degrade to an
		// ungrounded answer and tell the operator.
		slog.Error("retrieval failed, answering without context", "session", sessionID, "error", err)
		a.notify(alert.Event{
			Kind:      "retrieval_failure",
			Message:   err.Error(),
			SessionID: sessionID,
		})
		hits = nil
	}

	req, err := a.composer.Assemble(question, hits, history.Snapshot())
	if err != nil {
		return Result{}, fmt.Errorf("assembling prompt: %w", err)
	}

	answer, err := a.generator.Generate(ctx, req)
	if err != nil {
		a.notify(alert.Event{
			Kind:      "generation_failure",
			Message:   err.Error(),
			SessionID: sessionID,
		})
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	clean, violations := a.sanitizer.Clean(answer.Text, len(hits) == 0)
	if len(violations) > 0 {
		slog.Warn("answer sanitized", "session", sessionID, "violations", violations)
	}

	history.Append(session.Turn{
		Question: question,
		Answer:   clean,
		AskedAt:  start,
	})

	a.saveConsultation(sessionID, question, clean, hits)

	slog.Info("question answered",
		"session", sessionID,
		"context_size", len(hits),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return Result{SessionID: sessionID, Answer: clean, Context: answer.Context}, nil
}

// notify dispatches an operator alert without blocking the request: delivery
// runs in its own goroutine with its own deadline, detached from the request
// context.
func (a *Answerer) notify(ev alert.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.notifier.Notify(ctx, ev)
	}()
}

// EndSession discards the conversation state for the given session.
func (a *Answerer) EndSession(sessionID string) {
	a.sessions.End(sessionID)
}

func (a *Answerer) saveConsultation(sessionID, question, answer string, hits []retrieval.Hit) {
	if a.saver == nil {
		return
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		slog.Warn("encoding consultation context", "session", sessionID, "error", err)
		return
	}
	c := storage.Consultation{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		SessionID:  sessionID,
		Question:   question,
		Answer:     answer,
		ContextIDs: string(encoded),
		Status:     "answered",
	}
	if err := a.saver.SaveConsultation(c); err != nil {
		slog.Warn("saving consultation", "session", sessionID, "error", err)
	}
}
