package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Notifier reports upstream failures to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Event describes a failure worth telling an operator about.
type Event struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	SessionID string    `json:"session_id,omitempty"`
	At        time.Time `json:"at"`
}

// WebhookNotifier posts events as JSON to a configured endpoint. Delivery is
// best effort: failures are logged and never propagated to the caller.
type WebhookNotifier struct {
	endpoint   string
	httpClient *http.Client
}

// NewWebhook creates a notifier for the given endpoint. An empty endpoint
// yields a no-op notifier.
func NewWebhook(endpoint string) Notifier {
	if endpoint == "" {
		return Noop{}
	}
	return &WebhookNotifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		slog.Warn("alert: marshaling event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Warn("alert: creating request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		slog.Warn("alert: delivering event", "kind", event.Kind, "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Warn("alert: endpoint rejected event", "kind", event.Kind, "status", resp.StatusCode)
	}
}

// Noop discards all events.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}
