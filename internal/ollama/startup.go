package ollama

import (
	"context"
	"fmt"
	"log/slog"
)

// EnsureReady verifies that the Ollama server is reachable and that every
// required model is available locally, pulling the missing ones.
func EnsureReady(ctx context.Context, client *Client, models ...string) error {
	if !client.IsRunning(ctx) {
		return fmt.Errorf("ollama is not reachable; start it with 'ollama serve'")
	}

	for _, model := range models {
		if model == "" {
			continue
		}
		if client.HasModel(ctx, model) {
			continue
		}

		slog.Info("pulling model", "model", model)
		lastStatus := ""
		err := client.PullModel(ctx, model, func(p PullProgress) {
			if p.Status != lastStatus {
				slog.Info("pull progress", "model", model, "status", p.Status)
				lastStatus = p.Status
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
	}

	return nil
}
