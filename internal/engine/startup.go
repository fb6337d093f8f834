package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// EnsureReady checks that the Engine is reachable and the required models are
// available. Model names may be empty when a backend doesn't need them (cloud
// providers load models on demand). Missing models are reported as a single
// error naming them all.
func EnsureReady(ctx context.Context, e Engine, chatModel, embedModel string, w io.Writer) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("inference backend is not reachable")
	}

	models := make([]string, 0, 2)
	if chatModel != "" {
		models = append(models, chatModel)
	}
	if embedModel != "" && embedModel != chatModel {
		models = append(models, embedModel)
	}

	var missing []string
	for _, model := range models {
		if e.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}
		missing = append(missing, model)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing models: %s", strings.Join(missing, ", "))
	}

	return nil
}
