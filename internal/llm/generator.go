package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iter8/iter8-cli/internal/changes"
	"github.com/iter8/iter8-cli/internal/codebase"
	"github.com/iter8/iter8-cli/internal/feedback"
)

// Generator produces change plans from feedback.
type Generator struct {
	client Client
	params Params
}

// NewGenerator creates a generator. Params zero values get a low
// temperature and JSON output.
func NewGenerator(client Client, params Params) *Generator {
	if params.Temperature == nil {
		t := float32(0.3)
		params.Temperature = &t
	}
	if params.System == "" {
		params.System = SystemPrompt
	}
	params.JSON = true
	return &Generator{client: client, params: params}
}

// Generate asks the backend for a plan covering items. Transport failures
// are returned as errors; output that cannot be parsed comes back as
// changes.Malformed with a nil error.
func (g *Generator) Generate(ctx context.Context, project string, items []feedback.Item, snap codebase.Snapshot) (changes.PlanResult, error) {
	if len(items) == 0 {
		return nil, errors.New("no feedback items to generate changes for")
	}

	prompt := BuildPrompt(project, items, snap)
	start := time.Now()
	slog.Debug("Requesting change plan",
		"backend", g.client.Name(),
		"items", len(items),
		"key_files", len(snap.KeyFiles),
		"prompt_bytes", len(prompt))

	text, err := g.client.Generate(ctx, prompt, g.params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.client.Name(), err)
	}

	result := ParsePlan(text)
	switch r := result.(type) {
	case changes.Parsed:
		slog.Debug("Change plan received",
			"changes", len(r.Plan.Changes),
			"duration", time.Since(start))
	case changes.Malformed:
		slog.Warn("Backend returned a malformed change plan",
			"backend", g.client.Name(),
			"reason", r.Reason,
			"preview", truncate(r.Raw, 200))
	}
	return result, nil
}

// Backend returns the name of the underlying client.
func (g *Generator) Backend() string {
	return g.client.Name()
}
