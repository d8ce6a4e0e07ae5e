package langchain

import (
	"context"
	"log/slog"

	"github.com/poiesic/groundwork/ai"
	"github.com/tmc/langchaingo/llms"
)

// Generator implements ai.Generator over a langchaingo model.
type Generator struct {
	model       llms.Model
	temperature float64
	logger      *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator wraps model. A nil logger falls back to slog.Default().
func NewGenerator(model llms.Model, temperature float64, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{model: model, temperature: temperature, logger: logger}
}

// Complete sends prompt as a single human message and returns the first choice.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("generating completion", "prompt_length", len(prompt))
	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, llms.WithTemperature(g.temperature))
	if err != nil {
		g.logger.Error("failed to generate completion", "err", err)
		return "", err
	}
	return out, nil
}
