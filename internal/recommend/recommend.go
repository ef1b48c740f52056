package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardrobe-labs/outfitter/internal/models"
	"github.com/wardrobe-labs/outfitter/internal/providers"
)

// ErrNoDataAvailable is returned when there is no normalized wardrobe to recommend from
var ErrNoDataAvailable = errors.New("no wardrobe data available, harvest purchases first")

// ModelCallError reports a model client failure. The accompanying result
// carries no image URLs and a diagnostic in RawText.
type ModelCallError struct {
	Model string
	Cause error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call to %s failed: %v", e.Model, e.Cause)
}

func (e *ModelCallError) Unwrap() error {
	return e.Cause
}

// Orchestrator builds prompts, calls the model client and extracts image references
type Orchestrator struct {
	client      providers.Provider
	temperature *float64
}

// New returns an orchestrator. samplingTemperature may be nil to use the provider default.
func New(client providers.Provider, samplingTemperature *float64) *Orchestrator {
	return &Orchestrator{client: client, temperature: samplingTemperature}
}

// Recommend asks the model for an outfit drawn from collection.
// Failures never panic: an empty collection yields ErrNoDataAvailable and a model
// failure yields a *ModelCallError alongside a result holding the diagnostic text.
func (o *Orchestrator) Recommend(ctx context.Context, collection *models.ClothingCollection, req models.RecommendationRequest) (models.RecommendationResult, error) {
	if collection.Len() == 0 {
		return models.RecommendationResult{ImageURLs: []string{}}, ErrNoDataAvailable
	}

	prompt := BuildPrompt(collection.Items(), req)
	slog.Info("Requesting recommendation", "model", req.Model, "items", collection.Len())

	start := time.Now()
	text, err := o.client.Complete(ctx, providers.Config{
		Model:       req.Model,
		Temperature: o.temperature,
		Prompt:      prompt,
	})
	if err != nil {
		slog.Error("Model call failed", "model", req.Model, "error", err)
		return models.RecommendationResult{
			ImageURLs: []string{},
			RawText:   fmt.Sprintf("Recommendation failed: %v", err),
		}, &ModelCallError{Model: req.Model, Cause: err}
	}

	urls := ExtractImageURLs(text)
	slog.Info("Recommendation received", "model", req.Model, "urls", len(urls), "duration", time.Since(start))
	return models.RecommendationResult{ImageURLs: urls, RawText: text}, nil
}
