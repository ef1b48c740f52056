package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wardrobe-labs/outfitter/internal/models"
	"github.com/wardrobe-labs/outfitter/internal/pipeline"
)

// requestFlags are the recommendation flags shared by run and recommend
type requestFlags struct {
	style       string
	temperature float64
	mood        string
	model       string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.style, "style", "", "Style preference, e.g. \"smart casual\"")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0, "Current outdoor temperature in °C")
	cmd.Flags().StringVar(&f.mood, "mood", "", "Mood for today's outfit")
	cmd.Flags().StringVar(&f.model, "model", "", "Model to use (defaults to the configured model)")
}

func (f *requestFlags) request(cmd *cobra.Command) models.RecommendationRequest {
	req := models.RecommendationRequest{StylePreference: f.style, Model: f.model}
	if cmd.Flags().Changed("temperature") {
		temp := f.temperature
		req.Temperature = &temp
	}
	if f.mood != "" {
		mood := f.mood
		req.Mood = &mood
	}
	return req
}

func printRecommendation(w io.Writer, result models.RecommendationResult, status pipeline.Status) {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Status: %s\n", status.Kind)
	fmt.Fprintf(w, "        %s\n", status.Message)
	fmt.Fprintln(w, "========================================")
	if result.RawText != "" {
		fmt.Fprintln(w, result.RawText)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Recommended images (%d):\n", len(result.ImageURLs))
	for _, u := range result.ImageURLs {
		fmt.Fprintf(w, "  %s\n", u)
	}
}

// statusErr turns a non-ok status into a command error
func statusErr(status pipeline.Status) error {
	if status.OK() || status.Kind == pipeline.KindPartialHarvest {
		return nil
	}
	return fmt.Errorf("%s: %s", status.Kind, status.Message)
}
