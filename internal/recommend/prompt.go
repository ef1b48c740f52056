package recommend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wardrobe-labs/outfitter/internal/models"
)

// BuildPrompt renders the wardrobe and the request into a single prompt.
// Every item's image URL is written verbatim so the model can quote it back.
func BuildPrompt(items []models.ClothingItem, req models.RecommendationRequest) string {
	var sb strings.Builder

	sb.WriteString("You are a personal stylist. Recommend one outfit chosen only from the wardrobe below.\n\n")

	sb.WriteString("Request:\n")
	style := strings.TrimSpace(req.StylePreference)
	if style == "" {
		style = "no particular preference"
	}
	fmt.Fprintf(&sb, "- Style: %s\n", style)
	if req.Temperature != nil {
		fmt.Fprintf(&sb, "- Current temperature: %s°C\n", strconv.FormatFloat(*req.Temperature, 'f', -1, 64))
	}
	if req.Mood != nil && strings.TrimSpace(*req.Mood) != "" {
		fmt.Fprintf(&sb, "- Mood: %s\n", strings.TrimSpace(*req.Mood))
	}

	sb.WriteString("\nWardrobe:\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. image_url: %s | category: %s", i+1, item.ImageURL, item.Category)
		if item.Title != "" {
			fmt.Fprintf(&sb, " | title: %s", item.Title)
		}
		if item.Price > 0 {
			fmt.Fprintf(&sb, " | price: %.2f", item.Price)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nExplain the outfit briefly and list the image_url of every chosen item exactly as written above.\n")
	return sb.String()
}
