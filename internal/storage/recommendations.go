package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wardrobe-labs/outfitter/internal/models"
)

// RecommendationLog is one logged recommendation
type RecommendationLog struct {
	Timestamp   string   `yaml:"timestamp"`
	Model       string   `yaml:"model"`
	Style       string   `yaml:"style"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	Mood        string   `yaml:"mood,omitempty"`
	Items       int      `yaml:"items"`
	Status      string   `yaml:"status"`
	ImageURLs   []string `yaml:"imageurls"`
	RawText     string   `yaml:"rawtext"`
}

// LogRecommendation writes the request and result to <dir>/recommendations/<model>-<timestamp>.yaml
// and returns the file path
func (s *Store) LogRecommendation(req models.RecommendationRequest, items int, status string, result models.RecommendationResult) (string, error) {
	dir := filepath.Join(s.dir, "recommendations")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recommendations directory: %w", err)
	}

	now := time.Now()
	entry := RecommendationLog{
		Timestamp:   now.Format(time.RFC3339),
		Model:       req.Model,
		Style:       req.StylePreference,
		Temperature: req.Temperature,
		Items:       items,
		Status:      status,
		ImageURLs:   result.ImageURLs,
		RawText:     result.RawText,
	}
	if req.Mood != nil {
		entry.Mood = *req.Mood
	}

	data, err := yaml.Marshal(&entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	name := fmt.Sprintf("%s-%s.yaml", safeName(req.Model), now.Format("2006-01-02_15-04-05.000"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return path, nil
}

func safeName(s string) string {
	if s == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == ' ' {
			return '_'
		}
		return r
	}, s)
}
