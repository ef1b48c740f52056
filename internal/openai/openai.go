package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/wardrobe-labs/outfitter/internal/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	githubBaseURL  = "https://models.inference.ai.azure.com"
)

// OpenAI is a provider for OpenAI-compatible chat completion endpoints
type OpenAI struct {
	BaseURL    string
	APIKey     string
	KeyEnv     string
	HTTPClient *http.Client
}

// New returns a provider for the OpenAI API (OPENAI_API_KEY, OPENAI_BASE_URL)
func New() *OpenAI {
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAI{
		BaseURL:    baseURL,
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		KeyEnv:     "OPENAI_API_KEY",
		HTTPClient: &http.Client{},
	}
}

// NewGitHub returns a provider for GitHub Models, authenticated with GITHUB_TOKEN
func NewGitHub() *OpenAI {
	return &OpenAI{
		BaseURL:    githubBaseURL,
		APIKey:     os.Getenv("GITHUB_TOKEN"),
		KeyEnv:     "GITHUB_TOKEN",
		HTTPClient: &http.Client{},
	}
}

// Complete sends the prompt as a single user message
func (o *OpenAI) Complete(ctx context.Context, config providers.Config) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("%s environment variable not set", o.KeyEnv)
	}

	body := map[string]interface{}{
		"model": config.Model,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": config.Prompt,
			},
		},
	}
	// reasoning models reject a sampling temperature
	if config.Temperature != nil && !isReasoningModel(config.Model) {
		body["temperature"] = *config.Temperature
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := strings.TrimSuffix(o.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s", o.BaseURL)
	}

	return response.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4")
}
