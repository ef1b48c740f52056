package ark

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	mdl "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wardrobe-labs/outfitter/internal/providers"
)

const systemPrompt = "You are a personal stylist. Only recommend clothing from the wardrobe you are given, and quote each chosen image URL exactly as listed."

type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...mdl.Option) (*schema.Message, error)
}

// Ark is a provider for Volcengine Ark chat models
type Ark struct {
	APIKey  string
	BaseURL string

	newModel func(ctx context.Context, cfg *ark.ChatModelConfig) (generator, error)
}

// New returns an Ark provider using ARK_API_KEY and ARK_BASE_URL
func New() *Ark {
	return &Ark{
		APIKey:  os.Getenv("ARK_API_KEY"),
		BaseURL: os.Getenv("ARK_BASE_URL"),
		newModel: func(ctx context.Context, cfg *ark.ChatModelConfig) (generator, error) {
			return ark.NewChatModel(ctx, cfg)
		},
	}
}

// Complete sends a system and user message pair and returns the reply content
func (a *Ark) Complete(ctx context.Context, config providers.Config) (string, error) {
	if a.APIKey == "" {
		return "", fmt.Errorf("ARK_API_KEY environment variable not set")
	}

	cm, err := a.newModel(ctx, &ark.ChatModelConfig{
		BaseURL: a.BaseURL,
		APIKey:  a.APIKey,
		Model:   config.Model,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create ark chat model: %w", err)
	}

	var opts []mdl.Option
	if config.Temperature != nil {
		opts = append(opts, mdl.WithTemperature(float32(*config.Temperature)))
	}

	msg, err := cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(config.Prompt),
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("empty content returned from ark")
	}
	return msg.Content, nil
}
