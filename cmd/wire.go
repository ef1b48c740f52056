package cmd

import (
	"fmt"
	"strings"

	"github.com/wardrobe-labs/outfitter/internal/ark"
	"github.com/wardrobe-labs/outfitter/internal/config"
	"github.com/wardrobe-labs/outfitter/internal/gemini"
	"github.com/wardrobe-labs/outfitter/internal/harvest"
	"github.com/wardrobe-labs/outfitter/internal/normalize"
	"github.com/wardrobe-labs/outfitter/internal/ollama"
	"github.com/wardrobe-labs/outfitter/internal/openai"
	"github.com/wardrobe-labs/outfitter/internal/pipeline"
	"github.com/wardrobe-labs/outfitter/internal/providers"
	"github.com/wardrobe-labs/outfitter/internal/recommend"
	"github.com/wardrobe-labs/outfitter/internal/session"
	"github.com/wardrobe-labs/outfitter/internal/storage"
)

// newModelClient returns the model client for an API host name
func newModelClient(apiHost string) (providers.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(apiHost)) {
	case "", "github":
		return openai.NewGitHub(), nil
	case "openai":
		return openai.New(), nil
	case "ollama":
		return ollama.New(), nil
	case "gemini":
		return gemini.New(), nil
	case "ark":
		return ark.New(), nil
	default:
		return nil, fmt.Errorf("unsupported API host: %s", apiHost)
	}
}

func newStore(cfg *config.Config) (*storage.Store, error) {
	store, err := storage.New(cfg.DataDir, cfg.Format, cfg.RawFile, cfg.ItemsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	return store, nil
}

// newPipeline wires every stage from the configuration
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, *storage.Store, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	client, err := newModelClient(cfg.APIHost)
	if err != nil {
		return nil, nil, err
	}
	sampling := cfg.SamplingTemperature

	launcher := session.NewRodLauncher(session.RodConfig{
		RemoteURL: cfg.Browser.RemoteURL,
		Bin:       cfg.Browser.Bin,
		Headless:  cfg.Browser.Headless,
		Stealth:   cfg.Browser.Stealth,
	})
	sessions := session.NewManager(session.Config{
		LoginURL:      cfg.Login.URL,
		SuccessCookie: cfg.Login.SuccessCookie,
		Timeout:       cfg.Login.Timeout,
		PollInterval:  cfg.Login.PollInterval,
	}, launcher)

	harvester := harvest.New(harvest.Config{
		MaxPages:       cfg.Harvest.MaxPages,
		MaxAttempts:    cfg.Harvest.MaxAttempts,
		RetryBaseDelay: cfg.Harvest.RetryBaseDelay,
		PageInterval:   cfg.Harvest.PageInterval,
	}, harvest.NewTaobaoSource(cfg.Harvest.Endpoint, cfg.Harvest.PageSize), store)

	p := pipeline.New(pipeline.Deps{
		Sessions:    sessions,
		Harvester:   harvester,
		Normalizer:  normalize.NewService(store),
		Recommender: recommend.New(client, &sampling),
		Snapshots:   store,
		Log:         store,
	}, pipeline.Options{
		Models:            cfg.Models(),
		DefaultModel:      cfg.Model,
		LookbackDays:      cfg.LookbackDays,
		CloseAfterHarvest: cfg.Harvest.CloseAfterHarvest,
	})
	return p, store, nil
}
