package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given
const DefaultPath = "outfitter.yaml"

// ModelOptions is the allow-list of selectable models
var ModelOptions = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"o3-mini",
	"AI21-Jamba-1.5-Large",
	"AI21-Jamba-1.5-Mini",
	"Codestral-2501",
	"Cohere-command-r",
	"Ministral-3B",
	"Mistral-Large-2411",
	"Mistral-Nemo",
	"Mistral-small",
}

// Config is the runtime configuration of the pipeline
type Config struct {
	DataDir      string `yaml:"datadir"`
	Format       string `yaml:"format"` // csv or parquet
	RawFile      string `yaml:"rawfile"`
	ItemsFile    string `yaml:"itemsfile"`
	LookbackDays int    `yaml:"lookbackdays"`

	APIHost             string   `yaml:"apihost"`
	Model               string   `yaml:"model"`
	ExtraModels         []string `yaml:"extramodels"`
	SamplingTemperature float64  `yaml:"samplingtemperature"`

	Browser BrowserConfig `yaml:"browser"`
	Login   LoginConfig   `yaml:"login"`
	Harvest HarvestConfig `yaml:"harvest"`
}

// BrowserConfig controls the Chrome instance used for the crawling session
type BrowserConfig struct {
	Headless  bool   `yaml:"headless"`
	Bin       string `yaml:"bin"`
	RemoteURL string `yaml:"remoteurl"`
	Stealth   bool   `yaml:"stealth"`
}

type LoginConfig struct {
	URL           string        `yaml:"url"`
	SuccessCookie string        `yaml:"successcookie"`
	Timeout       time.Duration `yaml:"timeout"`
	PollInterval  time.Duration `yaml:"pollinterval"`
}

type HarvestConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	PageSize          int           `yaml:"pagesize"`
	MaxPages          int           `yaml:"maxpages"`
	MaxAttempts       int           `yaml:"maxattempts"`
	RetryBaseDelay    time.Duration `yaml:"retrybasedelay"`
	PageInterval      time.Duration `yaml:"pageinterval"`
	CloseAfterHarvest bool          `yaml:"closeafterharvest"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		DataDir:             "data",
		Format:              "csv",
		RawFile:             "taobao_purchases",
		ItemsFile:           "processed_taobao_purchases",
		LookbackDays:        30,
		APIHost:             "github",
		Model:               "gpt-4o",
		SamplingTemperature: 0.7,
		Browser: BrowserConfig{
			Headless: false,
			Stealth:  true,
		},
		Login: LoginConfig{
			URL:           "https://login.taobao.com/member/login.jhtml",
			SuccessCookie: "unb",
			Timeout:       3 * time.Minute,
			PollInterval:  2 * time.Second,
		},
		Harvest: HarvestConfig{
			Endpoint:          "https://buyertrade.taobao.com/trade/itemlist/asyncBought.htm?action=itemlist/BoughtQueryAction&event_submit_do_query=1&_input_charset=utf8",
			PageSize:          50,
			MaxPages:          50,
			MaxAttempts:       3,
			RetryBaseDelay:    time.Second,
			PageInterval:      time.Second,
			CloseAfterHarvest: true,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the environment.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			slog.Debug("Loaded config file", "path", path)
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("No config file found, using defaults", "path", path)
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("OUTFITTER_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("OUTFITTER_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("OUTFITTER_LOOKBACK_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OUTFITTER_LOOKBACK_DAYS %q: %w", v, err)
		}
		c.LookbackDays = days
	}
	if v := os.Getenv("API_HOST"); v != "" {
		c.APIHost = v
	}
	if v := os.Getenv("GITHUB_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("OUTFITTER_HEADLESS"); v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OUTFITTER_HEADLESS %q: %w", v, err)
		}
		c.Browser.Headless = headless
	}
	if v := os.Getenv("CHROME_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("CHROME_REMOTE_URL"); v != "" {
		c.Browser.RemoteURL = v
	}
	return nil
}

// Validate checks the values that would otherwise fail deep inside a stage
func (c *Config) Validate() error {
	if c.Format != "csv" && c.Format != "parquet" {
		return fmt.Errorf("unsupported storage format: %s (supported: csv, parquet)", c.Format)
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("lookback days must be positive, got %d", c.LookbackDays)
	}
	if c.Harvest.MaxAttempts <= 0 {
		return fmt.Errorf("harvest max attempts must be positive, got %d", c.Harvest.MaxAttempts)
	}
	if !c.IsAllowedModel(c.Model) {
		return fmt.Errorf("default model %q is not in the allow-list", c.Model)
	}
	return nil
}

// Models returns the allow-list including models added through the config file
func (c *Config) Models() []string {
	out := slices.Clone(ModelOptions)
	for _, m := range c.ExtraModels {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

func (c *Config) IsAllowedModel(model string) bool {
	return slices.Contains(c.Models(), model)
}

// Lookback returns the lookback window as a duration
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}
