package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MegaGrindStone/docstring-web-ui/internal/handlers"
	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
	"github.com/MegaGrindStone/docstring-web-ui/internal/services"
	"gopkg.in/yaml.v3"
)

type botConfig interface {
	bot(ctx context.Context, logger *slog.Logger) (handlers.Bot, error)
}

// BaseBotConfig contains the common fields for all bot configurations.
type BaseBotConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port          string               `yaml:"port"`
	LogLevel      string               `yaml:"logLevel"`
	StorePath     string               `yaml:"storePath"`
	MaxLineLength int                  `yaml:"maxLineLength"`
	QueueSize     int                  `yaml:"queueSize"`
	RunTTL        time.Duration        `yaml:"runTTL"`
	Verbosity     models.Verbosity     `yaml:"verbosity"`
	Bots          map[string]botConfig `yaml:"bots"`
}

type ollamaConfig struct {
	BaseBotConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openAIConfig struct {
	BaseBotConfig `yaml:",inline"`
	APIKey        string   `yaml:"apiKey"`
	BaseURL       string   `yaml:"baseURL"`
	Temperature   *float32 `yaml:"temperature"`
}

type anthropicConfig struct {
	BaseBotConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
	MaxTokens     int    `yaml:"maxTokens"`
}

type openRouterConfig struct {
	BaseBotConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
}

type googleConfig struct {
	BaseBotConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
}

type fileConfig struct {
	BaseBotConfig `yaml:",inline"`
	Path          string `yaml:"path"`
}

const defaultPort = "8080"

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port          string                    `yaml:"port"`
		LogLevel      string                    `yaml:"logLevel"`
		StorePath     string                    `yaml:"storePath"`
		MaxLineLength int                       `yaml:"maxLineLength"`
		QueueSize     int                       `yaml:"queueSize"`
		RunTTL        time.Duration             `yaml:"runTTL"`
		Verbosity     *models.Verbosity         `yaml:"verbosity"`
		Bots          map[string]map[string]any `yaml:"bots"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	if c.Port == "" {
		c.Port = defaultPort
	}
	c.LogLevel = rawConfig.LogLevel
	c.StorePath = rawConfig.StorePath
	c.MaxLineLength = rawConfig.MaxLineLength
	c.QueueSize = rawConfig.QueueSize
	c.RunTTL = rawConfig.RunTTL
	c.Verbosity = models.DefaultVerbosity
	if rawConfig.Verbosity != nil {
		c.Verbosity = *rawConfig.Verbosity
	}

	if len(rawConfig.Bots) == 0 {
		return fmt.Errorf("at least one bot is required")
	}

	c.Bots = make(map[string]botConfig, len(rawConfig.Bots))
	for name, rawBot := range rawConfig.Bots {
		if strings.ContainsAny(name, "/ ") {
			return fmt.Errorf("invalid bot name %q", name)
		}

		provider, ok := rawBot["provider"].(string)
		if !ok {
			return fmt.Errorf("bot %s: provider is required", name)
		}

		botRawYAML, err := yaml.Marshal(rawBot)
		if err != nil {
			return err
		}

		var bot botConfig
		switch provider {
		case "ollama":
			bot = &ollamaConfig{}
		case "openai":
			bot = &openAIConfig{}
		case "anthropic":
			bot = &anthropicConfig{}
		case "openrouter":
			bot = &openRouterConfig{}
		case "google":
			bot = &googleConfig{}
		case "file":
			bot = &fileConfig{}
		default:
			return fmt.Errorf("bot %s: unknown provider: %s", name, provider)
		}

		if err := yaml.Unmarshal(botRawYAML, bot); err != nil {
			return fmt.Errorf("bot %s: %w", name, err)
		}
		c.Bots[name] = bot
	}

	return nil
}

func (c config) logLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c config) bots(ctx context.Context, logger *slog.Logger) (map[string]handlers.Bot, error) {
	bots := make(map[string]handlers.Bot, len(c.Bots))
	for name, bc := range c.Bots {
		bot, err := bc.bot(ctx, logger.With(slog.String("bot", name)))
		if err != nil {
			return nil, fmt.Errorf("bot %s: %w", name, err)
		}
		bots[name] = bot
	}
	return bots, nil
}

func (o ollamaConfig) bot(context.Context, *slog.Logger) (handlers.Bot, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model)
}

func (o openAIConfig) bot(_ context.Context, logger *slog.Logger) (handlers.Bot, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, o.Temperature, logger), nil
}

func (a anthropicConfig) bot(context.Context, *slog.Logger) (handlers.Bot, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Endpoint, a.Model, a.MaxTokens), nil
}

func (o openRouterConfig) bot(_ context.Context, logger *slog.Logger) (handlers.Bot, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return services.NewOpenRouter(apiKey, o.Endpoint, o.Model, logger), nil
}

func (g googleConfig) bot(ctx context.Context, _ *slog.Logger) (handlers.Bot, error) {
	if g.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := g.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	return services.NewGemini(ctx, apiKey, g.Model)
}

func (f fileConfig) bot(context.Context, *slog.Logger) (handlers.Bot, error) {
	if f.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if _, err := os.Stat(f.Path); err != nil {
		return nil, err
	}
	return services.NewFileBot(f.Path), nil
}
