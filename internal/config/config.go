package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aurzen/unearthedarcana/internal/domain"
)

const (
	configPathEnv    = "UABOT_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	discordTokenEnv  = "DISCORD_BOT_TOKEN"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	operatorChanEnv  = "UABOT_OPERATOR_CHANNEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Platform PlatformConfig `yaml:"platform"`
	Control  ControlConfig  `yaml:"control"`
	Operator OperatorConfig `yaml:"operator"`
	Feeds    []FeedConfig   `yaml:"feeds"`
}

// DatabaseConfig describes the community settings store connection.
// An empty DSN selects the in-memory store (state lost on restart).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PlatformConfig selects and credentials the chat platform adapter.
type PlatformConfig struct {
	Name     string         `yaml:"name"`
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// DiscordConfig wires the Discord REST adapter.
type DiscordConfig struct {
	BotToken string `yaml:"botToken"`
}

// TelegramConfig wires the Telegram Bot API adapter.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
}

// ControlConfig describes the local metrics/mock HTTP listener.
type ControlConfig struct {
	Addr string `yaml:"addr"`
}

// OperatorConfig points diagnostics at an operator-visible channel.
type OperatorConfig struct {
	ChannelID string `yaml:"channelId"`
}

// FeedConfig is the static definition of a single polled feed.
type FeedConfig struct {
	Type                string `yaml:"type"`
	Kind                string `yaml:"kind"`
	SourceURL           string `yaml:"sourceUrl"`
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds"`
	Digest              string `yaml:"digest"`
	Enrich              bool   `yaml:"enrich"`
}

// Feed source kinds and digest rotation strategies.
const (
	KindScrape = "scrape"
	KindRSS    = "rss"

	DigestAppend = "append"
	DigestRotate = "rotate"
)

// FeedType converts the configured type string to the domain enum.
func (f FeedConfig) FeedType() domain.FeedType {
	return domain.FeedType(f.Type)
}

// PollInterval resolves the interval with a one hour default.
func (f FeedConfig) PollInterval() time.Duration {
	if f.PollIntervalSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(f.PollIntervalSeconds) * time.Second
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}

	return cfg
}

// LoadFile reads the given YAML file over the defaults, then applies
// environment overrides. Used by the CLI --config flag.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, err
	}

	cfg = mergeConfig(cfg, fileCfg)
	cfg.applyEnvOverrides()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(discordTokenEnv); v != "" {
		c.Platform.Discord.BotToken = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Platform.Telegram.BotToken = v
	}

	if v := os.Getenv(operatorChanEnv); v != "" {
		c.Operator.ChannelID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Platform.Name != "" {
		base.Platform.Name = override.Platform.Name
	}
	if override.Platform.Discord.BotToken != "" {
		base.Platform.Discord.BotToken = override.Platform.Discord.BotToken
	}
	if override.Platform.Telegram.BotToken != "" {
		base.Platform.Telegram.BotToken = override.Platform.Telegram.BotToken
	}

	if override.Control.Addr != "" {
		base.Control.Addr = override.Control.Addr
	}

	if override.Operator.ChannelID != "" {
		base.Operator.ChannelID = override.Operator.ChannelID
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{DSN: ""},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Platform: PlatformConfig{Name: "discord"},
		Control:  ControlConfig{Addr: "127.0.0.1:9180"},
		Feeds: []FeedConfig{
			{
				Type:                string(domain.FeedUnearthedArcana),
				Kind:                KindScrape,
				SourceURL:           "https://dnd.wizards.com/articles/unearthed-arcana",
				PollIntervalSeconds: 3600,
				Digest:              DigestAppend,
			},
		},
	}
}
