// Package config loads bilingua settings. Sources, lowest precedence
// first: built-in defaults, a YAML/TOML/JSON config file, a .env file,
// BILINGUA_* environment variables and finally command-line flags bound by
// the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/valpere/bilingua/internal/translator"
)

const EnvPrefix = "BILINGUA"

// Services accepted by the service key.
var Services = []string{"http", "chat", "google"}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	AllowOrigin string `mapstructure:"allow_origin"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type Config struct {
	TargetLang     string                   `mapstructure:"target_lang"`
	APIURL         string                   `mapstructure:"api_url"`
	AutoTranslate  bool                     `mapstructure:"auto_translate"`
	AutoDelay      time.Duration            `mapstructure:"auto_delay"`
	Concurrency    int                      `mapstructure:"concurrency"`
	BatchSize      int                      `mapstructure:"batch_size"`
	MinChars       int                      `mapstructure:"min_chars"`
	SkipSelectors  []string                 `mapstructure:"skip_selectors"`
	RequestTimeout time.Duration            `mapstructure:"request_timeout"`
	SettleDelay    time.Duration            `mapstructure:"settle_delay"`
	Service        string                   `mapstructure:"service"`
	Chat           translator.ServiceConfig `mapstructure:"chat"`
	Google         translator.ServiceConfig `mapstructure:"google"`
	Server         ServerConfig             `mapstructure:"server"`
	DB             string                   `mapstructure:"db"`
	Log            LogConfig                `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target_lang", "zh-CN")
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("auto_translate", false)
	v.SetDefault("auto_delay", time.Second)
	v.SetDefault("concurrency", 4)
	v.SetDefault("batch_size", 15)
	v.SetDefault("min_chars", 11)
	v.SetDefault("skip_selectors", []string{})
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("settle_delay", 3*time.Second)
	v.SetDefault("service", "http")

	v.SetDefault("chat.base_url", translator.DefaultChatBaseURL)
	v.SetDefault("chat.model", translator.DefaultChatModel)
	v.SetDefault("chat.api_key", "")
	v.SetDefault("google.credentials", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allow_origin", "*")
	v.SetDefault("db", "bilingua.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// New builds a viper instance with defaults, the config file and the
// environment applied. An empty path searches ./bilingua.* and
// $HOME/.config/bilingua/bilingua.*; a missing file is not an error then.
func New(path string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional DeepSeek and Google variable names.
	_ = v.BindEnv("chat.api_key", EnvPrefix+"_CHAT_API_KEY", "DEEPSEEK_API_KEY")
	_ = v.BindEnv("chat.base_url", EnvPrefix+"_CHAT_BASE_URL", "DEEPSEEK_URL")
	_ = v.BindEnv("google.credentials", EnvPrefix+"_GOOGLE_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName("bilingua")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/bilingua")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is New followed by Decode.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate checks ranges and canonicalises the target language tag.
func (c *Config) Validate() error {
	tag, err := language.Parse(c.TargetLang)
	if err != nil {
		return fmt.Errorf("invalid target_lang %q: %w", c.TargetLang, err)
	}
	c.TargetLang = tag.String()

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if c.MinChars < 1 {
		return fmt.Errorf("min_chars must be at least 1, got %d", c.MinChars)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout)
	}

	valid := false
	for _, s := range Services {
		if c.Service == s {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown service %q (want one of %s)", c.Service, strings.Join(Services, ", "))
	}

	if c.Service == "http" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid api_url %q", c.APIURL)
		}
	}
	return nil
}
