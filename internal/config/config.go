package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/messages"
	"github.com/menta2k/image-cropper/pkg/ratio"
)

// EnvPrefix is the prefix of environment overrides, e.g. CROPPER_MIN_WIDTH.
const EnvPrefix = "CROPPER"

// Config holds the application configuration
type Config struct {
	Cropper  CropperConfig  `json:"cropper"`
	Messages MessagesConfig `json:"messages"`
	Output   OutputConfig   `json:"output"`
	Suggest  SuggestConfig  `json:"suggest"`
	Server   ServerConfig   `json:"server"`
	Log      LogConfig      `json:"log"`
}

// CropperConfig holds the defaults of every crop widget
type CropperConfig struct {
	MinWidth          float64 `json:"min_width"`
	MinHeight         float64 `json:"min_height"`
	ZoomStep          float64 `json:"zoom_step"`
	ZoomQuietPeriodMS int     `json:"zoom_quiet_period_ms"`
	// KeepRatio is "default", "on" or "off".
	KeepRatio string `json:"keep_ratio"`
	// DisplayWidth and DisplayHeight bound the displayed image size.
	DisplayWidth  int `json:"display_width"`
	DisplayHeight int `json:"display_height"`
}

// MessagesConfig holds the advisory translations
type MessagesConfig struct {
	Locale    string            `json:"locale"`
	Fallbacks map[string]string `json:"fallbacks,omitempty"`
	// Translations maps locale to English text to translated text.
	Translations map[string]map[string]string `json:"translations,omitempty"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	OutputDir     string `json:"output_dir"`
	Prefix        string `json:"prefix"`
	Suffix        string `json:"suffix"`
	Quality       int    `json:"quality"`
	Lossless      bool   `json:"lossless"`
}

// SuggestConfig selects how an initial crop is proposed
type SuggestConfig struct {
	// Provider is "", "smart", "ollama" or "llamacpp".
	Provider    string  `json:"provider"`
	OllamaURL   string  `json:"ollama_url"`
	LlamaCppURL string  `json:"llamacpp_url"`
	Model       string  `json:"model"`
	MaxDim      int     `json:"max_dim"`
	Zoom        float64 `json:"zoom"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
	// EventRate limits inbound websocket events per connection and second.
	EventRate  float64 `json:"event_rate"`
	EventBurst int     `json:"event_burst"`
}

// LogConfig holds the logger settings
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	// File enables a rotating log file instead of stderr.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Cropper: CropperConfig{
			MinWidth:          20,
			MinHeight:         20,
			ZoomStep:          0.05,
			ZoomQuietPeriodMS: 100,
			KeepRatio:         "default",
			DisplayWidth:      1024,
			DisplayHeight:     768,
		},
		Messages: MessagesConfig{
			Locale: "en",
		},
		Output: OutputConfig{
			DefaultFormat: "jpg",
			OutputDir:     "./output",
			Prefix:        "",
			Suffix:        "_cropped",
			Quality:       90,
		},
		Suggest: SuggestConfig{
			OllamaURL:   "http://localhost:11434",
			LlamaCppURL: "http://localhost:8080",
			Model:       "openbmb/minicpm-v4",
			MaxDim:      1024,
			Zoom:        1,
		},
		Server: ServerConfig{
			Addr:           ":8090",
			AllowedOrigins: []string{"localhost:*"},
			EventRate:      120,
			EventBurst:     30,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// env lists the settings that can be overridden from the environment.
// Unset variables leave the pointer fields nil.
type env struct {
	MinWidth       *float64 `envconfig:"MIN_WIDTH"`
	MinHeight      *float64 `envconfig:"MIN_HEIGHT"`
	ZoomStep       *float64 `envconfig:"ZOOM_STEP"`
	ZoomQuiet      *int     `envconfig:"ZOOM_QUIET_PERIOD_MS"`
	KeepRatio      *string  `envconfig:"KEEP_RATIO"`
	Locale         *string  `envconfig:"LOCALE"`
	OutputDir      *string  `envconfig:"OUTPUT_DIR"`
	OutputFormat   *string  `envconfig:"OUTPUT_FORMAT"`
	Quality        *int     `envconfig:"QUALITY"`
	Provider       *string  `envconfig:"SUGGEST"`
	OllamaURL      *string  `envconfig:"OLLAMA_URL"`
	LlamaCppURL    *string  `envconfig:"LLAMACPP_URL"`
	Model          *string  `envconfig:"MODEL"`
	Addr           *string  `envconfig:"ADDR"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	EventRate      *float64 `envconfig:"EVENT_RATE"`
	LogLevel       *string  `envconfig:"LOG_LEVEL"`
	LogFormat      *string  `envconfig:"LOG_FORMAT"`
	LogFile        *string  `envconfig:"LOG_FILE"`
}

// ApplyEnv overrides settings from CROPPER_* environment variables.
func (c *Config) ApplyEnv() error {
	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	set(&c.Cropper.MinWidth, e.MinWidth)
	set(&c.Cropper.MinHeight, e.MinHeight)
	set(&c.Cropper.ZoomStep, e.ZoomStep)
	set(&c.Cropper.ZoomQuietPeriodMS, e.ZoomQuiet)
	set(&c.Cropper.KeepRatio, e.KeepRatio)
	set(&c.Messages.Locale, e.Locale)
	set(&c.Output.OutputDir, e.OutputDir)
	set(&c.Output.DefaultFormat, e.OutputFormat)
	set(&c.Output.Quality, e.Quality)
	set(&c.Suggest.Provider, e.Provider)
	set(&c.Suggest.OllamaURL, e.OllamaURL)
	set(&c.Suggest.LlamaCppURL, e.LlamaCppURL)
	set(&c.Suggest.Model, e.Model)
	set(&c.Server.Addr, e.Addr)
	set(&c.Server.EventRate, e.EventRate)
	set(&c.Log.Level, e.LogLevel)
	set(&c.Log.Format, e.LogFormat)
	set(&c.Log.File, e.LogFile)
	if e.AllowedOrigins != nil {
		c.Server.AllowedOrigins = e.AllowedOrigins
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Cropper.MinWidth < 0 || c.Cropper.MinHeight < 0 {
		return fmt.Errorf("cropper.min_width and cropper.min_height must not be negative")
	}

	if c.Cropper.ZoomStep <= 0 || c.Cropper.ZoomStep >= 1 {
		return fmt.Errorf("cropper.zoom_step must be between 0 and 1")
	}

	if c.Cropper.ZoomQuietPeriodMS < 0 {
		return fmt.Errorf("cropper.zoom_quiet_period_ms must not be negative")
	}

	if _, err := ratio.ParseKeepRatio(c.Cropper.KeepRatio); err != nil {
		return fmt.Errorf("cropper.keep_ratio: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch strings.ToLower(c.Output.DefaultFormat) {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.default_format must be jpg, png or webp")
	}

	switch c.Suggest.Provider {
	case "", "none", "smart", "ollama", "llamacpp":
	default:
		return fmt.Errorf("suggest.provider must be smart, ollama or llamacpp")
	}

	if c.Suggest.Zoom < 0 || c.Suggest.Zoom > 1 {
		return fmt.Errorf("suggest.zoom must be between 0 and 1")
	}

	if c.Server.EventRate < 0 || c.Server.EventBurst < 0 {
		return fmt.Errorf("server.event_rate and server.event_burst must not be negative")
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}

	return nil
}

// CropConfig returns the widget defaults, without id, target or initial crop.
func (c *Config) CropConfig() cropper.Config {
	cfg := cropper.Config{
		MinWidth:        c.Cropper.MinWidth,
		MinHeight:       c.Cropper.MinHeight,
		ZoomStep:        c.Cropper.ZoomStep,
		ZoomQuietPeriod: time.Duration(c.Cropper.ZoomQuietPeriodMS) * time.Millisecond,
	}
	keep, _ := ratio.ParseKeepRatio(c.Cropper.KeepRatio)
	switch keep {
	case ratio.KeepOn:
		on := true
		cfg.KeepRatio = &on
	case ratio.KeepOff:
		off := false
		cfg.KeepRatio = &off
	}
	return cfg
}

// Translator builds the advisory translator from the messages section.
func (c *Config) Translator() (*messages.Translator, error) {
	tr := messages.NewTranslator()
	for locale, texts := range c.Messages.Translations {
		if err := tr.Add(locale, texts); err != nil {
			return nil, err
		}
	}
	if len(c.Messages.Fallbacks) > 0 {
		if err := tr.SetFallbacks(c.Messages.Fallbacks); err != nil {
			return nil, err
		}
	}
	if c.Messages.Locale != "" {
		if err := tr.SetLocale(c.Messages.Locale); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-cropper", "config.json")
}
