// Package config loads the site configuration from sitetree.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/pstuifzand/sitetree/internal/i18n"
	"github.com/pstuifzand/sitetree/internal/markup"
	"github.com/pstuifzand/sitetree/internal/model"
)

// FileName is the configuration file inside a site directory.
const FileName = "sitetree.toml"

// Config holds site configuration
type Config struct {
	BaseURL            string   `toml:"base_url" validate:"omitempty,url"`
	DefaultLanguage    string   `toml:"default_language" validate:"required,langcode"`
	Languages          []string `toml:"languages" validate:"min=1,dive,langcode"`
	Multilingual       bool     `toml:"multilingual"`
	RawTextPrefix      string   `toml:"raw_text_prefix" validate:"required"`
	StaticPrefixes     []string `toml:"static_prefixes"`
	MissingTranslation string   `toml:"missing_translation" validate:"required"`
	Debug              bool     `toml:"debug"`

	Render RenderConfig `toml:"render"`
	Build  BuildConfig  `toml:"build"`
	Backup BackupConfig `toml:"backup"`
	Audit  AuditConfig  `toml:"audit"`
	Serve  ServeConfig  `toml:"serve"`

	Settings map[string]string `toml:"settings"`

	// Session settings (not persisted to TOML, overrides persisted settings)
	sessionSettings map[string]string
}

// RenderConfig configures both render targets.
type RenderConfig struct {
	MaxDepth int  `toml:"max_depth" validate:"min=1,max=50"`
	Minify   bool `toml:"minify"`
}

// BuildConfig configures build and deploy.
type BuildConfig struct {
	OutputDir   string `toml:"output_dir" validate:"required"`
	ServeDir    string `toml:"serve_dir" validate:"required"`
	StampFormat string `toml:"stamp_format" validate:"required"`
}

// BackupConfig configures structure backups. Keep == 0 disables them.
type BackupConfig struct {
	Keep int `toml:"keep" validate:"min=0"`
}

// AuditConfig configures the edit journal. An empty path disables it.
type AuditConfig struct {
	Path string `toml:"path"`
}

// ServeConfig configures the preview server and the command socket.
type ServeConfig struct {
	Addr   string `toml:"addr" validate:"required,hostname_port"`
	Socket string `toml:"socket"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("langcode", func(fl validator.FieldLevel) bool {
		return i18n.ValidLanguage(fl.Field().String())
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(Config)
		if c.DefaultLanguage != "" && !slices.Contains(c.Languages, c.DefaultLanguage) {
			sl.ReportError(c.Languages, "Languages", "languages", "containsdefault", c.DefaultLanguage)
		}
	}, Config{})
	return v
}

// Load loads sitetree.toml from a site directory
func Load(siteDir string) (*Config, error) {
	return LoadFromFile(filepath.Join(siteDir, FileName))
}

// LoadFromFile loads config from a specific file
func LoadFromFile(filePath string) (*Config, error) {
	// If file doesn't exist, return default config
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	config := Config{Backup: BackupConfig{Keep: -1}}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the default configuration
func Default() *Config {
	config := &Config{Backup: BackupConfig{Keep: -1}}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{c.DefaultLanguage}
	}
	if c.RawTextPrefix == "" {
		c.RawTextPrefix = markup.DefaultRawTextPrefix
	}
	if c.StaticPrefixes == nil {
		c.StaticPrefixes = slices.Clone(markup.DefaultStaticPrefixes)
	}
	if c.MissingTranslation == "" {
		c.MissingTranslation = i18n.DefaultMissing
	}
	if c.Render.MaxDepth == 0 {
		c.Render.MaxDepth = model.MaxStructureDepth
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = "build"
	}
	if c.Build.ServeDir == "" {
		c.Build.ServeDir = "public"
	}
	if c.Build.StampFormat == "" {
		c.Build.StampFormat = "%Y-%m-%d %H:%M:%S"
	}
	// -1 marks "not set" so an explicit keep = 0 disables backups
	if c.Backup.Keep < 0 {
		c.Backup.Keep = 20
	}
	if c.Audit.Path == "" {
		c.Audit.Path = filepath.Join(".sitetree", "audit.db")
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = "127.0.0.1:8080"
	}
	if c.Serve.Socket == "" {
		c.Serve.Socket = filepath.Join(".sitetree", "sitetree.sock")
	}
	if c.Settings == nil {
		c.Settings = make(map[string]string)
	}
	if c.sessionSettings == nil {
		c.sessionSettings = make(map[string]string)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, describe(e))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "langcode":
		return fmt.Sprintf("%s: %q is not a language code", field, e.Value())
	case "containsdefault":
		return fmt.Sprintf("%s must contain the default language %q", field, e.Param())
	case "min", "max":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"min": "at least", "max": "at most"}[e.Tag()], e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// Path resolves a configured path against the site directory.
func (c *Config) Path(siteDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(siteDir, p)
}

// Set sets a session configuration value. Known keys also override the
// corresponding field: base_url, default_language, multilingual, minify,
// debug.
func (c *Config) Set(key, value string) error {
	switch key {
	case "base_url":
		c.BaseURL = value
	case "default_language":
		if !i18n.ValidLanguage(value) {
			return fmt.Errorf("%q is not a language code", value)
		}
		c.DefaultLanguage = value
		if !slices.Contains(c.Languages, value) {
			c.Languages = append(c.Languages, value)
		}
	case "multilingual", "minify", "debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "multilingual":
			c.Multilingual = b
		case "minify":
			c.Render.Minify = b
		default:
			c.Debug = b
		}
	}
	if c.sessionSettings == nil {
		c.sessionSettings = make(map[string]string)
	}
	c.sessionSettings[key] = value
	return nil
}

// Get retrieves a configuration value, checking session settings first (which override persisted settings)
// Returns empty string if not found in either source
func (c *Config) Get(key string) string {
	// Check session settings first (they override persisted settings)
	if c.sessionSettings != nil {
		if val, ok := c.sessionSettings[key]; ok {
			return val
		}
	}

	// Fall back to persisted settings
	if c.Settings != nil {
		if val, ok := c.Settings[key]; ok {
			return val
		}
	}

	return ""
}

// GetAll returns all configuration values (both persisted and session)
// Session settings override persisted settings with the same key
func (c *Config) GetAll() map[string]string {
	result := make(map[string]string)

	// First, add all persisted settings
	for k, v := range c.Settings {
		result[k] = v
	}

	// Then override with session settings (they take precedence)
	for k, v := range c.sessionSettings {
		result[k] = v
	}

	return result
}

// Save persists the configuration to the TOML file
// Note: session settings are not persisted
func (c *Config) Save(siteDir string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(siteDir, FileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LowerOptions returns the lowering options both render targets share.
func (c *Config) LowerOptions() markup.Options {
	return markup.Options{
		RawTextPrefix: c.RawTextPrefix,
		URL:           markup.URLPolicy{BaseURL: c.BaseURL, StaticPrefixes: c.StaticPrefixes},
		MaxDepth:      c.Render.MaxDepth,
		Languages:     slices.Clone(c.Languages),
		Multilingual:  c.Multilingual,
	}
}
