package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	cfg := &Config{
		sessionSettings: make(map[string]string),
	}

	require.NoError(t, cfg.Set("visattr", "date"))
	if cfg.Get("visattr") != "date" {
		t.Errorf("Expected 'date', got '%s'", cfg.Get("visattr"))
	}
}

func TestGet(t *testing.T) {
	cfg := &Config{
		sessionSettings: make(map[string]string),
		Settings:        map[string]string{"test": "persisted"},
	}

	// Test getting a value that doesn't exist
	if cfg.Get("nonexistent") != "" {
		t.Errorf("Expected empty string for nonexistent key, got '%s'", cfg.Get("nonexistent"))
	}

	if cfg.Get("test") != "persisted" {
		t.Errorf("Expected 'persisted', got '%s'", cfg.Get("test"))
	}

	// Session values win
	require.NoError(t, cfg.Set("test", "value"))
	if cfg.Get("test") != "value" {
		t.Errorf("Expected 'value', got '%s'", cfg.Get("test"))
	}
}

func TestGetAllReturnsACopy(t *testing.T) {
	cfg := &Config{
		sessionSettings: make(map[string]string),
	}

	require.NoError(t, cfg.Set("original", "value"))

	// Modify the returned map
	all := cfg.GetAll()
	all["original"] = "modified"

	// Verify the original config was not modified
	if cfg.Get("original") != "value" {
		t.Errorf("GetAll() should return a copy, not a reference")
	}
}

func TestNilSessionSettings(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Set("key", "value"))
	assert.Equal(t, "value", cfg.Get("key"))
	assert.Equal(t, "", (&Config{}).Get("key"))
}

func TestSetOverridesKnownKeys(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Set("base_url", "https://preview.local"))
	require.NoError(t, cfg.Set("default_language", "nl"))
	require.NoError(t, cfg.Set("minify", "true"))

	assert.Equal(t, "https://preview.local", cfg.BaseURL)
	assert.Equal(t, "nl", cfg.DefaultLanguage)
	assert.Contains(t, cfg.Languages, "nl")
	assert.True(t, cfg.Render.Minify)
	assert.NoError(t, cfg.Validate())

	assert.Error(t, cfg.Set("default_language", "../x"))
	assert.Error(t, cfg.Set("debug", "maybe"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "en", cfg.DefaultLanguage)
	assert.Equal(t, []string{"en"}, cfg.Languages)
	assert.Equal(t, "__RAW__", cfg.RawTextPrefix)
	assert.Equal(t, []string{"assets/", "style/", "scripts/"}, cfg.StaticPrefixes)
	assert.Equal(t, "[missing: %s]", cfg.MissingTranslation)
	assert.Equal(t, 50, cfg.Render.MaxDepth)
	assert.Equal(t, 20, cfg.Backup.Keep)
	assert.Equal(t, "build", cfg.Build.OutputDir)
	assert.Equal(t, "public", cfg.Build.ServeDir)
	assert.NotNil(t, cfg.sessionSettings)
	assert.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
base_url = "https://example.com"
default_language = "nl"
languages = ["nl", "en"]
multilingual = true

[render]
max_depth = 30
minify = true

[backup]
keep = 0

[settings]
theme = "dark"
`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", cfg.BaseURL)
	assert.Equal(t, []string{"nl", "en"}, cfg.Languages)
	assert.True(t, cfg.Multilingual)
	assert.Equal(t, 30, cfg.Render.MaxDepth)
	assert.True(t, cfg.Render.Minify)
	assert.Equal(t, 0, cfg.Backup.Keep, "explicit zero disables backups")
	assert.Equal(t, "dark", cfg.Get("theme"))

	opts := cfg.LowerOptions()
	assert.Equal(t, "https://example.com", opts.URL.BaseURL)
	assert.Equal(t, 30, opts.MaxDepth)
	assert.True(t, opts.Multilingual)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"default not in languages", `default_language = "nl"` + "\n" + `languages = ["en"]`, "default language"},
		{"bad language", `languages = ["en", "English"]`, "not a language code"},
		{"bad base url", `base_url = "not a url"`, "BaseURL"},
		{"depth too large", "[render]\nmax_depth = 500", "at most 50"},
		{"negative keep", "[backup]\nkeep = -5", ""},
		{"broken toml", `base_url = `, "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if tt.name == "negative keep" {
				// negative values mean "unset" and fall back to the default
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.DefaultLanguage)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.BaseURL = "https://saved.example"
	require.NoError(t, cfg.Set("session-only", "x"))
	require.NoError(t, cfg.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example", loaded.BaseURL)
	assert.Equal(t, "", loaded.Get("session-only"), "session settings are not persisted")
}

func TestPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("/site", ".sitetree", "audit.db"), cfg.Path("/site", cfg.Audit.Path))
	assert.Equal(t, "/abs/x", cfg.Path("/site", "/abs/x"))
	assert.Equal(t, "", cfg.Path("/site", ""))

	_, err := os.Stat(cfg.Path(t.TempDir(), "nope"))
	assert.True(t, os.IsNotExist(err))
}
