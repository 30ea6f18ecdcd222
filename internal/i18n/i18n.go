// Package i18n implements the translation lookup used by both render targets.
package i18n

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultMissing is the marker format for keys without a translation.
const DefaultMissing = "[missing: %s]"

var languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{2,8})?$`)

// ValidLanguage reports whether code is usable as a language code and as a
// file name.
func ValidLanguage(code string) bool {
	return languagePattern.MatchString(code)
}

// Translator resolves dot-notation keys. A missing key yields a visible
// marker, never an error. The returned text is not escaped.
type Translator interface {
	Translate(key string) string
}

// Bundle is the nested mapping of one language.
type Bundle map[string]any

// Lookup resolves a dot-notation key. A key that exists literally at the top
// level wins over the nested path. Numeric parts also index lists.
func (b Bundle) Lookup(key string) (string, bool) {
	if v, ok := b[key]; ok {
		return scalar(v)
	}
	x := jp.R()
	for _, part := range strings.Split(key, ".") {
		if i, ok := listIndex(part); ok {
			x = x.U(part, int64(i))
			continue
		}
		x = x.C(part)
	}
	return scalar(x.First(map[string]any(b)))
}

// listIndex accepts the parts PHP treats as integer array keys.
func listIndex(part string) (int, bool) {
	i, err := strconv.Atoi(part)
	if err != nil || i < 0 || strconv.Itoa(i) != part {
		return 0, false
	}
	return i, true
}

func scalar(v any) (string, bool) {
	switch v.(type) {
	case nil, map[string]any, []any:
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// Merge returns a deep copy of base with over laid on top.
func Merge(base, over Bundle) Bundle {
	out := make(Bundle, len(base)+len(over))
	for k, v := range base {
		out[k] = model.CloneData(v)
	}
	for k, v := range over {
		if vm, ok := v.(map[string]any); ok {
			if bm, ok := out[k].(map[string]any); ok {
				out[k] = map[string]any(Merge(bm, vm))
				continue
			}
		}
		out[k] = model.CloneData(v)
	}
	return out
}

// ParseBundle decodes JSON or YAML translation data. format is "json",
// "yaml" or "yml".
func ParseBundle(data []byte, format string) (Bundle, error) {
	var v any
	switch strings.ToLower(format) {
	case "json":
		parsed, err := oj.ParseString(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse translations: %w", err)
		}
		v = parsed
	case "yaml", "yml":
		var parsed map[string]any
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse translations: %w", err)
		}
		v = parsed
	default:
		return nil, fmt.Errorf("unsupported translation format %q", format)
	}
	if v == nil {
		return Bundle{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("translations must be a mapping")
	}
	if err := model.ValidateDataDepth(m, model.MaxDataDepth); err != nil {
		return nil, err
	}
	return Bundle(m), nil
}

// Catalog loads per-language bundles from a directory holding <lang>.json or
// <lang>.yaml files and hands out translators with the default language
// merged underneath.
type Catalog struct {
	dir         string
	defaultLang string
	missing     string
	log         *zap.SugaredLogger

	mu      sync.Mutex
	bundles map[string]Bundle
}

// NewCatalog creates a catalog. Bundles are read on first use and cached;
// call Reload after translation files change.
func NewCatalog(dir, defaultLang, missing string, log *zap.SugaredLogger) *Catalog {
	if missing == "" {
		missing = DefaultMissing
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Catalog{
		dir:         dir,
		defaultLang: defaultLang,
		missing:     missing,
		log:         log,
		bundles:     make(map[string]Bundle),
	}
}

// Reload drops every cached bundle.
func (c *Catalog) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bundles = make(map[string]Bundle)
}

// Missing returns the marker format for missing keys.
func (c *Catalog) Missing() string {
	return c.missing
}

// Bundle returns the bundle of lang without fallback. A language without a
// file has an empty bundle.
func (c *Catalog) Bundle(lang string) (Bundle, error) {
	if !ValidLanguage(lang) {
		return nil, fmt.Errorf("invalid language code %q", lang)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.bundles[lang]; ok {
		return b, nil
	}
	b, err := c.load(lang)
	if err != nil {
		return nil, err
	}
	c.bundles[lang] = b
	return b, nil
}

func (c *Catalog) load(lang string) (Bundle, error) {
	for _, ext := range []string{"json", "yaml", "yml"} {
		path := filepath.Join(c.dir, lang+"."+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read translations: %w", err)
		}
		b, err := ParseBundle(data, ext)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		c.log.Debugw("loaded translations", "lang", lang, "file", path, "keys", len(b))
		return b, nil
	}
	c.log.Debugw("no translations", "lang", lang, "dir", c.dir)
	return Bundle{}, nil
}

// For returns the translator for lang, with the default language merged
// underneath. Unreadable bundles are logged and treated as empty so a page
// still renders with missing markers.
func (c *Catalog) For(lang string) Translator {
	merged := Bundle{}
	if c.defaultLang != "" && c.defaultLang != lang {
		if b, err := c.Bundle(c.defaultLang); err != nil {
			c.log.Warnw("default translations unavailable", "lang", c.defaultLang, "error", err)
		} else {
			merged = b
		}
	}
	if b, err := c.Bundle(lang); err != nil {
		c.log.Warnw("translations unavailable", "lang", lang, "error", err)
	} else {
		merged = Merge(merged, b)
	}
	return &bundleTranslator{bundle: merged, missing: c.missing}
}

type bundleTranslator struct {
	bundle  Bundle
	missing string
}

func (t *bundleTranslator) Translate(key string) string {
	if s, ok := t.bundle.Lookup(key); ok {
		return s
	}
	return MissingMarker(t.missing, key)
}

// Map is a flat in-memory Translator.
type Map map[string]string

// Translate implements Translator.
func (m Map) Translate(key string) string {
	if s, ok := m[key]; ok {
		return s
	}
	return MissingMarker(DefaultMissing, key)
}

// MissingMarker formats the marker for a missing key.
func MissingMarker(format, key string) string {
	if !strings.Contains(format, "%s") {
		return format
	}
	return strings.Replace(format, "%s", key, 1)
}
