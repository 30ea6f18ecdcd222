package markup

import (
	"regexp"
	"strings"
)

// DefaultStaticPrefixes are the path prefixes served without a language
// segment.
var DefaultStaticPrefixes = []string{"assets/", "style/", "scripts/"}

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

var dangerousSchemes = []string{"javascript:", "data:", "vbscript:"}

// URLPolicy rewrites URL-bearing attribute values.
type URLPolicy struct {
	BaseURL        string
	StaticPrefixes []string
}

// URL is a rewritten URL. When Localized is set the final URL is
// Head + <language code> + Tail, otherwise it is Head.
type URL struct {
	Head      string
	Localized bool
	Tail      string
}

// String joins the URL for the given language.
func (u URL) String(lang string) string {
	if !u.Localized {
		return u.Head
	}
	return u.Head + lang + u.Tail
}

// Apply runs raw through the policy:
//   - "#...", mailto:, tel:, protocol-relative and absolute URLs are kept
//   - javascript:, data: and vbscript: URLs become "#"
//   - relative paths become base/<lang>/path, or base/path under a static prefix
func (p URLPolicy) Apply(raw string) URL {
	value := strings.TrimSpace(raw)
	if IsDangerousURL(value) {
		return URL{Head: "#"}
	}
	switch {
	case value == "":
		return URL{}
	case strings.HasPrefix(value, "#"),
		strings.HasPrefix(value, "//"),
		schemePattern.MatchString(value):
		return URL{Head: value}
	}

	path := strings.TrimLeft(strings.TrimPrefix(value, "./"), "/")
	base := strings.TrimRight(p.BaseURL, "/")
	if p.isStatic(path) {
		return URL{Head: base + "/" + path}
	}
	return URL{Head: base + "/", Localized: true, Tail: "/" + path}
}

func (p URLPolicy) isStatic(path string) bool {
	prefixes := p.StaticPrefixes
	if prefixes == nil {
		prefixes = DefaultStaticPrefixes
	}
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// IsDangerousURL reports whether raw uses a script-capable scheme. Leading
// whitespace and control characters are ignored, as are tabs and newlines
// inside the scheme, the way browsers parse URLs.
func IsDangerousURL(raw string) bool {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, raw)
	cleaned = strings.TrimLeftFunc(cleaned, func(r rune) bool { return r <= ' ' })
	cleaned = strings.ToLower(cleaned)
	for _, scheme := range dangerousSchemes {
		if strings.HasPrefix(cleaned, scheme) {
			return true
		}
	}
	return false
}

// SrcsetCandidate is one entry of a srcset attribute.
type SrcsetCandidate struct {
	URL        URL
	Descriptor string
}

// ApplySrcset applies the policy to every candidate URL of a srcset value.
func (p URLPolicy) ApplySrcset(raw string) []SrcsetCandidate {
	var out []SrcsetCandidate
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		out = append(out, SrcsetCandidate{
			URL:        p.Apply(fields[0]),
			Descriptor: strings.Join(fields[1:], " "),
		})
	}
	return out
}
