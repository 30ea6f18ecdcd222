// Package markup holds the rendering rules shared by the runtime renderer and
// the PHP compiler, and the lowering walk that turns a structure into a
// segment program both of them consume.
package markup

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/net/html"
)

// DefaultRawTextPrefix marks a text key as literal text.
const DefaultRawTextPrefix = "__RAW__"

// DefaultMissingTranslation is the marker format for unknown translation keys.
const DefaultMissingTranslation = "[missing: %s]"

var (
	tagNamePattern       = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	attributeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_:-]+$`)
	eventAttribute       = regexp.MustCompile(`^on[a-z]+$`)
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var urlAttributes = map[string]bool{
	"href": true, "src": true, "data": true, "poster": true,
	"action": true, "formaction": true, "cite": true, "srcset": true,
}

// Escape escapes text for use in element content and quoted attribute
// values. Both quote characters are replaced by numeric entities.
func Escape(s string) string {
	return html.EscapeString(s)
}

// IsVoidElement reports whether tag never has content or an end tag.
func IsVoidElement(tag string) bool {
	return voidElements[strings.ToLower(tag)]
}

// ValidTagName reports whether tag may be emitted.
func ValidTagName(tag string) bool {
	return tagNamePattern.MatchString(tag)
}

// ValidAttributeName reports whether name may be emitted.
func ValidAttributeName(name string) bool {
	return attributeNamePattern.MatchString(name)
}

// IsEventAttribute reports whether name is an inline event handler such as
// onclick. Event handlers are never emitted.
func IsEventAttribute(name string) bool {
	return eventAttribute.MatchString(strings.ToLower(name))
}

// IsURLAttribute reports whether the value of name is a URL subject to the
// URL policy.
func IsURLAttribute(name string) bool {
	return urlAttributes[strings.ToLower(name)]
}

// Truthy decides conditional attributes and flags: false, nil, zero numbers,
// "", "0" and empty collections are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		return f != 0
	}
	return true
}

// Comment returns a diagnostic HTML comment. The message is escaped and any
// "--" sequence is broken up so the comment cannot be closed early.
func Comment(msg string) string {
	msg = Escape(msg)
	for strings.Contains(msg, "--") {
		msg = strings.ReplaceAll(msg, "--", "- -")
	}
	return "<!-- sitetree: " + msg + " -->"
}
