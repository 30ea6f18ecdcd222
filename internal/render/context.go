// Package render is the runtime renderer: it evaluates lowered programs
// into HTML for one request.
package render

import (
	"strings"

	"github.com/pstuifzand/sitetree/internal/i18n"
	"github.com/pstuifzand/sitetree/internal/markup"
)

// Context is the request a structure is rendered for.
type Context struct {
	Lang  string
	Route string
	// Flags are the context keys conditional attributes test. Names not
	// set here fall back to the request: lang, language, route and page.
	Flags      map[string]any
	Translator i18n.Translator
}

// Var returns a request variable.
func (c Context) Var(name string) string {
	switch name {
	case markup.VarLang:
		return c.Lang
	case markup.VarRoute:
		return c.Route
	}
	return ""
}

// Value returns the context key a conditional attribute names.
func (c Context) Value(name string) (any, bool) {
	if v, ok := c.Flags[name]; ok {
		return v, true
	}
	switch name {
	case "lang", "language":
		return c.Lang, true
	case "route", "page":
		return c.Route, true
	}
	return nil, false
}

// Holds reports whether a condition is met for this request.
func (c Context) Holds(cond markup.Condition) bool {
	switch {
	case cond.Flag != "":
		v, _ := c.Value(cond.Flag)
		return markup.Truthy(v)
	case cond.Lang != "":
		return c.Lang == cond.Lang
	case cond.Route != "":
		return strings.Trim(c.Route, "/") == cond.Route
	}
	return false
}

// Translate looks key up. The result is not escaped.
func (c Context) Translate(key string) string {
	if c.Translator == nil {
		return i18n.MissingMarker(i18n.DefaultMissing, key)
	}
	return c.Translator.Translate(key)
}

func (c Context) key(pieces []markup.Piece) string {
	var sb strings.Builder
	for _, p := range pieces {
		if p.Var != "" {
			sb.WriteString(c.Var(p.Var))
			continue
		}
		sb.WriteString(p.Literal)
	}
	return sb.String()
}

// Evaluate writes a program for ctx. Include segments are resolved through
// include; a nil include skips them.
func Evaluate(sb *strings.Builder, p markup.Program, ctx Context, include func(name string) markup.Program) {
	for _, seg := range p {
		switch s := seg.(type) {
		case markup.Static:
			sb.WriteString(string(s))
		case markup.Var:
			sb.WriteString(markup.Escape(ctx.Var(string(s))))
		case markup.Translation:
			sb.WriteString(markup.Escape(ctx.Translate(ctx.key(s.Key))))
		case markup.Conditional:
			if ctx.Holds(s.Condition) {
				Evaluate(sb, s.Body, ctx, include)
			}
		case markup.Include:
			if include != nil {
				Evaluate(sb, include(string(s)), ctx, nil)
			}
		}
	}
}
