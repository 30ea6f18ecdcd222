// Package template substitutes {{key}} placeholders in component templates
// and parses the {{call:fn:target}} interaction tokens kept in attributes.
package template

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/spf13/cast"
)

// placeholder matches {{key}} and {{dotted.key}}. Interaction tokens contain a
// colon and are never matched.
var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_][A-Za-z0-9_.-]*)\s*\}\}`)

// Vars holds the values placeholders resolve against.
type Vars map[string]any

// Merge returns context overlaid with data. Keys present in data win.
func Merge(context, data map[string]any) Vars {
	out := make(Vars, len(context)+len(data))
	for k, v := range context {
		out[k] = v
	}
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Lookup resolves key, first as a literal key and then as a dot path into
// nested mappings.
func (v Vars) Lookup(key string) (any, bool) {
	if val, ok := v[key]; ok {
		return val, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}
	var cur any = map[string]any(v)
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Substitute replaces every resolvable placeholder in text. Unresolved
// placeholders are left exactly as written.
func Substitute(text string, vars Vars) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(token string) string {
		key := placeholder.FindStringSubmatch(token)[1]
		val, ok := vars.Lookup(key)
		if !ok {
			return token
		}
		return Stringify(val)
	})
}

// Stringify converts a placeholder value into text. Scalars use their plain
// form, mappings and sequences their compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]any, []any:
		out, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(out)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// wholeToken reports the key when text consists of one placeholder only.
func wholeToken(text string) (string, bool) {
	m := placeholder.FindStringSubmatchIndex(text)
	if m == nil || m[0] != 0 || m[1] != len(text) {
		return "", false
	}
	return text[m[2]:m[3]], true
}

// SubstituteValue substitutes placeholders throughout generic data. A string
// that is exactly one placeholder takes the referenced value with its type,
// so {"items": "{{links}}"} can pass a whole sequence into a nested
// component.
func SubstituteValue(v any, vars Vars) any {
	switch t := v.(type) {
	case string:
		if key, ok := wholeToken(t); ok {
			if val, found := vars.Lookup(key); found {
				return model.CloneData(val)
			}
			return t
		}
		return Substitute(t, vars)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = SubstituteValue(val, vars)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = SubstituteValue(val, vars)
		}
		return out
	default:
		return v
	}
}

// SubstituteAttribute substitutes placeholders in string attribute values,
// including the value of a conditional. Condition names are left alone.
func SubstituteAttribute(v model.AttributeValue, vars Vars) model.AttributeValue {
	switch v.Kind {
	case model.KindString:
		return model.String(Substitute(v.Str, vars))
	case model.KindConditional:
		return model.When(v.Cond.Condition, SubstituteAttribute(v.Cond.Value, vars))
	default:
		return v
	}
}

// SubstituteStructure returns a copy of s with placeholders substituted in
// attribute values, text keys and component data. Nested component
// references are substituted but not expanded.
func SubstituteStructure(s model.Structure, vars Vars) model.Structure {
	if s == nil {
		return nil
	}
	out := make(model.Structure, len(s))
	for i, n := range s {
		out[i] = SubstituteNode(n, vars)
	}
	return out
}

// SubstituteNode is SubstituteStructure for a single node.
func SubstituteNode(n model.Node, vars Vars) model.Node {
	switch v := n.(type) {
	case *model.TagNode:
		tag := &model.TagNode{Tag: v.Tag}
		if v.Attributes != nil {
			tag.Attributes = model.Attrs()
			for pair := v.Attributes.Oldest(); pair != nil; pair = pair.Next() {
				tag.Attributes.Set(pair.Key, SubstituteAttribute(pair.Value, vars))
			}
		}
		if v.Children != nil {
			tag.Children = SubstituteStructure(v.Children, vars)
		}
		return tag
	case *model.TextNode:
		return model.Text(Substitute(v.TextKey, vars))
	case *model.ComponentNode:
		var data map[string]any
		if v.Data != nil {
			data = SubstituteValue(v.Data, vars).(map[string]any)
		}
		return model.Component(v.Component, data)
	default:
		return model.CloneNode(n)
	}
}
