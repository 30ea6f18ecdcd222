package template

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	vars := Vars{
		"title": "Hi",
		"count": 3,
		"price": 9.5,
		"on":    true,
		"user":  map[string]any{"name": "Ada"},
		"nil":   nil,
	}
	tests := []struct {
		name, in, want string
	}{
		{"simple", "{{title}}", "Hi"},
		{"embedded", "Say {{title}}!", "Say Hi!"},
		{"spaces", "{{ title }}", "Hi"},
		{"number", "n={{count}}", "n=3"},
		{"float", "{{price}}", "9.5"},
		{"bool", "{{on}}", "true"},
		{"dotted", "{{user.name}}", "Ada"},
		{"map", "{{user}}", `{"name":"Ada"}`},
		{"nil", "[{{nil}}]", "[]"},
		{"missing kept", "{{missing}}", "{{missing}}"},
		{"mixed", "{{title}} {{missing}}", "Hi {{missing}}"},
		{"call token untouched", "{{call:fetch:@a/b}}", "{{call:fetch:@a/b}}"},
		{"no braces", "plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.in, vars))
		})
	}
}

func TestMergeDataWins(t *testing.T) {
	vars := Merge(map[string]any{"lang": "en", "title": "ctx"}, map[string]any{"title": "data"})
	assert.Equal(t, "data", vars["title"])
	assert.Equal(t, "en", vars["lang"])
}

func TestSubstituteValueKeepsTypes(t *testing.T) {
	links := []any{map[string]any{"label": "a"}}
	vars := Vars{"links": links, "title": "Hi"}
	in := map[string]any{
		"items":   "{{links}}",
		"heading": "About {{title}}",
		"nested":  []any{"{{title}}", 4.0},
		"missing": "{{nope}}",
	}
	got := SubstituteValue(in, vars)
	want := map[string]any{
		"items":   links,
		"heading": "About Hi",
		"nested":  []any{"Hi", 4.0},
		"missing": "{{nope}}",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SubstituteValue mismatch (-want +got):\n%s", diff)
	}
}

func TestSubstituteStructure(t *testing.T) {
	s := model.Structure{
		model.Tag("h2", model.Attrs(
			"class", "title-{{variant}}",
			"hidden", false,
			"aria-current", model.When("{{flag}}", model.String("{{variant}}")),
		), model.Text("{{title}}")),
		model.Component("card", map[string]any{"title": "{{title}}"}),
	}
	vars := Vars{"variant": "big", "title": "Hi", "flag": "x"}

	out := SubstituteStructure(s, vars)

	h2 := out[0].(*model.TagNode)
	class, _ := h2.Attributes.Get("class")
	assert.Equal(t, "title-big", class.Str)
	current, _ := h2.Attributes.Get("aria-current")
	assert.Equal(t, "{{flag}}", current.Cond.Condition, "condition names are not substituted")
	assert.Equal(t, "big", current.Cond.Value.Str)
	assert.Equal(t, "Hi", h2.Children[0].(*model.TextNode).TextKey)
	assert.Equal(t, "Hi", out[1].(*model.ComponentNode).Data["title"])

	// the template itself is untouched
	assert.Equal(t, "{{title}}", s[0].(*model.TagNode).Children[0].(*model.TextNode).TextKey)
}

func TestSubstituteStructureKeepsAbsentChildren(t *testing.T) {
	out := SubstituteStructure(model.Structure{model.Tag("br", nil)}, Vars{})
	br := out[0].(*model.TagNode)
	assert.Nil(t, br.Children)
	assert.Nil(t, br.Attributes)
}

func TestParseCalls(t *testing.T) {
	calls := ParseCalls(`{{call:fetch:@shop/products,#list,"a, b"}} {{call:navigate:/blog/intro}} {{title}}`)
	require.Len(t, calls, 2)

	assert.Equal(t, "fetch", calls[0].Function)
	assert.Equal(t, "@shop/products", calls[0].Target)
	assert.Equal(t, []string{"#list", "a, b"}, calls[0].Args)
	assert.True(t, calls[0].IsAPI())
	assert.Equal(t, "shop", calls[0].API())
	assert.Equal(t, "products", calls[0].Endpoint())
	assert.Equal(t, "", calls[0].Route())

	assert.Equal(t, "navigate", calls[1].Function)
	assert.False(t, calls[1].IsAPI())
	assert.Equal(t, "blog/intro", calls[1].Route())
	assert.Equal(t, "{{call:navigate:/blog/intro}}", calls[1].Raw)
}

func TestParseCallsWithoutTarget(t *testing.T) {
	calls := ParseCalls("{{call:reload}}")
	require.Len(t, calls, 1)
	assert.Equal(t, "reload", calls[0].Function)
	assert.Equal(t, "", calls[0].Target)
	assert.Nil(t, calls[0].Args)
}

func TestRemoveCalls(t *testing.T) {
	in := "  {{call:fetch:@shop/products}}   {{call:fetch:@shop/cart}}  {{call:navigate:home}} "
	out, removed := RemoveCalls(in, func(c Call) bool { return c.API() == "shop" })
	assert.Equal(t, "{{call:navigate:home}}", out)
	require.Len(t, removed, 2)
	assert.Equal(t, "@shop/cart", removed[1].Target)

	out, removed = RemoveCalls(out, func(c Call) bool { return c.Route() == "home" })
	assert.Equal(t, "", out)
	assert.Len(t, removed, 1)
}

func TestRemoveCallsNoMatchKeepsText(t *testing.T) {
	in := " keep   spacing {{call:navigate:home}}"
	out, removed := RemoveCalls(in, func(Call) bool { return false })
	assert.Equal(t, in, out)
	assert.Nil(t, removed)
}
