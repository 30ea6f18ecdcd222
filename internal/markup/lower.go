package markup

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/pstuifzand/sitetree/internal/template"
	"go.uber.org/zap"
)

// Mode selects which structure kind is being lowered.
type Mode int

const (
	ModePage Mode = iota
	ModeMenu
	ModeFooter
)

func (m Mode) String() string {
	switch m {
	case ModeMenu:
		return "menu"
	case ModeFooter:
		return "footer"
	default:
		return "page"
	}
}

// ComponentSource loads component templates by name.
type ComponentSource interface {
	Component(name string) (model.Structure, error)
}

// Options configures a Lowerer.
type Options struct {
	RawTextPrefix string
	URL           URLPolicy
	MaxDepth      int
	Languages     []string
	Multilingual  bool
}

// Env is the per-pass lowering environment.
type Env struct {
	Mode       Mode
	Components ComponentSource
}

// Lowerer turns structures into programs. It holds no per-pass state and is
// safe for concurrent use.
type Lowerer struct {
	opts Options
	log  *zap.SugaredLogger
}

// NewLowerer creates a Lowerer, filling in defaults for unset options.
func NewLowerer(opts Options, log *zap.SugaredLogger) *Lowerer {
	if opts.RawTextPrefix == "" {
		opts.RawTextPrefix = DefaultRawTextPrefix
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = model.MaxStructureDepth
	}
	if opts.URL.StaticPrefixes == nil {
		opts.URL.StaticPrefixes = DefaultStaticPrefixes
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Lowerer{opts: opts, log: log}
}

// Options returns the effective options.
func (l *Lowerer) Options() Options {
	return l.opts
}

// ContextVars returns the ambient values component placeholders resolve
// against. Request variables are slots so the program stays independent of
// the request.
func (l *Lowerer) ContextVars() template.Vars {
	return template.Vars{
		"lang":  Slot(VarLang),
		"route": Slot(VarRoute),
		"page":  Slot(VarRoute),
		"base":  strings.TrimRight(l.opts.URL.BaseURL, "/"),
	}
}

// Lower lowers a structure. Content problems never fail the walk; they
// become diagnostic comments in the program.
func (l *Lowerer) Lower(s model.Structure, env Env) Program {
	w := &lowering{l: l, env: env, vars: l.ContextVars()}
	w.nodes(&w.b, s, 1)
	if env.Mode == ModeFooter && l.opts.Multilingual && len(l.opts.Languages) > 0 {
		w.languageSwitcher(&w.b)
	}
	return w.b.prog
}

type lowering struct {
	l     *Lowerer
	env   Env
	vars  template.Vars
	b     builder
	stack []string
}

func (w *lowering) nodes(b *builder, nodes []model.Node, depth int) {
	if len(nodes) == 0 {
		return
	}
	if depth > w.l.opts.MaxDepth {
		b.static(Comment(fmt.Sprintf("structure deeper than %d levels", w.l.opts.MaxDepth)))
		return
	}
	for _, n := range nodes {
		w.node(b, n, depth)
	}
}

func (w *lowering) node(b *builder, n model.Node, depth int) {
	switch v := n.(type) {
	case *model.TagNode:
		w.tag(b, v, depth)
	case *model.TextNode:
		w.textKey(b, v.TextKey)
	case *model.ComponentNode:
		w.component(b, v, depth)
	case *model.InvalidNode:
		b.static(Comment("invalid node: " + v.Reason))
	default:
		b.static(Comment("invalid node: missing"))
	}
}

func (w *lowering) tag(b *builder, n *model.TagNode, depth int) {
	if !ValidTagName(n.Tag) {
		b.static(Comment(fmt.Sprintf("invalid tag %q", n.Tag)))
		return
	}
	b.static("<" + n.Tag)
	if n.Attributes != nil {
		for pair := n.Attributes.Oldest(); pair != nil; pair = pair.Next() {
			w.attribute(b, pair.Key, pair.Value)
		}
	}
	b.static(">")
	if IsVoidElement(n.Tag) {
		return
	}
	w.nodes(b, n.Children, depth+1)
	b.static("</" + n.Tag + ">")
}

func (w *lowering) attribute(b *builder, name string, v model.AttributeValue) {
	if !ValidAttributeName(name) || IsEventAttribute(name) {
		w.l.log.Debugw("dropping attribute", "name", name)
		return
	}
	switch v.Kind {
	case model.KindConditional:
		var body builder
		w.attribute(&body, name, v.Cond.Value)
		b.conditional(Condition{Flag: v.Cond.Condition}, body.prog)
	case model.KindBool:
		if v.Bool {
			b.static(" " + name)
		}
	case model.KindNumber:
		b.static(" " + name + `="` + Escape(v.Str) + `"`)
	case model.KindString:
		if v.Str == "" {
			return
		}
		b.static(" " + name + `="`)
		w.attributeValue(b, name, v.Str)
		b.static(`"`)
	}
}

func (w *lowering) attributeValue(b *builder, name, value string) {
	policy := w.l.opts.URL
	switch {
	case strings.EqualFold(name, "srcset"):
		for i, c := range policy.ApplySrcset(value) {
			if i > 0 {
				b.static(", ")
			}
			b.url(c.URL)
			if c.Descriptor != "" {
				b.text(" " + c.Descriptor)
			}
		}
	case IsURLAttribute(name):
		b.url(policy.Apply(value))
	default:
		b.text(value)
	}
}

// textKey lowers a text node: literal text after the raw prefix, otherwise a
// translation lookup.
func (w *lowering) textKey(b *builder, key string) {
	if rest, ok := strings.CutPrefix(key, w.l.opts.RawTextPrefix); ok {
		b.text(rest)
		return
	}
	b.add(Translation{Key: SplitSlots(key)})
}

func (w *lowering) component(b *builder, n *model.ComponentNode, depth int) {
	if w.env.Mode != ModePage && (n.Component == "menu-link" || n.Component == "footer-link") {
		data, _ := template.SubstituteValue(n.Data, w.vars).(map[string]any)
		w.link(b, data)
		return
	}
	if slices.Contains(w.stack, n.Component) {
		b.static(Comment(fmt.Sprintf("component %q includes itself", n.Component)))
		return
	}
	if w.env.Components == nil {
		b.static(Comment(fmt.Sprintf("component %q not available", n.Component)))
		return
	}
	tpl, err := w.env.Components.Component(n.Component)
	if err != nil {
		w.l.log.Warnw("component not rendered", "component", n.Component, "error", err)
		b.static(Comment(err.Error()))
		return
	}
	vars := template.Merge(w.vars, n.Data)
	w.stack = append(w.stack, n.Component)
	w.nodes(b, template.SubstituteStructure(tpl, vars), depth+1)
	w.stack = w.stack[:len(w.stack)-1]
}

// link expands a menu-link or footer-link component into an anchor.
func (w *lowering) link(b *builder, data map[string]any) {
	str := func(key string) string {
		v, ok := data[key]
		if !ok || v == nil {
			return ""
		}
		return template.Stringify(v)
	}
	target := str("target")
	if Truthy(data["newTab"]) {
		target = "_blank"
	}

	b.static("<a")
	href, path := str("href"), str("path")
	dest := href
	if dest == "" {
		dest = path
	}
	if dest == "" {
		dest = "/"
	}
	b.static(` href="`)
	b.url(w.l.opts.URL.Apply(dest))
	b.static(`"`)
	if class := str("class"); class != "" {
		b.static(` class="`)
		b.text(class)
		b.static(`"`)
	}
	if route := strings.Trim(path, "/"); href == "" && route != "" {
		var current builder
		current.static(` aria-current="page"`)
		b.conditional(Condition{Route: route}, current.prog)
	}
	if target != "" && ValidAttributeName(target) {
		b.static(` target="`)
		b.text(target)
		b.static(`"`)
		if target == "_blank" {
			b.static(` rel="noopener noreferrer"`)
		}
	}
	b.static(">")

	if logo := str("logo"); logo != "" {
		b.static(`<img src="`)
		b.url(w.l.opts.URL.Apply(logo))
		b.static(`" alt="`)
		b.text(str("logoAlt"))
		b.static(`">`)
	}
	if label := str("label"); label != "" {
		w.textKey(b, label)
	}
	b.static("</a>")
}

// languageSwitcher appends one link per configured language pointing at the
// current route.
func (w *lowering) languageSwitcher(b *builder) {
	base := strings.TrimRight(w.l.opts.URL.BaseURL, "/")
	b.static(`<div class="language-switcher">`)
	for _, code := range w.l.opts.Languages {
		b.static(`<a href="`)
		b.text(base + "/" + code + "/")
		b.add(Var(VarRoute))
		b.static(`" hreflang="`)
		b.text(code)
		b.static(`"`)
		var active builder
		active.static(` class="active"`)
		b.conditional(Condition{Lang: code}, active.prog)
		b.static(">")
		b.text(strings.ToUpper(code))
		b.static("</a>")
	}
	b.static("</div>")
}
