package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pstuifzand/sitetree/internal/markup"
	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/pstuifzand/sitetree/internal/storage"
	"go.uber.org/zap"
)

// Options configures a Renderer.
type Options struct {
	// Minify runs full pages through the HTML minifier.
	Minify bool
	// Title is the text key of the document title of full pages.
	Title       string
	Stylesheets []string
	Scripts     []string
}

// Renderer renders structures to HTML. Component templates and the menu and
// footer come from the store; a nil store renders without them.
type Renderer struct {
	store   *storage.Store
	lowerer *markup.Lowerer
	opts    Options
	log     *zap.SugaredLogger
}

// New creates a Renderer.
func New(store *storage.Store, lowerer *markup.Lowerer, opts Options, log *zap.SugaredLogger) *Renderer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if lowerer == nil {
		lowerer = markup.NewLowerer(markup.Options{}, log)
	}
	return &Renderer{store: store, lowerer: lowerer, opts: opts, log: log}
}

// pass is one render call. Its component loader caches templates for the
// duration of the call only.
type pass struct {
	r     *Renderer
	env   markup.Env
	menus map[string]markup.Program
}

func (r *Renderer) newPass(mode markup.Mode) *pass {
	p := &pass{r: r, env: markup.Env{Mode: mode}}
	if r.store != nil {
		p.env.Components = r.store.Components()
	}
	return p
}

// Render renders a page structure fragment.
func (r *Renderer) Render(s model.Structure, ctx Context) string {
	p := r.newPass(markup.ModePage)
	var sb strings.Builder
	Evaluate(&sb, r.lowerer.Lower(s, p.env), ctx, p.include)
	return sb.String()
}

// RenderMenu renders the site menu. A site without a menu renders nothing.
func (r *Renderer) RenderMenu(ctx Context) string {
	return r.renderUnit(storage.Menu(), ctx)
}

// RenderFooter renders the site footer, including the language switcher on
// multilingual sites.
func (r *Renderer) RenderFooter(ctx Context) string {
	return r.renderUnit(storage.Footer(), ctx)
}

func (r *Renderer) renderUnit(ref storage.Ref, ctx Context) string {
	p := r.newPass(markup.ModePage)
	var sb strings.Builder
	Evaluate(&sb, p.include(string(ref.Kind)), ctx, nil)
	return sb.String()
}

// include lowers the menu or footer once per pass.
func (p *pass) include(name string) markup.Program {
	if prog, ok := p.menus[name]; ok {
		return prog
	}
	var ref storage.Ref
	var mode markup.Mode
	switch name {
	case "menu":
		ref, mode = storage.Menu(), markup.ModeMenu
	case "footer":
		ref, mode = storage.Footer(), markup.ModeFooter
	default:
		return markup.Program{markup.Static(markup.Comment(fmt.Sprintf("unknown include %q", name)))}
	}
	s := p.r.load(ref)
	env := p.env
	env.Mode = mode
	prog := p.r.lowerer.Lower(s, env)
	if p.menus == nil {
		p.menus = make(map[string]markup.Program)
	}
	p.menus[name] = prog
	return prog
}

// load reads a structure for rendering. A missing file is an empty
// structure, an unreadable one a single invalid node.
func (r *Renderer) load(ref storage.Ref) model.Structure {
	if r.store == nil {
		return nil
	}
	s, _, err := r.store.Load(ref)
	if errors.Is(err, storage.ErrNotFound) {
		r.log.Debugw("nothing to render", "ref", ref.String())
		return nil
	}
	if err != nil {
		r.log.Warnw("structure not rendered", "ref", ref.String(), "error", err)
		return model.Structure{&model.InvalidNode{Reason: err.Error()}}
	}
	return s
}

// RenderPage renders the full document of a page: shell, menu, footer and
// page events. It fails only when the page does not exist.
func (r *Renderer) RenderPage(route string, ctx Context) (string, error) {
	if r.store == nil {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, storage.Page(route))
	}
	start := time.Now()
	ref := storage.Page(route)
	if err := ref.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	}
	if !r.store.Exists(ref) {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
	}
	if ctx.Route == "" {
		ctx.Route = route
	}

	var events any
	if all, err := r.store.LoadEvents(); err != nil {
		r.log.Warnw("page events not loaded", "error", err)
	} else if e := all.For(route); e != nil {
		events = e
	}

	p := r.newPass(markup.ModePage)
	prog, err := r.lowerer.LowerPage(r.load(ref), p.env, markup.PageOptions{
		IncludeMenu:   true,
		IncludeFooter: true,
		Events:        events,
		Title:         r.opts.Title,
		Stylesheets:   r.opts.Stylesheets,
		Scripts:       r.opts.Scripts,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", ref, err)
	}

	var sb strings.Builder
	Evaluate(&sb, prog, ctx, p.include)
	out := sb.String()
	if r.opts.Minify {
		out = Minify(out, r.log)
	}
	r.log.Debugw("page rendered", "route", route, "lang", ctx.Lang, "bytes", len(out), "duration", time.Since(start))
	return out, nil
}
