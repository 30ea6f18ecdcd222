// Package compile is the build-time compiler. It turns the lowered programs
// of pages, the menu and the footer into PHP units that reproduce the
// runtime renderer's output when executed by the published site.
package compile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/pstuifzand/sitetree/internal/markup"
	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/pstuifzand/sitetree/internal/storage"
	"go.uber.org/zap"
)

// DefaultStampFormat is the strftime format of unit headers.
const DefaultStampFormat = "%Y-%m-%d %H:%M:%S"

// Unit is one generated source file. Path is relative to the build
// directory and uses forward slashes.
type Unit struct {
	Path   string
	Source string
}

// Options configures a Compiler.
type Options struct {
	DefaultLanguage    string
	Languages          []string
	MissingTranslation string
	// Stamp is written into every unit header.
	Stamp       string
	Title       string
	Stylesheets []string
	Scripts     []string
}

// Compiler compiles structures of one build. Component templates are read
// through components, which caches them for the build.
type Compiler struct {
	lowerer    *markup.Lowerer
	components markup.ComponentSource
	opts       Options
	log        *zap.SugaredLogger
}

// New creates a Compiler.
func New(lowerer *markup.Lowerer, components markup.ComponentSource, opts Options, log *zap.SugaredLogger) *Compiler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if lowerer == nil {
		lowerer = markup.NewLowerer(markup.Options{}, log)
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	if len(opts.Languages) == 0 {
		opts.Languages = []string{opts.DefaultLanguage}
	}
	if opts.MissingTranslation == "" {
		opts.MissingTranslation = markup.DefaultMissingTranslation
	}
	return &Compiler{lowerer: lowerer, components: components, opts: opts, log: log}
}

// Stamp formats a build time with a strftime format.
func Stamp(format string, t time.Time) string {
	if format == "" {
		format = DefaultStampFormat
	}
	return strftime.Format(format, t)
}

// PagePath returns the unit path of a route.
func PagePath(route string) string {
	return "pages/" + route + ".php"
}

func (c *Compiler) check(s model.Structure, name string) error {
	if err := model.ValidateDepth(s, c.lowerer.Options().MaxDepth); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *Compiler) header(w *writer, name, root string, init ...string) {
	var sb strings.Builder
	sb.WriteString("<?php\n")
	sb.WriteString("/* Generated by sitetree " + phpComment(c.opts.Stamp) + " from " + phpComment(name) + ". Do not edit. */\n")
	sb.WriteString("defined('SB_ROOT') || define('SB_ROOT', " + root + ");\n")
	for _, line := range init {
		sb.WriteString(line + "\n")
	}
	sb.WriteString("require_once SB_ROOT . '/runtime.php';\n?>")
	w.php(sb.String())
}

// CompilePage compiles a page into a full document unit. includeMenu and
// includeFooter wire the shared menu and footer units into the shell;
// pageEvents are the route's page-level bindings.
func (c *Compiler) CompilePage(s model.Structure, route string, includeMenu, includeFooter bool, pageEvents map[string]any) (Unit, error) {
	if err := storage.Page(route).Validate(); err != nil {
		return Unit{}, err
	}
	name := "page " + route
	if err := c.check(s, name); err != nil {
		return Unit{}, err
	}

	var events any
	if len(pageEvents) > 0 {
		events = pageEvents
	}
	prog, err := c.lowerer.LowerPage(s, markup.Env{Components: c.components}, markup.PageOptions{
		IncludeMenu:   includeMenu,
		IncludeFooter: includeFooter,
		Events:        events,
		Title:         c.opts.Title,
		Stylesheets:   c.opts.Stylesheets,
		Scripts:       c.opts.Scripts,
	})
	if err != nil {
		return Unit{}, fmt.Errorf("%s: %w", name, err)
	}

	eventsInit := "$sb_page_events = [];"
	if events != nil {
		js, err := eventsJSON(events)
		if err != nil {
			return Unit{}, fmt.Errorf("%s: %w", name, err)
		}
		eventsInit = "$sb_page_events = json_decode(" + phpString(js) + ", true);"
	}

	var w writer
	depth := strings.Count(route, "/") + 1
	c.header(&w, name, fmt.Sprintf("dirname(__DIR__, %d)", depth),
		"$sb_route = "+phpString(route)+";",
		eventsInit,
	)
	w.program(prog)
	c.log.Debugw("compiled page", "route", route, "segments", len(prog))
	return Unit{Path: PagePath(route), Source: w.sb.String()}, nil
}

// CompileMenuOrFooter compiles the menu (markup.ModeMenu) or the footer
// (markup.ModeFooter).
func (c *Compiler) CompileMenuOrFooter(mode markup.Mode, s model.Structure) (Unit, error) {
	if mode != markup.ModeMenu && mode != markup.ModeFooter {
		return Unit{}, fmt.Errorf("cannot compile %s as menu or footer", mode)
	}
	name := mode.String()
	if err := c.check(s, name); err != nil {
		return Unit{}, err
	}
	prog := c.lowerer.Lower(s, markup.Env{Mode: mode, Components: c.components})

	var w writer
	c.header(&w, name, "__DIR__")
	w.program(prog)
	c.log.Debugw("compiled unit", "unit", name, "segments", len(prog))
	return Unit{Path: name + ".php", Source: w.sb.String()}, nil
}

// ErrSource reports structure input that cannot be compiled. It aborts the
// whole build.
var ErrSource = errors.New("unparsable structure")

// CompilePageSource parses and compiles a page file.
func (c *Compiler) CompilePageSource(data []byte, route string, includeMenu, includeFooter bool, pageEvents map[string]any) (Unit, error) {
	s, err := model.ParseStructure(data)
	if err != nil {
		return Unit{}, fmt.Errorf("%w: page %s: %w", ErrSource, route, err)
	}
	return c.CompilePage(s, route, includeMenu, includeFooter, pageEvents)
}

// CompileMenuOrFooterSource parses and compiles a menu or footer file.
func (c *Compiler) CompileMenuOrFooterSource(mode markup.Mode, data []byte) (Unit, error) {
	s, err := model.ParseStructure(data)
	if err != nil {
		return Unit{}, fmt.Errorf("%w: %s: %w", ErrSource, mode, err)
	}
	return c.CompileMenuOrFooter(mode, s)
}

// Runtime returns the runtime unit for this compiler's options.
func (c *Compiler) Runtime() Unit {
	return CompileRuntime(c.opts)
}
