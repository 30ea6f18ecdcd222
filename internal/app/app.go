// Package app wires a site directory into a running engine: configuration,
// storage, both render targets, the editor, the cleaner, builds and the
// audit journal.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pstuifzand/sitetree/internal/audit"
	"github.com/pstuifzand/sitetree/internal/build"
	"github.com/pstuifzand/sitetree/internal/cleaner"
	"github.com/pstuifzand/sitetree/internal/compile"
	"github.com/pstuifzand/sitetree/internal/config"
	"github.com/pstuifzand/sitetree/internal/edit"
	"github.com/pstuifzand/sitetree/internal/filelock"
	"github.com/pstuifzand/sitetree/internal/i18n"
	"github.com/pstuifzand/sitetree/internal/markup"
	"github.com/pstuifzand/sitetree/internal/render"
	"github.com/pstuifzand/sitetree/internal/socket"
	"github.com/pstuifzand/sitetree/internal/storage"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Site is one opened site directory.
type Site struct {
	Dir      string
	Config   *config.Config
	Log      *zap.SugaredLogger
	Store    *storage.Store
	Backups  *storage.BackupManager
	Locks    *filelock.Manager
	Catalog  *i18n.Catalog
	Lowerer  *markup.Lowerer
	Renderer *render.Renderer
	Editor   *edit.Editor
	Builder  *build.Builder
	// Journal is nil when the audit journal is disabled.
	Journal *audit.Journal
}

// Open opens the site in dir. A nil cfg loads sitetree.toml from dir.
func Open(dir string, cfg *config.Config, log *zap.SugaredLogger) (*Site, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg == nil {
		var err error
		if cfg, err = config.Load(dir); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Site{Dir: dir, Config: cfg, Log: log}
	s.Store = storage.NewStore(dir, log.Named("storage"))
	s.Backups = storage.NewBackupManager(s.Store, cfg.Backup.Keep)
	s.Locks = filelock.NewManager(s.Store.LocksDir(), log.Named("lock"))
	s.Catalog = i18n.NewCatalog(s.Store.TranslationsDir(), cfg.DefaultLanguage, cfg.MissingTranslation, log.Named("i18n"))
	s.Lowerer = markup.NewLowerer(cfg.LowerOptions(), log.Named("markup"))
	s.Renderer = render.New(s.Store, s.Lowerer, render.Options{
		Minify:      cfg.Render.Minify,
		Title:       cfg.Get("title"),
		Stylesheets: list(cfg.Get("stylesheets")),
		Scripts:     list(cfg.Get("scripts")),
	}, log.Named("render"))

	var editJournal edit.Journal
	if cfg.Audit.Path != "" {
		j, err := audit.Open(cfg.Path(dir, cfg.Audit.Path), log.Named("audit"))
		if err != nil {
			return nil, err
		}
		s.Journal = j
		editJournal = j
	}
	s.Editor = edit.NewEditor(s.Store, s.Backups, editJournal, log.Named("edit"))
	s.Builder = build.NewBuilder(s.Store, s.Catalog, s.Locks, build.Options{
		OutputDir:   cfg.Path(dir, cfg.Build.OutputDir),
		ServeDir:    cfg.Path(dir, cfg.Build.ServeDir),
		StampFormat: cfg.Build.StampFormat,
		Lower:       cfg.LowerOptions(),
		Compile:     s.compileOptions(),
	}, log.Named("build"))
	return s, nil
}

func (s *Site) compileOptions() compile.Options {
	return compile.Options{
		DefaultLanguage:    s.Config.DefaultLanguage,
		Languages:          s.Config.Languages,
		MissingTranslation: s.Config.MissingTranslation,
		Title:              s.Config.Get("title"),
		Stylesheets:        list(s.Config.Get("stylesheets")),
		Scripts:            list(s.Config.Get("scripts")),
	}
}

// list splits a comma separated setting.
func list(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Close releases the journal.
func (s *Site) Close() error {
	if s.Journal != nil {
		return s.Journal.Close()
	}
	return nil
}

// Context builds the render context of a request. An empty lang selects the
// default language.
func (s *Site) Context(lang, route string, flags map[string]any) render.Context {
	if lang == "" {
		lang = s.Config.DefaultLanguage
	}
	return render.Context{
		Lang:       lang,
		Route:      route,
		Flags:      flags,
		Translator: s.Catalog.For(lang),
	}
}

// HasLanguage reports whether lang is configured.
func (s *Site) HasLanguage(lang string) bool {
	for _, l := range s.Config.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Flags converts string flags (from query strings or the command line)
// into context values.
func Flags(values map[string]string) map[string]any {
	flags := make(map[string]any, len(values))
	for k, v := range values {
		if b, err := cast.ToBoolE(v); err == nil {
			flags[k] = b
			continue
		}
		flags[k] = v
	}
	return flags
}

// CleanPattern selects a cleaner pattern: a route, or an API with an
// optional endpoint.
func CleanPattern(route, api, endpoint string) (cleaner.Pattern, error) {
	switch {
	case route != "" && api != "":
		return cleaner.Pattern{}, errors.New("clean either a route or an api, not both")
	case route != "":
		return cleaner.ForRoute(route), nil
	case api != "" && endpoint != "":
		return cleaner.ForEndpoint(api, endpoint), nil
	case api != "":
		return cleaner.ForAPI(api), nil
	case endpoint != "":
		return cleaner.Pattern{}, errors.New("an endpoint needs its api")
	}
	return cleaner.Pattern{}, errors.New("nothing to clean: give a route or an api")
}

// Clean removes interaction tokens matching p from the whole site.
func (s *Site) Clean(p cleaner.Pattern) (cleaner.Report, error) {
	opts := cleaner.SiteOptions{Backups: s.Backups, Log: s.Log.Named("cleaner")}
	if s.Journal != nil {
		opts.Journal = s.Journal
	}
	return cleaner.CleanSite(s.Store, p, opts)
}

// RenderTarget renders one structure: a full document for pages, the bare
// fragment for the menu, the footer and components.
func (s *Site) RenderTarget(t edit.Target, ctx render.Context) (string, error) {
	ref, err := t.Ref()
	if err != nil {
		return "", err
	}
	switch ref.Kind {
	case storage.KindPage:
		return s.Renderer.RenderPage(ref.Name, ctx)
	case storage.KindMenu:
		return s.Renderer.RenderMenu(ctx), nil
	case storage.KindFooter:
		return s.Renderer.RenderFooter(ctx), nil
	}
	st, _, err := s.Store.Load(ref)
	if err != nil {
		return "", err
	}
	return s.Renderer.Render(st, ctx), nil
}

// Serve applies socket messages one at a time until ctx is done.
func (s *Site) Serve(ctx context.Context, server *socket.Server) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-server.Messages():
			resp := s.HandleMessage(msg)
			if msg.ResponseChan != nil {
				msg.ResponseChan <- &resp
			}
		}
	}
}

func (s *Site) String() string {
	return fmt.Sprintf("site %s", s.Dir)
}
