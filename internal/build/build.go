// Package build compiles a whole site into a build directory of PHP units
// and deploys builds into the serving directory.
package build

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"
	"github.com/pstuifzand/sitetree/internal/compile"
	"github.com/pstuifzand/sitetree/internal/filelock"
	"github.com/pstuifzand/sitetree/internal/i18n"
	"github.com/pstuifzand/sitetree/internal/markup"
	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/pstuifzand/sitetree/internal/storage"
	"go.uber.org/zap"
)

// ErrParse is returned when a structure cannot be compiled. Nothing is
// written when a build fails with ErrParse.
var ErrParse = errors.New("build aborted")

// dirStampFormat names build directories.
const dirStampFormat = "%Y%m%d-%H%M%S"

// Options configures a Builder.
type Options struct {
	OutputDir   string
	ServeDir    string
	StampFormat string
	Lower       markup.Options
	Compile     compile.Options
}

// Builder runs builds and deploys for one site.
type Builder struct {
	store   *storage.Store
	catalog *i18n.Catalog
	locks   *filelock.Manager
	opts    Options
	now     func() time.Time
	log     *zap.SugaredLogger
}

// NewBuilder creates a builder.
func NewBuilder(store *storage.Store, catalog *i18n.Catalog, locks *filelock.Manager, opts Options, log *zap.SugaredLogger) *Builder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Builder{store: store, catalog: catalog, locks: locks, opts: opts, now: time.Now, log: log}
}

// Result describes a finished build.
type Result struct {
	ID    string   `json:"id"`
	Dir   string   `json:"dir"`
	Stamp string   `json:"stamp"`
	Units []string `json:"units"`
	Pages int      `json:"pages"`
}

type source struct {
	ref       storage.Ref
	structure model.Structure
}

// Build compiles every page, the menu and the footer under the build lock.
// All structures are parsed before anything is written.
func (b *Builder) Build() (Result, error) {
	var res Result
	err := b.locks.With(filelock.Build, func() error {
		var err error
		res, err = b.build()
		return err
	})
	return res, err
}

func (b *Builder) build() (Result, error) {
	start := b.now()
	in, err := b.parseAll()
	if err != nil {
		return Result{}, err
	}

	stamp := compile.Stamp(b.opts.StampFormat, start)
	copts := b.opts.Compile
	copts.Stamp = stamp
	lowerer := markup.NewLowerer(b.opts.Lower, b.log)
	c := compile.New(lowerer, in.components, copts, b.log)

	units := []compile.Unit{c.Runtime()}
	for _, src := range []source{in.menu, in.footer} {
		mode := markup.ModeMenu
		if src.ref.Kind == storage.KindFooter {
			mode = markup.ModeFooter
		}
		u, err := c.CompileMenuOrFooter(mode, src.structure)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
		units = append(units, u)
	}
	for _, src := range in.pages {
		u, err := c.CompilePage(src.structure, src.ref.Name, true, true, in.events.For(src.ref.Name))
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
		units = append(units, u)
	}
	translations, err := b.translations()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	units = append(units, translations...)

	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	dir := filepath.Join(b.opts.OutputDir, strftime.Format(dirStampFormat, start)+"-"+id)
	if err := writeUnits(dir, units); err != nil {
		os.RemoveAll(dir)
		return Result{}, err
	}

	res := Result{ID: id, Dir: dir, Stamp: stamp, Pages: len(in.pages)}
	for _, u := range units {
		res.Units = append(res.Units, u.Path)
	}
	b.log.Infow("build finished", "id", id, "dir", dir, "pages", len(in.pages), "units", len(units), "duration", time.Since(start))
	return res, nil
}

// inputs are the parsed structures of one build.
type inputs struct {
	pages        []source
	menu, footer source
	events       storage.PageEvents
	// components holds every component template, already parsed.
	components *storage.ComponentLoader
}

// parseAll loads every structure the build needs, components included, so a
// broken file fails the build before anything is written. The menu and footer
// are optional and compile to empty fragments when absent.
func (b *Builder) parseAll() (inputs, error) {
	var in inputs
	routes, err := b.store.ListPages()
	if err != nil {
		return in, err
	}
	names, err := b.store.ListComponents()
	if err != nil {
		return in, err
	}
	maxDepth := b.opts.Lower.MaxDepth
	if maxDepth <= 0 {
		maxDepth = model.MaxStructureDepth
	}
	checkDepth := func(ref storage.Ref, s model.Structure) error {
		if err := model.ValidateDepth(s, maxDepth); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrParse, ref, err)
		}
		return nil
	}
	load := func(ref storage.Ref, optional bool) (source, error) {
		s, _, err := b.store.Load(ref)
		if optional && errors.Is(err, storage.ErrNotFound) {
			return source{ref: ref, structure: model.Structure{}}, nil
		}
		if err != nil {
			return source{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
		if err := checkDepth(ref, s); err != nil {
			return source{}, err
		}
		return source{ref: ref, structure: s}, nil
	}

	for _, route := range routes {
		src, err := load(storage.Page(route), false)
		if err != nil {
			return in, err
		}
		in.pages = append(in.pages, src)
	}
	if in.menu, err = load(storage.Menu(), true); err != nil {
		return in, err
	}
	if in.footer, err = load(storage.Footer(), true); err != nil {
		return in, err
	}
	in.components = b.store.Components()
	for _, name := range names {
		s, err := in.components.Component(name)
		if err != nil {
			return in, fmt.Errorf("%w: %w", ErrParse, err)
		}
		if err := checkDepth(storage.Component(name), s); err != nil {
			return in, err
		}
	}
	if in.events, err = b.store.LoadEvents(); err != nil {
		return in, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return in, nil
}

// translations converts every configured language bundle into the JSON the
// runtime unit loads. The runtime merges the default language itself.
func (b *Builder) translations() ([]compile.Unit, error) {
	if b.catalog == nil {
		return nil, nil
	}
	var units []compile.Unit
	for _, lang := range b.opts.Compile.Languages {
		bundle, err := b.catalog.Bundle(lang)
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode translations %s: %w", lang, err)
		}
		units = append(units, compile.Unit{Path: "translations/" + lang + ".json", Source: string(data) + "\n"})
	}
	return units, nil
}

func writeUnits(dir string, units []compile.Unit) error {
	for _, u := range units {
		p := filepath.Join(dir, filepath.FromSlash(u.Path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("failed to create build directory: %w", err)
		}
		if err := os.WriteFile(p, []byte(u.Source), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", u.Path, err)
		}
	}
	return nil
}

// Builds returns the build directories, oldest first.
func (b *Builder) Builds() ([]string, error) {
	entries, err := os.ReadDir(b.opts.OutputDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && isBuild(filepath.Join(b.opts.OutputDir, e.Name())) {
			dirs = append(dirs, filepath.Join(b.opts.OutputDir, e.Name()))
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}

func isBuild(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, compile.RuntimePath))
	return err == nil
}

// Deploy copies a build into the serving directory under the deploy lock.
// The new tree is staged next to the serving directory and swapped in, so
// the served site is either the old or the new build.
func (b *Builder) Deploy(buildDir string) error {
	if !isBuild(buildDir) {
		return fmt.Errorf("%s is not a build directory", buildDir)
	}
	return b.locks.With(filelock.Deploy, func() error {
		start := b.now()
		serve := filepath.Clean(b.opts.ServeDir)
		staging := serve + ".new"
		old := serve + ".old"
		os.RemoveAll(staging)
		os.RemoveAll(old)

		n, err := copyTree(buildDir, staging)
		if err != nil {
			os.RemoveAll(staging)
			return err
		}
		if err := os.Rename(serve, old); err != nil && !errors.Is(err, fs.ErrNotExist) {
			os.RemoveAll(staging)
			return fmt.Errorf("failed to move previous deploy: %w", err)
		}
		if err := os.Rename(staging, serve); err != nil {
			os.Rename(old, serve)
			return fmt.Errorf("failed to activate deploy: %w", err)
		}
		if err := os.RemoveAll(old); err != nil {
			b.log.Warnw("failed to remove previous deploy", "dir", old, "error", err)
		}
		b.log.Infow("deploy finished", "build", buildDir, "serveDir", serve, "files", n, "duration", time.Since(start))
		return nil
	})
}

func copyTree(src, dst string) (int, error) {
	n := 0
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		n++
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		return n, fmt.Errorf("failed to copy build: %w", err)
	}
	return n, nil
}
