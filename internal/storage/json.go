// Package storage maps pages, components, the menu and the footer onto
// their JSON files inside a site directory.
package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pstuifzand/sitetree/internal/filelock"
	"github.com/pstuifzand/sitetree/internal/model"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a structure file does not exist.
var ErrNotFound = errors.New("structure not found")

// ErrExists is returned by Create when the structure already exists.
var ErrExists = errors.New("structure already exists")

var (
	routePattern     = regexp.MustCompile(`^[a-z0-9_-]+(/[a-z0-9_-]+)*$`)
	componentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Kind is the kind of structure a file holds.
type Kind string

const (
	KindPage      Kind = "page"
	KindComponent Kind = "component"
	KindMenu      Kind = "menu"
	KindFooter    Kind = "footer"
)

// ParseKind converts user input into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindPage, KindComponent, KindMenu, KindFooter:
		return k, nil
	}
	return "", fmt.Errorf("unknown structure kind %q", s)
}

// Ref identifies one structure. Name is the route for pages and the
// component name for components; it is ignored for the menu and footer.
type Ref struct {
	Kind Kind
	Name string
}

// Page, Component, Menu and Footer build refs.
func Page(route string) Ref     { return Ref{Kind: KindPage, Name: route} }
func Component(name string) Ref { return Ref{Kind: KindComponent, Name: name} }
func Menu() Ref                 { return Ref{Kind: KindMenu} }
func Footer() Ref               { return Ref{Kind: KindFooter} }

func (r Ref) String() string {
	switch r.Kind {
	case KindMenu, KindFooter:
		return string(r.Kind)
	}
	return string(r.Kind) + " " + r.Name
}

// Validate checks the name against the naming rules of its kind. Names that
// could leave the site directory never validate.
func (r Ref) Validate() error {
	switch r.Kind {
	case KindPage:
		if !routePattern.MatchString(r.Name) {
			return fmt.Errorf("invalid route %q", r.Name)
		}
	case KindComponent:
		if !componentPattern.MatchString(r.Name) {
			return fmt.Errorf("invalid component name %q", r.Name)
		}
	case KindMenu, KindFooter:
	default:
		return fmt.Errorf("unknown structure kind %q", r.Kind)
	}
	return nil
}

// Revision returns the optimistic concurrency token of file content.
func Revision(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store handles structure persistence for one site directory.
type Store struct {
	root string
	log  *zap.SugaredLogger
}

// NewStore creates a store rooted at the site directory.
func NewStore(root string, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{root: root, log: log}
}

// Root returns the site directory.
func (s *Store) Root() string { return s.root }

// PagesDir returns the directory holding page structures.
func (s *Store) PagesDir() string { return filepath.Join(s.root, "pages") }

// ComponentsDir returns the directory holding component templates.
func (s *Store) ComponentsDir() string { return filepath.Join(s.root, "components") }

// TranslationsDir returns the directory holding translation bundles.
func (s *Store) TranslationsDir() string { return filepath.Join(s.root, "translations") }

// StateDir returns the directory for locks, backups and the audit journal.
func (s *Store) StateDir() string { return filepath.Join(s.root, ".sitetree") }

// LocksDir returns the directory holding named lock files.
func (s *Store) LocksDir() string { return filepath.Join(s.StateDir(), "locks") }

// BackupsDir returns the directory holding structure backups.
func (s *Store) BackupsDir() string { return filepath.Join(s.StateDir(), "backups") }

// Path returns the file of a structure. Pages use the folder form
// pages/<route>/<leaf>.json unless only the legacy flat file
// pages/<route>.json exists.
func (s *Store) Path(ref Ref) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}
	switch ref.Kind {
	case KindPage:
		folder, flat := s.pagePaths(ref.Name)
		if !fileExists(folder) && fileExists(flat) {
			return flat, nil
		}
		return folder, nil
	case KindComponent:
		return filepath.Join(s.ComponentsDir(), ref.Name+".json"), nil
	case KindMenu:
		return filepath.Join(s.root, "menu.json"), nil
	default:
		return filepath.Join(s.root, "footer.json"), nil
	}
}

func (s *Store) pagePaths(route string) (folder, flat string) {
	rel := filepath.FromSlash(route)
	folder = filepath.Join(s.PagesDir(), rel, path.Base(route)+".json")
	flat = filepath.Join(s.PagesDir(), rel+".json")
	return folder, flat
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// Exists reports whether the structure file exists.
func (s *Store) Exists(ref Ref) bool {
	p, err := s.Path(ref)
	return err == nil && fileExists(p)
}

// ReadRaw returns the file content and its revision.
func (s *Store) ReadRaw(ref Ref) ([]byte, string, error) {
	p, err := s.Path(ref)
	if err != nil {
		return nil, "", err
	}
	data, err := filelock.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return data, Revision(data), nil
}

// Parse decodes file content of the given kind. Components may hold a
// single node instead of an array.
func Parse(kind Kind, data []byte) (model.Structure, error) {
	if kind == KindComponent {
		return model.ParseTemplate(data)
	}
	return model.ParseStructure(data)
}

// Load reads and parses a structure, returning it with its revision.
func (s *Store) Load(ref Ref) (model.Structure, string, error) {
	data, rev, err := s.ReadRaw(ref)
	if err != nil {
		return nil, "", err
	}
	st, err := Parse(ref.Kind, data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", ref, err)
	}
	return st, rev, nil
}

// Form is the top-level shape of a structure file. Component templates may
// be stored as a single object; everything else is an array.
type Form int

const (
	// FormKeep writes in the form of the file already on disk.
	FormKeep Form = iota
	FormArray
	FormObject
)

// SourceForm reports the form of raw file content.
func SourceForm(data []byte) Form {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return FormObject
	}
	return FormArray
}

// Save validates and writes a structure in canonical form under an
// exclusive lock, keeping the form of the existing file. It returns the new
// revision.
func (s *Store) Save(ref Ref, st model.Structure) (string, error) {
	return s.SaveForm(ref, st, FormKeep)
}

// SaveForm is Save with an explicit form. The object form only applies to a
// component holding exactly one node.
func (s *Store) SaveForm(ref Ref, st model.Structure, form Form) (string, error) {
	if err := model.ValidateDepth(st, model.MaxStructureDepth); err != nil {
		return "", fmt.Errorf("%s: %w", ref, err)
	}
	object := ref.Kind == KindComponent && len(st) == 1
	if object && form == FormKeep {
		data, _, err := s.ReadRaw(ref)
		object = err == nil && SourceForm(data) == FormObject
	}
	var data []byte
	var err error
	if object && form != FormArray {
		data, err = model.EncodeNode(st[0])
	} else {
		data, err = model.Encode(st)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", ref, err)
	}
	if err := s.WriteRaw(ref, data); err != nil {
		return "", err
	}
	return Revision(data), nil
}

// WriteRaw writes file content as is.
func (s *Store) WriteRaw(ref Ref, data []byte) error {
	p, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := filelock.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ref, err)
	}
	s.log.Debugw("structure written", "ref", ref.String(), "bytes", len(data))
	return nil
}

// Create registers a new, empty structure.
func (s *Store) Create(ref Ref) error {
	if s.Exists(ref) {
		return fmt.Errorf("%w: %s", ErrExists, ref)
	}
	_, err := s.Save(ref, model.Structure{})
	return err
}

// Delete removes a structure file. Empty page folders are removed too.
func (s *Store) Delete(ref Ref) error {
	p, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return fmt.Errorf("failed to delete %s: %w", ref, err)
	}
	if ref.Kind == KindPage {
		for dir := filepath.Dir(p); dir != s.PagesDir() && strings.HasPrefix(dir, s.PagesDir()); dir = filepath.Dir(dir) {
			if os.Remove(dir) != nil {
				break
			}
		}
	}
	return nil
}

// ListPages returns every page route, sorted.
func (s *Store) ListPages() ([]string, error) {
	var routes []string
	err := filepath.WalkDir(s.PagesDir(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.PagesDir() {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".json" {
			return nil
		}
		rel, err := filepath.Rel(s.PagesDir(), p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(strings.TrimSuffix(rel, ".json"))
		route := rel
		// folder form: <route>/<leaf>.json where leaf is the last route segment
		if dir, leaf := path.Split(rel); dir != "" && path.Base(strings.TrimSuffix(dir, "/")) == leaf {
			route = strings.TrimSuffix(dir, "/")
		}
		if routePattern.MatchString(route) {
			routes = append(routes, route)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	slices.Sort(routes)
	return slices.Compact(routes), nil
}

// ListComponents returns every component name, sorted.
func (s *Store) ListComponents() ([]string, error) {
	entries, err := os.ReadDir(s.ComponentsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	var names []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok || !componentPattern.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// All returns a ref for every existing structure: pages, components, then
// the menu and the footer.
func (s *Store) All() ([]Ref, error) {
	pages, err := s.ListPages()
	if err != nil {
		return nil, err
	}
	components, err := s.ListComponents()
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, 0, len(pages)+len(components)+2)
	for _, p := range pages {
		refs = append(refs, Page(p))
	}
	for _, c := range components {
		refs = append(refs, Component(c))
	}
	for _, r := range []Ref{Menu(), Footer()} {
		if s.Exists(r) {
			refs = append(refs, r)
		}
	}
	return refs, nil
}
