package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pstuifzand/sitetree/internal/model"
)

// ComponentLoader loads component templates lazily and caches them, misses
// included, for the lifetime of one render or compile pass. It is not safe
// for concurrent use; create one per pass.
type ComponentLoader struct {
	store  *Store
	cache  map[string]model.Structure
	errs   map[string]error
	names  []string
	listed bool
	reads  int
}

// Components starts a new loader session.
func (s *Store) Components() *ComponentLoader {
	return &ComponentLoader{
		store: s,
		cache: make(map[string]model.Structure),
		errs:  make(map[string]error),
	}
}

// Component returns the parsed template of name.
func (l *ComponentLoader) Component(name string) (model.Structure, error) {
	if s, ok := l.cache[name]; ok {
		return s, nil
	}
	if err, ok := l.errs[name]; ok {
		return nil, err
	}
	l.reads++
	s, _, err := l.store.Load(Component(name))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = &MissingComponentError{Name: name, Suggestion: l.Suggest(name)}
		}
		l.errs[name] = err
		l.store.log.Warnw("component unavailable", "component", name, "error", err)
		return nil, err
	}
	l.cache[name] = s
	return s, nil
}

// Reads returns how many template files this session has read.
func (l *ComponentLoader) Reads() int {
	return l.reads
}

// MissingComponentError reports a component template that does not exist.
type MissingComponentError struct {
	Name       string
	Suggestion string
}

func (e *MissingComponentError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("component %q not found; did you mean %q?", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("component %q not found", e.Name)
}

func (e *MissingComponentError) Unwrap() error { return ErrNotFound }

// Suggest returns the existing component name closest to name, or "" when
// nothing is close.
func (l *ComponentLoader) Suggest(name string) string {
	if !l.listed {
		l.names, _ = l.store.ListComponents()
		l.listed = true
	}
	return Suggest(name, l.names)
}

// Suggest picks the candidate closest to name. Candidates containing name
// as a fuzzy subsequence win, otherwise the smallest edit distance within a
// third of the name length.
func Suggest(name string, candidates []string) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}
	if ranks := fuzzy.RankFindFold(name, candidates); len(ranks) > 0 {
		best := ranks[0]
		for _, r := range ranks[1:] {
			if r.Distance < best.Distance {
				best = r
			}
		}
		return best.Target
	}
	limit := max(2, len(name)/3)
	best, bestDist := "", limit+1
	for _, c := range candidates {
		d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
