package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/pstuifzand/sitetree/internal/filelock"
)

// PageEvents maps a route to its page-level event bindings, event name to
// binding expression.
type PageEvents map[string]map[string]any

// EventsPath returns the page-events file.
func (s *Store) EventsPath() string {
	return filepath.Join(s.root, "page-events.json")
}

// LoadEvents reads the page-events file. A missing file means no events.
func (s *Store) LoadEvents() (PageEvents, error) {
	data, err := filelock.ReadFile(s.EventsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return PageEvents{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page events: %w", err)
	}
	var events PageEvents
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse page events: %w", err)
	}
	if events == nil {
		events = PageEvents{}
	}
	return events, nil
}

// SaveEvents writes the page-events file in canonical form.
func (s *Store) SaveEvents(events PageEvents) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("failed to encode page events: %w", err)
	}
	if err := filelock.WriteFile(s.EventsPath(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write page events: %w", err)
	}
	return nil
}

// For returns the bindings of route, or nil when it has none.
func (e PageEvents) For(route string) map[string]any {
	if b := e[route]; len(b) > 0 {
		return b
	}
	return nil
}
