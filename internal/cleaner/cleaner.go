// Package cleaner removes dangling interaction tokens from structures after
// the route or API endpoint they reference has been deleted.
package cleaner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/pstuifzand/sitetree/internal/storage"
	"github.com/pstuifzand/sitetree/internal/template"
	"go.uber.org/zap"
)

// Pattern selects the interaction tokens to remove.
type Pattern struct {
	desc  string
	match func(template.Call) bool
}

// ForEndpoint matches calls to one endpoint of an API.
func ForEndpoint(api, endpoint string) Pattern {
	return Pattern{
		desc: fmt.Sprintf("endpoint @%s/%s", api, endpoint),
		match: func(c template.Call) bool {
			return c.IsAPI() && c.API() == api && c.Endpoint() == endpoint
		},
	}
}

// ForAPI matches calls to any endpoint of an API.
func ForAPI(api string) Pattern {
	return Pattern{
		desc: fmt.Sprintf("api @%s", api),
		match: func(c template.Call) bool {
			return c.IsAPI() && c.API() == api
		},
	}
}

// ForRoute matches calls targeting a route.
func ForRoute(route string) Pattern {
	return Pattern{
		desc: fmt.Sprintf("route %s", route),
		match: func(c template.Call) bool {
			return !c.IsAPI() && c.Route() != "" && c.Route() == strings.Trim(route, "/")
		},
	}
}

func (p Pattern) String() string { return p.desc }

// Matches reports whether the pattern selects c.
func (p Pattern) Matches(c template.Call) bool {
	return p.match != nil && p.match(c)
}

// Document is one structure to clean.
type Document struct {
	Ref       storage.Ref
	Structure model.Structure
}

// Removal records one removed token.
type Removal struct {
	Document  string `json:"document"`
	NodeID    string `json:"nodeId,omitempty"`
	Attribute string `json:"attribute"`
	Token     string `json:"token"`
	// Deleted is set when the attribute was removed because nothing was
	// left of its value.
	Deleted bool `json:"deleted"`
}

// Report is the result of a cleaning run.
type Report struct {
	ModifiedFiles       []string  `json:"modifiedFiles"`
	RemovedInteractions []Removal `json:"removedInteractions"`
	// Skipped lists structures that could not be read.
	Skipped []string `json:"skipped,omitempty"`
}

// Clean removes matching tokens from event attributes of every document.
// Documents are modified in place.
func Clean(p Pattern, docs []Document) Report {
	report := Report{ModifiedFiles: []string{}, RemovedInteractions: []Removal{}}
	for i := range docs {
		removals := cleanStructure(p, docs[i].Ref.String(), docs[i].Structure)
		if len(removals) > 0 {
			report.ModifiedFiles = append(report.ModifiedFiles, docs[i].Ref.String())
			report.RemovedInteractions = append(report.RemovedInteractions, removals...)
		}
	}
	return report
}

func cleanStructure(p Pattern, doc string, s model.Structure) []Removal {
	var removals []Removal
	_ = model.Walk(s, func(n model.Node, path []int, _ int) error {
		switch v := n.(type) {
		case *model.TagNode:
			removals = append(removals, cleanAttributes(p, doc, model.FormatPath(path), v)...)
		case *model.ComponentNode:
			removals = append(removals, cleanData(p, doc, model.FormatPath(path), v)...)
		}
		return nil
	})
	return removals
}

func cleanAttributes(p Pattern, doc, nodeID string, n *model.TagNode) []Removal {
	if n.Attributes == nil {
		return nil
	}
	var removals []Removal
	var deleted []string
	for pair := n.Attributes.Oldest(); pair != nil; pair = pair.Next() {
		if EventName(n.Tag, pair.Key) == "" {
			continue
		}
		value, calls, empty := cleanValue(p, pair.Value)
		if len(calls) == 0 {
			continue
		}
		if empty {
			deleted = append(deleted, pair.Key)
		} else {
			pair.Value = value
		}
		for _, c := range calls {
			removals = append(removals, Removal{Document: doc, NodeID: nodeID, Attribute: pair.Key, Token: c.Raw, Deleted: empty})
		}
	}
	for _, name := range deleted {
		n.Attributes.Delete(name)
	}
	return removals
}

// cleanValue cleans a string value or the string inside a conditional.
// empty reports that nothing is left.
func cleanValue(p Pattern, v model.AttributeValue) (model.AttributeValue, []template.Call, bool) {
	switch v.Kind {
	case model.KindString:
		text, calls := template.RemoveCalls(v.Str, p.Matches)
		return model.String(text), calls, text == ""
	case model.KindConditional:
		inner, calls, empty := cleanValue(p, v.Cond.Value)
		return model.When(v.Cond.Condition, inner), calls, empty
	}
	return v, nil, false
}

// cleanData cleans event bindings passed to a component template.
func cleanData(p Pattern, doc, nodeID string, n *model.ComponentNode) []Removal {
	var removals []Removal
	keys := make([]string, 0, len(n.Data))
	for k := range n.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, ok := n.Data[k].(string)
		if !ok || EventName("", k) == "" {
			continue
		}
		text, calls := template.RemoveCalls(s, p.Matches)
		if len(calls) == 0 {
			continue
		}
		if text == "" {
			delete(n.Data, k)
		} else {
			n.Data[k] = text
		}
		for _, c := range calls {
			removals = append(removals, Removal{Document: doc, NodeID: nodeID, Attribute: "data." + k, Token: c.Raw, Deleted: text == ""})
		}
	}
	return removals
}

// CleanEvents removes matching tokens from page-level bindings. Events and
// routes left without bindings are removed.
func CleanEvents(p Pattern, events storage.PageEvents) []Removal {
	var removals []Removal
	routes := make([]string, 0, len(events))
	for r := range events {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	for _, route := range routes {
		bindings := events[route]
		names := make([]string, 0, len(bindings))
		for name := range bindings {
			names = append(names, name)
		}
		sort.Strings(names)
		before := len(removals)
		for _, name := range names {
			s, ok := bindings[name].(string)
			if !ok {
				continue
			}
			text, calls := template.RemoveCalls(s, p.Matches)
			if len(calls) == 0 {
				continue
			}
			if text == "" {
				delete(bindings, name)
			} else {
				bindings[name] = text
			}
			for _, c := range calls {
				removals = append(removals, Removal{Document: "page-events " + route, Attribute: name, Token: c.Raw, Deleted: text == ""})
			}
		}
		if len(removals) > before && len(bindings) == 0 {
			delete(events, route)
		}
	}
	return removals
}

// Journal records removals.
type Journal interface {
	RecordRemovals(pattern string, removals []Removal) error
}

// SiteOptions are the collaborators of CleanSite. All are optional.
type SiteOptions struct {
	Backups *storage.BackupManager
	Journal Journal
	Log     *zap.SugaredLogger
}

// CleanSite cleans every page, component, the menu, the footer and the
// page-events file of a site, writing back what changed. Unreadable
// structures are skipped and listed in the report.
func CleanSite(store *storage.Store, p Pattern, opts SiteOptions) (Report, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	start := time.Now()

	refs, err := store.All()
	if err != nil {
		return Report{}, fmt.Errorf("failed to list structures: %w", err)
	}
	var docs []Document
	var skipped []string
	for _, ref := range refs {
		s, _, err := store.Load(ref)
		if err != nil {
			log.Warnw("skipping unreadable structure", "ref", ref.String(), "error", err)
			skipped = append(skipped, ref.String())
			continue
		}
		docs = append(docs, Document{Ref: ref, Structure: s})
	}

	report := Clean(p, docs)
	report.Skipped = skipped
	modified := make(map[string]bool, len(report.ModifiedFiles))
	for _, f := range report.ModifiedFiles {
		modified[f] = true
	}
	for _, doc := range docs {
		if !modified[doc.Ref.String()] {
			continue
		}
		if opts.Backups != nil {
			if _, err := opts.Backups.CreateBackup(doc.Ref); err != nil {
				return report, fmt.Errorf("failed to back up %s: %w", doc.Ref, err)
			}
		}
		if _, err := store.Save(doc.Ref, doc.Structure); err != nil {
			return report, err
		}
	}

	events, err := store.LoadEvents()
	if err != nil {
		log.Warnw("skipping unreadable page events", "error", err)
		report.Skipped = append(report.Skipped, "page-events")
	} else if removals := CleanEvents(p, events); len(removals) > 0 {
		if err := store.SaveEvents(events); err != nil {
			return report, err
		}
		report.ModifiedFiles = append(report.ModifiedFiles, "page-events")
		report.RemovedInteractions = append(report.RemovedInteractions, removals...)
	}

	if opts.Journal != nil && len(report.RemovedInteractions) > 0 {
		if err := opts.Journal.RecordRemovals(p.String(), report.RemovedInteractions); err != nil {
			log.Warnw("failed to journal removals", "error", err)
		}
	}
	log.Infow("interaction references cleaned",
		"pattern", p.String(),
		"files", len(report.ModifiedFiles),
		"removed", len(report.RemovedInteractions),
		"duration", time.Since(start))
	return report, nil
}
