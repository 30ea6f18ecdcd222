// Package edit applies edit commands to stored structures. Every command is
// a whole-file read-modify-write: load, navigate, validate, back up, save.
package edit

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/pstuifzand/sitetree/internal/nav"
	"github.com/pstuifzand/sitetree/internal/storage"
	"go.uber.org/zap"
)

// Action names an edit command.
type Action string

const (
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionInsertBefore Action = "insertBefore"
	ActionInsertAfter  Action = "insertAfter"
	ActionInsertInside Action = "insertInside"
	ActionReplace      Action = "replace"
)

// ErrConflict is returned when a command carries a revision that no longer
// matches the file.
var ErrConflict = errors.New("structure was modified concurrently")

// ErrUnknownAction is returned for commands with an unsupported action.
var ErrUnknownAction = errors.New("unknown action")

// Target addresses the structure a command applies to.
type Target struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
}

// Ref validates the target and converts it into a storage ref.
func (t Target) Ref() (storage.Ref, error) {
	kind, err := storage.ParseKind(t.Kind)
	if err != nil {
		return storage.Ref{}, err
	}
	ref := storage.Ref{Kind: kind, Name: t.Name}
	if kind == storage.KindMenu || kind == storage.KindFooter {
		ref.Name = ""
	}
	if err := ref.Validate(); err != nil {
		return storage.Ref{}, err
	}
	return ref, nil
}

// Command is one edit submitted by the admin layer.
type Command struct {
	Target Target          `json:"target"`
	Action Action          `json:"action"`
	NodeID string          `json:"nodeId"`
	Node   json.RawMessage `json:"node,omitempty"`
	// Revision is optional. When set it must match the current file.
	Revision string `json:"revision,omitempty"`
}

// Result reports the outcome of a command.
type Result struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Action   Action `json:"action"`
	NodeID   string `json:"nodeId,omitempty"`
	Revision string `json:"revision,omitempty"`
}

// Journal records applied edits.
type Journal interface {
	RecordEdit(target string, r Result) error
}

// Editor applies commands against a store.
type Editor struct {
	store   *storage.Store
	backups *storage.BackupManager
	journal Journal
	log     *zap.SugaredLogger
}

// NewEditor creates an editor. backups and journal may be nil.
func NewEditor(store *storage.Store, backups *storage.BackupManager, journal Journal, log *zap.SugaredLogger) *Editor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Editor{store: store, backups: backups, journal: journal, log: log}
}

// Apply runs one command. On failure the file is left untouched and the
// result describes the failure.
func (e *Editor) Apply(cmd Command) (Result, error) {
	res := Result{Action: cmd.Action, NodeID: cmd.NodeID}
	ref, err := cmd.Target.Ref()
	if err != nil {
		return e.fail(res, err)
	}

	data, rev, err := e.store.ReadRaw(ref)
	if err != nil {
		return e.fail(res, err)
	}
	if err := checkRevision(ref, cmd.Revision, rev); err != nil {
		return e.fail(res, err)
	}
	s, err := storage.Parse(ref.Kind, data)
	if err != nil {
		return e.fail(res, fmt.Errorf("%s: %w", ref, err))
	}

	out, err := mutate(s, cmd)
	if err != nil {
		return e.fail(res, err)
	}
	return e.write(ref, out, res, storage.FormKeep)
}

func mutate(s model.Structure, cmd Command) (model.Structure, error) {
	var node model.Node
	switch cmd.Action {
	case ActionUpdate, ActionInsertBefore, ActionInsertAfter, ActionInsertInside:
		if len(cmd.Node) == 0 {
			return nil, fmt.Errorf("%s requires a node", cmd.Action)
		}
		n, err := model.ParseNode(cmd.Node)
		if err != nil {
			return nil, fmt.Errorf("invalid node: %w", err)
		}
		node = n
	}

	switch cmd.Action {
	case ActionUpdate:
		return nav.UpdateNode(s, cmd.NodeID, node)
	case ActionDelete:
		return nav.UpdateNode(s, cmd.NodeID, nil)
	case ActionInsertBefore:
		return nav.InsertNode(s, cmd.NodeID, node, nav.Before)
	case ActionInsertAfter:
		return nav.InsertNode(s, cmd.NodeID, node, nav.After)
	case ActionInsertInside:
		if _, err := nav.ParseNodeID(cmd.NodeID); err != nil {
			return nil, err
		}
		return nav.InsertNode(s, nav.InsideID(cmd.NodeID), node, nav.Before)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownAction, cmd.Action)
}

// Replace writes a whole structure without going through the navigator.
func (e *Editor) Replace(t Target, s model.Structure, revision string) (Result, error) {
	return e.replace(t, s, revision, storage.FormKeep)
}

func (e *Editor) replace(t Target, s model.Structure, revision string, form storage.Form) (Result, error) {
	res := Result{Action: ActionReplace}
	ref, err := t.Ref()
	if err != nil {
		return e.fail(res, err)
	}
	if revision != "" {
		_, rev, err := e.store.ReadRaw(ref)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return e.fail(res, err)
		}
		if err := checkRevision(ref, revision, rev); err != nil {
			return e.fail(res, err)
		}
	}
	if s == nil {
		s = model.Structure{}
	}
	return e.write(ref, s, res, form)
}

// ReplaceSource parses data as a structure of the target's kind and
// replaces the stored one in the form data has. Unparsable data is rejected.
func (e *Editor) ReplaceSource(t Target, data []byte, revision string) (Result, error) {
	ref, err := t.Ref()
	if err != nil {
		return e.fail(Result{Action: ActionReplace}, err)
	}
	s, err := storage.Parse(ref.Kind, data)
	if err != nil {
		return e.fail(Result{Action: ActionReplace}, err)
	}
	return e.replace(t, s, revision, storage.SourceForm(data))
}

func checkRevision(ref storage.Ref, want, have string) error {
	if want == "" || want == have {
		return nil
	}
	return fmt.Errorf("%w: %s is at revision %s", ErrConflict, ref, short(have))
}

func short(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func (e *Editor) write(ref storage.Ref, s model.Structure, res Result, form storage.Form) (Result, error) {
	if err := model.ValidateDepth(s, model.MaxStructureDepth); err != nil {
		return e.fail(res, err)
	}
	if e.backups != nil {
		if _, err := e.backups.CreateBackup(ref); err != nil {
			return e.fail(res, fmt.Errorf("failed to back up %s: %w", ref, err))
		}
	}
	rev, err := e.store.SaveForm(ref, s, form)
	if err != nil {
		return e.fail(res, err)
	}
	res.Success = true
	res.Revision = rev
	e.log.Infow("structure edited", "ref", ref.String(), "action", res.Action, "nodeId", res.NodeID)
	if e.journal != nil {
		if err := e.journal.RecordEdit(ref.String(), res); err != nil {
			e.log.Warnw("failed to journal edit", "ref", ref.String(), "error", err)
		}
	}
	return res, nil
}

func (e *Editor) fail(res Result, err error) (Result, error) {
	res.Success = false
	res.Error = err.Error()
	var navErr *nav.Error
	if errors.As(err, &navErr) && res.NodeID == "" {
		res.NodeID = navErr.NodeID
	}
	e.log.Debugw("edit rejected", "action", res.Action, "nodeId", res.NodeID, "error", err)
	return res, err
}
