package nav

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pstuifzand/sitetree/internal/model"
)

// Position places an inserted node relative to an existing sibling.
type Position int

const (
	Before Position = iota
	After
)

func (p Position) String() string {
	if p == After {
		return "after"
	}
	return "before"
}

// Location identifies where a node lives: the owning sequence (Parent is nil
// for the top-level structure) and the index within it.
type Location struct {
	Parent NodeID
	Index  int
}

// ErrNoNode is returned when InsertNode is called without a node.
var ErrNoNode = errors.New("nav: insert requires a node")

// Resolve finds the node addressed by id.
func Resolve(s model.Structure, id string) (Location, model.Node, error) {
	nid, err := ParseNodeID(id)
	if err != nil {
		return Location{}, nil, err
	}
	if len(s) == 0 {
		return Location{}, nil, &Error{Reason: EmptyStructure, NodeID: id, Action: "resolve"}
	}
	seq, err := container(&s, nid, "resolve")
	if err != nil {
		return Location{}, nil, err
	}
	idx := nid.Index()
	if idx >= len(*seq) {
		return Location{}, nil, outOfRange(nid, len(nid), "resolve", idx, len(*seq))
	}
	return Location{Parent: nid.Parent(), Index: idx}, (*seq)[idx], nil
}

// UpdateNode replaces the node at id with replacement, or deletes it when
// replacement is nil. The input structure is left untouched; the mutated
// copy is returned.
func UpdateNode(s model.Structure, id string, replacement model.Node) (model.Structure, error) {
	action := "update"
	if replacement == nil {
		action = "delete"
	}
	nid, err := ParseNodeID(id)
	if err != nil {
		return nil, withAction(err, action)
	}
	if len(s) == 0 {
		return nil, &Error{Reason: EmptyStructure, NodeID: id, Action: action}
	}

	out := model.Clone(s)
	seq, err := container(&out, nid, action)
	if err != nil {
		return nil, err
	}
	idx := nid.Index()
	if idx >= len(*seq) {
		return nil, outOfRange(nid, len(nid), action, idx, len(*seq))
	}

	if replacement == nil {
		*seq = slices.Delete(*seq, idx, idx+1)
	} else {
		(*seq)[idx] = model.CloneNode(replacement)
	}
	return out, nil
}

// InsertNode inserts node as a sibling before or after the node at id. When
// the addressed sequence is empty or does not exist yet and the last index
// is 0, node becomes its first element, so leaf tags turn into containers on
// their first insert.
func InsertNode(s model.Structure, id string, node model.Node, pos Position) (model.Structure, error) {
	action := "insert " + pos.String()
	if node == nil {
		return nil, ErrNoNode
	}
	nid, err := ParseNodeID(id)
	if err != nil {
		return nil, withAction(err, action)
	}

	out := model.Clone(s)
	if out == nil {
		out = model.Structure{}
	}
	seq, err := container(&out, nid, action)
	if err != nil {
		return nil, err
	}
	idx := nid.Index()
	node = model.CloneNode(node)

	switch {
	case len(*seq) == 0 && idx == 0:
		*seq = []model.Node{node}
	case idx >= len(*seq):
		return nil, outOfRange(nid, len(nid), action, idx, len(*seq))
	case pos == After:
		*seq = slices.Insert(*seq, idx+1, node)
	default:
		*seq = slices.Insert(*seq, idx, node)
	}
	return out, nil
}

// container walks every index but the last and returns a pointer to the
// sequence that holds the addressed node.
func container(s *model.Structure, id NodeID, action string) (*[]model.Node, error) {
	seq := (*[]model.Node)(s)
	for depth, idx := range id[:len(id)-1] {
		if idx >= len(*seq) {
			return nil, outOfRange(id, depth+1, action, idx, len(*seq))
		}
		tag, ok := (*seq)[idx].(*model.TagNode)
		if !ok {
			return nil, &Error{
				Reason: IndexOutOfRange,
				NodeID: id.String(),
				Action: action,
				Detail: fmt.Sprintf("%s is a %s and has no children", id[:depth+1], model.Describe((*seq)[idx])),
			}
		}
		seq = &tag.Children
	}
	return seq, nil
}

// outOfRange reports the full id; depth is the length of the prefix whose
// last index does not exist.
func outOfRange(id NodeID, depth int, action string, idx, length int) error {
	detail := fmt.Sprintf("index %d, sequence has %d nodes", idx, length)
	if depth < len(id) {
		detail = fmt.Sprintf("%s: %s", id[:depth], detail)
	}
	return &Error{
		Reason: IndexOutOfRange,
		NodeID: id.String(),
		Action: action,
		Detail: detail,
	}
}

func withAction(err error, action string) error {
	var nerr *Error
	if errors.As(err, &nerr) {
		nerr.Action = action
	}
	return err
}
