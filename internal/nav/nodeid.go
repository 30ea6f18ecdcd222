// Package nav addresses nodes inside a structure by dot-notation index paths
// and implements replace, delete and sibling insertion as pure tree transforms.
package nav

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pstuifzand/sitetree/internal/model"
)

var nodeIDPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// NodeID is a positional path through nested children sequences. "0.2.1"
// addresses structure[0].children[2].children[1]. Indices shift when siblings
// are inserted or deleted, so a NodeID must not be kept across edits.
type NodeID []int

// ParseNodeID validates and parses the wire form of a node id.
func ParseNodeID(s string) (NodeID, error) {
	if !nodeIDPattern.MatchString(s) {
		return nil, &Error{Reason: MalformedNodeID, NodeID: s}
	}
	parts := strings.Split(s, ".")
	id := make(NodeID, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, &Error{Reason: MalformedNodeID, NodeID: s}
		}
		id[i] = n
	}
	return id, nil
}

// String returns the dot-notation form.
func (id NodeID) String() string {
	return model.FormatPath(id)
}

// Parent returns the id of the containing node, or nil for a top-level node.
func (id NodeID) Parent() NodeID {
	if len(id) <= 1 {
		return nil
	}
	return append(NodeID(nil), id[:len(id)-1]...)
}

// Index returns the position within the containing sequence.
func (id NodeID) Index() int {
	return id[len(id)-1]
}

// InsideID returns the id of the first child position of the node at id.
// Inserting before that position places a node inside id as its first child.
func InsideID(id string) string {
	return id + ".0"
}
