// Package model contains the node model for page, component, menu and footer structures
package model

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Depth limits for persisted data.
const (
	MaxStructureDepth = 50
	MaxDataDepth      = 20
)

// Node is a single element of a structure tree. A Node is always one of
// *TagNode, *TextNode, *ComponentNode or *InvalidNode.
type Node interface {
	node()
}

// Attributes is the ordered attribute mapping of a tag node.
type Attributes = orderedmap.OrderedMap[string, AttributeValue]

// TagNode is an HTML element with ordered attributes and optional children.
// Children is nil when the node has no children sequence at all.
type TagNode struct {
	Tag        string
	Attributes *Attributes
	Children   []Node
}

// TextNode is a translation key, or literal text when the key carries the
// raw-text prefix.
type TextNode struct {
	TextKey string
}

// ComponentNode references a file-backed component template by name.
type ComponentNode struct {
	Component string
	Data      map[string]any
}

// InvalidNode holds a JSON value that matched no node shape. It is kept so
// that saving a structure never loses content, and renders as a diagnostic.
type InvalidNode struct {
	Raw    json.RawMessage
	Reason string
}

func (*TagNode) node()       {}
func (*TextNode) node()      {}
func (*ComponentNode) node() {}
func (*InvalidNode) node()   {}

// Structure is the ordered top-level sequence of nodes of one page,
// component, menu or footer.
type Structure []Node

// Tag creates a tag node. Without children the node has no children sequence.
func Tag(tag string, attrs *Attributes, children ...Node) *TagNode {
	n := &TagNode{Tag: tag, Attributes: attrs}
	if len(children) > 0 {
		n.Children = children
	}
	return n
}

// Text creates a text node.
func Text(key string) *TextNode {
	return &TextNode{TextKey: key}
}

// Component creates a component node.
func Component(name string, data map[string]any) *ComponentNode {
	return &ComponentNode{Component: name, Data: data}
}

// Attrs builds an attribute mapping from alternating name/value arguments.
// Values may be AttributeValue or plain Go scalars.
func Attrs(kv ...any) *Attributes {
	attrs := orderedmap.New[string, AttributeValue]()
	for i := 0; i+1 < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			continue
		}
		attrs.Set(name, ValueOf(kv[i+1]))
	}
	return attrs
}

// Describe returns a short human readable description of a node, used in
// diagnostics and log lines.
func Describe(n Node) string {
	switch v := n.(type) {
	case *TagNode:
		return "tag " + v.Tag
	case *TextNode:
		return "text " + v.TextKey
	case *ComponentNode:
		return "component " + v.Component
	case *InvalidNode:
		return "invalid node"
	default:
		return "nil node"
	}
}
