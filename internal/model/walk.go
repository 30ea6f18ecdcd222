package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SkipChildren may be returned by a WalkFunc to skip the children of the
// current node.
var SkipChildren = errors.New("skip children")

// WalkFunc visits one node. path holds the positional indices leading to the
// node and depth starts at 1 for top-level nodes. path is only valid for the
// duration of the call.
type WalkFunc func(n Node, path []int, depth int) error

// Walk visits every node of the structure depth-first, in document order.
func Walk(s Structure, fn WalkFunc) error {
	path := make([]int, 0, 8)
	return walk(s, path, 1, fn)
}

func walk(nodes []Node, path []int, depth int, fn WalkFunc) error {
	for i, n := range nodes {
		p := append(path, i)
		err := fn(n, p, depth)
		if errors.Is(err, SkipChildren) {
			continue
		}
		if err != nil {
			return err
		}
		if tag, ok := n.(*TagNode); ok && len(tag.Children) > 0 {
			if err := walk(tag.Children, p, depth+1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// DepthError reports a structure or data value nested deeper than allowed.
type DepthError struct {
	Max  int
	Path string
}

func (e *DepthError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("nesting exceeds maximum depth %d", e.Max)
	}
	return fmt.Sprintf("node %s exceeds maximum depth %d", e.Path, e.Max)
}

// ValidateDepth checks that no node is nested deeper than max.
func ValidateDepth(s Structure, max int) error {
	return Walk(s, func(n Node, path []int, depth int) error {
		if depth > max {
			return &DepthError{Max: max, Path: FormatPath(path)}
		}
		return nil
	})
}

// ValidateDataDepth checks generic decoded data (maps and slices) against a
// maximum nesting depth.
func ValidateDataDepth(v any, max int) error {
	if dataDepth(v, 0, max) > max {
		return &DepthError{Max: max}
	}
	return nil
}

func dataDepth(v any, depth, max int) int {
	if depth > max {
		return depth
	}
	deepest := depth
	switch t := v.(type) {
	case map[string]any:
		for _, child := range t {
			if d := dataDepth(child, depth+1, max); d > deepest {
				deepest = d
			}
		}
	case []any:
		for _, child := range t {
			if d := dataDepth(child, depth+1, max); d > deepest {
				deepest = d
			}
		}
	}
	return deepest
}

// FormatPath renders positional indices in dot notation.
func FormatPath(path []int) string {
	parts := make([]string, len(path))
	for i, idx := range path {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

// Count returns the number of nodes in the structure.
func Count(s Structure) int {
	count := 0
	_ = Walk(s, func(Node, []int, int) error {
		count++
		return nil
	})
	return count
}

// Clone returns a deep copy of the structure.
func Clone(s Structure) Structure {
	if s == nil {
		return nil
	}
	out := make(Structure, len(s))
	for i, n := range s {
		out[i] = CloneNode(n)
	}
	return out
}

// CloneNode returns a deep copy of a single node.
func CloneNode(n Node) Node {
	switch v := n.(type) {
	case *TagNode:
		c := &TagNode{Tag: v.Tag, Attributes: CloneAttributes(v.Attributes)}
		if v.Children != nil {
			c.Children = Clone(v.Children)
		}
		return c
	case *TextNode:
		return &TextNode{TextKey: v.TextKey}
	case *ComponentNode:
		data, _ := CloneData(v.Data).(map[string]any)
		return &ComponentNode{Component: v.Component, Data: data}
	case *InvalidNode:
		return &InvalidNode{Raw: append([]byte(nil), v.Raw...), Reason: v.Reason}
	default:
		return nil
	}
}

// CloneAttributes copies an attribute mapping, keeping order.
func CloneAttributes(attrs *Attributes) *Attributes {
	if attrs == nil {
		return nil
	}
	out := orderedmap.New[string, AttributeValue]()
	for pair := attrs.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value.clone())
	}
	return out
}

// CloneData deep-copies decoded JSON data.
func CloneData(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = CloneData(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = CloneData(child)
		}
		return out
	default:
		return v
	}
}
