package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ParseError reports JSON that cannot be read as a structure at all.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid structure: %s: %v", e.Reason, e.Err)
	}
	return "invalid structure: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseStructure parses a structure file. The top level must be a JSON array;
// individual elements that are not valid nodes become *InvalidNode.
func ParseStructure(data []byte) (Structure, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ParseError{Reason: "empty document"}
	}
	if !json.Valid(trimmed) {
		return nil, &ParseError{Reason: "malformed JSON", Err: json.Unmarshal(trimmed, new(any))}
	}
	if trimmed[0] != '[' {
		return nil, &ParseError{Reason: "top level is not an array"}
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, &ParseError{Reason: "malformed JSON", Err: err}
	}
	s := make(Structure, 0, len(raws))
	for _, raw := range raws {
		s = append(s, DecodeNode(raw))
	}
	return s, nil
}

// ParseTemplate parses a component template, which is either a single node
// object or an array of nodes.
func ParseTemplate(data []byte) (Structure, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if !json.Valid(trimmed) {
			return nil, &ParseError{Reason: "malformed JSON", Err: json.Unmarshal(trimmed, new(any))}
		}
		return Structure{DecodeNode(trimmed)}, nil
	}
	return ParseStructure(trimmed)
}

// ParseNode parses a single node, as sent with an edit command.
func ParseNode(data []byte) (Node, error) {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, &ParseError{Reason: "malformed JSON", Err: json.Unmarshal(trimmed, new(any))}
	}
	n := DecodeNode(trimmed)
	if inv, ok := n.(*InvalidNode); ok {
		return nil, &ParseError{Reason: inv.Reason}
	}
	return n, nil
}

// DecodeNode decodes one node. It never fails: anything that is not a tag,
// text or component node comes back as an *InvalidNode with a reason.
func DecodeNode(raw json.RawMessage) Node {
	raw = bytes.TrimSpace(raw)
	invalid := func(reason string) Node {
		return &InvalidNode{Raw: append(json.RawMessage(nil), raw...), Reason: reason}
	}
	if len(raw) == 0 || raw[0] != '{' {
		return invalid("node is not an object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return invalid("node is not an object")
	}

	if tagRaw, ok := fields["tag"]; ok {
		var tag string
		if err := json.Unmarshal(tagRaw, &tag); err != nil {
			return invalid("tag is not a string")
		}
		n := &TagNode{Tag: tag}
		if attrRaw, ok := fields["attributes"]; ok && !isEmptyContainer(attrRaw) {
			attrs := orderedmap.New[string, AttributeValue]()
			if err := json.Unmarshal(attrRaw, attrs); err != nil {
				return invalid("attributes is not an object")
			}
			n.Attributes = attrs
		}
		if childRaw, ok := fields["children"]; ok && !isNull(childRaw) {
			var children []json.RawMessage
			if err := json.Unmarshal(childRaw, &children); err != nil {
				return invalid("children is not an array")
			}
			n.Children = make([]Node, 0, len(children))
			for _, c := range children {
				n.Children = append(n.Children, DecodeNode(c))
			}
		}
		return n
	}

	if keyRaw, ok := fields["textKey"]; ok {
		var key string
		if err := json.Unmarshal(keyRaw, &key); err != nil {
			return invalid("textKey is not a string")
		}
		return &TextNode{TextKey: key}
	}

	if compRaw, ok := fields["component"]; ok {
		var name string
		if err := json.Unmarshal(compRaw, &name); err != nil {
			return invalid("component is not a string")
		}
		n := &ComponentNode{Component: name}
		if dataRaw, ok := fields["data"]; ok && !isEmptyContainer(dataRaw) {
			if err := json.Unmarshal(dataRaw, &n.Data); err != nil {
				return invalid("data is not an object")
			}
		}
		return n
	}

	return invalid("node has no tag, textKey or component")
}

// isEmptyContainer reports null, {} and [] (an empty PHP array encodes as []).
func isEmptyContainer(raw json.RawMessage) bool {
	s := string(bytes.Join(bytes.Fields(raw), nil))
	return s == "null" || s == "{}" || s == "[]"
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// MarshalJSON implements json.Marshaler with a fixed key order.
func (n *TagNode) MarshalJSON() ([]byte, error) {
	out := struct {
		Tag        string          `json:"tag"`
		Attributes json.RawMessage `json:"attributes,omitempty"`
		Children   *[]Node         `json:"children,omitempty"`
	}{Tag: n.Tag}
	if n.Attributes != nil && n.Attributes.Len() > 0 {
		attrs, err := marshalAttributes(n.Attributes)
		if err != nil {
			return nil, err
		}
		out.Attributes = attrs
	}
	if n.Children != nil {
		children := n.Children
		out.Children = &children
	}
	return marshalNoEscape(out)
}

// MarshalJSON implements json.Marshaler.
func (n *TextNode) MarshalJSON() ([]byte, error) {
	return marshalNoEscape(struct {
		TextKey string `json:"textKey"`
	}{n.TextKey})
}

// MarshalJSON implements json.Marshaler.
func (n *ComponentNode) MarshalJSON() ([]byte, error) {
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	return marshalNoEscape(struct {
		Component string         `json:"component"`
		Data      map[string]any `json:"data"`
	}{n.Component, data})
}

// MarshalJSON implements json.Marshaler. The original value is written back.
func (n *InvalidNode) MarshalJSON() ([]byte, error) {
	if len(n.Raw) == 0 {
		return []byte("null"), nil
	}
	return n.Raw, nil
}

// Encode writes a structure in its canonical on-disk form: two-space
// indentation, unescaped HTML characters and a trailing newline.
func Encode(s Structure) ([]byte, error) {
	if s == nil {
		s = Structure{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode([]Node(s)); err != nil {
		return nil, fmt.Errorf("failed to encode structure: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeNode writes a single node in the canonical form of Encode, for
// component templates stored as one object.
func EncodeNode(n Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(n); err != nil {
		return nil, fmt.Errorf("failed to encode node: %w", err)
	}
	return buf.Bytes(), nil
}

func marshalAttributes(attrs *Attributes) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for pair := attrs.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := marshalNoEscape(pair.Key)
		if err != nil {
			return nil, err
		}
		value, err := pair.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
