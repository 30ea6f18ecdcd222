package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind identifies the shape of an attribute value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindConditional
	KindInvalid
)

// AttributeValue is a scalar, null, or a conditional value. Numbers keep
// their JSON literal so they round-trip unchanged.
type AttributeValue struct {
	Kind ValueKind
	Str  string
	Bool bool
	Cond *Conditional

	raw json.RawMessage
}

// Conditional is emitted only when the named context key is truthy.
type Conditional struct {
	Condition string
	Value     AttributeValue
}

// String returns a string attribute value.
func String(s string) AttributeValue {
	return AttributeValue{Kind: KindString, Str: s}
}

// Number returns a number attribute value from its literal form.
func Number(literal string) AttributeValue {
	return AttributeValue{Kind: KindNumber, Str: literal}
}

// Bool returns a boolean attribute value.
func Bool(b bool) AttributeValue {
	return AttributeValue{Kind: KindBool, Bool: b}
}

// Null returns the null attribute value.
func Null() AttributeValue {
	return AttributeValue{Kind: KindNull}
}

// When returns a conditional attribute value.
func When(condition string, v AttributeValue) AttributeValue {
	return AttributeValue{Kind: KindConditional, Cond: &Conditional{Condition: condition, Value: v}}
}

// ValueOf converts a Go value into an AttributeValue.
func ValueOf(v any) AttributeValue {
	switch t := v.(type) {
	case AttributeValue:
		return t
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(strconv.Itoa(t))
	case int64:
		return Number(strconv.FormatInt(t, 10))
	case float64:
		return Number(strconv.FormatFloat(t, 'f', -1, 64))
	case json.Number:
		return Number(t.String())
	default:
		raw, _ := json.Marshal(v)
		return AttributeValue{Kind: KindInvalid, raw: raw}
	}
}

// MarshalJSON implements json.Marshaler.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return marshalNoEscape(v.Str)
	case KindNumber:
		return []byte(v.Str), nil
	case KindBool:
		return strconv.AppendBool(nil, v.Bool), nil
	case KindConditional:
		value, err := v.Cond.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		cond, err := marshalNoEscape(v.Cond.Condition)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		buf.WriteString(`{"condition":`)
		buf.Write(cond)
		buf.WriteString(`,"value":`)
		buf.Write(value)
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindInvalid:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	default:
		return nil, fmt.Errorf("unknown attribute value kind %d", v.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Values that are not scalars or
// conditionals are kept as invalid values rather than failing the decode.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*v = Null()
		return nil
	}
	switch data[0] {
	case 'n':
		*v = Null()
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '{':
		var cond struct {
			Condition *string         `json:"condition"`
			Value     json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &cond); err != nil || cond.Condition == nil || cond.Value == nil {
			*v = AttributeValue{Kind: KindInvalid, raw: append(json.RawMessage(nil), data...)}
			return nil
		}
		var inner AttributeValue
		if err := inner.UnmarshalJSON(cond.Value); err != nil {
			return err
		}
		*v = When(*cond.Condition, inner)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			*v = AttributeValue{Kind: KindInvalid, raw: append(json.RawMessage(nil), data...)}
			return nil
		}
		*v = Number(n.String())
	}
	return nil
}

func (v AttributeValue) clone() AttributeValue {
	out := v
	if v.Cond != nil {
		out.Cond = &Conditional{Condition: v.Cond.Condition, Value: v.Cond.Value.clone()}
	}
	if v.raw != nil {
		out.raw = append(json.RawMessage(nil), v.raw...)
	}
	return out
}
