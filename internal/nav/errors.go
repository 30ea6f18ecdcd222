package nav

import "fmt"

// Reason classifies a navigation failure.
type Reason string

const (
	MalformedNodeID Reason = "MalformedNodeId"
	IndexOutOfRange Reason = "IndexOutOfRange"
	EmptyStructure  Reason = "EmptyStructure"
)

// Error is returned by every navigator operation that cannot be applied.
// The structure passed in is never modified when an Error is returned.
type Error struct {
	Reason Reason
	NodeID string
	Action string
	Detail string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: node %q", e.Reason, e.NodeID)
	if e.Action != "" {
		msg = e.Action + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches errors by reason so callers can use errors.Is with a template
// such as &nav.Error{Reason: nav.IndexOutOfRange}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}
