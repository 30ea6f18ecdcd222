package nav

import (
	"errors"
	"testing"

	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeChildren is [ul > [li a, li b, li c], p]
func threeChildren() model.Structure {
	return model.Structure{
		model.Tag("ul", nil,
			model.Tag("li", nil, model.Text("a")),
			model.Tag("li", nil, model.Text("b")),
			model.Tag("li", nil, model.Text("c")),
		),
		model.Tag("p", nil, model.Text("footer.note")),
	}
}

func encode(t *testing.T, s model.Structure) string {
	t.Helper()
	out, err := model.Encode(s)
	require.NoError(t, err)
	return string(out)
}

func textOf(t *testing.T, s model.Structure, id string) string {
	t.Helper()
	_, n, err := Resolve(s, id)
	require.NoError(t, err)
	li, ok := n.(*model.TagNode)
	require.True(t, ok)
	return li.Children[0].(*model.TextNode).TextKey
}

func TestParseNodeID(t *testing.T) {
	id, err := ParseNodeID("0.2.1")
	require.NoError(t, err)
	assert.Equal(t, NodeID{0, 2, 1}, id)
	assert.Equal(t, "0.2.1", id.String())
	assert.Equal(t, NodeID{0, 2}, id.Parent())
	assert.Equal(t, 1, id.Index())

	for _, bad := range []string{"", "a.1", "-1", "1.", ".1", "1..2", " 1", "1.a", "0x1"} {
		_, err := ParseNodeID(bad)
		assert.ErrorIs(t, err, &Error{Reason: MalformedNodeID}, "id %q", bad)
	}
}

func TestResolve(t *testing.T) {
	s := threeChildren()
	loc, n, err := Resolve(s, "0.1")
	require.NoError(t, err)
	assert.Equal(t, Location{Parent: NodeID{0}, Index: 1}, loc)
	assert.Equal(t, "li", n.(*model.TagNode).Tag)

	loc, _, err = Resolve(s, "1")
	require.NoError(t, err)
	assert.Nil(t, loc.Parent)
	assert.Equal(t, 1, loc.Index)
}

func TestResolveFailures(t *testing.T) {
	s := threeChildren()
	tests := []struct {
		id     string
		reason Reason
	}{
		{"2", IndexOutOfRange},
		{"0.3", IndexOutOfRange},
		{"5.0", IndexOutOfRange},
		{"0.0.0.0", IndexOutOfRange}, // 0.0.0 is a text node
		{"x", MalformedNodeID},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			_, _, err := Resolve(s, tt.id)
			var nerr *Error
			require.True(t, errors.As(err, &nerr), "got %v", err)
			assert.Equal(t, tt.reason, nerr.Reason)
			if tt.reason == IndexOutOfRange {
				assert.Equal(t, tt.id, nerr.NodeID, "the full id is reported")
			}
		})
	}

	_, _, err := Resolve(model.Structure{}, "0")
	assert.ErrorIs(t, err, &Error{Reason: EmptyStructure})
}

func TestNoOpReplaceRoundTrip(t *testing.T) {
	s := threeChildren()
	before := encode(t, s)
	for _, id := range []string{"0", "0.0", "0.1.0", "0.2", "1", "1.0"} {
		_, n, err := Resolve(s, id)
		require.NoError(t, err)
		out, err := UpdateNode(s, id, n)
		require.NoError(t, err)
		assert.Equal(t, before, encode(t, out), "no-op replace at %s", id)
	}
}

func TestReplaceKeepsSiblings(t *testing.T) {
	s := threeChildren()
	out, err := UpdateNode(s, "0.1", model.Tag("li", nil, model.Text("B")))
	require.NoError(t, err)
	assert.Equal(t, "a", textOf(t, out, "0.0"))
	assert.Equal(t, "B", textOf(t, out, "0.1"))
	assert.Equal(t, "c", textOf(t, out, "0.2"))
}

func TestDeleteShiftsIndices(t *testing.T) {
	s := threeChildren()
	out, err := UpdateNode(s, "0.1", nil)
	require.NoError(t, err)

	assert.Len(t, out[0].(*model.TagNode).Children, 2)
	assert.Equal(t, "c", textOf(t, out, "0.1"), "former 0.2 is now 0.1")

	_, _, err = Resolve(out, "0.2")
	assert.ErrorIs(t, err, &Error{Reason: IndexOutOfRange})
}

func TestDeleteOnlyNodeYieldsEmptyStructure(t *testing.T) {
	s := model.Structure{model.Tag("p", nil)}
	out, err := UpdateNode(s, "0", nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", encode(t, out))
}

func TestUpdateEmptyStructure(t *testing.T) {
	_, err := UpdateNode(model.Structure{}, "0", nil)
	var nerr *Error
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, EmptyStructure, nerr.Reason)
	assert.Equal(t, "delete", nerr.Action)
	assert.Equal(t, "0", nerr.NodeID)
}

func TestInsertSiblingOrdering(t *testing.T) {
	s := threeChildren()
	n := model.Tag("li", nil, model.Text("new"))

	out, err := InsertNode(s, "0.1", n, Before)
	require.NoError(t, err)
	assert.Equal(t, "new", textOf(t, out, "0.1"))
	assert.Equal(t, "b", textOf(t, out, "0.2"), "original 0.1 moved to 0.2")

	out, err = InsertNode(s, "0.1", n, After)
	require.NoError(t, err)
	assert.Equal(t, "b", textOf(t, out, "0.1"))
	assert.Equal(t, "new", textOf(t, out, "0.2"))
	assert.Equal(t, "c", textOf(t, out, "0.3"))
}

func TestInsertCreatesChildren(t *testing.T) {
	s := model.Structure{model.Tag("div", nil)}
	out, err := InsertNode(s, InsideID("0"), model.Text("first"), Before)
	require.NoError(t, err)

	div := out[0].(*model.TagNode)
	require.Len(t, div.Children, 1)
	assert.Equal(t, model.Text("first"), div.Children[0])
	assert.Nil(t, s[0].(*model.TagNode).Children, "input must stay untouched")
}

func TestInsertIntoEmptyStructure(t *testing.T) {
	out, err := InsertNode(nil, "0", model.Text("hello"), After)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestInsertFailures(t *testing.T) {
	s := threeChildren()

	_, err := InsertNode(s, "0.3", model.Text("x"), Before)
	assert.ErrorIs(t, err, &Error{Reason: IndexOutOfRange})

	_, err = InsertNode(s, "1.0.0", model.Text("x"), Before)
	assert.ErrorIs(t, err, &Error{Reason: IndexOutOfRange}, "text nodes cannot hold children")

	_, err = InsertNode(s, "1.", model.Text("x"), Before)
	assert.ErrorIs(t, err, &Error{Reason: MalformedNodeID})

	_, err = InsertNode(s, "0", nil, Before)
	assert.ErrorIs(t, err, ErrNoNode)
}

func TestOperationsNeverMutateInput(t *testing.T) {
	s := threeChildren()
	before := encode(t, s)

	_, err := UpdateNode(s, "0.1", nil)
	require.NoError(t, err)
	_, err = UpdateNode(s, "0.0", model.Text("x"))
	require.NoError(t, err)
	_, err = InsertNode(s, "0.2", model.Text("y"), After)
	require.NoError(t, err)
	_, err = UpdateNode(s, "a.1", nil)
	require.Error(t, err)

	assert.Equal(t, before, encode(t, s))
}

func TestErrorMessage(t *testing.T) {
	_, err := UpdateNode(threeChildren(), "0.9", nil)
	require.Error(t, err)
	assert.Equal(t, `delete: IndexOutOfRange: node "0.9": index 9, sequence has 3 nodes`, err.Error())

	_, err = UpdateNode(threeChildren(), "5.0", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `delete: IndexOutOfRange: node "5.0": 5: index 5, sequence has `)
}
