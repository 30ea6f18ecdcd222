package edit

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/pstuifzand/sitetree/internal/model"
	"github.com/pstuifzand/sitetree/internal/nav"
	"github.com/pstuifzand/sitetree/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var home = Target{Kind: "page", Name: "home"}

type journal struct {
	entries []string
}

func (j *journal) RecordEdit(target string, r Result) error {
	j.entries = append(j.entries, target+" "+string(r.Action)+" "+r.NodeID)
	return nil
}

func setup(t *testing.T) (*Editor, *storage.Store, *storage.BackupManager, *journal) {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	store := storage.NewStore(t.TempDir(), log)
	_, err := store.Save(storage.Page("home"), model.Structure{
		model.Tag("div", nil,
			model.Tag("p", nil, model.Text("a")),
			model.Tag("p", nil, model.Text("b")),
			model.Tag("p", nil, model.Text("c")),
		),
	})
	require.NoError(t, err)
	backups := storage.NewBackupManager(store, 10)
	j := &journal{}
	return NewEditor(store, backups, j, log), store, backups, j
}

func textAt(t *testing.T, store *storage.Store, id string) string {
	t.Helper()
	s, _, err := store.Load(storage.Page("home"))
	require.NoError(t, err)
	_, n, err := nav.Resolve(s, id)
	require.NoError(t, err)
	switch v := n.(type) {
	case *model.TextNode:
		return v.TextKey
	case *model.TagNode:
		if len(v.Children) > 0 {
			if txt, ok := v.Children[0].(*model.TextNode); ok {
				return txt.TextKey
			}
		}
		return v.Tag
	}
	return model.Describe(n)
}

func TestApplyActions(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want map[string]string
	}{
		{
			name: "update",
			cmd:  Command{Action: ActionUpdate, NodeID: "0.1", Node: json.RawMessage(`{"tag":"h2","children":[{"textKey":"new"}]}`)},
			want: map[string]string{"0.0": "a", "0.1": "new", "0.2": "c"},
		},
		{
			name: "delete shifts indices",
			cmd:  Command{Action: ActionDelete, NodeID: "0.1"},
			want: map[string]string{"0.0": "a", "0.1": "c"},
		},
		{
			name: "insert before",
			cmd:  Command{Action: ActionInsertBefore, NodeID: "0.1", Node: json.RawMessage(`{"textKey":"new"}`)},
			want: map[string]string{"0.1": "new", "0.2": "b", "0.3": "c"},
		},
		{
			name: "insert after",
			cmd:  Command{Action: ActionInsertAfter, NodeID: "0.1", Node: json.RawMessage(`{"textKey":"new"}`)},
			want: map[string]string{"0.1": "b", "0.2": "new", "0.3": "c"},
		},
		{
			name: "insert inside",
			cmd:  Command{Action: ActionInsertInside, NodeID: "0.2", Node: json.RawMessage(`{"tag":"span"}`)},
			want: map[string]string{"0.2.0": "span", "0.2.1": "c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			editor, store, _, j := setup(t)
			tt.cmd.Target = home
			res, err := editor.Apply(tt.cmd)
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.cmd.Action, res.Action)
			assert.Empty(t, res.Error)

			_, rev, err := store.ReadRaw(storage.Page("home"))
			require.NoError(t, err)
			assert.Equal(t, rev, res.Revision)
			for id, want := range tt.want {
				assert.Equal(t, want, textAt(t, store, id), "node %s", id)
			}
			assert.Equal(t, []string{"page home " + string(tt.cmd.Action) + " " + tt.cmd.NodeID}, j.entries)
		})
	}
}

func TestApplyFailureLeavesFileUntouched(t *testing.T) {
	deep := `{"tag":"div"}`
	for i := 0; i < model.MaxStructureDepth+2; i++ {
		deep = `{"tag":"div","children":[` + deep + `]}`
	}

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"malformed id", Command{Action: ActionDelete, NodeID: "a.1"}, "MalformedNodeId"},
		{"trailing dot", Command{Action: ActionDelete, NodeID: "1."}, "MalformedNodeId"},
		{"negative", Command{Action: ActionUpdate, NodeID: "-1", Node: json.RawMessage(`{"textKey":"x"}`)}, "MalformedNodeId"},
		{"out of range", Command{Action: ActionDelete, NodeID: "0.7"}, "IndexOutOfRange"},
		{"text as container", Command{Action: ActionInsertInside, NodeID: "0.0.0", Node: json.RawMessage(`{"textKey":"x"}`)}, "IndexOutOfRange"},
		{"missing node", Command{Action: ActionUpdate, NodeID: "0"}, "requires a node"},
		{"invalid node", Command{Action: ActionUpdate, NodeID: "0", Node: json.RawMessage(`[1]`)}, "invalid node"},
		{"too deep", Command{Action: ActionInsertAfter, NodeID: "0", Node: json.RawMessage(deep)}, "maximum depth"},
		{"unknown action", Command{Action: "move", NodeID: "0"}, "unknown action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			editor, store, backups, j := setup(t)
			before, _, err := store.ReadRaw(storage.Page("home"))
			require.NoError(t, err)

			tt.cmd.Target = home
			res, err := editor.Apply(tt.cmd)
			require.Error(t, err)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.want)
			assert.Equal(t, tt.cmd.NodeID, res.NodeID)

			after, _, err := store.ReadRaw(storage.Page("home"))
			require.NoError(t, err)
			assert.Equal(t, string(before), string(after))
			list, err := backups.ListBackups(storage.Page("home"))
			require.NoError(t, err)
			assert.Empty(t, list)
			assert.Empty(t, j.entries)
		})
	}
}

func TestApplyNavigationErrorsAreTyped(t *testing.T) {
	editor, _, _, _ := setup(t)
	_, err := editor.Apply(Command{Target: home, Action: ActionDelete, NodeID: "3"})
	assert.True(t, errors.Is(err, &nav.Error{Reason: nav.IndexOutOfRange}))
}

func TestApplyBadTarget(t *testing.T) {
	editor, _, _, _ := setup(t)
	for _, target := range []Target{{Kind: "page", Name: "../etc"}, {Kind: "layout"}, {Kind: "page"}} {
		res, err := editor.Apply(Command{Target: target, Action: ActionDelete, NodeID: "0"})
		assert.Error(t, err, "%+v", target)
		assert.False(t, res.Success)
	}
	_, err := editor.Apply(Command{Target: Target{Kind: "page", Name: "missing"}, Action: ActionDelete, NodeID: "0"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRevisionCheck(t *testing.T) {
	editor, store, _, _ := setup(t)
	_, rev, err := store.ReadRaw(storage.Page("home"))
	require.NoError(t, err)

	res, err := editor.Apply(Command{Target: home, Action: ActionDelete, NodeID: "0.0", Revision: rev})
	require.NoError(t, err)
	assert.NotEqual(t, rev, res.Revision)

	_, err = editor.Apply(Command{Target: home, Action: ActionDelete, NodeID: "0.0", Revision: rev})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "b", textAt(t, store, "0.0"))

	// without a revision the last writer wins
	_, err = editor.Apply(Command{Target: home, Action: ActionDelete, NodeID: "0.0"})
	require.NoError(t, err)
	assert.Equal(t, "c", textAt(t, store, "0.0"))
}

func TestApplyBacksUpPreviousContent(t *testing.T) {
	editor, store, backups, _ := setup(t)
	before, _, err := store.ReadRaw(storage.Page("home"))
	require.NoError(t, err)

	_, err = editor.Apply(Command{Target: home, Action: ActionDelete, NodeID: "0"})
	require.NoError(t, err)

	list, err := backups.ListBackups(storage.Page("home"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = backups.RestoreBackup(storage.Page("home"), list[0])
	require.NoError(t, err)
	after, _, err := store.ReadRaw(storage.Page("home"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestReplace(t *testing.T) {
	editor, store, _, j := setup(t)
	res, err := editor.Replace(Target{Kind: "menu"}, model.Structure{
		model.Tag("nav", nil, model.Component("menu-link", map[string]any{"label": "home", "path": "/"})),
	}, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, ActionReplace, res.Action)

	s, rev, err := store.Load(storage.Menu())
	require.NoError(t, err)
	assert.Equal(t, rev, res.Revision)
	assert.Len(t, s, 1)
	assert.Equal(t, []string{"menu replace "}, j.entries)

	_, err = editor.Replace(Target{Kind: "menu"}, model.Structure{}, "stale")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestReplaceSource(t *testing.T) {
	editor, store, _, _ := setup(t)
	res, err := editor.ReplaceSource(Target{Kind: "component", Name: "card"}, []byte(`{"tag":"div","children":[{"textKey":"{{title}}"}]}`), "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	s, _, err := store.Load(storage.Component("card"))
	require.NoError(t, err)
	assert.Len(t, s, 1)

	res, err = editor.ReplaceSource(home, []byte(`{"tag":"div"}`), "")
	var parseErr *model.ParseError
	assert.ErrorAs(t, err, &parseErr, "pages must be arrays")
	assert.False(t, res.Success)

	_, err = editor.ReplaceSource(home, []byte(`[{"tag":`), "")
	assert.Error(t, err)
	raw, _, err := store.ReadRaw(storage.Page("home"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"textKey": "a"`))
}

func TestCommandJSON(t *testing.T) {
	var cmd Command
	require.NoError(t, json.Unmarshal([]byte(`{
		"target": {"kind": "page", "name": "blog/intro"},
		"action": "insertAfter",
		"nodeId": "0.2",
		"node": {"textKey": "x"}
	}`), &cmd))
	assert.Equal(t, ActionInsertAfter, cmd.Action)
	assert.Equal(t, "0.2", cmd.NodeID)
	ref, err := cmd.Target.Ref()
	require.NoError(t, err)
	assert.Equal(t, storage.Page("blog/intro"), ref)
	assert.JSONEq(t, `{"textKey": "x"}`, string(cmd.Node))
}

func TestEditsKeepComponentForm(t *testing.T) {
	editor, store, _, _ := setup(t)
	card := Target{Kind: "component", Name: "card"}
	_, err := editor.ReplaceSource(card, []byte(`{"tag":"div","children":[{"textKey":"a"}]}`), "")
	require.NoError(t, err)

	res, err := editor.Apply(Command{Target: card, Action: ActionUpdate, NodeID: "0.0", Node: json.RawMessage(`{"textKey":"b"}`)})
	require.NoError(t, err)
	assert.True(t, res.Success)
	raw, _, err := store.ReadRaw(storage.Component("card"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":"div","children":[{"textKey":"b"}]}`, string(raw))

	_, err = editor.ReplaceSource(card, []byte(`[{"tag":"span"}]`), "")
	require.NoError(t, err)
	raw, _, err = store.ReadRaw(storage.Component("card"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"tag":"span"}]`, string(raw), "an array source stays an array")

	res, err = editor.Apply(Command{Target: card, Action: ActionInsertAfter, NodeID: "0", Node: json.RawMessage(`{"tag":"b"}`)})
	require.NoError(t, err)
	assert.True(t, res.Success)
	raw, _, err = store.ReadRaw(storage.Component("card"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"tag":"span"},{"tag":"b"}]`, string(raw))
}
