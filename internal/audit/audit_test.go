package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pstuifzand/sitetree/internal/cleaner"
	"github.com/pstuifzand/sitetree/internal/edit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func open(t *testing.T, path string) *Journal {
	t.Helper()
	j, err := Open(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordEdit(t *testing.T) {
	j := open(t, ":memory:")
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return at }

	require.NoError(t, j.RecordEdit("page home", edit.Result{Success: true, Action: edit.ActionDelete, NodeID: "0.1", Revision: "abc"}))
	require.NoError(t, j.RecordEdit("menu", edit.Result{Success: true, Action: edit.ActionReplace, Revision: "def"}))
	require.NoError(t, j.RecordEdit("page home", edit.Result{Success: true, Action: edit.ActionInsertAfter, NodeID: "0", Revision: "ghi"}))

	edits, err := j.RecentEdits("", 10)
	require.NoError(t, err)
	require.Len(t, edits, 3)
	assert.Equal(t, "insertAfter", edits[0].Action)
	assert.Equal(t, "menu", edits[1].Target)
	assert.Equal(t, at, edits[2].At)

	edits, err = j.RecentEdits("page home", 1)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, Edit{ID: 3, At: at, Target: "page home", Action: "insertAfter", NodeID: "0", Revision: "ghi"}, edits[0])
}

func TestRecordRemovals(t *testing.T) {
	j := open(t, filepath.Join(t.TempDir(), "state", "audit.db"))
	removals := []cleaner.Removal{
		{Document: "page home", NodeID: "0.0", Attribute: "onclick", Token: "{{call:fetch:@shop/list}}", Deleted: true},
		{Document: "page-events home", Attribute: "load", Token: "{{call:fetch:@shop/list,#out}}"},
	}
	require.NoError(t, j.RecordRemovals("endpoint @shop/list", removals))
	require.NoError(t, j.RecordRemovals("endpoint @shop/list", nil))

	got, err := j.RecentRemovals(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, removals[1], got[0].Removal)
	assert.Equal(t, removals[0], got[1].Removal)
	assert.Equal(t, "endpoint @shop/list", got[1].Pattern)
	assert.False(t, got[0].At.IsZero())
}

func TestJournalPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	j, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, j.RecordEdit("footer", edit.Result{Action: edit.ActionUpdate, NodeID: "0"}))
	require.NoError(t, j.Close())

	j = open(t, path)
	edits, err := j.RecentEdits("footer", 5)
	require.NoError(t, err)
	assert.Len(t, edits, 1)
}

func TestJournalImplementsCollaborators(t *testing.T) {
	var _ cleaner.Journal = (*Journal)(nil)
	var _ edit.Journal = (*Journal)(nil)
}
