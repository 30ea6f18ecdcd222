package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pstuifzand/sitetree/internal/app"
	"github.com/pstuifzand/sitetree/internal/cleaner"
	"github.com/pstuifzand/sitetree/internal/edit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var siteFiles = map[string]string{
	"sitetree.toml":            "default_language = \"en\"\nlanguages = [\"en\", \"nl\"]\n",
	"pages/home/home.json":     `[{"tag":"p","children":[{"textKey":"hello"}]},{"tag":"a","attributes":{"onclick":"{{call:navigate:about}}"}}]`,
	"pages/about.json":         `[{"tag":"h1","children":[{"textKey":"__RAW__About"}]}]`,
	"pages/blog/2024/one.json": `[]`,
	"components/card.json":     `{"tag":"div","attributes":{"class":"card"}}`,
	"translations/en.json":     `{"hello":"Hello"}`,
	"translations/nl.json":     `{"hello":"Hallo"}`,
}

func newSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range siteFiles {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&rootOptions{log: zaptest.NewLogger(t).Sugar()})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--site", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPages(t *testing.T) {
	dir := newSite(t)
	out, err := run(t, dir, "", "pages")
	require.NoError(t, err)
	assert.Equal(t, "about\nblog/2024/one\nhome\n", out)

	out, err = run(t, dir, "", "pages", "--components")
	require.NoError(t, err)
	assert.Equal(t, "card\n", out)
}

func TestRender(t *testing.T) {
	dir := newSite(t)
	out, err := run(t, dir, "", "render", "component", "card")
	require.NoError(t, err)
	assert.Equal(t, "<div class=\"card\"></div>\n", out)

	out, err = run(t, dir, "", "--lang", "nl", "render", "page", "home")
	require.NoError(t, err)
	assert.Contains(t, out, "<p>Hallo</p>")

	_, err = run(t, dir, "", "render", "page", "missing")
	assert.Error(t, err)
	_, err = run(t, dir, "", "render", "widget", "x")
	assert.Error(t, err)
}

func TestEdit(t *testing.T) {
	dir := newSite(t)
	out, err := run(t, dir, "", "edit", "page", "about",
		"--action", "insertAfter", "--node-id", "0", "--node", `{"tag":"p","children":[{"textKey":"__RAW__Us"}]}`)
	require.NoError(t, err)
	var res edit.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Revision)

	out, err = run(t, dir, "", "render", "page", "about")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>About</h1><p>Us</p>")

	out, err = run(t, dir, "", "edit", "page", "about", "--action", "delete", "--node-id", "7")
	assert.Error(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "IndexOutOfRange")

	out, err = run(t, dir, "", "backups", "page", "about")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	_, err = run(t, dir, "", "restore", "page", "about")
	require.NoError(t, err)
	out, err = run(t, dir, "", "render", "page", "about")
	require.NoError(t, err)
	assert.NotContains(t, out, "<p>Us</p>")
}

func TestReplaceFromStdin(t *testing.T) {
	dir := newSite(t)
	_, err := run(t, dir, `[{"tag":"ul"}]`, "replace", "menu")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "menu.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tag": "ul"`)

	_, err = run(t, dir, `{"tag":"ul"}`, "replace", "footer")
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	dir := newSite(t)
	out, err := run(t, dir, "", "clean", "--route", "/about")
	require.NoError(t, err)
	var report cleaner.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, []string{"page home"}, report.ModifiedFiles)
	require.Len(t, report.RemovedInteractions, 1)

	_, err = run(t, dir, "", "clean")
	assert.Error(t, err)
	_, err = run(t, dir, "", "clean", "--route", "a", "--api", "b")
	assert.Error(t, err)
}

func TestBuildAndDeploy(t *testing.T) {
	dir := newSite(t)
	out, err := run(t, dir, "", "build")
	require.NoError(t, err)
	assert.Contains(t, out, "3 pages")

	out, err = run(t, dir, "", "deploy")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "deployed "))
	assert.FileExists(t, filepath.Join(dir, "public", "runtime.php"))
	assert.FileExists(t, filepath.Join(dir, "public", "pages", "about.php"))
}

func TestDeployWithoutBuilds(t *testing.T) {
	_, err := run(t, newSite(t), "", "deploy")
	assert.EqualError(t, err, "no builds to deploy")
}

func TestServeAcceptsRemoteCommands(t *testing.T) {
	dir := newSite(t)
	o := &rootOptions{siteDir: dir, log: zaptest.NewLogger(t).Sugar()}
	cfg, err := o.loadConfig()
	require.NoError(t, err)
	cfg.Audit.Path = ""
	// Unix socket paths are limited in length; t.TempDir can be too deep.
	sock, err := os.CreateTemp("", "sitetree-*.sock")
	require.NoError(t, err)
	sock.Close()
	require.NoError(t, os.Remove(sock.Name()))
	t.Cleanup(func() { os.Remove(sock.Name()) })
	cfg.Serve.Socket = sock.Name()

	site, err := app.Open(dir, cfg, o.log)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, site, "127.0.0.1:0") }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(sock.Name())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	out, err := run(t, dir, "", "--config", writeConfig(t, sock.Name()), "edit", "page", "about", "--action", "delete", "--node-id", "0", "--remote")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"success": true`)

	data, err := os.ReadFile(filepath.Join(dir, "pages", "about.json"))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func writeConfig(t *testing.T, socketPath string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sitetree.toml")
	content := "default_language = \"en\"\nlanguages = [\"en\", \"nl\"]\n[serve]\nsocket = \"" + socketPath + "\"\n"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}
