package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"uistudio/internal/bootstrap"
	"uistudio/internal/config"
	httptransport "uistudio/internal/transport/http"
)

func startServer(t *testing.T) string {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.App.GinMode = "test"
	cfg.Auth.JWTSecret = "test-secret"

	app, err := bootstrap.Assemble(cfg, nil, bootstrap.Parts{MySQL: db})
	require.NoError(t, err)

	srv := httptest.NewServer(httptransport.NewRouter(app))
	t.Cleanup(srv.Close)
	return srv.URL
}

type harness struct {
	url       string
	tokenFile string
}

func newHarness(t *testing.T) *harness {
	return &harness{
		url:       startServer(t),
		tokenFile: filepath.Join(t.TempDir(), "token"),
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--url", h.url, "--token-file", h.tokenFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateWritesPreviewAndExport(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "register", "alice", "alice@example.com", "-p", "password123")
	require.NoError(t, err, out)
	assert.Contains(t, out, "registered alice")

	token, err := tokenFile(h.tokenFile).Load()
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	dir := t.TempDir()
	out, err = h.run(t, "generate", "a pricing card", "-o", dir, "--theme", "dark")
	require.NoError(t, err, out)
	assert.Contains(t, out, "New Session")

	doc, err := os.ReadFile(filepath.Join(dir, previewFileName))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "ReactDOM.createRoot")

	bundle, err := os.ReadFile(filepath.Join(dir, "generated-component.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(bundle), "JSX:\n"))

	out, err = h.run(t, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "New Session")

	out, err = h.run(t, "sessions", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "theme dark")
	assert.Contains(t, out, "[user] a pricing card")
	assert.Contains(t, out, "[assistant] I've generated a component")

	archivePath := filepath.Join(t.TempDir(), "out.zip")
	_, err = h.run(t, "export", "1", "--zip", "-o", archivePath)
	require.NoError(t, err)
	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer zr.Close()
	assert.Len(t, zr.File, 3)
}

func TestLoginAndWhoami(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "register", "bob", "bob@example.com", "-p", "password123")
	require.NoError(t, err)
	require.NoError(t, os.Remove(h.tokenFile))

	_, err = h.run(t, "whoami")
	assert.Error(t, err)

	_, err = h.run(t, "login", "bob", "-p", "wrong-password")
	assert.Error(t, err)

	out, err := h.run(t, "login", "bob", "-p", "password123")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as bob")

	out, err = h.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "bob <bob@example.com>")
}

func TestSessionCommands(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "register", "carol", "carol@example.com", "-p", "password123")
	require.NoError(t, err)

	out, err := h.run(t, "sessions", "create", "Landing page")
	require.NoError(t, err)
	assert.Contains(t, out, "created session 1")

	out, err = h.run(t, "preview", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "ReactDOM.createRoot")

	_, err = h.run(t, "export", "1")
	assert.Error(t, err)

	_, err = h.run(t, "sessions", "delete", "1")
	require.NoError(t, err)

	_, err = h.run(t, "sessions", "show", "1")
	assert.Error(t, err)

	_, err = h.run(t, "sessions", "delete", "abc")
	assert.Error(t, err)
}

func TestTokenFileMissingIsEmpty(t *testing.T) {
	f := tokenFile(filepath.Join(t.TempDir(), "nested", "token"))
	token, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, f.Save("abc"))
	token, err = f.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestNoAutoSaveStillSavesOnExit(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "register", "erin", "erin@example.com", "-p", "password123")
	require.NoError(t, err)

	out, err := h.run(t, "--no-autosave", "generate", "a footer", "-o", t.TempDir())
	require.NoError(t, err, out)

	out, err = h.run(t, "sessions", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "[user] a footer")
	assert.Contains(t, out, "[assistant] I've generated a component")
}

func TestAutoSaveSetting(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	tokens := filepath.Join(t.TempDir(), "token")

	e := &env{}
	require.NoError(t, e.init(&rootOptions{baseURL: "http://127.0.0.1:1", tokenFile: tokens}, io.Discard))
	sync, _, err := e.studio()
	require.NoError(t, err)
	assert.True(t, sync.AutoSaveEnabled())

	e = &env{}
	require.NoError(t, e.init(&rootOptions{baseURL: "http://127.0.0.1:1", tokenFile: tokens, noAutoSave: true}, io.Discard))
	sync, _, err = e.studio()
	require.NoError(t, err)
	assert.False(t, sync.AutoSaveEnabled())
}
