package ui

import (
	"context"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexmate/internal/core"
	"codexmate/internal/logger"
	"codexmate/internal/node"
	"codexmate/internal/paths"
)

func newTestModel(t *testing.T) (model, *node.Manager) {
	t.Helper()
	mgr := node.Open(paths.For(t.TempDir()), logger.Discard())
	return newModel(context.Background(), mgr, nil), mgr
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m model, keys ...string) model {
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(model)
	}
	return m
}

func seed(t *testing.T, mgr *node.Manager, name, key string) {
	t.Helper()
	_, err := mgr.Upsert(context.Background(), name, map[string]any{core.FieldBaseURL: "https://" + name + ".example"}, key)
	require.NoError(t, err)
}

func TestModel_MissingSettings(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Contains(t, m.status, "config.toml not found")
	assert.Contains(t, m.View(), "(none)")
}

func TestModel_AddProvider(t *testing.T) {
	m, mgr := newTestModel(t)

	m = press(m, "a", "demo", "tab", "https://demo.example/v1", "tab", "tab", "sk-demo-4321", "enter")
	assert.Equal(t, modeTable, m.m)
	assert.Equal(t, "saved demo", m.status)

	nodes, err := mgr.List(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "https://demo.example/v1", nodes[0].Provider.BaseURL)
	assert.True(t, nodes[0].HasCredential)

	view := m.View()
	assert.Contains(t, view, "demo")
	assert.Contains(t, view, "****4321")
	assert.NotContains(t, view, "sk-demo-4321")
}

func TestModel_AddProviderValidation(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(m, "a", "demo", "enter")
	assert.Equal(t, modeForm, m.m)
	assert.Contains(t, m.formErr, "base_url")

	m = press(m, "esc")
	assert.Equal(t, modeTable, m.m)
}

func TestModel_EditKeepsName(t *testing.T) {
	m, mgr := newTestModel(t)
	seed(t, mgr, "a", "")
	m = press(m, "r", "e")
	require.Equal(t, modeForm, m.m)
	assert.Equal(t, "a", m.editing)
	assert.Equal(t, fURL, m.focus)

	m.form[fURL].SetValue("https://edited.example")
	m = press(m, "enter")
	assert.Equal(t, "saved a", m.status)

	nodes, err := mgr.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://edited.example", nodes[0].Provider.BaseURL)
}

func TestModel_SwitchOnEnter(t *testing.T) {
	m, mgr := newTestModel(t)
	seed(t, mgr, "a", "ka")
	seed(t, mgr, "b", "")
	m = press(m, "r")

	m = press(m, "down", "enter")
	assert.True(t, strings.HasPrefix(m.status, "switch failed"), m.status)

	m = press(m, "k", "enter")
	assert.Equal(t, "switched to a", m.status)
	assert.Equal(t, "ka", mgr.Auth().SecretKey())
	assert.True(t, m.tabs[tabProviders].rows[0].active)
}

func TestModel_SetKey(t *testing.T) {
	m, mgr := newTestModel(t)
	seed(t, mgr, "a", "")
	m = press(m, "r", "s", "sk-new-0000", "enter")
	assert.Equal(t, "stored key for a", m.status)
	assert.Equal(t, "sk-new-0000", mgr.AllCredentials(context.Background())["a"].SecretKey)
}

func TestModel_DeleteActiveNeedsForce(t *testing.T) {
	m, mgr := newTestModel(t)
	seed(t, mgr, "a", "ka")
	require.NoError(t, mgr.Switch(context.Background(), "a"))
	m = press(m, "r")

	m = press(m, "d", "y")
	assert.True(t, strings.HasPrefix(m.status, "delete failed"), m.status)
	assert.Len(t, m.tabs[tabProviders].rows, 1)

	m = press(m, "d", "F")
	assert.Equal(t, "deleted a", m.status)
	assert.Empty(t, m.tabs[tabProviders].rows)
	assert.NotContains(t, mgr.AllCredentials(context.Background()), "a")
}

func TestModel_ServersTab(t *testing.T) {
	m, mgr := newTestModel(t)
	m = press(m, "2", "c")
	assert.Equal(t, "added context7", m.status)

	servers, err := mgr.Servers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Contains(t, m.View(), "@upstash/context7-mcp")

	m = press(m, "d", "n")
	assert.Equal(t, "cancelled", m.status)
	m = press(m, "d", "y")
	assert.Equal(t, "deleted context7", m.status)
}

func TestModel_ReloadOnChange(t *testing.T) {
	m, mgr := newTestModel(t)
	seed(t, mgr, "late", "")

	next, _ := m.Update(changedMsg{path: mgr.Settings().Path()})
	m = next.(model)
	require.Len(t, m.tabs[tabProviders].rows, 1)
	assert.Equal(t, "late", m.tabs[tabProviders].rows[0].key)
	assert.Contains(t, m.status, "reloaded")
}

func TestModel_VersionMessage(t *testing.T) {
	m, _ := newTestModel(t)
	next, _ := m.Update(verMsg{text: "Not installed", installed: false})
	m = next.(model)
	assert.Contains(t, m.View(), "codex Not installed")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "é", truncate("éé", 1))
}

func TestModel_EditOnCorruptSettings(t *testing.T) {
	m, mgr := newTestModel(t)
	seed(t, mgr, "a", "")
	m = press(m, "r")
	require.NoError(t, os.WriteFile(mgr.Settings().Path(), []byte("model_providers = = 1\n"), 0o600))

	m = press(m, "e")
	assert.Equal(t, modeTable, m.m)
	assert.True(t, strings.HasPrefix(m.status, "load failed: "), m.status)
}

func TestModel_CredentialOnlyRow(t *testing.T) {
	m, mgr := newTestModel(t)
	seed(t, mgr, "b", "")
	require.NoError(t, mgr.SetCredential(context.Background(), "a", "ka"))
	m = press(m, "r")

	rows := m.tabs[tabProviders].rows
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].key)
	assert.Equal(t, []string{"", "a", "", "", "yes"}, rows[0].cells)

	m = press(m, "e")
	require.Equal(t, modeForm, m.m)
	assert.Equal(t, "a", m.editing)
	m.form[fURL].SetValue("https://a.example")
	m = press(m, "enter")
	assert.Equal(t, "saved a", m.status)

	nodes, err := mgr.List(context.Background())
	require.NoError(t, err)
	require.NotNil(t, nodes[0].Provider)
	assert.Equal(t, "https://a.example", nodes[0].Provider.BaseURL)
}
