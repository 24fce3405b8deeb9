package node

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexmate/internal/core"
	"codexmate/internal/logger"
	"codexmate/internal/paths"
)

func newManager(t *testing.T) (*Manager, paths.Layout) {
	t.Helper()
	layout := paths.For(t.TempDir())
	return Open(layout, logger.Discard()), layout
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestUpsert_WithCredential(t *testing.T) {
	m, layout := newManager(t)
	ctx := context.Background()

	p, err := m.Upsert(ctx, "a", map[string]any{core.FieldBaseURL: "https://a.example"}, "  sk-a  ")
	require.NoError(t, err)
	assert.Equal(t, "a", p.Name)
	assert.Equal(t, "responses", p.WireAPI)

	assert.Equal(t, "sk-a", m.AllCredentials(ctx)["a"].SecretKey)
	assert.FileExists(t, layout.Settings)
	assert.FileExists(t, layout.Credentials)
}

func TestUpsert_BlankCredentialSkipped(t *testing.T) {
	m, layout := newManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, "a", map[string]any{core.FieldBaseURL: "https://a.example"}, "   ")
	require.NoError(t, err)
	assert.Empty(t, m.AllCredentials(ctx))
	assert.NoFileExists(t, layout.Credentials)
}

func TestUpsert_NewWithoutBaseURL(t *testing.T) {
	m, layout := newManager(t)
	_, err := m.Upsert(context.Background(), "new", map[string]any{}, "")
	assert.True(t, core.IsKind(err, core.KindValidation))
	assert.NoFileExists(t, layout.Settings)
}

func TestList(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, "b", map[string]any{core.FieldBaseURL: "https://b.example"}, "kb")
	require.NoError(t, err)
	_, err = m.Upsert(ctx, "a", map[string]any{core.FieldBaseURL: "https://a.example"}, "")
	require.NoError(t, err)
	require.NoError(t, m.Switch(ctx, "b"))

	nodes, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.Equal(t, "a", nodes[0].Name)
	assert.False(t, nodes[0].IsActive)
	assert.False(t, nodes[0].HasCredential)
	assert.Equal(t, "https://a.example", nodes[0].Provider.BaseURL)

	assert.Equal(t, "b", nodes[1].Name)
	assert.True(t, nodes[1].IsActive)
	assert.True(t, nodes[1].HasCredential)
}

func TestList_MissingSettingsFails(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.List(context.Background())
	assert.True(t, core.IsKind(err, core.KindIO))
}

func TestSwitch_NoCredential(t *testing.T) {
	m, layout := newManager(t)
	ctx := context.Background()
	_, err := m.Upsert(ctx, "p", map[string]any{core.FieldBaseURL: "https://p.example"}, "")
	require.NoError(t, err)

	err = m.Switch(ctx, "p")
	assert.True(t, core.IsKind(err, core.KindNotFound))
	assert.NoFileExists(t, layout.Auth)
}

func TestSwitch_EmptySecret(t *testing.T) {
	m, layout := newManager(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(layout.Credentials), 0o700))
	require.NoError(t, os.WriteFile(layout.Credentials, []byte(`{"p": {"note": "no key"}}`), 0o600))

	err := m.Switch(context.Background(), "p")
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestSwitch_MaterializesCredential(t *testing.T) {
	m, layout := newManager(t)
	ctx := context.Background()
	_, err := m.Upsert(ctx, "p", map[string]any{core.FieldBaseURL: "https://p.example"}, "k")
	require.NoError(t, err)

	require.NoError(t, m.Switch(ctx, "p"))

	assert.Equal(t, map[string]any{core.SecretKeyField: "k"}, readJSON(t, layout.Auth))
	tree, err := m.Settings().Load()
	require.NoError(t, err)
	assert.Equal(t, "p", tree.ActiveProvider)
}

func TestSwitch_DanglingProvider(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	require.NoError(t, m.SetCredential(ctx, "ghost", "kg"))

	require.NoError(t, m.Switch(ctx, "ghost"))
	nodes, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "ghost", nodes[0].Name)
	assert.True(t, nodes[0].IsActive)
	assert.True(t, nodes[0].HasCredential)
	assert.Nil(t, nodes[0].Provider)
}

func TestList_IncludesCredentialOnlyNames(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, err := m.Upsert(ctx, "b", map[string]any{core.FieldBaseURL: "https://b.example"}, "")
	require.NoError(t, err)
	require.NoError(t, m.SetCredential(ctx, "a", "ka"))
	require.NoError(t, m.SetCredential(ctx, "c", "kc"))

	nodes, err := m.List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Nil(t, nodes[0].Provider)
	assert.NotNil(t, nodes[1].Provider)
	assert.False(t, nodes[1].HasCredential)
}

func TestPaddedNamesRejected(t *testing.T) {
	m, layout := newManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, " p ", map[string]any{core.FieldBaseURL: "https://p.example"}, "sk-1234")
	assert.True(t, core.IsKind(err, core.KindValidation))
	assert.NoFileExists(t, layout.Settings)
	assert.Empty(t, m.AllCredentials(ctx))

	assert.True(t, core.IsKind(m.SetCredential(ctx, " p", "sk-1234"), core.KindValidation))
	assert.True(t, core.IsKind(m.Switch(ctx, "p "), core.KindValidation))

	_, err = m.Upsert(ctx, "p", map[string]any{core.FieldBaseURL: "https://p.example"}, "sk-1234")
	require.NoError(t, err)
	nodes, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].HasCredential)
	require.NoError(t, m.Switch(ctx, "p"))
}

func TestDelete_ActiveProvider(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, err := m.Upsert(ctx, "a", map[string]any{core.FieldBaseURL: "https://a.example"}, "ka")
	require.NoError(t, err)
	require.NoError(t, m.Switch(ctx, "a"))

	err = m.Delete(ctx, "a", false)
	assert.True(t, core.IsKind(err, core.KindValidation))
	assert.Contains(t, m.AllCredentials(ctx), "a")

	require.NoError(t, m.Delete(ctx, "a", true))
	nodes, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.NotContains(t, m.AllCredentials(ctx), "a")
}

func TestDelete_RemovesOrphanCredential(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, err := m.Upsert(ctx, "keep", map[string]any{core.FieldBaseURL: "https://k.example"}, "kk")
	require.NoError(t, err)
	require.NoError(t, m.SetCredential(ctx, "orphan", "ko"))

	nodes, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	require.NoError(t, m.Delete(ctx, "orphan", false))
	creds := m.AllCredentials(ctx)
	assert.NotContains(t, creds, "orphan")
	assert.Contains(t, creds, "keep")
}

func TestPlan(t *testing.T) {
	m, layout := newManager(t)
	ctx := context.Background()
	before, after, err := m.Plan(ctx, "a", map[string]any{core.FieldBaseURL: "https://a.example"})
	require.NoError(t, err)
	assert.Nil(t, before)
	assert.Equal(t, "responses", after[core.FieldWireAPI])
	assert.NoFileExists(t, layout.Settings)
}

func TestServersAndContext7(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.AddContext7(ctx))
	require.NoError(t, m.UpsertServer(ctx, "alpha", "uvx", []string{"tool"}))

	servers, err := m.Servers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "alpha", servers[0].Name)
	assert.Equal(t, Context7Name, servers[1].Name)
	assert.Equal(t, "npx", servers[1].Command)
	assert.Equal(t, []string{"-y", "@upstash/context7-mcp"}, servers[1].Args)

	require.NoError(t, m.DeleteServer(ctx, "alpha"))
	assert.True(t, core.IsKind(m.DeleteServer(ctx, "alpha"), core.KindNotFound))
}

func TestProjects(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, m.TrustProject(ctx, dir, ""))
	projects, err := m.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "trusted", projects[0].TrustLevel)

	require.NoError(t, m.DeleteProject(ctx, dir))
	projects, err = m.Projects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestRawRoundTrip(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	text, err := m.ReadRaw(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", text)

	require.NoError(t, m.WriteRaw(ctx, "model = \"gpt-5\"", false))
	text, err = m.ReadRaw(ctx)
	require.NoError(t, err)
	assert.Equal(t, "model = \"gpt-5\"\n", text)

	doc, err := m.FullSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", doc["model"])

	assert.True(t, core.IsKind(m.WriteRaw(ctx, "[broken", false), core.KindParse))
}

func TestConcurrentUpserts(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := m.Upsert(ctx, name, map[string]any{core.FieldBaseURL: "https://" + name + ".example"}, "k-"+name)
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	nodes, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, len(names))
	for _, n := range nodes {
		assert.True(t, n.HasCredential, n.Name)
	}
}
