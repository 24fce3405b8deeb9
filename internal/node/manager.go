// Package node implements the provider-centric operations on top of the
// settings and credential stores.
//
// Every operation loads the latest on-disk state, applies its change and
// writes back. Operations touching two files (settings and credentials, or
// settings and auth.json) perform two independent atomic writes; a crash in
// between leaves them out of step. Calls within one process are serialized.
package node

import (
	"context"
	"strings"
	"sync"

	"codexmate/internal/core"
	"codexmate/internal/fsx"
	"codexmate/internal/logger"
	"codexmate/internal/paths"
	"codexmate/internal/store"
)

// Manager composes the settings store, the credential store and the
// active-credential file.
type Manager struct {
	mu       sync.Mutex
	settings *store.SettingsStore
	creds    *store.CredentialStore
	auth     *store.AuthFile
	log      logger.Logger
}

// New returns a Manager over the given stores.
func New(settings *store.SettingsStore, creds *store.CredentialStore, auth *store.AuthFile, l logger.Logger) *Manager {
	if l == nil {
		l = logger.Default()
	}
	return &Manager{settings: settings, creds: creds, auth: auth, log: l}
}

// Open wires a Manager for the files of a layout.
func Open(layout paths.Layout, l logger.Logger) *Manager {
	if l == nil {
		l = logger.Default()
	}
	w := fsx.NewWriter(l)
	return New(
		store.NewSettingsStore(layout.Settings, w, l.With("file", "settings")),
		store.NewCredentialStore(layout.Credentials, w, l.With("file", "credentials")),
		store.NewAuthFile(layout.Auth, w, l.With("file", "auth")),
		l,
	)
}

func (m *Manager) Settings() *store.SettingsStore      { return m.settings }
func (m *Manager) Credentials() *store.CredentialStore { return m.creds }
func (m *Manager) Auth() *store.AuthFile               { return m.auth }

func (m *Manager) logFor(ctx context.Context) logger.Logger {
	if ctx == nil {
		return m.log
	}
	if l := logger.FromContext(ctx); l != logger.Default() {
		return l
	}
	return m.log
}

// FullSettings returns config.toml as a dynamic tree.
func (m *Manager) FullSettings(ctx context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.Document()
}

// AllCredentials returns the credential store contents.
func (m *Manager) AllCredentials(ctx context.Context) map[string]core.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds.Load()
}

// List returns every name known to either the settings or the credential
// store, sorted. Provider is nil for names that only have a credential.
func (m *Manager) List(ctx context.Context) ([]core.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	providers, active, err := m.settings.ListProviders()
	if err != nil {
		return nil, err
	}
	creds := m.creds.Load()
	byName := make(map[string]*core.Provider, len(providers))
	for i := range providers {
		byName[providers[i].Name] = &providers[i]
	}
	for name := range creds {
		if _, ok := byName[name]; !ok {
			byName[name] = nil
		}
	}
	out := make([]core.Node, 0, len(byName))
	for _, name := range core.SortedKeys(byName) {
		out = append(out, core.Node{
			Name:          name,
			IsActive:      name == active,
			HasCredential: creds[name].SecretKey != "",
			Provider:      byName[name],
		})
	}
	return out, nil
}

// Switch materializes the provider's credential into auth.json and makes it
// the active provider.
func (m *Manager) Switch(ctx context.Context, name string) error {
	const op = "switch provider"
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.logFor(ctx)

	if err := core.ValidateName(op, "provider name", name); err != nil {
		return err
	}
	cred, ok := m.creds.Load()[name]
	if !ok {
		return core.NotFoundf(op, "no credential stored for %s", name)
	}
	if cred.SecretKey == "" {
		return core.NotFoundf(op, "credential for %s has no %s", name, core.SecretKeyField)
	}
	if err := m.auth.Write(cred.SecretKey); err != nil {
		return err
	}
	known, err := m.settings.SetActive(name)
	if err != nil {
		log.Error("auth.json updated but settings not saved", "provider", name, "error", err)
		return err
	}
	if !known {
		log.Warn("active provider has no provider record", "provider", name)
	}
	log.Info("switched provider", "provider", name)
	return nil
}

// Upsert merges fields into the provider record. A non-blank credential is
// stored alongside; a blank one is ignored.
func (m *Manager) Upsert(ctx context.Context, name string, fields map[string]any, credential string) (core.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.logFor(ctx)

	p, created, err := m.settings.UpsertProvider(name, fields)
	if err != nil {
		return core.Provider{}, err
	}
	log.Info("provider saved", "provider", name, "created", created)

	if strings.TrimSpace(credential) == "" {
		return p, nil
	}
	if err := m.creds.Set(name, credential); err != nil {
		return p, err
	}
	return p, nil
}

// Plan reports the provider record before and after a prospective Upsert.
func (m *Manager) Plan(ctx context.Context, name string, fields map[string]any) (before, after map[string]any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.PlanProvider(name, fields)
}

// Delete removes the provider record and then its credential. Deleting the
// active provider requires force.
func (m *Manager) Delete(ctx context.Context, name string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.logFor(ctx)

	existed, err := m.settings.DeleteProvider(name, force)
	if err != nil {
		return err
	}
	hadCred, err := m.creds.Remove(name)
	if err != nil {
		log.Error("provider removed but credential left behind", "provider", name, "error", err)
		return err
	}
	log.Info("provider deleted", "provider", name, "record", existed, "credential", hadCred)
	return nil
}

// SetCredential replaces the stored secret key for name.
func (m *Manager) SetCredential(ctx context.Context, name, secretKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds.Set(name, secretKey)
}

// Servers returns the auxiliary servers sorted by name.
func (m *Manager) Servers(ctx context.Context) ([]core.NamedServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.ListServers()
}

func (m *Manager) UpsertServer(ctx context.Context, name, command string, args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.UpsertServer(name, command, args)
}

func (m *Manager) DeleteServer(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.DeleteServer(name)
}

// Context7 name and command line of the quick-add MCP server.
const (
	Context7Name    = "context7"
	Context7Command = "npx"
)

var Context7Args = []string{"-y", "@upstash/context7-mcp"}

// AddContext7 registers the context7 MCP server.
func (m *Manager) AddContext7(ctx context.Context) error {
	return m.UpsertServer(ctx, Context7Name, Context7Command, Context7Args)
}

// Projects returns the trusted projects sorted by path.
func (m *Manager) Projects(ctx context.Context) ([]core.NamedProject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.ListProjects()
}

func (m *Manager) TrustProject(ctx context.Context, path, level string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.UpsertProject(path, level)
}

func (m *Manager) DeleteProject(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.DeleteProject(path)
}

// ReadRaw returns config.toml as text.
func (m *Manager) ReadRaw(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.ReadRaw()
}

// WriteRaw replaces config.toml with text once it parses.
func (m *Manager) WriteRaw(ctx context.Context, text string, backup bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.WriteRaw(text, backup)
}
