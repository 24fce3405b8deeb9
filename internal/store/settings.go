package store

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"codexmate/internal/codec"
	"codexmate/internal/core"
	"codexmate/internal/fsx"
	"codexmate/internal/logger"
)

const settingsMode fs.FileMode = 0o600

// SettingsStore reads and rewrites config.toml. Every call goes back to disk;
// nothing is cached between calls.
type SettingsStore struct {
	path string
	w    *fsx.Writer
	log  logger.Logger
}

// NewSettingsStore returns a store for the settings file at path.
func NewSettingsStore(path string, w *fsx.Writer, l logger.Logger) *SettingsStore {
	if l == nil {
		l = logger.Default()
	}
	if w == nil {
		w = fsx.NewWriter(l)
	}
	return &SettingsStore{path: path, w: w, log: l}
}

// Path returns the settings file location.
func (s *SettingsStore) Path() string { return s.path }

// Load parses the settings file. A missing or unparsable file is an error.
func (s *SettingsStore) Load() (*core.Settings, error) {
	doc, err := s.loadDoc()
	if err != nil {
		return nil, err
	}
	return settingsFromDoc(doc), nil
}

func (s *SettingsStore) loadDoc() (map[string]any, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, core.IOError("load settings", err)
	}
	return codec.DecodeTOML(s.path, b)
}

// loadForUpdate is Load except that a missing file yields an empty tree, so
// the first mutation can create it.
func (s *SettingsStore) loadForUpdate() (*core.Settings, error) {
	t, err := s.Load()
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		s.log.Debug("settings file missing, starting empty", "path", s.path)
		return core.NewSettings(), nil
	}
	return t, err
}

// Save serializes the tree and writes it atomically. It refuses to replace a
// collection key that holds a non-table value with records.
func (s *SettingsStore) Save(t *core.Settings) error {
	for key, n := range map[string]int{
		core.KeyProviders: len(t.Providers),
		core.KeyServers:   len(t.Servers),
		core.KeyProjects:  len(t.Projects),
	} {
		if _, clash := t.Extra[key]; clash && n+len(t.Stray[key]) > 0 {
			return core.Validationf("save settings", "%s in %s is not a table; fix it by hand first", key, s.path)
		}
	}
	b, err := codec.EncodeTOML(settingsToDoc(t))
	if err != nil {
		return core.IOError("save settings", err)
	}
	if _, err := s.w.Write(s.path, b, settingsMode); err != nil {
		return core.IOError("save settings", err)
	}
	return nil
}

// Document returns the full settings tree in its dynamic form.
func (s *SettingsStore) Document() (map[string]any, error) {
	doc, err := s.loadDoc()
	if err != nil {
		return nil, err
	}
	return codec.ToDynamic(doc).(map[string]any), nil
}

// ListProviders returns provider records sorted by name.
func (s *SettingsStore) ListProviders() ([]core.Provider, string, error) {
	t, err := s.Load()
	if err != nil {
		return nil, "", err
	}
	out := make([]core.Provider, 0, len(t.Providers))
	for _, name := range core.SortedKeys(t.Providers) {
		p := t.Providers[name]
		p.Name = name
		out = append(out, p)
	}
	return out, t.ActiveProvider, nil
}

// ListServers returns auxiliary servers sorted by name.
func (s *SettingsStore) ListServers() ([]core.NamedServer, error) {
	t, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]core.NamedServer, 0, len(t.Servers))
	for _, name := range core.SortedKeys(t.Servers) {
		out = append(out, core.NamedServer{Name: name, Server: t.Servers[name]})
	}
	return out, nil
}

// ListProjects returns trusted projects sorted by path.
func (s *SettingsStore) ListProjects() ([]core.NamedProject, error) {
	t, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]core.NamedProject, 0, len(t.Projects))
	for _, path := range core.SortedKeys(t.Projects) {
		out = append(out, core.NamedProject{Path: path, Project: t.Projects[path]})
	}
	return out, nil
}

// MergeProvider overlays fields onto the existing record (if any). The name
// always mirrors the key, wire_api falls back to its default and a new record
// needs a valid base_url.
func MergeProvider(op string, existing *core.Provider, name string, fields map[string]any) (core.Provider, error) {
	if err := core.ValidateName(op, "provider name", name); err != nil {
		return core.Provider{}, err
	}
	if err := checkFieldTypes(op, fields); err != nil {
		return core.Provider{}, err
	}
	m := map[string]any{}
	if existing != nil {
		m = ProviderToMap(*existing)
	}
	for k, v := range fields {
		m[k] = v
	}
	m[core.FieldName] = name
	if w, _ := m[core.FieldWireAPI].(string); w == "" {
		m[core.FieldWireAPI] = core.DefaultWireAPI
	}
	merged := ProviderFromMap(m)

	_, touched := fields[core.FieldBaseURL]
	if existing == nil || touched {
		if err := core.ValidateBaseURL(op, merged.BaseURL); err != nil {
			return core.Provider{}, err
		}
	}
	return merged, nil
}

func checkFieldTypes(op string, fields map[string]any) error {
	for _, k := range []string{core.FieldName, core.FieldBaseURL, core.FieldWireAPI} {
		if v, ok := fields[k]; ok {
			if _, isStr := v.(string); !isStr {
				return core.Validationf(op, "%s must be a string", k)
			}
		}
	}
	if v, ok := fields[core.FieldRequiresAuth]; ok {
		if _, isBool := v.(bool); !isBool {
			return core.Validationf(op, "%s must be a boolean", core.FieldRequiresAuth)
		}
	}
	return nil
}

// PlanProvider computes the merged record without writing. before is nil
// when the provider does not exist yet.
func (s *SettingsStore) PlanProvider(name string, fields map[string]any) (before, after map[string]any, err error) {
	const op = "plan provider"
	t, err := s.loadForUpdate()
	if err != nil {
		return nil, nil, err
	}
	var existing *core.Provider
	if p, ok := t.Providers[name]; ok {
		existing = &p
		before = ProviderToMap(p)
	}
	merged, err := MergeProvider(op, existing, name, fields)
	if err != nil {
		return nil, nil, err
	}
	return before, ProviderToMap(merged), nil
}

// UpsertProvider merges fields into the named provider and saves. It reports
// whether the provider was created.
func (s *SettingsStore) UpsertProvider(name string, fields map[string]any) (core.Provider, bool, error) {
	const op = "upsert provider"
	t, err := s.loadForUpdate()
	if err != nil {
		return core.Provider{}, false, err
	}
	var existing *core.Provider
	if p, ok := t.Providers[name]; ok {
		existing = &p
	}
	merged, err := MergeProvider(op, existing, name, fields)
	if err != nil {
		return core.Provider{}, false, err
	}
	t.Providers[name] = merged
	if err := s.Save(t); err != nil {
		return core.Provider{}, false, err
	}
	return merged, existing == nil, nil
}

// DeleteProvider removes the provider. Deleting the active provider requires
// force. It reports whether the provider existed.
func (s *SettingsStore) DeleteProvider(name string, force bool) (bool, error) {
	const op = "delete provider"
	if err := core.ValidateName(op, "provider name", name); err != nil {
		return false, err
	}
	t, err := s.loadForUpdate()
	if err != nil {
		return false, err
	}
	if name == t.ActiveProvider && !force {
		return false, core.Validationf(op, "%s is the active provider; switch first or force", name)
	}
	if _, ok := t.Providers[name]; !ok {
		return false, nil
	}
	delete(t.Providers, name)
	return true, s.Save(t)
}

// SetActive points model_provider at name. It reports whether a provider
// record of that name exists.
func (s *SettingsStore) SetActive(name string) (bool, error) {
	t, err := s.loadForUpdate()
	if err != nil {
		return false, err
	}
	_, known := t.Providers[name]
	t.ActiveProvider = name
	return known, s.Save(t)
}

// UpsertServer replaces the whole server record.
func (s *SettingsStore) UpsertServer(name, command string, args []string) error {
	const op = "upsert server"
	if err := core.ValidateName(op, "server name", name); err != nil {
		return err
	}
	if strings.TrimSpace(command) == "" {
		return core.Validationf(op, "command is required")
	}
	t, err := s.loadForUpdate()
	if err != nil {
		return err
	}
	if args == nil {
		args = []string{}
	}
	t.Servers[name] = core.Server{Command: command, Args: args}
	return s.Save(t)
}

// DeleteServer removes a server record; a missing one is NotFound.
func (s *SettingsStore) DeleteServer(name string) error {
	t, err := s.loadForUpdate()
	if err != nil {
		return err
	}
	if _, ok := t.Servers[name]; !ok {
		return core.NotFoundf("delete server", "mcp server not found: %s", name)
	}
	delete(t.Servers, name)
	return s.Save(t)
}

// UpsertProject replaces the project record for an absolute path.
func (s *SettingsStore) UpsertProject(path, level string) error {
	const op = "upsert project"
	if err := core.ValidateProjectPath(op, path); err != nil {
		return err
	}
	level = strings.TrimSpace(level)
	if level == "" {
		level = core.DefaultTrustLevel
	}
	t, err := s.loadForUpdate()
	if err != nil {
		return err
	}
	t.Projects[path] = core.Project{TrustLevel: level}
	return s.Save(t)
}

// DeleteProject removes a project record. Removing an unknown path is a no-op.
func (s *SettingsStore) DeleteProject(path string) error {
	t, err := s.loadForUpdate()
	if err != nil {
		return err
	}
	if _, ok := t.Projects[path]; !ok {
		return nil
	}
	delete(t.Projects, path)
	return s.Save(t)
}

// ReadRaw returns the settings file text, or "" when it does not exist.
func (s *SettingsStore) ReadRaw() (string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", core.IOError("read settings", err)
	}
	return string(b), nil
}

// WriteRaw replaces the settings file with text after checking that it
// parses. With backup set the previous file is copied aside first.
func (s *SettingsStore) WriteRaw(text string, backup bool) error {
	if _, err := codec.DecodeTOML(s.path, []byte(text)); err != nil {
		return err
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if backup {
		bak, err := fsx.BackupFile(s.path)
		switch {
		case err == nil:
			s.log.Info("settings backed up", "path", bak)
		case !errors.Is(err, fs.ErrNotExist):
			return core.IOError("backup settings", err)
		}
	}
	if _, err := s.w.Write(s.path, []byte(text), settingsMode); err != nil {
		return core.IOError("write settings", err)
	}
	return nil
}
