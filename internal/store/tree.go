package store

import (
	"maps"

	"codexmate/internal/core"
)

// settingsFromDoc splits a decoded config.toml into the typed tree. Values of
// the wrong type under known keys are kept untouched: whole values in Extra,
// single collection entries in Stray.
func settingsFromDoc(doc map[string]any) *core.Settings {
	s := core.NewSettings()
	for k, v := range doc {
		switch k {
		case core.KeyActiveProvider:
			if str, ok := v.(string); ok {
				s.ActiveProvider = str
				continue
			}
		case core.KeyProviders:
			if tbl, ok := v.(map[string]any); ok {
				splitTables(s, k, tbl, func(name string, m map[string]any) {
					s.Providers[name] = ProviderFromMap(m)
				})
				continue
			}
		case core.KeyServers:
			if tbl, ok := v.(map[string]any); ok {
				splitTables(s, k, tbl, func(name string, m map[string]any) {
					s.Servers[name] = serverFromMap(m)
				})
				continue
			}
		case core.KeyProjects:
			if tbl, ok := v.(map[string]any); ok {
				splitTables(s, k, tbl, func(path string, m map[string]any) {
					s.Projects[path] = projectFromMap(m)
				})
				continue
			}
		}
		s.Extra[k] = v
	}
	return s
}

func splitTables(s *core.Settings, key string, tbl map[string]any, typed func(string, map[string]any)) {
	for name, v := range tbl {
		if m, ok := v.(map[string]any); ok {
			typed(name, m)
			continue
		}
		if s.Stray[key] == nil {
			s.Stray[key] = map[string]any{}
		}
		s.Stray[key][name] = v
	}
}

// settingsToDoc is the inverse of settingsFromDoc. Empty collections are
// omitted. A typed record wins over a stray entry of the same name.
func settingsToDoc(s *core.Settings) map[string]any {
	doc := maps.Clone(s.Extra)
	if doc == nil {
		doc = map[string]any{}
	}
	if s.ActiveProvider != "" {
		doc[core.KeyActiveProvider] = s.ActiveProvider
	}
	collection := func(key string, n int, fill func(tbl map[string]any)) {
		stray := s.Stray[key]
		if n == 0 && len(stray) == 0 {
			return
		}
		tbl := make(map[string]any, n+len(stray))
		maps.Copy(tbl, stray)
		fill(tbl)
		doc[key] = tbl
	}
	collection(core.KeyProviders, len(s.Providers), func(tbl map[string]any) {
		for name, p := range s.Providers {
			tbl[name] = ProviderToMap(p)
		}
	})
	collection(core.KeyServers, len(s.Servers), func(tbl map[string]any) {
		for name, srv := range s.Servers {
			tbl[name] = serverToMap(srv)
		}
	})
	collection(core.KeyProjects, len(s.Projects), func(tbl map[string]any) {
		for path, p := range s.Projects {
			tbl[path] = projectToMap(p)
		}
	})
	return doc
}

// ProviderFromMap reads a provider table.
func ProviderFromMap(m map[string]any) core.Provider {
	p := core.Provider{Extra: map[string]any{}}
	for k, v := range m {
		switch k {
		case core.FieldName:
			if str, ok := v.(string); ok {
				p.Name = str
				continue
			}
		case core.FieldBaseURL:
			if str, ok := v.(string); ok {
				p.BaseURL = str
				continue
			}
		case core.FieldWireAPI:
			if str, ok := v.(string); ok {
				p.WireAPI = str
				continue
			}
		case core.FieldRequiresAuth:
			if b, ok := v.(bool); ok {
				p.RequiresOpenAIAuth = &b
				continue
			}
		}
		p.Extra[k] = v
	}
	return p
}

// ProviderToMap writes a provider table. Empty strings are left out.
func ProviderToMap(p core.Provider) map[string]any {
	m := maps.Clone(p.Extra)
	if m == nil {
		m = map[string]any{}
	}
	if p.Name != "" {
		m[core.FieldName] = p.Name
	}
	if p.BaseURL != "" {
		m[core.FieldBaseURL] = p.BaseURL
	}
	if p.WireAPI != "" {
		m[core.FieldWireAPI] = p.WireAPI
	}
	if p.RequiresOpenAIAuth != nil {
		m[core.FieldRequiresAuth] = *p.RequiresOpenAIAuth
	}
	return m
}

func serverFromMap(m map[string]any) core.Server {
	s := core.Server{Extra: map[string]any{}}
	for k, v := range m {
		switch k {
		case core.FieldCommand:
			if str, ok := v.(string); ok {
				s.Command = str
				continue
			}
		case core.FieldArgs:
			if args, ok := stringSlice(v); ok {
				s.Args = args
				continue
			}
		}
		s.Extra[k] = v
	}
	return s
}

func stringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			str, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

func serverToMap(s core.Server) map[string]any {
	m := maps.Clone(s.Extra)
	if m == nil {
		m = map[string]any{}
	}
	if s.Command != "" {
		m[core.FieldCommand] = s.Command
	}
	if s.Args != nil {
		m[core.FieldArgs] = s.Args
	}
	return m
}

func projectFromMap(m map[string]any) core.Project {
	p := core.Project{Extra: map[string]any{}}
	for k, v := range m {
		if k == core.FieldTrustLevel {
			if str, ok := v.(string); ok {
				p.TrustLevel = str
				continue
			}
		}
		p.Extra[k] = v
	}
	return p
}

func projectToMap(p core.Project) map[string]any {
	m := maps.Clone(p.Extra)
	if m == nil {
		m = map[string]any{}
	}
	if p.TrustLevel != "" {
		m[core.FieldTrustLevel] = p.TrustLevel
	}
	return m
}
