package core

import (
	"fmt"
	"sort"
	"strings"
)

// On-disk key names of the codex settings tree.
const (
	KeyActiveProvider = "model_provider"
	KeyProviders      = "model_providers"
	KeyServers        = "mcp_servers"
	KeyProjects       = "projects"

	FieldName         = "name"
	FieldBaseURL      = "base_url"
	FieldWireAPI      = "wire_api"
	FieldRequiresAuth = "requires_openai_auth"
	FieldCommand      = "command"
	FieldArgs         = "args"
	FieldTrustLevel   = "trust_level"
)

// SecretKeyField is the credential field name used by both the credential
// store and the active-credential file.
const SecretKeyField = "OPENAI_API_KEY"

// DefaultWireAPI is written when a provider record has no wire_api.
const DefaultWireAPI = "responses"

// DefaultTrustLevel is used when a project is trusted without a level.
const DefaultTrustLevel = "trusted"

// Settings is the typed view of config.toml. Extra holds every top-level
// key this tool does not manage so rewrites keep it. Stray holds, per
// collection key, the entries that are not tables.
type Settings struct {
	ActiveProvider string
	Providers      map[string]Provider
	Servers        map[string]Server
	Projects       map[string]Project
	Stray          map[string]map[string]any
	Extra          map[string]any
}

// NewSettings returns an empty tree with all collections allocated.
func NewSettings() *Settings {
	return &Settings{
		Providers: map[string]Provider{},
		Servers:   map[string]Server{},
		Projects:  map[string]Project{},
		Stray:     map[string]map[string]any{},
		Extra:     map[string]any{},
	}
}

// Provider is one entry of model_providers.
type Provider struct {
	Name               string
	BaseURL            string
	WireAPI            string
	RequiresOpenAIAuth *bool
	Extra              map[string]any
}

// Server is one entry of mcp_servers.
type Server struct {
	Command string
	Args    []string
	Extra   map[string]any
}

// Project is one entry of projects, keyed by absolute path.
type Project struct {
	TrustLevel string
	Extra      map[string]any
}

// Credential is one entry of credentials.json.
type Credential struct {
	SecretKey string
}

// Node is the joined view of a provider and its credential. Provider is nil
// when only a credential exists.
type Node struct {
	Name          string    `json:"name"`
	IsActive      bool      `json:"is_active"`
	HasCredential bool      `json:"has_credential"`
	Provider      *Provider `json:"-"`
}

// NamedServer and NamedProject are the ordered projections returned by the
// list operations.
type NamedServer struct {
	Name string
	Server
}

type NamedProject struct {
	Path string
	Project
}

// ToolVersion reports whether the codex binary is installed and its version.
type ToolVersion struct {
	Installed bool    `json:"installed"`
	Version   *string `json:"version"`
	Error     *string `json:"error"`
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Diff renders a field-level diff between two provider records.
func Diff(old, new map[string]any) string {
	keys := map[string]struct{}{}
	for k := range old {
		keys[k] = struct{}{}
	}
	for k := range new {
		keys[k] = struct{}{}
	}
	var b strings.Builder
	b.WriteString("Diff:\n")
	for _, k := range SortedKeys(keys) {
		ov, oldOK := old[k]
		nv, newOK := new[k]
		was, now := fmt.Sprint(ov), fmt.Sprint(nv)
		switch {
		case !oldOK:
			fmt.Fprintf(&b, "  + %s: %s\n", k, now)
		case !newOK:
			fmt.Fprintf(&b, "  - %s: %s\n", k, was)
		case was != now:
			fmt.Fprintf(&b, "  ~ %s: %s -> %s\n", k, was, now)
		default:
			fmt.Fprintf(&b, "    %s: (no change)\n", k)
		}
	}
	return b.String()
}
