package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

func userHome() string {
	h, _ := os.UserHomeDir()
	if h == "" && runtime.GOOS == "windows" {
		h = os.Getenv("USERPROFILE")
	}
	if h == "" {
		h = "."
	}
	return h
}

// DefaultBase is $CODEX_HOME when set, else ~/.codex.
func DefaultBase() string {
	if d := os.Getenv("CODEX_HOME"); d != "" {
		return d
	}
	return filepath.Join(userHome(), ".codex")
}

// Layout names every file the tool touches under one base directory.
type Layout struct {
	Base        string
	Settings    string
	Credentials string
	Auth        string
	ToolConfig  string
}

// For returns the layout rooted at base; an empty base means DefaultBase.
func For(base string) Layout {
	if base == "" {
		base = DefaultBase()
	}
	mate := filepath.Join(base, "codex-mate")
	return Layout{
		Base:        base,
		Settings:    filepath.Join(base, "config.toml"),
		Credentials: filepath.Join(mate, "credentials.json"),
		Auth:        filepath.Join(base, "auth.json"),
		ToolConfig:  filepath.Join(mate, "codexmate.yaml"),
	}
}
