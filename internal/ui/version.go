package ui

import (
	"context"
	"regexp"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"codexmate/internal/version"
)

var verRe = regexp.MustCompile(`(?i)\bv?\d+\.\d+(?:\.\d+)*(?:-[0-9A-Za-z.\-]+)?`)

// versionTTL bounds how often reload re-probes codex.
const versionTTL = 60 * time.Second

// detectVersion probes codex and extracts the version number from its
// output. Returns (text, installed). If installed but the output has no
// version, text is "Unknown".
func detectVersion(ctx context.Context) (string, bool) {
	v := version.ProbeCodex(ctx)
	if !v.Installed {
		return "Not installed", false
	}
	if v.Version == nil {
		return "Unknown", true
	}
	// keep a leading 'v' when present
	if m := verRe.FindString(*v.Version); m != "" {
		return m, true
	}
	return "Unknown", true
}

type verMsg struct {
	text      string
	installed bool
	at        time.Time
}

func versionCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		text, inst := detectVersion(ctx)
		return verMsg{text: text, installed: inst, at: time.Now()}
	}
}
