package version

// Name is the application name shown in the TUI header and CLI help.
var Name = "codexmate"

// Version is injected at build time via
// -ldflags "-X codexmate/internal/version.Version=...".
var Version = "dev"
