package version

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"codexmate/internal/core"
)

// CodexBinary is the external CLI whose version is reported.
var CodexBinary = "codex"

const probeTimeout = 1200 * time.Millisecond

// ProbeCodex runs `codex --version`. It never fails: problems are reported
// in the result.
func ProbeCodex(ctx context.Context) core.ToolVersion {
	if _, err := exec.LookPath(CodexBinary); err != nil {
		return notInstalled(err.Error())
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, CodexBinary, "--version")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return notInstalled("timed out waiting for " + CodexBinary)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return notInstalled(msg)
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		v = strings.TrimSpace(stderr.String())
	}
	return core.ToolVersion{Installed: true, Version: &v}
}

func notInstalled(msg string) core.ToolVersion {
	return core.ToolVersion{Installed: false, Error: &msg}
}
