package store

import (
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"codexmate/internal/core"
	"codexmate/internal/fsx"
	"codexmate/internal/logger"
)

// AuthFile is the active-credential file codex reads (auth.json). It is
// rewritten wholesale on every switch.
type AuthFile struct {
	path string
	w    *fsx.Writer
	log  logger.Logger
}

func NewAuthFile(path string, w *fsx.Writer, l logger.Logger) *AuthFile {
	if l == nil {
		l = logger.Default()
	}
	if w == nil {
		w = fsx.NewWriter(l)
	}
	return &AuthFile{path: path, w: w, log: l}
}

func (a *AuthFile) Path() string { return a.path }

// Write replaces the file with a single secret key entry.
func (a *AuthFile) Write(secretKey string) error {
	doc, err := sjson.SetBytes([]byte("{}"), core.SecretKeyField, secretKey)
	if err != nil {
		return core.IOError("write auth", err)
	}
	if _, err := a.w.Write(a.path, prettyJSON(doc), secretMode); err != nil {
		return core.IOError("write auth", err)
	}
	return nil
}

// SecretKey returns the key currently materialized, or "" when the file is
// missing or unreadable.
func (a *AuthFile) SecretKey() string {
	b, err := os.ReadFile(a.path)
	if err != nil || !gjson.ValidBytes(b) {
		return ""
	}
	return gjson.GetBytes(b, core.SecretKeyField).String()
}
