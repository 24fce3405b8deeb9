package store

import (
	"encoding/json"
	"io/fs"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"codexmate/internal/core"
	"codexmate/internal/fsx"
	"codexmate/internal/logger"
)

const secretMode fs.FileMode = 0o600

var prettyOpts = &pretty.Options{Width: 80, Prefix: "", Indent: "  ", SortKeys: true}

// prettyJSON gives a stable, diffable rendering: sorted keys, 2-space indent.
func prettyJSON(b []byte) []byte { return pretty.PrettyOptions(b, prettyOpts) }

// CredentialStore keeps per-provider secrets in credentials.json. It is
// forgiving on read: absent, empty or damaged content reads as empty.
type CredentialStore struct {
	path string
	w    *fsx.Writer
	log  logger.Logger
}

// NewCredentialStore returns a store for the credential file at path.
func NewCredentialStore(path string, w *fsx.Writer, l logger.Logger) *CredentialStore {
	if l == nil {
		l = logger.Default()
	}
	if w == nil {
		w = fsx.NewWriter(l)
	}
	return &CredentialStore{path: path, w: w, log: l}
}

// Path returns the credential file location.
func (c *CredentialStore) Path() string { return c.path }

// raw returns the current document, or "{}" when it is missing or not a
// JSON object.
func (c *CredentialStore) raw() []byte {
	b, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("credential file unreadable, treating as empty", "path", c.path, "error", err)
		}
		return []byte("{}")
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return []byte("{}")
	}
	if !gjson.ValidBytes(b) || !gjson.ParseBytes(b).IsObject() {
		c.log.Warn("credential file is not a JSON object, treating as empty", "path", c.path)
		return []byte("{}")
	}
	return b
}

// Load returns every credential record. It never fails.
func (c *CredentialStore) Load() map[string]core.Credential {
	out := map[string]core.Credential{}
	gjson.ParseBytes(c.raw()).ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = core.Credential{SecretKey: v.Get(core.SecretKeyField).String()}
		return true
	})
	return out
}

// Save writes the whole mapping, replacing the file.
func (c *CredentialStore) Save(creds map[string]core.Credential) error {
	doc := make(map[string]map[string]string, len(creds))
	for name, cr := range creds {
		doc[name] = map[string]string{core.SecretKeyField: cr.SecretKey}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return core.IOError("save credentials", err)
	}
	return c.write("save credentials", b)
}

func (c *CredentialStore) write(op string, b []byte) error {
	if _, err := c.w.Write(c.path, prettyJSON(b), secretMode); err != nil {
		return core.IOError(op, err)
	}
	return nil
}

// Set stores secretKey for name and reads it back. Other records and other
// fields of the record are left as they are. A failed read-back is logged,
// not returned.
func (c *CredentialStore) Set(name, secretKey string) error {
	const op = "set credential"
	if err := core.ValidateName(op, "provider name", name); err != nil {
		return err
	}
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return core.Validationf(op, "secret key is required")
	}

	doc := c.raw()
	rec := gjson.Escape(name)
	var err error
	if !gjson.GetBytes(doc, rec).IsObject() {
		if doc, err = sjson.SetRawBytes(doc, rec, []byte("{}")); err != nil {
			return core.IOError(op, err)
		}
	}
	if doc, err = sjson.SetBytes(doc, rec+"."+core.SecretKeyField, secretKey); err != nil {
		return core.IOError(op, err)
	}
	if err := c.write(op, doc); err != nil {
		return err
	}

	if got := c.Load()[name].SecretKey; got != secretKey {
		logger.Degraded(c.log, "verify_mismatch", "credential not readable after write",
			"provider", name, "path", c.path)
	}
	return nil
}

// Remove deletes the record for name. It reports whether one existed.
func (c *CredentialStore) Remove(name string) (bool, error) {
	doc := c.raw()
	rec := gjson.Escape(name)
	if !gjson.GetBytes(doc, rec).Exists() {
		return false, nil
	}
	doc, err := sjson.DeleteBytes(doc, rec)
	if err != nil {
		return false, core.IOError("remove credential", err)
	}
	return true, c.write("remove credential", doc)
}
