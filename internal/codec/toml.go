package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"codexmate/internal/core"
)

// SyntaxError is a TOML decode failure with its position when known.
type SyntaxError struct {
	Source  string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Source, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// DecodeTOML parses a TOML document into a table. Failures are KindParse.
func DecodeTOML(source string, data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		se := &SyntaxError{Source: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			se.Line, se.Column = derr.Position()
		}
		return nil, core.ParseError("decode "+source, se)
	}
	return doc, nil
}

// EncodeTOML serializes a table. Keys come out sorted, so equal trees give
// byte-identical output.
func EncodeTOML(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode toml: %w", err)
	}
	return buf.Bytes(), nil
}
