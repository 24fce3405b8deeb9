// Package codec converts between loosely typed JSON input and the TOML
// value tree stored in config.toml.
//
// The TOML side uses the go-toml/v2 map representation: string, bool,
// int64, float64, []any, map[string]any and the go-toml date/time types.
package codec

import (
	"math"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"

	"codexmate/internal/core"
)

// FromJSON maps one dynamic value onto its TOML image. It never fails.
//
//	null   -> ""
//	bool   -> bool
//	number -> int64 when integral and in range, else float64, else the raw text
//	string -> string
//	array  -> []any
//	object -> map[string]any
func FromJSON(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return ""
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return number(r.Raw)
	case gjson.String:
		return r.Str
	case gjson.JSON:
		if r.IsArray() {
			elems := r.Array()
			out := make([]any, 0, len(elems))
			for _, e := range elems {
				out = append(out, FromJSON(e))
			}
			return out
		}
		out := map[string]any{}
		r.ForEach(func(k, v gjson.Result) bool {
			out[k.String()] = FromJSON(v)
			return true
		})
		return out
	}
	return r.String()
}

func number(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return raw
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}

// ParseObject parses JSON text that must be an object into a TOML table.
func ParseObject(op string, data []byte) (map[string]any, error) {
	if !gjson.ValidBytes(data) {
		return nil, core.Validationf(op, "fields must be valid JSON")
	}
	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return nil, core.Validationf(op, "fields must be a JSON object")
	}
	return FromJSON(r).(map[string]any), nil
}

// ToDynamic projects a TOML value tree onto values encoding/json can encode
// without loss: date/time values become their TOML text, non-finite floats
// become strings.
func ToDynamic(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = ToDynamic(e)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, ToDynamic(e))
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, ToDynamic(e))
		}
		return out
	case []string:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, e)
		}
		return out
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return strconv.FormatFloat(t, 'g', -1, 64)
		}
		return t
	case int:
		return int64(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case toml.LocalDate:
		return t.String()
	case toml.LocalTime:
		return t.String()
	case toml.LocalDateTime:
		return t.String()
	default:
		return v
	}
}
