package codec

import (
	"math"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"codexmate/internal/core"
)

func TestFromJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"null becomes empty string", `null`, ""},
		{"true", `true`, true},
		{"false", `false`, false},
		{"integer", `42`, int64(42)},
		{"negative integer", `-7`, int64(-7)},
		{"integral float", `3.0`, int64(3)},
		{"fraction", `0.25`, 0.25},
		{"exponent", `1.5e3`, int64(1500)},
		{"out of range keeps text", `1e400`, "1e400"},
		{"string", `"responses"`, "responses"},
		{"escaped string", `"a\"b"`, `a"b`},
		{"array", `[1, "x", null]`, []any{int64(1), "x", ""}},
		{"object", `{"a": {"b": false}}`, map[string]any{"a": map[string]any{"b": false}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromJSON(gjson.Parse(tt.in)))
		})
	}
}

func TestParseObject(t *testing.T) {
	got, err := ParseObject("op", []byte(`{"base_url": "https://x", "n": 2}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"base_url": "https://x", "n": int64(2)}, got)

	for _, bad := range []string{`not json`, `[1,2]`, `"str"`, `{"a":`} {
		_, err := ParseObject("op", []byte(bad))
		assert.True(t, core.IsKind(err, core.KindValidation), "input %q: %v", bad, err)
	}
}

func TestToDynamic(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	in := map[string]any{
		"inf":   math.Inf(1),
		"nan":   math.NaN(),
		"pi":    3.5,
		"n":     7,
		"when":  at,
		"date":  toml.LocalDate{Year: 2024, Month: 5, Day: 1},
		"args":  []string{"-y", "pkg"},
		"rows":  []map[string]any{{"a": int64(1)}},
		"inner": map[string]any{"list": []any{int64(1), math.Inf(-1)}},
	}
	got := ToDynamic(in).(map[string]any)

	assert.Equal(t, "+Inf", got["inf"])
	assert.Equal(t, "NaN", got["nan"])
	assert.Equal(t, 3.5, got["pi"])
	assert.Equal(t, int64(7), got["n"])
	assert.Equal(t, "2024-05-01T10:30:00Z", got["when"])
	assert.Equal(t, "2024-05-01", got["date"])
	assert.Equal(t, []any{"-y", "pkg"}, got["args"])
	assert.Equal(t, []any{map[string]any{"a": int64(1)}}, got["rows"])
	assert.Equal(t, map[string]any{"list": []any{int64(1), "-Inf"}}, got["inner"])
}

func TestDecodeTOML(t *testing.T) {
	doc, err := DecodeTOML("config.toml", []byte(`
model_provider = "a"

[model_providers.a]
base_url = "https://a.example"
requires_openai_auth = true
`))
	require.NoError(t, err)
	assert.Equal(t, "a", doc["model_provider"])
	providers := doc["model_providers"].(map[string]any)
	assert.Equal(t, true, providers["a"].(map[string]any)["requires_openai_auth"])
}

func TestDecodeTOML_SyntaxErrorPosition(t *testing.T) {
	_, err := DecodeTOML("config.toml", []byte("a = 1\nb = = 2\n"))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindParse))

	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "config.toml", se.Source)
	assert.Equal(t, 2, se.Line)
	assert.Positive(t, se.Column)
}

func TestEncodeTOML_Deterministic(t *testing.T) {
	doc := map[string]any{
		"z": "last",
		"a": "first",
		"model_providers": map[string]any{
			"b": map[string]any{"name": "b"},
			"a": map[string]any{"name": "a"},
		},
	}
	first, err := EncodeTOML(doc)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := EncodeTOML(doc)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}

	back, err := DecodeTOML("x", first)
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}

func TestRoundTrip_JSONThroughTOML(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"integers", `{"n": 42, "neg": -7, "big": 9007199254740993}`},
		{"finite floats", `{"f": 0.25, "g": -1.5, "tiny": 1e-7}`},
		{"booleans", `{"on": true, "off": false}`},
		{"mixed array", `{"a": [1, "two", 3.5, false]}`},
		{"array of tables", `{"items": [{"name": "a", "n": 1}, {"name": "b", "ok": true}]}`},
		{"nested arrays", `{"grid": [[1, 2], ["x"], [[true]]]}`},
		{"nested tables", `{"p": {"q": {"r": "deep", "s": [0.5]}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := FromJSON(gjson.Parse(tt.in)).(map[string]any)

			b, err := EncodeTOML(in)
			require.NoError(t, err)
			back, err := DecodeTOML("x", b)
			require.NoError(t, err, string(b))

			assert.Equal(t, ToDynamic(in), ToDynamic(back), string(b))
		})
	}
}
