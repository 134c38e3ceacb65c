package lineparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	t.Run("ValidObject", func(t *testing.T) {
		res := ParseJSON(`{"id":1,"name":"a"}`, 1)
		require.True(t, res.OK)
		assert.Equal(t, 1, res.LineNumber)
		data, ok := res.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(1), data["id"])
	})

	t.Run("ValidArray", func(t *testing.T) {
		res := ParseJSON(`[1,2,3]`, 2)
		require.True(t, res.OK)
		assert.Len(t, res.Data, 3)
	})

	t.Run("Invalid", func(t *testing.T) {
		res := ParseJSON(`{invalid}`, 3)
		assert.False(t, res.OK)
		assert.False(t, res.Skipped)
		assert.NotEmpty(t, res.Err)
		assert.Equal(t, `{invalid}`, res.Raw)
	})

	t.Run("EmptyLineSkipped", func(t *testing.T) {
		res := ParseJSON("   ", 4)
		assert.True(t, res.Skipped)
		assert.False(t, res.OK)
	})

	t.Run("RawTruncatedTo200", func(t *testing.T) {
		long := "{bad " + strings.Repeat("x", 500)
		res := ParseJSON(long, 5)
		assert.False(t, res.OK)
		assert.Len(t, res.Raw, 200)
	})

	t.Run("LeadingWhitespaceTolerated", func(t *testing.T) {
		res := ParseJSON(`   {"a":1}`, 6)
		assert.True(t, res.OK)
	})
}

func TestParseCSV(t *testing.T) {
	t.Run("WithoutHeaders", func(t *testing.T) {
		res := ParseCSV("a, b ,c", 1, nil)
		require.True(t, res.OK)
		assert.Equal(t, []any{"a", "b", "c"}, res.Data)
	})

	t.Run("WithHeaders", func(t *testing.T) {
		res := ParseCSV("1,alice", 2, []string{"id", "name"})
		require.True(t, res.OK)
		assert.Equal(t, map[string]any{"id": "1", "name": "alice"}, res.Data)
	})

	t.Run("MissingCellsBecomeEmpty", func(t *testing.T) {
		res := ParseCSV("1", 3, []string{"id", "name"})
		require.True(t, res.OK)
		assert.Equal(t, map[string]any{"id": "1", "name": ""}, res.Data)
	})

	t.Run("QuotedCommasSplitNaively", func(t *testing.T) {
		// Known limitation: quoted commas are not respected.
		res := ParseCSV(`"a,b",c`, 4, nil)
		require.True(t, res.OK)
		assert.Len(t, res.Data, 3)
	})

	t.Run("EmptyLineSkipped", func(t *testing.T) {
		assert.True(t, ParseCSV("", 5, nil).Skipped)
	})
}

func TestParseText(t *testing.T) {
	t.Run("WrapsOriginalLine", func(t *testing.T) {
		res := ParseText("  hello world  ", 1)
		require.True(t, res.OK)
		assert.Equal(t, map[string]any{"text": "  hello world  "}, res.Data)
	})

	t.Run("EmptyTrimmedSkipped", func(t *testing.T) {
		assert.True(t, ParseText("\t  ", 2).Skipped)
	})
}

func TestParseAuto(t *testing.T) {
	tests := []struct {
		name string
		line string
		want func(t *testing.T, res Result)
	}{
		{"JSONObject", `{"a":1}`, func(t *testing.T, res Result) {
			require.True(t, res.OK)
			_, isMap := res.Data.(map[string]any)
			assert.True(t, isMap)
		}},
		{"JSONArray", `[1,2]`, func(t *testing.T, res Result) {
			require.True(t, res.OK)
			_, isSlice := res.Data.([]any)
			assert.True(t, isSlice)
		}},
		{"BrokenJSONWithCommaFallsToCSV", `{broken, json`, func(t *testing.T, res Result) {
			require.True(t, res.OK)
			assert.Len(t, res.Data, 2)
		}},
		{"CSV", `a,b,c`, func(t *testing.T, res Result) {
			require.True(t, res.OK)
			assert.Len(t, res.Data, 3)
		}},
		{"PlainText", `just some words`, func(t *testing.T, res Result) {
			require.True(t, res.OK)
			data := res.Data.(map[string]any)
			assert.Equal(t, "just some words", data["text"])
		}},
		{"Empty", ``, func(t *testing.T, res Result) {
			assert.True(t, res.Skipped)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, ParseAuto(tt.line, 1))
		})
	}
}

func TestSelectParser(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		p := SelectParser("application/json")
		res := p(`{"a":1}`, 1)
		assert.True(t, res.OK)
		// JSON parser must not fall back for broken lines.
		assert.False(t, p(`not json`, 2).OK)
	})

	t.Run("CSV", func(t *testing.T) {
		p := SelectParser("text/csv")
		res := p("a,b", 1)
		require.True(t, res.OK)
		assert.Equal(t, []any{"a", "b"}, res.Data)
	})

	t.Run("Text", func(t *testing.T) {
		p := SelectParser("text/plain")
		res := p("a,b", 1)
		require.True(t, res.OK)
		data := res.Data.(map[string]any)
		assert.Equal(t, "a,b", data["text"])
	})

	t.Run("UnknownFallsToAuto", func(t *testing.T) {
		p := SelectParser("application/octet-stream")
		res := p(`{"a":1}`, 1)
		require.True(t, res.OK)
		_, isMap := res.Data.(map[string]any)
		assert.True(t, isMap)
	})
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate(map[string]any{"a": 1}))
	assert.True(t, Validate([]any{"a"}))
	assert.False(t, Validate(map[string]any{}))
	assert.False(t, Validate([]any{}))
	assert.False(t, Validate("scalar"))
	assert.False(t, Validate(42.0))
	assert.False(t, Validate(nil))
}
