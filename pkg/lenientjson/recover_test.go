package lenientjson

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestRecover_EmptyInput(t *testing.T) {
	doc, err := Recover("")
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ErrUnrecoverable)
}

func TestRecover_WhitespaceOnly(t *testing.T) {
	_, err := Recover("  \r\n\t ")
	assert.ErrorIs(t, err, ErrUnrecoverable)
}

func TestRecover_ValidJSONRoundTrip(t *testing.T) {
	values := []any{
		map[string]any{"analysis_id": "abc-123", "score": 4.5},
		map[string]any{"evaluations_0": []any{
			map[string]any{"empathy": 4.0, "clarity": 3.0},
			map[string]any{"empathy": 5.0, "clarity": 2.0},
		}},
		[]any{1.0, "two", true, nil},
		"plain string",
		42.0,
		true,
		nil,
		map[string]any{},
	}

	for _, v := range values {
		b, err := json.Marshal(v)
		require.NoError(t, err)

		var want any
		require.NoError(t, json.Unmarshal(b, &want))

		doc, err := Recover(string(b))
		require.NoError(t, err, "input %s", b)
		assert.Equal(t, want, doc.Value, "input %s", b)
	}
}

func TestRecover(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{
			name:  "truncated array inside object is closed",
			input: `{"a": 1, "b": [1,2`,
			want:  map[string]any{"a": 1.0, "b": []any{1.0, 2.0}},
		},
		{
			name:  "single quotes become double quotes",
			input: `{'a': 'x'}`,
			want:  map[string]any{"a": "x"},
		},
		{
			name:  "literal newlines and carriage returns are stripped",
			input: "{\n  \"a\": 1,\r\n  \"b\": \"c\"\n}",
			want:  map[string]any{"a": 1.0, "b": "c"},
		},
		{
			name:  "escaped newline sequences are deleted",
			input: `{"summary": "line one\nline two"}`,
			want:  map[string]any{"summary": "line oneline two"},
		},
		{
			name:  "surrounding whitespace is trimmed",
			input: "   {\"a\": true}   ",
			want:  map[string]any{"a": true},
		},
		{
			name:  "truncated object missing only its brace",
			input: `{"analysis_id": "xyz"`,
			want:  map[string]any{"analysis_id": "xyz"},
		},
		{
			name:  "truncated after a complete nested element",
			input: `{"evaluations_0": [{"empathy": 4}, {"empathy": 3}`,
			want: map[string]any{"evaluations_0": []any{
				map[string]any{"empathy": 4.0},
				map[string]any{"empathy": 3.0},
			}},
		},
		{
			name:  "closing brace inside a string still gets a final brace",
			input: `{"a": "}"`,
			want:  map[string]any{"a": "}"},
		},
		{
			name:  "single quoted evaluation payload with escaped newlines",
			input: `{'analysis_id': 'A-7',\n 'evaluations_0': [{'empathy': 4, 'clarity': 5}]}`,
			want: map[string]any{
				"analysis_id":   "A-7",
				"evaluations_0": []any{map[string]any{"empathy": 4.0, "clarity": 5.0}},
			},
		},
		{
			name:  "array input is parsed without closure repair",
			input: `[1, 2, 3]`,
			want:  []any{1.0, 2.0, 3.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Recover(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Value)
		})
	}
}

func TestRecover_Unrecoverable(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json at all", input: "not json at all"},
		{name: "apostrophe inside a double quoted value", input: `{"note": "patient's chart"}`},
		{name: "truncated inside a string value", input: `{"a": "b`},
		{name: "trailing comma before truncation", input: `{"a": 1,`},
		{name: "truncated array at top level is not repaired", input: `[1, 2`},
		{name: "truncated object nested in array closes in wrong order", input: `{"e": [{"x": 1}, {"x": 2`},
		{name: "bracket inside string overcorrects", input: `{"a": "[", "b": 1`},
		{name: "only an escaped newline", input: `\n`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Recover(tt.input)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, ErrUnrecoverable), "got %v", err)
		})
	}
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "brackets appended before braces",
			input:    `{"a": [1, {"b": 2`,
			expected: `{"a": [1, {"b": 2]}}`,
		},
		{
			name:     "complete object untouched",
			input:    `{"a": 1}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "non object input is only cleaned",
			input:    "'x'\n",
			expected: `"x"`,
		},
		{
			name:     "final brace appended when counts already balance",
			input:    `{"a": {}, "b": "}"`,
			expected: `{"a": {}, "b": "}"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Repair(tt.input))
		})
	}
}

func TestDocument_GetKeepsMemberOrder(t *testing.T) {
	doc, err := Recover(`{"evaluations_0": [{"zeal": 1, "accuracy": 2, "manner": 3}]}`)
	require.NoError(t, err)

	var keys []string
	doc.Get("evaluations_0.0").ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.Equal(t, []string{"zeal", "accuracy", "manner"}, keys)
}

func TestDocument_MemberLastDuplicateWins(t *testing.T) {
	doc, err := Recover(`{"analysis_id": "first", "n": 1, "analysis_id": "second"}`)
	require.NoError(t, err)

	assert.Equal(t, "second", doc.Member("analysis_id").String())
	assert.Equal(t, "second", doc.Value.(map[string]any)["analysis_id"])
	assert.Equal(t, int64(1), doc.Member("n").Int())
	assert.False(t, doc.Member("missing").Exists())
}

func TestDocument_MemberOfNonObject(t *testing.T) {
	for _, input := range []string{`[{"analysis_id": "a"}]`, `"analysis_id"`, `42`} {
		doc, err := Recover(input)
		require.NoError(t, err, input)
		assert.False(t, doc.Member("analysis_id").Exists(), input)
	}
}
