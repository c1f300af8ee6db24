package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObject_Plain(t *testing.T) {
	var out struct {
		Narration string `json:"narration"`
	}

	err := DecodeObject(`{"narration": "Hello there."}`, &out)

	require.NoError(t, err)
	assert.Equal(t, "Hello there.", out.Narration)
}

func TestDecodeObject_MarkdownFences(t *testing.T) {
	var out struct {
		Narration string `json:"narration"`
	}

	err := DecodeObject("```json\n{\"narration\": \"Fenced.\"}\n```", &out)

	require.NoError(t, err)
	assert.Equal(t, "Fenced.", out.Narration)
}

func TestDecodeObject_SurroundingProse(t *testing.T) {
	var out struct {
		Narration string `json:"narration"`
	}

	text := `Sure! Here is the requested JSON:

{"narration": "Wrapped in prose."}

Let me know if you need anything else.`
	err := DecodeObject(text, &out)

	require.NoError(t, err)
	assert.Equal(t, "Wrapped in prose.", out.Narration)
}

func TestDecodeObject_NestedBraces(t *testing.T) {
	var out struct {
		Outer struct {
			Inner string `json:"inner"`
		} `json:"outer"`
	}

	err := DecodeObject(`{"outer": {"inner": "deep"}}`, &out)

	require.NoError(t, err)
	assert.Equal(t, "deep", out.Outer.Inner)
}

func TestDecodeObject_BracesInsideStrings(t *testing.T) {
	var out struct {
		Narration string `json:"narration"`
	}

	err := DecodeObject(`{"narration": "curly {braces} and a \" quote"}`, &out)

	require.NoError(t, err)
	assert.Equal(t, `curly {braces} and a " quote`, out.Narration)
}

func TestDecodeObject_RawControlCharacters(t *testing.T) {
	var out struct {
		Narration string `json:"narration"`
	}

	// A raw newline inside a string literal is invalid JSON; the decoder
	// drops it rather than failing.
	err := DecodeObject("{\"narration\": \"line one\nline two\"}", &out)

	require.NoError(t, err)
	assert.Equal(t, "line oneline two", out.Narration)
}

func TestDecodeObject_NoObject(t *testing.T) {
	var out map[string]any

	err := DecodeObject("I could not produce any JSON for that.", &out)

	require.Error(t, err)
}

func TestDecodeArray_Plain(t *testing.T) {
	var out []struct {
		SlideNumber int    `json:"slide_number"`
		Text        string `json:"text"`
	}

	err := DecodeArray(`[{"slide_number": 1, "text": "a"}, {"slide_number": 2, "text": "b"}]`, &out)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[1].SlideNumber)
}

func TestDecodeArray_FencedWithProse(t *testing.T) {
	var out []int

	err := DecodeArray("Here you go:\n```\n[1, 2, 3]\n```", &out)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, out)
}

func TestDecodeArray_Unbalanced(t *testing.T) {
	var out []int

	err := DecodeArray(`[1, 2, 3`, &out)

	require.Error(t, err)
}
