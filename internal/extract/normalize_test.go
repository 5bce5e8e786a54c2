package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeModelJSONObject(t *testing.T) {
	t.Parallel()

	obj, err := DecodeModelJSON(`{"name": "AI Summit"}`)
	require.NoError(t, err)
	require.Equal(t, "AI Summit", obj["name"])
}

func TestDecodeModelJSONStripsFences(t *testing.T) {
	t.Parallel()

	obj, err := DecodeModelJSON("```json\n{\"name\": \"AI Summit\"}\n```")
	require.NoError(t, err)
	require.Equal(t, "AI Summit", obj["name"])

	obj, err = DecodeModelJSON("```\n{\"name\": \"DevCon\"}\n```")
	require.NoError(t, err)
	require.Equal(t, "DevCon", obj["name"])
}

func TestDecodeModelJSONTakesFirstListElement(t *testing.T) {
	t.Parallel()

	obj, err := DecodeModelJSON(`[{"name": "First"}, {"name": "Second"}]`)
	require.NoError(t, err)
	require.Equal(t, "First", obj["name"])
}

func TestDecodeModelJSONRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeModelJSON("")
	require.Error(t, err)
	_, err = DecodeModelJSON("sorry, I cannot help with that")
	require.Error(t, err)
	_, err = DecodeModelJSON("[]")
	require.Error(t, err)
}

func TestFieldReaders(t *testing.T) {
	t.Parallel()

	m := map[string]any{
		"name":   "DevCon",
		"year":   float64(2025),
		"remote": "yes",
		"themes": []any{"ai", "ml", 42, ""},
		"single": "just one",
		"nil":    nil,
	}
	require.Equal(t, "DevCon", stringField(m, "name"))
	require.Equal(t, "2025", stringField(m, "year"))
	require.Equal(t, "", stringField(m, "nil"))
	require.Equal(t, "", stringField(m, "missing"))
	require.True(t, boolField(m, "remote"))
	require.False(t, boolField(m, "missing"))
	require.Equal(t, []string{"ai", "ml"}, stringListField(m, "themes"))
	require.Equal(t, []string{"just one"}, stringListField(m, "single"))
	require.Nil(t, stringListField(m, "missing"))
}
