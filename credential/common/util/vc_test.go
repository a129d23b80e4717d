package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeTypes(t *testing.T) {
	assert.Nil(t, SerializeTypes(nil))
	assert.Equal(t, "VerifiableCredential", SerializeTypes([]string{"VerifiableCredential"}))
	assert.Equal(t, []any{"VerifiableCredential", "PassportCredential"}, SerializeTypes([]string{"VerifiableCredential", "PassportCredential"}))
}

func TestSerializeOne(t *testing.T) {
	fn := func(s string) map[string]any { return map[string]any{"id": s} }

	assert.Nil(t, SerializeOne(nil, fn))
	assert.Equal(t, map[string]any{"id": "a"}, SerializeOne([]string{"a"}, fn))
	assert.Equal(t, []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}}, SerializeOne([]string{"a", "b"}, fn))
}

func TestParseContexts(t *testing.T) {
	got, err := ParseContexts("https://www.w3.org/2018/credentials/v1")
	require.NoError(t, err)
	assert.Equal(t, []any{"https://www.w3.org/2018/credentials/v1"}, got)

	got, err = ParseContexts([]any{"https://www.w3.org/2018/credentials/v1", map[string]any{"name": "http://schema.org/name"}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	for _, bad := range []any{
		[]any{""},
		[]any{42.0},
		[]any{map[string]any{"@context": "x"}},
		[]any{map[string]any{"": "x"}},
	} {
		_, err := ParseContexts(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestParseStrings(t *testing.T) {
	got, err := ParseStrings("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)

	got, err = ParseStrings([]any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = ParseStrings(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseStrings([]any{"a", 1.0})
	assert.Error(t, err)
	_, err = ParseStrings(true)
	assert.Error(t, err)
}

func TestToArrayAndCopy(t *testing.T) {
	assert.Nil(t, ToArray(nil))
	assert.Equal(t, []any{"x"}, ToArray("x"))
	assert.Equal(t, []any{"x", "y"}, ToArray([]any{"x", "y"}))

	src := map[string]any{"a": 1}
	cp := ShallowCopyObj(src)
	cp["b"] = 2
	assert.NotContains(t, src, "b")
}
