package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		t.Run(k.String(), func(t *testing.T) {
			got, err := ParseKind(k.String())
			require.NoError(t, err)
			assert.Equal(t, k, got)
		})
	}

	t.Run("resolution alias", func(t *testing.T) {
		got, err := ParseKind("resolution")
		require.NoError(t, err)
		assert.Equal(t, KindResource, got)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := ParseKind("bulk_events")
		assert.ErrorIs(t, err, errspkg.ErrUnrecognizedDocumentKind)
	})
}

func TestRequire(t *testing.T) {
	doc := Document{FieldUID: "abc", "empty": ""}

	uid, err := doc.Require(FieldUID)
	require.NoError(t, err)
	assert.Equal(t, "abc", uid)

	_, err = doc.Require("empty")
	assert.ErrorIs(t, err, errspkg.ErrMissingField)

	_, err = doc.Require(FieldRunStart)
	assert.ErrorIs(t, err, errspkg.ErrMissingField)
}

func TestMapAcceptsBothMapTypes(t *testing.T) {
	doc := Document{
		"plain": map[string]any{"a": 1},
		"typed": Document{"b": 2},
		"other": "nope",
	}
	assert.Equal(t, 1, doc.Map("plain")["a"])
	assert.Equal(t, 2, doc.Map("typed")["b"])
	assert.Nil(t, doc.Map("other"))
	assert.Nil(t, doc.Map("missing"))
}

func TestCloneIsDeep(t *testing.T) {
	original := Document{
		FieldUID:  "e1",
		FieldData: map[string]any{"img": []any{"d1", "d2"}},
	}
	clone := original.Clone()
	clone.Map(FieldData)["img"].([]any)[0] = "changed"
	clone[FieldUID] = "e2"

	assert.Equal(t, "e1", original.UID())
	assert.Equal(t, "d1", original.Map(FieldData)["img"].([]any)[0])
}

func TestMergeOverridesBase(t *testing.T) {
	base := map[string]any{"a": 1, "b": 2}
	merged := Merge(base, map[string]any{"b": 3, "c": 4})

	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, merged)
	assert.Equal(t, 2, base["b"], "base must not be mutated")
}

func TestIDString(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"42", "42", true},
		{float64(42), "42", true},
		{42.5, "42.5", true},
		{7, "7", true},
		{int64(9), "9", true},
		{"", "", false},
		{nil, "", false},
		{true, "", false},
	}
	for _, tt := range tests {
		got, ok := IDString(tt.in)
		assert.Equal(t, tt.ok, ok, "input %v", tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}
}

func TestStrings(t *testing.T) {
	got, ok := Strings([]any{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	_, ok = Strings([]any{"a", 1})
	assert.False(t, ok)

	_, ok = Strings("a")
	assert.False(t, ok)
}
