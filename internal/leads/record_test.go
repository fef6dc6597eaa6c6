package leads

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAccessors(t *testing.T) {
	var rec Record
	require.NoError(t, rec.Set(FieldFullName, "Ana"))
	assert.Equal(t, "Ana", rec.FullName)
	assert.Equal(t, "Ana", rec.Value(FieldFullName))

	err := rec.Set("nickname", "x")
	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.True(t, errors.Is(rec.Set(FieldUSAInterests, "x"), ErrListField))
	assert.True(t, errors.Is(rec.SetList(FieldEmail, []string{"x"}), ErrNotListField))

	require.NoError(t, rec.SetList(FieldUSAInterests, []string{"a", "b"}))
	assert.Equal(t, "a, b", rec.Value(FieldUSAInterests))
	assert.True(t, IsList(FieldUSAInterests))
	assert.False(t, IsList(FieldEmail))
}

func TestRecordToggle(t *testing.T) {
	var rec Record
	require.NoError(t, rec.Toggle(FieldUSAInterests, "a"))
	require.NoError(t, rec.Toggle(FieldUSAInterests, "b"))
	require.NoError(t, rec.Toggle(FieldUSAInterests, "a"))
	assert.Equal(t, []string{"b"}, rec.USAInterests)
}

func TestRecordCloneIsDeep(t *testing.T) {
	rec := validRecord()
	clone := rec.Clone()
	clone.USAInterests[0] = "changed"
	clone.FullName = "Other"
	assert.Equal(t, "Vida acadêmica", rec.USAInterests[0])
	assert.Equal(t, "Maria da Silva", rec.FullName)
}
