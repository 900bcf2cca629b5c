package dbtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDArrayScanLiteral(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	var arr UUIDArray
	require.NoError(t, arr.Scan("{"+a.String()+",\""+b.String()+"\"}"))
	assert.Equal(t, UUIDArray{a, b}, arr)

	require.NoError(t, arr.Scan([]byte("{}")))
	assert.Empty(t, arr)

	require.NoError(t, arr.Scan(nil))
	assert.Empty(t, arr)

	assert.Error(t, arr.Scan(42))
	assert.Error(t, arr.Scan("{not-a-uuid}"))
}

func TestUUIDArrayValueRoundTrip(t *testing.T) {
	empty, err := UUIDArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)

	want := UUIDArray{uuid.New(), uuid.New()}
	v, err := want.Value()
	require.NoError(t, err)
	var got UUIDArray
	require.NoError(t, got.Scan(v))
	assert.Equal(t, want, got)
}

func TestUUIDArrayIntersects(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	arr := UUIDArray{a, b}
	assert.True(t, arr.Intersects([]uuid.UUID{c, b}))
	assert.False(t, arr.Intersects([]uuid.UUID{c}))
	assert.False(t, UUIDArray{}.Intersects([]uuid.UUID{a}))
}
