package payments

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReferenceRoundTrip(t *testing.T) {
	id := uuid.MustParse("7a3f0c1e-4b2d-4e8a-9c61-0f5b2d7e8a11")
	at := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

	raw := NewReference(at, id)
	assert.Equal(t, "1768469400000_7a3f0c1e-4b2d-4e8a-9c61-0f5b2d7e8a11", raw)

	ref := ParseReference(raw)
	assert.True(t, ref.HasTimestamp)
	assert.True(t, at.Equal(ref.InitiatedAt))
	got, ok := ref.OrderID()
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestParseReferenceTolerance(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		suffix    string
		timestamp bool
	}{
		{name: "no separator", raw: "SF260115-ABC123", suffix: "SF260115-ABC123"},
		{name: "non numeric prefix", raw: "abc_SF260115-ABC123", suffix: "abc_SF260115-ABC123"},
		{name: "code suffix", raw: "1768469400000_SF260115-ABC123", suffix: "SF260115-ABC123", timestamp: true},
		{name: "blank", raw: "  ", suffix: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ref := ParseReference(tc.raw)
			assert.Equal(t, tc.suffix, ref.Suffix)
			assert.Equal(t, tc.timestamp, ref.HasTimestamp)
			_, ok := ref.OrderID()
			assert.False(t, ok)
		})
	}
}
