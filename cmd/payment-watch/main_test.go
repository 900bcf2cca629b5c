package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	id := uuid.New()

	opts, err := parseOptions([]string{"-order", id.String(), "-reference", "241015_abc", "-retry"})
	require.NoError(t, err)
	require.Equal(t, id, opts.orderID)
	require.Equal(t, "241015_abc", opts.reference)
	require.True(t, opts.retry)

	opts, err = parseOptions(nil)
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, opts.orderID)
}

func TestParseOptionsRejectsIncompleteAttempt(t *testing.T) {
	cases := [][]string{
		{"-order", uuid.NewString()},
		{"-reference", "241015_abc"},
		{"-order", "not-a-uuid", "-reference", "241015_abc"},
	}
	for _, args := range cases {
		_, err := parseOptions(args)
		require.Error(t, err, "args %v", args)
	}
}
