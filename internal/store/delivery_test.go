package store

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	assert.Equal(t, "evt_123", computeDedupKey([]byte(`{"id":"evt_123","type":"x"}`)))
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	got := computeDedupKey([]byte(`{"notId":"x"}`))
	b, err := hex.DecodeString(got)
	require.NoError(t, err)
	assert.Len(t, b, 8)
	assert.Equal(t, got, computeDedupKey([]byte(`{"notId":"x"}`)))
}
