package deid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey("MRN-12345", "test-salt")
	k2 := DeriveKey("MRN-12345", "test-salt")

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)
}

func TestDeriveKey_DifferentInputsDiffer(t *testing.T) {
	k1 := DeriveKey("MRN-12345", "test-salt")
	k2 := DeriveKey("MRN-12346", "test-salt")
	k3 := DeriveKey("MRN-12345", "other-salt")

	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestDeriveKey_HexOutput(t *testing.T) {
	k := DeriveKey("MRN-99", "s")

	assert.Regexp(t, "^[0-9a-f]{32}$", k)
}

func TestRandomSourceID_Unique(t *testing.T) {
	a := RandomSourceID()
	b := RandomSourceID()

	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "anonymous-")
}
