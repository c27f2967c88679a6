package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLedger(t *testing.T) {
	l := NewMemoryLedger()
	l.ClaimNodeSequence("v1", []string{"a", "b", "c"})
	l.ClaimNodeSequence("v1", []string{"c", "d"})
	l.ClaimNodeSequence("v2", []string{"x"})

	assert.Equal(t, []string{"a", "b", "c", "d"}, l.Claims("v1"))
	assert.Equal(t, []string{"x"}, l.BlockedNodeIDs("v1"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, l.BlockedNodeIDs("v2"))

	l.ReleaseNodesBefore("v1", "c")
	assert.Equal(t, []string{"c", "d"}, l.Claims("v1"))

	l.ReleaseNodesBefore("v1", "unknown")
	assert.Equal(t, []string{"c", "d"}, l.Claims("v1"))

	l.ReleaseAllExcept("v1", "d")
	assert.Equal(t, []string{"d"}, l.Claims("v1"))

	l.ReleaseAll("v1")
	assert.Empty(t, l.Claims("v1"))
	assert.Empty(t, l.BlockedNodeIDs("v2"))
}
