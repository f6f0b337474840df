package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilder(t *testing.T) {
	kb := NewKeyBuilder("Rental-Home", "Chat")

	assert.Equal(t, "rental-home:chat:identity:bob@x.com", kb.Build("identity", "bob@x.com"))
	assert.Equal(t, "rental-home:chat:identity", kb.Build("identity", ""))
	assert.Equal(t, "rental-home:chat:identity:*", kb.BuildPattern("identity", ""))
	assert.Equal(t, "rental-home:chat:identity:bob*", kb.BuildPattern("identity", "bob*"))
}
