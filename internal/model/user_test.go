package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	for _, name := range []string{"bob", "alice_01", "a-b-c", "ABCDEFGHIJKLMNOPQRSTUVWXYZ012345"} {
		assert.NoError(t, ValidateUsername(name), name)
	}
	for _, name := range []string{"", "ab", "has space", "slash/name", "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456", "ünï"} {
		assert.ErrorIs(t, ValidateUsername(name), ErrInvalidIdentifier, name)
	}
}

func TestUserGroupIndex(t *testing.T) {
	u := &User{Username: "bob"}
	ref := GroupRef{ID: "g1", Name: "Friday"}

	assert.True(t, u.AddGroup(ref))
	assert.False(t, u.AddGroup(GroupRef{ID: "g1", Name: "Renamed"}))
	assert.True(t, u.HasGroup("g1"))
	assert.Equal(t, []GroupRef{ref}, u.Groups)

	assert.True(t, u.RemoveGroup("g1"))
	assert.False(t, u.RemoveGroup("g1"))
	assert.Empty(t, u.Groups)
}
