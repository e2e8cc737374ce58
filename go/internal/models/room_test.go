package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomMembership(t *testing.T) {
	r := &Room{Members: []string{}, Spectators: []string{}}

	assert.True(t, r.AddMember("alice"))
	assert.True(t, r.AddMember("bob"))
	assert.False(t, r.AddMember("alice"))
	assert.Equal(t, []string{"alice", "bob"}, r.Members)

	r.SetMemberStatus("bob", MemberStatusSpectator)
	r.SetMemberStatus("bob", MemberStatusSpectator)
	assert.Equal(t, []string{"bob"}, r.Spectators)
	assert.Equal(t, MemberStatusSpectator, r.MemberStatus("bob"))
	assert.Equal(t, []string{"alice"}, r.Players())

	r.SetMemberStatus("bob", MemberStatusPlayer)
	assert.Empty(t, r.Spectators)
	assert.Equal(t, MemberStatusPlayer, r.MemberStatus("bob"))

	r.SetMemberStatus("bob", MemberStatusSpectator)
	r.RemoveMember("bob")
	assert.False(t, r.IsMember("bob"))
	assert.Equal(t, []string{"alice"}, r.Members)
	assert.Empty(t, r.Spectators)

	// removing an absent member changes nothing
	r.RemoveMember("carol")
	assert.Equal(t, []string{"alice"}, r.Members)
}
