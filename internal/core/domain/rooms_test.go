package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomPolicy_RoomsFor(t *testing.T) {
	policy := NewRoomPolicy(nil)

	tests := []struct {
		role Role
		want []string
	}{
		{RolePreposto, []string{"user:u1", ManagersRoom}},
		{RoleAdministrador, []string{"user:u1", ManagersRoom}},
		{RoleAdmin, []string{"user:u1", ManagersRoom}},
		{RoleTecnico, []string{"user:u1"}},
		{RoleUsuario, []string{"user:u1"}},
		{Role("admin"), []string{"user:u1"}}, // exact match only
		{Role(""), []string{"user:u1"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got := policy.RoomsFor(Identity{UserID: "u1", Role: tt.role, IsActive: true})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoomPolicy_IsDeterministic(t *testing.T) {
	policy := NewRoomPolicy(nil)
	identity := Identity{UserID: "m", Role: RoleAdmin, IsActive: true}

	assert.Equal(t, policy.RoomsFor(identity), policy.RoomsFor(identity))
}

func TestRoomPolicy_CustomPrivilegedRoles(t *testing.T) {
	policy := NewRoomPolicy(ParseRoles(" Supervisor , Técnico ,, "))

	assert.True(t, policy.IsPrivileged("Supervisor"))
	assert.True(t, policy.IsPrivileged(RoleTecnico))
	assert.False(t, policy.IsPrivileged(RoleAdmin))
	assert.Equal(t, []string{"user:t", ManagersRoom}, policy.RoomsFor(Identity{UserID: "t", Role: RoleTecnico}))
}

func TestParseRoles(t *testing.T) {
	assert.Equal(t, []Role{"Preposto", "Admin"}, ParseRoles("Preposto, Admin"))
	assert.Empty(t, ParseRoles(" , "))
}
