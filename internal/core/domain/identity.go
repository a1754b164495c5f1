package domain

import (
	"strings"
)

// Role is the application role name carried by a verified session.
type Role string

// Roles known to the main application. Only the privileged set matters to the
// relay; the rest are listed so logs and tests read naturally.
const (
	RoleUsuario       Role = "Usuário"
	RoleTecnico       Role = "Técnico"
	RolePreposto      Role = "Preposto"
	RoleAdministrador Role = "Administrador"
	RoleAdmin         Role = "Admin"
)

// DefaultPrivilegedRoles are the roles that join the managers room when no
// override is configured.
var DefaultPrivilegedRoles = []Role{RolePreposto, RoleAdministrador, RoleAdmin}

// Identity is the session identity captured once at handshake time.
type Identity struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Role     Role    `json:"role"`
	UnitID   *string `json:"unitId"`
	IsActive bool    `json:"isActive"`
}

// ParseRoles splits a comma separated role list, trimming blanks.
func ParseRoles(list string) []Role {
	parts := strings.Split(list, ",")
	roles := make([]Role, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			roles = append(roles, Role(trimmed))
		}
	}
	return roles
}
