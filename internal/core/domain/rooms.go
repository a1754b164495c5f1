package domain

// ManagersRoom is the broadcast room shared by every privileged connection.
const ManagersRoom = "managers"

const userRoomPrefix = "user:"

// UserRoom returns the per-user room name for userID.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// RoomPolicy derives room memberships from an identity.
type RoomPolicy struct {
	privileged map[Role]struct{}
}

// NewRoomPolicy creates a policy where the given roles join ManagersRoom.
// An empty list falls back to DefaultPrivilegedRoles.
func NewRoomPolicy(privileged []Role) RoomPolicy {
	if len(privileged) == 0 {
		privileged = DefaultPrivilegedRoles
	}
	set := make(map[Role]struct{}, len(privileged))
	for _, role := range privileged {
		set[role] = struct{}{}
	}
	return RoomPolicy{privileged: set}
}

// IsPrivileged reports whether role joins the managers room.
func (p RoomPolicy) IsPrivileged(role Role) bool {
	_, ok := p.privileged[role]
	return ok
}

// RoomsFor returns the rooms a connection with this identity joins.
// The result depends only on the identity.
func (p RoomPolicy) RoomsFor(identity Identity) []string {
	rooms := []string{UserRoom(identity.UserID)}
	if p.IsPrivileged(identity.Role) {
		rooms = append(rooms, ManagersRoom)
	}
	return rooms
}
