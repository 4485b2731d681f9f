package domain

type UserID string

// Role is assigned at account creation and never changes.
type Role string

const (
	RoleCreator  Role = "CREATOR"
	RoleConsumer Role = "CONSUMER"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCreator, RoleConsumer, RoleAdmin:
		return true
	default:
		return false
	}
}
